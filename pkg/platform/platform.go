package platform

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/txn2/record-versions/pkg/audit"
	auditpostgres "github.com/txn2/record-versions/pkg/audit/postgres"
	"github.com/txn2/record-versions/pkg/database/migrate"
	"github.com/txn2/record-versions/pkg/fieldcrypt"
	"github.com/txn2/record-versions/pkg/files"
	"github.com/txn2/record-versions/pkg/files/s3"
	"github.com/txn2/record-versions/pkg/health"
	"github.com/txn2/record-versions/pkg/maintenance"
	rowpostgres "github.com/txn2/record-versions/pkg/rowstore/postgres"
	"github.com/txn2/record-versions/pkg/schema"
	"github.com/txn2/record-versions/pkg/versions"
	versionpostgres "github.com/txn2/record-versions/pkg/versions/postgres"
)

// Platform owns the database connection and the components built on it.
type Platform struct {
	config    *Config
	logger    *slog.Logger
	db        *sql.DB
	ownsDB    bool
	lifecycle *Lifecycle

	versions   *versions.Service
	auditStore *auditpostgres.Store
	scheduler  *maintenance.Scheduler
	health     *health.Checker
}

// New creates a platform. Nothing touches the database until Start or one of
// the version store operations runs.
func New(ctx context.Context, opts ...Option) (*Platform, error) {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	if options.Config == nil {
		return nil, errors.New("config is required")
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	p := &Platform{
		config:    options.Config,
		logger:    options.Logger,
		lifecycle: NewLifecycle(options.Logger),
		health:    health.NewChecker(),
	}

	if err := p.initDatabase(options); err != nil {
		return nil, err
	}
	if err := p.initVersions(ctx, options); err != nil {
		_ = p.Close()
		return nil, err
	}
	if err := p.initMaintenance(); err != nil {
		_ = p.Close()
		return nil, err
	}
	p.registerLifecycle()

	return p, nil
}

func (p *Platform) initDatabase(opts *Options) error {
	if opts.DB != nil {
		p.db = opts.DB
		return nil
	}
	if p.config.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	db, err := sql.Open("postgres", p.config.Database.DSN)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(p.config.Database.MaxOpenConns)
	p.db = db
	p.ownsDB = true
	return nil
}

func (p *Platform) initVersions(ctx context.Context, opts *Options) error {
	cfg := p.config

	registry := opts.Registry
	if registry == nil {
		r, err := schema.LoadFile(cfg.Versioning.SchemaFile)
		if err != nil {
			return fmt.Errorf("loading schema: %w", err)
		}
		registry = r
	}

	store := opts.Files
	if store == nil {
		s, err := p.createFileStore(ctx)
		if err != nil {
			return err
		}
		store = s
	}

	decrypter, err := p.createDecrypter()
	if err != nil {
		return err
	}

	loc, err := time.LoadLocation(cfg.Formats.Timezone)
	if err != nil {
		return fmt.Errorf("loading timezone: %w", err)
	}

	svcOpts := []versions.Option{
		versions.WithLogger(p.logger),
		versions.WithFiles(store),
		versions.WithDecrypter(decrypter),
		versions.WithAuditLogger(p.createAuditLogger()),
		versions.WithRetention(cfg.Versioning.Retention),
		versions.WithFilesTable(cfg.Versioning.FilesTable),
		versions.WithUserTable(cfg.Versioning.UserTable, cfg.Versioning.UserModule),
		versions.WithLayouts(cfg.Formats.Date, cfg.Formats.Time, cfg.Formats.DateTime),
		versions.WithLocation(loc),
	}
	if len(cfg.Versioning.EditableFiles) > 0 {
		svcOpts = append(svcOpts, versions.WithEditableExtensions(cfg.Versioning.EditableFiles))
	}
	svcOpts = append(svcOpts, opts.ServiceOptions...)

	p.versions = versions.New(
		versionpostgres.New(p.db),
		rowpostgres.New(p.db),
		registry,
		svcOpts...,
	)
	return nil
}

func (p *Platform) createFileStore(ctx context.Context) (files.Store, error) {
	switch p.config.Files.Provider {
	case FilesProviderS3:
		s, err := s3.NewFromConfig(ctx, p.config.Files.S3)
		if err != nil {
			return nil, fmt.Errorf("creating s3 file store: %w", err)
		}
		return s, nil
	case FilesProviderLocal, "":
		if p.config.Files.Root == "" {
			return nil, errors.New("files.root is required for the local provider")
		}
		return files.NewLocalStore(p.config.Files.Root), nil
	default:
		return nil, fmt.Errorf("unknown files provider %q", p.config.Files.Provider)
	}
}

func (p *Platform) createDecrypter() (fieldcrypt.Decrypter, error) {
	if p.config.Encryption.Key == "" {
		return fieldcrypt.Noop{}, nil
	}
	box, err := fieldcrypt.NewSecretBoxFromString(p.config.Encryption.Key)
	if err != nil {
		return nil, fmt.Errorf("loading encryption key: %w", err)
	}
	return box, nil
}

func (p *Platform) createAuditLogger() audit.Logger {
	loggers := audit.Multi{audit.NewSlogLogger(p.logger)}
	if p.config.Audit.Enabled {
		p.auditStore = auditpostgres.New(p.db, auditpostgres.Config{
			RetentionDays: p.config.Audit.RetentionDays,
		})
		loggers = append(loggers, p.auditStore)
	}
	return loggers
}

func (p *Platform) initMaintenance() error {
	p.scheduler = maintenance.NewScheduler(p.logger)
	if err := p.scheduler.Add(p.config.Maintenance.PurgeSchedule,
		maintenance.NewPurgeJob(p.versions, p.logger)); err != nil {
		return err
	}
	if p.auditStore != nil {
		if err := p.scheduler.Add(p.config.Maintenance.AuditCleanupSchedule,
			maintenance.NewAuditCleanupJob(p.auditStore, p.logger)); err != nil {
			return err
		}
	}
	p.health.AddProbe("database", p.db.PingContext)
	return nil
}

func (p *Platform) registerLifecycle() {
	p.lifecycle.Register("database", p.db.PingContext, nil)
	p.lifecycle.Register("scheduler",
		func(context.Context) error { p.scheduler.Start(); return nil },
		p.scheduler.Stop,
	)
	p.lifecycle.Register("health",
		func(context.Context) error { p.health.SetReady(); return nil },
		func(context.Context) error { p.health.SetDraining(); return nil },
	)
}

// Migrate applies pending schema migrations.
func (p *Platform) Migrate() error {
	if err := migrate.Run(p.db); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	return nil
}

// Start checks the database and starts the maintenance scheduler.
func (p *Platform) Start(ctx context.Context) error {
	return p.lifecycle.Start(ctx)
}

// Stop drains readiness and stops the scheduler.
func (p *Platform) Stop(ctx context.Context) error {
	return p.lifecycle.Stop(ctx)
}

// Close releases the database connection if the platform opened it.
func (p *Platform) Close() error {
	if p.ownsDB && p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database: %w", err)
		}
	}
	return nil
}

// Config returns the platform configuration.
func (p *Platform) Config() *Config {
	return p.config
}

// Versions returns the version store.
func (p *Platform) Versions() *versions.Service {
	return p.versions
}

// AuditStore returns the persistent audit store, or nil when disabled.
func (p *Platform) AuditStore() *auditpostgres.Store {
	return p.auditStore
}

// Scheduler returns the maintenance scheduler.
func (p *Platform) Scheduler() *maintenance.Scheduler {
	return p.scheduler
}

// Health returns the health checker.
func (p *Platform) Health() *health.Checker {
	return p.health
}
