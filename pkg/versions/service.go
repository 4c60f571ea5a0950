// Package versions stores immutable snapshots of records and lets callers
// list, compare and restore them.
package versions

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/txn2/record-versions/pkg/audit"
	"github.com/txn2/record-versions/pkg/diffrender"
	"github.com/txn2/record-versions/pkg/fieldcrypt"
	"github.com/txn2/record-versions/pkg/files"
	"github.com/txn2/record-versions/pkg/rowstore"
	"github.com/txn2/record-versions/pkg/schema"
)

// Defaults.
const (
	DefaultRetention     = 90 * 24 * time.Hour
	DefaultFilesTable    = "tl_files"
	DefaultUserTable     = "tl_user"
	DefaultUserModule    = "user"
	DefaultDateLayout    = "2006-01-02"
	DefaultTimeLayout    = "15:04"
	DefaultDatimLayout   = "2006-01-02 15:04"
	DefaultAuditPageSize = 30
)

// Service is the version store. It is safe for concurrent use.
type Service struct {
	repo     Repository
	rows     rowstore.Store
	registry schema.Registry

	files     files.Store
	decrypter fieldcrypt.Decrypter
	renderer  diffrender.Renderer
	audit     audit.Logger
	logger    *slog.Logger
	sanitizer *bluemonday.Policy
	now       func() time.Time

	retention   time.Duration
	editable    []string
	filesTable  string
	userTable   string
	userModule  string
	dateLayout  string
	timeLayout  string
	datimLayout string
	location    *time.Location

	createHooks        []CreateHook
	restoreHooks       []RestoreHook
	legacyRestoreHooks []LegacyRestoreHook
}

// Option configures a Service.
type Option func(*Service)

// WithFiles sets the file store used for the file registry table.
func WithFiles(f files.Store) Option {
	return func(s *Service) { s.files = f }
}

// WithDecrypter sets the decrypter for encrypted fields.
func WithDecrypter(d fieldcrypt.Decrypter) Option {
	return func(s *Service) { s.decrypter = d }
}

// WithRenderer sets the diff renderer.
func WithRenderer(r diffrender.Renderer) Option {
	return func(s *Service) { s.renderer = r }
}

// WithAuditLogger sets the sink for create and restore events.
func WithAuditLogger(l audit.Logger) Option {
	return func(s *Service) { s.audit = l }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRetention sets the age after which versions are purged.
func WithRetention(d time.Duration) Option {
	return func(s *Service) { s.retention = d }
}

// WithEditableExtensions sets the file extensions whose content is captured.
func WithEditableExtensions(exts []string) Option {
	return func(s *Service) { s.editable = exts }
}

// WithFilesTable sets the name of the file registry table.
func WithFilesTable(name string) Option {
	return func(s *Service) { s.filesTable = name }
}

// WithUserTable sets the table whose versions are hidden from actors without
// access to the user module.
func WithUserTable(name, module string) Option {
	return func(s *Service) {
		s.userTable = name
		s.userModule = module
	}
}

// WithLayouts sets the date, time and date-time display layouts.
func WithLayouts(date, clock, datim string) Option {
	return func(s *Service) {
		if date != "" {
			s.dateLayout = date
		}
		if clock != "" {
			s.timeLayout = clock
		}
		if datim != "" {
			s.datimLayout = datim
		}
	}
}

// WithLocation sets the time zone used for display.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.location = loc }
}

// WithCreateHook registers a hook that runs after each create.
func WithCreateHook(h CreateHook) Option {
	return func(s *Service) { s.createHooks = append(s.createHooks, h) }
}

// WithRestoreHook registers a hook that runs after each restore.
func WithRestoreHook(h RestoreHook) Option {
	return func(s *Service) { s.restoreHooks = append(s.restoreHooks, h) }
}

// WithLegacyRestoreHook registers a hook with the legacy argument order.
//
// Deprecated: use WithRestoreHook.
func WithLegacyRestoreHook(h LegacyRestoreHook) Option {
	return func(s *Service) { s.legacyRestoreHooks = append(s.legacyRestoreHooks, h) }
}

// New creates a version store.
func New(repo Repository, rows rowstore.Store, registry schema.Registry, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		rows:        rows,
		registry:    registry,
		decrypter:   fieldcrypt.Noop{},
		renderer:    diffrender.NewHTML(),
		logger:      slog.Default(),
		sanitizer:   bluemonday.StrictPolicy(),
		now:         time.Now,
		retention:   DefaultRetention,
		editable:    files.DefaultEditableExtensions,
		filesTable:  DefaultFilesTable,
		userTable:   DefaultUserTable,
		userModule:  DefaultUserModule,
		dateLayout:  DefaultDateLayout,
		timeLayout:  DefaultTimeLayout,
		datimLayout: DefaultDatimLayout,
		location:    time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.audit == nil {
		s.audit = audit.NewSlogLogger(s.logger)
	}
	return s
}

// Record returns a handle on the versions of one record. The table schema is
// resolved once here.
func (s *Service) Record(table string, recordID int64) (*Handle, error) {
	t, ok := s.registry.Table(table)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}
	return &Handle{svc: s, table: t, recordID: recordID}, nil
}

// PurgeExpired deletes versions older than the retention period across all
// tables and returns the number of deleted versions.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.PurgeBefore(ctx, s.now().Add(-s.retention))
	if err != nil {
		return 0, storageErr("purging expired versions", err)
	}
	if n > 0 {
		versionsPurgedTotal.Add(float64(n))
		s.logger.DebugContext(ctx, "purged expired versions", "count", n)
	}
	return n, nil
}

// PurgeAll deletes every stored version.
func (s *Service) PurgeAll(ctx context.Context) error {
	if err := s.repo.PurgeAll(ctx); err != nil {
		return storageErr("purging version table", err)
	}
	s.logger.InfoContext(ctx, "purged the version table")
	return nil
}

func (s *Service) logEvent(ctx context.Context, event *audit.Event) {
	if err := s.audit.Log(ctx, *event); err != nil {
		s.logger.WarnContext(ctx, "audit log failed", "error", err, "action", string(event.Action))
	}
}

func (s *Service) formatTime(t time.Time, layout string) string {
	return t.In(s.location).Format(layout)
}
