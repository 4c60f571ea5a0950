package platform

import (
	"database/sql"
	"log/slog"

	"github.com/txn2/record-versions/pkg/files"
	"github.com/txn2/record-versions/pkg/schema"
	"github.com/txn2/record-versions/pkg/versions"
)

// Options configures the platform.
type Options struct {
	// Config is the platform configuration.
	Config *Config

	// DB is the database connection (optional, opened from config if not provided).
	DB *sql.DB

	// Registry describes the versioned tables (optional, loaded from
	// versioning.schema_file if not provided).
	Registry schema.Registry

	// Files stores file registry content (optional, created from config if not provided).
	Files files.Store

	// Logger (optional, defaults to slog.Default).
	Logger *slog.Logger

	// ServiceOptions are applied after the options derived from config,
	// so hooks and overrides win.
	ServiceOptions []versions.Option
}

// Option is a functional option for configuring the platform.
type Option func(*Options)

// WithConfig sets the configuration.
func WithConfig(cfg *Config) Option {
	return func(o *Options) {
		o.Config = cfg
	}
}

// WithDB sets the database connection. The caller keeps ownership.
func WithDB(db *sql.DB) Option {
	return func(o *Options) {
		o.DB = db
	}
}

// WithRegistry sets the table registry.
func WithRegistry(r schema.Registry) Option {
	return func(o *Options) {
		o.Registry = r
	}
}

// WithFiles sets the file store.
func WithFiles(s files.Store) Option {
	return func(o *Options) {
		o.Files = s
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithServiceOptions appends version store options, such as hooks.
func WithServiceOptions(opts ...versions.Option) Option {
	return func(o *Options) {
		o.ServiceOptions = append(o.ServiceOptions, opts...)
	}
}
