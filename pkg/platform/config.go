// Package platform loads configuration and wires the version store together
// with its storage, file, encryption and audit collaborators.
package platform

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/txn2/record-versions/pkg/audit"
	"github.com/txn2/record-versions/pkg/files/s3"
	"github.com/txn2/record-versions/pkg/maintenance"
	"github.com/txn2/record-versions/pkg/versions"
)

// CurrentConfigVersion is the only supported config API version.
const CurrentConfigVersion = "v1"

// File providers.
const (
	FilesProviderLocal = "local"
	FilesProviderS3    = "s3"
)

// Config holds the complete configuration.
type Config struct {
	APIVersion  string            `yaml:"apiVersion"`
	Database    DatabaseConfig    `yaml:"database"`
	Versioning  VersioningConfig  `yaml:"versioning"`
	Formats     FormatsConfig     `yaml:"formats"`
	Files       FilesConfig       `yaml:"files"`
	Encryption  EncryptionConfig  `yaml:"encryption"`
	Audit       audit.Config      `yaml:"audit"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Server      ServerConfig      `yaml:"server"`
}

// DatabaseConfig configures the PostgreSQL connection holding both the
// version table and the live records.
type DatabaseConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// VersioningConfig configures the version store.
type VersioningConfig struct {
	Retention     time.Duration `yaml:"retention"`
	EditableFiles []string      `yaml:"editable_files"`
	FilesTable    string        `yaml:"files_table"`
	UserTable     string        `yaml:"user_table"`
	UserModule    string        `yaml:"user_module"`
	SchemaFile    string        `yaml:"schema_file"`
}

// FormatsConfig sets display layouts in Go reference time notation.
type FormatsConfig struct {
	Date     string `yaml:"date"`
	Time     string `yaml:"time"`
	DateTime string `yaml:"datetime"`
	Timezone string `yaml:"timezone"`
}

// FilesConfig selects where file registry content lives.
type FilesConfig struct {
	Provider string    `yaml:"provider"`
	Root     string    `yaml:"root"`
	S3       s3.Config `yaml:"s3"`
}

// EncryptionConfig holds the key for encrypted fields.
type EncryptionConfig struct {
	// Key is a base64 encoded 32-byte key. Empty disables decryption.
	Key string `yaml:"key"`
}

// MaintenanceConfig holds cron schedules for housekeeping jobs. An empty
// schedule disables the job.
type MaintenanceConfig struct {
	PurgeSchedule        string `yaml:"purge_schedule"`
	AuditCleanupSchedule string `yaml:"audit_cleanup_schedule"`
}

// ServerConfig configures the daemon's health and metrics listener.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoadConfig loads configuration from a file.
// The path is expected to come from command line arguments, controlled by the administrator.
func LoadConfig(path string) (*Config, error) {
	// #nosec G304 -- path is from CLI args, controlled by admin
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML configuration, expanding ${VAR} patterns from the
// environment and applying defaults.
func ParseConfig(data []byte) (*Config, error) {
	data = []byte(expandEnvVars(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

var envVarRe = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns in the string.
func expandEnvVars(s string) string {
	return envVarRe.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

// applyDefaults applies default values to the config.
func applyDefaults(cfg *Config) {
	if cfg.APIVersion == "" {
		cfg.APIVersion = CurrentConfigVersion
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Versioning.Retention == 0 {
		cfg.Versioning.Retention = versions.DefaultRetention
	}
	if cfg.Versioning.FilesTable == "" {
		cfg.Versioning.FilesTable = versions.DefaultFilesTable
	}
	if cfg.Versioning.UserTable == "" {
		cfg.Versioning.UserTable = versions.DefaultUserTable
	}
	if cfg.Versioning.UserModule == "" {
		cfg.Versioning.UserModule = versions.DefaultUserModule
	}
	if cfg.Formats.Date == "" {
		cfg.Formats.Date = versions.DefaultDateLayout
	}
	if cfg.Formats.Time == "" {
		cfg.Formats.Time = versions.DefaultTimeLayout
	}
	if cfg.Formats.DateTime == "" {
		cfg.Formats.DateTime = versions.DefaultDatimLayout
	}
	if cfg.Formats.Timezone == "" {
		cfg.Formats.Timezone = "UTC"
	}
	if cfg.Files.Provider == "" {
		cfg.Files.Provider = FilesProviderLocal
	}
	if cfg.Audit.RetentionDays == 0 {
		cfg.Audit.RetentionDays = 90
	}
	if cfg.Maintenance.PurgeSchedule == "" {
		cfg.Maintenance.PurgeSchedule = maintenance.DefaultPurgeSchedule
	}
	if cfg.Maintenance.AuditCleanupSchedule == "" {
		cfg.Maintenance.AuditCleanupSchedule = maintenance.DefaultAuditCleanupSchedule
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30 * time.Second
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.APIVersion != CurrentConfigVersion {
		errs = append(errs, fmt.Sprintf("unsupported apiVersion %q (supported: %s)", c.APIVersion, CurrentConfigVersion))
	}
	if c.Database.DSN == "" {
		errs = append(errs, "database.dsn is required")
	}
	if c.Versioning.SchemaFile == "" {
		errs = append(errs, "versioning.schema_file is required")
	}
	if c.Versioning.Retention < 0 {
		errs = append(errs, "versioning.retention must not be negative")
	}
	if _, err := time.LoadLocation(c.Formats.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("formats.timezone: %v", err))
	}

	switch c.Files.Provider {
	case FilesProviderLocal:
		if c.Files.Root == "" {
			errs = append(errs, "files.root is required for the local provider")
		}
	case FilesProviderS3:
		if c.Files.S3.Bucket == "" {
			errs = append(errs, "files.s3.bucket is required for the s3 provider")
		}
	default:
		errs = append(errs, fmt.Sprintf("files.provider must be %q or %q", FilesProviderLocal, FilesProviderS3))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
