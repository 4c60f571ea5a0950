package platform

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/record-versions/pkg/files"
	"github.com/txn2/record-versions/pkg/schema"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := ParseConfig([]byte(cfgTestMinimalYML))
	require.NoError(t, err)
	return cfg
}

func testRegistry() schema.Registry {
	return schema.NewRegistry(schema.Definition{
		Tables: map[string]*schema.Table{
			"tl_news": {Versioning: true, Fields: map[string]schema.Field{
				"headline": {Label: "Headline"},
			}},
		},
	})
}

func newTestPlatform(t *testing.T, cfg *Config) (*Platform, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	p, err := New(context.Background(),
		WithConfig(cfg),
		WithDB(db),
		WithRegistry(testRegistry()),
		WithFiles(files.NewLocalStore(t.TempDir())),
	)
	require.NoError(t, err)
	return p, mock
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config is required")
}

func TestNew_RequiresDSNWithoutDB(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.DSN = ""

	_, err := New(context.Background(), WithConfig(cfg))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.dsn")
}

func TestNew_WiresVersionStore(t *testing.T) {
	p, _ := newTestPlatform(t, testConfig(t))

	h, err := p.Versions().Record("tl_news", 1)
	require.NoError(t, err)
	assert.True(t, h.Enabled())
	assert.Nil(t, p.AuditStore())
	assert.Equal(t, 1, p.Scheduler().Len())
	assert.Same(t, p.Config(), p.config)
}

func TestNew_AuditEnabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Audit.Enabled = true

	p, _ := newTestPlatform(t, cfg)
	assert.NotNil(t, p.AuditStore())
	assert.Equal(t, 2, p.Scheduler().Len())
}

func TestNew_DisabledSchedules(t *testing.T) {
	cfg := testConfig(t)
	cfg.Audit.Enabled = true
	cfg.Maintenance.PurgeSchedule = ""
	cfg.Maintenance.AuditCleanupSchedule = ""

	p, _ := newTestPlatform(t, cfg)
	assert.Equal(t, 0, p.Scheduler().Len())
}

func TestNew_InvalidSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.Maintenance.PurgeSchedule = "every night"

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	_, err = New(context.Background(), WithConfig(cfg), WithDB(db), WithRegistry(testRegistry()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VersionPurgeJob")
}

func TestNew_InvalidEncryptionKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Encryption.Key = "dG9vIHNob3J0"

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	_, err = New(context.Background(), WithConfig(cfg), WithDB(db), WithRegistry(testRegistry()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encryption key")
}

func TestNew_MissingSchemaFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Versioning.SchemaFile = "/nonexistent/schema.yaml"

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	_, err = New(context.Background(), WithConfig(cfg), WithDB(db))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading schema")
}

func TestPlatform_StartStop(t *testing.T) {
	p, mock := newTestPlatform(t, testConfig(t))
	ctx := context.Background()

	mock.ExpectPing()
	require.NoError(t, p.Start(ctx))
	assert.True(t, p.Health().IsReady())

	require.NoError(t, p.Stop(ctx))
	assert.Equal(t, "draining", p.Health().State())
	require.NoError(t, p.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPlatform_StartFailsWhenDatabaseDown(t *testing.T) {
	p, mock := newTestPlatform(t, testConfig(t))

	mock.ExpectPing().WillReturnError(assert.AnError)
	err := p.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "starting database")
	assert.False(t, p.Health().IsReady())
}

func TestPlatform_ReadinessProbe(t *testing.T) {
	p, mock := newTestPlatform(t, testConfig(t))

	mock.ExpectPing().WillReturnError(assert.AnError)
	assert.Equal(t, []string{"database"}, p.Health().Failing(context.Background()))
}
