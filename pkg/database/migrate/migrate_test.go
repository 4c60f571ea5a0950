//go:build integration

package migrate

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const latestVersion = uint(2)

func startPostgres(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	c, err := postgres.Run(ctx, "postgres:15",
		postgres.WithDatabase("versions"),
		postgres.WithUsername("versions"),
		postgres.WithPassword("versions"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(ctx) })

	connStr, err := c.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var exists bool
	err := db.QueryRow(
		`SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name = $1)`, name,
	).Scan(&exists)
	require.NoError(t, err)
	return exists
}

func TestMigrations(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db := startPostgres(t)

	require.NoError(t, Run(db))
	assert.True(t, tableExists(t, db, "record_versions"))
	assert.True(t, tableExists(t, db, "audit_logs"))

	version, dirty, err := Version(db)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, latestVersion, version)

	require.NoError(t, Run(db), "Run must be idempotent")

	_, err = db.Exec(`INSERT INTO record_versions (source_table, record_id, version, created_at, active, payload)
		VALUES ('tl_news', 1, 1, now(), TRUE, '{}')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO record_versions (source_table, record_id, version, created_at, active, payload)
		VALUES ('tl_news', 1, 1, now(), FALSE, '{}')`)
	require.Error(t, err, "version numbers are unique per record")

	require.NoError(t, Down(db))
	assert.False(t, tableExists(t, db, "record_versions"))
	assert.False(t, tableExists(t, db, "audit_logs"))

	require.NoError(t, Steps(db, 1))
	version, _, err = Version(db)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.True(t, tableExists(t, db, "record_versions"))
	assert.False(t, tableExists(t, db, "audit_logs"))
}
