package versions

import (
	"context"
	"time"
)

// Repository persists version records.
type Repository interface {
	// Insert stores rec as the active version of its group. It assigns the
	// next version number and the record ID, and deactivates all siblings in
	// the same transaction.
	Insert(ctx context.Context, rec *Record) error

	// Get returns one version with its payload, or nil when it does not
	// exist. A payload that is not a mapping is returned as nil Payload.
	Get(ctx context.Context, table string, recordID int64, version int) (*Record, error)

	// List returns all versions of a group with payloads, newest first.
	List(ctx context.Context, table string, recordID int64) ([]Record, error)

	// Count returns the number of versions in a group.
	Count(ctx context.Context, table string, recordID int64) (int, error)

	// LatestVersion returns the highest version number of a group, or 0.
	LatestVersion(ctx context.Context, table string, recordID int64) (int, error)

	// Activate marks version as the only active version of its group.
	Activate(ctx context.Context, table string, recordID int64, version int) error

	// CountAudit counts versions above 1 that carry an edit URL.
	CountAudit(ctx context.Context, filter AuditFilter) (int, error)

	// ListAudit returns versions above 1 that carry an edit URL, ordered by
	// creation time descending, record ID and version descending. Payloads
	// are not loaded.
	ListAudit(ctx context.Context, filter AuditFilter, limit, offset int) ([]Record, error)

	// PurgeBefore deletes versions of all tables created before cutoff.
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// PurgeAll deletes every version.
	PurgeAll(ctx context.Context) error
}
