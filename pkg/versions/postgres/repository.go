// Package postgres provides PostgreSQL storage for record versions.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/txn2/record-versions/pkg/versions"
)

const (
	tableName = "record_versions"

	// insertAttempts bounds retries when two writers race for the same
	// version number.
	insertAttempts = 3

	pqUniqueViolation = "23505"
)

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// versionColumns lists columns returned by version SELECT queries.
var versionColumns = []string{
	"id", "source_table", "record_id", "version", "created_at",
	"username", "user_id", "description", "edit_url", "active",
}

// payloadColumns extends versionColumns with the snapshot.
var payloadColumns = append(append([]string{}, versionColumns...), "payload")

// Repository implements versions.Repository using PostgreSQL.
type Repository struct {
	db *sql.DB
}

// New creates a new PostgreSQL version repository.
func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert implements versions.Repository.
func (r *Repository) Insert(ctx context.Context, rec *versions.Record) error {
	payload, err := versions.EncodePayload(rec.Payload)
	if err != nil {
		return err
	}

	for attempt := 1; ; attempt++ {
		err = r.insertOnce(ctx, rec, payload)
		if err == nil || !isUniqueViolation(err) || attempt >= insertAttempts {
			return err
		}
	}
}

func (r *Repository) insertOnce(ctx context.Context, rec *versions.Record, payload []byte) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var next int
	if err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM record_versions WHERE source_table = $1 AND record_id = $2`,
		rec.Table, rec.RecordID,
	).Scan(&next); err != nil {
		return fmt.Errorf("reading next version: %w", err)
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE record_versions SET active = FALSE WHERE source_table = $1 AND record_id = $2`,
		rec.Table, rec.RecordID,
	); err != nil {
		return fmt.Errorf("deactivating versions: %w", err)
	}

	query, args, err := psq.Insert(tableName).
		Columns("source_table", "record_id", "version", "created_at", "username",
			"user_id", "description", "edit_url", "active", "payload").
		Values(rec.Table, rec.RecordID, next, rec.CreatedAt, rec.Username,
			rec.UserID, rec.Description, nullString(rec.EditURL), true, payload).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("building version insert: %w", err)
	}

	var id int64
	if err = tx.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return fmt.Errorf("inserting version: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing version: %w", err)
	}

	rec.ID = id
	rec.Version = next
	rec.Active = true
	return nil
}

// Get implements versions.Repository.
func (r *Repository) Get(ctx context.Context, table string, recordID int64, version int) (*versions.Record, error) {
	query, args, err := psq.Select(payloadColumns...).
		From(tableName).
		Where(sq.Eq{"source_table": table, "record_id": recordID, "version": version}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building version query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying version: %w", err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterating version rows: %w", err)
		}
		return nil, nil //nolint:nilnil // missing version is not an error
	}
	rec, err := scanRecord(rows, true)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List implements versions.Repository.
func (r *Repository) List(ctx context.Context, table string, recordID int64) ([]versions.Record, error) {
	query, args, err := psq.Select(payloadColumns...).
		From(tableName).
		Where(sq.Eq{"source_table": table, "record_id": recordID}).
		OrderBy("version DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building version list query: %w", err)
	}
	return r.queryRecords(ctx, query, args, true)
}

// Count implements versions.Repository.
func (r *Repository) Count(ctx context.Context, table string, recordID int64) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM record_versions WHERE source_table = $1 AND record_id = $2`,
		table, recordID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting versions: %w", err)
	}
	return n, nil
}

// LatestVersion implements versions.Repository.
func (r *Repository) LatestVersion(ctx context.Context, table string, recordID int64) (int, error) {
	var v int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM record_versions WHERE source_table = $1 AND record_id = $2`,
		table, recordID,
	).Scan(&v); err != nil {
		return 0, fmt.Errorf("reading latest version: %w", err)
	}
	return v, nil
}

// Activate implements versions.Repository. A single statement flips the
// whole group so exactly one version is active at any time.
func (r *Repository) Activate(ctx context.Context, table string, recordID int64, version int) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE record_versions SET active = (version = $3) WHERE source_table = $1 AND record_id = $2`,
		table, recordID, version,
	); err != nil {
		return fmt.Errorf("activating version: %w", err)
	}
	return nil
}

// applyAuditFilter restricts a SELECT builder to versions shown in the audit
// listing.
func applyAuditFilter(qb sq.SelectBuilder, filter versions.AuditFilter) sq.SelectBuilder {
	qb = qb.Where(sq.Gt{"version": 1}).
		Where(sq.NotEq{"edit_url": nil}).
		Where(sq.NotEq{"edit_url": ""})
	if filter.UserID != nil {
		qb = qb.Where(sq.Eq{"user_id": *filter.UserID})
	}
	return qb
}

// CountAudit implements versions.Repository.
func (r *Repository) CountAudit(ctx context.Context, filter versions.AuditFilter) (int, error) {
	query, args, err := applyAuditFilter(psq.Select("COUNT(*)").From(tableName), filter).ToSql()
	if err != nil {
		return 0, fmt.Errorf("building audit count query: %w", err)
	}

	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting audit versions: %w", err)
	}
	return n, nil
}

// ListAudit implements versions.Repository.
func (r *Repository) ListAudit(ctx context.Context, filter versions.AuditFilter, limit, offset int) ([]versions.Record, error) {
	qb := applyAuditFilter(psq.Select(versionColumns...).From(tableName), filter).
		OrderBy("created_at DESC", "record_id", "version DESC")
	if limit > 0 {
		qb = qb.Limit(uint64(limit))
	}
	if offset > 0 {
		qb = qb.Offset(uint64(offset))
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building audit query: %w", err)
	}
	return r.queryRecords(ctx, query, args, false)
}

// PurgeBefore implements versions.Repository.
func (r *Repository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM record_versions WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging versions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading purged version count: %w", err)
	}
	return n, nil
}

// PurgeAll implements versions.Repository.
func (r *Repository) PurgeAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM record_versions`); err != nil {
		return fmt.Errorf("purging version table: %w", err)
	}
	return nil
}

func (r *Repository) queryRecords(ctx context.Context, query string, args []any, withPayload bool) ([]versions.Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying versions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []versions.Record
	for rows.Next() {
		rec, err := scanRecord(rows, withPayload)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating version rows: %w", err)
	}
	return out, nil
}

func scanRecord(rows *sql.Rows, withPayload bool) (versions.Record, error) {
	var (
		rec     versions.Record
		editURL sql.NullString
		payload []byte
	)
	dest := []any{
		&rec.ID, &rec.Table, &rec.RecordID, &rec.Version, &rec.CreatedAt,
		&rec.Username, &rec.UserID, &rec.Description, &editURL, &rec.Active,
	}
	if withPayload {
		dest = append(dest, &payload)
	}
	if err := rows.Scan(dest...); err != nil {
		return rec, fmt.Errorf("scanning version row: %w", err)
	}
	rec.EditURL = editURL.String
	if withPayload {
		// A payload that cannot be decoded leaves Payload nil.
		if p, err := versions.DecodePayload(payload); err == nil {
			rec.Payload = p
		}
	}
	return rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

// Verify interface compliance.
var _ versions.Repository = (*Repository)(nil)
