// Package postgres provides a PostgreSQL-backed row store for versioned tables.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/txn2/record-versions/pkg/rowstore"
)

// pgUndefinedTable is the SQLSTATE for a missing relation.
const pgUndefinedTable = "42P01"

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// ErrInvalidIdentifier is returned for table or column names that are not
// plain SQL identifiers.
var ErrInvalidIdentifier = errors.New("invalid identifier")

// Store implements rowstore.Store over arbitrary PostgreSQL tables with a
// numeric id primary key.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL row store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Get returns all columns of a row, or nil when the row does not exist.
// bytea columns are returned as []byte, other textual values as string.
func (s *Store) Get(ctx context.Context, table string, id int64) (map[string]any, error) {
	tbl, err := quoteIdent(table)
	if err != nil {
		return nil, err
	}

	query, args, err := psq.Select("*").From(tbl).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building row query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying row %s.%d: %w", table, id, mapError(err))
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterating row %s.%d: %w", table, id, mapError(err))
		}
		return nil, nil //nolint:nilnil // absent row is not an error
	}

	row, err := scanRow(rows)
	if err != nil {
		return nil, fmt.Errorf("scanning row %s.%d: %w", table, id, err)
	}
	return row, nil
}

func scanRow(rows *sql.Rows) (map[string]any, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("reading column types: %w", err)
	}

	values := make([]any, len(types))
	ptrs := make([]any, len(types))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err //nolint:wrapcheck // wrapped by caller
	}

	row := make(map[string]any, len(types))
	for i, ct := range types {
		v := values[i]
		if b, ok := v.([]byte); ok && !strings.EqualFold(ct.DatabaseTypeName(), "BYTEA") {
			v = string(b)
		}
		row[ct.Name()] = v
	}
	return row, nil
}

// Set overwrites fields of a row. Maps and slices are stored as JSON text.
func (s *Store) Set(ctx context.Context, table string, id int64, fields map[string]any) error {
	tbl, err := quoteIdent(table)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(fields))
	for k := range fields {
		if k != "id" {
			names = append(names, k)
		}
	}
	if len(names) == 0 {
		return nil
	}
	sort.Strings(names)

	qb := psq.Update(tbl)
	for _, name := range names {
		col, err := quoteIdent(name)
		if err != nil {
			return err
		}
		v, err := columnValue(fields[name])
		if err != nil {
			return fmt.Errorf("encoding column %s: %w", name, err)
		}
		qb = qb.Set(col, v)
	}

	query, args, err := qb.Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("building row update: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("updating row %s.%d: %w", table, id, mapError(err))
	}
	return nil
}

func columnValue(v any) (any, error) {
	switch v.(type) {
	case map[string]any, []any, []string:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err //nolint:wrapcheck // wrapped by caller
		}
		return string(b), nil
	default:
		return v, nil
	}
}

// Columns returns the columns of a table in ordinal order.
func (s *Store) Columns(ctx context.Context, table string) ([]rowstore.Column, error) {
	if _, err := quoteIdent(table); err != nil {
		return nil, err
	}

	query, args, err := psq.Select("column_name", "data_type", "is_nullable").
		From("information_schema.columns").
		Where("table_schema = current_schema()").
		Where(sq.Eq{"table_name": table}).
		OrderBy("ordinal_position").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building column query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying columns of %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var cols []rowstore.Column
	for rows.Next() {
		var (
			c        rowstore.Column
			nullable string
		)
		if err := rows.Scan(&c.Name, &c.DataType, &nullable); err != nil {
			return nil, fmt.Errorf("scanning column: %w", err)
		}
		c.Nullable = strings.EqualFold(nullable, "YES")
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating columns: %w", err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("listing columns of %s: %w", table, rowstore.ErrTableNotFound)
	}
	return cols, nil
}

// Exists reports whether a row exists.
func (s *Store) Exists(ctx context.Context, table string, id int64) (bool, error) {
	tbl, err := quoteIdent(table)
	if err != nil {
		return false, err
	}

	query, args, err := psq.Select("COUNT(*)").From(tbl).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return false, fmt.Errorf("building exists query: %w", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("probing row %s.%d: %w", table, id, mapError(err))
	}
	return count > 0, nil
}

// mapError translates driver errors into rowstore sentinels.
func mapError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pgUndefinedTable {
		return rowstore.ErrTableNotFound
	}
	return err
}

// quoteIdent validates a bare identifier and returns it quoted.
func quoteIdent(name string) (string, error) {
	if !validIdent(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return pq.QuoteIdentifier(name), nil
}

func validIdent(name string) bool {
	if name == "" || !isIdentStart(name[0]) {
		return false
	}
	for i := 1; i < len(name); i++ {
		if !isIdentStart(name[i]) && (name[i] < '0' || name[i] > '9') {
			return false
		}
	}
	return true
}

// isIdentStart returns true if ch can start an identifier (letter or underscore).
func isIdentStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

// Verify interface compliance.
var _ rowstore.Store = (*Store)(nil)
