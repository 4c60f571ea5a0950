// Package rowstore gives the version store access to live records.
package rowstore

import (
	"context"
	"errors"
)

// ErrTableNotFound is returned when a table does not exist in the store.
var ErrTableNotFound = errors.New("table not found")

// Column describes a live table column. DataType is the database type name
// such as "integer" or "character varying", or empty when unknown.
type Column struct {
	Name     string
	DataType string
	Nullable bool
}

// Store reads and writes live records by table name and numeric id.
type Store interface {
	// Get returns all fields of a row, or nil when the row does not exist.
	Get(ctx context.Context, table string, id int64) (map[string]any, error)

	// Set overwrites the given fields of a row. The id field is never written.
	Set(ctx context.Context, table string, id int64, fields map[string]any) error

	// Columns returns the current columns of a table in ordinal order.
	Columns(ctx context.Context, table string) ([]Column, error)

	// Exists reports whether a row exists.
	Exists(ctx context.Context, table string, id int64) (bool, error)
}
