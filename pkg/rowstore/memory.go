package rowstore

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string]*memoryTable
}

type memoryTable struct {
	columns []Column
	rows   map[int64]map[string]any
}

// NewMemoryStore creates an empty in-memory row store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string]*memoryTable)}
}

// CreateTable registers a table with the given columns of unknown type.
// Creating an existing table replaces its column list and keeps its rows.
func (s *MemoryStore) CreateTable(name string, fields ...string) {
	cols := make([]Column, len(fields))
	for i, f := range fields {
		cols[i] = Column{Name: f}
	}
	s.CreateTableColumns(name, cols...)
}

// CreateTableColumns is CreateTable with typed columns.
func (s *MemoryStore) CreateTableColumns(name string, cols ...Column) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[name]
	if !ok {
		t = &memoryTable{rows: make(map[int64]map[string]any)}
		s.tables[name] = t
	}
	t.columns = slices.Clone(cols)
}

// DropTable removes a table and all of its rows.
func (s *MemoryStore) DropTable(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tables, name)
}

// Put inserts or replaces a row.
func (s *MemoryStore) Put(table string, id int64, row map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[table]
	if !ok {
		return fmt.Errorf("putting row %s.%d: %w", table, id, ErrTableNotFound)
	}
	r := maps.Clone(row)
	if r == nil {
		r = map[string]any{}
	}
	r["id"] = id
	t.rows[id] = r
	return nil
}

// Delete removes a row.
func (s *MemoryStore) Delete(table string, id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.tables[table]; ok {
		delete(t.rows, id)
	}
}

// Get returns a copy of a row, or nil when the row does not exist.
func (s *MemoryStore) Get(_ context.Context, table string, id int64) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[table]
	if !ok {
		return nil, ErrTableNotFound
	}
	row, ok := t.rows[id]
	if !ok {
		return nil, nil //nolint:nilnil // absent row is not an error
	}
	return maps.Clone(row), nil
}

// Set overwrites fields of an existing row. Unknown rows are ignored.
func (s *MemoryStore) Set(_ context.Context, table string, id int64, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[table]
	if !ok {
		return ErrTableNotFound
	}
	row, ok := t.rows[id]
	if !ok {
		return nil
	}
	for k, v := range fields {
		if k == "id" {
			continue
		}
		row[k] = v
	}
	return nil
}

// Columns returns the declared columns of a table.
func (s *MemoryStore) Columns(_ context.Context, table string) ([]Column, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[table]
	if !ok {
		return nil, ErrTableNotFound
	}
	return slices.Clone(t.columns), nil
}

// Exists reports whether a row exists.
func (s *MemoryStore) Exists(_ context.Context, table string, id int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[table]
	if !ok {
		return false, ErrTableNotFound
	}
	_, ok = t.rows[id]
	return ok, nil
}

// Verify interface compliance.
var _ Store = (*MemoryStore)(nil)
