package versions

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepository is an in-memory Repository. Payloads are stored in their
// serialized form so values decode exactly as they would from PostgreSQL.
type MemoryRepository struct {
	mu      sync.RWMutex
	nextID  int64
	records []memoryRecord
}

type memoryRecord struct {
	rec     Record
	payload []byte
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// Insert implements Repository.
func (m *MemoryRepository) Insert(_ context.Context, rec *Record) error {
	payload, err := EncodePayload(rec.Payload)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	next := 1
	for i := range m.records {
		r := &m.records[i].rec
		if r.Table != rec.Table || r.RecordID != rec.RecordID {
			continue
		}
		if r.Version >= next {
			next = r.Version + 1
		}
		r.Active = false
	}

	m.nextID++
	rec.ID = m.nextID
	rec.Version = next
	rec.Active = true

	stored := *rec
	stored.Payload = nil
	m.records = append(m.records, memoryRecord{rec: stored, payload: payload})
	return nil
}

// Get implements Repository.
func (m *MemoryRepository) Get(_ context.Context, table string, recordID int64, version int) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, r := range m.records {
		if r.rec.Table == table && r.rec.RecordID == recordID && r.rec.Version == version {
			out := r.load()
			return &out, nil
		}
	}
	return nil, nil //nolint:nilnil // missing version is not an error
}

// List implements Repository.
func (m *MemoryRepository) List(_ context.Context, table string, recordID int64) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Record
	for _, r := range m.records {
		if r.rec.Table == table && r.rec.RecordID == recordID {
			out = append(out, r.load())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

// Count implements Repository.
func (m *MemoryRepository) Count(_ context.Context, table string, recordID int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, r := range m.records {
		if r.rec.Table == table && r.rec.RecordID == recordID {
			n++
		}
	}
	return n, nil
}

// LatestVersion implements Repository.
func (m *MemoryRepository) LatestVersion(_ context.Context, table string, recordID int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	latest := 0
	for _, r := range m.records {
		if r.rec.Table == table && r.rec.RecordID == recordID && r.rec.Version > latest {
			latest = r.rec.Version
		}
	}
	return latest, nil
}

// Activate implements Repository.
func (m *MemoryRepository) Activate(_ context.Context, table string, recordID int64, version int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.records {
		r := &m.records[i].rec
		if r.Table == table && r.RecordID == recordID {
			r.Active = r.Version == version
		}
	}
	return nil
}

func (r memoryRecord) load() Record {
	out := r.rec
	if p, err := DecodePayload(r.payload); err == nil {
		out.Payload = p
	}
	return out
}

func auditMatch(r Record, filter AuditFilter) bool {
	if r.Version <= 1 || r.EditURL == "" {
		return false
	}
	return filter.UserID == nil || r.UserID == *filter.UserID
}

// CountAudit implements Repository.
func (m *MemoryRepository) CountAudit(_ context.Context, filter AuditFilter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, r := range m.records {
		if auditMatch(r.rec, filter) {
			n++
		}
	}
	return n, nil
}

// ListAudit implements Repository.
func (m *MemoryRepository) ListAudit(_ context.Context, filter AuditFilter, limit, offset int) ([]Record, error) {
	m.mu.RLock()
	var matched []Record
	for _, r := range m.records {
		if auditMatch(r.rec, filter) {
			matched = append(matched, r.rec)
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		if a.RecordID != b.RecordID {
			return a.RecordID < b.RecordID
		}
		return a.Version > b.Version
	})

	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

// PurgeBefore implements Repository.
func (m *MemoryRepository) PurgeBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.records[:0]
	var n int64
	for _, r := range m.records {
		if r.rec.CreatedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	m.records = kept
	return n, nil
}

// PurgeAll implements Repository.
func (m *MemoryRepository) PurgeAll(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = nil
	return nil
}

// Verify interface compliance.
var _ Repository = (*MemoryRepository)(nil)
