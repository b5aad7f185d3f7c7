package session

import (
	"context"
	"sync"
	"time"
)

// Compile-time check that MemoryStore implements the Store interface.
var _ Store = (*MemoryStore)(nil)

// MemoryStore implements Store with an in-process map. It backs tests and
// serves as the degraded per-process fallback when no external backend is
// available. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// EnsureTable is a no-op: the map needs no provisioning.
func (m *MemoryStore) EnsureTable(ctx context.Context) error {
	return nil
}

// Get returns the record stored under key or ErrNotFound.
func (m *MemoryStore) Get(ctx context.Context, key string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

// Put upserts the record under its key.
func (m *MemoryStore) Put(ctx context.Context, rec Record) error {
	if rec.Key == "" {
		return ErrEmptyKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.Key] = rec
	return nil
}

// Delete removes the record under key. Absent keys are not an error.
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, key)
	return nil
}

// Touch updates only the expiry of an existing record.
func (m *MemoryStore) Touch(ctx context.Context, key string, expiresAt int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[key]
	if !ok {
		return ErrNotFound
	}
	rec.ExpiresAt = expiresAt
	m.records[key] = rec
	return nil
}

// ScanExpired returns the keys of all records whose expiry elapsed before now.
func (m *MemoryStore) ScanExpired(ctx context.Context, now time.Time) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for key, rec := range m.records {
		if rec.Expired(now) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Len returns the number of stored records.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
