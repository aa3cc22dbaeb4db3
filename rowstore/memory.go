package rowstore

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store implementation for testing and for
// embedding the cache without a real sheet backend.
// Thread-safe for concurrent reads and writes.
type MemoryStore struct {
	mu   sync.RWMutex
	rows []Row
}

// NewMemoryStore creates a new in-memory row store seeded with the given rows.
func NewMemoryStore(rows ...Row) *MemoryStore {
	s := &MemoryStore{rows: make([]Row, 0, len(rows))}
	for _, r := range rows {
		s.rows = append(s.rows, r.Clone())
	}
	return s
}

// ReadAll returns every row in insertion order.
func (s *MemoryStore) ReadAll(_ context.Context) ([]Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Return copies to prevent external mutation
	out := make([]Row, len(s.rows))
	for i, r := range s.rows {
		out[i] = r.Clone()
	}
	return out, nil
}

// AppendRow appends one row and returns its position.
func (s *MemoryStore) AppendRow(_ context.Context, row Row) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rows = append(s.rows, row.Clone())
	return len(s.rows) - 1, nil
}

// WriteCell overwrites a single cell of an existing row.
func (s *MemoryStore) WriteCell(_ context.Context, pos, col int, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pos < 0 || pos >= len(s.rows) {
		return ErrPositionOutOfRange
	}
	if col < 0 || col >= len(s.rows[pos]) {
		return ErrColumnOutOfRange
	}
	s.rows[pos][col] = value
	return nil
}

// Len returns the number of rows currently held.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}
