package pagination

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRowStore is a DurableStore that keeps rows in memory. Rows do not
// survive a restart; it backs the "memory" database driver and tests.
type MemoryRowStore struct {
	mu   sync.RWMutex
	rows map[string]Row
}

// NewMemoryRowStore creates an empty row store.
func NewMemoryRowStore() *MemoryRowStore {
	return &MemoryRowStore{rows: make(map[string]Row)}
}

// Put inserts or replaces a row.
func (s *MemoryRowStore) Put(_ context.Context, row Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[row.SessionID] = row
	return nil
}

// Get returns the row, or nil, nil if absent.
func (s *MemoryRowStore) Get(_ context.Context, sessionID string) (*Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[sessionID]
	if !ok {
		return nil, nil //nolint:nilnil // DurableStore specifies nil,nil for not-found
	}
	return &row, nil
}

// Delete removes a row.
func (s *MemoryRowStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, sessionID)
	return nil
}

// List returns every row ordered by creation time.
func (s *MemoryRowStore) List(_ context.Context) ([]Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Row, 0, len(s.rows))
	for _, row := range s.rows {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out, nil
}

// DeleteOlderThan removes rows created before cutoff.
func (s *MemoryRowStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	limit := ToMillis(cutoff)
	var n int64
	for id, row := range s.rows {
		if row.CreatedAt < limit {
			delete(s.rows, id)
			n++
		}
	}
	return n, nil
}

// Verify interface compliance.
var _ DurableStore = (*MemoryRowStore)(nil)
