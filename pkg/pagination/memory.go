package pagination

import (
	"context"
	"sync"
	"sync/atomic"
)

// entry guards one live session. lock is a one-slot semaphore so that
// acquisition can honour context cancellation. view holds a copy of the
// session as of the last completed operation and is nil once removed.
type entry struct {
	lock    chan struct{}
	sess    *Session
	removed bool
	view    atomic.Pointer[Session]
}

func newEntry(sess *Session) *entry {
	e := &entry{lock: make(chan struct{}, 1), sess: sess}
	e.view.Store(sess.Clone())
	return e
}

func (e *entry) acquire(ctx context.Context) error {
	select {
	case e.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *entry) release() { <-e.lock }

// MemoryStore is the process-wide table of live sessions. Each session has
// its own lock; Do runs an operation while holding it.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*entry)}
}

// Put inserts a copy of sess, replacing any session with the same id.
func (s *MemoryStore) Put(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[sess.ID] = newEntry(sess.Clone())
}

// Get returns a copy of the session as of its last completed operation, or
// nil if it is not live.
func (s *MemoryStore) Get(id string) *Session {
	e := s.lookup(id)
	if e == nil {
		return nil
	}
	return e.view.Load().Clone()
}

// Do runs fn on the live session while holding its lock. fn may mutate the
// session in place. Do returns an error matching ErrSessionNotFound if the
// session is not live or is removed while waiting for the lock.
func (s *MemoryStore) Do(ctx context.Context, id string, fn func(*Session) error) error {
	e := s.lookup(id)
	if e == nil {
		return &StaleSessionError{SessionID: id}
	}
	if err := e.acquire(ctx); err != nil {
		return err
	}
	defer e.release()
	if e.removed {
		return &StaleSessionError{SessionID: id}
	}
	defer func() { e.view.Store(e.sess.Clone()) }()
	return fn(e.sess)
}

// Delete removes the session once no operation holds its lock and returns
// the removed session. It returns nil if the session was not live.
func (s *MemoryStore) Delete(ctx context.Context, id string) (*Session, error) {
	e := s.lookup(id)
	if e == nil {
		return nil, nil //nolint:nilnil // absent session is not an error
	}
	if err := e.acquire(ctx); err != nil {
		return nil, err
	}
	defer e.release()
	if e.removed {
		return nil, nil //nolint:nilnil // already removed by a concurrent Delete
	}
	e.removed = true
	e.view.Store(nil)

	s.mu.Lock()
	if s.entries[id] == e {
		delete(s.entries, id)
	}
	s.mu.Unlock()
	return e.sess.Clone(), nil
}

// List returns copies of every live session.
func (s *MemoryStore) List() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Session, 0, len(s.entries))
	for _, e := range s.entries {
		if sess := e.view.Load(); sess != nil {
			out = append(out, sess.Clone())
		}
	}
	return out
}

// Len returns the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) lookup(id string) *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[id]
}
