package pagination

import (
	"sync"

	"github.com/txn2/plotwatch/pkg/interaction"
)

// Registry maps session ids to their click listeners.
type Registry struct {
	mu      sync.Mutex
	handles map[string]*interaction.Handle
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]*interaction.Handle)}
}

// Register stores the listener for a session, replacing any previous one.
func (r *Registry) Register(id string, h *interaction.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[id] = h
}

// Get returns the listener for a session.
func (r *Registry) Get(id string) (*interaction.Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[id]
	return h, ok
}

// Remove forgets a session's listener without stopping it and returns it.
func (r *Registry) Remove(id string) *interaction.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.handles[id]
	delete(r.handles, id)
	return h
}

// Cancel stops a session's listener. The listener's end callback is
// responsible for cleanup. Cancel reports whether a listener was found.
func (r *Registry) Cancel(id string) bool {
	h, ok := r.Get(id)
	if !ok {
		return false
	}
	h.Stop()
	return true
}

// Len returns the number of registered listeners.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}
