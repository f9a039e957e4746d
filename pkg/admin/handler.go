// Package admin provides REST API endpoints for operating live pagination
// sessions.
package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/txn2/plotwatch/pkg/pagination"
)

// SessionManager is the part of the pagination manager the admin API uses.
type SessionManager interface {
	List() []*pagination.Session
	Get(id string) (*pagination.Session, bool)
	Stop(ctx context.Context, id string) error
	Sweep(ctx context.Context) (pagination.SweepReport, error)
	Len() int
	Retention() time.Duration
}

// Deps holds the dependencies of the admin API.
type Deps struct {
	Sessions SessionManager
	// Now defaults to time.Now.
	Now func() time.Time
	// Started is reported as the process start time.
	Started time.Time
}

// Handler provides admin REST API endpoints.
type Handler struct {
	mux        *http.ServeMux
	deps       Deps
	authMiddle func(http.Handler) http.Handler
}

// NewHandler creates a new admin API handler. A nil authMiddle leaves the
// API unauthenticated.
func NewHandler(deps Deps, authMiddle func(http.Handler) http.Handler) *Handler {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Started.IsZero() {
		deps.Started = deps.Now()
	}
	h := &Handler{
		mux:        http.NewServeMux(),
		deps:       deps,
		authMiddle: authMiddle,
	}
	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.authMiddle != nil {
		h.authMiddle(h.mux).ServeHTTP(w, r)
		return
	}
	h.mux.ServeHTTP(w, r)
}

// registerRoutes registers all admin API routes.
func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /api/v1/admin/system/info", h.getSystemInfo)
	if h.deps.Sessions != nil {
		h.mux.HandleFunc("GET /api/v1/admin/sessions", h.listSessions)
		h.mux.HandleFunc("GET /api/v1/admin/sessions/{id}", h.getSession)
		h.mux.HandleFunc("DELETE /api/v1/admin/sessions/{id}", h.deleteSession)
		h.mux.HandleFunc("POST /api/v1/admin/sweep", h.sweep)
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
