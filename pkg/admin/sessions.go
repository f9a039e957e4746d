package admin

import (
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/txn2/plotwatch/pkg/listing"
	"github.com/txn2/plotwatch/pkg/pagination"
)

// sessionSummary describes a live session without its world snapshot.
type sessionSummary struct {
	ID            string             `json:"id"`
	OwnerID       string             `json:"owner_id"`
	ChannelID     string             `json:"channel_id"`
	MessageID     string             `json:"message_id"`
	GuildID       string             `json:"guild_id,omitempty"`
	WorldID       int                `json:"world_id"`
	WorldName     string             `json:"world_name,omitempty"`
	Filters       listing.FilterSpec `json:"filters"`
	CurrentPage   int                `json:"current_page"`
	TotalPages    int                `json:"total_pages"`
	CreatedAt     time.Time          `json:"created_at"`
	LastRefreshed time.Time          `json:"last_refreshed"`
	ExpiresAt     time.Time          `json:"expires_at"`
}

// sessionListResponse wraps a list of sessions.
type sessionListResponse struct {
	Sessions []sessionSummary `json:"sessions"`
	Total    int              `json:"total"`
}

func (h *Handler) summarize(s *pagination.Session) sessionSummary {
	sum := sessionSummary{
		ID:            s.ID,
		OwnerID:       s.OwnerID,
		ChannelID:     s.ChannelID,
		MessageID:     s.MessageID,
		GuildID:       s.GuildID,
		WorldID:       s.WorldID,
		Filters:       s.Filters,
		CurrentPage:   s.CurrentPage,
		TotalPages:    s.TotalPages,
		CreatedAt:     s.CreatedAt,
		LastRefreshed: s.LastRefreshed,
		ExpiresAt:     s.ExpiresAt(h.deps.Sessions.Retention()),
	}
	if s.World != nil {
		sum.WorldName = s.World.Name
	}
	return sum
}

// listSessions handles GET /api/v1/admin/sessions.
func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.deps.Sessions.List()
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})

	owner := r.URL.Query().Get("owner_id")
	resp := sessionListResponse{Sessions: make([]sessionSummary, 0, len(sessions))}
	for _, s := range sessions {
		if owner != "" && s.OwnerID != owner {
			continue
		}
		resp.Sessions = append(resp.Sessions, h.summarize(s))
	}
	resp.Total = len(resp.Sessions)
	writeJSON(w, http.StatusOK, resp)
}

// getSession handles GET /api/v1/admin/sessions/{id}.
func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.deps.Sessions.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, h.summarize(s))
}

// deleteSession handles DELETE /api/v1/admin/sessions/{id}. The session is
// ended as if it had expired.
func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := h.deps.Sessions.Stop(r.Context(), id)
	switch {
	case errors.Is(err, pagination.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case err != nil:
		slog.Error("admin: stopping session failed", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to stop session")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// sweep handles POST /api/v1/admin/sweep.
func (h *Handler) sweep(w http.ResponseWriter, r *http.Request) {
	report, err := h.deps.Sessions.Sweep(r.Context())
	if err != nil {
		slog.Error("admin: sweep failed", "error", err)
		writeError(w, http.StatusInternalServerError, "sweep failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}
