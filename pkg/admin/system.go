package admin

import (
	"net/http"
	"time"

	"github.com/txn2/plotwatch/internal/server"
)

// systemInfoResponse is returned by GET /system/info.
type systemInfoResponse struct {
	Name         string    `json:"name"`
	Version      string    `json:"version"`
	Commit       string    `json:"commit"`
	BuildDate    string    `json:"build_date"`
	Started      time.Time `json:"started"`
	Uptime       string    `json:"uptime"`
	LiveSessions int       `json:"live_sessions"`
	Retention    string    `json:"retention,omitempty"`
}

// getSystemInfo handles GET /api/v1/admin/system/info.
func (h *Handler) getSystemInfo(w http.ResponseWriter, _ *http.Request) {
	resp := systemInfoResponse{
		Name:      server.Name,
		Version:   server.Version,
		Commit:    server.Commit,
		BuildDate: server.Date,
		Started:   h.deps.Started,
		Uptime:    h.deps.Now().Sub(h.deps.Started).Truncate(time.Second).String(),
	}
	if h.deps.Sessions != nil {
		resp.LiveSessions = h.deps.Sessions.Len()
		resp.Retention = h.deps.Sessions.Retention().String()
	}
	writeJSON(w, http.StatusOK, resp)
}
