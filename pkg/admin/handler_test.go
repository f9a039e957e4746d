package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/plotwatch/pkg/housing"
	"github.com/txn2/plotwatch/pkg/pagination"
)

const (
	adminTestSession = "sess-1"
	adminTestOwner   = "owner-1"
)

var adminTestNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type mockSessions struct {
	sessions  []*pagination.Session
	stopErr   error
	stopped   []string
	sweepErr  error
	sweepRept pagination.SweepReport
}

func (m *mockSessions) List() []*pagination.Session { return m.sessions }

func (m *mockSessions) Get(id string) (*pagination.Session, bool) {
	for _, s := range m.sessions {
		if s.ID == id {
			return s, true
		}
	}
	return nil, false
}

func (m *mockSessions) Stop(_ context.Context, id string) error {
	m.stopped = append(m.stopped, id)
	return m.stopErr
}

func (m *mockSessions) Sweep(context.Context) (pagination.SweepReport, error) {
	return m.sweepRept, m.sweepErr
}

func (m *mockSessions) Len() int { return len(m.sessions) }

func (*mockSessions) Retention() time.Duration { return pagination.DefaultRetention }

func newMockSessions() *mockSessions {
	return &mockSessions{sessions: []*pagination.Session{
		{
			ID: "sess-2", OwnerID: "owner-2", WorldID: 79,
			CreatedAt: adminTestNow.Add(-time.Hour),
		},
		{
			ID: adminTestSession, OwnerID: adminTestOwner, WorldID: 73, TotalPages: 3, CurrentPage: 1,
			World:     &housing.WorldDetail{ID: 73, Name: "Adamantoise"},
			CreatedAt: adminTestNow.Add(-2 * time.Hour),
		},
	}}
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, http.NoBody))
	return rec
}

func newTestHandler(m *mockSessions) *Handler {
	return NewHandler(Deps{Sessions: m, Now: func() time.Time { return adminTestNow }}, nil)
}

func TestNewHandler(t *testing.T) {
	h := NewHandler(Deps{}, nil)
	require.NotNil(t, h)
	assert.NotNil(t, h.mux)
	assert.Nil(t, h.authMiddle)

	rec := serve(h, http.MethodGet, "/api/v1/admin/sessions")
	assert.Equal(t, http.StatusNotFound, rec.Code, "session routes need a session manager")
}

func TestHandler_AuthMiddleware(t *testing.T) {
	called := false
	deny := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			called = true
			writeError(w, http.StatusUnauthorized, "authentication required")
		})
	}
	h := NewHandler(Deps{Sessions: newMockSessions()}, deny)

	rec := serve(h, http.MethodGet, "/api/v1/admin/sessions")
	assert.True(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListSessions(t *testing.T) {
	h := newTestHandler(newMockSessions())

	rec := serve(h, http.MethodGet, "/api/v1/admin/sessions")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp sessionListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, 2, resp.Total)
	assert.Equal(t, adminTestSession, resp.Sessions[0].ID, "oldest first")
	assert.Equal(t, "Adamantoise", resp.Sessions[0].WorldName)
	assert.Equal(t, adminTestNow.Add(-2*time.Hour).Add(pagination.DefaultRetention), resp.Sessions[0].ExpiresAt)

	rec = serve(h, http.MethodGet, "/api/v1/admin/sessions?owner_id="+adminTestOwner)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Total)
}

func TestGetSession(t *testing.T) {
	h := newTestHandler(newMockSessions())

	rec := serve(h, http.MethodGet, "/api/v1/admin/sessions/"+adminTestSession)
	require.Equal(t, http.StatusOK, rec.Code)
	var sum sessionSummary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&sum))
	assert.Equal(t, 1, sum.CurrentPage)
	assert.Equal(t, 3, sum.TotalPages)

	rec = serve(h, http.MethodGet, "/api/v1/admin/sessions/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteSession(t *testing.T) {
	t.Run("stops session", func(t *testing.T) {
		m := newMockSessions()
		rec := serve(newTestHandler(m), http.MethodDelete, "/api/v1/admin/sessions/"+adminTestSession)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, []string{adminTestSession}, m.stopped)
	})

	t.Run("not found", func(t *testing.T) {
		m := newMockSessions()
		m.stopErr = pagination.ErrSessionNotFound
		rec := serve(newTestHandler(m), http.MethodDelete, "/api/v1/admin/sessions/missing")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("store failure", func(t *testing.T) {
		m := newMockSessions()
		m.stopErr = errors.New("db down")
		rec := serve(newTestHandler(m), http.MethodDelete, "/api/v1/admin/sessions/x")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "db down")
	})
}

func TestSweep(t *testing.T) {
	m := newMockSessions()
	m.sweepRept = pagination.SweepReport{RowsDeleted: 4, LiveExpired: 1}
	rec := serve(newTestHandler(m), http.MethodPost, "/api/v1/admin/sweep")
	require.Equal(t, http.StatusOK, rec.Code)
	var report pagination.SweepReport
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.Equal(t, int64(4), report.RowsDeleted)
	assert.Equal(t, 1, report.LiveExpired)

	m.sweepErr = errors.New("boom")
	rec = serve(newTestHandler(m), http.MethodPost, "/api/v1/admin/sweep")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = serve(newTestHandler(m), http.MethodGet, "/api/v1/admin/sweep")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSystemInfo(t *testing.T) {
	m := newMockSessions()
	h := NewHandler(Deps{
		Sessions: m,
		Now:      func() time.Time { return adminTestNow },
		Started:  adminTestNow.Add(-90 * time.Second),
	}, nil)

	rec := serve(h, http.MethodGet, "/api/v1/admin/system/info")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp systemInfoResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "plotwatch", resp.Name)
	assert.Equal(t, "dev", resp.Version)
	assert.Equal(t, "1m30s", resp.Uptime)
	assert.Equal(t, 2, resp.LiveSessions)
	assert.Equal(t, "168h0m0s", resp.Retention)
}
