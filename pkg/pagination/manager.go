package pagination

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/txn2/plotwatch/pkg/housing"
	"github.com/txn2/plotwatch/pkg/interaction"
	"github.com/txn2/plotwatch/pkg/listing"
	"github.com/txn2/plotwatch/pkg/paging"
	"github.com/txn2/plotwatch/pkg/render"
)

const (
	// DefaultRetention is how long a session stays browsable after creation.
	DefaultRetention = 7 * 24 * time.Hour

	// DefaultSweepInterval is how often expired rows are swept.
	DefaultSweepInterval = 24 * time.Hour

	tracerName   = "github.com/txn2/plotwatch/pkg/pagination"
	slogKeyError = "error"
	slogKeyID    = "session_id"
)

// DatasetSource fetches world snapshots.
type DatasetSource interface {
	FetchWorldDetail(ctx context.Context, worldID int) (*housing.WorldDetail, error)
}

// Renderer builds the message for a session view.
type Renderer interface {
	Render(v render.View) render.Message
}

// MessageEditor reaches previously sent messages. Implementations wrap
// ErrMessageNotFound or ErrForbidden when a message is unreachable.
type MessageEditor interface {
	// CheckMessage verifies that a message still exists.
	CheckMessage(ctx context.Context, ref MessageRef) error
	// ExpireMessage appends the expiry notice to the message's footer and
	// removes its controls.
	ExpireMessage(ctx context.Context, ref MessageRef) error
}

// Subscriber attaches click listeners to messages.
type Subscriber interface {
	Subscribe(sub interaction.Subscription) *interaction.Handle
}

// Replier delivers the first page of a new session and returns the id of the
// delivered message.
type Replier interface {
	Deliver(ctx context.Context, msg render.Message) (string, error)
}

// Invocation is a command request for a new session.
type Invocation struct {
	UserID    string
	ChannelID string
	GuildID   string
	WorldID   int
	Filters   listing.FilterSpec
	Reply     Replier
}

// Config configures a Manager.
type Config struct {
	PageSize  int
	Retention time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
	// NewID defaults to UUIDv7.
	NewID func() (string, error)
}

// Deps are the collaborators of a Manager.
type Deps struct {
	Source     DatasetSource
	Renderer   Renderer
	Editor     MessageEditor
	Store      DurableStore
	Subscriber Subscriber
}

// RestoreReport summarises a startup restore.
type RestoreReport struct {
	Restored int `json:"restored"`
	Expired  int `json:"expired"`
	Dropped  int `json:"dropped"`
}

// SweepReport summarises one sweep.
type SweepReport struct {
	RowsDeleted  int64 `json:"rows_deleted"`
	LiveExpired  int   `json:"live_expired"`
	SweptAtMilli int64 `json:"swept_at"`
}

// Manager owns the lifecycle of every pagination session.
type Manager struct {
	cfg        Config
	source     DatasetSource
	renderer   Renderer
	editor     MessageEditor
	store      DurableStore
	subscriber Subscriber

	live     *MemoryStore
	registry *Registry
	router   *Router
	tracer   trace.Tracer

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a manager. Every dependency is required.
func NewManager(cfg Config, deps Deps) (*Manager, error) {
	switch {
	case deps.Source == nil:
		return nil, errors.New("pagination: dataset source is required")
	case deps.Renderer == nil:
		return nil, errors.New("pagination: renderer is required")
	case deps.Editor == nil:
		return nil, errors.New("pagination: message editor is required")
	case deps.Store == nil:
		return nil, errors.New("pagination: durable store is required")
	case deps.Subscriber == nil:
		return nil, errors.New("pagination: subscriber is required")
	}
	if cfg.PageSize < 1 {
		cfg.PageSize = render.DefaultPageSize
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = newSessionID
	}

	m := &Manager{
		cfg:        cfg,
		source:     deps.Source,
		renderer:   deps.Renderer,
		editor:     deps.Editor,
		store:      deps.Store,
		subscriber: deps.Subscriber,
		live:       NewMemoryStore(),
		registry:   NewRegistry(),
		tracer:     otel.Tracer(tracerName),
	}
	m.router = &Router{m: m}
	return m, nil
}

func newSessionID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generating session id: %w", err)
	}
	return id.String(), nil
}

// Router returns the click router bound to this manager.
func (m *Manager) Router() *Router { return m.router }

// Retention returns the configured browsing window.
func (m *Manager) Retention() time.Duration { return m.cfg.Retention }

// Create starts a session for an invocation: it fetches the world, renders
// the first page, delivers it, and persists and listens on the result.
func (m *Manager) Create(ctx context.Context, inv Invocation) (*Session, error) {
	ctx, span := m.tracer.Start(ctx, "pagination.create")
	defer span.End()

	if err := inv.Filters.Validate(); err != nil {
		return nil, err
	}
	if inv.Reply == nil {
		return nil, errors.New("invocation has no reply channel")
	}

	world, err := m.source.FetchWorldDetail(ctx, inv.WorldID)
	if err != nil {
		span.RecordError(err)
		return nil, &TransientFetchError{WorldID: inv.WorldID, Err: err}
	}

	id, err := m.cfg.NewID()
	if err != nil {
		return nil, err
	}
	now := m.cfg.Now()
	sess := &Session{
		ID:            id,
		OwnerID:       inv.UserID,
		ChannelID:     inv.ChannelID,
		GuildID:       inv.GuildID,
		WorldID:       inv.WorldID,
		Filters:       inv.Filters,
		CurrentPage:   0,
		TotalPages:    m.totalPages(world, inv.Filters, now),
		World:         world,
		LastRefreshed: now,
		CreatedAt:     now,
	}

	msgID, err := inv.Reply.Deliver(ctx, m.renderer.Render(sess.View()))
	if err != nil {
		return nil, fmt.Errorf("delivering first page: %w", err)
	}
	sess.MessageID = msgID

	m.live.Put(sess)
	m.persist(ctx, sess, "saving")
	if err := m.attach(ctx, sess.ID, m.cfg.Retention); err != nil {
		slog.Warn("pagination: attaching listener failed", slogKeyID, sess.ID, slogKeyError, err)
	}
	slog.Debug("pagination: session created",
		slogKeyID, sess.ID, "world_id", sess.WorldID, "total_pages", sess.TotalPages)
	return sess.Clone(), nil
}

// attach subscribes to clicks on the session's message. It runs under the
// session lock so that an End racing with creation either prevents the
// subscription or sees the registered handle.
func (m *Manager) attach(ctx context.Context, id string, timeout time.Duration) error {
	return m.live.Do(ctx, id, func(s *Session) error {
		owner, messageID := s.OwnerID, s.MessageID
		h := m.subscriber.Subscribe(interaction.Subscription{
			MessageID: messageID,
			Match: func(c interaction.Click) bool {
				return c.UserID == owner && c.MessageID == messageID
			},
			OnClick: func(ctx context.Context, c interaction.Click) {
				m.router.Handle(ctx, id, c)
			},
			OnEnd: func(ctx context.Context, reason interaction.EndReason) {
				m.onListenerEnd(ctx, id, reason)
			},
			Timeout: timeout,
		})
		m.registry.Register(id, h)
		return nil
	})
}

func (m *Manager) onListenerEnd(ctx context.Context, id string, reason interaction.EndReason) {
	if reason == interaction.EndShutdown {
		if _, err := m.forget(ctx, id); err != nil {
			slog.Debug("pagination: forgetting session failed", slogKeyID, id, slogKeyError, err)
		}
		return
	}
	if err := m.End(ctx, id, reason); err != nil {
		slog.Error("pagination: ending session failed", slogKeyID, id, slogKeyError, err)
	}
}

// End removes a session from the live stores and the durable store and marks
// its message as expired. Ending an unknown session only deletes its row.
func (m *Manager) End(ctx context.Context, id string, reason interaction.EndReason) error {
	sess, err := m.forget(ctx, id)
	if err != nil {
		return fmt.Errorf("removing live session: %w", err)
	}
	if err := m.store.Delete(ctx, id); err != nil {
		slog.Error("pagination: deleting persisted session failed",
			slogKeyID, id, slogKeyError, &PersistenceWriteError{SessionID: id, Op: "deleting", Err: err})
	}
	if sess == nil {
		return nil
	}

	slog.Debug("pagination: session ended", slogKeyID, id, "reason", reason.String())
	err = m.editor.ExpireMessage(ctx, sess.Ref())
	switch OutcomeOf(err) {
	case EditOK:
	case EditForbidden:
		slog.Debug("pagination: no access to expired message", slogKeyID, id, "message_id", sess.MessageID)
	case EditNotFound:
		slog.Warn("pagination: expired message is gone", slogKeyID, id, "message_id", sess.MessageID)
	default:
		slog.Error("pagination: marking message expired failed",
			slogKeyID, id, "message_id", sess.MessageID, slogKeyError, err)
	}
	return nil
}

// forget drops the session from the live store and the registry and stops
// its listener. It returns the removed session, or nil if it was not live.
func (m *Manager) forget(ctx context.Context, id string) (*Session, error) {
	sess, err := m.live.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	if h := m.registry.Remove(id); h != nil {
		h.Stop()
	}
	return sess, nil
}

// Stop ends a session on request. It returns ErrSessionNotFound if the
// session is neither live nor persisted.
func (m *Manager) Stop(ctx context.Context, id string) error {
	if m.live.Get(id) == nil {
		row, err := m.store.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("loading persisted session: %w", err)
		}
		if row == nil {
			return ErrSessionNotFound
		}
	}
	return m.End(ctx, id, interaction.EndStopped)
}

// Get returns a copy of a live session.
func (m *Manager) Get(id string) (*Session, bool) {
	s := m.live.Get(id)
	return s, s != nil
}

// List returns copies of every live session.
func (m *Manager) List() []*Session { return m.live.List() }

// Len returns the number of live sessions.
func (m *Manager) Len() int { return m.live.Len() }

// persist writes the session's row. Failures are logged and never returned.
func (m *Manager) persist(ctx context.Context, s *Session, op string) {
	row, err := NewRow(s)
	if err == nil {
		err = m.store.Put(ctx, row)
	}
	if err != nil {
		slog.Error("pagination: persisting session failed",
			slogKeyID, s.ID, slogKeyError, &PersistenceWriteError{SessionID: s.ID, Op: op, Err: err})
	}
}

// Restore rebuilds live sessions from the durable store after a restart.
// Rows past retention are deleted and their messages marked expired; rows
// that cannot be reconstructed are deleted. No dataset is fetched. Only a
// failure to list rows is returned.
func (m *Manager) Restore(ctx context.Context) (RestoreReport, error) {
	var report RestoreReport
	rows, err := m.store.List(ctx)
	if err != nil {
		return report, fmt.Errorf("listing persisted sessions: %w", err)
	}

	now := m.cfg.Now()
	for _, row := range rows {
		age := now.Sub(FromMillis(row.CreatedAt))
		if age >= m.cfg.Retention {
			report.Expired++
			m.restoreExpired(ctx, row)
			continue
		}
		if err := m.restoreLive(ctx, row, m.cfg.Retention-age); err != nil {
			report.Dropped++
			slog.Warn("pagination: restoring session failed", slogKeyID, row.SessionID, slogKeyError, err)
			if err := m.store.Delete(ctx, row.SessionID); err != nil {
				slog.Warn("pagination: deleting unrestorable session failed", slogKeyID, row.SessionID, slogKeyError, err)
			}
			continue
		}
		report.Restored++
	}

	slog.Info("pagination: restored sessions",
		"restored", report.Restored, "expired", report.Expired, "dropped", report.Dropped)
	return report, nil
}

func (m *Manager) restoreExpired(ctx context.Context, row Row) {
	if err := m.store.Delete(ctx, row.SessionID); err != nil {
		slog.Warn("pagination: deleting expired session failed", slogKeyID, row.SessionID, slogKeyError, err)
	}
	err := m.editor.ExpireMessage(ctx, MessageRef{ChannelID: row.ChannelID, MessageID: row.MessageID})
	if o := OutcomeOf(err); o != EditOK && !o.Unreachable() {
		slog.Warn("pagination: marking expired message failed",
			slogKeyID, row.SessionID, "message_id", row.MessageID, slogKeyError, err)
	}
}

func (m *Manager) restoreLive(ctx context.Context, row Row, remaining time.Duration) error {
	sess, err := row.Session()
	if err != nil {
		return err
	}
	if err := m.editor.CheckMessage(ctx, sess.Ref()); err != nil {
		return fmt.Errorf("checking message %s: %w", sess.MessageID, err)
	}

	sess.TotalPages = m.totalPages(sess.World, sess.Filters, sess.LastRefreshed)
	sess.CurrentPage = paging.Clamp(sess.CurrentPage, sess.TotalPages)
	m.live.Put(sess)
	if err := m.attach(ctx, sess.ID, remaining); err != nil {
		_, _ = m.live.Delete(context.WithoutCancel(ctx), sess.ID)
		return fmt.Errorf("attaching listener: %w", err)
	}
	m.persist(ctx, sess, "updating")
	return nil
}

// Sweep deletes persisted rows past retention and ends live sessions past
// retention.
func (m *Manager) Sweep(ctx context.Context) (SweepReport, error) {
	now := m.cfg.Now()
	cutoff := now.Add(-m.cfg.Retention)
	report := SweepReport{SweptAtMilli: ToMillis(now)}

	for _, s := range m.live.List() {
		if s.CreatedAt.Before(cutoff) {
			if err := m.End(ctx, s.ID, interaction.EndTimeout); err != nil {
				slog.Warn("pagination: ending expired session failed", slogKeyID, s.ID, slogKeyError, err)
				continue
			}
			report.LiveExpired++
		}
	}

	n, err := m.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return report, fmt.Errorf("deleting expired sessions: %w", err)
	}
	report.RowsDeleted = n
	if n > 0 || report.LiveExpired > 0 {
		slog.Info("pagination: swept expired sessions", "rows", n, "live", report.LiveExpired)
	}
	return report, nil
}

// StartSweepRoutine starts a background goroutine that sweeps expired
// sessions every interval. The goroutine is stopped when Close is called.
func (m *Manager) StartSweepRoutine(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := m.Sweep(ctx); err != nil {
					slog.Warn("pagination: sweep failed", slogKeyError, err)
				}
			}
		}
	}()
}

// Close stops the sweep goroutine and waits for it to exit.
// It is safe to call Close even if StartSweepRoutine was never called.
func (m *Manager) Close() error {
	if m.cancel != nil {
		m.cancel()
		<-m.done
	}
	return nil
}

// totalPages counts the pages of a snapshot judged as of at, the time the
// snapshot was fetched.
func (m *Manager) totalPages(world *housing.WorldDetail, filters listing.FilterSpec, at time.Time) int {
	return paging.TotalPages(len(listing.Filter(world, filters, housing.PhaseValidatorAt(at))), m.cfg.PageSize)
}
