package pagination

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/txn2/plotwatch/pkg/housing"
	"github.com/txn2/plotwatch/pkg/interaction"
	"github.com/txn2/plotwatch/pkg/listing"
	"github.com/txn2/plotwatch/pkg/render"
)

const (
	testOwner   = "owner-1"
	testChannel = "channel-1"
	testWorldID = 73
	testWait    = 2 * time.Second
)

var errFetch = errors.New("upstream unavailable")

// logBuffer collects log output written from any goroutine.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// captureLogs routes the default logger to a buffer for the test, keeping
// records at level and above.
func captureLogs(t *testing.T, level slog.Level) *logBuffer {
	t.Helper()
	buf := &logBuffer{}
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: level})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return buf
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// worldOf builds a world with n FCFS plots in Mist.
func worldOf(n int) *housing.WorldDetail {
	plots := make([]housing.Plot, n)
	for i := range plots {
		plots[i] = housing.Plot{WardNumber: i / 60, PlotNumber: i % 60, PurchaseSystem: housing.PurchaseIndividual}
	}
	return &housing.WorldDetail{
		ID:        testWorldID,
		Name:      "Adamantoise",
		Districts: []housing.DistrictDetail{{ID: housing.DistrictMist, Name: "Mist", OpenPlots: plots}},
	}
}

type fakeSource struct {
	mu    sync.Mutex
	world *housing.WorldDetail
	err   error
	calls int
	// gate, when set, holds every fetch until it is closed.
	gate chan struct{}
}

func (f *fakeSource) FetchWorldDetail(ctx context.Context, _ int) (*housing.WorldDetail, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.world.Clone(), nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeSource) hold() chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
	return f.gate
}

func (f *fakeSource) set(w *housing.WorldDetail, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.world, f.err = w, err
}

type fakeEditor struct {
	mu       sync.Mutex
	checkErr map[string]error
	editErr  map[string]error
	expired  []MessageRef
}

func newFakeEditor() *fakeEditor {
	return &fakeEditor{checkErr: map[string]error{}, editErr: map[string]error{}}
}

func (f *fakeEditor) CheckMessage(_ context.Context, ref MessageRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checkErr[ref.MessageID]
}

func (f *fakeEditor) ExpireMessage(_ context.Context, ref MessageRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.editErr[ref.MessageID]; err != nil {
		return err
	}
	f.expired = append(f.expired, ref)
	return nil
}

func (f *fakeEditor) expiredIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.expired))
	for _, ref := range f.expired {
		ids = append(ids, ref.MessageID)
	}
	return ids
}

type fakeReplier struct {
	messageID string
	err       error
	delivered []render.Message
}

func (f *fakeReplier) Deliver(_ context.Context, msg render.Message) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.delivered = append(f.delivered, msg)
	return f.messageID, nil
}

type fakeResponder struct {
	mu         sync.Mutex
	acks       int
	edits      []render.Message
	ephemerals []string
	updateErr  error
}

func (f *fakeResponder) Acknowledge(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acks++
	return nil
}

func (f *fakeResponder) EditResponse(_ context.Context, msg render.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.edits = append(f.edits, msg)
	return nil
}

func (f *fakeResponder) Ephemeral(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ephemerals = append(f.ephemerals, text)
	return nil
}

func (f *fakeResponder) snapshot() (acks, edits int, ephemerals []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.acks, len(f.edits), append([]string(nil), f.ephemerals...)
}

func (f *fakeResponder) lastEdit() render.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.edits) == 0 {
		return render.Message{}
	}
	return f.edits[len(f.edits)-1]
}

type managerFixture struct {
	m      *Manager
	clock  *testClock
	source *fakeSource
	editor *fakeEditor
	store  *MemoryRowStore
	hub    *interaction.Hub
	ids    int
}

func newFixture(t *testing.T, world *housing.WorldDetail) *managerFixture {
	t.Helper()
	f := &managerFixture{
		clock:  newTestClock(),
		source: &fakeSource{world: world},
		editor: newFakeEditor(),
		store:  NewMemoryRowStore(),
		hub:    interaction.NewHub(0),
	}
	m, err := NewManager(Config{
		PageSize: render.DefaultPageSize,
		Now:      f.clock.Now,
		NewID: func() (string, error) {
			f.ids++
			return fmt.Sprintf("sess-%d", f.ids), nil
		},
	}, Deps{
		Source:     f.source,
		Renderer:   render.NewRenderer(render.Config{Now: f.clock.Now}),
		Editor:     f.editor,
		Store:      f.store,
		Subscriber: f.hub,
	})
	require.NoError(t, err)
	f.m = m
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), testWait)
		defer cancel()
		_ = f.hub.Close(ctx)
		_ = m.Close()
	})
	return f
}

func (f *managerFixture) create(t *testing.T, messageID string) *Session {
	t.Helper()
	return f.createFiltered(t, messageID, listing.FilterSpec{})
}

func (f *managerFixture) createFiltered(t *testing.T, messageID string, filters listing.FilterSpec) *Session {
	t.Helper()
	sess, err := f.m.Create(context.Background(), Invocation{
		UserID:    testOwner,
		ChannelID: testChannel,
		WorldID:   testWorldID,
		Filters:   filters,
		Reply:     &fakeReplier{messageID: messageID},
	})
	require.NoError(t, err)
	return sess
}

func (f *managerFixture) click(sessID string, a render.Action, viewPage int, resp *fakeResponder) {
	s := f.m.live.Get(sessID)
	msgID := ""
	if s != nil {
		msgID = s.MessageID
	}
	f.m.Router().Handle(context.Background(), sessID, interaction.Click{
		Action:    a,
		ViewPage:  viewPage,
		UserID:    testOwner,
		ChannelID: testChannel,
		MessageID: msgID,
		Responder: resp,
	})
}

func (f *managerFixture) storedRow(t *testing.T, id string) *Row {
	t.Helper()
	row, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	return row
}
