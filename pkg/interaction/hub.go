// Package interaction routes control clicks to per-message subscriptions.
//
// A Hub owns one worker goroutine per subscription. Clicks for a
// subscription are queued and handled one at a time in arrival order, and
// the subscription's end callback runs on the same worker after the last
// click has been handled.
package interaction

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/txn2/plotwatch/pkg/render"
)

const (
	// DefaultQueueSize is the number of clicks buffered per subscription.
	DefaultQueueSize = 8

	slogKeyError = "error"
)

// Responder answers a single click on the transport it arrived on.
type Responder interface {
	// Acknowledge accepts the click without changing the message. It may
	// be called more than once; only the first call responds.
	Acknowledge(ctx context.Context) error
	// EditResponse edits the clicked message after Acknowledge.
	EditResponse(ctx context.Context, msg render.Message) error
	// Ephemeral sends a notice visible only to the clicking user.
	Ephemeral(ctx context.Context, text string) error
}

// Click is a control activation on a message.
type Click struct {
	Action render.Action
	// ViewPage is the page the clicked control was rendered for, or
	// render.UnknownPage.
	ViewPage  int
	UserID    string
	ChannelID string
	MessageID string
	Responder Responder
}

// EndReason says why a subscription ended.
type EndReason int

// End reasons.
const (
	EndTimeout EndReason = iota + 1
	EndStopped
	EndShutdown
)

// String returns the reason name used in logs.
func (r EndReason) String() string {
	switch r {
	case EndTimeout:
		return "timeout"
	case EndStopped:
		return "stopped"
	case EndShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Subscription describes a listener on one message.
type Subscription struct {
	MessageID string
	// Match filters clicks; a nil Match accepts every click on the message.
	Match   func(Click) bool
	OnClick func(ctx context.Context, c Click)
	OnEnd   func(ctx context.Context, reason EndReason)
	// Timeout ends the subscription after the given duration; zero disables it.
	Timeout time.Duration
}

// DispatchResult reports what happened to a dispatched click.
type DispatchResult int

// Dispatch results.
const (
	Delivered DispatchResult = iota
	Busy
	NotOwner
	Unsubscribed
)

// Hub holds the live subscriptions keyed by message id.
type Hub struct {
	mu        sync.Mutex
	subs      map[string]*Handle
	queueSize int
	closed    bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHub creates a hub. A queueSize below one uses DefaultQueueSize.
func NewHub(queueSize int) *Hub {
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		subs:      make(map[string]*Handle),
		queueSize: queueSize,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Subscribe starts a listener for the subscription's message. An existing
// subscription on the same message is stopped. Subscribing after Close
// returns a handle that has already ended with EndShutdown.
func (h *Hub) Subscribe(sub Subscription) *Handle {
	handle := &Handle{
		hub:   h,
		sub:   sub,
		queue: make(chan Click, h.queueSize),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}

	h.mu.Lock()
	closed := h.closed
	prev := h.subs[sub.MessageID]
	if !closed {
		h.subs[sub.MessageID] = handle
	}
	h.wg.Add(1)
	h.mu.Unlock()

	if prev != nil {
		prev.end(EndStopped)
	}
	if closed {
		handle.end(EndShutdown)
	}
	go handle.run(h.ctx)
	return handle
}

// Dispatch routes a click to the subscription on its message.
func (h *Hub) Dispatch(c Click) DispatchResult {
	h.mu.Lock()
	handle := h.subs[c.MessageID]
	h.mu.Unlock()

	if handle == nil {
		return Unsubscribed
	}
	if handle.sub.Match != nil && !handle.sub.Match(c) {
		return NotOwner
	}
	return handle.enqueue(c)
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close ends every subscription with EndShutdown and waits for the workers to
// exit or ctx to be done.
func (h *Hub) Close(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	handles := make([]*Handle, 0, len(h.subs))
	for _, handle := range h.subs {
		handles = append(handles, handle)
	}
	h.mu.Unlock()

	for _, handle := range handles {
		handle.end(EndShutdown)
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	defer h.cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) remove(messageID string, handle *Handle) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[messageID] == handle {
		delete(h.subs, messageID)
	}
}

// Handle is a cancellable subscription.
type Handle struct {
	hub   *Hub
	sub   Subscription
	queue chan Click

	mu     sync.Mutex
	ended  bool
	reason EndReason
	stop   chan struct{}
	done   chan struct{}
}

// Stop ends the subscription with EndStopped. It does not wait; use Done to
// wait for the end callback to finish. Stop is safe to call from a click
// handler and more than once.
func (hd *Handle) Stop() { hd.end(EndStopped) }

// Done is closed after the end callback has returned.
func (hd *Handle) Done() <-chan struct{} { return hd.done }

// MessageID returns the subscribed message id.
func (hd *Handle) MessageID() string { return hd.sub.MessageID }

func (hd *Handle) end(reason EndReason) {
	hd.mu.Lock()
	defer hd.mu.Unlock()
	if hd.ended {
		return
	}
	hd.ended = true
	hd.reason = reason
	close(hd.stop)
}

func (hd *Handle) enqueue(c Click) DispatchResult {
	hd.mu.Lock()
	defer hd.mu.Unlock()
	if hd.ended {
		return Unsubscribed
	}
	select {
	case hd.queue <- c:
		return Delivered
	default:
		return Busy
	}
}

func (hd *Handle) run(ctx context.Context) {
	defer hd.hub.wg.Done()
	defer close(hd.done)

	var expired <-chan time.Time
	if hd.sub.Timeout > 0 {
		timer := time.NewTimer(hd.sub.Timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		select {
		case <-hd.stop:
			hd.finish(ctx)
			return
		case <-expired:
			hd.end(EndTimeout)
		case c := <-hd.queue:
			if hd.isEnded() {
				hd.reject(ctx, c)
				continue
			}
			if hd.sub.OnClick != nil {
				hd.sub.OnClick(ctx, c)
			}
		}
	}
}

func (hd *Handle) isEnded() bool {
	hd.mu.Lock()
	defer hd.mu.Unlock()
	return hd.ended
}

// finish drains clicks that arrived before the end and runs the end callback.
func (hd *Handle) finish(ctx context.Context) {
	hd.hub.remove(hd.sub.MessageID, hd)
	for drained := false; !drained; {
		select {
		case c := <-hd.queue:
			hd.reject(ctx, c)
		default:
			drained = true
		}
	}

	hd.mu.Lock()
	reason := hd.reason
	hd.mu.Unlock()
	if hd.sub.OnEnd != nil {
		hd.sub.OnEnd(ctx, reason)
	}
}

func (hd *Handle) reject(ctx context.Context, c Click) {
	if c.Responder == nil {
		return
	}
	if err := c.Responder.Ephemeral(ctx, render.StaleSessionText); err != nil {
		slog.Debug("interaction: expired notice failed", "message_id", c.MessageID, slogKeyError, err)
	}
}
