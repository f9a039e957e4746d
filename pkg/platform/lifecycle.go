package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Hook is one startup step and its matching shutdown step. Either func may
// be nil.
type Hook struct {
	Name    string
	OnStart func(context.Context) error
	OnStop  func(context.Context) error
}

// Lifecycle starts hooks in registration order and stops them in reverse.
type Lifecycle struct {
	mu      sync.Mutex
	hooks   []Hook
	started int // number of hooks whose OnStart succeeded
	running bool
}

// NewLifecycle creates an empty lifecycle.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{}
}

// Append registers a hook.
func (l *Lifecycle) Append(h Hook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = append(l.hooks, h)
}

// OnStop registers a shutdown-only step.
func (l *Lifecycle) OnStop(name string, fn func(context.Context) error) {
	l.Append(Hook{Name: name, OnStop: fn})
}

// Start runs every OnStart in order. When one fails, the hooks already
// started are stopped in reverse order and the failure is returned.
func (l *Lifecycle) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return errors.New("lifecycle already started")
	}

	for i, h := range l.hooks {
		if h.OnStart != nil {
			slog.Debug("lifecycle: starting", "hook", h.Name)
			if err := h.OnStart(ctx); err != nil {
				l.started = i
				l.rollback(ctx)
				return fmt.Errorf("starting %s: %w", h.Name, err)
			}
		}
	}
	l.started = len(l.hooks)
	l.running = true
	return nil
}

// rollback stops already-started hooks in reverse order.
func (l *Lifecycle) rollback(ctx context.Context) {
	for j := l.started - 1; j >= 0; j-- {
		h := l.hooks[j]
		if h.OnStop == nil {
			continue
		}
		if err := h.OnStop(ctx); err != nil {
			slog.Warn("lifecycle: rollback stop failed", "hook", h.Name, "error", err)
		}
	}
	l.started = 0
}

// Stop runs every OnStop in reverse order and joins their errors. Stopping
// a lifecycle that is not running does nothing.
func (l *Lifecycle) Stop(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running {
		return nil
	}

	var errs []error
	for i := l.started - 1; i >= 0; i-- {
		h := l.hooks[i]
		if h.OnStop == nil {
			continue
		}
		if err := h.OnStop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stopping %s: %w", h.Name, err))
		}
	}
	l.running = false
	l.started = 0
	return errors.Join(errs...)
}

// IsStarted reports whether Start has succeeded without a later Stop.
func (l *Lifecycle) IsStarted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}
