package pagination

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/txn2/plotwatch/pkg/interaction"
	"github.com/txn2/plotwatch/pkg/paging"
	"github.com/txn2/plotwatch/pkg/render"
)

// Router applies control clicks to live sessions. Each click runs under the
// session's lock; the session only changes once the message has been
// updated to match it.
type Router struct {
	m *Manager
}

// Handle processes one click for a session.
func (r *Router) Handle(ctx context.Context, id string, c interaction.Click) {
	ctx, span := r.m.tracer.Start(ctx, "pagination.click",
		trace.WithAttributes(
			attribute.String("session.id", id),
			attribute.String("click.action", string(c.Action)),
		))
	defer span.End()

	err := r.m.live.Do(ctx, id, func(s *Session) error {
		if c.Action == render.ActionRefresh {
			return r.refresh(ctx, s, c)
		}
		return r.navigate(ctx, s, c)
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrSessionNotFound):
		slog.Debug("pagination: click on ended session", slogKeyID, id)
		if err := c.Responder.Ephemeral(ctx, render.StaleSessionText); err != nil {
			slog.Debug("pagination: expired notice failed", slogKeyID, id, slogKeyError, err)
		}
	default:
		span.RecordError(err)
		slog.Error("pagination: handling click failed",
			slogKeyID, id, "action", string(c.Action), slogKeyError, err)
	}
}

func (r *Router) refresh(ctx context.Context, s *Session, c interaction.Click) error {
	if err := c.Responder.Acknowledge(ctx); err != nil {
		return err
	}

	world, err := r.m.source.FetchWorldDetail(ctx, s.WorldID)
	if err != nil {
		slog.Warn("pagination: refresh fetch failed", slogKeyID, s.ID,
			slogKeyError, &TransientFetchError{WorldID: s.WorldID, Err: err})
		if err := c.Responder.Ephemeral(ctx, render.RefreshFailedText); err != nil {
			slog.Debug("pagination: refresh failure notice failed", slogKeyID, s.ID, slogKeyError, err)
		}
		return nil
	}

	next := s.Clone()
	next.World = world
	next.LastRefreshed = r.m.cfg.Now()
	next.TotalPages = r.m.totalPages(world, s.Filters, next.LastRefreshed)
	next.CurrentPage = paging.Clamp(s.CurrentPage, next.TotalPages)

	if err := c.Responder.EditResponse(ctx, r.m.renderer.Render(next.View())); err != nil {
		r.updateFailed(s, err)
		return nil
	}
	*s = *next
	r.m.persist(ctx, s, "updating")
	return nil
}

func (r *Router) navigate(ctx context.Context, s *Session, c interaction.Click) error {
	if err := c.Responder.Acknowledge(ctx); err != nil {
		return err
	}
	stale := c.ViewPage != render.UnknownPage && c.ViewPage != s.CurrentPage
	target := c.Action.Target(s.CurrentPage, s.TotalPages)
	if stale || target == s.CurrentPage {
		return nil
	}

	next := s.Clone()
	next.CurrentPage = target
	if err := c.Responder.EditResponse(ctx, r.m.renderer.Render(next.View())); err != nil {
		r.updateFailed(s, err)
		return nil
	}
	*s = *next
	r.m.persist(ctx, s, "updating")
	return nil
}

// updateFailed logs a failed message update. A message that no longer
// exists ends the session through its listener.
func (r *Router) updateFailed(s *Session, err error) {
	if errors.Is(err, ErrMessageNotFound) {
		slog.Debug("pagination: session message is gone", slogKeyID, s.ID, slogKeyError, err)
		r.m.registry.Cancel(s.ID)
		return
	}
	slog.Error("pagination: updating session message failed", slogKeyID, s.ID, slogKeyError, err)
}
