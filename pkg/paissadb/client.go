// Package paissadb provides a client for the PaissaDB housing API.
package paissadb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/txn2/plotwatch/pkg/housing"
)

const (
	// DefaultBaseURL is the public PaissaDB API.
	DefaultBaseURL = "https://paissadb.zhu.codes"

	// DefaultTimeout bounds a single HTTP attempt.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxElapsed bounds all attempts of one fetch.
	DefaultMaxElapsed = 30 * time.Second

	// DefaultInitialInterval is the first retry delay.
	DefaultInitialInterval = 500 * time.Millisecond

	defaultUserAgent = "plotwatch"
	maxErrorBody     = 512
	tracerName       = "github.com/txn2/plotwatch/pkg/paissadb"
	slogKeyError     = "error"
)

// StatusError is returned when PaissaDB answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("paissadb: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("paissadb: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether retrying may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// Config configures a Client.
type Config struct {
	BaseURL         string
	UserAgent       string
	Timeout         time.Duration
	MaxElapsed      time.Duration
	InitialInterval time.Duration
	// HTTPClient overrides the default client; Timeout is ignored when set.
	HTTPClient *http.Client
}

// Client fetches world snapshots. Concurrent fetches of the same world share
// one request.
type Client struct {
	baseURL         string
	userAgent       string
	maxElapsed      time.Duration
	initialInterval time.Duration
	http            *http.Client
	group           singleflight.Group
	tracer          trace.Tracer
}

// New creates a client, filling unset fields with defaults.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxElapsed <= 0 {
		cfg.MaxElapsed = DefaultMaxElapsed
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = DefaultInitialInterval
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:       cfg.UserAgent,
		maxElapsed:      cfg.MaxElapsed,
		initialInterval: cfg.InitialInterval,
		http:            hc,
		tracer:          otel.Tracer(tracerName),
	}
}

// FetchWorldDetail returns the current snapshot of a world. The returned
// value is owned by the caller.
func (c *Client) FetchWorldDetail(ctx context.Context, worldID int) (*housing.WorldDetail, error) {
	if worldID <= 0 {
		return nil, fmt.Errorf("paissadb: invalid world id %d", worldID)
	}

	ctx, span := c.tracer.Start(ctx, "paissadb.fetch_world",
		trace.WithAttributes(attribute.Int("paissadb.world_id", worldID)))
	defer span.End()

	key := strconv.Itoa(worldID)
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		return c.fetchWithRetry(shared, worldID)
	})

	select {
	case <-ctx.Done():
		span.RecordError(ctx.Err())
		return nil, fmt.Errorf("fetching world %d: %w", worldID, ctx.Err())
	case res := <-ch:
		span.SetAttributes(attribute.Bool("paissadb.shared", res.Shared))
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
			return nil, res.Err
		}
		world, _ := res.Val.(*housing.WorldDetail)
		return world.Clone(), nil
	}
}

func (c *Client) fetchWithRetry(ctx context.Context, worldID int) (*housing.WorldDetail, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialInterval

	attempt := 0
	world, err := backoff.Retry(ctx, func() (*housing.WorldDetail, error) {
		attempt++
		w, err := c.fetch(ctx, worldID)
		if err == nil {
			return w, nil
		}
		var se *StatusError
		if errors.As(err, &se) && !se.Temporary() {
			return nil, backoff.Permanent(err)
		}
		slog.Debug("paissadb: fetch attempt failed", "world_id", worldID, "attempt", attempt, slogKeyError, err)
		return nil, err
	}, backoff.WithBackOff(b), backoff.WithMaxElapsedTime(c.maxElapsed))
	if err != nil {
		return nil, fmt.Errorf("fetching world %d: %w", worldID, err)
	}
	return world, nil
}

func (c *Client) fetch(ctx context.Context, worldID int) (*housing.WorldDetail, error) {
	url := fmt.Sprintf("%s/worlds/%d", c.baseURL, worldID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var world housing.WorldDetail
	if err := json.NewDecoder(resp.Body).Decode(&world); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decoding world %d: %w", worldID, err))
	}
	return &world, nil
}
