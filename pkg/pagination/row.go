package pagination

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/txn2/plotwatch/pkg/housing"
	"github.com/txn2/plotwatch/pkg/listing"
)

// Row is the durable form of a session. Times are epoch milliseconds.
type Row struct {
	SessionID       string  `json:"session_id"`
	OwnerID         string  `json:"owner_id"`
	ChannelID       string  `json:"channel_id"`
	MessageID       string  `json:"message_id"`
	GuildID         *string `json:"guild_id,omitempty"`
	WorldID         int     `json:"world_id"`
	DistrictFilter  *int    `json:"district_filter,omitempty"`
	SizeFilter      *int    `json:"size_filter,omitempty"`
	PhaseFilter     *int    `json:"phase_filter,omitempty"`
	TenantFilter    *int    `json:"tenant_filter,omitempty"`
	PlotFilter      *int    `json:"plot_filter,omitempty"`
	WardFilter      *int    `json:"ward_filter,omitempty"`
	CurrentPage     int     `json:"current_page"`
	TotalPages      int     `json:"total_pages"`
	WorldDetailJSON string  `json:"world_detail_json"`
	CreatedAt       int64   `json:"created_at"`
	LastRefreshed   int64   `json:"last_refreshed"`
}

// DurableStore persists session rows.
type DurableStore interface {
	// Put inserts or replaces the row with the same session id.
	Put(ctx context.Context, row Row) error

	// Get returns the row, or nil, nil if absent.
	Get(ctx context.Context, sessionID string) (*Row, error)

	// Delete removes the row. Deleting an absent row is not an error.
	Delete(ctx context.Context, sessionID string) error

	// List returns every row.
	List(ctx context.Context) ([]Row, error)

	// DeleteOlderThan removes rows created before cutoff and returns the
	// number removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// ToMillis converts a time to epoch milliseconds.
func ToMillis(t time.Time) int64 { return t.UnixMilli() }

// FromMillis converts epoch milliseconds to a UTC time.
func FromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

// NewRow serializes a session, including its world snapshot.
func NewRow(s *Session) (Row, error) {
	world, err := json.Marshal(s.World)
	if err != nil {
		return Row{}, fmt.Errorf("encoding world snapshot: %w", err)
	}
	row := Row{
		SessionID:       s.ID,
		OwnerID:         s.OwnerID,
		ChannelID:       s.ChannelID,
		MessageID:       s.MessageID,
		WorldID:         s.WorldID,
		CurrentPage:     s.CurrentPage,
		TotalPages:      s.TotalPages,
		WorldDetailJSON: string(world),
		CreatedAt:       ToMillis(s.CreatedAt),
		LastRefreshed:   ToMillis(s.LastRefreshed),
	}
	if s.GuildID != "" {
		g := s.GuildID
		row.GuildID = &g
	}
	f := s.Filters
	row.DistrictFilter = intPtr(f.District)
	row.SizeFilter = intPtr(f.Size)
	row.PhaseFilter = intPtr(f.Phase)
	row.TenantFilter = intPtr(f.Tenants)
	row.PlotFilter = intPtr(f.Plot)
	row.WardFilter = intPtr(f.Ward)
	return row, nil
}

// Session decodes the row. Any decoding or validation failure is reported
// as a *MalformedPersistedStateError.
func (r Row) Session() (*Session, error) {
	malformed := func(err error) error {
		return &MalformedPersistedStateError{SessionID: r.SessionID, Err: err}
	}
	if r.SessionID == "" || r.MessageID == "" || r.ChannelID == "" {
		return nil, malformed(errors.New("missing message reference"))
	}

	var world housing.WorldDetail
	if err := json.Unmarshal([]byte(r.WorldDetailJSON), &world); err != nil {
		return nil, malformed(fmt.Errorf("decoding world snapshot: %w", err))
	}

	filters := listing.FilterSpec{
		District: enumPtr[housing.DistrictID](r.DistrictFilter),
		Size:     enumPtr[housing.HouseSize](r.SizeFilter),
		Phase:    enumPtr[housing.FilterPhase](r.PhaseFilter),
		Tenants:  enumPtr[housing.PurchaseSystem](r.TenantFilter),
		Plot:     enumPtr[int](r.PlotFilter),
		Ward:     enumPtr[int](r.WardFilter),
	}
	if err := filters.Validate(); err != nil {
		return nil, malformed(err)
	}

	s := &Session{
		ID:            r.SessionID,
		OwnerID:       r.OwnerID,
		ChannelID:     r.ChannelID,
		MessageID:     r.MessageID,
		WorldID:       r.WorldID,
		Filters:       filters,
		CurrentPage:   r.CurrentPage,
		TotalPages:    r.TotalPages,
		World:         &world,
		CreatedAt:     FromMillis(r.CreatedAt),
		LastRefreshed: FromMillis(r.LastRefreshed),
	}
	if r.GuildID != nil {
		s.GuildID = *r.GuildID
	}
	return s, nil
}

func intPtr[T ~int](v *T) *int {
	if v == nil {
		return nil
	}
	i := int(*v)
	return &i
}

func enumPtr[T ~int](v *int) *T {
	if v == nil {
		return nil
	}
	t := T(*v)
	return &t
}
