// Package pagination keeps interactive paginated sessions alive: it creates
// them from a command invocation, routes control clicks to them, persists
// them so they survive restarts, and ends them when they expire.
package pagination

import (
	"time"

	"github.com/txn2/plotwatch/pkg/housing"
	"github.com/txn2/plotwatch/pkg/listing"
	"github.com/txn2/plotwatch/pkg/render"
)

// Session is the navigation state of one paginated message.
type Session struct {
	ID        string
	OwnerID   string
	ChannelID string
	MessageID string
	// GuildID is empty for direct messages.
	GuildID string

	WorldID int
	Filters listing.FilterSpec

	CurrentPage int
	TotalPages  int

	World         *housing.WorldDetail
	LastRefreshed time.Time

	// CreatedAt drives expiry and is never changed by a refresh.
	CreatedAt time.Time
}

// MessageRef locates a message.
type MessageRef struct {
	ChannelID string
	MessageID string
}

// Ref returns the session's message location.
func (s *Session) Ref() MessageRef {
	return MessageRef{ChannelID: s.ChannelID, MessageID: s.MessageID}
}

// View returns the renderer input for the session's current page.
func (s *Session) View() render.View {
	return render.View{
		World:         s.World,
		Filters:       s.Filters,
		Page:          s.CurrentPage,
		LastRefreshed: s.LastRefreshed,
	}
}

// ExpiresAt returns when the session's browsing window closes.
func (s *Session) ExpiresAt(retention time.Duration) time.Time {
	return s.CreatedAt.Add(retention)
}

// Clone returns a copy that shares the immutable world snapshot.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
