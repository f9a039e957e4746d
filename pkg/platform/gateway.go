package platform

import (
	"github.com/bwmarrin/discordgo"

	"github.com/txn2/plotwatch/pkg/discord"
)

// Gateway is the Discord connection: REST calls plus the event gateway.
type Gateway interface {
	discord.RESTClient
	AddHandler(handler any) func()
	Open() error
	Close() error
	// ApplicationID is the bot's application id, known once the gateway is
	// open.
	ApplicationID() string
}

type discordGateway struct {
	*discordgo.Session
}

func (g discordGateway) ApplicationID() string {
	if g.State == nil || g.State.User == nil {
		return ""
	}
	return g.State.User.ID
}

// Verify interface compliance.
var _ Gateway = discordGateway{}
