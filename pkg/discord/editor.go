package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"github.com/txn2/plotwatch/pkg/pagination"
	"github.com/txn2/plotwatch/pkg/render"
)

// Editor reaches previously sent messages through the REST API.
type Editor struct {
	rest RESTClient
}

// NewEditor creates an editor.
func NewEditor(rest RESTClient) *Editor {
	return &Editor{rest: rest}
}

// CheckMessage fetches the message to confirm it still exists.
func (e *Editor) CheckMessage(ctx context.Context, ref pagination.MessageRef) error {
	_, err := e.rest.ChannelMessage(ref.ChannelID, ref.MessageID, discordgo.WithContext(ctx))
	return classify(err, "fetching message")
}

// ExpireMessage appends the expiry notice to the first embed's footer and
// removes every control.
func (e *Editor) ExpireMessage(ctx context.Context, ref pagination.MessageRef) error {
	msg, err := e.rest.ChannelMessage(ref.ChannelID, ref.MessageID, discordgo.WithContext(ctx))
	if err != nil {
		return classify(err, "fetching message")
	}

	embeds := expiredEmbeds(msg.Embeds)
	components := []discordgo.MessageComponent{}
	_, err = e.rest.ChannelMessageEditComplex(&discordgo.MessageEdit{
		ID:         ref.MessageID,
		Channel:    ref.ChannelID,
		Embeds:     &embeds,
		Components: &components,
	}, discordgo.WithContext(ctx))
	return classify(err, "editing message")
}

func expiredEmbeds(existing []*discordgo.MessageEmbed) []*discordgo.MessageEmbed {
	if len(existing) == 0 {
		return []*discordgo.MessageEmbed{{
			Footer: &discordgo.MessageEmbedFooter{Text: render.ExpiredNotice},
		}}
	}
	out := make([]*discordgo.MessageEmbed, len(existing))
	for i, e := range existing {
		embed := *e
		footer := discordgo.MessageEmbedFooter{}
		if embed.Footer != nil {
			footer = *embed.Footer
		}
		footer.Text = render.ExpiredFooter(footer.Text)
		embed.Footer = &footer
		out[i] = &embed
	}
	return out
}

// Verify interface compliance.
var _ pagination.MessageEditor = (*Editor)(nil)
