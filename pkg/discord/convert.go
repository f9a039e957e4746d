package discord

import (
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/txn2/plotwatch/pkg/render"
)

func toEmbeds(msg render.Message) []*discordgo.MessageEmbed {
	out := make([]*discordgo.MessageEmbed, 0, len(msg.Embeds))
	for _, e := range msg.Embeds {
		embed := &discordgo.MessageEmbed{
			Title:       e.Title,
			URL:         e.URL,
			Description: e.Description,
			Color:       e.Color,
		}
		if !e.Timestamp.IsZero() {
			embed.Timestamp = e.Timestamp.UTC().Format(time.RFC3339)
		}
		if e.Footer != "" {
			embed.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
		}
		for _, f := range e.Fields {
			embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
				Name:   f.Name,
				Value:  f.Value,
				Inline: f.Inline,
			})
		}
		out = append(out, embed)
	}
	return out
}

// toComponents renders the control row. An empty control list yields an
// empty, non-nil slice so that edits clear existing buttons.
func toComponents(controls []render.Control) []discordgo.MessageComponent {
	if len(controls) == 0 {
		return []discordgo.MessageComponent{}
	}
	buttons := make([]discordgo.MessageComponent, 0, len(controls))
	for _, c := range controls {
		style := discordgo.SecondaryButton
		if c.Action == render.ActionRefresh {
			style = discordgo.PrimaryButton
		}
		buttons = append(buttons, discordgo.Button{
			Label:    c.Label,
			Style:    style,
			Disabled: c.Disabled,
			CustomID: c.CustomID(),
		})
	}
	return []discordgo.MessageComponent{discordgo.ActionsRow{Components: buttons}}
}

func responseData(msg render.Message) *discordgo.InteractionResponseData {
	return &discordgo.InteractionResponseData{
		Embeds:     toEmbeds(msg),
		Components: toComponents(msg.Controls),
	}
}

func webhookEdit(msg render.Message) *discordgo.WebhookEdit {
	embeds := toEmbeds(msg)
	components := toComponents(msg.Controls)
	return &discordgo.WebhookEdit{Embeds: &embeds, Components: &components}
}
