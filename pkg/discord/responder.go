package discord

import (
	"context"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/txn2/plotwatch/pkg/interaction"
	"github.com/txn2/plotwatch/pkg/pagination"
	"github.com/txn2/plotwatch/pkg/render"
)

// RESTClient is the subset of *discordgo.Session used by the bot.
type RESTClient interface {
	InteractionRespond(i *discordgo.Interaction, r *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(i *discordgo.Interaction, edit *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	FollowupMessageCreate(i *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ApplicationCommandBulkOverwrite(appID, guildID string, commands []*discordgo.ApplicationCommand, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
}

// responder answers one interaction. The first answer is an interaction
// response; later notices are sent as follow-ups.
type responder struct {
	rest RESTClient
	i    *discordgo.Interaction

	// mu is held across the initial response so that a click acknowledged
	// at dispatch and again by its handler is answered once.
	mu        sync.Mutex
	responded bool
}

func newResponder(rest RESTClient, i *discordgo.Interaction) *responder {
	return &responder{rest: rest, i: i}
}

func (r *responder) respond(ctx context.Context, resp *discordgo.InteractionResponse, op string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.respondLocked(ctx, resp, op)
}

func (r *responder) respondLocked(ctx context.Context, resp *discordgo.InteractionResponse, op string) error {
	if err := r.rest.InteractionRespond(r.i, resp, discordgo.WithContext(ctx)); err != nil {
		return classify(err, op)
	}
	r.responded = true
	return nil
}

func (r *responder) hasResponded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.responded
}

// Acknowledge defers a component interaction without changing the message.
// An interaction that already has a response is left alone.
func (r *responder) Acknowledge(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.responded {
		return nil
	}
	return r.respondLocked(ctx, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	}, "acknowledging interaction")
}

// EditResponse edits the message after the interaction was deferred.
func (r *responder) EditResponse(ctx context.Context, msg render.Message) error {
	_, err := r.rest.InteractionResponseEdit(r.i, webhookEdit(msg), discordgo.WithContext(ctx))
	return classify(err, "editing response")
}

// Ephemeral sends a notice only the invoking user can see.
func (r *responder) Ephemeral(ctx context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.responded {
		_, err := r.rest.FollowupMessageCreate(r.i, true, &discordgo.WebhookParams{
			Content: text,
			Flags:   discordgo.MessageFlagsEphemeral,
		}, discordgo.WithContext(ctx))
		return classify(err, "sending follow-up")
	}
	return r.respondLocked(ctx, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: text,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	}, "sending notice")
}

// replier delivers the first page of a command whose response was deferred.
type replier struct {
	rest RESTClient
	i    *discordgo.Interaction
}

// Deliver edits the deferred response and returns the resulting message id.
func (r *replier) Deliver(ctx context.Context, msg render.Message) (string, error) {
	m, err := r.rest.InteractionResponseEdit(r.i, webhookEdit(msg), discordgo.WithContext(ctx))
	if err != nil {
		return "", classify(err, "delivering reply")
	}
	return m.ID, nil
}

// Verify interface compliance.
var (
	_ interaction.Responder = (*responder)(nil)
	_ pagination.Replier    = (*replier)(nil)
)
