// Package discord connects pagination sessions to Discord: it registers the
// slash commands, turns interactions into invocations and clicks, and edits
// messages through the REST API.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/txn2/plotwatch/pkg/interaction"
	"github.com/txn2/plotwatch/pkg/pagination"
	"github.com/txn2/plotwatch/pkg/render"
)

const (
	// DefaultCommandTimeout bounds the handling of one slash command.
	DefaultCommandTimeout = 60 * time.Second

	// NotOwnerText answers clicks from users other than the session owner.
	NotOwnerText = "❌ Only the user who ran the command can use these buttons."

	fetchFailedText = "Failed to fetch housing data. Please try again later."
	errorPrefix     = "❌ Error: "
	slogKeyError    = "error"
)

// Sessions creates pagination sessions.
type Sessions interface {
	Create(ctx context.Context, inv pagination.Invocation) (*pagination.Session, error)
}

// Dispatcher routes clicks to live subscriptions.
type Dispatcher interface {
	Dispatch(c interaction.Click) interaction.DispatchResult
}

// Config configures a Bot.
type Config struct {
	// GuildID registers commands in one guild instead of globally.
	GuildID        string
	Color          int
	CommandTimeout time.Duration
}

// Bot handles Discord interactions.
type Bot struct {
	cfg        Config
	rest       RESTClient
	sessions   Sessions
	dispatcher Dispatcher

	ctx    context.Context
	cancel context.CancelFunc
}

// NewBot creates a bot.
func NewBot(cfg Config, rest RESTClient, sessions Sessions, dispatcher Dispatcher) *Bot {
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = DefaultCommandTimeout
	}
	if cfg.Color == 0 {
		cfg.Color = render.DefaultColor
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Bot{
		cfg:        cfg,
		rest:       rest,
		sessions:   sessions,
		dispatcher: dispatcher,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// NewSession creates a discordgo session for a bot token. The session is not
// opened.
func NewSession(token string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds
	return s, nil
}

// RegisterCommands overwrites the application's commands.
func (b *Bot) RegisterCommands(ctx context.Context, appID string) error {
	cmds, err := b.rest.ApplicationCommandBulkOverwrite(appID, b.cfg.GuildID, Commands(), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("registering commands: %w", err)
	}
	slog.Info("discord: commands registered", "count", len(cmds), "guild_id", b.cfg.GuildID)
	return nil
}

// HandleInteraction is the discordgo event handler.
func (b *Bot) HandleInteraction(_ *discordgo.Session, ic *discordgo.InteractionCreate) {
	b.Handle(b.ctx, ic.Interaction)
}

// Close cancels in-flight command handling.
func (b *Bot) Close() {
	b.cancel()
}

// Handle processes one interaction.
func (b *Bot) Handle(ctx context.Context, i *discordgo.Interaction) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		ctx, cancel := context.WithTimeout(ctx, b.cfg.CommandTimeout)
		defer cancel()
		b.handleCommand(ctx, i)
	case discordgo.InteractionMessageComponent:
		b.handleClick(ctx, i)
	default:
		slog.Debug("discord: ignoring interaction", "type", int(i.Type))
	}
}

func (b *Bot) handleCommand(ctx context.Context, i *discordgo.Interaction) {
	data := i.ApplicationCommandData()
	r := newResponder(b.rest, i)

	switch data.Name {
	case CommandHelp:
		err := r.respond(ctx, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: responseData(render.Help(b.cfg.Color)),
		}, "sending help")
		if err != nil {
			slog.Warn("discord: help reply failed", slogKeyError, err)
		}
	case CommandPaissa:
		b.handlePaissa(ctx, i, data, r)
	default:
		slog.Error("discord: no command matching name", "command", data.Name)
	}
}

func (b *Bot) handlePaissa(ctx context.Context, i *discordgo.Interaction,
	data discordgo.ApplicationCommandInteractionData, r *responder,
) {
	worldID, filters, err := parsePaissa(data)
	if err != nil {
		b.replyError(ctx, i, r, err.Error())
		return
	}

	err = r.respond(ctx, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}, "deferring reply")
	if err != nil {
		slog.Warn("discord: deferring reply failed", slogKeyError, err)
		return
	}

	sess, err := b.sessions.Create(ctx, pagination.Invocation{
		UserID:    userID(i),
		ChannelID: i.ChannelID,
		GuildID:   i.GuildID,
		WorldID:   worldID,
		Filters:   filters,
		Reply:     &replier{rest: b.rest, i: i},
	})
	if err != nil {
		slog.Error("discord: handling command failed", "command", CommandPaissa, "world_id", worldID, slogKeyError, err)
		msg := err.Error()
		var fetchErr *pagination.TransientFetchError
		if errors.As(err, &fetchErr) {
			msg = fetchFailedText
		}
		b.replyError(ctx, i, r, msg)
		return
	}
	slog.Info("discord: session started", "session_id", sess.ID, "world_id", worldID, "pages", sess.TotalPages)
}

// replyError reports a command failure, editing the deferred reply when one
// exists.
func (b *Bot) replyError(ctx context.Context, i *discordgo.Interaction, r *responder, msg string) {
	text := errorPrefix + msg
	var err error
	if r.hasResponded() {
		_, err = b.rest.InteractionResponseEdit(i, &discordgo.WebhookEdit{Content: &text}, discordgo.WithContext(ctx))
	} else {
		err = r.Ephemeral(ctx, text)
	}
	if err != nil {
		slog.Warn("discord: error reply failed", slogKeyError, err)
	}
}

func (b *Bot) handleClick(ctx context.Context, i *discordgo.Interaction) {
	data := i.MessageComponentData()
	action, page, ok := render.ParseCustomID(data.CustomID)
	if !ok || i.Message == nil {
		slog.Debug("discord: ignoring component", "custom_id", data.CustomID)
		return
	}

	r := newResponder(b.rest, i)
	click := interaction.Click{
		Action:    action,
		ViewPage:  page,
		UserID:    userID(i),
		ChannelID: i.ChannelID,
		MessageID: i.Message.ID,
		Responder: r,
	}

	var err error
	switch b.dispatcher.Dispatch(click) {
	case interaction.Delivered:
		// The handler may run after the response window closes.
		err = r.Acknowledge(ctx)
	case interaction.Busy:
		err = r.Acknowledge(ctx)
	case interaction.NotOwner:
		err = r.Ephemeral(ctx, NotOwnerText)
	case interaction.Unsubscribed:
		err = r.Ephemeral(ctx, render.StaleSessionText)
	}
	if err != nil {
		slog.Debug("discord: click reply failed", "message_id", click.MessageID, slogKeyError, err)
	}
}

func userID(i *discordgo.Interaction) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}
