package discord

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/plotwatch/pkg/housing"
	"github.com/txn2/plotwatch/pkg/interaction"
	"github.com/txn2/plotwatch/pkg/pagination"
	"github.com/txn2/plotwatch/pkg/render"
)

const (
	discordTestUser    = "user-1"
	discordTestChannel = "chan-1"
	discordTestMessage = "msg-1"
	discordTestWorld   = "73"
)

// fakeREST records calls made through RESTClient.
type fakeREST struct {
	mu          sync.Mutex
	responses   []*discordgo.InteractionResponse
	edits       []*discordgo.WebhookEdit
	followups   []*discordgo.WebhookParams
	msgEdits    []*discordgo.MessageEdit
	registered  []*discordgo.ApplicationCommand
	message     *discordgo.Message
	fetchErr    error
	editErr     error
	respondErr  error
	nextMessage string
}

func (f *fakeREST) InteractionRespond(_ *discordgo.Interaction, r *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.respondErr != nil {
		return f.respondErr
	}
	f.responses = append(f.responses, r)
	return nil
}

func (f *fakeREST) InteractionResponseEdit(_ *discordgo.Interaction, e *discordgo.WebhookEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, e)
	return &discordgo.Message{ID: f.nextMessage}, nil
}

func (f *fakeREST) FollowupMessageCreate(_ *discordgo.Interaction, _ bool, p *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.followups = append(f.followups, p)
	return &discordgo.Message{}, nil
}

func (f *fakeREST) ChannelMessage(_, _ string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.message, nil
}

func (f *fakeREST) ChannelMessageEditComplex(m *discordgo.MessageEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.editErr != nil {
		return nil, f.editErr
	}
	f.msgEdits = append(f.msgEdits, m)
	return &discordgo.Message{}, nil
}

func (f *fakeREST) ApplicationCommandBulkOverwrite(_, _ string, cmds []*discordgo.ApplicationCommand, _ ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error) {
	f.registered = cmds
	return cmds, nil
}

type fakeSessions struct {
	err error
	inv pagination.Invocation
}

func (f *fakeSessions) Create(ctx context.Context, inv pagination.Invocation) (*pagination.Session, error) {
	f.inv = inv
	if f.err != nil {
		return nil, f.err
	}
	id, err := inv.Reply.Deliver(ctx, render.Message{Embeds: []render.Embed{{Title: "Adamantoise"}}})
	if err != nil {
		return nil, err
	}
	return &pagination.Session{ID: "sess-1", MessageID: id, TotalPages: 1}, nil
}

type fakeDispatcher struct {
	result interaction.DispatchResult
	clicks []interaction.Click
}

func (f *fakeDispatcher) Dispatch(c interaction.Click) interaction.DispatchResult {
	f.clicks = append(f.clicks, c)
	return f.result
}

func restError(code int) error {
	return &discordgo.RESTError{
		Response: &http.Response{Status: "404 Not Found", StatusCode: http.StatusNotFound},
		Message:  &discordgo.APIErrorMessage{Code: code, Message: "error"},
	}
}

func stringOpt(name, value string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name: name, Type: discordgo.ApplicationCommandOptionString, Value: value,
	}
}

func intOpt(name string, value float64) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name: name, Type: discordgo.ApplicationCommandOptionInteger, Value: value,
	}
}

func paissaData(opts ...*discordgo.ApplicationCommandInteractionDataOption) discordgo.ApplicationCommandInteractionData {
	return discordgo.ApplicationCommandInteractionData{
		Name: CommandPaissa,
		Options: []*discordgo.ApplicationCommandInteractionDataOption{{
			Name: "aether", Type: discordgo.ApplicationCommandOptionSubCommand, Options: opts,
		}},
	}
}

func commandInteraction(data discordgo.ApplicationCommandInteractionData) *discordgo.Interaction {
	return &discordgo.Interaction{
		Type:      discordgo.InteractionApplicationCommand,
		ChannelID: discordTestChannel,
		GuildID:   "guild-1",
		Member:    &discordgo.Member{User: &discordgo.User{ID: discordTestUser}},
		Data:      data,
	}
}

func clickInteraction(customID string) *discordgo.Interaction {
	return &discordgo.Interaction{
		Type:      discordgo.InteractionMessageComponent,
		ChannelID: discordTestChannel,
		User:      &discordgo.User{ID: discordTestUser},
		Message:   &discordgo.Message{ID: discordTestMessage},
		Data:      discordgo.MessageComponentInteractionData{CustomID: customID},
	}
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil, "op"))

	for _, code := range []int{discordgo.ErrCodeUnknownMessage, discordgo.ErrCodeUnknownChannel} {
		err := classify(restError(code), "op")
		assert.ErrorIs(t, err, pagination.ErrMessageNotFound)
		assert.Equal(t, pagination.EditNotFound, pagination.OutcomeOf(err))
	}
	for _, code := range []int{discordgo.ErrCodeMissingAccess, discordgo.ErrCodeMissingPermissions} {
		assert.ErrorIs(t, classify(restError(code), "op"), pagination.ErrForbidden)
	}

	err := classify(errors.New("gateway timeout"), "editing")
	assert.Equal(t, pagination.EditFailed, pagination.OutcomeOf(err))
	assert.Contains(t, err.Error(), "editing")
}

func TestCommands(t *testing.T) {
	cmds := Commands()
	require.Len(t, cmds, 2)
	paissa := cmds[0]
	assert.Equal(t, CommandPaissa, paissa.Name)
	require.Len(t, paissa.Options, len(housing.DataCenters))
	assert.Equal(t, CommandHelp, cmds[1].Name)

	aether := paissa.Options[0]
	assert.Equal(t, "aether", aether.Name)
	assert.Equal(t, discordgo.ApplicationCommandOptionSubCommand, aether.Type)

	names := make([]string, 0, len(aether.Options))
	for _, o := range aether.Options {
		names = append(names, o.Name)
	}
	assert.Equal(t, []string{optWorld, optDistrict, optSize, optPhase, optTenants, optPlot, optWard}, names)

	world := aether.Options[0]
	assert.True(t, world.Required)
	require.Len(t, world.Choices, 8)
	assert.Equal(t, "Adamantoise", world.Choices[0].Name)
	assert.Equal(t, discordTestWorld, world.Choices[0].Value)

	plot := aether.Options[5]
	require.NotNil(t, plot.MinValue)
	assert.InDelta(t, 1.0, *plot.MinValue, 0)
	assert.InDelta(t, 30.0, plot.MaxValue, 0)

	for _, dc := range paissa.Options {
		assert.Equal(t, strings.ToLower(dc.Name), dc.Name)
		assert.LessOrEqual(t, len(dc.Options[0].Choices), 25)
	}
}

func TestParsePaissa(t *testing.T) {
	t.Run("all filters", func(t *testing.T) {
		worldID, spec, err := parsePaissa(paissaData(
			stringOpt(optWorld, discordTestWorld),
			stringOpt(optDistrict, "339"),
			stringOpt(optSize, "2"),
			stringOpt(optPhase, "4"),
			stringOpt(optTenants, "2"),
			intOpt(optPlot, 30),
			intOpt(optWard, 1),
		))
		require.NoError(t, err)
		assert.Equal(t, 73, worldID)
		require.NotNil(t, spec.District)
		assert.Equal(t, housing.DistrictMist, *spec.District)
		assert.Equal(t, housing.SizeLarge, *spec.Size)
		assert.Equal(t, housing.FilterFCFS, *spec.Phase)
		assert.Equal(t, housing.PurchaseFreeCompany, *spec.Tenants)
		assert.Equal(t, 30, *spec.Plot)
		assert.Equal(t, 1, *spec.Ward)
	})

	t.Run("world only", func(t *testing.T) {
		_, spec, err := parsePaissa(paissaData(stringOpt(optWorld, discordTestWorld)))
		require.NoError(t, err)
		assert.True(t, spec.IsZero())
	})

	t.Run("unknown world", func(t *testing.T) {
		_, _, err := parsePaissa(paissaData(stringOpt(optWorld, "9999")))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown world")
	})

	t.Run("out of range plot", func(t *testing.T) {
		_, _, err := parsePaissa(paissaData(stringOpt(optWorld, discordTestWorld), intOpt(optPlot, 31)))
		assert.Error(t, err)
	})

	t.Run("non numeric district", func(t *testing.T) {
		_, _, err := parsePaissa(paissaData(stringOpt(optWorld, discordTestWorld), stringOpt(optDistrict, "mist")))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid district option")
	})

	t.Run("missing subcommand", func(t *testing.T) {
		_, _, err := parsePaissa(discordgo.ApplicationCommandInteractionData{Name: CommandPaissa})
		assert.ErrorIs(t, err, errNoSubcommand)
	})
}

func TestToComponents(t *testing.T) {
	rows := toComponents(render.Controls(0, 3, true))
	require.Len(t, rows, 1)
	row, ok := rows[0].(discordgo.ActionsRow)
	require.True(t, ok)
	require.Len(t, row.Components, 5)

	first, ok := row.Components[0].(discordgo.Button)
	require.True(t, ok)
	assert.True(t, first.Disabled)
	assert.Equal(t, "pagination:jump-start:0", first.CustomID)

	refresh, ok := row.Components[2].(discordgo.Button)
	require.True(t, ok)
	assert.Equal(t, discordgo.PrimaryButton, refresh.Style)

	assert.NotNil(t, toComponents(nil))
	assert.Empty(t, toComponents(nil))
}

func TestEditor_ExpireMessage(t *testing.T) {
	rest := &fakeREST{message: &discordgo.Message{
		Embeds: []*discordgo.MessageEmbed{{
			Title:  "Adamantoise",
			Footer: &discordgo.MessageEmbedFooter{Text: "Page 1/3"},
		}},
	}}
	e := NewEditor(rest)
	ref := pagination.MessageRef{ChannelID: discordTestChannel, MessageID: discordTestMessage}

	require.NoError(t, e.ExpireMessage(context.Background(), ref))
	require.Len(t, rest.msgEdits, 1)
	edit := rest.msgEdits[0]
	assert.Equal(t, discordTestMessage, edit.ID)
	assert.Equal(t, discordTestChannel, edit.Channel)
	require.NotNil(t, edit.Components)
	assert.Empty(t, *edit.Components)
	require.NotNil(t, edit.Embeds)
	footer := (*edit.Embeds)[0].Footer.Text
	assert.Equal(t, "Page 1/3\n"+render.ExpiredNotice, footer)
	assert.Equal(t, "Page 1/3", rest.message.Embeds[0].Footer.Text, "source embed is not mutated")

	rest.message.Embeds[0].Footer.Text = footer
	require.NoError(t, e.ExpireMessage(context.Background(), ref))
	assert.Equal(t, footer, (*rest.msgEdits[1].Embeds)[0].Footer.Text, "notice is not duplicated")
}

func TestEditor_Unreachable(t *testing.T) {
	rest := &fakeREST{fetchErr: restError(discordgo.ErrCodeUnknownMessage)}
	e := NewEditor(rest)
	ref := pagination.MessageRef{ChannelID: discordTestChannel, MessageID: discordTestMessage}

	assert.ErrorIs(t, e.CheckMessage(context.Background(), ref), pagination.ErrMessageNotFound)
	assert.ErrorIs(t, e.ExpireMessage(context.Background(), ref), pagination.ErrMessageNotFound)

	rest = &fakeREST{message: &discordgo.Message{}, editErr: restError(discordgo.ErrCodeMissingPermissions)}
	e = NewEditor(rest)
	assert.NoError(t, e.CheckMessage(context.Background(), ref))
	assert.ErrorIs(t, e.ExpireMessage(context.Background(), ref), pagination.ErrForbidden)
}

func TestExpiredEmbeds_NoEmbed(t *testing.T) {
	out := expiredEmbeds(nil)
	require.Len(t, out, 1)
	assert.Equal(t, render.ExpiredNotice, out[0].Footer.Text)
}

func TestExpiredEmbeds_MarksEveryEmbed(t *testing.T) {
	existing := []*discordgo.MessageEmbed{
		{Title: "Adamantoise", Footer: &discordgo.MessageEmbedFooter{Text: "Page 1/3"}},
		{Title: "Mist"},
	}
	out := expiredEmbeds(existing)

	require.Len(t, out, 2)
	assert.Equal(t, render.ExpiredFooter("Page 1/3"), out[0].Footer.Text)
	assert.Equal(t, render.ExpiredNotice, out[1].Footer.Text)
	assert.Equal(t, "Mist", out[1].Title)
	assert.Equal(t, "Page 1/3", existing[0].Footer.Text, "input embeds are not modified")
	assert.Nil(t, existing[1].Footer)
}

func TestResponder_EphemeralAfterAcknowledge(t *testing.T) {
	rest := &fakeREST{}
	r := newResponder(rest, &discordgo.Interaction{})

	require.NoError(t, r.Acknowledge(context.Background()))
	require.NoError(t, r.Ephemeral(context.Background(), render.RefreshFailedText))

	require.Len(t, rest.responses, 1)
	assert.Equal(t, discordgo.InteractionResponseDeferredMessageUpdate, rest.responses[0].Type)
	require.Len(t, rest.followups, 1)
	assert.Equal(t, render.RefreshFailedText, rest.followups[0].Content)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, rest.followups[0].Flags)
}

func TestResponder_AcknowledgeOnceThenEdit(t *testing.T) {
	rest := &fakeREST{}
	r := newResponder(rest, &discordgo.Interaction{})
	msg := render.Message{Embeds: []render.Embed{{Title: "t"}}, Controls: render.Controls(1, 3, true)}

	require.NoError(t, r.Acknowledge(context.Background()))
	require.NoError(t, r.Acknowledge(context.Background()))
	require.Len(t, rest.responses, 1, "a deferred click is answered once")
	assert.Equal(t, discordgo.InteractionResponseDeferredMessageUpdate, rest.responses[0].Type)

	require.NoError(t, r.EditResponse(context.Background(), msg))
	require.Len(t, rest.edits, 1)
	require.NotNil(t, rest.edits[0].Embeds)
	assert.Len(t, *rest.edits[0].Embeds, 1)
	require.NotNil(t, rest.edits[0].Components)
	assert.Len(t, *rest.edits[0].Components, 1)
}

func TestBot_Help(t *testing.T) {
	rest := &fakeREST{}
	b := NewBot(Config{}, rest, &fakeSessions{}, &fakeDispatcher{})
	defer b.Close()

	b.Handle(context.Background(), commandInteraction(discordgo.ApplicationCommandInteractionData{Name: CommandHelp}))
	require.Len(t, rest.responses, 1)
	resp := rest.responses[0]
	assert.Equal(t, discordgo.InteractionResponseChannelMessageWithSource, resp.Type)
	require.Len(t, resp.Data.Embeds, 1)
	assert.Equal(t, render.DefaultColor, resp.Data.Embeds[0].Color)
}

func TestBot_Paissa(t *testing.T) {
	rest := &fakeREST{nextMessage: discordTestMessage}
	sessions := &fakeSessions{}
	b := NewBot(Config{}, rest, sessions, &fakeDispatcher{})

	b.Handle(context.Background(), commandInteraction(paissaData(
		stringOpt(optWorld, discordTestWorld), stringOpt(optSize, "0"),
	)))

	require.Len(t, rest.responses, 1)
	assert.Equal(t, discordgo.InteractionResponseDeferredChannelMessageWithSource, rest.responses[0].Type)
	require.Len(t, rest.edits, 1, "first page is delivered by editing the deferred reply")
	assert.Equal(t, discordTestUser, sessions.inv.UserID)
	assert.Equal(t, discordTestChannel, sessions.inv.ChannelID)
	assert.Equal(t, "guild-1", sessions.inv.GuildID)
	assert.Equal(t, 73, sessions.inv.WorldID)
	require.NotNil(t, sessions.inv.Filters.Size)
	assert.Equal(t, housing.SizeSmall, *sessions.inv.Filters.Size)
}

func TestBot_PaissaErrors(t *testing.T) {
	t.Run("invalid option replies ephemerally", func(t *testing.T) {
		rest := &fakeREST{}
		b := NewBot(Config{}, rest, &fakeSessions{}, &fakeDispatcher{})
		b.Handle(context.Background(), commandInteraction(paissaData(stringOpt(optWorld, "1"))))

		require.Len(t, rest.responses, 1)
		resp := rest.responses[0]
		assert.Equal(t, discordgo.MessageFlagsEphemeral, resp.Data.Flags)
		assert.True(t, strings.HasPrefix(resp.Data.Content, errorPrefix))
	})

	t.Run("fetch failure edits deferred reply", func(t *testing.T) {
		rest := &fakeREST{}
		sessions := &fakeSessions{err: &pagination.TransientFetchError{WorldID: 73, Err: errors.New("503")}}
		b := NewBot(Config{}, rest, sessions, &fakeDispatcher{})
		b.Handle(context.Background(), commandInteraction(paissaData(stringOpt(optWorld, discordTestWorld))))

		require.Len(t, rest.edits, 1)
		require.NotNil(t, rest.edits[0].Content)
		assert.Equal(t, errorPrefix+fetchFailedText, *rest.edits[0].Content)
	})
}

func TestBot_Click(t *testing.T) {
	tests := []struct {
		name     string
		result   interaction.DispatchResult
		respType discordgo.InteractionResponseType
		content  string
	}{
		{name: "delivered", result: interaction.Delivered, respType: discordgo.InteractionResponseDeferredMessageUpdate},
		{name: "busy", result: interaction.Busy, respType: discordgo.InteractionResponseDeferredMessageUpdate},
		{name: "not owner", result: interaction.NotOwner, respType: discordgo.InteractionResponseChannelMessageWithSource, content: NotOwnerText},
		{name: "unsubscribed", result: interaction.Unsubscribed, respType: discordgo.InteractionResponseChannelMessageWithSource, content: render.StaleSessionText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rest := &fakeREST{}
			d := &fakeDispatcher{result: tt.result}
			b := NewBot(Config{}, rest, &fakeSessions{}, d)

			b.Handle(context.Background(), clickInteraction(render.CustomID(render.ActionNext, 2)))

			require.Len(t, d.clicks, 1)
			c := d.clicks[0]
			assert.Equal(t, render.ActionNext, c.Action)
			assert.Equal(t, 2, c.ViewPage)
			assert.Equal(t, discordTestUser, c.UserID)
			assert.Equal(t, discordTestMessage, c.MessageID)

			require.Len(t, rest.responses, 1)
			assert.Equal(t, tt.respType, rest.responses[0].Type)
			if tt.content != "" {
				assert.Equal(t, tt.content, rest.responses[0].Data.Content)
			}
		})
	}
}

func TestBot_IgnoresForeignComponents(t *testing.T) {
	rest := &fakeREST{}
	d := &fakeDispatcher{}
	b := NewBot(Config{}, rest, &fakeSessions{}, d)

	b.Handle(context.Background(), clickInteraction("some-other-button"))
	assert.Empty(t, d.clicks)
	assert.Empty(t, rest.responses)
}

func TestBot_RegisterCommands(t *testing.T) {
	rest := &fakeREST{}
	b := NewBot(Config{GuildID: "guild-1"}, rest, &fakeSessions{}, &fakeDispatcher{})
	require.NoError(t, b.RegisterCommands(context.Background(), "app-1"))
	assert.Len(t, rest.registered, 2)
}
