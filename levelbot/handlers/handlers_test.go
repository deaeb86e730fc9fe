package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/disgoorg/levelbot/levelbot/activity"
	"github.com/disgoorg/levelbot/levelbot/challenges"
	"github.com/disgoorg/levelbot/levelbot/commands"
	"github.com/disgoorg/levelbot/levelbot/database/memstore"
	"github.com/disgoorg/levelbot/levelbot/database/models"
	"github.com/disgoorg/levelbot/levelbot/database/repositories"
	"github.com/disgoorg/levelbot/levelbot/leaderboard"
	"github.com/disgoorg/levelbot/levelbot/leveling"
	"github.com/disgoorg/levelbot/levelbot/multiplier"
	"github.com/disgoorg/levelbot/levelbot/settings"
	"github.com/disgoorg/levelbot/levelbot/voice"
)

const (
	guildID   snowflake.ID = 1000
	channelID snowflake.ID = 2000
	aliceID   snowflake.ID = 3000
)

var now = time.Date(2024, 5, 15, 9, 0, 0, 0, time.UTC)

func newListeners(t *testing.T) (*Listeners, *repositories.Stores, *activity.Pipeline) {
	t.Helper()
	stores := memstore.New()
	require.NoError(t, stores.Challenges.Seed(context.Background(), models.DefaultChallenges()))

	clock := func() time.Time { return now }
	s := settings.New(stores.Config)
	resolver := multiplier.NewResolver(stores, s, time.UTC)
	resolver.Now = clock
	engine, err := leveling.NewService(leveling.NewDefaultConfig(), stores, s, resolver, time.UTC)
	require.NoError(t, err)
	engine.Now = clock
	engine.Intn = func(int) int { return 0 }
	tracker := challenges.NewTracker(stores.Challenges, time.UTC)
	tracker.Now = clock

	pipeline := activity.NewPipeline(engine, stores, s, tracker, voice.NewTracker(), leaderboard.NewBoard(stores.Users, nil), nil, time.UTC)
	pipeline.Now = clock
	return NewListeners(guildID, pipeline), stores, pipeline
}

func alice() discord.User {
	return discord.User{ID: aliceID, Username: "alice"}
}

func TestFailureReplies(t *testing.T) {
	reply, err := failure(commands.UserError("Pick two different users."))
	assert.NoError(t, err)
	assert.True(t, reply.Ephemeral)
	assert.Equal(t, "Pick two different users.", reply.Content)

	reply, err = failure(commands.ErrNotAuthorized)
	assert.NoError(t, err)
	assert.Contains(t, reply.Content, "Manage Server")

	boom := errors.New("boom")
	reply, err = failure(boom)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, genericFailure, reply.Content)
	assert.True(t, reply.Ephemeral)
}

func TestMessageRendering(t *testing.T) {
	msg := message(commands.Reply{Content: "hi", Ephemeral: true})
	assert.Equal(t, "hi", msg.Content)
	assert.Equal(t, discord.MessageFlagEphemeral, msg.Flags)

	page := discord.Embed{Title: "only page"}
	msg = message(commands.Reply{Pages: []discord.Embed{page}})
	require.Len(t, msg.Embeds, 1)
	assert.Equal(t, "only page", msg.Embeds[0].Title)
	assert.Zero(t, msg.Flags)
}

func TestNewInputFromMember(t *testing.T) {
	nick := "Ally"
	sub := "status"
	member := &discord.ResolvedMember{
		Member: discord.Member{
			User:    alice(),
			Nick:    &nick,
			RoleIDs: []snowflake.ID{11, 12},
		},
		Permissions: discord.PermissionManageGuild,
	}

	in := newInput(alice(), member, channelID, discord.SlashCommandInteractionData{SubCommandName: &sub})
	assert.Equal(t, aliceID.String(), in.UserID)
	assert.Equal(t, "Ally", in.DisplayName)
	assert.Equal(t, channelID.String(), in.ChannelID)
	assert.Equal(t, []string{"11", "12"}, in.Roles)
	assert.Equal(t, "status", in.Subcommand)
	assert.True(t, in.Admin)
	assert.NotNil(t, in.Options)

	in = newInput(alice(), nil, channelID, discord.SlashCommandInteractionData{})
	assert.False(t, in.Admin)
	assert.Equal(t, "alice", in.DisplayName)
}

func TestIsAdmin(t *testing.T) {
	assert.True(t, isAdmin(discord.PermissionAdministrator))
	assert.True(t, isAdmin(discord.PermissionManageGuild|discord.PermissionSendMessages))
	assert.False(t, isAdmin(discord.PermissionSendMessages))
}

func TestMessageCreateAwardsAuthor(t *testing.T) {
	l, stores, _ := newListeners(t)

	l.OnMessageCreate(&events.GuildMessageCreate{
		GenericGuildMessage: &events.GenericGuildMessage{
			GuildID:   guildID,
			ChannelID: channelID,
			Message: discord.Message{
				Author:  alice(),
				Content: "hello everyone, how is it going today?",
			},
		},
	})

	user, err := stores.Users.Get(context.Background(), aliceID.String())
	require.NoError(t, err)
	assert.Positive(t, user.TotalXPEarned)
	assert.Equal(t, "alice", user.DisplayName)
}

func TestMessageCreateIgnoresOtherGuildsAndBots(t *testing.T) {
	l, stores, _ := newListeners(t)

	bot := discord.User{ID: 4000, Username: "robot", Bot: true}
	for _, e := range []*events.GuildMessageCreate{
		{GenericGuildMessage: &events.GenericGuildMessage{GuildID: 999, ChannelID: channelID, Message: discord.Message{Author: alice(), Content: "elsewhere"}}},
		{GenericGuildMessage: &events.GenericGuildMessage{GuildID: guildID, ChannelID: channelID, Message: discord.Message{Author: bot, Content: "beep"}}},
	} {
		l.OnMessageCreate(e)
	}

	_, err := stores.Users.Get(context.Background(), aliceID.String())
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	_, err = stores.Users.Get(context.Background(), bot.ID.String())
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestVoiceStateTransitions(t *testing.T) {
	l, stores, pipeline := newListeners(t)
	voiceA, voiceB := snowflake.ID(5000), snowflake.ID(5001)
	member := discord.Member{User: alice()}

	update := func(before, after *snowflake.ID) {
		l.OnVoiceStateUpdate(&events.GuildVoiceStateUpdate{
			GenericGuildVoiceState: &events.GenericGuildVoiceState{
				VoiceState: discord.VoiceState{GuildID: guildID, UserID: aliceID, ChannelID: after},
				Member:     member,
			},
			OldVoiceState: discord.VoiceState{GuildID: guildID, UserID: aliceID, ChannelID: before},
		})
	}

	update(nil, &voiceA)
	session, ok := pipeline.Voice().Get(aliceID.String())
	require.True(t, ok)
	assert.Equal(t, voiceA.String(), session.ChannelID)
	_, err := stores.Users.Get(context.Background(), aliceID.String())
	require.NoError(t, err)

	update(&voiceA, &voiceB)
	session, ok = pipeline.Voice().Get(aliceID.String())
	require.True(t, ok)
	assert.Equal(t, voiceB.String(), session.ChannelID)

	update(&voiceB, nil)
	assert.Zero(t, pipeline.Voice().Len())
}

func TestMemberJoinRecordsJoinDate(t *testing.T) {
	l, stores, _ := newListeners(t)
	joined := now.Add(-time.Minute)

	l.OnMemberJoin(&events.GuildMemberJoin{
		GenericGuildMember: &events.GenericGuildMember{
			GuildID: guildID,
			Member:  discord.Member{User: alice(), JoinedAt: joined},
		},
	})

	user, err := stores.Users.Get(context.Background(), aliceID.String())
	require.NoError(t, err)
	require.NotNil(t, user.JoinedAt)
	assert.True(t, user.JoinedAt.Equal(joined))
}

func TestRunRecoversPanics(t *testing.T) {
	l, _, _ := newListeners(t)
	assert.NotPanics(t, func() {
		l.run("test", func(context.Context) { panic("boom") })
	})
}

func TestResumeVoiceStartsEachMember(t *testing.T) {
	l, stores, pipeline := newListeners(t)
	ctx := context.Background()
	voiceA := snowflake.ID(5000)
	bobID, botID, ghostID := snowflake.ID(3001), snowflake.ID(3002), snowflake.ID(3003)
	require.NoError(t, stores.Users.Create(ctx, &models.User{ID: aliceID.String(), DisplayName: "alice", Level: 1, VoiceTime: 9}))

	members := map[snowflake.ID]discord.Member{
		aliceID: {User: alice()},
		bobID:   {User: discord.User{ID: bobID, Username: "bob"}},
		botID:   {User: discord.User{ID: botID, Username: "beep", Bot: true}},
	}
	states := []discord.VoiceState{
		{GuildID: guildID, UserID: aliceID, ChannelID: &voiceA},
		{GuildID: guildID, UserID: bobID, ChannelID: &voiceA},
		{GuildID: guildID, UserID: botID, ChannelID: &voiceA},
		{GuildID: guildID, UserID: ghostID, ChannelID: &voiceA},
	}

	resumed := l.resumeVoice(states, func(id snowflake.ID) (discord.Member, bool) {
		m, ok := members[id]
		return m, ok
	})

	assert.Equal(t, 2, resumed)
	assert.ElementsMatch(t, []string{aliceID.String(), bobID.String()}, pipeline.Voice().Connected())
	user, err := stores.Users.Get(ctx, aliceID.String())
	require.NoError(t, err)
	assert.Zero(t, user.VoiceTime)
	_, err = stores.Users.Get(ctx, bobID.String())
	assert.NoError(t, err)
}
