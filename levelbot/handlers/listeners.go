package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"

	"github.com/disgoorg/levelbot/levelbot/activity"
	"github.com/disgoorg/levelbot/levelbot/logger"
)

const eventTimeout = 5 * time.Second

// Listeners feeds gateway events of one guild into the activity pipeline.
type Listeners struct {
	guildID  snowflake.ID
	pipeline *activity.Pipeline
}

func NewListeners(guildID snowflake.ID, pipeline *activity.Pipeline) *Listeners {
	return &Listeners{guildID: guildID, pipeline: pipeline}
}

// Adapter returns the listeners as a disgo event listener.
func (l *Listeners) Adapter() bot.EventListener {
	return &events.ListenerAdapter{
		OnGuildReady:              l.OnGuildReady,
		OnGuildMessageCreate:      l.OnMessageCreate,
		OnGuildVoiceStateUpdate:   l.OnVoiceStateUpdate,
		OnGuildMessageReactionAdd: l.OnReactionAdd,
		OnGuildMemberJoin:         l.OnMemberJoin,
	}
}

// run gives fn a bounded context and keeps a panic from taking down the
// gateway goroutine.
func (l *Listeners) run(name string, fn func(ctx context.Context)) {
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Event handler panic",
				slog.String("type", "sys"),
				slog.String("event", name),
				slog.Any("panic", r))
		}
	}()
	fn(ctx)
}

func roleIDs(ids []snowflake.ID) []string {
	roles := make([]string, len(ids))
	for i, id := range ids {
		roles[i] = id.String()
	}
	return roles
}

func displayName(user discord.User, nick *string) string {
	if nick != nil && *nick != "" {
		return *nick
	}
	return user.EffectiveName()
}

func memberOf(m discord.Member, channelID *snowflake.ID) activity.Member {
	member := activity.Member{
		UserID:      m.User.ID.String(),
		DisplayName: displayName(m.User, m.Nick),
		AvatarURL:   m.User.EffectiveAvatarURL(),
		Roles:       roleIDs(m.RoleIDs),
		Bot:         m.User.Bot,
	}
	if channelID != nil {
		member.ChannelID = channelID.String()
	}
	return member
}

// OnGuildReady starts sessions for members already in voice when the bot
// connects. Members and voice states are cached before the event fires.
func (l *Listeners) OnGuildReady(e *events.GuildReady) {
	if e.GuildID != l.guildID {
		return
	}
	caches := e.Client().Caches()
	var states []discord.VoiceState
	caches.VoiceStatesForEach(e.GuildID, func(vs discord.VoiceState) {
		states = append(states, vs)
	})
	resumed := l.resumeVoice(states, func(userID snowflake.ID) (discord.Member, bool) {
		return caches.Member(e.GuildID, userID)
	})
	logger.LogSystem("Guild ready",
		slog.String("guild_id", e.GuildID.String()),
		slog.Int("voice_sessions", resumed))
}

// resumeVoice opens a session for every connected human member and returns
// how many it opened.
func (l *Listeners) resumeVoice(states []discord.VoiceState, member func(snowflake.ID) (discord.Member, bool)) int {
	resumed := 0
	for _, vs := range states {
		m, ok := member(vs.UserID)
		if !ok || vs.ChannelID == nil || m.User.Bot {
			continue
		}
		am := memberOf(m, vs.ChannelID)
		// One timeout per member.
		l.run("guild_ready", func(ctx context.Context) {
			l.pipeline.OnVoiceJoin(ctx, am)
		})
		resumed++
	}
	return resumed
}

func (l *Listeners) OnMessageCreate(e *events.GuildMessageCreate) {
	msg := e.Message
	if e.GuildID != l.guildID || msg.Author.Bot || msg.WebhookID != nil {
		return
	}
	m := activity.Member{
		UserID:      msg.Author.ID.String(),
		DisplayName: msg.Author.EffectiveName(),
		AvatarURL:   msg.Author.EffectiveAvatarURL(),
		ChannelID:   e.ChannelID.String(),
	}
	if msg.Member != nil {
		m.DisplayName = displayName(msg.Author, msg.Member.Nick)
		m.Roles = roleIDs(msg.Member.RoleIDs)
	}
	l.run("message_create", func(ctx context.Context) {
		l.pipeline.OnMessage(ctx, m, msg.Content)
	})
}

func (l *Listeners) OnVoiceStateUpdate(e *events.GuildVoiceStateUpdate) {
	vs := e.VoiceState
	if vs.GuildID != l.guildID || e.Member.User.Bot {
		return
	}
	before, after := e.OldVoiceState.ChannelID, vs.ChannelID
	l.run("voice_state_update", func(ctx context.Context) {
		switch {
		case after == nil && before != nil:
			l.pipeline.OnVoiceLeave(ctx, vs.UserID.String())
		case after != nil && (before == nil || *before != *after):
			l.pipeline.OnVoiceJoin(ctx, memberOf(e.Member, after))
		}
	})
}

// OnReactionAdd credits the author of the message that was reacted to.
// Reactions to one's own message do not count.
func (l *Listeners) OnReactionAdd(e *events.GuildMessageReactionAdd) {
	if e.GuildID != l.guildID || e.Member.User.Bot {
		return
	}
	l.run("reaction_add", func(ctx context.Context) {
		msg, err := e.Client().Rest().GetMessage(e.ChannelID, e.MessageID, rest.WithCtx(ctx))
		if err != nil {
			logger.LogError("Failed to fetch reacted message", err,
				"channel_id", e.ChannelID.String(),
				"message_id", e.MessageID.String())
			return
		}
		if msg.Author.Bot || msg.Author.ID == e.UserID {
			return
		}

		author := activity.Member{
			UserID:      msg.Author.ID.String(),
			DisplayName: msg.Author.EffectiveName(),
			AvatarURL:   msg.Author.EffectiveAvatarURL(),
			ChannelID:   e.ChannelID.String(),
		}
		if m, ok := e.Client().Caches().Member(e.GuildID, msg.Author.ID); ok {
			author.DisplayName = displayName(msg.Author, m.Nick)
			author.Roles = roleIDs(m.RoleIDs)
		}
		l.pipeline.OnReaction(ctx, author)
	})
}

func (l *Listeners) OnMemberJoin(e *events.GuildMemberJoin) {
	if e.GuildID != l.guildID || e.Member.User.Bot {
		return
	}
	l.run("member_join", func(ctx context.Context) {
		l.pipeline.OnMemberJoin(ctx, memberOf(e.Member, nil), e.Member.JoinedAt)
	})
}
