// Package levelbot wires the Discord client to the leveling system.
package levelbot

import (
	"context"
	"log/slog"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/paginator"

	"github.com/disgoorg/levelbot/levelbot/commands"
	"github.com/disgoorg/levelbot/levelbot/database/repositories"
	"github.com/disgoorg/levelbot/levelbot/maintenance"
)

const defaultActivity = "your messages | /help"

func New(cfg Config, version string, commit string) *Bot {
	return &Bot{
		Cfg:       cfg,
		Paginator: paginator.New(),
		Version:   version,
		Commit:    commit,
	}
}

type Bot struct {
	Cfg       Config
	Client    bot.Client
	Paginator *paginator.Manager
	Version   string
	Commit    string
	Stores    *repositories.Stores
	Deps      *commands.Deps
	Scheduler *maintenance.Scheduler
}

func (b *Bot) SetupBot(listeners ...bot.EventListener) error {
	client, err := disgo.New(b.Cfg.Bot.Token,
		bot.WithGatewayConfigOpts(gateway.WithIntents(
			gateway.IntentGuilds,
			gateway.IntentGuildMembers,
			gateway.IntentGuildMessages,
			gateway.IntentMessageContent,
			gateway.IntentGuildVoiceStates,
			gateway.IntentGuildMessageReactions,
		)),
		bot.WithCacheConfigOpts(cache.WithCaches(cache.FlagGuilds, cache.FlagMembers, cache.FlagRoles, cache.FlagVoiceStates)),
		bot.WithEventListeners(b.Paginator),
		bot.WithEventListeners(listeners...),
	)
	if err != nil {
		return err
	}

	b.Client = client
	return nil
}

func (b *Bot) OnReady(_ *events.Ready) {
	slog.Info("Level bot is now ready",
		slog.String("type", "sys"),
		slog.String("version", b.Version),
		slog.String("commit", b.Commit))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	activity := b.Cfg.Bot.Activity
	if activity == "" {
		activity = defaultActivity
	}
	if err := b.Client.SetPresence(ctx,
		gateway.WithListeningActivity(activity),
		gateway.WithOnlineStatus(discord.OnlineStatusOnline)); err != nil {
		slog.Error("Failed to set presence", slog.Any("error", err))
	}
}

// Close stops the scheduler and the gateway.
func (b *Bot) Close(timeout time.Duration) {
	if b.Scheduler != nil {
		if err := b.Scheduler.Stop(timeout); err != nil {
			slog.Error("Failed to stop scheduler", slog.Any("error", err))
		}
	}
	if b.Client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		b.Client.Close(ctx)
	}
}
