package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/handler"
	"github.com/redis/go-redis/v9"

	"github.com/disgoorg/levelbot/levelbot"
	"github.com/disgoorg/levelbot/levelbot/activity"
	"github.com/disgoorg/levelbot/levelbot/archive"
	"github.com/disgoorg/levelbot/levelbot/challenges"
	"github.com/disgoorg/levelbot/levelbot/commands"
	"github.com/disgoorg/levelbot/levelbot/database"
	"github.com/disgoorg/levelbot/levelbot/database/memstore"
	"github.com/disgoorg/levelbot/levelbot/database/models"
	"github.com/disgoorg/levelbot/levelbot/database/mongostore"
	"github.com/disgoorg/levelbot/levelbot/database/repositories"
	"github.com/disgoorg/levelbot/levelbot/events"
	"github.com/disgoorg/levelbot/levelbot/handlers"
	"github.com/disgoorg/levelbot/levelbot/leaderboard"
	"github.com/disgoorg/levelbot/levelbot/leveling"
	"github.com/disgoorg/levelbot/levelbot/logger"
	"github.com/disgoorg/levelbot/levelbot/maintenance"
	"github.com/disgoorg/levelbot/levelbot/multiplier"
	"github.com/disgoorg/levelbot/levelbot/notify"
	"github.com/disgoorg/levelbot/levelbot/settings"
	"github.com/disgoorg/levelbot/levelbot/voice"
)

var (
	version = "dev"
	commit  = "unknown"
)

const shutdownTimeout = 10 * time.Second

func fatal(msg string, component string, err error) {
	slog.Error(msg,
		slog.String("type", "sys"),
		slog.Any("error", err),
		slog.String("error_details", fmt.Sprintf("%+v", err)),
		slog.String("component", component),
		slog.String("status", "failed"),
	)
	os.Exit(-1)
}

func main() {
	slog.SetDefault(slog.New(logger.NewHandler(slog.LevelInfo)))

	shouldSyncCommands := flag.Bool("sync-commands", false, "Whether to sync commands to discord")
	path := flag.String("config", "config.toml", "path to config")
	flag.Parse()

	cfg, err := levelbot.LoadConfig(*path)
	if err != nil {
		fatal("Failed to load configuration", "config", err)
	}
	slog.SetDefault(slog.New(logger.NewHandler(logger.ParseLevel(cfg.Log.Level))))

	slog.Info("Starting level bot",
		slog.String("type", "sys"),
		slog.String("version", version),
		slog.String("commit", commit),
		slog.String("backend", cfg.Backend))

	loc, err := cfg.Location()
	if err != nil {
		fatal("Failed to load timezone", "config", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	stores, closeStores, err := openStores(ctx, cfg)
	if err != nil {
		fatal("Failed to open storage", "database", err)
	}
	defer closeStores()

	if err = stores.Challenges.Seed(ctx, models.DefaultChallenges()); err != nil {
		fatal("Failed to seed challenges", "database", err)
	}

	var mirror *leaderboard.RedisMirror
	if cfg.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rdb.AddHook(logger.NewRedisHook())
		defer rdb.Close()
		if err = rdb.Ping(ctx).Err(); err != nil {
			fatal("Failed to connect to redis", "redis", err)
		}
		mirror = leaderboard.NewRedisMirror(rdb, cfg.Redis.Prefix)
	}
	board := leaderboard.NewBoard(stores.Users, mirror)
	if err = board.Warm(ctx); err != nil {
		slog.Warn("Failed to warm leaderboard mirror",
			slog.String("type", "sys"),
			slog.Any("error", err))
	}

	s := settings.New(stores.Config)
	resolver := multiplier.NewResolver(stores, s, loc)
	engine, err := leveling.NewService(leveling.NewDefaultConfig(), stores, s, resolver, loc)
	if err != nil {
		fatal("Failed to build leveling engine", "leveling", err)
	}
	tracker := challenges.NewTracker(stores.Challenges, loc)

	b := levelbot.New(*cfg, version, commit)
	b.Stores = stores

	h := handler.New()
	if err = b.SetupBot(h, bot.NewListenerFunc(b.OnReady)); err != nil {
		fatal("Failed to setup bot", "bot_setup", err)
	}
	defer b.Close(shutdownTimeout)

	notifier := notify.NewNotifier(notify.NewDiscordPlatform(b.Client, cfg.Bot.GuildID), stores, s)
	manager := events.NewManager(stores.Events, notifier)
	pipeline := activity.NewPipeline(engine, stores, s, tracker, voice.NewTracker(), board, notifier, loc)

	b.Deps = &commands.Deps{
		Stores:     stores,
		Settings:   s,
		Resolver:   resolver,
		Events:     manager,
		Challenges: tracker,
		Board:      board,
		Activity:   pipeline,
		Loc:        loc,
	}
	handlers.Register(h, b.Deps, b.Paginator)
	b.Client.AddEventListeners(handlers.NewListeners(cfg.Bot.GuildID, pipeline).Adapter())

	deps := maintenance.Deps{
		Stores:      stores,
		Events:      manager,
		Voice:       pipeline.Voice(),
		Anniversary: pipeline,
		Board:       board,
	}
	if cfg.Archive.Enabled() {
		client, err := archive.NewS3Client(ctx, cfg.Archive)
		if err != nil {
			fatal("Failed to create archive client", "archive", err)
		}
		deps.Archive = archive.NewArchiver(client, cfg.Archive.Bucket, cfg.Archive.Prefix, board)
	}
	b.Scheduler = maintenance.NewScheduler(deps, loc)
	if err = b.Scheduler.Start(); err != nil {
		fatal("Failed to start scheduler", "maintenance", err)
	}

	if *shouldSyncCommands {
		guilds := cfg.Bot.DevGuilds
		if len(guilds) == 0 {
			guilds = append(guilds, cfg.Bot.GuildID)
		}
		slog.Info("Syncing commands",
			slog.String("type", "sys"),
			slog.Any("guild_ids", guilds),
		)
		if err = handler.SyncCommands(b.Client, commands.Definitions(), guilds); err != nil {
			slog.Error("Failed to sync commands",
				slog.String("type", "sys"),
				slog.Any("error", err),
				slog.String("component", "command_sync"),
				slog.String("status", "failed"),
			)
		}
	}

	gatewayCtx, gatewayCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer gatewayCancel()
	if err = b.Client.OpenGateway(gatewayCtx); err != nil {
		fatal("Failed to open gateway", "gateway", err)
	}

	slog.Info("Bot is running. Press CTRL-C to exit.", slog.String("type", "sys"))
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	slog.Info("Shutting down bot...", slog.String("type", "sys"))
}

// openStores connects the configured backend and returns its repositories
// with a function that releases the connection.
func openStores(ctx context.Context, cfg *levelbot.Config) (*repositories.Stores, func(), error) {
	switch cfg.Backend {
	case levelbot.BackendMongo:
		db, err := database.NewMongo(ctx, cfg.Mongo)
		if err != nil {
			return nil, nil, err
		}
		if err = database.InitializeMongoSchema(ctx, db); err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := db.Client().Disconnect(ctx); err != nil {
				slog.Error("Failed to disconnect from mongo", slog.Any("error", err))
			}
		}
		return mongostore.NewStores(db), closeFn, nil

	case levelbot.BackendMemory:
		slog.Warn("Using the in-memory backend, nothing will be persisted", slog.String("type", "sys"))
		return memstore.New(), func() {}, nil

	default:
		start := time.Now()
		db, err := database.New(ctx, cfg.DB)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("Database connected successfully",
			slog.String("type", "db"),
			slog.String("database", cfg.DB.Database),
			slog.Duration("took", time.Since(start)))
		if err = db.InitializeSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return repositories.NewStores(db.BunDB()), db.Close, nil
	}
}
