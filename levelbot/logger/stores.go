package logger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/event"
)

const slowCommand = 200 * time.Millisecond

// NewMongoMonitor logs failed and slow document store commands.
func NewMongoMonitor() *event.CommandMonitor {
	return &event.CommandMonitor{
		Succeeded: func(ctx context.Context, evt *event.CommandSucceededEvent) {
			attrs := []any{
				slog.String("type", "db"),
				slog.String("command", evt.CommandName),
				slog.Duration("took", evt.Duration),
				slog.String("request_id", fmt.Sprintf("%d", evt.RequestID)),
			}
			if evt.Duration > slowCommand {
				slog.WarnContext(ctx, "Slow MongoDB command", attrs...)
				return
			}
			slog.DebugContext(ctx, "MongoDB command", attrs...)
		},
		Failed: func(ctx context.Context, evt *event.CommandFailedEvent) {
			slog.ErrorContext(ctx, "MongoDB command failed",
				slog.String("type", "db"),
				slog.String("command", evt.CommandName),
				slog.Duration("took", evt.Duration),
				slog.String("error", evt.Failure),
			)
		},
	}
}

type RedisHook struct{}

func NewRedisHook() *RedisHook {
	return &RedisHook{}
}

func (RedisHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (RedisHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		elapsed := time.Since(start)

		if err != nil && !errors.Is(err, redis.Nil) {
			slog.ErrorContext(ctx, "Redis command failed",
				slog.String("type", "db"),
				slog.String("command", cmd.Name()),
				slog.Duration("took", elapsed),
				slog.Any("error", err))
		} else if elapsed > slowCommand {
			slog.WarnContext(ctx, "Slow Redis command",
				slog.String("type", "db"),
				slog.String("command", cmd.Name()),
				slog.Duration("took", elapsed))
		}
		return err
	}
}

func (RedisHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		if err != nil {
			slog.ErrorContext(ctx, "Redis pipeline failed",
				slog.String("type", "db"),
				slog.Int("commands", len(cmds)),
				slog.Any("error", err))
		}
		return err
	}
}
