package leaderboard

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/disgoorg/levelbot/levelbot/database/repositories"
)

const DefaultKeyPrefix = "levelbot:lb:"

type UserScore struct {
	UserID string
	Score  int64
}

// RedisMirror keeps one sorted set per period, scored by XP.
type RedisMirror struct {
	client *redis.Client
	prefix string
}

func NewRedisMirror(client *redis.Client, prefix string) *RedisMirror {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisMirror{client: client, prefix: prefix}
}

func (m *RedisMirror) Key(period repositories.Period) string {
	return m.prefix + string(period)
}

func (m *RedisMirror) Add(ctx context.Context, userID string, amount int64, periods ...repositories.Period) error {
	pipe := m.client.TxPipeline()
	for _, p := range periods {
		pipe.ZIncrBy(ctx, m.Key(p), float64(amount), userID)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (m *RedisMirror) Top(ctx context.Context, period repositories.Period, limit int) ([]UserScore, error) {
	zs, err := m.client.ZRevRangeWithScores(ctx, m.Key(period), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	scores := make([]UserScore, 0, len(zs))
	for _, z := range zs {
		id, ok := z.Member.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected member type %T", z.Member)
		}
		scores = append(scores, UserScore{UserID: id, Score: int64(z.Score)})
	}
	return scores, nil
}

func (m *RedisMirror) Clear(ctx context.Context, period repositories.Period) error {
	return m.client.Del(ctx, m.Key(period)).Err()
}

func (m *RedisMirror) Remove(ctx context.Context, userID string, periods ...repositories.Period) error {
	pipe := m.client.TxPipeline()
	for _, p := range periods {
		pipe.ZRem(ctx, m.Key(p), userID)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Replace swaps the whole set of a period in one transaction.
func (m *RedisMirror) Replace(ctx context.Context, period repositories.Period, scores []UserScore) error {
	key := m.Key(period)
	pipe := m.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(scores) > 0 {
		members := make([]redis.Z, 0, len(scores))
		for _, s := range scores {
			members = append(members, redis.Z{Score: float64(s.Score), Member: s.UserID})
		}
		pipe.ZAdd(ctx, key, members...)
	}
	_, err := pipe.Exec(ctx)
	return err
}
