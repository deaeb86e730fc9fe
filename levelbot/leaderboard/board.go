// Package leaderboard serves ranked standings. Reads come from the record
// store unless a Redis mirror is configured.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/disgoorg/levelbot/levelbot/database/models"
	"github.com/disgoorg/levelbot/levelbot/database/repositories"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
	// warmLimit bounds how many users are copied into the mirror on start.
	warmLimit = 1000
)

var Periods = []repositories.Period{
	repositories.PeriodTotal,
	repositories.PeriodWeekly,
	repositories.PeriodMonthly,
}

type Entry struct {
	Rank        int
	UserID      string
	DisplayName string
	Level       int
	Score       int64
}

type Board struct {
	users  repositories.UserRepository
	mirror *RedisMirror
}

// NewBoard returns a store-backed board. mirror may be nil.
func NewBoard(users repositories.UserRepository, mirror *RedisMirror) *Board {
	return &Board{users: users, mirror: mirror}
}

// Score returns the counter that orders period.
func Score(u *models.User, period repositories.Period) int64 {
	switch period {
	case repositories.PeriodWeekly:
		return u.WeeklyXP
	case repositories.PeriodMonthly:
		return u.MonthlyXP
	default:
		return u.TotalXPEarned
	}
}

func (b *Board) Top(ctx context.Context, period repositories.Period, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)

	if b.mirror != nil {
		entries, err := b.fromMirror(ctx, period, limit)
		if err == nil && len(entries) > 0 {
			return entries, nil
		}
		if err != nil {
			slog.Warn("Leaderboard mirror unavailable, reading store",
				slog.String("type", "db"),
				slog.String("period", string(period)),
				slog.Any("error", err))
		}
	}

	users, err := b.users.Top(ctx, period, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}
	entries := make([]Entry, 0, len(users))
	for _, u := range users {
		score := Score(u, period)
		if score <= 0 {
			continue
		}
		entries = append(entries, Entry{
			Rank:        len(entries) + 1,
			UserID:      u.ID,
			DisplayName: u.DisplayName,
			Level:       u.Level,
			Score:       score,
		})
	}
	return entries, nil
}

func (b *Board) fromMirror(ctx context.Context, period repositories.Period, limit int) ([]Entry, error) {
	scores, err := b.mirror.Top(ctx, period, limit)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(scores))
	for _, s := range scores {
		u, err := b.users.Get(ctx, s.UserID)
		if errors.Is(err, repositories.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{
			Rank:        len(entries) + 1,
			UserID:      u.ID,
			DisplayName: u.DisplayName,
			Level:       u.Level,
			Score:       s.Score,
		})
	}
	return entries, nil
}

// Rank is the 1-based position of userID by lifetime XP.
func (b *Board) Rank(ctx context.Context, userID string) (int64, error) {
	return b.users.Rank(ctx, userID)
}

// Record mirrors one applied award. Mirror failures are logged only.
func (b *Board) Record(ctx context.Context, userID string, granted int64, period bool) {
	if b.mirror == nil || granted <= 0 {
		return
	}
	periods := []repositories.Period{repositories.PeriodTotal}
	if period {
		periods = append(periods, repositories.PeriodWeekly, repositories.PeriodMonthly)
	}
	if err := b.mirror.Add(ctx, userID, granted, periods...); err != nil {
		slog.Warn("Failed to mirror award",
			slog.String("type", "db"),
			slog.String("user_id", userID),
			slog.Any("error", err))
	}
}

// Reset clears the mirrored standings of a period after its store reset.
func (b *Board) Reset(ctx context.Context, period repositories.Period) error {
	if b.mirror == nil {
		return nil
	}
	return b.mirror.Clear(ctx, period)
}

// Forget drops a user from every mirrored board.
func (b *Board) Forget(ctx context.Context, userID string) error {
	if b.mirror == nil {
		return nil
	}
	return b.mirror.Remove(ctx, userID, Periods...)
}

// Warm rebuilds the mirror from the store.
func (b *Board) Warm(ctx context.Context) error {
	if b.mirror == nil {
		return nil
	}
	for _, period := range Periods {
		users, err := b.users.Top(ctx, period, warmLimit)
		if err != nil {
			return fmt.Errorf("failed to load %s standings: %w", period, err)
		}
		scores := make([]UserScore, 0, len(users))
		for _, u := range users {
			if s := Score(u, period); s > 0 {
				scores = append(scores, UserScore{UserID: u.ID, Score: s})
			}
		}
		if err = b.mirror.Replace(ctx, period, scores); err != nil {
			return fmt.Errorf("failed to warm %s mirror: %w", period, err)
		}
	}
	return nil
}
