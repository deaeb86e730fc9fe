package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/disgoorg/levelbot/levelbot/database/repositories"
	"github.com/disgoorg/levelbot/levelbot/logger"
	"github.com/disgoorg/levelbot/levelbot/streak"
)

const (
	MarkerWeekly      = "weekly_reset"
	MarkerMonthly     = "monthly_reset"
	MarkerDaily       = "daily_reset"
	MarkerDecay       = "decay"
	MarkerAnniversary = "anniversary"

	DecayFactor   = 0.95
	InactiveAfter = 30 * 24 * time.Hour
)

type step struct {
	marker string
	due    func(now time.Time) bool
	run    func(ctx context.Context, now time.Time, day string) error
}

func (s *Scheduler) steps() []step {
	always := func(time.Time) bool { return true }
	return []step{
		{MarkerWeekly, func(now time.Time) bool { return now.Weekday() == time.Monday }, s.resetWeekly},
		{MarkerMonthly, func(now time.Time) bool { return now.Day() == 1 }, s.resetMonthly},
		{MarkerDaily, always, s.resetDaily},
		{MarkerDecay, always, s.decay},
		{MarkerAnniversary, always, s.anniversaries},
	}
}

// Rollover runs every calendar step that is due today and has not run yet.
// A step's marker is only written after it succeeds, so a failed step is
// retried on the next run. One step failing does not stop the others.
func (s *Scheduler) Rollover(ctx context.Context) error {
	now := s.Now().In(s.loc)
	day := now.Format(streak.DayLayout)

	var errs []error
	for _, st := range s.steps() {
		if !st.due(now) {
			continue
		}
		last, err := s.deps.Stores.Markers.Get(ctx, st.marker)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s marker: %w", st.marker, err))
			continue
		}
		if last == day {
			continue
		}
		if err = st.run(ctx, now, day); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", st.marker, err))
			continue
		}
		if err = s.deps.Stores.Markers.Set(ctx, st.marker, day); err != nil {
			errs = append(errs, fmt.Errorf("%s marker: %w", st.marker, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Scheduler) resetWeekly(ctx context.Context, _ time.Time, day string) error {
	if s.deps.Archive != nil {
		key, err := s.deps.Archive.ArchiveWeekly(ctx, day)
		if err != nil {
			logger.LogError("Failed to archive weekly standings", err, slog.String("day", day))
		} else if key != "" {
			logger.LogSystem("Weekly standings archived", slog.String("key", key))
		}
	}

	n, err := s.deps.Stores.Users.ResetWeekly(ctx)
	if err != nil {
		return err
	}
	logger.LogSystem("Weekly XP reset", slog.Int64("users", n))
	return s.resetBoard(ctx, repositories.PeriodWeekly)
}

func (s *Scheduler) resetMonthly(ctx context.Context, _ time.Time, _ string) error {
	n, err := s.deps.Stores.Users.ResetMonthly(ctx)
	if err != nil {
		return err
	}
	logger.LogSystem("Monthly XP reset", slog.Int64("users", n))
	return s.resetBoard(ctx, repositories.PeriodMonthly)
}

func (s *Scheduler) resetDaily(ctx context.Context, _ time.Time, _ string) error {
	n, err := s.deps.Stores.Users.ResetDaily(ctx)
	if err != nil {
		return err
	}
	slog.Debug("Daily XP reset", slog.String("type", "job"), slog.Int64("users", n))
	return nil
}

func (s *Scheduler) resetBoard(ctx context.Context, period repositories.Period) error {
	if s.deps.Board == nil {
		return nil
	}
	if err := s.deps.Board.Reset(ctx, period); err != nil {
		logger.LogError("Failed to reset leaderboard mirror", err, slog.String("period", string(period)))
	}
	return nil
}

func (s *Scheduler) decay(ctx context.Context, now time.Time, _ string) error {
	n, err := s.deps.Stores.Users.ApplyDecay(ctx, now.Add(-InactiveAfter), DecayFactor)
	if err != nil {
		return err
	}
	if n > 0 {
		logger.LogSystem("Inactivity decay applied", slog.Int64("users", n))
	}
	return nil
}

// anniversaries grants the bonus to members whose join date matches today in
// a later year. Individual failures are logged and skipped.
func (s *Scheduler) anniversaries(ctx context.Context, now time.Time, _ string) error {
	if s.deps.Anniversary == nil {
		return nil
	}
	users, err := s.deps.Stores.Users.ListJoined(ctx)
	if err != nil {
		return err
	}
	granted := 0
	for _, u := range users {
		joined := u.JoinedAt.In(s.loc)
		if joined.Year() >= now.Year() || joined.Month() != now.Month() || joined.Day() != now.Day() {
			continue
		}
		if err = s.deps.Anniversary.Anniversary(ctx, u); err != nil {
			logger.LogError("Failed to grant anniversary bonus", err, slog.String("user_id", u.ID))
			continue
		}
		granted++
	}
	if granted > 0 {
		logger.LogSystem("Join anniversaries celebrated", slog.Int("users", granted))
	}
	return nil
}
