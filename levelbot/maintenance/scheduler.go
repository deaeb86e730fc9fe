// Package maintenance runs the periodic jobs that mutate user records outside
// of awards: rolling window resets, inactivity decay, join anniversaries, the
// voice minute tick and event expiry.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/disgoorg/levelbot/levelbot/database/models"
	"github.com/disgoorg/levelbot/levelbot/database/repositories"
	"github.com/disgoorg/levelbot/levelbot/logger"
)

const (
	EveryMinute = "0 * * * * *"

	JobRollover    = "rollover"
	JobVoiceTick   = "voice_tick"
	JobEventExpiry = "event_expiry"
)

type EventExpirer interface {
	ExpireDue(ctx context.Context) (bool, error)
}

type VoiceRoster interface {
	Connected() []string
}

type AnniversaryGranter interface {
	Anniversary(ctx context.Context, user *models.User) error
}

type WeeklyArchiver interface {
	ArchiveWeekly(ctx context.Context, day string) (string, error)
}

type BoardResetter interface {
	Reset(ctx context.Context, period repositories.Period) error
}

// Deps are the collaborators of the jobs. Archive and Board may be nil.
type Deps struct {
	Stores      *repositories.Stores
	Events      EventExpirer
	Voice       VoiceRoster
	Anniversary AnniversaryGranter
	Archive     WeeklyArchiver
	Board       BoardResetter
}

type Scheduler struct {
	deps Deps
	loc  *time.Location
	cron *cron.Cron

	ctx    context.Context
	cancel context.CancelFunc

	// Now is replaced by tests.
	Now func() time.Time
}

func NewScheduler(deps Deps, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		deps: deps,
		loc:  loc,
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(loc),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		ctx:    ctx,
		cancel: cancel,
		Now:    time.Now,
	}
}

// Start registers every job and starts the cron engine.
func (s *Scheduler) Start() error {
	jobs := []struct {
		name    string
		timeout time.Duration
		fn      func(ctx context.Context) error
	}{
		{JobRollover, 2 * time.Minute, s.Rollover},
		{JobVoiceTick, 30 * time.Second, s.VoiceTick},
		{JobEventExpiry, 30 * time.Second, s.ExpireEvents},
	}
	for _, j := range jobs {
		if _, err := s.cron.AddFunc(EveryMinute, s.wrap(j.name, j.timeout, j.fn)); err != nil {
			return fmt.Errorf("failed to register %s: %w", j.name, err)
		}
	}
	s.cron.Start()
	logger.LogSystem("Maintenance scheduler started",
		slog.Int("jobs", len(jobs)),
		slog.String("timezone", s.loc.String()))
	return nil
}

// Stop cancels running jobs and waits for them up to timeout.
func (s *Scheduler) Stop(timeout time.Duration) error {
	s.cancel()
	stopped := s.cron.Stop()

	select {
	case <-stopped.Done():
		logger.LogSystem("Maintenance scheduler stopped")
		return nil
	case <-time.After(timeout):
		slog.Warn("Timeout waiting for maintenance jobs to stop",
			slog.Duration("timeout", timeout))
		return context.DeadlineExceeded
	}
}

// wrap bounds a job by timeout, recovers its panics and logs the outcome.
func (s *Scheduler) wrap(name string, timeout time.Duration, fn func(ctx context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(s.ctx, timeout)
		defer cancel()

		start := time.Now()
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
				slog.Error("Maintenance job panic",
					slog.String("type", "error"),
					slog.String("job", name),
					slog.String("stack", string(debug.Stack())))
			}
			if err != nil {
				logger.LogJob(name, time.Since(start), err)
			}
		}()
		err = fn(ctx)
	}
}

func (s *Scheduler) VoiceTick(ctx context.Context) error {
	ids := s.deps.Voice.Connected()
	if len(ids) == 0 {
		return nil
	}
	return s.deps.Stores.Users.IncrementVoiceTime(ctx, ids, 1)
}

func (s *Scheduler) ExpireEvents(ctx context.Context) error {
	_, err := s.deps.Events.ExpireDue(ctx)
	return err
}
