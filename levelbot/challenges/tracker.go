// Package challenges tracks daily challenge progress. Progress is scoped to a
// calendar day in the configured timezone.
package challenges

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/levelbot/levelbot/database/models"
	"github.com/disgoorg/levelbot/levelbot/database/repositories"
	"github.com/disgoorg/levelbot/levelbot/streak"
)

// Status pairs a challenge with the caller's progress for today.
type Status struct {
	Challenge *models.Challenge
	Progress  int64
	Completed bool
	Claimed   bool
}

type Tracker struct {
	repo repositories.ChallengeRepository
	loc  *time.Location

	// Now is replaced by tests.
	Now func() time.Time
}

func NewTracker(repo repositories.ChallengeRepository, loc *time.Location) *Tracker {
	if loc == nil {
		loc = time.UTC
	}
	return &Tracker{repo: repo, loc: loc, Now: time.Now}
}

func (t *Tracker) today() string {
	return t.Now().In(t.loc).Format(streak.DayLayout)
}

// Record adds amount to every active challenge of kind and claims the ones
// that completed. A challenge is returned at most once per user and day, the
// caller grants its reward.
func (t *Tracker) Record(ctx context.Context, userID string, kind models.ChallengeKind, amount int64) ([]*models.Challenge, error) {
	if amount <= 0 {
		return nil, nil
	}
	active, err := t.repo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}

	day := t.today()
	var claimed []*models.Challenge
	for _, c := range active {
		if c.Kind != kind {
			continue
		}
		progress, err := t.repo.Increment(ctx, userID, c, day, amount)
		if err != nil {
			return claimed, fmt.Errorf("failed to record progress on %s: %w", c.ID, err)
		}
		if !progress.Completed || progress.Claimed {
			continue
		}
		ok, err := t.repo.Claim(ctx, userID, c.ID, day)
		if err != nil {
			return claimed, fmt.Errorf("failed to claim %s: %w", c.ID, err)
		}
		if ok {
			claimed = append(claimed, c)
		}
	}
	return claimed, nil
}

// Statuses lists every active challenge with today's progress of userID.
func (t *Tracker) Statuses(ctx context.Context, userID string) ([]Status, error) {
	active, err := t.repo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}
	progress, err := t.repo.Progress(ctx, userID, t.today())
	if err != nil {
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}

	byID := make(map[string]*models.UserChallengeProgress, len(progress))
	for _, p := range progress {
		byID[p.ChallengeID] = p
	}

	statuses := make([]Status, 0, len(active))
	for _, c := range active {
		s := Status{Challenge: c}
		if p, ok := byID[c.ID]; ok {
			s.Progress = p.Progress
			s.Completed = p.Completed
			s.Claimed = p.Claimed
		}
		statuses = append(statuses, s)
	}
	return statuses, nil
}

func (t *Tracker) Active(ctx context.Context) ([]*models.Challenge, error) {
	return t.repo.ListActive(ctx)
}
