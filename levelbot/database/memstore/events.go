package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/disgoorg/levelbot/levelbot/database/models"
	"github.com/disgoorg/levelbot/levelbot/database/repositories"
)

type eventRepo struct {
	mu     sync.Mutex
	events []*models.Event
}

func NewEventRepository() repositories.EventRepository {
	return &eventRepo{}
}

// Insert mirrors the single-active-event unique index of the real backends.
func (r *eventRepo) Insert(_ context.Context, event *models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.ID == event.ID || (event.Active && e.Active) {
			return repositories.ErrConflict
		}
	}
	c := *event
	r.events = append(r.events, &c)
	return nil
}

func (r *eventRepo) FindActive(_ context.Context) (*models.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.Active {
			c := *e
			return &c, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *eventRepo) MarkEnded(_ context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.ID == id && e.Active {
			e.Active = false
			ended := at
			e.EndedAt = &ended
			return true, nil
		}
	}
	return false, nil
}

func (r *eventRepo) List(_ context.Context, limit int) ([]*models.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Event, 0, len(r.events))
	for _, e := range r.events {
		c := *e
		out = append(out, &c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type progressKey struct {
	userID      string
	challengeID string
	day         string
}

type challengeRepo struct {
	mu         sync.Mutex
	challenges map[string]models.Challenge
	progress   map[progressKey]*models.UserChallengeProgress
}

func NewChallengeRepository() repositories.ChallengeRepository {
	return &challengeRepo{
		challenges: make(map[string]models.Challenge),
		progress:   make(map[progressKey]*models.UserChallengeProgress),
	}
}

func (r *challengeRepo) Seed(_ context.Context, challenges []*models.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range challenges {
		if _, ok := r.challenges[c.ID]; !ok {
			r.challenges[c.ID] = *c
		}
	}
	return nil
}

func (r *challengeRepo) ListActive(_ context.Context) ([]*models.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Challenge
	for _, c := range r.challenges {
		if c.Active {
			c := c
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *challengeRepo) Progress(_ context.Context, userID, day string) ([]*models.UserChallengeProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.UserChallengeProgress
	for k, p := range r.progress {
		if k.userID == userID && k.day == day {
			c := *p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChallengeID < out[j].ChallengeID })
	return out, nil
}

func (r *challengeRepo) Increment(_ context.Context, userID string, challenge *models.Challenge, day string, amount int64) (*models.UserChallengeProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := progressKey{userID, challenge.ID, day}
	p, ok := r.progress[key]
	if !ok {
		p = &models.UserChallengeProgress{UserID: userID, ChallengeID: challenge.ID, Day: day}
		r.progress[key] = p
	}
	p.Progress += amount
	if p.Progress >= challenge.Target {
		p.Completed = true
	}
	c := *p
	return &c, nil
}

func (r *challengeRepo) Claim(_ context.Context, userID, challengeID, day string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.progress[progressKey{userID, challengeID, day}]
	if !ok || !p.Completed || p.Claimed {
		return false, nil
	}
	p.Claimed = true
	return true, nil
}
