// Package events manages the lifecycle of timed XP events. At most one event
// is active at a time.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/disgoorg/levelbot/levelbot/database/models"
	"github.com/disgoorg/levelbot/levelbot/database/repositories"
)

var (
	ErrEventActive   = errors.New("an event is already running")
	ErrNoActiveEvent = errors.New("no event is running")
	ErrInvalidEvent  = errors.New("invalid event parameters")
)

const (
	DefaultMultiplier = 2.0
	MinMultiplier     = 1.1
	MaxMultiplier     = 10.0
	MaxDuration       = 168 * time.Hour
)

type EndReason string

const (
	EndedManually EndReason = "ended"
	EndedExpired  EndReason = "expired"
)

// Announcer is told about lifecycle transitions. Failures are its own concern.
type Announcer interface {
	EventStarted(ctx context.Context, event *models.Event)
	EventEnded(ctx context.Context, event *models.Event, reason EndReason)
}

type CreateParams struct {
	Name       string
	Duration   time.Duration
	Multiplier float64
	Creator    string
}

type Manager struct {
	repo      repositories.EventRepository
	announcer Announcer

	// Now is replaced by tests.
	Now func() time.Time
}

func NewManager(repo repositories.EventRepository, announcer Announcer) *Manager {
	return &Manager{repo: repo, announcer: announcer, Now: time.Now}
}

// Create starts a new event. An event left active past its end is expired
// first; an unexpired one rejects the request.
func (m *Manager) Create(ctx context.Context, p CreateParams) (*models.Event, error) {
	if p.Multiplier == 0 {
		p.Multiplier = DefaultMultiplier
	}
	if p.Name == "" || p.Duration <= 0 || p.Duration > MaxDuration ||
		p.Multiplier < MinMultiplier || p.Multiplier > MaxMultiplier {
		return nil, ErrInvalidEvent
	}

	now := m.Now()
	active, err := m.findActive(ctx)
	if err != nil {
		return nil, err
	}
	if active != nil {
		if !active.Expired(now) {
			return nil, ErrEventActive
		}
		if _, err = m.end(ctx, active, now, EndedExpired); err != nil {
			return nil, err
		}
	}

	event := &models.Event{
		ID:         uuid.NewString(),
		Name:       p.Name,
		Multiplier: p.Multiplier,
		StartTime:  now,
		EndTime:    now.Add(p.Duration),
		Active:     true,
		Creator:    p.Creator,
	}
	if err = m.repo.Insert(ctx, event); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return nil, ErrEventActive
		}
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	slog.Info("Event started",
		slog.String("type", "sys"),
		slog.String("event", event.Name),
		slog.Float64("multiplier", event.Multiplier),
		slog.Time("ends", event.EndTime))

	if m.announcer != nil {
		m.announcer.EventStarted(ctx, event)
	}
	return event, nil
}

// End stops the running event.
func (m *Manager) End(ctx context.Context) (*models.Event, error) {
	active, err := m.findActive(ctx)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, ErrNoActiveEvent
	}
	ended, err := m.end(ctx, active, m.Now(), EndedManually)
	if err != nil {
		return nil, err
	}
	if !ended {
		return nil, ErrNoActiveEvent
	}
	return active, nil
}

// ExpireDue ends the active event once its end time has passed. It reports
// whether a transition happened.
func (m *Manager) ExpireDue(ctx context.Context) (bool, error) {
	active, err := m.findActive(ctx)
	if err != nil || active == nil {
		return false, err
	}
	now := m.Now()
	if !active.Expired(now) {
		return false, nil
	}
	return m.end(ctx, active, now, EndedExpired)
}

// Active returns the running event, ErrNoActiveEvent when there is none.
func (m *Manager) Active(ctx context.Context) (*models.Event, error) {
	active, err := m.findActive(ctx)
	if err != nil {
		return nil, err
	}
	if active == nil || active.Expired(m.Now()) {
		return nil, ErrNoActiveEvent
	}
	return active, nil
}

func (m *Manager) History(ctx context.Context, limit int) ([]*models.Event, error) {
	return m.repo.List(ctx, limit)
}

func (m *Manager) findActive(ctx context.Context) (*models.Event, error) {
	active, err := m.repo.FindActive(ctx)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load active event: %w", err)
	}
	return active, nil
}

func (m *Manager) end(ctx context.Context, event *models.Event, at time.Time, reason EndReason) (bool, error) {
	ended, err := m.repo.MarkEnded(ctx, event.ID, at)
	if err != nil {
		return false, fmt.Errorf("failed to end event: %w", err)
	}
	if !ended {
		return false, nil
	}
	event.Active = false
	event.EndedAt = &at

	slog.Info("Event ended",
		slog.String("type", "sys"),
		slog.String("event", event.Name),
		slog.String("reason", string(reason)))

	if m.announcer != nil {
		m.announcer.EventEnded(ctx, event, reason)
	}
	return true, nil
}
