package repositories

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/disgoorg/levelbot/levelbot/database/models"
	"github.com/uptrace/bun"
)

type eventRepository struct {
	db *bun.DB
}

func NewEventRepository(db *bun.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) Insert(ctx context.Context, event *models.Event) error {
	if _, err := r.db.NewInsert().Model(event).Exec(ctx); err != nil {
		return insertError(err)
	}
	return nil
}

func (r *eventRepository) FindActive(ctx context.Context) (*models.Event, error) {
	event := new(models.Event)
	err := r.db.NewSelect().
		Model(event).
		Where("active = TRUE").
		Order("start_time DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return event, nil
}

// MarkEnded flips the event from active to ended. Only the first caller wins.
func (r *eventRepository) MarkEnded(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.NewUpdate().
		Model((*models.Event)(nil)).
		Set("active = FALSE").
		Set("ended_at = ?", at).
		Where("id = ?", id).
		Where("active = TRUE").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		slog.Debug("Event marked ended",
			slog.String("type", "db"),
			slog.String("event_id", id))
	}
	return n > 0, nil
}

func (r *eventRepository) List(ctx context.Context, limit int) ([]*models.Event, error) {
	var events []*models.Event
	err := r.db.NewSelect().
		Model(&events).
		Order("start_time DESC").
		Limit(limit).
		Scan(ctx)
	return events, err
}
