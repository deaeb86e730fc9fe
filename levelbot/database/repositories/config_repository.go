package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/disgoorg/levelbot/levelbot/database/models"
	"github.com/uptrace/bun"
)

type configRepository struct {
	db *bun.DB
}

func NewConfigRepository(db *bun.DB) ConfigRepository {
	return &configRepository{db: db}
}

func (r *configRepository) Get(ctx context.Context, key string) (string, error) {
	entry := new(models.ConfigEntry)
	err := r.db.NewSelect().
		Model(entry).
		Where("key = ?", key).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return entry.Value, nil
}

func (r *configRepository) Set(ctx context.Context, key string, value string) error {
	entry := &models.ConfigEntry{Key: key, Value: value, UpdatedAt: time.Now()}
	_, err := r.db.NewInsert().
		Model(entry).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

type markerRepository struct {
	db *bun.DB
}

func NewSchedulerMarkerRepository(db *bun.DB) SchedulerMarkerRepository {
	return &markerRepository{db: db}
}

func (r *markerRepository) Get(ctx context.Context, name string) (string, error) {
	marker := new(models.SchedulerMarker)
	err := r.db.NewSelect().
		Model(marker).
		Where("name = ?", name).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return marker.Day, nil
}

func (r *markerRepository) Set(ctx context.Context, name, day string) error {
	marker := &models.SchedulerMarker{Name: name, Day: day, UpdatedAt: time.Now()}
	_, err := r.db.NewInsert().
		Model(marker).
		On("CONFLICT (name) DO UPDATE").
		Set("day = EXCLUDED.day").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

type birthdayRepository struct {
	db *bun.DB
}

func NewBirthdayRepository(db *bun.DB) BirthdayRepository {
	return &birthdayRepository{db: db}
}

func (r *birthdayRepository) Set(ctx context.Context, birthday *models.Birthday) error {
	_, err := r.db.NewInsert().
		Model(birthday).
		On("CONFLICT (user_id) DO UPDATE").
		Set("month = EXCLUDED.month").
		Set("day = EXCLUDED.day").
		Set("year = EXCLUDED.year").
		Exec(ctx)
	return err
}

func (r *birthdayRepository) Get(ctx context.Context, userID string) (*models.Birthday, error) {
	birthday := new(models.Birthday)
	err := r.db.NewSelect().
		Model(birthday).
		Where("user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return birthday, nil
}

type blacklistRepository struct {
	db *bun.DB
}

func NewBlacklistRepository(db *bun.DB) BlacklistRepository {
	return &blacklistRepository{db: db}
}

func (r *blacklistRepository) Add(ctx context.Context, channelID string) error {
	_, err := r.db.NewInsert().
		Model(&models.BlacklistedChannel{ChannelID: channelID, AddedAt: time.Now()}).
		On("CONFLICT (channel_id) DO NOTHING").
		Exec(ctx)
	return err
}

func (r *blacklistRepository) Remove(ctx context.Context, channelID string) (bool, error) {
	res, err := r.db.NewDelete().
		Model((*models.BlacklistedChannel)(nil)).
		Where("channel_id = ?", channelID).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *blacklistRepository) Contains(ctx context.Context, channelID string) (bool, error) {
	return r.db.NewSelect().
		Model((*models.BlacklistedChannel)(nil)).
		Where("channel_id = ?", channelID).
		Exists(ctx)
}

func (r *blacklistRepository) List(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.NewSelect().
		Model((*models.BlacklistedChannel)(nil)).
		Column("channel_id").
		Order("added_at ASC").
		Scan(ctx, &ids)
	return ids, err
}
