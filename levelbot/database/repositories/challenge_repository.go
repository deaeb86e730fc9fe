package repositories

import (
	"context"
	"fmt"

	"github.com/disgoorg/levelbot/levelbot/database/models"
	"github.com/uptrace/bun"
)

type challengeRepository struct {
	db *bun.DB
}

func NewChallengeRepository(db *bun.DB) ChallengeRepository {
	return &challengeRepository{db: db}
}

// Seed inserts the catalog, leaving existing challenges untouched.
func (r *challengeRepository) Seed(ctx context.Context, challenges []*models.Challenge) error {
	if len(challenges) == 0 {
		return nil
	}
	_, err := r.db.NewInsert().
		Model(&challenges).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed challenges: %w", err)
	}
	return nil
}

func (r *challengeRepository) ListActive(ctx context.Context) ([]*models.Challenge, error) {
	var challenges []*models.Challenge
	err := r.db.NewSelect().
		Model(&challenges).
		Where("active = TRUE").
		Order("id ASC").
		Scan(ctx)
	return challenges, err
}

func (r *challengeRepository) Progress(ctx context.Context, userID, day string) ([]*models.UserChallengeProgress, error) {
	var progress []*models.UserChallengeProgress
	err := r.db.NewSelect().
		Model(&progress).
		Where("user_id = ?", userID).
		Where("day = ?", day).
		Order("challenge_id ASC").
		Scan(ctx)
	return progress, err
}

// Increment adds amount to the day's progress and marks completion once the
// target is reached. The returned row reflects the state after the write.
func (r *challengeRepository) Increment(ctx context.Context, userID string, challenge *models.Challenge, day string, amount int64) (*models.UserChallengeProgress, error) {
	progress := new(models.UserChallengeProgress)
	err := r.db.NewRaw(`
		INSERT INTO user_challenge_progress (user_id, challenge_id, day, progress, completed, claimed)
		VALUES (?, ?, ?, ?, ? >= ?, FALSE)
		ON CONFLICT (user_id, challenge_id, day) DO UPDATE
		SET progress = user_challenge_progress.progress + EXCLUDED.progress,
			completed = user_challenge_progress.completed OR user_challenge_progress.progress + EXCLUDED.progress >= ?
		RETURNING user_id, challenge_id, day, progress, completed, claimed`,
		userID, challenge.ID, day, amount, amount, challenge.Target, challenge.Target,
	).Scan(ctx, progress)
	if err != nil {
		return nil, fmt.Errorf("failed to increment challenge progress: %w", err)
	}
	return progress, nil
}

func (r *challengeRepository) Claim(ctx context.Context, userID, challengeID, day string) (bool, error) {
	res, err := r.db.NewUpdate().
		Model((*models.UserChallengeProgress)(nil)).
		Set("claimed = TRUE").
		Where("user_id = ?", userID).
		Where("challenge_id = ?", challengeID).
		Where("day = ?", day).
		Where("completed = TRUE").
		Where("claimed = FALSE").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}
