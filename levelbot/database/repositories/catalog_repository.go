package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/disgoorg/levelbot/levelbot/database/models"
	"github.com/uptrace/bun"
)

type levelRoleRepository struct {
	db *bun.DB
}

func NewLevelRoleRepository(db *bun.DB) LevelRoleRepository {
	return &levelRoleRepository{db: db}
}

func (r *levelRoleRepository) Set(ctx context.Context, kind models.LevelRoleKind, level int, roleID string) error {
	_, err := r.db.NewInsert().
		Model(&models.LevelRole{Kind: kind, Level: level, RoleID: roleID}).
		On("CONFLICT (kind, level) DO UPDATE").
		Set("role_id = EXCLUDED.role_id").
		Exec(ctx)
	return err
}

func (r *levelRoleRepository) Get(ctx context.Context, kind models.LevelRoleKind, level int) (string, error) {
	role := new(models.LevelRole)
	err := r.db.NewSelect().
		Model(role).
		Where("kind = ?", kind).
		Where("level = ?", level).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return role.RoleID, nil
}

func (r *levelRoleRepository) List(ctx context.Context, kind models.LevelRoleKind) ([]*models.LevelRole, error) {
	var roles []*models.LevelRole
	err := r.db.NewSelect().
		Model(&roles).
		Where("kind = ?", kind).
		Order("level ASC").
		Scan(ctx)
	return roles, err
}

func (r *levelRoleRepository) UpTo(ctx context.Context, kind models.LevelRoleKind, level int) ([]*models.LevelRole, error) {
	var roles []*models.LevelRole
	err := r.db.NewSelect().
		Model(&roles).
		Where("kind = ?", kind).
		Where("level <= ?", level).
		Order("level ASC").
		Scan(ctx)
	return roles, err
}

func (r *levelRoleRepository) Delete(ctx context.Context, kind models.LevelRoleKind, level int) error {
	res, err := r.db.NewDelete().
		Model((*models.LevelRole)(nil)).
		Where("kind = ?", kind).
		Where("level = ?", level).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireRow(res)
}

type multiplierRepository struct {
	db *bun.DB
}

func NewMultiplierRepository(db *bun.DB) MultiplierRepository {
	return &multiplierRepository{db: db}
}

func (r *multiplierRepository) Set(ctx context.Context, scope models.MultiplierScope, targetID string, value float64) error {
	_, err := r.db.NewInsert().
		Model(&models.Multiplier{Scope: scope, TargetID: targetID, Value: value}).
		On("CONFLICT (scope, target_id) DO UPDATE").
		Set("value = EXCLUDED.value").
		Exec(ctx)
	return err
}

func (r *multiplierRepository) Get(ctx context.Context, scope models.MultiplierScope, targetID string) (float64, error) {
	m := new(models.Multiplier)
	err := r.db.NewSelect().
		Model(m).
		Where("scope = ?", scope).
		Where("target_id = ?", targetID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return m.Value, nil
}

func (r *multiplierRepository) ForTargets(ctx context.Context, scope models.MultiplierScope, targetIDs []string) ([]*models.Multiplier, error) {
	if len(targetIDs) == 0 {
		return nil, nil
	}
	var ms []*models.Multiplier
	err := r.db.NewSelect().
		Model(&ms).
		Where("scope = ?", scope).
		Where("target_id IN (?)", bun.In(targetIDs)).
		Order("target_id ASC").
		Scan(ctx)
	return ms, err
}

func (r *multiplierRepository) List(ctx context.Context, scope models.MultiplierScope) ([]*models.Multiplier, error) {
	var ms []*models.Multiplier
	err := r.db.NewSelect().
		Model(&ms).
		Where("scope = ?", scope).
		Order("value DESC").
		Scan(ctx)
	return ms, err
}

func (r *multiplierRepository) Delete(ctx context.Context, scope models.MultiplierScope, targetID string) error {
	res, err := r.db.NewDelete().
		Model((*models.Multiplier)(nil)).
		Where("scope = ?", scope).
		Where("target_id = ?", targetID).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireRow(res)
}

type mentorRepository struct {
	db *bun.DB
}

func NewMentorRepository(db *bun.DB) MentorRepository {
	return &mentorRepository{db: db}
}

func (r *mentorRepository) Add(ctx context.Context, mentor *models.Mentor) error {
	_, err := r.db.NewInsert().
		Model(mentor).
		On("CONFLICT (mentor_id, mentee_id) DO UPDATE").
		Set("bonus = EXCLUDED.bonus").
		Exec(ctx)
	return err
}

func (r *mentorRepository) Remove(ctx context.Context, mentorID, menteeID string) (bool, error) {
	res, err := r.db.NewDelete().
		Model((*models.Mentor)(nil)).
		Where("mentor_id = ?", mentorID).
		Where("mentee_id = ?", menteeID).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *mentorRepository) MentorsOf(ctx context.Context, menteeID string) ([]*models.Mentor, error) {
	var ms []*models.Mentor
	err := r.db.NewSelect().
		Model(&ms).
		Where("mentee_id = ?", menteeID).
		Order("created_at ASC").
		Scan(ctx)
	return ms, err
}

func (r *mentorRepository) MenteesOf(ctx context.Context, mentorID string) ([]*models.Mentor, error) {
	var ms []*models.Mentor
	err := r.db.NewSelect().
		Model(&ms).
		Where("mentor_id = ?", mentorID).
		Order("created_at ASC").
		Scan(ctx)
	return ms, err
}
