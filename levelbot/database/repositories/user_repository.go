package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/disgoorg/levelbot/levelbot/database/models"
	"github.com/uptrace/bun"
)

type userRepository struct {
	db *bun.DB
}

func NewUserRepository(db *bun.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Get(ctx context.Context, id string) (*models.User, error) {
	user := new(models.User)
	err := r.db.NewSelect().
		Model(user).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		slog.Error("Database error when getting user",
			slog.String("type", "db"),
			slog.String("operation", "GetUser"),
			slog.String("user_id", id),
			slog.String("error", err.Error()))
		return nil, err
	}
	return user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	if _, err := r.db.NewInsert().Model(user).Exec(ctx); err != nil {
		return insertError(err)
	}
	return nil
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now()
	res, err := r.db.NewUpdate().
		Model(user).
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *userRepository) ApplyAward(ctx context.Context, id string, u models.AwardUpdate) error {
	q := r.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("display_name = ?", u.DisplayName).
		Set("xp = ?", u.XP).
		Set("level = ?", u.Level).
		Set("total_xp_earned = total_xp_earned + ?", u.Granted).
		Set("last_seen_at = ?", u.SeenAt).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id)

	if u.Period {
		q = q.
			Set("weekly_xp = weekly_xp + ?", u.Granted).
			Set("monthly_xp = monthly_xp + ?", u.Granted).
			Set("today_xp = CASE WHEN today_date = ? THEN today_xp + ? ELSE ? END", u.Today, u.Granted, u.Granted).
			Set("today_date = ?", u.Today)
	}
	if u.LastMessageTime != nil {
		q = q.Set("last_message_time = ?", *u.LastMessageTime)
	}
	if u.Streak != nil {
		q = q.
			Set("streak = ?", *u.Streak).
			Set("last_active_date = ?", u.LastActiveDate)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to apply award: %w", err)
	}
	return requireRow(res)
}

func (r *userRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.NewDelete().
		Model((*models.User)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *userRepository) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*models.User)(nil)).
		Where("TRUE").
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *userRepository) Top(ctx context.Context, period Period, limit int) ([]*models.User, error) {
	var users []*models.User
	err := r.db.NewSelect().
		Model(&users).
		OrderExpr(periodColumn(period) + " DESC").
		OrderExpr("id ASC").
		Limit(limit).
		Scan(ctx)
	return users, err
}

func (r *userRepository) Rank(ctx context.Context, id string) (int64, error) {
	user, err := r.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	above, err := r.db.NewSelect().
		Model((*models.User)(nil)).
		Where("total_xp_earned > ?", user.TotalXPEarned).
		Count(ctx)
	if err != nil {
		return 0, err
	}
	return int64(above) + 1, nil
}

func (r *userRepository) Stats(ctx context.Context) (*models.UserStats, error) {
	stats := new(models.UserStats)
	err := r.db.NewSelect().
		Model((*models.User)(nil)).
		ColumnExpr("COUNT(*) AS users").
		ColumnExpr("COALESCE(SUM(total_xp_earned), 0) AS total_xp").
		ColumnExpr("COALESCE(SUM(weekly_xp), 0) AS weekly_xp").
		ColumnExpr("COALESCE(AVG(level), 0) AS avg_level").
		ColumnExpr("COALESCE(MAX(level), 0) AS top_level").
		Scan(ctx, stats)
	return stats, err
}

func (r *userRepository) ListJoined(ctx context.Context) ([]*models.User, error) {
	var users []*models.User
	err := r.db.NewSelect().
		Model(&users).
		Where("joined_at IS NOT NULL").
		Scan(ctx)
	return users, err
}

func (r *userRepository) ResetWeekly(ctx context.Context) (int64, error) {
	return r.resetColumns(ctx, "weekly_xp <> 0", "weekly_xp")
}

func (r *userRepository) ResetMonthly(ctx context.Context) (int64, error) {
	return r.resetColumns(ctx, "monthly_xp <> 0 OR today_xp <> 0", "monthly_xp", "today_xp")
}

func (r *userRepository) ResetDaily(ctx context.Context) (int64, error) {
	return r.resetColumns(ctx, "today_xp <> 0", "today_xp")
}

func (r *userRepository) resetColumns(ctx context.Context, where string, columns ...string) (int64, error) {
	q := r.db.NewUpdate().
		Model((*models.User)(nil)).
		Where(where)
	for _, col := range columns {
		q = q.Set("? = 0", bun.Ident(col))
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to reset %v: %w", columns, err)
	}
	return res.RowsAffected()
}

func (r *userRepository) ApplyDecay(ctx context.Context, inactiveSince time.Time, factor float64) (int64, error) {
	res, err := r.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("xp = FLOOR(xp * ?)", factor).
		Set("updated_at = ?", time.Now()).
		Where("xp > 0").
		Where("last_seen_at < ?", inactiveSince).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to apply decay: %w", err)
	}
	return res.RowsAffected()
}

func (r *userRepository) IncrementVoiceTime(ctx context.Context, ids []string, minutes int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("voice_time = voice_time + ?", minutes).
		Where("id IN (?)", bun.In(ids)).
		Exec(ctx)
	return err
}

func (r *userRepository) SetVoiceTime(ctx context.Context, id string, minutes int64) error {
	_, err := r.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("voice_time = ?", minutes).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (r *userRepository) AddInvites(ctx context.Context, id string, n int64) error {
	res, err := r.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("invites = invites + ?", n).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *userRepository) ClaimDailyBonus(ctx context.Context, id string, day string) (bool, error) {
	res, err := r.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("last_daily_bonus_date = ?", day).
		Where("id = ?", id).
		Where("last_daily_bonus_date IS DISTINCT FROM ?", day).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *userRepository) SetJoinedAt(ctx context.Context, id string, joinedAt time.Time) (bool, error) {
	res, err := r.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("joined_at = ?", joinedAt).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("joined_at IS NULL").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func periodColumn(period Period) string {
	switch period {
	case PeriodWeekly:
		return "weekly_xp"
	case PeriodMonthly:
		return "monthly_xp"
	default:
		return "total_xp_earned"
	}
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
