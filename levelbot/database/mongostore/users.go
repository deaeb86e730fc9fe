package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/disgoorg/levelbot/levelbot/database/models"
	"github.com/disgoorg/levelbot/levelbot/database/repositories"
)

type userRepo struct {
	col *mongo.Collection
}

func NewUserRepository(db *mongo.Database) repositories.UserRepository {
	return &userRepo{col: db.Collection("users")}
}

func (r *userRepo) Get(ctx context.Context, id string) (*models.User, error) {
	user := new(models.User)
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

func (r *userRepo) Create(ctx context.Context, user *models.User) error {
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	if _, err := r.col.InsertOne(ctx, user); err != nil {
		return insertError(err)
	}
	return nil
}

func (r *userRepo) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now()
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": user.ID}, user)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

// ApplyAward runs as a pipeline update so the counters are incremented
// server side. Literal strings are wrapped to keep them from being read as
// field paths.
func (r *userRepo) ApplyAward(ctx context.Context, id string, u models.AwardUpdate) error {
	set := bson.M{
		"display_name":    bson.M{"$literal": u.DisplayName},
		"xp":              u.XP,
		"level":           u.Level,
		"total_xp_earned": bson.M{"$add": bson.A{"$total_xp_earned", u.Granted}},
		"last_seen_at":    u.SeenAt,
		"updated_at":      time.Now(),
	}
	if u.Period {
		set["weekly_xp"] = bson.M{"$add": bson.A{"$weekly_xp", u.Granted}}
		set["monthly_xp"] = bson.M{"$add": bson.A{"$monthly_xp", u.Granted}}
		set["today_xp"] = bson.M{"$cond": bson.A{
			bson.M{"$eq": bson.A{"$today_date", bson.M{"$literal": u.Today}}},
			bson.M{"$add": bson.A{"$today_xp", u.Granted}},
			u.Granted,
		}}
		set["today_date"] = bson.M{"$literal": u.Today}
	}
	if u.LastMessageTime != nil {
		set["last_message_time"] = *u.LastMessageTime
	}
	if u.Streak != nil {
		set["streak"] = *u.Streak
		set["last_active_date"] = bson.M{"$literal": u.LastActiveDate}
	}

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, mongo.Pipeline{{{Key: "$set", Value: set}}})
	if err != nil {
		return fmt.Errorf("failed to apply award: %w", err)
	}
	if res.MatchedCount == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

func (r *userRepo) Delete(ctx context.Context, id string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

func (r *userRepo) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.col.DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (r *userRepo) Top(ctx context.Context, period repositories.Period, limit int) ([]*models.User, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: periodField(period), Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	var users []*models.User
	if err = cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepo) Rank(ctx context.Context, id string) (int64, error) {
	user, err := r.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	above, err := r.col.CountDocuments(ctx, bson.M{"total_xp_earned": bson.M{"$gt": user.TotalXPEarned}})
	if err != nil {
		return 0, err
	}
	return above + 1, nil
}

func (r *userRepo) Stats(ctx context.Context) (*models.UserStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":       nil,
			"users":     bson.M{"$sum": 1},
			"total_xp":  bson.M{"$sum": "$total_xp_earned"},
			"weekly_xp": bson.M{"$sum": "$weekly_xp"},
			"avg_level": bson.M{"$avg": "$level"},
			"top_level": bson.M{"$max": "$level"},
		}}},
	}
	cursor, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	stats := new(models.UserStats)
	if cursor.Next(ctx) {
		if err = cursor.Decode(stats); err != nil {
			return nil, err
		}
	}
	return stats, cursor.Err()
}

func (r *userRepo) ListJoined(ctx context.Context) ([]*models.User, error) {
	cursor, err := r.col.Find(ctx, bson.M{"joined_at": bson.M{"$type": "date"}})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	var users []*models.User
	if err = cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepo) ResetWeekly(ctx context.Context) (int64, error) {
	return r.reset(ctx, bson.M{"weekly_xp": bson.M{"$ne": 0}}, "weekly_xp")
}

func (r *userRepo) ResetMonthly(ctx context.Context) (int64, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"monthly_xp": bson.M{"$ne": 0}},
		bson.M{"today_xp": bson.M{"$ne": 0}},
	}}
	return r.reset(ctx, filter, "monthly_xp", "today_xp")
}

func (r *userRepo) ResetDaily(ctx context.Context) (int64, error) {
	return r.reset(ctx, bson.M{"today_xp": bson.M{"$ne": 0}}, "today_xp")
}

func (r *userRepo) reset(ctx context.Context, filter bson.M, fields ...string) (int64, error) {
	set := bson.M{}
	for _, f := range fields {
		set[f] = int64(0)
	}
	res, err := r.col.UpdateMany(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return 0, fmt.Errorf("failed to reset %v: %w", fields, err)
	}
	return res.ModifiedCount, nil
}

func (r *userRepo) ApplyDecay(ctx context.Context, inactiveSince time.Time, factor float64) (int64, error) {
	filter := bson.M{
		"xp":           bson.M{"$gt": 0},
		"last_seen_at": bson.M{"$lt": inactiveSince},
	}
	update := mongo.Pipeline{{{Key: "$set", Value: bson.M{
		"xp":         bson.M{"$toLong": bson.M{"$floor": bson.M{"$multiply": bson.A{"$xp", factor}}}},
		"updated_at": time.Now(),
	}}}}
	res, err := r.col.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to apply decay: %w", err)
	}
	return res.ModifiedCount, nil
}

func (r *userRepo) IncrementVoiceTime(ctx context.Context, ids []string, minutes int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.col.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		bson.M{"$inc": bson.M{"voice_time": minutes}})
	return err
}

func (r *userRepo) SetVoiceTime(ctx context.Context, id string, minutes int64) error {
	_, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"voice_time": minutes}})
	return err
}

func (r *userRepo) AddInvites(ctx context.Context, id string, n int64) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$inc": bson.M{"invites": n},
		"$set": bson.M{"updated_at": time.Now()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

func (r *userRepo) ClaimDailyBonus(ctx context.Context, id string, day string) (bool, error) {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "last_daily_bonus_date": bson.M{"$ne": day}},
		bson.M{"$set": bson.M{"last_daily_bonus_date": day}})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (r *userRepo) SetJoinedAt(ctx context.Context, id string, joinedAt time.Time) (bool, error) {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "joined_at": nil},
		bson.M{"$set": bson.M{"joined_at": joinedAt, "updated_at": time.Now()}})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func periodField(period repositories.Period) string {
	switch period {
	case repositories.PeriodWeekly:
		return "weekly_xp"
	case repositories.PeriodMonthly:
		return "monthly_xp"
	default:
		return "total_xp_earned"
	}
}
