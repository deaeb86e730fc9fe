package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/disgoorg/levelbot/levelbot/database/models"
	"github.com/disgoorg/levelbot/levelbot/database/repositories"
)

var upsert = options.Update().SetUpsert(true)

func findAll[T any](ctx context.Context, col *mongo.Collection, filter any, opts ...*options.FindOptions) ([]*T, error) {
	cursor, err := col.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	var out []*T
	if err = cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func findOne[T any](ctx context.Context, col *mongo.Collection, filter any) (*T, error) {
	out := new(T)
	if err := col.FindOne(ctx, filter).Decode(out); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrNotFound
		}
		return nil, err
	}
	return out, nil
}

type configRepo struct {
	col *mongo.Collection
}

func NewConfigRepository(db *mongo.Database) repositories.ConfigRepository {
	return &configRepo{col: db.Collection("config")}
}

func (r *configRepo) Get(ctx context.Context, key string) (string, error) {
	entry, err := findOne[models.ConfigEntry](ctx, r.col, bson.M{"_id": key})
	if err != nil {
		return "", err
	}
	return entry.Value, nil
}

func (r *configRepo) Set(ctx context.Context, key string, value string) error {
	_, err := r.col.UpdateOne(ctx, bson.M{"_id": key},
		bson.M{"$set": bson.M{"value": value, "updated_at": time.Now()}}, upsert)
	return err
}

type markerRepo struct {
	col *mongo.Collection
}

func NewSchedulerMarkerRepository(db *mongo.Database) repositories.SchedulerMarkerRepository {
	return &markerRepo{col: db.Collection("scheduler_markers")}
}

func (r *markerRepo) Get(ctx context.Context, name string) (string, error) {
	marker, err := findOne[models.SchedulerMarker](ctx, r.col, bson.M{"_id": name})
	if errors.Is(err, repositories.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return marker.Day, nil
}

func (r *markerRepo) Set(ctx context.Context, name, day string) error {
	_, err := r.col.UpdateOne(ctx, bson.M{"_id": name},
		bson.M{"$set": bson.M{"day": day, "updated_at": time.Now()}}, upsert)
	return err
}

type levelRoleRepo struct {
	col *mongo.Collection
}

func NewLevelRoleRepository(db *mongo.Database) repositories.LevelRoleRepository {
	return &levelRoleRepo{col: db.Collection("level_roles")}
}

func (r *levelRoleRepo) Set(ctx context.Context, kind models.LevelRoleKind, level int, roleID string) error {
	_, err := r.col.UpdateOne(ctx, bson.M{"kind": kind, "level": level},
		bson.M{"$set": bson.M{"role_id": roleID}}, upsert)
	return err
}

func (r *levelRoleRepo) Get(ctx context.Context, kind models.LevelRoleKind, level int) (string, error) {
	role, err := findOne[models.LevelRole](ctx, r.col, bson.M{"kind": kind, "level": level})
	if err != nil {
		return "", err
	}
	return role.RoleID, nil
}

func (r *levelRoleRepo) List(ctx context.Context, kind models.LevelRoleKind) ([]*models.LevelRole, error) {
	return findAll[models.LevelRole](ctx, r.col, bson.M{"kind": kind},
		options.Find().SetSort(bson.D{{Key: "level", Value: 1}}))
}

func (r *levelRoleRepo) UpTo(ctx context.Context, kind models.LevelRoleKind, level int) ([]*models.LevelRole, error) {
	return findAll[models.LevelRole](ctx, r.col, bson.M{"kind": kind, "level": bson.M{"$lte": level}},
		options.Find().SetSort(bson.D{{Key: "level", Value: 1}}))
}

func (r *levelRoleRepo) Delete(ctx context.Context, kind models.LevelRoleKind, level int) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"kind": kind, "level": level})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

type multiplierRepo struct {
	col *mongo.Collection
}

func NewMultiplierRepository(db *mongo.Database) repositories.MultiplierRepository {
	return &multiplierRepo{col: db.Collection("multipliers")}
}

func (r *multiplierRepo) Set(ctx context.Context, scope models.MultiplierScope, targetID string, value float64) error {
	_, err := r.col.UpdateOne(ctx, bson.M{"scope": scope, "target_id": targetID},
		bson.M{"$set": bson.M{"value": value}}, upsert)
	return err
}

func (r *multiplierRepo) Get(ctx context.Context, scope models.MultiplierScope, targetID string) (float64, error) {
	m, err := findOne[models.Multiplier](ctx, r.col, bson.M{"scope": scope, "target_id": targetID})
	if err != nil {
		return 0, err
	}
	return m.Value, nil
}

func (r *multiplierRepo) ForTargets(ctx context.Context, scope models.MultiplierScope, targetIDs []string) ([]*models.Multiplier, error) {
	if len(targetIDs) == 0 {
		return nil, nil
	}
	return findAll[models.Multiplier](ctx, r.col,
		bson.M{"scope": scope, "target_id": bson.M{"$in": targetIDs}},
		options.Find().SetSort(bson.D{{Key: "target_id", Value: 1}}))
}

func (r *multiplierRepo) List(ctx context.Context, scope models.MultiplierScope) ([]*models.Multiplier, error) {
	return findAll[models.Multiplier](ctx, r.col, bson.M{"scope": scope},
		options.Find().SetSort(bson.D{{Key: "value", Value: -1}}))
}

func (r *multiplierRepo) Delete(ctx context.Context, scope models.MultiplierScope, targetID string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"scope": scope, "target_id": targetID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

type blacklistRepo struct {
	col *mongo.Collection
}

func NewBlacklistRepository(db *mongo.Database) repositories.BlacklistRepository {
	return &blacklistRepo{col: db.Collection("blacklisted_channels")}
}

func (r *blacklistRepo) Add(ctx context.Context, channelID string) error {
	_, err := r.col.UpdateOne(ctx, bson.M{"_id": channelID},
		bson.M{"$setOnInsert": bson.M{"added_at": time.Now()}}, upsert)
	return err
}

func (r *blacklistRepo) Remove(ctx context.Context, channelID string) (bool, error) {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": channelID})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (r *blacklistRepo) Contains(ctx context.Context, channelID string) (bool, error) {
	n, err := r.col.CountDocuments(ctx, bson.M{"_id": channelID}, options.Count().SetLimit(1))
	return n > 0, err
}

func (r *blacklistRepo) List(ctx context.Context) ([]string, error) {
	channels, err := findAll[models.BlacklistedChannel](ctx, r.col, bson.M{},
		options.Find().SetSort(bson.D{{Key: "added_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(channels))
	for _, c := range channels {
		ids = append(ids, c.ChannelID)
	}
	return ids, nil
}

type birthdayRepo struct {
	col *mongo.Collection
}

func NewBirthdayRepository(db *mongo.Database) repositories.BirthdayRepository {
	return &birthdayRepo{col: db.Collection("birthdays")}
}

func (r *birthdayRepo) Set(ctx context.Context, birthday *models.Birthday) error {
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": birthday.UserID}, birthday, options.Replace().SetUpsert(true))
	return err
}

func (r *birthdayRepo) Get(ctx context.Context, userID string) (*models.Birthday, error) {
	return findOne[models.Birthday](ctx, r.col, bson.M{"_id": userID})
}

type mentorRepo struct {
	col *mongo.Collection
}

func NewMentorRepository(db *mongo.Database) repositories.MentorRepository {
	return &mentorRepo{col: db.Collection("mentors")}
}

func (r *mentorRepo) Add(ctx context.Context, mentor *models.Mentor) error {
	if mentor.CreatedAt.IsZero() {
		mentor.CreatedAt = time.Now()
	}
	_, err := r.col.UpdateOne(ctx,
		bson.M{"mentor_id": mentor.MentorID, "mentee_id": mentor.MenteeID},
		bson.M{
			"$set":         bson.M{"bonus": mentor.Bonus},
			"$setOnInsert": bson.M{"created_at": mentor.CreatedAt},
		}, upsert)
	return err
}

func (r *mentorRepo) Remove(ctx context.Context, mentorID, menteeID string) (bool, error) {
	res, err := r.col.DeleteOne(ctx, bson.M{"mentor_id": mentorID, "mentee_id": menteeID})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (r *mentorRepo) MentorsOf(ctx context.Context, menteeID string) ([]*models.Mentor, error) {
	return findAll[models.Mentor](ctx, r.col, bson.M{"mentee_id": menteeID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
}

func (r *mentorRepo) MenteesOf(ctx context.Context, mentorID string) ([]*models.Mentor, error) {
	return findAll[models.Mentor](ctx, r.col, bson.M{"mentor_id": mentorID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
}
