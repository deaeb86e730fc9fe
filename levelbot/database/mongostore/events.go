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

type eventRepo struct {
	col *mongo.Collection
}

func NewEventRepository(db *mongo.Database) repositories.EventRepository {
	return &eventRepo{col: db.Collection("events")}
}

// insertError maps duplicate key failures to repositories.ErrConflict.
func insertError(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return repositories.ErrConflict
	}
	return err
}

func (r *eventRepo) Insert(ctx context.Context, event *models.Event) error {
	if _, err := r.col.InsertOne(ctx, event); err != nil {
		return insertError(err)
	}
	return nil
}

func (r *eventRepo) FindActive(ctx context.Context) (*models.Event, error) {
	event := new(models.Event)
	opts := options.FindOne().SetSort(bson.D{{Key: "start_time", Value: -1}})
	if err := r.col.FindOne(ctx, bson.M{"active": true}, opts).Decode(event); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrNotFound
		}
		return nil, err
	}
	return event, nil
}

func (r *eventRepo) MarkEnded(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "active": true},
		bson.M{"$set": bson.M{"active": false, "ended_at": at}})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (r *eventRepo) List(ctx context.Context, limit int) ([]*models.Event, error) {
	return findAll[models.Event](ctx, r.col, bson.M{},
		options.Find().SetSort(bson.D{{Key: "start_time", Value: -1}}).SetLimit(int64(limit)))
}

type challengeRepo struct {
	challenges *mongo.Collection
	progress   *mongo.Collection
}

func NewChallengeRepository(db *mongo.Database) repositories.ChallengeRepository {
	return &challengeRepo{
		challenges: db.Collection("challenges"),
		progress:   db.Collection("user_challenge_progress"),
	}
}

func (r *challengeRepo) Seed(ctx context.Context, challenges []*models.Challenge) error {
	for _, c := range challenges {
		_, err := r.challenges.UpdateOne(ctx, bson.M{"_id": c.ID},
			bson.M{"$setOnInsert": bson.M{
				"name":        c.Name,
				"description": c.Description,
				"kind":        c.Kind,
				"target":      c.Target,
				"reward_xp":   c.RewardXP,
				"active":      c.Active,
			}}, upsert)
		if err != nil {
			return fmt.Errorf("failed to seed challenge %s: %w", c.ID, err)
		}
	}
	return nil
}

func (r *challengeRepo) ListActive(ctx context.Context) ([]*models.Challenge, error) {
	return findAll[models.Challenge](ctx, r.challenges, bson.M{"active": true},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
}

func (r *challengeRepo) Progress(ctx context.Context, userID, day string) ([]*models.UserChallengeProgress, error) {
	return findAll[models.UserChallengeProgress](ctx, r.progress, bson.M{"user_id": userID, "day": day},
		options.Find().SetSort(bson.D{{Key: "challenge_id", Value: 1}}))
}

func (r *challengeRepo) Increment(ctx context.Context, userID string, challenge *models.Challenge, day string, amount int64) (*models.UserChallengeProgress, error) {
	filter := bson.M{"user_id": userID, "challenge_id": challenge.ID, "day": day}
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"progress": bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$progress", 0}}, amount}},
			"claimed":  bson.M{"$ifNull": bson.A{"$claimed", false}},
		}}},
		{{Key: "$set", Value: bson.M{
			"completed": bson.M{"$or": bson.A{
				bson.M{"$ifNull": bson.A{"$completed", false}},
				bson.M{"$gte": bson.A{"$progress", challenge.Target}},
			}},
		}}},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	progress := new(models.UserChallengeProgress)
	if err := r.progress.FindOneAndUpdate(ctx, filter, update, opts).Decode(progress); err != nil {
		return nil, fmt.Errorf("failed to increment challenge progress: %w", err)
	}
	return progress, nil
}

func (r *challengeRepo) Claim(ctx context.Context, userID, challengeID, day string) (bool, error) {
	res, err := r.progress.UpdateOne(ctx,
		bson.M{"user_id": userID, "challenge_id": challengeID, "day": day, "completed": true, "claimed": false},
		bson.M{"$set": bson.M{"claimed": true}})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// NewStores wires the document implementation of every repository.
func NewStores(db *mongo.Database) *repositories.Stores {
	return &repositories.Stores{
		Users:       NewUserRepository(db),
		Config:      NewConfigRepository(db),
		LevelRoles:  NewLevelRoleRepository(db),
		Multipliers: NewMultiplierRepository(db),
		Blacklist:   NewBlacklistRepository(db),
		Events:      NewEventRepository(db),
		Birthdays:   NewBirthdayRepository(db),
		Mentors:     NewMentorRepository(db),
		Challenges:  NewChallengeRepository(db),
		Markers:     NewSchedulerMarkerRepository(db),
	}
}
