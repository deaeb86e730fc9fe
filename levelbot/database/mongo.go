package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/disgoorg/levelbot/levelbot/logger"
)

type MongoConfig struct {
	URI      string `toml:"uri"`
	Database string `toml:"database"`
}

// NewMongo connects, pings and returns the configured database.
func NewMongo(ctx context.Context, cfg MongoConfig) (*mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(cfg.URI).
		SetMonitor(logger.NewMongoMonitor()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	slog.Info("MongoDB initialized",
		slog.String("type", "db"),
		slog.String("database", cfg.Database))
	return client.Database(cfg.Database), nil
}

// InitializeMongoSchema creates the indexes the document backend relies on.
func InitializeMongoSchema(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		"users": {
			{Keys: bson.D{{Key: "total_xp_earned", Value: -1}}},
			{Keys: bson.D{{Key: "weekly_xp", Value: -1}}},
			{Keys: bson.D{{Key: "monthly_xp", Value: -1}}},
			{Keys: bson.D{{Key: "last_seen_at", Value: 1}}},
		},
		"events": {
			{
				Keys: bson.D{{Key: "active", Value: 1}},
				Options: options.Index().
					SetName("single_active_event").
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"active": true}),
			},
			{Keys: bson.D{{Key: "start_time", Value: -1}}},
		},
		"multipliers": {
			{Keys: bson.D{{Key: "scope", Value: 1}, {Key: "target_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		"level_roles": {
			{Keys: bson.D{{Key: "kind", Value: 1}, {Key: "level", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		"mentors": {
			{Keys: bson.D{{Key: "mentor_id", Value: 1}, {Key: "mentee_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "mentee_id", Value: 1}}},
		},
		"user_challenge_progress": {
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "challenge_id", Value: 1}, {Key: "day", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
	}

	for collection, models := range indexes {
		if _, err := db.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", collection, err)
		}
	}
	return nil
}
