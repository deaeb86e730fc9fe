// Package archive stores weekly standings on S3-compatible object storage.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/goccy/go-json"

	"github.com/disgoorg/levelbot/levelbot/database/repositories"
	"github.com/disgoorg/levelbot/levelbot/leaderboard"
)

const WeeklyLimit = 25

type Config struct {
	Endpoint  string `toml:"endpoint"`
	Region    string `toml:"region"`
	Bucket    string `toml:"bucket"`
	Prefix    string `toml:"prefix"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
}

func (c Config) Enabled() bool {
	return c.Bucket != ""
}

// Uploader is the part of *s3.Client the archiver uses.
type Uploader interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Snapshot struct {
	Week        string    `json:"week"`
	GeneratedAt time.Time `json:"generated_at"`
	Entries     []Row     `json:"entries"`
}

type Row struct {
	Rank        int    `json:"rank"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Level       int    `json:"level"`
	WeeklyXP    int64  `json:"weekly_xp"`
}

type Archiver struct {
	uploader Uploader
	bucket   string
	prefix   string
	board    *leaderboard.Board
}

func NewArchiver(uploader Uploader, bucket, prefix string, board *leaderboard.Board) *Archiver {
	return &Archiver{
		uploader: uploader,
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
		board:    board,
	}
}

// NewS3Client builds a client for AWS or any S3-compatible endpoint.
func NewS3Client(ctx context.Context, cfg Config) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load storage config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Key is the object key of the snapshot taken on day.
func (a *Archiver) Key(day string) string {
	key := "weekly/" + day + ".json"
	if a.prefix == "" {
		return key
	}
	return a.prefix + "/" + key
}

// ArchiveWeekly uploads the current weekly top standings. A nil archiver is
// a no-op.
func (a *Archiver) ArchiveWeekly(ctx context.Context, day string) (string, error) {
	if a == nil {
		return "", nil
	}
	entries, err := a.board.Top(ctx, repositories.PeriodWeekly, WeeklyLimit)
	if err != nil {
		return "", err
	}

	snapshot := Snapshot{Week: day, GeneratedAt: time.Now().UTC(), Entries: make([]Row, 0, len(entries))}
	for _, e := range entries {
		if e.Score <= 0 {
			continue
		}
		snapshot.Entries = append(snapshot.Entries, Row{
			Rank:        e.Rank,
			UserID:      e.UserID,
			DisplayName: e.DisplayName,
			Level:       e.Level,
			WeeklyXP:    e.Score,
		})
	}

	body, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}

	key := a.Key(day)
	_, err = a.uploader.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return key, nil
}
