package levelbot

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/disgoorg/levelbot/levelbot/archive"
	"github.com/disgoorg/levelbot/levelbot/database"
)

const (
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
	BackendMemory   = "memory"
)

// Environment variables that override secrets from the config file. They
// may also be set in a .env file next to the binary.
const (
	EnvToken      = "LEVELBOT_TOKEN"
	EnvDBPassword = "LEVELBOT_DB_PASSWORD"
	EnvMongoURI   = "LEVELBOT_MONGO_URI"
)

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	cfg := Config{Backend: BackendPostgres}
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err = godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	cfg.applyEnv()

	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type Config struct {
	Log     LogConfig            `toml:"log"`
	Bot     BotConfig            `toml:"bot"`
	Backend string               `toml:"backend" validate:"oneof=postgres mongo memory"`
	DB      database.DBConfig    `toml:"db"`
	Mongo   database.MongoConfig `toml:"mongo"`
	Redis   RedisConfig          `toml:"redis"`
	Archive archive.Config       `toml:"archive"`
}

type BotConfig struct {
	Token     string         `toml:"token" validate:"required"`
	GuildID   snowflake.ID   `toml:"guild_id" validate:"required"`
	DevGuilds []snowflake.ID `toml:"dev_guilds"`
	Timezone  string         `toml:"timezone" validate:"omitempty,timezone"`
	Activity  string         `toml:"activity"`
}

type LogConfig struct {
	Level     string `toml:"level"`
	Format    string `toml:"format"`
	AddSource bool   `toml:"add_source"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"`
}

func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvToken); v != "" {
		c.Bot.Token = v
	}
	if v := os.Getenv(EnvDBPassword); v != "" {
		c.DB.Password = v
	}
	if v := os.Getenv(EnvMongoURI); v != "" {
		c.Mongo.URI = v
	}
}

// Validate checks the struct tags and the settings the chosen backend needs.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	switch c.Backend {
	case BackendPostgres:
		if c.DB.Host == "" || c.DB.Database == "" {
			return errors.New("invalid config: db.host and db.database are required for the postgres backend")
		}
	case BackendMongo:
		if c.Mongo.URI == "" || c.Mongo.Database == "" {
			return errors.New("invalid config: mongo.uri and mongo.database are required for the mongo backend")
		}
	}
	return nil
}

// Location is the timezone day boundaries, quiet hours and the scheduler
// run in. It defaults to UTC.
func (c *Config) Location() (*time.Location, error) {
	if c.Bot.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Bot.Timezone)
}
