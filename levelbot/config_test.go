package levelbot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
backend = "memory"

[bot]
token = "file-token"
guild_id = 123456789012345678
dev_guilds = [123456789012345678]
timezone = "Europe/Berlin"

[log]
level = "debug"

[redis]
addr = "localhost:6379"
prefix = "lvl"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Backend)
	assert.Equal(t, "file-token", cfg.Bot.Token)
	assert.Equal(t, snowflake.ID(123456789012345678), cfg.Bot.GuildID)
	assert.Equal(t, []snowflake.ID{123456789012345678}, cfg.Bot.DevGuilds)
	assert.True(t, cfg.Redis.Enabled())
	assert.False(t, cfg.Archive.Enabled())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv(EnvToken, "env-token")
	t.Setenv(EnvMongoURI, "mongodb://env:27017")
	path := writeConfig(t, `
backend = "mongo"

[bot]
token = "file-token"
guild_id = 1

[mongo]
database = "levels"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.Bot.Token)
	assert.Equal(t, "mongodb://env:27017", cfg.Mongo.URI)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"memory", Config{Backend: BackendMemory, Bot: BotConfig{Token: "t", GuildID: 1}}, true},
		{"missing token", Config{Backend: BackendMemory, Bot: BotConfig{GuildID: 1}}, false},
		{"missing guild", Config{Backend: BackendMemory, Bot: BotConfig{Token: "t"}}, false},
		{"unknown backend", Config{Backend: "sqlite", Bot: BotConfig{Token: "t", GuildID: 1}}, false},
		{"bad timezone", Config{Backend: BackendMemory, Bot: BotConfig{Token: "t", GuildID: 1, Timezone: "Mars/Olympus"}}, false},
		{"postgres without host", Config{Backend: BackendPostgres, Bot: BotConfig{Token: "t", GuildID: 1}}, false},
		{"mongo without uri", Config{Backend: BackendMongo, Bot: BotConfig{Token: "t", GuildID: 1}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestLocationDefaultsToUTC(t *testing.T) {
	loc, err := (&Config{}).Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}
