package settings

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/disgoorg/levelbot/levelbot/database/memstore"
	"github.com/disgoorg/levelbot/levelbot/database/models"
)

func TestDefaults(t *testing.T) {
	ctx := context.Background()
	s := New(memstore.NewConfigRepository())

	cooldown, err := s.Cooldown(ctx)
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, cooldown)

	msg, _ := s.LevelUpMessage(ctx)
	assert.Equal(t, DefaultLevelUpMessage, msg)

	mult, _ := s.ServerMultiplier(ctx)
	assert.Equal(t, 1.0, mult)

	capXP, _ := s.XPCap(ctx)
	assert.Zero(t, capXP)

	reaction, _ := s.ReactionXP(ctx)
	assert.Equal(t, int64(2), reaction)

	welcome, _ := s.WelcomeBonus(ctx)
	assert.Equal(t, DefaultWelcomeBonus, welcome)

	_, ok, err := s.QuietHours(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := memstore.NewConfigRepository()
	s := New(repo)

	require.NoError(t, s.SetCooldown(ctx, 30))
	require.NoError(t, s.SetServerMultiplier(ctx, 1.5))
	require.NoError(t, s.SetWelcomeBonus(ctx, WelcomeBonus{Amount: 250, Days: 3}))
	require.NoError(t, s.SetQuietHours(ctx, models.QuietHours{StartHour: 22, EndHour: 6, Multiplier: 0.5}))
	require.NoError(t, s.SetLevelUpMessage(ctx, "GG {mention}"))

	cooldown, _ := s.Cooldown(ctx)
	assert.Equal(t, 30*time.Second, cooldown)

	mult, _ := s.ServerMultiplier(ctx)
	assert.Equal(t, 1.5, mult)

	welcome, _ := s.WelcomeBonus(ctx)
	assert.Equal(t, WelcomeBonus{Amount: 250, Days: 3}, welcome)

	q, ok, _ := s.QuietHours(ctx)
	assert.True(t, ok)
	assert.Equal(t, 0.5, q.Multiplier)

	raw, err := repo.Get(ctx, KeyLevelUpMessage)
	require.NoError(t, err)
	assert.Equal(t, `"GG {mention}"`, raw, "values are stored as JSON text")
}

func TestInvalidValueFallsBackWithError(t *testing.T) {
	ctx := context.Background()
	repo := memstore.NewConfigRepository()
	require.NoError(t, repo.Set(ctx, KeyXPCap, "not-a-number"))

	capXP, err := New(repo).XPCap(ctx)
	assert.Error(t, err)
	assert.Zero(t, capXP)
}
