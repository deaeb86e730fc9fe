package multiplier

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/disgoorg/levelbot/levelbot/database/memstore"
	"github.com/disgoorg/levelbot/levelbot/database/models"
	"github.com/disgoorg/levelbot/levelbot/database/repositories"
	"github.com/disgoorg/levelbot/levelbot/settings"
)

// Wednesday, outside any default window.
var weekday = time.Date(2024, 5, 15, 14, 0, 0, 0, time.UTC)

func newResolver(t *testing.T, now time.Time) (*Resolver, *repositories.Stores, *settings.Settings) {
	t.Helper()
	stores := memstore.New()
	s := settings.New(stores.Config)
	r := NewResolver(stores, s, time.UTC)
	r.Now = func() time.Time { return now }
	return r, stores, s
}

func TestResolveNeutral(t *testing.T) {
	r, _, _ := newResolver(t, weekday)
	m, err := r.Resolve(context.Background(), Subject{UserID: "u"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, m)
}

func TestResolveWeekend(t *testing.T) {
	saturday := time.Date(2024, 5, 18, 10, 0, 0, 0, time.UTC)
	r, _, _ := newResolver(t, saturday)
	m, err := r.Resolve(context.Background(), Subject{UserID: "u"})
	require.NoError(t, err)
	assert.Equal(t, 2.0, m)
}

func TestResolveStacksAllFactors(t *testing.T) {
	ctx := context.Background()
	r, stores, s := newResolver(t, weekday)

	vip := weekday.Add(24 * time.Hour)
	joined := weekday.Add(-24 * time.Hour)
	user := &models.User{ID: "u", Level: 1, VIPUntil: &vip, JoinedAt: &joined}
	require.NoError(t, stores.Users.Create(ctx, user))

	require.NoError(t, s.SetServerMultiplier(ctx, 1.2))
	require.NoError(t, stores.Events.Insert(ctx, &models.Event{
		ID: "e", Multiplier: 3, Active: true, StartTime: weekday.Add(-time.Hour), EndTime: weekday.Add(time.Hour),
	}))
	require.NoError(t, stores.Multipliers.Set(ctx, models.ScopeRole, "r1", 1.1))
	require.NoError(t, stores.Multipliers.Set(ctx, models.ScopeRole, "r2", 2))
	require.NoError(t, stores.Multipliers.Set(ctx, models.ScopeVoice, "vc", 1.25))
	require.NoError(t, s.SetQuietHours(ctx, models.QuietHours{StartHour: 13, EndHour: 15, Multiplier: 0.5}))
	require.NoError(t, stores.Birthdays.Set(ctx, &models.Birthday{UserID: "u", Month: 5, Day: 15}))

	factors, err := r.Breakdown(ctx, Subject{UserID: "u", Roles: []string{"r1", "r2", "r3"}, ChannelID: "vc"})
	require.NoError(t, err)

	names := make([]string, 0, len(factors))
	for _, f := range factors {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"server", "weekend", "event", "vip", "role:r1", "role:r2", "voice", "quiet_hours", "birthday", "welcome"}, names)

	want := 1.2 * 1.0 * 3 * 1.5 * 1.1 * 2 * 1.25 * 0.5 * 2 * 1.5
	assert.InDelta(t, want, Product(factors), 1e-9)
}

func TestResolveIgnoresExpiredEvent(t *testing.T) {
	ctx := context.Background()
	r, stores, _ := newResolver(t, weekday)
	require.NoError(t, stores.Events.Insert(ctx, &models.Event{
		ID: "e", Multiplier: 3, Active: true, StartTime: weekday.Add(-2 * time.Hour), EndTime: weekday.Add(-time.Hour),
	}))

	m, err := r.Resolve(ctx, Subject{UserID: "u"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, m)
}

func TestRoleOrderDoesNotChangeResult(t *testing.T) {
	ctx := context.Background()
	r, stores, _ := newResolver(t, weekday)
	require.NoError(t, stores.Multipliers.Set(ctx, models.ScopeRole, "a", 1.3))
	require.NoError(t, stores.Multipliers.Set(ctx, models.ScopeRole, "b", 1.7))
	require.NoError(t, stores.Multipliers.Set(ctx, models.ScopeRole, "c", 0.9))

	first, err := r.Resolve(ctx, Subject{UserID: "u", Roles: []string{"a", "b", "c"}})
	require.NoError(t, err)
	second, err := r.Resolve(ctx, Subject{UserID: "u", Roles: []string{"c", "a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestQuietHoursWrapAround(t *testing.T) {
	ctx := context.Background()
	late := time.Date(2024, 5, 15, 23, 30, 0, 0, time.UTC)
	r, _, s := newResolver(t, late)
	require.NoError(t, s.SetQuietHours(ctx, models.QuietHours{StartHour: 22, EndHour: 6, Multiplier: 0.5}))

	m, err := r.Resolve(ctx, Subject{UserID: "u"})
	require.NoError(t, err)
	assert.Equal(t, 0.5, m)

	r.Now = func() time.Time { return time.Date(2024, 5, 15, 6, 0, 0, 0, time.UTC) }
	m, err = r.Resolve(ctx, Subject{UserID: "u"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, m, "end hour is exclusive")
}

func TestWelcomeWindowExpires(t *testing.T) {
	ctx := context.Background()
	r, stores, _ := newResolver(t, weekday)
	joined := weekday.AddDate(0, 0, -8)
	require.NoError(t, stores.Users.Create(ctx, &models.User{ID: "u", Level: 1, JoinedAt: &joined}))

	m, err := r.Resolve(ctx, Subject{UserID: "u"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, m)
}
