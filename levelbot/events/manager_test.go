package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/disgoorg/levelbot/levelbot/database/memstore"
	"github.com/disgoorg/levelbot/levelbot/database/models"
)

type recorder struct {
	mu      sync.Mutex
	started []string
	ended   []EndReason
}

func (r *recorder) EventStarted(_ context.Context, e *models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, e.Name)
}

func (r *recorder) EventEnded(_ context.Context, _ *models.Event, reason EndReason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ended = append(r.ended, reason)
}

var start = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newManager() (*Manager, *recorder, *time.Time) {
	rec := &recorder{}
	now := start
	m := NewManager(memstore.NewEventRepository(), rec)
	m.Now = func() time.Time { return now }
	return m, rec, &now
}

func TestCreateRejectsSecondActiveEvent(t *testing.T) {
	ctx := context.Background()
	m, rec, _ := newManager()

	event, err := m.Create(ctx, CreateParams{Name: "Double XP", Duration: 2 * time.Hour})
	require.NoError(t, err)
	assert.Equal(t, DefaultMultiplier, event.Multiplier)
	assert.Equal(t, start.Add(2*time.Hour), event.EndTime)

	_, err = m.Create(ctx, CreateParams{Name: "Triple XP", Duration: time.Hour, Multiplier: 3})
	assert.ErrorIs(t, err, ErrEventActive)

	history, err := m.History(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Equal(t, []string{"Double XP"}, rec.started)
}

func TestCreateEndsExpiredEventFirst(t *testing.T) {
	ctx := context.Background()
	m, rec, now := newManager()

	_, err := m.Create(ctx, CreateParams{Name: "first", Duration: time.Hour})
	require.NoError(t, err)

	*now = start.Add(90 * time.Minute)
	second, err := m.Create(ctx, CreateParams{Name: "second", Duration: time.Hour})
	require.NoError(t, err)

	active, err := m.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)
	assert.Equal(t, []EndReason{EndedExpired}, rec.ended)
}

func TestEnd(t *testing.T) {
	ctx := context.Background()
	m, rec, _ := newManager()

	_, err := m.End(ctx)
	assert.ErrorIs(t, err, ErrNoActiveEvent)

	_, err = m.Create(ctx, CreateParams{Name: "e", Duration: time.Hour})
	require.NoError(t, err)

	ended, err := m.End(ctx)
	require.NoError(t, err)
	assert.False(t, ended.Active)
	require.NotNil(t, ended.EndedAt)

	_, err = m.End(ctx)
	assert.ErrorIs(t, err, ErrNoActiveEvent)
	assert.Equal(t, []EndReason{EndedManually}, rec.ended)
}

func TestExpireDue(t *testing.T) {
	ctx := context.Background()
	m, rec, now := newManager()

	_, err := m.Create(ctx, CreateParams{Name: "e", Duration: time.Hour})
	require.NoError(t, err)

	expired, err := m.ExpireDue(ctx)
	require.NoError(t, err)
	assert.False(t, expired)

	*now = start.Add(time.Hour)
	expired, err = m.ExpireDue(ctx)
	require.NoError(t, err)
	assert.True(t, expired)

	expired, err = m.ExpireDue(ctx)
	require.NoError(t, err)
	assert.False(t, expired, "expiry is a single transition")
	assert.Equal(t, []EndReason{EndedExpired}, rec.ended)

	_, err = m.Active(ctx)
	assert.ErrorIs(t, err, ErrNoActiveEvent)
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newManager()

	bad := []CreateParams{
		{Name: "", Duration: time.Hour},
		{Name: "x", Duration: 0},
		{Name: "x", Duration: 200 * time.Hour},
		{Name: "x", Duration: time.Hour, Multiplier: 1.0},
		{Name: "x", Duration: time.Hour, Multiplier: 11},
	}
	for _, p := range bad {
		_, err := m.Create(ctx, p)
		assert.ErrorIs(t, err, ErrInvalidEvent, "%+v", p)
	}
}
