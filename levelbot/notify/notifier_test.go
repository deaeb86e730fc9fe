package notify

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/disgoorg/levelbot/levelbot/database/memstore"
	"github.com/disgoorg/levelbot/levelbot/database/models"
	"github.com/disgoorg/levelbot/levelbot/events"
	"github.com/disgoorg/levelbot/levelbot/settings"
)

type fakePlatform struct {
	mu       sync.Mutex
	roles    []string
	channels map[string][]Message
	dms      map[string][]Message
	dmErr    error
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{channels: map[string][]Message{}, dms: map[string][]Message{}}
}

func (p *fakePlatform) AddRole(_ context.Context, _, roleID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.roles = append(p.roles, roleID)
	return nil
}

func (p *fakePlatform) SendChannel(_ context.Context, channelID string, msg Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channels[channelID] = append(p.channels[channelID], msg)
	return nil
}

func (p *fakePlatform) SendDM(_ context.Context, userID string, msg Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dmErr != nil {
		return p.dmErr
	}
	p.dms[userID] = append(p.dms[userID], msg)
	return nil
}

func TestRender(t *testing.T) {
	got := Render("{mention} {user} is now level {level}, go {user}!", "alice", "42", 7)
	assert.Equal(t, "<@42> alice is now level 7, go alice!", got)
}

func TestLevelUpGrantsRolesOnce(t *testing.T) {
	ctx := context.Background()
	stores := memstore.New()
	p := newFakePlatform()
	n := NewNotifier(p, stores, settings.New(stores.Config))

	require.NoError(t, stores.LevelRoles.Set(ctx, models.KindReward, 5, "reward5"))
	require.NoError(t, stores.LevelRoles.Set(ctx, models.KindReward, 4, "reward4"))
	require.NoError(t, stores.LevelRoles.Set(ctx, models.KindMilestone, 2, "m2"))
	require.NoError(t, stores.LevelRoles.Set(ctx, models.KindMilestone, 5, "m5"))
	require.NoError(t, stores.LevelRoles.Set(ctx, models.KindMilestone, 10, "m10"))

	err := n.LevelUp(ctx, LevelUp{UserID: "u1", DisplayName: "alice", ChannelID: "c1", Roles: []string{"m2"}, NewLevel: 5})
	require.NoError(t, err)

	sort.Strings(p.roles)
	assert.Equal(t, []string{"m5", "reward5"}, p.roles)

	require.Len(t, p.channels["c1"], 1)
	msg := p.channels["c1"][0]
	assert.Equal(t, "alice has reached level 5!", msg.Description)
	assert.Equal(t, settings.DefaultBanner, msg.ImageURL)
}

func TestLevelUpUsesAnnouncementChannel(t *testing.T) {
	ctx := context.Background()
	stores := memstore.New()
	s := settings.New(stores.Config)
	p := newFakePlatform()
	n := NewNotifier(p, stores, s)

	require.NoError(t, s.SetAnnouncementChannel(ctx, "announce"))
	require.NoError(t, s.SetLevelUpMessage(ctx, "GG {mention}, level {level}"))

	require.NoError(t, n.LevelUp(ctx, LevelUp{UserID: "u1", DisplayName: "alice", ChannelID: "c1", NewLevel: 3}))
	assert.Empty(t, p.channels["c1"])
	require.Len(t, p.channels["announce"], 1)
	assert.Equal(t, "GG <@u1>, level 3", p.channels["announce"][0].Description)
}

func TestLevelUpPrefersDM(t *testing.T) {
	ctx := context.Background()
	stores := memstore.New()
	p := newFakePlatform()
	n := NewNotifier(p, stores, settings.New(stores.Config))
	require.NoError(t, stores.Users.Create(ctx, &models.User{ID: "u1", Level: 3, DMNotifications: true}))

	require.NoError(t, n.LevelUp(ctx, LevelUp{UserID: "u1", DisplayName: "alice", ChannelID: "c1", NewLevel: 3}))
	assert.Len(t, p.dms["u1"], 1)
	assert.Empty(t, p.channels["c1"])
}

func TestLevelUpFallsBackWhenDMFails(t *testing.T) {
	ctx := context.Background()
	stores := memstore.New()
	p := newFakePlatform()
	p.dmErr = errors.Join(ErrDMUndeliverable, errors.New("cannot send messages to this user"))
	n := NewNotifier(p, stores, settings.New(stores.Config))
	require.NoError(t, stores.Users.Create(ctx, &models.User{ID: "u1", Level: 3, DMNotifications: true}))

	require.NoError(t, n.LevelUp(ctx, LevelUp{UserID: "u1", DisplayName: "alice", ChannelID: "c1", NewLevel: 3}))
	assert.Len(t, p.channels["c1"], 1)
}

func TestEventAnnouncements(t *testing.T) {
	ctx := context.Background()
	stores := memstore.New()
	s := settings.New(stores.Config)
	p := newFakePlatform()
	n := NewNotifier(p, stores, s)

	event := &models.Event{Name: "Double XP", Multiplier: 2, StartTime: time.Now(), EndTime: time.Now().Add(time.Hour)}

	// Without an announcement channel nothing is sent.
	n.EventStarted(ctx, event)
	assert.Empty(t, p.channels)

	require.NoError(t, s.SetAnnouncementChannel(ctx, "announce"))
	n.EventStarted(ctx, event)
	n.EventEnded(ctx, event, events.EndedExpired)
	require.Len(t, p.channels["announce"], 2)
	assert.Equal(t, "Event started: Double XP", p.channels["announce"][0].Title)
	assert.Equal(t, "Event over: Double XP", p.channels["announce"][1].Title)
}
