package activity

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/disgoorg/levelbot/levelbot/challenges"
	"github.com/disgoorg/levelbot/levelbot/database/memstore"
	"github.com/disgoorg/levelbot/levelbot/database/models"
	"github.com/disgoorg/levelbot/levelbot/database/repositories"
	"github.com/disgoorg/levelbot/levelbot/leaderboard"
	"github.com/disgoorg/levelbot/levelbot/leveling"
	"github.com/disgoorg/levelbot/levelbot/multiplier"
	"github.com/disgoorg/levelbot/levelbot/notify"
	"github.com/disgoorg/levelbot/levelbot/settings"
	"github.com/disgoorg/levelbot/levelbot/voice"
)

type recordingNotifier struct {
	mu       sync.Mutex
	levelUps []notify.LevelUp
}

func (r *recordingNotifier) LevelUp(_ context.Context, lu notify.LevelUp) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.levelUps = append(r.levelUps, lu)
	return nil
}

type fixture struct {
	p        *Pipeline
	stores   *repositories.Stores
	settings *settings.Settings
	notifier *recordingNotifier
	tracker  *challenges.Tracker
	now      time.Time
}

// Wednesday, no weekend factor.
var start = time.Date(2024, 5, 15, 9, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	stores := memstore.New()
	require.NoError(t, stores.Challenges.Seed(ctx, models.DefaultChallenges()))

	s := settings.New(stores.Config)
	resolver := multiplier.NewResolver(stores, s, time.UTC)
	engine, err := leveling.NewService(leveling.NewDefaultConfig(), stores, s, resolver, time.UTC)
	require.NoError(t, err)
	tracker := challenges.NewTracker(stores.Challenges, time.UTC)
	notifier := &recordingNotifier{}

	f := &fixture{stores: stores, settings: s, notifier: notifier, tracker: tracker, now: start}
	clock := func() time.Time { return f.now }
	engine.Now = clock
	engine.Intn = func(int) int { return 0 }
	resolver.Now = clock
	tracker.Now = clock

	f.p = NewPipeline(engine, stores, s, tracker, voice.NewTracker(),
		leaderboard.NewBoard(stores.Users, nil), notifier, time.UTC)
	f.p.Now = clock
	return f
}

func (f *fixture) user(t *testing.T, id string) *models.User {
	t.Helper()
	u, err := f.stores.Users.Get(context.Background(), id)
	require.NoError(t, err)
	return u
}

var alice = Member{UserID: "u1", DisplayName: "alice", ChannelID: "c1"}

func TestMessageWithDailyBonus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.settings.SetDailyBonus(ctx, 20))

	f.p.OnMessage(ctx, alice, "hello")
	// 10 base + 5 first in channel + 20 daily
	assert.Equal(t, int64(35), f.user(t, "u1").TotalXPEarned)

	f.now = start.Add(2 * time.Minute)
	f.p.OnMessage(ctx, alice, "hello")
	assert.Equal(t, int64(45), f.user(t, "u1").TotalXPEarned)

	f.now = start.AddDate(0, 0, 1)
	f.p.OnMessage(ctx, alice, "hello")
	assert.Equal(t, int64(80), f.user(t, "u1").TotalXPEarned, "bonus is claimable again the next day")
}

func TestCooldownSkipsFollowUps(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.p.OnMessage(ctx, alice, "hello")
	f.p.OnMessage(ctx, alice, "hello")

	statuses, err := f.tracker.Statuses(ctx, "u1")
	require.NoError(t, err)
	for _, s := range statuses {
		if s.Challenge.Kind == models.ChallengeMessages {
			assert.Equal(t, int64(1), s.Progress)
		}
	}
}

func TestMessageChallengeReward(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for i := 0; i < 20; i++ {
		f.now = start.Add(time.Duration(i) * 2 * time.Minute)
		f.p.OnMessage(ctx, alice, "hello")
	}

	// 15 + 19*10 from messages, 50 from the challenge
	u := f.user(t, "u1")
	assert.Equal(t, int64(255), u.TotalXPEarned)
	assert.Equal(t, int64(255), u.WeeklyXP)
	assert.NotEmpty(t, f.notifier.levelUps)
}

func TestMentorShare(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.stores.Mentors.Add(ctx, &models.Mentor{MentorID: "m1", MenteeID: "u1", Bonus: 0.2}))

	f.p.OnMessage(ctx, alice, "hello")
	assert.Equal(t, int64(15), f.user(t, "u1").TotalXPEarned)
	assert.Equal(t, int64(3), f.user(t, "m1").TotalXPEarned)
}

func TestLevelUpNotified(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.stores.Users.Create(ctx, &models.User{ID: "u1", DisplayName: "alice", Level: 1, XP: 95, TotalXPEarned: 95}))

	f.p.OnMessage(ctx, alice, "hello")

	require.Len(t, f.notifier.levelUps, 1)
	lu := f.notifier.levelUps[0]
	assert.Equal(t, "u1", lu.UserID)
	assert.Equal(t, 2, lu.NewLevel)
	assert.Equal(t, "c1", lu.ChannelID)
}

func TestVoiceSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	m := Member{UserID: "u1", DisplayName: "alice", ChannelID: "vc"}

	f.p.OnVoiceJoin(ctx, m)
	assert.Equal(t, []string{"u1"}, f.p.Voice().Connected())

	// The voice tick adds one minute per connected member.
	for i := 0; i < 30; i++ {
		require.NoError(t, f.stores.Users.IncrementVoiceTime(ctx, f.p.Voice().Connected(), 1))
	}
	f.p.OnVoiceLeave(ctx, "u1")

	// 30/5 voice XP and the 75 XP voice challenge
	u := f.user(t, "u1")
	assert.Equal(t, int64(81), u.TotalXPEarned)
	assert.Empty(t, f.p.Voice().Connected())

	f.p.OnVoiceJoin(ctx, m)
	assert.Zero(t, f.user(t, "u1").VoiceTime, "a new session starts from zero")
}

func TestMemberJoinWelcomesOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	m := Member{UserID: "u2", DisplayName: "bob"}

	f.p.OnMemberJoin(ctx, m, start)
	u := f.user(t, "u2")
	require.NotNil(t, u.JoinedAt)
	// 100 welcome bonus inside the 1.5x welcome window
	assert.Equal(t, int64(150), u.TotalXPEarned)

	f.p.OnMemberJoin(ctx, m, start.Add(time.Hour))
	assert.Equal(t, int64(150), f.user(t, "u2").TotalXPEarned)
}

func TestReactionAndInvite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.p.OnReaction(ctx, alice)
	assert.Equal(t, int64(2), f.user(t, "u1").TotalXPEarned)

	f.p.OnInvite(ctx, alice)
	u := f.user(t, "u1")
	assert.Equal(t, int64(52), u.TotalXPEarned)
	assert.Equal(t, int64(1), u.Invites)
}

func TestBotsIgnored(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	bot := Member{UserID: "b1", Bot: true, ChannelID: "c1"}

	f.p.OnMessage(ctx, bot, "beep")
	f.p.OnReaction(ctx, bot)
	f.p.OnVoiceJoin(ctx, bot)

	_, err := f.stores.Users.Get(ctx, "b1")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	assert.Empty(t, f.p.Voice().Connected())
}

func TestGrant(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.p.Grant(ctx, alice, 120)
	require.NoError(t, err)
	assert.Equal(t, int64(120), res.GrantedXP)

	_, err = f.p.Grant(ctx, alice, 0)
	assert.Error(t, err)
}

func TestCappedMessagesAwardNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.settings.SetXPCap(ctx, 100))
	require.NoError(t, f.stores.Users.Create(ctx, &models.User{
		ID:            "u1",
		DisplayName:   "alice",
		Level:         1,
		XP:            50,
		TotalXPEarned: 50,
		TodayXP:       100,
		TodayDate:     "2024-05-15",
	}))

	for i := 0; i < 20; i++ {
		f.p.OnMessage(ctx, alice, "hello")
	}

	u := f.user(t, "u1")
	assert.Equal(t, int64(50), u.XP)
	assert.Equal(t, int64(50), u.TotalXPEarned)

	statuses, err := f.tracker.Statuses(ctx, "u1")
	require.NoError(t, err)
	for _, s := range statuses {
		assert.Zero(t, s.Progress, s.Challenge.ID)
	}
}

func TestVoiceRejoinResetsSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	m := Member{UserID: "u1", DisplayName: "alice", ChannelID: "vc"}
	require.NoError(t, f.stores.Users.Create(ctx, &models.User{ID: "u1", DisplayName: "alice", Level: 1, VoiceTime: 12}))

	f.p.OnVoiceJoin(ctx, m)
	assert.Zero(t, f.user(t, "u1").VoiceTime)
	assert.Equal(t, []string{"u1"}, f.p.Voice().Connected())
}

func TestMemberRejoinKeepsAwards(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	m := Member{UserID: "u2", DisplayName: "bob", ChannelID: "c1"}

	f.p.OnMessage(ctx, m, "hello")
	earned := f.user(t, "u2").TotalXPEarned
	require.Nil(t, f.user(t, "u2").JoinedAt)

	f.p.OnMemberJoin(ctx, m, start)
	u := f.user(t, "u2")
	require.NotNil(t, u.JoinedAt)
	assert.Equal(t, earned+150, u.TotalXPEarned)

	f.p.OnMemberJoin(ctx, m, start.Add(time.Hour))
	u = f.user(t, "u2")
	assert.True(t, start.Equal(*u.JoinedAt))
	assert.Equal(t, earned+150, u.TotalXPEarned)
}
