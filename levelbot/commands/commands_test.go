package commands

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/disgoorg/levelbot/levelbot/activity"
	"github.com/disgoorg/levelbot/levelbot/challenges"
	"github.com/disgoorg/levelbot/levelbot/database/memstore"
	"github.com/disgoorg/levelbot/levelbot/database/models"
	"github.com/disgoorg/levelbot/levelbot/events"
	"github.com/disgoorg/levelbot/levelbot/leaderboard"
	"github.com/disgoorg/levelbot/levelbot/leveling"
	"github.com/disgoorg/levelbot/levelbot/multiplier"
	"github.com/disgoorg/levelbot/levelbot/settings"
	"github.com/disgoorg/levelbot/levelbot/voice"
)

// Wednesday, no weekend factor.
var now = time.Date(2024, 5, 15, 9, 0, 0, 0, time.UTC)

func newDeps(t *testing.T) *Deps {
	t.Helper()
	stores := memstore.New()
	require.NoError(t, stores.Challenges.Seed(context.Background(), models.DefaultChallenges()))

	clock := func() time.Time { return now }
	s := settings.New(stores.Config)
	resolver := multiplier.NewResolver(stores, s, time.UTC)
	resolver.Now = clock
	engine, err := leveling.NewService(leveling.NewDefaultConfig(), stores, s, resolver, time.UTC)
	require.NoError(t, err)
	engine.Now = clock
	engine.Intn = func(int) int { return 0 }
	tracker := challenges.NewTracker(stores.Challenges, time.UTC)
	tracker.Now = clock
	board := leaderboard.NewBoard(stores.Users, nil)
	manager := events.NewManager(stores.Events, nil)
	manager.Now = clock

	pipeline := activity.NewPipeline(engine, stores, s, tracker, voice.NewTracker(), board, nil, time.UTC)
	pipeline.Now = clock

	return &Deps{
		Stores:     stores,
		Settings:   s,
		Resolver:   resolver,
		Events:     manager,
		Challenges: tracker,
		Board:      board,
		Activity:   pipeline,
		Loc:        time.UTC,
		Now:        clock,
	}
}

func caller(admin bool, opts map[string]any) Input {
	return Input{UserID: "u1", DisplayName: "alice", ChannelID: "c1", Admin: admin, Options: opts}
}

func grant(t *testing.T, d *Deps, id, name string, amount int64) {
	t.Helper()
	_, err := d.Activity.Grant(context.Background(), activity.Member{UserID: id, DisplayName: name}, amount)
	require.NoError(t, err)
}

func field(t *testing.T, e discord.Embed, name string) string {
	t.Helper()
	for _, f := range e.Fields {
		if f.Name == name {
			return f.Value
		}
	}
	t.Fatalf("embed has no field %q", name)
	return ""
}

func userError(t *testing.T, err error) string {
	t.Helper()
	var ue UserError
	require.True(t, errors.As(err, &ue), "expected a UserError, got %v", err)
	return string(ue)
}

func TestDispatch(t *testing.T) {
	ctx := context.Background()
	d := newDeps(t)

	_, err := Dispatch(ctx, d, "nope", caller(false, nil))
	assert.ErrorIs(t, err, ErrUnknownCommand)

	_, err = Dispatch(ctx, d, "setcooldown", caller(false, map[string]any{"seconds": int64(5)}))
	assert.ErrorIs(t, err, ErrNotAuthorized)

	in := caller(false, nil)
	in.Subcommand = "create"
	_, err = Dispatch(ctx, d, "event", in)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	reply, err := Dispatch(ctx, d, "setcooldown", caller(true, map[string]any{"seconds": int64(5)}))
	require.NoError(t, err)
	assert.True(t, reply.Ephemeral)

	cooldown, err := d.Settings.Cooldown(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cooldown)
}

func TestDefinitionsMatchTable(t *testing.T) {
	defined := map[string]bool{}
	for _, def := range Definitions() {
		slash, ok := def.(discord.SlashCommandCreate)
		require.True(t, ok)

		var subs int
		for _, opt := range slash.Options {
			if s, ok := opt.(discord.ApplicationCommandOptionSubCommand); ok {
				subs++
				defined[Key(slash.Name, s.Name)] = true
				assert.NotEmpty(t, s.Description, Key(slash.Name, s.Name))
			}
		}
		if subs == 0 {
			defined[slash.Name] = true
		}
		assert.NotEmpty(t, slash.Description, slash.Name)
	}

	for _, c := range All() {
		assert.True(t, defined[c.Name], "%s has no definition", c.Name)
	}
	assert.Len(t, defined, len(All()))
}

func TestRank(t *testing.T) {
	ctx := context.Background()
	d := newDeps(t)

	reply, err := Dispatch(ctx, d, "rank", caller(false, nil))
	require.NoError(t, err)
	assert.True(t, reply.Ephemeral)
	assert.Equal(t, "alice has not earned any XP yet!", reply.Content)

	grant(t, d, "u1", "alice", 40)
	grant(t, d, "u2", "bob", 90)

	reply, err = Dispatch(ctx, d, "rank", caller(false, nil))
	require.NoError(t, err)
	require.Len(t, reply.Embeds, 1)
	e := reply.Embeds[0]
	assert.Equal(t, "alice's Rank", e.Title)
	assert.Equal(t, "#2", field(t, e, "Rank"))
	assert.Equal(t, "40 / 100", field(t, e, "XP"))
	assert.Equal(t, "40%", field(t, e, "Progress"))

	reply, err = Dispatch(ctx, d, "level", caller(false, map[string]any{"user": UserRef{ID: "u2", Name: "bob"}}))
	require.NoError(t, err)
	assert.Equal(t, "bob is at Level 1 with 90 XP!", reply.Content)
}

func TestCompare(t *testing.T) {
	ctx := context.Background()
	d := newDeps(t)
	grant(t, d, "u1", "alice", 40)
	grant(t, d, "u2", "bob", 90)

	reply, err := Dispatch(ctx, d, "compare", caller(false, map[string]any{"user2": UserRef{ID: "u2", Name: "bob"}}))
	require.NoError(t, err)
	require.Len(t, reply.Embeds, 1)
	assert.Equal(t, "**bob** leads by 50 XP", reply.Embeds[0].Description)

	_, err = Dispatch(ctx, d, "compare", caller(false, map[string]any{"user2": UserRef{ID: "u1", Name: "alice"}}))
	assert.Equal(t, "Pick two different users.", userError(t, err))
}

func TestActivityShowsMultiplierForCaller(t *testing.T) {
	ctx := context.Background()
	d := newDeps(t)
	_, err := d.Activity.Award(ctx, activity.Member{UserID: "u1", DisplayName: "alice"},
		leveling.Activity{Source: leveling.SourceChallenge, Amount: 10})
	require.NoError(t, err)
	require.NoError(t, d.Settings.SetServerMultiplier(ctx, 1.5))

	reply, err := Dispatch(ctx, d, "activity", caller(false, nil))
	require.NoError(t, err)
	assert.Equal(t, "**×1.50** (server ×1.5)", field(t, reply.Embeds[0], "Multiplier"))
	assert.Equal(t, "10 XP", field(t, reply.Embeds[0], "Today"))
}

func TestLeaderboardPages(t *testing.T) {
	ctx := context.Background()
	d := newDeps(t)

	reply, err := Dispatch(ctx, d, "leaderboard", caller(false, nil))
	require.NoError(t, err)
	assert.True(t, reply.Ephemeral)

	for i := 1; i <= 12; i++ {
		grant(t, d, fmt.Sprintf("u%02d", i), fmt.Sprintf("user%d", i), int64(i*10))
	}

	reply, err = Dispatch(ctx, d, "leaderboard", caller(false, nil))
	require.NoError(t, err)
	require.Len(t, reply.Pages, 2)
	assert.Contains(t, reply.Pages[0].Description, "🥇 <@u12> - Level 1 (120 XP)")
	assert.Contains(t, reply.Pages[1].Description, "`12.` <@u01>")
	assert.Equal(t, "Page 2/2", reply.Pages[1].Footer.Text)

	// Admin grants are not period eligible.
	reply, err = Dispatch(ctx, d, "weekly", caller(false, nil))
	require.NoError(t, err)
	assert.Equal(t, "No users on the leaderboard yet!", reply.Content)
}

func TestSettingsValidation(t *testing.T) {
	ctx := context.Background()
	d := newDeps(t)

	_, err := Dispatch(ctx, d, "setcooldown", caller(true, map[string]any{"seconds": int64(301)}))
	assert.Equal(t, "seconds must be between 0 and 300.", userError(t, err))

	_, err = Dispatch(ctx, d, "setbanner", caller(true, map[string]any{"url": "not a url"}))
	userError(t, err)

	_, err = Dispatch(ctx, d, "setbanner", caller(true, map[string]any{"url": "https://example.com/banner.png"}))
	require.NoError(t, err)
	banner, err := d.Settings.Banner(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/banner.png", banner)

	_, err = Dispatch(ctx, d, "setquiethours", caller(true, map[string]any{"start": int64(23), "end": int64(6)}))
	require.NoError(t, err)
	q, ok, err := d.Settings.QuietHours(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.QuietHours{StartHour: 23, EndHour: 6, Multiplier: DefaultQuietMultiplier}, q)

	reply, err := Dispatch(ctx, d, "quiethours", caller(false, nil))
	require.NoError(t, err)
	assert.Equal(t, "Quiet hours run from 23:00 to 06:00 (UTC) with a ×0.5 XP multiplier.", reply.Content)
}

func TestRewardsAndMultipliers(t *testing.T) {
	ctx := context.Background()
	d := newDeps(t)

	reply, err := Dispatch(ctx, d, "rewards", caller(false, nil))
	require.NoError(t, err)
	assert.True(t, reply.Ephemeral)

	_, err = Dispatch(ctx, d, "setreward", caller(true, map[string]any{"level": int64(5), "role": RoleRef{ID: "r5", Name: "Regular"}}))
	require.NoError(t, err)
	_, err = Dispatch(ctx, d, "setmilestone", caller(true, map[string]any{"level": int64(10), "role": RoleRef{ID: "r10", Name: "Veteran"}}))
	require.NoError(t, err)

	reply, err = Dispatch(ctx, d, "rewards", caller(false, nil))
	require.NoError(t, err)
	assert.Equal(t, "Level 5: <@&r5>", reply.Embeds[0].Description)

	reply, err = Dispatch(ctx, d, "milestones", caller(false, nil))
	require.NoError(t, err)
	assert.Equal(t, "Level 10: <@&r10>", reply.Embeds[0].Description)

	_, err = Dispatch(ctx, d, "setvoicemultiplier", caller(true, map[string]any{"channel": ChannelRef{ID: "v1"}, "multiplier": 1.5}))
	require.NoError(t, err)
	reply, err = Dispatch(ctx, d, "voicemultipliers", caller(false, nil))
	require.NoError(t, err)
	assert.Equal(t, "<#v1>: ×1.5", reply.Embeds[0].Description)
}

func TestEventLifecycle(t *testing.T) {
	ctx := context.Background()
	d := newDeps(t)

	reply, err := Dispatch(ctx, d, "event", Input{UserID: "u1", Subcommand: "status"})
	require.NoError(t, err)
	assert.Equal(t, "No event is running.", reply.Content)

	create := caller(true, map[string]any{"name": "Double XP", "hours": int64(2)})
	create.Subcommand = "create"
	reply, err = Dispatch(ctx, d, "event", create)
	require.NoError(t, err)
	assert.Equal(t, "Event started: Double XP", reply.Embeds[0].Title)

	_, err = Dispatch(ctx, d, "event", create)
	assert.Contains(t, userError(t, err), "already running")

	reply, err = Dispatch(ctx, d, "event", Input{UserID: "u1", Subcommand: "status"})
	require.NoError(t, err)
	assert.Equal(t, "×2", field(t, reply.Embeds[0], "Multiplier"))

	end := caller(true, nil)
	end.Subcommand = "end"
	reply, err = Dispatch(ctx, d, "event", end)
	require.NoError(t, err)
	assert.Equal(t, "The Double XP event has ended.", reply.Content)

	reply, err = Dispatch(ctx, d, "event", Input{UserID: "u1", Subcommand: "list"})
	require.NoError(t, err)
	require.Len(t, reply.Pages, 1)
	assert.Contains(t, reply.Pages[0].Fields[0].Value, "ended early")
}

func TestChallengeProgress(t *testing.T) {
	ctx := context.Background()
	d := newDeps(t)
	_, err := d.Challenges.Record(ctx, "u1", models.ChallengeReactions, 4)
	require.NoError(t, err)

	reply, err := Dispatch(ctx, d, "challenge", Input{UserID: "u1", Subcommand: "progress"})
	require.NoError(t, err)
	assert.True(t, reply.Ephemeral)
	assert.Contains(t, reply.Embeds[0].Description, "⬜ **Appreciator**: 4/10")

	reply, err = Dispatch(ctx, d, "challenge", Input{UserID: "u1", Subcommand: "list"})
	require.NoError(t, err)
	assert.Len(t, reply.Embeds[0].Fields, 3)
}

func TestAddInviteAwardsXP(t *testing.T) {
	ctx := context.Background()
	d := newDeps(t)
	bob := UserRef{ID: "u2", Name: "bob"}

	_, err := Dispatch(ctx, d, "addinvite", caller(true, map[string]any{"user": bob, "amount": int64(2)}))
	require.NoError(t, err)

	u, err := d.Stores.Users.Get(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(2), u.Invites)
	assert.Equal(t, int64(2*settings.DefaultInviteXP), u.TotalXPEarned)

	reply, err := Dispatch(ctx, d, "invites", caller(false, map[string]any{"user": bob}))
	require.NoError(t, err)
	assert.Equal(t, "bob has invited 2 member(s).", reply.Content)
}

func TestResetUser(t *testing.T) {
	ctx := context.Background()
	d := newDeps(t)
	grant(t, d, "u2", "bob", 90)
	grant(t, d, "u2", "bob", 90)

	_, err := Dispatch(ctx, d, "resetuser", caller(true, map[string]any{"user": UserRef{ID: "u2", Name: "bob"}}))
	require.NoError(t, err)

	u, err := d.Stores.Users.Get(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, 1, u.Level)
	assert.Zero(t, u.XP)
	assert.Zero(t, u.TotalXPEarned)

	_, err = Dispatch(ctx, d, "resetall", caller(true, nil))
	require.NoError(t, err)
	_, err = d.Stores.Users.Get(ctx, "u2")
	assert.Error(t, err)
}

func TestVIPAndStreak(t *testing.T) {
	ctx := context.Background()
	d := newDeps(t)
	bob := UserRef{ID: "u2", Name: "bob"}

	reply, err := Dispatch(ctx, d, "checkvip", caller(false, map[string]any{"user": bob}))
	require.NoError(t, err)
	assert.Equal(t, "bob is not a VIP.", reply.Content)

	_, err = Dispatch(ctx, d, "setvip", caller(true, map[string]any{"user": bob, "days": int64(3)}))
	require.NoError(t, err)
	_, err = Dispatch(ctx, d, "setstreak", caller(true, map[string]any{"user": bob, "days": int64(14)}))
	require.NoError(t, err)

	u, err := d.Stores.Users.Get(ctx, "u2")
	require.NoError(t, err)
	assert.True(t, u.IsVIP(now))
	assert.False(t, u.IsVIP(now.Add(73*time.Hour)))
	assert.Equal(t, 14, u.Streak)
	assert.Equal(t, "2024-05-15", u.LastActiveDate)

	reply, err = Dispatch(ctx, d, "checkvip", caller(false, map[string]any{"user": bob}))
	require.NoError(t, err)
	assert.Contains(t, reply.Content, "bob is a VIP until <t:")
}

func TestMentors(t *testing.T) {
	ctx := context.Background()
	d := newDeps(t)
	alice := UserRef{ID: "u1", Name: "alice"}
	bob := UserRef{ID: "u2", Name: "bob"}

	_, err := Dispatch(ctx, d, "setmentor", caller(true, map[string]any{"mentor": alice, "mentee": alice}))
	userError(t, err)

	_, err = Dispatch(ctx, d, "setmentor", caller(true, map[string]any{"mentor": alice, "mentee": bob}))
	require.NoError(t, err)

	reply, err := Dispatch(ctx, d, "mentors", caller(false, nil))
	require.NoError(t, err)
	assert.Equal(t, "<@u2> (20% share)", field(t, reply.Embeds[0], "Your mentees"))

	reply, err = Dispatch(ctx, d, "removementor", caller(true, map[string]any{"mentor": alice, "mentee": bob}))
	require.NoError(t, err)
	assert.Equal(t, "alice no longer mentors bob.", reply.Content)
}

func TestBirthdayAndNotifications(t *testing.T) {
	ctx := context.Background()
	d := newDeps(t)

	_, err := Dispatch(ctx, d, "birthday", caller(false, map[string]any{"month": int64(2), "day": int64(29)}))
	require.NoError(t, err)
	b, err := d.Stores.Birthdays.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, b.Month)
	assert.Equal(t, 29, b.Day)

	_, err = Dispatch(ctx, d, "birthday", caller(false, map[string]any{"month": int64(2), "day": int64(29), "year": int64(2023)}))
	assert.Equal(t, "February has no day 29.", userError(t, err))

	_, err = Dispatch(ctx, d, "dmnotifications", caller(false, map[string]any{"action": "enable"}))
	require.NoError(t, err)
	u, err := d.Stores.Users.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, u.DMNotifications)
	assert.Equal(t, 1, u.Level)
}

func TestHelpSearch(t *testing.T) {
	all := Search("", true)
	assert.Len(t, all, len(All()))

	public := Search("", false)
	for _, c := range public {
		assert.False(t, c.Admin, c.Name)
	}

	found := Search("/leaderb", false)
	require.NotEmpty(t, found)
	assert.Equal(t, "leaderboard", found[0].Name)

	reply, err := Dispatch(context.Background(), newDeps(t), "help", caller(false, map[string]any{"query": "zzzz"}))
	require.NoError(t, err)
	assert.Equal(t, `No command matches "zzzz".`, reply.Content)
}
