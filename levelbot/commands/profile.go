package commands

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"

	"github.com/disgoorg/levelbot/levelbot/database/models"
	"github.com/disgoorg/levelbot/levelbot/database/repositories"
	"github.com/disgoorg/levelbot/levelbot/leveling"
	"github.com/disgoorg/levelbot/levelbot/multiplier"
	"github.com/disgoorg/levelbot/levelbot/streak"
)

func init() {
	register(
		Command{Name: "rank", Description: "Check your or another user's rank", Handle: rank},
		Command{Name: "level", Description: "Check your or another user's level", Handle: level},
		Command{Name: "compare", Description: "Compare XP with another user", Handle: compare},
		Command{Name: "activity", Description: "View your or another user's activity stats", Handle: activityStats},
		Command{Name: "invites", Description: "Check a user's invite count", Handle: invites},
		Command{Name: "checkvip", Description: "Check a user's VIP status", Handle: checkVIP},
		Command{Name: "mentors", Description: "View your mentors and mentees", Handle: mentors},
		Command{Name: "birthday", Description: "Set your birthday for 2x XP on your special day", Handle: birthday},
		Command{Name: "dmnotifications", Description: "Enable or disable DM level-up notifications", Handle: dmNotifications},
	)
}

func notRanked(name string) Reply {
	return private("%s has not earned any XP yet!", name)
}

// findUser returns nil without an error when the user has no record.
func findUser(ctx context.Context, d *Deps, id string) (*models.User, error) {
	u, err := d.Stores.Users.Get(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", id, err)
	}
	return u, nil
}

// loadOrCreate returns the record of ref, creating a level 1 record first
// when the user never earned XP.
func loadOrCreate(ctx context.Context, d *Deps, ref UserRef) (*models.User, error) {
	u, err := findUser(ctx, d, ref.ID)
	if err != nil || u != nil {
		return u, err
	}
	u = &models.User{
		ID:          ref.ID,
		DisplayName: ref.Name,
		Level:       1,
		LastSeenAt:  d.now(),
	}
	err = d.Stores.Users.Create(ctx, u)
	if errors.Is(err, repositories.ErrConflict) {
		return d.Stores.Users.Get(ctx, ref.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user %s: %w", ref.ID, err)
	}
	return u, nil
}

func progressPercent(u *models.User) int64 {
	return u.XP * 100 / leveling.RequiredXP(u.Level)
}

func rank(ctx context.Context, d *Deps, in Input) (Reply, error) {
	target := in.Target("user")
	u, err := findUser(ctx, d, target.ID)
	if err != nil {
		return Reply{}, err
	}
	if u == nil {
		return notRanked(target.Name), nil
	}

	position, err := d.Board.Rank(ctx, u.ID)
	if err != nil {
		return Reply{}, err
	}
	banner, err := d.Settings.Banner(ctx)
	if err != nil {
		return Reply{}, err
	}

	eb := discord.NewEmbedBuilder().
		SetColor(ColorDefault).
		SetTitle(fmt.Sprintf("%s's Rank", target.Name)).
		AddField("Rank", fmt.Sprintf("#%d", position), true).
		AddField("Level", fmt.Sprintf("%d", u.Level), true).
		AddField("XP", fmt.Sprintf("%d / %d", u.XP, leveling.RequiredXP(u.Level)), true).
		AddField("Progress", fmt.Sprintf("%d%%", progressPercent(u)), true).
		AddField("Total XP", fmt.Sprintf("%d", u.TotalXPEarned), true).
		AddField("Streak", fmt.Sprintf("%d days", u.Streak), true).
		SetImage(banner).
		SetTimestamp(d.now())
	return embed(eb), nil
}

func level(ctx context.Context, d *Deps, in Input) (Reply, error) {
	target := in.Target("user")
	u, err := findUser(ctx, d, target.ID)
	if err != nil {
		return Reply{}, err
	}
	if u == nil {
		return notRanked(target.Name), nil
	}
	return text("%s is at Level %d with %d XP!", target.Name, u.Level, u.XP), nil
}

func compare(ctx context.Context, d *Deps, in Input) (Reply, error) {
	first := in.Target("user1")
	second, ok := in.User("user2")
	if !ok {
		return Reply{}, UserError("Pick a user to compare with.")
	}
	if first.ID == second.ID {
		return Reply{}, UserError("Pick two different users.")
	}

	a, err := findUser(ctx, d, first.ID)
	if err != nil {
		return Reply{}, err
	}
	if a == nil {
		return notRanked(first.Name), nil
	}
	b, err := findUser(ctx, d, second.ID)
	if err != nil {
		return Reply{}, err
	}
	if b == nil {
		return notRanked(second.Name), nil
	}

	summary := func(u *models.User) string {
		return fmt.Sprintf("Level %d\n%d total XP\n%d weekly XP\n%d day streak", u.Level, u.TotalXPEarned, u.WeeklyXP, u.Streak)
	}

	leader, gap := first.Name, a.TotalXPEarned-b.TotalXPEarned
	if gap < 0 {
		leader, gap = second.Name, -gap
	}
	verdict := fmt.Sprintf("**%s** leads by %d XP", leader, gap)
	if gap == 0 {
		verdict = "Both users are tied"
	}

	eb := discord.NewEmbedBuilder().
		SetColor(ColorDefault).
		SetTitle(fmt.Sprintf("%s vs %s", first.Name, second.Name)).
		SetDescription(verdict).
		AddField(first.Name, summary(a), true).
		AddField(second.Name, summary(b), true).
		SetTimestamp(d.now())
	return embed(eb), nil
}

// activityStats shows the counters of a user and, for the caller, the live
// multiplier breakdown.
func activityStats(ctx context.Context, d *Deps, in Input) (Reply, error) {
	target := in.Target("user")
	u, err := findUser(ctx, d, target.ID)
	if err != nil {
		return Reply{}, err
	}
	if u == nil {
		return notRanked(target.Name), nil
	}

	today := d.now().In(d.location()).Format(streak.DayLayout)
	eb := discord.NewEmbedBuilder().
		SetColor(ColorDefault).
		SetTitle(fmt.Sprintf("%s's Activity", target.Name)).
		AddField("Total XP", fmt.Sprintf("%d", u.TotalXPEarned), true).
		AddField("Weekly XP", fmt.Sprintf("%d", u.WeeklyXP), true).
		AddField("Monthly XP", fmt.Sprintf("%d", u.MonthlyXP), true).
		AddField("Today", fmt.Sprintf("%d XP", u.TodayXPOn(today)), true).
		AddField("Streak", fmt.Sprintf("%d days (+%d XP)", u.Streak, streak.Bonus(u.Streak)), true).
		AddField("Voice", fmt.Sprintf("%d min this session", u.VoiceTime), true).
		AddField("Invites", fmt.Sprintf("%d", u.Invites), true).
		SetTimestamp(d.now())

	if !u.LastMessageTime.IsZero() {
		eb.AddField("Last message", timestamp(u.LastMessageTime, "R"), true)
	}

	if target.ID == in.UserID {
		factors, err := d.Resolver.Breakdown(ctx, multiplier.Subject{UserID: u.ID, User: u, Roles: in.Roles})
		if err != nil {
			return Reply{}, err
		}
		eb.AddField("Multiplier", formatFactors(factors), false)
	}
	return embed(eb), nil
}

func formatFactors(factors []multiplier.Factor) string {
	var parts []string
	for _, f := range factors {
		if f.Value == 1 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s ×%.2g", f.Name, f.Value))
	}
	total := fmt.Sprintf("**×%.2f**", multiplier.Product(factors))
	if len(parts) == 0 {
		return total
	}
	return total + " (" + strings.Join(parts, ", ") + ")"
}

func invites(ctx context.Context, d *Deps, in Input) (Reply, error) {
	target := in.Target("user")
	u, err := findUser(ctx, d, target.ID)
	if err != nil {
		return Reply{}, err
	}
	var n int64
	if u != nil {
		n = u.Invites
	}
	return text("%s has invited %d member(s).", target.Name, n), nil
}

func checkVIP(ctx context.Context, d *Deps, in Input) (Reply, error) {
	target := in.Target("user")
	u, err := findUser(ctx, d, target.ID)
	if err != nil {
		return Reply{}, err
	}
	if u == nil || !u.IsVIP(d.now()) {
		return text("%s is not a VIP.", target.Name), nil
	}
	return text("%s is a VIP until %s.", target.Name,
		timestamp(*u.VIPUntil, "D")), nil
}

func mentors(ctx context.Context, d *Deps, in Input) (Reply, error) {
	mentees, err := d.Stores.Mentors.MenteesOf(ctx, in.UserID)
	if err != nil {
		return Reply{}, err
	}
	mentoredBy, err := d.Stores.Mentors.MentorsOf(ctx, in.UserID)
	if err != nil {
		return Reply{}, err
	}
	if len(mentees) == 0 && len(mentoredBy) == 0 {
		return private("You have no mentors or mentees."), nil
	}

	list := func(ms []*models.Mentor, id func(*models.Mentor) string) string {
		if len(ms) == 0 {
			return "None"
		}
		lines := make([]string, 0, len(ms))
		for _, m := range ms {
			lines = append(lines, fmt.Sprintf("%s (%d%% share)", mention(id(m)), int(math.Round(m.Bonus*100))))
		}
		return strings.Join(lines, "\n")
	}

	eb := discord.NewEmbedBuilder().
		SetColor(ColorDefault).
		SetTitle("Mentorship").
		AddField("Your mentees", list(mentees, func(m *models.Mentor) string { return m.MenteeID }), false).
		AddField("Your mentors", list(mentoredBy, func(m *models.Mentor) string { return m.MentorID }), false)
	return embed(eb), nil
}

func birthday(ctx context.Context, d *Deps, in Input) (Reply, error) {
	month, _ := in.Int("month")
	day, _ := in.Int("day")
	year, _ := in.Int("year")

	if month < 1 || month > 12 {
		return Reply{}, UserError("Month must be between 1 and 12.")
	}
	// 2024 is a leap year so February 29 is accepted when no year is given.
	check := year
	if check == 0 {
		check = 2024
	}
	date := time.Date(int(check), time.Month(month), int(day), 0, 0, 0, 0, time.UTC)
	if day < 1 || date.Month() != time.Month(month) {
		return Reply{}, userErrorf("%s has no day %d.", time.Month(month), day)
	}
	if year != 0 && date.After(d.now()) {
		return Reply{}, UserError("That date is in the future.")
	}

	err := d.Stores.Birthdays.Set(ctx, &models.Birthday{
		UserID: in.UserID,
		Month:  int(month),
		Day:    int(day),
		Year:   int(year),
	})
	if err != nil {
		return Reply{}, err
	}
	return private("Birthday set to %s %d. You will earn 2x XP on that day!", time.Month(month), day), nil
}

func dmNotifications(ctx context.Context, d *Deps, in Input) (Reply, error) {
	var enabled bool
	switch in.String("action") {
	case "enable":
		enabled = true
	case "disable":
	default:
		return Reply{}, UserError("Choose enable or disable.")
	}

	u, err := loadOrCreate(ctx, d, UserRef{ID: in.UserID, Name: in.DisplayName})
	if err != nil {
		return Reply{}, err
	}
	u.DMNotifications = enabled
	if err = d.Stores.Users.Update(ctx, u); err != nil {
		return Reply{}, err
	}
	if enabled {
		return private("Level-up notifications will be sent to your DMs."), nil
	}
	return private("Level-up notifications will be posted in the server."), nil
}
