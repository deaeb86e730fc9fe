package commands

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/disgoorg/levelbot/levelbot/activity"
	"github.com/disgoorg/levelbot/levelbot/database/models"
	"github.com/disgoorg/levelbot/levelbot/leaderboard"
	"github.com/disgoorg/levelbot/levelbot/settings"
	"github.com/disgoorg/levelbot/levelbot/streak"
)

const (
	DefaultQuietMultiplier = 0.5
	DefaultMentorBonus     = 0.2
)

var validate = validator.New()

func init() {
	register(
		Command{Name: "setcooldown", Description: "Set the XP gain cooldown (in seconds)", Admin: true, Handle: setCooldown},
		Command{Name: "setbanner", Description: "Set the level-up announcement banner image", Admin: true, Handle: setBanner},
		Command{Name: "setreward", Description: "Set a role reward for a specific level", Admin: true, Handle: setLevelRole(models.KindReward)},
		Command{Name: "setmilestone", Description: "Set an auto-role milestone at a certain level", Admin: true, Handle: setLevelRole(models.KindMilestone)},
		Command{Name: "setmessage", Description: "Set the level-up announcement message", Admin: true, Handle: setMessage},
		Command{Name: "setchannel", Description: "Set the level-up announcement channel", Admin: true, Handle: setChannel},
		Command{Name: "setdailybonus", Description: "Set the daily bonus XP amount", Admin: true, Handle: setDailyBonus},
		Command{Name: "setmultiplier", Description: "Set the server-wide XP multiplier", Admin: true, Handle: setServerMultiplier},
		Command{Name: "setrolemultiplier", Description: "Set XP multiplier for a role", Admin: true, Handle: setRoleMultiplier},
		Command{Name: "setvoicemultiplier", Description: "Set XP multiplier for a voice channel", Admin: true, Handle: setVoiceMultiplier},
		Command{Name: "setxpcap", Description: "Set the daily XP cap per user", Admin: true, Handle: setXPCap},
		Command{Name: "setreactionxp", Description: "Set XP earned when others react to your messages", Admin: true, Handle: setReactionXP},
		Command{Name: "setwelcomebonus", Description: "Set welcome bonus XP for new members", Admin: true, Handle: setWelcomeBonus},
		Command{Name: "setquiethours", Description: "Set quiet hours with reduced XP", Admin: true, Handle: setQuietHours},
		Command{Name: "addinvite", Description: "Credit invites to a user", Admin: true, Handle: addInvite},
		Command{Name: "blacklist", Description: "Add or remove a channel from XP blacklist", Admin: true, Handle: blacklist},
		Command{Name: "resetuser", Description: "Reset XP and level for a user", Admin: true, Handle: resetUser},
		Command{Name: "resetall", Description: "Reset all users XP and levels", Admin: true, Handle: resetAll},
		Command{Name: "setvip", Description: "Set VIP status for a user", Admin: true, Handle: setVIP},
		Command{Name: "setstreak", Description: "Set streak for a user", Admin: true, Handle: setStreak},
		Command{Name: "setmentor", Description: "Set a mentor-mentee relationship", Admin: true, Handle: setMentor},
		Command{Name: "removementor", Description: "Remove a mentor-mentee relationship", Admin: true, Handle: removeMentor},
		Command{Name: "addxp", Description: "Grant XP to a user", Admin: true, Handle: addXP},
	)
}

// intIn reads a required integer option bounded by lo and hi.
func intIn(in Input, name string, lo, hi int64) (int64, error) {
	v, ok := in.Int(name)
	if !ok {
		return 0, userErrorf("Missing option %s.", name)
	}
	if v < lo || v > hi {
		return 0, userErrorf("%s must be between %d and %d.", name, lo, hi)
	}
	return v, nil
}

func floatIn(in Input, name string, lo, hi float64) (float64, error) {
	v, ok := in.Float(name)
	if !ok {
		return 0, userErrorf("Missing option %s.", name)
	}
	if v < lo || v > hi {
		return 0, userErrorf("%s must be between %g and %g.", name, lo, hi)
	}
	return v, nil
}

func requireUser(in Input, name string) (UserRef, error) {
	u, ok := in.User(name)
	if !ok {
		return UserRef{}, userErrorf("Missing option %s.", name)
	}
	return u, nil
}

func setCooldown(ctx context.Context, d *Deps, in Input) (Reply, error) {
	seconds, err := intIn(in, "seconds", 0, 300)
	if err != nil {
		return Reply{}, err
	}
	if err = d.Settings.SetCooldown(ctx, int(seconds)); err != nil {
		return Reply{}, err
	}
	return private("Cooldown set to %d seconds!", seconds), nil
}

func setBanner(ctx context.Context, d *Deps, in Input) (Reply, error) {
	url := in.String("url")
	if err := validate.Var(url, "required,url"); err != nil {
		return Reply{}, UserError("That is not a valid image URL.")
	}
	if err := d.Settings.SetBanner(ctx, url); err != nil {
		return Reply{}, err
	}
	return private("Banner image updated!"), nil
}

func setLevelRole(kind models.LevelRoleKind) Handler {
	return func(ctx context.Context, d *Deps, in Input) (Reply, error) {
		lvl, err := intIn(in, "level", 1, 1000)
		if err != nil {
			return Reply{}, err
		}
		role, ok := in.Role("role")
		if !ok {
			return Reply{}, UserError("Missing option role.")
		}
		if err = d.Stores.LevelRoles.Set(ctx, kind, int(lvl), role.ID); err != nil {
			return Reply{}, err
		}
		if kind == models.KindMilestone {
			return private("Members at level %d or above will receive the %s role!", lvl, role.Name), nil
		}
		return private("Level %d will now grant the %s role!", lvl, role.Name), nil
	}
}

func setMessage(ctx context.Context, d *Deps, in Input) (Reply, error) {
	message := in.String("message")
	if message == "" {
		return Reply{}, UserError("The message cannot be empty.")
	}
	if err := d.Settings.SetLevelUpMessage(ctx, message); err != nil {
		return Reply{}, err
	}
	return private("Level-up message updated!"), nil
}

func setChannel(ctx context.Context, d *Deps, in Input) (Reply, error) {
	ch, ok := in.Channel("channel")
	if !ok {
		return Reply{}, UserError("Missing option channel.")
	}
	if err := d.Settings.SetAnnouncementChannel(ctx, ch.ID); err != nil {
		return Reply{}, err
	}
	return private("Level-up announcements will be sent to %s!", channelMention(ch.ID)), nil
}

func setDailyBonus(ctx context.Context, d *Deps, in Input) (Reply, error) {
	amount, err := intIn(in, "amount", 0, 100)
	if err != nil {
		return Reply{}, err
	}
	if err = d.Settings.SetDailyBonus(ctx, amount); err != nil {
		return Reply{}, err
	}
	return private("Daily bonus set to %d XP!", amount), nil
}

func setServerMultiplier(ctx context.Context, d *Deps, in Input) (Reply, error) {
	m, err := floatIn(in, "multiplier", 0.1, 10)
	if err != nil {
		return Reply{}, err
	}
	if err = d.Settings.SetServerMultiplier(ctx, m); err != nil {
		return Reply{}, err
	}
	return private("Server multiplier set to ×%g!", m), nil
}

func setRoleMultiplier(ctx context.Context, d *Deps, in Input) (Reply, error) {
	role, ok := in.Role("role")
	if !ok {
		return Reply{}, UserError("Missing option role.")
	}
	m, err := floatIn(in, "multiplier", 0.1, 10)
	if err != nil {
		return Reply{}, err
	}
	if err = d.Stores.Multipliers.Set(ctx, models.ScopeRole, role.ID, m); err != nil {
		return Reply{}, err
	}
	return private("%s now earns ×%g XP!", role.Name, m), nil
}

func setVoiceMultiplier(ctx context.Context, d *Deps, in Input) (Reply, error) {
	ch, ok := in.Channel("channel")
	if !ok {
		return Reply{}, UserError("Missing option channel.")
	}
	m, err := floatIn(in, "multiplier", 0.1, 10)
	if err != nil {
		return Reply{}, err
	}
	if err = d.Stores.Multipliers.Set(ctx, models.ScopeVoice, ch.ID, m); err != nil {
		return Reply{}, err
	}
	return private("%s now earns ×%g XP!", channelMention(ch.ID), m), nil
}

func setXPCap(ctx context.Context, d *Deps, in Input) (Reply, error) {
	amount, err := intIn(in, "amount", 0, 10000)
	if err != nil {
		return Reply{}, err
	}
	if err = d.Settings.SetXPCap(ctx, amount); err != nil {
		return Reply{}, err
	}
	if amount == 0 {
		return private("Daily XP cap removed!"), nil
	}
	return private("Daily XP cap set to %d!", amount), nil
}

func setReactionXP(ctx context.Context, d *Deps, in Input) (Reply, error) {
	amount, err := intIn(in, "amount", 0, 10)
	if err != nil {
		return Reply{}, err
	}
	if err = d.Settings.SetReactionXP(ctx, amount); err != nil {
		return Reply{}, err
	}
	return private("Reaction XP set to %d!", amount), nil
}

func setWelcomeBonus(ctx context.Context, d *Deps, in Input) (Reply, error) {
	amount, err := intIn(in, "amount", 0, 1000)
	if err != nil {
		return Reply{}, err
	}
	days, err := intIn(in, "days", 1, 30)
	if err != nil {
		return Reply{}, err
	}
	if err = d.Settings.SetWelcomeBonus(ctx, settings.WelcomeBonus{Amount: amount, Days: int(days)}); err != nil {
		return Reply{}, err
	}
	return private("New members receive %d XP and a boost for %d days!", amount, days), nil
}

func setQuietHours(ctx context.Context, d *Deps, in Input) (Reply, error) {
	start, err := intIn(in, "start", 0, 23)
	if err != nil {
		return Reply{}, err
	}
	end, err := intIn(in, "end", 0, 23)
	if err != nil {
		return Reply{}, err
	}
	m := DefaultQuietMultiplier
	if _, ok := in.Float("multiplier"); ok {
		if m, err = floatIn(in, "multiplier", 0.1, 1); err != nil {
			return Reply{}, err
		}
	}

	q := models.QuietHours{StartHour: int(start), EndHour: int(end), Multiplier: m}
	if err = d.Settings.SetQuietHours(ctx, q); err != nil {
		return Reply{}, err
	}
	if start == end {
		return private("Quiet hours disabled."), nil
	}
	return private("Quiet hours set from %02d:00 to %02d:00 with ×%g XP!", start, end, m), nil
}

// addInvite credits invites reported by an operator, each earning invite XP.
func addInvite(ctx context.Context, d *Deps, in Input) (Reply, error) {
	target, err := requireUser(in, "user")
	if err != nil {
		return Reply{}, err
	}
	amount := int64(1)
	if _, ok := in.Int("amount"); ok {
		if amount, err = intIn(in, "amount", 1, 100); err != nil {
			return Reply{}, err
		}
	}

	for range amount {
		d.Activity.OnInvite(ctx, activity.Member{UserID: target.ID, DisplayName: target.Name})
	}
	return private("Added %d invite(s) to %s!", amount, target.Name), nil
}

func blacklist(ctx context.Context, d *Deps, in Input) (Reply, error) {
	ch, ok := in.Channel("channel")
	if !ok {
		return Reply{}, UserError("Missing option channel.")
	}
	switch in.String("action") {
	case "add":
		if err := d.Stores.Blacklist.Add(ctx, ch.ID); err != nil {
			return Reply{}, err
		}
		return private("%s no longer earns XP.", channelMention(ch.ID)), nil
	case "remove":
		removed, err := d.Stores.Blacklist.Remove(ctx, ch.ID)
		if err != nil {
			return Reply{}, err
		}
		if !removed {
			return private("%s was not blacklisted.", channelMention(ch.ID)), nil
		}
		return private("%s earns XP again.", channelMention(ch.ID)), nil
	default:
		return Reply{}, UserError("Choose add or remove.")
	}
}

func resetUser(ctx context.Context, d *Deps, in Input) (Reply, error) {
	target, err := requireUser(in, "user")
	if err != nil {
		return Reply{}, err
	}
	u, err := findUser(ctx, d, target.ID)
	if err != nil {
		return Reply{}, err
	}
	if u == nil {
		return notRanked(target.Name), nil
	}

	u.XP, u.Level, u.TotalXPEarned = 0, 1, 0
	u.WeeklyXP, u.MonthlyXP, u.TodayXP = 0, 0, 0
	u.Streak, u.LastActiveDate = 0, ""
	if err = d.Stores.Users.Update(ctx, u); err != nil {
		return Reply{}, err
	}
	if err = d.Board.Forget(ctx, u.ID); err != nil {
		return Reply{}, err
	}
	return private("%s has been reset to level 1.", target.Name), nil
}

func resetAll(ctx context.Context, d *Deps, in Input) (Reply, error) {
	n, err := d.Stores.Users.DeleteAll(ctx)
	if err != nil {
		return Reply{}, err
	}
	for _, period := range leaderboard.Periods {
		if err = d.Board.Reset(ctx, period); err != nil {
			return Reply{}, err
		}
	}
	return private("Reset %d user(s).", n), nil
}

func setVIP(ctx context.Context, d *Deps, in Input) (Reply, error) {
	target, err := requireUser(in, "user")
	if err != nil {
		return Reply{}, err
	}
	days, err := intIn(in, "days", 1, 365)
	if err != nil {
		return Reply{}, err
	}
	u, err := loadOrCreate(ctx, d, target)
	if err != nil {
		return Reply{}, err
	}
	until := d.now().Add(time.Duration(days) * 24 * time.Hour)
	u.VIPUntil = &until
	if err = d.Stores.Users.Update(ctx, u); err != nil {
		return Reply{}, err
	}
	return private("%s is a VIP until %s!", target.Name, timestamp(until, "D")), nil
}

func setStreak(ctx context.Context, d *Deps, in Input) (Reply, error) {
	target, err := requireUser(in, "user")
	if err != nil {
		return Reply{}, err
	}
	days, err := intIn(in, "days", 0, 365)
	if err != nil {
		return Reply{}, err
	}
	u, err := loadOrCreate(ctx, d, target)
	if err != nil {
		return Reply{}, err
	}
	u.Streak = int(days)
	u.LastActiveDate = ""
	if days > 0 {
		// Counts as active today so the next message keeps the streak.
		u.LastActiveDate = d.now().In(d.location()).Format(streak.DayLayout)
	}
	if err = d.Stores.Users.Update(ctx, u); err != nil {
		return Reply{}, err
	}
	return private("%s now has a %d day streak.", target.Name, days), nil
}

func setMentor(ctx context.Context, d *Deps, in Input) (Reply, error) {
	mentor, err := requireUser(in, "mentor")
	if err != nil {
		return Reply{}, err
	}
	mentee, err := requireUser(in, "mentee")
	if err != nil {
		return Reply{}, err
	}
	if mentor.ID == mentee.ID {
		return Reply{}, UserError("A user cannot mentor themselves.")
	}
	bonus := DefaultMentorBonus
	if _, ok := in.Float("bonus"); ok {
		if bonus, err = floatIn(in, "bonus", 0.1, 1); err != nil {
			return Reply{}, err
		}
	}

	err = d.Stores.Mentors.Add(ctx, &models.Mentor{
		MentorID:  mentor.ID,
		MenteeID:  mentee.ID,
		Bonus:     bonus,
		CreatedAt: d.now(),
	})
	if err != nil {
		return Reply{}, err
	}
	return private("%s now mentors %s and earns %d%% of their XP.", mentor.Name, mentee.Name, int(math.Round(bonus*100))), nil
}

func removeMentor(ctx context.Context, d *Deps, in Input) (Reply, error) {
	mentor, err := requireUser(in, "mentor")
	if err != nil {
		return Reply{}, err
	}
	mentee, err := requireUser(in, "mentee")
	if err != nil {
		return Reply{}, err
	}
	removed, err := d.Stores.Mentors.Remove(ctx, mentor.ID, mentee.ID)
	if err != nil {
		return Reply{}, err
	}
	if !removed {
		return private("%s does not mentor %s.", mentor.Name, mentee.Name), nil
	}
	return private("%s no longer mentors %s.", mentor.Name, mentee.Name), nil
}

func addXP(ctx context.Context, d *Deps, in Input) (Reply, error) {
	target, err := requireUser(in, "user")
	if err != nil {
		return Reply{}, err
	}
	amount, err := intIn(in, "amount", 1, 100000)
	if err != nil {
		return Reply{}, err
	}
	res, err := d.Activity.Grant(ctx, activity.Member{UserID: target.ID, DisplayName: target.Name, ChannelID: in.ChannelID}, amount)
	if err != nil {
		return Reply{}, fmt.Errorf("failed to grant xp: %w", err)
	}
	return private("Granted %d XP to %s. They are now level %d with %d XP.", res.GrantedXP, target.Name, res.NewLevel, res.NewXP), nil
}
