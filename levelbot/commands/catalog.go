package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/discord"

	"github.com/disgoorg/levelbot/levelbot/database/models"
)

func init() {
	register(
		Command{Name: "rewards", Description: "View all level rewards", Handle: levelRoles(models.KindReward, "Level Rewards", "No level rewards configured yet!")},
		Command{Name: "milestones", Description: "View all level milestones", Handle: levelRoles(models.KindMilestone, "Level Milestones", "No milestones configured yet!")},
		Command{Name: "rolemultipliers", Description: "View all role multipliers", Handle: multipliers(models.ScopeRole, "Role Multipliers", roleMention)},
		Command{Name: "voicemultipliers", Description: "View all voice channel multipliers", Handle: multipliers(models.ScopeVoice, "Voice Channel Multipliers", channelMention)},
		Command{Name: "quiethours", Description: "View current quiet hours settings", Handle: quietHours},
		Command{Name: "blacklistchannels", Description: "View all blacklisted channels", Handle: blacklistChannels},
	)
}

func listEmbed(title string, lines []string) Reply {
	return embed(discord.NewEmbedBuilder().
		SetColor(ColorDefault).
		SetTitle(title).
		SetDescription(strings.Join(lines, "\n")))
}

func levelRoles(kind models.LevelRoleKind, title, empty string) Handler {
	return func(ctx context.Context, d *Deps, in Input) (Reply, error) {
		roles, err := d.Stores.LevelRoles.List(ctx, kind)
		if err != nil {
			return Reply{}, err
		}
		if len(roles) == 0 {
			return private("%s", empty), nil
		}
		lines := make([]string, 0, len(roles))
		for _, r := range roles {
			lines = append(lines, fmt.Sprintf("Level %d: %s", r.Level, roleMention(r.RoleID)))
		}
		return listEmbed(title, lines), nil
	}
}

func multipliers(scope models.MultiplierScope, title string, format func(string) string) Handler {
	return func(ctx context.Context, d *Deps, in Input) (Reply, error) {
		ms, err := d.Stores.Multipliers.List(ctx, scope)
		if err != nil {
			return Reply{}, err
		}
		if len(ms) == 0 {
			return private("No %s configured yet!", strings.ToLower(title)), nil
		}
		lines := make([]string, 0, len(ms))
		for _, m := range ms {
			lines = append(lines, fmt.Sprintf("%s: ×%g", format(m.TargetID), m.Value))
		}
		return listEmbed(title, lines), nil
	}
}

func quietHours(ctx context.Context, d *Deps, in Input) (Reply, error) {
	q, ok, err := d.Settings.QuietHours(ctx)
	if err != nil {
		return Reply{}, err
	}
	if !ok || q.StartHour == q.EndHour {
		return text("Quiet hours are not configured."), nil
	}
	return text("Quiet hours run from %02d:00 to %02d:00 (%s) with a ×%g XP multiplier.",
		q.StartHour, q.EndHour, d.location(), q.Multiplier), nil
}

func blacklistChannels(ctx context.Context, d *Deps, in Input) (Reply, error) {
	ids, err := d.Stores.Blacklist.List(ctx)
	if err != nil {
		return Reply{}, err
	}
	if len(ids) == 0 {
		return private("No channels are blacklisted."), nil
	}
	lines := make([]string, 0, len(ids))
	for _, id := range ids {
		lines = append(lines, channelMention(id))
	}
	return listEmbed("Blacklisted Channels", lines), nil
}
