package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/discord"

	"github.com/disgoorg/levelbot/levelbot/database/repositories"
	"github.com/disgoorg/levelbot/levelbot/events"
	"github.com/disgoorg/levelbot/levelbot/leaderboard"
)

const (
	boardSize    = 50
	boardPerPage = 10
)

func init() {
	register(
		Command{Name: "leaderboard", Description: "View the top users by total XP", Handle: standings(repositories.PeriodTotal, "Leaderboard")},
		Command{Name: "weekly", Description: "View the weekly leaderboard", Handle: standings(repositories.PeriodWeekly, "Weekly Leaderboard")},
		Command{Name: "monthly", Description: "View the monthly leaderboard", Handle: standings(repositories.PeriodMonthly, "Monthly Leaderboard")},
		Command{Name: "stats", Description: "View server XP statistics", Handle: stats},
	)
}

var medals = []string{"🥇", "🥈", "🥉"}

func placing(r int) string {
	if r <= len(medals) {
		return medals[r-1]
	}
	return fmt.Sprintf("`%d.`", r)
}

func standings(period repositories.Period, title string) Handler {
	return func(ctx context.Context, d *Deps, in Input) (Reply, error) {
		entries, err := d.Board.Top(ctx, period, boardSize)
		if err != nil {
			return Reply{}, err
		}
		if len(entries) == 0 {
			return private("No users on the leaderboard yet!"), nil
		}

		banner, err := d.Settings.Banner(ctx)
		if err != nil {
			return Reply{}, err
		}
		return Reply{Pages: boardPages(entries, title, banner)}, nil
	}
}

func boardPages(entries []leaderboard.Entry, title, banner string) []discord.Embed {
	total := (len(entries) + boardPerPage - 1) / boardPerPage
	pages := make([]discord.Embed, 0, total)
	for start := 0; start < len(entries); start += boardPerPage {
		end := min(start+boardPerPage, len(entries))

		var sb strings.Builder
		for _, e := range entries[start:end] {
			fmt.Fprintf(&sb, "%s %s - Level %d (%d XP)\n", placing(e.Rank), mention(e.UserID), e.Level, e.Score)
		}

		eb := discord.NewEmbedBuilder().
			SetColor(ColorDefault).
			SetTitle(title).
			SetDescription(sb.String()).
			SetFooter(fmt.Sprintf("Page %d/%d", len(pages)+1, total), "")
		if len(pages) == 0 {
			eb.SetImage(banner)
		}
		pages = append(pages, eb.Build())
	}
	return pages
}

func stats(ctx context.Context, d *Deps, in Input) (Reply, error) {
	s, err := d.Stores.Users.Stats(ctx)
	if err != nil {
		return Reply{}, err
	}

	eb := discord.NewEmbedBuilder().
		SetColor(ColorDefault).
		SetTitle("Server XP Statistics").
		AddField("Members ranked", fmt.Sprintf("%d", s.Users), true).
		AddField("Total XP", fmt.Sprintf("%d", s.TotalXP), true).
		AddField("XP this week", fmt.Sprintf("%d", s.WeeklyXP), true).
		AddField("Average level", fmt.Sprintf("%.1f", s.AvgLevel), true).
		AddField("Highest level", fmt.Sprintf("%d", s.TopLevel), true).
		SetTimestamp(d.now())

	event, err := d.Events.Active(ctx)
	switch {
	case err == nil:
		eb.AddField("Active event", fmt.Sprintf("%s (×%g, ends %s)", event.Name, event.Multiplier, timestamp(event.EndTime, "R")), false)
	case !errors.Is(err, events.ErrNoActiveEvent):
		return Reply{}, err
	}

	top, err := d.Board.Top(ctx, repositories.PeriodWeekly, 1)
	if err != nil {
		return Reply{}, err
	}
	if len(top) > 0 && top[0].Score > 0 {
		eb.AddField("Top of the week", fmt.Sprintf("%s with %d XP", mention(top[0].UserID), top[0].Score), false)
	}
	return embed(eb), nil
}
