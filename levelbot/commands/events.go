package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"

	"github.com/disgoorg/levelbot/levelbot/challenges"
	"github.com/disgoorg/levelbot/levelbot/database/models"
	"github.com/disgoorg/levelbot/levelbot/events"
)

const (
	historySize    = 25
	historyPerPage = 5
)

func init() {
	register(
		Command{Name: "event create", Description: "Create a new XP event", Admin: true, Handle: eventCreate},
		Command{Name: "event end", Description: "End the active event", Admin: true, Handle: eventEnd},
		Command{Name: "event list", Description: "View event history", Handle: eventList},
		Command{Name: "event status", Description: "Check current active event", Handle: eventStatus},
		Command{Name: "challenge list", Description: "View available challenges", Handle: challengeList},
		Command{Name: "challenge progress", Description: "View your challenge progress", Handle: challengeProgress},
	)
}

func eventCreate(ctx context.Context, d *Deps, in Input) (Reply, error) {
	hours, err := intIn(in, "hours", 1, int64(events.MaxDuration/time.Hour))
	if err != nil {
		return Reply{}, err
	}
	m, _ := in.Float("multiplier")

	event, err := d.Events.Create(ctx, events.CreateParams{
		Name:       in.String("name"),
		Duration:   time.Duration(hours) * time.Hour,
		Multiplier: m,
		Creator:    in.UserID,
	})
	switch {
	case errors.Is(err, events.ErrEventActive):
		return Reply{}, UserError("An event is already running. End it before starting a new one.")
	case errors.Is(err, events.ErrInvalidEvent):
		return Reply{}, userErrorf("Events need a name, up to %d hours and a multiplier between %g and %g.",
			int(events.MaxDuration/time.Hour), events.MinMultiplier, events.MaxMultiplier)
	case err != nil:
		return Reply{}, err
	}

	eb := discord.NewEmbedBuilder().
		SetColor(ColorDefault).
		SetTitle("Event started: " + event.Name).
		SetDescription(fmt.Sprintf("Everyone earns ×%g XP until %s.", event.Multiplier, timestamp(event.EndTime, "f")))
	return embed(eb), nil
}

func eventEnd(ctx context.Context, d *Deps, in Input) (Reply, error) {
	event, err := d.Events.End(ctx)
	if errors.Is(err, events.ErrNoActiveEvent) {
		return private("No event is running."), nil
	}
	if err != nil {
		return Reply{}, err
	}
	return text("The %s event has ended.", event.Name), nil
}

func eventStatus(ctx context.Context, d *Deps, in Input) (Reply, error) {
	event, err := d.Events.Active(ctx)
	if errors.Is(err, events.ErrNoActiveEvent) {
		return text("No event is running."), nil
	}
	if err != nil {
		return Reply{}, err
	}

	eb := discord.NewEmbedBuilder().
		SetColor(ColorDefault).
		SetTitle(event.Name).
		AddField("Multiplier", fmt.Sprintf("×%g", event.Multiplier), true).
		AddField("Started", timestamp(event.StartTime, "R"), true).
		AddField("Ends", timestamp(event.EndTime, "R"), true)
	if event.Creator != "" {
		eb.AddField("Created by", mention(event.Creator), true)
	}
	return embed(eb), nil
}

func eventList(ctx context.Context, d *Deps, in Input) (Reply, error) {
	history, err := d.Events.History(ctx, historySize)
	if err != nil {
		return Reply{}, err
	}
	if len(history) == 0 {
		return private("No events have been run yet."), nil
	}
	return Reply{Pages: historyPages(history, d.now())}, nil
}

func eventState(e *models.Event, now time.Time) string {
	switch {
	case e.Active && !e.Expired(now):
		return "running"
	case e.EndedAt != nil && e.EndedAt.Before(e.EndTime):
		return "ended early"
	default:
		return "finished"
	}
}

func historyPages(history []*models.Event, now time.Time) []discord.Embed {
	total := (len(history) + historyPerPage - 1) / historyPerPage
	pages := make([]discord.Embed, 0, total)
	for start := 0; start < len(history); start += historyPerPage {
		end := min(start+historyPerPage, len(history))
		eb := discord.NewEmbedBuilder().
			SetColor(ColorDefault).
			SetTitle("Event History").
			SetFooter(fmt.Sprintf("Page %d/%d", len(pages)+1, total), "")
		for _, e := range history[start:end] {
			eb.AddField(e.Name, fmt.Sprintf("×%g from %s to %s (%s)",
				e.Multiplier, timestamp(e.StartTime, "f"), timestamp(e.EndTime, "f"), eventState(e, now)), false)
		}
		pages = append(pages, eb.Build())
	}
	return pages
}

func challengeList(ctx context.Context, d *Deps, in Input) (Reply, error) {
	active, err := d.Challenges.Active(ctx)
	if err != nil {
		return Reply{}, err
	}
	if len(active) == 0 {
		return private("There are no challenges today."), nil
	}
	eb := discord.NewEmbedBuilder().
		SetColor(ColorDefault).
		SetTitle("Daily Challenges").
		SetFooter("Progress resets every day", "")
	for _, c := range active {
		eb.AddField(c.Name, fmt.Sprintf("%s\nReward: %d XP", c.Description, c.RewardXP), false)
	}
	return embed(eb), nil
}

func challengeProgress(ctx context.Context, d *Deps, in Input) (Reply, error) {
	statuses, err := d.Challenges.Statuses(ctx, in.UserID)
	if err != nil {
		return Reply{}, err
	}
	if len(statuses) == 0 {
		return private("There are no challenges today."), nil
	}
	lines := make([]string, 0, len(statuses))
	for _, s := range statuses {
		lines = append(lines, progressLine(s))
	}
	eb := discord.NewEmbedBuilder().
		SetColor(ColorDefault).
		SetTitle("Your Challenge Progress").
		SetDescription(strings.Join(lines, "\n"))
	return Reply{Embeds: []discord.Embed{eb.Build()}, Ephemeral: true}, nil
}

func progressLine(s challenges.Status) string {
	mark := "⬜"
	if s.Completed {
		mark = "✅"
	}
	shown := min(s.Progress, s.Challenge.Target)
	return fmt.Sprintf("%s **%s**: %d/%d", mark, s.Challenge.Name, shown, s.Challenge.Target)
}
