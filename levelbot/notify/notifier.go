// Package notify delivers level-up side effects and event announcements.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/disgoorg/levelbot/levelbot/database/models"
	"github.com/disgoorg/levelbot/levelbot/database/repositories"
	"github.com/disgoorg/levelbot/levelbot/events"
	"github.com/disgoorg/levelbot/levelbot/settings"
)

// ErrDMUndeliverable is returned by Platform.SendDM when the user cannot be
// reached privately.
var ErrDMUndeliverable = errors.New("direct message could not be delivered")

const (
	ColorLevelUp = 0x5865F2
	ColorEvent   = 0xF1C40F
)

type Message struct {
	Title       string
	Description string
	ImageURL    string
	Thumbnail   string
	Color       int
	Timestamp   time.Time
}

// Platform is the subset of the chat platform the notifier needs.
type Platform interface {
	AddRole(ctx context.Context, userID, roleID string) error
	SendChannel(ctx context.Context, channelID string, msg Message) error
	SendDM(ctx context.Context, userID string, msg Message) error
}

type LevelUp struct {
	UserID      string
	DisplayName string
	AvatarURL   string
	// ChannelID is where the activity happened, used when no announcement
	// channel is configured.
	ChannelID string
	// Roles are the roles the member already holds.
	Roles         []string
	NewLevel      int
	TotalXPEarned int64
}

type Notifier struct {
	platform Platform
	stores   *repositories.Stores
	settings *settings.Settings
}

var _ events.Announcer = (*Notifier)(nil)

func NewNotifier(platform Platform, stores *repositories.Stores, s *settings.Settings) *Notifier {
	return &Notifier{platform: platform, stores: stores, settings: s}
}

// Render fills the level-up template.
func Render(template, displayName, userID string, level int) string {
	return strings.NewReplacer(
		"{user}", displayName,
		"{level}", strconv.Itoa(level),
		"{mention}", "<@"+userID+">",
	).Replace(template)
}

// LevelUp grants reward and milestone roles and announces the new level.
// Role failures are logged and do not stop the announcement.
func (n *Notifier) LevelUp(ctx context.Context, lu LevelUp) error {
	if err := n.grantRoles(ctx, lu); err != nil {
		slog.Error("Failed to grant level roles",
			slog.String("type", "error"),
			slog.String("user_id", lu.UserID),
			slog.Int("level", lu.NewLevel),
			slog.Any("error", err))
	}

	template, err := n.settings.LevelUpMessage(ctx)
	if err != nil {
		return err
	}
	banner, err := n.settings.Banner(ctx)
	if err != nil {
		return err
	}
	msg := Message{
		Title:       "Level Up!",
		Description: Render(template, lu.DisplayName, lu.UserID, lu.NewLevel),
		ImageURL:    banner,
		Thumbnail:   lu.AvatarURL,
		Color:       ColorLevelUp,
		Timestamp:   time.Now(),
	}

	user, err := n.stores.Users.Get(ctx, lu.UserID)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if user != nil && user.DMNotifications {
		err = n.platform.SendDM(ctx, lu.UserID, msg)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrDMUndeliverable) {
			slog.Warn("Level-up DM failed",
				slog.String("type", "sys"),
				slog.String("user_id", lu.UserID),
				slog.Any("error", err))
		}
	}

	channelID, err := n.announcementChannel(ctx, lu.ChannelID)
	if err != nil || channelID == "" {
		return err
	}
	return n.platform.SendChannel(ctx, channelID, msg)
}

func (n *Notifier) grantRoles(ctx context.Context, lu LevelUp) error {
	var roles []string

	reward, err := n.stores.LevelRoles.Get(ctx, models.KindReward, lu.NewLevel)
	switch {
	case err == nil:
		roles = append(roles, reward)
	case !errors.Is(err, repositories.ErrNotFound):
		return fmt.Errorf("failed to load reward role: %w", err)
	}

	milestones, err := n.stores.LevelRoles.UpTo(ctx, models.KindMilestone, lu.NewLevel)
	if err != nil {
		return fmt.Errorf("failed to load milestone roles: %w", err)
	}
	for _, m := range milestones {
		roles = append(roles, m.RoleID)
	}

	eg, ctx := errgroup.WithContext(ctx)
	granted := make([]string, 0, len(roles))
	for _, roleID := range roles {
		if slices.Contains(lu.Roles, roleID) || slices.Contains(granted, roleID) {
			continue
		}
		granted = append(granted, roleID)
		eg.Go(func() error {
			if err := n.platform.AddRole(ctx, lu.UserID, roleID); err != nil {
				return fmt.Errorf("role %s: %w", roleID, err)
			}
			return nil
		})
	}
	return eg.Wait()
}

func (n *Notifier) announcementChannel(ctx context.Context, fallback string) (string, error) {
	channelID, err := n.settings.AnnouncementChannel(ctx)
	if err != nil {
		return "", err
	}
	if channelID == "" {
		return fallback, nil
	}
	return channelID, nil
}

func (n *Notifier) EventStarted(ctx context.Context, event *models.Event) {
	n.announce(ctx, Message{
		Title: "Event started: " + event.Name,
		Description: fmt.Sprintf("All XP is multiplied by **%.2gx** until <t:%d:f>.",
			event.Multiplier, event.EndTime.Unix()),
		Color:     ColorEvent,
		Timestamp: event.StartTime,
	})
}

func (n *Notifier) EventEnded(ctx context.Context, event *models.Event, reason events.EndReason) {
	description := "The event has ended. Thanks for taking part!"
	if reason == events.EndedExpired {
		description = "The event ran its course. Thanks for taking part!"
	}
	n.announce(ctx, Message{
		Title:       "Event over: " + event.Name,
		Description: description,
		Color:       ColorEvent,
		Timestamp:   time.Now(),
	})
}

func (n *Notifier) announce(ctx context.Context, msg Message) {
	channelID, err := n.announcementChannel(ctx, "")
	if err != nil || channelID == "" {
		return
	}
	if err = n.platform.SendChannel(ctx, channelID, msg); err != nil {
		slog.Error("Failed to send announcement",
			slog.String("type", "error"),
			slog.String("channel_id", channelID),
			slog.Any("error", err))
	}
}
