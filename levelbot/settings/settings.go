// Package settings reads and writes the operator settings kept in the config
// keyspace. Missing keys resolve to their defaults.
package settings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/disgoorg/levelbot/levelbot/database/models"
	"github.com/disgoorg/levelbot/levelbot/database/repositories"
)

const (
	KeyCooldown            = "cooldown"
	KeyBanner              = "banner"
	KeyLevelUpMessage      = "levelUpMessage"
	KeyAnnouncementChannel = "announcementChannel"
	KeyDailyBonus          = "dailyBonus"
	KeyServerMultiplier    = "serverMultiplier"
	KeyXPCap               = "xpCap"
	KeyReactionXP          = "reactionXp"
	KeyWelcomeBonus        = "welcomeBonus"
	KeyQuietHours          = "quietHours"
	KeyInviteXP            = "inviteXp"
	KeyAnniversaryXP       = "anniversaryXp"
)

const (
	DefaultCooldownSeconds  = 60
	DefaultBanner           = "https://i.imgur.com/8K3v5tW.png"
	DefaultLevelUpMessage   = "{user} has reached level {level}!"
	DefaultServerMultiplier = 1.0
	DefaultReactionXP       = 2
	DefaultInviteXP         = 50
	DefaultAnniversaryXP    = 100
)

// WelcomeBonus is granted on join; Days also bounds the welcome multiplier window.
type WelcomeBonus struct {
	Amount int64 `json:"amount"`
	Days   int   `json:"days"`
}

var DefaultWelcomeBonus = WelcomeBonus{Amount: 100, Days: 7}

type Settings struct {
	repo repositories.ConfigRepository
}

func New(repo repositories.ConfigRepository) *Settings {
	return &Settings{repo: repo}
}

func get[T any](ctx context.Context, s *Settings, key string, def T) (T, error) {
	raw, err := s.repo.Get(ctx, key)
	if errors.Is(err, repositories.ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return def, fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	var v T
	if err = json.Unmarshal([]byte(raw), &v); err != nil {
		return def, fmt.Errorf("invalid value for setting %s: %w", key, err)
	}
	return v, nil
}

func set(ctx context.Context, s *Settings, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err = s.repo.Set(ctx, key, string(raw)); err != nil {
		return fmt.Errorf("failed to write setting %s: %w", key, err)
	}
	return nil
}

func (s *Settings) Cooldown(ctx context.Context) (time.Duration, error) {
	secs, err := get(ctx, s, KeyCooldown, DefaultCooldownSeconds)
	return time.Duration(secs) * time.Second, err
}

func (s *Settings) SetCooldown(ctx context.Context, seconds int) error {
	return set(ctx, s, KeyCooldown, seconds)
}

func (s *Settings) Banner(ctx context.Context) (string, error) {
	return get(ctx, s, KeyBanner, DefaultBanner)
}

func (s *Settings) SetBanner(ctx context.Context, url string) error {
	return set(ctx, s, KeyBanner, url)
}

func (s *Settings) LevelUpMessage(ctx context.Context) (string, error) {
	return get(ctx, s, KeyLevelUpMessage, DefaultLevelUpMessage)
}

func (s *Settings) SetLevelUpMessage(ctx context.Context, message string) error {
	return set(ctx, s, KeyLevelUpMessage, message)
}

// AnnouncementChannel returns "" when level-ups go to the source channel.
func (s *Settings) AnnouncementChannel(ctx context.Context) (string, error) {
	return get(ctx, s, KeyAnnouncementChannel, "")
}

func (s *Settings) SetAnnouncementChannel(ctx context.Context, channelID string) error {
	return set(ctx, s, KeyAnnouncementChannel, channelID)
}

func (s *Settings) DailyBonus(ctx context.Context) (int64, error) {
	return get(ctx, s, KeyDailyBonus, int64(0))
}

func (s *Settings) SetDailyBonus(ctx context.Context, amount int64) error {
	return set(ctx, s, KeyDailyBonus, amount)
}

func (s *Settings) ServerMultiplier(ctx context.Context) (float64, error) {
	return get(ctx, s, KeyServerMultiplier, DefaultServerMultiplier)
}

func (s *Settings) SetServerMultiplier(ctx context.Context, m float64) error {
	return set(ctx, s, KeyServerMultiplier, m)
}

// XPCap returns the daily cap, zero disables it.
func (s *Settings) XPCap(ctx context.Context) (int64, error) {
	return get(ctx, s, KeyXPCap, int64(0))
}

func (s *Settings) SetXPCap(ctx context.Context, amount int64) error {
	return set(ctx, s, KeyXPCap, amount)
}

func (s *Settings) ReactionXP(ctx context.Context) (int64, error) {
	return get(ctx, s, KeyReactionXP, int64(DefaultReactionXP))
}

func (s *Settings) SetReactionXP(ctx context.Context, amount int64) error {
	return set(ctx, s, KeyReactionXP, amount)
}

func (s *Settings) WelcomeBonus(ctx context.Context) (WelcomeBonus, error) {
	return get(ctx, s, KeyWelcomeBonus, DefaultWelcomeBonus)
}

func (s *Settings) SetWelcomeBonus(ctx context.Context, bonus WelcomeBonus) error {
	return set(ctx, s, KeyWelcomeBonus, bonus)
}

// QuietHours reports false when no window is configured.
func (s *Settings) QuietHours(ctx context.Context) (models.QuietHours, bool, error) {
	q, err := get[*models.QuietHours](ctx, s, KeyQuietHours, nil)
	if err != nil || q == nil {
		return models.QuietHours{}, false, err
	}
	return *q, true, nil
}

func (s *Settings) SetQuietHours(ctx context.Context, q models.QuietHours) error {
	return set(ctx, s, KeyQuietHours, q)
}

func (s *Settings) InviteXP(ctx context.Context) (int64, error) {
	return get(ctx, s, KeyInviteXP, int64(DefaultInviteXP))
}

func (s *Settings) AnniversaryXP(ctx context.Context) (int64, error) {
	return get(ctx, s, KeyAnniversaryXP, int64(DefaultAnniversaryXP))
}
