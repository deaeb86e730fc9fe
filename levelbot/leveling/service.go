package leveling

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/disgoorg/levelbot/levelbot/database/models"
	"github.com/disgoorg/levelbot/levelbot/database/repositories"
	"github.com/disgoorg/levelbot/levelbot/logger"
	"github.com/disgoorg/levelbot/levelbot/multiplier"
	"github.com/disgoorg/levelbot/levelbot/settings"
	"github.com/disgoorg/levelbot/levelbot/streak"
)

var ErrUnknownSource = errors.New("unknown xp source")

// Service is the XP award engine.
type Service struct {
	config     *Config
	calculator *Calculator
	stores     *repositories.Stores
	settings   *settings.Settings
	resolver   *multiplier.Resolver
	loc        *time.Location
	firstSeen  *lru.Cache

	// Now and Intn are replaced by tests.
	Now  func() time.Time
	Intn func(n int) int
}

func NewService(config *Config, stores *repositories.Stores, s *settings.Settings, resolver *multiplier.Resolver, loc *time.Location) (*Service, error) {
	firstSeen, err := lru.New(config.FirstMessageCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create first message tracker: %w", err)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		config:     config,
		calculator: NewCalculator(config),
		stores:     stores,
		settings:   s,
		resolver:   resolver,
		loc:        loc,
		firstSeen:  firstSeen,
		Now:        time.Now,
		Intn:       rand.Intn,
	}, nil
}

func (s *Service) Calculator() *Calculator {
	return s.calculator
}

// Award runs one activity through the pipeline and persists the outcome.
// Rejections and cap exhaustion are reported on the result, not as errors.
func (s *Service) Award(ctx context.Context, userID, displayName string, activity Activity) (*Result, error) {
	rule, ok := Rules[activity.Source]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, activity.Source)
	}

	now := s.Now().In(s.loc)
	day := now.Format(streak.DayLayout)

	if rule.ChannelGated && activity.ChannelID != "" {
		blocked, err := s.stores.Blacklist.Contains(ctx, activity.ChannelID)
		if err != nil {
			return nil, fmt.Errorf("failed to check blacklist: %w", err)
		}
		if blocked {
			return &Result{Skipped: SkipBlacklisted}, nil
		}
	}

	user, err := s.stores.Users.Get(ctx, userID)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if rule.Cooldown && user != nil && !user.LastMessageTime.IsZero() {
		cooldown, err := s.settings.Cooldown(ctx)
		if err != nil {
			return nil, err
		}
		if now.Sub(user.LastMessageTime) < cooldown {
			return skipped(user, SkipCooldown), nil
		}
	}

	sum, err := s.base(ctx, activity)
	if err != nil {
		return nil, err
	}

	if rule.Content {
		sum += s.calculator.ContentBonus(activity.Content)
	}

	var st streak.State
	if user != nil {
		st = streak.State{Count: user.Streak, LastDate: user.LastActiveDate}
	}
	if activity.Source == SourceMessage {
		st = streak.Advance(st, now)
	}
	if rule.Streak {
		sum += streak.Bonus(st.Count)
	}

	raw := float64(sum)
	if rule.Content {
		raw *= s.calculator.LengthFactor(activity.Content)
		if activity.ChannelID != "" && s.firstInChannel(userID, activity.ChannelID, day) {
			raw += float64(s.config.FirstMessageBonus)
		}
	}

	if rule.Multiplied {
		m, err := s.resolver.Resolve(ctx, multiplier.Subject{
			UserID:    userID,
			User:      user,
			Roles:     activity.Roles,
			ChannelID: activity.ChannelID,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to resolve multiplier: %w", err)
		}
		raw *= m
	}
	granted := int64(math.Floor(raw))
	if granted < 0 {
		granted = 0
	}

	capped := false
	if rule.Capped {
		limit, err := s.settings.XPCap(ctx)
		if err != nil {
			return nil, err
		}
		if limit > 0 {
			var today int64
			if user != nil {
				today = user.TodayXPOn(day)
			}
			headroom := limit - today
			if headroom <= 0 {
				res := skipped(user, "")
				res.Capped = true
				return res, nil
			}
			if granted > headroom {
				granted = headroom
				capped = true
			}
		}
	}

	res, err := s.persist(ctx, user, userID, displayName, activity.Source, rule, granted, now, st)
	if err != nil {
		return nil, err
	}
	res.Capped = capped

	logger.LogAward(userID, string(activity.Source), res.GrantedXP, res.NewLevel, res.LeveledUp)
	return res, nil
}

func (s *Service) base(ctx context.Context, activity Activity) (int64, error) {
	switch activity.Source {
	case SourceMessage:
		return s.calculator.MessageBase(s.Intn), nil
	case SourceVoice:
		return s.calculator.VoiceBase(activity.VoiceMinutes), nil
	case SourceReaction:
		return s.settings.ReactionXP(ctx)
	case SourceInvite:
		return s.settings.InviteXP(ctx)
	case SourceWelcome:
		bonus, err := s.settings.WelcomeBonus(ctx)
		return bonus.Amount, err
	case SourceAnniversary:
		return s.settings.AnniversaryXP(ctx)
	default:
		return activity.Amount, nil
	}
}

func (s *Service) firstInChannel(userID, channelID, day string) bool {
	seen, _ := s.firstSeen.ContainsOrAdd(userID+":"+channelID+":"+day, struct{}{})
	return !seen
}

func (s *Service) persist(ctx context.Context, user *models.User, userID, displayName string, source Source, rule Rule, granted int64, now time.Time, st streak.State) (*Result, error) {
	day := now.Format(streak.DayLayout)
	isMessage := source == SourceMessage

	if user == nil {
		created := &models.User{
			ID:            userID,
			DisplayName:   displayName,
			XP:            granted,
			Level:         1,
			TotalXPEarned: granted,
			LastSeenAt:    now,
		}
		if rule.Period {
			created.WeeklyXP = granted
			created.MonthlyXP = granted
			created.TodayXP = granted
			created.TodayDate = day
		}
		if isMessage {
			created.LastMessageTime = now
			created.Streak = st.Count
			created.LastActiveDate = st.LastDate
		}
		err := s.stores.Users.Create(ctx, created)
		if err == nil {
			return &Result{
				NewXP:         created.XP,
				NewLevel:      created.Level,
				PreviousLevel: created.Level,
				TotalXPEarned: created.TotalXPEarned,
				GrantedXP:     granted,
				Created:       true,
				Streak:        created.Streak,
			}, nil
		}
		if !errors.Is(err, repositories.ErrConflict) {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		// Lost a creation race, settle against the stored record instead.
		if user, err = s.stores.Users.Get(ctx, userID); err != nil {
			return nil, fmt.Errorf("failed to reload user: %w", err)
		}
	}

	newXP, newLevel, leveledUp := s.calculator.Settle(user.XP, user.Level, granted)
	update := models.AwardUpdate{
		DisplayName: displayName,
		XP:          newXP,
		Level:       newLevel,
		Granted:     granted,
		Period:      rule.Period,
		Today:       day,
		SeenAt:      now,
	}
	if update.DisplayName == "" {
		update.DisplayName = user.DisplayName
	}
	if isMessage {
		update.LastMessageTime = &now
		update.Streak = &st.Count
		update.LastActiveDate = st.LastDate
	}

	if err := s.stores.Users.ApplyAward(ctx, userID, update); err != nil {
		return nil, fmt.Errorf("failed to persist award: %w", err)
	}

	return &Result{
		NewXP:         newXP,
		NewLevel:      newLevel,
		PreviousLevel: user.Level,
		LeveledUp:     leveledUp,
		TotalXPEarned: user.TotalXPEarned + granted,
		GrantedXP:     granted,
		Streak:        st.Count,
	}, nil
}

func skipped(user *models.User, reason SkipReason) *Result {
	res := &Result{Skipped: reason}
	if user != nil {
		res.NewXP = user.XP
		res.NewLevel = user.Level
		res.PreviousLevel = user.Level
		res.TotalXPEarned = user.TotalXPEarned
		res.Streak = user.Streak
	}
	return res
}
