// Package multiplier derives the combined XP factor for one award from the
// current store state.
package multiplier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/levelbot/levelbot/database/models"
	"github.com/disgoorg/levelbot/levelbot/database/repositories"
	"github.com/disgoorg/levelbot/levelbot/settings"
)

const (
	WeekendFactor  = 2.0
	VIPFactor      = 1.5
	BirthdayFactor = 2.0
	WelcomeFactor  = 1.5
)

// Factor is one named term of the product.
type Factor struct {
	Name  string
	Value float64
}

// Subject identifies who earns and where. User may be nil, in which case it
// is loaded from the store.
type Subject struct {
	UserID    string
	User      *models.User
	Roles     []string
	ChannelID string
}

type Resolver struct {
	stores   *repositories.Stores
	settings *settings.Settings
	loc      *time.Location

	// Now is replaced by tests.
	Now func() time.Time
}

func NewResolver(stores *repositories.Stores, s *settings.Settings, loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{stores: stores, settings: s, loc: loc, Now: time.Now}
}

// Resolve returns the product of every factor in Breakdown.
func (r *Resolver) Resolve(ctx context.Context, subject Subject) (float64, error) {
	factors, err := r.Breakdown(ctx, subject)
	if err != nil {
		return 0, err
	}
	return Product(factors), nil
}

func Product(factors []Factor) float64 {
	total := 1.0
	for _, f := range factors {
		total *= f.Value
	}
	return total
}

// Breakdown lists the factors in their fixed evaluation order. Factors that
// do not apply are reported as 1.0 so the order stays stable.
func (r *Resolver) Breakdown(ctx context.Context, subject Subject) ([]Factor, error) {
	now := r.Now().In(r.loc)

	user := subject.User
	if user == nil && subject.UserID != "" {
		u, err := r.stores.Users.Get(ctx, subject.UserID)
		if err != nil && !errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("failed to load user: %w", err)
		}
		user = u
	}

	server, err := r.settings.ServerMultiplier(ctx)
	if err != nil {
		return nil, err
	}
	factors := []Factor{{Name: "server", Value: server}}

	weekend := 1.0
	if wd := now.Weekday(); wd == time.Saturday || wd == time.Sunday {
		weekend = WeekendFactor
	}
	factors = append(factors, Factor{Name: "weekend", Value: weekend})

	event := 1.0
	active, err := r.stores.Events.FindActive(ctx)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("failed to load active event: %w", err)
	}
	if active != nil && !active.Expired(now) {
		event = active.Multiplier
	}
	factors = append(factors, Factor{Name: "event", Value: event})

	vip := 1.0
	if user != nil && user.IsVIP(now) {
		vip = VIPFactor
	}
	factors = append(factors, Factor{Name: "vip", Value: vip})

	roles, err := r.stores.Multipliers.ForTargets(ctx, models.ScopeRole, subject.Roles)
	if err != nil {
		return nil, fmt.Errorf("failed to load role multipliers: %w", err)
	}
	for _, m := range roles {
		factors = append(factors, Factor{Name: "role:" + m.TargetID, Value: m.Value})
	}

	voice := 1.0
	if subject.ChannelID != "" {
		v, err := r.stores.Multipliers.Get(ctx, models.ScopeVoice, subject.ChannelID)
		switch {
		case err == nil:
			voice = v
		case !errors.Is(err, repositories.ErrNotFound):
			return nil, fmt.Errorf("failed to load channel multiplier: %w", err)
		}
	}
	factors = append(factors, Factor{Name: "voice", Value: voice})

	quiet := 1.0
	q, ok, err := r.settings.QuietHours(ctx)
	if err != nil {
		return nil, err
	}
	if ok && q.Contains(now.Hour()) {
		quiet = q.Multiplier
	}
	factors = append(factors, Factor{Name: "quiet_hours", Value: quiet})

	birthday := 1.0
	if subject.UserID != "" {
		b, err := r.stores.Birthdays.Get(ctx, subject.UserID)
		switch {
		case err == nil:
			if b.Matches(now) {
				birthday = BirthdayFactor
			}
		case !errors.Is(err, repositories.ErrNotFound):
			return nil, fmt.Errorf("failed to load birthday: %w", err)
		}
	}
	factors = append(factors, Factor{Name: "birthday", Value: birthday})

	welcome := 1.0
	if user != nil && user.JoinedAt != nil {
		bonus, err := r.settings.WelcomeBonus(ctx)
		if err != nil {
			return nil, err
		}
		if now.Sub(*user.JoinedAt) < time.Duration(bonus.Days)*24*time.Hour {
			welcome = WelcomeFactor
		}
	}
	factors = append(factors, Factor{Name: "welcome", Value: welcome})

	return factors, nil
}
