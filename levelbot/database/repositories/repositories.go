package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/disgoorg/levelbot/levelbot/database/models"
	"github.com/uptrace/bun"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write would break a uniqueness rule.
	ErrConflict = errors.New("record conflicts with an existing one")
)

// integrityViolation is implemented by pgdriver.Error.
type integrityViolation interface {
	IntegrityViolation() bool
}

// insertError maps unique and check constraint failures to ErrConflict.
func insertError(err error) error {
	var pgErr integrityViolation
	if errors.As(err, &pgErr) && pgErr.IntegrityViolation() {
		return ErrConflict
	}
	return err
}

// Period selects which counter a leaderboard is ordered by.
type Period string

const (
	PeriodTotal   Period = "total"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

type UserRepository interface {
	Get(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	ApplyAward(ctx context.Context, id string, update models.AwardUpdate) error
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) (int64, error)
	Top(ctx context.Context, period Period, limit int) ([]*models.User, error)
	Rank(ctx context.Context, id string) (int64, error)
	Stats(ctx context.Context) (*models.UserStats, error)
	ListJoined(ctx context.Context) ([]*models.User, error)

	ResetWeekly(ctx context.Context) (int64, error)
	ResetMonthly(ctx context.Context) (int64, error)
	ResetDaily(ctx context.Context) (int64, error)
	ApplyDecay(ctx context.Context, inactiveSince time.Time, factor float64) (int64, error)

	IncrementVoiceTime(ctx context.Context, ids []string, minutes int64) error
	SetVoiceTime(ctx context.Context, id string, minutes int64) error
	AddInvites(ctx context.Context, id string, n int64) error
	ClaimDailyBonus(ctx context.Context, id string, day string) (bool, error)
	// SetJoinedAt records the join date unless one is already stored and
	// reports whether it did.
	SetJoinedAt(ctx context.Context, id string, joinedAt time.Time) (bool, error)
}

type ConfigRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
}

type LevelRoleRepository interface {
	Set(ctx context.Context, kind models.LevelRoleKind, level int, roleID string) error
	Get(ctx context.Context, kind models.LevelRoleKind, level int) (string, error)
	List(ctx context.Context, kind models.LevelRoleKind) ([]*models.LevelRole, error)
	UpTo(ctx context.Context, kind models.LevelRoleKind, level int) ([]*models.LevelRole, error)
	Delete(ctx context.Context, kind models.LevelRoleKind, level int) error
}

type MultiplierRepository interface {
	Set(ctx context.Context, scope models.MultiplierScope, targetID string, value float64) error
	Get(ctx context.Context, scope models.MultiplierScope, targetID string) (float64, error)
	ForTargets(ctx context.Context, scope models.MultiplierScope, targetIDs []string) ([]*models.Multiplier, error)
	List(ctx context.Context, scope models.MultiplierScope) ([]*models.Multiplier, error)
	Delete(ctx context.Context, scope models.MultiplierScope, targetID string) error
}

type BlacklistRepository interface {
	Add(ctx context.Context, channelID string) error
	Remove(ctx context.Context, channelID string) (bool, error)
	Contains(ctx context.Context, channelID string) (bool, error)
	List(ctx context.Context) ([]string, error)
}

type EventRepository interface {
	Insert(ctx context.Context, event *models.Event) error
	FindActive(ctx context.Context) (*models.Event, error)
	MarkEnded(ctx context.Context, id string, at time.Time) (bool, error)
	List(ctx context.Context, limit int) ([]*models.Event, error)
}

type BirthdayRepository interface {
	Set(ctx context.Context, birthday *models.Birthday) error
	Get(ctx context.Context, userID string) (*models.Birthday, error)
}

type MentorRepository interface {
	Add(ctx context.Context, mentor *models.Mentor) error
	Remove(ctx context.Context, mentorID, menteeID string) (bool, error)
	MentorsOf(ctx context.Context, menteeID string) ([]*models.Mentor, error)
	MenteesOf(ctx context.Context, mentorID string) ([]*models.Mentor, error)
}

type ChallengeRepository interface {
	Seed(ctx context.Context, challenges []*models.Challenge) error
	ListActive(ctx context.Context) ([]*models.Challenge, error)
	Progress(ctx context.Context, userID, day string) ([]*models.UserChallengeProgress, error)
	Increment(ctx context.Context, userID string, challenge *models.Challenge, day string, amount int64) (*models.UserChallengeProgress, error)
	Claim(ctx context.Context, userID, challengeID, day string) (bool, error)
}

type SchedulerMarkerRepository interface {
	Get(ctx context.Context, name string) (string, error)
	Set(ctx context.Context, name, day string) error
}

// Stores bundles every repository of one backend.
type Stores struct {
	Users       UserRepository
	Config      ConfigRepository
	LevelRoles  LevelRoleRepository
	Multipliers MultiplierRepository
	Blacklist   BlacklistRepository
	Events      EventRepository
	Birthdays   BirthdayRepository
	Mentors     MentorRepository
	Challenges  ChallengeRepository
	Markers     SchedulerMarkerRepository
}

// NewStores wires the relational implementation of every repository.
func NewStores(db *bun.DB) *Stores {
	return &Stores{
		Users:       NewUserRepository(db),
		Config:      NewConfigRepository(db),
		LevelRoles:  NewLevelRoleRepository(db),
		Multipliers: NewMultiplierRepository(db),
		Blacklist:   NewBlacklistRepository(db),
		Events:      NewEventRepository(db),
		Birthdays:   NewBirthdayRepository(db),
		Mentors:     NewMentorRepository(db),
		Challenges:  NewChallengeRepository(db),
		Markers:     NewSchedulerMarkerRepository(db),
	}
}
