package models

import (
	"time"

	"github.com/uptrace/bun"
)

type MultiplierScope string

const (
	ScopeRole  MultiplierScope = "role"
	ScopeVoice MultiplierScope = "voice"
)

// Multiplier maps a role or voice channel to an XP factor.
type Multiplier struct {
	bun.BaseModel `bun:"table:multipliers,alias:m" bson:"-"`

	Scope    MultiplierScope `bun:"scope,pk" bson:"scope"`
	TargetID string          `bun:"target_id,pk" bson:"target_id"`
	Value    float64         `bun:"value,notnull" bson:"value"`
}

type LevelRoleKind string

const (
	// KindReward grants the role when the exact level is reached.
	KindReward LevelRoleKind = "reward"
	// KindMilestone grants the role at or above the level.
	KindMilestone LevelRoleKind = "milestone"
)

type LevelRole struct {
	bun.BaseModel `bun:"table:level_roles,alias:lr" bson:"-"`

	Kind   LevelRoleKind `bun:"kind,pk" bson:"kind"`
	Level  int           `bun:"level,pk" bson:"level"`
	RoleID string        `bun:"role_id,notnull" bson:"role_id"`
}

type BlacklistedChannel struct {
	bun.BaseModel `bun:"table:blacklisted_channels,alias:bc" bson:"-"`

	ChannelID string    `bun:"channel_id,pk" bson:"_id"`
	AddedAt   time.Time `bun:"added_at,notnull,default:current_timestamp" bson:"added_at"`
}

type Birthday struct {
	bun.BaseModel `bun:"table:birthdays,alias:bd" bson:"-"`

	UserID string `bun:"user_id,pk" bson:"_id"`
	Month  int    `bun:"month,notnull" bson:"month"`
	Day    int    `bun:"day,notnull" bson:"day"`
	Year   int    `bun:"year" bson:"year,omitempty"`
}

// Matches reports whether t falls on the stored month and day.
func (b *Birthday) Matches(t time.Time) bool {
	return int(t.Month()) == b.Month && t.Day() == b.Day
}

type Mentor struct {
	bun.BaseModel `bun:"table:mentors,alias:mt" bson:"-"`

	MentorID  string    `bun:"mentor_id,pk" bson:"mentor_id"`
	MenteeID  string    `bun:"mentee_id,pk" bson:"mentee_id"`
	Bonus     float64   `bun:"bonus,notnull,default:0.2" bson:"bonus"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" bson:"created_at"`
}

// QuietHours is stored as a single value in the config keyspace.
type QuietHours struct {
	StartHour  int     `json:"start_hour"`
	EndHour    int     `json:"end_hour"`
	Multiplier float64 `json:"multiplier"`
}

// Contains reports whether hour lies in the window. The window may wrap past
// midnight; equal start and end disables it.
func (q QuietHours) Contains(hour int) bool {
	switch {
	case q.StartHour == q.EndHour:
		return false
	case q.StartHour < q.EndHour:
		return hour >= q.StartHour && hour < q.EndHour
	default:
		return hour >= q.StartHour || hour < q.EndHour
	}
}
