package models

import (
	"time"

	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:u" bson:"-"`

	ID          string `bun:"id,pk" bson:"_id"`
	DisplayName string `bun:"display_name,notnull" bson:"display_name"`

	// XP is the progress inside the current level, TotalXPEarned never decreases.
	XP            int64 `bun:"xp,notnull,default:0" bson:"xp"`
	Level         int   `bun:"level,notnull,default:1" bson:"level"`
	TotalXPEarned int64 `bun:"total_xp_earned,notnull,default:0" bson:"total_xp_earned"`

	// Rolling windows
	WeeklyXP  int64  `bun:"weekly_xp,notnull,default:0" bson:"weekly_xp"`
	MonthlyXP int64  `bun:"monthly_xp,notnull,default:0" bson:"monthly_xp"`
	TodayXP   int64  `bun:"today_xp,notnull,default:0" bson:"today_xp"`
	TodayDate string `bun:"today_date" bson:"today_date"`

	LastMessageTime    time.Time `bun:"last_message_time,nullzero" bson:"last_message_time"`
	LastDailyBonusDate string    `bun:"last_daily_bonus_date" bson:"last_daily_bonus_date"`
	LastSeenAt         time.Time `bun:"last_seen_at,nullzero" bson:"last_seen_at"`

	// Streaks
	Streak         int    `bun:"streak,notnull,default:0" bson:"streak"`
	LastActiveDate string `bun:"last_active_date" bson:"last_active_date"`

	VoiceTime       int64      `bun:"voice_time,notnull,default:0" bson:"voice_time"`
	VIPUntil        *time.Time `bun:"vip_until" bson:"vip_until,omitempty"`
	Invites         int64      `bun:"invites,notnull,default:0" bson:"invites"`
	JoinedAt        *time.Time `bun:"joined_at" bson:"joined_at,omitempty"`
	DMNotifications bool       `bun:"dm_notifications,notnull,default:false" bson:"dm_notifications"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" bson:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull" bson:"updated_at"`
}

// IsVIP reports whether the VIP window is still open at now.
func (u *User) IsVIP(now time.Time) bool {
	return u.VIPUntil != nil && u.VIPUntil.After(now)
}

// TodayXPOn returns the daily counter as seen on day, a stale day counts as zero.
func (u *User) TodayXPOn(day string) int64 {
	if u.TodayDate != day {
		return 0
	}
	return u.TodayXP
}

// AwardUpdate is the write applied by one settled award. Counter fields are
// increments, the rest are absolute values.
type AwardUpdate struct {
	DisplayName string
	XP          int64
	Level       int
	Granted     int64
	Period      bool
	Today       string
	SeenAt      time.Time

	LastMessageTime *time.Time
	Streak          *int
	LastActiveDate  string
}

type UserStats struct {
	Users      int64   `bun:"users" bson:"users"`
	TotalXP    int64   `bun:"total_xp" bson:"total_xp"`
	WeeklyXP   int64   `bun:"weekly_xp" bson:"weekly_xp"`
	AvgLevel   float64 `bun:"avg_level" bson:"avg_level"`
	TopLevel   int     `bun:"top_level" bson:"top_level"`
}
