package models

import (
	"github.com/uptrace/bun"
)

type ChallengeKind string

const (
	ChallengeMessages     ChallengeKind = "messages"
	ChallengeVoiceMinutes ChallengeKind = "voice_minutes"
	ChallengeReactions    ChallengeKind = "reactions"
)

type Challenge struct {
	bun.BaseModel `bun:"table:challenges,alias:ch" bson:"-"`

	ID          string        `bun:"id,pk" bson:"_id"`
	Name        string        `bun:"name,notnull" bson:"name"`
	Description string        `bun:"description" bson:"description"`
	Kind        ChallengeKind `bun:"kind,notnull" bson:"kind"`
	Target      int64         `bun:"target,notnull" bson:"target"`
	RewardXP    int64         `bun:"reward_xp,notnull" bson:"reward_xp"`
	Active      bool          `bun:"active,notnull,default:true" bson:"active"`
}

// UserChallengeProgress is scoped to one day; a new day starts from zero.
type UserChallengeProgress struct {
	bun.BaseModel `bun:"table:user_challenge_progress,alias:ucp" bson:"-"`

	UserID      string `bun:"user_id,pk" bson:"user_id"`
	ChallengeID string `bun:"challenge_id,pk" bson:"challenge_id"`
	Day         string `bun:"day,pk" bson:"day"`
	Progress    int64  `bun:"progress,notnull,default:0" bson:"progress"`
	Completed   bool   `bun:"completed,notnull,default:false" bson:"completed"`
	Claimed     bool   `bun:"claimed,notnull,default:false" bson:"claimed"`
}

// DefaultChallenges are seeded when the catalog is empty.
func DefaultChallenges() []*Challenge {
	return []*Challenge{
		{ID: "chatterbox", Name: "Chatterbox", Description: "Send 20 messages today", Kind: ChallengeMessages, Target: 20, RewardXP: 50, Active: true},
		{ID: "on-air", Name: "On Air", Description: "Spend 30 minutes in voice today", Kind: ChallengeVoiceMinutes, Target: 30, RewardXP: 75, Active: true},
		{ID: "appreciator", Name: "Appreciator", Description: "React to 10 messages today", Kind: ChallengeReactions, Target: 10, RewardXP: 25, Active: true},
	}
}
