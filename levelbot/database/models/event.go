package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Event struct {
	bun.BaseModel `bun:"table:events,alias:ev" bson:"-"`

	ID         string     `bun:"id,pk" bson:"_id"`
	Name       string     `bun:"name,notnull" bson:"name"`
	Multiplier float64    `bun:"multiplier,notnull" bson:"multiplier"`
	StartTime  time.Time  `bun:"start_time,notnull" bson:"start_time"`
	EndTime    time.Time  `bun:"end_time,notnull" bson:"end_time"`
	Active     bool       `bun:"active,notnull,default:true" bson:"active"`
	Creator    string     `bun:"creator" bson:"creator"`
	EndedAt    *time.Time `bun:"ended_at" bson:"ended_at,omitempty"`
}

// Expired reports whether the event ran past its scheduled end.
func (e *Event) Expired(now time.Time) bool {
	return !now.Before(e.EndTime)
}
