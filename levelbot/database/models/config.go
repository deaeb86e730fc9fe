package models

import (
	"time"

	"github.com/uptrace/bun"
)

// ConfigEntry holds one operator setting as JSON text.
type ConfigEntry struct {
	bun.BaseModel `bun:"table:config,alias:cfg" bson:"-"`

	Key       string    `bun:"key,pk" bson:"_id"`
	Value     string    `bun:"value,notnull" bson:"value"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" bson:"updated_at"`
}

// SchedulerMarker records the last day a maintenance job ran.
type SchedulerMarker struct {
	bun.BaseModel `bun:"table:scheduler_markers,alias:sm" bson:"-"`

	Name      string    `bun:"name,pk" bson:"_id"`
	Day       string    `bun:"day,notnull" bson:"day"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" bson:"updated_at"`
}
