// Package domain contains the ticket usage event log and its derived stats.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Actions appended to the usage event log. The log is append-only; ticket
// state at any instant is a fold over the ordered events.
const (
	ActionCreated   = "created"
	ActionCompleted = "completed"
	ActionArchived  = "archived"
	ActionRestored  = "restored"
	ActionDeleted   = "deleted"
)

// UsageEvent records one ticket lifecycle transition.
type UsageEvent struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	SubscriptionID snowflake.ID `gorm:"not null;index:idx_usage_events_sub_time,priority:1"`
	TicketID       snowflake.ID `gorm:"not null;index"`
	Action         string       `gorm:"type:text;not null"`
	PreviousStatus *string      `gorm:"type:text"`
	NewStatus      *string      `gorm:"type:text"`
	OccurredAt     time.Time    `gorm:"not null;index:idx_usage_events_sub_time,priority:2"`
	Metadata       datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (UsageEvent) TableName() string { return "usage_events" }
