// Package domain contains subscription models and limit semantics.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// UnlimitedLimit marks a ticket limit with no cap.
const UnlimitedLimit = -1

// Subscription is one paying tenant. Ticket limits use -1 for unlimited.
type Subscription struct {
	ID                   snowflake.ID `gorm:"primaryKey"`
	Name                 string       `gorm:"type:text;not null"`
	PlanCode             string       `gorm:"type:text;not null"`
	ActiveTicketLimit    int          `gorm:"not null;default:-1"`
	CompletedTicketLimit int          `gorm:"not null;default:-1"`
	TotalTicketLimit     int          `gorm:"not null;default:-1"`
	CreatedAt            time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt            time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }

// CompletedUnlimited reports whether the completed-ticket limit is uncapped.
func (s Subscription) CompletedUnlimited() bool { return s.CompletedTicketLimit < 0 }
