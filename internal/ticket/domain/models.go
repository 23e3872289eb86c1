// Package domain contains persistence models for support tickets.
package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Statuses a ticket moves through during its lifecycle. Archivability is
// decided from status alone, never from archived_at.
const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusResolved   = "resolved"
	StatusClosed     = "closed"
	StatusCompleted  = "completed"
)

// Ticket is one support ticket owned by a subscription.
type Ticket struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	SubscriptionID snowflake.ID `gorm:"not null;index"`
	CompanyID      snowflake.ID
	TeamID         snowflake.ID
	AssignedToID   snowflake.ID
	SubmitterID    snowflake.ID
	Subject        string `gorm:"type:text;not null"`
	Status         string `gorm:"type:text;not null"`
	ArchivedAt     *time.Time
	ResolvedAt     *time.Time
	ClosedAt       *time.Time
	CreatedAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Ticket) TableName() string { return "tickets" }

// IsArchived reports whether the ticket currently carries an archive marker.
func (t Ticket) IsArchived() bool { return t.ArchivedAt != nil }

// IsArchivable reports whether the ticket's status permits archiving.
// Status comparison is case-insensitive.
func (t Ticket) IsArchivable() bool {
	switch strings.ToLower(t.Status) {
	case StatusResolved, StatusClosed, StatusCompleted:
		return true
	}
	return false
}

// CompletedAt returns the best-known completion instant for the ticket:
// resolved_at when set, else closed_at, else updated_at.
func (t Ticket) CompletedAt() time.Time {
	if t.ResolvedAt != nil {
		return *t.ResolvedAt
	}
	if t.ClosedAt != nil {
		return *t.ClosedAt
	}
	return t.UpdatedAt
}

// TicketHistory is an append-only audit trail entry for a ticket.
type TicketHistory struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	TicketID  snowflake.ID `gorm:"not null;index"`
	ActorID   snowflake.ID
	Action    string    `gorm:"type:text;not null"`
	Detail    string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (TicketHistory) TableName() string { return "ticket_history" }

// History actions recorded when archival state changes.
const (
	HistoryActionArchived = "archived"
	HistoryActionRestored = "restored"
)
