package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrTicketNotFound = errors.New("ticket_not_found")
)

// ArchivableQuery narrows the candidate set for automated archival.
// CompletedBefore is compared against the ticket's completion instant.
type ArchivableQuery struct {
	SubscriptionID  snowflake.ID
	CompanyID       snowflake.ID
	TeamID          snowflake.ID
	CompletedBefore time.Time
	Limit           int
}

// Repository persists tickets and their audit history. Mutations accept the
// caller's transaction handle so archival state and usage events commit
// together.
type Repository interface {
	FindByID(ctx context.Context, id snowflake.ID) (*Ticket, error)
	FindArchivable(ctx context.Context, q ArchivableQuery) ([]Ticket, error)

	// ClaimArchive stamps archived_at on an unarchived ticket. It returns
	// false when another writer already archived the ticket.
	ClaimArchive(ctx context.Context, tx *gorm.DB, id snowflake.ID, at time.Time) (bool, error)

	// ClaimRestore clears archived_at on an archived ticket. It returns
	// false when the ticket was not archived.
	ClaimRestore(ctx context.Context, tx *gorm.DB, id snowflake.ID, at time.Time) (bool, error)

	AppendHistory(ctx context.Context, tx *gorm.DB, entry *TicketHistory) error
}
