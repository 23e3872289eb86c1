// Package domain defines the archival state machine operations.
package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	ticketdomain "github.com/smallbiznis/deskwise/internal/ticket/domain"
)

var (
	ErrNotArchivable   = errors.New("ticket_not_archivable")
	ErrAlreadyArchived = errors.New("ticket_already_archived")
	ErrNotArchived     = errors.New("ticket_not_archived")
)

// BulkTicketError names the ticket that failed inside a bulk run.
type BulkTicketError struct {
	TicketID snowflake.ID `json:"ticket_id"`
	Reason   string       `json:"reason"`
}

// BulkArchivalResult accumulates the outcome of one bulk run. A failed
// ticket never aborts the run; it lands in Failed and the run continues.
type BulkArchivalResult struct {
	TotalProcessed int               `json:"total_processed"`
	ArchivedCount  int               `json:"archived_count"`
	Successful     []snowflake.ID    `json:"successful"`
	Failed         []BulkTicketError `json:"failed"`
}

// Service moves tickets across the archival boundary. Archive and Restore
// commit the ticket update, the audit entry, and the usage event in one
// transaction.
type Service interface {
	Archive(ctx context.Context, ticketID snowflake.ID) (*ticketdomain.Ticket, error)
	Restore(ctx context.Context, ticketID snowflake.ID) (*ticketdomain.Ticket, error)
	BulkArchive(ctx context.Context, ticketIDs []snowflake.ID) (BulkArchivalResult, error)
}
