package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrInvalidSubscription = errors.New("invalid_subscription")
	ErrInvalidTicket       = errors.New("invalid_ticket")
	ErrInvalidAction       = errors.New("invalid_action")
	ErrInvalidOccurredAt   = errors.New("invalid_occurred_at")
	ErrInvalidPeriod       = errors.New("invalid_period")
)

// AppendEventRequest describes one lifecycle transition to record.
type AppendEventRequest struct {
	SubscriptionID snowflake.ID
	TicketID       snowflake.ID
	Action         string
	PreviousStatus *string
	NewStatus      *string
	OccurredAt     time.Time
	Metadata       map[string]any
}

// EventLog is the append-only store of ticket lifecycle events.
// QueryRange returns events ordered by occurred_at then id, so folds over
// the result are deterministic even when two events share a timestamp.
type EventLog interface {
	Append(ctx context.Context, req AppendEventRequest) (*UsageEvent, error)
	AppendTx(ctx context.Context, tx *gorm.DB, req AppendEventRequest) (*UsageEvent, error)
	QueryRange(ctx context.Context, subscriptionID snowflake.ID, start, end time.Time) ([]UsageEvent, error)
	QueryTicket(ctx context.Context, ticketID snowflake.ID) ([]UsageEvent, error)
	Purge(ctx context.Context, ticketID snowflake.ID) (int64, error)
}

// UsageStats is the projected ticket usage for one subscription.
// Every live ticket is in exactly one of Active, Completed, or Archived;
// Total counts unarchived tickets only.
type UsageStats struct {
	SubscriptionID snowflake.ID `json:"subscription_id"`
	ActiveCount    int          `json:"active_count"`
	CompletedCount int          `json:"completed_count"`
	ArchivedCount  int          `json:"archived_count"`
	TotalCount     int          `json:"total_count"`
}

// CompletedUsage reports completed-ticket consumption against the
// subscription's completed-ticket limit. Unlimited limits report zero
// percentage.
type CompletedUsage struct {
	SubscriptionID snowflake.ID `json:"subscription_id"`
	CompletedCount int          `json:"completed_count"`
	Limit          int          `json:"limit"`
	Unlimited      bool         `json:"unlimited"`
	Percentage     float64      `json:"percentage"`
}

// Service derives usage statistics from the event log.
type Service interface {
	CurrentStats(ctx context.Context, subscriptionID snowflake.ID) (UsageStats, error)
	PeriodStats(ctx context.Context, subscriptionID snowflake.ID, period string) (UsageStats, error)
	CompletedUsage(ctx context.Context, subscriptionID snowflake.ID) (CompletedUsage, error)
}
