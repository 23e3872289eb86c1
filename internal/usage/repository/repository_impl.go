package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	usagedomain "github.com/smallbiznis/deskwise/internal/usage/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type eventLog struct {
	db    *gorm.DB
	genID *snowflake.Node
}

func Provide(db *gorm.DB, genID *snowflake.Node) usagedomain.EventLog {
	return &eventLog{db: db, genID: genID}
}

func (r *eventLog) Append(ctx context.Context, req usagedomain.AppendEventRequest) (*usagedomain.UsageEvent, error) {
	return r.AppendTx(ctx, nil, req)
}

func (r *eventLog) AppendTx(ctx context.Context, tx *gorm.DB, req usagedomain.AppendEventRequest) (*usagedomain.UsageEvent, error) {
	if req.SubscriptionID == 0 {
		return nil, usagedomain.ErrInvalidSubscription
	}
	if req.TicketID == 0 {
		return nil, usagedomain.ErrInvalidTicket
	}
	if !validAction(req.Action) {
		return nil, usagedomain.ErrInvalidAction
	}
	if req.OccurredAt.IsZero() {
		return nil, usagedomain.ErrInvalidOccurredAt
	}

	event := &usagedomain.UsageEvent{
		ID:             r.genID.Generate(),
		SubscriptionID: req.SubscriptionID,
		TicketID:       req.TicketID,
		Action:         strings.ToLower(req.Action),
		PreviousStatus: req.PreviousStatus,
		NewStatus:      req.NewStatus,
		OccurredAt:     req.OccurredAt.UTC(),
		CreatedAt:      time.Now().UTC(),
	}
	if req.Metadata != nil {
		event.Metadata = datatypes.JSONMap(req.Metadata)
	}

	db := tx
	if db == nil {
		db = r.db
	}
	if err := db.WithContext(ctx).Create(event).Error; err != nil {
		return nil, err
	}
	return event, nil
}

func (r *eventLog) QueryRange(ctx context.Context, subscriptionID snowflake.ID, start, end time.Time) ([]usagedomain.UsageEvent, error) {
	db := r.db.WithContext(ctx).Where("subscription_id = ?", subscriptionID)
	if !start.IsZero() {
		db = db.Where("occurred_at >= ?", start)
	}
	if !end.IsZero() {
		db = db.Where("occurred_at < ?", end)
	}
	var events []usagedomain.UsageEvent
	err := db.Order("occurred_at ASC, id ASC").Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *eventLog) QueryTicket(ctx context.Context, ticketID snowflake.ID) ([]usagedomain.UsageEvent, error) {
	var events []usagedomain.UsageEvent
	err := r.db.WithContext(ctx).
		Where("ticket_id = ?", ticketID).
		Order("occurred_at ASC, id ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *eventLog) Purge(ctx context.Context, ticketID snowflake.ID) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("ticket_id = ?", ticketID).
		Delete(&usagedomain.UsageEvent{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func validAction(action string) bool {
	switch strings.ToLower(action) {
	case usagedomain.ActionCreated,
		usagedomain.ActionCompleted,
		usagedomain.ActionArchived,
		usagedomain.ActionRestored,
		usagedomain.ActionDeleted:
		return true
	}
	return false
}
