package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	ticketdomain "github.com/smallbiznis/deskwise/internal/ticket/domain"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) ticketdomain.Repository {
	return &repo{db: db}
}

func (r *repo) FindByID(ctx context.Context, id snowflake.ID) (*ticketdomain.Ticket, error) {
	var ticket ticketdomain.Ticket
	err := r.db.WithContext(ctx).First(&ticket, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ticketdomain.ErrTicketNotFound
		}
		return nil, err
	}
	return &ticket, nil
}

func (r *repo) FindArchivable(ctx context.Context, q ticketdomain.ArchivableQuery) ([]ticketdomain.Ticket, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	db := r.db.WithContext(ctx).
		Where("subscription_id = ?", q.SubscriptionID).
		Where("archived_at IS NULL").
		Where("LOWER(status) IN ?", []string{
			ticketdomain.StatusResolved,
			ticketdomain.StatusClosed,
			ticketdomain.StatusCompleted,
		}).
		Where("COALESCE(resolved_at, closed_at, updated_at) < ?", q.CompletedBefore)
	if q.CompanyID != 0 {
		db = db.Where("company_id = ?", q.CompanyID)
	}
	if q.TeamID != 0 {
		db = db.Where("team_id = ?", q.TeamID)
	}
	var tickets []ticketdomain.Ticket
	err := db.Order("updated_at ASC").Limit(limit).Find(&tickets).Error
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

func (r *repo) ClaimArchive(ctx context.Context, tx *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	db := tx
	if db == nil {
		db = r.db
	}
	result := db.WithContext(ctx).Exec(
		`UPDATE tickets SET archived_at = ?, updated_at = ? WHERE id = ? AND archived_at IS NULL`,
		at, at, id,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) ClaimRestore(ctx context.Context, tx *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	db := tx
	if db == nil {
		db = r.db
	}
	result := db.WithContext(ctx).Exec(
		`UPDATE tickets SET archived_at = NULL, updated_at = ? WHERE id = ? AND archived_at IS NOT NULL`,
		at, id,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) AppendHistory(ctx context.Context, tx *gorm.DB, entry *ticketdomain.TicketHistory) error {
	db := tx
	if db == nil {
		db = r.db
	}
	return db.WithContext(ctx).Create(entry).Error
}
