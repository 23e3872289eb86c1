// Package domain contains the materialized per-period usage summaries.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrSummaryNotFound = errors.New("summary_not_found")
)

// UsageSummary is one subscription's projected usage for one calendar month.
// Period uses the YYYY-MM form. Summaries are refreshable at any time;
// a refresh of an already-stored period overwrites it.
type UsageSummary struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	SubscriptionID snowflake.ID `gorm:"not null;uniqueIndex:uidx_usage_summaries_sub_period,priority:1"`
	Period         string       `gorm:"type:text;not null;uniqueIndex:uidx_usage_summaries_sub_period,priority:2"`
	ActiveCount    int          `gorm:"not null;default:0"`
	CompletedCount int          `gorm:"not null;default:0"`
	TotalCount     int          `gorm:"not null;default:0"`
	ArchivedCount  int          `gorm:"not null;default:0"`
	LastUpdated    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (UsageSummary) TableName() string { return "usage_summaries" }

// Service materializes and serves per-period summaries.
type Service interface {
	Refresh(ctx context.Context, subscriptionID snowflake.ID, period string) (*UsageSummary, error)
	Get(ctx context.Context, subscriptionID snowflake.ID, period string) (*UsageSummary, error)
	List(ctx context.Context, subscriptionID snowflake.ID) ([]UsageSummary, error)
}
