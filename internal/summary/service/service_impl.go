package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/deskwise/internal/clock"
	summarydomain "github.com/smallbiznis/deskwise/internal/summary/domain"
	usagedomain "github.com/smallbiznis/deskwise/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	UsageSvc usagedomain.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	usageSvc usagedomain.Service
}

func NewService(p ServiceParam) summarydomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("summary.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		usageSvc: p.UsageSvc,
	}
}

// Refresh recomputes the period's stats from the event log and upserts the
// row. The (subscription, period) key makes repeated refreshes idempotent;
// the latest refresh wins, including for periods that already ended.
func (s *Service) Refresh(ctx context.Context, subscriptionID snowflake.ID, period string) (*summarydomain.UsageSummary, error) {
	stats, err := s.usageSvc.PeriodStats(ctx, subscriptionID, period)
	if err != nil {
		return nil, err
	}

	summary := &summarydomain.UsageSummary{
		ID:             s.genID.Generate(),
		SubscriptionID: subscriptionID,
		Period:         period,
		ActiveCount:    stats.ActiveCount,
		CompletedCount: stats.CompletedCount,
		TotalCount:     stats.TotalCount,
		ArchivedCount:  stats.ArchivedCount,
		LastUpdated:    s.clock.Now(),
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "subscription_id"}, {Name: "period"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"active_count", "completed_count", "total_count", "archived_count", "last_updated",
		}),
	}).Create(summary).Error
	if err != nil {
		return nil, err
	}

	s.log.Debug("summary refreshed",
		zap.String("subscription_id", subscriptionID.String()),
		zap.String("period", period),
		zap.Int("total", summary.TotalCount),
	)
	return s.Get(ctx, subscriptionID, period)
}

func (s *Service) Get(ctx context.Context, subscriptionID snowflake.ID, period string) (*summarydomain.UsageSummary, error) {
	var summary summarydomain.UsageSummary
	err := s.db.WithContext(ctx).
		Where("subscription_id = ? AND period = ?", subscriptionID, period).
		First(&summary).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, summarydomain.ErrSummaryNotFound
		}
		return nil, err
	}
	return &summary, nil
}

func (s *Service) List(ctx context.Context, subscriptionID snowflake.ID) ([]summarydomain.UsageSummary, error) {
	var summaries []summarydomain.UsageSummary
	err := s.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("period DESC").
		Find(&summaries).Error
	if err != nil {
		return nil, err
	}
	return summaries, nil
}
