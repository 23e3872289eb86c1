package service

import (
	"context"
	"regexp"
	"time"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/smallbiznis/deskwise/internal/subscription/domain"
	usagedomain "github.com/smallbiznis/deskwise/internal/usage/domain"
	"github.com/smallbiznis/deskwise/internal/usage/projection"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var periodPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

type ServiceParam struct {
	fx.In

	Log      *zap.Logger
	EventLog usagedomain.EventLog
	SubSvc   subscriptiondomain.Service
}

type Service struct {
	log      *zap.Logger
	eventLog usagedomain.EventLog
	subSvc   subscriptiondomain.Service
}

func NewService(p ServiceParam) usagedomain.Service {
	return &Service{
		log:      p.Log.Named("usage.service"),
		eventLog: p.EventLog,
		subSvc:   p.SubSvc,
	}
}

// CurrentStats folds the subscription's full event history into its present
// usage. The projection runs open-ended so the latest event per ticket wins.
func (s *Service) CurrentStats(ctx context.Context, subscriptionID snowflake.ID) (usagedomain.UsageStats, error) {
	if subscriptionID == 0 {
		return usagedomain.UsageStats{}, usagedomain.ErrInvalidSubscription
	}
	events, err := s.eventLog.QueryRange(ctx, subscriptionID, time.Time{}, time.Time{})
	if err != nil {
		return usagedomain.UsageStats{}, err
	}
	return projection.Project(subscriptionID, events), nil
}

// PeriodStats folds only the events that occurred inside the named calendar
// month. Period uses the YYYY-MM form.
func (s *Service) PeriodStats(ctx context.Context, subscriptionID snowflake.ID, period string) (usagedomain.UsageStats, error) {
	if subscriptionID == 0 {
		return usagedomain.UsageStats{}, usagedomain.ErrInvalidSubscription
	}
	window, err := parsePeriod(period)
	if err != nil {
		return usagedomain.UsageStats{}, err
	}
	events, err := s.eventLog.QueryRange(ctx, subscriptionID, window.Start, window.End)
	if err != nil {
		return usagedomain.UsageStats{}, err
	}
	return projection.Project(subscriptionID, events), nil
}

// CompletedUsage reports completed-ticket counts against the subscription's
// completed limit. Unlimited plans always report zero percent.
func (s *Service) CompletedUsage(ctx context.Context, subscriptionID snowflake.ID) (usagedomain.CompletedUsage, error) {
	sub, err := s.subSvc.Get(ctx, subscriptionID)
	if err != nil {
		return usagedomain.CompletedUsage{}, err
	}
	stats, err := s.CurrentStats(ctx, subscriptionID)
	if err != nil {
		return usagedomain.CompletedUsage{}, err
	}

	usage := usagedomain.CompletedUsage{
		SubscriptionID: subscriptionID,
		CompletedCount: stats.CompletedCount,
		Limit:          sub.CompletedTicketLimit,
		Unlimited:      sub.CompletedUnlimited(),
	}
	if !usage.Unlimited && sub.CompletedTicketLimit > 0 {
		usage.Percentage = float64(stats.CompletedCount) / float64(sub.CompletedTicketLimit) * 100
	}
	return usage, nil
}

func parsePeriod(period string) (projection.Window, error) {
	if !periodPattern.MatchString(period) {
		return projection.Window{}, usagedomain.ErrInvalidPeriod
	}
	start, err := time.ParseInLocation("2006-01", period, time.UTC)
	if err != nil {
		return projection.Window{}, usagedomain.ErrInvalidPeriod
	}
	return projection.Window{Start: start, End: start.AddDate(0, 1, 0)}, nil
}
