package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	archivaldomain "github.com/smallbiznis/deskwise/internal/archival/domain"
	automationdomain "github.com/smallbiznis/deskwise/internal/automation/domain"
	"github.com/smallbiznis/deskwise/internal/clock"
	"github.com/smallbiznis/deskwise/internal/config"
	"github.com/smallbiznis/deskwise/internal/observability/metrics"
	"github.com/smallbiznis/deskwise/internal/runlock"
	subscriptiondomain "github.com/smallbiznis/deskwise/internal/subscription/domain"
	ticketdomain "github.com/smallbiznis/deskwise/internal/ticket/domain"
	usagedomain "github.com/smallbiznis/deskwise/internal/usage/domain"
	"github.com/smallbiznis/deskwise/pkg/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const tenantLockTTL = 10 * time.Minute

type ServiceParam struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	Defaults    *config.ArchivalDefaultsHolder
	Locker      *runlock.Locker `optional:"true"`
	Metrics     *metrics.AutomationMetrics `optional:"true"`
	SubSvc      subscriptiondomain.Service
	UsageSvc    usagedomain.Service
	ArchivalSvc archivaldomain.Service
	TicketRepo  ticketdomain.Repository
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	defaults    *config.ArchivalDefaultsHolder
	locker      *runlock.Locker
	metrics     *metrics.AutomationMetrics
	subSvc      subscriptiondomain.Service
	usageSvc    usagedomain.Service
	archivalSvc archivaldomain.Service
	ticketRepo  ticketdomain.Repository

	mu        sync.Mutex
	isRunning bool
	lastRun   *automationdomain.RunReport
	nextRun   *time.Time
}

func NewService(p ServiceParam) automationdomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("automation.service"),
		clock:       p.Clock,
		defaults:    p.Defaults,
		locker:      p.Locker,
		metrics:     p.Metrics,
		subSvc:      p.SubSvc,
		usageSvc:    p.UsageSvc,
		archivalSvc: p.ArchivalSvc,
		ticketRepo:  p.TicketRepo,
	}
}

// GetConfig reads the tenant's automation settings, seeding a row from the
// operator defaults on first read.
func (s *Service) GetConfig(ctx context.Context, subscriptionID snowflake.ID) (*automationdomain.ArchivalConfig, error) {
	if _, err := s.subSvc.Get(ctx, subscriptionID); err != nil {
		return nil, err
	}

	var cfg automationdomain.ArchivalConfig
	err := s.db.WithContext(ctx).First(&cfg, "subscription_id = ?", subscriptionID).Error
	if err == nil {
		return &cfg, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	defaults := s.defaults.Get()
	now := s.clock.Now()
	cfg = automationdomain.ArchivalConfig{
		SubscriptionID:            subscriptionID,
		Enabled:                   defaults.Enabled,
		DaysAfterCompletion:       defaults.DaysAfterCompletion,
		MaxTicketsPerRun:          defaults.MaxTicketsPerRun,
		OnlyWhenApproachingLimits: defaults.OnlyWhenApproachingLimits,
		LimitThresholdPercent:     defaults.LimitThresholdPercent,
		CreatedAt:                 now,
		UpdatedAt:                 now,
	}
	if err := s.db.WithContext(ctx).Create(&cfg).Error; err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *Service) UpdateConfig(ctx context.Context, subscriptionID snowflake.ID, req automationdomain.UpdateConfigRequest) (*automationdomain.ArchivalConfig, error) {
	cfg, err := s.GetConfig(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	if req.Enabled != nil {
		cfg.Enabled = *req.Enabled
	}
	if req.DaysAfterCompletion != nil {
		cfg.DaysAfterCompletion = *req.DaysAfterCompletion
	}
	if req.MaxTicketsPerRun != nil {
		cfg.MaxTicketsPerRun = *req.MaxTicketsPerRun
	}
	if req.OnlyWhenApproachingLimits != nil {
		cfg.OnlyWhenApproachingLimits = *req.OnlyWhenApproachingLimits
	}
	if req.LimitThresholdPercent != nil {
		cfg.LimitThresholdPercent = *req.LimitThresholdPercent
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	cfg.UpdatedAt = s.clock.Now()
	if err := s.db.WithContext(ctx).Save(cfg).Error; err != nil {
		return nil, err
	}
	return cfg, nil
}

// RunAll sweeps every subscription under a per-tenant distributed lock.
// Tenant failures are isolated: they count in the report and the sweep
// keeps going.
func (s *Service) RunAll(ctx context.Context) (automationdomain.RunReport, error) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return automationdomain.RunReport{}, nil
	}
	s.isRunning = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
	}()

	report := automationdomain.RunReport{StartedAt: s.clock.Now()}
	subs, err := s.subSvc.List(ctx)
	if err != nil {
		return report, err
	}

	for _, sub := range subs {
		result := s.runTenant(ctx, sub.ID, nil)
		report.TenantsSwept++
		report.TotalArchived += result.Archived
		if result.Error != "" {
			report.ErrorCount++
		}
		report.Tenants = append(report.Tenants, result)
	}

	report.FinishedAt = s.clock.Now()
	s.mu.Lock()
	s.lastRun = &report
	s.mu.Unlock()

	s.metrics.AddTicketsArchived(report.TotalArchived)
	s.log.Info("automation sweep finished",
		zap.Int("tenants", report.TenantsSwept),
		zap.Int("archived", report.TotalArchived),
		zap.Int("errors", report.ErrorCount),
	)
	return report, nil
}

// TriggerImmediate runs one tenant now. Overrides apply to this run only and
// never touch the stored config. A failure during the run is reported in the
// result's Error field, not as a call error; only an unknown subscription
// fails the call itself.
func (s *Service) TriggerImmediate(ctx context.Context, subscriptionID snowflake.ID, req automationdomain.TriggerRequest) (automationdomain.TenantRunResult, error) {
	if _, err := s.subSvc.Get(ctx, subscriptionID); err != nil {
		return automationdomain.TenantRunResult{}, err
	}
	return s.runTenant(ctx, subscriptionID, &req), nil
}

func (s *Service) Status(ctx context.Context) (automationdomain.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return automationdomain.Status{
		IsRunning: s.isRunning,
		LastRun:   s.lastRun,
		NextRun:   s.nextRun,
	}, nil
}

func (s *Service) SetNextRun(at time.Time) {
	s.mu.Lock()
	s.nextRun = &at
	s.mu.Unlock()
}

// runTenant archives one subscription's eligible tickets. trigger non-nil
// means a manual run: the enabled flag is ignored and overrides apply.
func (s *Service) runTenant(ctx context.Context, subscriptionID snowflake.ID, trigger *automationdomain.TriggerRequest) automationdomain.TenantRunResult {
	result := automationdomain.TenantRunResult{SubscriptionID: subscriptionID}

	cfg, err := s.GetConfig(ctx, subscriptionID)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	if trigger == nil && !cfg.Enabled {
		result.Skipped = true
		result.SkipReason = "disabled"
		return result
	}

	key := runlock.SubscriptionKey(subscriptionID)
	token, acquired, err := s.locker.TryLock(ctx, key, tenantLockTTL)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	if !acquired {
		s.metrics.IncTenantSkipped()
		result.Skipped = true
		result.SkipReason = "locked"
		return result
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			s.log.Warn("lock release failed", zap.String("key", key), zap.Error(err))
		}
	}()

	days := cfg.DaysAfterCompletion
	maxTickets := cfg.MaxTicketsPerRun
	gate := cfg.OnlyWhenApproachingLimits
	if trigger != nil {
		if trigger.DaysAfterCompletion != nil {
			days = *trigger.DaysAfterCompletion
		}
		if trigger.MaxTickets != nil {
			maxTickets = *trigger.MaxTickets
		}
		if trigger.IgnoreLimitGate {
			gate = false
		}
	}

	if gate {
		usage, err := s.usageSvc.CompletedUsage(ctx, subscriptionID)
		if err != nil {
			result.Error = err.Error()
			return result
		}
		if usage.Unlimited || usage.Percentage < cfg.LimitThresholdPercent {
			result.Skipped = true
			result.SkipReason = "below_limit_threshold"
			return result
		}
	}

	cutoff := s.clock.Now().AddDate(0, 0, -days)
	candidates, err := s.ticketRepo.FindArchivable(ctx, ticketdomain.ArchivableQuery{
		SubscriptionID:  subscriptionID,
		CompletedBefore: cutoff,
		Limit:           maxTickets,
	})
	if err != nil {
		result.Error = err.Error()
		return result
	}

	ids := make([]snowflake.ID, 0, len(candidates))
	for _, candidate := range candidates {
		ids = append(ids, candidate.ID)
	}

	runCtx := tenantctx.WithActor(ctx, tenantctx.SystemActor())
	runCtx = tenantctx.WithSubscriptionID(runCtx, subscriptionID)
	bulk, err := s.archivalSvc.BulkArchive(runCtx, ids)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.Archived = bulk.ArchivedCount
	if len(bulk.Failed) > 0 {
		s.log.Warn("automation left tickets unarchived",
			zap.String("subscription_id", subscriptionID.String()),
			zap.Int("failed", len(bulk.Failed)),
		)
	}
	return result
}

func validateConfig(cfg *automationdomain.ArchivalConfig) error {
	if cfg.DaysAfterCompletion < 0 {
		return automationdomain.ErrInvalidConfig
	}
	if cfg.MaxTicketsPerRun <= 0 {
		return automationdomain.ErrInvalidConfig
	}
	if cfg.LimitThresholdPercent < 0 || cfg.LimitThresholdPercent > 100 {
		return automationdomain.ErrInvalidConfig
	}
	return nil
}

var Module = fx.Module("automation.service",
	fx.Provide(NewService),
)
