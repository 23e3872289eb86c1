// Package scheduler drives the periodic jobs: the archival automation sweep
// and the usage summary refresh.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	automationdomain "github.com/smallbiznis/deskwise/internal/automation/domain"
	"github.com/smallbiznis/deskwise/internal/clock"
	"github.com/smallbiznis/deskwise/internal/observability/metrics"
	subscriptiondomain "github.com/smallbiznis/deskwise/internal/subscription/domain"
	summarydomain "github.com/smallbiznis/deskwise/internal/summary/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobArchivalAutomation = "archival_automation"
	JobSummaryRefresh     = "summary_refresh"
)

var ErrInvalidConfig = errors.New("invalid scheduler configuration")

type Params struct {
	fx.In

	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	AutomationSvc automationdomain.Service
	SummarySvc    summarydomain.Service
	SubSvc        subscriptiondomain.Service
	Metrics       *metrics.AutomationMetrics `optional:"true"`
	Config        Config                     `optional:"true"`
}

type Scheduler struct {
	log           *zap.Logger
	cfg           Config
	genID         *snowflake.Node
	clock         clock.Clock
	automationSvc automationdomain.Service
	summarySvc    summarydomain.Service
	subSvc        subscriptiondomain.Service
	metrics       *metrics.AutomationMetrics
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.AutomationSvc == nil || p.SummarySvc == nil || p.SubSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:           p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:           p.Config.withDefaults(),
		genID:         p.GenID,
		clock:         p.Clock,
		automationSvc: p.AutomationSvc,
		summarySvc:    p.SummarySvc,
		subSvc:        p.SubSvc,
		metrics:       p.Metrics,
	}, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context) error) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name)
	if owner {
		s.logJobStart(run)
	}
	s.metrics.IncJobRun(name)

	err := fn(ctx)
	s.metrics.ObserveJobDuration(name, time.Since(start))
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(run)
	}
	if err == nil {
		return nil
	}

	s.metrics.IncJobError(name)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.log.Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", s.cfg.JobTimeout),
			zap.Error(err),
		)
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{JobArchivalAutomation, s.ArchivalAutomationJob},
		{JobSummaryRefresh, s.SummaryRefreshJob},
	}

	for _, job := range jobs {
		if s.isJobEnabled(job.Name) {
			err = errors.Join(err, s.runJob(parent, job.Name, job.Run))
		}
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		s.automationSvc.SetNextRun(s.clock.Now().Add(s.cfg.RunInterval))
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// ArchivalAutomationJob sweeps every tenant once.
func (s *Scheduler) ArchivalAutomationJob(ctx context.Context) error {
	run := jobRunFromContext(ctx)
	report, err := s.automationSvc.RunAll(ctx)
	if err != nil {
		return err
	}
	run.AddProcessed(report.TotalArchived)
	for i := 0; i < report.ErrorCount; i++ {
		run.IncError()
	}
	return nil
}

// SummaryRefreshJob re-materializes the current period for every
// subscription. A tenant failure is logged and the rest still refresh.
func (s *Scheduler) SummaryRefreshJob(ctx context.Context) error {
	run := jobRunFromContext(ctx)
	subs, err := s.subSvc.List(ctx)
	if err != nil {
		return err
	}

	period := s.clock.Now().Format("2006-01")
	var firstErr error
	for _, sub := range subs {
		if _, err := s.summarySvc.Refresh(ctx, sub.ID, period); err != nil {
			run.IncError()
			if firstErr == nil {
				firstErr = err
			}
			s.log.Warn("summary refresh failed",
				zap.String("subscription_id", sub.ID.String()),
				zap.String("period", period),
				zap.Error(err),
			)
			continue
		}
		run.AddProcessed(1)
	}
	return firstErr
}

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
	fx.Invoke(Start),
)

func Start(lc fx.Lifecycle, sched *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())
			go sched.RunForever(ctx)
			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})
			return nil
		},
	})
}
