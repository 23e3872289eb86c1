// Package domain contains per-tenant archival automation settings and run
// reporting.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidConfig = errors.New("invalid_archival_config")
)

// ArchivalConfig holds one subscription's automation settings. Rows are
// seeded from the operator defaults the first time a tenant's config is
// read.
type ArchivalConfig struct {
	SubscriptionID            snowflake.ID `gorm:"primaryKey" json:"subscription_id"`
	Enabled                   bool         `gorm:"not null;default:false" json:"enabled"`
	DaysAfterCompletion       int          `gorm:"not null;default:90" json:"days_after_completion"`
	MaxTicketsPerRun          int          `gorm:"not null;default:100" json:"max_tickets_per_run"`
	OnlyWhenApproachingLimits bool         `gorm:"not null;default:true" json:"only_when_approaching_limits"`
	LimitThresholdPercent     float64      `gorm:"not null;default:80" json:"limit_threshold_percent"`
	CreatedAt                 time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
	UpdatedAt                 time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
}

// TableName sets the database table name.
func (ArchivalConfig) TableName() string { return "archival_configs" }

// UpdateConfigRequest carries the mutable automation settings. Nil fields
// keep the stored value.
type UpdateConfigRequest struct {
	Enabled                   *bool    `json:"enabled"`
	DaysAfterCompletion       *int     `json:"days_after_completion"`
	MaxTicketsPerRun          *int     `json:"max_tickets_per_run"`
	OnlyWhenApproachingLimits *bool    `json:"only_when_approaching_limits"`
	LimitThresholdPercent     *float64 `json:"limit_threshold_percent"`
}

// TriggerRequest overrides the stored config for one immediate run of the
// caller's tenant.
type TriggerRequest struct {
	DaysAfterCompletion *int `json:"days_after_completion"`
	MaxTickets          *int `json:"max_tickets"`
	IgnoreLimitGate     bool `json:"ignore_limit_gate"`
}

// TenantRunResult is what one tenant contributed to a sweep.
type TenantRunResult struct {
	SubscriptionID snowflake.ID `json:"subscription_id"`
	Archived       int          `json:"archived"`
	Skipped        bool         `json:"skipped"`
	SkipReason     string       `json:"skip_reason,omitempty"`
	Error          string       `json:"error,omitempty"`
}

// RunReport summarizes one full sweep across tenants.
type RunReport struct {
	StartedAt     time.Time         `json:"started_at"`
	FinishedAt    time.Time         `json:"finished_at"`
	TenantsSwept  int               `json:"tenants_swept"`
	TotalArchived int               `json:"total_archived"`
	ErrorCount    int               `json:"error_count"`
	Tenants       []TenantRunResult `json:"tenants"`
}

// Status reports the controller's liveness to operators. LastRun is nil
// until the first sweep completes after process start.
type Status struct {
	IsRunning bool       `json:"is_running"`
	LastRun   *RunReport `json:"last_run,omitempty"`
	NextRun   *time.Time `json:"next_run,omitempty"`
}

// Service drives automated archival.
type Service interface {
	GetConfig(ctx context.Context, subscriptionID snowflake.ID) (*ArchivalConfig, error)
	UpdateConfig(ctx context.Context, subscriptionID snowflake.ID, req UpdateConfigRequest) (*ArchivalConfig, error)

	// RunAll sweeps every subscription. A tenant failure is recorded and
	// the sweep moves on.
	RunAll(ctx context.Context) (RunReport, error)

	// TriggerImmediate runs one tenant now, regardless of the enabled flag.
	TriggerImmediate(ctx context.Context, subscriptionID snowflake.ID, req TriggerRequest) (TenantRunResult, error)

	Status(ctx context.Context) (Status, error)
	SetNextRun(at time.Time)
}
