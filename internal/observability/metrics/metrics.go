// Package metrics exposes prometheus instruments for the HTTP surface and the
// archival automation loop.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTPMetrics instruments the gin surface.
type HTTPMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func NewHTTPMetrics() *HTTPMetrics {
	return &HTTPMetrics{
		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deskwise",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "deskwise",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// GinMiddleware records request counts and latency per route.
func GinMiddleware(m *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		m.requestsTotal.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

// AutomationMetrics instruments scheduler jobs and archival automation runs.
type AutomationMetrics struct {
	jobRuns        *prometheus.CounterVec
	jobErrors      *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	ticketsArchived prometheus.Counter
	tenantsSkipped  prometheus.Counter
}

func NewAutomationMetrics() *AutomationMetrics {
	return &AutomationMetrics{
		jobRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deskwise",
			Subsystem: "scheduler",
			Name:      "job_runs_total",
			Help:      "Scheduler job executions by job name.",
		}, []string{"job"}),
		jobErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deskwise",
			Subsystem: "scheduler",
			Name:      "job_errors_total",
			Help:      "Scheduler job failures by job name.",
		}, []string{"job"}),
		jobDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "deskwise",
			Subsystem: "scheduler",
			Name:      "job_duration_seconds",
			Help:      "Scheduler job wall time by job name.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"job"}),
		ticketsArchived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "deskwise",
			Subsystem: "automation",
			Name:      "tickets_archived_total",
			Help:      "Tickets archived by unattended automation runs.",
		}),
		tenantsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "deskwise",
			Subsystem: "automation",
			Name:      "tenants_skipped_total",
			Help:      "Tenants skipped because usage was below their threshold.",
		}),
	}
}

func (m *AutomationMetrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

func (m *AutomationMetrics) IncJobError(job string) {
	if m == nil {
		return
	}
	m.jobErrors.WithLabelValues(job).Inc()
}

func (m *AutomationMetrics) ObserveJobDuration(job string, d time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *AutomationMetrics) AddTicketsArchived(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.ticketsArchived.Add(float64(count))
}

func (m *AutomationMetrics) IncTenantSkipped() {
	if m == nil {
		return
	}
	m.tenantsSkipped.Inc()
}
