package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	archivaldomain "github.com/smallbiznis/deskwise/internal/archival/domain"
	archivalservice "github.com/smallbiznis/deskwise/internal/archival/service"
	automationdomain "github.com/smallbiznis/deskwise/internal/automation/domain"
	automationservice "github.com/smallbiznis/deskwise/internal/automation/service"
	"github.com/smallbiznis/deskwise/internal/authorization"
	"github.com/smallbiznis/deskwise/internal/config"
	"github.com/smallbiznis/deskwise/internal/observability"
	obslogger "github.com/smallbiznis/deskwise/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/deskwise/internal/observability/metrics"
	"github.com/smallbiznis/deskwise/internal/runlock"
	"github.com/smallbiznis/deskwise/internal/subscription"
	subscriptiondomain "github.com/smallbiznis/deskwise/internal/subscription/domain"
	suggestiondomain "github.com/smallbiznis/deskwise/internal/suggestion/domain"
	suggestionservice "github.com/smallbiznis/deskwise/internal/suggestion/service"
	"github.com/smallbiznis/deskwise/internal/summary"
	summarydomain "github.com/smallbiznis/deskwise/internal/summary/domain"
	"github.com/smallbiznis/deskwise/internal/ticket"
	ticketdomain "github.com/smallbiznis/deskwise/internal/ticket/domain"
	"github.com/smallbiznis/deskwise/internal/usage"
	usagedomain "github.com/smallbiznis/deskwise/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	authorization.Module,
	ticket.Module,
	usage.Module,
	subscription.Module,
	summary.Module,
	archivalservice.Module,
	suggestionservice.Module,
	runlock.Module,
	automationservice.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	genID           *snowflake.Node
	authzSvc        authorization.Service
	ticketRepo      ticketdomain.Repository
	usageSvc        usagedomain.Service
	eventLog        usagedomain.EventLog
	subscriptionSvc subscriptiondomain.Service
	summarySvc      summarydomain.Service
	archivalSvc     archivaldomain.Service
	suggestionSvc   suggestiondomain.Service
	automationSvc   automationdomain.Service
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	GenID           *snowflake.Node
	AuthzSvc        authorization.Service
	TicketRepo      ticketdomain.Repository
	UsageSvc        usagedomain.Service
	EventLog        usagedomain.EventLog
	SubscriptionSvc subscriptiondomain.Service
	SummarySvc      summarydomain.Service
	ArchivalSvc     archivaldomain.Service
	SuggestionSvc   suggestiondomain.Service
	AutomationSvc   automationdomain.Service
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:          p.Gin,
		genID:           p.GenID,
		authzSvc:        p.AuthzSvc,
		ticketRepo:      p.TicketRepo,
		usageSvc:        p.UsageSvc,
		eventLog:        p.EventLog,
		subscriptionSvc: p.SubscriptionSvc,
		summarySvc:      p.SummarySvc,
		archivalSvc:     p.ArchivalSvc,
		suggestionSvc:   p.SuggestionSvc,
		automationSvc:   p.AutomationSvc,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	api := s.engine.Group("/api/v1")
	api.Use(TenantContextMiddleware())

	tickets := api.Group("/tickets")
	{
		tickets.POST("/:id/archive", s.ArchiveTicket)
		tickets.POST("/:id/restore", s.RestoreTicket)
		tickets.DELETE("/:id/events", s.PurgeTicketEvents)

		archive := tickets.Group("/archive")
		{
			archive.POST("/bulk", s.BulkArchive)
			archive.GET("/suggestions", s.ArchivalSuggestions)
			archive.GET("/stats", s.ArchivalStats)
			archive.GET("/summaries", s.UsageSummaries)
			archive.GET("/auto-config", s.GetAutomationConfig)
			archive.POST("/auto-config", s.UpdateAutomationConfig)
			archive.POST("/trigger-immediate", s.TriggerAutomation)
			archive.GET("/automation-status", s.AutomationStatus)
		}
	}
}
