package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/deskwise/pkg/tenantctx"
)

// ArchivalStats serves the live usage projection. An optional period query
// (YYYY-MM) bounds the fold to that calendar month.
func (s *Server) ArchivalStats(c *gin.Context) {
	subscriptionID, ok := tenantctx.SubscriptionIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if period := strings.TrimSpace(c.Query("period")); period != "" {
		stats, err := s.usageSvc.PeriodStats(c.Request.Context(), subscriptionID, period)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"period": period, "stats": stats})
		return
	}

	stats, err := s.usageSvc.CurrentStats(c.Request.Context(), subscriptionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	completed, err := s.usageSvc.CompletedUsage(c.Request.Context(), subscriptionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"stats":           stats,
		"completed_usage": completed,
	})
}

func (s *Server) UsageSummaries(c *gin.Context) {
	subscriptionID, ok := tenantctx.SubscriptionIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if period := strings.TrimSpace(c.Query("period")); period != "" {
		summary, err := s.summarySvc.Get(c.Request.Context(), subscriptionID, period)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
		return
	}

	summaries, err := s.summarySvc.List(c.Request.Context(), subscriptionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summaries": summaries})
}
