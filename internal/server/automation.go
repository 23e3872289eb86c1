package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	automationdomain "github.com/smallbiznis/deskwise/internal/automation/domain"
	"github.com/smallbiznis/deskwise/internal/authorization"
	"github.com/smallbiznis/deskwise/pkg/tenantctx"
)

func (s *Server) GetAutomationConfig(c *gin.Context) {
	subscriptionID, ok := tenantctx.SubscriptionIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	cfg, err := s.automationSvc.GetConfig(c.Request.Context(), subscriptionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (s *Server) UpdateAutomationConfig(c *gin.Context) {
	subscriptionID, ok := tenantctx.SubscriptionIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if err := s.requireAutomationGrant(c); err != nil {
		AbortWithError(c, err)
		return
	}

	var req automationdomain.UpdateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	cfg, err := s.automationSvc.UpdateConfig(c.Request.Context(), subscriptionID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (s *Server) TriggerAutomation(c *gin.Context) {
	subscriptionID, ok := tenantctx.SubscriptionIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if err := s.requireAutomationGrant(c); err != nil {
		AbortWithError(c, err)
		return
	}

	var req automationdomain.TriggerRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
	}

	result, err := s.automationSvc.TriggerImmediate(c.Request.Context(), subscriptionID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) AutomationStatus(c *gin.Context) {
	status, err := s.automationSvc.Status(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) requireAutomationGrant(c *gin.Context) error {
	actor, _ := tenantctx.ActorFromContext(c.Request.Context())
	return s.authzSvc.Authorize(c.Request.Context(), actor, authorization.ObjectAutomation, authorization.ActionAutomationManage)
}
