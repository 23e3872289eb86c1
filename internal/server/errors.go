package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	archivaldomain "github.com/smallbiznis/deskwise/internal/archival/domain"
	automationdomain "github.com/smallbiznis/deskwise/internal/automation/domain"
	"github.com/smallbiznis/deskwise/internal/authorization"
	subscriptiondomain "github.com/smallbiznis/deskwise/internal/subscription/domain"
	summarydomain "github.com/smallbiznis/deskwise/internal/summary/domain"
	ticketdomain "github.com/smallbiznis/deskwise/internal/ticket/domain"
	usagedomain "github.com/smallbiznis/deskwise/internal/usage/domain"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	case errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, usagedomain.ErrInvalidPeriod),
		errors.Is(err, usagedomain.ErrInvalidSubscription),
		errors.Is(err, usagedomain.ErrInvalidTicket),
		errors.Is(err, usagedomain.ErrInvalidAction),
		errors.Is(err, usagedomain.ErrInvalidOccurredAt),
		errors.Is(err, archivaldomain.ErrNotArchivable),
		errors.Is(err, archivaldomain.ErrAlreadyArchived),
		errors.Is(err, archivaldomain.ErrNotArchived),
		errors.Is(err, automationdomain.ErrInvalidConfig),
		errors.Is(err, authorization.ErrInvalidActor):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ticketdomain.ErrTicketNotFound),
		errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound),
		errors.Is(err, summarydomain.ErrSummaryNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	if status >= http.StatusInternalServerError {
		return "internal", payload.Type
	}
	return payload.Type, err.Error()
}
