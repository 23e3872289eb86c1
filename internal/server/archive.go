package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/deskwise/internal/authorization"
	"github.com/smallbiznis/deskwise/pkg/tenantctx"
)

func (s *Server) ArchiveTicket(c *gin.Context) {
	ticketID, err := snowflake.ParseString(c.Param("id"))
	if err != nil || ticketID == 0 {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	ticket, err := s.archivalSvc.Archive(c.Request.Context(), ticketID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

func (s *Server) RestoreTicket(c *gin.Context) {
	ticketID, err := snowflake.ParseString(c.Param("id"))
	if err != nil || ticketID == 0 {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	ticket, err := s.archivalSvc.Restore(c.Request.Context(), ticketID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

type bulkArchiveRequest struct {
	TicketIDs []string `json:"ticket_ids" binding:"required,min=1"`
}

func (s *Server) BulkArchive(c *gin.Context) {
	var req bulkArchiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	ids := make([]snowflake.ID, 0, len(req.TicketIDs))
	for _, raw := range req.TicketIDs {
		id, err := snowflake.ParseString(raw)
		if err != nil || id == 0 {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		ids = append(ids, id)
	}

	result, err := s.archivalSvc.BulkArchive(c.Request.Context(), ids)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// PurgeTicketEvents deletes a ticket's event history. Restricted to roles
// holding the purge grant; the projection forgets the ticket entirely.
func (s *Server) PurgeTicketEvents(c *gin.Context) {
	ticketID, err := snowflake.ParseString(c.Param("id"))
	if err != nil || ticketID == 0 {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	actor, _ := tenantctx.ActorFromContext(c.Request.Context())
	if err := s.authzSvc.Authorize(c.Request.Context(), actor, authorization.ObjectTicket, authorization.ActionTicketPurge); err != nil {
		AbortWithError(c, err)
		return
	}

	removed, err := s.eventLog.Purge(c.Request.Context(), ticketID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}
