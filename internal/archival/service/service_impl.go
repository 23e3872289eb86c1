package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	archivaldomain "github.com/smallbiznis/deskwise/internal/archival/domain"
	"github.com/smallbiznis/deskwise/internal/authorization"
	"github.com/smallbiznis/deskwise/internal/clock"
	ticketdomain "github.com/smallbiznis/deskwise/internal/ticket/domain"
	usagedomain "github.com/smallbiznis/deskwise/internal/usage/domain"
	"github.com/smallbiznis/deskwise/pkg/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	TicketRepo ticketdomain.Repository
	EventLog   usagedomain.EventLog
	AuthSvc    authorization.Service
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	ticketRepo ticketdomain.Repository
	eventLog   usagedomain.EventLog
	authSvc    authorization.Service
}

func NewService(p ServiceParam) archivaldomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("archival.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		ticketRepo: p.TicketRepo,
		eventLog:   p.EventLog,
		authSvc:    p.AuthSvc,
	}
}

// Archive stamps the archival marker on one ticket. The marker update is
// guarded, so a concurrent archive of the same ticket archives it once and
// the loser gets ErrAlreadyArchived.
func (s *Service) Archive(ctx context.Context, ticketID snowflake.ID) (*ticketdomain.Ticket, error) {
	ticket, err := s.ticketRepo.FindByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	actor := actorFrom(ctx)
	caps, err := s.authSvc.ResolveTicketCapabilities(ctx, actor, ticket)
	if err != nil {
		return nil, err
	}
	if !caps.CanArchive {
		return nil, authorization.ErrForbidden
	}

	if !ticket.IsArchivable() {
		return nil, archivaldomain.ErrNotArchivable
	}
	if ticket.IsArchived() {
		return nil, archivaldomain.ErrAlreadyArchived
	}

	now := s.clock.Now()
	previousStatus := ticket.Status
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claimed, err := s.ticketRepo.ClaimArchive(ctx, tx, ticket.ID, now)
		if err != nil {
			return err
		}
		if !claimed {
			return archivaldomain.ErrAlreadyArchived
		}
		if err := s.ticketRepo.AppendHistory(ctx, tx, &ticketdomain.TicketHistory{
			ID:        s.genID.Generate(),
			TicketID:  ticket.ID,
			ActorID:   actor.ID,
			Action:    ticketdomain.HistoryActionArchived,
			Detail:    "ticket archived",
			CreatedAt: now,
		}); err != nil {
			return err
		}
		_, err = s.eventLog.AppendTx(ctx, tx, usagedomain.AppendEventRequest{
			SubscriptionID: ticket.SubscriptionID,
			TicketID:       ticket.ID,
			Action:         usagedomain.ActionArchived,
			PreviousStatus: &previousStatus,
			OccurredAt:     now,
			Metadata:       map[string]any{"actor_id": actor.ID.String()},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("ticket archived",
		zap.String("ticket_id", ticket.ID.String()),
		zap.String("subscription_id", ticket.SubscriptionID.String()),
		zap.String("actor_id", actor.ID.String()),
	)

	ticket.ArchivedAt = &now
	return ticket, nil
}

// Restore clears the archival marker and re-emits the ticket into usage with
// the status it had before archiving.
func (s *Service) Restore(ctx context.Context, ticketID snowflake.ID) (*ticketdomain.Ticket, error) {
	ticket, err := s.ticketRepo.FindByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	actor := actorFrom(ctx)
	caps, err := s.authSvc.ResolveTicketCapabilities(ctx, actor, ticket)
	if err != nil {
		return nil, err
	}
	if !caps.CanRestore {
		return nil, authorization.ErrForbidden
	}

	if !ticket.IsArchived() {
		return nil, archivaldomain.ErrNotArchived
	}

	now := s.clock.Now()
	currentStatus := ticket.Status
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claimed, err := s.ticketRepo.ClaimRestore(ctx, tx, ticket.ID, now)
		if err != nil {
			return err
		}
		if !claimed {
			return archivaldomain.ErrNotArchived
		}
		if err := s.ticketRepo.AppendHistory(ctx, tx, &ticketdomain.TicketHistory{
			ID:        s.genID.Generate(),
			TicketID:  ticket.ID,
			ActorID:   actor.ID,
			Action:    ticketdomain.HistoryActionRestored,
			Detail:    "ticket restored from archive",
			CreatedAt: now,
		}); err != nil {
			return err
		}
		_, err = s.eventLog.AppendTx(ctx, tx, usagedomain.AppendEventRequest{
			SubscriptionID: ticket.SubscriptionID,
			TicketID:       ticket.ID,
			Action:         usagedomain.ActionRestored,
			NewStatus:      &currentStatus,
			OccurredAt:     now,
			Metadata:       map[string]any{"actor_id": actor.ID.String()},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("ticket restored",
		zap.String("ticket_id", ticket.ID.String()),
		zap.String("subscription_id", ticket.SubscriptionID.String()),
		zap.String("actor_id", actor.ID.String()),
	)

	ticket.ArchivedAt = nil
	return ticket, nil
}

// BulkArchive archives each ticket independently. One bad ticket never
// aborts the rest of the batch.
func (s *Service) BulkArchive(ctx context.Context, ticketIDs []snowflake.ID) (archivaldomain.BulkArchivalResult, error) {
	result := archivaldomain.BulkArchivalResult{}
	for _, ticketID := range ticketIDs {
		result.TotalProcessed++
		if _, err := s.Archive(ctx, ticketID); err != nil {
			result.Failed = append(result.Failed, archivaldomain.BulkTicketError{
				TicketID: ticketID,
				Reason:   bulkReason(err),
			})
			continue
		}
		result.ArchivedCount++
		result.Successful = append(result.Successful, ticketID)
	}
	return result, nil
}

func actorFrom(ctx context.Context) tenantctx.Actor {
	if actor, ok := tenantctx.ActorFromContext(ctx); ok {
		return actor
	}
	return tenantctx.SystemActor()
}

func bulkReason(err error) string {
	switch {
	case errors.Is(err, ticketdomain.ErrTicketNotFound):
		return "not_found"
	case errors.Is(err, authorization.ErrForbidden):
		return "forbidden"
	case errors.Is(err, archivaldomain.ErrNotArchivable):
		return "not_archivable"
	case errors.Is(err, archivaldomain.ErrAlreadyArchived):
		return "already_archived"
	default:
		return "internal_error"
	}
}

var Module = fx.Module("archival.service",
	fx.Provide(NewService),
)
