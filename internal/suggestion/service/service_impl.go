package service

import (
	"context"
	"sort"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/deskwise/internal/authorization"
	"github.com/smallbiznis/deskwise/internal/clock"
	suggestiondomain "github.com/smallbiznis/deskwise/internal/suggestion/domain"
	ticketdomain "github.com/smallbiznis/deskwise/internal/ticket/domain"
	usagedomain "github.com/smallbiznis/deskwise/internal/usage/domain"
	"github.com/smallbiznis/deskwise/pkg/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Candidates older than this get the age-based reason.
const ageThresholdDays = 30

// No suggestions are produced below this percentage of the completed
// ticket limit. Fixed, not configurable per call.
const limitThresholdPercent = 75.0

const defaultCandidateLimit = 200

type ServiceParam struct {
	fx.In

	Log        *zap.Logger
	Clock      clock.Clock
	TicketRepo ticketdomain.Repository
	UsageSvc   usagedomain.Service
	AuthSvc    authorization.Service
}

type Service struct {
	log        *zap.Logger
	clock      clock.Clock
	ticketRepo ticketdomain.Repository
	usageSvc   usagedomain.Service
	authSvc    authorization.Service
}

func NewService(p ServiceParam) suggestiondomain.Service {
	return &Service{
		log:        p.Log.Named("suggestion.service"),
		clock:      p.Clock,
		ticketRepo: p.TicketRepo,
		usageSvc:   p.UsageSvc,
		authSvc:    p.AuthSvc,
	}
}

// Suggest proposes completed, unarchived tickets the actor is allowed to
// archive. Subscriptions with no completed limit, or sitting below the
// pressure threshold, get no suggestions at all.
func (s *Service) Suggest(ctx context.Context, subscriptionID snowflake.ID, limit int) ([]suggestiondomain.Suggestion, error) {
	usage, err := s.usageSvc.CompletedUsage(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if usage.Unlimited || usage.Percentage < limitThresholdPercent {
		return []suggestiondomain.Suggestion{}, nil
	}

	if limit <= 0 || limit > defaultCandidateLimit {
		limit = defaultCandidateLimit
	}
	now := s.clock.Now()
	candidates, err := s.ticketRepo.FindArchivable(ctx, ticketdomain.ArchivableQuery{
		SubscriptionID:  subscriptionID,
		CompletedBefore: now,
		Limit:           limit,
	})
	if err != nil {
		return nil, err
	}

	actor := actorFrom(ctx)
	suggestions := make([]suggestiondomain.Suggestion, 0, len(candidates))
	for i := range candidates {
		ticket := &candidates[i]
		caps, err := s.authSvc.ResolveTicketCapabilities(ctx, actor, ticket)
		if err != nil {
			return nil, err
		}
		if !caps.CanArchive {
			continue
		}

		days := int(now.Sub(ticket.CompletedAt()).Hours() / 24)
		reason := suggestiondomain.ReasonApproachingLimit
		if days > ageThresholdDays {
			reason = suggestiondomain.ReasonCompletedOverThirtyDays
		}

		suggestions = append(suggestions, suggestiondomain.Suggestion{
			TicketID:            ticket.ID,
			Subject:             ticket.Subject,
			Status:              ticket.Status,
			DaysSinceCompletion: days,
			Reason:              reason,
		})
	}

	// Oldest completions first, regardless of scan order.
	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].DaysSinceCompletion > suggestions[j].DaysSinceCompletion
	})
	return suggestions, nil
}

func actorFrom(ctx context.Context) tenantctx.Actor {
	if actor, ok := tenantctx.ActorFromContext(ctx); ok {
		return actor
	}
	return tenantctx.SystemActor()
}

var Module = fx.Module("suggestion.service",
	fx.Provide(NewService),
)
