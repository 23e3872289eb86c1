// Package tenantctx carries the active subscription and acting principal
// through request and job contexts.
package tenantctx

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// Role represents the actor's role within a tenant.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleTeamLead Role = "team_lead"
	RoleAgent    Role = "agent"
	RoleCustomer Role = "customer"
	RoleSystem   Role = "system"
)

// ParseRole normalizes a raw role string to a known Role.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleTeamLead:
		return RoleTeamLead, true
	case RoleAgent:
		return RoleAgent, true
	case RoleCustomer:
		return RoleCustomer, true
	case RoleSystem:
		return RoleSystem, true
	default:
		return "", false
	}
}

// Actor identifies who is performing an operation. CompanyID and TeamID are
// zero when the actor has no such affiliation.
type Actor struct {
	ID        snowflake.ID
	Role      Role
	CompanyID snowflake.ID
	TeamID    snowflake.ID
}

// SystemActor is the principal used by unattended automation runs.
func SystemActor() Actor {
	return Actor{Role: RoleSystem}
}

type subscriptionKey struct{}

type actorKey struct{}

// WithSubscriptionID stores the active subscription in the context.
func WithSubscriptionID(ctx context.Context, id snowflake.ID) context.Context {
	return context.WithValue(ctx, subscriptionKey{}, id)
}

// SubscriptionIDFromContext returns the active subscription, if set.
func SubscriptionIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}
	if id, ok := ctx.Value(subscriptionKey{}).(snowflake.ID); ok && id != 0 {
		return id, true
	}
	return 0, false
}

// WithActor stores the acting principal in the context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the acting principal, if set.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	if actor, ok := ctx.Value(actorKey{}).(Actor); ok && actor.Role != "" {
		return actor, true
	}
	return Actor{}, false
}
