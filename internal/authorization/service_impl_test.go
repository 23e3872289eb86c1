package authorization

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	ticketdomain "github.com/smallbiznis/deskwise/internal/ticket/domain"
	"github.com/smallbiznis/deskwise/pkg/tenantctx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}

func setupService(t *testing.T) Service {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	enforcer, err := NewEnforcer(db)
	if err != nil {
		t.Fatalf("new enforcer: %v", err)
	}
	return NewService(Params{Log: zap.NewNop(), Enforcer: enforcer})
}

func TestAdminHasFullTicketCapabilities(t *testing.T) {
	node := mustNode(t)
	svc := setupService(t)

	actor := tenantctx.Actor{ID: node.Generate(), Role: tenantctx.RoleAdmin}
	ticket := &ticketdomain.Ticket{
		ID:             node.Generate(),
		SubscriptionID: node.Generate(),
		Status:         ticketdomain.StatusResolved,
	}

	caps, err := svc.ResolveTicketCapabilities(context.Background(), actor, ticket)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !caps.CanView || !caps.CanArchive || !caps.CanRestore || !caps.CanViewSummary {
		t.Fatalf("admin missing capabilities: %+v", caps)
	}
}

func TestAgentScopedToTeam(t *testing.T) {
	node := mustNode(t)
	svc := setupService(t)

	teamID := node.Generate()
	actor := tenantctx.Actor{ID: node.Generate(), Role: tenantctx.RoleAgent, TeamID: teamID}

	sameTeam := &ticketdomain.Ticket{ID: node.Generate(), SubscriptionID: node.Generate(), TeamID: teamID}
	otherTeam := &ticketdomain.Ticket{ID: node.Generate(), SubscriptionID: node.Generate(), TeamID: node.Generate()}

	caps, err := svc.ResolveTicketCapabilities(context.Background(), actor, sameTeam)
	if err != nil {
		t.Fatalf("resolve same team: %v", err)
	}
	if !caps.CanArchive || !caps.CanRestore {
		t.Fatalf("agent should archive and restore tickets on their own team: %+v", caps)
	}

	caps, err = svc.ResolveTicketCapabilities(context.Background(), actor, otherTeam)
	if err != nil {
		t.Fatalf("resolve other team: %v", err)
	}
	if caps != (Capabilities{}) {
		t.Fatalf("other-team ticket granted capabilities: %+v", caps)
	}
}

func TestAgentAlwaysSeesAssignedTicket(t *testing.T) {
	node := mustNode(t)
	svc := setupService(t)

	agentID := node.Generate()
	actor := tenantctx.Actor{ID: agentID, Role: tenantctx.RoleAgent, TeamID: node.Generate()}
	ticket := &ticketdomain.Ticket{
		ID:             node.Generate(),
		SubscriptionID: node.Generate(),
		TeamID:         node.Generate(),
		AssignedToID:   agentID,
	}

	caps, err := svc.ResolveTicketCapabilities(context.Background(), actor, ticket)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !caps.CanView || !caps.CanArchive {
		t.Fatalf("assignee missing capabilities: %+v", caps)
	}
}

func TestCustomerScopedToCompany(t *testing.T) {
	node := mustNode(t)
	svc := setupService(t)

	companyID := node.Generate()
	actor := tenantctx.Actor{ID: node.Generate(), Role: tenantctx.RoleCustomer, CompanyID: companyID}

	own := &ticketdomain.Ticket{ID: node.Generate(), SubscriptionID: node.Generate(), CompanyID: companyID}
	foreign := &ticketdomain.Ticket{ID: node.Generate(), SubscriptionID: node.Generate(), CompanyID: node.Generate()}

	caps, err := svc.ResolveTicketCapabilities(context.Background(), actor, own)
	if err != nil {
		t.Fatalf("resolve own company: %v", err)
	}
	if !caps.CanView || !caps.CanArchive || !caps.CanRestore {
		t.Fatalf("customer missing capabilities on own-company ticket: %+v", caps)
	}

	caps, err = svc.ResolveTicketCapabilities(context.Background(), actor, foreign)
	if err != nil {
		t.Fatalf("resolve foreign company: %v", err)
	}
	if caps != (Capabilities{}) {
		t.Fatalf("foreign-company ticket granted capabilities: %+v", caps)
	}
}

func TestSubscriptionBoundaryWins(t *testing.T) {
	node := mustNode(t)
	svc := setupService(t)

	actor := tenantctx.Actor{ID: node.Generate(), Role: tenantctx.RoleAdmin}
	ticket := &ticketdomain.Ticket{ID: node.Generate(), SubscriptionID: node.Generate()}

	ctx := tenantctx.WithSubscriptionID(context.Background(), node.Generate())
	caps, err := svc.ResolveTicketCapabilities(ctx, actor, ticket)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if caps != (Capabilities{}) {
		t.Fatalf("cross-subscription ticket granted capabilities: %+v", caps)
	}
}

func TestAuthorizeForbidden(t *testing.T) {
	node := mustNode(t)
	svc := setupService(t)

	customer := tenantctx.Actor{ID: node.Generate(), Role: tenantctx.RoleCustomer}
	if err := svc.Authorize(context.Background(), customer, ObjectTicket, ActionTicketPurge); err != ErrForbidden {
		t.Fatalf("customer purge: got %v, want ErrForbidden", err)
	}
	agent := tenantctx.Actor{ID: node.Generate(), Role: tenantctx.RoleAgent}
	if err := svc.Authorize(context.Background(), agent, ObjectTicket, ActionTicketPurge); err != ErrForbidden {
		t.Fatalf("agent purge: got %v, want ErrForbidden", err)
	}
	if err := svc.Authorize(context.Background(), customer, ObjectTicket, ActionTicketView); err != nil {
		t.Fatalf("view should be allowed: %v", err)
	}
}
