package authorization

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	ticketdomain "github.com/smallbiznis/deskwise/internal/ticket/domain"
	"github.com/smallbiznis/deskwise/pkg/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

// ResolveTicketCapabilities combines the actor's role grants with tenant
// scoping. A capability is held only when both the role permits the action
// and the ticket is inside the actor's scope.
func (s *ServiceImpl) ResolveTicketCapabilities(ctx context.Context, actor tenantctx.Actor, ticket *ticketdomain.Ticket) (Capabilities, error) {
	if ticket == nil {
		return Capabilities{}, ErrInvalidObject
	}
	subscriptionID, _ := tenantctx.SubscriptionIDFromContext(ctx)
	if subscriptionID != 0 && ticket.SubscriptionID != subscriptionID {
		return Capabilities{}, nil
	}

	inScope := s.ticketInScope(actor, ticket)
	if !inScope {
		return Capabilities{}, nil
	}

	caps := Capabilities{}
	var err error
	if caps.CanView, err = s.roleAllows(actor, ObjectTicket, ActionTicketView); err != nil {
		return Capabilities{}, err
	}
	if caps.CanArchive, err = s.roleAllows(actor, ObjectTicket, ActionTicketArchive); err != nil {
		return Capabilities{}, err
	}
	if caps.CanRestore, err = s.roleAllows(actor, ObjectTicket, ActionTicketRestore); err != nil {
		return Capabilities{}, err
	}
	if caps.CanViewSummary, err = s.roleAllows(actor, ObjectUsage, ActionUsageView); err != nil {
		return Capabilities{}, err
	}
	return caps, nil
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor tenantctx.Actor, object, action string) error {
	if object == "" {
		return ErrInvalidObject
	}
	if action == "" {
		return ErrInvalidAction
	}
	allowed, err := s.roleAllows(actor, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		return ErrForbidden
	}
	return nil
}

// ticketInScope applies tenant boundaries per role. Assignees always see
// their own tickets regardless of team.
func (s *ServiceImpl) ticketInScope(actor tenantctx.Actor, ticket *ticketdomain.Ticket) bool {
	switch actor.Role {
	case tenantctx.RoleAdmin, tenantctx.RoleTeamLead, tenantctx.RoleSystem:
		return true
	case tenantctx.RoleAgent:
		if actor.ID != 0 && ticket.AssignedToID == actor.ID {
			return true
		}
		return actor.TeamID != 0 && ticket.TeamID == actor.TeamID
	case tenantctx.RoleCustomer:
		if actor.ID != 0 && ticket.SubmitterID == actor.ID {
			return true
		}
		return actor.CompanyID != 0 && ticket.CompanyID == actor.CompanyID
	}
	return false
}

func (s *ServiceImpl) roleAllows(actor tenantctx.Actor, object, action string) (bool, error) {
	roleName := roleSubject(actor.Role)
	if roleName == "" {
		return false, ErrInvalidActor
	}
	subject := subjectFor(actor)
	domain := "sub:*"
	if err := s.ensureGrouping(subject, roleName, domain); err != nil {
		return false, err
	}
	return s.enforcer.Enforce(subject, domain, object, action)
}

func (s *ServiceImpl) ensureGrouping(subject string, roleName string, domain string) error {
	has, err := s.enforcer.HasGroupingPolicy(subject, roleName, domain)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject, "", domain)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		params := make([]interface{}, 0, len(rule))
		for _, value := range rule {
			params = append(params, value)
		}
		_, _ = s.enforcer.RemoveGroupingPolicy(params...)
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName, domain)
	return err
}

func subjectFor(actor tenantctx.Actor) string {
	if actor.Role == tenantctx.RoleSystem {
		return "system"
	}
	return fmt.Sprintf("user:%s", actor.ID.String())
}

func roleSubject(role tenantctx.Role) string {
	switch role {
	case tenantctx.RoleAdmin, tenantctx.RoleTeamLead, tenantctx.RoleAgent,
		tenantctx.RoleCustomer, tenantctx.RoleSystem:
		return fmt.Sprintf("role:%s", role)
	}
	return ""
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	// Archive and restore are mirror transitions with the same actor-scope
	// rule: every role that can reach a ticket may move it both ways.
	// Scoping itself (company, team, assignment) lives in ticketInScope.
	// Purging event history and managing tenant automation stay with
	// operator roles.
	policies := [][]string{
		{"role:admin", ObjectTicket, ActionTicketView},
		{"role:admin", ObjectTicket, ActionTicketArchive},
		{"role:admin", ObjectTicket, ActionTicketRestore},
		{"role:admin", ObjectTicket, ActionTicketPurge},
		{"role:admin", ObjectUsage, ActionUsageView},
		{"role:admin", ObjectAutomation, ActionAutomationManage},

		{"role:team_lead", ObjectTicket, ActionTicketView},
		{"role:team_lead", ObjectTicket, ActionTicketArchive},
		{"role:team_lead", ObjectTicket, ActionTicketRestore},
		{"role:team_lead", ObjectTicket, ActionTicketPurge},
		{"role:team_lead", ObjectUsage, ActionUsageView},
		{"role:team_lead", ObjectAutomation, ActionAutomationManage},

		{"role:agent", ObjectTicket, ActionTicketView},
		{"role:agent", ObjectTicket, ActionTicketArchive},
		{"role:agent", ObjectTicket, ActionTicketRestore},

		{"role:customer", ObjectTicket, ActionTicketView},
		{"role:customer", ObjectTicket, ActionTicketArchive},
		{"role:customer", ObjectTicket, ActionTicketRestore},

		{"role:system", ObjectTicket, ActionTicketView},
		{"role:system", ObjectTicket, ActionTicketArchive},
		{"role:system", ObjectTicket, ActionTicketRestore},
		{"role:system", ObjectTicket, ActionTicketPurge},
		{"role:system", ObjectUsage, ActionUsageView},
		{"role:system", ObjectAutomation, ActionAutomationManage},
	}

	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}

var Module = fx.Module("authorization.service",
	fx.Provide(NewEnforcer),
	fx.Provide(NewService),
)
