// Package authorization resolves what an actor may do to a ticket. Role
// grants live in casbin; tenant scoping is applied on top, so a grant never
// reaches across subscription, company, or team boundaries.
package authorization

import (
	"context"
	"errors"

	"github.com/smallbiznis/deskwise/internal/ticket/domain"
	"github.com/smallbiznis/deskwise/pkg/tenantctx"
)

var (
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
	ErrForbidden     = errors.New("forbidden")
)

const (
	ObjectTicket     = "ticket"
	ObjectUsage      = "usage"
	ObjectAutomation = "automation"
)

const (
	ActionTicketArchive    = "ticket.archive"
	ActionTicketRestore    = "ticket.restore"
	ActionTicketView       = "ticket.view"
	ActionTicketPurge      = "ticket.purge"
	ActionUsageView        = "usage.view"
	ActionAutomationManage = "automation.manage"
)

// Capabilities is the full set of archival permissions an actor holds on one
// ticket. Every permission decision in the system flows through
// ResolveTicketCapabilities, so archive and restore can never disagree on
// scoping.
type Capabilities struct {
	CanView        bool `json:"can_view"`
	CanArchive     bool `json:"can_archive"`
	CanRestore     bool `json:"can_restore"`
	CanViewSummary bool `json:"can_view_summary"`
}

type Service interface {
	ResolveTicketCapabilities(ctx context.Context, actor tenantctx.Actor, ticket *domain.Ticket) (Capabilities, error)
	Authorize(ctx context.Context, actor tenantctx.Actor, object, action string) error
}
