package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	archivaldomain "github.com/smallbiznis/deskwise/internal/archival/domain"
	"github.com/smallbiznis/deskwise/internal/authorization"
	"github.com/smallbiznis/deskwise/internal/clock"
	ticketdomain "github.com/smallbiznis/deskwise/internal/ticket/domain"
	ticketrepository "github.com/smallbiznis/deskwise/internal/ticket/repository"
	usagedomain "github.com/smallbiznis/deskwise/internal/usage/domain"
	"github.com/smallbiznis/deskwise/internal/usage/projection"
	usagerepository "github.com/smallbiznis/deskwise/internal/usage/repository"
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

type fixture struct {
	db       *gorm.DB
	node     *snowflake.Node
	clock    *clock.FakeClock
	svc      archivaldomain.Service
	eventLog usagedomain.EventLog
}

func setup(t *testing.T) *fixture {
	t.Helper()
	node := mustNode(t)
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&ticketdomain.Ticket{},
		&ticketdomain.TicketHistory{},
		&usagedomain.UsageEvent{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	enforcer, err := authorization.NewEnforcer(db)
	if err != nil {
		t.Fatalf("new enforcer: %v", err)
	}
	authSvc := authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer})

	fakeClock := clock.NewFakeClock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	eventLog := usagerepository.Provide(db, node)
	svc := NewService(ServiceParam{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      fakeClock,
		TicketRepo: ticketrepository.Provide(db),
		EventLog:   eventLog,
		AuthSvc:    authSvc,
	})
	return &fixture{db: db, node: node, clock: fakeClock, svc: svc, eventLog: eventLog}
}

func (f *fixture) createTicket(t *testing.T, subID snowflake.ID, status string) *ticketdomain.Ticket {
	t.Helper()
	now := f.clock.Now()
	ticket := &ticketdomain.Ticket{
		ID:             f.node.Generate(),
		SubscriptionID: subID,
		Subject:        "printer on fire",
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if status == ticketdomain.StatusResolved {
		resolvedAt := now
		ticket.ResolvedAt = &resolvedAt
	}
	if err := f.db.Create(ticket).Error; err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	return ticket
}

func adminCtx(node *snowflake.Node) context.Context {
	actor := tenantctx.Actor{ID: node.Generate(), Role: tenantctx.RoleAdmin}
	return tenantctx.WithActor(context.Background(), actor)
}

func TestArchiveResolvedTicket(t *testing.T) {
	f := setup(t)
	subID := f.node.Generate()
	ticket := f.createTicket(t, subID, ticketdomain.StatusResolved)
	ctx := adminCtx(f.node)

	archived, err := f.svc.Archive(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if archived.ArchivedAt == nil {
		t.Fatal("archived_at not set")
	}

	var stored ticketdomain.Ticket
	if err := f.db.First(&stored, "id = ?", ticket.ID).Error; err != nil {
		t.Fatalf("reload ticket: %v", err)
	}
	if stored.ArchivedAt == nil {
		t.Fatal("archived_at not persisted")
	}

	var history []ticketdomain.TicketHistory
	if err := f.db.Find(&history, "ticket_id = ?", ticket.ID).Error; err != nil {
		t.Fatalf("load history: %v", err)
	}
	if len(history) != 1 || history[0].Action != ticketdomain.HistoryActionArchived {
		t.Fatalf("unexpected history: %+v", history)
	}

	events, err := f.eventLog.QueryTicket(context.Background(), ticket.ID)
	if err != nil {
		t.Fatalf("query events: %v", err)
	}
	if len(events) != 1 || events[0].Action != usagedomain.ActionArchived {
		t.Fatalf("unexpected events: %+v", events)
	}
	if events[0].PreviousStatus == nil || *events[0].PreviousStatus != ticketdomain.StatusResolved {
		t.Fatalf("previous status not recorded: %+v", events[0])
	}
}

func TestArchiveRejectsOpenTicket(t *testing.T) {
	f := setup(t)
	ticket := f.createTicket(t, f.node.Generate(), ticketdomain.StatusOpen)

	_, err := f.svc.Archive(adminCtx(f.node), ticket.ID)
	if !errors.Is(err, archivaldomain.ErrNotArchivable) {
		t.Fatalf("got %v, want ErrNotArchivable", err)
	}
}

func TestArchiveTwice(t *testing.T) {
	f := setup(t)
	ticket := f.createTicket(t, f.node.Generate(), ticketdomain.StatusResolved)
	ctx := adminCtx(f.node)

	if _, err := f.svc.Archive(ctx, ticket.ID); err != nil {
		t.Fatalf("first archive: %v", err)
	}
	_, err := f.svc.Archive(ctx, ticket.ID)
	if !errors.Is(err, archivaldomain.ErrAlreadyArchived) {
		t.Fatalf("got %v, want ErrAlreadyArchived", err)
	}
}

func TestArchiveMissingTicket(t *testing.T) {
	f := setup(t)
	_, err := f.svc.Archive(adminCtx(f.node), f.node.Generate())
	if !errors.Is(err, ticketdomain.ErrTicketNotFound) {
		t.Fatalf("got %v, want ErrTicketNotFound", err)
	}
}

func TestCustomerArchivesOwnCompanyTicket(t *testing.T) {
	f := setup(t)
	companyID := f.node.Generate()
	ticket := f.createTicket(t, f.node.Generate(), ticketdomain.StatusResolved)
	f.db.Model(ticket).Update("company_id", companyID)

	actor := tenantctx.Actor{ID: f.node.Generate(), Role: tenantctx.RoleCustomer, CompanyID: companyID}
	ctx := tenantctx.WithActor(context.Background(), actor)

	archived, err := f.svc.Archive(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("customer in owning company should archive: %v", err)
	}
	if archived.ArchivedAt == nil {
		t.Fatal("archived_at not set")
	}
}

func TestArchiveForbiddenOutsideCompany(t *testing.T) {
	f := setup(t)
	ticket := f.createTicket(t, f.node.Generate(), ticketdomain.StatusResolved)
	f.db.Model(ticket).Update("company_id", f.node.Generate())

	actor := tenantctx.Actor{ID: f.node.Generate(), Role: tenantctx.RoleCustomer, CompanyID: f.node.Generate()}
	ctx := tenantctx.WithActor(context.Background(), actor)

	_, err := f.svc.Archive(ctx, ticket.ID)
	if !errors.Is(err, authorization.ErrForbidden) {
		t.Fatalf("got %v, want ErrForbidden", err)
	}
}

func TestAgentRestoresOwnArchive(t *testing.T) {
	f := setup(t)
	teamID := f.node.Generate()
	ticket := f.createTicket(t, f.node.Generate(), ticketdomain.StatusResolved)
	f.db.Model(ticket).Update("team_id", teamID)

	actor := tenantctx.Actor{ID: f.node.Generate(), Role: tenantctx.RoleAgent, TeamID: teamID}
	ctx := tenantctx.WithActor(context.Background(), actor)

	if _, err := f.svc.Archive(ctx, ticket.ID); err != nil {
		t.Fatalf("agent archive: %v", err)
	}
	restored, err := f.svc.Restore(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("agent who archived should restore: %v", err)
	}
	if restored.ArchivedAt != nil {
		t.Fatal("archived_at still set after restore")
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	f := setup(t)
	subID := f.node.Generate()
	ticket := f.createTicket(t, subID, ticketdomain.StatusResolved)
	ctx := adminCtx(f.node)

	if _, err := f.svc.Archive(ctx, ticket.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}
	f.clock.Advance(time.Hour)

	restored, err := f.svc.Restore(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.ArchivedAt != nil {
		t.Fatal("archived_at still set after restore")
	}

	events, err := f.eventLog.QueryRange(context.Background(), subID, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("query events: %v", err)
	}
	stats := projection.Project(subID, events)
	if stats.ArchivedCount != 0 {
		t.Fatalf("archived = %d after restore", stats.ArchivedCount)
	}
	if stats.CompletedCount != 1 {
		t.Fatalf("restored ticket not back in completed: %+v", stats)
	}
}

func TestRestoreUnarchivedTicket(t *testing.T) {
	f := setup(t)
	ticket := f.createTicket(t, f.node.Generate(), ticketdomain.StatusResolved)

	_, err := f.svc.Restore(adminCtx(f.node), ticket.ID)
	if !errors.Is(err, archivaldomain.ErrNotArchived) {
		t.Fatalf("got %v, want ErrNotArchived", err)
	}
}

func TestBulkArchivePartialFailure(t *testing.T) {
	f := setup(t)
	subID := f.node.Generate()
	a := f.createTicket(t, subID, ticketdomain.StatusResolved)
	b := f.createTicket(t, subID, ticketdomain.StatusOpen)
	c := f.createTicket(t, subID, ticketdomain.StatusResolved)
	ctx := adminCtx(f.node)

	result, err := f.svc.BulkArchive(ctx, []snowflake.ID{a.ID, b.ID, c.ID})
	if err != nil {
		t.Fatalf("bulk archive: %v", err)
	}
	if result.TotalProcessed != 3 {
		t.Fatalf("processed = %d, want 3", result.TotalProcessed)
	}
	if result.ArchivedCount != 2 || len(result.Successful) != 2 {
		t.Fatalf("archived = %d, want 2: %+v", result.ArchivedCount, result)
	}
	if len(result.Failed) != 1 || result.Failed[0].TicketID != b.ID {
		t.Fatalf("unexpected failures: %+v", result.Failed)
	}
	if result.Failed[0].Reason != "not_archivable" {
		t.Fatalf("reason = %q", result.Failed[0].Reason)
	}
}
