package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	subscriptiondomain "github.com/smallbiznis/deskwise/internal/subscription/domain"
	subscriptionservice "github.com/smallbiznis/deskwise/internal/subscription/service"
	usagedomain "github.com/smallbiznis/deskwise/internal/usage/domain"
	usagerepository "github.com/smallbiznis/deskwise/internal/usage/repository"
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

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&usagedomain.UsageEvent{}, &subscriptiondomain.Subscription{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func setupUsageService(t *testing.T, node *snowflake.Node) (usagedomain.Service, usagedomain.EventLog, *gorm.DB) {
	t.Helper()
	db := openTestDB(t)
	eventLog := usagerepository.Provide(db, node)
	svc := NewService(ServiceParam{
		Log:      zap.NewNop(),
		EventLog: eventLog,
		SubSvc:   subscriptionservice.NewService(db, zap.NewNop()),
	})
	return svc, eventLog, db
}

func appendEvent(t *testing.T, log usagedomain.EventLog, subID, ticketID snowflake.ID, action string, at time.Time) {
	t.Helper()
	_, err := log.Append(context.Background(), usagedomain.AppendEventRequest{
		SubscriptionID: subID,
		TicketID:       ticketID,
		Action:         action,
		OccurredAt:     at,
	})
	if err != nil {
		t.Fatalf("append %s: %v", action, err)
	}
}

func TestCurrentStatsFoldsFullHistory(t *testing.T) {
	node := mustNode(t)
	svc, eventLog, _ := setupUsageService(t, node)
	subID := node.Generate()

	base := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	active := node.Generate()
	completed := node.Generate()
	archived := node.Generate()

	appendEvent(t, eventLog, subID, active, usagedomain.ActionCreated, base)
	appendEvent(t, eventLog, subID, completed, usagedomain.ActionCreated, base.Add(time.Minute))
	appendEvent(t, eventLog, subID, completed, usagedomain.ActionCompleted, base.Add(2*time.Minute))
	appendEvent(t, eventLog, subID, archived, usagedomain.ActionCreated, base.Add(3*time.Minute))
	appendEvent(t, eventLog, subID, archived, usagedomain.ActionCompleted, base.Add(4*time.Minute))
	appendEvent(t, eventLog, subID, archived, usagedomain.ActionArchived, base.Add(5*time.Minute))

	stats, err := svc.CurrentStats(context.Background(), subID)
	if err != nil {
		t.Fatalf("current stats: %v", err)
	}
	if stats.ActiveCount != 1 || stats.CompletedCount != 1 || stats.ArchivedCount != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.TotalCount != 2 {
		t.Fatalf("total = %d, want active+completed", stats.TotalCount)
	}
}

func TestPeriodStatsBoundsToMonth(t *testing.T) {
	node := mustNode(t)
	svc, eventLog, _ := setupUsageService(t, node)
	subID := node.Generate()

	inMonth := node.Generate()
	nextMonth := node.Generate()
	appendEvent(t, eventLog, subID, inMonth, usagedomain.ActionCreated, time.Date(2026, 5, 15, 8, 0, 0, 0, time.UTC))
	appendEvent(t, eventLog, subID, nextMonth, usagedomain.ActionCreated, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))

	stats, err := svc.PeriodStats(context.Background(), subID, "2026-05")
	if err != nil {
		t.Fatalf("period stats: %v", err)
	}
	if stats.ActiveCount != 1 {
		t.Fatalf("active = %d, want only the May event", stats.ActiveCount)
	}
}

func TestPeriodStatsRejectsBadPeriod(t *testing.T) {
	node := mustNode(t)
	svc, _, _ := setupUsageService(t, node)

	for _, period := range []string{"", "2026", "2026-13", "05-2026", "2026-5"} {
		_, err := svc.PeriodStats(context.Background(), node.Generate(), period)
		if !errors.Is(err, usagedomain.ErrInvalidPeriod) {
			t.Fatalf("period %q: got %v, want ErrInvalidPeriod", period, err)
		}
	}
}

func TestCompletedUsagePercentage(t *testing.T) {
	node := mustNode(t)
	svc, eventLog, db := setupUsageService(t, node)
	subID := node.Generate()

	sub := subscriptiondomain.Subscription{
		ID:                   subID,
		Name:                 "acme",
		PlanCode:             "pro",
		CompletedTicketLimit: 4,
		ActiveTicketLimit:    -1,
		TotalTicketLimit:     -1,
	}
	if err := db.Create(&sub).Error; err != nil {
		t.Fatalf("create subscription: %v", err)
	}

	base := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		ticketID := node.Generate()
		appendEvent(t, eventLog, subID, ticketID, usagedomain.ActionCreated, base.Add(time.Duration(i)*time.Minute))
		appendEvent(t, eventLog, subID, ticketID, usagedomain.ActionCompleted, base.Add(time.Duration(i)*time.Minute+time.Second))
	}

	usage, err := svc.CompletedUsage(context.Background(), subID)
	if err != nil {
		t.Fatalf("completed usage: %v", err)
	}
	if usage.CompletedCount != 3 || usage.Limit != 4 || usage.Unlimited {
		t.Fatalf("unexpected usage: %+v", usage)
	}
	if usage.Percentage != 75 {
		t.Fatalf("percentage = %v, want 75", usage.Percentage)
	}
}

func TestCompletedUsageUnlimited(t *testing.T) {
	node := mustNode(t)
	svc, eventLog, db := setupUsageService(t, node)
	subID := node.Generate()

	sub := subscriptiondomain.Subscription{
		ID:                   subID,
		Name:                 "free",
		PlanCode:             "free",
		CompletedTicketLimit: subscriptiondomain.UnlimitedLimit,
	}
	if err := db.Create(&sub).Error; err != nil {
		t.Fatalf("create subscription: %v", err)
	}

	ticketID := node.Generate()
	at := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	appendEvent(t, eventLog, subID, ticketID, usagedomain.ActionCreated, at)
	appendEvent(t, eventLog, subID, ticketID, usagedomain.ActionCompleted, at.Add(time.Second))

	usage, err := svc.CompletedUsage(context.Background(), subID)
	if err != nil {
		t.Fatalf("completed usage: %v", err)
	}
	if !usage.Unlimited {
		t.Fatal("expected unlimited plan")
	}
	if usage.Percentage != 0 {
		t.Fatalf("percentage = %v, want 0 for unlimited", usage.Percentage)
	}
}

func TestPurgeRemovesTicketFromProjection(t *testing.T) {
	node := mustNode(t)
	svc, eventLog, _ := setupUsageService(t, node)
	subID := node.Generate()
	ticketID := node.Generate()

	at := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	appendEvent(t, eventLog, subID, ticketID, usagedomain.ActionCreated, at)
	appendEvent(t, eventLog, subID, ticketID, usagedomain.ActionCompleted, at.Add(time.Second))

	removed, err := eventLog.Purge(context.Background(), ticketID)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}

	stats, err := svc.CurrentStats(context.Background(), subID)
	if err != nil {
		t.Fatalf("current stats: %v", err)
	}
	if stats.TotalCount != 0 || stats.ArchivedCount != 0 {
		t.Fatalf("purged ticket still projected: %+v", stats)
	}
}
