// Package projection folds ordered usage events into ticket-state buckets.
// The fold is pure: the same event slice always produces the same stats, and
// no database access happens here.
package projection

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	usagedomain "github.com/smallbiznis/deskwise/internal/usage/domain"
)

type bucket int

const (
	bucketNone bucket = iota
	bucketActive
	bucketCompleted
	bucketArchived
)

// Project folds events, assumed ordered by occurred_at then id, into usage
// stats. A ticket's bucket is decided by its latest event: created puts it in
// active, completed in completed, archived in archived, deleted removes it,
// and restored re-buckets it by the status the ticket came back with.
func Project(subscriptionID snowflake.ID, events []usagedomain.UsageEvent) usagedomain.UsageStats {
	states := make(map[snowflake.ID]bucket)
	for _, event := range events {
		if subscriptionID != 0 && event.SubscriptionID != subscriptionID {
			continue
		}
		states[event.TicketID] = apply(states[event.TicketID], event)
	}

	stats := usagedomain.UsageStats{SubscriptionID: subscriptionID}
	for _, state := range states {
		switch state {
		case bucketActive:
			stats.ActiveCount++
		case bucketCompleted:
			stats.CompletedCount++
		case bucketArchived:
			stats.ArchivedCount++
		}
	}
	stats.TotalCount = stats.ActiveCount + stats.CompletedCount
	return stats
}

// ProjectWindow is Project restricted to events with occurred_at inside
// [start, end). Callers that already queried a bounded range can pass the
// zero window and get a plain Project.
func ProjectWindow(subscriptionID snowflake.ID, events []usagedomain.UsageEvent, window Window) usagedomain.UsageStats {
	if window.IsZero() {
		return Project(subscriptionID, events)
	}
	bounded := make([]usagedomain.UsageEvent, 0, len(events))
	for _, event := range events {
		if window.Contains(event.OccurredAt) {
			bounded = append(bounded, event)
		}
	}
	return Project(subscriptionID, bounded)
}

func apply(current bucket, event usagedomain.UsageEvent) bucket {
	switch strings.ToLower(event.Action) {
	case usagedomain.ActionCreated:
		return bucketActive
	case usagedomain.ActionCompleted:
		return bucketCompleted
	case usagedomain.ActionArchived:
		return bucketArchived
	case usagedomain.ActionDeleted:
		return bucketNone
	case usagedomain.ActionRestored:
		return restoredBucket(event)
	}
	return current
}

func restoredBucket(event usagedomain.UsageEvent) bucket {
	if event.NewStatus == nil {
		return bucketActive
	}
	switch strings.ToLower(*event.NewStatus) {
	case "resolved", "closed", "completed":
		return bucketCompleted
	}
	return bucketActive
}
