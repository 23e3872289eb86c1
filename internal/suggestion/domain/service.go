// Package domain defines archival suggestions derived from usage pressure
// and ticket age.
package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// Suggestion reasons shown to operators. The wording is part of the API
// surface; clients match on it.
const (
	ReasonCompletedOverThirtyDays = "Completed over 30 days ago"
	ReasonApproachingLimit        = "Approaching completed ticket limit"
)

// Suggestion proposes one ticket for archival.
type Suggestion struct {
	TicketID            snowflake.ID `json:"ticket_id"`
	Subject             string       `json:"subject"`
	Status              string       `json:"status"`
	DaysSinceCompletion int          `json:"days_since_completion"`
	Reason              string       `json:"reason"`
}

// Service computes archival suggestions for the actor's visible tickets,
// ordered oldest completion first. Suggestions appear only once the
// subscription's completed usage is under limit pressure; limit caps the
// number of candidates scanned.
type Service interface {
	Suggest(ctx context.Context, subscriptionID snowflake.ID, limit int) ([]Suggestion, error)
}
