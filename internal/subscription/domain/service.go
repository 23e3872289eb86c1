package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrSubscriptionNotFound = errors.New("subscription_not_found")
)

// Service reads subscriptions and their ticket limits.
type Service interface {
	Get(ctx context.Context, id snowflake.ID) (*Subscription, error)
	List(ctx context.Context) ([]Subscription, error)
}
