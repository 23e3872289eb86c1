package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/smallbiznis/deskwise/internal/subscription/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(db *gorm.DB, log *zap.Logger) subscriptiondomain.Service {
	return &Service{
		db:  db,
		log: log.Named("subscription.service"),
	}
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	if id == 0 {
		return nil, subscriptiondomain.ErrSubscriptionNotFound
	}
	var sub subscriptiondomain.Subscription
	err := s.db.WithContext(ctx).First(&sub, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, subscriptiondomain.ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func (s *Service) List(ctx context.Context) ([]subscriptiondomain.Subscription, error) {
	var subs []subscriptiondomain.Subscription
	err := s.db.WithContext(ctx).Order("id ASC").Find(&subs).Error
	if err != nil {
		return nil, err
	}
	return subs, nil
}
