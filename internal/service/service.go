package service

import (
	"context"

	"github.com/utafrali/storefront/internal/auth"
	"github.com/utafrali/storefront/internal/domain"
)

// TokenIssuer signs tokens for a user.
type TokenIssuer interface {
	Issue(user *domain.User, kind auth.Kind) (string, error)
}

// UserEventPublisher emits account events.
type UserEventPublisher interface {
	PublishUserRegistered(ctx context.Context, u *domain.User) error
}

// OrderEventPublisher emits order lifecycle events.
type OrderEventPublisher interface {
	PublishOrderPlaced(ctx context.Context, o *domain.Order) error
	PublishOrderStatusChanged(ctx context.Context, o *domain.Order, from domain.OrderStatus) error
}
