package repository

import (
	"context"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/pagination"
)

// UserRepository persists accounts.
type UserRepository interface {
	// Create inserts a user. A duplicate email yields an AlreadyExists error.
	Create(ctx context.Context, user *domain.User) error

	// GetByEmail looks a user up by normalized email.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// GetByID retrieves a user by id.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// UpdatePassword replaces the stored password hash.
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// ProductRepository persists the catalog.
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id string) error

	// Search returns products matching filter with the total match count.
	// An empty filter lists the whole catalog.
	Search(ctx context.Context, filter domain.ProductFilter, page pagination.Params) ([]domain.Product, int, error)
}

// CartRepository stores one cart per user.
type CartRepository interface {
	// Get returns the user's cart or a NotFound error when none exists.
	Get(ctx context.Context, userID string) (*domain.Cart, error)

	// Save overwrites the user's cart.
	Save(ctx context.Context, cart *domain.Cart) error

	// Delete removes the user's cart.
	Delete(ctx context.Context, userID string) error

	// Update applies fn to the user's cart, creating an empty one when none
	// exists, and stores the result atomically.
	Update(ctx context.Context, userID string, fn func(*domain.Cart) error) (*domain.Cart, error)
}

// OrderRepository persists orders and their line items.
type OrderRepository interface {
	// Create inserts the order and its items in one transaction.
	Create(ctx context.Context, order *domain.Order) error

	// GetByID retrieves any order by id.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// GetForUser retrieves the order only when userID owns it. Foreign and
	// absent orders are indistinguishable.
	GetForUser(ctx context.Context, id, userID string) (*domain.Order, error)

	// ListByUser returns the user's orders, newest first, with the total
	// count.
	ListByUser(ctx context.Context, userID string, page pagination.Params) ([]domain.Order, int, error)

	// TransitionStatus moves the order from one status to another in a
	// single conditional update. It reports false when no row matched, that
	// is when the order is absent, not owned by userID, or not in from.
	// An empty userID skips the ownership predicate.
	TransitionStatus(ctx context.Context, id, userID string, from, to domain.OrderStatus) (bool, error)
}
