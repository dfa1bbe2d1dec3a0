package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// Client-facing cart messages.
const (
	MsgNoCart            = "No cart exists"
	MsgProductNotInCart  = "Product not found in cart"
	MsgInvalidQuantity   = "quantity must be between 1 and 99"
	MsgInsufficientStock = "Not enough stock"
)

// CartService manages the authenticated user's cart.
type CartService struct {
	carts    repository.CartRepository
	products repository.ProductRepository
	logger   *slog.Logger
}

// NewCartService creates a new cart service.
func NewCartService(carts repository.CartRepository, products repository.ProductRepository, logger *slog.Logger) *CartService {
	return &CartService{carts: carts, products: products, logger: logger}
}

// Get returns the user's cart.
func (s *CartService) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound(MsgNoCart)
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return cart, nil
}

// AddItem adds qty units of a catalog product at its current price. The
// stock check is advisory; nothing is reserved.
func (s *CartService) AddItem(ctx context.Context, userID, productID string, qty int) (*domain.Cart, error) {
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound(MsgProductNotFound)
		}
		return nil, fmt.Errorf("add to cart: %w", err)
	}

	cart, err := s.carts.Update(ctx, userID, func(c *domain.Cart) error {
		if err := c.AddItem(product, qty); err != nil {
			return err
		}
		for _, it := range c.Items {
			if it.ProductID == product.ID && it.Quantity > product.Stock {
				return errInsufficientStock
			}
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidQuantity):
			return nil, apperrors.InvalidInput(MsgInvalidQuantity)
		case errors.Is(err, errInsufficientStock):
			return nil, apperrors.InvalidInput(MsgInsufficientStock)
		}
		return nil, fmt.Errorf("add to cart: %w", err)
	}

	s.logger.InfoContext(ctx, "cart item added",
		slog.String("user_id", userID),
		slog.String("product_id", productID),
		slog.Int("quantity", qty),
	)
	return cart, nil
}

var errInsufficientStock = errors.New("insufficient stock")

// RemoveItem drops a product line from the user's cart.
func (s *CartService) RemoveItem(ctx context.Context, userID, productID string) (*domain.Cart, error) {
	cart, err := s.carts.Update(ctx, userID, func(c *domain.Cart) error {
		return c.RemoveItem(productID)
	})
	if err != nil {
		if errors.Is(err, domain.ErrItemNotInCart) {
			return nil, apperrors.NotFound(MsgProductNotInCart)
		}
		return nil, fmt.Errorf("remove from cart: %w", err)
	}
	return cart, nil
}
