package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/pagination"
)

// Client-facing order messages.
const (
	MsgAddressRequired    = "Shipping address is required"
	MsgNoProductsInCart   = "No products in cart"
	MsgNoOrder            = "No order exists"
	MsgAlreadyCancelled   = "Order already cancelled"
	MsgCancelAfterShip    = "Order cannot be cancelled after shipping"
	MsgInvalidStatus      = "status must be one of pending, shipped, delivered, cancelled"
	MsgStatusChangedUnder = "order status changed concurrently, please retry"
)

// DefaultEventTimeout bounds how long a stored order waits on event
// publishing before the response is written.
const DefaultEventTimeout = 5 * time.Second

// OrderMetrics holds the counters the order workflow reports.
type OrderMetrics struct {
	CartClearFailures prometheus.Counter
}

// NewOrderMetrics registers the order workflow metrics with reg.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	return &OrderMetrics{
		CartClearFailures: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "cart_clear_failures_total",
			Help: "Orders placed whose cart could not be cleared afterwards.",
		}),
	}
}

// OrderService converts carts into orders and drives the order lifecycle.
type OrderService struct {
	orders  repository.OrderRepository
	carts   repository.CartRepository
	events  OrderEventPublisher
	metrics *OrderMetrics
	logger  *slog.Logger

	eventTimeout time.Duration
}

// NewOrderService creates a new order service.
func NewOrderService(
	orders repository.OrderRepository,
	carts repository.CartRepository,
	events OrderEventPublisher,
	metrics *OrderMetrics,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		orders:       orders,
		carts:        carts,
		events:       events,
		metrics:      metrics,
		logger:       logger,
		eventTimeout: DefaultEventTimeout,
	}
}

// WithEventTimeout overrides DefaultEventTimeout.
func (s *OrderService) WithEventTimeout(d time.Duration) *OrderService {
	if d > 0 {
		s.eventTimeout = d
	}
	return s
}

// eventContext detaches ctx from request cancellation, since the order is
// already stored, and bounds the publish by eventTimeout.
func (s *OrderService) eventContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.eventTimeout)
}

// PlaceOrder snapshots the user's cart into a pending order and then clears
// the cart. The order is the source of truth: once it is stored the call
// succeeds even if the cart cannot be cleared.
func (s *OrderService) PlaceOrder(ctx context.Context, userID, shippingAddress string) (*domain.Order, error) {
	address := strings.TrimSpace(shippingAddress)
	if address == "" {
		return nil, apperrors.InvalidInput(MsgAddressRequired)
	}

	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound(MsgNoCart)
		}
		return nil, fmt.Errorf("place order: %w", err)
	}

	order, err := domain.NewOrder(uuid.New().String(), userID, address, cart.Snapshot())
	if err != nil {
		if errors.Is(err, domain.ErrEmptyOrder) {
			return nil, apperrors.InvalidInput(MsgNoProductsInCart)
		}
		return nil, fmt.Errorf("place order: %w", err)
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}

	// The order exists now; a client disconnect must not leave the cart full.
	s.clearCart(context.WithoutCancel(ctx), order)

	eventCtx, cancel := s.eventContext(ctx)
	defer cancel()
	if err := s.events.PublishOrderPlaced(eventCtx, order); err != nil {
		s.logger.WarnContext(ctx, "failed to publish order.placed event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order placed",
		slog.String("order_id", order.ID),
		slog.String("user_id", userID),
		slog.Int("items", len(order.Items)),
		slog.String("total_amount", order.TotalAmount.StringFixed(2)),
	)
	return order, nil
}

func (s *OrderService) clearCart(ctx context.Context, order *domain.Order) {
	_, err := s.carts.Update(ctx, order.UserID, func(c *domain.Cart) error {
		c.Clear()
		return nil
	})
	if err == nil {
		return
	}
	if s.metrics != nil {
		s.metrics.CartClearFailures.Inc()
	}
	s.logger.ErrorContext(ctx, "order placed but cart was not cleared",
		slog.String("order_id", order.ID),
		slog.String("user_id", order.UserID),
		slog.String("error", err.Error()),
	)
}

// ListOrders returns the user's orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, userID string, page pagination.Params) ([]domain.Order, int, error) {
	orders, total, err := s.orders.ListByUser(ctx, userID, page)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return orders, total, nil
}

// TrackOrder returns one of the user's orders. Orders owned by someone else
// are reported exactly like missing ones.
func (s *OrderService) TrackOrder(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	order, err := s.orders.GetForUser(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound(MsgNoOrder)
		}
		return nil, fmt.Errorf("track order: %w", err)
	}
	return order, nil
}

// CancelOrder moves a pending order of the user to cancelled.
func (s *OrderService) CancelOrder(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	ok, err := s.orders.TransitionStatus(ctx, orderID, userID, domain.OrderStatusPending, domain.OrderStatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("cancel order: %w", err)
	}

	order, err := s.TrackOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}

	if !ok {
		switch order.Status {
		case domain.OrderStatusCancelled:
			return nil, apperrors.InvalidTransition(MsgAlreadyCancelled)
		case domain.OrderStatusShipped, domain.OrderStatusDelivered:
			return nil, apperrors.InvalidTransition(MsgCancelAfterShip)
		default:
			// Still pending: another writer got between the update and the read.
			return nil, apperrors.Conflict(MsgStatusChangedUnder)
		}
	}

	s.publishStatusChange(ctx, order, domain.OrderStatusPending)
	s.logger.InfoContext(ctx, "order cancelled",
		slog.String("order_id", order.ID),
		slog.String("user_id", userID),
	)
	return order, nil
}

// UpdateStatus moves any order to target if the status machine allows it.
// It is reserved for administrators.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID string, target domain.OrderStatus) (*domain.Order, error) {
	if !target.IsValid() {
		return nil, apperrors.InvalidInput(MsgInvalidStatus)
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound(MsgNoOrder)
		}
		return nil, fmt.Errorf("update order status: %w", err)
	}

	from := order.Status
	if !order.CanTransitionTo(target) {
		return nil, apperrors.InvalidTransition(
			fmt.Sprintf("cannot transition order from %s to %s", from, target))
	}

	ok, err := s.orders.TransitionStatus(ctx, orderID, "", from, target)
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	if !ok {
		return nil, apperrors.Conflict(MsgStatusChangedUnder)
	}

	order, err = s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}

	s.publishStatusChange(ctx, order, from)
	s.logger.InfoContext(ctx, "order status updated",
		slog.String("order_id", order.ID),
		slog.String("from", string(from)),
		slog.String("to", string(order.Status)),
	)
	return order, nil
}

func (s *OrderService) publishStatusChange(ctx context.Context, order *domain.Order, from domain.OrderStatus) {
	eventCtx, cancel := s.eventContext(ctx)
	defer cancel()
	if err := s.events.PublishOrderStatusChanged(eventCtx, order, from); err != nil {
		s.logger.WarnContext(ctx, "failed to publish order.status_changed event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}
}
