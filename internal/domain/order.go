package domain

import (
	"errors"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is a state of the order lifecycle.
type OrderStatus string

// Order statuses. Delivered and cancelled are terminal.
const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var ErrEmptyOrder = errors.New("order must contain at least one item")

var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:   {OrderStatusDelivered},
	OrderStatusDelivered: {},
	OrderStatusCancelled: {},
}

// IsValid reports whether s is a known status.
func (s OrderStatus) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransitionTo reports whether an order in status s may move to target.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	return slices.Contains(transitions[s], target)
}

// IsTerminal reports whether no transition leaves s.
func (s OrderStatus) IsTerminal() bool {
	return s.IsValid() && len(transitions[s]) == 0
}

// Order is an immutable snapshot of a cart at placement time. Only Status
// and UpdatedAt change afterwards.
type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	Items           []LineItem      `json:"items"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	ShippingAddress string          `json:"shippingAddress"`
	Status          OrderStatus     `json:"status"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// NewOrder builds a pending order from a cart snapshot. The total is copied,
// not recomputed.
func NewOrder(id, userID, shippingAddress string, snap CartSnapshot) (*Order, error) {
	if len(snap.Items) == 0 {
		return nil, ErrEmptyOrder
	}
	now := time.Now().UTC()
	return &Order{
		ID:              id,
		UserID:          userID,
		Items:           slices.Clone(snap.Items),
		TotalAmount:     snap.TotalAmount,
		ShippingAddress: shippingAddress,
		Status:          OrderStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// CanTransitionTo checks if the order can move to the target status.
func (o *Order) CanTransitionTo(target OrderStatus) bool {
	return o.Status.CanTransitionTo(target)
}
