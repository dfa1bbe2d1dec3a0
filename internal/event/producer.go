package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/utafrali/storefront/internal/domain"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/logger"
)

// Source identifies events emitted by this service.
const Source = "storefront"

// Aggregate types.
const (
	AggregateOrder = "order"
	AggregateUser  = "user"
)

// Topics.
var (
	TopicOrderPlaced        = pkgkafka.Topic(AggregateOrder, "placed")
	TopicOrderStatusChanged = pkgkafka.Topic(AggregateOrder, "status_changed")
	TopicUserRegistered     = pkgkafka.Topic(AggregateUser, "registered")
)

// OrderPlacedData is the payload of order.placed.
type OrderPlacedData struct {
	OrderID     string            `json:"order_id"`
	UserID      string            `json:"user_id"`
	Items       []domain.LineItem `json:"items"`
	TotalAmount decimal.Decimal   `json:"total_amount"`
}

// OrderStatusChangedData is the payload of order.status_changed.
type OrderStatusChangedData struct {
	OrderID   string `json:"order_id"`
	UserID    string `json:"user_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

// UserRegisteredData is the payload of user.registered.
type UserRegisteredData struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

type publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes storefront domain events to Kafka.
type Producer struct {
	kafka publisher
	log   *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka *pkgkafka.Producer, log *slog.Logger) *Producer {
	return newProducer(kafka, log)
}

func newProducer(kafka publisher, log *slog.Logger) *Producer {
	return &Producer{kafka: kafka, log: log}
}

// PublishOrderPlaced publishes order.placed with the order's line items.
func (p *Producer) PublishOrderPlaced(ctx context.Context, o *domain.Order) error {
	return p.publish(ctx, TopicOrderPlaced, "order.placed", o.ID, AggregateOrder, OrderPlacedData{
		OrderID:     o.ID,
		UserID:      o.UserID,
		Items:       o.Items,
		TotalAmount: o.TotalAmount,
	})
}

// PublishOrderStatusChanged publishes order.status_changed.
func (p *Producer) PublishOrderStatusChanged(ctx context.Context, o *domain.Order, from domain.OrderStatus) error {
	return p.publish(ctx, TopicOrderStatusChanged, "order.status_changed", o.ID, AggregateOrder, OrderStatusChangedData{
		OrderID:   o.ID,
		UserID:    o.UserID,
		OldStatus: string(from),
		NewStatus: string(o.Status),
	})
}

// PublishUserRegistered publishes user.registered.
func (p *Producer) PublishUserRegistered(ctx context.Context, u *domain.User) error {
	return p.publish(ctx, TopicUserRegistered, "user.registered", u.ID, AggregateUser, UserRegisteredData{
		UserID: u.ID,
		Email:  u.Email,
		Name:   u.Name,
	})
}

func (p *Producer) publish(ctx context.Context, topic, eventType, aggregateID, aggregateType string, data any) error {
	evt, err := pkgkafka.NewEvent(eventType, aggregateID, aggregateType, Source, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", eventType, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		evt.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}

	p.log.DebugContext(ctx, "domain event published",
		slog.String("event_type", eventType),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}
