package event

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/logger"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, topic string, event *pkgkafka.Event) error {
	return m.Called(ctx, topic, event).Error(0)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublishOrderPlaced(t *testing.T) {
	pub := &mockPublisher{}
	p := newProducer(pub, discard())

	order := &domain.Order{
		ID:          "order-1",
		UserID:      "user-1",
		Items:       []domain.LineItem{{ProductID: "p1", Name: "Mug", Quantity: 2, UnitPrice: decimal.NewFromInt(25)}},
		TotalAmount: decimal.NewFromInt(50),
		Status:      domain.OrderStatusPending,
	}

	var captured *pkgkafka.Event
	pub.On("Publish", mock.Anything, "storefront.order.placed", mock.AnythingOfType("*kafka.Event")).
		Run(func(args mock.Arguments) { captured = args.Get(2).(*pkgkafka.Event) }).
		Return(nil)

	ctx := logger.WithCorrelationID(context.Background(), "corr-9")
	require.NoError(t, p.PublishOrderPlaced(ctx, order))

	require.NotNil(t, captured)
	assert.Equal(t, "order.placed", captured.EventType)
	assert.Equal(t, "order-1", captured.AggregateID)
	assert.Equal(t, "corr-9", captured.CorrelationID)

	var data OrderPlacedData
	require.NoError(t, captured.UnmarshalData(&data))
	assert.Equal(t, "user-1", data.UserID)
	assert.True(t, data.TotalAmount.Equal(decimal.NewFromInt(50)))
	pub.AssertExpectations(t)
}

func TestPublishOrderStatusChanged(t *testing.T) {
	pub := &mockPublisher{}
	p := newProducer(pub, discard())

	var captured *pkgkafka.Event
	pub.On("Publish", mock.Anything, TopicOrderStatusChanged, mock.Anything).
		Run(func(args mock.Arguments) { captured = args.Get(2).(*pkgkafka.Event) }).
		Return(nil)

	order := &domain.Order{ID: "order-1", UserID: "user-1", Status: domain.OrderStatusCancelled}
	require.NoError(t, p.PublishOrderStatusChanged(context.Background(), order, domain.OrderStatusPending))

	var data OrderStatusChangedData
	require.NoError(t, captured.UnmarshalData(&data))
	assert.Equal(t, "pending", data.OldStatus)
	assert.Equal(t, "cancelled", data.NewStatus)
}

func TestPublishUserRegistered_PropagatesError(t *testing.T) {
	pub := &mockPublisher{}
	p := newProducer(pub, discard())

	pub.On("Publish", mock.Anything, TopicUserRegistered, mock.Anything).Return(pkgkafka.ErrCircuitOpen)

	err := p.PublishUserRegistered(context.Background(), &domain.User{ID: "u1", Email: "a@b.c"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, pkgkafka.ErrCircuitOpen))
	assert.Contains(t, err.Error(), "user.registered")
}
