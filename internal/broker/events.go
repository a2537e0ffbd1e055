package broker

import (
	"context"
	"fmt"

	"github.com/yaffalhakim1/ecommerce-api/internal/models"
)

// EventPublisher publishes order lifecycle events for downstream consumers
// (notifications, analytics). Publishing is best-effort: a broker outage must
// never fail a checkout or a reconciliation.
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishOrderCreated publishes OrderCreated event
func (ep *EventPublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	return ep.publish(ctx, event.OrderID, event)
}

// PublishOrderCompleted publishes OrderCompleted event
func (ep *EventPublisher) PublishOrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) error {
	return ep.publish(ctx, event.OrderID, event)
}

// PublishOrderFailed publishes OrderFailed event
func (ep *EventPublisher) PublishOrderFailed(ctx context.Context, event *models.OrderFailedEvent) error {
	return ep.publish(ctx, event.OrderID, event)
}

func (ep *EventPublisher) publish(ctx context.Context, orderID int64, event interface{}) error {
	key := fmt.Sprintf("order-%d", orderID)
	return ep.producer.PublishEvent(ctx, key, event)
}
