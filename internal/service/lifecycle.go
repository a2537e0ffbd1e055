package service

import (
	"context"
	"time"

	"github.com/yaffalhakim1/ecommerce-api/internal/gateway"
	"github.com/yaffalhakim1/ecommerce-api/internal/models"
	"github.com/yaffalhakim1/ecommerce-api/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LifecycleStore provides the guarded order transitions. Both methods report
// whether a transition happened, so applying the same terminal notification
// twice is observable as a no-op.
type LifecycleStore interface {
	CompleteOrder(ctx context.Context, orderID int64, paymentType, paymentTxID string) (bool, error)
	FailOrderAndRelease(ctx context.Context, orderID int64) (bool, error)
}

// OrderLifecycle is the order state machine: it maps authenticated processor
// statuses onto the PENDING → COMPLETED | FAILED transitions and fires each
// side effect exactly once.
type OrderLifecycle struct {
	store  LifecycleStore
	events Publisher
	logger *zap.Logger
}

// NewOrderLifecycle creates the order state machine
func NewOrderLifecycle(store LifecycleStore, events Publisher) *OrderLifecycle {
	return &OrderLifecycle{
		store:  store,
		events: events,
		logger: util.GetLogger(),
	}
}

// Apply feeds one processor status into the state machine. The notification
// must already be authenticated; Apply trusts it. Non-terminal and
// unrecognized statuses leave the order PENDING.
func (l *OrderLifecycle) Apply(ctx context.Context, order *models.Order, notif *gateway.Notification) error {
	ctx, span := util.StartSpan(ctx, "OrderLifecycle.Apply")
	defer span.End()

	class := notif.Class()

	switch class {
	case gateway.ClassSettled:
		return l.complete(ctx, order, notif)

	case gateway.ClassFailed:
		return l.fail(ctx, order, notif)

	case gateway.ClassPending, gateway.ClassChallenge:
		l.logger.Info("Order stays pending",
			zap.Int64("order_id", order.ID),
			zap.String("class", class.String()),
			zap.String("transaction_status", notif.TransactionStatus))
		return nil

	default:
		l.logger.Warn("Unrecognized processor status, leaving order pending",
			zap.Int64("order_id", order.ID),
			zap.String("transaction_status", notif.TransactionStatus),
			zap.String("fraud_status", notif.FraudStatus))
		return nil
	}
}

func (l *OrderLifecycle) complete(ctx context.Context, order *models.Order, notif *gateway.Notification) error {
	transitioned, err := l.store.CompleteOrder(ctx, order.ID, notif.PaymentType, notif.TransactionID)
	if err != nil {
		return err
	}
	if !transitioned {
		l.logger.Info("Order already terminal, settlement is a no-op",
			zap.Int64("order_id", order.ID),
			zap.String("status", order.Status))
		return nil
	}

	util.OrdersCompletedTotal.Inc()
	l.logger.Info("Order completed",
		zap.Int64("order_id", order.ID),
		zap.String("tx_id", notif.TransactionID))

	event := &models.OrderCompletedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCompleted,
			Timestamp: time.Now(),
		},
		OrderID:           order.ID,
		ExternalReference: order.ExternalReference,
		PaymentTxID:       notif.TransactionID,
	}
	if err := l.events.PublishOrderCompleted(ctx, event); err != nil {
		l.logger.Error("Failed to publish OrderCompleted event", zap.Error(err))
	}
	return nil
}

func (l *OrderLifecycle) fail(ctx context.Context, order *models.Order, notif *gateway.Notification) error {
	transitioned, err := l.store.FailOrderAndRelease(ctx, order.ID)
	if err != nil {
		return err
	}
	if !transitioned {
		l.logger.Info("Order already terminal, failure is a no-op",
			zap.Int64("order_id", order.ID),
			zap.String("status", order.Status))
		return nil
	}

	util.OrdersFailedTotal.WithLabelValues(notif.TransactionStatus).Inc()
	util.StockReleasedTotal.Inc()
	l.logger.Warn("Order failed, stock released",
		zap.Int64("order_id", order.ID),
		zap.String("transaction_status", notif.TransactionStatus))

	event := &models.OrderFailedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderFailed,
			Timestamp: time.Now(),
		},
		OrderID:           order.ID,
		ExternalReference: order.ExternalReference,
		Reason:            notif.TransactionStatus,
	}
	if err := l.events.PublishOrderFailed(ctx, event); err != nil {
		l.logger.Error("Failed to publish OrderFailed event", zap.Error(err))
	}
	return nil
}
