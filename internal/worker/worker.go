// Package worker runs the pending-order sweeper: a background loop that
// resolves orders whose webhook the processor never delivered.
package worker

import (
	"context"
	"time"

	"github.com/yaffalhakim1/ecommerce-api/internal/gateway"
	"github.com/yaffalhakim1/ecommerce-api/internal/models"
	"github.com/yaffalhakim1/ecommerce-api/internal/service"
	"github.com/yaffalhakim1/ecommerce-api/internal/util"

	"go.uber.org/zap"
)

// SweeperStore lists orders stuck in PENDING.
type SweeperStore interface {
	ListStalePendingOrders(ctx context.Context, olderThan time.Duration, limit int) ([]models.Order, error)
}

// StatusQuerier asks the processor for the live status of a reference.
type StatusQuerier interface {
	GetStatus(ctx context.Context, reference string) (*gateway.Notification, error)
}

// Sweeper periodically queries the gateway for orders still PENDING past the
// payment timeout and feeds the answers through the same state machine the
// webhook path uses, so both paths share one idempotency guard.
type Sweeper struct {
	store     SweeperStore
	gateway   StatusQuerier
	lifecycle *service.OrderLifecycle
	interval  time.Duration
	olderThan time.Duration
	logger    *zap.Logger
}

const sweepBatchSize = 100

// NewSweeper creates a pending-order sweeper
func NewSweeper(store SweeperStore, gw StatusQuerier, lifecycle *service.OrderLifecycle, interval, olderThan time.Duration) *Sweeper {
	return &Sweeper{
		store:     store,
		gateway:   gw,
		lifecycle: lifecycle,
		interval:  interval,
		olderThan: olderThan,
		logger:    util.GetLogger(),
	}
}

// Start runs the sweep loop until the context is cancelled
func (w *Sweeper) Start(ctx context.Context) {
	w.logger.Info("Starting pending-order sweeper",
		zap.Duration("interval", w.interval),
		zap.Duration("older_than", w.olderThan))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Pending-order sweeper stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *Sweeper) sweep(ctx context.Context) {
	ctx, span := util.StartSpan(ctx, "Sweeper.sweep")
	defer span.End()

	orders, err := w.store.ListStalePendingOrders(ctx, w.olderThan, sweepBatchSize)
	if err != nil {
		w.logger.Error("Failed to list stale pending orders", zap.Error(err))
		return
	}
	if len(orders) == 0 {
		return
	}

	w.logger.Info("Sweeping stale pending orders", zap.Int("count", len(orders)))

	for i := range orders {
		order := orders[i]

		notif, err := w.gateway.GetStatus(ctx, order.ExternalReference)
		if err != nil {
			// Status unknown; the order keeps its last known local state
			// until the next sweep or a webhook resolves it.
			w.logger.Warn("Gateway status query failed during sweep",
				zap.Int64("order_id", order.ID),
				zap.Error(err))
			continue
		}

		if err := w.lifecycle.Apply(ctx, &order, notif); err != nil {
			w.logger.Error("Failed to apply swept status",
				zap.Int64("order_id", order.ID),
				zap.Error(err))
		}
	}
}
