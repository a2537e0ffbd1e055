package service

import (
	"context"
	"errors"

	"github.com/yaffalhakim1/ecommerce-api/internal/apperr"
	"github.com/yaffalhakim1/ecommerce-api/internal/gateway"
	"github.com/yaffalhakim1/ecommerce-api/internal/models"
	"github.com/yaffalhakim1/ecommerce-api/internal/util"

	"go.uber.org/zap"
)

// ReconcilerStore looks up orders by their external payment reference.
type ReconcilerStore interface {
	GetOrderByReference(ctx context.Context, reference string) (*models.Order, error)
}

// Reconciler authenticates inbound payment notifications and applies them to
// the order state machine. It never mutates anything before the signature
// check passes, and surfaces storage failures so the processor retries.
type Reconciler struct {
	store     ReconcilerStore
	lifecycle *OrderLifecycle
	serverKey string
	logger    *zap.Logger
}

// NewReconciler creates a new webhook reconciler
func NewReconciler(store ReconcilerStore, lifecycle *OrderLifecycle, serverKey string) *Reconciler {
	return &Reconciler{
		store:     store,
		lifecycle: lifecycle,
		serverKey: serverKey,
		logger:    util.GetLogger(),
	}
}

// HandleNotification processes one untrusted notification payload end to end.
func (r *Reconciler) HandleNotification(ctx context.Context, notif *gateway.Notification) error {
	ctx, span := util.StartSpan(ctx, "Reconciler.HandleNotification")
	defer span.End()

	if !notif.VerifySignature(r.serverKey) {
		util.WebhookNotificationsTotal.WithLabelValues("bad_signature").Inc()
		r.logger.Warn("Webhook signature mismatch",
			zap.String("reference", notif.OrderID))
		return apperr.Unauthorized("invalid notification signature")
	}

	order, err := r.store.GetOrderByReference(ctx, notif.OrderID)
	if err != nil {
		if errors.Is(err, apperr.NotFound("order")) {
			// A notification for an unknown order is not actionable; the
			// processor should not keep retrying it.
			util.WebhookNotificationsTotal.WithLabelValues("unknown_reference").Inc()
			r.logger.Warn("Notification for unknown order reference",
				zap.String("reference", notif.OrderID))
			return err
		}
		util.WebhookNotificationsTotal.WithLabelValues("storage_error").Inc()
		return apperr.Internal(err)
	}

	if err := r.lifecycle.Apply(ctx, order, notif); err != nil {
		// Surfaced as a 5xx so the processor resends; Apply is safe to retry.
		util.WebhookNotificationsTotal.WithLabelValues("apply_error").Inc()
		return apperr.Internal(err)
	}

	util.WebhookNotificationsTotal.WithLabelValues("ok").Inc()
	return nil
}
