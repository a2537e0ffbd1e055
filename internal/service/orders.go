package service

import (
	"context"

	"github.com/yaffalhakim1/ecommerce-api/internal/apperr"
	"github.com/yaffalhakim1/ecommerce-api/internal/gateway"
	"github.com/yaffalhakim1/ecommerce-api/internal/models"
	"github.com/yaffalhakim1/ecommerce-api/internal/util"

	"go.uber.org/zap"
)

// OrderReadStore is the read side of the orders table.
type OrderReadStore interface {
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error)
}

// StatusQuerier asks the processor for the live status of a reference.
type StatusQuerier interface {
	GetStatus(ctx context.Context, reference string) (*gateway.Notification, error)
}

// OrderService serves customer-facing order reads, enriched with the
// processor's live status when it is reachable.
type OrderService struct {
	store   OrderReadStore
	gateway StatusQuerier
	logger  *zap.Logger
}

// NewOrderService creates a new order read service
func NewOrderService(store OrderReadStore, gw StatusQuerier) *OrderService {
	return &OrderService{
		store:   store,
		gateway: gw,
		logger:  util.GetLogger(),
	}
}

// OrderDetail is one order with its snapshot and, when available, the
// processor-side status. Warning is set instead of failing the read when the
// live status query fails.
type OrderDetail struct {
	Order         *models.Order      `json:"order"`
	Items         []models.OrderItem `json:"items"`
	GatewayStatus string             `json:"gateway_status,omitempty"`
	Warning       string             `json:"warning,omitempty"`
}

// ListOrders returns the customer's orders, newest first
func (s *OrderService) ListOrders(ctx context.Context, userID int64) ([]models.Order, error) {
	return s.store.GetOrdersByUserID(ctx, userID)
}

// GetOrder returns one of the customer's orders with its line-item snapshot.
// Another customer's order is reported as not found rather than forbidden.
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID int64) (*OrderDetail, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, apperr.NotFound("order")
	}

	items, err := s.store.GetOrderItems(ctx, orderID)
	if err != nil {
		return nil, err
	}

	detail := &OrderDetail{Order: order, Items: items}

	notif, err := s.gateway.GetStatus(ctx, order.ExternalReference)
	if err != nil {
		s.logger.Warn("Live gateway status unavailable",
			zap.Int64("order_id", orderID),
			zap.Error(err))
		detail.Warning = "live payment status unavailable, showing last known local status"
		return detail, nil
	}

	detail.GatewayStatus = notif.TransactionStatus
	return detail, nil
}
