package service

import (
	"context"
	"fmt"
	"time"

	"github.com/yaffalhakim1/ecommerce-api/internal/apperr"
	"github.com/yaffalhakim1/ecommerce-api/internal/gateway"
	"github.com/yaffalhakim1/ecommerce-api/internal/models"
	"github.com/yaffalhakim1/ecommerce-api/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CheckoutStore is the slice of the store the orchestrator needs.
type CheckoutStore interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	CreatePendingOrder(ctx context.Context, userID int64, reference string, lines []models.CartLine) (*models.Order, []models.OrderItem, error)
	CancelPendingOrder(ctx context.Context, orderID int64) error
}

// CartStore reads and clears the customer's working selection.
type CartStore interface {
	Get(ctx context.Context, userID int64) ([]models.CartLine, error)
	Clear(ctx context.Context, userID int64) error
}

// SessionCreator opens a payment session at the external processor.
type SessionCreator interface {
	CreateSession(ctx context.Context, reference string, amount decimal.Decimal, items []models.OrderItem, customer gateway.Customer) (*gateway.Session, error)
}

// Publisher emits order lifecycle events. Implementations are best-effort.
type Publisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) error
	PublishOrderFailed(ctx context.Context, event *models.OrderFailedEvent) error
}

// CheckoutService converts a cart into a paid-for pending order. The local
// write commits first; the gateway call never holds a database row lock, and
// a gateway failure after retries triggers a compensating rollback instead.
type CheckoutService struct {
	store   CheckoutStore
	carts   CartStore
	gateway SessionCreator
	events  Publisher
	logger  *zap.Logger
}

// NewCheckoutService creates a new checkout orchestrator
func NewCheckoutService(store CheckoutStore, carts CartStore, gw SessionCreator, events Publisher) *CheckoutService {
	return &CheckoutService{
		store:   store,
		carts:   carts,
		gateway: gw,
		events:  events,
		logger:  util.GetLogger(),
	}
}

// CheckoutResponse is returned to the customer on success
type CheckoutResponse struct {
	OrderID           int64           `json:"order_id"`
	ExternalReference string          `json:"external_reference"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	PaymentToken      string          `json:"payment_token"`
	RedirectURL       string          `json:"redirect_url"`
}

// Checkout runs the full orchestration for one customer. On any failure the
// cart stays intact; it is cleared only after the gateway session exists.
func (s *CheckoutService) Checkout(ctx context.Context, userID int64) (*CheckoutResponse, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.Checkout")
	defer span.End()

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		util.CheckoutsFailedTotal.WithLabelValues("user_not_found").Inc()
		return nil, err
	}

	lines, err := s.carts.Get(ctx, userID)
	if err != nil {
		util.CheckoutsFailedTotal.WithLabelValues("cart_error").Inc()
		return nil, apperr.Internal(err)
	}
	if len(lines) == 0 {
		util.CheckoutsFailedTotal.WithLabelValues("empty_cart").Inc()
		return nil, apperr.ErrEmptyCart
	}
	for _, line := range lines {
		if line.Quantity < 1 {
			util.CheckoutsFailedTotal.WithLabelValues("invalid_quantity").Inc()
			return nil, apperr.Validation(fmt.Sprintf("invalid quantity for product %d", line.ProductID))
		}
	}

	reference := newReference()

	order, items, err := s.store.CreatePendingOrder(ctx, userID, reference, lines)
	if err != nil {
		util.CheckoutsFailedTotal.WithLabelValues("reservation_failed").Inc()
		util.StockReservationsFailed.WithLabelValues("checkout").Inc()
		return nil, err
	}

	s.logger.Info("Pending order created",
		zap.Int64("order_id", order.ID),
		zap.String("reference", reference),
		zap.String("total", order.TotalAmount.StringFixed(2)))

	session, err := s.gateway.CreateSession(ctx, reference, order.TotalAmount, items, gateway.Customer{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
	})
	if err != nil {
		s.compensate(order.ID, reference)
		util.CheckoutsFailedTotal.WithLabelValues("gateway").Inc()
		return nil, err
	}

	if err := s.carts.Clear(ctx, userID); err != nil {
		s.logger.Error("Failed to clear cart after checkout",
			zap.Int64("user_id", userID),
			zap.Error(err))
	}

	s.publishCreated(ctx, order, items)
	util.CheckoutsTotal.Inc()

	return &CheckoutResponse{
		OrderID:           order.ID,
		ExternalReference: reference,
		TotalAmount:       order.TotalAmount,
		PaymentToken:      session.Token,
		RedirectURL:       session.RedirectURL,
	}, nil
}

// compensate undoes the committed reservation and order row. It runs on a
// detached context because the original request may already be cancelled by
// the same gateway timeout that brought us here.
func (s *CheckoutService) compensate(orderID int64, reference string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.store.CancelPendingOrder(ctx, orderID); err != nil {
		s.logger.Error("Compensating rollback failed",
			zap.Int64("order_id", orderID),
			zap.String("reference", reference),
			zap.Error(err))
		return
	}

	s.logger.Warn("Checkout rolled back after gateway failure",
		zap.Int64("order_id", orderID),
		zap.String("reference", reference))
}

func (s *CheckoutService) publishCreated(ctx context.Context, order *models.Order, items []models.OrderItem) {
	eventItems := make([]models.OrderItemData, 0, len(items))
	for _, item := range items {
		eventItems = append(eventItems, models.OrderItemData{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	event := &models.OrderCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCreated,
			Timestamp: time.Now(),
		},
		OrderID:           order.ID,
		UserID:            order.UserID,
		ExternalReference: order.ExternalReference,
		TotalAmount:       order.TotalAmount,
		Items:             eventItems,
	}

	if err := s.events.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}
}

// newReference builds the external payment reference: a timestamp component
// keeps it sortable, the uuid component keeps it collision-resistant. The
// orders table enforces uniqueness.
func newReference() string {
	return fmt.Sprintf("ORD-%d-%s", time.Now().UnixNano(), uuid.New().String()[:8])
}
