package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderCreated   = "ORDER_CREATED"
	EventTypeOrderCompleted = "ORDER_COMPLETED"
	EventTypeOrderFailed    = "ORDER_FAILED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published when checkout commits a pending order
type OrderCreatedEvent struct {
	BaseEvent
	OrderID           int64           `json:"order_id"`
	UserID            int64           `json:"user_id"`
	ExternalReference string          `json:"external_reference"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	Items             []OrderItemData `json:"items"`
}

// OrderCompletedEvent published when reconciliation confirms payment
type OrderCompletedEvent struct {
	BaseEvent
	OrderID           int64  `json:"order_id"`
	ExternalReference string `json:"external_reference"`
	PaymentTxID       string `json:"payment_tx_id"`
}

// OrderFailedEvent published when an order reaches FAILED and stock is returned
type OrderFailedEvent struct {
	BaseEvent
	OrderID           int64  `json:"order_id"`
	ExternalReference string `json:"external_reference"`
	Reason            string `json:"reason"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}
