package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is the authenticated customer identity. Credentials and token issuance
// live in an external auth service; this row only anchors orders and carts.
type User struct {
	ID        int64     `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Product represents a product in the catalog
type Product struct {
	ID        int64           `db:"id" json:"id"`
	SKU       string          `db:"sku" json:"sku"`
	Name      string          `db:"name" json:"name"`
	Price     decimal.Decimal `db:"price" json:"price"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// Stock represents a product's available quantity. The quantity is kept
// non-negative by guarded decrements in the store layer.
type Stock struct {
	ProductID int64     `db:"product_id" json:"product_id"`
	Quantity  int       `db:"quantity" json:"quantity"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Order represents one checkout attempt and its eventual payment resolution.
// ExternalReference is assigned once at creation and shared with the payment
// processor; it is the key webhook notifications arrive under.
type Order struct {
	ID                int64           `db:"id" json:"id"`
	UserID            int64           `db:"user_id" json:"user_id"`
	TotalAmount       decimal.Decimal `db:"total_amount" json:"total_amount"`
	Status            string          `db:"status" json:"status"`
	ExternalReference string          `db:"external_reference" json:"external_reference"`
	PaymentType       string          `db:"payment_type" json:"payment_type,omitempty"`
	PaymentTxID       string          `db:"payment_tx_id" json:"payment_tx_id,omitempty"`
	PaidAt            *time.Time      `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// OrderItem is the write-once snapshot of one cart line taken at checkout
// time. Name and unit price are frozen here; later catalog changes never
// touch it.
type OrderItem struct {
	ID          int64           `db:"id" json:"id"`
	OrderID     int64           `db:"order_id" json:"order_id"`
	ProductID   int64           `db:"product_id" json:"product_id"`
	ProductName string          `db:"product_name" json:"product_name"`
	UnitPrice   decimal.Decimal `db:"unit_price" json:"unit_price"`
	Quantity    int             `db:"quantity" json:"quantity"`
}

// Subtotal is unit price times quantity, rounded to 2 decimals.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity))).Round(2)
}

// CartLine is one entry of a customer's working selection. Carts live in
// Redis and are cleared the moment checkout succeeds.
type CartLine struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// Order statuses. PENDING may move to exactly one of the terminal states;
// terminal states never change again.
const (
	OrderStatusPending   = "PENDING"
	OrderStatusCompleted = "COMPLETED"
	OrderStatusFailed    = "FAILED"
)

// IsTerminalStatus reports whether an order status admits no further transitions.
func IsTerminalStatus(status string) bool {
	return status == OrderStatusCompleted || status == OrderStatusFailed
}
