package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/yaffalhakim1/ecommerce-api/internal/models"

	"github.com/jmoiron/sqlx"
)

// ErrInsufficientStock is returned by Reserve when the available quantity is
// below the requested one. Callers translate it into a customer-facing error
// that names the product.
var ErrInsufficientStock = errors.New("insufficient stock")

// Reserve decrements stock by quantity inside the caller's transaction. The
// row is locked first so two concurrent checkouts cannot both decrement from
// the same stale read.
func (s *Store) Reserve(ctx context.Context, tx *sqlx.Tx, productID int64, quantity int) error {
	var available int
	err := tx.GetContext(ctx, &available,
		"SELECT quantity FROM stock WHERE product_id = $1 FOR UPDATE", productID)
	if err != nil {
		return fmt.Errorf("failed to lock stock row for product %d: %w", productID, err)
	}

	if available < quantity {
		return fmt.Errorf("product %d: available=%d, requested=%d: %w",
			productID, available, quantity, ErrInsufficientStock)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE stock SET quantity = quantity - $1, updated_at = NOW() WHERE product_id = $2",
		quantity, productID)
	if err != nil {
		return fmt.Errorf("failed to reserve stock for product %d: %w", productID, err)
	}

	return nil
}

// Release increments stock by quantity inside the caller's transaction. Used
// only on rollback paths; the order transition guard ensures it runs at most
// once per failed order.
func (s *Store) Release(ctx context.Context, tx *sqlx.Tx, productID int64, quantity int) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE stock SET quantity = quantity + $1, updated_at = NOW() WHERE product_id = $2",
		quantity, productID)
	if err != nil {
		return fmt.Errorf("failed to release stock for product %d: %w", productID, err)
	}
	return nil
}

// GetStock retrieves current stock for a product
func (s *Store) GetStock(ctx context.Context, productID int64) (*models.Stock, error) {
	var stock models.Stock
	err := s.db.GetContext(ctx, &stock, "SELECT * FROM stock WHERE product_id = $1", productID)
	if err != nil {
		return nil, err
	}
	return &stock, nil
}
