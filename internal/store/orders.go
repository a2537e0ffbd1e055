package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/yaffalhakim1/ecommerce-api/internal/apperr"
	"github.com/yaffalhakim1/ecommerce-api/internal/models"

	"github.com/shopspring/decimal"
)

// CreatePendingOrder runs the checkout transaction: every cart line has its
// authoritative price re-read and its stock reserved under a row lock, then
// the PENDING order and its line-item snapshot are inserted. Any failure
// rolls back the whole transaction, so partial reservations are never
// committed.
func (s *Store) CreatePendingOrder(ctx context.Context, userID int64, reference string, lines []models.CartLine) (*models.Order, []models.OrderItem, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	// Lock stock rows in product-id order so concurrent checkouts cannot
	// deadlock on each other.
	sorted := make([]models.CartLine, len(lines))
	copy(sorted, lines)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ProductID < sorted[j].ProductID })

	total := decimal.Zero
	items := make([]models.OrderItem, 0, len(sorted))

	for _, line := range sorted {
		var product models.Product
		err := tx.GetContext(ctx, &product,
			"SELECT id, name, price FROM products WHERE id = $1", line.ProductID)
		if err == sql.ErrNoRows {
			return nil, nil, apperr.NotFound(fmt.Sprintf("product %d", line.ProductID))
		}
		if err != nil {
			return nil, nil, err
		}

		if err := s.Reserve(ctx, tx, line.ProductID, line.Quantity); err != nil {
			if errors.Is(err, ErrInsufficientStock) {
				return nil, nil, apperr.InsufficientStock(product.Name)
			}
			return nil, nil, err
		}

		item := models.OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			UnitPrice:   product.Price,
			Quantity:    line.Quantity,
		}
		total = total.Add(item.Subtotal())
		items = append(items, item)
	}

	order := &models.Order{
		UserID:            userID,
		TotalAmount:       total.Round(2),
		Status:            models.OrderStatusPending,
		ExternalReference: reference,
	}

	err = tx.GetContext(ctx, order, `
		INSERT INTO orders (user_id, total_amount, status, external_reference)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		order.UserID, order.TotalAmount, order.Status, order.ExternalReference)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create order: %w", err)
	}

	for i := range items {
		items[i].OrderID = order.ID
		err := tx.GetContext(ctx, &items[i].ID, `
			INSERT INTO order_items (order_id, product_id, product_name, unit_price, quantity)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			items[i].OrderID, items[i].ProductID, items[i].ProductName,
			items[i].UnitPrice, items[i].Quantity)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	return order, items, nil
}

// CancelPendingOrder is the compensating rollback for a gateway failure after
// the checkout transaction committed: it returns every reserved quantity and
// removes the order row and its snapshot. The status guard makes it a no-op
// if reconciliation already resolved the order.
func (s *Store) CancelPendingOrder(ctx context.Context, orderID int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var status string
	err = tx.GetContext(ctx, &status,
		"SELECT status FROM orders WHERE id = $1 FOR UPDATE", orderID)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}
	if status != models.OrderStatusPending {
		return nil
	}

	var items []models.OrderItem
	if err := tx.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1", orderID); err != nil {
		return err
	}

	for _, item := range items {
		if err := s.Release(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM order_items WHERE order_id = $1", orderID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM orders WHERE id = $1", orderID); err != nil {
		return err
	}

	return tx.Commit()
}

// CompleteOrder transitions a PENDING order to COMPLETED and records the
// payment metadata. Returns false without touching anything when the order is
// already terminal, which makes duplicate settlement notifications no-ops.
func (s *Store) CompleteOrder(ctx context.Context, orderID int64, paymentType, paymentTxID string) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var status string
	err = tx.GetContext(ctx, &status,
		"SELECT status FROM orders WHERE id = $1 FOR UPDATE", orderID)
	if err != nil {
		return false, err
	}
	if status != models.OrderStatusPending {
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $1, payment_type = $2, payment_tx_id = $3, paid_at = NOW(), updated_at = NOW()
		WHERE id = $4`,
		models.OrderStatusCompleted, paymentType, paymentTxID, orderID)
	if err != nil {
		return false, err
	}

	return true, tx.Commit()
}

// FailOrderAndRelease transitions a PENDING order to FAILED and returns every
// snapshot quantity to stock. The transition guard and the releases share one
// transaction, so stock is released exactly once per failed order no matter
// how often the same terminal notification is delivered.
func (s *Store) FailOrderAndRelease(ctx context.Context, orderID int64) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var status string
	err = tx.GetContext(ctx, &status,
		"SELECT status FROM orders WHERE id = $1 FOR UPDATE", orderID)
	if err != nil {
		return false, err
	}
	if status != models.OrderStatusPending {
		return false, nil
	}

	var items []models.OrderItem
	if err := tx.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1", orderID); err != nil {
		return false, err
	}

	for _, item := range items {
		if err := s.Release(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return false, err
		}
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2",
		models.OrderStatusFailed, orderID)
	if err != nil {
		return false, err
	}

	return true, tx.Commit()
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("order")
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByReference retrieves an order by its external payment reference
func (s *Store) GetOrderByReference(ctx context.Context, reference string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"SELECT * FROM orders WHERE external_reference = $1", reference)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("order")
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderItems retrieves the line-item snapshot for an order
func (s *Store) GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}

// GetOrdersByUserID retrieves orders for a user, newest first
func (s *Store) GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC", userID)
	return orders, err
}

// ListStalePendingOrders returns orders still PENDING after the given age,
// oldest first. Used by the background sweeper to query the gateway for
// outcomes whose webhook never arrived.
func (s *Store) ListStalePendingOrders(ctx context.Context, olderThan time.Duration, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders, `
		SELECT * FROM orders
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at ASC
		LIMIT $3`,
		models.OrderStatusPending, time.Now().Add(-olderThan), limit)
	return orders, err
}
