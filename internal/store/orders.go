package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Deduh/foodbot-back/internal/domain"
)

// OrderStore persists orders and their frozen line items.
type OrderStore struct {
	db *sqlx.DB
}

// CreateOrderParams carries a fully priced order ready for insertion.
type CreateOrderParams struct {
	RestaurantID           string
	UserID                 *string
	CustomerTelegramUserID *string
	CustomerName           *string
	CustomerPhone          *string
	DeliveryAddress        *string
	TotalPrice             int64
	Items                  []OrderItem
}

// Create inserts the order and its items in one transaction.
func (s *OrderStore) Create(ctx context.Context, p CreateOrderParams) (*Order, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var o Order
	err = tx.GetContext(ctx, &o, `
		INSERT INTO orders (id, restaurant_id, user_id, customer_telegram_user_id,
			customer_name, customer_phone, delivery_address, status, total_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING *`,
		uuid.NewString(), p.RestaurantID, p.UserID, p.CustomerTelegramUserID,
		p.CustomerName, p.CustomerPhone, p.DeliveryAddress, StatusPending, p.TotalPrice,
	)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	for _, item := range p.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, menu_item_id, quantity, price_at_order, total_price)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.NewString(), o.ID, item.MenuItemID, item.Quantity, item.PriceAtOrder, item.TotalPrice,
		)
		if err != nil {
			return nil, fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &o, nil
}

// Get returns one order by id.
func (s *OrderStore) Get(ctx context.Context, id string) (*Order, error) {
	var o Order
	err := s.db.GetContext(ctx, &o, `SELECT * FROM orders WHERE id = $1`, id)
	if err != nil {
		return nil, mapRowErr(err, domain.NotFoundf("order %s", id))
	}
	return &o, nil
}

// ListByRestaurant returns a restaurant's orders, newest first.
func (s *OrderStore) ListByRestaurant(ctx context.Context, restaurantID string) ([]Order, error) {
	var out []Order
	err := s.db.SelectContext(ctx, &out, `
		SELECT * FROM orders WHERE restaurant_id = $1 ORDER BY created_at DESC`,
		restaurantID,
	)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return out, nil
}

// Items returns an order's frozen line items.
func (s *OrderStore) Items(ctx context.Context, orderID string) ([]OrderItem, error) {
	var out []OrderItem
	if err := s.db.SelectContext(ctx, &out, `SELECT * FROM order_items WHERE order_id = $1`, orderID); err != nil {
		return nil, fmt.Errorf("order items: %w", err)
	}
	return out, nil
}

// CompareAndSetStatus applies a status transition only if the row still holds
// the expected current status. It reports false, without error, when a
// concurrent transition won the race; the caller re-validates against the
// fresh row.
func (s *OrderStore) CompareAndSetStatus(ctx context.Context, id string, from, to OrderStatus) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2`,
		id, from, to,
	)
	if err != nil {
		return false, fmt.Errorf("update order status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		// Distinguish a lost race from a missing row.
		var exists bool
		if err := s.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id); err != nil && err != sql.ErrNoRows {
			return false, fmt.Errorf("order existence check: %w", err)
		}
		if !exists {
			return false, domain.NotFoundf("order %s", id)
		}
		return false, nil
	}
	return true, nil
}
