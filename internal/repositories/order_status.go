// Package repositories holds the Postgres data access used by the payment API.
package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrOrderNotFound indicates the requested order id does not exist.
var ErrOrderNotFound = errors.New("repositories: order not found")

// Querier is the minimal query surface needed by the repository. Satisfied by
// *pgxpool.Pool; narrow interface for testability.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// OrderStatusRepository updates online purchase order rows shared with the POS.
type OrderStatusRepository struct {
	db Querier
}

// NewOrderStatusRepository constructs the repository over a pgx pool.
func NewOrderStatusRepository(db Querier) (*OrderStatusRepository, error) {
	if db == nil {
		return nil, errors.New("repositories: db is required")
	}
	return &OrderStatusRepository{db: db}, nil
}

// GetOrderID returns the order id when the row exists, ErrOrderNotFound otherwise.
func (r *OrderStatusRepository) GetOrderID(ctx context.Context, orderID int64) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `SELECT order_id FROM orders WHERE order_id = $1`, orderID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrOrderNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("repositories: get order: %w", err)
	}
	return id, nil
}

// UpdateStatus sets the order status.
func (r *OrderStatusRepository) UpdateStatus(ctx context.Context, orderID int64, status string) error {
	tag, err := r.db.Exec(ctx, `UPDATE orders SET status = $1 WHERE order_id = $2`, status, orderID)
	if err != nil {
		return fmt.Errorf("repositories: update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}
