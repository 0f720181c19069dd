package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ecomstack/inventory-core/internal/core/domain"
	"github.com/ecomstack/inventory-core/internal/port"
)

type MySQLOrderRepository struct {
	db *sql.DB
}

func NewMySQLOrderRepository(db *sql.DB) *MySQLOrderRepository {
	return &MySQLOrderRepository{db: db}
}

func (r *MySQLOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	o := &domain.Order{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, status, total, created_at, updated_at
		FROM orders WHERE id = ?`, id,
	).Scan(&o.ID, &o.UserID, &o.Status, &o.Total, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, variant_id, quantity, unit_price, subtotal
		FROM order_items WHERE order_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderItem
		var variantID sql.NullString
		err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &variantID,
			&item.Quantity, &item.UnitPrice, &item.Subtotal)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		item.VariantID = variantID.String
		o.Items = append(o.Items, item)
	}
	return o, rows.Err()
}

// WithTx runs fn in one READ COMMITTED transaction. Read committed matters:
// a ledger retry inside the transaction must re-read the latest committed
// row version, not a stale repeatable-read snapshot.
func (r *MySQLOrderRepository) WithTx(ctx context.Context, fn func(tx port.OrderTx) error) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(&orderTx{tx: tx, MySQLStockStore: NewMySQLStockStore(tx)}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type orderTx struct {
	tx *sql.Tx
	*MySQLStockStore
}

func (t *orderTx) InsertOrder(ctx context.Context, o *domain.Order) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, status, total, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		o.ID, o.UserID, o.Status, o.Total, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, item := range o.Items {
		var variantID sql.NullString
		if item.VariantID != "" {
			variantID = sql.NullString{String: item.VariantID, Valid: true}
		}
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, variant_id, quantity, unit_price, subtotal)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			item.ID, item.OrderID, item.ProductID, variantID,
			item.Quantity, item.UnitPrice, item.Subtotal,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

func (t *orderTx) TransitionStatus(ctx context.Context, orderID string, from []domain.OrderStatus, to domain.OrderStatus) error {
	placeholders := make([]string, len(from))
	args := []any{to, orderID}
	for i, s := range from {
		placeholders[i] = "?"
		args = append(args, s)
	}

	result, err := t.tx.ExecContext(ctx, fmt.Sprintf(`
		UPDATE orders SET status = ?, updated_at = NOW()
		WHERE id = ? AND status IN (%s)`, strings.Join(placeholders, ", ")),
		args...,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrOrderNotCancellable
	}
	return nil
}
