package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ecomstack/inventory-core/internal/core/domain"
)

// dbtx is the subset of *sql.DB and *sql.Tx the stock store needs, so the
// same CAS queries run standalone or inside an order transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// MySQLStockStore implements port.StockStore over either a DB handle or a
// transaction.
type MySQLStockStore struct {
	q dbtx
}

func NewMySQLStockStore(q dbtx) *MySQLStockStore {
	return &MySQLStockStore{q: q}
}

func (s *MySQLStockStore) GetStock(ctx context.Context, ref domain.StockRef) (domain.StockRow, error) {
	var row domain.StockRow
	var err error

	if ref.IsVariant() {
		err = s.q.QueryRowContext(ctx, `
			SELECT stock, version FROM product_variants
			WHERE id = ? AND product_id = ?`,
			ref.VariantID, ref.ProductID,
		).Scan(&row.Stock, &row.Version)
	} else {
		// A variant-tracked product owns no stock at the product level;
		// it is not a stock-bearing entity for this ref shape.
		err = s.q.QueryRowContext(ctx, `
			SELECT stock, version FROM products
			WHERE id = ? AND has_variants = 0 AND stock IS NOT NULL`,
			ref.ProductID,
		).Scan(&row.Stock, &row.Version)
	}

	if errors.Is(err, sql.ErrNoRows) {
		return domain.StockRow{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.StockRow{}, fmt.Errorf("query stock: %w", err)
	}
	return row, nil
}

func (s *MySQLStockStore) UpdateStock(ctx context.Context, ref domain.StockRef, newStock int, status domain.StockStatus, expectedVersion int64) error {
	var result sql.Result
	var err error

	if ref.IsVariant() {
		result, err = s.q.ExecContext(ctx, `
			UPDATE product_variants
			SET stock = ?, status = ?, version = version + 1, updated_at = NOW()
			WHERE id = ? AND product_id = ? AND version = ?`,
			newStock, status, ref.VariantID, ref.ProductID, expectedVersion,
		)
	} else {
		result, err = s.q.ExecContext(ctx, `
			UPDATE products
			SET stock = ?, status = ?, version = version + 1, updated_at = NOW()
			WHERE id = ? AND version = ?`,
			newStock, status, ref.ProductID, expectedVersion,
		)
	}
	if err != nil {
		return fmt.Errorf("update stock: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrVersionConflict
	}
	return nil
}
