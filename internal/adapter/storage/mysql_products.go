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

type MySQLProductRepository struct {
	db    *sql.DB
	stock *MySQLStockStore
}

func NewMySQLProductRepository(db *sql.DB) *MySQLProductRepository {
	return &MySQLProductRepository{
		db:    db,
		stock: NewMySQLStockStore(db),
	}
}

func (r *MySQLProductRepository) Stock() port.StockStore {
	return r.stock
}

func (r *MySQLProductRepository) Create(ctx context.Context, p *domain.Product) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var stock sql.NullInt64
	var status sql.NullString
	if !p.HasVariants && p.Stock != nil {
		stock = sql.NullInt64{Int64: int64(*p.Stock), Valid: true}
		status = sql.NullString{String: string(p.Status), Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO products
			(id, category_id, sku, name, description, base_price, has_variants,
			 stock, status, version, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		p.ID, p.CategoryID, p.SKU, p.Name, p.Description, p.BasePrice,
		p.HasVariants, stock, status, p.IsActive, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}

	for _, v := range p.Variants {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO product_variants
				(id, product_id, sku, name, price, stock, status, version, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
			v.ID, v.ProductID, v.SKU, v.Name, v.Price, v.Stock, v.Status,
			v.CreatedAt, v.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert variant: %w", err)
		}
	}

	return tx.Commit()
}

func (r *MySQLProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	p := &domain.Product{}
	var stock sql.NullInt64
	var status sql.NullString

	err := r.db.QueryRowContext(ctx, `
		SELECT id, category_id, sku, name, description, base_price, has_variants,
		       stock, status, version, is_active, created_at, updated_at
		FROM products WHERE id = ?`, id,
	).Scan(
		&p.ID, &p.CategoryID, &p.SKU, &p.Name, &p.Description, &p.BasePrice,
		&p.HasVariants, &stock, &status, &p.Version, &p.IsActive,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}

	if stock.Valid {
		s := int(stock.Int64)
		p.Stock = &s
	}
	if status.Valid {
		p.Status = domain.StockStatus(status.String)
	}

	if p.HasVariants {
		p.Variants, err = r.variantsOf(ctx, p.ID)
		if err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (r *MySQLProductRepository) variantsOf(ctx context.Context, productID string) ([]domain.Variant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, sku, name, price, stock, status, version, created_at, updated_at
		FROM product_variants WHERE product_id = ? ORDER BY created_at`, productID)
	if err != nil {
		return nil, fmt.Errorf("query variants: %w", err)
	}
	defer rows.Close()

	var variants []domain.Variant
	for rows.Next() {
		var v domain.Variant
		err := rows.Scan(&v.ID, &v.ProductID, &v.SKU, &v.Name, &v.Price,
			&v.Stock, &v.Status, &v.Version, &v.CreatedAt, &v.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

func (r *MySQLProductRepository) Filter(ctx context.Context, f domain.ProductFilter) (*domain.ProductPage, error) {
	conditions := []string{"is_active = 1"}
	var args []any

	if f.CategoryID != "" {
		conditions = append(conditions, "category_id = ?")
		args = append(args, f.CategoryID)
	}
	if f.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, f.Status)
	}
	if !f.MinPrice.IsZero() {
		conditions = append(conditions, "base_price >= ?")
		args = append(args, f.MinPrice)
	}
	if !f.MaxPrice.IsZero() {
		conditions = append(conditions, "base_price <= ?")
		args = append(args, f.MaxPrice)
	}
	if f.Search != "" {
		conditions = append(conditions, "(name LIKE ? OR sku LIKE ?)")
		like := "%" + f.Search + "%"
		args = append(args, like, like)
	}

	where := " WHERE " + strings.Join(conditions, " AND ")

	var total int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products"+where, args...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	// Sort fields are whitelisted; user input never reaches the SQL text.
	orderBy := "created_at"
	switch f.SortBy {
	case "name":
		orderBy = "name"
	case "price":
		orderBy = "base_price"
	case "created_at":
		orderBy = "created_at"
	}
	if strings.EqualFold(f.SortOrder, "asc") {
		orderBy += " ASC"
	} else {
		orderBy += " DESC"
	}

	query := fmt.Sprintf(`
		SELECT id, category_id, sku, name, description, base_price, has_variants,
		       stock, status, version, is_active, created_at, updated_at
		FROM products%s ORDER BY %s LIMIT ? OFFSET ?`, where, orderBy)
	args = append(args, f.Limit, (f.Page-1)*f.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	items := []domain.Product{}
	for rows.Next() {
		var p domain.Product
		var stock sql.NullInt64
		var status sql.NullString
		err := rows.Scan(
			&p.ID, &p.CategoryID, &p.SKU, &p.Name, &p.Description, &p.BasePrice,
			&p.HasVariants, &stock, &status, &p.Version, &p.IsActive,
			&p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		if stock.Valid {
			s := int(stock.Int64)
			p.Stock = &s
		}
		if status.Valid {
			p.Status = domain.StockStatus(status.String)
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return &domain.ProductPage{
		Items: items,
		Total: total,
		Page:  f.Page,
		Limit: f.Limit,
	}, nil
}

// Update edits descriptive fields and price. Stock and version are owned by
// the ledger and never written here.
func (r *MySQLProductRepository) Update(ctx context.Context, p *domain.Product) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET category_id = ?, sku = ?, name = ?, description = ?, base_price = ?,
		    is_active = ?, updated_at = NOW()
		WHERE id = ?`,
		p.CategoryID, p.SKU, p.Name, p.Description, p.BasePrice, p.IsActive, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *MySQLProductRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM product_variants WHERE product_id = ?`, id); err != nil {
		return fmt.Errorf("delete variants: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}

	return tx.Commit()
}

func (r *MySQLProductRepository) OverwriteStock(ctx context.Context, ref domain.StockRef, stock int) (domain.StockState, error) {
	status := domain.StatusForStock(stock)

	// Update and read-back share one transaction so the returned snapshot
	// cannot mix in a concurrent writer's stock or version.
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.StockState{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var result sql.Result
	if ref.IsVariant() {
		result, err = tx.ExecContext(ctx, `
			UPDATE product_variants
			SET stock = ?, status = ?, version = version + 1, updated_at = NOW()
			WHERE id = ? AND product_id = ?`,
			stock, status, ref.VariantID, ref.ProductID,
		)
	} else {
		result, err = tx.ExecContext(ctx, `
			UPDATE products
			SET stock = ?, status = ?, version = version + 1, updated_at = NOW()
			WHERE id = ? AND has_variants = 0`,
			stock, status, ref.ProductID,
		)
	}
	if err != nil {
		return domain.StockState{}, fmt.Errorf("overwrite stock: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.StockState{}, domain.ErrNotFound
	}

	row, err := NewMySQLStockStore(tx).GetStock(ctx, ref)
	if err != nil {
		return domain.StockState{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.StockState{}, fmt.Errorf("commit: %w", err)
	}
	return domain.StockState{Stock: row.Stock, Status: status, Version: row.Version}, nil
}
