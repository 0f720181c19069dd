package port

import (
	"context"

	"github.com/ecomstack/inventory-core/internal/core/domain"
)

type ProductRepository interface {
	Create(ctx context.Context, p *domain.Product) error
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	Filter(ctx context.Context, f domain.ProductFilter) (*domain.ProductPage, error)
	Update(ctx context.Context, p *domain.Product) error
	Delete(ctx context.Context, id string) error

	// OverwriteStock is the administrative last-writer-wins path: no
	// version condition, but version still advances and status is
	// recomputed from the new quantity.
	OverwriteStock(ctx context.Context, ref domain.StockRef, stock int) (domain.StockState, error)

	// Stock exposes the DB-backed stock store for standalone ledger calls.
	Stock() StockStore
}
