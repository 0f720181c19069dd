package port

import (
	"context"

	"github.com/ecomstack/inventory-core/internal/core/domain"
)

// StockStore is the ledger's view of the durable store. It is implemented
// both by a plain DB-backed store and by a transaction scope, so the same
// retry loop runs standalone or inside an order transaction.
type StockStore interface {
	// GetStock reads the current stock and version of one stock-bearing
	// entity in a single snapshot. Returns domain.ErrNotFound when the
	// entity does not exist or does not own stock at the addressed level.
	GetStock(ctx context.Context, ref domain.StockRef) (domain.StockRow, error)

	// UpdateStock writes stock and the recomputed status, incrementing
	// version, conditioned on version still equaling expectedVersion.
	// Returns domain.ErrVersionConflict when another writer won the race.
	UpdateStock(ctx context.Context, ref domain.StockRef, newStock int, status domain.StockStatus, expectedVersion int64) error
}
