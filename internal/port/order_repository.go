package port

import (
	"context"

	"github.com/ecomstack/inventory-core/internal/core/domain"
)

// OrderTx is the scope handed to WithTx callbacks. Stock mutations through
// it share the transaction with the order rows, so a failed line rolls the
// whole order back.
type OrderTx interface {
	StockStore

	InsertOrder(ctx context.Context, o *domain.Order) error

	// TransitionStatus moves an order from one status to another, guarded
	// on the current status. Returns domain.ErrOrderNotCancellable when
	// the order is not in the expected state.
	TransitionStatus(ctx context.Context, orderID string, from []domain.OrderStatus, to domain.OrderStatus) error
}

type OrderRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// WithTx runs fn inside one transaction; fn returning an error rolls
	// everything back.
	WithTx(ctx context.Context, fn func(tx OrderTx) error) error
}
