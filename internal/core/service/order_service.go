package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ecomstack/inventory-core/internal/core/domain"
	"github.com/ecomstack/inventory-core/internal/port"
)

// OrderLine is one requested product/variant quantity at checkout.
type OrderLine struct {
	ProductID string
	VariantID string
	Quantity  int
}

func (l OrderLine) Ref() domain.StockRef {
	return domain.StockRef{ProductID: l.ProductID, VariantID: l.VariantID}
}

var ErrInvalidQuantity = errors.New("quantity must be positive")

// OrderService creates and cancels orders. All stock mutation goes through
// the ledger inside the order transaction, so an order either fully
// reserves every line or leaves no trace.
type OrderService struct {
	orders   port.OrderRepository
	products port.ProductRepository
	ledger   *Ledger
	cache    *CacheService
	logger   *zap.Logger
}

func NewOrderService(orders port.OrderRepository, products port.ProductRepository, ledger *Ledger, cache *CacheService, logger *zap.Logger) *OrderService {
	return &OrderService{
		orders:   orders,
		products: products,
		ledger:   ledger,
		cache:    cache,
		logger:   logger,
	}
}

func (s *OrderService) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return s.orders.GetByID(ctx, id)
}

func (s *OrderService) PlaceOrder(ctx context.Context, userID string, lines []OrderLine) (*domain.Order, error) {
	if len(lines) == 0 {
		return nil, errors.New("order has no lines")
	}

	now := time.Now()
	order := &domain.Order{
		ID:        uuid.NewString(),
		UserID:    userID,
		Status:    domain.OrderStatusPending,
		Total:     decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Advisory pre-check: resolve prices and reject obviously short lines
	// early. The ledger's conditional update inside the transaction is the
	// actual guard against overselling.
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}

		price, available, err := s.resolveLine(ctx, line)
		if err != nil {
			return nil, err
		}
		if available < line.Quantity {
			return nil, domain.ErrInsufficientStock
		}

		subtotal := price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		order.Items = append(order.Items, domain.OrderItem{
			ID:        uuid.NewString(),
			OrderID:   order.ID,
			ProductID: line.ProductID,
			VariantID: line.VariantID,
			Quantity:  line.Quantity,
			UnitPrice: price,
			Subtotal:  subtotal,
		})
		order.Total = order.Total.Add(subtotal)
	}

	err := s.orders.WithTx(ctx, func(tx port.OrderTx) error {
		if err := tx.InsertOrder(ctx, order); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		for _, item := range sortedByRef(order.Items) {
			if _, err := s.ledger.Apply(ctx, tx, item.Ref(), -item.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Invalidation strictly after commit, so a racing reader cannot
	// repopulate the cache with pre-commit data.
	for _, line := range lines {
		s.cache.InvalidateProduct(ctx, line.ProductID)
	}

	s.logger.Info("order placed",
		zap.String("order_id", order.ID),
		zap.String("user_id", userID),
		zap.Int("lines", len(order.Items)),
	)
	return order, nil
}

// Cancel restores every line's stock and moves the order to cancelled, all
// in one transaction. The increments run through the same retry loop since
// fresh decrements for other orders may race them.
func (s *OrderService) Cancel(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	err = s.orders.WithTx(ctx, func(tx port.OrderTx) error {
		from := []domain.OrderStatus{domain.OrderStatusPending, domain.OrderStatusConfirmed}
		if err := tx.TransitionStatus(ctx, orderID, from, domain.OrderStatusCancelled); err != nil {
			return err
		}
		for _, item := range sortedByRef(order.Items) {
			if _, err := s.ledger.Apply(ctx, tx, item.Ref(), item.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, item := range order.Items {
		s.cache.InvalidateProduct(ctx, item.ProductID)
	}

	order.Status = domain.OrderStatusCancelled
	s.logger.Info("order cancelled", zap.String("order_id", orderID))
	return order, nil
}

// sortedByRef returns the items in deterministic stock-ref order so
// concurrent multi-line orders lock rows in the same sequence instead of
// deadlocking each other.
func sortedByRef(items []domain.OrderItem) []domain.OrderItem {
	out := make([]domain.OrderItem, len(items))
	copy(out, items)
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProductID != out[j].ProductID {
			return out[i].ProductID < out[j].ProductID
		}
		return out[i].VariantID < out[j].VariantID
	})
	return out
}

// resolveLine returns the unit price and currently available stock for a
// line, from a product snapshot.
func (s *OrderService) resolveLine(ctx context.Context, line OrderLine) (decimal.Decimal, int, error) {
	p, err := s.products.GetByID(ctx, line.ProductID)
	if err != nil {
		return decimal.Zero, 0, err
	}

	if line.VariantID != "" {
		for _, v := range p.Variants {
			if v.ID == line.VariantID {
				return v.Price, v.Stock, nil
			}
		}
		return decimal.Zero, 0, domain.ErrNotFound
	}

	if p.HasVariants || p.Stock == nil {
		// Stock lives on the variants; a product-level line does not
		// address a stock-bearing entity.
		return decimal.Zero, 0, domain.ErrNotFound
	}
	return p.BasePrice.Decimal, *p.Stock, nil
}
