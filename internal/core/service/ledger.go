package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ecomstack/inventory-core/internal/config"
	"github.com/ecomstack/inventory-core/internal/core/domain"
	"github.com/ecomstack/inventory-core/internal/port"
)

// Ledger is the single sanctioned path for mutating stock. Every write is
// a conditional update keyed on the row version; a lost race is retried
// from a fresh read, bounded by the configured attempt ceiling.
type Ledger struct {
	stock  port.StockStore
	cache  *CacheService
	cfg    config.LedgerConfig
	logger *zap.Logger
}

func NewLedger(stock port.StockStore, cache *CacheService, cfg config.LedgerConfig, logger *zap.Logger) *Ledger {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Ledger{
		stock:  stock,
		cache:  cache,
		cfg:    cfg,
		logger: logger,
	}
}

// Apply adds delta to the stock of the entity addressed by ref, using the
// given store. Negative deltas that would take stock below zero fail with
// domain.ErrInsufficientStock without retrying; version conflicts are
// retried with doubling backoff until the ceiling, then reported as
// domain.ErrConcurrencyExhausted.
//
// The store is a parameter so order placement can run the same algorithm
// inside its own transaction scope.
func (l *Ledger) Apply(ctx context.Context, store port.StockStore, ref domain.StockRef, delta int) (domain.StockState, error) {
	if delta == 0 {
		return domain.StockState{}, domain.ErrInvalidDelta
	}

	backoff := l.cfg.RetryBackoff
	for attempt := 1; attempt <= l.cfg.MaxAttempts; attempt++ {
		row, err := store.GetStock(ctx, ref)
		if err != nil {
			return domain.StockState{}, err
		}

		newStock := row.Stock + delta
		if newStock < 0 {
			// Business-rule violation, not a race: no retry.
			return domain.StockState{}, domain.ErrInsufficientStock
		}

		status := domain.StatusForStock(newStock)
		err = store.UpdateStock(ctx, ref, newStock, status, row.Version)
		if err == nil {
			return domain.StockState{
				Stock:   newStock,
				Status:  status,
				Version: row.Version + 1,
			}, nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return domain.StockState{}, fmt.Errorf("update stock: %w", err)
		}

		l.logger.Debug("stock version conflict",
			zap.String("product_id", ref.ProductID),
			zap.String("variant_id", ref.VariantID),
			zap.Int("attempt", attempt),
		)

		if attempt < l.cfg.MaxAttempts {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return domain.StockState{}, ctx.Err()
			}
			backoff *= 2
		}
	}

	l.logger.Warn("stock update retries exhausted",
		zap.String("product_id", ref.ProductID),
		zap.String("variant_id", ref.VariantID),
		zap.Int("attempts", l.cfg.MaxAttempts),
	)
	return domain.StockState{}, domain.ErrConcurrencyExhausted
}

// ApplyAndInvalidate runs Apply against the DB-backed store and, once the
// write is durable, drops the affected cache entries. This is the path for
// standalone adjustments (restock, manual correction).
func (l *Ledger) ApplyAndInvalidate(ctx context.Context, ref domain.StockRef, delta int) (domain.StockState, error) {
	state, err := l.Apply(ctx, l.stock, ref, delta)
	if err != nil {
		return domain.StockState{}, err
	}
	l.cache.InvalidateProduct(ctx, ref.ProductID)
	return state, nil
}
