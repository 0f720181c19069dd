package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ecomstack/inventory-core/internal/config"
	"github.com/ecomstack/inventory-core/internal/core/domain"
	"github.com/ecomstack/inventory-core/internal/port"
)

// ProductService serves reads cache-aside and routes every write through
// the commit-then-invalidate rule: the cache is only touched after the
// durable write, never before.
type ProductService struct {
	repo   port.ProductRepository
	cache  *CacheService
	ledger *Ledger
	cfg    config.CacheConfig
	logger *zap.Logger
}

func NewProductService(repo port.ProductRepository, cache *CacheService, ledger *Ledger, cfg config.CacheConfig, logger *zap.Logger) *ProductService {
	return &ProductService{
		repo:   repo,
		cache:  cache,
		ledger: ledger,
		cfg:    cfg,
		logger: logger,
	}
}

func (s *ProductService) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	key := productKey(id)

	var cached domain.Product
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		// Misses are not cached; a later create would otherwise have to
		// invalidate a negative entry.
		return nil, err
	}

	s.cache.Set(ctx, key, p, s.cfg.ProductTTL)
	return p, nil
}

func (s *ProductService) Filter(ctx context.Context, f domain.ProductFilter) (*domain.ProductPage, error) {
	f = f.Normalized()
	key := listKey(f)

	if key != "" {
		var cached domain.ProductPage
		if s.cache.Get(ctx, key, &cached) {
			return &cached, nil
		}
	}

	page, err := s.repo.Filter(ctx, f)
	if err != nil {
		return nil, err
	}

	if key != "" {
		s.cache.Set(ctx, key, page, s.cfg.ListTTL)
	}
	return page, nil
}

func (s *ProductService) Create(ctx context.Context, p *domain.Product) (*domain.Product, error) {
	now := time.Now()
	p.ID = uuid.NewString()
	p.CreatedAt = now
	p.UpdatedAt = now
	p.IsActive = true

	if p.HasVariants {
		p.Stock = nil
		p.BasePrice.Valid = false
		for i := range p.Variants {
			v := &p.Variants[i]
			v.ID = uuid.NewString()
			v.ProductID = p.ID
			v.Status = domain.StatusForStock(v.Stock)
			v.CreatedAt = now
			v.UpdatedAt = now
		}
	} else {
		stock := 0
		if p.Stock != nil {
			stock = *p.Stock
		}
		p.Stock = &stock
		p.Status = domain.StatusForStock(stock)
		p.Variants = nil
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	// A fresh product can already match cached list queries.
	s.cache.InvalidatePattern(ctx, listKeyPattern)
	return p, nil
}

func (s *ProductService) Update(ctx context.Context, p *domain.Product) (*domain.Product, error) {
	p.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	s.cache.InvalidateProduct(ctx, p.ID)
	return s.repo.GetByID(ctx, p.ID)
}

func (s *ProductService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.InvalidateProduct(ctx, id)
	return nil
}

// AdjustStock applies a signed delta through the ledger.
func (s *ProductService) AdjustStock(ctx context.Context, ref domain.StockRef, delta int) (domain.StockState, error) {
	return s.ledger.ApplyAndInvalidate(ctx, ref, delta)
}

// OverwriteStock is the administrative last-writer-wins correction. It
// bypasses the optimistic check on purpose and invalidates on its own.
func (s *ProductService) OverwriteStock(ctx context.Context, ref domain.StockRef, stock int) (domain.StockState, error) {
	if stock < 0 {
		return domain.StockState{}, domain.ErrInsufficientStock
	}
	state, err := s.repo.OverwriteStock(ctx, ref, stock)
	if err != nil {
		return domain.StockState{}, err
	}
	s.cache.InvalidateProduct(ctx, ref.ProductID)
	return state, nil
}
