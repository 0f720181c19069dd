package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ecomstack/inventory-core/internal/core/domain"
	"github.com/ecomstack/inventory-core/internal/port"
)

// fakeStockStore is an in-memory StockStore with real compare-and-swap
// semantics, plus knobs to inject version conflicts.
type fakeStockStore struct {
	mu          sync.Mutex
	rows        map[domain.StockRef]*domain.StockRow
	getCalls    int
	updateCalls int
	updateRefs  []domain.StockRef

	// forcedConflicts makes the next N updates fail with a version
	// conflict regardless of the actual version.
	forcedConflicts int
	conflictAlways  bool
}

func newFakeStockStore() *fakeStockStore {
	return &fakeStockStore{rows: make(map[domain.StockRef]*domain.StockRow)}
}

func (f *fakeStockStore) seed(ref domain.StockRef, stock int, version int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[ref] = &domain.StockRow{Stock: stock, Version: version}
}

func (f *fakeStockStore) row(ref domain.StockRef) domain.StockRow {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.rows[ref]
}

func (f *fakeStockStore) GetStock(ctx context.Context, ref domain.StockRef) (domain.StockRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	row, ok := f.rows[ref]
	if !ok {
		return domain.StockRow{}, domain.ErrNotFound
	}
	return *row, nil
}

func (f *fakeStockStore) UpdateStock(ctx context.Context, ref domain.StockRef, newStock int, status domain.StockStatus, expectedVersion int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	f.updateRefs = append(f.updateRefs, ref)

	if f.conflictAlways {
		return domain.ErrVersionConflict
	}
	if f.forcedConflicts > 0 {
		f.forcedConflicts--
		return domain.ErrVersionConflict
	}

	row, ok := f.rows[ref]
	if !ok {
		return domain.ErrNotFound
	}
	if row.Version != expectedVersion {
		return domain.ErrVersionConflict
	}
	row.Stock = newStock
	row.Version++
	return nil
}

// fakeCacheStore is an in-memory CacheStore. failAll makes every call
// error, simulating an unreachable cache.
type fakeCacheStore struct {
	mu       sync.Mutex
	data     map[string]string
	scanSnap []string
	failAll  bool
	getCalls int
	setCalls int
	delCalls int
}

type fakeCacheError struct{}

func (fakeCacheError) Error() string { return "cache store down" }

func newFakeCacheStore() *fakeCacheStore {
	return &fakeCacheStore{data: make(map[string]string)}
}

func (f *fakeCacheStore) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.failAll {
		return "", fakeCacheError{}
	}
	val, ok := f.data[key]
	if !ok {
		return "", port.ErrCacheMiss
	}
	return val, nil
}

func (f *fakeCacheStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCalls++
	if f.failAll {
		return fakeCacheError{}
	}
	f.data[key] = value
	return nil
}

func (f *fakeCacheStore) Del(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delCalls++
	if f.failAll {
		return fakeCacheError{}
	}
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeCacheStore) Scan(ctx context.Context, cursor uint64, pattern string, count int64) ([]string, uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return nil, 0, fakeCacheError{}
	}

	// Redis SCAN guarantees that keys present for the whole iteration are
	// returned even when keys are deleted between calls. Model that by
	// snapshotting the match list when an iteration starts and paging the
	// snapshot, not the live map.
	if cursor == 0 {
		prefix := strings.TrimSuffix(pattern, "*")
		f.scanSnap = f.scanSnap[:0]
		for k := range f.data {
			if strings.HasPrefix(k, prefix) {
				f.scanSnap = append(f.scanSnap, k)
			}
		}
		sort.Strings(f.scanSnap)
	}

	start := int(cursor)
	if start >= len(f.scanSnap) {
		return nil, 0, nil
	}
	end := start + int(count)
	if end >= len(f.scanSnap) {
		return f.scanSnap[start:], 0, nil
	}
	return f.scanSnap[start:end], uint64(end), nil
}

func (f *fakeCacheStore) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for k := range f.data {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// fakeProductRepo serves product snapshots and counts store reads, so
// cache-aside behavior is observable.
type fakeProductRepo struct {
	mu          sync.Mutex
	products    map[string]*domain.Product
	stock       *fakeStockStore
	getCalls    int
	filterCalls int
}

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{
		products: make(map[string]*domain.Product),
		stock:    newFakeStockStore(),
	}
}

func (f *fakeProductRepo) addProduct(p domain.Product) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products[p.ID] = &p
	if !p.HasVariants && p.Stock != nil {
		f.stock.rows[domain.StockRef{ProductID: p.ID}] = &domain.StockRow{Stock: *p.Stock, Version: p.Version}
	}
	for _, v := range p.Variants {
		f.stock.rows[domain.StockRef{ProductID: p.ID, VariantID: v.ID}] = &domain.StockRow{Stock: v.Stock, Version: v.Version}
	}
}

func (f *fakeProductRepo) Create(ctx context.Context, p *domain.Product) error {
	f.addProduct(*p)
	return nil
}

func (f *fakeProductRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	p, ok := f.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	// Reflect the stock store so reads after ledger writes see fresh data.
	cp := *p
	if !cp.HasVariants {
		if row, ok := f.stock.rows[domain.StockRef{ProductID: id}]; ok {
			s := row.Stock
			cp.Stock = &s
			cp.Status = domain.StatusForStock(s)
			cp.Version = row.Version
		}
	}
	cp.Variants = append([]domain.Variant(nil), p.Variants...)
	for i := range cp.Variants {
		if row, ok := f.stock.rows[domain.StockRef{ProductID: id, VariantID: cp.Variants[i].ID}]; ok {
			cp.Variants[i].Stock = row.Stock
			cp.Variants[i].Status = domain.StatusForStock(row.Stock)
			cp.Variants[i].Version = row.Version
		}
	}
	return &cp, nil
}

func (f *fakeProductRepo) Filter(ctx context.Context, filter domain.ProductFilter) (*domain.ProductPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filterCalls++

	var items []domain.Product
	for _, p := range f.products {
		if filter.CategoryID != "" && p.CategoryID != filter.CategoryID {
			continue
		}
		items = append(items, *p)
	}
	return &domain.ProductPage{
		Items: items,
		Total: int64(len(items)),
		Page:  filter.Page,
		Limit: filter.Limit,
	}, nil
}

func (f *fakeProductRepo) Update(ctx context.Context, p *domain.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.products[p.ID]
	if !ok {
		return domain.ErrNotFound
	}
	existing.Name = p.Name
	existing.BasePrice = p.BasePrice
	existing.Description = p.Description
	return nil
}

func (f *fakeProductRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.products[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.products, id)
	return nil
}

func (f *fakeProductRepo) OverwriteStock(ctx context.Context, ref domain.StockRef, stock int) (domain.StockState, error) {
	f.stock.mu.Lock()
	defer f.stock.mu.Unlock()
	row, ok := f.stock.rows[ref]
	if !ok {
		return domain.StockState{}, domain.ErrNotFound
	}
	row.Stock = stock
	row.Version++
	return domain.StockState{Stock: stock, Status: domain.StatusForStock(stock), Version: row.Version}, nil
}

func (f *fakeProductRepo) Stock() port.StockStore { return f.stock }

// fakeOrderRepo stores orders in memory. WithTx emulates rollback by
// snapshotting the stock store and restoring it when fn fails.
type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
	stock  *fakeStockStore
}

func newFakeOrderRepo(stock *fakeStockStore) *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[string]*domain.Order), stock: stock}
}

func (f *fakeOrderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrderRepo) WithTx(ctx context.Context, fn func(tx port.OrderTx) error) error {
	f.mu.Lock()
	snapshot := make(map[domain.StockRef]domain.StockRow)
	f.stock.mu.Lock()
	for ref, row := range f.stock.rows {
		snapshot[ref] = *row
	}
	f.stock.mu.Unlock()
	f.mu.Unlock()

	tx := &fakeOrderTx{repo: f, staged: make(map[string]*domain.Order)}
	if err := fn(tx); err != nil {
		// Roll back stock mutations, drop staged orders.
		f.stock.mu.Lock()
		f.stock.rows = make(map[domain.StockRef]*domain.StockRow)
		for ref, row := range snapshot {
			r := row
			f.stock.rows[ref] = &r
		}
		f.stock.mu.Unlock()
		return err
	}

	f.mu.Lock()
	for id, o := range tx.staged {
		f.orders[id] = o
	}
	for id, status := range tx.transitions {
		f.orders[id].Status = status
	}
	f.mu.Unlock()
	return nil
}

type fakeOrderTx struct {
	repo        *fakeOrderRepo
	staged      map[string]*domain.Order
	transitions map[string]domain.OrderStatus
}

func (t *fakeOrderTx) GetStock(ctx context.Context, ref domain.StockRef) (domain.StockRow, error) {
	return t.repo.stock.GetStock(ctx, ref)
}

func (t *fakeOrderTx) UpdateStock(ctx context.Context, ref domain.StockRef, newStock int, status domain.StockStatus, expectedVersion int64) error {
	return t.repo.stock.UpdateStock(ctx, ref, newStock, status, expectedVersion)
}

func (t *fakeOrderTx) InsertOrder(ctx context.Context, o *domain.Order) error {
	cp := *o
	t.staged[o.ID] = &cp
	return nil
}

func (t *fakeOrderTx) TransitionStatus(ctx context.Context, orderID string, from []domain.OrderStatus, to domain.OrderStatus) error {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	o, ok := t.repo.orders[orderID]
	if !ok {
		return domain.ErrNotFound
	}
	allowed := false
	for _, s := range from {
		if o.Status == s {
			allowed = true
		}
	}
	if !allowed {
		return domain.ErrOrderNotCancellable
	}
	if t.transitions == nil {
		t.transitions = make(map[string]domain.OrderStatus)
	}
	t.transitions[orderID] = to
	return nil
}
