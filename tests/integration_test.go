package tests

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ecomstack/inventory-core/internal/adapter/storage"
	"github.com/ecomstack/inventory-core/internal/config"
	"github.com/ecomstack/inventory-core/internal/core/domain"
	"github.com/ecomstack/inventory-core/internal/core/service"
)

type testEnv struct {
	redis    *redis.Client
	mysql    *sql.DB
	products *service.ProductService
	orders   *service.OrderService
	cleanup  func()
}

func setupTestEnv(t *testing.T) *testEnv {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "root:root@tcp(localhost:3306)/inventory?parseTime=true"
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	schema, err := os.ReadFile("../internal/adapter/storage/schema.sql")
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	for _, stmt := range strings.Split(string(schema), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("schema setup failed: %v", err)
		}
	}

	zlog := zap.NewNop()
	productRepo := storage.NewMySQLProductRepository(db)
	orderRepo := storage.NewMySQLOrderRepository(db)
	cache := service.NewCacheService(storage.NewRedisStore(rdb), 100, zlog)

	ledgerCfg := config.LedgerConfig{MaxAttempts: 10, RetryBackoff: 10 * time.Millisecond}
	cacheCfg := config.CacheConfig{ProductTTL: time.Hour, ListTTL: 5 * time.Minute, ScanBatchSize: 100}

	ledger := service.NewLedger(productRepo.Stock(), cache, ledgerCfg, zlog)
	products := service.NewProductService(productRepo, cache, ledger, cacheCfg, zlog)
	orders := service.NewOrderService(orderRepo, productRepo, ledger, cache, zlog)

	return &testEnv{
		redis:    rdb,
		mysql:    db,
		products: products,
		orders:   orders,
		cleanup: func() {
			rdb.Close()
			db.Close()
		},
	}
}

func (e *testEnv) createProduct(t *testing.T, stock int) *domain.Product {
	t.Helper()
	s := stock
	p, err := e.products.Create(context.Background(), &domain.Product{
		SKU:       "it-" + time.Now().Format("20060102150405.000000000"),
		Name:      "integration product",
		BasePrice: decimal.NewNullDecimal(decimal.NewFromInt(10)),
		Stock:     &s,
	})
	if err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	t.Cleanup(func() {
		ctx := context.Background()
		e.mysql.Exec(`DELETE FROM order_items WHERE product_id = ?`, p.ID)
		e.mysql.Exec(`DELETE FROM products WHERE id = ?`, p.ID)
		e.redis.Del(ctx, "product:"+p.ID)
	})
	return p
}

func TestConcurrentCheckout_NoOversell(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	initialStock := 20
	totalRequests := 50
	p := env.createProduct(t, initialStock)

	var successes atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(userID int) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			_, err := env.orders.PlaceOrder(ctx, "user", []service.OrderLine{
				{ProductID: p.ID, Quantity: 1},
			})
			if err == nil {
				successes.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if int(successes.Load()) > initialStock {
		t.Errorf("oversold: %d orders against stock of %d", successes.Load(), initialStock)
	}

	var stock, version int
	err := env.mysql.QueryRow(`SELECT stock, version FROM products WHERE id = ?`, p.ID).Scan(&stock, &version)
	if err != nil {
		t.Fatalf("read final stock: %v", err)
	}
	if stock != initialStock-int(successes.Load()) {
		t.Errorf("lost update: final stock %d, expected %d", stock, initialStock-int(successes.Load()))
	}
	if version != int(successes.Load()) {
		t.Errorf("version %d does not match %d successful writes", version, successes.Load())
	}

	// Cleanup orders created by this test.
	env.mysql.Exec(`DELETE FROM order_items WHERE product_id = ?`, p.ID)
	env.mysql.Exec(`DELETE FROM orders WHERE user_id = 'user'`)
}

func TestCacheCoherence_ReadAfterStockWrite(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	p := env.createProduct(t, 10)
	ctx := context.Background()

	// Warm the cache.
	got, err := env.products.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if *got.Stock != 10 {
		t.Fatalf("expected stock 10, got %d", *got.Stock)
	}

	state, err := env.products.AdjustStock(ctx, domain.StockRef{ProductID: p.ID}, -6)
	if err != nil {
		t.Fatalf("adjust failed: %v", err)
	}
	if state.Stock != 4 || state.Status != domain.StatusLowStock {
		t.Fatalf("unexpected state: %+v", state)
	}

	// A read after the write must never see the pre-write snapshot.
	got, err = env.products.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("re-read failed: %v", err)
	}
	if *got.Stock != 4 {
		t.Errorf("stale cache: stock %d after write to 4", *got.Stock)
	}
}

func TestOrderCancel_RestoresStockAndCache(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	p := env.createProduct(t, 5)
	ctx := context.Background()

	order, err := env.orders.PlaceOrder(ctx, "cancel-user", []service.OrderLine{
		{ProductID: p.ID, Quantity: 3},
	})
	if err != nil {
		t.Fatalf("place failed: %v", err)
	}
	t.Cleanup(func() {
		env.mysql.Exec(`DELETE FROM order_items WHERE order_id = ?`, order.ID)
		env.mysql.Exec(`DELETE FROM orders WHERE id = ?`, order.ID)
	})

	got, err := env.products.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if *got.Stock != 2 {
		t.Fatalf("expected stock 2 after order, got %d", *got.Stock)
	}

	if _, err := env.orders.Cancel(ctx, order.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	got, err = env.products.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("re-read failed: %v", err)
	}
	if *got.Stock != 5 {
		t.Errorf("expected stock restored to 5, got %d", *got.Stock)
	}
}
