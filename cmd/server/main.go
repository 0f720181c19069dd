package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ecomstack/inventory-core/internal/adapter/handler"
	"github.com/ecomstack/inventory-core/internal/adapter/storage"
	"github.com/ecomstack/inventory-core/internal/config"
	"github.com/ecomstack/inventory-core/internal/core/service"
	"github.com/ecomstack/inventory-core/internal/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zlog.Sync()

	// MySQL
	db, err := sql.Open("mysql", cfg.Database.DSN)
	if err != nil {
		zlog.Fatal("failed to open mysql", zap.Error(err))
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		zlog.Fatal("failed to ping mysql", zap.Error(err))
	}
	zlog.Info("connected to mysql")

	// Redis. A failed ping is not fatal: the cache layer fails open and
	// every read degrades to the durable store.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		zlog.Warn("redis unreachable, serving without cache", zap.Error(err))
	} else {
		zlog.Info("connected to redis")
	}

	// Adapters
	productRepo := storage.NewMySQLProductRepository(db)
	orderRepo := storage.NewMySQLOrderRepository(db)
	cacheStore := storage.NewRedisStore(rdb)

	// Services
	cacheSvc := service.NewCacheService(cacheStore, cfg.Cache.ScanBatchSize, zlog)
	ledger := service.NewLedger(productRepo.Stock(), cacheSvc, cfg.Ledger, zlog)
	productSvc := service.NewProductService(productRepo, cacheSvc, ledger, cfg.Cache, zlog)
	orderSvc := service.NewOrderService(orderRepo, productRepo, ledger, cacheSvc, zlog)

	// HTTP server
	mux := http.NewServeMux()
	handler.NewHTTPHandler(productSvc, orderSvc, zlog).Register(mux)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		zlog.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			zlog.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	zlog.Info("HTTP server stopped")

	rdb.Close()
	db.Close()
	zlog.Info("connections closed")
}
