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

	"github.com/rl1809/mall-ledger/internal/adapter/handler"
	"github.com/rl1809/mall-ledger/internal/adapter/storage"
	"github.com/rl1809/mall-ledger/internal/config"
	"github.com/rl1809/mall-ledger/internal/core/service"
	"github.com/rl1809/mall-ledger/internal/job"
)

func main() {
	cfg := config.MustLoad()

	logger := mustLogger(cfg.Env)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// MySQL
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		logger.Fatal("failed to open mysql", zap.Error(err))
	}
	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal("failed to ping mysql", zap.Error(err))
	}
	logger.Info("connected to mysql")

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	logger.Info("connected to redis")

	redisAdapter := storage.NewRedisAdapter(rdb)
	mysqlAdapter := storage.NewMySQLAdapter(db)

	// Cache must hold durable truth before any traffic is accepted.
	warmUp := service.NewWarmUpLoader(mysqlAdapter, redisAdapter, logger)
	if err := warmUp.Run(ctx); err != nil {
		logger.Fatal("cache warm-up failed", zap.Error(err))
	}

	reconciler := service.NewReconciler(mysqlAdapter, redisAdapter, logger, cfg.Reconciler.Workers, cfg.Reconciler.QueueSize)
	reconciler.Start()
	logger.Info("reconciler started", zap.Int("workers", cfg.Reconciler.Workers))

	orderService := service.NewOrderService(mysqlAdapter, redisAdapter, reconciler, logger)
	merchantService := service.NewMerchantService(mysqlAdapter, redisAdapter, logger)
	accountService := service.NewAccountService(mysqlAdapter, redisAdapter, logger)
	settlementService := service.NewSettlementService(mysqlAdapter, logger)

	settlementJob := job.NewSettlementJob(settlementService, logger, cfg.Settlement.Hour)
	go settlementJob.Run(ctx)

	httpHandler := handler.NewHTTPHandler(orderService, merchantService, accountService, settlementService)
	mux := http.NewServeMux()
	httpHandler.Register(mux)

	httpServer := &http.Server{
		Addr:    cfg.HTTP.Port,
		Handler: mux,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTP.Port))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	logger.Info("HTTP server stopped")

	cancel()

	reconciler.Close()
	logger.Info("reconciler drained")

	rdb.Close()
	db.Close()
	logger.Info("connections closed")
}

func mustLogger(env string) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if env == "local" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	return logger
}
