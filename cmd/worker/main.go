package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"stk-relay/internal/config"
	"stk-relay/internal/infra"
	"stk-relay/internal/payments"
	"stk-relay/internal/payments/repository"
	"stk-relay/internal/redis"
	"syscall"
)

// The worker replays ledger entries the relay could not persist.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config.LoadDotEnv()
	cfg, err := config.LoadStorageConfig()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		panic(err)
	}

	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("failed to connect to Redis", "error", err)
		panic(err)
	}
	defer redisClient.Close()

	var ledger repository.Ledger
	switch cfg.LedgerDriver {
	case config.LedgerSQLite:
		repo, err := payments.NewLedgerSQLiteRepository(cfg.SQLitePath)
		if err != nil {
			slog.Error("failed to open SQLite ledger", "error", err)
			panic(err)
		}
		defer repo.Close()
		ledger = repo
	default:
		repo, err := payments.NewLedgerPostgresRepository(ctx, cfg.ConnString)
		if err != nil {
			slog.Error("failed to connect to PostgreSQL", "error", err)
			panic(err)
		}
		defer repo.Close()
		ledger = repo
	}

	queue := infra.NewLedgerQueue(redisClient.Client, redisClient.Lock, ledger, cfg.WorkerPoolSize)
	if err := queue.Start(ctx); err != nil {
		slog.Error("ledger retry queue failed", "error", err)
		os.Exit(1)
	}
}
