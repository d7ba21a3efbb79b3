package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"stk-relay/internal/config"
	"stk-relay/internal/infra"
	"stk-relay/internal/payment_processor"
	"stk-relay/internal/payments"
	"stk-relay/internal/payments/handlers"
	"stk-relay/internal/payments/repository"
	"stk-relay/internal/redis"
	"syscall"
	"time"

	"github.com/NYTimes/gziphandler"
)

func main() {
	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config.LoadDotEnv()
	cfg, err := config.LoadEnvironmentConfig()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		panic(err)
	}

	ledger, closeLedger, err := openLedger(ctx, cfg)
	if err != nil {
		slog.Error("failed to open ledger", "driver", cfg.LedgerDriver, "error", err)
		panic(err)
	}
	defer closeLedger()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			slog.Error("failed to connect to Redis", "error", err)
			panic(err)
		}
		defer redisClient.Close()
	}

	var correlations repository.Correlation
	if cfg.CorrelationBackend == config.CorrelationRedis {
		correlations = payments.NewCorrelationRedisStore(redisClient.Client, cfg.CorrelationTTL)
	} else {
		store := payments.NewCorrelationInMemoryStore(cfg.CorrelationTTL)
		store.StartJanitor(ctx, cfg.CorrelationSweepInterval)
		correlations = store
	}

	oauth := payment_processor.NewOAuthTokenProvider(cfg.DarajaBaseURL, cfg.ConsumerKey, cfg.ConsumerSecret, cfg.UpstreamTimeout)
	var tokens payment_processor.TokenProvider = oauth
	if redisClient != nil {
		tokens = payment_processor.NewCachedTokenProvider(redisClient.Client, oauth)
	}

	service := payments.NewPaymentService(
		correlations,
		ledger,
		payment_processor.NewDarajaGateway(cfg.DarajaBaseURL, cfg.UpstreamTimeout),
		tokens,
		payments.Options{
			ShortCode:        cfg.ShortCode,
			Passkey:          cfg.Passkey,
			CallbackURL:      cfg.CallbackURL,
			TransactionType:  cfg.TransactionType,
			AccountReference: cfg.AccountReference,
			TransactionDesc:  cfg.TransactionDesc,
			CountryCode:      cfg.PhoneCountryCode,
			TrunkPrefix:      cfg.PhoneTrunkPrefix,
			Location:         cfg.TimestampLocation,
		},
	)
	if redisClient != nil {
		service.WithFailureReporter(infra.NewLedgerQueue(redisClient.Client, redisClient.Lock, ledger, cfg.WorkerPoolSize))
	} else {
		slog.Warn("REDIS_URL not set: ledger failures will be answered with 500 and not queued")
	}

	router := handlers.NewRouter(service, handlers.RouterConfig{CallbackSecret: cfg.CallbackSecret})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           gziphandler.GzipHandler(recoverMiddleware(router)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("server started", "addr", server.Addr, "ledger", cfg.LedgerDriver, "correlationBackend", cfg.CorrelationBackend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start server", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	stop()
	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server.Shutdown(shutdownCtx)
}

type closableLedger interface {
	repository.Ledger
	Close()
}

func openLedger(ctx context.Context, cfg *config.Settings) (repository.Ledger, func(), error) {
	var ledger closableLedger
	switch cfg.LedgerDriver {
	case config.LedgerSQLite:
		repo, err := payments.NewLedgerSQLiteRepository(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		ledger = repo
	default:
		repo, err := payments.NewLedgerPostgresRepository(ctx, cfg.ConnString)
		if err != nil {
			return nil, nil, err
		}
		if err := repo.Migrate(ctx); err != nil {
			repo.Close()
			return nil, nil, err
		}
		ledger = repo
	}
	return ledger, ledger.Close, nil
}

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("panic recovered", "error", rec, "path", r.URL.Path)
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
