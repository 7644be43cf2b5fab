package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/openbooks-dev/openbooks/internal/api"
	"github.com/openbooks-dev/openbooks/internal/config"
	"github.com/openbooks-dev/openbooks/internal/documents"
	"github.com/openbooks-dev/openbooks/internal/ledger"
	"github.com/openbooks-dev/openbooks/internal/reconcile"
	"github.com/openbooks-dev/openbooks/internal/reports"
	"github.com/openbooks-dev/openbooks/internal/security"
	"github.com/openbooks-dev/openbooks/pkg/audit"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	allowlist, err := security.ParseCIDRAllowlist(cfg.AllowedCIDRs)
	if err != nil {
		logger.Error("invalid ALLOWED_CIDRS", "error", err)
		os.Exit(1)
	}

	deps := api.Dependencies{
		Logger:       logger,
		IPAllowlist:  allowlist,
		MaxBodyBytes: cfg.MaxBodyBytes,
	}

	switch cfg.Backend {
	case config.BackendPostgres:
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to create postgres pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		ledgerStore := &ledger.PostgresStore{Pool: pool}
		deps.Ledger = ledger.NewService(ledgerStore, logger)
		deps.Documents = documents.NewService(&documents.PostgresStore{Ledger: ledgerStore}, ledgerStore, logger)
		deps.Reports = reports.NewService(&reports.PostgresStore{Ledger: ledgerStore}, logger)
		deps.Reconcile = reconcile.NewService(&reconcile.PostgresStore{Ledger: ledgerStore}, ledgerStore, logger)

	case config.BackendMemory:
		logger.Warn("using the in-memory backend; all data is lost on shutdown")
		ledgerStore := ledger.NewMemoryStore()
		deps.Ledger = ledger.NewService(ledgerStore, logger)
		deps.Documents = documents.NewService(documents.NewMemoryStore(ledgerStore), ledgerStore, logger)
		deps.Reports = reports.NewService(reports.NewMemoryStore(ledgerStore), logger)
		deps.Reconcile = reconcile.NewService(reconcile.NewMemoryStore(ledgerStore), ledgerStore, logger)
	}

	if cfg.AuditDBPath != "" {
		sink, err := audit.OpenSQLiteSink(cfg.AuditDBPath)
		if err != nil {
			logger.Error("failed to open audit trail", "error", err)
			os.Exit(1)
		}
		defer sink.Close()

		lastHash, err := sink.LastHash()
		if err != nil {
			logger.Error("failed to read audit trail tip", "error", err)
			os.Exit(1)
		}
		auditor := audit.NewChainLogger(sink, func(err error) {
			logger.Error("failed to persist audit entry", "error", err)
		})
		auditor.Resume(lastHash)
		deps.Auditor = auditor
	}

	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		deps.RateLimiter = &security.RedisTokenBucket{
			Redis:      redisClient,
			Prefix:     "openbooks_api",
			Capacity:   cfg.RateLimitCapacity,
			RefillRate: cfg.RateLimitRefill,
		}
	}

	router, err := api.NewRouter(deps)
	if err != nil {
		logger.Error("failed to build router", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	logger.Info("openbooks api listening", "addr", cfg.ListenAddr, "backend", cfg.Backend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
