package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradepairs/pairs-backend/internal/api"
	"github.com/tradepairs/pairs-backend/internal/auth"
	"github.com/tradepairs/pairs-backend/internal/config"
	"github.com/tradepairs/pairs-backend/internal/log"
	"github.com/tradepairs/pairs-backend/internal/maintenance"
	"github.com/tradepairs/pairs-backend/internal/metrics"
	"github.com/tradepairs/pairs-backend/internal/pairs"
	"github.com/tradepairs/pairs-backend/internal/perpetuals"
	"github.com/tradepairs/pairs-backend/internal/positions"
	"github.com/tradepairs/pairs-backend/internal/trade"
	"github.com/tradepairs/pairs-backend/internal/ws"
	"github.com/tradepairs/pairs-backend/pkg/kv"
	_ "github.com/tradepairs/pairs-backend/pkg/kv/memory"
	_ "github.com/tradepairs/pairs-backend/pkg/kv/redis"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger, err := log.NewSugar(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Infow("Starting pairs API server",
		"env", cfg.Env,
		"addr", cfg.HTTPAddr,
		"pairs", pairs.Default().Len(),
		"perpetuals", perpetuals.Default().Len(),
	)

	// Setup metrics
	metricsObj, metricsHandler, err := metrics.Setup("pairs-backend")
	if err != nil {
		logger.Fatalw("Failed to setup metrics", "error", err)
	}

	// Setup key-value store for maintenance switches
	store, err := kv.NewStoreFromConfig(kv.Config{
		Backend:         kv.Backend(cfg.KV.Backend),
		RedisURL:        cfg.KV.RedisURL,
		FailoverEnabled: cfg.KV.Failover,
		ProbeInterval:   cfg.KV.ProbeInterval,
		Logger:          log.WarnFunc(log.Named(logger, "kv")),
		OnFailover: func(active string) {
			metricsObj.RecordKVFailover(context.Background(), active)
		},
	})
	if err != nil {
		logger.Fatalw("Failed to setup kv store", "error", err)
	}
	defer store.Close()
	logger.Infow("KV store ready", "backend", cfg.KV.Backend, "failover", cfg.KV.Failover)

	// Create context for background services
	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()

	// Setup WebSocket hub; it also serves SSE streams
	wsHub := ws.NewHub(log.Named(logger, "ws"), metricsObj, cfg.Security.CORSAllowedOrigins)
	go wsHub.Run(hubCtx)

	maintenanceSvc := maintenance.NewService(store, wsHub, log.Named(logger, "maintenance"), metricsObj)
	seedCtx, seedCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := maintenanceSvc.Seed(seedCtx, cfg.Trading.LockedStates()); err != nil {
		logger.Fatalw("Failed to seed maintenance switches", "error", err)
	}
	seedCancel()

	tradeCfg := trade.DefaultConfig()
	tradeCfg.MaxMarginLeverage = decimal.NewFromInt(cfg.Trading.MaxMarginLeverage)
	tradeSvc := trade.NewService(pairs.Default(), perpetuals.Default(), maintenanceSvc, tradeCfg, log.Named(logger, "trade"))

	// Setup position storage
	var repo positions.Repository
	switch cfg.Positions.Backend {
	case "postgres":
		connectCtx, connectCancel := context.WithTimeout(context.Background(), 10*time.Second)
		pool, err := positions.Connect(connectCtx, cfg.Positions.PostgresDSN, cfg.Positions.MaxConns)
		connectCancel()
		if err != nil {
			logger.Fatalw("Failed to connect to postgres", "error", err)
		}
		defer pool.Close()
		repo = positions.NewPostgresRepository(pool)
		logger.Infow("Positions stored in postgres", "max_conns", cfg.Positions.MaxConns)
	default:
		repo = positions.NewMemoryRepository()
		logger.Warnw("Positions stored in memory; history is lost on restart")
	}
	positionSvc := positions.NewService(repo, tradeSvc, pairs.Default(), wsHub, log.Named(logger, "positions"))

	// Admin token verifier; maintenance writes are disabled without a secret
	var verifier api.TokenVerifier
	if cfg.AdminEnabled() {
		verifier = auth.NewService(cfg.Security.AdminJWTIssuer, []byte(cfg.Security.AdminJWTSecret))
	} else {
		logger.Warnw("Admin JWT secret not set; maintenance updates disabled")
	}

	// Setup API handler and middleware
	handler := api.NewHandler(
		pairs.Default(),
		perpetuals.Default(),
		maintenanceSvc,
		tradeSvc,
		positionSvc,
		wsHub,
		store.Ping,
		logger,
		metricsObj,
	)
	middleware := api.NewMiddleware(logger, metricsObj, verifier)
	router := handler.Routes(middleware, cfg.Security.CORSAllowedOrigins, cfg.Security.RateLimitRPM, metricsHandler)

	logger.Infow("CORS configured", "allowed_origins", cfg.Security.CORSAllowedOrigins)

	// Streams stay open, so there is no server-wide write timeout; the API
	// routes carry their own.
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in background
	serverErrors := make(chan error, 1)
	go func() {
		logger.Infow("API server starting", "addr", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	// Wait for interrupt signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalw("Server startup failed", "error", err)
		}
	case sig := <-shutdown:
		logger.Infow("Shutdown signal received", "signal", sig.String())

		// Stop the hub first so stream handlers return.
		hubCancel()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Errorw("Graceful shutdown failed", "error", err)
			server.Close()
		}

		logger.Infow("Server stopped")
	}
}
