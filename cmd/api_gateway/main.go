package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/mortgage-deed-signing/internal/api_gateway"
	"github.com/mortgage-deed-signing/internal/api_gateway/handler"
	"github.com/mortgage-deed-signing/internal/api_gateway/service"
	"github.com/mortgage-deed-signing/internal/config"
	"github.com/mortgage-deed-signing/internal/data/mongo"
	"github.com/mortgage-deed-signing/internal/data/postgres"
	"github.com/mortgage-deed-signing/internal/durations"
	"github.com/mortgage-deed-signing/internal/ledger"
	"github.com/mortgage-deed-signing/internal/logger"
	"github.com/mortgage-deed-signing/internal/platform/cache"
	"github.com/mortgage-deed-signing/internal/platform/metrics"
	"github.com/mortgage-deed-signing/internal/platform/persistence"
	"github.com/mortgage-deed-signing/internal/signing"
	"github.com/mortgage-deed-signing/internal/stats"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("api_gateway")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	if err := persistence.RunMigrations(log, cfg.Postgres.URL, cfg.Postgres.MigrationsPath); err != nil {
		log.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// Initialize repositories
	deedRepo := postgres.NewDeedRepository(log, postgresDB.Pool())
	auditLedger := ledger.New(postgres.NewAuditRepository(log, postgresDB.Pool()), log, ledger.WithPageSize(cfg.Ledger.PageSize))
	outboxRepo := postgres.NewNotificationOutboxRepository(log, postgresDB.Pool())
	deliveryRepo := mongo.NewDeliveryRepository(log, mongoDB.Database())

	statsOpts := []stats.Option{stats.WithMetrics(m)}
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = cache.OpenRedis(cfg.Redis.Addr, cfg.Redis.DB)
		if err != nil {
			// statistics are still served, only uncached
			log.Warn("Redis unavailable, statistics cache disabled", "addr", cfg.Redis.Addr, "error", err)
		} else {
			statsOpts = append(statsOpts, stats.WithCache(cache.NewSnapshotCache(rdb, "stats:"), cfg.Redis.StatsTTL))
		}
	}

	// Initialize services
	engine := signing.NewEngine(
		postgresDB,
		deedRepo,
		auditLedger,
		outboxRepo,
		signing.NewComposer(cfg.Notification.FromName, cfg.Notification.FrontendURL),
		log.With("component", "signing_engine"),
		signing.WithMetrics(m),
	)
	services := api_gateway.Services{
		Signing: engine,
		Queries: service.NewDeedQueryService(engine, auditLedger, durations.NewAccumulator(deedRepo, auditLedger, nil), deliveryRepo),
		Stats:   stats.NewAggregator(deedRepo, auditLedger, log.With("component", "stats"), statsOpts...),
		Health: map[string]handler.Pinger{
			"postgres": postgresDB,
			"mongodb":  mongoDB,
		},
	}

	server := api_gateway.NewServer(log, cfg, services, m, registry)
	log.Info("REST server initialized")

	// Create error channel for server errors
	errChan := make(chan error, 1)

	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	cancelAppCtx()

	log.Info("Starting graceful shutdown...")

	// Stop accepting requests before the pools they use go away
	shutdownErr := server.Stop(context.Background())
	if shutdownErr != nil {
		log.Error("Error during server shutdown", "error", shutdownErr)
	}

	postgresDB.Close()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	if err := mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
		shutdownErr = err
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			log.Error("Error closing Redis client", "error", err)
			shutdownErr = err
		}
	}

	if serverErr != nil || shutdownErr != nil {
		log.Error("Server shutdown completed with errors")
		os.Exit(1)
	}
	log.Info("Server shutdown completed successfully")
}
