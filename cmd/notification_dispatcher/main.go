package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/mortgage-deed-signing/internal/config"
	"github.com/mortgage-deed-signing/internal/data/mongo"
	"github.com/mortgage-deed-signing/internal/data/postgres"
	"github.com/mortgage-deed-signing/internal/ledger"
	"github.com/mortgage-deed-signing/internal/logger"
	"github.com/mortgage-deed-signing/internal/notification_dispatcher/components"
	"github.com/mortgage-deed-signing/internal/notification_dispatcher/consumer"
	"github.com/mortgage-deed-signing/internal/notification_dispatcher/outbox_poller"
	"github.com/mortgage-deed-signing/internal/platform/messaging/consumers"
	"github.com/mortgage-deed-signing/internal/platform/messaging/producers"
	"github.com/mortgage-deed-signing/internal/platform/metrics"
	"github.com/mortgage-deed-signing/internal/platform/persistence"
)

func main() {
	appCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	cfg, err := config.LoadConfig("notification_dispatcher")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)
	log.Info("Starting Notification Dispatcher",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer postgresDB.Close()

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	deliveryRepo := mongo.NewDeliveryRepository(log, mongoDB.Database())
	if err := deliveryRepo.EnsureIndexes(appCtx); err != nil {
		log.Error("Failed to ensure delivery indexes", "error", err)
		os.Exit(1)
	}
	outboxRepo := postgres.NewNotificationOutboxRepository(log, postgresDB.Pool())
	auditLedger := ledger.New(postgres.NewAuditRepository(log, postgresDB.Pool()), log, ledger.WithPageSize(cfg.Ledger.PageSize))

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	requestProducer, err := producers.NewNotificationRequestProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize notification request producer", "error", err)
		os.Exit(1)
	}

	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}

	// A disabled DLQ must reach the handler as a nil interface, not a nil *DLQProducer.
	var dlq producers.DeadLetterPublisher
	if dlqProducer != nil {
		dlq = dlqProducer
	}

	receiptService, shutdownPool := components.CreateReceiptService(deliveryRepo, auditLedger, m, log, cfg)
	receiptHandler := consumer.NewReceiptHandler(log.With("component", "receipt_handler"), receiptService, dlq)
	receiptConsumer := consumers.NewKafkaConsumer(log, &cfg.Kafka, cfg.Kafka.ReceiptTopic)

	poller := outbox_poller.NewPoller(
		&cfg.Outbox,
		outboxRepo,
		outbox_poller.NewRequestPublisher(outboxRepo, deliveryRepo, requestProducer, log.With("component", "request_publisher")),
		components.NewFailureRecorder(auditLedger, log.With("component", "failure_recorder")),
		m,
		log.With("component", "outbox_poller"),
	)

	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
	}

	g, gctx := errgroup.WithContext(appCtx)
	g.Go(func() error {
		return poller.Start(gctx)
	})
	g.Go(func() error {
		log.Info("Starting receipt consumer",
			"topic", cfg.Kafka.ReceiptTopic,
			"group", cfg.Kafka.ConsumerGroup,
		)
		return receiptConsumer.Subscribe(gctx, receiptHandler.HandleMessage)
	})
	g.Go(func() error {
		log.Info("Serving metrics", "port", cfg.Server.Port)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	serviceErr := g.Wait()
	log.Info("Starting graceful shutdown...")

	shutdownPool()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	if err := receiptConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}
	if err := requestProducer.Close(); err != nil {
		log.Error("Error closing notification request producer", "error", err)
	}
	if err := dlqProducer.Close(); err != nil {
		log.Error("Error closing DLQ Kafka producer", "error", err)
	}
	if err := mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	if serviceErr != nil {
		log.Error("Notification Dispatcher shutdown with errors", "error", serviceErr)
		os.Exit(1)
	}
	log.Info("Notification Dispatcher shutdown completed successfully")
}
