package components

import (
	"log/slog"

	"github.com/mortgage-deed-signing/internal/config"
	"github.com/mortgage-deed-signing/internal/domain/notification"
	"github.com/mortgage-deed-signing/internal/ledger"
	"github.com/mortgage-deed-signing/internal/notification_dispatcher/service"
	"github.com/mortgage-deed-signing/internal/platform/metrics"
)

// CreateReceiptService wires the receipt applier behind a worker pool. The
// returned function releases the pool; it is a no-op for the fallback.
func CreateReceiptService(
	deliveries notification.DeliveryRepository,
	auditLedger *ledger.Ledger,
	m *metrics.Metrics,
	logger *slog.Logger,
	cfg *config.Config,
) (service.ReceiptService, func()) {
	recorder := NewFailureRecorder(auditLedger, logger.With("component", "failure_recorder"))
	applier := NewReceiptApplier(deliveries, recorder, m, logger.With("component", "receipt_applier"))

	pooled, err := service.NewWorkerPoolReceiptService(
		applier,
		service.WorkerPoolConfig{Size: cfg.WorkerPool.Size},
		logger.With("component", "worker_pool"),
	)
	if err != nil {
		logger.Error("Failed to create worker pool, applying receipts inline", "error", err)
		return applier, func() {}
	}

	logger.Info("Created worker pool receipt service", "pool_size", cfg.WorkerPool.Size)
	return pooled, pooled.Shutdown
}
