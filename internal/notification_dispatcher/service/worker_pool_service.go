package service

import (
	"context"
	"log/slog"

	"github.com/mortgage-deed-signing/internal/domain/notification"
	"github.com/panjf2000/ants/v2"
)

// WorkerPoolReceiptService runs receipts on a bounded ants pool so a burst of
// receipts cannot exhaust the Mongo and Postgres connection pools.
type WorkerPoolReceiptService struct {
	baseService ReceiptService
	pool        *ants.Pool
	logger      *slog.Logger
}

type WorkerPoolConfig struct {
	Size int
}

func NewWorkerPoolReceiptService(
	baseService ReceiptService,
	config WorkerPoolConfig,
	logger *slog.Logger,
) (*WorkerPoolReceiptService, error) {
	pool, err := ants.NewPool(config.Size)
	if err != nil {
		return nil, err
	}

	return &WorkerPoolReceiptService{
		baseService: baseService,
		pool:        pool,
		logger:      logger,
	}, nil
}

// ApplyReceipt submits the receipt to the pool and waits for its result.
func (s *WorkerPoolReceiptService) ApplyReceipt(ctx context.Context, receipt *notification.Receipt) error {
	resultChan := make(chan error, 1)
	receiptCopy := *receipt

	err := s.pool.Submit(func() {
		resultChan <- s.baseService.ApplyReceipt(ctx, &receiptCopy)
	})
	if err != nil {
		s.logger.Error("Failed to submit receipt to worker pool",
			"request_id", receipt.RequestID.String(),
			"error", err,
		)
		return err
	}

	select {
	case err := <-resultChan:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown releases the pool once running tasks finish.
func (s *WorkerPoolReceiptService) Shutdown() {
	s.logger.Info("Shutting down worker pool", "running_workers", s.pool.Running())
	s.pool.Release()
}

func (s *WorkerPoolReceiptService) Running() int {
	return s.pool.Running()
}

func (s *WorkerPoolReceiptService) Capacity() int {
	return s.pool.Cap()
}
