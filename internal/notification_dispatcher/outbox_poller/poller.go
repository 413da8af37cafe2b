package outbox_poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mortgage-deed-signing/internal/config"
	"github.com/mortgage-deed-signing/internal/domain/notification"
	"github.com/mortgage-deed-signing/internal/domain/shared"
	"github.com/mortgage-deed-signing/internal/notification_dispatcher/service"
	"github.com/mortgage-deed-signing/internal/platform/metrics"
)

// Poller moves committed notification requests from the outbox to the transport.
// Rows become visible only after the transition that wrote them committed.
type Poller struct {
	outboxRepo       notification.OutboxRepository
	publisher        RequestPublisher
	failures         service.FailureRecorder
	metrics          *metrics.Metrics
	logger           *slog.Logger
	pollInterval     time.Duration
	batchSize        int
	maxRetryAttempts int
}

func NewPoller(
	cfg *config.OutboxConfig,
	outboxRepo notification.OutboxRepository,
	publisher RequestPublisher,
	failures service.FailureRecorder,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Poller {
	return &Poller{
		outboxRepo:       outboxRepo,
		publisher:        publisher,
		failures:         failures,
		metrics:          m,
		logger:           logger,
		pollInterval:     cfg.PollingInterval,
		batchSize:        cfg.BatchSize,
		maxRetryAttempts: cfg.MaxRetryAttempts,
	}
}

// Start polls until ctx is canceled.
func (p *Poller) Start(ctx context.Context) error {
	p.logger.Info("Starting outbox poller",
		"poll_interval", p.pollInterval.String(),
		"batch_size", p.batchSize,
		"max_retry_attempts", p.maxRetryAttempts,
	)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox poller stopping")
			return nil
		case <-ticker.C:
			if _, err := p.processPendingMessages(ctx); err != nil {
				p.logger.Error("Error during batch processing of pending outbox messages", "error", err)
			}
		}
	}
}

// processPendingMessages returns how many rows were published.
func (p *Poller) processPendingMessages(ctx context.Context) (int, error) {
	messages, err := p.outboxRepo.GetPending(ctx, p.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending outbox messages: %w", err)
	}
	if len(messages) == 0 {
		return 0, nil
	}

	p.logger.Debug("Fetched pending outbox messages", "count", len(messages))

	published := 0
	for _, msg := range messages {
		if ctx.Err() != nil {
			return published, ctx.Err()
		}

		err := p.publisher.PublishRequest(ctx, msg)
		if err == nil {
			published++
			p.metrics.ObserveOutboxPublish("published")
			continue
		}

		log := p.logger.With("outbox_id", msg.ID, "request_id", msg.RequestID.String(), "deed_id", msg.DeedID)
		log.Error("Failed to publish outbox message", "attempts", msg.Attempts, "error", err)

		if errors.Is(err, ErrUndecodablePayload) {
			p.giveUp(ctx, log, msg, err.Error())
			continue
		}

		if errInc := p.outboxRepo.IncrementAttempts(ctx, msg.ID); errInc != nil {
			log.Error("Failed to increment attempts for outbox message", "error", errInc)
			continue
		}
		p.metrics.ObserveOutboxPublish("retry")

		if msg.Attempts+1 >= p.maxRetryAttempts {
			p.giveUp(ctx, log, msg, fmt.Sprintf("publish failed after %d attempts: %v", msg.Attempts+1, err))
		}
	}
	return published, nil
}

// giveUp records the failure in the ledger and then marks the row
// FAILED_TO_PUBLISH. A row whose failure could not be recorded stays PENDING
// and is given up again on a later poll.
func (p *Poller) giveUp(ctx context.Context, log *slog.Logger, msg *notification.Message, reason string) {
	log.Warn("Giving up on outbox message, marking as FAILED_TO_PUBLISH", "reason", reason)

	recipient := ""
	if req, err := msg.Request(); err == nil {
		recipient = req.RecipientEmail
	}
	failure := shared.ErrNotificationDispatch{
		RequestID: msg.RequestID.String(),
		Recipient: recipient,
		Reason:    reason,
	}
	if err := p.failures.RecordFailure(ctx, msg.DeedID, failure); err != nil {
		log.Error("Failed to record notification failure in audit ledger", "error", err)
		return
	}

	if err := p.outboxRepo.UpdateStatus(ctx, msg.ID, shared.OutboxStatusFailedToPublish); err != nil {
		log.Error("Failed to update outbox status to FAILED_TO_PUBLISH", "error", err)
		return
	}
	p.metrics.ObserveOutboxPublish("failed")
}
