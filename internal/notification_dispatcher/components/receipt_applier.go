package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mortgage-deed-signing/internal/domain/notification"
	"github.com/mortgage-deed-signing/internal/domain/shared"
	"github.com/mortgage-deed-signing/internal/notification_dispatcher/service"
	"github.com/mortgage-deed-signing/internal/platform/metrics"
)

// ReceiptApplier moves delivery documents to their final status and records
// failed deliveries in the audit ledger. Replayed receipts change nothing.
type ReceiptApplier struct {
	deliveries notification.DeliveryRepository
	failures   service.FailureRecorder
	metrics    *metrics.Metrics
	logger     *slog.Logger
	now        func() time.Time
}

func NewReceiptApplier(
	deliveries notification.DeliveryRepository,
	failures service.FailureRecorder,
	m *metrics.Metrics,
	logger *slog.Logger,
) *ReceiptApplier {
	return &ReceiptApplier{
		deliveries: deliveries,
		failures:   failures,
		metrics:    m,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// ApplyReceipt records a failed delivery in the ledger before it stores the
// final status. A final delivery short-circuits replays, so the ledger entry
// is written at least once: a replay after a failed status write appends it
// again.
func (a *ReceiptApplier) ApplyReceipt(ctx context.Context, receipt *notification.Receipt) error {
	logger := a.logger.With("request_id", receipt.RequestID.String(), "deed_id", receipt.DeedID)

	status := notification.DeliveryDelivered
	if !receipt.Succeeded {
		status = notification.DeliveryFailed
	}

	existing, err := a.deliveries.GetByRequestID(ctx, receipt.RequestID)
	found := err == nil
	switch {
	case found && existing.Status.Final():
		logger.Info("Receipt already applied", "status", string(existing.Status))
		a.metrics.ObserveReceipt("duplicate")
		return nil
	case found, errors.Is(err, notification.ErrDeliveryNotFound{}):
	default:
		return fmt.Errorf("failed to load delivery %s: %w", receipt.RequestID, err)
	}

	if status == notification.DeliveryFailed {
		err := a.failures.RecordFailure(ctx, receipt.DeedID, shared.ErrNotificationDispatch{
			RequestID: receipt.RequestID.String(),
			Recipient: receipt.RecipientEmail,
			Reason:    failureReason(receipt.Error),
		})
		if err != nil {
			return err
		}
	}

	if found {
		if err := a.deliveries.Complete(ctx, receipt.RequestID, status, receipt.Error, a.completedAt(receipt)); err != nil {
			return fmt.Errorf("failed to complete delivery %s: %w", receipt.RequestID, err)
		}
	} else {
		// The receipt overtook the dispatcher's own write of the delivery document.
		if err := a.createCompleted(ctx, receipt, status); err != nil {
			return err
		}
	}

	if status == notification.DeliveryFailed {
		logger.Warn("Notification delivery failed", "reason", failureReason(receipt.Error))
		a.metrics.ObserveReceipt("failed")
		return nil
	}
	logger.Info("Notification delivered")
	a.metrics.ObserveReceipt("delivered")
	return nil
}

func (a *ReceiptApplier) createCompleted(ctx context.Context, receipt *notification.Receipt, status notification.DeliveryStatus) error {
	completedAt := a.completedAt(receipt)
	d := &notification.Delivery{
		RequestID:      receipt.RequestID,
		DeedID:         receipt.DeedID,
		RecipientEmail: receipt.RecipientEmail,
		TemplateKey:    receipt.TemplateKey,
		Status:         status,
		FailureReason:  receipt.Error,
		QueuedAt:       completedAt,
		CompletedAt:    &completedAt,
	}
	err := a.deliveries.Create(ctx, d)
	if errors.Is(err, notification.ErrDuplicateDelivery{}) {
		err = a.deliveries.Complete(ctx, receipt.RequestID, status, receipt.Error, completedAt)
	}
	if err != nil {
		return fmt.Errorf("failed to store delivery %s: %w", receipt.RequestID, err)
	}
	return nil
}

func (a *ReceiptApplier) completedAt(receipt *notification.Receipt) time.Time {
	if receipt.OccurredAt.IsZero() {
		return a.now()
	}
	return receipt.OccurredAt.UTC()
}

func failureReason(reason string) string {
	if reason == "" {
		return "transport reported failure"
	}
	return reason
}

var _ service.ReceiptService = (*ReceiptApplier)(nil)
