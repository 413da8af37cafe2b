package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mortgage-deed-signing/internal/domain/notification"
	"github.com/mortgage-deed-signing/internal/logger"
	"github.com/mortgage-deed-signing/internal/notification_dispatcher/service"
	"github.com/mortgage-deed-signing/internal/platform/messaging/producers"
	"github.com/segmentio/kafka-go"
)

// ReceiptHandler handles delivery receipts consumed from the transport.
type ReceiptHandler struct {
	receipts service.ReceiptService
	dlq      producers.DeadLetterPublisher
	logger   *slog.Logger
}

func NewReceiptHandler(
	logger *slog.Logger,
	receipts service.ReceiptService,
	dlq producers.DeadLetterPublisher,
) *ReceiptHandler {
	return &ReceiptHandler{
		receipts: receipts,
		dlq:      dlq,
		logger:   logger,
	}
}

// HandleMessage applies one receipt. Receipts that can never be applied go to
// the DLQ and their offset is committed; other failures leave it uncommitted.
func (h *ReceiptHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	if id := correlationID(msg); id != "" {
		ctx = logger.WithCorrelationID(ctx, id)
	}
	log := h.logger.With("correlation_id", logger.CorrelationID(ctx), "message_key", string(msg.Key))

	var receipt notification.Receipt
	if err := json.Unmarshal(msg.Value, &receipt); err != nil {
		return h.deadLetter(ctx, log, msg, fmt.Sprintf("malformed receipt: %s", err))
	}
	if err := receipt.Validate(); err != nil {
		return h.deadLetter(ctx, log, msg, fmt.Sprintf("invalid receipt: %s", err))
	}

	log = log.With("request_id", receipt.RequestID.String(), "deed_id", receipt.DeedID)
	log.Info("Received delivery receipt", "succeeded", receipt.Succeeded)

	if err := h.receipts.ApplyReceipt(ctx, &receipt); err != nil {
		log.Error("Failed to apply delivery receipt", "error", err)
		return fmt.Errorf("applying receipt %s failed: %w", receipt.RequestID, err)
	}
	return nil
}

func (h *ReceiptHandler) deadLetter(ctx context.Context, log *slog.Logger, msg kafka.Message, reason string) error {
	log.Error("Unprocessable delivery receipt", "reason", reason)
	if h.dlq == nil {
		return fmt.Errorf("%s", reason)
	}
	if err := h.dlq.Park(ctx, msg, reason); err != nil {
		log.Error("Failed to publish receipt to DLQ", "dlq_error", err)
		return fmt.Errorf("%s (dlq: %w)", reason, err)
	}
	return nil
}

func correlationID(msg kafka.Message) string {
	for _, h := range msg.Headers {
		if h.Key == producers.CorrelationHeader {
			return string(h.Value)
		}
	}
	return ""
}
