package outbox_poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/mortgage-deed-signing/internal/domain/notification"
	"github.com/mortgage-deed-signing/internal/domain/shared"
	"github.com/mortgage-deed-signing/internal/logger"
	"github.com/mortgage-deed-signing/internal/platform/messaging/producers"
)

// ErrUndecodablePayload marks outbox rows whose payload is not a notification
// request. Such rows are failed immediately instead of retried.
var ErrUndecodablePayload = errors.New("undecodable outbox payload")

// RequestPublisher hands one outbox row to the notification transport.
type RequestPublisher interface {
	PublishRequest(ctx context.Context, message *notification.Message) error
}

// RequestPublisherImpl publishes to Kafka, records a QUEUED delivery document
// and marks the row PROCESSED, in that order. A crash between the steps
// republishes the request; the transport dedupes on request id.
type RequestPublisherImpl struct {
	outboxRepo notification.OutboxRepository
	deliveries notification.DeliveryRepository
	publisher  producers.MessagePublisher
	logger     *slog.Logger
	now        func() time.Time
}

func NewRequestPublisher(
	outboxRepo notification.OutboxRepository,
	deliveries notification.DeliveryRepository,
	publisher producers.MessagePublisher,
	logger *slog.Logger,
) *RequestPublisherImpl {
	return &RequestPublisherImpl{
		outboxRepo: outboxRepo,
		deliveries: deliveries,
		publisher:  publisher,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (p *RequestPublisherImpl) PublishRequest(ctx context.Context, message *notification.Message) error {
	req, err := message.Request()
	if err != nil {
		return fmt.Errorf("%w: outbox %d: %v", ErrUndecodablePayload, message.ID, err)
	}

	if req.CorrelationID != "" {
		ctx = logger.WithCorrelationID(ctx, req.CorrelationID)
	}
	log := p.logger.With(
		"correlation_id", req.CorrelationID,
		"outbox_id", message.ID,
		"request_id", req.RequestID.String(),
		"deed_id", req.DeedID,
	)

	if err := p.publisher.Publish(ctx, strconv.FormatInt(req.DeedID, 10), message.Payload); err != nil {
		return fmt.Errorf("failed to publish notification request %s: %w", req.RequestID, err)
	}

	err = p.deliveries.Create(ctx, notification.NewDelivery(req, p.now()))
	if err != nil && !errors.Is(err, notification.ErrDuplicateDelivery{}) {
		return fmt.Errorf("request %s published, but failed to record delivery: %w", req.RequestID, err)
	}

	if err := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusProcessed); err != nil {
		return fmt.Errorf("request %s published, but failed to mark outbox %d as PROCESSED: %w", req.RequestID, message.ID, err)
	}

	log.Info("Notification request published", "template_key", string(req.TemplateKey))
	return nil
}

var _ RequestPublisher = (*RequestPublisherImpl)(nil)
