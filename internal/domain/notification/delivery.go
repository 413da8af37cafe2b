package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DeliveryStatus tracks a request after it left the outbox.
type DeliveryStatus string

const (
	DeliveryQueued    DeliveryStatus = "QUEUED"
	DeliveryDelivered DeliveryStatus = "DELIVERED"
	DeliveryFailed    DeliveryStatus = "FAILED"
)

func (s DeliveryStatus) Final() bool {
	return s == DeliveryDelivered || s == DeliveryFailed
}

// Delivery is the document kept per published notification request.
type Delivery struct {
	RequestID      uuid.UUID      `json:"request_id" bson:"request_id"`
	DeedID         int64          `json:"deed_id" bson:"deed_id"`
	RecipientEmail string         `json:"recipient_email" bson:"recipient_email"`
	TemplateKey    TemplateKey    `json:"template_key" bson:"template_key"`
	Status         DeliveryStatus `json:"status" bson:"status"`
	FailureReason  string         `json:"failure_reason,omitempty" bson:"failure_reason,omitempty"`
	CorrelationID  string         `json:"correlation_id,omitempty" bson:"correlation_id,omitempty"`
	QueuedAt       time.Time      `json:"queued_at" bson:"queued_at"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
}

func NewDelivery(req *Request, queuedAt time.Time) *Delivery {
	return &Delivery{
		RequestID:      req.RequestID,
		DeedID:         req.DeedID,
		RecipientEmail: req.RecipientEmail,
		TemplateKey:    req.TemplateKey,
		Status:         DeliveryQueued,
		CorrelationID:  req.CorrelationID,
		QueuedAt:       queuedAt,
	}
}

// DeliveryRepository stores delivery documents.
type DeliveryRepository interface {
	Create(ctx context.Context, d *Delivery) error
	GetByRequestID(ctx context.Context, requestID uuid.UUID) (*Delivery, error)
	ListByDeedID(ctx context.Context, deedID int64, limit, offset int) ([]*Delivery, error)
	CountByDeedID(ctx context.Context, deedID int64) (int64, error)
	// Complete moves a queued delivery to a final status; it is a no-op for
	// deliveries that are already final.
	Complete(ctx context.Context, requestID uuid.UUID, status DeliveryStatus, reason string, at time.Time) error
}

type ErrDeliveryNotFound struct {
	RequestID uuid.UUID
}

func (e ErrDeliveryNotFound) Error() string {
	return "delivery not found: " + e.RequestID.String()
}

func (e ErrDeliveryNotFound) Is(target error) bool {
	t, ok := target.(ErrDeliveryNotFound)
	if !ok {
		return false
	}
	return t.RequestID == uuid.Nil || t.RequestID == e.RequestID
}

type ErrDuplicateDelivery struct {
	RequestID uuid.UUID
}

func (e ErrDuplicateDelivery) Error() string {
	return "duplicate delivery: " + e.RequestID.String()
}

func (e ErrDuplicateDelivery) Is(target error) bool {
	t, ok := target.(ErrDuplicateDelivery)
	if !ok {
		return false
	}
	return t.RequestID == uuid.Nil || t.RequestID == e.RequestID
}
