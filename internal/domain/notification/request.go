package notification

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// TemplateKey names the message template the transport renders.
type TemplateKey string

const (
	TemplateBorrowerSign                TemplateKey = "borrower_sign"
	TemplateCooperativeSigningInitiated TemplateKey = "cooperative_signing_initiated"
	TemplateCooperativeSign             TemplateKey = "cooperative_sign"
	TemplateDeedCompleted               TemplateKey = "deed_completed"
)

type Recipient struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Request is what the notification transport receives. Context holds the
// template variables.
type Request struct {
	RequestID      uuid.UUID         `json:"request_id"`
	DeedID         int64             `json:"deed_id"`
	RecipientEmail string            `json:"recipient_email"`
	RecipientName  string            `json:"recipient_name"`
	TemplateKey    TemplateKey       `json:"template_key"`
	Context        map[string]string `json:"context"`
	CorrelationID  string            `json:"correlation_id,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

func NewRequest(deedID int64, to Recipient, key TemplateKey, vars map[string]string, correlationID string) *Request {
	ctx := make(map[string]string, len(vars)+1)
	for k, v := range vars {
		ctx[k] = v
	}
	ctx["recipient_name"] = to.Name

	return &Request{
		RequestID:      uuid.New(),
		DeedID:         deedID,
		RecipientEmail: to.Email,
		RecipientName:  to.Name,
		TemplateKey:    key,
		Context:        ctx,
		CorrelationID:  correlationID,
		CreatedAt:      time.Now().UTC(),
	}
}

// Receipt is the asynchronous delivery outcome reported by the transport.
type Receipt struct {
	RequestID      uuid.UUID   `json:"request_id"`
	DeedID         int64       `json:"deed_id"`
	RecipientEmail string      `json:"recipient_email"`
	TemplateKey    TemplateKey `json:"template_key"`
	Succeeded      bool        `json:"succeeded"`
	Error          string      `json:"error,omitempty"`
	OccurredAt     time.Time   `json:"occurred_at"`
}

var (
	ErrReceiptMissingRequestID = errors.New("receipt has no request id")
	ErrReceiptMissingDeedID    = errors.New("receipt has no deed id")
)

func (r *Receipt) Validate() error {
	if r.RequestID == uuid.Nil {
		return ErrReceiptMissingRequestID
	}
	if r.DeedID <= 0 {
		return ErrReceiptMissingDeedID
	}
	return nil
}
