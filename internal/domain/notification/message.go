package notification

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mortgage-deed-signing/internal/domain/shared"
)

// Message is a notification request parked in the transactional outbox. It is
// written in the same transaction as the status change that caused it.
type Message struct {
	ID            int64               `json:"id"`
	RequestID     uuid.UUID           `json:"request_id"`
	DeedID        int64               `json:"deed_id"`
	Payload       json.RawMessage     `json:"payload"`
	Status        shared.OutboxStatus `json:"status"`
	Attempts      int                 `json:"attempts"`
	CreatedAt     time.Time           `json:"created_at"`
	LastAttemptAt *time.Time          `json:"last_attempt_at,omitempty"`
}

func NewMessage(req *Request) (*Message, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	return &Message{
		RequestID: req.RequestID,
		DeedID:    req.DeedID,
		Payload:   payload,
		Status:    shared.OutboxStatusPending,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (m *Message) Request() (*Request, error) {
	var req Request
	if err := json.Unmarshal(m.Payload, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (m *Message) IncrementAttempts() {
	m.Attempts++
	m.touch()
}

func (m *Message) MarkAsProcessed() {
	m.Status = shared.OutboxStatusProcessed
	m.touch()
}

func (m *Message) MarkAsFailed() {
	m.Status = shared.OutboxStatusFailedToPublish
	m.touch()
}

func (m *Message) touch() {
	now := time.Now().UTC()
	m.LastAttemptAt = &now
}
