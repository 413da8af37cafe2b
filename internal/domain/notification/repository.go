package notification

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mortgage-deed-signing/internal/domain/shared"
)

// OutboxRepository manages notification requests awaiting publication.
type OutboxRepository interface {
	Create(ctx context.Context, message *Message) error
	GetPending(ctx context.Context, limit int) ([]*Message, error)
	UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error
	IncrementAttempts(ctx context.Context, id int64) error
	GetByRequestID(ctx context.Context, requestID uuid.UUID) (*Message, error)
	WithTx(tx pgx.Tx) OutboxRepository
}

type ErrMessageNotFound struct {
	ID int64
}

func (e ErrMessageNotFound) Error() string {
	return "outbox message not found: " + strconv.FormatInt(e.ID, 10)
}

type ErrDuplicateMessage struct {
	RequestID uuid.UUID
}

func (e ErrDuplicateMessage) Error() string {
	return "duplicate outbox message: " + e.RequestID.String()
}
