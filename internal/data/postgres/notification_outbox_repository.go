package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mortgage-deed-signing/internal/domain/notification"
	"github.com/mortgage-deed-signing/internal/domain/shared"
	"github.com/mortgage-deed-signing/internal/platform/persistence"
)

// NotificationOutboxRepository stores notification requests until the
// dispatcher has handed them to the transport.
type NotificationOutboxRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewNotificationOutboxRepository(logger *slog.Logger, querier persistence.Querier) notification.OutboxRepository {
	return &NotificationOutboxRepository{querier: querier, logger: logger}
}

func (r *NotificationOutboxRepository) WithTx(tx pgx.Tx) notification.OutboxRepository {
	return &NotificationOutboxRepository{querier: tx, logger: r.logger}
}

func (r *NotificationOutboxRepository) Create(ctx context.Context, m *notification.Message) error {
	query := `
		INSERT INTO notification_outbox (request_id, deed_id, payload, status, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := r.querier.QueryRow(ctx, query,
		m.RequestID,
		m.DeedID,
		m.Payload,
		m.Status,
		m.Attempts,
		m.CreatedAt,
	).Scan(&m.ID)
	if err != nil {
		if persistence.IsUniqueViolation(err) {
			return notification.ErrDuplicateMessage{RequestID: m.RequestID}
		}
		r.logger.Error("Failed to create outbox message", "request_id", m.RequestID.String(), "error", err)
		return fmt.Errorf("failed to create outbox message: %w", err)
	}
	return nil
}

// GetPending returns the oldest pending messages first.
func (r *NotificationOutboxRepository) GetPending(ctx context.Context, limit int) ([]*notification.Message, error) {
	query := `
		SELECT id, request_id, deed_id, payload, status, attempts, created_at, last_attempt_at
		FROM notification_outbox
		WHERE status = $1
		ORDER BY id ASC
		LIMIT $2
	`
	rows, err := r.querier.Query(ctx, query, shared.OutboxStatusPending, limit)
	if err != nil {
		r.logger.Error("Failed to get pending outbox messages", "error", err)
		return nil, fmt.Errorf("failed to get pending outbox messages: %w", err)
	}
	defer rows.Close()

	var messages []*notification.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over outbox messages: %w", err)
	}
	return messages, nil
}

func (r *NotificationOutboxRepository) UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error {
	query := `
		UPDATE notification_outbox
		SET status = $1, last_attempt_at = $2
		WHERE id = $3
	`
	result, err := r.querier.Exec(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to update outbox message status", "id", id, "status", string(status), "error", err)
		return fmt.Errorf("failed to update outbox message status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return notification.ErrMessageNotFound{ID: id}
	}
	return nil
}

func (r *NotificationOutboxRepository) IncrementAttempts(ctx context.Context, id int64) error {
	query := `
		UPDATE notification_outbox
		SET attempts = attempts + 1, last_attempt_at = $1
		WHERE id = $2
	`
	result, err := r.querier.Exec(ctx, query, time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to increment outbox message attempts", "id", id, "error", err)
		return fmt.Errorf("failed to increment outbox message attempts: %w", err)
	}
	if result.RowsAffected() == 0 {
		return notification.ErrMessageNotFound{ID: id}
	}
	return nil
}

func (r *NotificationOutboxRepository) GetByRequestID(ctx context.Context, requestID uuid.UUID) (*notification.Message, error) {
	query := `
		SELECT id, request_id, deed_id, payload, status, attempts, created_at, last_attempt_at
		FROM notification_outbox
		WHERE request_id = $1
	`
	m, err := scanMessage(r.querier.QueryRow(ctx, query, requestID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notification.ErrMessageNotFound{}
		}
		return nil, fmt.Errorf("failed to get outbox message by request ID: %w", err)
	}
	return m, nil
}

func scanMessage(row pgx.Row) (*notification.Message, error) {
	var m notification.Message
	err := row.Scan(&m.ID, &m.RequestID, &m.DeedID, &m.Payload, &m.Status, &m.Attempts, &m.CreatedAt, &m.LastAttemptAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
