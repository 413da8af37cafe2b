package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mortgage-deed-signing/internal/domain/audit"
	"github.com/mortgage-deed-signing/internal/platform/persistence"
)

// minTimestamp precedes every timestamp the services write.
var minTimestamp = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// AuditRepository appends to and reads from the audit_logs table. The table
// has no UPDATE or DELETE grants, so this type exposes neither.
type AuditRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewAuditRepository(logger *slog.Logger, querier persistence.Querier) audit.Repository {
	return &AuditRepository{querier: querier, logger: logger}
}

func (r *AuditRepository) WithTx(tx pgx.Tx) audit.Repository {
	return &AuditRepository{querier: tx, logger: r.logger}
}

// Append stamps the entry with the database clock so that entries written by
// different instances share one timeline. e.CreatedAt is overwritten.
func (r *AuditRepository) Append(ctx context.Context, e *audit.Entry) error {
	query := `
		INSERT INTO audit_logs (deed_id, actor, action_type, description, new_status, succeeded, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, clock_timestamp())
		RETURNING id, created_at
	`
	err := r.querier.QueryRow(ctx, query,
		e.DeedID,
		e.Actor,
		e.Action,
		e.Description,
		e.NewStatus,
		e.Succeeded,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to append audit entry", "action_type", e.Action, "error", err)
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	e.CreatedAt = e.CreatedAt.UTC()
	return nil
}

func (r *AuditRepository) ListForDeed(ctx context.Context, deedID int64, after audit.Cursor, limit int) ([]*audit.Entry, error) {
	query := `
		SELECT id, deed_id, actor, action_type, description, COALESCE(new_status, ''), succeeded, created_at
		FROM audit_logs
		WHERE deed_id = $1 AND (created_at, id) > ($2, $3)
		ORDER BY created_at ASC, id ASC
		LIMIT $4
	`
	// The zero cursor must sort before every stored entry.
	since := after.CreatedAt
	if after.IsZero() {
		since = minTimestamp
	}
	return r.list(ctx, query, deedID, since, after.ID, limit)
}

func (r *AuditRepository) ListStatusChanges(ctx context.Context) ([]*audit.Entry, error) {
	query := `
		SELECT id, deed_id, actor, action_type, description, COALESCE(new_status, ''), succeeded, created_at
		FROM audit_logs
		WHERE action_type = $1 AND deed_id IS NOT NULL
		ORDER BY deed_id ASC, created_at ASC, id ASC
	`
	return r.list(ctx, query, audit.ActionStatusChanged)
}

func (r *AuditRepository) list(ctx context.Context, query string, args ...any) ([]*audit.Entry, error) {
	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list audit entries", "error", err)
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*audit.Entry
	for rows.Next() {
		var e audit.Entry
		if err := rows.Scan(&e.ID, &e.DeedID, &e.Actor, &e.Action, &e.Description, &e.NewStatus, &e.Succeeded, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}
	return entries, nil
}
