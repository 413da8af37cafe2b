package components

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mortgage-deed-signing/internal/domain/audit"
	"github.com/mortgage-deed-signing/internal/domain/shared"
	"github.com/mortgage-deed-signing/internal/ledger"
	"github.com/mortgage-deed-signing/internal/notification_dispatcher/service"
)

// DispatcherActor is the ledger actor for entries written by the dispatcher.
const DispatcherActor = "notification-dispatcher"

type FailureRecorderImpl struct {
	ledger *ledger.Ledger
	logger *slog.Logger
}

func NewFailureRecorder(auditLedger *ledger.Ledger, logger *slog.Logger) service.FailureRecorder {
	return &FailureRecorderImpl{
		ledger: auditLedger,
		logger: logger,
	}
}

// RecordFailure appends a NOTIFICATION_SENT entry with succeeded=false.
func (r *FailureRecorderImpl) RecordFailure(ctx context.Context, deedID int64, failure shared.ErrNotificationDispatch) error {
	entry, err := r.ledger.Append(ctx, ledger.Record{
		DeedID:      deedID,
		Actor:       DispatcherActor,
		Action:      audit.ActionNotificationSent,
		Description: fmt.Sprintf("Notification to %s failed: %s", failure.Recipient, failure.Reason),
		Failed:      true,
	})
	if err != nil {
		r.logger.Error("Failed to record notification failure",
			"deed_id", deedID,
			"request_id", failure.RequestID,
			"error", err,
		)
		return err
	}

	r.logger.Warn("Recorded notification failure",
		"deed_id", deedID,
		"request_id", failure.RequestID,
		"audit_id", entry.ID,
		"reason", failure.Reason,
	)
	return nil
}
