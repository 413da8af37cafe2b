package service

import (
	"context"

	"github.com/mortgage-deed-signing/internal/domain/notification"
	"github.com/mortgage-deed-signing/internal/domain/shared"
)

// ReceiptService applies delivery receipts reported by the notification transport.
type ReceiptService interface {
	ApplyReceipt(ctx context.Context, receipt *notification.Receipt) error
}

// FailureRecorder appends failed notification dispatches to the audit ledger.
type FailureRecorder interface {
	RecordFailure(ctx context.Context, deedID int64, failure shared.ErrNotificationDispatch) error
}
