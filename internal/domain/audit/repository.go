package audit

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Repository stores ledger entries. There is deliberately no update or delete.
type Repository interface {
	// Append sets entry.ID and may replace entry.CreatedAt with the store's clock.
	Append(ctx context.Context, entry *Entry) error

	// ListForDeed returns up to limit entries strictly after the cursor,
	// ordered by timestamp then id.
	ListForDeed(ctx context.Context, deedID int64, after Cursor, limit int) ([]*Entry, error)

	// ListStatusChanges returns every status-changed entry, ordered by deed,
	// timestamp and id.
	ListStatusChanges(ctx context.Context) ([]*Entry, error)

	WithTx(tx pgx.Tx) Repository
}
