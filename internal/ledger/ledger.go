// Package ledger is the append-only audit trail of actions taken against a
// deed. It carries no business rules: callers decide what to record.
package ledger

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mortgage-deed-signing/internal/domain/audit"
	"github.com/mortgage-deed-signing/internal/domain/shared"
	"github.com/mortgage-deed-signing/internal/platform/persistence"
)

const DefaultPageSize = 100

type Ledger struct {
	repo     audit.Repository
	logger   *slog.Logger
	now      func() time.Time
	pageSize int
}

type Option func(*Ledger)

// WithClock replaces the clock used to timestamp entries.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func WithPageSize(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.pageSize = n
		}
	}
}

func New(repo audit.Repository, logger *slog.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		repo:     repo,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		pageSize: DefaultPageSize,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// WithTx returns a ledger that appends inside tx.
func (l *Ledger) WithTx(tx pgx.Tx) *Ledger {
	cp := *l
	cp.repo = l.repo.WithTx(tx)
	return &cp
}

// Record describes one entry to append.
type Record struct {
	DeedID      int64
	Actor       string
	Action      audit.ActionType
	Description string
	NewStatus   string
	Failed      bool
}

// Append writes one entry. It fails only when the store does. The entry is
// stamped with the ledger clock unless the store supplies its own, as the
// PostgreSQL store does.
func (l *Ledger) Append(ctx context.Context, r Record) (*audit.Entry, error) {
	var deedID *int64
	if r.DeedID > 0 {
		id := r.DeedID
		deedID = &id
	}
	e := &audit.Entry{
		DeedID:      deedID,
		Actor:       r.Actor,
		Action:      r.Action,
		Description: r.Description,
		NewStatus:   r.NewStatus,
		Succeeded:   !r.Failed,
		CreatedAt:   l.now(),
	}
	if err := l.repo.Append(ctx, e); err != nil {
		return nil, storageError("append audit entry", err)
	}
	return e, nil
}

// Page returns up to limit entries after the cursor and the cursor of the
// next page, which is zero once the ledger is exhausted.
func (l *Ledger) Page(ctx context.Context, deedID int64, after audit.Cursor, limit int) ([]*audit.Entry, audit.Cursor, error) {
	if limit <= 0 {
		limit = l.pageSize
	}
	// one extra row tells whether another page exists
	entries, err := l.repo.ListForDeed(ctx, deedID, after, limit+1)
	if err != nil {
		return nil, audit.Cursor{}, storageError("list audit entries", err)
	}
	if len(entries) <= limit {
		return entries, audit.Cursor{}, nil
	}
	entries = entries[:limit]
	return entries, audit.After(entries[limit-1]), nil
}

// ListForDeed yields the deed's entries ordered by timestamp, fetching one
// page at a time. Each range over the sequence starts again from the first
// entry. A storage failure is yielded once as the final element.
func (l *Ledger) ListForDeed(ctx context.Context, deedID int64) iter.Seq2[*audit.Entry, error] {
	return func(yield func(*audit.Entry, error) bool) {
		var cursor audit.Cursor
		for {
			entries, err := l.repo.ListForDeed(ctx, deedID, cursor, l.pageSize)
			if err != nil {
				yield(nil, storageError("list audit entries", err))
				return
			}
			for _, e := range entries {
				if !yield(e, nil) {
					return
				}
			}
			if len(entries) < l.pageSize {
				return
			}
			cursor = audit.After(entries[len(entries)-1])
		}
	}
}

// Collect drains ListForDeed into a slice.
func (l *Ledger) Collect(ctx context.Context, deedID int64) ([]*audit.Entry, error) {
	var out []*audit.Entry
	for e, err := range l.ListForDeed(ctx, deedID) {
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// ListStatusChanges returns every status-changed entry across all deeds.
func (l *Ledger) ListStatusChanges(ctx context.Context) ([]*audit.Entry, error) {
	entries, err := l.repo.ListStatusChanges(ctx)
	if err != nil {
		return nil, storageError("list status changes", err)
	}
	return entries, nil
}

func storageError(op string, err error) error {
	var already shared.ErrStorage
	if errors.As(err, &already) {
		return err
	}
	return shared.ErrStorage{Op: op, LockContention: persistence.IsLockContention(err), Err: err}
}
