package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mortgage-deed-signing/internal/data/memory"
	"github.com/mortgage-deed-signing/internal/domain/audit"
	"github.com/mortgage-deed-signing/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stepClock struct {
	t time.Time
}

func (c *stepClock) now() time.Time {
	c.t = c.t.Add(time.Minute)
	return c.t
}

func newLedger(t *testing.T, opts ...Option) (*Ledger, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	clock := &stepClock{t: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clock.now)}, opts...)
	return New(store.Audit(), slog.New(slog.NewTextHandler(io.Discard, nil)), opts...), store
}

func appendN(t *testing.T, l *Ledger, deedID int64, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := l.Append(context.Background(), Record{
			DeedID: deedID,
			Actor:  "admin",
			Action: audit.ActionFieldUpdated,
		})
		require.NoError(t, err)
	}
}

func TestLedger_Append(t *testing.T) {
	l, _ := newLedger(t)

	e, err := l.Append(context.Background(), Record{
		DeedID:      3,
		Actor:       "clerk-1",
		Action:      audit.ActionStatusChanged,
		Description: "Deed sent for signing",
		NewStatus:   "PENDING_BORROWER_SIGNATURE",
	})
	require.NoError(t, err)
	assert.NotZero(t, e.ID)
	require.NotNil(t, e.DeedID)
	assert.Equal(t, int64(3), *e.DeedID)
	assert.True(t, e.Succeeded)
	assert.Equal(t, time.Date(2026, 5, 1, 9, 1, 0, 0, time.UTC), e.CreatedAt)

	failed, err := l.Append(context.Background(), Record{DeedID: 3, Action: audit.ActionNotificationSent, Failed: true})
	require.NoError(t, err)
	assert.False(t, failed.Succeeded)
}

func TestLedger_AppendStorageError(t *testing.T) {
	l, store := newLedger(t)
	store.FailNext(memory.OpAuditAppend, errors.New("connection reset"))

	_, err := l.Append(context.Background(), Record{DeedID: 1, Action: audit.ActionFieldUpdated})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrStorage{})
	var coded shared.CodedError
	require.ErrorAs(t, err, &coded)
	assert.Equal(t, shared.CodeStorage, coded.Code())
}

func TestLedger_ListForDeedIsLazyAndRestartable(t *testing.T) {
	l, _ := newLedger(t, WithPageSize(2))
	appendN(t, l, 1, 5)
	appendN(t, l, 2, 1)

	for range 2 {
		var prev time.Time
		count := 0
		for e, err := range l.ListForDeed(context.Background(), 1) {
			require.NoError(t, err)
			assert.False(t, e.CreatedAt.Before(prev), "entries must be non-decreasing in time")
			prev = e.CreatedAt
			count++
		}
		assert.Equal(t, 5, count)
	}

	// stopping early must not fetch further pages
	seen := 0
	for range l.ListForDeed(context.Background(), 1) {
		seen++
		if seen == 3 {
			break
		}
	}
	assert.Equal(t, 3, seen)
}

func TestLedger_ListForDeedYieldsStorageError(t *testing.T) {
	store := memory.NewStore()
	l := New(&failingRepo{Repository: store.Audit(), err: errors.New("down")}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	entries, err := l.Collect(context.Background(), 1)
	assert.Nil(t, entries)
	assert.ErrorIs(t, err, shared.ErrStorage{})
}

func TestLedger_Page(t *testing.T) {
	l, _ := newLedger(t)
	appendN(t, l, 9, 3)
	ctx := context.Background()

	page, next, err := l.Page(ctx, 9, audit.Cursor{}, 2)
	require.NoError(t, err)
	assert.Len(t, page, 2)
	require.False(t, next.IsZero())

	page, next, err = l.Page(ctx, 9, next, 2)
	require.NoError(t, err)
	assert.Len(t, page, 1)
	assert.True(t, next.IsZero())
}

type failingRepo struct {
	audit.Repository
	err error
}

func (f *failingRepo) ListForDeed(context.Context, int64, audit.Cursor, int) ([]*audit.Entry, error) {
	return nil, f.err
}
