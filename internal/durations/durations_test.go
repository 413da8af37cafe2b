package durations

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mortgage-deed-signing/internal/data/memory"
	"github.com/mortgage-deed-signing/internal/domain/audit"
	"github.com/mortgage-deed-signing/internal/domain/deed"
	"github.com/mortgage-deed-signing/internal/domain/identity"
	"github.com/mortgage-deed-signing/internal/domain/shared"
	"github.com/mortgage-deed-signing/internal/ledger"
	"github.com/mortgage-deed-signing/internal/signing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

func changed(status deed.Status, at time.Time) *audit.Entry {
	return &audit.Entry{Action: audit.ActionStatusChanged, NewStatus: string(status), CreatedAt: at}
}

func TestIntervals_NoTransitions(t *testing.T) {
	intervals := Intervals(t0, nil)

	require.Len(t, intervals, 1)
	assert.Equal(t, deed.StatusCreated, intervals[0].Status)
	assert.True(t, intervals[0].Open())
	assert.Equal(t, 5*time.Hour, intervals[0].Duration(t0.Add(5*time.Hour)))
}

func TestIntervals_PairsConsecutiveChanges(t *testing.T) {
	entries := []*audit.Entry{
		changed(deed.StatusPendingBorrowerSignature, t0.Add(time.Hour)),
		{Action: audit.ActionNotificationSent, CreatedAt: t0.Add(time.Hour)},
		changed(deed.StatusPendingHousingCooperativeSignature, t0.Add(4*time.Hour)),
	}
	now := t0.Add(10 * time.Hour)

	intervals := Intervals(t0, entries)
	require.Len(t, intervals, 3)
	assert.Equal(t, time.Hour, intervals[0].Duration(now))
	assert.Equal(t, 3*time.Hour, intervals[1].Duration(now))
	assert.True(t, intervals[2].Open())

	totals := Totals(intervals, now)
	assert.Equal(t, time.Hour, totals[deed.StatusCreated])
	assert.Equal(t, 3*time.Hour, totals[deed.StatusPendingBorrowerSignature])
	assert.Equal(t, 6*time.Hour, totals[deed.StatusPendingHousingCooperativeSignature])
	_, seen := totals[deed.StatusCompleted]
	assert.False(t, seen)
}

func TestInterval_DurationNeverNegative(t *testing.T) {
	i := Interval{Status: deed.StatusCreated, Start: t0}
	assert.Zero(t, i.Duration(t0.Add(-time.Minute)))
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// Scenario C
func TestAccumulator_CompletedDeed(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore()
	clk := &clock{t: t0}
	l := ledger.New(store.Audit(), log, ledger.WithClock(clk.Now), ledger.WithPageSize(2))
	engine := signing.NewEngine(store, store.Deeds(), l, store.Outbox(), signing.NewComposer("Pantbrev", "http://localhost"), log, signing.WithClock(clk.Now))
	coop := store.AddCooperative(deed.Cooperative{Name: "BRF Lind", AdministratorPersonNumber: "196001010000", AdministratorEmail: "admin@lind.se"})
	admin := identity.Claims{Subject: "root", Role: identity.RoleAdmin}
	ctx := context.Background()

	d, err := engine.CreateDeed(ctx, admin, signing.CreateDeedInput{
		CreditNumber:  "CR-9",
		BankID:        1,
		CooperativeID: coop.ID,
		Borrowers: []*deed.Borrower{
			{PersonNumber: "198001011111", Ownership: decimal.NewFromInt(100)},
		},
	})
	require.NoError(t, err)

	clk.Advance(2 * time.Hour)
	_, err = engine.InitiateSigning(ctx, admin, d.ID)
	require.NoError(t, err)
	clk.Advance(24 * time.Hour)
	_, err = engine.RecordBorrowerSignature(ctx, admin, d.ID, "198001011111")
	require.NoError(t, err)
	clk.Advance(3 * time.Hour)
	_, err = engine.RecordCooperativeSignature(ctx, admin, d.ID, "")
	require.NoError(t, err)
	clk.Advance(time.Hour)

	report, err := NewAccumulator(store.Deeds(), l, clk.Now).StatusDurations(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, deed.StatusCompleted, report.CurrentStatus)

	require.Len(t, report.Intervals, 4)
	for _, i := range report.Intervals[:3] {
		assert.False(t, i.Open(), "%s should be closed", i.Status)
	}
	assert.Equal(t, deed.StatusCompleted, report.Intervals[3].Status)
	assert.True(t, report.Intervals[3].Open())

	assert.Equal(t, 2*time.Hour, report.Durations[deed.StatusCreated])
	assert.Equal(t, 24*time.Hour, report.Durations[deed.StatusPendingBorrowerSignature])
	assert.Equal(t, 3*time.Hour, report.Durations[deed.StatusPendingHousingCooperativeSignature])
	assert.Equal(t, time.Hour, report.Durations[deed.StatusCompleted])
}

func TestAccumulator_UnknownDeed(t *testing.T) {
	store := memory.NewStore()
	l := ledger.New(store.Audit(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := NewAccumulator(store.Deeds(), l, nil).StatusDurations(context.Background(), 77)
	assert.ErrorIs(t, err, shared.ErrNotFound{Resource: "deed", Key: "77"})
}
