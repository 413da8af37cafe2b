package components

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mortgage-deed-signing/internal/data/memory"
	"github.com/mortgage-deed-signing/internal/domain/audit"
	"github.com/mortgage-deed-signing/internal/domain/notification"
	"github.com/mortgage-deed-signing/internal/domain/shared"
	"github.com/mortgage-deed-signing/internal/ledger"
	"github.com/mortgage-deed-signing/internal/platform/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type applierFixture struct {
	store   *memory.Store
	metrics *metrics.Metrics
	applier *ReceiptApplier
}

func newApplierFixture() *applierFixture {
	store := memory.NewStore()
	m := metrics.New(prometheus.NewRegistry())
	recorder := NewFailureRecorder(ledger.New(store.Audit(), slog.Default()), slog.Default())
	return &applierFixture{
		store:   store,
		metrics: m,
		applier: NewReceiptApplier(store.Deliveries(), recorder, m, slog.Default()),
	}
}

func (f *applierFixture) queue(t *testing.T, deedID int64) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, f.store.Deliveries().Create(context.Background(), &notification.Delivery{
		RequestID:      id,
		DeedID:         deedID,
		RecipientEmail: "anna@example.se",
		Status:         notification.DeliveryQueued,
		QueuedAt:       time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC),
	}))
	return id
}

func TestReceiptApplier_Delivered(t *testing.T) {
	f := newApplierFixture()
	id := f.queue(t, 4)
	occurred := time.Date(2024, 2, 1, 9, 5, 0, 0, time.UTC)

	err := f.applier.ApplyReceipt(context.Background(), &notification.Receipt{
		RequestID: id, DeedID: 4, Succeeded: true, OccurredAt: occurred,
	})
	require.NoError(t, err)

	got, err := f.store.Deliveries().GetByRequestID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, notification.DeliveryDelivered, got.Status)
	assert.Equal(t, occurred, *got.CompletedAt)
	assert.Empty(t, f.store.Entries())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.NotificationReceipts.WithLabelValues("delivered")))
}

func TestReceiptApplier_FailedIsRecordedOnce(t *testing.T) {
	f := newApplierFixture()
	id := f.queue(t, 4)
	receipt := &notification.Receipt{
		RequestID:      id,
		DeedID:         4,
		RecipientEmail: "anna@example.se",
		Succeeded:      false,
		Error:          "mailbox full",
	}

	require.NoError(t, f.applier.ApplyReceipt(context.Background(), receipt))
	require.NoError(t, f.applier.ApplyReceipt(context.Background(), receipt))

	got, err := f.store.Deliveries().GetByRequestID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, notification.DeliveryFailed, got.Status)
	assert.Equal(t, "mailbox full", got.FailureReason)

	entries := f.store.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionNotificationSent, entries[0].Action)
	assert.False(t, entries[0].Succeeded)
	assert.Equal(t, DispatcherActor, entries[0].Actor)
	assert.Equal(t, "Notification to anna@example.se failed: mailbox full", entries[0].Description)
	require.NotNil(t, entries[0].DeedID)
	assert.Equal(t, int64(4), *entries[0].DeedID)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.NotificationReceipts.WithLabelValues("duplicate")))
}

func TestReceiptApplier_ReceiptBeforeDelivery(t *testing.T) {
	f := newApplierFixture()
	id := uuid.New()

	err := f.applier.ApplyReceipt(context.Background(), &notification.Receipt{
		RequestID: id, DeedID: 9, RecipientEmail: "bo@example.se", TemplateKey: notification.TemplateDeedCompleted, Succeeded: true,
	})
	require.NoError(t, err)

	got, err := f.store.Deliveries().GetByRequestID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, notification.DeliveryDelivered, got.Status)
	assert.Equal(t, int64(9), got.DeedID)
	assert.Equal(t, notification.TemplateDeedCompleted, got.TemplateKey)
	require.NotNil(t, got.CompletedAt)
}

func TestReceiptApplier_StoreFailure(t *testing.T) {
	f := newApplierFixture()
	id := f.queue(t, 4)
	boom := errors.New("mongo down")
	f.store.FailNext(memory.OpDeliveryComplete, boom)
	receipt := &notification.Receipt{RequestID: id, DeedID: 4, RecipientEmail: "anna@example.se", Succeeded: false}

	err := f.applier.ApplyReceipt(context.Background(), receipt)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, f.store.Entries(), 1, "the failure is in the ledger before the status write")

	got, err := f.store.Deliveries().GetByRequestID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, notification.DeliveryQueued, got.Status)

	require.NoError(t, f.applier.ApplyReceipt(context.Background(), receipt))
	got, err = f.store.Deliveries().GetByRequestID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, notification.DeliveryFailed, got.Status)
	assert.NotEmpty(t, f.store.Entries())
}

func TestReceiptApplier_LedgerFailureIsRetriedOnReplay(t *testing.T) {
	tests := []struct {
		name   string
		queued bool
	}{
		{"queued delivery", true},
		{"receipt before delivery", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newApplierFixture()
			id := uuid.New()
			if tt.queued {
				id = f.queue(t, 4)
			}
			receipt := &notification.Receipt{
				RequestID:      id,
				DeedID:         4,
				RecipientEmail: "anna@example.se",
				Error:          "mailbox full",
			}
			f.store.FailNext(memory.OpAuditAppend, errors.New("db down"))

			err := f.applier.ApplyReceipt(context.Background(), receipt)
			require.ErrorIs(t, err, shared.ErrStorage{})
			assert.Empty(t, f.store.Entries())
			got, err := f.store.Deliveries().GetByRequestID(context.Background(), id)
			if tt.queued {
				require.NoError(t, err)
				assert.False(t, got.Status.Final(), "status stays open until the ledger has the failure")
			} else {
				assert.ErrorIs(t, err, notification.ErrDeliveryNotFound{})
			}

			require.NoError(t, f.applier.ApplyReceipt(context.Background(), receipt))

			entries := f.store.Entries()
			require.Len(t, entries, 1)
			assert.False(t, entries[0].Succeeded)
			assert.Equal(t, "Notification to anna@example.se failed: mailbox full", entries[0].Description)
			got, err = f.store.Deliveries().GetByRequestID(context.Background(), id)
			require.NoError(t, err)
			assert.Equal(t, notification.DeliveryFailed, got.Status)
			assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.NotificationReceipts.WithLabelValues("failed")))
		})
	}
}

func TestFailureRecorder_StorageError(t *testing.T) {
	store := memory.NewStore()
	boom := errors.New("disk full")
	store.FailNext(memory.OpAuditAppend, boom)
	recorder := NewFailureRecorder(ledger.New(store.Audit(), slog.Default()), slog.Default())

	err := recorder.RecordFailure(context.Background(), 3, shared.ErrNotificationDispatch{RequestID: "r", Recipient: "x@y.se", Reason: "timeout"})
	assert.ErrorIs(t, err, shared.ErrStorage{})
	assert.ErrorIs(t, err, boom)
}
