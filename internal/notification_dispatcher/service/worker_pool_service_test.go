package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mortgage-deed-signing/internal/domain/notification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockReceiptService mocks the ReceiptService interface
type MockReceiptService struct {
	mock.Mock
}

func (m *MockReceiptService) ApplyReceipt(ctx context.Context, receipt *notification.Receipt) error {
	args := m.Called(ctx, receipt)
	return args.Error(0)
}

func TestWorkerPoolReceiptService_ApplyReceipt(t *testing.T) {
	receipt := &notification.Receipt{
		RequestID:      uuid.New(),
		DeedID:         11,
		RecipientEmail: "anna@example.se",
		Succeeded:      true,
	}

	tests := []struct {
		name          string
		result        error
		expectedError string
	}{
		{name: "successful processing"},
		{name: "processing error", result: errors.New("mongo unavailable"), expectedError: "mongo unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := &MockReceiptService{}
			base.On("ApplyReceipt", mock.Anything, receipt).Return(tt.result).Once()

			svc, err := NewWorkerPoolReceiptService(base, WorkerPoolConfig{Size: 2}, slog.Default())
			require.NoError(t, err)
			defer svc.Shutdown()

			err = svc.ApplyReceipt(context.Background(), receipt)
			if tt.expectedError != "" {
				assert.ErrorContains(t, err, tt.expectedError)
			} else {
				assert.NoError(t, err)
			}
			base.AssertExpectations(t)
		})
	}
}

func TestWorkerPoolReceiptService_CanceledWhileWaiting(t *testing.T) {
	release := make(chan struct{})
	base := &MockReceiptService{}
	base.On("ApplyReceipt", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		<-release
	}).Return(nil)

	svc, err := NewWorkerPoolReceiptService(base, WorkerPoolConfig{Size: 1}, slog.Default())
	require.NoError(t, err)
	defer svc.Shutdown()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err = svc.ApplyReceipt(ctx, &notification.Receipt{RequestID: uuid.New(), DeedID: 1})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWorkerPoolReceiptService_Concurrency(t *testing.T) {
	base := &MockReceiptService{}
	svc, err := NewWorkerPoolReceiptService(base, WorkerPoolConfig{Size: 5}, slog.Default())
	require.NoError(t, err)
	defer svc.Shutdown()

	var (
		mu      sync.Mutex
		applied = make(map[uuid.UUID]bool)
	)
	base.On("ApplyReceipt", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		time.Sleep(5 * time.Millisecond)
		r := args.Get(1).(*notification.Receipt)
		mu.Lock()
		applied[r.RequestID] = true
		mu.Unlock()
	}).Return(nil)

	const n = 10
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(deedID int64) {
			defer wg.Done()
			r := &notification.Receipt{RequestID: uuid.New(), DeedID: deedID, Succeeded: true}
			assert.NoError(t, svc.ApplyReceipt(context.Background(), r))
		}(int64(i + 1))
	}
	wg.Wait()

	assert.Len(t, applied, n)
	assert.Equal(t, 5, svc.Capacity())
}
