package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/mortgage-deed-signing/internal/domain/audit"
	"github.com/mortgage-deed-signing/internal/domain/deed"
	"github.com/mortgage-deed-signing/internal/domain/identity"
	"github.com/mortgage-deed-signing/internal/domain/notification"
	"github.com/mortgage-deed-signing/internal/durations"
	"github.com/mortgage-deed-signing/internal/signing"
)

type MockSigningService struct {
	mock.Mock
}

func (m *MockSigningService) deedResult(args mock.Arguments) (*deed.Deed, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*deed.Deed), args.Error(1)
}

func (m *MockSigningService) CreateDeed(ctx context.Context, claims identity.Claims, in signing.CreateDeedInput) (*deed.Deed, error) {
	return m.deedResult(m.Called(ctx, claims, in))
}

func (m *MockSigningService) InitiateSigning(ctx context.Context, claims identity.Claims, deedID int64) (*deed.Deed, error) {
	return m.deedResult(m.Called(ctx, claims, deedID))
}

func (m *MockSigningService) RecordBorrowerSignature(ctx context.Context, claims identity.Claims, deedID int64, personNumber string) (*deed.Deed, error) {
	return m.deedResult(m.Called(ctx, claims, deedID, personNumber))
}

func (m *MockSigningService) RecordCooperativeSignature(ctx context.Context, claims identity.Claims, deedID int64, personNumber string) (*deed.Deed, error) {
	return m.deedResult(m.Called(ctx, claims, deedID, personNumber))
}

func (m *MockSigningService) GetDeed(ctx context.Context, claims identity.Claims, deedID int64) (*deed.Deed, error) {
	return m.deedResult(m.Called(ctx, claims, deedID))
}

func (m *MockSigningService) PendingForActor(ctx context.Context, claims identity.Claims) ([]*deed.Deed, error) {
	args := m.Called(ctx, claims)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*deed.Deed), args.Error(1)
}

type MockAuditReader struct {
	mock.Mock
}

func (m *MockAuditReader) Page(ctx context.Context, deedID int64, after audit.Cursor, limit int) ([]*audit.Entry, audit.Cursor, error) {
	args := m.Called(ctx, deedID, after, limit)
	if args.Get(0) == nil {
		return nil, audit.Cursor{}, args.Error(2)
	}
	return args.Get(0).([]*audit.Entry), args.Get(1).(audit.Cursor), args.Error(2)
}

type MockDurationReporter struct {
	mock.Mock
}

func (m *MockDurationReporter) StatusDurations(ctx context.Context, deedID int64) (*durations.Report, error) {
	args := m.Called(ctx, deedID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*durations.Report), args.Error(1)
}

type MockDeliveryLister struct {
	mock.Mock
}

func (m *MockDeliveryLister) ListByDeedID(ctx context.Context, deedID int64, limit, offset int) ([]*notification.Delivery, error) {
	args := m.Called(ctx, deedID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*notification.Delivery), args.Error(1)
}

func (m *MockDeliveryLister) CountByDeedID(ctx context.Context, deedID int64) (int64, error) {
	args := m.Called(ctx, deedID)
	return args.Get(0).(int64), args.Error(1)
}
