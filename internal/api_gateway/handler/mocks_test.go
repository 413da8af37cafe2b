package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"

	"github.com/mortgage-deed-signing/internal/api_gateway/middleware"
	"github.com/mortgage-deed-signing/internal/domain/audit"
	"github.com/mortgage-deed-signing/internal/domain/deed"
	"github.com/mortgage-deed-signing/internal/domain/identity"
	"github.com/mortgage-deed-signing/internal/domain/notification"
	"github.com/mortgage-deed-signing/internal/durations"
	"github.com/mortgage-deed-signing/internal/signing"
	"github.com/mortgage-deed-signing/internal/stats"
)

type MockSigningService struct {
	mock.Mock
}

func deedOrNil(args mock.Arguments) (*deed.Deed, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*deed.Deed), args.Error(1)
}

func (m *MockSigningService) CreateDeed(ctx context.Context, claims identity.Claims, in signing.CreateDeedInput) (*deed.Deed, error) {
	return deedOrNil(m.Called(ctx, claims, in))
}

func (m *MockSigningService) InitiateSigning(ctx context.Context, claims identity.Claims, deedID int64) (*deed.Deed, error) {
	return deedOrNil(m.Called(ctx, claims, deedID))
}

func (m *MockSigningService) RecordBorrowerSignature(ctx context.Context, claims identity.Claims, deedID int64, personNumber string) (*deed.Deed, error) {
	return deedOrNil(m.Called(ctx, claims, deedID, personNumber))
}

func (m *MockSigningService) RecordCooperativeSignature(ctx context.Context, claims identity.Claims, deedID int64, personNumber string) (*deed.Deed, error) {
	return deedOrNil(m.Called(ctx, claims, deedID, personNumber))
}

func (m *MockSigningService) GetDeed(ctx context.Context, claims identity.Claims, deedID int64) (*deed.Deed, error) {
	return deedOrNil(m.Called(ctx, claims, deedID))
}

func (m *MockSigningService) PendingForActor(ctx context.Context, claims identity.Claims) ([]*deed.Deed, error) {
	args := m.Called(ctx, claims)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*deed.Deed), args.Error(1)
}

type MockDeedQueryService struct {
	mock.Mock
}

func (m *MockDeedQueryService) AuditLog(ctx context.Context, claims identity.Claims, deedID int64, cursor string, limit int) ([]*audit.Entry, string, error) {
	args := m.Called(ctx, claims, deedID, cursor, limit)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).([]*audit.Entry), args.String(1), args.Error(2)
}

func (m *MockDeedQueryService) StatusDurations(ctx context.Context, claims identity.Claims, deedID int64) (*durations.Report, error) {
	args := m.Called(ctx, claims, deedID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*durations.Report), args.Error(1)
}

func (m *MockDeedQueryService) Notifications(ctx context.Context, claims identity.Claims, deedID int64, page, perPage int) ([]*notification.Delivery, int64, error) {
	args := m.Called(ctx, claims, deedID, page, perPage)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*notification.Delivery), args.Get(1).(int64), args.Error(2)
}

type MockStatsService struct {
	mock.Mock
}

func (m *MockStatsService) Summary(ctx context.Context) (*stats.Summary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stats.Summary), args.Error(1)
}

func (m *MockStatsService) AverageStatusDurations(ctx context.Context) ([]stats.StatusDuration, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]stats.StatusDuration), args.Error(1)
}

func (m *MockStatsService) Timeline(ctx context.Context, days int) ([]stats.TimelinePoint, error) {
	args := m.Called(ctx, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]stats.TimelinePoint), args.Error(1)
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	return r
}

// authenticatedAs stands in for the Auth middleware.
func authenticatedAs(claims identity.Claims) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ClaimsKey, claims)
		c.Next()
	}
}
