package service

import (
	"context"
	"errors"

	"github.com/mortgage-deed-signing/internal/domain/audit"
	"github.com/mortgage-deed-signing/internal/domain/identity"
	"github.com/mortgage-deed-signing/internal/domain/notification"
	"github.com/mortgage-deed-signing/internal/domain/shared"
	"github.com/mortgage-deed-signing/internal/durations"
)

// DeedQueryServiceImpl implements the DeedQueryService interface
type DeedQueryServiceImpl struct {
	signing    SigningService
	auditLog   AuditReader
	durations  DurationReporter
	deliveries DeliveryLister
}

// NewDeedQueryService creates a new deed query service. deliveries may be nil
// when no delivery store is configured; Notifications then returns an empty page.
func NewDeedQueryService(signing SigningService, auditLog AuditReader, reporter DurationReporter, deliveries DeliveryLister) DeedQueryService {
	return &DeedQueryServiceImpl{
		signing:    signing,
		auditLog:   auditLog,
		durations:  reporter,
		deliveries: deliveries,
	}
}

func (s *DeedQueryServiceImpl) AuditLog(ctx context.Context, claims identity.Claims, deedID int64, cursor string, limit int) ([]*audit.Entry, string, error) {
	after, err := audit.DecodeCursor(cursor)
	if err != nil {
		if errors.Is(err, audit.ErrInvalidCursor) {
			return nil, "", shared.ErrValidation{Field: "cursor", Message: "is not a valid audit log cursor"}
		}
		return nil, "", err
	}

	if err := s.visible(ctx, claims, deedID); err != nil {
		return nil, "", err
	}

	entries, next, err := s.auditLog.Page(ctx, deedID, after, limit)
	if err != nil {
		return nil, "", err
	}
	return entries, next.Encode(), nil
}

func (s *DeedQueryServiceImpl) StatusDurations(ctx context.Context, claims identity.Claims, deedID int64) (*durations.Report, error) {
	if err := s.visible(ctx, claims, deedID); err != nil {
		return nil, err
	}
	return s.durations.StatusDurations(ctx, deedID)
}

func (s *DeedQueryServiceImpl) Notifications(ctx context.Context, claims identity.Claims, deedID int64, page, perPage int) ([]*notification.Delivery, int64, error) {
	if err := s.visible(ctx, claims, deedID); err != nil {
		return nil, 0, err
	}
	if s.deliveries == nil {
		return []*notification.Delivery{}, 0, nil
	}

	offset := (page - 1) * perPage
	deliveries, err := s.deliveries.ListByDeedID(ctx, deedID, perPage, offset)
	if err != nil {
		return nil, 0, shared.ErrStorage{Op: "list deliveries", Err: err}
	}
	total, err := s.deliveries.CountByDeedID(ctx, deedID)
	if err != nil {
		return nil, 0, shared.ErrStorage{Op: "count deliveries", Err: err}
	}
	return deliveries, total, nil
}

// visible reuses the engine's party check so every deed view shares one rule.
func (s *DeedQueryServiceImpl) visible(ctx context.Context, claims identity.Claims, deedID int64) error {
	_, err := s.signing.GetDeed(ctx, claims, deedID)
	return err
}
