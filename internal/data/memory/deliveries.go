package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/mortgage-deed-signing/internal/domain/notification"
)

type deliveryRepository struct {
	store *Store
}

func (r *deliveryRepository) Create(_ context.Context, d *notification.Delivery) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(OpDeliveryCreate); err != nil {
		return err
	}
	if s.delivery(d.RequestID) != nil {
		return notification.ErrDuplicateDelivery{RequestID: d.RequestID}
	}
	s.deliveries = append(s.deliveries, *d)
	return nil
}

func (r *deliveryRepository) GetByRequestID(_ context.Context, requestID uuid.UUID) (*notification.Delivery, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	d := s.delivery(requestID)
	if d == nil {
		return nil, notification.ErrDeliveryNotFound{RequestID: requestID}
	}
	cp := *d
	return &cp, nil
}

func (r *deliveryRepository) ListByDeedID(_ context.Context, deedID int64, limit, offset int) ([]*notification.Delivery, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := make([]*notification.Delivery, 0)
	for _, d := range s.deliveries {
		if d.DeedID == deedID {
			cp := d
			matched = append(matched, &cp)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].QueuedAt.After(matched[j].QueuedAt) })
	if offset >= len(matched) {
		return []*notification.Delivery{}, nil
	}
	matched = matched[offset:]
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (r *deliveryRepository) CountByDeedID(_ context.Context, deedID int64) (int64, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, d := range s.deliveries {
		if d.DeedID == deedID {
			n++
		}
	}
	return n, nil
}

func (r *deliveryRepository) Complete(_ context.Context, requestID uuid.UUID, status notification.DeliveryStatus, reason string, at time.Time) error {
	if !status.Final() {
		return fmt.Errorf("cannot complete delivery with non-final status %q", status)
	}
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(OpDeliveryComplete); err != nil {
		return err
	}
	d := s.delivery(requestID)
	if d == nil {
		return notification.ErrDeliveryNotFound{RequestID: requestID}
	}
	if d.Status.Final() {
		return nil
	}
	completedAt := at.UTC()
	d.Status = status
	d.CompletedAt = &completedAt
	if reason != "" {
		d.FailureReason = reason
	}
	return nil
}

// DeliveryDocuments returns a copy of every delivery document in insertion order.
func (s *Store) DeliveryDocuments() []notification.Delivery {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]notification.Delivery(nil), s.deliveries...)
}

func (s *Store) delivery(requestID uuid.UUID) *notification.Delivery {
	for i := range s.deliveries {
		if s.deliveries[i].RequestID == requestID {
			return &s.deliveries[i]
		}
	}
	return nil
}
