package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mortgage-deed-signing/internal/domain/notification"
	"github.com/mortgage-deed-signing/internal/domain/shared"
)

type outboxRepository struct {
	store *Store
}

func (r *outboxRepository) WithTx(pgx.Tx) notification.OutboxRepository { return r }

func (r *outboxRepository) Create(_ context.Context, m *notification.Message) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(OpOutboxCreate); err != nil {
		return err
	}
	for _, existing := range s.outbox {
		if existing.RequestID == m.RequestID {
			return notification.ErrDuplicateMessage{RequestID: m.RequestID}
		}
	}
	m.ID = s.nextID()
	s.outbox = append(s.outbox, *m)
	return nil
}

func (r *outboxRepository) GetPending(_ context.Context, limit int) ([]*notification.Message, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*notification.Message
	for _, m := range s.outbox {
		if m.Status != shared.OutboxStatusPending {
			continue
		}
		cp := m
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *outboxRepository) UpdateStatus(_ context.Context, id int64, status shared.OutboxStatus) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(OpOutboxUpdateStatus); err != nil {
		return err
	}
	m := s.message(id)
	if m == nil {
		return notification.ErrMessageNotFound{ID: id}
	}
	now := time.Now().UTC()
	m.Status = status
	m.LastAttemptAt = &now
	return nil
}

func (r *outboxRepository) IncrementAttempts(_ context.Context, id int64) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.message(id)
	if m == nil {
		return notification.ErrMessageNotFound{ID: id}
	}
	now := time.Now().UTC()
	m.Attempts++
	m.LastAttemptAt = &now
	return nil
}

func (r *outboxRepository) GetByRequestID(_ context.Context, requestID uuid.UUID) (*notification.Message, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.outbox {
		if m.RequestID == requestID {
			cp := m
			return &cp, nil
		}
	}
	return nil, notification.ErrMessageNotFound{}
}

// Messages returns a copy of every outbox message in insertion order.
func (s *Store) Messages() []notification.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]notification.Message(nil), s.outbox...)
}

func (s *Store) message(id int64) *notification.Message {
	for i := range s.outbox {
		if s.outbox[i].ID == id {
			return &s.outbox[i]
		}
	}
	return nil
}
