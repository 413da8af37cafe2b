package memory

import (
	"context"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/mortgage-deed-signing/internal/domain/audit"
)

type auditRepository struct {
	store *Store
}

func (r *auditRepository) WithTx(pgx.Tx) audit.Repository { return r }

func (r *auditRepository) Append(_ context.Context, e *audit.Entry) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(OpAuditAppend); err != nil {
		return err
	}
	e.ID = s.nextID()
	stored := *e
	if e.DeedID != nil {
		id := *e.DeedID
		stored.DeedID = &id
	}
	s.entries = append(s.entries, stored)
	return nil
}

func (r *auditRepository) ListForDeed(_ context.Context, deedID int64, after audit.Cursor, limit int) ([]*audit.Entry, error) {
	matched := r.collect(func(e *audit.Entry) bool {
		if e.DeedID == nil || *e.DeedID != deedID {
			return false
		}
		if after.IsZero() {
			return true
		}
		return e.CreatedAt.After(after.CreatedAt) || (e.CreatedAt.Equal(after.CreatedAt) && e.ID > after.ID)
	})
	sort.SliceStable(matched, func(i, j int) bool { return less(matched[i], matched[j]) })
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (r *auditRepository) ListStatusChanges(context.Context) ([]*audit.Entry, error) {
	matched := r.collect(func(e *audit.Entry) bool {
		return e.DeedID != nil && e.Action == audit.ActionStatusChanged
	})
	sort.SliceStable(matched, func(i, j int) bool {
		if *matched[i].DeedID != *matched[j].DeedID {
			return *matched[i].DeedID < *matched[j].DeedID
		}
		return less(matched[i], matched[j])
	})
	return matched, nil
}

// Entries returns a copy of every stored entry in insertion order.
func (s *Store) Entries() []audit.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Entry(nil), s.entries...)
}

func (r *auditRepository) collect(match func(*audit.Entry) bool) []*audit.Entry {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*audit.Entry
	for i := range s.entries {
		if match(&s.entries[i]) {
			e := s.entries[i]
			out = append(out, &e)
		}
	}
	return out
}

func less(a, b *audit.Entry) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
