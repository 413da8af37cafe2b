package memory

import (
	"context"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mortgage-deed-signing/internal/domain/deed"
)

type deedRepository struct {
	store *Store
}

func (r *deedRepository) WithTx(pgx.Tx) deed.Repository { return r }

func (r *deedRepository) Create(_ context.Context, d *deed.Deed) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(OpDeedCreate); err != nil {
		return err
	}
	for _, existing := range s.deeds {
		if existing.CreditNumber == d.CreditNumber {
			return deed.ErrDuplicateCreditNumber{CreditNumber: d.CreditNumber}
		}
	}
	coop, ok := s.cooperatives[d.CooperativeID]
	if !ok {
		return deed.ErrCooperativeNotFound{CooperativeID: d.CooperativeID}
	}

	d.ID = s.nextID()
	for _, b := range d.Borrowers {
		b.ID = s.nextID()
		b.DeedID = d.ID
	}
	for _, sg := range d.CooperativeSigners {
		sg.ID = s.nextID()
		sg.DeedID = d.ID
	}
	d.Cooperative = &coop
	s.deeds[d.ID] = cloneDeed(d)
	return nil
}

func (r *deedRepository) GetByID(_ context.Context, id int64) (*deed.Deed, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.deeds[id]
	if !ok {
		return nil, deed.ErrDeedNotFound{DeedID: id}
	}
	return cloneDeed(d), nil
}

// LockForUpdate is a plain read; ExecuteTx already holds the write lock.
func (r *deedRepository) LockForUpdate(ctx context.Context, id int64) (*deed.Deed, error) {
	return r.GetByID(ctx, id)
}

func (r *deedRepository) UpdateStatus(_ context.Context, id int64, from, to deed.Status, version int) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(OpDeedUpdateStatus); err != nil {
		return err
	}
	d, ok := s.deeds[id]
	if !ok || d.Status != from || d.Version != version {
		return deed.ErrConcurrentModification{DeedID: id}
	}
	d.Status = to
	d.Version++
	d.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *deedRepository) MarkBorrowerSigned(_ context.Context, borrowerID int64, at time.Time) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(OpDeedMarkSigned); err != nil {
		return err
	}
	for _, d := range s.deeds {
		for _, b := range d.Borrowers {
			if b.ID == borrowerID {
				if b.SignedAt != nil {
					return deed.ErrAlreadySigned{PartyID: borrowerID}
				}
				b.SignedAt = &at
				return nil
			}
		}
	}
	return deed.ErrAlreadySigned{PartyID: borrowerID}
}

func (r *deedRepository) MarkCooperativeSignerSigned(_ context.Context, signerID int64, at time.Time) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(OpDeedMarkSigned); err != nil {
		return err
	}
	for _, d := range s.deeds {
		for _, sg := range d.CooperativeSigners {
			if sg.ID == signerID {
				if sg.SignedAt != nil {
					return deed.ErrAlreadySigned{PartyID: signerID}
				}
				sg.SignedAt = &at
				return nil
			}
		}
	}
	return deed.ErrAlreadySigned{PartyID: signerID}
}

func (r *deedRepository) GetCooperative(_ context.Context, id int64) (*deed.Cooperative, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cooperatives[id]
	if !ok {
		return nil, deed.ErrCooperativeNotFound{CooperativeID: id}
	}
	return &c, nil
}

func (r *deedRepository) ListAwaitingBorrower(_ context.Context, personNumber string) ([]*deed.Deed, error) {
	return r.filter(func(d *deed.Deed) bool {
		if d.Status != deed.StatusPendingBorrowerSignature {
			return false
		}
		b, ok := d.Borrower(personNumber)
		return ok && !b.Signed()
	}), nil
}

func (r *deedRepository) ListAwaitingCooperativeSigner(_ context.Context, cooperativeID int64, personNumber string) ([]*deed.Deed, error) {
	return r.filter(func(d *deed.Deed) bool {
		if d.Status != deed.StatusPendingHousingCooperativeSignature || d.CooperativeID != cooperativeID {
			return false
		}
		for _, sg := range d.CooperativeSigners {
			if !sg.Signed() && (personNumber == "" || sg.PersonNumber == personNumber) {
				return true
			}
		}
		return false
	}), nil
}

func (r *deedRepository) CountByStatus(context.Context) (map[deed.Status]int64, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[deed.Status]int64)
	for _, d := range s.deeds {
		counts[d.Status]++
	}
	return counts, nil
}

func (r *deedRepository) CountCooperatives(context.Context) (int64, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.cooperatives)), nil
}

func (r *deedRepository) CountBorrowers(context.Context) (int64, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, d := range s.deeds {
		n += int64(len(d.Borrowers))
	}
	return n, nil
}

func (r *deedRepository) ListLifecycles(context.Context) ([]deed.Lifecycle, error) {
	deeds := r.filter(func(*deed.Deed) bool { return true })
	out := make([]deed.Lifecycle, 0, len(deeds))
	for _, d := range deeds {
		out = append(out, deed.Lifecycle{DeedID: d.ID, Status: d.Status, CreatedAt: d.CreatedAt})
	}
	return out, nil
}

// filter returns copies of the matching deeds ordered by id.
func (r *deedRepository) filter(match func(*deed.Deed) bool) []*deed.Deed {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*deed.Deed
	for _, d := range s.deeds {
		if match(d) {
			out = append(out, cloneDeed(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
