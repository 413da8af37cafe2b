// Package memory is an in-process implementation of the deed, audit and
// notification outbox repositories. Transactions are serialized and roll back
// by restoring a snapshot taken when they begin. It backs engine and
// statistics tests and local runs without a database.
package memory

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/mortgage-deed-signing/internal/domain/audit"
	"github.com/mortgage-deed-signing/internal/domain/deed"
	"github.com/mortgage-deed-signing/internal/domain/notification"
)

type Store struct {
	txMu sync.Mutex   // one transaction at a time
	mu   sync.RWMutex // guards everything below

	cooperatives map[int64]deed.Cooperative
	deeds        map[int64]*deed.Deed
	entries      []audit.Entry
	outbox       []notification.Message
	seq          int64

	// deliveries live outside transactions, like the document store they stand in for
	deliveries []notification.Delivery

	failures map[string]error
}

func NewStore() *Store {
	return &Store{
		cooperatives: make(map[int64]deed.Cooperative),
		deeds:        make(map[int64]*deed.Deed),
		failures:     make(map[string]error),
	}
}

// Operation names accepted by FailNext.
const (
	OpDeedCreate         = "deed.Create"
	OpDeedUpdateStatus   = "deed.UpdateStatus"
	OpDeedMarkSigned     = "deed.MarkSigned"
	OpAuditAppend        = "audit.Append"
	OpOutboxCreate       = "outbox.Create"
	OpOutboxUpdateStatus = "outbox.UpdateStatus"
	OpDeliveryCreate     = "delivery.Create"
	OpDeliveryComplete   = "delivery.Complete"
)

// FailNext makes the next call of op return err.
func (s *Store) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

// injected must be called with mu held for writing.
func (s *Store) injected(op string) error {
	err, ok := s.failures[op]
	if !ok {
		return nil
	}
	delete(s.failures, op)
	return err
}

func (s *Store) nextID() int64 {
	s.seq++
	return s.seq
}

// AddCooperative registers a cooperative and assigns its id.
func (s *Store) AddCooperative(c deed.Cooperative) deed.Cooperative {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.nextID()
	s.cooperatives[c.ID] = c
	return c
}

// ExecuteTx runs fn with exclusive write access. The tx handed to fn is nil;
// the repositories returned by this store ignore it in WithTx.
func (s *Store) ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	defer func() {
		if p := recover(); p != nil {
			s.restore(snap)
			panic(p)
		}
		if err != nil {
			s.restore(snap)
		}
	}()
	return fn(nil)
}

type snapshot struct {
	cooperatives map[int64]deed.Cooperative
	deeds        map[int64]*deed.Deed
	entries      []audit.Entry
	outbox       []notification.Message
	seq          int64
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := snapshot{
		cooperatives: make(map[int64]deed.Cooperative, len(s.cooperatives)),
		deeds:        make(map[int64]*deed.Deed, len(s.deeds)),
		entries:      append([]audit.Entry(nil), s.entries...),
		outbox:       append([]notification.Message(nil), s.outbox...),
		seq:          s.seq,
	}
	for id, c := range s.cooperatives {
		snap.cooperatives[id] = c
	}
	for id, d := range s.deeds {
		snap.deeds[id] = cloneDeed(d)
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cooperatives = snap.cooperatives
	s.deeds = snap.deeds
	s.entries = snap.entries
	s.outbox = snap.outbox
	s.seq = snap.seq
}

func (s *Store) Deeds() deed.Repository {
	return &deedRepository{store: s}
}

func (s *Store) Audit() audit.Repository {
	return &auditRepository{store: s}
}

func (s *Store) Outbox() notification.OutboxRepository {
	return &outboxRepository{store: s}
}

func (s *Store) Deliveries() notification.DeliveryRepository {
	return &deliveryRepository{store: s}
}

func cloneDeed(d *deed.Deed) *deed.Deed {
	c := *d
	c.Borrowers = make([]*deed.Borrower, len(d.Borrowers))
	for i, b := range d.Borrowers {
		cp := *b
		if b.SignedAt != nil {
			at := *b.SignedAt
			cp.SignedAt = &at
		}
		c.Borrowers[i] = &cp
	}
	c.CooperativeSigners = make([]*deed.CooperativeSigner, len(d.CooperativeSigners))
	for i, sg := range d.CooperativeSigners {
		cp := *sg
		if sg.SignedAt != nil {
			at := *sg.SignedAt
			cp.SignedAt = &at
		}
		c.CooperativeSigners[i] = &cp
	}
	if d.Cooperative != nil {
		coop := *d.Cooperative
		c.Cooperative = &coop
	}
	return &c
}
