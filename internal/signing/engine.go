// Package signing is the deed signing state machine. Every mutating operation
// runs in one storage transaction that locks the deed row, so the status
// change, its ledger entries and the queued notification requests commit or
// roll back together.
package signing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mortgage-deed-signing/internal/domain/audit"
	"github.com/mortgage-deed-signing/internal/domain/deed"
	"github.com/mortgage-deed-signing/internal/domain/identity"
	"github.com/mortgage-deed-signing/internal/domain/notification"
	"github.com/mortgage-deed-signing/internal/domain/shared"
	"github.com/mortgage-deed-signing/internal/ledger"
	"github.com/mortgage-deed-signing/internal/logger"
	"github.com/mortgage-deed-signing/internal/platform/metrics"
	"github.com/mortgage-deed-signing/internal/platform/persistence"
)

type Engine struct {
	tx       persistence.TxRunner
	deeds    deed.Repository
	ledger   *ledger.Ledger
	outbox   notification.OutboxRepository
	composer *Composer
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Engine)

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock sets the clock used for creation and signature timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(
	tx persistence.TxRunner,
	deeds deed.Repository,
	auditLedger *ledger.Ledger,
	outbox notification.OutboxRepository,
	composer *Composer,
	logger *slog.Logger,
	opts ...Option,
) *Engine {
	e := &Engine{
		tx:       tx,
		deeds:    deeds,
		ledger:   auditLedger,
		outbox:   outbox,
		composer: composer,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// scope binds the repositories to one transaction and collects the
// transitions and signatures to report once it commits.
type scope struct {
	deeds       deed.Repository
	ledger      *ledger.Ledger
	outbox      notification.OutboxRepository
	transitions [][2]deed.Status
	signatures  []signature
}

type signature struct {
	party     string
	duplicate bool
}

func (s *scope) signed(party string, duplicate bool) {
	s.signatures = append(s.signatures, signature{party: party, duplicate: duplicate})
}

func (e *Engine) inTx(ctx context.Context, fn func(s *scope) error) error {
	var committed *scope
	err := e.tx.ExecuteTx(ctx, func(tx pgx.Tx) error {
		s := &scope{
			deeds:  e.deeds.WithTx(tx),
			ledger: e.ledger.WithTx(tx),
			outbox: e.outbox.WithTx(tx),
		}
		if err := fn(s); err != nil {
			return err
		}
		committed = s
		return nil
	})
	if err != nil {
		return err
	}
	for _, t := range committed.transitions {
		e.metrics.ObserveTransition(string(t[0]), string(t[1]))
	}
	for _, sig := range committed.signatures {
		e.metrics.ObserveSignature(sig.party, sig.duplicate)
	}
	return nil
}

// CreateDeedInput is the data a bank clerk submits to register a deed.
type CreateDeedInput struct {
	CreditNumber       string
	ApartmentAddress   string
	ApartmentNumber    string
	BankID             int64
	CooperativeID      int64
	Borrowers          []*deed.Borrower
	CooperativeSigners []*deed.CooperativeSigner
}

// CreateDeed registers a deed in StatusCreated together with its parties.
func (e *Engine) CreateDeed(ctx context.Context, claims identity.Claims, in CreateDeedInput) (*deed.Deed, error) {
	if !CanTransition(claims, &deed.Deed{BankID: in.BankID, CooperativeID: in.CooperativeID}, ActionCreateDeed, "") {
		return nil, e.deny(claims, ActionCreateDeed, 0)
	}

	var created *deed.Deed
	err := e.inTx(ctx, func(s *scope) error {
		coop, err := s.deeds.GetCooperative(ctx, in.CooperativeID)
		if err != nil {
			return err
		}
		d, err := deed.NewDeed(deed.NewDeedParams{
			CreditNumber:       in.CreditNumber,
			ApartmentAddress:   in.ApartmentAddress,
			ApartmentNumber:    in.ApartmentNumber,
			BankID:             in.BankID,
			Cooperative:        coop,
			CreatedBy:          claims.Actor(),
			Borrowers:          in.Borrowers,
			CooperativeSigners: in.CooperativeSigners,
		}, e.now())
		if err != nil {
			return err
		}
		if err := s.deeds.Create(ctx, d); err != nil {
			return err
		}
		_, err = s.ledger.Append(ctx, ledger.Record{
			DeedID:      d.ID,
			Actor:       claims.Actor(),
			Action:      audit.ActionFieldUpdated,
			Description: fmt.Sprintf("Deed created with credit number %s and %d borrower(s)", d.CreditNumber, len(d.Borrowers)),
		})
		created = d
		return err
	})
	if err != nil {
		return nil, e.translate("create deed", 0, err)
	}
	e.logger.Info("Deed created", "deed_id", created.ID, "credit_number", created.CreditNumber, "actor", claims.Actor())
	return created, nil
}

// InitiateSigning sends a CREATED deed out for borrower signatures.
func (e *Engine) InitiateSigning(ctx context.Context, claims identity.Claims, deedID int64) (*deed.Deed, error) {
	var result *deed.Deed
	err := e.inTx(ctx, func(s *scope) error {
		d, err := s.deeds.LockForUpdate(ctx, deedID)
		if err != nil {
			return err
		}
		if !CanTransition(claims, d, ActionInitiateSigning, "") {
			return e.deny(claims, ActionInitiateSigning, deedID)
		}
		if d.Status != deed.StatusCreated {
			return invalidState(d, ActionInitiateSigning, "")
		}
		if len(d.Borrowers) == 0 {
			return invalidState(d, ActionInitiateSigning, "deed has no borrowers")
		}

		if err := e.advance(ctx, s, d, deed.StatusPendingBorrowerSignature, claims.Actor(), "Deed sent for signing"); err != nil {
			return err
		}
		if err := e.queue(ctx, s, d, claims.Actor(), e.composer.SigningInitiated(d, logger.CorrelationID(ctx))); err != nil {
			return err
		}
		result = d
		return nil
	})
	if err != nil {
		return nil, e.translate("initiate signing", deedID, err)
	}
	return result, nil
}

// RecordBorrowerSignature sets the signature of the borrower with the given
// person number. The last outstanding borrower signature advances the deed
// to PENDING_HOUSING_COOPERATIVE_SIGNATURE in the same transaction. Signing
// twice changes nothing but is still recorded in the ledger.
func (e *Engine) RecordBorrowerSignature(ctx context.Context, claims identity.Claims, deedID int64, personNumber string) (*deed.Deed, error) {
	var result *deed.Deed
	err := e.inTx(ctx, func(s *scope) error {
		d, err := s.deeds.LockForUpdate(ctx, deedID)
		if err != nil {
			return err
		}
		if !CanTransition(claims, d, ActionRecordBorrowerSignature, personNumber) {
			return e.deny(claims, ActionRecordBorrowerSignature, deedID)
		}
		if d.Status != deed.StatusPendingBorrowerSignature {
			return invalidState(d, ActionRecordBorrowerSignature, "")
		}
		b, ok := d.Borrower(personNumber)
		if !ok {
			return shared.ErrNotFound{Resource: "borrower", Key: personNumber}
		}

		result = d
		if b.Signed() {
			s.signed("borrower", true)
			return e.note(ctx, s, d, claims.Actor(), fmt.Sprintf("Borrower %s had already signed; nothing changed", partyName(b.Name, b.PersonNumber)))
		}

		at := e.now()
		if err := s.deeds.MarkBorrowerSigned(ctx, b.ID, at); err != nil {
			return err
		}
		b.SignedAt = &at
		s.signed("borrower", false)
		if err := e.note(ctx, s, d, claims.Actor(), fmt.Sprintf("Borrower %s signed", partyName(b.Name, b.PersonNumber))); err != nil {
			return err
		}

		if !d.AllBorrowersSigned() {
			return nil
		}
		if err := e.advance(ctx, s, d, deed.StatusPendingHousingCooperativeSignature, claims.Actor(), "All borrowers signed"); err != nil {
			return err
		}
		return e.queue(ctx, s, d, claims.Actor(), e.composer.BorrowersSigned(d, logger.CorrelationID(ctx)))
	})
	if err != nil {
		return nil, e.translate("record borrower signature", deedID, err)
	}
	return result, nil
}

// RecordCooperativeSignature signs on behalf of the housing cooperative.
// personNumber names the cooperative signer and defaults to the caller's own
// person number. When nothing names a signer of the deed and the deed has a
// single signer, that signer is used. The deed completes once every
// cooperative signer has signed.
func (e *Engine) RecordCooperativeSignature(ctx context.Context, claims identity.Claims, deedID int64, personNumber string) (*deed.Deed, error) {
	var result *deed.Deed
	err := e.inTx(ctx, func(s *scope) error {
		d, err := s.deeds.LockForUpdate(ctx, deedID)
		if err != nil {
			return err
		}
		if !CanTransition(claims, d, ActionRecordCooperativeSignature, personNumber) {
			return e.deny(claims, ActionRecordCooperativeSignature, deedID)
		}
		if d.Status != deed.StatusPendingHousingCooperativeSignature {
			return invalidState(d, ActionRecordCooperativeSignature, "")
		}
		signer, err := cooperativeSignerFor(d, claims, personNumber)
		if err != nil {
			return err
		}

		result = d
		if signer.Signed() {
			s.signed("cooperative", true)
			return e.note(ctx, s, d, claims.Actor(), fmt.Sprintf("Cooperative signer %s had already signed; nothing changed", partyName(signer.Name, signer.PersonNumber)))
		}

		at := e.now()
		if err := s.deeds.MarkCooperativeSignerSigned(ctx, signer.ID, at); err != nil {
			return err
		}
		signer.SignedAt = &at
		s.signed("cooperative", false)
		if err := e.note(ctx, s, d, claims.Actor(), fmt.Sprintf("Cooperative signer %s signed", partyName(signer.Name, signer.PersonNumber))); err != nil {
			return err
		}

		if !d.AllCooperativeSignersSigned() {
			return nil
		}
		if err := e.advance(ctx, s, d, deed.StatusCompleted, claims.Actor(), "Housing cooperative signed; deed completed"); err != nil {
			return err
		}
		return e.queue(ctx, s, d, claims.Actor(), e.composer.Completed(d, logger.CorrelationID(ctx)))
	})
	if err != nil {
		return nil, e.translate("record cooperative signature", deedID, err)
	}
	return result, nil
}

// GetStatus reads the current status without locking.
func (e *Engine) GetStatus(ctx context.Context, deedID int64) (deed.Status, error) {
	d, err := e.deeds.GetByID(ctx, deedID)
	if err != nil {
		return "", e.translate("get deed status", deedID, err)
	}
	return d.Status, nil
}

// GetDeed returns the deed with its parties if claims may view it.
func (e *Engine) GetDeed(ctx context.Context, claims identity.Claims, deedID int64) (*deed.Deed, error) {
	d, err := e.deeds.GetByID(ctx, deedID)
	if err != nil {
		return nil, e.translate("get deed", deedID, err)
	}
	if !CanView(claims, d) {
		return nil, shared.ErrAuthorization{Actor: claims.Actor(), Role: string(claims.Role), Action: "view", DeedID: deedID}
	}
	return d, nil
}

// PendingForActor lists the deeds that wait for the caller's signature.
func (e *Engine) PendingForActor(ctx context.Context, claims identity.Claims) ([]*deed.Deed, error) {
	var (
		deeds []*deed.Deed
		err   error
	)
	switch claims.Role {
	case identity.RoleBorrower:
		deeds, err = e.deeds.ListAwaitingBorrower(ctx, claims.PersonNumber)
	case identity.RoleCooperativeRepresentative:
		deeds, err = e.deeds.ListAwaitingCooperativeSigner(ctx, claims.CooperativeID, claims.PersonNumber)
	default:
		return []*deed.Deed{}, nil
	}
	if err != nil {
		return nil, e.translate("list pending deeds", 0, err)
	}
	if deeds == nil {
		deeds = []*deed.Deed{}
	}
	return deeds, nil
}

// advance moves d to the next status and records the change. The version
// check in UpdateStatus rejects a second advance from the same state.
func (e *Engine) advance(ctx context.Context, s *scope, d *deed.Deed, to deed.Status, actor, reason string) error {
	from := d.Status
	if err := s.deeds.UpdateStatus(ctx, d.ID, from, to, d.Version); err != nil {
		return err
	}
	d.Status = to
	d.Version++
	d.UpdatedAt = e.now()

	_, err := s.ledger.Append(ctx, ledger.Record{
		DeedID:      d.ID,
		Actor:       actor,
		Action:      audit.ActionStatusChanged,
		Description: fmt.Sprintf("%s: status changed from %s to %s", reason, from, to),
		NewStatus:   string(to),
	})
	if err != nil {
		return err
	}
	s.transitions = append(s.transitions, [2]deed.Status{from, to})
	e.logger.Info("Deed status changed", "deed_id", d.ID, "from", string(from), "to", string(to), "actor", actor)
	return nil
}

// queue writes the notification requests to the outbox, where the dispatcher
// only sees them after commit, and records one entry per audience.
func (e *Engine) queue(ctx context.Context, s *scope, d *deed.Deed, actor string, audiences []Audience) error {
	for _, a := range audiences {
		if len(a.Requests) == 0 {
			continue
		}
		for _, req := range a.Requests {
			msg, err := notification.NewMessage(req)
			if err != nil {
				return fmt.Errorf("failed to encode notification request: %w", err)
			}
			if err := s.outbox.Create(ctx, msg); err != nil {
				return err
			}
		}
		_, err := s.ledger.Append(ctx, ledger.Record{
			DeedID:      d.ID,
			Actor:       actor,
			Action:      audit.ActionNotificationSent,
			Description: fmt.Sprintf("Notification %s queued for %s (%d recipient(s))", a.Requests[0].TemplateKey, a.Name, len(a.Requests)),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) note(ctx context.Context, s *scope, d *deed.Deed, actor, description string) error {
	_, err := s.ledger.Append(ctx, ledger.Record{
		DeedID:      d.ID,
		Actor:       actor,
		Action:      audit.ActionSignatureRecorded,
		Description: description,
	})
	return err
}

func (e *Engine) deny(claims identity.Claims, action Action, deedID int64) error {
	e.metrics.ObserveGuardDenial(string(action), string(claims.Role))
	e.logger.Warn("Signing action denied", "deed_id", deedID, "action", string(action), "role", string(claims.Role), "actor", claims.Actor())
	return shared.ErrAuthorization{Actor: claims.Actor(), Role: string(claims.Role), Action: string(action), DeedID: deedID}
}

// translate maps repository failures onto the workflow error taxonomy.
// Errors that already carry a code pass through.
func (e *Engine) translate(op string, deedID int64, err error) error {
	var (
		coded       shared.CodedError
		notFound    deed.ErrDeedNotFound
		coopMissing deed.ErrCooperativeNotFound
		conflict    deed.ErrConcurrentModification
		duplicate   deed.ErrDuplicateCreditNumber
	)
	switch {
	case errors.As(err, &coded):
		return err
	case errors.As(err, &notFound):
		return shared.ErrNotFound{Resource: "deed", Key: strconv.FormatInt(notFound.DeedID, 10)}
	case errors.As(err, &coopMissing):
		return shared.ErrNotFound{Resource: "cooperative", Key: strconv.FormatInt(coopMissing.CooperativeID, 10)}
	case errors.As(err, &duplicate):
		return shared.ErrValidation{Field: "credit_number", Message: "already exists: " + duplicate.CreditNumber}
	case errors.As(err, &conflict):
		return shared.ErrStorage{Op: op, LockContention: true, Err: err}
	}
	e.logger.Error("Signing operation failed", "op", op, "deed_id", deedID, "error", err)
	return shared.ErrStorage{Op: op, LockContention: persistence.IsLockContention(err), Err: err}
}

func invalidState(d *deed.Deed, action Action, reason string) error {
	return shared.ErrInvalidState{DeedID: d.ID, Current: string(d.Status), Action: string(action), Reason: reason}
}

// cooperativeSignerFor resolves the signer to sign as. An explicitly named
// person number must belong to a signer of the deed.
func cooperativeSignerFor(d *deed.Deed, claims identity.Claims, personNumber string) (*deed.CooperativeSigner, error) {
	if personNumber != "" {
		if s, ok := d.CooperativeSigner(personNumber); ok {
			return s, nil
		}
		return nil, shared.ErrNotFound{Resource: "cooperative signer", Key: personNumber}
	}
	if claims.PersonNumber != "" {
		if s, ok := d.CooperativeSigner(claims.PersonNumber); ok {
			return s, nil
		}
	}
	switch len(d.CooperativeSigners) {
	case 0:
		return nil, shared.ErrNotFound{Resource: "cooperative signer", Key: claims.PersonNumber}
	case 1:
		return d.CooperativeSigners[0], nil
	}
	return nil, shared.ErrValidation{Field: "person_number", Message: "required when the deed has several cooperative signers"}
}

func partyName(name, personNumber string) string {
	if name != "" {
		return name
	}
	return personNumber
}
