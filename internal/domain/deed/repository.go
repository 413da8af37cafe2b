package deed

import (
	"context"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
)

// Repository persists deeds together with their signing parties.
type Repository interface {
	Create(ctx context.Context, d *Deed) error
	GetByID(ctx context.Context, id int64) (*Deed, error)

	// LockForUpdate loads the deed and its parties while holding a row lock
	// on the deed until the surrounding transaction ends.
	LockForUpdate(ctx context.Context, id int64) (*Deed, error)

	// UpdateStatus moves the deed from one status to another, guarded by the
	// expected version. It fails with ErrConcurrentModification otherwise.
	UpdateStatus(ctx context.Context, id int64, from, to Status, version int) error

	// MarkBorrowerSigned and MarkCooperativeSignerSigned set the signature
	// timestamp once; a second call reports ErrAlreadySigned.
	MarkBorrowerSigned(ctx context.Context, borrowerID int64, at time.Time) error
	MarkCooperativeSignerSigned(ctx context.Context, signerID int64, at time.Time) error

	GetCooperative(ctx context.Context, id int64) (*Cooperative, error)

	ListAwaitingBorrower(ctx context.Context, personNumber string) ([]*Deed, error)
	ListAwaitingCooperativeSigner(ctx context.Context, cooperativeID int64, personNumber string) ([]*Deed, error)

	CountByStatus(ctx context.Context) (map[Status]int64, error)
	CountCooperatives(ctx context.Context) (int64, error)
	CountBorrowers(ctx context.Context) (int64, error)
	ListLifecycles(ctx context.Context) ([]Lifecycle, error)

	WithTx(tx pgx.Tx) Repository
}

// Lifecycle is the minimal per-deed view needed to replay status history.
type Lifecycle struct {
	DeedID    int64
	Status    Status
	CreatedAt time.Time
}

type ErrDeedNotFound struct {
	DeedID int64
}

func (e ErrDeedNotFound) Error() string {
	return "deed not found: " + strconv.FormatInt(e.DeedID, 10)
}

type ErrCooperativeNotFound struct {
	CooperativeID int64
}

func (e ErrCooperativeNotFound) Error() string {
	return "cooperative not found: " + strconv.FormatInt(e.CooperativeID, 10)
}

// ErrConcurrentModification indicates a failed version check on the deed row.
type ErrConcurrentModification struct {
	DeedID int64
}

func (e ErrConcurrentModification) Error() string {
	return "concurrent modification detected for deed: " + strconv.FormatInt(e.DeedID, 10)
}

type ErrDuplicateCreditNumber struct {
	CreditNumber string
}

func (e ErrDuplicateCreditNumber) Error() string {
	return "deed with credit number already exists: " + e.CreditNumber
}

// ErrAlreadySigned is returned when a signature timestamp is already set.
type ErrAlreadySigned struct {
	PartyID int64
}

func (e ErrAlreadySigned) Error() string {
	return "party has already signed: " + strconv.FormatInt(e.PartyID, 10)
}
