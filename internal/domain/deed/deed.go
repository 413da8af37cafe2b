package deed

import (
	"fmt"
	"time"
)

// Status is the signing lifecycle state of a deed.
type Status string

const (
	StatusCreated                            Status = "CREATED"
	StatusPendingBorrowerSignature           Status = "PENDING_BORROWER_SIGNATURE"
	StatusPendingHousingCooperativeSignature Status = "PENDING_HOUSING_COOPERATIVE_SIGNATURE"
	StatusCompleted                          Status = "COMPLETED"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{
	StatusCreated,
	StatusPendingBorrowerSignature,
	StatusPendingHousingCooperativeSignature,
	StatusCompleted,
}

func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted
}

func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown deed status %q", raw)
	}
	return s, nil
}

// Deed is a mortgage deed under signing. Status is changed only by the
// signing engine; Version increments with every status change.
type Deed struct {
	ID               int64
	CreditNumber     string
	Status           Status
	ApartmentAddress string
	ApartmentNumber  string
	BankID           int64
	CooperativeID    int64
	CreatedBy        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Version          int

	Borrowers          []*Borrower
	CooperativeSigners []*CooperativeSigner
	Cooperative        *Cooperative
}

// Borrower finds the borrower row with the given person number.
func (d *Deed) Borrower(personNumber string) (*Borrower, bool) {
	for _, b := range d.Borrowers {
		if b.PersonNumber == personNumber {
			return b, true
		}
	}
	return nil, false
}

// CooperativeSigner finds the cooperative signer row with the given person number.
func (d *Deed) CooperativeSigner(personNumber string) (*CooperativeSigner, bool) {
	for _, s := range d.CooperativeSigners {
		if s.PersonNumber == personNumber {
			return s, true
		}
	}
	return nil, false
}

// AllBorrowersSigned is false for a deed without borrowers.
func (d *Deed) AllBorrowersSigned() bool {
	if len(d.Borrowers) == 0 {
		return false
	}
	for _, b := range d.Borrowers {
		if !b.Signed() {
			return false
		}
	}
	return true
}

// AllCooperativeSignersSigned is false for a deed without cooperative signers.
func (d *Deed) AllCooperativeSignersSigned() bool {
	if len(d.CooperativeSigners) == 0 {
		return false
	}
	for _, s := range d.CooperativeSigners {
		if !s.Signed() {
			return false
		}
	}
	return true
}

// Borrower is a signing party that owns a share of the apartment.
type Borrower struct {
	ID           int64
	DeedID       int64
	Name         string
	PersonNumber string
	Email        string
	Ownership    Percentage
	SignedAt     *time.Time
}

func (b *Borrower) Signed() bool { return b.SignedAt != nil }

// CooperativeSigner signs on behalf of the housing cooperative.
type CooperativeSigner struct {
	ID           int64
	DeedID       int64
	Name         string
	PersonNumber string
	Email        string
	SignedAt     *time.Time
}

func (s *CooperativeSigner) Signed() bool { return s.SignedAt != nil }

type Cooperative struct {
	ID                        int64
	Name                      string
	OrganisationNumber        string
	AdministratorName         string
	AdministratorPersonNumber string
	AdministratorEmail        string
}
