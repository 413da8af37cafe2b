package deed

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mortgage-deed-signing/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Percentage is an ownership share expressed in percent.
type Percentage = decimal.Decimal

var (
	fullOwnership      = decimal.NewFromInt(100)
	ownershipTolerance = decimal.RequireFromString("0.01")
)

// ValidatePersonNumber accepts exactly twelve digits (YYYYMMDDNNNN).
func ValidatePersonNumber(pn string) error {
	if len(pn) != 12 {
		return shared.ErrValidation{Field: "person_number", Message: "must be exactly 12 digits"}
	}
	for _, r := range pn {
		if r < '0' || r > '9' {
			return shared.ErrValidation{Field: "person_number", Message: "must contain digits only"}
		}
	}
	return nil
}

// ValidateOwnership checks that every share is positive and that the shares
// sum to 100 within 0.01.
func ValidateOwnership(borrowers []*Borrower) error {
	total := decimal.Zero
	for _, b := range borrowers {
		if !b.Ownership.IsPositive() || b.Ownership.GreaterThan(fullOwnership) {
			return shared.ErrValidation{
				Field:   "ownership_percentage",
				Message: fmt.Sprintf("share of %s must be within (0, 100]", b.PersonNumber),
			}
		}
		total = total.Add(b.Ownership)
	}
	if total.Sub(fullOwnership).Abs().GreaterThan(ownershipTolerance) {
		return shared.ErrValidation{
			Field:   "ownership_percentage",
			Message: fmt.Sprintf("shares sum to %s, expected 100", total.StringFixed(2)),
		}
	}
	return nil
}

// NewDeedParams carries the data needed to register a deed.
type NewDeedParams struct {
	CreditNumber       string
	ApartmentAddress   string
	ApartmentNumber    string
	BankID             int64
	Cooperative        *Cooperative
	CreatedBy          string
	Borrowers          []*Borrower
	CooperativeSigners []*CooperativeSigner
}

// NewDeed validates params and returns a deed in StatusCreated. Without
// explicit cooperative signers the cooperative administrator becomes the
// only signer.
func NewDeed(p NewDeedParams, now time.Time) (*Deed, error) {
	var problems []error
	if strings.TrimSpace(p.CreditNumber) == "" {
		problems = append(problems, shared.ErrValidation{Field: "credit_number", Message: "is required"})
	}
	if p.BankID <= 0 {
		problems = append(problems, shared.ErrValidation{Field: "bank_id", Message: "is required"})
	}
	if p.Cooperative == nil {
		problems = append(problems, shared.ErrValidation{Field: "cooperative_id", Message: "must reference an existing cooperative"})
	}
	if len(p.Borrowers) == 0 {
		problems = append(problems, shared.ErrValidation{Field: "borrowers", Message: "at least one borrower is required"})
	}
	if len(problems) > 0 {
		return nil, errors.Join(problems...)
	}

	seen := make(map[string]struct{}, len(p.Borrowers))
	for _, b := range p.Borrowers {
		if err := ValidatePersonNumber(b.PersonNumber); err != nil {
			return nil, err
		}
		if _, dup := seen[b.PersonNumber]; dup {
			return nil, shared.ErrValidation{Field: "borrowers", Message: "duplicate person number " + b.PersonNumber}
		}
		seen[b.PersonNumber] = struct{}{}
		b.SignedAt = nil
	}
	if err := ValidateOwnership(p.Borrowers); err != nil {
		return nil, err
	}

	signers := p.CooperativeSigners
	if len(signers) == 0 {
		signers = []*CooperativeSigner{{
			Name:         p.Cooperative.AdministratorName,
			PersonNumber: p.Cooperative.AdministratorPersonNumber,
			Email:        p.Cooperative.AdministratorEmail,
		}}
	}
	for _, s := range signers {
		if err := ValidatePersonNumber(s.PersonNumber); err != nil {
			return nil, err
		}
		s.SignedAt = nil
	}

	return &Deed{
		CreditNumber:       strings.TrimSpace(p.CreditNumber),
		Status:             StatusCreated,
		ApartmentAddress:   p.ApartmentAddress,
		ApartmentNumber:    p.ApartmentNumber,
		BankID:             p.BankID,
		CooperativeID:      p.Cooperative.ID,
		CreatedBy:          p.CreatedBy,
		CreatedAt:          now,
		UpdatedAt:          now,
		Version:            1,
		Borrowers:          p.Borrowers,
		CooperativeSigners: signers,
		Cooperative:        p.Cooperative,
	}, nil
}
