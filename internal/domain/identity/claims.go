// Package identity models the resolved caller identity that accompanies every
// engine call. Claims are issued by the external identity provider and are
// trusted as-is.
package identity

import (
	"errors"
	"fmt"
)

// Role tags which variant of Claims is populated.
type Role string

const (
	RoleAdmin                     Role = "admin"
	RoleBankClerk                 Role = "bank_clerk"
	RoleBorrower                  Role = "borrower"
	RoleCooperativeRepresentative Role = "cooperative_representative"
)

// Claims is a tagged variant keyed by Role:
//   - RoleAdmin: no further fields
//   - RoleBankClerk: BankID
//   - RoleBorrower: PersonNumber
//   - RoleCooperativeRepresentative: CooperativeID, PersonNumber
type Claims struct {
	Subject       string `json:"sub"`
	Role          Role   `json:"role"`
	PersonNumber  string `json:"person_number,omitempty"`
	BankID        int64  `json:"bank_id,omitempty"`
	CooperativeID int64  `json:"cooperative_id,omitempty"`
}

var ErrMissingSubject = errors.New("claims carry no subject")

// Validate checks that the fields required by the role tag are present.
func (c Claims) Validate() error {
	if c.Subject == "" {
		return ErrMissingSubject
	}
	switch c.Role {
	case RoleAdmin:
		return nil
	case RoleBankClerk:
		if c.BankID <= 0 {
			return fmt.Errorf("role %s requires bank_id", c.Role)
		}
	case RoleBorrower:
		if c.PersonNumber == "" {
			return fmt.Errorf("role %s requires person_number", c.Role)
		}
	case RoleCooperativeRepresentative:
		if c.CooperativeID <= 0 {
			return fmt.Errorf("role %s requires cooperative_id", c.Role)
		}
	default:
		return fmt.Errorf("unknown role %q", c.Role)
	}
	return nil
}

// Actor is the identity written to the ledger.
func (c Claims) Actor() string {
	return c.Subject
}
