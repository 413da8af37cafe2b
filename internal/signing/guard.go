package signing

import (
	"github.com/mortgage-deed-signing/internal/domain/deed"
	"github.com/mortgage-deed-signing/internal/domain/identity"
)

// Action is a request against a deed that the guard can approve.
type Action string

const (
	ActionCreateDeed                 Action = "create_deed"
	ActionInitiateSigning            Action = "initiate_signing"
	ActionRecordBorrowerSignature    Action = "record_borrower_signature"
	ActionRecordCooperativeSignature Action = "record_cooperative_signature"
)

// CanTransition decides whether claims may perform action on d. For the
// signature actions, personNumber is the party being signed for; an empty
// value on ActionRecordCooperativeSignature means the caller's own signer.
// The decision depends only on the inputs.
func CanTransition(claims identity.Claims, d *deed.Deed, action Action, personNumber string) bool {
	if d == nil || claims.Validate() != nil {
		return false
	}

	switch claims.Role {
	case identity.RoleAdmin:
		return true

	case identity.RoleBankClerk:
		switch action {
		case ActionCreateDeed, ActionInitiateSigning:
			return claims.BankID == d.BankID
		}
		return false

	case identity.RoleBorrower:
		if action != ActionRecordBorrowerSignature || personNumber != claims.PersonNumber {
			return false
		}
		_, onDeed := d.Borrower(claims.PersonNumber)
		return onDeed

	case identity.RoleCooperativeRepresentative:
		if action != ActionRecordCooperativeSignature || claims.CooperativeID != d.CooperativeID {
			return false
		}
		// a representative cannot sign in another signer's name
		return personNumber == "" || personNumber == claims.PersonNumber
	}
	return false
}

// CanView decides whether claims may read d, its ledger and its notifications.
func CanView(claims identity.Claims, d *deed.Deed) bool {
	if d == nil || claims.Validate() != nil {
		return false
	}
	switch claims.Role {
	case identity.RoleAdmin:
		return true
	case identity.RoleBankClerk:
		return claims.BankID == d.BankID
	case identity.RoleBorrower:
		_, onDeed := d.Borrower(claims.PersonNumber)
		return onDeed
	case identity.RoleCooperativeRepresentative:
		return claims.CooperativeID == d.CooperativeID
	}
	return false
}
