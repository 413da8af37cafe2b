package signing

import (
	"testing"

	"github.com/mortgage-deed-signing/internal/domain/deed"
	"github.com/mortgage-deed-signing/internal/domain/identity"
	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	d := &deed.Deed{
		ID:            1,
		BankID:        10,
		CooperativeID: 20,
		Borrowers: []*deed.Borrower{
			{PersonNumber: "198001011111"},
			{PersonNumber: "198502022222"},
		},
	}
	admin := identity.Claims{Subject: "root", Role: identity.RoleAdmin}
	clerk := identity.Claims{Subject: "clerk", Role: identity.RoleBankClerk, BankID: 10}
	otherClerk := identity.Claims{Subject: "clerk2", Role: identity.RoleBankClerk, BankID: 11}
	borrower := identity.Claims{Subject: "anna", Role: identity.RoleBorrower, PersonNumber: "198001011111"}
	stranger := identity.Claims{Subject: "eve", Role: identity.RoleBorrower, PersonNumber: "199909099999"}
	coopRep := identity.Claims{Subject: "brf", Role: identity.RoleCooperativeRepresentative, CooperativeID: 20}
	otherRep := identity.Claims{Subject: "brf2", Role: identity.RoleCooperativeRepresentative, CooperativeID: 21}
	namedRep := identity.Claims{Subject: "olle", Role: identity.RoleCooperativeRepresentative, CooperativeID: 20, PersonNumber: "197001017777"}

	tests := []struct {
		name   string
		claims identity.Claims
		action Action
		pn     string
		want   bool
	}{
		{"admin initiates", admin, ActionInitiateSigning, "", true},
		{"admin signs for any borrower", admin, ActionRecordBorrowerSignature, "198502022222", true},
		{"admin signs for cooperative", admin, ActionRecordCooperativeSignature, "", true},
		{"admin names a cooperative signer", admin, ActionRecordCooperativeSignature, "196501015555", true},
		{"clerk of owning bank initiates", clerk, ActionInitiateSigning, "", true},
		{"clerk of owning bank creates", clerk, ActionCreateDeed, "", true},
		{"clerk of another bank", otherClerk, ActionInitiateSigning, "", false},
		{"clerk cannot sign", clerk, ActionRecordBorrowerSignature, "198001011111", false},
		{"borrower signs own row", borrower, ActionRecordBorrowerSignature, "198001011111", true},
		{"borrower signs for co-borrower", borrower, ActionRecordBorrowerSignature, "198502022222", false},
		{"borrower cannot initiate", borrower, ActionInitiateSigning, "", false},
		{"person not on deed", stranger, ActionRecordBorrowerSignature, "199909099999", false},
		{"cooperative of the deed", coopRep, ActionRecordCooperativeSignature, "", true},
		{"another cooperative", otherRep, ActionRecordCooperativeSignature, "", false},
		{"representative names self", namedRep, ActionRecordCooperativeSignature, "197001017777", true},
		{"representative names another signer", namedRep, ActionRecordCooperativeSignature, "196501015555", false},
		{"cooperative cannot sign as borrower", coopRep, ActionRecordBorrowerSignature, "198001011111", false},
		{"claims without subject", identity.Claims{Role: identity.RoleAdmin}, ActionInitiateSigning, "", false},
		{"unknown role", identity.Claims{Subject: "x", Role: "auditor"}, ActionInitiateSigning, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.claims, d, tt.action, tt.pn))
		})
	}
}

func TestCanTransition_NilDeed(t *testing.T) {
	assert.False(t, CanTransition(identity.Claims{Subject: "root", Role: identity.RoleAdmin}, nil, ActionInitiateSigning, ""))
}

func TestCanView(t *testing.T) {
	d := &deed.Deed{BankID: 10, CooperativeID: 20, Borrowers: []*deed.Borrower{{PersonNumber: "198001011111"}}}

	assert.True(t, CanView(identity.Claims{Subject: "root", Role: identity.RoleAdmin}, d))
	assert.True(t, CanView(identity.Claims{Subject: "c", Role: identity.RoleBankClerk, BankID: 10}, d))
	assert.False(t, CanView(identity.Claims{Subject: "c", Role: identity.RoleBankClerk, BankID: 11}, d))
	assert.True(t, CanView(identity.Claims{Subject: "b", Role: identity.RoleBorrower, PersonNumber: "198001011111"}, d))
	assert.False(t, CanView(identity.Claims{Subject: "b", Role: identity.RoleBorrower, PersonNumber: "198001019999"}, d))
	assert.True(t, CanView(identity.Claims{Subject: "r", Role: identity.RoleCooperativeRepresentative, CooperativeID: 20}, d))
	assert.False(t, CanView(identity.Claims{Subject: "r", Role: identity.RoleCooperativeRepresentative, CooperativeID: 21}, d))
}
