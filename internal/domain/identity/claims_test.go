package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClaims_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		claims  Claims
		wantErr string
	}{
		{"admin", Claims{Subject: "u1", Role: RoleAdmin}, ""},
		{"clerk", Claims{Subject: "u2", Role: RoleBankClerk, BankID: 7}, ""},
		{"clerk without bank", Claims{Subject: "u2", Role: RoleBankClerk}, "requires bank_id"},
		{"borrower", Claims{Subject: "u3", Role: RoleBorrower, PersonNumber: "199001011234"}, ""},
		{"borrower without person number", Claims{Subject: "u3", Role: RoleBorrower}, "requires person_number"},
		{"representative", Claims{Subject: "u4", Role: RoleCooperativeRepresentative, CooperativeID: 2}, ""},
		{"representative without cooperative", Claims{Subject: "u4", Role: RoleCooperativeRepresentative}, "requires cooperative_id"},
		{"unknown role", Claims{Subject: "u5", Role: "auditor"}, "unknown role"},
		{"no subject", Claims{Role: RoleAdmin}, "no subject"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.claims.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				assert.Equal(t, tc.claims.Subject, tc.claims.Actor())
				return
			}
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}
