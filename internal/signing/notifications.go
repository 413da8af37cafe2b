package signing

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mortgage-deed-signing/internal/domain/deed"
	"github.com/mortgage-deed-signing/internal/domain/notification"
)

// Audience is one group of recipients notified about a transition. Each
// audience produces one notification-sent ledger entry.
type Audience struct {
	Name     string
	Requests []*notification.Request
}

// Composer turns a deed transition into notification requests.
type Composer struct {
	fromName    string
	frontendURL string
}

func NewComposer(fromName, frontendURL string) *Composer {
	return &Composer{fromName: fromName, frontendURL: strings.TrimRight(frontendURL, "/")}
}

func (c *Composer) vars(d *deed.Deed) map[string]string {
	vars := map[string]string{
		"deed_id":           strconv.FormatInt(d.ID, 10),
		"credit_number":     d.CreditNumber,
		"apartment_address": d.ApartmentAddress,
		"apartment_number":  d.ApartmentNumber,
		"from_name":         c.fromName,
		"deed_url":          fmt.Sprintf("%s/deeds/%d", c.frontendURL, d.ID),
		"sign_url":          fmt.Sprintf("%s/deeds/%d/sign", c.frontendURL, d.ID),
	}
	if d.Cooperative != nil {
		vars["cooperative_name"] = d.Cooperative.Name
	}
	return vars
}

// SigningInitiated asks every borrower to sign and tells the cooperative
// administrator that signing has started.
func (c *Composer) SigningInitiated(d *deed.Deed, correlationID string) []Audience {
	vars := c.vars(d)
	audiences := []Audience{c.borrowers(d, notification.TemplateBorrowerSign, vars, correlationID)}
	if admin, ok := c.cooperativeAdmin(d, notification.TemplateCooperativeSigningInitiated, vars, correlationID); ok {
		audiences = append(audiences, admin)
	}
	return audiences
}

// BorrowersSigned asks every cooperative signer to sign.
func (c *Composer) BorrowersSigned(d *deed.Deed, correlationID string) []Audience {
	vars := c.vars(d)
	a := Audience{Name: "cooperative signers"}
	for _, s := range d.CooperativeSigners {
		if s.Signed() {
			continue
		}
		to := notification.Recipient{Name: s.Name, Email: s.Email}
		a.Requests = append(a.Requests, notification.NewRequest(d.ID, to, notification.TemplateCooperativeSign, vars, correlationID))
	}
	return []Audience{a}
}

// Completed tells the borrowers and the cooperative administrator that the
// deed is fully signed.
func (c *Composer) Completed(d *deed.Deed, correlationID string) []Audience {
	vars := c.vars(d)
	audiences := []Audience{c.borrowers(d, notification.TemplateDeedCompleted, vars, correlationID)}
	if admin, ok := c.cooperativeAdmin(d, notification.TemplateDeedCompleted, vars, correlationID); ok {
		audiences = append(audiences, admin)
	}
	return audiences
}

func (c *Composer) borrowers(d *deed.Deed, key notification.TemplateKey, vars map[string]string, correlationID string) Audience {
	a := Audience{Name: "borrowers"}
	for _, b := range d.Borrowers {
		to := notification.Recipient{Name: b.Name, Email: b.Email}
		a.Requests = append(a.Requests, notification.NewRequest(d.ID, to, key, vars, correlationID))
	}
	return a
}

func (c *Composer) cooperativeAdmin(d *deed.Deed, key notification.TemplateKey, vars map[string]string, correlationID string) (Audience, bool) {
	if d.Cooperative == nil || d.Cooperative.AdministratorEmail == "" {
		return Audience{}, false
	}
	to := notification.Recipient{Name: d.Cooperative.AdministratorName, Email: d.Cooperative.AdministratorEmail}
	return Audience{
		Name:     "cooperative " + d.Cooperative.Name,
		Requests: []*notification.Request{notification.NewRequest(d.ID, to, key, vars, correlationID)},
	}, true
}
