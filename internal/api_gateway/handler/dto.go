package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mortgage-deed-signing/internal/domain/audit"
	"github.com/mortgage-deed-signing/internal/domain/deed"
	"github.com/mortgage-deed-signing/internal/domain/notification"
	"github.com/mortgage-deed-signing/internal/durations"
)

// CreateDeedRequest represents a request to register a new deed
type CreateDeedRequest struct {
	CreditNumber       string                     `json:"credit_number" binding:"required"`
	ApartmentAddress   string                     `json:"apartment_address" binding:"required"`
	ApartmentNumber    string                     `json:"apartment_number" binding:"required"`
	BankID             int64                      `json:"bank_id" binding:"required,gt=0"`
	CooperativeID      int64                      `json:"cooperative_id" binding:"required,gt=0"`
	Borrowers          []BorrowerRequest          `json:"borrowers" binding:"required,min=1,dive"`
	CooperativeSigners []CooperativeSignerRequest `json:"cooperative_signers" binding:"omitempty,dive"`
}

// BorrowerRequest accepts the ownership share as a JSON number or string
type BorrowerRequest struct {
	Name                string          `json:"name" binding:"required"`
	PersonNumber        string          `json:"person_number" binding:"required"`
	Email               string          `json:"email" binding:"required,email"`
	OwnershipPercentage decimal.Decimal `json:"ownership_percentage"`
}

type CooperativeSignerRequest struct {
	Name         string `json:"name" binding:"required"`
	PersonNumber string `json:"person_number" binding:"required"`
	Email        string `json:"email" binding:"required,email"`
}

// CooperativeSignRequest optionally names the cooperative signer to sign as.
// The person_number query parameter takes precedence.
type CooperativeSignRequest struct {
	PersonNumber string `json:"person_number"`
}

// DeedResponse represents a deed with its parties in API responses
type DeedResponse struct {
	ID                 int64                       `json:"id"`
	CreditNumber       string                      `json:"credit_number"`
	Status             string                      `json:"status"`
	ApartmentAddress   string                      `json:"apartment_address"`
	ApartmentNumber    string                      `json:"apartment_number"`
	BankID             int64                       `json:"bank_id"`
	CooperativeID      int64                       `json:"cooperative_id"`
	CreatedBy          string                      `json:"created_by"`
	CreatedAt          string                      `json:"created_at"`
	UpdatedAt          string                      `json:"updated_at"`
	Borrowers          []BorrowerResponse          `json:"borrowers"`
	CooperativeSigners []CooperativeSignerResponse `json:"cooperative_signers"`
	Cooperative        *CooperativeResponse        `json:"cooperative,omitempty"`
}

type BorrowerResponse struct {
	ID                  int64   `json:"id"`
	Name                string  `json:"name"`
	PersonNumber        string  `json:"person_number"`
	Email               string  `json:"email"`
	OwnershipPercentage string  `json:"ownership_percentage"`
	Signed              bool    `json:"signed"`
	SignedAt            *string `json:"signed_at,omitempty"`
}

type CooperativeSignerResponse struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	PersonNumber string  `json:"person_number"`
	Email        string  `json:"email"`
	Signed       bool    `json:"signed"`
	SignedAt     *string `json:"signed_at,omitempty"`
}

type CooperativeResponse struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	OrganisationNumber string `json:"organisation_number"`
	AdministratorName  string `json:"administrator_name"`
}

// DeedSummaryResponse is the compact form used in listings
type DeedSummaryResponse struct {
	ID               int64  `json:"id"`
	CreditNumber     string `json:"credit_number"`
	Status           string `json:"status"`
	ApartmentAddress string `json:"apartment_address"`
	ApartmentNumber  string `json:"apartment_number"`
	CreatedAt        string `json:"created_at"`
}

type StatusResponse struct {
	DeedID int64  `json:"deed_id"`
	Status string `json:"status"`
}

// AuditEntryResponse represents one ledger entry in API responses
type AuditEntryResponse struct {
	ID          int64  `json:"id"`
	DeedID      *int64 `json:"deed_id"`
	Actor       string `json:"actor"`
	ActionType  string `json:"action_type"`
	Description string `json:"description"`
	NewStatus   string `json:"new_status,omitempty"`
	Succeeded   bool   `json:"succeeded"`
	Timestamp   string `json:"timestamp"`
}

type IntervalResponse struct {
	Status        string  `json:"status"`
	EnteredAt     string  `json:"entered_at"`
	ExitedAt      *string `json:"exited_at"`
	Open          bool    `json:"open"`
	DurationHours float64 `json:"duration_hours"`
}

type StatusDurationsResponse struct {
	DeedID        int64              `json:"deed_id"`
	CurrentStatus string             `json:"current_status"`
	Intervals     []IntervalResponse `json:"intervals"`
	TotalHours    map[string]float64 `json:"total_hours"`
	ComputedAt    string             `json:"computed_at"`
}

type DeliveryResponse struct {
	RequestID      string  `json:"request_id"`
	RecipientEmail string  `json:"recipient_email"`
	TemplateKey    string  `json:"template_key"`
	Status         string  `json:"status"`
	FailureReason  string  `json:"failure_reason,omitempty"`
	QueuedAt       string  `json:"queued_at"`
	CompletedAt    *string `json:"completed_at,omitempty"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatOptionalTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func hours(d time.Duration) float64 {
	return decimal.NewFromFloat(d.Hours()).Round(2).InexactFloat64()
}

func mapDeedToResponse(d *deed.Deed) DeedResponse {
	resp := DeedResponse{
		ID:                 d.ID,
		CreditNumber:       d.CreditNumber,
		Status:             string(d.Status),
		ApartmentAddress:   d.ApartmentAddress,
		ApartmentNumber:    d.ApartmentNumber,
		BankID:             d.BankID,
		CooperativeID:      d.CooperativeID,
		CreatedBy:          d.CreatedBy,
		CreatedAt:          formatTime(d.CreatedAt),
		UpdatedAt:          formatTime(d.UpdatedAt),
		Borrowers:          make([]BorrowerResponse, 0, len(d.Borrowers)),
		CooperativeSigners: make([]CooperativeSignerResponse, 0, len(d.CooperativeSigners)),
	}
	for _, b := range d.Borrowers {
		resp.Borrowers = append(resp.Borrowers, BorrowerResponse{
			ID:                  b.ID,
			Name:                b.Name,
			PersonNumber:        b.PersonNumber,
			Email:               b.Email,
			OwnershipPercentage: b.Ownership.StringFixed(2),
			Signed:              b.Signed(),
			SignedAt:            formatOptionalTime(b.SignedAt),
		})
	}
	for _, s := range d.CooperativeSigners {
		resp.CooperativeSigners = append(resp.CooperativeSigners, CooperativeSignerResponse{
			ID:           s.ID,
			Name:         s.Name,
			PersonNumber: s.PersonNumber,
			Email:        s.Email,
			Signed:       s.Signed(),
			SignedAt:     formatOptionalTime(s.SignedAt),
		})
	}
	if d.Cooperative != nil {
		resp.Cooperative = &CooperativeResponse{
			ID:                 d.Cooperative.ID,
			Name:               d.Cooperative.Name,
			OrganisationNumber: d.Cooperative.OrganisationNumber,
			AdministratorName:  d.Cooperative.AdministratorName,
		}
	}
	return resp
}

func mapDeedToSummary(d *deed.Deed) DeedSummaryResponse {
	return DeedSummaryResponse{
		ID:               d.ID,
		CreditNumber:     d.CreditNumber,
		Status:           string(d.Status),
		ApartmentAddress: d.ApartmentAddress,
		ApartmentNumber:  d.ApartmentNumber,
		CreatedAt:        formatTime(d.CreatedAt),
	}
}

func mapEntryToResponse(e *audit.Entry) AuditEntryResponse {
	return AuditEntryResponse{
		ID:          e.ID,
		DeedID:      e.DeedID,
		Actor:       e.Actor,
		ActionType:  string(e.Action),
		Description: e.Description,
		NewStatus:   e.NewStatus,
		Succeeded:   e.Succeeded,
		Timestamp:   e.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func mapReportToResponse(r *durations.Report) StatusDurationsResponse {
	resp := StatusDurationsResponse{
		DeedID:        r.DeedID,
		CurrentStatus: string(r.CurrentStatus),
		Intervals:     make([]IntervalResponse, 0, len(r.Intervals)),
		TotalHours:    make(map[string]float64, len(r.Durations)),
		ComputedAt:    formatTime(r.ComputedAt),
	}
	for _, i := range r.Intervals {
		resp.Intervals = append(resp.Intervals, IntervalResponse{
			Status:        string(i.Status),
			EnteredAt:     formatTime(i.Start),
			ExitedAt:      formatOptionalTime(i.End),
			Open:          i.Open(),
			DurationHours: hours(i.Duration(r.ComputedAt)),
		})
	}
	for status, d := range r.Durations {
		resp.TotalHours[string(status)] = hours(d)
	}
	return resp
}

func mapDeliveryToResponse(d *notification.Delivery) DeliveryResponse {
	return DeliveryResponse{
		RequestID:      d.RequestID.String(),
		RecipientEmail: d.RecipientEmail,
		TemplateKey:    string(d.TemplateKey),
		Status:         string(d.Status),
		FailureReason:  d.FailureReason,
		QueuedAt:       formatTime(d.QueuedAt),
		CompletedAt:    formatOptionalTime(d.CompletedAt),
	}
}
