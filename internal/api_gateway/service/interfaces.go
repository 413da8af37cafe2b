package service

import (
	"context"

	"github.com/mortgage-deed-signing/internal/domain/audit"
	"github.com/mortgage-deed-signing/internal/domain/deed"
	"github.com/mortgage-deed-signing/internal/domain/identity"
	"github.com/mortgage-deed-signing/internal/domain/notification"
	"github.com/mortgage-deed-signing/internal/durations"
	"github.com/mortgage-deed-signing/internal/signing"
	"github.com/mortgage-deed-signing/internal/stats"
)

// SigningService drives the deed through its signing workflow.
// Implemented by *signing.Engine.
type SigningService interface {
	// CreateDeed registers a deed in CREATED together with its parties
	CreateDeed(ctx context.Context, claims identity.Claims, in signing.CreateDeedInput) (*deed.Deed, error)

	// InitiateSigning moves a CREATED deed to PENDING_BORROWER_SIGNATURE
	InitiateSigning(ctx context.Context, claims identity.Claims, deedID int64) (*deed.Deed, error)

	// RecordBorrowerSignature is idempotent per borrower
	RecordBorrowerSignature(ctx context.Context, claims identity.Claims, deedID int64, personNumber string) (*deed.Deed, error)

	// RecordCooperativeSignature signs as the named cooperative signer, or as
	// the caller's own signer when personNumber is empty
	RecordCooperativeSignature(ctx context.Context, claims identity.Claims, deedID int64, personNumber string) (*deed.Deed, error)

	// GetDeed returns ErrAuthorization when the caller is not a party of the deed
	GetDeed(ctx context.Context, claims identity.Claims, deedID int64) (*deed.Deed, error)

	PendingForActor(ctx context.Context, claims identity.Claims) ([]*deed.Deed, error)
}

// AuditReader pages through a deed's ledger. Implemented by *ledger.Ledger.
type AuditReader interface {
	Page(ctx context.Context, deedID int64, after audit.Cursor, limit int) ([]*audit.Entry, audit.Cursor, error)
}

// DurationReporter is implemented by *durations.Accumulator.
type DurationReporter interface {
	StatusDurations(ctx context.Context, deedID int64) (*durations.Report, error)
}

// DeliveryLister reads notification delivery documents of a deed.
type DeliveryLister interface {
	ListByDeedID(ctx context.Context, deedID int64, limit, offset int) ([]*notification.Delivery, error)
	CountByDeedID(ctx context.Context, deedID int64) (int64, error)
}

// StatsService is implemented by *stats.Aggregator.
type StatsService interface {
	Summary(ctx context.Context) (*stats.Summary, error)
	AverageStatusDurations(ctx context.Context) ([]stats.StatusDuration, error)
	Timeline(ctx context.Context, days int) ([]stats.TimelinePoint, error)
}

// DeedQueryService serves the read-only views of a single deed. Every call
// first checks that the caller may see the deed.
type DeedQueryService interface {
	// AuditLog returns a page of ledger entries and the cursor of the next page,
	// which is empty on the last page
	AuditLog(ctx context.Context, claims identity.Claims, deedID int64, cursor string, limit int) ([]*audit.Entry, string, error)

	StatusDurations(ctx context.Context, claims identity.Claims, deedID int64) (*durations.Report, error)

	// Notifications returns a page of delivery documents and the total count
	Notifications(ctx context.Context, claims identity.Claims, deedID int64, page, perPage int) ([]*notification.Delivery, int64, error)
}
