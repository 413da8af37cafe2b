// Package postgres implements the domain repositories on PostgreSQL. Every
// repository runs against the pool by default and against a transaction after
// WithTx, so several repositories can share one unit of work.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mortgage-deed-signing/internal/domain/deed"
	"github.com/mortgage-deed-signing/internal/platform/persistence"
	"github.com/shopspring/decimal"
)

const deedColumns = `
	d.id, d.credit_number, d.status, d.apartment_address, d.apartment_number,
	d.bank_id, d.cooperative_id, d.created_by, d.created_at, d.updated_at, d.version,
	c.id, c.name, c.organisation_number, c.administrator_name,
	c.administrator_person_number, c.administrator_email`

type DeedRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewDeedRepository(logger *slog.Logger, querier persistence.Querier) deed.Repository {
	return &DeedRepository{querier: querier, logger: logger}
}

func (r *DeedRepository) WithTx(tx pgx.Tx) deed.Repository {
	return &DeedRepository{querier: tx, logger: r.logger}
}

// Create inserts the deed and its parties. It must run inside a transaction
// for the inserts to be atomic.
func (r *DeedRepository) Create(ctx context.Context, d *deed.Deed) error {
	query := `
		INSERT INTO deeds (credit_number, status, apartment_address, apartment_number,
			bank_id, cooperative_id, created_by, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	err := r.querier.QueryRow(ctx, query,
		d.CreditNumber,
		d.Status,
		d.ApartmentAddress,
		d.ApartmentNumber,
		d.BankID,
		d.CooperativeID,
		d.CreatedBy,
		d.CreatedAt,
		d.UpdatedAt,
		d.Version,
	).Scan(&d.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return deed.ErrDuplicateCreditNumber{CreditNumber: d.CreditNumber}
			case "23503":
				return deed.ErrCooperativeNotFound{CooperativeID: d.CooperativeID}
			}
		}
		r.logger.Error("Failed to create deed", "credit_number", d.CreditNumber, "error", err)
		return fmt.Errorf("failed to create deed: %w", err)
	}

	for _, b := range d.Borrowers {
		b.DeedID = d.ID
		err := r.querier.QueryRow(ctx, `
			INSERT INTO borrowers (deed_id, name, person_number, email, ownership_percentage)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, b.DeedID, b.Name, b.PersonNumber, b.Email, b.Ownership).Scan(&b.ID)
		if err != nil {
			return fmt.Errorf("failed to create borrower for deed %d: %w", d.ID, err)
		}
	}

	for _, s := range d.CooperativeSigners {
		s.DeedID = d.ID
		err := r.querier.QueryRow(ctx, `
			INSERT INTO cooperative_signers (deed_id, name, person_number, email)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, s.DeedID, s.Name, s.PersonNumber, s.Email).Scan(&s.ID)
		if err != nil {
			return fmt.Errorf("failed to create cooperative signer for deed %d: %w", d.ID, err)
		}
	}

	return nil
}

func (r *DeedRepository) GetByID(ctx context.Context, id int64) (*deed.Deed, error) {
	query := `SELECT ` + deedColumns + `
		FROM deeds d
		JOIN cooperatives c ON c.id = d.cooperative_id
		WHERE d.id = $1
	`
	d, err := scanDeed(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, deed.ErrDeedNotFound{DeedID: id}
		}
		r.logger.Error("Failed to get deed", "deed_id", id, "error", err)
		return nil, fmt.Errorf("failed to get deed: %w", err)
	}
	if err := r.loadParties(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// LockForUpdate locks only the deed row. Party rows are written solely while
// that lock is held, so reading them afterwards is consistent.
func (r *DeedRepository) LockForUpdate(ctx context.Context, id int64) (*deed.Deed, error) {
	query := `SELECT ` + deedColumns + `
		FROM deeds d
		JOIN cooperatives c ON c.id = d.cooperative_id
		WHERE d.id = $1
		FOR UPDATE OF d
	`
	d, err := scanDeed(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, deed.ErrDeedNotFound{DeedID: id}
		}
		r.logger.Error("Failed to lock deed for update", "deed_id", id, "error", err)
		return nil, fmt.Errorf("failed to lock deed for update: %w", err)
	}
	if err := r.loadParties(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (r *DeedRepository) UpdateStatus(ctx context.Context, id int64, from, to deed.Status, version int) error {
	query := `
		UPDATE deeds
		SET status = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND status = $3 AND version = $4
	`
	result, err := r.querier.Exec(ctx, query, to, id, from, version)
	if err != nil {
		r.logger.Error("Failed to update deed status", "deed_id", id, "to", to, "error", err)
		return fmt.Errorf("failed to update deed status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return deed.ErrConcurrentModification{DeedID: id}
	}
	return nil
}

func (r *DeedRepository) MarkBorrowerSigned(ctx context.Context, borrowerID int64, at time.Time) error {
	return r.markSigned(ctx, "borrowers", borrowerID, at)
}

func (r *DeedRepository) MarkCooperativeSignerSigned(ctx context.Context, signerID int64, at time.Time) error {
	return r.markSigned(ctx, "cooperative_signers", signerID, at)
}

// markSigned writes the signature timestamp at most once per row.
func (r *DeedRepository) markSigned(ctx context.Context, table string, id int64, at time.Time) error {
	query := `UPDATE ` + table + ` SET signature_timestamp = $1 WHERE id = $2 AND signature_timestamp IS NULL`
	result, err := r.querier.Exec(ctx, query, at, id)
	if err != nil {
		r.logger.Error("Failed to record signature", "table", table, "id", id, "error", err)
		return fmt.Errorf("failed to record signature in %s: %w", table, err)
	}
	if result.RowsAffected() == 0 {
		return deed.ErrAlreadySigned{PartyID: id}
	}
	return nil
}

func (r *DeedRepository) GetCooperative(ctx context.Context, id int64) (*deed.Cooperative, error) {
	query := `
		SELECT id, name, organisation_number, administrator_name, administrator_person_number, administrator_email
		FROM cooperatives
		WHERE id = $1
	`
	var c deed.Cooperative
	err := r.querier.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.Name, &c.OrganisationNumber,
		&c.AdministratorName, &c.AdministratorPersonNumber, &c.AdministratorEmail,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, deed.ErrCooperativeNotFound{CooperativeID: id}
		}
		return nil, fmt.Errorf("failed to get cooperative: %w", err)
	}
	return &c, nil
}

func (r *DeedRepository) ListAwaitingBorrower(ctx context.Context, personNumber string) ([]*deed.Deed, error) {
	query := `SELECT ` + deedColumns + `
		FROM deeds d
		JOIN cooperatives c ON c.id = d.cooperative_id
		JOIN borrowers b ON b.deed_id = d.id
		WHERE d.status = $1 AND b.person_number = $2 AND b.signature_timestamp IS NULL
		ORDER BY d.created_at ASC, d.id ASC
	`
	return r.listDeeds(ctx, query, deed.StatusPendingBorrowerSignature, personNumber)
}

// ListAwaitingCooperativeSigner lists deeds of the cooperative with an
// unsigned signer row; an empty personNumber matches any signer.
func (r *DeedRepository) ListAwaitingCooperativeSigner(ctx context.Context, cooperativeID int64, personNumber string) ([]*deed.Deed, error) {
	query := `SELECT DISTINCT ` + deedColumns + `
		FROM deeds d
		JOIN cooperatives c ON c.id = d.cooperative_id
		JOIN cooperative_signers s ON s.deed_id = d.id
		WHERE d.status = $1 AND d.cooperative_id = $2 AND s.signature_timestamp IS NULL
			AND ($3 = '' OR s.person_number = $3)
		ORDER BY d.created_at ASC, d.id ASC
	`
	return r.listDeeds(ctx, query, deed.StatusPendingHousingCooperativeSignature, cooperativeID, personNumber)
}

func (r *DeedRepository) CountByStatus(ctx context.Context) (map[deed.Status]int64, error) {
	rows, err := r.querier.Query(ctx, `SELECT status, COUNT(*) FROM deeds GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count deeds by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[deed.Status]int64, len(deed.Statuses))
	for rows.Next() {
		var status deed.Status
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status counts: %w", err)
	}
	return counts, nil
}

func (r *DeedRepository) CountCooperatives(ctx context.Context) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM cooperatives`)
}

func (r *DeedRepository) CountBorrowers(ctx context.Context) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM borrowers`)
}

func (r *DeedRepository) ListLifecycles(ctx context.Context) ([]deed.Lifecycle, error) {
	rows, err := r.querier.Query(ctx, `SELECT id, status, created_at FROM deeds ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list deed lifecycles: %w", err)
	}
	defer rows.Close()

	var out []deed.Lifecycle
	for rows.Next() {
		var l deed.Lifecycle
		if err := rows.Scan(&l.DeedID, &l.Status, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan deed lifecycle: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deed lifecycles: %w", err)
	}
	return out, nil
}

func (r *DeedRepository) count(ctx context.Context, query string) (int64, error) {
	var n int64
	if err := r.querier.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count: %w", err)
	}
	return n, nil
}

func (r *DeedRepository) listDeeds(ctx context.Context, query string, args ...any) ([]*deed.Deed, error) {
	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list deeds", "error", err)
		return nil, fmt.Errorf("failed to list deeds: %w", err)
	}
	var deeds []*deed.Deed
	for rows.Next() {
		d, err := scanDeed(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan deed: %w", err)
		}
		deeds = append(deeds, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deeds: %w", err)
	}

	for _, d := range deeds {
		if err := r.loadParties(ctx, d); err != nil {
			return nil, err
		}
	}
	return deeds, nil
}

func (r *DeedRepository) loadParties(ctx context.Context, d *deed.Deed) error {
	rows, err := r.querier.Query(ctx, `
		SELECT id, deed_id, name, person_number, email, ownership_percentage::text, signature_timestamp
		FROM borrowers
		WHERE deed_id = $1
		ORDER BY id ASC
	`, d.ID)
	if err != nil {
		return fmt.Errorf("failed to load borrowers: %w", err)
	}
	d.Borrowers = d.Borrowers[:0]
	for rows.Next() {
		var b deed.Borrower
		var share string
		if err := rows.Scan(&b.ID, &b.DeedID, &b.Name, &b.PersonNumber, &b.Email, &share, &b.SignedAt); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan borrower: %w", err)
		}
		if b.Ownership, err = decimal.NewFromString(share); err != nil {
			rows.Close()
			return fmt.Errorf("invalid ownership percentage %q: %w", share, err)
		}
		d.Borrowers = append(d.Borrowers, &b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating borrowers: %w", err)
	}

	rows, err = r.querier.Query(ctx, `
		SELECT id, deed_id, name, person_number, email, signature_timestamp
		FROM cooperative_signers
		WHERE deed_id = $1
		ORDER BY id ASC
	`, d.ID)
	if err != nil {
		return fmt.Errorf("failed to load cooperative signers: %w", err)
	}
	defer rows.Close()
	d.CooperativeSigners = d.CooperativeSigners[:0]
	for rows.Next() {
		var s deed.CooperativeSigner
		if err := rows.Scan(&s.ID, &s.DeedID, &s.Name, &s.PersonNumber, &s.Email, &s.SignedAt); err != nil {
			return fmt.Errorf("failed to scan cooperative signer: %w", err)
		}
		d.CooperativeSigners = append(d.CooperativeSigners, &s)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating cooperative signers: %w", err)
	}
	return nil
}

func scanDeed(row pgx.Row) (*deed.Deed, error) {
	var d deed.Deed
	var c deed.Cooperative
	err := row.Scan(
		&d.ID, &d.CreditNumber, &d.Status, &d.ApartmentAddress, &d.ApartmentNumber,
		&d.BankID, &d.CooperativeID, &d.CreatedBy, &d.CreatedAt, &d.UpdatedAt, &d.Version,
		&c.ID, &c.Name, &c.OrganisationNumber, &c.AdministratorName,
		&c.AdministratorPersonNumber, &c.AdministratorEmail,
	)
	if err != nil {
		return nil, err
	}
	d.Cooperative = &c
	return &d, nil
}
