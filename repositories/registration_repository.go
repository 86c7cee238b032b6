package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/tournament-settlement/models"
	"github.com/lib/pq"
)

const registrationColumns = `
	id, tournament_id, category_id, user_id, partner_id, amount_total,
	payment_status, payment_reference, payment_proof_key, status,
	cancellation_reason, refund_amount, refund_upi_id, refund_qr_code,
	refund_status, refund_reject_reason, refund_proof_key, cancelled_at,
	created_at, updated_at`

type postgresRegistrationRepository struct {
	db SQLExecutor
}

func (r *postgresRegistrationRepository) Create(ctx context.Context, reg *models.Registration) error {
	query := `
		INSERT INTO registrations (
			tournament_id, category_id, user_id, partner_id, amount_total,
			payment_status, payment_reference, payment_proof_key, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		reg.TournamentID, reg.CategoryID, reg.UserID, reg.PartnerID, reg.AmountTotal,
		reg.PaymentStatus, reg.PaymentRef, reg.PaymentProof, reg.Status,
	).Scan(&reg.ID, &reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Code {
			case "23505": // unique_violation
				if pqErr.Constraint == "registrations_active_entry_key" {
					return ErrRegistrationConflict
				}
			case "23503": // foreign_key_violation
				switch pqErr.Constraint {
				case "registrations_tournament_id_fkey":
					return ErrTournamentNotFound
				case "registrations_category_id_fkey":
					return ErrCategoryNotFound
				case "registrations_user_id_fkey", "registrations_partner_id_fkey":
					return ErrUserNotFound
				}
			}
		}
		return fmt.Errorf("failed to create registration: %w", err)
	}
	return nil
}

func (r *postgresRegistrationRepository) scanRegistration(row rowScanner) (*models.Registration, error) {
	var reg models.Registration
	err := row.Scan(
		&reg.ID, &reg.TournamentID, &reg.CategoryID, &reg.UserID, &reg.PartnerID, &reg.AmountTotal,
		&reg.PaymentStatus, &reg.PaymentRef, &reg.PaymentProof, &reg.Status,
		&reg.CancellationReason, &reg.RefundAmount, &reg.RefundUpiID, &reg.RefundQRCode,
		&reg.RefundStatus, &reg.RefundRejectReason, &reg.RefundProof, &reg.CancelledAt,
		&reg.CreatedAt, &reg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *postgresRegistrationRepository) findOne(ctx context.Context, query string, args ...interface{}) (*models.Registration, error) {
	reg, err := r.scanRegistration(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("failed to find registration: %w", err)
	}
	return reg, nil
}

func (r *postgresRegistrationRepository) GetByID(ctx context.Context, id int) (*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1`
	return r.findOne(ctx, query, id)
}

func (r *postgresRegistrationRepository) FindActive(ctx context.Context, tournamentID, categoryID, userID int) (*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations
		WHERE tournament_id = $1 AND category_id = $2 AND user_id = $3
		AND status NOT IN ('rejected', 'cancelled')`
	return r.findOne(ctx, query, tournamentID, categoryID, userID)
}

func (r *postgresRegistrationRepository) Update(ctx context.Context, reg *models.Registration, guard StatusGuard) error {
	reg.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE registrations SET
			status = $1,
			payment_status = $2,
			cancellation_reason = $3,
			refund_amount = $4,
			refund_upi_id = $5,
			refund_qr_code = $6,
			refund_status = $7,
			refund_reject_reason = $8,
			refund_proof_key = $9,
			cancelled_at = $10,
			updated_at = $11
		WHERE id = $12 AND status = $13 AND refund_status IS NOT DISTINCT FROM $14::text`

	result, err := r.db.ExecContext(ctx, query,
		reg.Status, reg.PaymentStatus, reg.CancellationReason, reg.RefundAmount,
		reg.RefundUpiID, reg.RefundQRCode, reg.RefundStatus, reg.RefundRejectReason,
		reg.RefundProof, reg.CancelledAt, reg.UpdatedAt,
		reg.ID, guard.Status, guard.RefundStatus,
	)
	if err != nil {
		return fmt.Errorf("failed to update registration %d: %w", reg.ID, err)
	}
	n, err := affectedRows(result)
	if err != nil {
		return err
	}
	if n == 0 {
		// Distinguish a vanished row from a lost race.
		if _, err := r.GetByID(ctx, reg.ID); err != nil {
			return err
		}
		return ErrRegistrationStatusConflict
	}
	return nil
}

func (r *postgresRegistrationRepository) ListByTournament(ctx context.Context, tournamentID int, statuses []models.RegistrationStatus) ([]*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE tournament_id = $1`
	args := []interface{}{tournamentID}
	if len(statuses) > 0 {
		names := make([]string, len(statuses))
		for i, s := range statuses {
			names[i] = string(s)
		}
		query += ` AND status = ANY($2)`
		args = append(args, pq.Array(names))
	}
	query += ` ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	registrations := make([]*models.Registration, 0)
	for rows.Next() {
		reg, err := r.scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan registration row: %w", err)
		}
		registrations = append(registrations, reg)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating registration rows: %w", err)
	}
	return registrations, nil
}
