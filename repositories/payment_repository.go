package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/tournament-settlement/models"
)

const paymentColumns = `
	id, tournament_id, total_collected, total_registrations,
	platform_fee_percent, platform_fee_amount, organizer_share,
	installment_1_percent, installment_1_amount, installment_1_status,
	installment_1_paid_at, installment_1_paid_by, installment_1_notes,
	installment_2_percent, installment_2_amount, installment_2_status,
	installment_2_paid_at, installment_2_paid_by, installment_2_notes,
	payouts_frozen, frozen_at, created_at, updated_at`

type postgresPaymentRepository struct {
	db SQLExecutor
}

func (r *postgresPaymentRepository) scanPayment(row rowScanner) (*models.TournamentPayment, error) {
	var p models.TournamentPayment
	i1, i2 := &p.Installment1, &p.Installment2
	err := row.Scan(
		&p.ID, &p.TournamentID, &p.TotalCollected, &p.TotalRegistrations,
		&p.PlatformFeePercent, &p.PlatformFeeAmount, &p.OrganizerShare,
		&i1.Percent, &i1.Amount, &i1.Status, &i1.PaidAt, &i1.PaidBy, &i1.Notes,
		&i2.Percent, &i2.Amount, &i2.Status, &i2.PaidAt, &i2.PaidBy, &i2.Notes,
		&p.PayoutsFrozen, &p.FrozenAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *postgresPaymentRepository) findOne(ctx context.Context, query string, args ...interface{}) (*models.TournamentPayment, error) {
	p, err := r.scanPayment(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to find tournament payment: %w", err)
	}
	return p, nil
}

func (r *postgresPaymentRepository) GetByTournament(ctx context.Context, tournamentID int) (*models.TournamentPayment, error) {
	return r.findOne(ctx, `SELECT `+paymentColumns+` FROM tournament_payments WHERE tournament_id = $1`, tournamentID)
}

func (r *postgresPaymentRepository) GetForUpdate(ctx context.Context, tournamentID int) (*models.TournamentPayment, error) {
	return r.findOne(ctx, `SELECT `+paymentColumns+` FROM tournament_payments WHERE tournament_id = $1 FOR UPDATE`, tournamentID)
}

func (r *postgresPaymentRepository) EnsureExists(ctx context.Context, p *models.TournamentPayment) error {
	query := `
		INSERT INTO tournament_payments (
			tournament_id, platform_fee_percent, installment_1_percent, installment_2_percent,
			installment_1_status, installment_2_status
		) VALUES ($1, $2, $3, $4, 'pending', 'pending')
		ON CONFLICT (tournament_id) DO NOTHING`
	_, err := r.db.ExecContext(ctx, query,
		p.TournamentID, p.PlatformFeePercent, p.Installment1.Percent, p.Installment2.Percent)
	if err != nil {
		return fmt.Errorf("failed to ensure ledger for tournament %d: %w", p.TournamentID, err)
	}
	return nil
}

func (r *postgresPaymentRepository) Save(ctx context.Context, p *models.TournamentPayment) error {
	p.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE tournament_payments SET
			total_collected = $1,
			total_registrations = $2,
			platform_fee_amount = $3,
			organizer_share = $4,
			installment_1_amount = $5,
			installment_2_amount = $6,
			updated_at = $7
		WHERE tournament_id = $8`
	result, err := r.db.ExecContext(ctx, query,
		p.TotalCollected, p.TotalRegistrations, p.PlatformFeeAmount, p.OrganizerShare,
		p.Installment1.Amount, p.Installment2.Amount, p.UpdatedAt, p.TournamentID,
	)
	if err != nil {
		return fmt.Errorf("failed to save ledger for tournament %d: %w", p.TournamentID, err)
	}
	return checkAffectedRows(result, ErrPaymentNotFound)
}

func (r *postgresPaymentRepository) MarkInstallmentPaid(ctx context.Context, tournamentID, index int, paidAt time.Time, paidBy int, notes *string) error {
	if index != 1 && index != 2 {
		return ErrInvalidInstallment
	}
	// Column names come from the validated index, never from input.
	query := fmt.Sprintf(`
		UPDATE tournament_payments SET
			installment_%[1]d_status = 'paid',
			installment_%[1]d_paid_at = $1,
			installment_%[1]d_paid_by = $2,
			installment_%[1]d_notes = $3,
			updated_at = $1
		WHERE tournament_id = $4 AND installment_%[1]d_status = 'pending'`, index)

	result, err := r.db.ExecContext(ctx, query, paidAt, paidBy, notes, tournamentID)
	if err != nil {
		return fmt.Errorf("failed to mark installment %d paid for tournament %d: %w", index, tournamentID, err)
	}
	n, err := affectedRows(result)
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := r.GetByTournament(ctx, tournamentID); err != nil {
			return err
		}
		return ErrInstallmentAlreadyPaid
	}
	return nil
}

func (r *postgresPaymentRepository) FreezePayouts(ctx context.Context, tournamentID int, at time.Time) error {
	query := `UPDATE tournament_payments SET payouts_frozen = TRUE, frozen_at = COALESCE(frozen_at, $1), updated_at = $1 WHERE tournament_id = $2`
	result, err := r.db.ExecContext(ctx, query, at, tournamentID)
	if err != nil {
		return fmt.Errorf("failed to freeze payouts for tournament %d: %w", tournamentID, err)
	}
	return checkAffectedRows(result, ErrPaymentNotFound)
}

func (r *postgresPaymentRepository) ListPending(ctx context.Context, filter models.InstallmentFilter) ([]*models.TournamentPayment, error) {
	query := `SELECT ` + paymentColumns + ` FROM tournament_payments WHERE payouts_frozen = FALSE`
	switch filter {
	case models.FilterInstallment1:
		query += ` AND installment_1_status = 'pending'`
	case models.FilterInstallment2:
		query += ` AND installment_2_status = 'pending'`
	default:
		query += ` AND (installment_1_status = 'pending' OR installment_2_status = 'pending')`
	}
	query += ` ORDER BY tournament_id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending payouts: %w", err)
	}
	defer rows.Close()

	payments := make([]*models.TournamentPayment, 0)
	for rows.Next() {
		p, err := r.scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tournament payment row: %w", err)
		}
		payments = append(payments, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tournament payment rows: %w", err)
	}
	return payments, nil
}
