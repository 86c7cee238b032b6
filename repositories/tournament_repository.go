package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/tournament-settlement/models"
)

const tournamentColumns = `id, name, organizer_id, status, start_date, platform_fee_percent, cancelled_at, fanout_completed_at, created_at`

type postgresTournamentRepository struct {
	db SQLExecutor
}

func (r *postgresTournamentRepository) scanTournament(row rowScanner) (*models.Tournament, error) {
	t := &models.Tournament{}
	err := row.Scan(
		&t.ID, &t.Name, &t.OrganizerID, &t.Status, &t.StartDate,
		&t.PlatformFeePercent, &t.CancelledAt, &t.FanOutCompletedAt, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *postgresTournamentRepository) findOne(ctx context.Context, query string, args ...interface{}) (*models.Tournament, error) {
	t, err := r.scanTournament(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to find tournament: %w", err)
	}
	return t, nil
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	return r.findOne(ctx, `SELECT `+tournamentColumns+` FROM tournaments WHERE id = $1`, id)
}

func (r *postgresTournamentRepository) GetForUpdate(ctx context.Context, id int) (*models.Tournament, error) {
	return r.findOne(ctx, `SELECT `+tournamentColumns+` FROM tournaments WHERE id = $1 FOR UPDATE`, id)
}

func (r *postgresTournamentRepository) GetCategory(ctx context.Context, tournamentID, categoryID int) (*models.Category, error) {
	c := &models.Category{}
	query := `SELECT id, tournament_id, name, entry_fee FROM tournament_categories WHERE id = $1 AND tournament_id = $2`
	err := r.db.QueryRowContext(ctx, query, categoryID, tournamentID).Scan(&c.ID, &c.TournamentID, &c.Name, &c.EntryFee)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to get category %d: %w", categoryID, err)
	}
	return c, nil
}

func (r *postgresTournamentRepository) UpdateStatus(ctx context.Context, id int, from, to models.TournamentStatus, at time.Time) error {
	query := `UPDATE tournaments SET status = $1::text,
		cancelled_at = CASE WHEN $1::text = 'cancelled' THEN $2 ELSE cancelled_at END
		WHERE id = $3 AND status = $4`
	result, err := r.db.ExecContext(ctx, query, to, at, id, from)
	if err != nil {
		return fmt.Errorf("failed to update tournament %d status: %w", id, err)
	}
	n, err := affectedRows(result)
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrTournamentStatusConflict
	}
	return nil
}

func (r *postgresTournamentRepository) MarkFanOutCompleted(ctx context.Context, id int, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `UPDATE tournaments SET fanout_completed_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("failed to mark fan-out completed for tournament %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) ListPendingFanOut(ctx context.Context) ([]*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments
		WHERE status = 'cancelled' AND fanout_completed_at IS NULL
		ORDER BY cancelled_at ASC NULLS FIRST`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query tournaments with pending fan-out: %w", err)
	}
	defer rows.Close()

	var tournaments []*models.Tournament
	for rows.Next() {
		t, err := r.scanTournament(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tournament: %w", err)
		}
		tournaments = append(tournaments, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during tournament rows iteration: %w", err)
	}
	return tournaments, nil
}

func (r *postgresTournamentRepository) RiskSnapshot(ctx context.Context, id int, recentSince time.Time) (*models.RiskSnapshot, error) {
	t, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	snap := &models.RiskSnapshot{TournamentID: id, Status: t.Status}
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'confirmed'),
			COALESCE(SUM(amount_total) FILTER (WHERE status = 'confirmed'), 0),
			COUNT(*) FILTER (WHERE status <> 'rejected' AND created_at >= $2)
		FROM registrations
		WHERE tournament_id = $1`
	err = r.db.QueryRowContext(ctx, query, id, recentSince).Scan(
		&snap.ConfirmedRegistrations, &snap.TotalRevenue, &snap.RecentRegistrations,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute risk snapshot for tournament %d: %w", id, err)
	}
	return snap, nil
}
