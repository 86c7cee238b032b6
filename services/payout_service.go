package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/tournament-settlement/audit"
	"github.com/Dosada05/tournament-settlement/models"
	"github.com/Dosada05/tournament-settlement/repositories"
	"github.com/Dosada05/tournament-settlement/settlement"
)

// PayoutService отмечает выплаты организатору и отдаёт очередь выплат.
type PayoutService struct {
	env Env
}

func NewPayoutService(env Env) *PayoutService {
	return &PayoutService{env: env.withDefaults()}
}

// MarkInstallmentPaid records that installment index (1 or 2) was transferred
// to the organizer. Exactly one of concurrent calls succeeds; the others fail
// ErrAlreadyPaid and emit nothing.
func (s *PayoutService) MarkInstallmentPaid(ctx context.Context, actor models.Actor, tournamentID, index int, notes *string) (*models.TournamentPayment, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbiddenOperation
	}
	v := validator{}
	v.check(index == 1 || index == 2, "installment", "must be 1 or 2")
	if err := v.err(); err != nil {
		return nil, err
	}

	var (
		ledger *models.TournamentPayment
		note   *models.Notification
	)
	err := s.env.Store.WithinTx(ctx, func(tx repositories.Repositories) error {
		current, err := tx.Payments().GetForUpdate(ctx, tournamentID)
		if err != nil {
			return mapRepoError(err, "lock ledger")
		}
		if current.PayoutsFrozen {
			return fmt.Errorf("tournament %d: %w", tournamentID, ErrPayoutsFrozen)
		}
		inst := current.Installment(index)
		if inst.IsPaid() {
			return fmt.Errorf("tournament %d installment %d: %w", tournamentID, index, ErrAlreadyPaid)
		}
		t, err := tx.Tournaments().GetByID(ctx, tournamentID)
		if err != nil {
			return mapRepoError(err, "load tournament")
		}

		now := s.env.Now()
		if err := tx.Payments().MarkInstallmentPaid(ctx, tournamentID, index, now, actor.UserID, notes); err != nil {
			return mapRepoError(err, fmt.Sprintf("mark installment %d paid", index))
		}
		if _, err := s.env.Audit.Record(ctx, tx.Audit(), actor, models.EntityPayment, tournamentID, models.InstallmentPaidDetails{
			TournamentID: tournamentID,
			Installment:  index,
			Amount:       inst.Amount,
			Notes:        derefString(notes),
		}, audit.WithTime(now)); err != nil {
			return err
		}

		amount := inst.Amount.StringFixed(settlement.MinorUnitPlaces)
		note, err = newNotification(t.OrganizerID, models.NotificationPayoutPaid,
			fmt.Sprintf("Installment %d paid", index),
			fmt.Sprintf("Installment %d of %s for %s has been transferred.", index, amount, t.Name),
			map[string]any{"tournament_id": t.ID, "installment": index, "amount": amount}, now)
		if err != nil {
			return err
		}
		if err := enqueue(ctx, tx, note); err != nil {
			return err
		}

		ledger, err = tx.Payments().GetByTournament(ctx, tournamentID)
		return mapRepoError(err, "reload ledger")
	})
	if err != nil {
		return nil, err
	}

	s.env.Logger.Info("installment marked paid",
		slog.Int("tournament_id", tournamentID),
		slog.Int("installment", index),
		slog.Int("paid_by", actor.UserID))
	s.env.Publisher.PublishToTournament(tournamentID, "ledger_updated", ledger)
	s.env.dispatch(note)
	return ledger, nil
}

// AuthorizeTournament checks that actor may follow the tournament's ledger
// events: admins and the owning organizer.
func (s *PayoutService) AuthorizeTournament(ctx context.Context, actor models.Actor, tournamentID int) error {
	t, err := s.env.Store.Tournaments().GetByID(ctx, tournamentID)
	if err != nil {
		return mapRepoError(err, "load tournament")
	}
	return authorizeManager(actor, t)
}

// GetLedger returns the tournament ledger to an admin or its organizer.
func (s *PayoutService) GetLedger(ctx context.Context, actor models.Actor, tournamentID int) (*models.TournamentPayment, error) {
	t, err := s.env.Store.Tournaments().GetByID(ctx, tournamentID)
	if err != nil {
		return nil, mapRepoError(err, "load tournament")
	}
	if err := authorizeManager(actor, t); err != nil {
		return nil, err
	}
	ledger, err := s.env.Store.Payments().GetByTournament(ctx, tournamentID)
	if err != nil {
		return nil, mapRepoError(err, "load ledger")
	}
	return ledger, nil
}

// PendingPayout is a ledger with at least one unpaid installment, enriched
// with the identity of the tournament and the organizer to pay.
type PendingPayout struct {
	Ledger              *models.TournamentPayment `json:"ledger"`
	TournamentName      string                    `json:"tournament_name"`
	OrganizerID         int                       `json:"organizer_id"`
	OrganizerName       string                    `json:"organizer_name"`
	OrganizerEmail      string                    `json:"organizer_email"`
	PendingInstallments []int                     `json:"pending_installments"`
}

// SkippedPayout is a ledger left out of the queue because a row it references
// no longer exists.
type SkippedPayout struct {
	TournamentID int    `json:"tournament_id"`
	Reason       string `json:"reason"`
}

type PendingPayoutsResult struct {
	Payouts []PendingPayout `json:"payouts"`
	Skipped []SkippedPayout `json:"skipped"`
}

// GetPendingPayouts lists unpaid installments. Dangling tournaments or
// organizers are reported in Skipped instead of failing the query.
func (s *PayoutService) GetPendingPayouts(ctx context.Context, filter models.InstallmentFilter) (*PendingPayoutsResult, error) {
	if filter == "" {
		filter = models.FilterAll
	}
	if !filter.Valid() {
		return nil, &ValidationError{Fields: map[string]string{"installment": "must be installment1, installment2 or all"}}
	}

	ledgers, err := s.env.Store.Payments().ListPending(ctx, filter)
	if err != nil {
		return nil, mapRepoError(err, "list pending payouts")
	}

	result := &PendingPayoutsResult{Payouts: []PendingPayout{}, Skipped: []SkippedPayout{}}
	for _, ledger := range ledgers {
		t, err := s.env.Store.Tournaments().GetByID(ctx, ledger.TournamentID)
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			result.Skipped = append(result.Skipped, SkippedPayout{TournamentID: ledger.TournamentID, Reason: "tournament not found"})
			continue
		} else if err != nil {
			return nil, mapRepoError(err, "load tournament")
		}
		organizer, err := s.env.Store.Users().GetByID(ctx, t.OrganizerID)
		if errors.Is(err, repositories.ErrUserNotFound) {
			result.Skipped = append(result.Skipped, SkippedPayout{TournamentID: ledger.TournamentID, Reason: "organizer not found"})
			continue
		} else if err != nil {
			return nil, mapRepoError(err, "load organizer")
		}

		var pending []int
		if !ledger.Installment1.IsPaid() && filter != models.FilterInstallment2 {
			pending = append(pending, 1)
		}
		if !ledger.Installment2.IsPaid() && filter != models.FilterInstallment1 {
			pending = append(pending, 2)
		}
		result.Payouts = append(result.Payouts, PendingPayout{
			Ledger:              ledger,
			TournamentName:      t.Name,
			OrganizerID:         organizer.ID,
			OrganizerName:       organizer.DisplayName(),
			OrganizerEmail:      organizer.Email,
			PendingInstallments: pending,
		})
	}

	if len(result.Skipped) > 0 {
		s.env.Logger.Warn("pending payouts skipped dangling ledgers", slog.Int("skipped", len(result.Skipped)))
	}
	return result, nil
}
