package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Dosada05/tournament-settlement/audit"
	"github.com/Dosada05/tournament-settlement/models"
	"github.com/Dosada05/tournament-settlement/repositories"
	"github.com/Dosada05/tournament-settlement/settlement"
	"golang.org/x/sync/errgroup"
)

// SystemActor is recorded for work started by the scheduler.
var SystemActor = models.Actor{UserID: 0, Role: models.RoleAdmin, UserAgent: "fanout-scheduler"}

// CancellationService отменяет турнир через risk gate и рассылает отмену
// по всем активным заявкам.
type CancellationService struct {
	env         Env
	gate        *RiskGate
	concurrency int
}

func NewCancellationService(env Env, gate *RiskGate, concurrency int) *CancellationService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &CancellationService{env: env.withDefaults(), gate: gate, concurrency: concurrency}
}

type CancelResult struct {
	Tournament *models.Tournament     `json:"tournament"`
	Assessment *models.RiskAssessment `json:"assessment"`
	FanOut     *FanOutResult          `json:"fan_out"`
}

type FanOutResult struct {
	TournamentID           int  `json:"tournament_id"`
	Attempted              int  `json:"attempted"`
	RegistrationsCancelled int  `json:"registrations_cancelled"`
	NotificationsSent      int  `json:"notifications_sent"`
	Skipped                int  `json:"skipped"`
	Failed                 int  `json:"failed"`
	Completed              bool `json:"completed"`
}

// CancelTournament gates, commits and fans out a tournament cancellation.
// The cancelled status and its audit entry commit together; the fan-out runs
// afterwards. A fan-out failure is returned as *PartialFailureError together
// with a non-nil result: the tournament stays cancelled either way.
func (s *CancellationService) CancelTournament(ctx context.Context, actor models.Actor, tournamentID int, in CancelInput) (*CancelResult, error) {
	t, err := s.env.Store.Tournaments().GetByID(ctx, tournamentID)
	if err != nil {
		return nil, mapRepoError(err, "load tournament")
	}
	if err := authorizeManager(actor, t); err != nil {
		return nil, err
	}

	assessment, err := s.gate.Assess(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if assessment.HighRisk {
		if missing := s.gate.Check(assessment, in); len(missing) > 0 {
			if err := s.recordAttempt(ctx, actor, assessment, missing); err != nil {
				return nil, err
			}
			s.env.Logger.Warn("high-risk cancellation blocked",
				slog.Int("tournament_id", tournamentID),
				slog.String("risk_level", string(assessment.Level)),
				slog.Any("missing", missing))
			return nil, &MissingFieldsError{Missing: missing, Assessment: assessment}
		}
	}

	switch t.Status {
	case models.TournamentCancelled:
		return nil, &TransitionError{Entity: "tournament", ID: t.ID, Current: string(t.Status), Target: string(models.TournamentCancelled), Err: ErrAlreadyCancelled}
	case models.TournamentCompleted:
		return nil, &TransitionError{Entity: "tournament", ID: t.ID, Current: string(t.Status), Target: string(models.TournamentCancelled), Err: ErrInvalidTransition}
	}

	var cancelled *models.Tournament
	err = s.env.Store.WithinTx(ctx, func(tx repositories.Repositories) error {
		locked, err := tx.Tournaments().GetForUpdate(ctx, tournamentID)
		if err != nil {
			return mapRepoError(err, "lock tournament")
		}
		if !locked.Status.CanCancel() {
			if locked.Status == models.TournamentCancelled {
				return fmt.Errorf("tournament %d: %w", tournamentID, ErrAlreadyCancelled)
			}
			return fmt.Errorf("tournament %d is %s: %w", tournamentID, locked.Status, ErrInvalidTransition)
		}

		now := s.env.Now()
		if err := tx.Tournaments().UpdateStatus(ctx, tournamentID, locked.Status, models.TournamentCancelled, now); err != nil {
			if errors.Is(err, repositories.ErrTournamentStatusConflict) {
				return fmt.Errorf("tournament %d: %w", tournamentID, ErrAlreadyCancelled)
			}
			return mapRepoError(err, "cancel tournament")
		}
		if err := tx.Payments().FreezePayouts(ctx, tournamentID, now); err != nil && !errors.Is(err, repositories.ErrPaymentNotFound) {
			return mapRepoError(err, "freeze payouts")
		}
		if _, err := s.env.Audit.Record(ctx, tx.Audit(), actor, models.EntityTournament, tournamentID, models.TournamentCancelledDetails{
			TournamentID:      tournamentID,
			PreviousStatus:    locked.Status,
			Registrations:     assessment.Snapshot.ConfirmedRegistrations,
			Revenue:           assessment.Snapshot.TotalRevenue,
			RiskLevel:         assessment.Level,
			Reason:            in.Reason,
			AdminConfirmation: in.AdminConfirmation,
			RefundPlan:        in.RefundPlan,
			CancelledBy:       actor.UserID,
			CancelledAt:       now,
		}, audit.WithTime(now)); err != nil {
			return err
		}

		cancelled = locked
		cancelled.Status = models.TournamentCancelled
		cancelled.CancelledAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.env.Logger.Info("tournament cancelled",
		slog.Int("tournament_id", tournamentID),
		slog.Int("cancelled_by", actor.UserID),
		slog.String("risk_level", string(assessment.Level)))
	s.env.Publisher.PublishToTournament(tournamentID, "tournament_cancelled", cancelled)

	result := &CancelResult{Tournament: cancelled, Assessment: assessment}
	result.FanOut, err = s.RunFanOut(ctx, actor, tournamentID)
	return result, err
}

// AssessRisk returns the advisory assessment shown before a cancel request.
func (s *CancellationService) AssessRisk(ctx context.Context, actor models.Actor, tournamentID int) (*models.RiskAssessment, error) {
	t, err := s.env.Store.Tournaments().GetByID(ctx, tournamentID)
	if err != nil {
		return nil, mapRepoError(err, "load tournament")
	}
	if err := authorizeManager(actor, t); err != nil {
		return nil, err
	}
	return s.gate.Assess(ctx, tournamentID)
}

// recordAttempt logs a blocked high-risk cancel request. Nothing else is
// written, so the entry commits on its own.
func (s *CancellationService) recordAttempt(ctx context.Context, actor models.Actor, a *models.RiskAssessment, missing []string) error {
	return s.env.Store.WithinTx(ctx, func(tx repositories.Repositories) error {
		_, err := s.env.Audit.Record(ctx, tx.Audit(), actor, models.EntityTournament, a.TournamentID, models.HighRiskCancellationAttemptDetails{
			TournamentID:  a.TournamentID,
			Blocked:       len(missing) > 0,
			RiskLevel:     a.Level,
			RiskScore:     a.Score,
			Factors:       a.Factors,
			MissingFields: missing,
			Registrations: a.Snapshot.ConfirmedRegistrations,
			Revenue:       a.Snapshot.TotalRevenue,
		})
		return err
	})
}

// RunFanOut cancels every confirmed or pending registration of a cancelled
// tournament, each in its own transaction with its notification. Rerunning
// it only touches registrations still active, so nobody is notified twice.
func (s *CancellationService) RunFanOut(ctx context.Context, actor models.Actor, tournamentID int) (*FanOutResult, error) {
	t, err := s.env.Store.Tournaments().GetByID(ctx, tournamentID)
	if err != nil {
		return nil, mapRepoError(err, "load tournament")
	}
	if t.Status != models.TournamentCancelled {
		return nil, fmt.Errorf("%w: tournament %d is %s, fan-out needs cancelled", ErrInvalidState, tournamentID, t.Status)
	}

	active, err := s.env.Store.Registrations().ListByTournament(ctx, tournamentID,
		[]models.RegistrationStatus{models.RegistrationConfirmed, models.RegistrationPending})
	if err != nil {
		return nil, mapRepoError(err, "list active registrations")
	}

	result := &FanOutResult{TournamentID: tournamentID, Attempted: len(active)}
	var (
		mu      sync.Mutex
		lastErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, reg := range active {
		g.Go(func() error {
			note, err := s.cancelRegistration(gctx, t, reg.ID)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				result.Failed++
				lastErr = err
				s.env.Logger.Error("fan-out registration failed",
					slog.Int("tournament_id", tournamentID),
					slog.Int("registration_id", reg.ID),
					slog.String("error", err.Error()))
			case note == nil:
				result.Skipped++
			default:
				result.RegistrationsCancelled++
				result.NotificationsSent++
				s.env.dispatch(note)
			}
			// Ошибки одной заявки не прерывают остальные.
			return nil
		})
	}
	_ = g.Wait()

	result.Completed = result.Failed == 0

	summary := models.CancellationFanOutDetails{
		TournamentID:           tournamentID,
		NotificationsSent:      result.NotificationsSent,
		RegistrationsCancelled: result.RegistrationsCancelled,
		Failed:                 result.Failed,
	}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	// Итог пишется даже если запрос уже отменён.
	bg := context.WithoutCancel(ctx)
	err = s.env.Store.WithinTx(bg, func(tx repositories.Repositories) error {
		if result.Completed {
			if err := tx.Tournaments().MarkFanOutCompleted(bg, tournamentID, s.env.Now()); err != nil {
				return mapRepoError(err, "mark fan-out completed")
			}
		}
		_, err := s.env.Audit.Record(bg, tx.Audit(), actor, models.EntityTournament, tournamentID, summary)
		return err
	})
	if err != nil {
		s.env.Logger.Error("fan-out summary not recorded",
			slog.Int("tournament_id", tournamentID),
			slog.String("error", err.Error()))
		if lastErr == nil {
			lastErr = err
			result.Completed = false
		}
	}

	s.env.Logger.Info("cancellation fan-out finished",
		slog.Int("tournament_id", tournamentID),
		slog.Int("cancelled", result.RegistrationsCancelled),
		slog.Int("skipped", result.Skipped),
		slog.Int("failed", result.Failed))

	if !result.Completed {
		return result, &PartialFailureError{
			TournamentID: tournamentID,
			Cancelled:    result.RegistrationsCancelled,
			Failed:       result.Failed,
			Err:          lastErr,
		}
	}
	return result, nil
}

// cancelRegistration moves one registration to cancelled with a full refund
// approved. It returns a nil notification when the registration already left
// {confirmed, pending}.
func (s *CancellationService) cancelRegistration(ctx context.Context, t *models.Tournament, id int) (*models.Notification, error) {
	var note *models.Notification
	err := s.env.Store.WithinTx(ctx, func(tx repositories.Repositories) error {
		current, err := tx.Registrations().GetByID(ctx, id)
		if err != nil {
			return mapRepoError(err, "load registration")
		}
		target, allowed := nextStatus(current.Status, eventTournamentCancelled)
		if !allowed {
			return nil
		}

		now := s.env.Now()
		reg := current.Clone()
		reg.Status = target
		reg.CancellationReason = models.Ptr(models.TournamentCancelledReason)
		reg.CancelledAt = &now
		reg.RefundAmount = models.Ptr(current.AmountTotal)
		reg.RefundStatus = models.Ptr(models.RefundApproved)
		reg.RefundRejectReason = nil
		// Перевод вернуть обязаны и по неподтверждённой оплате.
		reg.PaymentStatus = models.PaymentRefundPending
		if err := tx.Registrations().Update(ctx, reg, repositories.GuardOf(current)); err != nil {
			if errors.Is(err, repositories.ErrRegistrationStatusConflict) {
				return nil
			}
			return mapRepoError(err, "cancel registration")
		}

		n, err := newNotification(reg.UserID, models.NotificationTournamentCancelled,
			"Tournament cancelled",
			fmt.Sprintf("%s was cancelled by the organizer. Your entry fee of %s will be refunded.",
				t.Name, reg.AmountTotal.StringFixed(settlement.MinorUnitPlaces)),
			map[string]any{"registration_id": reg.ID, "tournament_id": t.ID, "refund_amount": reg.AmountTotal}, now)
		if err != nil {
			return err
		}
		if err := enqueue(ctx, tx, n); err != nil {
			return err
		}
		note = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	return note, nil
}

// ResumePendingFanOuts reruns the fan-out of every cancelled tournament whose
// fan-out has not completed. It returns how many tournaments it finished.
func (s *CancellationService) ResumePendingFanOuts(ctx context.Context) (int, error) {
	pending, err := s.env.Store.Tournaments().ListPendingFanOut(ctx)
	if err != nil {
		return 0, mapRepoError(err, "list pending fan-outs")
	}
	done := 0
	var errs []error
	for _, t := range pending {
		if _, err := s.RunFanOut(ctx, SystemActor, t.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		done++
	}
	return done, errors.Join(errs...)
}
