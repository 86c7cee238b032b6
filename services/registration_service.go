package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Dosada05/tournament-settlement/models"
	"github.com/Dosada05/tournament-settlement/repositories"
	"github.com/Dosada05/tournament-settlement/settlement"
	"github.com/shopspring/decimal"
)

// RegistrationService ведёт заявку по машине состояний и держит реестр
// турнира согласованным с подтверждёнными оплатами.
type RegistrationService struct {
	env    Env
	policy settlement.Policy
}

func NewRegistrationService(env Env, policy settlement.Policy) *RegistrationService {
	return &RegistrationService{env: env.withDefaults(), policy: policy}
}

type SubmitRegistrationInput struct {
	TournamentID     int    `json:"-"`
	CategoryID       int    `json:"category_id"`
	PartnerID        *int   `json:"partner_id,omitempty"`
	PaymentReference string `json:"payment_reference"`
	PaymentProofKey  string `json:"payment_proof_key"`
}

// Submit creates a pending registration charged at the category entry fee.
func (s *RegistrationService) Submit(ctx context.Context, actor models.Actor, in SubmitRegistrationInput) (*models.Registration, error) {
	v := validator{}
	v.check(in.CategoryID > 0, "category_id", "must be positive")
	v.require("payment_proof_key", in.PaymentProofKey)
	v.check(in.PartnerID == nil || *in.PartnerID != actor.UserID, "partner_id", "cannot be the registering user")
	if err := v.err(); err != nil {
		return nil, err
	}

	reg := &models.Registration{
		TournamentID:  in.TournamentID,
		CategoryID:    in.CategoryID,
		UserID:        actor.UserID,
		PartnerID:     in.PartnerID,
		PaymentStatus: models.PaymentSubmitted,
		PaymentProof:  &in.PaymentProofKey,
		Status:        models.RegistrationPending,
	}
	if ref := strings.TrimSpace(in.PaymentReference); ref != "" {
		reg.PaymentRef = &ref
	}

	err := s.env.Store.WithinTx(ctx, func(tx repositories.Repositories) error {
		t, err := tx.Tournaments().GetByID(ctx, in.TournamentID)
		if err != nil {
			return mapRepoError(err, "load tournament")
		}
		if t.Status != models.TournamentPublished {
			return fmt.Errorf("%w: tournament %d is %s", ErrRegistrationClosed, t.ID, t.Status)
		}
		category, err := tx.Tournaments().GetCategory(ctx, in.TournamentID, in.CategoryID)
		if err != nil {
			return mapRepoError(err, "load category")
		}
		if in.PartnerID != nil {
			if _, err := tx.Users().GetByID(ctx, *in.PartnerID); err != nil {
				return mapRepoError(err, "load partner")
			}
		}
		if _, err := tx.Registrations().FindActive(ctx, in.TournamentID, in.CategoryID, actor.UserID); err == nil {
			return ErrRegistrationConflict
		} else if !errors.Is(err, repositories.ErrRegistrationNotFound) {
			return mapRepoError(err, "check active registration")
		}
		reg.AmountTotal = category.EntryFee
		return mapRepoError(tx.Registrations().Create(ctx, reg), "create registration")
	})
	if err != nil {
		return nil, err
	}

	s.env.Logger.Info("registration submitted",
		slog.Int("registration_id", reg.ID),
		slog.Int("tournament_id", reg.TournamentID),
		slog.Int("user_id", reg.UserID))
	s.env.Publisher.PublishToTournament(reg.TournamentID, "registration_submitted", reg)
	return reg, nil
}

// Get returns a registration visible to its player or the tournament managers.
func (s *RegistrationService) Get(ctx context.Context, actor models.Actor, id int) (*models.Registration, error) {
	reg, err := s.env.Store.Registrations().GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "load registration")
	}
	if reg.UserID == actor.UserID {
		return reg, nil
	}
	t, err := s.env.Store.Tournaments().GetByID(ctx, reg.TournamentID)
	if err != nil {
		return nil, mapRepoError(err, "load tournament")
	}
	if err := authorizeManager(actor, t); err != nil {
		return nil, err
	}
	return reg, nil
}

// Confirm verifies a pending payment and credits the tournament ledger in the
// same transaction. A concurrent or repeated confirm fails ErrAlreadyProcessed.
func (s *RegistrationService) Confirm(ctx context.Context, actor models.Actor, id int) (*models.Registration, error) {
	var (
		reg    *models.Registration
		ledger *models.TournamentPayment
		note   *models.Notification
	)
	err := s.env.Store.WithinTx(ctx, func(tx repositories.Repositories) error {
		current, t, err := s.loadManaged(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		target, allowed := nextStatus(current.Status, eventConfirm)
		switch {
		case current.Status == target:
			return registrationTransition(current, target, ErrAlreadyProcessed)
		case !allowed:
			return registrationTransition(current, target, ErrInvalidTransition)
		case t.Status.IsTerminal():
			return fmt.Errorf("%w: tournament %d is %s", ErrInvalidState, t.ID, t.Status)
		}

		reg = current.Clone()
		reg.Status = target
		reg.PaymentStatus = models.PaymentVerified
		if err := tx.Registrations().Update(ctx, reg, repositories.GuardOf(current)); err != nil {
			return mapRepoError(err, "confirm registration")
		}

		if ledger, err = s.credit(ctx, tx, t, reg.AmountTotal); err != nil {
			return err
		}

		if _, err := s.env.Audit.Record(ctx, tx.Audit(), actor, models.EntityRegistration, reg.ID, models.PaymentStatusChangedDetails{
			RegistrationID: reg.ID,
			TournamentID:   reg.TournamentID,
			FromStatus:     current.Status,
			ToStatus:       reg.Status,
			PaymentStatus:  reg.PaymentStatus,
			Amount:         reg.AmountTotal,
		}); err != nil {
			return err
		}

		note, err = newNotification(reg.UserID, models.NotificationRegistrationConfirmed,
			"Registration confirmed",
			fmt.Sprintf("Your payment of %s for %s was verified.", reg.AmountTotal.StringFixed(settlement.MinorUnitPlaces), t.Name),
			map[string]any{"registration_id": reg.ID, "tournament_id": t.ID}, s.env.Now())
		if err != nil {
			return err
		}
		return enqueue(ctx, tx, note)
	})
	if err != nil {
		return nil, err
	}

	s.env.Logger.Info("registration confirmed",
		slog.Int("registration_id", reg.ID),
		slog.Int("tournament_id", reg.TournamentID),
		slog.String("total_collected", ledger.TotalCollected.String()))
	s.env.Publisher.PublishToTournament(reg.TournamentID, "ledger_updated", ledger)
	s.env.dispatch(note)
	return reg, nil
}

// credit locks the tournament ledger, creating it on first use, and applies
// one collection.
func (s *RegistrationService) credit(ctx context.Context, tx repositories.Repositories, t *models.Tournament, amount decimal.Decimal) (*models.TournamentPayment, error) {
	fee := s.policy.PlatformFeePercent
	if t.PlatformFeePercent != nil {
		fee = *t.PlatformFeePercent
	}
	fresh, err := settlement.NewLedger(t.ID, fee, s.policy.InstallmentSplit, s.env.Now())
	if err != nil {
		return nil, fmt.Errorf("tournament %d fee policy: %w", t.ID, err)
	}
	if err := tx.Payments().EnsureExists(ctx, fresh); err != nil {
		return nil, mapRepoError(err, "create ledger")
	}
	ledger, err := tx.Payments().GetForUpdate(ctx, t.ID)
	if err != nil {
		return nil, mapRepoError(err, "lock ledger")
	}
	if err := settlement.ApplyCollection(ledger, amount); err != nil {
		if errors.Is(err, settlement.ErrLedgerSettled) {
			return nil, fmt.Errorf("tournament %d: %w", t.ID, ErrLedgerSettled)
		}
		return nil, fmt.Errorf("apply collection: %w", err)
	}
	if err := tx.Payments().Save(ctx, ledger); err != nil {
		return nil, mapRepoError(err, "save ledger")
	}
	return ledger, nil
}

// Reject declines a pending payment. The ledger is untouched.
func (s *RegistrationService) Reject(ctx context.Context, actor models.Actor, id int, reason string) (*models.Registration, error) {
	v := validator{}
	v.require("reason", reason)
	if err := v.err(); err != nil {
		return nil, err
	}

	var (
		reg  *models.Registration
		note *models.Notification
	)
	err := s.env.Store.WithinTx(ctx, func(tx repositories.Repositories) error {
		current, t, err := s.loadManaged(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		target, allowed := nextStatus(current.Status, eventReject)
		switch {
		case current.Status == target:
			return registrationTransition(current, target, ErrAlreadyProcessed)
		case !allowed:
			return registrationTransition(current, target, ErrInvalidTransition)
		}

		reg = current.Clone()
		reg.Status = target
		reg.PaymentStatus = models.PaymentRejected
		if err := tx.Registrations().Update(ctx, reg, repositories.GuardOf(current)); err != nil {
			return mapRepoError(err, "reject registration")
		}
		if _, err := s.env.Audit.Record(ctx, tx.Audit(), actor, models.EntityRegistration, reg.ID, models.PaymentStatusChangedDetails{
			RegistrationID: reg.ID,
			TournamentID:   reg.TournamentID,
			FromStatus:     current.Status,
			ToStatus:       reg.Status,
			PaymentStatus:  reg.PaymentStatus,
			Amount:         reg.AmountTotal,
			Reason:         reason,
		}); err != nil {
			return err
		}
		note, err = newNotification(reg.UserID, models.NotificationRegistrationRejected,
			"Registration rejected",
			fmt.Sprintf("Your registration for %s was rejected: %s", t.Name, reason),
			map[string]any{"registration_id": reg.ID, "tournament_id": t.ID, "reason": reason}, s.env.Now())
		if err != nil {
			return err
		}
		return enqueue(ctx, tx, note)
	})
	if err != nil {
		return nil, err
	}
	s.env.dispatch(note)
	return reg, nil
}

type CancellationRequestInput struct {
	Reason       string  `json:"reason"`
	RefundUpiID  string  `json:"refund_upi_id"`
	RefundQRCode *string `json:"refund_qr_code,omitempty"`
}

// RequestCancellation is the player's request to withdraw a confirmed
// registration and be refunded the full entry fee.
func (s *RegistrationService) RequestCancellation(ctx context.Context, actor models.Actor, id int, in CancellationRequestInput) (*models.Registration, error) {
	var reg *models.Registration
	err := s.env.Store.WithinTx(ctx, func(tx repositories.Repositories) error {
		current, err := tx.Registrations().GetByID(ctx, id)
		if err != nil {
			return mapRepoError(err, "load registration")
		}
		if current.UserID != actor.UserID {
			return ErrForbiddenOperation
		}
		target, allowed := nextStatus(current.Status, eventRequestCancellation)
		if !allowed {
			return registrationTransition(current, target, ErrInvalidTransition)
		}
		v := validator{}
		v.require("reason", in.Reason)
		v.require("refund_upi_id", in.RefundUpiID)
		if err := v.err(); err != nil {
			return err
		}

		reg = current.Clone()
		reg.Status = target
		reg.CancellationReason = models.Ptr(strings.TrimSpace(in.Reason))
		reg.RefundUpiID = models.Ptr(strings.TrimSpace(in.RefundUpiID))
		reg.RefundQRCode = in.RefundQRCode
		reg.RefundAmount = models.Ptr(current.AmountTotal)
		reg.RefundStatus = models.Ptr(models.RefundPending)
		reg.RefundRejectReason = nil
		return mapRepoError(tx.Registrations().Update(ctx, reg, repositories.GuardOf(current)), "request cancellation")
	})
	if err != nil {
		return nil, err
	}
	s.env.Publisher.PublishToTournament(reg.TournamentID, "cancellation_requested", reg)
	return reg, nil
}

// ResolveCancellation approves or rejects a pending cancellation request.
// Only a registration in cancellation_requested has one; anything else is
// reported as not found.
func (s *RegistrationService) ResolveCancellation(ctx context.Context, actor models.Actor, id int, decision models.CancellationDecision, reason string) (*models.Registration, error) {
	v := validator{}
	v.check(decision == models.DecisionApprove || decision == models.DecisionReject, "decision", "must be approve or reject")
	if decision == models.DecisionReject {
		v.require("reason", reason)
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	var (
		reg  *models.Registration
		note *models.Notification
	)
	err := s.env.Store.WithinTx(ctx, func(tx repositories.Repositories) error {
		current, t, err := s.loadManaged(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		ev := eventRejectCancellation
		if decision == models.DecisionApprove {
			ev = eventApproveCancellation
		}
		target, allowed := nextStatus(current.Status, ev)
		if !allowed {
			return fmt.Errorf("%w: registration %d has no pending cancellation request (status %s)", ErrNotFound, id, current.Status)
		}

		now := s.env.Now()
		reg = current.Clone()
		reg.Status = target
		var (
			typ   models.NotificationType
			title string
			msg   string
		)
		if decision == models.DecisionApprove {
			reg.RefundStatus = models.Ptr(models.RefundApproved)
			reg.PaymentStatus = models.PaymentRefundPending
			reg.CancelledAt = &now
			typ, title = models.NotificationRefundApproved, "Refund approved"
			msg = fmt.Sprintf("Your cancellation for %s was approved. A refund of %s will be sent to %s.",
				t.Name, reg.RefundAmount.StringFixed(settlement.MinorUnitPlaces), derefString(reg.RefundUpiID))
		} else {
			reg.RefundStatus = models.Ptr(models.RefundRejected)
			reg.RefundRejectReason = models.Ptr(strings.TrimSpace(reason))
			typ, title = models.NotificationRefundRejected, "Refund rejected"
			msg = fmt.Sprintf("Your cancellation for %s was rejected: %s", t.Name, reason)
		}
		if err := tx.Registrations().Update(ctx, reg, repositories.GuardOf(current)); err != nil {
			return mapRepoError(err, "resolve cancellation")
		}

		if _, err := s.env.Audit.Record(ctx, tx.Audit(), actor, models.EntityRegistration, reg.ID, models.RefundResolvedDetails{
			RegistrationID: reg.ID,
			Decision:       decision,
			RefundAmount:   *reg.RefundAmount,
			Reason:         reason,
		}); err != nil {
			return err
		}
		note, err = newNotification(reg.UserID, typ, title, msg,
			map[string]any{"registration_id": reg.ID, "tournament_id": t.ID, "decision": decision}, now)
		if err != nil {
			return err
		}
		return enqueue(ctx, tx, note)
	})
	if err != nil {
		return nil, err
	}
	s.env.dispatch(note)
	return reg, nil
}

// CompleteRefund records the organizer's proof of the refund transfer.
func (s *RegistrationService) CompleteRefund(ctx context.Context, actor models.Actor, id int, proofKey string) (*models.Registration, error) {
	v := validator{}
	v.require("proof_key", proofKey)
	if err := v.err(); err != nil {
		return nil, err
	}

	var (
		reg  *models.Registration
		note *models.Notification
	)
	err := s.env.Store.WithinTx(ctx, func(tx repositories.Repositories) error {
		current, t, err := s.loadManaged(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		switch {
		case current.HasRefundStatus(models.RefundCompleted):
			return fmt.Errorf("registration %d: %w", id, ErrAlreadyCompleted)
		case !current.HasRefundStatus(models.RefundApproved):
			return fmt.Errorf("%w: registration %d refund is not approved", ErrInvalidState, id)
		}

		reg = current.Clone()
		reg.RefundStatus = models.Ptr(models.RefundCompleted)
		reg.RefundProof = &proofKey
		reg.PaymentStatus = models.PaymentRefunded
		if err := tx.Registrations().Update(ctx, reg, repositories.GuardOf(current)); err != nil {
			if errors.Is(err, repositories.ErrRegistrationStatusConflict) {
				return fmt.Errorf("registration %d: %w", id, ErrAlreadyCompleted)
			}
			return mapRepoError(err, "complete refund")
		}
		if _, err := s.env.Audit.Record(ctx, tx.Audit(), actor, models.EntityRegistration, reg.ID, models.RefundCompletedDetails{
			RegistrationID: reg.ID,
			RefundAmount:   *reg.RefundAmount,
			ProofKey:       proofKey,
		}); err != nil {
			return err
		}
		note, err = newNotification(reg.UserID, models.NotificationRefundCompleted, "Refund sent",
			fmt.Sprintf("Your refund of %s for %s has been sent.", reg.RefundAmount.StringFixed(settlement.MinorUnitPlaces), t.Name),
			map[string]any{"registration_id": reg.ID, "tournament_id": t.ID, "proof_key": proofKey}, s.env.Now())
		if err != nil {
			return err
		}
		return enqueue(ctx, tx, note)
	})
	if err != nil {
		return nil, err
	}
	s.env.dispatch(note)
	return reg, nil
}

// loadManaged loads a registration and its tournament and checks that actor
// manages that tournament.
func (s *RegistrationService) loadManaged(ctx context.Context, tx repositories.Repositories, actor models.Actor, id int) (*models.Registration, *models.Tournament, error) {
	reg, err := tx.Registrations().GetByID(ctx, id)
	if err != nil {
		return nil, nil, mapRepoError(err, "load registration")
	}
	t, err := tx.Tournaments().GetByID(ctx, reg.TournamentID)
	if err != nil {
		return nil, nil, mapRepoError(err, "load tournament")
	}
	if err := authorizeManager(actor, t); err != nil {
		return nil, nil, err
	}
	return reg, t, nil
}
