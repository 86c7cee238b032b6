package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Dosada05/tournament-settlement/models"
)

func TestSubmit(t *testing.T) {
	ctx := context.Background()

	t.Run("ChargesCategoryFee", func(t *testing.T) {
		f := newFixture(t, 1000, 2)
		reg := f.submit(t, 0)
		if reg.Status != models.RegistrationPending || reg.PaymentStatus != models.PaymentSubmitted {
			t.Fatalf("unexpected initial state: %s/%s", reg.Status, reg.PaymentStatus)
		}
		if !reg.AmountTotal.Equal(dec("1000")) {
			t.Fatalf("expected amount 1000, got %s", reg.AmountTotal)
		}
	})

	t.Run("RejectsDuplicateActiveEntry", func(t *testing.T) {
		f := newFixture(t, 1000, 2)
		f.submit(t, 0)
		_, err := f.regs.Submit(ctx, player(0), SubmitRegistrationInput{TournamentID: tournamentID, CategoryID: categoryID, PaymentProofKey: "again.png"})
		if !errors.Is(err, ErrRegistrationConflict) {
			t.Fatalf("expected ErrRegistrationConflict, got %v", err)
		}
	})

	t.Run("RequiresProof", func(t *testing.T) {
		f := newFixture(t, 1000, 1)
		_, err := f.regs.Submit(ctx, player(0), SubmitRegistrationInput{TournamentID: tournamentID, CategoryID: categoryID})
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Fields["payment_proof_key"] == "" {
			t.Fatalf("expected validation error on payment_proof_key, got %v", err)
		}
	})

	t.Run("ClosedTournament", func(t *testing.T) {
		f := newFixture(t, 1000, 1)
		f.setTournamentStatus(t, models.TournamentOngoing)
		_, err := f.regs.Submit(ctx, player(0), SubmitRegistrationInput{TournamentID: tournamentID, CategoryID: categoryID, PaymentProofKey: "p.png"})
		if !errors.Is(err, ErrRegistrationClosed) {
			t.Fatalf("expected ErrRegistrationClosed, got %v", err)
		}
	})
}

func TestConfirmCreditsLedger(t *testing.T) {
	f := newFixture(t, 1000, 1)
	reg := f.confirmed(t, 0)

	if reg.Status != models.RegistrationConfirmed || reg.PaymentStatus != models.PaymentVerified {
		t.Fatalf("unexpected state after confirm: %s/%s", reg.Status, reg.PaymentStatus)
	}
	l := f.ledger(t)
	if !l.TotalCollected.Equal(dec("1000")) || l.TotalRegistrations != 1 {
		t.Fatalf("ledger not credited: %s / %d", l.TotalCollected, l.TotalRegistrations)
	}
	if !l.PlatformFeeAmount.Equal(dec("50")) || !l.OrganizerShare.Equal(dec("950")) {
		t.Fatalf("unexpected split: fee %s share %s", l.PlatformFeeAmount, l.OrganizerShare)
	}
	if !l.Installment1.Amount.Equal(dec("285")) || !l.Installment2.Amount.Equal(dec("665")) {
		t.Fatalf("unexpected installments: %s + %s", l.Installment1.Amount, l.Installment2.Amount)
	}
	if got := f.auditActions(models.EntityRegistration, reg.ID); len(got) != 1 || got[0] != models.ActionPaymentStatusChanged {
		t.Fatalf("expected one PAYMENT_STATUS_CHANGED entry, got %v", got)
	}
	if n := f.notifications(models.NotificationRegistrationConfirmed); len(n) != 1 || n[0].UserID != reg.UserID {
		t.Fatalf("expected one confirmation notification, got %+v", n)
	}
}

func TestConfirmUsesTournamentFeeOverride(t *testing.T) {
	f := newFixture(t, 1000, 1)
	tour, _ := f.store.Tournaments().GetByID(context.Background(), tournamentID)
	tour.PlatformFeePercent = models.Ptr(dec("10"))
	f.store.PutTournament(*tour)

	f.confirmed(t, 0)
	if l := f.ledger(t); !l.PlatformFeeAmount.Equal(dec("100")) {
		t.Fatalf("expected fee 100 at 10%%, got %s", l.PlatformFeeAmount)
	}
}

func TestConfirmConcurrently(t *testing.T) {
	f := newFixture(t, 1000, 1)
	reg := f.submit(t, 0)

	const callers = 2
	var (
		wg   sync.WaitGroup
		errs = make([]error, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.regs.Confirm(context.Background(), admin, reg.ID)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case !errors.Is(err, ErrAlreadyProcessed):
			t.Fatalf("expected ErrAlreadyProcessed for the losing call, got %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one confirm to succeed, got %d", succeeded)
	}
	if l := f.ledger(t); !l.TotalCollected.Equal(dec("1000")) || l.TotalRegistrations != 1 {
		t.Fatalf("ledger double-credited: %s / %d", l.TotalCollected, l.TotalRegistrations)
	}
}

func TestConfirmAuthorization(t *testing.T) {
	f := newFixture(t, 1000, 1)
	reg := f.submit(t, 0)

	other := models.Actor{UserID: 99, Role: models.RoleOrganizer}
	if _, err := f.regs.Confirm(context.Background(), other, reg.ID); !errors.Is(err, ErrForbiddenOperation) {
		t.Fatalf("foreign organizer: expected ErrForbiddenOperation, got %v", err)
	}
	if _, err := f.regs.Confirm(context.Background(), organizer, reg.ID); err != nil {
		t.Fatalf("own organizer should confirm: %v", err)
	}
}

func TestRegistrationStateMachine(t *testing.T) {
	ctx := context.Background()
	cancelInput := CancellationRequestInput{Reason: "injury", RefundUpiID: "player@upi"}

	t.Run("PendingOnlyConfirmsOrRejects", func(t *testing.T) {
		f := newFixture(t, 1000, 1)
		reg := f.submit(t, 0)

		if _, err := f.regs.RequestCancellation(ctx, player(0), reg.ID, cancelInput); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("pending -> cancellation_requested: expected ErrInvalidTransition, got %v", err)
		}
		if _, err := f.regs.ResolveCancellation(ctx, admin, reg.ID, models.DecisionApprove, ""); !errors.Is(err, ErrNotFound) {
			t.Fatalf("resolve on pending: expected ErrNotFound, got %v", err)
		}
		if _, err := f.regs.CompleteRefund(ctx, organizer, reg.ID, "proof.png"); !errors.Is(err, ErrInvalidState) {
			t.Fatalf("complete refund on pending: expected ErrInvalidState, got %v", err)
		}

		rejected, err := f.regs.Reject(ctx, organizer, reg.ID, "blurry screenshot")
		if err != nil {
			t.Fatalf("Reject: %v", err)
		}
		if rejected.Status != models.RegistrationRejected || rejected.PaymentStatus != models.PaymentRejected {
			t.Fatalf("unexpected state after reject: %s/%s", rejected.Status, rejected.PaymentStatus)
		}
		if _, err := f.regs.Confirm(ctx, admin, reg.ID); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("rejected -> confirmed: expected ErrInvalidTransition, got %v", err)
		}
		if _, err := f.store.Payments().GetByTournament(ctx, tournamentID); err == nil {
			t.Fatalf("reject must not create or credit a ledger")
		}
	})

	t.Run("CancelledIsTerminal", func(t *testing.T) {
		f := newFixture(t, 1000, 1)
		reg := f.confirmed(t, 0)
		if _, err := f.regs.RequestCancellation(ctx, player(0), reg.ID, cancelInput); err != nil {
			t.Fatalf("RequestCancellation: %v", err)
		}
		cancelled, err := f.regs.ResolveCancellation(ctx, admin, reg.ID, models.DecisionApprove, "")
		if err != nil {
			t.Fatalf("ResolveCancellation approve: %v", err)
		}
		if cancelled.Status != models.RegistrationCancelled || !cancelled.HasRefundStatus(models.RefundApproved) || cancelled.CancelledAt == nil {
			t.Fatalf("unexpected approved state: %+v", cancelled)
		}

		if _, err := f.regs.Confirm(ctx, admin, reg.ID); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("cancelled -> confirmed: expected ErrInvalidTransition, got %v", err)
		}
		if _, err := f.regs.Reject(ctx, admin, reg.ID, "late"); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("cancelled -> rejected: expected ErrInvalidTransition, got %v", err)
		}
		if _, err := f.regs.RequestCancellation(ctx, player(0), reg.ID, cancelInput); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("cancelled -> cancellation_requested: expected ErrInvalidTransition, got %v", err)
		}
		if _, err := f.regs.ResolveCancellation(ctx, admin, reg.ID, models.DecisionReject, "no"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("resolve on cancelled: expected ErrNotFound, got %v", err)
		}

		// Refunds never reduce the historical ledger.
		if l := f.ledger(t); !l.TotalCollected.Equal(dec("1000")) {
			t.Fatalf("ledger changed by cancellation: %s", l.TotalCollected)
		}
	})

	t.Run("TransitionTable", func(t *testing.T) {
		tests := []struct {
			current models.RegistrationStatus
			ev      registrationEvent
			want    models.RegistrationStatus
			allowed bool
		}{
			{models.RegistrationPending, eventConfirm, models.RegistrationConfirmed, true},
			{models.RegistrationCancellationRequested, eventConfirm, models.RegistrationConfirmed, false},
			{models.RegistrationPending, eventReject, models.RegistrationRejected, true},
			{models.RegistrationPending, eventRequestCancellation, models.RegistrationCancellationRequested, false},
			{models.RegistrationCancellationRequested, eventRejectCancellation, models.RegistrationConfirmed, true},
			{models.RegistrationConfirmed, eventApproveCancellation, models.RegistrationCancelled, false},
			{models.RegistrationCancellationRequested, eventTournamentCancelled, models.RegistrationCancelled, false},
			{models.RegistrationCancelled, eventTournamentCancelled, models.RegistrationCancelled, false},
		}
		for _, tt := range tests {
			got, ok := nextStatus(tt.current, tt.ev)
			if got != tt.want || ok != tt.allowed {
				t.Fatalf("nextStatus(%s, %d) = %s, %v; want %s, %v", tt.current, tt.ev, got, ok, tt.want, tt.allowed)
			}
		}
	})
}

func TestRequestCancellationValidation(t *testing.T) {
	f := newFixture(t, 1000, 2)
	reg := f.confirmed(t, 0)

	_, err := f.regs.RequestCancellation(context.Background(), player(0), reg.ID, CancellationRequestInput{Reason: "  "})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Fields["reason"] == "" || verr.Fields["refund_upi_id"] == "" {
		t.Fatalf("expected reason and refund_upi_id to be reported, got %v", verr.Fields)
	}

	_, err = f.regs.RequestCancellation(context.Background(), player(1), reg.ID, CancellationRequestInput{Reason: "x", RefundUpiID: "y"})
	if !errors.Is(err, ErrForbiddenOperation) {
		t.Fatalf("another player: expected ErrForbiddenOperation, got %v", err)
	}
}

func TestRejectedCancellationRestoresConfirmed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1000, 1)
	reg := f.confirmed(t, 0)

	requested, err := f.regs.RequestCancellation(ctx, player(0), reg.ID, CancellationRequestInput{Reason: "exam clash", RefundUpiID: "p0@upi"})
	if err != nil {
		t.Fatalf("RequestCancellation: %v", err)
	}
	if requested.Status != models.RegistrationCancellationRequested || !requested.HasRefundStatus(models.RefundPending) {
		t.Fatalf("unexpected requested state: %s/%v", requested.Status, requested.RefundStatus)
	}
	if !requested.RefundAmount.Equal(requested.AmountTotal) {
		t.Fatalf("refund amount %s must equal amount %s", requested.RefundAmount, requested.AmountTotal)
	}

	resolved, err := f.regs.ResolveCancellation(ctx, organizer, reg.ID, models.DecisionReject, "past refund deadline")
	if err != nil {
		t.Fatalf("ResolveCancellation reject: %v", err)
	}
	if resolved.Status != models.RegistrationConfirmed || !resolved.HasRefundStatus(models.RefundRejected) {
		t.Fatalf("expected confirmed/rejected, got %s/%v", resolved.Status, resolved.RefundStatus)
	}
	if resolved.RefundRejectReason == nil || *resolved.RefundRejectReason != "past refund deadline" {
		t.Fatalf("rejection reason not retained: %v", resolved.RefundRejectReason)
	}
	if resolved.CancellationReason == nil || *resolved.CancellationReason != "exam clash" {
		t.Fatalf("cancellation reason not retained: %v", resolved.CancellationReason)
	}

	if _, err := f.regs.ResolveCancellation(ctx, organizer, reg.ID, models.DecisionReject, "again"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second resolve: expected ErrNotFound, got %v", err)
	}
	if n := f.notifications(models.NotificationRefundRejected); len(n) != 1 {
		t.Fatalf("expected one refund_rejected notification, got %d", len(n))
	}
}

func TestCompleteRefund(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1000, 1)
	reg := f.confirmed(t, 0)
	if _, err := f.regs.RequestCancellation(ctx, player(0), reg.ID, CancellationRequestInput{Reason: "travel", RefundUpiID: "p0@upi"}); err != nil {
		t.Fatalf("RequestCancellation: %v", err)
	}
	if _, err := f.regs.ResolveCancellation(ctx, admin, reg.ID, models.DecisionApprove, ""); err != nil {
		t.Fatalf("ResolveCancellation: %v", err)
	}

	done, err := f.regs.CompleteRefund(ctx, organizer, reg.ID, "refunds/1.png")
	if err != nil {
		t.Fatalf("CompleteRefund: %v", err)
	}
	if !done.HasRefundStatus(models.RefundCompleted) || done.PaymentStatus != models.PaymentRefunded {
		t.Fatalf("unexpected completed state: %v/%s", done.RefundStatus, done.PaymentStatus)
	}

	_, err = f.regs.CompleteRefund(ctx, organizer, reg.ID, "refunds/other.png")
	if !errors.Is(err, ErrAlreadyCompleted) {
		t.Fatalf("second completion: expected ErrAlreadyCompleted, got %v", err)
	}
	stored, _ := f.store.Registrations().GetByID(ctx, reg.ID)
	if *stored.RefundProof != "refunds/1.png" {
		t.Fatalf("proof overwritten: %s", *stored.RefundProof)
	}

	want := []models.AuditAction{models.ActionPaymentStatusChanged, models.ActionRefundResolved, models.ActionRefundCompleted}
	got := f.auditActions(models.EntityRegistration, reg.ID)
	if len(got) != len(want) {
		t.Fatalf("expected audit %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("audit order: expected %v, got %v", want, got)
		}
	}
}
