package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Dosada05/tournament-settlement/models"
)

func TestMarkInstallmentPaid(t *testing.T) {
	ctx := context.Background()

	t.Run("SecondCallIsAlreadyPaid", func(t *testing.T) {
		f := newFixture(t, 1000, 1)
		f.confirmed(t, 0)

		ledger, err := f.payouts.MarkInstallmentPaid(ctx, admin, tournamentID, 1, models.Ptr("bank ref 42"))
		if err != nil {
			t.Fatalf("MarkInstallmentPaid: %v", err)
		}
		inst := ledger.Installment1
		if !inst.IsPaid() || inst.PaidBy == nil || *inst.PaidBy != adminID || inst.PaidAt == nil || *inst.Notes != "bank ref 42" {
			t.Fatalf("installment not recorded: %+v", inst)
		}

		_, err = f.payouts.MarkInstallmentPaid(ctx, admin, tournamentID, 1, nil)
		if !errors.Is(err, ErrAlreadyPaid) {
			t.Fatalf("expected ErrAlreadyPaid, got %v", err)
		}
		notes := f.notifications(models.NotificationPayoutPaid)
		if len(notes) != 1 || notes[0].UserID != organizerID {
			t.Fatalf("expected one payout notification to the organizer, got %+v", notes)
		}
		if got := f.auditActions(models.EntityPayment, tournamentID); len(got) != 1 || got[0] != models.ActionInstallmentPaid {
			t.Fatalf("expected one INSTALLMENT_PAID entry, got %v", got)
		}
	})

	t.Run("ConcurrentCallsPayOnce", func(t *testing.T) {
		f := newFixture(t, 1000, 1)
		f.confirmed(t, 0)

		const callers = 8
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
		)
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.payouts.MarkInstallmentPaid(ctx, admin, tournamentID, 2, nil)
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					succeeded++
				} else if !errors.Is(err, ErrAlreadyPaid) {
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		if succeeded != 1 {
			t.Fatalf("expected one success, got %d", succeeded)
		}
		if n := f.notifications(models.NotificationPayoutPaid); len(n) != 1 {
			t.Fatalf("expected one notification, got %d", len(n))
		}
	})

	t.Run("Validation", func(t *testing.T) {
		f := newFixture(t, 1000, 1)
		f.confirmed(t, 0)
		if _, err := f.payouts.MarkInstallmentPaid(ctx, admin, tournamentID, 3, nil); !errors.Is(err, ErrValidationFailed) {
			t.Fatalf("installment 3: expected ErrValidationFailed, got %v", err)
		}
		if _, err := f.payouts.MarkInstallmentPaid(ctx, organizer, tournamentID, 1, nil); !errors.Is(err, ErrForbiddenOperation) {
			t.Fatalf("organizer: expected ErrForbiddenOperation, got %v", err)
		}
		if _, err := f.payouts.MarkInstallmentPaid(ctx, admin, 999, 1, nil); !errors.Is(err, ErrNotFound) {
			t.Fatalf("unknown tournament: expected ErrNotFound, got %v", err)
		}
	})
}

func TestPaidFirstInstallmentLocksAmount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1000, 2)
	f.confirmed(t, 0)
	if _, err := f.payouts.MarkInstallmentPaid(ctx, admin, tournamentID, 1, nil); err != nil {
		t.Fatalf("MarkInstallmentPaid: %v", err)
	}
	f.confirmed(t, 1)

	l := f.ledger(t)
	if !l.Installment1.Amount.Equal(dec("285")) {
		t.Fatalf("paid installment changed: %s", l.Installment1.Amount)
	}
	if !l.Installment1.Amount.Add(l.Installment2.Amount).Equal(l.OrganizerShare) {
		t.Fatalf("installments %s + %s != share %s", l.Installment1.Amount, l.Installment2.Amount, l.OrganizerShare)
	}
	if !l.Installment2.Amount.Equal(dec("1615")) {
		t.Fatalf("expected second installment 1615, got %s", l.Installment2.Amount)
	}
}

func TestSettledLedgerRejectsConfirm(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1000, 2)
	f.confirmed(t, 0)
	if _, err := f.payouts.MarkInstallmentPaid(ctx, admin, tournamentID, 2, nil); err != nil {
		t.Fatalf("MarkInstallmentPaid: %v", err)
	}
	reg := f.submit(t, 1)
	if _, err := f.regs.Confirm(ctx, admin, reg.ID); !errors.Is(err, ErrLedgerSettled) {
		t.Fatalf("expected ErrLedgerSettled, got %v", err)
	}
	stored, _ := f.store.Registrations().GetByID(ctx, reg.ID)
	if stored.Status != models.RegistrationPending {
		t.Fatalf("failed confirm must roll back, status is %s", stored.Status)
	}
}

func TestGetPendingPayouts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1000, 1)
	f.confirmed(t, 0)

	res, err := f.payouts.GetPendingPayouts(ctx, models.FilterAll)
	if err != nil {
		t.Fatalf("GetPendingPayouts: %v", err)
	}
	if len(res.Payouts) != 1 || res.Payouts[0].OrganizerEmail != "org@example.com" || len(res.Payouts[0].PendingInstallments) != 2 {
		t.Fatalf("unexpected payouts: %+v", res.Payouts)
	}

	if _, err := f.payouts.MarkInstallmentPaid(ctx, admin, tournamentID, 1, nil); err != nil {
		t.Fatalf("MarkInstallmentPaid: %v", err)
	}
	res, _ = f.payouts.GetPendingPayouts(ctx, models.FilterInstallment1)
	if len(res.Payouts) != 0 {
		t.Fatalf("installment1 filter should be empty after payment, got %d", len(res.Payouts))
	}
	res, _ = f.payouts.GetPendingPayouts(ctx, models.FilterInstallment2)
	if len(res.Payouts) != 1 || res.Payouts[0].PendingInstallments[0] != 2 {
		t.Fatalf("installment2 filter: unexpected %+v", res.Payouts)
	}

	if _, err := f.payouts.GetPendingPayouts(ctx, "installment3"); !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("bad filter: expected ErrValidationFailed, got %v", err)
	}
}

func TestGetPendingPayoutsSkipsDanglingRows(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1000, 1)
	f.confirmed(t, 0)
	f.store.DeleteUser(organizerID)

	res, err := f.payouts.GetPendingPayouts(ctx, models.FilterAll)
	if err != nil {
		t.Fatalf("dangling organizer must not fail the query: %v", err)
	}
	if len(res.Payouts) != 0 || len(res.Skipped) != 1 || res.Skipped[0].Reason != "organizer not found" {
		t.Fatalf("unexpected result: %+v", res)
	}

	f.store.DeleteTournament(tournamentID)
	res, err = f.payouts.GetPendingPayouts(ctx, models.FilterAll)
	if err != nil {
		t.Fatalf("dangling tournament must not fail the query: %v", err)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].Reason != "tournament not found" {
		t.Fatalf("unexpected result: %+v", res)
	}
}
