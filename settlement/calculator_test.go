package settlement

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputeSplit_EntryFeeScenario(t *testing.T) {
	split, err := ComputeSplit(d("1000"), d("5"))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !split.PlatformFee.Equal(d("50")) {
		t.Fatalf("expected fee 50, got %s", split.PlatformFee)
	}
	if !split.OrganizerShare.Equal(d("950")) {
		t.Fatalf("expected share 950, got %s", split.OrganizerShare)
	}

	inst, err := ComputeInstallments(split.OrganizerShare, [2]decimal.Decimal{d("30"), d("70")})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !inst.Amount1.Equal(d("285")) || !inst.Amount2.Equal(d("665")) {
		t.Fatalf("expected 285/665, got %s/%s", inst.Amount1, inst.Amount2)
	}
}

func TestComputeSplit_NoRoundingLeak(t *testing.T) {
	amounts := []string{"0", "0.01", "0.03", "1", "33.33", "99.99", "101.01", "1234.57", "999999.99"}
	fees := []string{"0", "2.5", "3.333", "5", "7.75", "12.5", "33.3333", "100"}
	for _, a := range amounts {
		for _, f := range fees {
			split, err := ComputeSplit(d(a), d(f))
			if err != nil {
				t.Fatalf("ComputeSplit(%s, %s): %v", a, f, err)
			}
			if !split.PlatformFee.Add(split.OrganizerShare).Equal(d(a)) {
				t.Fatalf("ComputeSplit(%s, %s) leaked: %s + %s", a, f, split.PlatformFee, split.OrganizerShare)
			}
			if split.PlatformFee.Exponent() < -MinorUnitPlaces {
				t.Fatalf("fee %s not rounded to minor unit", split.PlatformFee)
			}
		}
	}
}

func TestComputeInstallments_SumsToShare(t *testing.T) {
	shares := []string{"0", "0.01", "0.05", "949.99", "950", "1234.56", "3.33"}
	splits := [][2]string{{"30", "70"}, {"50", "50"}, {"33.33", "66.67"}, {"0", "100"}, {"100", "0"}}
	for _, s := range shares {
		for _, p := range splits {
			inst, err := ComputeInstallments(d(s), [2]decimal.Decimal{d(p[0]), d(p[1])})
			if err != nil {
				t.Fatalf("ComputeInstallments(%s, %v): %v", s, p, err)
			}
			if !inst.Amount1.Add(inst.Amount2).Equal(d(s)) {
				t.Fatalf("ComputeInstallments(%s, %v) = %s + %s", s, p, inst.Amount1, inst.Amount2)
			}
		}
	}
}

func TestComputeInstallments_RoundHalfUp(t *testing.T) {
	// 0.05 * 30% = 0.015 -> 0.02
	inst, err := ComputeInstallments(d("0.05"), [2]decimal.Decimal{d("30"), d("70")})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !inst.Amount1.Equal(d("0.02")) || !inst.Amount2.Equal(d("0.03")) {
		t.Fatalf("expected 0.02/0.03, got %s/%s", inst.Amount1, inst.Amount2)
	}
}

func TestInvalidInputs(t *testing.T) {
	if _, err := ComputeSplit(d("-1"), d("5")); !errors.Is(err, ErrNegativeAmount) {
		t.Fatalf("expected ErrNegativeAmount, got %v", err)
	}
	if _, err := ComputeSplit(d("10"), d("100.01")); !errors.Is(err, ErrFeePercentRange) {
		t.Fatalf("expected ErrFeePercentRange, got %v", err)
	}
	if _, err := ComputeSplit(d("10"), d("-0.5")); !errors.Is(err, ErrFeePercentRange) {
		t.Fatalf("expected ErrFeePercentRange, got %v", err)
	}
	if _, err := ComputeInstallments(d("10"), [2]decimal.Decimal{d("50"), d("40")}); !errors.Is(err, ErrInvalidSplit) {
		t.Fatalf("expected ErrInvalidSplit, got %v", err)
	}
	if _, err := ComputeInstallments(d("10"), [2]decimal.Decimal{d("110"), d("-10")}); !errors.Is(err, ErrInvalidSplit) {
		t.Fatalf("expected ErrInvalidSplit, got %v", err)
	}
}

func TestApplyCollection(t *testing.T) {
	p := DefaultPolicy()
	ledger, err := NewLedger(7, p.PlatformFeePercent, p.InstallmentSplit, time.Now())
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}

	t.Run("AccruesTotals", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			if err := ApplyCollection(ledger, d("333.33")); err != nil {
				t.Fatalf("ApplyCollection: %v", err)
			}
		}
		if ledger.TotalRegistrations != 3 || !ledger.TotalCollected.Equal(d("999.99")) {
			t.Fatalf("unexpected totals: %d %s", ledger.TotalRegistrations, ledger.TotalCollected)
		}
		if !ledger.PlatformFeeAmount.Add(ledger.OrganizerShare).Equal(ledger.TotalCollected) {
			t.Fatalf("fee + share != collected")
		}
		if !ledger.Installment1.Amount.Add(ledger.Installment2.Amount).Equal(ledger.OrganizerShare) {
			t.Fatalf("installments do not sum to share")
		}
	})

	t.Run("PaidFirstInstallmentIsLocked", func(t *testing.T) {
		ledger.Installment1.Status = "paid"
		locked := ledger.Installment1.Amount
		if err := ApplyCollection(ledger, d("1000")); err != nil {
			t.Fatalf("ApplyCollection: %v", err)
		}
		if !ledger.Installment1.Amount.Equal(locked) {
			t.Fatalf("paid installment amount changed: %s -> %s", locked, ledger.Installment1.Amount)
		}
		if !ledger.Installment1.Amount.Add(ledger.Installment2.Amount).Equal(ledger.OrganizerShare) {
			t.Fatalf("installments do not sum to share")
		}
	})

	t.Run("SettledLedgerRejectsCredit", func(t *testing.T) {
		ledger.Installment2.Status = "paid"
		before := ledger.TotalCollected
		if err := ApplyCollection(ledger, d("10")); !errors.Is(err, ErrLedgerSettled) {
			t.Fatalf("expected ErrLedgerSettled, got %v", err)
		}
		if !ledger.TotalCollected.Equal(before) {
			t.Fatalf("settled ledger was credited")
		}
	})

	t.Run("RejectsNonPositive", func(t *testing.T) {
		fresh, _ := NewLedger(8, p.PlatformFeePercent, p.InstallmentSplit, time.Now())
		if err := ApplyCollection(fresh, decimal.Zero); !errors.Is(err, ErrCollectionNegative) {
			t.Fatalf("expected ErrCollectionNegative, got %v", err)
		}
	})
}
