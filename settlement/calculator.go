// Package settlement computes platform fees, organizer shares and payout
// installments. Everything here is pure and works on decimals rounded to
// the currency minor unit.
package settlement

import (
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/tournament-settlement/models"
	"github.com/shopspring/decimal"
)

// MinorUnitPlaces is the number of decimal places of the currency minor unit (paise).
const MinorUnitPlaces = 2

var hundred = decimal.NewFromInt(100)

var (
	ErrNegativeAmount     = errors.New("amount must not be negative")
	ErrFeePercentRange    = errors.New("fee percent must be between 0 and 100")
	ErrInvalidSplit       = errors.New("installment percents must be non-negative and sum to 100")
	ErrLedgerSettled      = errors.New("ledger is settled: final installment already paid")
	ErrCollectionNegative = errors.New("collected amount must be positive")
)

// Split is the division of a collected amount between platform and organizer.
type Split struct {
	PlatformFee    decimal.Decimal `json:"platform_fee"`
	OrganizerShare decimal.Decimal `json:"organizer_share"`
}

// Installments are the two payout amounts of an organizer share.
type Installments struct {
	Amount1 decimal.Decimal `json:"amount_1"`
	Amount2 decimal.Decimal `json:"amount_2"`
}

// Policy holds the deployment defaults applied when a ledger is created.
type Policy struct {
	PlatformFeePercent decimal.Decimal
	InstallmentSplit   [2]decimal.Decimal
}

// DefaultPolicy: 5% platform fee, organizer share paid 30/70.
func DefaultPolicy() Policy {
	return Policy{
		PlatformFeePercent: decimal.NewFromInt(5),
		InstallmentSplit:   [2]decimal.Decimal{decimal.NewFromInt(30), decimal.NewFromInt(70)},
	}
}

func (p Policy) Validate() error {
	if err := validateFeePercent(p.PlatformFeePercent); err != nil {
		return err
	}
	return validateSplit(p.InstallmentSplit)
}

// RoundMinor rounds half-up to the minor unit. Amounts here are never
// negative, so shopspring's half-away-from-zero rounding is half-up.
func RoundMinor(d decimal.Decimal) decimal.Decimal {
	return d.Round(MinorUnitPlaces)
}

// ComputeSplit returns the platform fee (rounded) and the organizer share.
// PlatformFee + OrganizerShare == collected exactly.
func ComputeSplit(collected, feePercent decimal.Decimal) (Split, error) {
	if collected.IsNegative() {
		return Split{}, ErrNegativeAmount
	}
	if err := validateFeePercent(feePercent); err != nil {
		return Split{}, err
	}
	fee := RoundMinor(collected.Mul(feePercent).Div(hundred))
	return Split{
		PlatformFee:    fee,
		OrganizerShare: collected.Sub(fee),
	}, nil
}

// ComputeInstallments splits share by percents; the second installment
// absorbs the rounding remainder so Amount1 + Amount2 == share exactly.
func ComputeInstallments(share decimal.Decimal, percents [2]decimal.Decimal) (Installments, error) {
	if share.IsNegative() {
		return Installments{}, ErrNegativeAmount
	}
	if err := validateSplit(percents); err != nil {
		return Installments{}, err
	}
	first := RoundMinor(share.Mul(percents[0]).Div(hundred))
	return Installments{Amount1: first, Amount2: share.Sub(first)}, nil
}

// NewLedger returns an empty ledger for a tournament under the given fee and split.
func NewLedger(tournamentID int, feePercent decimal.Decimal, split [2]decimal.Decimal, now time.Time) (*models.TournamentPayment, error) {
	if err := validateFeePercent(feePercent); err != nil {
		return nil, err
	}
	if err := validateSplit(split); err != nil {
		return nil, err
	}
	return &models.TournamentPayment{
		TournamentID:       tournamentID,
		TotalCollected:     decimal.Zero,
		PlatformFeePercent: feePercent,
		PlatformFeeAmount:  decimal.Zero,
		OrganizerShare:     decimal.Zero,
		Installment1:       models.Installment{Percent: split[0], Amount: decimal.Zero, Status: models.InstallmentPending},
		Installment2:       models.Installment{Percent: split[1], Amount: decimal.Zero, Status: models.InstallmentPending},
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// ApplyCollection credits one confirmed registration to the ledger and
// recomputes the derived amounts. A paid first installment keeps its amount;
// the second absorbs the growth. A settled ledger accepts no more credit.
func ApplyCollection(p *models.TournamentPayment, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrCollectionNegative
	}
	if p.Settled() {
		return ErrLedgerSettled
	}
	p.TotalCollected = p.TotalCollected.Add(amount)
	p.TotalRegistrations++
	return Recalculate(p)
}

// Recalculate derives fee, share and installment amounts from TotalCollected.
func Recalculate(p *models.TournamentPayment) error {
	split, err := ComputeSplit(p.TotalCollected, p.PlatformFeePercent)
	if err != nil {
		return fmt.Errorf("tournament %d: %w", p.TournamentID, err)
	}
	p.PlatformFeeAmount = split.PlatformFee
	p.OrganizerShare = split.OrganizerShare

	if p.Installment1.IsPaid() {
		p.Installment2.Amount = p.OrganizerShare.Sub(p.Installment1.Amount)
		return nil
	}
	inst, err := ComputeInstallments(p.OrganizerShare, [2]decimal.Decimal{p.Installment1.Percent, p.Installment2.Percent})
	if err != nil {
		return fmt.Errorf("tournament %d: %w", p.TournamentID, err)
	}
	p.Installment1.Amount = inst.Amount1
	p.Installment2.Amount = inst.Amount2
	return nil
}

func validateFeePercent(f decimal.Decimal) error {
	if f.IsNegative() || f.GreaterThan(hundred) {
		return ErrFeePercentRange
	}
	return nil
}

func validateSplit(s [2]decimal.Decimal) error {
	if s[0].IsNegative() || s[1].IsNegative() || !s[0].Add(s[1]).Equal(hundred) {
		return ErrInvalidSplit
	}
	return nil
}
