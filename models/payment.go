package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type InstallmentStatus string

const (
	InstallmentPending InstallmentStatus = "pending"
	InstallmentPaid    InstallmentStatus = "paid"
)

// Installment is one scheduled partial payout of the organizer share.
type Installment struct {
	Percent decimal.Decimal   `json:"percent"`
	Amount  decimal.Decimal   `json:"amount"`
	Status  InstallmentStatus `json:"status"`
	PaidAt  *time.Time        `json:"paid_at,omitempty"`
	PaidBy  *int              `json:"paid_by,omitempty"`
	Notes   *string           `json:"notes,omitempty"`
}

func (i Installment) IsPaid() bool { return i.Status == InstallmentPaid }

// TournamentPayment is the per-tournament ledger of collected entry fees.
type TournamentPayment struct {
	ID                 int             `json:"id"`
	TournamentID       int             `json:"tournament_id"`
	TotalCollected     decimal.Decimal `json:"total_collected"`
	TotalRegistrations int             `json:"total_registrations"`
	PlatformFeePercent decimal.Decimal `json:"platform_fee_percent"`
	PlatformFeeAmount  decimal.Decimal `json:"platform_fee_amount"`
	OrganizerShare     decimal.Decimal `json:"organizer_share"`
	Installment1       Installment     `json:"installment_1"`
	Installment2       Installment     `json:"installment_2"`
	PayoutsFrozen      bool            `json:"payouts_frozen"`
	FrozenAt           *time.Time      `json:"frozen_at,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// Installment returns a pointer to installment 1 or 2, nil otherwise.
func (p *TournamentPayment) Installment(index int) *Installment {
	switch index {
	case 1:
		return &p.Installment1
	case 2:
		return &p.Installment2
	}
	return nil
}

// Settled reports whether the final installment has been paid out.
func (p *TournamentPayment) Settled() bool { return p.Installment2.IsPaid() }

func (p *TournamentPayment) Clone() *TournamentPayment {
	if p == nil {
		return nil
	}
	c := *p
	c.Installment1 = p.Installment1.clone()
	c.Installment2 = p.Installment2.clone()
	c.FrozenAt = clonePtr(p.FrozenAt)
	return &c
}

func (i Installment) clone() Installment {
	i.PaidAt = clonePtr(i.PaidAt)
	i.PaidBy = clonePtr(i.PaidBy)
	i.Notes = clonePtr(i.Notes)
	return i
}

// InstallmentFilter selects which pending installments a payout query returns.
type InstallmentFilter string

const (
	FilterInstallment1 InstallmentFilter = "installment1"
	FilterInstallment2 InstallmentFilter = "installment2"
	FilterAll          InstallmentFilter = "all"
)

func (f InstallmentFilter) Valid() bool {
	return f == FilterInstallment1 || f == FilterInstallment2 || f == FilterAll
}
