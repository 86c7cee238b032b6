package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type RegistrationStatus string

const (
	RegistrationPending               RegistrationStatus = "pending"
	RegistrationConfirmed             RegistrationStatus = "confirmed"
	RegistrationRejected              RegistrationStatus = "rejected"
	RegistrationCancellationRequested RegistrationStatus = "cancellation_requested"
	RegistrationCancelled             RegistrationStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentSubmitted     PaymentStatus = "submitted"
	PaymentVerified      PaymentStatus = "verified"
	PaymentRejected      PaymentStatus = "rejected"
	PaymentRefundPending PaymentStatus = "refund_pending"
	PaymentRefunded      PaymentStatus = "refunded"
)

type RefundStatus string

const (
	RefundPending   RefundStatus = "pending"
	RefundApproved  RefundStatus = "approved"
	RefundRejected  RefundStatus = "rejected"
	RefundCompleted RefundStatus = "completed"
)

// CancellationDecision is the admin/organizer verdict on a refund request.
type CancellationDecision string

const (
	DecisionApprove CancellationDecision = "approve"
	DecisionReject  CancellationDecision = "reject"
)

// TournamentCancelledReason is written to every registration cancelled by
// the tournament cancellation fan-out.
const TournamentCancelledReason = "Tournament cancelled by organizer"

// Registration is one player's entry into a tournament category.
type Registration struct {
	ID            int                `json:"id" db:"id"`
	TournamentID  int                `json:"tournament_id" db:"tournament_id"`
	CategoryID    int                `json:"category_id" db:"category_id"`
	UserID        int                `json:"user_id" db:"user_id"`
	PartnerID     *int               `json:"partner_id,omitempty" db:"partner_id"`
	AmountTotal   decimal.Decimal    `json:"amount_total" db:"amount_total"`
	PaymentStatus PaymentStatus      `json:"payment_status" db:"payment_status"`
	PaymentRef    *string            `json:"payment_reference,omitempty" db:"payment_reference"`
	PaymentProof  *string            `json:"payment_proof_key,omitempty" db:"payment_proof_key"`
	Status        RegistrationStatus `json:"status" db:"status"`

	CancellationReason *string          `json:"cancellation_reason,omitempty" db:"cancellation_reason"`
	RefundAmount       *decimal.Decimal `json:"refund_amount,omitempty" db:"refund_amount"`
	RefundUpiID        *string          `json:"refund_upi_id,omitempty" db:"refund_upi_id"`
	RefundQRCode       *string          `json:"refund_qr_code,omitempty" db:"refund_qr_code"`
	RefundStatus       *RefundStatus    `json:"refund_status,omitempty" db:"refund_status"`
	RefundRejectReason *string          `json:"refund_reject_reason,omitempty" db:"refund_reject_reason"`
	RefundProof        *string          `json:"refund_proof_key,omitempty" db:"refund_proof_key"`
	CancelledAt        *time.Time       `json:"cancelled_at,omitempty" db:"cancelled_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// HasRefundStatus reports whether the refund status equals s.
func (r *Registration) HasRefundStatus(s RefundStatus) bool {
	return r.RefundStatus != nil && *r.RefundStatus == s
}

// Clone returns a deep copy; pointer fields are not shared with the original.
func (r *Registration) Clone() *Registration {
	if r == nil {
		return nil
	}
	c := *r
	c.PartnerID = clonePtr(r.PartnerID)
	c.PaymentRef = clonePtr(r.PaymentRef)
	c.PaymentProof = clonePtr(r.PaymentProof)
	c.CancellationReason = clonePtr(r.CancellationReason)
	c.RefundAmount = clonePtr(r.RefundAmount)
	c.RefundUpiID = clonePtr(r.RefundUpiID)
	c.RefundQRCode = clonePtr(r.RefundQRCode)
	c.RefundStatus = clonePtr(r.RefundStatus)
	c.RefundRejectReason = clonePtr(r.RefundRejectReason)
	c.RefundProof = clonePtr(r.RefundProof)
	c.CancelledAt = clonePtr(r.CancelledAt)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }
