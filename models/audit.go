package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AuditAction: тип привилегированного действия в журнале аудита.
type AuditAction string

const (
	ActionPaymentStatusChanged         AuditAction = "PAYMENT_STATUS_CHANGED"
	ActionRefundResolved               AuditAction = "REFUND_RESOLVED"
	ActionRefundCompleted              AuditAction = "REFUND_COMPLETED"
	ActionInstallmentPaid              AuditAction = "INSTALLMENT_PAID"
	ActionHighRiskCancellationAttempt  AuditAction = "HIGH_RISK_CANCELLATION_ATTEMPT"
	ActionTournamentCancelled          AuditAction = "TOURNAMENT_CANCELLED"
	ActionTournamentCancellationDone   AuditAction = "TOURNAMENT_CANCELLATION_COMPLETED"
	ActionTournamentCancellationFailed AuditAction = "TOURNAMENT_CANCELLATION_PARTIAL_FAILURE"
)

type AuditEntityType string

const (
	EntityRegistration AuditEntityType = "registration"
	EntityTournament   AuditEntityType = "tournament"
	EntityPayment      AuditEntityType = "tournament_payment"
)

// AuditLog is an append-only record of a privileged state transition.
type AuditLog struct {
	ID         string          `json:"id"`
	AdminID    int             `json:"admin_id"`
	Action     AuditAction     `json:"action"`
	EntityType AuditEntityType `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Details    json.RawMessage `json:"details"`
	IPAddress  string          `json:"ip_address,omitempty"`
	UserAgent  string          `json:"user_agent,omitempty"`
	PrevDigest string          `json:"prev_digest,omitempty"`
	Digest     string          `json:"digest"`
	CreatedAt  time.Time       `json:"created_at"`
}

// AuditDetails is implemented by one payload struct per AuditAction.
type AuditDetails interface {
	AuditAction() AuditAction
}

type PaymentStatusChangedDetails struct {
	RegistrationID int                `json:"registration_id"`
	TournamentID   int                `json:"tournament_id"`
	FromStatus     RegistrationStatus `json:"from_status"`
	ToStatus       RegistrationStatus `json:"to_status"`
	PaymentStatus  PaymentStatus      `json:"payment_status"`
	Amount         decimal.Decimal    `json:"amount"`
	Reason         string             `json:"reason,omitempty"`
}

type RefundResolvedDetails struct {
	RegistrationID int                  `json:"registration_id"`
	Decision       CancellationDecision `json:"decision"`
	RefundAmount   decimal.Decimal      `json:"refund_amount"`
	Reason         string               `json:"reason,omitempty"`
}

type RefundCompletedDetails struct {
	RegistrationID int             `json:"registration_id"`
	RefundAmount   decimal.Decimal `json:"refund_amount"`
	ProofKey       string          `json:"proof_key"`
}

type InstallmentPaidDetails struct {
	TournamentID int             `json:"tournament_id"`
	Installment  int             `json:"installment"`
	Amount       decimal.Decimal `json:"amount"`
	Notes        string          `json:"notes,omitempty"`
}

type HighRiskCancellationAttemptDetails struct {
	TournamentID  int             `json:"tournament_id"`
	Blocked       bool            `json:"blocked"`
	RiskLevel     RiskLevel       `json:"risk_level"`
	RiskScore     int             `json:"risk_score"`
	Factors       RiskFactors     `json:"factors"`
	MissingFields []string        `json:"missing_fields,omitempty"`
	Registrations int             `json:"confirmed_registrations"`
	Revenue       decimal.Decimal `json:"total_revenue"`
}

type TournamentCancelledDetails struct {
	TournamentID      int              `json:"tournament_id"`
	PreviousStatus    TournamentStatus `json:"previous_status"`
	Registrations     int              `json:"confirmed_registrations"`
	Revenue           decimal.Decimal  `json:"total_revenue"`
	RiskLevel         RiskLevel        `json:"risk_level"`
	Reason            string           `json:"reason"`
	AdminConfirmation string           `json:"admin_confirmation,omitempty"`
	RefundPlan        string           `json:"refund_plan,omitempty"`
	CancelledBy       int              `json:"cancelled_by"`
	CancelledAt       time.Time        `json:"cancelled_at"`
}

type CancellationFanOutDetails struct {
	TournamentID           int    `json:"tournament_id"`
	NotificationsSent      int    `json:"notifications_sent"`
	RegistrationsCancelled int    `json:"registrations_cancelled"`
	Failed                 int    `json:"failed"`
	LastError              string `json:"last_error,omitempty"`
}

func (PaymentStatusChangedDetails) AuditAction() AuditAction { return ActionPaymentStatusChanged }
func (RefundResolvedDetails) AuditAction() AuditAction       { return ActionRefundResolved }
func (RefundCompletedDetails) AuditAction() AuditAction      { return ActionRefundCompleted }
func (InstallmentPaidDetails) AuditAction() AuditAction      { return ActionInstallmentPaid }
func (HighRiskCancellationAttemptDetails) AuditAction() AuditAction {
	return ActionHighRiskCancellationAttempt
}
func (TournamentCancelledDetails) AuditAction() AuditAction { return ActionTournamentCancelled }

// CancellationFanOutDetails serves both the completion and the partial-failure
// summary; the action is chosen by whether anything failed.
func (d CancellationFanOutDetails) AuditAction() AuditAction {
	if d.Failed > 0 {
		return ActionTournamentCancellationFailed
	}
	return ActionTournamentCancellationDone
}

// DecodeAuditDetails parses a stored details payload into the struct for action.
func DecodeAuditDetails(action AuditAction, raw json.RawMessage) (AuditDetails, error) {
	var d AuditDetails
	switch action {
	case ActionPaymentStatusChanged:
		d = &PaymentStatusChangedDetails{}
	case ActionRefundResolved:
		d = &RefundResolvedDetails{}
	case ActionRefundCompleted:
		d = &RefundCompletedDetails{}
	case ActionInstallmentPaid:
		d = &InstallmentPaidDetails{}
	case ActionHighRiskCancellationAttempt:
		d = &HighRiskCancellationAttemptDetails{}
	case ActionTournamentCancelled:
		d = &TournamentCancelledDetails{}
	case ActionTournamentCancellationDone, ActionTournamentCancellationFailed:
		d = &CancellationFanOutDetails{}
	default:
		return nil, fmt.Errorf("unknown audit action %q", action)
	}
	if err := json.Unmarshal(raw, d); err != nil {
		return nil, fmt.Errorf("decode %s details: %w", action, err)
	}
	return d, nil
}
