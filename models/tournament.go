package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TournamentStatus представляет статусы турнира, соответствующие ENUM в БД.
type TournamentStatus string

const (
	TournamentDraft     TournamentStatus = "draft"
	TournamentPublished TournamentStatus = "published"
	TournamentOngoing   TournamentStatus = "ongoing"
	TournamentCompleted TournamentStatus = "completed"
	TournamentCancelled TournamentStatus = "cancelled"
)

// CanCancel reports whether a tournament in this status may move to cancelled.
func (s TournamentStatus) CanCancel() bool {
	switch s {
	case TournamentDraft, TournamentPublished, TournamentOngoing:
		return true
	}
	return false
}

// IsTerminal reports whether no further status change is allowed.
func (s TournamentStatus) IsTerminal() bool {
	return s == TournamentCompleted || s == TournamentCancelled
}

// Tournament is the subset of the tournament record the settlement engine reads.
type Tournament struct {
	ID          int              `json:"id" db:"id"`
	Name        string           `json:"name" db:"name"`
	OrganizerID int              `json:"organizer_id" db:"organizer_id"`
	Status      TournamentStatus `json:"status" db:"status"`
	StartDate   time.Time        `json:"start_date" db:"start_date"`
	// PlatformFeePercent overrides the deployment default when set.
	PlatformFeePercent *decimal.Decimal `json:"platform_fee_percent,omitempty" db:"platform_fee_percent"`
	CancelledAt        *time.Time       `json:"cancelled_at,omitempty" db:"cancelled_at"`
	FanOutCompletedAt  *time.Time       `json:"fanout_completed_at,omitempty" db:"fanout_completed_at"`
	CreatedAt          time.Time        `json:"created_at" db:"created_at"`
}

// Category is a tournament bracket with its own entry fee.
type Category struct {
	ID           int             `json:"id" db:"id"`
	TournamentID int             `json:"tournament_id" db:"tournament_id"`
	Name         string          `json:"name" db:"name"`
	EntryFee     decimal.Decimal `json:"entry_fee" db:"entry_fee"`
}

// RiskSnapshot is the aggregate a risk assessment is computed from.
type RiskSnapshot struct {
	TournamentID           int              `json:"tournament_id"`
	Status                 TournamentStatus `json:"status"`
	ConfirmedRegistrations int              `json:"confirmed_registrations"`
	TotalRevenue           decimal.Decimal  `json:"total_revenue"`
	RecentRegistrations    int              `json:"recent_registrations"`
}
