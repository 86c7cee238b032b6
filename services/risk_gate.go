package services

import (
	"context"
	"strings"
	"time"

	"github.com/Dosada05/tournament-settlement/models"
	"github.com/Dosada05/tournament-settlement/repositories"
	"github.com/shopspring/decimal"
)

// RiskPolicy holds the thresholds of one cancellation risk check.
type RiskPolicy struct {
	HighRegistrations int
	RevenueThreshold  decimal.Decimal
	RecentWindow      time.Duration
}

// DefaultAssessmentPolicy is used by the standalone risk assessment.
func DefaultAssessmentPolicy() RiskPolicy {
	return RiskPolicy{HighRegistrations: 50, RevenueThreshold: decimal.NewFromInt(5000), RecentWindow: 24 * time.Hour}
}

// DefaultProtectionPolicy guards the cancel transition itself.
func DefaultProtectionPolicy() RiskPolicy {
	return RiskPolicy{HighRegistrations: 10, RevenueThreshold: decimal.NewFromInt(5000), RecentWindow: 24 * time.Hour}
}

// ScoreRisk is the pure scoring function: one point per factor.
func ScoreRisk(snap models.RiskSnapshot, p RiskPolicy) (models.RiskFactors, int, models.RiskLevel) {
	f := models.RiskFactors{
		ManyRegistrations:   snap.ConfirmedRegistrations >= p.HighRegistrations,
		HighRevenue:         snap.TotalRevenue.GreaterThanOrEqual(p.RevenueThreshold),
		Ongoing:             snap.Status == models.TournamentOngoing,
		RecentRegistrations: snap.RecentRegistrations > 0,
	}
	score := 0
	for _, on := range []bool{f.ManyRegistrations, f.HighRevenue, f.Ongoing, f.RecentRegistrations} {
		if on {
			score++
		}
	}
	return f, score, levelFor(score)
}

func levelFor(score int) models.RiskLevel {
	switch {
	case score >= 3:
		return models.RiskCritical
	case score >= 2:
		return models.RiskHigh
	case score >= 1:
		return models.RiskMedium
	}
	return models.RiskLow
}

// IsHighRisk is the binary protection check. Its inputs do not depend on
// the recent-registrations window.
func IsHighRisk(snap models.RiskSnapshot, p RiskPolicy) bool {
	return snap.ConfirmedRegistrations >= p.HighRegistrations ||
		snap.TotalRevenue.GreaterThanOrEqual(p.RevenueThreshold) ||
		snap.Status == models.TournamentOngoing
}

var requiredCancelFields = []string{
	models.FieldCancellationReason,
	models.FieldAdminConfirmation,
	models.FieldRefundPlan,
}

// CancelInput: обоснование отмены турнира.
type CancelInput struct {
	Reason            string `json:"cancellationReason"`
	AdminConfirmation string `json:"adminConfirmation"`
	RefundPlan        string `json:"refundPlan"`
}

// MissingFields returns the justification fields that are empty.
func (in CancelInput) MissingFields() []string {
	values := map[string]string{
		models.FieldCancellationReason: in.Reason,
		models.FieldAdminConfirmation:  in.AdminConfirmation,
		models.FieldRefundPlan:         in.RefundPlan,
	}
	var missing []string
	for _, f := range requiredCancelFields {
		if strings.TrimSpace(values[f]) == "" {
			missing = append(missing, f)
		}
	}
	return missing
}

// RiskGate assesses tournament cancellations.
type RiskGate struct {
	tournaments repositories.TournamentRepository
	assessment  RiskPolicy
	protection  RiskPolicy
	now         func() time.Time
}

func NewRiskGate(tournaments repositories.TournamentRepository, assessment, protection RiskPolicy, now func() time.Time) *RiskGate {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &RiskGate{tournaments: tournaments, assessment: assessment, protection: protection, now: now}
}

// Assess scores a tournament under the assessment policy and returns the
// verdict the cancel gate acts on. A tournament is high risk when it scores
// HIGH or CRITICAL, or when the protection thresholds trip; the latter lifts
// the level to at least HIGH so required fields always come with a high level.
func (g *RiskGate) Assess(ctx context.Context, tournamentID int) (*models.RiskAssessment, error) {
	snap, err := g.snapshot(ctx, tournamentID, g.assessment)
	if err != nil {
		return nil, err
	}
	a := newAssessment(snap, g.assessment)
	tripped := IsHighRisk(*snap, g.protection)
	a.HighRisk = isHighLevel(a.Level) || tripped
	if a.HighRisk {
		if !isHighLevel(a.Level) {
			a.Level = models.RiskHigh
		}
		a.RequiredFields = requiredCancelFields
	}
	return a, nil
}

func isHighLevel(l models.RiskLevel) bool {
	return l == models.RiskHigh || l == models.RiskCritical
}

// Check returns the missing justification fields for a high-risk assessment.
func (g *RiskGate) Check(a *models.RiskAssessment, in CancelInput) []string {
	if !a.HighRisk {
		return nil
	}
	return in.MissingFields()
}

func (g *RiskGate) snapshot(ctx context.Context, tournamentID int, p RiskPolicy) (*models.RiskSnapshot, error) {
	snap, err := g.tournaments.RiskSnapshot(ctx, tournamentID, g.now().Add(-p.RecentWindow))
	if err != nil {
		return nil, mapRepoError(err, "risk snapshot")
	}
	return snap, nil
}

func newAssessment(snap *models.RiskSnapshot, p RiskPolicy) *models.RiskAssessment {
	factors, score, level := ScoreRisk(*snap, p)
	return &models.RiskAssessment{
		TournamentID:   snap.TournamentID,
		Level:          level,
		Score:          score,
		Factors:        factors,
		RequiredFields: []string{},
		Snapshot:       *snap,
	}
}
