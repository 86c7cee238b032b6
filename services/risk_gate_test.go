package services

import (
	"testing"

	"github.com/Dosada05/tournament-settlement/models"
	"github.com/shopspring/decimal"
)

func TestScoreRiskLevels(t *testing.T) {
	p := DefaultAssessmentPolicy()
	tests := []struct {
		name string
		snap models.RiskSnapshot
		want models.RiskLevel
	}{
		{"Quiet", models.RiskSnapshot{Status: models.TournamentPublished, TotalRevenue: decimal.Zero}, models.RiskLow},
		{"RecentOnly", models.RiskSnapshot{Status: models.TournamentPublished, TotalRevenue: decimal.Zero, RecentRegistrations: 1}, models.RiskMedium},
		{"ScenarioC", models.RiskSnapshot{Status: models.TournamentPublished, ConfirmedRegistrations: 12, TotalRevenue: decimal.NewFromInt(6000), RecentRegistrations: 3}, models.RiskHigh},
		{"OngoingBig", models.RiskSnapshot{Status: models.TournamentOngoing, ConfirmedRegistrations: 60, TotalRevenue: decimal.NewFromInt(6000)}, models.RiskCritical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, score, level := ScoreRisk(tt.snap, p)
			if level != tt.want {
				t.Fatalf("expected %s, got %s (score %d)", tt.want, level, score)
			}
		})
	}
}

func TestScoreRiskMonotonic(t *testing.T) {
	p := DefaultAssessmentPolicy()
	statuses := []models.TournamentStatus{models.TournamentPublished, models.TournamentOngoing}
	revenues := []int64{0, 100, 4999, 5000, 5001, 20000}

	for _, status := range statuses {
		for _, recent := range []int{0, 1} {
			for regs := 0; regs < 80; regs++ {
				for i, rev := range revenues {
					base := models.RiskSnapshot{Status: status, ConfirmedRegistrations: regs, TotalRevenue: decimal.NewFromInt(rev), RecentRegistrations: recent}
					_, score, _ := ScoreRisk(base, p)

					moreRegs := base
					moreRegs.ConfirmedRegistrations++
					if _, s, _ := ScoreRisk(moreRegs, p); s < score {
						t.Fatalf("score dropped from %d to %d when registrations grew past %d", score, s, regs)
					}
					if i+1 < len(revenues) {
						moreRev := base
						moreRev.TotalRevenue = decimal.NewFromInt(revenues[i+1])
						if _, s, _ := ScoreRisk(moreRev, p); s < score {
							t.Fatalf("score dropped from %d to %d when revenue grew past %d", score, s, rev)
						}
					}
				}
			}
		}
	}
}

func TestIsHighRiskUsesProtectionThresholds(t *testing.T) {
	p := DefaultProtectionPolicy()
	snap := models.RiskSnapshot{Status: models.TournamentPublished, ConfirmedRegistrations: 10, TotalRevenue: decimal.NewFromInt(100)}
	if !IsHighRisk(snap, p) {
		t.Fatalf("10 registrations must be high risk under the protection policy")
	}
	if IsHighRisk(snap, DefaultAssessmentPolicy()) {
		t.Fatalf("10 registrations must not be high risk under the assessment policy")
	}
	snap.ConfirmedRegistrations = 9
	if IsHighRisk(snap, p) {
		t.Fatalf("9 registrations with low revenue must not be high risk")
	}
	snap.Status = models.TournamentOngoing
	if !IsHighRisk(snap, p) {
		t.Fatalf("ongoing tournament must be high risk")
	}
}

func TestCancelInputMissingFields(t *testing.T) {
	in := CancelInput{Reason: "storm", RefundPlan: "   "}
	missing := in.MissingFields()
	if len(missing) != 2 || missing[0] != models.FieldAdminConfirmation || missing[1] != models.FieldRefundPlan {
		t.Fatalf("unexpected missing fields: %v", missing)
	}
	if m := fullJustification.MissingFields(); len(m) != 0 {
		t.Fatalf("complete input reported missing %v", m)
	}
}
