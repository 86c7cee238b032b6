package models

// RiskLevel classifies how dangerous a tournament cancellation is.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// RiskFactors are the boolean inputs of the risk score, one point each.
type RiskFactors struct {
	ManyRegistrations   bool `json:"many_registrations"`
	HighRevenue         bool `json:"high_revenue"`
	Ongoing             bool `json:"ongoing"`
	RecentRegistrations bool `json:"recent_registrations"`
}

// Required justification fields for a high-risk cancellation.
const (
	FieldCancellationReason = "cancellationReason"
	FieldAdminConfirmation  = "adminConfirmation"
	FieldRefundPlan         = "refundPlan"
)

// RiskAssessment is the result of scoring a tournament cancellation.
type RiskAssessment struct {
	TournamentID   int          `json:"tournament_id"`
	Level          RiskLevel    `json:"level"`
	Score          int          `json:"score"`
	Factors        RiskFactors  `json:"factors"`
	HighRisk       bool         `json:"high_risk"`
	RequiredFields []string     `json:"required_fields"`
	Snapshot       RiskSnapshot `json:"snapshot"`
}
