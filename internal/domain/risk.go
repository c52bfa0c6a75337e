package domain

import "time"

type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

type RiskAssessment struct {
	ID             string    `json:"risk_assessment_id"`
	VehicleID      string    `json:"vehicle_id"`
	RouteID        *string   `json:"route_id,omitempty"`
	AssessmentDate time.Time `json:"assessment_date"`
	FuelRisk       bool      `json:"fuel_risk"`
	SLARisk        bool      `json:"sla_risk"`
	IdleRisk       bool      `json:"idle_risk"`
	RiskScore      int       `json:"risk_score"`
	RiskLevel      RiskLevel `json:"risk_level"`
	Policy         string    `json:"policy"`
	CreatedAt      time.Time `json:"created_at"`
}

// Overview is the owner dashboard summary.
type Overview struct {
	Vehicles   int              `json:"vehicles"`
	FuelAlerts int              `json:"fuel_alerts"`
	SLA        ComplianceCounts `json:"sla"`
	HighRisk   int              `json:"high_risk"`
}
