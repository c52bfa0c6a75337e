// Package risk scores vehicles from independent boolean signals.
//
// Two policies exist and are not interchangeable. EventRiskPolicy scores a
// single evaluation from a theft flag, the latest arrival and idling.
// BatchRiskPolicy is the periodic run over trailing windows, driven by a
// mileage ratio instead of the theft flag. Every call is independent: levels
// are recomputed from inputs, never transitioned from a previous result.
package risk

import "fleet-monitor/compliance/internal/domain"

type Score struct {
	Score int              `json:"risk_score"`
	Level domain.RiskLevel `json:"risk_level"`
}

type EventSignals struct {
	FuelTheft     bool `json:"fuel_theft"`
	LateArrival   bool `json:"late_arrival"`
	ExcessiveIdle bool `json:"excessive_idle"`
}

type BatchSignals struct {
	LowMileage bool `json:"low_mileage"`
	IdleRisk   bool `json:"idle_risk"`
	SLARisk    bool `json:"sla_risk"`
}

// EventRiskPolicy weighs theft 2, lateness 1, idling 1.
// HIGH at 3 or more, MEDIUM at exactly 2.
type EventRiskPolicy struct{}

func (EventRiskPolicy) Name() string { return "event" }

func (EventRiskPolicy) Assess(s EventSignals) Score {
	score := 0
	if s.FuelTheft {
		score += 2
	}
	if s.LateArrival {
		score++
	}
	if s.ExcessiveIdle {
		score++
	}

	level := domain.RiskLow
	switch {
	case score >= 3:
		level = domain.RiskHigh
	case score == 2:
		level = domain.RiskMedium
	}
	return Score{Score: score, Level: level}
}

// BatchRiskPolicy weighs low mileage 3, idling 2, SLA 3.
// HIGH at 6 or more, MEDIUM at 3 or more.
type BatchRiskPolicy struct {
	// LowMileageRatio is the fraction of expected mileage below which
	// actual mileage counts as low.
	LowMileageRatio float64
}

func (BatchRiskPolicy) Name() string { return "batch" }

func (p BatchRiskPolicy) Assess(s BatchSignals) Score {
	score := 0
	if s.LowMileage {
		score += 3
	}
	if s.IdleRisk {
		score += 2
	}
	if s.SLARisk {
		score += 3
	}

	level := domain.RiskLow
	switch {
	case score >= 6:
		level = domain.RiskHigh
	case score >= 3:
		level = domain.RiskMedium
	}
	return Score{Score: score, Level: level}
}

// LowMileage is false when either side is unknown or non-positive.
func (p BatchRiskPolicy) LowMileage(expected, actual *float64) bool {
	if expected == nil || actual == nil || *expected <= 0 || *actual <= 0 {
		return false
	}
	return *actual < *expected*p.LowMileageRatio
}
