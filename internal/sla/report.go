package sla

import (
	"math"

	"fleet-monitor/compliance/internal/domain"
)

// PenaltyPerHour is charged for every full hour of lateness.
const PenaltyPerHour = 100

func Severity(delayMinutes int) domain.Severity {
	switch {
	case delayMinutes > 120:
		return domain.SeverityCritical
	case delayMinutes > 60:
		return domain.SeverityHigh
	default:
		return domain.SeverityMedium
	}
}

func Penalty(delayMinutes int) int {
	if delayMinutes <= 0 {
		return 0
	}
	return delayMinutes / 60 * PenaltyPerHour
}

// ComplianceRate is the on-time share of classified arrivals, in percent
// rounded to two decimals. Bare arrivals are not classified and don't count.
func ComplianceRate(c domain.ComplianceCounts) float64 {
	total := c.OnTime + c.Late + c.Missed
	if total == 0 {
		return 0
	}
	return math.Round(float64(c.OnTime)/float64(total)*100*100) / 100
}
