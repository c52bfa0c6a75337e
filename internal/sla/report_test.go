package sla

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"fleet-monitor/compliance/internal/domain"
)

func TestSeverity(t *testing.T) {
	assert.Equal(t, domain.SeverityMedium, Severity(11))
	assert.Equal(t, domain.SeverityMedium, Severity(60))
	assert.Equal(t, domain.SeverityHigh, Severity(61))
	assert.Equal(t, domain.SeverityHigh, Severity(120))
	assert.Equal(t, domain.SeverityCritical, Severity(121))
}

func TestPenalty(t *testing.T) {
	assert.Equal(t, 0, Penalty(-3))
	assert.Equal(t, 0, Penalty(59))
	assert.Equal(t, 100, Penalty(60))
	assert.Equal(t, 200, Penalty(179))
}

func TestComplianceRate(t *testing.T) {
	assert.Equal(t, 0.0, ComplianceRate(domain.ComplianceCounts{}))
	assert.Equal(t, 0.0, ComplianceRate(domain.ComplianceCounts{Bare: 4}))
	assert.Equal(t, 66.67, ComplianceRate(domain.ComplianceCounts{OnTime: 2, Late: 1, Bare: 9}))
	assert.Equal(t, 50.0, ComplianceRate(domain.ComplianceCounts{OnTime: 2, Late: 1, Missed: 1}))
}
