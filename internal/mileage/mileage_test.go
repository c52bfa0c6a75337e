package mileage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-monitor/compliance/internal/domain"
)

func TestCalculateMileage(t *testing.T) {
	assert.Equal(t, 0.0, CalculateMileage(100, 0))
	assert.Equal(t, 0.0, CalculateMileage(100, -2))
	assert.Equal(t, 10.0, CalculateMileage(100, 10))
	assert.Equal(t, 33.33, CalculateMileage(100, 3))
}

func TestAnalyzeFuelTheft(t *testing.T) {
	got := AnalyzeFuelTheft(10, 7, 15)
	assert.True(t, got.TheftFlag)
	assert.Equal(t, 3.0, got.Variance)

	got = AnalyzeFuelTheft(10, 8.5, 15)
	assert.False(t, got.TheftFlag, "exactly on the threshold is not theft")
	assert.Equal(t, 1.5, got.Variance)

	got = AnalyzeFuelTheft(10, 12, 15)
	assert.False(t, got.TheftFlag)
	assert.Equal(t, -2.0, got.Variance)
}

func TestPolicies(t *testing.T) {
	tol := TolerancePolicy{Percent: 15}
	ratio := RatioPolicy{Ratio: 0.5}

	assert.True(t, tol.Flag(10, 7))
	assert.False(t, ratio.Flag(10, 7))
	assert.True(t, ratio.Flag(10, 4.9))
	assert.False(t, ratio.Flag(10, 5))

	assert.Equal(t, "tolerance_15", tol.Name())
	assert.Equal(t, "ratio_0.5", ratio.Name())

	assert.Equal(t, ratio, PolicyByName("ratio", 15, 0.5))
	assert.Equal(t, tol, PolicyByName("tolerance", 15, 0.5))
	assert.Equal(t, tol, PolicyByName("", 15, 0.5))
}

func ptr(f float64) *float64 { return &f }

func entry(id string, qty float64, odo *float64) domain.FuelEntry {
	return domain.FuelEntry{ID: id, VehicleID: "v1", FuelQuantity: qty, OdometerReading: odo}
}

func TestAnalyzerOutcomes(t *testing.T) {
	a := NewAnalyzer(TolerancePolicy{Percent: 15})
	now := time.Date(2024, 3, 11, 12, 0, 0, 0, time.UTC)
	prev := entry("e0", 40, ptr(1000))

	tests := []struct {
		name     string
		current  domain.FuelEntry
		previous *domain.FuelEntry
		expected *float64
		outcome  Outcome
	}{
		{"zero quantity", entry("e1", 0, ptr(1300)), &prev, ptr(10), OutcomeInsufficientData},
		{"no previous", entry("e1", 30, ptr(1300)), nil, ptr(10), OutcomeNoPreviousEntry},
		{"current odometer missing", entry("e1", 30, nil), &prev, ptr(10), OutcomeNoOdometer},
		{"odometer rollback", entry("e1", 30, ptr(900)), &prev, ptr(10), OutcomeNonPositiveDistance},
		{"odometer unchanged", entry("e1", 30, ptr(1000)), &prev, ptr(10), OutcomeNonPositiveDistance},
		{"no baseline", entry("e1", 30, ptr(1300)), &prev, nil, OutcomePartial},
		{"zero baseline", entry("e1", 30, ptr(1300)), &prev, ptr(0), OutcomePartial},
		{"full", entry("e1", 30, ptr(1300)), &prev, ptr(10), OutcomeAnalyzed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.Analyze(tt.current, tt.previous, tt.expected, now)
			assert.Equal(t, tt.outcome, got.Outcome)
			if tt.outcome == OutcomeAnalyzed || tt.outcome == OutcomePartial {
				assert.NotNil(t, got.Analysis)
			} else {
				assert.Nil(t, got.Analysis)
			}
		})
	}
}

func TestAnalyzerFlagsTheft(t *testing.T) {
	a := NewAnalyzer(TolerancePolicy{Percent: 15})
	now := time.Now()
	prev := entry("e0", 40, ptr(1000))

	// 210 km on 30 L is 7 km/L against a 10 km/L baseline.
	got := a.Analyze(entry("e1", 30, ptr(1210)), &prev, ptr(10), now)
	require.Equal(t, OutcomeAnalyzed, got.Outcome)

	fa := got.Analysis
	assert.Equal(t, "v1", fa.VehicleID)
	assert.Equal(t, "e1", fa.FuelEntryID)
	assert.Equal(t, 30.0, fa.FuelGiven)
	assert.Equal(t, 210.0, fa.DistanceCovered)
	assert.Equal(t, 7.0, fa.ActualMileage)
	require.NotNil(t, fa.FuelVariance)
	assert.Equal(t, 3.0, *fa.FuelVariance)
	assert.True(t, fa.TheftFlag)
	assert.Equal(t, "tolerance_15", fa.Policy)
	assert.Equal(t, now, fa.AnalysisDate)
}

func TestAnalyzerPartialHasNoVerdict(t *testing.T) {
	a := NewAnalyzer(RatioPolicy{Ratio: 0.5})
	prev := entry("e0", 40, ptr(1000))

	got := a.Analyze(entry("e1", 50, ptr(1010)), &prev, nil, time.Now())
	require.Equal(t, OutcomePartial, got.Outcome)
	assert.Nil(t, got.Analysis.ExpectedMileage)
	assert.Nil(t, got.Analysis.FuelVariance)
	assert.False(t, got.Analysis.TheftFlag)
	assert.Equal(t, 0.2, got.Analysis.ActualMileage)
}
