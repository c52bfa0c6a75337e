package mileage

import (
	"time"

	"fleet-monitor/compliance/internal/domain"
)

type Outcome string

const (
	OutcomeAnalyzed            Outcome = "ANALYZED"
	OutcomePartial             Outcome = "PARTIAL"
	OutcomeNoPreviousEntry     Outcome = "NO_PREVIOUS_ENTRY"
	OutcomeNoOdometer          Outcome = "NO_ODOMETER"
	OutcomeNonPositiveDistance Outcome = "NON_POSITIVE_DISTANCE"
	OutcomeInsufficientData    Outcome = "INSUFFICIENT_DATA"
)

// Result carries an Analysis only for ANALYZED and PARTIAL outcomes.
type Result struct {
	Outcome  Outcome              `json:"outcome"`
	Analysis *domain.FuelAnalysis `json:"analysis,omitempty"`
}

type Analyzer struct {
	Policy TheftPolicy
}

func NewAnalyzer(p TheftPolicy) *Analyzer {
	return &Analyzer{Policy: p}
}

// Analyze compares the current fill with the one before it. Without an
// expected mileage baseline the record is still produced, with no variance
// and no theft flag.
func (a *Analyzer) Analyze(current domain.FuelEntry, previous *domain.FuelEntry, expected *float64, now time.Time) Result {
	if current.FuelQuantity <= 0 {
		return Result{Outcome: OutcomeInsufficientData}
	}
	if previous == nil {
		return Result{Outcome: OutcomeNoPreviousEntry}
	}
	if current.OdometerReading == nil || previous.OdometerReading == nil {
		return Result{Outcome: OutcomeNoOdometer}
	}

	distance := *current.OdometerReading - *previous.OdometerReading
	if distance <= 0 {
		return Result{Outcome: OutcomeNonPositiveDistance}
	}

	fa := &domain.FuelAnalysis{
		VehicleID:       current.VehicleID,
		FuelEntryID:     current.ID,
		FuelGiven:       current.FuelQuantity,
		DistanceCovered: round2(distance),
		ActualMileage:   CalculateMileage(distance, current.FuelQuantity),
		Policy:          a.Policy.Name(),
		AnalysisDate:    now,
	}

	if expected == nil || *expected <= 0 {
		return Result{Outcome: OutcomePartial, Analysis: fa}
	}

	exp := *expected
	variance := round2(exp - fa.ActualMileage)
	fa.ExpectedMileage = &exp
	fa.FuelVariance = &variance
	fa.TheftFlag = a.Policy.Flag(exp, fa.ActualMileage)

	return Result{Outcome: OutcomeAnalyzed, Analysis: fa}
}
