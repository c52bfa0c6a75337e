// Package mileage derives fuel efficiency from consecutive fuel entries and
// flags drops consistent with theft or leakage.
package mileage

import (
	"fmt"
	"math"
)

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// CalculateMileage returns km per litre rounded to two decimals, or 0 when
// no fuel was given.
func CalculateMileage(distanceKm, fuelLiters float64) float64 {
	if fuelLiters <= 0 {
		return 0
	}
	return round2(distanceKm / fuelLiters)
}

type TheftResult struct {
	TheftFlag bool    `json:"theft_flag"`
	Variance  float64 `json:"variance"`
}

// AnalyzeFuelTheft flags actual mileage more than tolerancePercent below the
// expected baseline. A positive variance is worse than expected.
func AnalyzeFuelTheft(expected, actual, tolerancePercent float64) TheftResult {
	allowedDrop := expected * tolerancePercent / 100
	return TheftResult{
		TheftFlag: actual < expected-allowedDrop,
		Variance:  round2(expected - actual),
	}
}

// TheftPolicy decides whether actual mileage is suspicious against expected.
type TheftPolicy interface {
	Name() string
	Flag(expected, actual float64) bool
}

// TolerancePolicy is the canonical rule: actual below expected minus
// Percent of expected.
type TolerancePolicy struct {
	Percent float64
}

func (p TolerancePolicy) Name() string {
	return fmt.Sprintf("tolerance_%g", p.Percent)
}

func (p TolerancePolicy) Flag(expected, actual float64) bool {
	return AnalyzeFuelTheft(expected, actual, p.Percent).TheftFlag
}

// RatioPolicy flags actual below a fixed fraction of expected.
type RatioPolicy struct {
	Ratio float64
}

func (p RatioPolicy) Name() string {
	return fmt.Sprintf("ratio_%g", p.Ratio)
}

func (p RatioPolicy) Flag(expected, actual float64) bool {
	return actual < expected*p.Ratio
}

// PolicyByName resolves the THEFT_POLICY setting. Unknown names fall back to
// the tolerance rule.
func PolicyByName(name string, tolerancePercent, ratio float64) TheftPolicy {
	if name == "ratio" {
		return RatioPolicy{Ratio: ratio}
	}
	return TolerancePolicy{Percent: tolerancePercent}
}
