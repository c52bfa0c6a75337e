package service

import (
	"context"

	"fleet-monitor/compliance/internal/domain"
	"fleet-monitor/compliance/internal/logger"
	"fleet-monitor/compliance/internal/metrics"
	"fleet-monitor/compliance/internal/mileage"
)

type FuelResult struct {
	Entry         domain.FuelEntry     `json:"entry"`
	Status        mileage.Outcome      `json:"status"`
	Analysis      *domain.FuelAnalysis `json:"analysis,omitempty"`
	AnalysisError string               `json:"analysis_error,omitempty"`
}

// IngestFuelEntry stores a supervisor's fuel entry and analyses it against
// the vehicle's previous fill. Once the entry is stored, analysis failures
// are reported in the result rather than returned.
func (s *Service) IngestFuelEntry(ctx context.Context, in domain.FuelEntryInput) (FuelResult, error) {
	entry, err := in.Parse()
	if err != nil {
		return FuelResult{}, err
	}
	if err := s.repo.InsertFuelEntry(ctx, &entry); err != nil {
		return FuelResult{}, err
	}

	res := FuelResult{Entry: entry}
	analysis, err := s.analyzeEntry(ctx, entry)
	if err != nil {
		logger.Error("fuel_analysis", "Fuel analysis failed after entry was stored", err,
			"vehicle_id", entry.VehicleID, "fuel_entry_id", entry.ID)
		res.AnalysisError = err.Error()
		return res, nil
	}

	res.Status = analysis.Outcome
	res.Analysis = analysis.Analysis
	return res, nil
}

func (s *Service) analyzeEntry(ctx context.Context, entry domain.FuelEntry) (mileage.Result, error) {
	if entry.FuelQuantity <= 0 {
		return mileage.Result{Outcome: mileage.OutcomeInsufficientData}, nil
	}

	previous, err := s.repo.PreviousFuelEntry(ctx, entry.VehicleID, entry.FuelDate)
	if err != nil {
		return mileage.Result{}, err
	}
	expected, err := s.repo.VehicleExpectedMileage(ctx, entry.VehicleID)
	if err != nil {
		return mileage.Result{}, err
	}

	res := s.analyzer.Analyze(entry, previous, expected, s.now())
	if res.Analysis == nil {
		return res, nil
	}
	if err := s.repo.InsertFuelAnalysis(ctx, res.Analysis); err != nil {
		return mileage.Result{}, err
	}

	metrics.FuelAnalyses.Add(1)
	if res.Analysis.TheftFlag {
		metrics.TheftFlags.Add(1)
		logger.Warn("fuel_theft", "Fuel theft suspected",
			"vehicle_id", entry.VehicleID,
			"expected_mileage", *res.Analysis.ExpectedMileage,
			"actual_mileage", res.Analysis.ActualMileage,
			"policy", res.Analysis.Policy)
	}
	return res, nil
}

func (s *Service) ListFuelAnalyses(ctx context.Context, vehicleID string, limit int) ([]domain.FuelAnalysis, error) {
	return s.repo.ListFuelAnalyses(ctx, vehicleID, limit)
}
