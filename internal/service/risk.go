package service

import (
	"context"
	"fmt"
	"time"

	"fleet-monitor/compliance/internal/domain"
	"fleet-monitor/compliance/internal/idle"
	"fleet-monitor/compliance/internal/logger"
	"fleet-monitor/compliance/internal/metrics"
	"fleet-monitor/compliance/internal/risk"
)

type EventRiskInput struct {
	VehicleID string    `json:"vehicle_id"`
	RouteID   *string   `json:"route_id,omitempty"`
	Date      time.Time `json:"date"`
}

// AssessEventRisk scores one vehicle for one day from its latest fuel
// analysis, its latest classified arrival and the idle samples in the window
// ending with that day.
func (s *Service) AssessEventRisk(ctx context.Context, in EventRiskInput) (domain.RiskAssessment, error) {
	if in.VehicleID == "" {
		return domain.RiskAssessment{}, &domain.ValidationError{Field: "vehicle_id", Message: "is required"}
	}
	date := in.Date
	if date.IsZero() {
		date = s.now()
	}
	day := domain.Day(date, s.opts.Location)
	nextDay := day.AddDate(0, 0, 1)

	analysis, err := s.repo.LatestFuelAnalysis(ctx, in.VehicleID, nextDay)
	if err != nil {
		return domain.RiskAssessment{}, err
	}
	arrival, err := s.repo.LatestArrival(ctx, in.VehicleID, day)
	if err != nil {
		return domain.RiskAssessment{}, err
	}

	end := s.now()
	if end.After(nextDay) {
		end = nextDay
	}
	idleCount, err := s.repo.CountIdleSamples(ctx, in.VehicleID, end.Add(-s.opts.IdleWindow), end, s.opts.IdleSpeedThreshold)
	if err != nil {
		return domain.RiskAssessment{}, err
	}

	signals := risk.EventSignals{
		FuelTheft:     analysis != nil && analysis.TheftFlag,
		LateArrival:   arrival != nil && isBreach(arrival.Status),
		ExcessiveIdle: idle.IsExcessive(idleCount, s.opts.IdleEventThreshold),
	}
	score := s.eventRisk.Assess(signals)

	ra := domain.RiskAssessment{
		VehicleID:      in.VehicleID,
		RouteID:        in.RouteID,
		AssessmentDate: day,
		FuelRisk:       signals.FuelTheft,
		SLARisk:        signals.LateArrival,
		IdleRisk:       signals.ExcessiveIdle,
		RiskScore:      score.Score,
		RiskLevel:      score.Level,
		Policy:         s.eventRisk.Name(),
	}
	if err := s.saveAssessment(ctx, &ra); err != nil {
		return domain.RiskAssessment{}, err
	}
	return ra, nil
}

func isBreach(st *domain.ArrivalStatus) bool {
	return st != nil && (*st == domain.StatusLate || *st == domain.StatusMissed)
}

type BatchResult struct {
	Processed   int                     `json:"processed"`
	Assessments []domain.RiskAssessment `json:"assessments"`
	Errors      []VehicleError          `json:"errors,omitempty"`
}

// RunRiskBatch assesses one vehicle, or every vehicle when vehicleID is nil.
// A failing vehicle is recorded in the result and the batch moves on.
func (s *Service) RunRiskBatch(ctx context.Context, vehicleID *string) (BatchResult, error) {
	var vehicles []string
	if vehicleID != nil && *vehicleID != "" {
		vehicles = []string{*vehicleID}
	} else {
		ids, err := s.repo.ListVehicleIDs(ctx)
		if err != nil {
			return BatchResult{}, err
		}
		vehicles = ids
	}

	res := BatchResult{Assessments: []domain.RiskAssessment{}}
	now := s.now()
	for _, v := range vehicles {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		ra, err := s.assessBatch(ctx, v, now)
		if err != nil {
			metrics.RiskBatchFailures.Add(1)
			logger.Error("risk_batch", "Risk assessment failed for vehicle", err, "vehicle_id", v)
			res.Errors = append(res.Errors, VehicleError{VehicleID: v, Error: err.Error()})
			continue
		}
		res.Processed++
		res.Assessments = append(res.Assessments, ra)
	}

	logger.Info("risk_batch", "Risk batch finished",
		"vehicles", len(vehicles), "processed", res.Processed, "failed", len(res.Errors))
	return res, nil
}

func (s *Service) assessBatch(ctx context.Context, vehicleID string, now time.Time) (domain.RiskAssessment, error) {
	analysis, err := s.repo.LatestFuelAnalysis(ctx, vehicleID, now)
	if err != nil {
		return domain.RiskAssessment{}, err
	}
	idleCount, err := s.repo.CountIdleSamples(ctx, vehicleID, now.Add(-s.opts.IdleWindow), now, s.opts.IdleSpeedThreshold)
	if err != nil {
		return domain.RiskAssessment{}, err
	}
	breaches, err := s.repo.CountSLABreaches(ctx, vehicleID, now.Add(-s.opts.SLALookback))
	if err != nil {
		return domain.RiskAssessment{}, err
	}

	signals := risk.BatchSignals{
		IdleRisk: idle.IsExcessive(idleCount, s.opts.IdleBatchThreshold),
		SLARisk:  breaches > 0,
	}
	if analysis != nil {
		signals.LowMileage = s.batchRisk.LowMileage(analysis.ExpectedMileage, &analysis.ActualMileage)
	}
	score := s.batchRisk.Assess(signals)

	ra := domain.RiskAssessment{
		VehicleID:      vehicleID,
		AssessmentDate: domain.Day(now, s.opts.Location),
		FuelRisk:       signals.LowMileage,
		SLARisk:        signals.SLARisk,
		IdleRisk:       signals.IdleRisk,
		RiskScore:      score.Score,
		RiskLevel:      score.Level,
		Policy:         s.batchRisk.Name(),
	}
	if err := s.saveAssessment(ctx, &ra); err != nil {
		return domain.RiskAssessment{}, err
	}
	return ra, nil
}

func (s *Service) saveAssessment(ctx context.Context, ra *domain.RiskAssessment) error {
	if err := s.repo.InsertRiskAssessment(ctx, ra); err != nil {
		return err
	}
	metrics.RiskAssessments.Add(1)

	if ra.RiskLevel == domain.RiskHigh {
		s.publish(ctx, domain.Event{
			Type:      domain.EventRiskHigh,
			VehicleID: ra.VehicleID,
			Severity:  domain.SeverityHigh,
			Payload: map[string]any{
				"risk_score": ra.RiskScore,
				"policy":     ra.Policy,
				"fuel_risk":  ra.FuelRisk,
				"sla_risk":   ra.SLARisk,
				"idle_risk":  ra.IdleRisk,
				"message":    fmt.Sprintf("Vehicle risk score %d", ra.RiskScore),
			},
		})
	}
	return nil
}

func (s *Service) ListRiskAssessments(ctx context.Context, vehicleID string, limit int) ([]domain.RiskAssessment, error) {
	return s.repo.ListRiskAssessments(ctx, vehicleID, limit)
}

func (s *Service) Overview(ctx context.Context) (domain.Overview, error) {
	return s.repo.Overview(ctx)
}
