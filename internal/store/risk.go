package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"fleet-monitor/compliance/internal/domain"
)

// InsertRiskAssessment appends a snapshot. Earlier snapshots are kept.
func (s *TimescaleStore) InsertRiskAssessment(ctx context.Context, r *domain.RiskAssessment) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO risk_assessments
			(risk_assessment_id, vehicle_id, route_id, assessment_date, fuel_risk, sla_risk,
			 idle_risk, risk_score, risk_level, policy)
		VALUES
			($1, $2, $3, $4::date, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`, r.ID, r.VehicleID, r.RouteID, dateParam(r.AssessmentDate), r.FuelRisk, r.SLARisk,
		r.IdleRisk, r.RiskScore, string(r.RiskLevel), r.Policy).Scan(&r.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert risk assessment for %s: %w", r.VehicleID, err)
	}
	return nil
}

func (s *TimescaleStore) ListRiskAssessments(ctx context.Context, vehicleID string, limit int) ([]domain.RiskAssessment, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT risk_assessment_id::text, vehicle_id, route_id, assessment_date, fuel_risk, sla_risk,
		       idle_risk, risk_score, risk_level, policy, created_at
		FROM risk_assessments
		WHERE ($1 = '' OR vehicle_id = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`, vehicleID, limit)
	if err != nil {
		return nil, fmt.Errorf("list risk assessments: %w", err)
	}
	defer rows.Close()

	out := []domain.RiskAssessment{}
	for rows.Next() {
		var r domain.RiskAssessment
		var level string
		if err := rows.Scan(
			&r.ID, &r.VehicleID, &r.RouteID, &r.AssessmentDate, &r.FuelRisk, &r.SLARisk,
			&r.IdleRisk, &r.RiskScore, &level, &r.Policy, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan risk assessment: %w", err)
		}
		r.RiskLevel = domain.RiskLevel(level)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Overview counts active vehicles, theft flags, classified arrivals and the
// vehicles whose latest assessment is HIGH.
func (s *TimescaleStore) Overview(ctx context.Context) (domain.Overview, error) {
	var o domain.Overview
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM vehicles WHERE is_active),
			(SELECT COUNT(*) FROM fuel_analysis WHERE theft_flag),
			(SELECT COUNT(*) FROM geofence_logs WHERE status = 'ON_TIME'),
			(SELECT COUNT(*) FROM geofence_logs WHERE status = 'LATE'),
			(SELECT COUNT(*) FROM geofence_logs WHERE status = 'MISSED'),
			(SELECT COUNT(*) FROM geofence_logs WHERE status IS NULL),
			(SELECT COUNT(*) FROM (
				SELECT DISTINCT ON (vehicle_id) risk_level
				FROM risk_assessments
				ORDER BY vehicle_id, created_at DESC
			) latest WHERE risk_level = 'HIGH')
	`).Scan(&o.Vehicles, &o.FuelAlerts, &o.SLA.OnTime, &o.SLA.Late, &o.SLA.Missed, &o.SLA.Bare, &o.HighRisk)
	if err != nil {
		return domain.Overview{}, fmt.Errorf("overview: %w", err)
	}
	return o, nil
}
