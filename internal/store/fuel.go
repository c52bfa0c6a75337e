package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"fleet-monitor/compliance/internal/domain"
)

func (s *TimescaleStore) InsertFuelEntry(ctx context.Context, e *domain.FuelEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO fuel_entries
			(fuel_entry_id, vehicle_id, fuel_date, fuel_quantity, odometer_reading, fuel_station, entered_by)
		VALUES
			($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, e.ID, e.VehicleID, e.FuelDate, e.FuelQuantity, e.OdometerReading, e.FuelStation, e.EnteredBy).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert fuel entry: %w", err)
	}
	return nil
}

// PreviousFuelEntry returns the latest entry for the vehicle dated strictly
// before the given date, or nil.
func (s *TimescaleStore) PreviousFuelEntry(ctx context.Context, vehicleID string, before time.Time) (*domain.FuelEntry, error) {
	var e domain.FuelEntry
	err := s.pool.QueryRow(ctx, `
		SELECT fuel_entry_id::text, vehicle_id, fuel_date, fuel_quantity, odometer_reading,
		       COALESCE(fuel_station, ''), COALESCE(entered_by, ''), created_at
		FROM fuel_entries
		WHERE vehicle_id = $1 AND fuel_date < $2
		ORDER BY fuel_date DESC, created_at DESC
		LIMIT 1
	`, vehicleID, before).Scan(
		&e.ID, &e.VehicleID, &e.FuelDate, &e.FuelQuantity, &e.OdometerReading,
		&e.FuelStation, &e.EnteredBy, &e.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("previous fuel entry for %s: %w", vehicleID, err)
	}
	return &e, nil
}

func (s *TimescaleStore) InsertFuelAnalysis(ctx context.Context, fa *domain.FuelAnalysis) error {
	if fa.ID == "" {
		fa.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO fuel_analysis
			(analysis_id, vehicle_id, fuel_entry_id, fuel_given, distance_covered,
			 expected_mileage, actual_mileage, fuel_variance, theft_flag, policy, analysis_date)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, fa.ID, fa.VehicleID, fa.FuelEntryID, fa.FuelGiven, fa.DistanceCovered,
		fa.ExpectedMileage, fa.ActualMileage, fa.FuelVariance, fa.TheftFlag, fa.Policy, fa.AnalysisDate)
	if err != nil {
		return fmt.Errorf("insert fuel analysis: %w", err)
	}
	return nil
}

const fuelAnalysisColumns = `
	analysis_id::text, vehicle_id, fuel_entry_id::text, fuel_given, distance_covered,
	expected_mileage, actual_mileage, fuel_variance, theft_flag, policy, analysis_date`

func scanFuelAnalysis(row pgx.Row) (domain.FuelAnalysis, error) {
	var fa domain.FuelAnalysis
	err := row.Scan(
		&fa.ID, &fa.VehicleID, &fa.FuelEntryID, &fa.FuelGiven, &fa.DistanceCovered,
		&fa.ExpectedMileage, &fa.ActualMileage, &fa.FuelVariance, &fa.TheftFlag, &fa.Policy, &fa.AnalysisDate,
	)
	return fa, err
}

// LatestFuelAnalysis returns the newest analysis dated before the given
// instant, or nil.
func (s *TimescaleStore) LatestFuelAnalysis(ctx context.Context, vehicleID string, before time.Time) (*domain.FuelAnalysis, error) {
	row := s.pool.QueryRow(ctx, `SELECT`+fuelAnalysisColumns+`
		FROM fuel_analysis
		WHERE vehicle_id = $1 AND analysis_date < $2
		ORDER BY analysis_date DESC
		LIMIT 1
	`, vehicleID, before)
	fa, err := scanFuelAnalysis(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest fuel analysis for %s: %w", vehicleID, err)
	}
	return &fa, nil
}

func (s *TimescaleStore) ListFuelAnalyses(ctx context.Context, vehicleID string, limit int) ([]domain.FuelAnalysis, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `SELECT`+fuelAnalysisColumns+`
		FROM fuel_analysis
		WHERE ($1 = '' OR vehicle_id = $1)
		ORDER BY analysis_date DESC
		LIMIT $2
	`, vehicleID, limit)
	if err != nil {
		return nil, fmt.Errorf("list fuel analyses: %w", err)
	}
	defer rows.Close()

	out := []domain.FuelAnalysis{}
	for rows.Next() {
		fa, err := scanFuelAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fuel analysis: %w", err)
		}
		out = append(out, fa)
	}
	return out, rows.Err()
}
