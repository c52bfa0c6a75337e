package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"fleet-monitor/compliance/internal/domain"
)

// InsertArrivalWithPenalty writes a late arrival and its penalty in one
// transaction. When the day already has a log nothing is written and the
// penalty is left untouched.
func (s *TimescaleStore) InsertArrivalWithPenalty(ctx context.Context, l *domain.ArrivalLog, p *domain.Penalty) (bool, error) {
	var inserted bool
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		inserted, err = insertArrival(ctx, tx, l)
		if err != nil || !inserted {
			return err
		}
		p.GeofenceLogID = l.ID
		return insertPenalty(ctx, tx, p)
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

func insertPenalty(ctx context.Context, tx pgx.Tx, p *domain.Penalty) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = domain.PenaltyPending
	}
	err := tx.QueryRow(ctx, `
		INSERT INTO penalties
			(penalty_id, vehicle_id, geofence_id, geofence_log_id, penalty_date, penalty_amount, reason, status)
		VALUES
			($1, $2, $3, $4, $5::date, $6, $7, $8)
		RETURNING created_at
	`, p.ID, p.VehicleID, p.GeofenceID, p.GeofenceLogID, dateParam(p.PenaltyDate),
		p.Amount, p.Reason, string(p.Status)).Scan(&p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert penalty for %s: %w", p.VehicleID, err)
	}
	return nil
}

func (s *TimescaleStore) ListPenalties(ctx context.Context, vehicleID string, limit int) ([]domain.Penalty, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT penalty_id::text, vehicle_id, geofence_id, geofence_log_id::text, penalty_date,
		       penalty_amount, reason, status, created_at
		FROM penalties
		WHERE ($1 = '' OR vehicle_id = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`, vehicleID, limit)
	if err != nil {
		return nil, fmt.Errorf("list penalties: %w", err)
	}
	defer rows.Close()

	out := []domain.Penalty{}
	for rows.Next() {
		var p domain.Penalty
		var status string
		if err := rows.Scan(
			&p.ID, &p.VehicleID, &p.GeofenceID, &p.GeofenceLogID, &p.PenaltyDate,
			&p.Amount, &p.Reason, &status, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan penalty: %w", err)
		}
		p.Status = domain.PenaltyStatus(status)
		out = append(out, p)
	}
	return out, rows.Err()
}
