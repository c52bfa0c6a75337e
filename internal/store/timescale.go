package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fleet-monitor/compliance/internal/config"
	"fleet-monitor/compliance/internal/domain"
)

type TimescaleStore struct {
	pool *pgxpool.Pool
}

func NewTimescaleStore(ctx context.Context, cfg *config.Config) (*TimescaleStore, error) {
	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?pool_max_conns=%d",
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBName,
		cfg.DBMaxConns,
	)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create db pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return &TimescaleStore{pool: pool}, nil
}

// NewTimescaleStoreFromPool wraps a pool the caller owns.
func NewTimescaleStoreFromPool(pool *pgxpool.Pool) *TimescaleStore {
	return &TimescaleStore{pool: pool}
}

func (s *TimescaleStore) Close() {
	s.pool.Close()
}

func (s *TimescaleStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

var gpsLogColumns = []string{
	"recorded_at",
	"received_at",
	"vehicle_id",
	"fleet_id",
	"latitude",
	"longitude",
	"speed",
	"ignition",
}

// BatchInsertPositions appends raw samples to the gps_logs hypertable.
func (s *TimescaleStore) BatchInsertPositions(ctx context.Context, samples []domain.PositionSample) error {
	if len(samples) == 0 {
		return nil
	}

	rows := make([][]interface{}, len(samples))
	for i, m := range samples {
		rows[i] = []interface{}{
			m.Timestamp,
			m.ReceivedAt,
			m.VehicleID,
			m.FleetID,
			m.Point.Lat,
			m.Point.Lng,
			m.SpeedKmh,
			m.Ignition,
		}
	}

	_, err := s.pool.CopyFrom(
		ctx,
		pgx.Identifier{"gps_logs"},
		gpsLogColumns,
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("CopyFrom failed for batch of %d: %w", len(samples), err)
	}

	return nil
}

// CountIdleSamples counts gps_logs in [from, to) with ignition on and speed
// at or below speedThreshold.
func (s *TimescaleStore) CountIdleSamples(ctx context.Context, vehicleID string, from, to time.Time, speedThreshold float64) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM gps_logs
		WHERE vehicle_id = $1
		  AND ignition
		  AND speed <= $2
		  AND recorded_at >= $3
		  AND recorded_at <  $4
	`, vehicleID, speedThreshold, from, to).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count idle samples for %s: %w", vehicleID, err)
	}
	return n, nil
}

func (s *TimescaleStore) ListVehicleIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT vehicle_id FROM vehicles WHERE is_active ORDER BY vehicle_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	return ids, nil
}

// VehicleExpectedMileage returns the vehicle's km/L baseline, nil when unset.
func (s *TimescaleStore) VehicleExpectedMileage(ctx context.Context, vehicleID string) (*float64, error) {
	var expected *float64
	err := s.pool.QueryRow(ctx, `
		SELECT expected_mileage FROM vehicles WHERE vehicle_id = $1
	`, vehicleID).Scan(&expected)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("expected mileage for %s: %w", vehicleID, err)
	}
	return expected, nil
}

// dateParam renders a calendar day for a DATE column without letting the
// driver convert between zones.
func dateParam(day time.Time) string {
	return day.Format(time.DateOnly)
}
