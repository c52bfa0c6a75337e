package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"fleet-monitor/compliance/internal/domain"
)

const geofenceColumns = `
	g.geofence_id, g.company_id, g.location_name, ST_AsEWKT(g.center),
	g.radius_meters, g.is_active, g.expected_time_minutes`

func scanGeofence(row pgx.Row) (domain.Geofence, error) {
	var g domain.Geofence
	var center string
	if err := row.Scan(
		&g.ID, &g.CompanyID, &g.Name, &center,
		&g.RadiusMeters, &g.IsActive, &g.ExpectedTimeMinutes,
	); err != nil {
		return domain.Geofence{}, err
	}
	p, err := parsePointWKT(center)
	if err != nil {
		return domain.Geofence{}, err
	}
	g.Center = p
	return g, nil
}

func (s *TimescaleStore) CreateGeofence(ctx context.Context, g *domain.Geofence) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO geofences
			(geofence_id, company_id, location_name, center, radius_meters, is_active, expected_time_minutes)
		VALUES
			($1, $2, $3, ST_GeogFromText($4), $5, $6, $7)
	`, g.ID, g.CompanyID, g.Name, pointWKT(g.Center), g.RadiusMeters, g.IsActive, g.ExpectedTimeMinutes)
	if err != nil {
		return fmt.Errorf("insert geofence: %w", err)
	}
	return nil
}

func (s *TimescaleStore) GetGeofence(ctx context.Context, id string) (domain.Geofence, error) {
	row := s.pool.QueryRow(ctx, `SELECT`+geofenceColumns+` FROM geofences g WHERE g.geofence_id = $1`, id)
	g, err := scanGeofence(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Geofence{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Geofence{}, fmt.Errorf("get geofence %s: %w", id, err)
	}
	return g, nil
}

func (s *TimescaleStore) ListGeofences(ctx context.Context) ([]domain.Geofence, error) {
	rows, err := s.pool.Query(ctx, `SELECT`+geofenceColumns+`
		FROM geofences g
		ORDER BY g.created_at, g.geofence_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list geofences: %w", err)
	}
	return collectGeofences(rows)
}

func (s *TimescaleStore) UpdateGeofence(ctx context.Context, g *domain.Geofence) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE geofences SET
			location_name = $2,
			center = ST_GeogFromText($3),
			radius_meters = $4,
			is_active = $5,
			expected_time_minutes = $6
		WHERE geofence_id = $1
	`, g.ID, g.Name, pointWKT(g.Center), g.RadiusMeters, g.IsActive, g.ExpectedTimeMinutes)
	if err != nil {
		return fmt.Errorf("update geofence %s: %w", g.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeactivateGeofence hides the geofence from tracking. Its logs, assignments
// and penalties stay.
func (s *TimescaleStore) DeactivateGeofence(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE geofences SET is_active = false WHERE geofence_id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate geofence %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func collectGeofences(rows pgx.Rows) ([]domain.Geofence, error) {
	defer rows.Close()
	out := []domain.Geofence{}
	for rows.Next() {
		g, err := scanGeofence(rows)
		if err != nil {
			return nil, fmt.Errorf("scan geofence: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// ActiveGeofencesForVehicle returns active geofences owned by the vehicle's
// company or assigned to the vehicle directly.
func (s *TimescaleStore) ActiveGeofencesForVehicle(ctx context.Context, vehicleID string) ([]domain.Geofence, error) {
	rows, err := s.pool.Query(ctx, `SELECT`+geofenceColumns+`
		FROM geofences g
		WHERE g.is_active
		  AND (
			g.company_id = (SELECT company_id FROM vehicles WHERE vehicle_id = $1)
			OR EXISTS (
				SELECT 1 FROM geofence_assignments a
				WHERE a.geofence_id = g.geofence_id AND a.vehicle_id = $1 AND a.is_active
			)
		  )
	`, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("active geofences for %s: %w", vehicleID, err)
	}
	return collectGeofences(rows)
}

const assignmentColumns = `
	geofence_id, vehicle_id, expected_entry_time::text, grace_minutes,
	COALESCE(window_end::text, ''), is_active`

func scanAssignment(row pgx.Row) (domain.Assignment, error) {
	var a domain.Assignment
	err := row.Scan(&a.GeofenceID, &a.VehicleID, &a.ExpectedEntryTime, &a.GraceMinutes, &a.WindowEnd, &a.IsActive)
	return a, err
}

func collectAssignments(rows pgx.Rows) ([]domain.Assignment, error) {
	defer rows.Close()
	var out []domain.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *TimescaleStore) CreateAssignment(ctx context.Context, a *domain.Assignment) error {
	var windowEnd *string
	if a.WindowEnd != "" {
		windowEnd = &a.WindowEnd
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO geofence_assignments
			(geofence_id, vehicle_id, expected_entry_time, grace_minutes, window_end, is_active)
		VALUES
			($1, $2, $3::time, $4, $5::time, $6)
	`, a.GeofenceID, a.VehicleID, a.ExpectedEntryTime, a.GraceMinutes, windowEnd, a.IsActive)
	if err != nil {
		return fmt.Errorf("insert assignment: %w", err)
	}
	return nil
}

// FindAssignment returns the first active assignment for the pair.
// Duplicates are a data quality problem, the oldest wins.
func (s *TimescaleStore) FindAssignment(ctx context.Context, vehicleID, geofenceID string) (domain.Assignment, error) {
	row := s.pool.QueryRow(ctx, `SELECT`+assignmentColumns+`
		FROM geofence_assignments
		WHERE vehicle_id = $1 AND geofence_id = $2 AND is_active
		ORDER BY created_at, assignment_id
		LIMIT 1
	`, vehicleID, geofenceID)
	a, err := scanAssignment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Assignment{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Assignment{}, fmt.Errorf("find assignment %s/%s: %w", vehicleID, geofenceID, err)
	}
	return a, nil
}

func (s *TimescaleStore) AssignmentsForVehicle(ctx context.Context, vehicleID string) ([]domain.Assignment, error) {
	rows, err := s.pool.Query(ctx, `SELECT`+assignmentColumns+`
		FROM geofence_assignments
		WHERE vehicle_id = $1 AND is_active
		ORDER BY created_at, assignment_id
	`, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("assignments for %s: %w", vehicleID, err)
	}
	return collectAssignments(rows)
}

func (s *TimescaleStore) ActiveAssignments(ctx context.Context) ([]domain.Assignment, error) {
	rows, err := s.pool.Query(ctx, `SELECT`+assignmentColumns+`
		FROM geofence_assignments
		WHERE is_active
		ORDER BY vehicle_id, created_at, assignment_id
	`)
	if err != nil {
		return nil, fmt.Errorf("active assignments: %w", err)
	}
	return collectAssignments(rows)
}

func (s *TimescaleStore) ArrivalExists(ctx context.Context, vehicleID, geofenceID string, day time.Time) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM geofence_logs
			WHERE vehicle_id = $1 AND geofence_id = $2 AND arrival_day = $3::date
		)
	`, vehicleID, geofenceID, dateParam(day)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("arrival exists %s/%s: %w", vehicleID, geofenceID, err)
	}
	return exists, nil
}

// execer is satisfied by the pool and by a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// InsertArrival writes the log unless one already exists for the vehicle,
// geofence and day. It reports whether a row was written.
func (s *TimescaleStore) InsertArrival(ctx context.Context, l *domain.ArrivalLog) (bool, error) {
	return insertArrival(ctx, s.pool, l)
}

func insertArrival(ctx context.Context, db execer, l *domain.ArrivalLog) (bool, error) {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	var status *string
	if l.Status != nil {
		v := string(*l.Status)
		status = &v
	}

	tag, err := db.Exec(ctx, `
		INSERT INTO geofence_logs
			(geofence_log_id, vehicle_id, geofence_id, arrival_time, arrival_day,
			 scheduled_time, delay_minutes, status, created_at)
		VALUES
			($1, $2, $3, $4, $5::date, $6, $7, $8, NOW())
		ON CONFLICT (vehicle_id, geofence_id, arrival_day) DO NOTHING
	`, l.ID, l.VehicleID, l.GeofenceID, l.ArrivalTime, dateParam(l.ArrivalDay),
		l.ScheduledTime, l.DelayMinutes, status)
	if err != nil {
		return false, fmt.Errorf("insert arrival %s/%s: %w", l.VehicleID, l.GeofenceID, err)
	}
	return tag.RowsAffected() == 1, nil
}

const arrivalColumns = `
	geofence_log_id::text, vehicle_id, geofence_id, arrival_time, arrival_day,
	scheduled_time, delay_minutes, status, created_at`

func scanArrival(row pgx.Row) (domain.ArrivalLog, error) {
	var l domain.ArrivalLog
	var status *string
	if err := row.Scan(
		&l.ID, &l.VehicleID, &l.GeofenceID, &l.ArrivalTime, &l.ArrivalDay,
		&l.ScheduledTime, &l.DelayMinutes, &status, &l.CreatedAt,
	); err != nil {
		return domain.ArrivalLog{}, err
	}
	if status != nil {
		st := domain.ArrivalStatus(*status)
		l.Status = &st
	}
	return l, nil
}

// LatestArrival is the vehicle's most recent classified log, or nil.
func (s *TimescaleStore) LatestArrival(ctx context.Context, vehicleID string, onOrBefore time.Time) (*domain.ArrivalLog, error) {
	row := s.pool.QueryRow(ctx, `SELECT`+arrivalColumns+`
		FROM geofence_logs
		WHERE vehicle_id = $1 AND status IS NOT NULL AND arrival_day <= $2::date
		ORDER BY arrival_day DESC, COALESCE(arrival_time, scheduled_time) DESC
		LIMIT 1
	`, vehicleID, dateParam(onOrBefore))
	l, err := scanArrival(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest arrival for %s: %w", vehicleID, err)
	}
	return &l, nil
}

// CountSLABreaches counts LATE and MISSED logs on or after since.
func (s *TimescaleStore) CountSLABreaches(ctx context.Context, vehicleID string, since time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM geofence_logs
		WHERE vehicle_id = $1 AND status IN ('LATE', 'MISSED') AND created_at >= $2
	`, vehicleID, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count sla breaches for %s: %w", vehicleID, err)
	}
	return n, nil
}

func (s *TimescaleStore) ListArrivals(ctx context.Context, f domain.ArrivalFilter) ([]domain.ArrivalLog, error) {
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var from, to *string
	if f.From != nil {
		v := dateParam(*f.From)
		from = &v
	}
	if f.To != nil {
		v := dateParam(*f.To)
		to = &v
	}

	rows, err := s.pool.Query(ctx, `SELECT`+arrivalColumns+`
		FROM geofence_logs
		WHERE ($1 = '' OR vehicle_id = $1)
		  AND ($2::date IS NULL OR arrival_day >= $2::date)
		  AND ($3::date IS NULL OR arrival_day <= $3::date)
		ORDER BY arrival_day DESC, created_at DESC
		LIMIT $4
	`, f.VehicleID, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("list arrivals: %w", err)
	}
	defer rows.Close()

	out := []domain.ArrivalLog{}
	for rows.Next() {
		l, err := scanArrival(rows)
		if err != nil {
			return nil, fmt.Errorf("scan arrival: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ComplianceCounts aggregates classified logs with arrival_day in
// [from, to]. lateHours sums the full hours of lateness over LATE rows.
func (s *TimescaleStore) ComplianceCounts(ctx context.Context, from, to time.Time) (domain.ComplianceCounts, int, error) {
	var c domain.ComplianceCounts
	var lateHours int
	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'ON_TIME'),
			COUNT(*) FILTER (WHERE status = 'LATE'),
			COUNT(*) FILTER (WHERE status = 'MISSED'),
			COUNT(*) FILTER (WHERE status IS NULL),
			COALESCE(SUM(delay_minutes / 60) FILTER (WHERE status = 'LATE'), 0)
		FROM geofence_logs
		WHERE arrival_day BETWEEN $1::date AND $2::date
	`, dateParam(from), dateParam(to)).Scan(&c.OnTime, &c.Late, &c.Missed, &c.Bare, &lateHours)
	if err != nil {
		return domain.ComplianceCounts{}, 0, fmt.Errorf("compliance counts: %w", err)
	}
	return c, lateHours, nil
}
