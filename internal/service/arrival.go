package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fleet-monitor/compliance/internal/domain"
	"fleet-monitor/compliance/internal/geo"
	"fleet-monitor/compliance/internal/logger"
	"fleet-monitor/compliance/internal/metrics"
	"fleet-monitor/compliance/internal/sla"
)

// ArrivalResult reports what happened for one vehicle and geofence. Status is
// the business outcome; errors travel separately.
type ArrivalResult struct {
	Status        domain.ArrivalOutcome `json:"status"`
	VehicleID     string                `json:"vehicle_id"`
	GeofenceID    string                `json:"geofence_id,omitempty"`
	ArrivalStatus *domain.ArrivalStatus `json:"arrival_status,omitempty"`
	DelayMinutes  *int                  `json:"delay_minutes,omitempty"`
	ScheduledTime *time.Time            `json:"scheduled_time,omitempty"`
	Log           *domain.ArrivalLog    `json:"log,omitempty"`
	Penalty       *domain.Penalty       `json:"penalty,omitempty"`
}

const resetTimeout = 2 * time.Second

// IngestPosition feeds one accepted sample through the geofence tracker and
// records an arrival for every entry it causes. Samples for one vehicle must
// arrive in timestamp order. An entry that cannot be recorded is reset in the
// tracker so the next sample inside the geofence retries it; the other
// entries are still recorded and the errors are returned joined.
func (s *Service) IngestPosition(ctx context.Context, sample domain.PositionSample) ([]ArrivalResult, error) {
	geofences, err := s.repo.ActiveGeofencesForVehicle(ctx, sample.VehicleID)
	if err != nil {
		return nil, err
	}
	if len(geofences) == 0 {
		return nil, nil
	}

	var errs []error
	transitions, err := s.tracker.OnPositionUpdate(ctx, sample.VehicleID, sample.Point, geofences)
	if err != nil {
		errs = append(errs, err)
	}

	var results []ArrivalResult
	for _, tr := range transitions {
		metrics.GeofenceTransitions.Add(1)
		res, err := s.recordArrival(ctx, sample.VehicleID, tr.Geofence.ID, sample.Timestamp)
		if err != nil {
			errs = append(errs, fmt.Errorf("record arrival %s/%s: %w", sample.VehicleID, tr.Geofence.ID, err))
			s.resetEntry(ctx, sample.VehicleID, tr.Geofence.ID)
			continue
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

// resetEntry puts the pair back to OUTSIDE so the next inside sample emits
// the entry again. It runs even when ctx is done.
func (s *Service) resetEntry(ctx context.Context, vehicleID, geofenceID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resetTimeout)
	defer cancel()
	if err := s.tracker.Reset(ctx, vehicleID, geofenceID); err != nil {
		logger.Error("arrival_record", "Geofence state reset failed, entry may be lost", err,
			"vehicle_id", vehicleID, "geofence_id", geofenceID)
	}
}

func (s *Service) recordArrival(ctx context.Context, vehicleID, geofenceID string, at time.Time) (ArrivalResult, error) {
	assignment, err := s.repo.FindAssignment(ctx, vehicleID, geofenceID)
	if errors.Is(err, domain.ErrNotFound) {
		return s.recordBare(ctx, vehicleID, geofenceID, at)
	}
	if err != nil {
		return ArrivalResult{}, err
	}
	return s.evaluateAndRecord(ctx, assignment, at)
}

// evaluateAndRecord classifies the arrival against the assignment and
// stores it once per vehicle, geofence and day.
func (s *Service) evaluateAndRecord(ctx context.Context, a domain.Assignment, at time.Time) (ArrivalResult, error) {
	day := domain.Day(at, s.opts.Location)
	exists, err := s.repo.ArrivalExists(ctx, a.VehicleID, a.GeofenceID, day)
	if err != nil {
		return ArrivalResult{}, err
	}
	if exists {
		return ArrivalResult{Status: domain.OutcomeAlreadyRecorded, VehicleID: a.VehicleID, GeofenceID: a.GeofenceID}, nil
	}

	ev, err := sla.Evaluate(a, at, s.opts.Location)
	if errors.Is(err, sla.ErrInvalidTimeOfDay) {
		logger.Warn("arrival_evaluate", "Unparseable expected entry time, recording bare arrival",
			"vehicle_id", a.VehicleID, "geofence_id", a.GeofenceID, "expected_entry_time", a.ExpectedEntryTime)
		return s.recordBare(ctx, a.VehicleID, a.GeofenceID, at)
	}
	if err != nil {
		return ArrivalResult{}, err
	}

	delay := ev.StoredDelay()
	status := ev.Status
	arrival := at
	scheduled := ev.ScheduledTime
	log := &domain.ArrivalLog{
		VehicleID:     a.VehicleID,
		GeofenceID:    a.GeofenceID,
		ArrivalTime:   &arrival,
		ArrivalDay:    day,
		ScheduledTime: &scheduled,
		DelayMinutes:  &delay,
		Status:        &status,
	}

	var penalty *domain.Penalty
	var inserted bool
	if amount := sla.Penalty(delay); status == domain.StatusLate && amount > 0 {
		penalty = &domain.Penalty{
			VehicleID:   a.VehicleID,
			GeofenceID:  a.GeofenceID,
			PenaltyDate: day,
			Amount:      amount,
			Reason:      fmt.Sprintf("Late arrival by %d minutes", delay),
			Status:      domain.PenaltyPending,
		}
		inserted, err = s.repo.InsertArrivalWithPenalty(ctx, log, penalty)
	} else {
		inserted, err = s.repo.InsertArrival(ctx, log)
	}
	if err != nil {
		return ArrivalResult{}, err
	}
	if !inserted {
		return ArrivalResult{Status: domain.OutcomeAlreadyRecorded, VehicleID: a.VehicleID, GeofenceID: a.GeofenceID}, nil
	}

	metrics.ArrivalsRecorded.Add(1)
	logger.Info("arrival_recorded", "Geofence arrival recorded",
		"vehicle_id", a.VehicleID, "geofence_id", a.GeofenceID,
		"status", string(status), "delay_minutes", ev.DelayMinutes)

	if status == domain.StatusLate {
		s.publish(ctx, domain.Event{
			Type:      domain.EventSLAViolation,
			VehicleID: a.VehicleID,
			Severity:  sla.Severity(delay),
			Payload: map[string]any{
				"geofence_id":    a.GeofenceID,
				"status":         string(status),
				"delay_minutes":  delay,
				"penalty_amount": sla.Penalty(delay),
				"message":        fmt.Sprintf("Vehicle delayed by %d minutes", delay),
			},
		})
	}

	signed := ev.DelayMinutes
	return ArrivalResult{
		Status:        domain.OutcomeRecorded,
		VehicleID:     a.VehicleID,
		GeofenceID:    a.GeofenceID,
		ArrivalStatus: &status,
		DelayMinutes:  &signed,
		ScheduledTime: &scheduled,
		Log:           log,
		Penalty:       penalty,
	}, nil
}

// recordBare stores an arrival without schedule data. The outcome is
// NO_SCHEDULE whether or not a row was written.
func (s *Service) recordBare(ctx context.Context, vehicleID, geofenceID string, at time.Time) (ArrivalResult, error) {
	arrival := at
	log := &domain.ArrivalLog{
		VehicleID:   vehicleID,
		GeofenceID:  geofenceID,
		ArrivalTime: &arrival,
		ArrivalDay:  domain.Day(at, s.opts.Location),
	}
	inserted, err := s.repo.InsertArrival(ctx, log)
	if err != nil {
		return ArrivalResult{}, err
	}
	res := ArrivalResult{Status: domain.OutcomeNoSchedule, VehicleID: vehicleID, GeofenceID: geofenceID}
	if inserted {
		res.Log = log
	}
	return res, nil
}

// CheckArrival evaluates one position against the vehicle's scheduled
// geofence without the transition tracker. The first active assignment whose
// geofence is active is the vehicle's route.
func (s *Service) CheckArrival(ctx context.Context, vehicleID string, point domain.Point, at time.Time) (ArrivalResult, error) {
	if vehicleID == "" {
		return ArrivalResult{}, &domain.ValidationError{Field: "vehicle_id", Message: "is required"}
	}
	if err := domain.ValidateCoordinates(point.Lat, point.Lng); err != nil {
		return ArrivalResult{}, err
	}
	if at.IsZero() {
		at = s.now()
	}

	assignments, err := s.repo.AssignmentsForVehicle(ctx, vehicleID)
	if err != nil {
		return ArrivalResult{}, err
	}
	if len(assignments) == 0 {
		return ArrivalResult{Status: domain.OutcomeNoActiveRoute, VehicleID: vehicleID}, nil
	}

	var route *domain.Assignment
	var fence domain.Geofence
	for i := range assignments {
		g, err := s.repo.GetGeofence(ctx, assignments[i].GeofenceID)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return ArrivalResult{}, err
		}
		if g.IsActive {
			route, fence = &assignments[i], g
			break
		}
	}
	if route == nil {
		return ArrivalResult{Status: domain.OutcomeNoGeofence, VehicleID: vehicleID}, nil
	}

	exists, err := s.repo.ArrivalExists(ctx, vehicleID, fence.ID, domain.Day(at, s.opts.Location))
	if err != nil {
		return ArrivalResult{}, err
	}
	if exists {
		return ArrivalResult{Status: domain.OutcomeAlreadyRecorded, VehicleID: vehicleID, GeofenceID: fence.ID}, nil
	}

	if !geo.IsWithin(point, fence.Center, fence.RadiusMeters) {
		return ArrivalResult{Status: domain.OutcomeOutsideGeofence, VehicleID: vehicleID, GeofenceID: fence.ID}, nil
	}

	return s.evaluateAndRecord(ctx, *route, at)
}

type VehicleError struct {
	VehicleID  string `json:"vehicle_id"`
	GeofenceID string `json:"geofence_id,omitempty"`
	Error      string `json:"error"`
}

type SweepResult struct {
	Day     string         `json:"day"`
	Checked int            `json:"checked"`
	Missed  int            `json:"missed"`
	Errors  []VehicleError `json:"errors,omitempty"`
}

// SweepMissed writes a MISSED log for every active assignment on day whose
// arrival window has closed without any log. Running it again is harmless.
func (s *Service) SweepMissed(ctx context.Context, day time.Time) (SweepResult, error) {
	day = domain.Day(day, s.opts.Location)
	res := SweepResult{Day: day.Format(time.DateOnly)}

	assignments, err := s.repo.ActiveAssignments(ctx)
	if err != nil {
		return res, err
	}

	now := s.now()
	for _, a := range assignments {
		res.Checked++

		log, due, err := sla.MissedLog(a, day, now, s.opts.Location, s.opts.MissedAfter)
		if err != nil {
			res.Errors = append(res.Errors, VehicleError{VehicleID: a.VehicleID, GeofenceID: a.GeofenceID, Error: err.Error()})
			continue
		}
		if !due {
			continue
		}

		exists, err := s.repo.ArrivalExists(ctx, a.VehicleID, a.GeofenceID, day)
		if err != nil {
			res.Errors = append(res.Errors, VehicleError{VehicleID: a.VehicleID, GeofenceID: a.GeofenceID, Error: err.Error()})
			continue
		}
		if exists {
			continue
		}

		inserted, err := s.repo.InsertArrival(ctx, &log)
		if err != nil {
			res.Errors = append(res.Errors, VehicleError{VehicleID: a.VehicleID, GeofenceID: a.GeofenceID, Error: err.Error()})
			continue
		}
		if !inserted {
			continue
		}

		res.Missed++
		metrics.ArrivalsMissed.Add(1)
		s.publish(ctx, domain.Event{
			Type:      domain.EventSLAViolation,
			VehicleID: a.VehicleID,
			Severity:  domain.SeverityCritical,
			Payload: map[string]any{
				"geofence_id":    a.GeofenceID,
				"status":         string(domain.StatusMissed),
				"scheduled_time": log.ScheduledTime,
			},
		})
	}

	logger.Info("missed_sweep", "MISSED sweep finished",
		"day", res.Day, "checked", res.Checked, "missed", res.Missed, "errors", len(res.Errors))
	return res, nil
}

func (s *Service) CreateGeofence(ctx context.Context, g domain.Geofence) (domain.Geofence, error) {
	if err := g.Validate(); err != nil {
		return domain.Geofence{}, err
	}
	if err := s.repo.CreateGeofence(ctx, &g); err != nil {
		return domain.Geofence{}, err
	}
	return g, nil
}

func (s *Service) CreateAssignment(ctx context.Context, a domain.Assignment) (domain.Assignment, error) {
	if err := a.Validate(); err != nil {
		return domain.Assignment{}, err
	}
	if _, err := sla.ParseTimeOfDay(a.ExpectedEntryTime); err != nil {
		return domain.Assignment{}, &domain.ValidationError{Field: "expected_entry_time", Message: "must be HH:MM or HH:MM:SS"}
	}
	if a.WindowEnd != "" {
		if _, err := sla.ParseTimeOfDay(a.WindowEnd); err != nil {
			return domain.Assignment{}, &domain.ValidationError{Field: "window_end", Message: "must be HH:MM or HH:MM:SS"}
		}
	}
	if _, err := s.repo.GetGeofence(ctx, a.GeofenceID); err != nil {
		return domain.Assignment{}, err
	}
	if err := s.repo.CreateAssignment(ctx, &a); err != nil {
		return domain.Assignment{}, err
	}
	return a, nil
}

func (s *Service) ListGeofences(ctx context.Context) ([]domain.Geofence, error) {
	return s.repo.ListGeofences(ctx)
}

func (s *Service) GetGeofence(ctx context.Context, id string) (domain.Geofence, error) {
	return s.repo.GetGeofence(ctx, id)
}

// UpdateGeofence applies the non-nil fields of u and stores the result if it
// still validates.
func (s *Service) UpdateGeofence(ctx context.Context, id string, u domain.GeofenceUpdate) (domain.Geofence, error) {
	g, err := s.repo.GetGeofence(ctx, id)
	if err != nil {
		return domain.Geofence{}, err
	}
	g = u.Apply(g)
	if err := g.Validate(); err != nil {
		return domain.Geofence{}, err
	}
	if err := s.repo.UpdateGeofence(ctx, &g); err != nil {
		return domain.Geofence{}, err
	}
	return g, nil
}

// DeactivateGeofence stops tracking the geofence. History stays in place.
func (s *Service) DeactivateGeofence(ctx context.Context, id string) error {
	if err := s.repo.DeactivateGeofence(ctx, id); err != nil {
		return err
	}
	logger.Info("geofence_deactivated", "Geofence deactivated", "geofence_id", id)
	return nil
}

func (s *Service) ListPenalties(ctx context.Context, vehicleID string, limit int) ([]domain.Penalty, error) {
	return s.repo.ListPenalties(ctx, vehicleID, limit)
}

func (s *Service) ListArrivals(ctx context.Context, f domain.ArrivalFilter) ([]domain.ArrivalLog, error) {
	return s.repo.ListArrivals(ctx, f)
}

type ComplianceReport struct {
	From           string                  `json:"from"`
	To             string                  `json:"to"`
	Counts         domain.ComplianceCounts `json:"counts"`
	ComplianceRate float64                 `json:"compliance_rate"`
	PenaltyTotal   int                     `json:"penalty_total"`
}

// Compliance summarises classified arrivals with arrival day in [from, to].
func (s *Service) Compliance(ctx context.Context, from, to time.Time) (ComplianceReport, error) {
	counts, lateHours, err := s.repo.ComplianceCounts(ctx, from, to)
	if err != nil {
		return ComplianceReport{}, err
	}
	return ComplianceReport{
		From:           from.Format(time.DateOnly),
		To:             to.Format(time.DateOnly),
		Counts:         counts,
		ComplianceRate: sla.ComplianceRate(counts),
		PenaltyTotal:   lateHours * sla.PenaltyPerHour,
	}, nil
}
