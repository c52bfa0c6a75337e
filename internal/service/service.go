// Package service runs the compliance engine against its repositories:
// geofence arrivals and SLA classification, fuel mileage analysis and risk
// assessment.
package service

import (
	"context"
	"time"

	"fleet-monitor/compliance/internal/config"
	"fleet-monitor/compliance/internal/domain"
	"fleet-monitor/compliance/internal/events"
	"fleet-monitor/compliance/internal/geofence"
	"fleet-monitor/compliance/internal/idle"
	"fleet-monitor/compliance/internal/logger"
	"fleet-monitor/compliance/internal/mileage"
	"fleet-monitor/compliance/internal/risk"
)

type GeofenceRepository interface {
	ActiveGeofencesForVehicle(ctx context.Context, vehicleID string) ([]domain.Geofence, error)
	GetGeofence(ctx context.Context, id string) (domain.Geofence, error)
	CreateGeofence(ctx context.Context, g *domain.Geofence) error
	ListGeofences(ctx context.Context) ([]domain.Geofence, error)
	UpdateGeofence(ctx context.Context, g *domain.Geofence) error
	DeactivateGeofence(ctx context.Context, id string) error
}

type AssignmentRepository interface {
	FindAssignment(ctx context.Context, vehicleID, geofenceID string) (domain.Assignment, error)
	AssignmentsForVehicle(ctx context.Context, vehicleID string) ([]domain.Assignment, error)
	ActiveAssignments(ctx context.Context) ([]domain.Assignment, error)
	CreateAssignment(ctx context.Context, a *domain.Assignment) error
}

type ArrivalRepository interface {
	ArrivalExists(ctx context.Context, vehicleID, geofenceID string, day time.Time) (bool, error)
	InsertArrival(ctx context.Context, l *domain.ArrivalLog) (bool, error)
	InsertArrivalWithPenalty(ctx context.Context, l *domain.ArrivalLog, p *domain.Penalty) (bool, error)
	LatestArrival(ctx context.Context, vehicleID string, onOrBefore time.Time) (*domain.ArrivalLog, error)
	CountSLABreaches(ctx context.Context, vehicleID string, since time.Time) (int, error)
	ListArrivals(ctx context.Context, f domain.ArrivalFilter) ([]domain.ArrivalLog, error)
	ComplianceCounts(ctx context.Context, from, to time.Time) (domain.ComplianceCounts, int, error)
}

type PenaltyRepository interface {
	ListPenalties(ctx context.Context, vehicleID string, limit int) ([]domain.Penalty, error)
}

type TelemetryRepository interface {
	CountIdleSamples(ctx context.Context, vehicleID string, from, to time.Time, speedThreshold float64) (int, error)
	ListVehicleIDs(ctx context.Context) ([]string, error)
}

type FuelRepository interface {
	InsertFuelEntry(ctx context.Context, e *domain.FuelEntry) error
	PreviousFuelEntry(ctx context.Context, vehicleID string, before time.Time) (*domain.FuelEntry, error)
	VehicleExpectedMileage(ctx context.Context, vehicleID string) (*float64, error)
	InsertFuelAnalysis(ctx context.Context, fa *domain.FuelAnalysis) error
	LatestFuelAnalysis(ctx context.Context, vehicleID string, before time.Time) (*domain.FuelAnalysis, error)
	ListFuelAnalyses(ctx context.Context, vehicleID string, limit int) ([]domain.FuelAnalysis, error)
}

type RiskRepository interface {
	InsertRiskAssessment(ctx context.Context, r *domain.RiskAssessment) error
	ListRiskAssessments(ctx context.Context, vehicleID string, limit int) ([]domain.RiskAssessment, error)
	Overview(ctx context.Context) (domain.Overview, error)
}

// Repository is everything the engine reads and writes. The Timescale store
// implements it.
type Repository interface {
	GeofenceRepository
	AssignmentRepository
	ArrivalRepository
	PenaltyRepository
	TelemetryRepository
	FuelRepository
	RiskRepository
}

type Options struct {
	Location *time.Location

	IdleSpeedThreshold float64
	IdleEventThreshold int
	IdleBatchThreshold int
	IdleWindow         time.Duration

	SLALookback time.Duration
	MissedAfter time.Duration

	LowMileageRatio float64
	TheftPolicy     mileage.TheftPolicy
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Location:           cfg.Location(),
		IdleSpeedThreshold: cfg.IdleSpeedThreshold,
		IdleEventThreshold: cfg.IdleEventThreshold,
		IdleBatchThreshold: cfg.IdleBatchThreshold,
		IdleWindow:         cfg.IdleWindow,
		SLALookback:        time.Duration(cfg.SLALookbackDays) * 24 * time.Hour,
		MissedAfter:        cfg.MissedAfter(),
		LowMileageRatio:    cfg.LowMileageRatio,
		TheftPolicy:        mileage.PolicyByName(cfg.TheftPolicy, cfg.TheftTolerancePercent, cfg.TheftRatio),
	}
}

type Service struct {
	repo      Repository
	tracker   *geofence.Tracker
	analyzer  *mileage.Analyzer
	events    events.Publisher
	eventRisk risk.EventRiskPolicy
	batchRisk risk.BatchRiskPolicy
	opts      Options
	now       func() time.Time
}

func New(repo Repository, states geofence.StateStore, pub events.Publisher, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.TheftPolicy == nil {
		opts.TheftPolicy = mileage.TolerancePolicy{Percent: 15}
	}
	if pub == nil {
		pub = events.NopPublisher{}
	}
	if opts.IdleEventThreshold <= 0 {
		opts.IdleEventThreshold = idle.DefaultEventThreshold
	}
	if opts.IdleBatchThreshold <= 0 {
		opts.IdleBatchThreshold = idle.DefaultBatchThreshold
	}
	if opts.IdleWindow <= 0 {
		opts.IdleWindow = idle.DefaultWindow
	}
	if opts.SLALookback <= 0 {
		opts.SLALookback = 7 * 24 * time.Hour
	}
	if opts.LowMileageRatio <= 0 {
		opts.LowMileageRatio = 0.7
	}
	return &Service{
		repo:      repo,
		tracker:   geofence.NewTracker(states),
		analyzer:  mileage.NewAnalyzer(opts.TheftPolicy),
		events:    pub,
		batchRisk: risk.BatchRiskPolicy{LowMileageRatio: opts.LowMileageRatio},
		opts:      opts,
		now:       time.Now,
	}
}

func (s *Service) Location() *time.Location {
	return s.opts.Location
}

func (s *Service) publish(ctx context.Context, e domain.Event) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = s.now()
	}
	if err := s.events.Publish(ctx, e); err != nil {
		logger.Error("event_publish", "Failed to publish event", err,
			"type", string(e.Type), "vehicle_id", e.VehicleID)
	}
}
