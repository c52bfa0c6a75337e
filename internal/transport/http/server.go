// Package http exposes the compliance engine over a gorilla/mux router.
// Every response uses the {success, data, error} envelope.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"fleet-monitor/compliance/internal/domain"
	"fleet-monitor/compliance/internal/logger"
	"fleet-monitor/compliance/internal/metrics"
	"fleet-monitor/compliance/internal/pipeline"
	"fleet-monitor/compliance/internal/service"
)

// Engine is the part of the service the handlers call.
type Engine interface {
	CheckArrival(ctx context.Context, vehicleID string, point domain.Point, at time.Time) (service.ArrivalResult, error)
	SweepMissed(ctx context.Context, day time.Time) (service.SweepResult, error)
	Compliance(ctx context.Context, from, to time.Time) (service.ComplianceReport, error)
	ListArrivals(ctx context.Context, f domain.ArrivalFilter) ([]domain.ArrivalLog, error)
	CreateGeofence(ctx context.Context, g domain.Geofence) (domain.Geofence, error)
	ListGeofences(ctx context.Context) ([]domain.Geofence, error)
	GetGeofence(ctx context.Context, id string) (domain.Geofence, error)
	UpdateGeofence(ctx context.Context, id string, u domain.GeofenceUpdate) (domain.Geofence, error)
	DeactivateGeofence(ctx context.Context, id string) error
	ListPenalties(ctx context.Context, vehicleID string, limit int) ([]domain.Penalty, error)
	CreateAssignment(ctx context.Context, a domain.Assignment) (domain.Assignment, error)
	IngestFuelEntry(ctx context.Context, in domain.FuelEntryInput) (service.FuelResult, error)
	ListFuelAnalyses(ctx context.Context, vehicleID string, limit int) ([]domain.FuelAnalysis, error)
	RunRiskBatch(ctx context.Context, vehicleID *string) (service.BatchResult, error)
	AssessEventRisk(ctx context.Context, in service.EventRiskInput) (domain.RiskAssessment, error)
	ListRiskAssessments(ctx context.Context, vehicleID string, limit int) ([]domain.RiskAssessment, error)
	Overview(ctx context.Context) (domain.Overview, error)
	Location() *time.Location
}

type Ingester interface {
	Accept(ctx context.Context, in domain.PositionInput, fleetID string) (pipeline.Accepted, error)
	AcceptBatch(ctx context.Context, inputs []domain.PositionInput, fleetID string) pipeline.BatchAccepted
}

// HealthCheck reports an unhealthy dependency; nil means healthy.
type HealthCheck func(ctx context.Context) error

type Server struct {
	engine  Engine
	ingest  Ingester
	authMW  *AuthMiddleware
	live    http.Handler
	checks  map[string]HealthCheck
	router  *mux.Router
	nowFunc func() time.Time
}

type Option func(*Server)

// WithLive mounts the live position stream at /ws/live.
func WithLive(h http.Handler) Option {
	return func(s *Server) { s.live = h }
}

func WithHealthCheck(name string, check HealthCheck) Option {
	return func(s *Server) { s.checks[name] = check }
}

func NewServer(engine Engine, ingest Ingester, authMW *AuthMiddleware, opts ...Option) *Server {
	s := &Server{
		engine:  engine,
		ingest:  ingest,
		authMW:  authMW,
		checks:  map[string]HealthCheck{},
		router:  mux.NewRouter(),
		nowFunc: time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	s.router.Use(loggingMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", metrics.HandleMetrics).Methods(http.MethodGet)

	fleet := s.router.NewRoute().Subrouter()
	fleet.Use(s.authMW.Require(RoleFleet))
	fleet.HandleFunc("/api/fleet/location", s.handleLocation).Methods(http.MethodPost)
	fleet.HandleFunc("/api/telemetry/batch", s.handleTelemetryBatch).Methods(http.MethodPost)

	staff := s.router.NewRoute().Subrouter()
	staff.Use(s.authMW.Require(RoleSupervisor, RoleOwner))
	staff.HandleFunc("/api/sla/process", s.handleCheckArrival).Methods(http.MethodPost)
	staff.HandleFunc("/api/arrival-logs", s.handleListArrivals).Methods(http.MethodGet)
	staff.HandleFunc("/api/geofences", s.handleListGeofences).Methods(http.MethodGet)
	staff.HandleFunc("/api/geofences/{id}", s.handleGetGeofence).Methods(http.MethodGet)
	if s.live != nil {
		staff.Handle("/ws/live", s.live).Methods(http.MethodGet)
	}

	supervisor := s.router.NewRoute().Subrouter()
	supervisor.Use(s.authMW.Require(RoleSupervisor))
	supervisor.HandleFunc("/api/geofences", s.handleCreateGeofence).Methods(http.MethodPost)
	supervisor.HandleFunc("/api/geofences/{id}", s.handleUpdateGeofence).Methods(http.MethodPut)
	supervisor.HandleFunc("/api/geofences/{id}", s.handleDeleteGeofence).Methods(http.MethodDelete)
	supervisor.HandleFunc("/api/geofences/{id}/assignments", s.handleCreateAssignment).Methods(http.MethodPost)
	supervisor.HandleFunc("/api/fuel", s.handleFuelEntry).Methods(http.MethodPost)

	owner := s.router.NewRoute().Subrouter()
	owner.Use(s.authMW.Require(RoleOwner))
	owner.HandleFunc("/api/sla/sweep", s.handleSweep).Methods(http.MethodPost)
	owner.HandleFunc("/api/sla/compliance", s.handleCompliance).Methods(http.MethodGet)
	owner.HandleFunc("/api/analysis", s.handleListAnalyses).Methods(http.MethodGet)
	owner.HandleFunc("/api/correlation/run", s.handleRiskBatch).Methods(http.MethodPost)
	owner.HandleFunc("/api/correlation/event", s.handleEventRisk).Methods(http.MethodPost)
	owner.HandleFunc("/api/penalties", s.handleListPenalties).Methods(http.MethodGet)
	owner.HandleFunc("/api/risk", s.handleListRisk).Methods(http.MethodGet)
	owner.HandleFunc("/api/dashboard/overview", s.handleOverview).Methods(http.MethodGet)
}

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiResponse{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiResponse{Success: false, Error: message})
}

// respondServiceError maps engine errors onto status codes. Storage failures
// are logged and reported without detail.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		respondError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn("http_request", "Store timeout", "path", r.URL.Path)
		respondError(w, http.StatusGatewayTimeout, "storage timeout")
	default:
		logger.Error("http_request", "Request failed", err, "path", r.URL.Path)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "healthy"}
	code := http.StatusOK
	for name, check := range s.checks {
		if err := check(r.Context()); err != nil {
			status[name] = err.Error()
			status["status"] = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		status[name] = "ok"
	}
	if code != http.StatusOK {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(apiResponse{Success: false, Data: status, Error: "dependency unavailable"})
		return
	}
	respondJSON(w, code, status)
}
