package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"fleet-monitor/compliance/internal/domain"
	"fleet-monitor/compliance/internal/service"
)

const maxBatchSamples = 1000

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &domain.ValidationError{Field: "body", Message: "invalid JSON"}
	}
	return nil
}

func queryLimit(r *http.Request) int {
	n, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return n
}

// fleetInput fills the vehicle id from X-Vehicle-ID when the device leaves
// it out of the body.
func fleetInput(r *http.Request, in domain.PositionInput) domain.PositionInput {
	if in.VehicleID == "" {
		if p, ok := PrincipalFrom(r.Context()); ok {
			in.VehicleID = p.VehicleID
		}
	}
	return in
}

func fleetID(r *http.Request) string {
	p, _ := PrincipalFrom(r.Context())
	return p.FleetID
}

func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	var in domain.PositionInput
	if err := decode(r, &in); err != nil {
		respondServiceError(w, r, err)
		return
	}

	res, err := s.ingest.Accept(r.Context(), fleetInput(r, in), fleetID(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if res.Ignored {
		respondJSON(w, http.StatusOK, res)
		return
	}
	respondJSON(w, http.StatusAccepted, res)
}

func (s *Server) handleTelemetryBatch(w http.ResponseWriter, r *http.Request) {
	var inputs []domain.PositionInput
	if err := decode(r, &inputs); err != nil {
		respondServiceError(w, r, err)
		return
	}
	if len(inputs) > maxBatchSamples {
		respondError(w, http.StatusBadRequest, "batch exceeds 1000 samples")
		return
	}

	for i := range inputs {
		inputs[i] = fleetInput(r, inputs[i])
	}
	respondJSON(w, http.StatusAccepted, s.ingest.AcceptBatch(r.Context(), inputs, fleetID(r)))
}

type checkArrivalRequest struct {
	VehicleID  string     `json:"vehicle_id"`
	Latitude   *float64   `json:"latitude"`
	Longitude  *float64   `json:"longitude"`
	RecordedAt *time.Time `json:"recorded_at"`
}

func (s *Server) handleCheckArrival(w http.ResponseWriter, r *http.Request) {
	var req checkArrivalRequest
	if err := decode(r, &req); err != nil {
		respondServiceError(w, r, err)
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		respondError(w, http.StatusBadRequest, "latitude/longitude: are required")
		return
	}
	at := s.nowFunc()
	if req.RecordedAt != nil && !req.RecordedAt.IsZero() {
		at = *req.RecordedAt
	}

	res, err := s.engine.CheckArrival(r.Context(), req.VehicleID, domain.Point{Lat: *req.Latitude, Lng: *req.Longitude}, at)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	day, err := domain.ParseDay(r.URL.Query().Get("date"), s.nowFunc(), s.engine.Location())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	res, err := s.engine.SweepMissed(r.Context(), day)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// parseRange reads from/to as dates. to defaults to today and from to six
// days before to.
func (s *Server) parseRange(r *http.Request) (from, to time.Time, err error) {
	loc := s.engine.Location()
	to, err = domain.ParseDay(r.URL.Query().Get("to"), s.nowFunc(), loc)
	if err != nil {
		return
	}
	if v := r.URL.Query().Get("from"); v != "" {
		from, err = domain.ParseDay(v, s.nowFunc(), loc)
		if err != nil {
			return
		}
	} else {
		from = to.AddDate(0, 0, -6)
	}
	if from.After(to) {
		err = &domain.ValidationError{Field: "from", Message: "must not be after to"}
	}
	return
}

func (s *Server) handleCompliance(w http.ResponseWriter, r *http.Request) {
	from, to, err := s.parseRange(r)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	rep, err := s.engine.Compliance(r.Context(), from, to)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rep)
}

func (s *Server) handleListArrivals(w http.ResponseWriter, r *http.Request) {
	f := domain.ArrivalFilter{
		VehicleID: r.URL.Query().Get("vehicle_id"),
		Limit:     queryLimit(r),
	}
	loc := s.engine.Location()
	if v := r.URL.Query().Get("from"); v != "" {
		from, err := domain.ParseDay(v, s.nowFunc(), loc)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}
		f.From = &from
	}
	if v := r.URL.Query().Get("to"); v != "" {
		to, err := domain.ParseDay(v, s.nowFunc(), loc)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}
		f.To = &to
	}

	logs, err := s.engine.ListArrivals(r.Context(), f)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, logs)
}

func (s *Server) handleCreateGeofence(w http.ResponseWriter, r *http.Request) {
	var g domain.Geofence
	if err := decode(r, &g); err != nil {
		respondServiceError(w, r, err)
		return
	}
	if g.CompanyID == "" {
		g.CompanyID = fleetID(r)
	}
	created, err := s.engine.CreateGeofence(r.Context(), g)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListGeofences(w http.ResponseWriter, r *http.Request) {
	out, err := s.engine.ListGeofences(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetGeofence(w http.ResponseWriter, r *http.Request) {
	g, err := s.engine.GetGeofence(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, g)
}

func (s *Server) handleUpdateGeofence(w http.ResponseWriter, r *http.Request) {
	var u domain.GeofenceUpdate
	if err := decode(r, &u); err != nil {
		respondServiceError(w, r, err)
		return
	}
	g, err := s.engine.UpdateGeofence(r.Context(), mux.Vars(r)["id"], u)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, g)
}

// handleDeleteGeofence only deactivates; arrival history keeps its geofence.
func (s *Server) handleDeleteGeofence(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.engine.DeactivateGeofence(r.Context(), id); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"geofence_id": id, "is_active": false})
}

func (s *Server) handleCreateAssignment(w http.ResponseWriter, r *http.Request) {
	a := domain.Assignment{IsActive: true}
	if err := decode(r, &a); err != nil {
		respondServiceError(w, r, err)
		return
	}
	a.GeofenceID = mux.Vars(r)["id"]

	created, err := s.engine.CreateAssignment(r.Context(), a)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleFuelEntry(w http.ResponseWriter, r *http.Request) {
	var in domain.FuelEntryInput
	if err := decode(r, &in); err != nil {
		respondServiceError(w, r, err)
		return
	}
	res, err := s.engine.IngestFuelEntry(r.Context(), in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, res)
}

func (s *Server) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	out, err := s.engine.ListFuelAnalyses(r.Context(), r.URL.Query().Get("vehicle_id"), queryLimit(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleListPenalties(w http.ResponseWriter, r *http.Request) {
	out, err := s.engine.ListPenalties(r.Context(), r.URL.Query().Get("vehicle_id"), queryLimit(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

type riskBatchRequest struct {
	VehicleID *string `json:"vehicle_id"`
}

func (s *Server) handleRiskBatch(w http.ResponseWriter, r *http.Request) {
	var req riskBatchRequest
	// An empty body runs the whole fleet. Chunked requests report an
	// unknown length, so emptiness is only known once the decoder hits EOF.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondServiceError(w, r, &domain.ValidationError{Field: "body", Message: "invalid JSON"})
		return
	}
	if v := r.URL.Query().Get("vehicle_id"); v != "" {
		req.VehicleID = &v
	}

	res, err := s.engine.RunRiskBatch(r.Context(), req.VehicleID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

type eventRiskRequest struct {
	VehicleID string  `json:"vehicle_id"`
	RouteID   *string `json:"route_id"`
	Date      string  `json:"date"`
}

func (s *Server) handleEventRisk(w http.ResponseWriter, r *http.Request) {
	var req eventRiskRequest
	if err := decode(r, &req); err != nil {
		respondServiceError(w, r, err)
		return
	}
	day, err := domain.ParseDay(req.Date, s.nowFunc(), s.engine.Location())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	ra, err := s.engine.AssessEventRisk(r.Context(), service.EventRiskInput{
		VehicleID: req.VehicleID,
		RouteID:   req.RouteID,
		Date:      day,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ra)
}

func (s *Server) handleListRisk(w http.ResponseWriter, r *http.Request) {
	out, err := s.engine.ListRiskAssessments(r.Context(), r.URL.Query().Get("vehicle_id"), queryLimit(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	o, err := s.engine.Overview(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}
