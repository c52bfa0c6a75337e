package service

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"fleet-monitor/compliance/internal/domain"
	"fleet-monitor/compliance/internal/idle"
)

type memRepo struct {
	mu sync.Mutex

	geofences   map[string]domain.Geofence
	assignments []domain.Assignment
	arrivals    []domain.ArrivalLog
	samples     []domain.PositionSample
	fuel        []domain.FuelEntry
	analyses    []domain.FuelAnalysis
	risks       []domain.RiskAssessment
	penalties   []domain.Penalty
	mileage     map[string]float64
	vehicles    []string

	idleErr     map[string]error
	analysisErr error
	failures    map[string]int
	seq         int
}

func newMemRepo() *memRepo {
	return &memRepo{
		geofences: map[string]domain.Geofence{},
		mileage:   map[string]float64{},
		idleErr:   map[string]error{},
		failures:  map[string]int{},
	}
}

// failNext makes the next n calls of op return errStoreDown.
func (m *memRepo) failNext(op string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op] = n
}

// fail consumes one pending failure of op. Callers hold m.mu.
func (m *memRepo) fail(op string) error {
	if m.failures[op] > 0 {
		m.failures[op]--
		return errStoreDown
	}
	return nil
}

func (m *memRepo) nextID(prefix string) string {
	m.seq++
	return prefix + "-" + strconv.Itoa(m.seq)
}

func (m *memRepo) ActiveGeofencesForVehicle(_ context.Context, _ string) ([]domain.Geofence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Geofence
	for _, g := range m.geofences {
		if g.IsActive {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memRepo) GetGeofence(_ context.Context, id string) (domain.Geofence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.geofences[id]
	if !ok {
		return domain.Geofence{}, domain.ErrNotFound
	}
	return g, nil
}

func (m *memRepo) CreateGeofence(_ context.Context, g *domain.Geofence) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g.ID == "" {
		g.ID = m.nextID("gf")
	}
	m.geofences[g.ID] = *g
	return nil
}

func (m *memRepo) ListGeofences(_ context.Context) ([]domain.Geofence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Geofence{}
	for _, g := range m.geofences {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memRepo) UpdateGeofence(_ context.Context, g *domain.Geofence) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.geofences[g.ID]; !ok {
		return domain.ErrNotFound
	}
	m.geofences[g.ID] = *g
	return nil
}

func (m *memRepo) DeactivateGeofence(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.geofences[id]
	if !ok {
		return domain.ErrNotFound
	}
	g.IsActive = false
	m.geofences[id] = g
	return nil
}

func (m *memRepo) FindAssignment(_ context.Context, vehicleID, geofenceID string) (domain.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("FindAssignment"); err != nil {
		return domain.Assignment{}, err
	}
	for _, a := range m.assignments {
		if a.IsActive && a.VehicleID == vehicleID && a.GeofenceID == geofenceID {
			return a, nil
		}
	}
	return domain.Assignment{}, domain.ErrNotFound
}

func (m *memRepo) AssignmentsForVehicle(_ context.Context, vehicleID string) ([]domain.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Assignment
	for _, a := range m.assignments {
		if a.IsActive && a.VehicleID == vehicleID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memRepo) ActiveAssignments(_ context.Context) ([]domain.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Assignment
	for _, a := range m.assignments {
		if a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memRepo) CreateAssignment(_ context.Context, a *domain.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignments = append(m.assignments, *a)
	return nil
}

func (m *memRepo) ArrivalExists(_ context.Context, vehicleID, geofenceID string, day time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ArrivalExists"); err != nil {
		return false, err
	}
	return m.hasArrival(vehicleID, geofenceID, day), nil
}

func (m *memRepo) hasArrival(vehicleID, geofenceID string, day time.Time) bool {
	for _, l := range m.arrivals {
		if l.VehicleID == vehicleID && l.GeofenceID == geofenceID && l.ArrivalDay.Equal(day) {
			return true
		}
	}
	return false
}

func (m *memRepo) InsertArrival(_ context.Context, l *domain.ArrivalLog) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("InsertArrival"); err != nil {
		return false, err
	}
	return m.insertArrival(l), nil
}

func (m *memRepo) insertArrival(l *domain.ArrivalLog) bool {
	if m.hasArrival(l.VehicleID, l.GeofenceID, l.ArrivalDay) {
		return false
	}
	l.ID = m.nextID("log")
	m.arrivals = append(m.arrivals, *l)
	return true
}

func (m *memRepo) InsertArrivalWithPenalty(_ context.Context, l *domain.ArrivalLog, p *domain.Penalty) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("InsertArrival"); err != nil {
		return false, err
	}
	if !m.insertArrival(l) {
		return false, nil
	}
	p.ID = m.nextID("pen")
	p.GeofenceLogID = l.ID
	m.penalties = append(m.penalties, *p)
	return true, nil
}

func (m *memRepo) ListPenalties(_ context.Context, vehicleID string, _ int) ([]domain.Penalty, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Penalty{}
	for _, p := range m.penalties {
		if vehicleID == "" || p.VehicleID == vehicleID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memRepo) LatestArrival(_ context.Context, vehicleID string, onOrBefore time.Time) (*domain.ArrivalLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *domain.ArrivalLog
	for i := range m.arrivals {
		l := m.arrivals[i]
		if l.VehicleID != vehicleID || l.Status == nil || l.ArrivalDay.After(onOrBefore) {
			continue
		}
		if latest == nil || l.ArrivalDay.After(latest.ArrivalDay) {
			latest = &l
		}
	}
	return latest, nil
}

func (m *memRepo) CountSLABreaches(_ context.Context, vehicleID string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, l := range m.arrivals {
		if l.VehicleID == vehicleID && isBreach(l.Status) && !l.ArrivalDay.Before(domain.Day(since, time.UTC)) {
			n++
		}
	}
	return n, nil
}

func (m *memRepo) ListArrivals(_ context.Context, f domain.ArrivalFilter) ([]domain.ArrivalLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.ArrivalLog{}
	for _, l := range m.arrivals {
		if f.VehicleID == "" || l.VehicleID == f.VehicleID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memRepo) ComplianceCounts(_ context.Context, from, to time.Time) (domain.ComplianceCounts, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var c domain.ComplianceCounts
	lateHours := 0
	for _, l := range m.arrivals {
		if l.ArrivalDay.Before(from) || l.ArrivalDay.After(to) {
			continue
		}
		if l.Status == nil {
			c.Bare++
			continue
		}
		switch *l.Status {
		case domain.StatusOnTime:
			c.OnTime++
		case domain.StatusLate:
			c.Late++
			lateHours += *l.DelayMinutes / 60
		case domain.StatusMissed:
			c.Missed++
		}
	}
	return c, lateHours, nil
}

func (m *memRepo) CountIdleSamples(_ context.Context, vehicleID string, from, to time.Time, speedThreshold float64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.idleErr[vehicleID]; err != nil {
		return 0, err
	}
	var own []domain.PositionSample
	for _, s := range m.samples {
		if s.VehicleID == vehicleID {
			own = append(own, s)
		}
	}
	return idle.CountIdleSamples(own, from, to, speedThreshold), nil
}

func (m *memRepo) ListVehicleIDs(_ context.Context) ([]string, error) {
	return m.vehicles, nil
}

func (m *memRepo) InsertFuelEntry(_ context.Context, e *domain.FuelEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = m.nextID("fuel")
	m.fuel = append(m.fuel, *e)
	return nil
}

func (m *memRepo) PreviousFuelEntry(_ context.Context, vehicleID string, before time.Time) (*domain.FuelEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var prev *domain.FuelEntry
	for i := range m.fuel {
		e := m.fuel[i]
		if e.VehicleID != vehicleID || !e.FuelDate.Before(before) {
			continue
		}
		if prev == nil || e.FuelDate.After(prev.FuelDate) {
			prev = &e
		}
	}
	return prev, nil
}

func (m *memRepo) VehicleExpectedMileage(_ context.Context, vehicleID string) (*float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.mileage[vehicleID]; ok {
		return &v, nil
	}
	return nil, nil
}

func (m *memRepo) InsertFuelAnalysis(_ context.Context, fa *domain.FuelAnalysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.analysisErr != nil {
		return m.analysisErr
	}
	fa.ID = m.nextID("fa")
	m.analyses = append(m.analyses, *fa)
	return nil
}

func (m *memRepo) LatestFuelAnalysis(_ context.Context, vehicleID string, before time.Time) (*domain.FuelAnalysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *domain.FuelAnalysis
	for i := range m.analyses {
		fa := m.analyses[i]
		if fa.VehicleID != vehicleID || !fa.AnalysisDate.Before(before) {
			continue
		}
		if latest == nil || fa.AnalysisDate.After(latest.AnalysisDate) {
			latest = &fa
		}
	}
	return latest, nil
}

func (m *memRepo) ListFuelAnalyses(_ context.Context, vehicleID string, _ int) ([]domain.FuelAnalysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.FuelAnalysis{}
	for _, fa := range m.analyses {
		if vehicleID == "" || fa.VehicleID == vehicleID {
			out = append(out, fa)
		}
	}
	return out, nil
}

func (m *memRepo) InsertRiskAssessment(_ context.Context, r *domain.RiskAssessment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = m.nextID("risk")
	m.risks = append(m.risks, *r)
	return nil
}

func (m *memRepo) ListRiskAssessments(_ context.Context, vehicleID string, _ int) ([]domain.RiskAssessment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.RiskAssessment{}
	for _, r := range m.risks {
		if vehicleID == "" || r.VehicleID == vehicleID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRepo) Overview(_ context.Context) (domain.Overview, error) {
	return domain.Overview{Vehicles: len(m.vehicles)}, nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (c *capturePublisher) Publish(_ context.Context, e domain.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, e)
	return nil
}

func (c *capturePublisher) Close() error { return nil }

func (c *capturePublisher) ofType(t domain.EventType) []domain.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.Event
	for _, e := range c.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

var errStoreDown = errors.New("store down")
