package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-monitor/compliance/internal/domain"
)

// newTestTimescale connects to the database named by TEST_DATABASE_URL,
// which must already carry the scripts/init_db schema.
func newTestTimescale(t *testing.T) *TimescaleStore {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	require.NoError(t, pool.Ping(ctx))
	t.Cleanup(pool.Close)
	return NewTimescaleStoreFromPool(pool)
}

// seedGeofence creates a geofence with a fresh id and removes everything
// written against it when the test ends.
func seedGeofence(t *testing.T, s *TimescaleStore) domain.Geofence {
	t.Helper()
	ctx := context.Background()
	g := domain.Geofence{
		ID:           "it-" + uuid.NewString(),
		CompanyID:    "fleet_it",
		Name:         "Jaipur Depot",
		Center:       domain.Point{Lat: 26.9124, Lng: 75.7873},
		RadiusMeters: 250,
		IsActive:     true,
	}
	require.NoError(t, s.CreateGeofence(ctx, &g))

	t.Cleanup(func() {
		for _, q := range []string{
			`DELETE FROM penalties WHERE geofence_id = $1`,
			`DELETE FROM geofence_logs WHERE geofence_id = $1`,
			`DELETE FROM geofences WHERE geofence_id = $1`,
		} {
			_, err := s.pool.Exec(ctx, q, g.ID)
			assert.NoError(t, err)
		}
	})
	return g
}

func TestTimescaleGeofenceRoundTrip(t *testing.T) {
	s := newTestTimescale(t)
	ctx := context.Background()
	g := seedGeofence(t, s)

	got, err := s.GetGeofence(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jaipur Depot", got.Name)
	assert.InDelta(t, 26.9124, got.Center.Lat, 1e-9)
	assert.InDelta(t, 75.7873, got.Center.Lng, 1e-9)
	assert.True(t, got.IsActive)

	g.RadiusMeters = 400
	g.Center = domain.Point{Lat: -33.8688, Lng: 151.2093}
	require.NoError(t, s.UpdateGeofence(ctx, &g))
	got, err = s.GetGeofence(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 400.0, got.RadiusMeters)
	assert.InDelta(t, -33.8688, got.Center.Lat, 1e-9)
	assert.InDelta(t, 151.2093, got.Center.Lng, 1e-9)

	require.NoError(t, s.DeactivateGeofence(ctx, g.ID))
	got, err = s.GetGeofence(ctx, g.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	_, err = s.GetGeofence(ctx, "it-missing-"+uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, s.DeactivateGeofence(ctx, "it-missing-"+uuid.NewString()), domain.ErrNotFound)
}

func TestTimescaleInsertArrivalOncePerDay(t *testing.T) {
	s := newTestTimescale(t)
	ctx := context.Background()
	vid := "it-v-" + uuid.NewString()
	g := seedGeofence(t, s)

	day := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	arrived := day.Add(9*time.Hour + 4*time.Minute)
	onTime := domain.StatusOnTime
	delay := 4

	first := &domain.ArrivalLog{VehicleID: vid, GeofenceID: g.ID, ArrivalTime: &arrived, ArrivalDay: day, DelayMinutes: &delay, Status: &onTime}
	ok, err := s.InsertArrival(ctx, first)
	require.NoError(t, err)
	assert.True(t, ok)

	later := arrived.Add(3 * time.Hour)
	second := &domain.ArrivalLog{VehicleID: vid, GeofenceID: g.ID, ArrivalTime: &later, ArrivalDay: day}
	ok, err = s.InsertArrival(ctx, second)
	require.NoError(t, err)
	assert.False(t, ok)

	exists, err := s.ArrivalExists(ctx, vid, g.ID, day)
	require.NoError(t, err)
	assert.True(t, exists)

	logs, err := s.ListArrivals(ctx, domain.ArrivalFilter{VehicleID: vid})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, first.ID, logs[0].ID)
	require.NotNil(t, logs[0].Status)
	assert.Equal(t, domain.StatusOnTime, *logs[0].Status)
}

func TestTimescaleArrivalWithPenalty(t *testing.T) {
	s := newTestTimescale(t)
	ctx := context.Background()
	vid := "it-v-" + uuid.NewString()
	g := seedGeofence(t, s)

	day := time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC)
	arrived := day.Add(10*time.Hour + 15*time.Minute)
	late := domain.StatusLate
	delay := 75
	l := &domain.ArrivalLog{VehicleID: vid, GeofenceID: g.ID, ArrivalTime: &arrived, ArrivalDay: day, DelayMinutes: &delay, Status: &late}
	p := &domain.Penalty{VehicleID: vid, GeofenceID: g.ID, PenaltyDate: day, Amount: 100, Reason: "Late arrival by 75 minutes"}

	ok, err := s.InsertArrivalWithPenalty(ctx, l, p)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, l.ID, p.GeofenceLogID)

	// a repeat for the same day writes neither row
	dup := &domain.Penalty{VehicleID: vid, GeofenceID: g.ID, PenaltyDate: day, Amount: 100, Reason: "again"}
	ok, err = s.InsertArrivalWithPenalty(ctx, &domain.ArrivalLog{VehicleID: vid, GeofenceID: g.ID, ArrivalTime: &arrived, ArrivalDay: day, DelayMinutes: &delay, Status: &late}, dup)
	require.NoError(t, err)
	assert.False(t, ok)

	out, err := s.ListPenalties(ctx, vid, 10)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, p.ID, out[0].ID)
	assert.Equal(t, l.ID, out[0].GeofenceLogID)
	assert.Equal(t, 100, out[0].Amount)
	assert.Equal(t, domain.PenaltyPending, out[0].Status)
	assert.Equal(t, "2024-03-12", out[0].PenaltyDate.Format(time.DateOnly))
}
