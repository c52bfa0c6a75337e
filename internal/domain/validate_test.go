package domain

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f64(v float64) *float64 { return &v }

func fieldOf(t *testing.T, err error) string {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
	return verr.Field
}

func TestValidateCoordinates(t *testing.T) {
	assert.NoError(t, ValidateCoordinates(90, -180))
	assert.NoError(t, ValidateCoordinates(-90, 180))
	assert.Equal(t, "latitude", fieldOf(t, ValidateCoordinates(90.0001, 0)))
	assert.Equal(t, "longitude", fieldOf(t, ValidateCoordinates(0, -180.5)))
	assert.Equal(t, "latitude", fieldOf(t, ValidateCoordinates(math.NaN(), 0)))
}

func TestPositionInputValidate(t *testing.T) {
	ok := PositionInput{VehicleID: "v1", Latitude: f64(26.9), Longitude: f64(75.8), Speed: f64(40)}
	require.NoError(t, ok.Validate())

	cases := []struct {
		name  string
		edit  func(*PositionInput)
		field string
	}{
		{"missing vehicle", func(in *PositionInput) { in.VehicleID = "" }, "vehicle_id"},
		{"missing latitude", func(in *PositionInput) { in.Latitude = nil }, "latitude/longitude"},
		{"longitude out of range", func(in *PositionInput) { in.Longitude = f64(200) }, "longitude"},
		{"negative speed", func(in *PositionInput) { in.Speed = f64(-1) }, "speed"},
		{"speed above limit", func(in *PositionInput) { in.Speed = f64(MaxSpeedKmh + 1) }, "speed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := ok
			tc.edit(&in)
			assert.Equal(t, tc.field, fieldOf(t, in.Validate()))
		})
	}
}

func TestPositionInputSampleDefaults(t *testing.T) {
	now := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
	in := PositionInput{VehicleID: "v1", Latitude: f64(1), Longitude: f64(2)}

	s := in.Sample("fleet_a", now)
	assert.Equal(t, Point{Lat: 1, Lng: 2}, s.Point)
	assert.Equal(t, "fleet_a", s.FleetID)
	assert.True(t, s.Ignition)
	assert.Zero(t, s.SpeedKmh)
	assert.Equal(t, now, s.Timestamp)
	assert.Equal(t, now, s.ReceivedAt)

	recorded := now.Add(-time.Minute)
	off := false
	in.RecordedAt = &recorded
	in.Ignition = &off
	s = in.Sample("fleet_a", now)
	assert.Equal(t, recorded, s.Timestamp)
	assert.False(t, s.Ignition)
}

func TestGeofenceValidate(t *testing.T) {
	g := Geofence{Name: "Depot", Center: Point{Lat: 12.97, Lng: 77.59}, RadiusMeters: 150}
	require.NoError(t, g.Validate())

	g.RadiusMeters = 0
	assert.Equal(t, "radius_meters", fieldOf(t, g.Validate()))
	g.RadiusMeters = math.NaN()
	assert.Equal(t, "radius_meters", fieldOf(t, g.Validate()))

	g = Geofence{Center: Point{Lat: 1, Lng: 1}, RadiusMeters: 10}
	assert.Equal(t, "location_name", fieldOf(t, g.Validate()))
}

func TestAssignmentValidate(t *testing.T) {
	a := Assignment{GeofenceID: "g1", VehicleID: "v1", ExpectedEntryTime: "08:30"}
	require.NoError(t, a.Validate())

	a.GraceMinutes = -5
	assert.Equal(t, "grace_minutes", fieldOf(t, a.Validate()))

	a = Assignment{GeofenceID: "g1", VehicleID: "v1"}
	assert.Equal(t, "expected_entry_time", fieldOf(t, a.Validate()))
}

func TestFuelEntryInputParse(t *testing.T) {
	in := FuelEntryInput{VehicleID: "v1", FuelDate: "2024-03-11", FuelQuantity: f64(30), OdometerReading: f64(12000)}
	e, err := in.Parse()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), e.FuelDate)
	assert.Equal(t, 30.0, e.FuelQuantity)

	in.FuelDate = "2024-03-11T10:15:00Z"
	e, err = in.Parse()
	require.NoError(t, err)
	assert.Equal(t, 10, e.FuelDate.Hour())

	// zero litres is stored and reported as insufficient data later
	in.FuelQuantity = f64(0)
	_, err = in.Parse()
	assert.NoError(t, err)

	in.FuelQuantity = f64(-1)
	_, err = in.Parse()
	assert.Equal(t, "fuel_quantity", fieldOf(t, err))

	in = FuelEntryInput{VehicleID: "v1", FuelDate: "11/03/2024", FuelQuantity: f64(10)}
	_, err = in.Parse()
	assert.Equal(t, "fuel_date", fieldOf(t, err))

	in = FuelEntryInput{VehicleID: "v1", FuelDate: "2024-03-11", FuelQuantity: f64(10), OdometerReading: f64(-3)}
	_, err = in.Parse()
	assert.Equal(t, "odometer_reading", fieldOf(t, err))
}

func TestParseDayAndDay(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	now := time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC) // 01:30 on the 11th in IST

	d, err := ParseDay("", now, ist)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, ist), d)

	d, err = ParseDay("2024-02-29", now, ist)
	require.NoError(t, err)
	assert.Equal(t, 29, d.Day())
	assert.Equal(t, ist, d.Location())

	_, err = ParseDay("2024-13-01", now, ist)
	assert.Equal(t, "date", fieldOf(t, err))
}
