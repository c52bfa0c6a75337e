package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
)

// ValidationError rejects an operation before anything is written.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

const MaxSpeedKmh = 180.0

func ValidateCoordinates(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || lat < -90 || lat > 90 {
		return invalid("latitude", "must be within [-90, 90]")
	}
	if math.IsNaN(lng) || math.IsInf(lng, 0) || lng < -180 || lng > 180 {
		return invalid("longitude", "must be within [-180, 180]")
	}
	return nil
}

func (in PositionInput) Validate() error {
	if in.VehicleID == "" {
		return invalid("vehicle_id", "is required")
	}
	if in.Latitude == nil || in.Longitude == nil {
		return invalid("latitude/longitude", "are required")
	}
	if err := ValidateCoordinates(*in.Latitude, *in.Longitude); err != nil {
		return err
	}
	if in.Speed != nil && (*in.Speed < 0 || *in.Speed > MaxSpeedKmh || math.IsNaN(*in.Speed)) {
		return invalid("speed", "must be within [0, 180]")
	}
	return nil
}

func (g Geofence) Validate() error {
	if g.Name == "" {
		return invalid("location_name", "is required")
	}
	if err := ValidateCoordinates(g.Center.Lat, g.Center.Lng); err != nil {
		return err
	}
	if !(g.RadiusMeters > 0) {
		return invalid("radius_meters", "must be greater than 0")
	}
	return nil
}

func (a Assignment) Validate() error {
	if a.GeofenceID == "" {
		return invalid("geofence_id", "is required")
	}
	if a.VehicleID == "" {
		return invalid("vehicle_id", "is required")
	}
	if a.ExpectedEntryTime == "" {
		return invalid("expected_entry_time", "is required")
	}
	if a.GraceMinutes < 0 {
		return invalid("grace_minutes", "must not be negative")
	}
	return nil
}

// Parse validates the fuel entry body and returns the entry to store.
func (in FuelEntryInput) Parse() (FuelEntry, error) {
	if in.VehicleID == "" {
		return FuelEntry{}, invalid("vehicle_id", "is required")
	}
	if in.FuelQuantity == nil {
		return FuelEntry{}, invalid("fuel_quantity", "is required")
	}
	if *in.FuelQuantity < 0 || math.IsNaN(*in.FuelQuantity) {
		return FuelEntry{}, invalid("fuel_quantity", "must not be negative")
	}
	if in.FuelDate == "" {
		return FuelEntry{}, invalid("fuel_date", "is required")
	}
	date, err := parseDate(in.FuelDate)
	if err != nil {
		return FuelEntry{}, invalid("fuel_date", "must be YYYY-MM-DD or RFC3339")
	}
	if in.OdometerReading != nil && *in.OdometerReading < 0 {
		return FuelEntry{}, invalid("odometer_reading", "must not be negative")
	}
	return FuelEntry{
		VehicleID:       in.VehicleID,
		FuelDate:        date,
		FuelQuantity:    *in.FuelQuantity,
		OdometerReading: in.OdometerReading,
		FuelStation:     in.FuelStation,
		EnteredBy:       in.EnteredBy,
	}, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// ParseDay parses an optional YYYY-MM-DD, falling back to the day of now.
func ParseDay(s string, now time.Time, loc *time.Location) (time.Time, error) {
	if s == "" {
		return Day(now, loc), nil
	}
	t, err := time.ParseInLocation(time.DateOnly, s, loc)
	if err != nil {
		return time.Time{}, invalid("date", "must be YYYY-MM-DD")
	}
	return t, nil
}
