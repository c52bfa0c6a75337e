package domain

import "time"

// Point is a WGS84 coordinate. Text encodings such as WKT stay inside the
// store adapter.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type PositionSample struct {
	ReceivedAt time.Time

	Timestamp time.Time
	VehicleID string
	FleetID   string

	Point    Point
	SpeedKmh float64
	Ignition bool
}

// PositionInput is the body accepted from a fleet device. Pointers mark the
// fields a device may leave out.
type PositionInput struct {
	VehicleID  string     `json:"vehicle_id"`
	Latitude   *float64   `json:"latitude"`
	Longitude  *float64   `json:"longitude"`
	Speed      *float64   `json:"speed"`
	Ignition   *bool      `json:"ignition"`
	RecordedAt *time.Time `json:"recorded_at"`
}

// Sample converts validated input into a sample. Missing speed means 0 and
// missing ignition means on, as devices only report while running.
func (in PositionInput) Sample(fleetID string, now time.Time) PositionSample {
	s := PositionSample{
		ReceivedAt: now,
		Timestamp:  now,
		VehicleID:  in.VehicleID,
		FleetID:    fleetID,
		Ignition:   true,
	}
	if in.Latitude != nil {
		s.Point.Lat = *in.Latitude
	}
	if in.Longitude != nil {
		s.Point.Lng = *in.Longitude
	}
	if in.Speed != nil {
		s.SpeedKmh = *in.Speed
	}
	if in.Ignition != nil {
		s.Ignition = *in.Ignition
	}
	if in.RecordedAt != nil && !in.RecordedAt.IsZero() {
		s.Timestamp = *in.RecordedAt
	}
	return s
}

type EventType string

const (
	EventSLAViolation EventType = "SLA_VIOLATION"
	EventRiskHigh     EventType = "RISK_HIGH"
)

type Severity string

const (
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Event is what the engine hands to the outbound broker.
type Event struct {
	Type       EventType      `json:"type"`
	VehicleID  string         `json:"vehicle_id"`
	Severity   Severity       `json:"severity,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}
