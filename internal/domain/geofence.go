package domain

import "time"

type Geofence struct {
	ID                  string  `json:"geofence_id"`
	CompanyID           string  `json:"company_id"`
	Name                string  `json:"location_name"`
	Center              Point   `json:"center"`
	RadiusMeters        float64 `json:"radius_meters"`
	IsActive            bool    `json:"is_active"`
	ExpectedTimeMinutes *int    `json:"expected_time_minutes,omitempty"`
}

// GeofenceUpdate carries the fields a supervisor may change. Nil fields keep
// their stored value.
type GeofenceUpdate struct {
	Name                *string  `json:"location_name"`
	Center              *Point   `json:"center"`
	RadiusMeters        *float64 `json:"radius_meters"`
	IsActive            *bool    `json:"is_active"`
	ExpectedTimeMinutes *int     `json:"expected_time_minutes"`
}

// Apply returns g with the update's non-nil fields.
func (u GeofenceUpdate) Apply(g Geofence) Geofence {
	if u.Name != nil {
		g.Name = *u.Name
	}
	if u.Center != nil {
		g.Center = *u.Center
	}
	if u.RadiusMeters != nil {
		g.RadiusMeters = *u.RadiusMeters
	}
	if u.IsActive != nil {
		g.IsActive = *u.IsActive
	}
	if u.ExpectedTimeMinutes != nil {
		g.ExpectedTimeMinutes = u.ExpectedTimeMinutes
	}
	return g
}

// Assignment is the schedule a vehicle is expected to meet at a geofence.
// WindowEnd optionally closes the arrival window for the MISSED sweep.
type Assignment struct {
	GeofenceID        string `json:"geofence_id"`
	VehicleID         string `json:"vehicle_id"`
	ExpectedEntryTime string `json:"expected_entry_time"`
	GraceMinutes      int    `json:"grace_minutes"`
	WindowEnd         string `json:"window_end,omitempty"`
	IsActive          bool   `json:"is_active"`
}

type ArrivalStatus string

const (
	StatusOnTime ArrivalStatus = "ON_TIME"
	StatusLate   ArrivalStatus = "LATE"
	StatusMissed ArrivalStatus = "MISSED"
)

// ArrivalLog is one row of geofence_logs. A nil Status is a bare arrival:
// the vehicle entered but no usable schedule existed.
type ArrivalLog struct {
	ID            string         `json:"geofence_log_id"`
	VehicleID     string         `json:"vehicle_id"`
	GeofenceID    string         `json:"geofence_id"`
	ArrivalTime   *time.Time     `json:"arrival_time,omitempty"`
	ArrivalDay    time.Time      `json:"arrival_day"`
	ScheduledTime *time.Time     `json:"scheduled_time,omitempty"`
	DelayMinutes  *int           `json:"delay_minutes,omitempty"`
	Status        *ArrivalStatus `json:"status,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// ArrivalOutcome names the terminal result of an arrival check. These are
// business results returned to callers, not errors.
type ArrivalOutcome string

const (
	OutcomeRecorded        ArrivalOutcome = "RECORDED"
	OutcomeNoActiveRoute   ArrivalOutcome = "NO_ACTIVE_ROUTE"
	OutcomeNoGeofence      ArrivalOutcome = "NO_GEOFENCE"
	OutcomeAlreadyRecorded ArrivalOutcome = "ALREADY_RECORDED"
	OutcomeOutsideGeofence ArrivalOutcome = "OUTSIDE_GEOFENCE"
	OutcomeNoSchedule      ArrivalOutcome = "NO_SCHEDULE"
)

// ComplianceCounts aggregates geofence_logs by status.
type ComplianceCounts struct {
	OnTime int `json:"on_time"`
	Late   int `json:"late"`
	Missed int `json:"missed"`
	Bare   int `json:"unscheduled"`
}

// Day truncates t to its calendar date in loc.
func Day(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// ArrivalFilter narrows arrival log listings. Empty fields match everything.
type ArrivalFilter struct {
	VehicleID string
	From, To  *time.Time
	Limit     int
}
