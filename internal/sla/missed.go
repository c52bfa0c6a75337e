package sla

import (
	"time"

	"fleet-monitor/compliance/internal/domain"
)

// WindowEnd is the instant after which a vehicle that never entered the
// geofence on day counts as MISSED. An explicit window end on the assignment
// wins; otherwise the window closes missedAfter past expected time plus grace.
func WindowEnd(a domain.Assignment, day time.Time, loc *time.Location, missedAfter time.Duration) (scheduled, end time.Time, err error) {
	expected, err := ParseTimeOfDay(a.ExpectedEntryTime)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	scheduled = expected.On(day, loc)

	if a.WindowEnd != "" {
		w, err := ParseTimeOfDay(a.WindowEnd)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		return scheduled, w.On(day, loc), nil
	}

	grace := time.Duration(a.GraceMinutes) * time.Minute
	return scheduled, scheduled.Add(grace + missedAfter), nil
}

// MissedLog builds the MISSED row for an assignment whose window has closed.
// ok is false while the window is still open.
func MissedLog(a domain.Assignment, day, now time.Time, loc *time.Location, missedAfter time.Duration) (log domain.ArrivalLog, ok bool, err error) {
	scheduled, end, err := WindowEnd(a, day, loc, missedAfter)
	if err != nil {
		return domain.ArrivalLog{}, false, err
	}
	if !now.After(end) {
		return domain.ArrivalLog{}, false, nil
	}

	status := domain.StatusMissed
	return domain.ArrivalLog{
		VehicleID:     a.VehicleID,
		GeofenceID:    a.GeofenceID,
		ArrivalDay:    domain.Day(day, loc),
		ScheduledTime: &scheduled,
		Status:        &status,
	}, true, nil
}
