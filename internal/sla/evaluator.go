// Package sla classifies geofence arrivals against their schedule.
package sla

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"fleet-monitor/compliance/internal/domain"
)

var ErrInvalidTimeOfDay = errors.New("invalid time of day")

// Evaluation is the lateness verdict for one arrival. DelayMinutes is signed:
// a negative value is an early arrival.
type Evaluation struct {
	Status        domain.ArrivalStatus `json:"status"`
	DelayMinutes  int                  `json:"delay_minutes"`
	ScheduledTime time.Time            `json:"scheduled_time"`
}

// StoredDelay is the delay as persisted, early arrivals clamped to zero.
func (e Evaluation) StoredDelay() int {
	if e.DelayMinutes < 0 {
		return 0
	}
	return e.DelayMinutes
}

// TimeOfDay is a wall clock time parsed from HH:MM or HH:MM:SS.
type TimeOfDay struct {
	Hour, Minute, Second int
}

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
	}

	vals := make([]int, 3)
	limits := []int{23, 59, 59}
	for i, p := range parts {
		if p == "" || len(p) > 2 {
			return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > limits[i] {
			return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
		}
		vals[i] = n
	}
	return TimeOfDay{Hour: vals[0], Minute: vals[1], Second: vals[2]}, nil
}

// On returns the instant this time of day falls on the calendar date of
// day, in loc.
func (t TimeOfDay) On(day time.Time, loc *time.Location) time.Time {
	d := day.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour, t.Minute, t.Second, 0, loc)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// Evaluate compares arrival with the assignment's expected entry time on the
// arrival's calendar date in loc.
func Evaluate(a domain.Assignment, arrival time.Time, loc *time.Location) (Evaluation, error) {
	tod, err := ParseTimeOfDay(a.ExpectedEntryTime)
	if err != nil {
		return Evaluation{}, err
	}

	scheduled := tod.On(arrival, loc)
	delay := int(math.Round(arrival.Sub(scheduled).Minutes()))

	status := domain.StatusOnTime
	if delay > a.GraceMinutes {
		status = domain.StatusLate
	}

	return Evaluation{
		Status:        status,
		DelayMinutes:  delay,
		ScheduledTime: scheduled,
	}, nil
}
