package sla

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-monitor/compliance/internal/domain"
)

func at(t *testing.T, hhmm string) time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02 15:04", "2024-03-11 "+hhmm)
	require.NoError(t, err)
	return ts
}

func TestEvaluate(t *testing.T) {
	a := domain.Assignment{GeofenceID: "g1", VehicleID: "v1", ExpectedEntryTime: "09:00", GraceMinutes: 10}

	tests := []struct {
		arrival string
		status  domain.ArrivalStatus
		delay   int
	}{
		{"09:08", domain.StatusOnTime, 8},
		{"09:10", domain.StatusOnTime, 10},
		{"09:11", domain.StatusLate, 11},
		{"09:15", domain.StatusLate, 15},
		{"08:55", domain.StatusOnTime, -5},
	}

	for _, tt := range tests {
		t.Run(tt.arrival, func(t *testing.T) {
			got, err := Evaluate(a, at(t, tt.arrival), time.UTC)
			require.NoError(t, err)
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, tt.delay, got.DelayMinutes)
			assert.Equal(t, at(t, "09:00"), got.ScheduledTime)
		})
	}
}

func TestEvaluateRoundsToNearestMinute(t *testing.T) {
	a := domain.Assignment{ExpectedEntryTime: "10:00:00", GraceMinutes: 5}
	base := at(t, "10:00")

	got, err := Evaluate(a, base.Add(2*time.Minute+29*time.Second), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 2, got.DelayMinutes)

	got, err = Evaluate(a, base.Add(5*time.Minute+31*time.Second), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 6, got.DelayMinutes)
	assert.Equal(t, domain.StatusLate, got.Status)
}

func TestEvaluateUsesCalendarDateInLocation(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+30*60)

	// 03:40 UTC is 09:10 IST.
	arrival := time.Date(2024, 3, 11, 3, 40, 0, 0, time.UTC)
	got, err := Evaluate(domain.Assignment{ExpectedEntryTime: "09:00", GraceMinutes: 5}, arrival, loc)
	require.NoError(t, err)
	assert.Equal(t, 10, got.DelayMinutes)
	assert.Equal(t, domain.StatusLate, got.Status)
	assert.True(t, got.ScheduledTime.Equal(time.Date(2024, 3, 11, 9, 0, 0, 0, loc)))
}

func TestEvaluateInvalidExpectedTime(t *testing.T) {
	for _, s := range []string{"", "9", "25:00", "09:60", "ab:cd", "09:00:00:00", "009:00"} {
		_, err := Evaluate(domain.Assignment{ExpectedEntryTime: s}, time.Now(), time.UTC)
		assert.ErrorIs(t, err, ErrInvalidTimeOfDay, s)
	}
}

func TestParseTimeOfDay(t *testing.T) {
	got, err := ParseTimeOfDay("7:05")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay{Hour: 7, Minute: 5}, got)
	assert.Equal(t, "07:05:00", got.String())

	got, err = ParseTimeOfDay(" 23:59:59 ")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay{Hour: 23, Minute: 59, Second: 59}, got)
}

func TestStoredDelayClampsEarlyArrivals(t *testing.T) {
	assert.Equal(t, 0, Evaluation{DelayMinutes: -5}.StoredDelay())
	assert.Equal(t, 0, Evaluation{DelayMinutes: 0}.StoredDelay())
	assert.Equal(t, 12, Evaluation{DelayMinutes: 12}.StoredDelay())
}
