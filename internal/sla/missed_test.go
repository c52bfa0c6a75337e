package sla

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-monitor/compliance/internal/domain"
)

func TestWindowEndDefaultsToGracePlusMissedAfter(t *testing.T) {
	day := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	a := domain.Assignment{ExpectedEntryTime: "09:00", GraceMinutes: 10}

	scheduled, end, err := WindowEnd(a, day, time.UTC, 2*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC), scheduled)
	assert.Equal(t, time.Date(2024, 3, 11, 11, 10, 0, 0, time.UTC), end)
}

func TestWindowEndExplicit(t *testing.T) {
	day := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	a := domain.Assignment{ExpectedEntryTime: "09:00", GraceMinutes: 10, WindowEnd: "17:30"}

	_, end, err := WindowEnd(a, day, time.UTC, 2*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 11, 17, 30, 0, 0, time.UTC), end)

	a.WindowEnd = "late"
	_, _, err = WindowEnd(a, day, time.UTC, 0)
	assert.ErrorIs(t, err, ErrInvalidTimeOfDay)
}

func TestMissedLog(t *testing.T) {
	day := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	a := domain.Assignment{GeofenceID: "g1", VehicleID: "v1", ExpectedEntryTime: "09:00", GraceMinutes: 5}

	_, ok, err := MissedLog(a, day, time.Date(2024, 3, 11, 11, 5, 0, 0, time.UTC), time.UTC, 2*time.Hour)
	require.NoError(t, err)
	assert.False(t, ok, "window closes at 11:05, not before")

	log, ok, err := MissedLog(a, day, time.Date(2024, 3, 11, 11, 6, 0, 0, time.UTC), time.UTC, 2*time.Hour)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v1", log.VehicleID)
	assert.Equal(t, "g1", log.GeofenceID)
	assert.Equal(t, day, log.ArrivalDay)
	assert.Nil(t, log.ArrivalTime)
	require.NotNil(t, log.Status)
	assert.Equal(t, domain.StatusMissed, *log.Status)
	require.NotNil(t, log.ScheduledTime)
	assert.Equal(t, time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC), *log.ScheduledTime)
}
