package idle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"fleet-monitor/compliance/internal/domain"
)

func TestIsIdle(t *testing.T) {
	assert.True(t, IsIdle(domain.PositionSample{Ignition: true, SpeedKmh: 0}, 0))
	assert.False(t, IsIdle(domain.PositionSample{Ignition: false, SpeedKmh: 0}, 0))
	assert.False(t, IsIdle(domain.PositionSample{Ignition: true, SpeedKmh: 3}, 0))
	assert.True(t, IsIdle(domain.PositionSample{Ignition: true, SpeedKmh: 3}, 5))
}

func TestCountIdleSamplesWindow(t *testing.T) {
	from := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	to := from.Add(DefaultWindow)

	samples := []domain.PositionSample{
		{Timestamp: from.Add(-time.Second), Ignition: true},
		{Timestamp: from, Ignition: true},
		{Timestamp: from.Add(time.Hour), Ignition: true, SpeedKmh: 40},
		{Timestamp: from.Add(2 * time.Hour), Ignition: false},
		{Timestamp: from.Add(3 * time.Hour), Ignition: true},
		{Timestamp: to, Ignition: true},
	}

	assert.Equal(t, 2, CountIdleSamples(samples, from, to, 0))
	assert.Equal(t, 0, CountIdleSamples(nil, from, to, 0))
}

func TestIsExcessiveIsStrict(t *testing.T) {
	assert.False(t, IsExcessive(50, DefaultEventThreshold))
	assert.True(t, IsExcessive(51, DefaultEventThreshold))
	assert.False(t, IsExcessive(60, DefaultBatchThreshold))
	assert.True(t, IsExcessive(61, DefaultBatchThreshold))
}
