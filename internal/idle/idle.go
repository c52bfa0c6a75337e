// Package idle counts samples where the engine runs but the vehicle does
// not move.
package idle

import (
	"time"

	"fleet-monitor/compliance/internal/domain"
)

const (
	DefaultEventThreshold = 50
	DefaultBatchThreshold = 60
	DefaultWindow         = 24 * time.Hour
)

// IsIdle reports ignition on with speed at or below speedThreshold km/h.
func IsIdle(s domain.PositionSample, speedThreshold float64) bool {
	return s.Ignition && s.SpeedKmh <= speedThreshold
}

// CountIdleSamples counts idle samples timestamped in [from, to).
func CountIdleSamples(samples []domain.PositionSample, from, to time.Time, speedThreshold float64) int {
	n := 0
	for _, s := range samples {
		if s.Timestamp.Before(from) || !s.Timestamp.Before(to) {
			continue
		}
		if IsIdle(s, speedThreshold) {
			n++
		}
	}
	return n
}

func IsExcessive(count, threshold int) bool {
	return count > threshold
}
