// Package geofence turns position updates into geofence entry transitions.
package geofence

import (
	"context"
	"errors"
	"fmt"

	"fleet-monitor/compliance/internal/domain"
	"fleet-monitor/compliance/internal/geo"
)

// Transition is an OUTSIDE to INSIDE crossing.
type Transition struct {
	VehicleID      string
	Geofence       domain.Geofence
	DistanceMeters float64
}

type Tracker struct {
	states StateStore
}

func NewTracker(states StateStore) *Tracker {
	return &Tracker{states: states}
}

// OnPositionUpdate checks the point against every active geofence and
// returns the entries it caused. Leaving a geofence always records OUTSIDE,
// so a missed exit heals on the next sample outside the radius. A failed
// swap does not stop the remaining geofences; the entries found are returned
// together with the joined errors.
func (t *Tracker) OnPositionUpdate(
	ctx context.Context,
	vehicleID string,
	point domain.Point,
	geofences []domain.Geofence,
) ([]Transition, error) {
	var transitions []Transition
	var errs []error

	for _, g := range geofences {
		if !g.IsActive {
			continue
		}

		dist := geo.Distance(point, g.Center)
		next := Outside
		if dist <= g.RadiusMeters {
			next = Inside
		}

		prev, err := t.states.Swap(ctx, vehicleID, g.ID, next)
		if err != nil {
			errs = append(errs, fmt.Errorf("geofence state swap %s/%s: %w", vehicleID, g.ID, err))
			continue
		}

		if prev == Outside && next == Inside {
			transitions = append(transitions, Transition{
				VehicleID:      vehicleID,
				Geofence:       g,
				DistanceMeters: dist,
			})
		}
	}

	return transitions, errors.Join(errs...)
}

// Reset forgets an entry so the next sample inside the radius emits it
// again. Callers use it when the entry could not be recorded.
func (t *Tracker) Reset(ctx context.Context, vehicleID, geofenceID string) error {
	if _, err := t.states.Swap(ctx, vehicleID, geofenceID, Outside); err != nil {
		return fmt.Errorf("geofence state reset %s/%s: %w", vehicleID, geofenceID, err)
	}
	return nil
}
