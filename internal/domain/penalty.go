package domain

import "time"

type PenaltyStatus string

const (
	PenaltyPending PenaltyStatus = "PENDING"
	PenaltyPaid    PenaltyStatus = "PAID"
	PenaltyWaived  PenaltyStatus = "WAIVED"
)

// Penalty is the charge raised for a late arrival. It points at the
// geofence log that caused it; one log raises at most one penalty.
type Penalty struct {
	ID            string        `json:"penalty_id"`
	VehicleID     string        `json:"vehicle_id"`
	GeofenceID    string        `json:"geofence_id"`
	GeofenceLogID string        `json:"geofence_log_id"`
	PenaltyDate   time.Time     `json:"penalty_date"`
	Amount        int           `json:"penalty_amount"`
	Reason        string        `json:"reason"`
	Status        PenaltyStatus `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
}
