package pipeline

import (
	"context"
	"sort"
	"time"

	"fleet-monitor/compliance/internal/domain"
	"fleet-monitor/compliance/internal/logger"
	"fleet-monitor/compliance/internal/metrics"
	"fleet-monitor/compliance/internal/ratelimit"
)

type Sink interface {
	Dispatch(s domain.PositionSample)
}

// Gateway is the front door for device positions: validate, rate limit per
// vehicle, then hand off to the dispatcher.
type Gateway struct {
	limiter ratelimit.Limiter
	sink    Sink
	now     func() time.Time
}

func NewGateway(limiter ratelimit.Limiter, sink Sink) *Gateway {
	return &Gateway{limiter: limiter, sink: sink, now: time.Now}
}

type Accepted struct {
	VehicleID string `json:"vehicle_id"`
	Ignored   bool   `json:"ignored"`
}

// Accept returns a ValidationError for bad input. A sample inside the rate
// limit interval is reported as ignored and never reaches the dispatcher.
func (g *Gateway) Accept(ctx context.Context, in domain.PositionInput, fleetID string) (Accepted, error) {
	metrics.MessagesReceived.Add(1)
	if err := in.Validate(); err != nil {
		metrics.MessagesRejected.Add(1)
		return Accepted{}, err
	}

	now := g.now()
	if !g.allow(ctx, in.VehicleID, now) {
		metrics.MessagesRateLimited.Add(1)
		return Accepted{VehicleID: in.VehicleID, Ignored: true}, nil
	}

	g.sink.Dispatch(in.Sample(fleetID, now))
	return Accepted{VehicleID: in.VehicleID}, nil
}

func (g *Gateway) allow(ctx context.Context, vehicleID string, now time.Time) bool {
	if g.limiter == nil {
		return true
	}
	ok, err := g.limiter.Allow(ctx, vehicleID, now)
	if err != nil {
		// Fail open when the limiter backend is down.
		logger.Warn("rate_limit", "Rate limiter unavailable, accepting sample",
			"vehicle_id", vehicleID, "error", err.Error())
		return true
	}
	return ok
}

type BatchError struct {
	Index     int    `json:"index"`
	VehicleID string `json:"vehicle_id"`
	Error     string `json:"error"`
}

type BatchAccepted struct {
	Accepted int          `json:"accepted"`
	Ignored  int          `json:"ignored"`
	Rejected int          `json:"rejected"`
	Errors   []BatchError `json:"errors,omitempty"`
}

// AcceptBatch takes samples a device buffered while offline. The rate limit
// applies to the upload: each vehicle in the batch uses one limiter slot,
// and when that slot is granted all of its samples are kept. Kept samples
// are dispatched in recorded_at order so the arrival workers see each
// vehicle's track in sequence.
func (g *Gateway) AcceptBatch(ctx context.Context, inputs []domain.PositionInput, fleetID string) BatchAccepted {
	var res BatchAccepted
	now := g.now()
	allowed := make(map[string]bool)
	samples := make([]domain.PositionSample, 0, len(inputs))

	for i, in := range inputs {
		metrics.MessagesReceived.Add(1)
		if err := in.Validate(); err != nil {
			metrics.MessagesRejected.Add(1)
			res.Rejected++
			res.Errors = append(res.Errors, BatchError{Index: i, VehicleID: in.VehicleID, Error: err.Error()})
			continue
		}

		ok, seen := allowed[in.VehicleID]
		if !seen {
			ok = g.allow(ctx, in.VehicleID, now)
			allowed[in.VehicleID] = ok
		}
		if !ok {
			metrics.MessagesRateLimited.Add(1)
			res.Ignored++
			continue
		}
		samples = append(samples, in.Sample(fleetID, now))
	}

	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Timestamp.Before(samples[j].Timestamp)
	})
	for _, s := range samples {
		g.sink.Dispatch(s)
	}
	res.Accepted = len(samples)
	return res
}
