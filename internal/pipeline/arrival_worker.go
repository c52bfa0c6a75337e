package pipeline

import (
	"context"
	"errors"
	"time"

	"fleet-monitor/compliance/internal/domain"
	"fleet-monitor/compliance/internal/logger"
	"fleet-monitor/compliance/internal/metrics"
	"fleet-monitor/compliance/internal/service"
)

type ArrivalIngester interface {
	IngestPosition(ctx context.Context, s domain.PositionSample) ([]service.ArrivalResult, error)
}

// ArrivalWorker drains one arrival partition. Samples of a vehicle always land
// on the same worker, so transitions are evaluated in arrival order.
type ArrivalWorker struct {
	ch      <-chan domain.PositionSample
	engine  ArrivalIngester
	timeout time.Duration
}

func NewArrivalWorker(ch <-chan domain.PositionSample, engine ArrivalIngester, timeout time.Duration) *ArrivalWorker {
	return &ArrivalWorker{ch: ch, engine: engine, timeout: timeout}
}

func (w *ArrivalWorker) Run(ctx context.Context) {
	for {
		select {
		case s, ok := <-w.ch:
			if !ok {
				return
			}
			w.evaluate(ctx, s)

		case <-ctx.Done():
			return
		}
	}
}

func (w *ArrivalWorker) evaluate(ctx context.Context, s domain.PositionSample) {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	results, err := w.engine.IngestPosition(ctx, s)
	if err != nil {
		metrics.ArrivalFailures.Add(1)
		if errors.Is(err, context.DeadlineExceeded) {
			logger.Warn("arrival_evaluate", "Store timeout, sample dropped", "vehicle_id", s.VehicleID)
			return
		}
		logger.Error("arrival_evaluate", "Arrival evaluation failed", err, "vehicle_id", s.VehicleID)
		return
	}

	for _, r := range results {
		logger.Debug("arrival_evaluate", "Geofence entry handled",
			"vehicle_id", r.VehicleID, "geofence_id", r.GeofenceID, "status", string(r.Status))
	}
}
