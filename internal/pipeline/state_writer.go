package pipeline

import (
	"context"
	"time"

	"fleet-monitor/compliance/internal/domain"
	"fleet-monitor/compliance/internal/logger"
)

// StateUpdater pushes a vehicle's live position to the dashboard store.
type StateUpdater interface {
	PipelineStateUpdate(ctx context.Context, s domain.PositionSample) error
}

type StateWriter struct {
	ch      <-chan domain.PositionSample
	redis   StateUpdater
	timeout time.Duration
}

func NewStateWriter(
	ch <-chan domain.PositionSample,
	redis StateUpdater,
	timeout time.Duration,
) *StateWriter {
	return &StateWriter{ch: ch, redis: redis, timeout: timeout}
}

func (w *StateWriter) Run(ctx context.Context) {
	batch := make([]domain.PositionSample, 0, 100)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case s, ok := <-w.ch:
			if !ok {
				w.flushBatch(ctx, batch)
				return
			}
			batch = append(batch, s)
			if len(batch) >= 100 {
				w.flushBatch(ctx, batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				w.flushBatch(ctx, batch)
				batch = batch[:0]
			}

		case <-ctx.Done():
			w.flushBatch(ctx, batch)
			return
		}
	}
}

func (w *StateWriter) flushBatch(ctx context.Context, batch []domain.PositionSample) {
	if len(batch) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	for _, s := range batch {
		if err := w.redis.PipelineStateUpdate(ctx, s); err != nil {
			logger.Warn("state_update", "Redis state update failed", "vehicle_id", s.VehicleID, "error", err.Error())
		}
	}
}
