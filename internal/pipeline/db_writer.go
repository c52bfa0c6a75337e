package pipeline

import (
	"context"
	"time"

	"fleet-monitor/compliance/internal/domain"
	"fleet-monitor/compliance/internal/logger"
	"fleet-monitor/compliance/internal/metrics"
)

type PositionWriter interface {
	BatchInsertPositions(ctx context.Context, samples []domain.PositionSample) error
}

type DBWriter struct {
	ch        <-chan domain.PositionSample
	db        PositionWriter
	batchSize int
	flushMS   int
	timeout   time.Duration
	retryWait time.Duration
}

func NewDBWriter(
	ch <-chan domain.PositionSample,
	db PositionWriter,
	batchSize int,
	flushMS int,
	timeout time.Duration,
) *DBWriter {
	if batchSize < 1 {
		batchSize = 1
	}
	if flushMS < 1 {
		flushMS = 100
	}
	return &DBWriter{
		ch:        ch,
		db:        db,
		batchSize: batchSize,
		flushMS:   flushMS,
		timeout:   timeout,
		retryWait: 500 * time.Millisecond,
	}
}

func (w *DBWriter) Run(ctx context.Context) {
	batch := make([]domain.PositionSample, 0, w.batchSize)
	ticker := time.NewTicker(time.Duration(w.flushMS) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case s, ok := <-w.ch:
			if !ok {
				if len(batch) > 0 {
					w.flush(ctx, batch)
				}
				return
			}
			batch = append(batch, s)
			if len(batch) >= w.batchSize {
				w.flush(ctx, batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(ctx, batch)
				batch = batch[:0]
			}

		case <-ctx.Done():
			if len(batch) > 0 {
				w.flush(ctx, batch)
			}
			return
		}
	}
}

func (w *DBWriter) flush(ctx context.Context, batch []domain.PositionSample) {
	err := w.insert(ctx, batch)
	if err != nil {
		logger.Warn("db_write", "Position batch write failed, retrying", "batch", len(batch), "error", err.Error())
		time.Sleep(w.retryWait)
		err = w.insert(ctx, batch)
		if err != nil {
			logger.Error("db_write", "Position batch write permanently failed", err, "batch", len(batch))
			metrics.DBWriteFailures.Add(int64(len(batch)))
			return
		}
	}
	metrics.DBWriteSuccess.Add(int64(len(batch)))
}

// insert outlives ctx so the final flush on shutdown still lands.
func (w *DBWriter) insert(ctx context.Context, batch []domain.PositionSample) error {
	ctx = context.WithoutCancel(ctx)
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	return w.db.BatchInsertPositions(ctx, batch)
}
