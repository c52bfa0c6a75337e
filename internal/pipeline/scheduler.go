package pipeline

import (
	"context"
	"time"

	"fleet-monitor/compliance/internal/domain"
	"fleet-monitor/compliance/internal/logger"
	"fleet-monitor/compliance/internal/service"
)

type BatchRunner interface {
	RunRiskBatch(ctx context.Context, vehicleID *string) (service.BatchResult, error)
	SweepMissed(ctx context.Context, day time.Time) (service.SweepResult, error)
	Location() *time.Location
}

// RiskScheduler periodically closes arrival windows and scores every
// vehicle. A zero interval disables it.
type RiskScheduler struct {
	engine   BatchRunner
	interval time.Duration
	now      func() time.Time
}

func NewRiskScheduler(engine BatchRunner, interval time.Duration) *RiskScheduler {
	return &RiskScheduler{engine: engine, interval: interval, now: time.Now}
}

func (s *RiskScheduler) Run(ctx context.Context) {
	if s.interval <= 0 {
		logger.Info("risk_scheduler", "Risk scheduler disabled")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// tick sweeps yesterday as well as today so windows that close after
// midnight are not skipped.
func (s *RiskScheduler) tick(ctx context.Context) {
	today := domain.Day(s.now(), s.engine.Location())
	for _, day := range []time.Time{today.AddDate(0, 0, -1), today} {
		if _, err := s.engine.SweepMissed(ctx, day); err != nil {
			logger.Error("risk_scheduler", "MISSED sweep failed", err, "day", day.Format(time.DateOnly))
		}
	}

	if _, err := s.engine.RunRiskBatch(ctx, nil); err != nil {
		logger.Error("risk_scheduler", "Risk batch failed", err)
	}
}
