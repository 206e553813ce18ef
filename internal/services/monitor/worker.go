package monitor

import (
	"context"

	"aegis/internal/workers"
)

// cycleWorker adapts the monitor pipeline to the worker scheduler
type cycleWorker struct {
	*workers.BaseWorker
	service *Service
}

var _ workers.Worker = (*cycleWorker)(nil)

func newCycleWorker(s *Service) *cycleWorker {
	return &cycleWorker{
		BaseWorker: workers.NewBaseWorker("position_monitor", s.interval, true),
		service:    s,
	}
}

func (w *cycleWorker) Run(ctx context.Context) error {
	return w.service.RunCycle(ctx)
}
