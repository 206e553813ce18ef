package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"aegis/internal/domain/alert"
	"aegis/internal/domain/position"
	"aegis/internal/services/emergency"
	"aegis/internal/services/risk"
	"aegis/internal/workers"
	"aegis/pkg/errors"
	"aegis/pkg/logger"
)

// State of the monitoring loop
type State string

const (
	StateIdle    State = "IDLE"
	StateRunning State = "RUNNING"
	StateStopped State = "STOPPED"
)

// SnapshotCollector produces one snapshot per cycle
type SnapshotCollector interface {
	Collect(ctx context.Context) (*position.Snapshot, error)
}

// RiskEvaluator classifies snapshots
type RiskEvaluator interface {
	Evaluate(current *position.Snapshot, previous *position.Snapshot) *risk.Assessment
}

// AlertManager raises and retains alerts
type AlertManager interface {
	Raise(ctx context.Context, findings []risk.Finding) []alert.Alert
	RaiseInfo(ctx context.Context, message string) alert.Alert
	RaiseHealthCheckFailure(ctx context.Context, err error) alert.Alert
	Recent(n int) []alert.Alert
}

// EmergencyController runs the deleverage procedure on CRITICAL cycles
type EmergencyController interface {
	Trigger(ctx context.Context, snap *position.Snapshot) (*emergency.Action, error)
}

// Service orchestrates the monitoring pipeline on a timer. Cycles never
// overlap; every cycle, successful or not, leaves an observable trace
// (a snapshot appended or a failure alert raised).
type Service struct {
	collector SnapshotCollector
	evaluator RiskEvaluator
	alerts    AlertManager
	emergency EmergencyController
	history   *position.History
	interval  time.Duration

	mu        sync.Mutex
	state     State
	scheduler *workers.Scheduler

	log *logger.Logger
}

// NewService creates a monitor service. emergencyCtl may be nil, in which
// case CRITICAL cycles raise alerts but run no emergency procedure.
func NewService(
	collector SnapshotCollector,
	evaluator RiskEvaluator,
	alerts AlertManager,
	emergencyCtl EmergencyController,
	history *position.History,
	interval time.Duration,
) *Service {
	return &Service{
		collector: collector,
		evaluator: evaluator,
		alerts:    alerts,
		emergency: emergencyCtl,
		history:   history,
		interval:  interval,
		state:     StateIdle,
		log:       logger.Get().With("component", "monitor"),
	}
}

// State returns the current lifecycle state
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start transitions to RUNNING, runs one cycle immediately and schedules
// recurring cycles. Calling Start while already running is a logged no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRunning {
		s.log.Warn("Monitor already running, ignoring start")
		return nil
	}

	s.scheduler = workers.NewScheduler()
	s.scheduler.RegisterWorker(newCycleWorker(s))

	if err := s.scheduler.Start(ctx); err != nil {
		return errors.Wrap(err, "failed to start monitor scheduler")
	}

	s.state = StateRunning
	s.log.Info("Monitor started", "interval", s.interval)
	return nil
}

// Stop cancels the recurring timer. An in-flight cycle completes; no cycle
// begins after Stop returns.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		s.log.Warn("Monitor not running, ignoring stop")
		return nil
	}

	err := s.scheduler.Stop()
	s.state = StateStopped
	s.log.Info("Monitor stopped")
	return err
}

// RunCycle executes one pass of the pipeline:
// collect → evaluate → alert → (CRITICAL) emergency. A collector failure
// raises a CRITICAL health-check alert and counts as a miss, not a crash:
// the history stays untouched and the next scheduled cycle proceeds.
func (s *Service) RunCycle(ctx context.Context) error {
	previous, hasPrevious := s.history.Latest()

	snap, err := s.collector.Collect(ctx)
	if err != nil {
		s.log.Errorw("Cycle collection failed", "error", err)
		s.alerts.RaiseHealthCheckFailure(ctx, err)
		return nil
	}

	var prevPtr *position.Snapshot
	if hasPrevious {
		prevPtr = &previous
	}

	assessment := s.evaluator.Evaluate(snap, prevPtr)
	s.alerts.Raise(ctx, assessment.Findings)

	s.log.Infow("Cycle completed",
		"status", assessment.Status,
		"health_factor", snap.HealthFactor,
		"risk_score", assessment.LiquidationRiskScore,
	)

	if assessment.Status == risk.StatusCritical && s.emergency != nil {
		s.runEmergency(ctx, snap)
	}

	return nil
}

func (s *Service) runEmergency(ctx context.Context, snap *position.Snapshot) {
	action, err := s.emergency.Trigger(ctx, snap)
	if err != nil {
		s.log.Errorw("Emergency procedure failed", "error", err)
		s.alerts.Raise(ctx, []risk.Finding{{
			Level:          alert.LevelCritical,
			Message:        fmt.Sprintf("emergency procedure failed: %v", err),
			ActionRequired: true,
		}})
		return
	}

	s.alerts.RaiseInfo(ctx, action.Describe())
}
