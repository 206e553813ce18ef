package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aegis/internal/domain/alert"
	"aegis/internal/domain/position"
	"aegis/internal/services/emergency"
	"aegis/internal/services/risk"
	"aegis/pkg/errors"
)

type mockCollector struct {
	mu      sync.Mutex
	history *position.History
	snap    position.Snapshot
	err     error
	calls   int
}

func (m *mockCollector) Collect(ctx context.Context) (*position.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	snap := m.snap
	snap.Timestamp = time.Now().UTC()
	m.history.Append(snap)
	return &snap, nil
}

func (m *mockCollector) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockEvaluator struct {
	assessment *risk.Assessment
	current    *position.Snapshot
	previous   *position.Snapshot
}

func (m *mockEvaluator) Evaluate(current, previous *position.Snapshot) *risk.Assessment {
	m.current = current
	m.previous = previous
	if m.assessment != nil {
		return m.assessment
	}
	return &risk.Assessment{Status: risk.StatusHealthy}
}

type mockAlerts struct {
	mu             sync.Mutex
	history        *alert.History
	raised         []risk.Finding
	infos          []string
	healthFailures []error
}

func newMockAlerts() *mockAlerts {
	return &mockAlerts{history: alert.NewHistory(50)}
}

func (m *mockAlerts) Raise(ctx context.Context, findings []risk.Finding) []alert.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raised = append(m.raised, findings...)
	out := make([]alert.Alert, 0, len(findings))
	for _, f := range findings {
		a := alert.New(f.Level, f.Message, time.Now(), f.ActionRequired)
		m.history.Append(a)
		out = append(out, a)
	}
	return out
}

func (m *mockAlerts) RaiseInfo(ctx context.Context, message string) alert.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, message)
	a := alert.New(alert.LevelInfo, message, time.Now(), false)
	m.history.Append(a)
	return a
}

func (m *mockAlerts) RaiseHealthCheckFailure(ctx context.Context, err error) alert.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthFailures = append(m.healthFailures, err)
	a := alert.New(alert.LevelCritical, "health check failed: "+err.Error(), time.Now(), true)
	m.history.Append(a)
	return a
}

func (m *mockAlerts) Recent(n int) []alert.Alert {
	return m.history.Recent(n)
}

type mockEmergency struct {
	action *emergency.Action
	err    error
	calls  int
}

func (m *mockEmergency) Trigger(ctx context.Context, snap *position.Snapshot) (*emergency.Action, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.action, nil
}

func healthySnapshot() position.Snapshot {
	return position.Snapshot{
		CollateralAmount: decimal.NewFromInt(150),
		DebtAmount:       decimal.NewFromInt(50),
		AssetPrice:       decimal.NewFromInt(100),
		HealthFactor:     2.4,
		LoanToValue:      0.33,
		NetPnL:           decimal.NewFromInt(10),
	}
}

func newTestService(
	collector SnapshotCollector,
	evaluator RiskEvaluator,
	alerts AlertManager,
	emergencyCtl EmergencyController,
	history *position.History,
) *Service {
	return NewService(collector, evaluator, alerts, emergencyCtl, history, 50*time.Millisecond)
}

func TestRunCycle_HappyPath(t *testing.T) {
	history := position.NewHistory(100)
	collector := &mockCollector{history: history, snap: healthySnapshot()}
	evaluator := &mockEvaluator{}
	alerts := newMockAlerts()

	s := newTestService(collector, evaluator, alerts, nil, history)

	err := s.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, history.Len())
	assert.NotNil(t, evaluator.current)
	assert.Nil(t, evaluator.previous, "first cycle has no previous snapshot")
	assert.Empty(t, alerts.healthFailures)
}

func TestRunCycle_PassesPreviousSnapshot(t *testing.T) {
	history := position.NewHistory(100)
	collector := &mockCollector{history: history, snap: healthySnapshot()}
	evaluator := &mockEvaluator{}

	s := newTestService(collector, evaluator, newMockAlerts(), nil, history)

	require.NoError(t, s.RunCycle(context.Background()))
	require.NoError(t, s.RunCycle(context.Background()))

	require.NotNil(t, evaluator.previous)
	assert.Equal(t, 2, history.Len())
}

// A collector failure is a miss, not a crash: CRITICAL alert, history
// untouched, nil return so the loop keeps its schedule.
func TestRunCycle_CollectorFailure(t *testing.T) {
	history := position.NewHistory(100)
	collector := &mockCollector{history: history, err: errors.ErrSourceUnavailable}
	alerts := newMockAlerts()

	s := newTestService(collector, &mockEvaluator{}, alerts, nil, history)

	err := s.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, history.Len())
	require.Len(t, alerts.healthFailures, 1)
	assert.True(t, errors.Is(alerts.healthFailures[0], errors.ErrSourceUnavailable))
}

func TestRunCycle_CriticalTriggersEmergency(t *testing.T) {
	history := position.NewHistory(100)
	collector := &mockCollector{history: history, snap: healthySnapshot()}
	evaluator := &mockEvaluator{assessment: &risk.Assessment{
		Status: risk.StatusCritical,
		Findings: []risk.Finding{
			{Level: alert.LevelCritical, Message: "health factor low", ActionRequired: true},
		},
	}}
	alerts := newMockAlerts()
	emergencyCtl := &mockEmergency{action: &emergency.Action{
		RepayAmount:           decimal.NewFromInt(25),
		ProjectedHealthFactor: 1.6,
		FundingSufficient:     true,
	}}

	s := newTestService(collector, evaluator, alerts, emergencyCtl, history)

	require.NoError(t, s.RunCycle(context.Background()))

	assert.Equal(t, 1, emergencyCtl.calls)
	require.Len(t, alerts.infos, 1)
	assert.Contains(t, alerts.infos[0], "emergency repay")
}

func TestRunCycle_NonCriticalSkipsEmergency(t *testing.T) {
	history := position.NewHistory(100)
	collector := &mockCollector{history: history, snap: healthySnapshot()}
	evaluator := &mockEvaluator{assessment: &risk.Assessment{Status: risk.StatusWarning}}
	emergencyCtl := &mockEmergency{}

	s := newTestService(collector, evaluator, newMockAlerts(), emergencyCtl, history)

	require.NoError(t, s.RunCycle(context.Background()))
	assert.Equal(t, 0, emergencyCtl.calls)
}

func TestRunCycle_EmergencyFailureRaisesAlert(t *testing.T) {
	history := position.NewHistory(100)
	collector := &mockCollector{history: history, snap: healthySnapshot()}
	evaluator := &mockEvaluator{assessment: &risk.Assessment{Status: risk.StatusCritical}}
	alerts := newMockAlerts()
	emergencyCtl := &mockEmergency{err: errors.ErrSourceUnavailable}

	s := newTestService(collector, evaluator, alerts, emergencyCtl, history)

	require.NoError(t, s.RunCycle(context.Background()))

	require.NotEmpty(t, alerts.raised)
	last := alerts.raised[len(alerts.raised)-1]
	assert.Equal(t, alert.LevelCritical, last.Level)
	assert.Contains(t, last.Message, "emergency procedure failed")
}

func TestService_StartStop(t *testing.T) {
	history := position.NewHistory(100)
	collector := &mockCollector{history: history, snap: healthySnapshot()}

	s := newTestService(collector, &mockEvaluator{}, newMockAlerts(), nil, history)
	assert.Equal(t, StateIdle, s.State())

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, StateRunning, s.State())

	// immediate cycle plus at least one tick
	time.Sleep(120 * time.Millisecond)

	require.NoError(t, s.Stop())
	assert.Equal(t, StateStopped, s.State())
	assert.GreaterOrEqual(t, collector.callCount(), 2)

	// no cycle may begin after Stop returns
	settled := collector.callCount()
	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, settled, collector.callCount())
}

func TestService_DoubleStartIsNoOp(t *testing.T) {
	history := position.NewHistory(100)
	collector := &mockCollector{history: history, snap: healthySnapshot()}

	s := newTestService(collector, &mockEvaluator{}, newMockAlerts(), nil, history)

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, StateRunning, s.State())

	require.NoError(t, s.Stop())
}

func TestService_StopWhenIdleIsNoOp(t *testing.T) {
	history := position.NewHistory(100)
	s := newTestService(&mockCollector{history: history}, &mockEvaluator{}, newMockAlerts(), nil, history)

	require.NoError(t, s.Stop())
	assert.Equal(t, StateIdle, s.State())
}
