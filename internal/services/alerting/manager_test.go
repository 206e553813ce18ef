package alerting

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aegis/internal/domain/alert"
	"aegis/internal/services/risk"
)

type mockNotifier struct {
	mu     sync.Mutex
	alerts []alert.Alert
	err    error
}

func (m *mockNotifier) NotifyAlert(ctx context.Context, a alert.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, a)
	return m.err
}

type mockStore struct {
	saved []alert.Alert
	err   error
}

func (m *mockStore) Save(ctx context.Context, a *alert.Alert) error {
	m.saved = append(m.saved, *a)
	return m.err
}

type mockPublisher struct {
	topics []string
	err    error
}

func (m *mockPublisher) Publish(ctx context.Context, topic string, key string, event interface{}) error {
	m.topics = append(m.topics, topic)
	return m.err
}

func criticalFinding() risk.Finding {
	return risk.Finding{
		Level:          alert.LevelCritical,
		Message:        "health factor 1.1000 below 1.20",
		ActionRequired: true,
	}
}

func TestManager_RaiseAppendsToHistory(t *testing.T) {
	history := alert.NewHistory(50)
	m := NewManager(history)

	raised := m.Raise(context.Background(), []risk.Finding{
		criticalFinding(),
		{Level: alert.LevelWarning, Message: "loan-to-value 0.7500 above 0.70", ActionRequired: true},
	})

	require.Len(t, raised, 2)
	assert.Equal(t, 2, history.Len())
	assert.Equal(t, alert.LevelCritical, raised[0].Level)
	assert.True(t, raised[0].ActionRequired)
	assert.NotEqual(t, raised[0].ID, raised[1].ID)
}

// A condition that persists across cycles must alert every cycle. Nothing is
// latched or deduplicated.
func TestManager_RepeatedCriticalProducesDistinctAlerts(t *testing.T) {
	history := alert.NewHistory(50)
	m := NewManager(history)

	for i := 0; i < 3; i++ {
		m.Raise(context.Background(), []risk.Finding{criticalFinding()})
	}

	alerts := history.Alerts()
	require.Len(t, alerts, 3)

	seen := make(map[string]bool)
	for _, a := range alerts {
		assert.Equal(t, alert.LevelCritical, a.Level)
		assert.False(t, seen[a.ID.String()], "duplicate alert id %s", a.ID)
		seen[a.ID.String()] = true
	}
}

func TestManager_RaiseHealthCheckFailure(t *testing.T) {
	history := alert.NewHistory(50)
	m := NewManager(history)

	a := m.RaiseHealthCheckFailure(context.Background(), errors.New("gateway timeout"))

	assert.Equal(t, alert.LevelCritical, a.Level)
	assert.True(t, a.ActionRequired)
	assert.Contains(t, a.Message, "health check failed")
	assert.Contains(t, a.Message, "gateway timeout")
	assert.Equal(t, 1, history.Len())
}

func TestManager_NotifierOnlyForCriticalOrActionRequired(t *testing.T) {
	notifier := &mockNotifier{}
	m := NewManager(alert.NewHistory(50), WithNotifier(notifier))

	m.Raise(context.Background(), []risk.Finding{
		{Level: alert.LevelWarning, Message: "price moved"},
		criticalFinding(),
		{Level: alert.LevelWarning, Message: "high ltv", ActionRequired: true},
	})
	m.RaiseInfo(context.Background(), "emergency repay recommended")

	require.Len(t, notifier.alerts, 2)
	assert.Equal(t, alert.LevelCritical, notifier.alerts[0].Level)
	assert.True(t, notifier.alerts[1].ActionRequired)
}

func TestManager_SinkFailuresDoNotBlockRaising(t *testing.T) {
	notifier := &mockNotifier{err: errors.New("telegram down")}
	store := &mockStore{err: errors.New("db down")}
	publisher := &mockPublisher{err: errors.New("broker down")}

	history := alert.NewHistory(50)
	m := NewManager(history,
		WithNotifier(notifier),
		WithStore(store),
		WithEventPublisher(publisher),
	)

	raised := m.Raise(context.Background(), []risk.Finding{criticalFinding()})

	require.Len(t, raised, 1)
	assert.Equal(t, 1, history.Len())
}

func TestManager_DispatchFansOut(t *testing.T) {
	notifier := &mockNotifier{}
	store := &mockStore{}
	publisher := &mockPublisher{}

	m := NewManager(alert.NewHistory(50),
		WithNotifier(notifier),
		WithStore(store),
		WithEventPublisher(publisher),
	)

	m.Raise(context.Background(), []risk.Finding{criticalFinding()})

	assert.Len(t, store.saved, 1)
	assert.Equal(t, []string{"risk.alerts"}, publisher.topics)
	assert.Len(t, notifier.alerts, 1)
}

func TestManager_Recent(t *testing.T) {
	m := NewManager(alert.NewHistory(50))

	m.RaiseInfo(context.Background(), "first")
	m.RaiseInfo(context.Background(), "second")

	recent := m.Recent(10)
	require.Len(t, recent, 2)
	assert.Equal(t, "second", recent[0].Message)
}
