package alerting

import (
	"context"
	"time"

	"aegis/internal/adapters/kafka"
	"aegis/internal/domain/alert"
	"aegis/internal/metrics"
	"aegis/internal/services/risk"
	"aegis/pkg/logger"
)

// Notifier pushes alerts to an external channel (telegram)
type Notifier interface {
	NotifyAlert(ctx context.Context, a alert.Alert) error
}

// AlertStore is implemented by the postgres alert repository
type AlertStore interface {
	Save(ctx context.Context, a *alert.Alert) error
}

// EventPublisher is implemented by the kafka producer
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key string, event interface{}) error
}

// Manager converts evaluator findings into leveled alerts and retains them in
// a bounded history. Every finding produces a fresh alert: a condition that
// persists across cycles keeps alerting, nothing is latched or deduplicated.
// Sinks are best-effort and never fail the cycle.
type Manager struct {
	history  *alert.History
	notifier Notifier
	store    AlertStore
	events   EventPublisher
	log      *logger.Logger
}

// Option configures optional alert sinks
type Option func(*Manager)

// WithNotifier attaches a push-notification channel
func WithNotifier(n Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// WithStore attaches a persistence sink
func WithStore(s AlertStore) Option {
	return func(m *Manager) { m.store = s }
}

// WithEventPublisher attaches a kafka event sink
func WithEventPublisher(e EventPublisher) Option {
	return func(m *Manager) { m.events = e }
}

// NewManager creates an alert manager over a bounded history
func NewManager(history *alert.History, opts ...Option) *Manager {
	m := &Manager{
		history: history,
		log:     logger.Get().With("component", "alert_manager"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Raise converts each finding into an alert
func (m *Manager) Raise(ctx context.Context, findings []risk.Finding) []alert.Alert {
	raised := make([]alert.Alert, 0, len(findings))
	for _, f := range findings {
		raised = append(raised, m.raise(ctx, f.Level, f.Message, f.ActionRequired))
	}
	return raised
}

// RaiseInfo records an informational alert
func (m *Manager) RaiseInfo(ctx context.Context, message string) alert.Alert {
	return m.raise(ctx, alert.LevelInfo, message, false)
}

// RaiseHealthCheckFailure records the CRITICAL alert for a cycle whose
// collector failed. The monitoring loop continues; the failure must still be
// visible.
func (m *Manager) RaiseHealthCheckFailure(ctx context.Context, err error) alert.Alert {
	return m.raise(ctx, alert.LevelCritical, "health check failed: "+err.Error(), true)
}

// Recent returns up to n alerts, newest first
func (m *Manager) Recent(n int) []alert.Alert {
	return m.history.Recent(n)
}

// History exposes the underlying bounded history
func (m *Manager) History() *alert.History {
	return m.history
}

func (m *Manager) raise(ctx context.Context, level alert.Level, message string, actionRequired bool) alert.Alert {
	a := alert.New(level, message, time.Now().UTC(), actionRequired)
	m.history.Append(a)
	metrics.AlertsRaised.WithLabelValues(level.String()).Inc()

	m.log.Infow("Alert raised",
		"level", a.Level,
		"message", a.Message,
		"action_required", a.ActionRequired,
	)

	m.dispatch(ctx, a)
	return a
}

// dispatch fans the alert out to the configured sinks
func (m *Manager) dispatch(ctx context.Context, a alert.Alert) {
	if m.store != nil {
		if err := m.store.Save(ctx, &a); err != nil {
			m.log.Warnw("Failed to persist alert", "alert_id", a.ID, "error", err)
		}
	}
	if m.events != nil {
		if err := m.events.Publish(ctx, kafka.TopicRiskAlert, a.Level.String(), a); err != nil {
			m.log.Warnw("Failed to publish alert event", "alert_id", a.ID, "error", err)
		}
	}
	if m.notifier != nil && (a.Level == alert.LevelCritical || a.ActionRequired) {
		if err := m.notifier.NotifyAlert(ctx, a); err != nil {
			m.log.Warnw("Failed to push alert notification", "alert_id", a.ID, "error", err)
		}
	}
}
