package alert

import (
	"time"

	"github.com/google/uuid"
)

// Level defines alert severity
type Level string

const (
	LevelInfo     Level = "INFO"
	LevelWarning  Level = "WARNING"
	LevelCritical Level = "CRITICAL"
)

// Valid checks if the level is one of the known severities
func (l Level) Valid() bool {
	switch l {
	case LevelInfo, LevelWarning, LevelCritical:
		return true
	}
	return false
}

// String returns string representation
func (l Level) String() string {
	return string(l)
}

// Alert is an immutable, leveled monitoring event. ActionRequired marks
// alerts that demand operator (or emergency-procedure) intervention.
type Alert struct {
	ID             uuid.UUID `db:"id"`
	Level          Level     `db:"level"`
	Message        string    `db:"message"`
	Timestamp      time.Time `db:"raised_at"`
	ActionRequired bool      `db:"action_required"`
}

// New builds an alert stamped with a fresh ID and the supplied time.
func New(level Level, message string, at time.Time, actionRequired bool) Alert {
	return Alert{
		ID:             uuid.New(),
		Level:          level,
		Message:        message,
		Timestamp:      at,
		ActionRequired: actionRequired,
	}
}
