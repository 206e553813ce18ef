package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"aegis/internal/domain/alert"
)

// AlertRepository persists raised alerts using sqlx
type AlertRepository struct {
	db *sqlx.DB
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *sqlx.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Save stores an alert
func (r *AlertRepository) Save(ctx context.Context, a *alert.Alert) error {
	query := `
		INSERT INTO alerts (id, level, message, raised_at, action_required)
		VALUES (:id, :level, :message, :raised_at, :action_required)`

	_, err := r.db.NamedExecContext(ctx, query, a)
	return err
}

// LoadRecent returns up to limit alerts ordered oldest first
func (r *AlertRepository) LoadRecent(ctx context.Context, limit int) ([]alert.Alert, error) {
	var alerts []alert.Alert

	query := `
		SELECT id, level, message, raised_at, action_required
		FROM (
			SELECT * FROM alerts ORDER BY raised_at DESC LIMIT $1
		) recent
		ORDER BY raised_at ASC`

	if err := r.db.SelectContext(ctx, &alerts, query, limit); err != nil {
		return nil, err
	}

	return alerts, nil
}
