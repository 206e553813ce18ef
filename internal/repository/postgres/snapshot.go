package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"aegis/internal/domain/position"
)

// SnapshotRepository persists position snapshots using sqlx
type SnapshotRepository struct {
	db *sqlx.DB
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *sqlx.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Save stores a snapshot
func (r *SnapshotRepository) Save(ctx context.Context, snap *position.Snapshot) error {
	query := `
		INSERT INTO position_snapshots (
			taken_at, collateral_amount, debt_amount, asset_price,
			liquidation_price, net_pnl, health_factor, loan_to_value
		) VALUES (
			:taken_at, :collateral_amount, :debt_amount, :asset_price,
			:liquidation_price, :net_pnl, :health_factor, :loan_to_value
		)`

	_, err := r.db.NamedExecContext(ctx, query, snap)
	return err
}

// LoadRecent returns up to limit snapshots ordered oldest first, so they can
// be replayed into an in-memory history after a restart.
func (r *SnapshotRepository) LoadRecent(ctx context.Context, limit int) ([]position.Snapshot, error) {
	var snaps []position.Snapshot

	query := `
		SELECT taken_at, collateral_amount, debt_amount, asset_price,
		       liquidation_price, net_pnl, health_factor, loan_to_value
		FROM (
			SELECT * FROM position_snapshots ORDER BY taken_at DESC LIMIT $1
		) recent
		ORDER BY taken_at ASC`

	if err := r.db.SelectContext(ctx, &snaps, query, limit); err != nil {
		return nil, err
	}

	return snaps, nil
}
