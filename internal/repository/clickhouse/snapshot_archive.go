package clickhouse

import (
	"context"

	"aegis/internal/adapters/clickhouse"
	"aegis/internal/domain/position"
	"aegis/pkg/errors"
)

// SnapshotArchive writes position snapshots to ClickHouse for long-term
// analytical storage, beyond the bounded in-memory history.
type SnapshotArchive struct {
	client *clickhouse.Client
}

// NewSnapshotArchive creates a new snapshot archive
func NewSnapshotArchive(client *clickhouse.Client) *SnapshotArchive {
	return &SnapshotArchive{client: client}
}

// Archive inserts a batch of snapshots
func (a *SnapshotArchive) Archive(ctx context.Context, snaps []position.Snapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	batch, err := a.client.Conn().PrepareBatch(ctx, `
		INSERT INTO position_snapshots (
			taken_at, collateral_amount, debt_amount, asset_price,
			liquidation_price, net_pnl, health_factor, loan_to_value
		)`)
	if err != nil {
		return errors.Wrap(err, "failed to prepare batch")
	}

	for _, s := range snaps {
		err = batch.Append(
			s.Timestamp,
			s.CollateralAmount.InexactFloat64(),
			s.DebtAmount.InexactFloat64(),
			s.AssetPrice.InexactFloat64(),
			s.LiquidationPrice.InexactFloat64(),
			s.NetPnL.InexactFloat64(),
			s.HealthFactor,
			s.LoanToValue,
		)
		if err != nil {
			return errors.Wrap(err, "failed to append snapshot")
		}
	}

	if err := batch.Send(); err != nil {
		return errors.Wrap(err, "failed to send batch")
	}

	return nil
}
