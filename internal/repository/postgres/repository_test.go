package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aegis/internal/domain/alert"
	"aegis/internal/domain/position"
)

const testSchema = `
CREATE TABLE IF NOT EXISTS position_snapshots (
	taken_at          TIMESTAMPTZ NOT NULL,
	collateral_amount NUMERIC NOT NULL,
	debt_amount       NUMERIC NOT NULL,
	asset_price       NUMERIC NOT NULL,
	liquidation_price NUMERIC NOT NULL,
	net_pnl           NUMERIC NOT NULL,
	health_factor     DOUBLE PRECISION NOT NULL,
	loan_to_value     DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS alerts (
	id              UUID PRIMARY KEY,
	level           TEXT NOT NULL,
	message         TEXT NOT NULL,
	raised_at       TIMESTAMPTZ NOT NULL,
	action_required BOOLEAN NOT NULL
);
`

// testDB connects to the database named by TEST_POSTGRES_DSN. Integration
// tests skip when the variable is unset or in short mode.
func testDB(t *testing.T) *sqlx.DB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	db.MustExec("TRUNCATE position_snapshots, alerts")
	return db
}

func TestSnapshotRepository_SaveAndLoadRecent(t *testing.T) {
	db := testDB(t)
	repo := NewSnapshotRepository(db)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i := 0; i < 5; i++ {
		snap := &position.Snapshot{
			Timestamp:        base.Add(time.Duration(i) * time.Minute),
			CollateralAmount: decimal.NewFromInt(150),
			DebtAmount:       decimal.NewFromInt(int64(90 + i)),
			AssetPrice:       decimal.NewFromInt(2000),
			LiquidationPrice: decimal.NewFromFloat(0.75),
			NetPnL:           decimal.NewFromInt(int64(i)),
			HealthFactor:     1.4,
			LoanToValue:      0.6,
		}
		require.NoError(t, repo.Save(ctx, snap))
	}

	loaded, err := repo.LoadRecent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, loaded, 3)

	// oldest first, window holds the 3 newest rows
	assert.True(t, loaded[0].DebtAmount.Equal(decimal.NewFromInt(92)))
	assert.True(t, loaded[2].DebtAmount.Equal(decimal.NewFromInt(94)))
	assert.True(t, loaded[0].Timestamp.Before(loaded[2].Timestamp))
}

func TestAlertRepository_SaveAndLoadRecent(t *testing.T) {
	db := testDB(t)
	repo := NewAlertRepository(db)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Microsecond)
	levels := []alert.Level{alert.LevelInfo, alert.LevelWarning, alert.LevelCritical}
	for i, level := range levels {
		a := alert.New(level, "test alert", base.Add(time.Duration(i)*time.Second), level == alert.LevelCritical)
		require.NoError(t, repo.Save(ctx, &a))
	}

	loaded, err := repo.LoadRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, loaded, 3)

	assert.Equal(t, alert.LevelInfo, loaded[0].Level)
	assert.Equal(t, alert.LevelCritical, loaded[2].Level)
	assert.True(t, loaded[2].ActionRequired)
}
