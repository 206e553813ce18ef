package position

import (
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is a point-in-time view of the monitored lending position.
// Values are immutable once the snapshot is built; exactly one snapshot is
// produced per successful poll cycle.
type Snapshot struct {
	Timestamp        time.Time       `db:"taken_at"`
	CollateralAmount decimal.Decimal `db:"collateral_amount"`
	DebtAmount       decimal.Decimal `db:"debt_amount"`
	AssetPrice       decimal.Decimal `db:"asset_price"`
	LiquidationPrice decimal.Decimal `db:"liquidation_price"`
	NetPnL           decimal.Decimal `db:"net_pnl"`

	// Dimensionless ratios. HealthFactor is +Inf when the position carries
	// no debt.
	HealthFactor float64 `db:"health_factor"`
	LoanToValue  float64 `db:"loan_to_value"`
}

// Account is the raw collateral/debt pair reported by the position source.
type Account struct {
	Collateral decimal.Decimal
	Debt       decimal.Decimal
}

// RepayReceipt is the result of a submitted repay transaction.
type RepayReceipt struct {
	Success bool
	TxRef   string
}
