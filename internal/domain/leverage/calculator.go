package leverage

import (
	"math"

	"github.com/shopspring/decimal"

	"aegis/pkg/errors"
)

// Params is the pure output of the leverage sizing calculation. It has no
// owner and is recomputed on demand.
type Params struct {
	CollateralAmount decimal.Decimal
	TargetLeverage   float64
	SafetyBuffer     float64

	MaxBorrowAmount  decimal.Decimal
	SafeBorrowAmount decimal.Decimal
	LiquidationPrice decimal.Decimal
	ResultingLTV     float64
	HealthFactor     float64
}

// YieldBreakdown decomposes the net APY of a leveraged position.
type YieldBreakdown struct {
	GrossYield decimal.Decimal
	BorrowCost decimal.Decimal
	NetYield   decimal.Decimal
	NetAPY     float64
}

// ComputeLeverageParams sizes a leveraged borrow against supplied collateral.
//
//	maxBorrow  = collateral * protocolLTV
//	safeBorrow = maxBorrow * (1 - safetyBuffer)
//	healthFactor = collateral * liquidationThreshold / safeBorrow
//	liquidationPrice = safeBorrow / (collateral * liquidationThreshold)
//
// Deterministic: identical inputs always yield identical outputs.
func ComputeLeverageParams(
	collateral decimal.Decimal,
	targetLeverage float64,
	safetyBuffer float64,
	protocolLTV float64,
	liquidationThreshold float64,
) (*Params, error) {
	if collateral.LessThanOrEqual(decimal.Zero) {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "collateral must be positive, got %s", collateral)
	}
	if targetLeverage <= 1 {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "target leverage must exceed 1, got %v", targetLeverage)
	}
	if safetyBuffer < 0 || safetyBuffer >= 1 {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "safety buffer must be in [0,1), got %v", safetyBuffer)
	}
	if protocolLTV <= 0 || protocolLTV > 1 {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "protocol LTV must be in (0,1], got %v", protocolLTV)
	}
	if liquidationThreshold <= 0 || liquidationThreshold > 1 {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "liquidation threshold must be in (0,1], got %v", liquidationThreshold)
	}

	maxBorrow := collateral.Mul(decimal.NewFromFloat(protocolLTV))
	safeBorrow := maxBorrow.Mul(decimal.NewFromFloat(1 - safetyBuffer))
	adjustedCollateral := collateral.Mul(decimal.NewFromFloat(liquidationThreshold))

	params := &Params{
		CollateralAmount: collateral,
		TargetLeverage:   targetLeverage,
		SafetyBuffer:     safetyBuffer,
		MaxBorrowAmount:  maxBorrow,
		SafeBorrowAmount: safeBorrow,
		ResultingLTV:     safeBorrow.Div(collateral).InexactFloat64(),
		HealthFactor:     HealthFactor(collateral, safeBorrow, liquidationThreshold),
		LiquidationPrice: safeBorrow.Div(adjustedCollateral),
	}

	return params, nil
}

// ComputeNetAPY derives the yield breakdown of a leveraged position.
//
//	netAPY = (collateral*supplyAPY + borrowed*yieldAPY - borrowed*borrowAPY) / collateral
func ComputeNetAPY(
	collateral, borrowed decimal.Decimal,
	supplyAPY, borrowAPY, yieldAPY float64,
) (*YieldBreakdown, error) {
	if collateral.IsZero() {
		return nil, errors.Wrap(errors.ErrInvalidInput, "collateral must be non-zero")
	}

	gross := collateral.Mul(decimal.NewFromFloat(supplyAPY)).
		Add(borrowed.Mul(decimal.NewFromFloat(yieldAPY)))
	cost := borrowed.Mul(decimal.NewFromFloat(borrowAPY))
	net := gross.Sub(cost)

	return &YieldBreakdown{
		GrossYield: gross,
		BorrowCost: cost,
		NetYield:   net,
		NetAPY:     net.Div(collateral).InexactFloat64(),
	}, nil
}

// ComputeLiquidationPrice returns debt / (collateral * liquidationThreshold).
// Degenerate inputs (no collateral, zero threshold) yield zero.
func ComputeLiquidationPrice(collateral, debt decimal.Decimal, liquidationThreshold float64) decimal.Decimal {
	adjusted := collateral.Mul(decimal.NewFromFloat(liquidationThreshold))
	if adjusted.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return debt.Div(adjusted)
}

// HealthFactor returns collateral * liquidationThreshold / debt. A position
// with no debt cannot be liquidated, so the health factor is +Inf.
func HealthFactor(collateral, debt decimal.Decimal, liquidationThreshold float64) float64 {
	if debt.LessThanOrEqual(decimal.Zero) {
		return math.Inf(1)
	}
	return collateral.Mul(decimal.NewFromFloat(liquidationThreshold)).Div(debt).InexactFloat64()
}
