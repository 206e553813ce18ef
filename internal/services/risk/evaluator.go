package risk

import (
	"fmt"
	"math"

	"aegis/internal/domain/alert"
	"aegis/internal/domain/position"
	"aegis/internal/metrics"
)

// Status classifies position health
type Status string

const (
	StatusHealthy  Status = "HEALTHY"
	StatusStable   Status = "STABLE"
	StatusWarning  Status = "WARNING"
	StatusCritical Status = "CRITICAL"
)

// Health factor classification bands
const (
	criticalBelow = 1.2
	warningBelow  = 1.5
	stableBelow   = 2.0
)

// Finding is a single condition detected during evaluation, consumed by the
// alert manager within the same cycle.
type Finding struct {
	Level          alert.Level
	Message        string
	ActionRequired bool
}

// Assessment is the transient per-cycle risk verdict. It is not persisted
// beyond the cycle that produced it.
type Assessment struct {
	Status               Status
	LiquidationRiskScore float64
	Findings             []Finding
	Recommendations      []string
}

// Evaluator classifies snapshots against fixed risk policy
type Evaluator struct {
	priceMoveThreshold float64
	ltvWarningLevel    float64
}

// NewEvaluator creates an evaluator. Thresholds are fractions: 0.10 means a
// 10% price move, 0.70 means 70% loan-to-value.
func NewEvaluator(priceMoveThreshold, ltvWarningLevel float64) *Evaluator {
	return &Evaluator{
		priceMoveThreshold: priceMoveThreshold,
		ltvWarningLevel:    ltvWarningLevel,
	}
}

// Evaluate classifies the current snapshot. previous may be nil on the first
// cycle; price-move detection is skipped in that case. Deterministic: no
// clock, no I/O.
func (e *Evaluator) Evaluate(current *position.Snapshot, previous *position.Snapshot) *Assessment {
	status := Classify(current.HealthFactor)
	score := LiquidationRiskScore(current.HealthFactor)

	a := &Assessment{
		Status:               status,
		LiquidationRiskScore: score,
		Recommendations:      recommendationsFor(status),
	}

	switch status {
	case StatusCritical:
		a.Findings = append(a.Findings, Finding{
			Level: alert.LevelCritical,
			Message: fmt.Sprintf("health factor %.4f below %.2f, liquidation risk score %.2f",
				current.HealthFactor, criticalBelow, score),
			ActionRequired: true,
		})
	case StatusWarning:
		a.Findings = append(a.Findings, Finding{
			Level: alert.LevelWarning,
			Message: fmt.Sprintf("health factor %.4f below %.2f, liquidation risk score %.2f",
				current.HealthFactor, warningBelow, score),
		})
	}

	if previous != nil && !previous.AssetPrice.IsZero() {
		change := current.AssetPrice.Sub(previous.AssetPrice).
			Div(previous.AssetPrice).InexactFloat64()
		if math.Abs(change) > e.priceMoveThreshold {
			a.Findings = append(a.Findings, Finding{
				Level:   alert.LevelWarning,
				Message: fmt.Sprintf("asset price moved %.2f%% since last cycle", change*100),
			})
		}
	}

	if current.LoanToValue > e.ltvWarningLevel {
		a.Findings = append(a.Findings, Finding{
			Level: alert.LevelWarning,
			Message: fmt.Sprintf("loan-to-value %.4f above %.2f",
				current.LoanToValue, e.ltvWarningLevel),
			ActionRequired: true,
		})
	}

	metrics.HealthFactor.Set(current.HealthFactor)
	metrics.LoanToValue.Set(current.LoanToValue)
	metrics.LiquidationRiskScore.Set(score)

	return a
}

// Classify maps a health factor onto the status table
func Classify(healthFactor float64) Status {
	switch {
	case healthFactor < criticalBelow:
		return StatusCritical
	case healthFactor < warningBelow:
		return StatusWarning
	case healthFactor < stableBelow:
		return StatusStable
	default:
		return StatusHealthy
	}
}

// LiquidationRiskScore maps a health factor onto [0,1]: 0 at hf >= 1.5,
// 1 at hf <= 1.0, linear in between.
func LiquidationRiskScore(healthFactor float64) float64 {
	score := (warningBelow - healthFactor) / 0.5
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func recommendationsFor(status Status) []string {
	switch status {
	case StatusCritical:
		return []string{
			"repay debt or add collateral immediately",
			"consider closing the position if funding is unavailable",
		}
	case StatusWarning:
		return []string{
			"prepare funds for a partial repay",
			"reduce leverage before the next price move",
		}
	case StatusStable:
		return []string{"review position sizing at next rebalance"}
	default:
		return []string{"continue monitoring"}
	}
}
