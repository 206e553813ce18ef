package monitor

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"aegis/internal/domain/alert"
	"aegis/internal/domain/position"
	"aegis/internal/services/risk"
)

// Trend of the health factor over the recent snapshot window
type Trend string

const (
	TrendImproving Trend = "IMPROVING"
	TrendDeclining Trend = "DECLINING"
	TrendStable    Trend = "STABLE"
)

const recentAlertLimit = 10

// healthTrendBand is the dead zone within which the trend reads STABLE
const healthTrendBand = 0.1

// Performance summarizes position economics over the retained window
type Performance struct {
	TotalPnL    decimal.Decimal
	DailyYield  decimal.Decimal
	HealthTrend Trend
}

// Dashboard is the structured query surface of the monitor. Rendering is the
// caller's concern; the service never writes output directly.
type Dashboard struct {
	State           State
	CurrentSnapshot *position.Snapshot
	RecentAlerts    []alert.Alert
	Performance     Performance
}

// Dashboard builds the current dashboard view. Safe to call while a cycle is
// appending: history reads are internally synchronized.
func (s *Service) Dashboard() *Dashboard {
	d := &Dashboard{
		State:        s.State(),
		RecentAlerts: s.alerts.Recent(recentAlertLimit),
		Performance: Performance{
			HealthTrend: s.healthTrend(),
		},
	}

	latest, ok := s.history.Latest()
	if !ok {
		return d
	}

	d.CurrentSnapshot = &latest
	d.Performance.TotalPnL = latest.NetPnL
	d.Performance.DailyYield = s.dailyYield()

	return d
}

// healthTrend compares the latest health factor against the third-most-recent
// one. Fewer than three snapshots reads STABLE.
func (s *Service) healthTrend() Trend {
	latest, ok := s.history.Latest()
	if !ok {
		return TrendStable
	}
	reference, ok := s.history.Back(2)
	if !ok {
		return TrendStable
	}

	delta := latest.HealthFactor - reference.HealthFactor
	switch {
	case delta > healthTrendBand:
		return TrendImproving
	case delta < -healthTrendBand:
		return TrendDeclining
	default:
		return TrendStable
	}
}

// dailyYield scales the PnL delta across the retained window to 24 hours
func (s *Service) dailyYield() decimal.Decimal {
	snaps := s.history.Snapshots()
	if len(snaps) < 2 {
		return decimal.Zero
	}

	oldest, newest := snaps[0], snaps[len(snaps)-1]
	elapsed := newest.Timestamp.Sub(oldest.Timestamp)
	if elapsed <= 0 {
		return decimal.Zero
	}

	delta := newest.NetPnL.Sub(oldest.NetPnL)
	scale := decimal.NewFromFloat(float64(24*time.Hour) / float64(elapsed))
	return delta.Mul(scale)
}

// Report renders the dashboard as stable, log- and notification-friendly text
func (s *Service) Report() string {
	d := s.Dashboard()

	var b strings.Builder
	b.WriteString("=== Position Monitor Report ===\n")
	fmt.Fprintf(&b, "State: %s\n", d.State)

	if d.CurrentSnapshot == nil {
		b.WriteString("No snapshot collected yet\n")
		return b.String()
	}

	snap := d.CurrentSnapshot
	fmt.Fprintf(&b, "As of: %s\n", snap.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(&b, "Status: %s\n", risk.Classify(snap.HealthFactor))
	fmt.Fprintf(&b, "Health factor: %s\n", formatRatio(snap.HealthFactor))
	fmt.Fprintf(&b, "Loan-to-value: %.2f%%\n", snap.LoanToValue*100)
	fmt.Fprintf(&b, "Collateral: %s @ %s\n",
		formatAmount(snap.CollateralAmount), formatAmount(snap.AssetPrice))
	fmt.Fprintf(&b, "Debt: %s\n", formatAmount(snap.DebtAmount))
	fmt.Fprintf(&b, "Liquidation price: %s\n", formatAmount(snap.LiquidationPrice))
	fmt.Fprintf(&b, "Total PnL: %s\n", formatAmount(d.Performance.TotalPnL))
	fmt.Fprintf(&b, "Daily yield: %s\n", formatAmount(d.Performance.DailyYield))
	fmt.Fprintf(&b, "Health trend: %s\n", d.Performance.HealthTrend)

	if len(d.RecentAlerts) > 0 {
		fmt.Fprintf(&b, "Recent alerts (%d):\n", len(d.RecentAlerts))
		for _, a := range d.RecentAlerts {
			marker := " "
			if a.ActionRequired {
				marker = "!"
			}
			fmt.Fprintf(&b, "  [%s]%s %s %s\n",
				a.Level, marker, a.Timestamp.Format("15:04:05"), a.Message)
		}
	}

	return b.String()
}

func formatAmount(d decimal.Decimal) string {
	return humanize.CommafWithDigits(d.InexactFloat64(), 4)
}

func formatRatio(f float64) string {
	if math.IsInf(f, 1) {
		return "∞ (no debt)"
	}
	return fmt.Sprintf("%.4f", f)
}
