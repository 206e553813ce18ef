package emergency

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"

	"aegis/internal/adapters/config"
	"aegis/internal/adapters/kafka"
	"aegis/internal/domain/position"
	"aegis/internal/metrics"
	"aegis/pkg/errors"
	"aegis/pkg/logger"
)

// EventPublisher is implemented by the kafka producer
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key string, event interface{}) error
}

// Action is the outcome of one emergency trigger. Insufficient funding is a
// reported condition here, never an error.
type Action struct {
	RepayAmount           decimal.Decimal `json:"repay_amount"`
	PreHealthFactor       float64         `json:"pre_health_factor"`
	ProjectedHealthFactor float64         `json:"projected_health_factor"`
	FundingSufficient     bool            `json:"funding_sufficient"`
	Executed              bool            `json:"executed"`
	TxRef                 string          `json:"tx_ref,omitempty"`
}

// Controller runs the emergency deleverage procedure when a cycle classifies
// CRITICAL. Default behavior is dry-run: the repay is computed and reported
// but submitted only when auto-execution was explicitly enabled.
type Controller struct {
	source   position.Source
	address  string
	cfg      config.EmergencyConfig
	protocol config.ProtocolConfig
	events   EventPublisher
	log      *logger.Logger
}

// NewController creates an emergency controller
func NewController(
	source position.Source,
	address string,
	cfg config.EmergencyConfig,
	protocol config.ProtocolConfig,
	events EventPublisher,
) *Controller {
	return &Controller{
		source:   source,
		address:  address,
		cfg:      cfg,
		protocol: protocol,
		events:   events,
		log:      logger.Get().With("component", "emergency"),
	}
}

// Trigger computes a partial repay for the given snapshot, checks funding
// sufficiency against the wallet balance, and submits the repay only when
// both funding suffices and auto-execution is enabled. The returned Action
// describes what was (or would have been) done. The error path is reserved
// for balance-query and repay-submission failures.
func (c *Controller) Trigger(ctx context.Context, snap *position.Snapshot) (*Action, error) {
	repay := snap.DebtAmount.Mul(decimal.NewFromFloat(c.cfg.RepayFraction))

	action := &Action{
		RepayAmount:           repay,
		PreHealthFactor:       snap.HealthFactor,
		ProjectedHealthFactor: c.projectHealthFactor(snap, repay),
	}

	balance, err := c.source.GetBalance(ctx, c.address)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query balance")
	}

	required := repay.Add(decimal.NewFromFloat(c.cfg.GasReserve))
	action.FundingSufficient = balance.GreaterThanOrEqual(required)

	c.log.Warnw("Emergency procedure triggered",
		"repay_amount", repay,
		"pre_health_factor", action.PreHealthFactor,
		"projected_health_factor", action.ProjectedHealthFactor,
		"balance", balance,
		"funding_sufficient", action.FundingSufficient,
		"auto_execute", c.cfg.AutoExecute,
	)

	if action.FundingSufficient && c.cfg.AutoExecute {
		receipt, err := c.source.Repay(ctx, repay)
		if err != nil {
			return nil, errors.Wrap(err, "failed to submit repay")
		}
		action.Executed = receipt.Success
		action.TxRef = receipt.TxRef
	}

	metrics.EmergencyTriggers.WithLabelValues(strconv.FormatBool(action.Executed)).Inc()
	c.publish(ctx, action)

	return action, nil
}

// Describe renders the action for an INFO recommendation alert
func (a *Action) Describe() string {
	verb := "recommended"
	if a.Executed {
		verb = "executed"
	}
	msg := fmt.Sprintf("emergency repay %s: amount %s, projected health factor %.4f",
		verb, a.RepayAmount.StringFixed(4), a.ProjectedHealthFactor)
	if !a.FundingSufficient {
		msg += " (insufficient funding)"
	}
	return msg
}

// projectHealthFactor recomputes the health factor as if the repay had
// settled. A repay clearing the whole debt projects to +Inf.
func (c *Controller) projectHealthFactor(snap *position.Snapshot, repay decimal.Decimal) float64 {
	remaining := snap.DebtAmount.Sub(repay)
	if remaining.LessThanOrEqual(decimal.Zero) {
		return math.Inf(1)
	}
	lt := decimal.NewFromFloat(c.protocol.LiquidationThreshold)
	return snap.CollateralAmount.Mul(lt).Div(remaining).InexactFloat64()
}

func (c *Controller) publish(ctx context.Context, action *Action) {
	if c.events == nil {
		return
	}
	if err := c.events.Publish(ctx, kafka.TopicRiskEmergency, c.address, action); err != nil {
		c.log.Warnw("Failed to publish emergency event", "error", err)
	}
}
