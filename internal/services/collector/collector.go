package collector

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"aegis/internal/adapters/config"
	"aegis/internal/adapters/kafka"
	"aegis/internal/domain/leverage"
	"aegis/internal/domain/position"
	"aegis/pkg/errors"
	"aegis/pkg/logger"
)

// PriceCache is implemented by the redis last-known-price repository
type PriceCache interface {
	Store(ctx context.Context, price decimal.Decimal, at time.Time) error
	Last(ctx context.Context) (decimal.Decimal, error)
}

// SnapshotStore is implemented by the postgres snapshot repository
type SnapshotStore interface {
	Save(ctx context.Context, snap *position.Snapshot) error
}

// SnapshotArchive is implemented by the clickhouse snapshot archive
type SnapshotArchive interface {
	Archive(ctx context.Context, snaps []position.Snapshot) error
}

// EventPublisher is implemented by the kafka producer
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key string, event interface{}) error
}

// Collector produces exactly one position snapshot per successful call and
// appends it to the bounded history. Persistence and event publication are
// best-effort: only a source failure or a degenerate position aborts a cycle.
type Collector struct {
	source   position.Source
	history  *position.History
	address  string
	protocol config.ProtocolConfig

	// optional sinks, any of which may be nil
	priceCache PriceCache
	store      SnapshotStore
	archive    SnapshotArchive
	events     EventPublisher

	// in-memory fallback when redis is disabled
	lastPrice    decimal.Decimal
	hasLastPrice bool

	log *logger.Logger
}

// Option configures optional collector sinks
type Option func(*Collector)

// WithPriceCache attaches a persistent last-known-price cache
func WithPriceCache(cache PriceCache) Option {
	return func(c *Collector) { c.priceCache = cache }
}

// WithSnapshotStore attaches a snapshot persistence sink
func WithSnapshotStore(store SnapshotStore) Option {
	return func(c *Collector) { c.store = store }
}

// WithSnapshotArchive attaches an analytical archive sink
func WithSnapshotArchive(archive SnapshotArchive) Option {
	return func(c *Collector) { c.archive = archive }
}

// WithEventPublisher attaches a kafka event sink
func WithEventPublisher(events EventPublisher) Option {
	return func(c *Collector) { c.events = events }
}

// NewCollector creates a snapshot collector for a single monitored address
func NewCollector(
	source position.Source,
	history *position.History,
	address string,
	protocol config.ProtocolConfig,
	opts ...Option,
) *Collector {
	c := &Collector{
		source:   source,
		history:  history,
		address:  address,
		protocol: protocol,
		log:      logger.Get().With("component", "collector"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect queries the position source, derives risk figures and appends one
// snapshot to the history. On source failure nothing is appended and the
// error is reported as ErrSourceUnavailable; a failed price read alone falls
// back to the last known price instead of aborting.
func (c *Collector) Collect(ctx context.Context) (*position.Snapshot, error) {
	account, err := c.source.GetPosition(ctx, c.address)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query position")
	}

	price, err := c.resolvePrice(ctx)
	if err != nil {
		return nil, err
	}

	if account.Collateral.LessThanOrEqual(decimal.Zero) {
		return nil, errors.Wrapf(errors.ErrDegenerateState,
			"position %s has no collateral", c.address)
	}

	lt := c.protocol.LiquidationThreshold
	entryPrice := decimal.NewFromFloat(c.protocol.EntryPrice)
	borrowAPY := decimal.NewFromFloat(c.protocol.BorrowAPY)

	// netPnL = collateral*price - collateral*entryPrice - dailyBorrowCost
	marketValue := account.Collateral.Mul(price)
	entryValue := account.Collateral.Mul(entryPrice)
	dailyBorrowCost := account.Debt.Mul(price).Mul(borrowAPY).Div(decimal.NewFromInt(365))

	snap := position.Snapshot{
		Timestamp:        time.Now().UTC(),
		CollateralAmount: account.Collateral,
		DebtAmount:       account.Debt,
		AssetPrice:       price,
		HealthFactor:     leverage.HealthFactor(account.Collateral, account.Debt, lt),
		LoanToValue:      account.Debt.Div(account.Collateral).InexactFloat64(),
		LiquidationPrice: leverage.ComputeLiquidationPrice(account.Collateral, account.Debt, lt),
		NetPnL:           marketValue.Sub(entryValue).Sub(dailyBorrowCost),
	}

	c.history.Append(snap)
	c.persist(ctx, &snap)

	return &snap, nil
}

// resolvePrice reads the live price, falling back to the last known one when
// the feed is down. The cycle fails only when no price was ever observed.
func (c *Collector) resolvePrice(ctx context.Context) (decimal.Decimal, error) {
	price, err := c.source.GetPrice(ctx)
	if err == nil {
		c.lastPrice = price
		c.hasLastPrice = true
		if c.priceCache != nil {
			if cacheErr := c.priceCache.Store(ctx, price, time.Now().UTC()); cacheErr != nil {
				c.log.Warnw("Failed to cache price", "error", cacheErr)
			}
		}
		return price, nil
	}

	c.log.Warnw("Price feed unavailable, falling back to last known price", "error", err)

	if c.priceCache != nil {
		if cached, cacheErr := c.priceCache.Last(ctx); cacheErr == nil {
			return cached, nil
		}
	}
	if c.hasLastPrice {
		return c.lastPrice, nil
	}

	return decimal.Zero, errors.Wrap(err, "no price available")
}

func (c *Collector) persist(ctx context.Context, snap *position.Snapshot) {
	if c.store != nil {
		if err := c.store.Save(ctx, snap); err != nil {
			c.log.Warnw("Failed to persist snapshot", "error", err)
		}
	}
	if c.archive != nil {
		if err := c.archive.Archive(ctx, []position.Snapshot{*snap}); err != nil {
			c.log.Warnw("Failed to archive snapshot", "error", err)
		}
	}
	if c.events != nil {
		if err := c.events.Publish(ctx, kafka.TopicSnapshotTaken, c.address, snap); err != nil {
			c.log.Warnw("Failed to publish snapshot event", "error", err)
		}
	}
}
