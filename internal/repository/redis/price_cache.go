package redis

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"aegis/internal/adapters/redis"
	"aegis/pkg/errors"
)

const lastPriceKey = "aegis:last_price"

// PriceCache keeps the last known asset price so a poll cycle can fall back
// to it when the live price feed is unavailable.
type PriceCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPriceCache creates a new price cache
func NewPriceCache(client *redis.Client, ttl time.Duration) *PriceCache {
	return &PriceCache{client: client, ttl: ttl}
}

type cachedPrice struct {
	Price    decimal.Decimal `json:"price"`
	CachedAt time.Time       `json:"cached_at"`
}

// Store records the latest observed price
func (c *PriceCache) Store(ctx context.Context, price decimal.Decimal, at time.Time) error {
	return c.client.Set(ctx, lastPriceKey, cachedPrice{Price: price, CachedAt: at}, c.ttl)
}

// Last returns the last known price. ErrNoPriceAvailable is returned when the
// cache holds nothing, typically on first startup.
func (c *PriceCache) Last(ctx context.Context) (decimal.Decimal, error) {
	var cached cachedPrice
	if err := c.client.Get(ctx, lastPriceKey, &cached); err != nil {
		return decimal.Zero, errors.Wrap(errors.ErrNoPriceAvailable, err.Error())
	}
	return cached.Price, nil
}
