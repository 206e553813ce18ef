package collector

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aegis/internal/adapters/config"
	"aegis/internal/domain/position"
	"aegis/pkg/errors"
)

type mockSource struct {
	account     *position.Account
	accountErr  error
	price       decimal.Decimal
	priceErr    error
	priceCalls  int
}

func (m *mockSource) GetPosition(ctx context.Context, address string) (*position.Account, error) {
	if m.accountErr != nil {
		return nil, m.accountErr
	}
	return m.account, nil
}

func (m *mockSource) GetPrice(ctx context.Context) (decimal.Decimal, error) {
	m.priceCalls++
	if m.priceErr != nil {
		return decimal.Zero, m.priceErr
	}
	return m.price, nil
}

func (m *mockSource) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	return decimal.Zero, errors.ErrSourceUnavailable
}

func (m *mockSource) Repay(ctx context.Context, amount decimal.Decimal) (*position.RepayReceipt, error) {
	return nil, errors.ErrSourceUnavailable
}

type mockPriceCache struct {
	stored   []decimal.Decimal
	last     decimal.Decimal
	lastErr  error
	storeErr error
}

func (m *mockPriceCache) Store(ctx context.Context, price decimal.Decimal, at time.Time) error {
	m.stored = append(m.stored, price)
	return m.storeErr
}

func (m *mockPriceCache) Last(ctx context.Context) (decimal.Decimal, error) {
	if m.lastErr != nil {
		return decimal.Zero, m.lastErr
	}
	return m.last, nil
}

func protocol() config.ProtocolConfig {
	return config.ProtocolConfig{
		LiquidationThreshold: 0.8,
		BorrowAPY:            0.0365,
		EntryPrice:           90,
	}
}

func healthySource() *mockSource {
	return &mockSource{
		account: &position.Account{
			Collateral: decimal.NewFromInt(10),
			Debt:       decimal.NewFromInt(5),
		},
		price: decimal.NewFromInt(100),
	}
}

func TestCollect_BuildsSnapshot(t *testing.T) {
	history := position.NewHistory(100)
	c := NewCollector(healthySource(), history, "0xposition", protocol())

	snap, err := c.Collect(context.Background())
	require.NoError(t, err)

	assert.True(t, snap.CollateralAmount.Equal(decimal.NewFromInt(10)))
	assert.True(t, snap.DebtAmount.Equal(decimal.NewFromInt(5)))
	assert.True(t, snap.AssetPrice.Equal(decimal.NewFromInt(100)))

	// hf = 10*0.8/5, ltv = 5/10, liqPrice = 5/(10*0.8)
	assert.InDelta(t, 1.6, snap.HealthFactor, 1e-9)
	assert.InDelta(t, 0.5, snap.LoanToValue, 1e-9)
	assert.InDelta(t, 0.625, snap.LiquidationPrice.InexactFloat64(), 1e-9)

	// netPnL = 10*100 - 10*90 - 5*100*0.0365/365 = 99.95
	assert.InDelta(t, 99.95, snap.NetPnL.InexactFloat64(), 1e-9)

	assert.Equal(t, 1, history.Len())
	assert.False(t, snap.Timestamp.IsZero())
}

func TestCollect_SourceUnavailableLeavesHistoryUntouched(t *testing.T) {
	source := healthySource()
	source.accountErr = errors.ErrSourceUnavailable

	history := position.NewHistory(100)
	c := NewCollector(source, history, "0xposition", protocol())

	_, err := c.Collect(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSourceUnavailable))
	assert.Equal(t, 0, history.Len())
}

func TestCollect_ZeroCollateralIsDegenerate(t *testing.T) {
	source := healthySource()
	source.account = &position.Account{
		Collateral: decimal.Zero,
		Debt:       decimal.NewFromInt(5),
	}

	history := position.NewHistory(100)
	c := NewCollector(source, history, "0xposition", protocol())

	_, err := c.Collect(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDegenerateState))
	assert.Equal(t, 0, history.Len())
}

func TestCollect_FallsBackToLastKnownPrice(t *testing.T) {
	source := healthySource()
	history := position.NewHistory(100)
	c := NewCollector(source, history, "0xposition", protocol())

	_, err := c.Collect(context.Background())
	require.NoError(t, err)

	// price feed goes down; the last observed price carries the cycle
	source.priceErr = errors.ErrSourceUnavailable

	snap, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.AssetPrice.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, 2, history.Len())
}

func TestCollect_NoPriceEverObservedFailsCycle(t *testing.T) {
	source := healthySource()
	source.priceErr = errors.ErrSourceUnavailable

	history := position.NewHistory(100)
	c := NewCollector(source, history, "0xposition", protocol())

	_, err := c.Collect(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, history.Len())
}

func TestCollect_PriceCacheRoundTrip(t *testing.T) {
	source := healthySource()
	cache := &mockPriceCache{lastErr: errors.ErrNoPriceAvailable}

	history := position.NewHistory(100)
	c := NewCollector(source, history, "0xposition", protocol(), WithPriceCache(cache))

	_, err := c.Collect(context.Background())
	require.NoError(t, err)

	require.Len(t, cache.stored, 1)
	assert.True(t, cache.stored[0].Equal(decimal.NewFromInt(100)))
}

func TestCollect_CachedPriceSurvivesRestart(t *testing.T) {
	// fresh collector with no in-memory price, but a warm cache
	source := healthySource()
	source.priceErr = errors.ErrSourceUnavailable
	cache := &mockPriceCache{last: decimal.NewFromInt(95)}

	history := position.NewHistory(100)
	c := NewCollector(source, history, "0xposition", protocol(), WithPriceCache(cache))

	snap, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.AssetPrice.Equal(decimal.NewFromInt(95)))
}

func TestCollect_CacheStoreFailureIsNonFatal(t *testing.T) {
	source := healthySource()
	cache := &mockPriceCache{storeErr: errors.ErrUnavailable}

	history := position.NewHistory(100)
	c := NewCollector(source, history, "0xposition", protocol(), WithPriceCache(cache))

	_, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, history.Len())
}
