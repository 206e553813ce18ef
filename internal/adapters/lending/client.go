package lending

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"aegis/internal/adapters/config"
	"aegis/internal/domain/position"
	"aegis/internal/metrics"
	"aegis/pkg/errors"
	"aegis/pkg/logger"
)

// Compile-time check
var _ position.Source = (*Client)(nil)

// Client implements position.Source against a lending-protocol gateway over
// HTTP. All requests pass through a rate limiter and are reported as
// ErrSourceUnavailable on transport or protocol failure.
type Client struct {
	endpoint string
	http     *http.Client
	limiter  *rate.Limiter
	log      *logger.Logger
}

// NewClient creates a lending gateway client
func NewClient(cfg config.LendingConfig) *Client {
	rps := float64(cfg.RequestsPerMinute) / 60.0
	burst := cfg.RequestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}

	return &Client{
		endpoint: cfg.Endpoint,
		http:     &http.Client{Timeout: cfg.RequestTimeout},
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
		log:      logger.Get().With("component", "lending_client"),
	}
}

type positionResponse struct {
	Collateral decimal.Decimal `json:"collateral"`
	Debt       decimal.Decimal `json:"debt"`
}

type priceResponse struct {
	Price decimal.Decimal `json:"price"`
}

type balanceResponse struct {
	Balance decimal.Decimal `json:"balance"`
}

type repayRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type repayResponse struct {
	Success bool   `json:"success"`
	TxRef   string `json:"tx_ref"`
}

// GetPosition returns the collateral/debt pair for an address
func (c *Client) GetPosition(ctx context.Context, address string) (*position.Account, error) {
	var resp positionResponse
	err := c.get(ctx, "get_position", fmt.Sprintf("/v1/positions/%s", address), &resp)
	if err != nil {
		return nil, err
	}

	return &position.Account{
		Collateral: resp.Collateral,
		Debt:       resp.Debt,
	}, nil
}

// GetPrice returns the current collateral asset price
func (c *Client) GetPrice(ctx context.Context) (decimal.Decimal, error) {
	var resp priceResponse
	if err := c.get(ctx, "get_price", "/v1/price", &resp); err != nil {
		return decimal.Zero, err
	}
	return resp.Price, nil
}

// GetBalance returns the wallet balance for an address
func (c *Client) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	var resp balanceResponse
	if err := c.get(ctx, "get_balance", fmt.Sprintf("/v1/balances/%s", address), &resp); err != nil {
		return decimal.Zero, err
	}
	return resp.Balance, nil
}

// Repay submits a debt repayment
func (c *Client) Repay(ctx context.Context, amount decimal.Decimal) (*position.RepayReceipt, error) {
	var resp repayResponse
	if err := c.post(ctx, "repay", "/v1/repay", repayRequest{Amount: amount}, &resp); err != nil {
		return nil, err
	}

	return &position.RepayReceipt{
		Success: resp.Success,
		TxRef:   resp.TxRef,
	}, nil
}

func (c *Client) get(ctx context.Context, method, path string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+path, nil)
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
	return c.do(req, method, dest)
}

func (c *Client) post(ctx context.Context, method, path string, body, dest interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "failed to marshal request body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(data))
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, method, dest)
}

func (c *Client) do(req *http.Request, method string, dest interface{}) error {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return errors.Wrap(err, "rate limiter")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.RecordSourceCall(method, time.Since(start), err)

	if err != nil {
		return errors.Wrapf(errors.ErrSourceUnavailable, "%s: %v", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Wrapf(errors.ErrSourceUnavailable, "%s: gateway returned %d", method, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return errors.Wrapf(errors.ErrSourceUnavailable, "%s: malformed response: %v", method, err)
	}

	return nil
}
