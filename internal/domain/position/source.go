package position

import (
	"context"

	"github.com/shopspring/decimal"
)

// Source is the lending-protocol boundary the monitor polls. Implementations
// live in the adapter layer; all methods may block on I/O and should honor
// context cancellation. Network or protocol failures are reported as
// errors.ErrSourceUnavailable.
type Source interface {
	// GetPosition returns the collateral/debt pair for an address
	GetPosition(ctx context.Context, address string) (*Account, error)

	// GetPrice returns the current collateral asset price
	GetPrice(ctx context.Context) (decimal.Decimal, error)

	// GetBalance returns the wallet balance available for repayments
	GetBalance(ctx context.Context, address string) (decimal.Decimal, error)

	// Repay submits a debt repayment. Only the emergency controller calls
	// this, and only when auto-execution is explicitly enabled.
	Repay(ctx context.Context, amount decimal.Decimal) (*RepayReceipt, error)
}
