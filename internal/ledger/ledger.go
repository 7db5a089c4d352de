// Package ledger defines the durable store the matching engine settles
// against: balances, orders and trades behind one transaction boundary.
package ledger

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/models"
)

var (
	ErrOrderNotFound = errors.New("ledger: order not found")
	// ErrNegativeBalance is returned by AdjustBalance when the delta would
	// take a balance below zero. Nothing is written in that case.
	ErrNegativeBalance = errors.New("ledger: balance would become negative")
)

// TxFunc is the unit of work executed inside one ledger transaction.
type TxFunc func(ctx context.Context, tx Tx) error

// Store is implemented by the Postgres and bbolt ledgers.
type Store interface {
	// WithTransaction runs fn atomically. If fn returns an error every write
	// it made is discarded.
	WithTransaction(ctx context.Context, fn TxFunc) error

	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	ListOrders(ctx context.Context, accountID int64) ([]*models.Order, error)
	// OpenOrders returns pending and partial limit orders ordered by
	// (created_at, id), the order they were admitted in.
	OpenOrders(ctx context.Context) ([]*models.Order, error)
	Balances(ctx context.Context, accountID int64) ([]*models.Balance, error)
	// RecentTrades returns the newest trades of a pair first.
	RecentTrades(ctx context.Context, pair string, limit int) ([]*models.Trade, error)

	Ping(ctx context.Context) error
	Close() error
}

// Tx is the set of operations available inside a transaction.
type Tx interface {
	// GetBalance returns zero for a row that does not exist yet.
	GetBalance(ctx context.Context, accountID int64, currency string) (decimal.Decimal, error)
	// AdjustBalance adds delta and returns the new balance.
	AdjustBalance(ctx context.Context, accountID int64, currency string, delta decimal.Decimal) (decimal.Decimal, error)
	// CommittedBalance sums what the account's open orders hold in currency.
	CommittedBalance(ctx context.Context, accountID int64, currency string) (decimal.Decimal, error)

	InsertOrder(ctx context.Context, o *models.Order) error
	UpdateOrder(ctx context.Context, o *models.Order) error
	GetOrder(ctx context.Context, id int64) (*models.Order, error)

	InsertTrade(ctx context.Context, t *models.Trade) error
}

// Commitment is the amount of currency an open order still holds: the
// unfilled quote for a limit buy, the unfilled base for a sell. A market
// order holds funds only until its match call has run; a partially filled
// market remainder is terminal and holds nothing.
func Commitment(o *models.Order, currency string) decimal.Decimal {
	if !o.Status.IsOpen() || (o.Type == models.Market && o.Status != models.Pending) {
		return decimal.Zero
	}
	switch o.Side {
	case models.Buy:
		if o.QuoteCurrency == currency && o.LimitPrice.Valid {
			return o.Remaining().Mul(o.LimitPrice.Decimal)
		}
	case models.Sell:
		if o.BaseCurrency == currency {
			return o.Remaining()
		}
	}
	return decimal.Zero
}
