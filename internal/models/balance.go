package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Balance is one account's holding of one currency.
type Balance struct {
	AccountID int64           `json:"account_id"`
	Currency  string          `json:"currency"`
	Amount    decimal.Decimal `json:"amount"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// BalanceView adds the portion of a balance held by open orders.
type BalanceView struct {
	Balance
	Committed decimal.Decimal `json:"committed"`
	Available decimal.Decimal `json:"available"`
}

// BalanceKey identifies a balance row.
type BalanceKey struct {
	AccountID int64
	Currency  string
}

// Less orders balance keys by account then currency. Settlement touches rows
// in this order.
func (k BalanceKey) Less(o BalanceKey) bool {
	if k.AccountID != o.AccountID {
		return k.AccountID < o.AccountID
	}
	return k.Currency < o.Currency
}
