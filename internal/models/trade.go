package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is one fill between a buy order and a sell order. It is written once
// by the settlement step and never modified.
type Trade struct {
	ID              int64           `json:"id"`
	Pair            string          `json:"pair"`
	BuyOrderID      int64           `json:"buy_order_id"`
	SellOrderID     int64           `json:"sell_order_id"`
	BuyerAccountID  int64           `json:"buyer_account_id"`
	SellerAccountID int64           `json:"seller_account_id"`
	Price           decimal.Decimal `json:"price"`
	Quantity        decimal.Decimal `json:"quantity"`
	TakerSide       Side            `json:"taker_side"`
	ExecutedAt      time.Time       `json:"executed_at"`
}

// Notional is quantity times price, the quote amount that changes hands.
func (t *Trade) Notional() decimal.Decimal {
	return t.Quantity.Mul(t.Price)
}

func (t *Trade) Validate() error {
	if t.BuyOrderID <= 0 {
		return &ValidationError{Field: "buy_order_id", Message: "must be greater than 0"}
	}
	if t.SellOrderID <= 0 {
		return &ValidationError{Field: "sell_order_id", Message: "must be greater than 0"}
	}
	if t.BuyOrderID == t.SellOrderID {
		return &ValidationError{Field: "sell_order_id", Message: "must differ from buy_order_id"}
	}
	if t.BuyerAccountID == t.SellerAccountID {
		return &ValidationError{Field: "seller_account_id", Message: "must differ from buyer_account_id"}
	}
	if !t.Price.IsPositive() {
		return &ValidationError{Field: "price", Message: "must be greater than 0"}
	}
	if !t.Quantity.IsPositive() {
		return &ValidationError{Field: "quantity", Message: "must be greater than 0"}
	}
	return nil
}
