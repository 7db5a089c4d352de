package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Opposite returns the side an order of this side trades against.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

func (s Side) IsValid() bool {
	return s == Buy || s == Sell
}

type OrderType string

const (
	Market OrderType = "market"
	Limit  OrderType = "limit"
)

func (t OrderType) IsValid() bool {
	return t == Market || t == Limit
}

type Status string

const (
	Pending   Status = "pending"
	Partial   Status = "partial"
	Completed Status = "completed"
	Cancelled Status = "cancelled"
	// Expired marks a market order that found no liquidity at all.
	Expired Status = "expired"
)

func (st Status) IsValid() bool {
	switch st {
	case Pending, Partial, Completed, Cancelled, Expired:
		return true
	}
	return false
}

// IsOpen reports whether an order in this status may still receive fills.
func (st Status) IsOpen() bool {
	return st == Pending || st == Partial
}

type Order struct {
	ID             int64               `json:"id"`
	AccountID      int64               `json:"account_id"`
	Pair           string              `json:"pair"`
	BaseCurrency   string              `json:"base_currency"`
	QuoteCurrency  string              `json:"quote_currency"`
	Side           Side                `json:"side"`
	Type           OrderType           `json:"type"`
	LimitPrice     decimal.NullDecimal `json:"limit_price"`
	Quantity       decimal.Decimal     `json:"quantity"`
	FilledQuantity decimal.Decimal     `json:"filled_quantity"`
	Status         Status              `json:"status"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// Remaining returns the unfilled quantity of the order.
func (o *Order) Remaining() decimal.Decimal {
	return o.Quantity.Sub(o.FilledQuantity)
}

// ApplyFill adds qty to the filled quantity and recomputes the status.
// It refuses fills that would overshoot the order quantity.
func (o *Order) ApplyFill(qty decimal.Decimal, at time.Time) error {
	if !qty.IsPositive() {
		return &ValidationError{Field: "quantity", Message: "fill quantity must be greater than 0"}
	}
	if qty.GreaterThan(o.Remaining()) {
		return &ValidationError{Field: "quantity", Message: "fill exceeds remaining quantity"}
	}
	o.FilledQuantity = o.FilledQuantity.Add(qty)
	o.Status = StatusFor(o.Quantity, o.FilledQuantity)
	o.UpdatedAt = at
	return nil
}

// StatusFor derives the fill status from filled vs total quantity.
func StatusFor(quantity, filled decimal.Decimal) Status {
	switch {
	case filled.IsZero():
		return Pending
	case filled.GreaterThanOrEqual(quantity):
		return Completed
	default:
		return Partial
	}
}

// Clone returns a copy that can be mutated inside a transaction without
// touching the original.
func (o *Order) Clone() *Order {
	c := *o
	return &c
}

func (o *Order) Validate() error {
	if o.AccountID <= 0 {
		return &ValidationError{Field: "account_id", Message: "must be greater than 0"}
	}
	if o.Pair == "" {
		return &ValidationError{Field: "pair", Message: "is required"}
	}
	if !o.Side.IsValid() {
		return &ValidationError{Field: "side", Message: "must be 'buy' or 'sell'"}
	}
	if !o.Type.IsValid() {
		return &ValidationError{Field: "type", Message: "must be 'market' or 'limit'"}
	}
	if !o.Quantity.IsPositive() {
		return &ValidationError{Field: "quantity", Message: "must be greater than 0"}
	}
	switch o.Type {
	case Limit:
		if !o.LimitPrice.Valid || !o.LimitPrice.Decimal.IsPositive() {
			return &ValidationError{Field: "price", Message: "limit orders require a price greater than 0"}
		}
	case Market:
		if o.LimitPrice.Valid {
			return &ValidationError{Field: "price", Message: "market orders must not carry a price"}
		}
	}
	if o.FilledQuantity.IsNegative() {
		return &ValidationError{Field: "filled_quantity", Message: "cannot be negative"}
	}
	if o.FilledQuantity.GreaterThan(o.Quantity) {
		return &ValidationError{Field: "filled_quantity", Message: "cannot exceed quantity"}
	}
	if !o.Status.IsValid() {
		return &ValidationError{Field: "status", Message: "invalid status"}
	}
	return nil
}
