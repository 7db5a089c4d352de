package models

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Currency struct {
	Code      string    `json:"code" yaml:"code"`
	Name      string    `json:"name" yaml:"name"`
	Precision int32     `json:"precision" yaml:"precision"`
	IsActive  bool      `json:"is_active" yaml:"-"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

func NewCurrency(code, name string, precision int32) *Currency {
	now := time.Now().UTC()
	return &Currency{
		Code:      code,
		Name:      name,
		Precision: precision,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MinAmount is the smallest representable unit, 10^-precision.
func (c *Currency) MinAmount() decimal.Decimal {
	return decimal.New(1, -c.Precision)
}

// Fits reports whether v has no more decimal places than the currency allows.
func (c *Currency) Fits(v decimal.Decimal) bool {
	return v.Equal(v.Truncate(c.Precision))
}

func (c *Currency) Validate() error {
	if strings.TrimSpace(c.Code) == "" {
		return errors.New("currency code is required")
	}
	if len(c.Code) > 10 {
		return errors.New("currency code must be 10 characters or less")
	}
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("currency name is required")
	}
	if c.Precision < 0 || c.Precision > 18 {
		return errors.New("precision must be between 0 and 18")
	}
	return nil
}

var DefaultCurrencies = []*Currency{
	NewCurrency("BTC", "Bitcoin", 8),
	NewCurrency("ETH", "Ethereum", 8),
	NewCurrency("USDT", "Tether", 6),
	NewCurrency("USD", "US Dollar", 2),
	NewCurrency("BNB", "Binance Coin", 8),
}

var DefaultPairs = []Pair{
	{Base: "BTC", Quote: "USDT"},
	{Base: "ETH", Quote: "USDT"},
	{Base: "ETH", Quote: "BTC"},
	{Base: "BNB", Quote: "USDT"},
}
