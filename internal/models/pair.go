package models

import (
	"errors"
	"strings"
)

// PairSeparator joins base and quote into a pair symbol such as BTC-USDT.
const PairSeparator = "-"

type Pair struct {
	Base  string `json:"base" yaml:"base"`
	Quote string `json:"quote" yaml:"quote"`
}

func (p *Pair) Validate() error {
	if strings.TrimSpace(p.Base) == "" {
		return errors.New("base currency is required")
	}
	if strings.TrimSpace(p.Quote) == "" {
		return errors.New("quote currency is required")
	}
	if p.Base == p.Quote {
		return errors.New("base and quote currencies must be different")
	}
	if len(p.Base) > 10 || len(p.Quote) > 10 {
		return errors.New("currency codes must be 10 characters or less")
	}
	return nil
}

// Symbol returns the pair identifier used in orders and URLs.
func (p Pair) Symbol() string {
	return p.Base + PairSeparator + p.Quote
}

func (p Pair) String() string {
	return p.Symbol()
}

// ParsePair splits a symbol like "btc-usdt" or "BTC/USDT".
func ParsePair(symbol string) (Pair, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	s = strings.ReplaceAll(s, "/", PairSeparator)
	base, quote, ok := strings.Cut(s, PairSeparator)
	if !ok {
		return Pair{}, &ValidationError{Field: "pair", Message: "must look like BASE-QUOTE"}
	}
	p := Pair{Base: base, Quote: quote}
	if err := p.Validate(); err != nil {
		return Pair{}, &ValidationError{Field: "pair", Message: err.Error()}
	}
	return p, nil
}
