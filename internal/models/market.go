package models

import (
	"fmt"
	"sort"
)

// Markets is the registry of tradable currencies and pairs.
type Markets struct {
	currencies map[string]*Currency
	pairs      map[string]Pair
}

func NewMarkets(currencies []*Currency, pairs []Pair) (*Markets, error) {
	m := &Markets{
		currencies: make(map[string]*Currency, len(currencies)),
		pairs:      make(map[string]Pair, len(pairs)),
	}
	for _, c := range currencies {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("currency %q: %w", c.Code, err)
		}
		m.currencies[c.Code] = c
	}
	for _, p := range pairs {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("pair %s: %w", p.Symbol(), err)
		}
		if _, ok := m.currencies[p.Base]; !ok {
			return nil, fmt.Errorf("pair %s: unknown base currency %s", p.Symbol(), p.Base)
		}
		if _, ok := m.currencies[p.Quote]; !ok {
			return nil, fmt.Errorf("pair %s: unknown quote currency %s", p.Symbol(), p.Quote)
		}
		m.pairs[p.Symbol()] = p
	}
	return m, nil
}

// DefaultMarkets builds the registry from DefaultCurrencies and DefaultPairs.
func DefaultMarkets() *Markets {
	m, err := NewMarkets(DefaultCurrencies, DefaultPairs)
	if err != nil {
		panic(err)
	}
	return m
}

// Pair looks up a listed pair by symbol.
func (m *Markets) Pair(symbol string) (Pair, bool) {
	p, ok := m.pairs[symbol]
	return p, ok
}

func (m *Markets) Currency(code string) (*Currency, bool) {
	c, ok := m.currencies[code]
	return c, ok
}

// Pairs returns listed pairs sorted by symbol.
func (m *Markets) Pairs() []Pair {
	out := make([]Pair, 0, len(m.pairs))
	for _, p := range m.pairs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol() < out[j].Symbol() })
	return out
}

// Currencies returns listed currencies sorted by code.
func (m *Markets) Currencies() []*Currency {
	out := make([]*Currency, 0, len(m.currencies))
	for _, c := range m.currencies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
