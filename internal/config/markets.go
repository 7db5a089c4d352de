package config

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/models"
)

// MarketsFile is the YAML layout of MARKETS_FILE:
//
//	currencies:
//	  - {code: BTC, name: Bitcoin, precision: 8}
//	pairs:
//	  - {base: BTC, quote: USDT}
type MarketsFile struct {
	Currencies []*models.Currency `yaml:"currencies"`
	Pairs      []models.Pair      `yaml:"pairs"`
}

// LoadMarkets reads the market registry. An empty path yields the built-in
// defaults.
func LoadMarkets(path string) (*models.Markets, error) {
	if path == "" {
		return models.DefaultMarkets(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read markets file: %w", err)
	}
	return ParseMarkets(raw)
}

func ParseMarkets(raw []byte) (*models.Markets, error) {
	var f MarketsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse markets file: %w", err)
	}
	if len(f.Pairs) == 0 {
		return nil, fmt.Errorf("markets file lists no pairs")
	}
	now := time.Now().UTC()
	for _, c := range f.Currencies {
		c.IsActive = true
		c.CreatedAt, c.UpdatedAt = now, now
	}
	return models.NewMarkets(f.Currencies, f.Pairs)
}
