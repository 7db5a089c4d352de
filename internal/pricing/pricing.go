// Package pricing holds the market quotes shown to clients. The cache is an
// owned value refreshed by pulling from a Fetcher; nothing in it is global.
package pricing

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Quote is the top of book and last trade of one pair.
type Quote struct {
	Pair      string              `json:"pair"`
	BestBid   decimal.NullDecimal `json:"best_bid"`
	BestAsk   decimal.NullDecimal `json:"best_ask"`
	LastPrice decimal.NullDecimal `json:"last_price"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// Spread is ask minus bid when both sides are present.
func (q Quote) Spread() decimal.NullDecimal {
	if !q.BestBid.Valid || !q.BestAsk.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(q.BestAsk.Decimal.Sub(q.BestBid.Decimal))
}

// Mid is the midpoint of bid and ask when both sides are present.
func (q Quote) Mid() decimal.NullDecimal {
	if !q.BestBid.Valid || !q.BestAsk.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(q.BestBid.Decimal.Add(q.BestAsk.Decimal).Div(decimal.NewFromInt(2)))
}

// Source answers price lookups.
type Source interface {
	Quote(pair string) (Quote, bool)
}

// Fetcher produces fresh quotes for every pair it knows.
type Fetcher interface {
	FetchQuotes(ctx context.Context) ([]Quote, error)
}

// Cache is a Source backed by the last successful Refresh.
type Cache struct {
	fetcher Fetcher
	logger  *zap.Logger

	mu          sync.RWMutex
	quotes      map[string]Quote
	refreshedAt time.Time
}

func NewCache(fetcher Fetcher, logger *zap.Logger) *Cache {
	return &Cache{
		fetcher: fetcher,
		logger:  logger,
		quotes:  make(map[string]Quote),
	}
}

// Refresh pulls quotes from the fetcher and replaces the cached set. On
// error the previous quotes stay in place.
func (c *Cache) Refresh(ctx context.Context) error {
	quotes, err := c.fetcher.FetchQuotes(ctx)
	if err != nil {
		return err
	}
	next := make(map[string]Quote, len(quotes))
	for _, q := range quotes {
		next[q.Pair] = q
	}
	c.mu.Lock()
	c.quotes = next
	c.refreshedAt = time.Now()
	c.mu.Unlock()
	return nil
}

func (c *Cache) Quote(pair string) (Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	q, ok := c.quotes[pair]
	return q, ok
}

// RefreshedAt is the time of the last successful refresh.
func (c *Cache) RefreshedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshedAt
}

// DefaultRefreshInterval is used by Run when given a non-positive interval.
const DefaultRefreshInterval = time.Second

// Run refreshes every interval until ctx is done.
func (c *Cache) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := c.Refresh(ctx); err != nil {
		c.logger.Warn("price refresh failed", zap.Error(err))
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				c.logger.Warn("price refresh failed", zap.Error(err))
			}
		}
	}
}
