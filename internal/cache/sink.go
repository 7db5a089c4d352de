package cache

import (
	"context"

	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/engine"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/messaging"
)

// SnapshotFunc returns the current book of a pair.
type SnapshotFunc func(pair string, depth int) (*engine.BookSnapshot, error)

// EventHandler keeps the cache in step with the engine. Trades are pushed
// onto the feed; order events refresh the order status and the pair's book.
func (c *RedisCache) EventHandler(snapshot SnapshotFunc) messaging.Handler {
	return func(ctx context.Context, ev messaging.DomainEvent) error {
		if ev.Trade != nil {
			return c.AddRecentTrade(ctx, ev.Trade)
		}
		if ev.Order == nil {
			return nil
		}
		if err := c.SetOrderStatus(ctx, ev.Order); err != nil {
			return err
		}
		snap, err := snapshot(ev.Pair, 0)
		if err != nil {
			return err
		}
		return c.SetBookSnapshot(ctx, snap)
	}
}
