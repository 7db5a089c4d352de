package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/config"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/engine"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/models"
)

// ErrMiss is returned when a key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// RedisCache holds market data derived from the engine so other readers
// do not have to ask the ledger.
// CACHING STRATEGY:
//   - Book snapshot: full depth, 2s TTL, rewritten after every book change
//   - Recent trades: newest first, capped list, 1h TTL
//   - Order status: 10m TTL
//
// The ledger stays authoritative; every entry here may lag it.
type RedisCache struct {
	client    *redis.Client
	bookTTL   time.Duration
	tradeTTL  time.Duration
	statusTTL time.Duration
	maxTrades int64
}

// NewRedisCache connects using the Redis settings in cfg.
func NewRedisCache(ctx context.Context, cfg *config.Config) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.GetRedisAddr(),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return NewWithClient(client), nil
}

func NewWithClient(client *redis.Client) *RedisCache {
	return &RedisCache{
		client:    client,
		bookTTL:   2 * time.Second,
		tradeTTL:  time.Hour,
		statusTTL: 10 * time.Minute,
		maxTrades: 100,
	}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func bookKey(pair string) string   { return "ob:book:" + pair }
func tradesKey(pair string) string { return "trades:recent:" + pair }
func statusKey(id int64) string    { return "order:status:" + strconv.FormatInt(id, 10) }

// SetBookSnapshot stores the latest snapshot of a pair.
func (c *RedisCache) SetBookSnapshot(ctx context.Context, snap *engine.BookSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, bookKey(snap.Pair), data, c.bookTTL).Err()
}

// BookSnapshot returns the cached snapshot of a pair or ErrMiss.
func (c *RedisCache) BookSnapshot(ctx context.Context, pair string) (*engine.BookSnapshot, error) {
	data, err := c.client.Get(ctx, bookKey(pair)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	var snap engine.BookSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// AddRecentTrade pushes a trade onto the head of its pair's feed.
func (c *RedisCache) AddRecentTrade(ctx context.Context, trade *models.Trade) error {
	data, err := json.Marshal(trade)
	if err != nil {
		return err
	}
	key := tradesKey(trade.Pair)
	pipe := c.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, c.maxTrades-1)
	pipe.Expire(ctx, key, c.tradeTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// RecentTrades returns up to limit trades, newest first. An empty feed is
// not an error.
func (c *RedisCache) RecentTrades(ctx context.Context, pair string, limit int) ([]*models.Trade, error) {
	if limit <= 0 || int64(limit) > c.maxTrades {
		limit = int(c.maxTrades)
	}
	values, err := c.client.LRange(ctx, tradesKey(pair), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, err
	}
	trades := make([]*models.Trade, 0, len(values))
	for _, v := range values {
		var t models.Trade
		if err := json.Unmarshal([]byte(v), &t); err != nil {
			return nil, err
		}
		trades = append(trades, &t)
	}
	return trades, nil
}

// SetOrderStatus caches an order's status.
func (c *RedisCache) SetOrderStatus(ctx context.Context, o *models.Order) error {
	return c.client.Set(ctx, statusKey(o.ID), string(o.Status), c.statusTTL).Err()
}

// OrderStatus returns the cached status of an order or ErrMiss.
func (c *RedisCache) OrderStatus(ctx context.Context, orderID int64) (models.Status, error) {
	v, err := c.client.Get(ctx, statusKey(orderID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	if err != nil {
		return "", err
	}
	return models.Status(v), nil
}
