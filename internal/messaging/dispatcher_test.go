package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/metrics"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/models"
)

type recorder struct {
	mu     sync.Mutex
	events []DomainEvent
}

func (r *recorder) handle(_ context.Context, ev DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) snapshot() []DomainEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]DomainEvent(nil), r.events...)
}

func order(id int64, pair string, status models.Status) *models.Order {
	return &models.Order{ID: id, Pair: pair, Status: status, UpdatedAt: time.Now()}
}

func TestOrderEventType(t *testing.T) {
	limit := func(st models.Status) *models.Order { return &models.Order{Type: models.Limit, Status: st} }
	assert.Equal(t, EventOrderPlaced, OrderEventType(limit(models.Pending)))
	assert.Equal(t, EventOrderPartiallyFilled, OrderEventType(limit(models.Partial)))
	assert.Equal(t, EventOrderCompleted, OrderEventType(limit(models.Completed)))
	assert.Equal(t, EventOrderCancelled, OrderEventType(limit(models.Cancelled)))
	assert.Equal(t, EventOrderExpired, OrderEventType(&models.Order{Type: models.Market, Status: models.Expired}))
	assert.Equal(t, EventOrderExpired, OrderEventType(&models.Order{Type: models.Market, Status: models.Partial}))
}

func TestDispatcher_KeepsPerPairOrder(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(4, 256, zap.NewNop(), nil)
	d.Register("recorder", rec.handle)
	d.Start(context.Background())

	for i := int64(1); i <= 50; i++ {
		d.OnOrder("BTC-USDT", order(i, "BTC-USDT", models.Pending))
		d.OnOrder("ETH-USDT", order(1000+i, "ETH-USDT", models.Pending))
	}
	d.OnTrade("BTC-USDT", &models.Trade{ID: 7, Pair: "BTC-USDT", Price: decimal.NewFromInt(1), Quantity: decimal.NewFromInt(1)})
	d.Stop(time.Second)

	events := rec.snapshot()
	require.Len(t, events, 101)

	var btc, eth []int64
	for _, ev := range events {
		if ev.Order == nil {
			assert.Equal(t, EventTradeExecuted, ev.Type)
			continue
		}
		assert.NotEmpty(t, ev.ID)
		if ev.Pair == "BTC-USDT" {
			btc = append(btc, ev.Order.ID)
		} else {
			eth = append(eth, ev.Order.ID)
		}
	}
	assert.IsIncreasing(t, btc)
	assert.IsIncreasing(t, eth)

	assert.False(t, d.Enqueue(NewOrderEvent(order(1, "BTC-USDT", models.Pending))), "stopped dispatcher refuses events")
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	m := metrics.New()
	d := NewDispatcher(1, 2, zap.NewNop(), m)

	// Not started: nothing drains the shard.
	assert.True(t, d.Enqueue(NewOrderEvent(order(1, "BTC-USDT", models.Pending))))
	assert.True(t, d.Enqueue(NewOrderEvent(order(2, "BTC-USDT", models.Pending))))
	assert.False(t, d.Enqueue(NewOrderEvent(order(3, "BTC-USDT", models.Pending))))
}

type flakyPublisher struct {
	mu       sync.Mutex
	failures int
	calls    int
}

func (p *flakyPublisher) Publish(context.Context, DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls <= p.failures {
		return errors.New("broker unavailable")
	}
	return nil
}
func (p *flakyPublisher) Name() string { return "flaky" }
func (p *flakyPublisher) Close() error { return nil }

func TestDispatcher_RetriesPublisher(t *testing.T) {
	pub := &flakyPublisher{failures: 2}
	d := NewDispatcher(1, 8, zap.NewNop(), nil)
	d.retry = RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
	d.RegisterPublisher(pub)
	d.Start(context.Background())

	d.OnOrder("BTC-USDT", order(1, "BTC-USDT", models.Completed))
	d.Stop(time.Second)

	assert.Equal(t, 3, pub.calls)
}

func TestDispatcher_DrainsAfterStartContextEnds(t *testing.T) {
	pub := &flakyPublisher{failures: 1}
	d := NewDispatcher(1, 8, zap.NewNop(), nil)
	d.retry = RetryConfig{MaxRetries: 3, InitialDelay: 20 * time.Millisecond, MaxDelay: 20 * time.Millisecond, Multiplier: 1}
	d.RegisterPublisher(pub)

	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)
	d.OnOrder("BTC-USDT", order(1, "BTC-USDT", models.Completed))
	d.OnOrder("BTC-USDT", order(2, "BTC-USDT", models.Completed))
	cancel()
	d.Stop(time.Second)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Equal(t, 3, pub.calls, "the failed publish is retried during the drain")
}

func TestDispatcher_StopTimeoutCancelsRetries(t *testing.T) {
	pub := &flakyPublisher{failures: 1 << 30}
	d := NewDispatcher(1, 8, zap.NewNop(), nil)
	d.retry = RetryConfig{MaxRetries: 1000, InitialDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 1}
	d.RegisterPublisher(pub)
	d.Start(context.Background())
	d.OnOrder("BTC-USDT", order(1, "BTC-USDT", models.Completed))

	start := time.Now()
	d.Stop(50 * time.Millisecond)
	assert.Less(t, time.Since(start), time.Second)

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker still waiting on its retry after Stop")
	}
}

func TestRetryConfig_NextDelay(t *testing.T) {
	c := RetryConfig{MaxRetries: 3, InitialDelay: 100 * time.Millisecond, MaxDelay: 250 * time.Millisecond, Multiplier: 2}

	assert.Equal(t, 100*time.Millisecond, c.NextDelay(0))
	assert.Equal(t, 200*time.Millisecond, c.NextDelay(1))
	assert.Equal(t, 250*time.Millisecond, c.NextDelay(2), "capped at MaxDelay")
	assert.Zero(t, c.NextDelay(3))
}

func TestRetry_GivesUp(t *testing.T) {
	c := RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
	calls := 0
	err := c.Retry(context.Background(), func(context.Context) error {
		calls++
		return errors.New("nope")
	})
	assert.EqualError(t, err, "nope")
	assert.Equal(t, 3, calls)
}
