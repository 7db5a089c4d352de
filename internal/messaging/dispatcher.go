package messaging

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/metrics"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/models"
)

// Handler consumes one domain event.
type Handler func(ctx context.Context, ev DomainEvent) error

type namedHandler struct {
	name string
	fn   Handler
}

// Dispatcher fans engine events out to handlers off the matching path.
//
// Events are sharded by pair over a fixed set of workers, so handlers see
// the events of one pair in the order the engine emitted them. Enqueue never
// blocks: when a shard is full the event is dropped and counted.
type Dispatcher struct {
	shards   []chan DomainEvent
	handlers []namedHandler
	retry    RetryConfig
	logger   *zap.Logger
	metrics  *metrics.Metrics

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup

	// cancel ends the handlers' context. Only Stop calls it, so queued
	// events keep their retries after the caller's context is done.
	cancel context.CancelFunc
}

// NewDispatcher creates a dispatcher with workers shards of queueSize events.
func NewDispatcher(workers, queueSize int, logger *zap.Logger, m *metrics.Metrics) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	d := &Dispatcher{
		shards:  make([]chan DomainEvent, workers),
		retry:   DefaultRetryConfig(),
		logger:  logger,
		metrics: m,
	}
	for i := range d.shards {
		d.shards[i] = make(chan DomainEvent, queueSize)
	}
	return d
}

// Register adds a handler. It must be called before Start.
func (d *Dispatcher) Register(name string, fn Handler) {
	d.handlers = append(d.handlers, namedHandler{name: name, fn: fn})
}

// RegisterPublisher registers a broker publisher as a handler with retries.
func (d *Dispatcher) RegisterPublisher(p Publisher) {
	d.Register(p.Name(), func(ctx context.Context, ev DomainEvent) error {
		err := d.retry.Retry(ctx, func(ctx context.Context) error {
			return p.Publish(ctx, ev)
		})
		d.metrics.RecordEventPublished(p.Name(), string(ev.Type), err)
		return err
	})
}

// Start launches one worker per shard. Workers exit once Stop has drained
// their shard. Handlers get ctx's values but not its cancellation.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(context.WithoutCancel(ctx))
	for i, ch := range d.shards {
		d.wg.Add(1)
		go d.worker(ctx, i, ch)
	}
}

func (d *Dispatcher) worker(ctx context.Context, id int, ch <-chan DomainEvent) {
	defer d.wg.Done()
	for ev := range ch {
		for _, h := range d.handlers {
			if err := h.fn(ctx, ev); err != nil {
				d.logger.Warn("event handler failed",
					zap.Int("worker", id),
					zap.String("handler", h.name),
					zap.String("event_type", string(ev.Type)),
					zap.String("event_id", ev.ID),
					zap.Error(err))
			}
		}
	}
}

// Enqueue schedules ev for every handler. It reports whether the event was
// accepted.
func (d *Dispatcher) Enqueue(ev DomainEvent) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return false
	}
	select {
	case d.shards[d.shard(ev.Pair)] <- ev:
		return true
	default:
		d.metrics.RecordEventDropped(string(ev.Type))
		d.logger.Warn("event queue full, dropping event",
			zap.String("event_type", string(ev.Type)),
			zap.String("pair", ev.Pair))
		return false
	}
}

func (d *Dispatcher) shard(pair string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(pair))
	return int(h.Sum32() % uint32(len(d.shards)))
}

// OnTrade has the signature of the engine's trade callback.
func (d *Dispatcher) OnTrade(_ string, t *models.Trade) {
	d.Enqueue(NewTradeEvent(t))
}

// OnOrder has the signature of the engine's order callback.
func (d *Dispatcher) OnOrder(_ string, o *models.Order) {
	d.Enqueue(NewOrderEvent(o))
}

// Stop closes the queues and waits for queued events to be handled, or for
// timeout to pass.
func (d *Dispatcher) Stop(timeout time.Duration) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	for _, ch := range d.shards {
		close(ch)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		d.logger.Warn("event dispatcher stopped before draining", zap.Duration("timeout", timeout))
	}
	if d.cancel != nil {
		d.cancel()
	}
}
