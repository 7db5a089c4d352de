package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/models"
)

const namespace = "exchange"

// Metrics holds all application metrics. Every method is safe on a nil
// receiver so components can run without instrumentation.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Order metrics
	OrdersPlaced       *prometheus.CounterVec
	OrdersRejected     *prometheus.CounterVec
	OrdersCancelled    *prometheus.CounterVec
	MatchDuration      *prometheus.HistogramVec
	SettlementFailures *prometheus.CounterVec
	OrderBookSize      *prometheus.GaugeVec

	// Trade metrics
	TradesTotal *prometheus.CounterVec
	TradeVolume *prometheus.CounterVec
	TradeValue  *prometheus.CounterVec

	// WebSocket metrics
	WSConnections      prometheus.Gauge
	WSMessagesSent     *prometheus.CounterVec
	WSMessagesReceived *prometheus.CounterVec

	// Event metrics
	EventsPublished *prometheus.CounterVec
	EventsDropped   *prometheus.CounterVec

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

// New creates all application metrics on a fresh registry that also carries
// the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := newMetrics(reg)
	m.registry = reg
	return m
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),

		// Order metrics
		OrdersPlaced: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orders_placed_total",
				Help:      "Total number of orders admitted and matched",
			},
			[]string{"pair", "side", "type"},
		),
		OrdersRejected: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orders_rejected_total",
				Help:      "Total number of orders refused at admission",
			},
			[]string{"reason"},
		),
		OrdersCancelled: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orders_cancelled_total",
				Help:      "Total number of orders cancelled",
			},
			[]string{"pair"},
		),
		MatchDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "match_duration_seconds",
				Help:      "Time from admission to the end of matching",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"pair"},
		),
		SettlementFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "settlement_failures_total",
				Help:      "Total number of match calls aborted by a failed settlement",
			},
			[]string{"pair"},
		),
		OrderBookSize: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "orderbook_size",
				Help:      "Number of resting orders in the order book",
			},
			[]string{"pair"},
		),

		// Trade metrics
		TradesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trades_total",
				Help:      "Total number of trades executed",
			},
			[]string{"pair"},
		),
		TradeVolume: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trade_volume_total",
				Help:      "Total traded base quantity by pair",
			},
			[]string{"pair"},
		),
		TradeValue: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trade_value_total",
				Help:      "Total traded quote value by pair",
			},
			[]string{"pair"},
		),

		// WebSocket metrics
		WSConnections: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ws_connections_active",
				Help:      "Current number of active WebSocket connections",
			},
		),
		WSMessagesSent: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ws_messages_sent_total",
				Help:      "Total number of WebSocket messages sent",
			},
			[]string{"pair", "type"},
		),
		WSMessagesReceived: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ws_messages_received_total",
				Help:      "Total number of WebSocket messages received",
			},
			[]string{"type"},
		),

		// Event metrics
		EventsPublished: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_published_total",
				Help:      "Total number of domain events handed to the broker",
			},
			[]string{"broker", "type", "result"},
		),
		EventsDropped: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_dropped_total",
				Help:      "Total number of domain events dropped because the queue was full",
			},
			[]string{"type"},
		),

		// Cache metrics
		CacheHits: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Total number of cache hits",
			},
		),
		CacheMisses: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Total number of cache misses",
			},
		),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordOrderPlaced records an order that made it through matching.
func (m *Metrics) RecordOrderPlaced(pair string, side models.Side, typ models.OrderType) {
	if m == nil {
		return
	}
	m.OrdersPlaced.WithLabelValues(pair, string(side), string(typ)).Inc()
}

func (m *Metrics) RecordRejected(reason string) {
	if m == nil {
		return
	}
	m.OrdersRejected.WithLabelValues(reason).Inc()
}

// RecordOrderCancelled records an order cancellation.
func (m *Metrics) RecordOrderCancelled(pair string) {
	if m == nil {
		return
	}
	m.OrdersCancelled.WithLabelValues(pair).Inc()
}

// RecordMatch records how long a match call took and every trade it made.
func (m *Metrics) RecordMatch(pair string, elapsed time.Duration, trades []*models.Trade) {
	if m == nil {
		return
	}
	m.MatchDuration.WithLabelValues(pair).Observe(elapsed.Seconds())
	for _, t := range trades {
		m.TradesTotal.WithLabelValues(t.Pair).Inc()
		m.TradeVolume.WithLabelValues(t.Pair).Add(t.Quantity.InexactFloat64())
		m.TradeValue.WithLabelValues(t.Pair).Add(t.Notional().InexactFloat64())
	}
}

func (m *Metrics) RecordSettlementFailure(pair string) {
	if m == nil {
		return
	}
	m.SettlementFailures.WithLabelValues(pair).Inc()
}

// SetBookSizes publishes the resting order count of every pair.
func (m *Metrics) SetBookSizes(counts map[string]int) {
	if m == nil {
		return
	}
	for pair, n := range counts {
		m.OrderBookSize.WithLabelValues(pair).Set(float64(n))
	}
}

func (m *Metrics) WSConnected() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

func (m *Metrics) WSDisconnected() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}

// RecordWSSent records a WebSocket message sent.
func (m *Metrics) RecordWSSent(pair, msgType string) {
	if m == nil {
		return
	}
	m.WSMessagesSent.WithLabelValues(pair, msgType).Inc()
}

// RecordWSReceived records a WebSocket message received.
func (m *Metrics) RecordWSReceived(msgType string) {
	if m == nil {
		return
	}
	m.WSMessagesReceived.WithLabelValues(msgType).Inc()
}

func (m *Metrics) RecordEventPublished(broker, eventType string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.EventsPublished.WithLabelValues(broker, eventType, result).Inc()
}

func (m *Metrics) RecordEventDropped(eventType string) {
	if m == nil {
		return
	}
	m.EventsDropped.WithLabelValues(eventType).Inc()
}

func (m *Metrics) RecordCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHits.Inc()
		return
	}
	m.CacheMisses.Inc()
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
