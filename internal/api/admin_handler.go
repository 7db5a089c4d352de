package api

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/messaging"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/pricing"
)

// Version is reported by the health endpoints.
const Version = "1.0.0"

type Pinger interface {
	Ping(ctx context.Context) error
}

type BookStats interface {
	RestingCounts() map[string]int
}

type FeedStats interface {
	ClientCount() int
	Subscriptions() map[string]int
}

type BreakerStats interface {
	State() messaging.CircuitState
}

// AdminHandler provides health and operational endpoints. Optional
// dependencies are nil when the component is disabled.
type AdminHandler struct {
	ledger  Pinger
	cache   Pinger
	books   BookStats
	prices  pricing.Source
	feed    FeedStats
	breaker BreakerStats
	started time.Time
}

func NewAdminHandler(ledger Pinger, cache Pinger, books BookStats, prices pricing.Source, feed FeedStats, breaker BreakerStats) *AdminHandler {
	return &AdminHandler{
		ledger:  ledger,
		cache:   cache,
		books:   books,
		prices:  prices,
		feed:    feed,
		breaker: breaker,
		started: time.Now(),
	}
}

// Health is the liveness probe: the process is serving requests.
func (h *AdminHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"version": Version,
		"uptime":  time.Since(h.started).Round(time.Second).String(),
	})
}

// Ready is the readiness probe: the ledger and, when enabled, the cache
// answer a ping.
func (h *AdminHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	services := map[string]string{
		"ledger": probe(ctx, h.ledger),
		"redis":  probe(ctx, h.cache),
	}
	resp := NewHealthResponse(Version, services)
	status := http.StatusOK
	if services["ledger"] != "healthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

func probe(ctx context.Context, p Pinger) string {
	if p == nil {
		return "disabled"
	}
	if err := p.Ping(ctx); err != nil {
		return "unhealthy: " + err.Error()
	}
	return "healthy"
}

// SystemInfo contains system information.
type SystemInfo struct {
	GoVersion  string  `json:"go_version"`
	GoRoutines int     `json:"goroutines"`
	MemoryMB   float64 `json:"memory_mb"`
}

// PairStats represents statistics for a trading pair.
type PairStats struct {
	pricing.Quote
	RestingCount int `json:"resting_orders"`
	Subscribers  int `json:"subscribers"`
}

// Stats reports book sizes, quotes and feed connections per pair.
func (h *AdminHandler) Stats(c *gin.Context) {
	counts := h.books.RestingCounts()
	var subs map[string]int
	connections := 0
	if h.feed != nil {
		subs = h.feed.Subscriptions()
		connections = h.feed.ClientCount()
	}

	pairs := make([]PairStats, 0, len(counts))
	total := 0
	for pair, n := range counts {
		ps := PairStats{RestingCount: n, Subscribers: subs[pair]}
		if q, ok := h.prices.Quote(pair); ok {
			ps.Quote = q
		}
		ps.Pair = pair
		pairs = append(pairs, ps)
		total += n
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Pair < pairs[j].Pair })

	breaker := "none"
	if h.breaker != nil {
		breaker = h.breaker.State().String()
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	c.JSON(http.StatusOK, gin.H{
		"pairs":                 pairs,
		"total_resting_orders":  total,
		"websocket_connections": connections,
		"event_publisher":       breaker,
		"uptime":                time.Since(h.started).Round(time.Second).String(),
		"system": SystemInfo{
			GoVersion:  runtime.Version(),
			GoRoutines: runtime.NumGoroutine(),
			MemoryMB:   float64(mem.Alloc) / 1024 / 1024,
		},
	})
}
