package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/models"
)

func TestRecordMatch(t *testing.T) {
	m := New()
	trades := []*models.Trade{
		{Pair: "BTC-USDT", Price: decimal.NewFromInt(100), Quantity: decimal.NewFromInt(2)},
		{Pair: "BTC-USDT", Price: decimal.NewFromInt(110), Quantity: decimal.NewFromInt(1)},
	}

	m.RecordMatch("BTC-USDT", 3*time.Millisecond, trades)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TradesTotal.WithLabelValues("BTC-USDT")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.TradeVolume.WithLabelValues("BTC-USDT")))
	assert.Equal(t, 310.0, testutil.ToFloat64(m.TradeValue.WithLabelValues("BTC-USDT")))
}

func TestOrderCounters(t *testing.T) {
	m := New()
	m.RecordOrderPlaced("ETH-USDT", models.Buy, models.Limit)
	m.RecordRejected("insufficient_balance")
	m.RecordRejected("insufficient_balance")
	m.RecordOrderCancelled("ETH-USDT")
	m.SetBookSizes(map[string]int{"ETH-USDT": 4})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrdersPlaced.WithLabelValues("ETH-USDT", "buy", "limit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OrdersRejected.WithLabelValues("insufficient_balance")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrdersCancelled.WithLabelValues("ETH-USDT")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.OrderBookSize.WithLabelValues("ETH-USDT")))
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordOrderPlaced("BTC-USDT", models.Sell, models.Market)
		m.RecordMatch("BTC-USDT", time.Second, nil)
		m.RecordCache(true)
		m.RecordEventPublished("nop", "trade.executed", nil)
		m.WSConnected()
		m.RecordHTTPRequest("GET", "/health", "200", time.Millisecond)
	})
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.RecordCache(false)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "exchange_cache_misses_total 1")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
