package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/metrics"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/middleware"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/pricing"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/service"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/ws"
)

// Deps is everything the HTTP surface reads from. Optional components are
// left nil when disabled.
type Deps struct {
	Service *service.OrderService
	Prices  pricing.Source
	Books   BookStats
	Ledger  Pinger
	Logger  *zap.Logger

	Cache       Pinger
	Statuses    StatusReader
	Feed        FeedStats
	WS          *ws.Handler
	Breaker     BreakerStats
	Metrics     *metrics.Metrics
	RateLimiter *middleware.RateLimiter
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.Use(middleware.RecoveryMiddleware(d.Logger))
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggingMiddleware(d.Logger, d.Metrics))
	if d.RateLimiter != nil {
		r.Use(d.RateLimiter.GinMiddleware())
	}

	h := NewHandler(d.Service, d.Prices, d.Statuses, d.Logger)
	accounts := NewAccountHandler(d.Service, d.Logger)
	currencies := NewCurrencyHandler(d.Service.Markets())
	pairs := NewPairHandler(d.Service.Markets(), d.Prices)
	admin := NewAdminHandler(d.Ledger, d.Cache, d.Books, d.Prices, d.Feed, d.Breaker)

	r.GET("/health", admin.Health)
	r.GET("/ready", admin.Ready)
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}
	r.GET("/admin/stats", admin.Stats)

	api := r.Group("/api")
	{
		api.GET("/pairs", pairs.ListPairs)
		api.GET("/pairs/:pair/book", h.GetOrderBook)
		api.GET("/pairs/:pair/ticker", h.GetTicker)
		api.GET("/pairs/:pair/trades", h.GetTrades)
		api.GET("/currencies", currencies.ListCurrencies)
		api.GET("/currencies/:code", currencies.GetCurrency)

		api.POST("/orders", h.PlaceOrder)
		api.GET("/orders/:id", h.GetOrder)
		api.GET("/orders/:id/status", h.GetOrderStatus)
		api.DELETE("/orders/:id", h.CancelOrder)

		api.GET("/accounts/:account_id/orders", h.ListAccountOrders)
		api.GET("/accounts/:account_id/balances", accounts.GetBalances)
		api.POST("/accounts/:account_id/deposits", accounts.Deposit)
		api.POST("/accounts/:account_id/withdrawals", accounts.Withdraw)
	}

	if d.WS != nil {
		r.GET("/ws/stats", d.WS.HandleStats)
		r.GET("/ws/:pair", d.WS.HandleUpgrade)
	}
}
