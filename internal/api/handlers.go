package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/cache"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/models"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/pricing"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/service"
)

// StatusReader serves order statuses from a cache in front of the ledger.
type StatusReader interface {
	OrderStatus(ctx context.Context, orderID int64) (models.Status, error)
}

type Handler struct {
	svc      *service.OrderService
	prices   pricing.Source
	statuses StatusReader
	logger   *zap.Logger
}

func NewHandler(svc *service.OrderService, prices pricing.Source, statuses StatusReader, logger *zap.Logger) *Handler {
	return &Handler{
		svc:      svc,
		prices:   prices,
		statuses: statuses,
		logger:   logger,
	}
}

type PlaceOrderRequest struct {
	AccountID int64               `json:"account_id" binding:"required,gt=0"`
	Pair      string              `json:"pair" binding:"required"`
	Side      string              `json:"side" binding:"required,oneof=buy sell"`
	Type      string              `json:"type" binding:"required,oneof=market limit"`
	Price     decimal.NullDecimal `json:"price"`
	Quantity  decimal.Decimal     `json:"quantity"`
}

func (h *Handler) PlaceOrder(c *gin.Context) {
	var req PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}

	res, err := h.svc.SubmitOrder(c.Request.Context(), service.NewOrderRequest{
		AccountID: req.AccountID,
		Pair:      req.Pair,
		Side:      models.Side(req.Side),
		Type:      models.OrderType(req.Type),
		Price:     req.Price,
		Quantity:  req.Quantity,
	})
	if err != nil {
		abortWithDomainError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) CancelOrder(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	accountID := int64(queryInt(c, "account_id", 0, 1, 0))
	if accountID == 0 {
		AbortWithError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "account_id query parameter is required")
		return
	}

	order, err := h.svc.CancelOrder(c.Request.Context(), accountID, orderID)
	if err != nil {
		abortWithDomainError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":   "order cancelled",
		"order":     order,
		"remaining": order.Remaining(),
	})
}

func (h *Handler) GetOrder(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	order, err := h.svc.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		abortWithDomainError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// GetOrderStatus answers from the status cache when it has the order and
// falls back to the ledger.
func (h *Handler) GetOrderStatus(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if h.statuses != nil {
		status, err := h.statuses.OrderStatus(ctx, orderID)
		if err == nil {
			c.JSON(http.StatusOK, gin.H{"order_id": orderID, "status": status, "source": "cache"})
			return
		}
		if !errors.Is(err, cache.ErrMiss) {
			h.logger.Warn("order status cache read failed", zap.Int64("order_id", orderID), zap.Error(err))
		}
	}
	order, err := h.svc.GetOrder(ctx, orderID)
	if err != nil {
		abortWithDomainError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": orderID, "status": order.Status, "source": "ledger"})
}

func (h *Handler) ListAccountOrders(c *gin.Context) {
	accountID, ok := pathID(c, "account_id")
	if !ok {
		return
	}
	orders, err := h.svc.ListOrders(c.Request.Context(), accountID)
	if err != nil {
		abortWithDomainError(c, h.logger, err)
		return
	}

	if status := models.Status(c.Query("status")); status != "" {
		filtered := orders[:0]
		for _, o := range orders {
			if o.Status == status {
				filtered = append(filtered, o)
			}
		}
		orders = filtered
	}

	p := WithPagination(c, 20)
	total := len(orders)
	start := min(p.Offset, total)
	end := min(start+p.Limit, total)
	c.JSON(http.StatusOK, NewPaginatedResponse(orders[start:end], p.Page, p.PerPage, int64(total)))
}

func (h *Handler) GetOrderBook(c *gin.Context) {
	depth := queryInt(c, "depth", 10, 1, 100)
	snap, err := h.svc.Snapshot(c.Param("pair"), depth)
	if err != nil {
		abortWithDomainError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) GetTrades(c *gin.Context) {
	limit := queryInt(c, "limit", 50, 1, 100)
	trades, err := h.svc.RecentTrades(c.Request.Context(), c.Param("pair"), limit)
	if err != nil {
		abortWithDomainError(c, h.logger, err)
		return
	}
	if trades == nil {
		trades = []*models.Trade{}
	}
	c.JSON(http.StatusOK, gin.H{
		"pair":   c.Param("pair"),
		"trades": trades,
		"count":  len(trades),
	})
}

type TickerResponse struct {
	Pair      string              `json:"pair"`
	BestBid   decimal.NullDecimal `json:"best_bid"`
	BestAsk   decimal.NullDecimal `json:"best_ask"`
	LastPrice decimal.NullDecimal `json:"last_price"`
	Spread    decimal.NullDecimal `json:"spread"`
	Mid       decimal.NullDecimal `json:"mid"`
	UpdatedAt string              `json:"updated_at,omitempty"`
}

// GetTicker serves the last refreshed quote, so it can lag the book by one
// refresh interval.
func (h *Handler) GetTicker(c *gin.Context) {
	pair, err := models.ParsePair(c.Param("pair"))
	if err != nil {
		abortWithDomainError(c, h.logger, err)
		return
	}
	if _, ok := h.svc.Markets().Pair(pair.Symbol()); !ok {
		abortWithDomainError(c, h.logger, service.ErrUnknownPair)
		return
	}

	resp := TickerResponse{Pair: pair.Symbol()}
	if q, ok := h.prices.Quote(pair.Symbol()); ok {
		resp.BestBid = q.BestBid
		resp.BestAsk = q.BestAsk
		resp.LastPrice = q.LastPrice
		resp.Spread = q.Spread()
		resp.Mid = q.Mid()
		resp.UpdatedAt = q.UpdatedAt.Format(time.RFC3339Nano)
	}
	c.JSON(http.StatusOK, resp)
}
