package ws

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The feed is public market data.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler provides HTTP handlers for WebSocket connections.
type Handler struct {
	hub    *Hub
	conns  *middleware.ConnectionLimiter
	logger *zap.Logger
	ctx    context.Context
}

// NewHandler creates a new WebSocket handler. ctx bounds the lifetime of
// every connection it accepts.
func NewHandler(ctx context.Context, hub *Hub, maxConnsPerIP int, logger *zap.Logger) *Handler {
	return &Handler{
		hub:    hub,
		conns:  middleware.NewConnectionLimiter(maxConnsPerIP),
		logger: logger,
		ctx:    ctx,
	}
}

// HandleUpgrade upgrades an HTTP connection to WebSocket.
// Path: /ws/:pair (e.g., /ws/BTC-USDT)
//
// Clients can also subscribe to additional pairs by sending:
//   - {"action":"subscribe","pairs":["ETH-USDT"]}
//   - {"action":"unsubscribe","pairs":["BTC-USDT"]}
func (h *Handler) HandleUpgrade(c *gin.Context) {
	pair := c.Param("pair")
	if _, err := h.hub.market.Snapshot(pair, 1); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "INVALID_PAIR"})
		return
	}

	ip := c.ClientIP()
	if !h.conns.Allow(ip) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many websocket connections", "code": "RATE_LIMIT_EXCEEDED"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.conns.Release(ip)
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(h.hub, conn, h.logger)
	if !h.hub.Register(client) {
		h.conns.Release(ip)
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}

	go client.WritePump()
	go func() {
		defer h.conns.Release(ip)
		client.ReadPump(h.ctx)
	}()

	if err := h.hub.Subscribe(h.ctx, client, pair); err != nil {
		h.logger.Warn("initial subscription failed", zap.String("pair", pair), zap.Error(err))
	}
}

// HandleStats returns WebSocket connection statistics.
func (h *Handler) HandleStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"total_connections": h.hub.ClientCount(),
		"subscriptions":     h.hub.Subscriptions(),
	})
}
