package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocket configuration constants.
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4 * 1024

	sendBuffer = 256
)

// Client represents a WebSocket client connection.
type Client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	logger *zap.Logger

	// Buffered channel of outbound messages. Only the hub closes it.
	send chan []byte
}

func NewClient(hub *Hub, conn *websocket.Conn, logger *zap.Logger) *Client {
	id := uuid.New().String()
	return &Client{
		id:     id,
		hub:    hub,
		conn:   conn,
		logger: logger.With(zap.String("client_id", id)),
		send:   make(chan []byte, sendBuffer),
	}
}

// ID returns the unique client ID.
func (c *Client) ID() string {
	return c.id
}

// ReadPump reads subscription requests until the connection fails.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("ws unexpected close", zap.Error(err))
			}
			return
		}
		c.handleMessage(ctx, message)
	}
}

// WritePump writes queued messages and pings until the hub closes send.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(ctx context.Context, message []byte) {
	var msg SubscriptionMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.hub.metrics.RecordWSReceived("invalid")
		c.hub.Reply(c, EventTypeError, toJSON(NewErrorEvent("INVALID_MESSAGE", "expected a subscription message")))
		return
	}
	c.hub.metrics.RecordWSReceived(msg.Action)

	switch msg.Action {
	case "subscribe":
		for _, pair := range msg.Pairs {
			if err := c.hub.Subscribe(ctx, c, pair); err != nil {
				c.hub.Reply(c, EventTypeSubscription, toJSON(NewSubscriptionAck(msg.Action, false, []string{pair}, err.Error())))
				return
			}
		}
		c.hub.Reply(c, EventTypeSubscription, toJSON(NewSubscriptionAck(msg.Action, true, msg.Pairs, "")))
	case "unsubscribe":
		for _, pair := range msg.Pairs {
			c.hub.Unsubscribe(c, pair)
		}
		c.hub.Reply(c, EventTypeSubscription, toJSON(NewSubscriptionAck(msg.Action, true, msg.Pairs, "")))
	default:
		c.hub.Reply(c, EventTypeError, toJSON(NewErrorEvent("UNKNOWN_ACTION", "action must be subscribe or unsubscribe")))
	}
}
