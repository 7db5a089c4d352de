package ws

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/engine"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/messaging"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/metrics"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/models"
)

// MarketData is what the hub reads to build snapshots.
type MarketData interface {
	Snapshot(pair string, depth int) (*engine.BookSnapshot, error)
	RecentTrades(ctx context.Context, pair string, limit int) ([]*models.Trade, error)
}

// HubConfig holds configuration for the hub.
type HubConfig struct {
	HeartbeatInterval time.Duration
	SnapshotLevels    int
	RecentTradesLimit int
}

func DefaultHubConfig() HubConfig {
	return HubConfig{
		HeartbeatInterval: 30 * time.Second,
		SnapshotLevels:    20,
		RecentTradesLimit: 50,
	}
}

// Hub maintains the set of active clients and pushes engine events to the
// clients subscribed to the event's pair.
type Hub struct {
	config  HubConfig
	market  MarketData
	logger  *zap.Logger
	metrics *metrics.Metrics

	subs       *SubscriptionManager
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu      sync.RWMutex
	clients map[string]*Client

	seq atomic.Int64
}

func NewHub(config HubConfig, market MarketData, logger *zap.Logger, m *metrics.Metrics) *Hub {
	if config.HeartbeatInterval <= 0 {
		config.HeartbeatInterval = DefaultHubConfig().HeartbeatInterval
	}
	return &Hub{
		config:     config,
		market:     market,
		logger:     logger,
		metrics:    m,
		subs:       NewSubscriptionManager(),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[string]*Client),
	}
}

// Run services registrations and heartbeats until ctx is done, then
// disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.config.HeartbeatInterval)
	defer ticker.Stop()
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			h.logger.Info("websocket hub stopped")
			return

		case <-ticker.C:
			h.broadcastAll(toJSON(NewHeartbeatEvent(h.seq.Add(1))))

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			h.metrics.WSConnected()
			h.logger.Debug("ws client registered", zap.String("client_id", client.id))

		case client := <-h.unregister:
			h.remove(client)
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.subs.UnsubscribeAll(client.id)
	h.mu.Lock()
	if _, ok := h.clients[client.id]; ok {
		delete(h.clients, client.id)
		close(client.send)
		h.metrics.WSDisconnected()
	}
	h.mu.Unlock()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		h.subs.UnsubscribeAll(id)
		close(c.send)
		delete(h.clients, id)
		h.metrics.WSDisconnected()
	}
}

// Register hands a new client to the hub. It reports false once the hub
// has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Reply sends a message to one client only.
func (h *Hub) Reply(client *Client, typ EventType, data []byte) {
	h.sendTo(client.id, "", typ, data)
}

// Subscribe adds pair to client's subscriptions and sends it a snapshot.
func (h *Hub) Subscribe(ctx context.Context, client *Client, pair string) error {
	snap, err := h.market.Snapshot(pair, h.config.SnapshotLevels)
	if err != nil {
		return err
	}
	pair = snap.Pair
	if !h.subs.Subscribe(client.id, pair) {
		return nil
	}
	trades, err := h.market.RecentTrades(ctx, pair, h.config.RecentTradesLimit)
	if err != nil {
		h.logger.Warn("snapshot without trades", zap.String("pair", pair), zap.Error(err))
		trades = nil
	}
	h.sendTo(client.id, pair, EventTypeSnapshot, toJSON(NewSnapshotEvent(snap, trades, h.seq.Load())))
	return nil
}

func (h *Hub) Unsubscribe(client *Client, pair string) {
	if p, err := models.ParsePair(pair); err == nil {
		pair = p.Symbol()
	}
	h.subs.Unsubscribe(client.id, pair)
}

// HandleEvent is the dispatcher handler feeding the hub.
func (h *Hub) HandleEvent(_ context.Context, ev messaging.DomainEvent) error {
	switch {
	case ev.Trade != nil:
		h.BroadcastToPair(ev.Pair, EventTypeTrade, toJSON(NewTradeEvent(ev.Trade)))
	case ev.Order != nil:
		h.BroadcastToPair(ev.Pair, EventTypeOrderUpdate, toJSON(NewOrderUpdateEvent(ev.Order)))
		snap, err := h.market.Snapshot(ev.Pair, h.config.SnapshotLevels)
		if err != nil {
			return err
		}
		h.BroadcastToPair(ev.Pair, EventTypeOrderBook, toJSON(NewOrderBookEvent(snap, h.seq.Load())))
	}
	return nil
}

// BroadcastToPair sends a message to every client subscribed to pair.
// Clients whose buffer is full miss the message.
func (h *Hub) BroadcastToPair(pair string, typ EventType, data []byte) {
	for _, id := range h.subs.SubscribedClients(pair) {
		h.sendTo(id, pair, typ, data)
	}
}

func (h *Hub) sendTo(clientID, pair string, typ EventType, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[clientID]
	if !ok {
		return
	}
	select {
	case c.send <- data:
		h.metrics.RecordWSSent(pair, string(typ))
	default:
		h.logger.Warn("ws client send buffer full, skipping",
			zap.String("client_id", clientID), zap.String("pair", pair))
	}
}

func (h *Hub) broadcastAll(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Subscriptions returns the number of subscribers per pair.
func (h *Hub) Subscriptions() map[string]int {
	return h.subs.PairCounts()
}
