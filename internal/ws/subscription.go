package ws

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/engine"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/models"
)

// SubscriptionManager is the routing table of the hub: which client gets
// which pair.
//   - Clients can subscribe/unsubscribe to specific trading pairs
//   - Each client can subscribe to multiple pairs
//   - Messages are only sent to clients subscribed to the relevant pair
type SubscriptionManager struct {
	// Map of client ID -> set of subscribed pairs
	clientSubscriptions map[string]map[string]bool

	// Map of pair -> set of subscribed client IDs
	pairSubscriptions map[string]map[string]bool

	mu sync.RWMutex
}

func NewSubscriptionManager() *SubscriptionManager {
	return &SubscriptionManager{
		clientSubscriptions: make(map[string]map[string]bool),
		pairSubscriptions:   make(map[string]map[string]bool),
	}
}

// Subscribe adds a subscription. It reports whether it was new.
func (s *SubscriptionManager) Subscribe(clientID, pair string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.clientSubscriptions[clientID][pair] {
		return false
	}
	if s.clientSubscriptions[clientID] == nil {
		s.clientSubscriptions[clientID] = make(map[string]bool)
	}
	s.clientSubscriptions[clientID][pair] = true

	if s.pairSubscriptions[pair] == nil {
		s.pairSubscriptions[pair] = make(map[string]bool)
	}
	s.pairSubscriptions[pair][clientID] = true
	return true
}

// Unsubscribe removes a subscription for a client from a trading pair.
func (s *SubscriptionManager) Unsubscribe(clientID, pair string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pairs, ok := s.clientSubscriptions[clientID]; ok {
		delete(pairs, pair)
		if len(pairs) == 0 {
			delete(s.clientSubscriptions, clientID)
		}
	}
	if clients, ok := s.pairSubscriptions[pair]; ok {
		delete(clients, clientID)
		if len(clients) == 0 {
			delete(s.pairSubscriptions, pair)
		}
	}
}

// UnsubscribeAll removes all subscriptions for a client.
func (s *SubscriptionManager) UnsubscribeAll(clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for pair := range s.clientSubscriptions[clientID] {
		if clients, ok := s.pairSubscriptions[pair]; ok {
			delete(clients, clientID)
			if len(clients) == 0 {
				delete(s.pairSubscriptions, pair)
			}
		}
	}
	delete(s.clientSubscriptions, clientID)
}

// SubscribedPairs returns the pairs a client is subscribed to, sorted.
func (s *SubscriptionManager) SubscribedPairs(clientID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]string, 0, len(s.clientSubscriptions[clientID]))
	for pair := range s.clientSubscriptions[clientID] {
		result = append(result, pair)
	}
	sort.Strings(result)
	return result
}

// SubscribedClients returns all clients subscribed to a pair.
func (s *SubscriptionManager) SubscribedClients(pair string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]string, 0, len(s.pairSubscriptions[pair]))
	for clientID := range s.pairSubscriptions[pair] {
		result = append(result, clientID)
	}
	return result
}

func (s *SubscriptionManager) IsSubscribed(clientID, pair string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clientSubscriptions[clientID][pair]
}

// PairCounts returns the number of subscribers per pair.
func (s *SubscriptionManager) PairCounts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]int, len(s.pairSubscriptions))
	for pair, clients := range s.pairSubscriptions {
		out[pair] = len(clients)
	}
	return out
}

// SubscriptionMessage represents a subscription request from a client.
type SubscriptionMessage struct {
	Action string   `json:"action"` // "subscribe" or "unsubscribe"
	Pairs  []string `json:"pairs"`
}

// SubscriptionAckMessage represents an acknowledgment for a subscription request.
type SubscriptionAckMessage struct {
	Type      EventType `json:"type"`
	Action    string    `json:"action"`
	Success   bool      `json:"success"`
	Pairs     []string  `json:"pairs"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewSubscriptionAck(action string, success bool, pairs []string, message string) *SubscriptionAckMessage {
	return &SubscriptionAckMessage{
		Type:      EventTypeSubscription,
		Action:    action,
		Success:   success,
		Pairs:     pairs,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// EventType represents the type of WebSocket event.
type EventType string

const (
	EventTypeTrade        EventType = "trade"
	EventTypeOrderBook    EventType = "orderbook"
	EventTypeOrderUpdate  EventType = "order_update"
	EventTypeSubscription EventType = "subscription_ack"
	EventTypeError        EventType = "error"
	EventTypeHeartbeat    EventType = "heartbeat"
	EventTypeSnapshot     EventType = "snapshot"
)

// TradeEvent represents a trade execution event.
type TradeEvent struct {
	Type      EventType     `json:"type"`
	Timestamp time.Time     `json:"timestamp"`
	Pair      string        `json:"pair"`
	Trade     *models.Trade `json:"trade"`
}

func NewTradeEvent(trade *models.Trade) *TradeEvent {
	return &TradeEvent{
		Type:      EventTypeTrade,
		Timestamp: time.Now().UTC(),
		Pair:      trade.Pair,
		Trade:     trade,
	}
}

// OrderBookEvent carries the aggregated book after a change.
type OrderBookEvent struct {
	Type      EventType               `json:"type"`
	Timestamp time.Time               `json:"timestamp"`
	Pair      string                  `json:"pair"`
	Bids      []engine.OrderBookLevel `json:"bids"`
	Asks      []engine.OrderBookLevel `json:"asks"`
	Sequence  int64                   `json:"sequence"`
}

func NewOrderBookEvent(snap *engine.BookSnapshot, sequence int64) *OrderBookEvent {
	return &OrderBookEvent{
		Type:      EventTypeOrderBook,
		Timestamp: snap.Timestamp,
		Pair:      snap.Pair,
		Bids:      snap.Bids,
		Asks:      snap.Asks,
		Sequence:  sequence,
	}
}

// OrderUpdateEvent represents an order status update event.
type OrderUpdateEvent struct {
	Type           EventType       `json:"type"`
	Timestamp      time.Time       `json:"timestamp"`
	Pair           string          `json:"pair"`
	OrderID        int64           `json:"order_id"`
	Side           models.Side     `json:"side"`
	Status         models.Status   `json:"status"`
	FilledQuantity decimal.Decimal `json:"filled_quantity"`
	Remaining      decimal.Decimal `json:"remaining"`
}

func NewOrderUpdateEvent(o *models.Order) *OrderUpdateEvent {
	return &OrderUpdateEvent{
		Type:           EventTypeOrderUpdate,
		Timestamp:      o.UpdatedAt,
		Pair:           o.Pair,
		OrderID:        o.ID,
		Side:           o.Side,
		Status:         o.Status,
		FilledQuantity: o.FilledQuantity,
		Remaining:      o.Remaining(),
	}
}

// SnapshotEvent is sent once per subscription: the book plus the latest
// trades.
type SnapshotEvent struct {
	Type      EventType               `json:"type"`
	Timestamp time.Time               `json:"timestamp"`
	Pair      string                  `json:"pair"`
	Bids      []engine.OrderBookLevel `json:"bids"`
	Asks      []engine.OrderBookLevel `json:"asks"`
	Trades    []*models.Trade         `json:"trades"`
	Sequence  int64                   `json:"sequence"`
}

func NewSnapshotEvent(snap *engine.BookSnapshot, trades []*models.Trade, sequence int64) *SnapshotEvent {
	if trades == nil {
		trades = []*models.Trade{}
	}
	return &SnapshotEvent{
		Type:      EventTypeSnapshot,
		Timestamp: snap.Timestamp,
		Pair:      snap.Pair,
		Bids:      snap.Bids,
		Asks:      snap.Asks,
		Trades:    trades,
		Sequence:  sequence,
	}
}

// HeartbeatEvent is a periodic heartbeat message.
type HeartbeatEvent struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Sequence  int64     `json:"sequence"`
}

func NewHeartbeatEvent(sequence int64) *HeartbeatEvent {
	return &HeartbeatEvent{
		Type:      EventTypeHeartbeat,
		Timestamp: time.Now().UTC(),
		Sequence:  sequence,
	}
}

// ErrorEvent represents an error event.
type ErrorEvent struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
}

func NewErrorEvent(code, message string) *ErrorEvent {
	return &ErrorEvent{
		Type:      EventTypeError,
		Timestamp: time.Now().UTC(),
		Code:      code,
		Message:   message,
	}
}

// toJSON marshals an event. Every event type here marshals cleanly, so a
// failure is a programming error.
func toJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic("ws: marshal event: " + err.Error())
	}
	return data
}
