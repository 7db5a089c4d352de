package messaging

import (
	"time"

	"github.com/google/uuid"

	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/models"
)

// EventType is also the AMQP routing key of the event.
type EventType string

const (
	EventOrderPlaced          EventType = "order.placed"
	EventOrderPartiallyFilled EventType = "order.partially_filled"
	EventOrderCompleted       EventType = "order.completed"
	EventOrderCancelled       EventType = "order.cancelled"
	EventOrderExpired         EventType = "order.expired"
	EventTradeExecuted        EventType = "trade.executed"
)

// DomainEvent is what the engine tells the outside world after a match or
// cancel has been committed. Exactly one of Order and Trade is set.
type DomainEvent struct {
	ID         string        `json:"id"`
	Type       EventType     `json:"type"`
	Pair       string        `json:"pair"`
	OccurredAt time.Time     `json:"occurred_at"`
	Order      *models.Order `json:"order,omitempty"`
	Trade      *models.Trade `json:"trade,omitempty"`
}

// OrderEventType maps an order's state to the event announcing it. Market
// orders never rest, so a partial market order is announced as expired.
func OrderEventType(o *models.Order) EventType {
	switch o.Status {
	case models.Partial:
		if o.Type == models.Market {
			return EventOrderExpired
		}
		return EventOrderPartiallyFilled
	case models.Completed:
		return EventOrderCompleted
	case models.Cancelled:
		return EventOrderCancelled
	case models.Expired:
		return EventOrderExpired
	default:
		return EventOrderPlaced
	}
}

func NewOrderEvent(o *models.Order) DomainEvent {
	return DomainEvent{
		ID:         uuid.NewString(),
		Type:       OrderEventType(o),
		Pair:       o.Pair,
		OccurredAt: o.UpdatedAt,
		Order:      o,
	}
}

func NewTradeEvent(t *models.Trade) DomainEvent {
	return DomainEvent{
		ID:         uuid.NewString(),
		Type:       EventTradeExecuted,
		Pair:       t.Pair,
		OccurredAt: t.ExecutedAt,
		Trade:      t,
	}
}
