package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// Publisher hands domain events to a broker.
type Publisher interface {
	Publish(ctx context.Context, ev DomainEvent) error
	Name() string
	Close() error
}

// AMQPPublisher publishes domain events to a RabbitMQ topic exchange with
// the event type as routing key, so consumers can bind to patterns such as
// "order.*" or "trade.executed".
type AMQPPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *zap.Logger
}

// NewAMQPPublisher dials RabbitMQ and declares the exchange.
func NewAMQPPublisher(amqpURL, exchange string, logger *zap.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true, // durable
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	return &AMQPPublisher{
		conn:     conn,
		channel:  ch,
		exchange: exchange,
		logger:   logger,
	}, nil
}

func (p *AMQPPublisher) Name() string { return "rabbitmq" }

// Publish sends ev as a persistent JSON message. The event id doubles as
// the message id so consumers can deduplicate redeliveries.
func (p *AMQPPublisher) Publish(_ context.Context, ev DomainEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	err = p.channel.Publish(
		p.exchange,
		string(ev.Type),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    ev.ID,
			Timestamp:    ev.OccurredAt,
			Headers:      amqp.Table{"pair": ev.Pair},
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}

	p.logger.Debug("event published",
		zap.String("routing_key", string(ev.Type)),
		zap.String("event_id", ev.ID))
	return nil
}

// Close shuts down RabbitMQ resources gracefully.
func (p *AMQPPublisher) Close() error {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// NopPublisher discards events. It is used when EVENT_BROKER is "none".
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, DomainEvent) error { return nil }
func (NopPublisher) Name() string                               { return "none" }
func (NopPublisher) Close() error                               { return nil }
