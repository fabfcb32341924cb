// README: Domain event publishing over a RabbitMQ topic exchange.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange is the topic exchange all compass events go to.
const Exchange = "compass_topic"

// Routing keys.
const (
	KeyRouteCompleted   = "route.completed"
	KeySessionOpened    = "session.opened"
	KeySessionClosed    = "session.closed"
	KeyNavigationChange = "navigation.changed"
)

// Publisher sends a JSON-encoded event under a routing key.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, v any) error
}

// AMQPPublisher publishes on one channel of an AMQP connection. The channel
// is guarded by a mutex because amqp091 channels are not meant to be shared
// between concurrent publishers.
type AMQPPublisher struct {
	mu       sync.Mutex
	ch       *amqp.Channel
	exchange string
}

func NewAMQPPublisher(conn *amqp.Connection, exchange string) (*AMQPPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if exchange == "" {
		exchange = Exchange
	}
	return &AMQPPublisher{ch: ch, exchange: exchange}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, routingKey string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.PublishWithContext(ctx,
		p.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", routingKey, err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.Close()
}

// Nop drops every event. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }

// PublishAsync publishes in the background with a short timeout and logs
// failures. Callers on latency-sensitive paths use it instead of Publish.
func PublishAsync(p Publisher, routingKey string, v any) {
	if p == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := p.Publish(ctx, routingKey, v); err != nil {
			log.Printf("events: %v", err)
		}
	}()
}
