package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/smartwaste/smartwaste-api/apperrors"
)

// ProximityRoutingKey is the topic proximity events are published under
const ProximityRoutingKey = "proximity.collector_nearby"

const publishTimeout = 3 * time.Second

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQP publishes proximity events to a topic exchange. Messages are transient
// and no queue is declared, so events without a bound consumer are dropped.
type AMQP struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       publisher
	exchange string
}

// DialAMQP connects to the broker and declares the exchange
func DialAMQP(url, exchange string) (*AMQP, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQP{conn: conn, ch: ch, exchange: exchange}, nil
}

// Dispatch implements Dispatcher
func (a *AMQP) Dispatch(ctx context.Context, ev ProximityEvent) error {
	if a.conn != nil && a.conn.IsClosed() {
		return fmt.Errorf("amqp connection closed: %w", apperrors.ErrUnavailable)
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal proximity event: %w", err)
	}
	pubctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	// a channel is not safe for concurrent publishing
	a.mu.Lock()
	defer a.mu.Unlock()
	err = a.ch.PublishWithContext(pubctx, a.exchange, ProximityRoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Transient,
		MessageId:    uuid.NewString(),
		Timestamp:    ev.At,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("amqp publish: %v: %w", err, apperrors.ErrUnavailable)
	}
	return nil
}

// Close releases the broker connection
func (a *AMQP) Close() error {
	if a.conn == nil {
		return nil
	}
	return a.conn.Close()
}
