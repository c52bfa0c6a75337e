// Package events publishes SLA and risk events to the configured broker.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"fleet-monitor/compliance/internal/domain"
	"fleet-monitor/compliance/internal/logger"
	"fleet-monitor/compliance/internal/metrics"
)

const (
	RedisChannel = "fleet:events"
	AMQPExchange = "fleet_events"
)

type Publisher interface {
	Publish(ctx context.Context, e domain.Event) error
	Close() error
}

// RoutingKey is "<type>.<vehicle>", e.g. "sla_violation.v-17".
func RoutingKey(e domain.Event) string {
	return fmt.Sprintf("%s.%s", strings.ToLower(string(e.Type)), e.VehicleID)
}

func count(err error) error {
	if err != nil {
		metrics.EventPublishFailure.Add(1)
		return err
	}
	metrics.EventsPublished.Add(1)
	return nil
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, domain.Event) error { return nil }
func (NopPublisher) Close() error                                { return nil }

// RedisPublisher fans events out over Redis pub/sub.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
}

func NewRedisPublisher(client redis.UniversalClient) *RedisPublisher {
	return &RedisPublisher{client: client, channel: RedisChannel}
}

func (p *RedisPublisher) Publish(ctx context.Context, e domain.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return count(p.client.Publish(ctx, p.channel, body).Err())
}

// Close leaves the shared client open; its owner closes it.
func (p *RedisPublisher) Close() error { return nil }

// AMQPPublisher publishes to a durable topic exchange.
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

// DialAMQP connects with exponential backoff and declares the exchange.
func DialAMQP(url string, attempts int) (*AMQPPublisher, error) {
	var conn *amqp.Connection
	var err error

	for i := 1; i <= attempts; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		logger.Warn("amqp_connect", "RabbitMQ connect attempt failed", "attempt", i, "error", err.Error())
		if i < attempts {
			time.Sleep(time.Second * time.Duration(math.Pow(2, float64(i-1))))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ after %d attempts: %w", attempts, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		AMQPExchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	logger.Info("amqp_connect", "Connected to RabbitMQ", "exchange", AMQPExchange)
	return &AMQPPublisher{conn: conn, ch: ch, exchange: AMQPExchange}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, e domain.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	// amqp channels are not safe for concurrent publishes.
	p.mu.Lock()
	defer p.mu.Unlock()

	return count(p.ch.PublishWithContext(
		ctx,
		p.exchange,
		RoutingKey(e),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    e.OccurredAt,
			Body:         body,
		},
	))
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
