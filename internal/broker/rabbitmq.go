// Package broker handles the messaging transport: outbound audit and
// approval-request messages, and the inbound callback stream from the remote
// approver. RabbitMQ is the concrete carrier; everything above it only sees
// routing keys and JSON payloads.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/kolobok/dbadmin/pkg/metrics"
)

const (
	exchangeName = "dbadmin.topic"

	// RoutingKeyAudit carries audit notifications to the operator channel
	RoutingKeyAudit = "dbadmin.audit"

	confirmTimeout = 10 * time.Second
)

// RabbitMQClient handles the low-level communication with the message broker
type RabbitMQClient struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	logger     *slog.Logger
	connClosed chan *amqp.Error
	chanClosed chan *amqp.Error
	closeOnce  sync.Once
	healthy    atomic.Bool
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewRabbitMQClient initializes a connection and a channel with Publisher
// Confirms enabled, and watches for link loss.
func NewRabbitMQClient(url string, l *slog.Logger) (*RabbitMQClient, error) {
	c, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %v", err)
	}

	ch, err := c.Channel()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to open RabbitMQ channel: %v", err)
	}

	if err := ch.ExchangeDeclare(
		exchangeName,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		ch.Close()
		c.Close()
		return nil, fmt.Errorf("failed to declare topic exchange: %v", err)
	}

	if err := ch.Confirm(false); err != nil {
		ch.Close()
		c.Close()
		return nil, fmt.Errorf("failed to activate Publisher Confirms: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &RabbitMQClient{
		conn:       c,
		channel:    ch,
		logger:     l,
		connClosed: make(chan *amqp.Error, 1),
		chanClosed: make(chan *amqp.Error, 1),
		ctx:        ctx,
		cancel:     cancel,
	}

	client.healthy.Store(true)
	metrics.BrokerHealth.Set(1)

	client.conn.NotifyClose(client.connClosed)
	client.channel.NotifyClose(client.chanClosed)

	go func() {
		select {
		case err := <-client.connClosed:
			client.healthy.Store(false)
			metrics.BrokerHealth.Set(0)
			l.Warn("RabbitMQ connection closed", "error", err)
		case err := <-client.chanClosed:
			client.healthy.Store(false)
			metrics.BrokerHealth.Set(0)
			l.Warn("RabbitMQ channel closed", "error", err)
		case <-client.ctx.Done():
			return
		}
	}()

	l.Info("Connected to RabbitMQ", "url", url)
	return client, nil
}

// Publish sends a JSON payload to the broker and blocks until a confirmation
// (ACK/NACK) is received or the context/confirm timeout fires.
func (r *RabbitMQClient) Publish(ctx context.Context, routingKey string, payload any) error {
	if !r.IsHealthy() {
		return fmt.Errorf("broker connection is closed")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to serialize payload: %v", err)
	}

	deferred, err := r.channel.PublishWithDeferredConfirmWithContext(
		ctx,
		exchangeName,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		r.logger.Error("failed to publish message to exchange", "routing_key", routingKey, "error", err)
		return fmt.Errorf("publish call failed: %v", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-deferred.Done():
		if !deferred.Acked() {
			return fmt.Errorf("RabbitMQ NACK received: message not persisted")
		}
		return nil
	case <-time.After(confirmTimeout):
		return fmt.Errorf("publisher confirm timeout")
	}
}

// Close gracefully shuts down the RabbitMQ resources
func (r *RabbitMQClient) Close() error {
	r.closeOnce.Do(func() {
		r.logger.Info("Terminating RabbitMQ client")
		r.cancel()
		if r.channel != nil {
			r.channel.Close()
		}
		if r.conn != nil {
			r.conn.Close()
		}
	})
	return nil
}

// IsHealthy returns true if the connection and channel are active
func (r *RabbitMQClient) IsHealthy() bool {
	return r.healthy.Load()
}
