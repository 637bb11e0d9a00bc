package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/kolobok/dbadmin/internal/processor"
)

const (
	callbackQueue      = "dbadmin.callbacks"
	callbackRoutingKey = "dbadmin.approval.callback"
)

// CallbackConsumer receives the inbound callback events the remote approver
// produces when an action button is pressed.
type CallbackConsumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	handler *processor.CallbackHandler
	logger  *slog.Logger
}

func NewCallbackConsumer(url string, handler *processor.CallbackHandler, logger *slog.Logger) (*CallbackConsumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %v", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %v", err)
	}

	// Callbacks are tiny and ordered delivery matters for idempotent resolution
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to set QoS: %v", err)
	}

	return &CallbackConsumer{
		conn:    conn,
		channel: ch,
		handler: handler,
		logger:  logger,
	}, nil
}

// Listen binds the callback queue and consumes events until the context is
// cancelled. Malformed messages are dropped; handler errors never requeue a
// callback since a stale callback resolves to a no-op anyway.
func (c *CallbackConsumer) Listen(ctx context.Context) error {
	q, err := c.channel.QueueDeclare(callbackQueue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %v", err)
	}

	if err := c.channel.QueueBind(q.Name, callbackRoutingKey, exchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %v", err)
	}

	msgs, err := c.channel.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %v", err)
	}

	c.logger.Info("Callback consumer is online", "queue", q.Name, "routing_key", callbackRoutingKey)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}

			var event processor.CallbackEvent
			if err := json.Unmarshal(d.Body, &event); err != nil {
				c.logger.Error("Failed to unmarshal callback", "error", err)
				d.Nack(false, false) // Drop malformed messages
				continue
			}

			c.handler.Handle(ctx, event)

			if err := d.Ack(false); err != nil {
				c.logger.Error("Failed to Ack callback", "callback_id", event.CallbackID, "error", err)
			}
		}
	}
}

// Close gracefully terminates RabbitMQ resources
func (c *CallbackConsumer) Close() {
	c.logger.Info("Shutting down callback consumer")
	c.channel.Close()
	c.conn.Close()
}
