package rabbit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nlds-io/nlds/common"
	"github.com/nlds-io/nlds/config"
)

// Handler processes one decoded envelope message delivered on a binding
// pattern. Returning an error nacks the delivery (broker redelivers);
// returning nil acks it.
type Handler func(ctx context.Context, msg *common.Message) error

// Consumer is a single-threaded cooperative main loop servicing one
// queue, per spec.md §5's concurrency model: no intra-process fan-out,
// one keepalive goroutine alongside it.
type Consumer struct {
	cfg      config.RabbitMQConfig
	dialer   Dialer
	logger   *common.ContextLogger
	name     string // this consumer's identity, appended to details.route
	queue    string
	patterns []string

	conn      Connection
	channel   Channel
	keepalive *Keepalive
}

// NewConsumer constructs a Consumer bound to queue, subscribing to the
// given routing-key wildcard patterns (spec.md §4.1: "Queues subscribe
// by wildcard").
func NewConsumer(cfg config.RabbitMQConfig, dialer Dialer, logger *common.ContextLogger, consumerName, queue string, patterns []string) *Consumer {
	return &Consumer{cfg: cfg, dialer: dialer, logger: logger, name: consumerName, queue: queue, patterns: patterns}
}

func (c *Consumer) url() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d%s", c.cfg.User, c.cfg.Password, c.cfg.Server, c.cfg.Port, c.cfg.VHost)
}

// Connect declares the exchange(s), this consumer's own queue, and binds
// every pattern, starting an idle keepalive daemon.
func (c *Consumer) Connect(ctx context.Context) error {
	return DefaultRetryPolicy.Retry(ctx, c.logger, "bus.connect", func() error {
		conn, err := c.dialer.Dial(c.url())
		if err != nil {
			return err
		}
		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return err
		}
		if err := ch.Qos(1, 0, false); err != nil {
			_ = conn.Close()
			return err
		}

		exchange := c.cfg.Exchange
		if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
			_ = conn.Close()
			return fmt.Errorf("declare exchange %s: %w", exchange, err)
		}

		if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
			_ = conn.Close()
			return fmt.Errorf("declare queue %s: %w", c.queue, err)
		}
		for _, pattern := range c.patterns {
			if err := ch.QueueBind(c.queue, pattern, exchange, false, nil); err != nil {
				_ = conn.Close()
				return fmt.Errorf("bind queue %s to %s: %w", c.queue, pattern, err)
			}
		}

		c.conn = conn
		c.channel = ch
		c.keepalive = NewKeepalive(c.cfg.HeartbeatDuration(), func() error {
			if c.conn == nil || c.conn.IsClosed() {
				return fmt.Errorf("connection closed")
			}
			return nil
		}, c.logger)
		c.keepalive.Start(ctx)
		return nil
	})
}

// Run consumes deliveries until ctx is cancelled, invoking handler for
// each decoded message. The keepalive daemon polls only while this loop
// is actively reading (spec.md §4.8: "idle when the consumer is not
// polling").
func (c *Consumer) Run(ctx context.Context, handler Handler) error {
	if c.channel == nil {
		if err := c.Connect(ctx); err != nil {
			return err
		}
	}

	deliveries, err := c.channel.Consume(c.queue, c.name, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}

	c.keepalive.StartPolling()
	defer c.keepalive.StopPolling()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed for queue %s", c.queue)
			}
			var msg common.Message
			if err := json.Unmarshal(delivery.Body, &msg); err != nil {
				if c.logger != nil {
					c.logger.WithError(err).Error("discarding undecodable message")
				}
				_ = delivery.Nack(false, false)
				continue
			}
			msg.Details.AppendRoute(c.name)

			if err := handler(ctx, &msg); err != nil {
				if c.logger != nil {
					c.logger.WithError(err).Warn("handler failed, nacking for redelivery")
				}
				_ = delivery.Nack(false, true)
				continue
			}
			_ = delivery.Ack(false)
		}
	}
}

// Close stops the keepalive daemon and closes the channel/connection.
func (c *Consumer) Close() error {
	if c.keepalive != nil {
		c.keepalive.Kill()
	}
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
