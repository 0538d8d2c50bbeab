package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nlds-io/nlds/common"
	"github.com/nlds-io/nlds/config"
	"github.com/streadway/amqp"
)

// Publisher maintains a retrying, confirm-mode connection to the bus and
// publishes envelope messages to a topic exchange with mandatory=true,
// mirroring the original's RabbitMQPublisher.get_connection /
// declare_bindings sequence (spec.md §4.1, §4.8).
type Publisher struct {
	cfg    config.RabbitMQConfig
	dialer Dialer
	logger *common.ContextLogger

	conn      Connection
	channel   Channel
	keepalive *Keepalive

	defaultExchange string
}

// NewPublisher constructs a Publisher against the given dialer (use
// NewDialer() for production, a mock Dialer in tests).
func NewPublisher(cfg config.RabbitMQConfig, dialer Dialer, logger *common.ContextLogger) *Publisher {
	return &Publisher{cfg: cfg, dialer: dialer, logger: logger}
}

// url builds the amqp:// connection string from config.
func (p *Publisher) url() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d%s", p.cfg.User, p.cfg.Password, p.cfg.Server, p.cfg.Port, p.cfg.VHost)
}

// Connect establishes the connection, channel, exchange bindings, and
// keepalive daemon, retrying indefinitely with DefaultRetryPolicy on
// transport failure (spec.md §4.1: "Publishers are retried with
// exponential backoff... on transport failure").
func (p *Publisher) Connect(ctx context.Context) error {
	return DefaultRetryPolicy.Retry(ctx, p.logger, "bus.connect", func() error {
		conn, err := p.dialer.Dial(p.url())
		if err != nil {
			return fmt.Errorf("%w: %w", common.ErrUnroutable, err)
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
		if err := ch.Confirm(false); err != nil {
			_ = conn.Close()
			return err
		}
		if err := p.declareBindings(ch); err != nil {
			_ = conn.Close()
			return err
		}

		p.conn = conn
		p.channel = ch
		p.keepalive = NewKeepalive(p.cfg.HeartbeatDuration(), p.processEvents, p.logger)
		p.keepalive.Start(ctx)
		return nil
	})
}

// processEvents is the keepalive daemon's pump function. The streadway
// client processes frames internally while Consume is being read, so
// here it is a lightweight liveness check against the channel.
func (p *Publisher) processEvents() error {
	if p.conn == nil || p.conn.IsClosed() {
		return fmt.Errorf("connection closed")
	}
	return nil
}

// declareBindings declares every configured exchange and remembers the
// first one as the default publish target, mirroring the original's
// declare_bindings() / default_exchange assignment.
func (p *Publisher) declareBindings(ch Channel) error {
	exchanges := p.cfg.Exchanges
	if len(exchanges) == 0 {
		exchanges = []config.ExchangeConfig{{Name: p.cfg.Exchange, Type: "topic"}}
	}
	for i, ex := range exchanges {
		kind := ex.Type
		if kind == "" {
			kind = "topic"
		}
		if err := ch.ExchangeDeclare(ex.Name, kind, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.Name, err)
		}
		if i == 0 {
			p.defaultExchange = ex.Name
		}
	}
	return nil
}

// Publish sends msg to the default exchange under routingKey, requesting
// a publisher confirm, with mandatory=true so unroutable messages are
// returned rather than silently dropped (spec.md §4.1). An unroutable
// message is logged, not re-raised, to avoid infinite republish loops.
func (p *Publisher) Publish(ctx context.Context, routingKey common.RoutingKey, msg *common.Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	return DefaultRetryPolicy.Retry(ctx, p.logger, "bus.publish", func() error {
		if p.channel == nil {
			if err := p.Connect(ctx); err != nil {
				return err
			}
		}

		confirms := p.channel.NotifyPublish(make(chan amqp.Confirmation, 1))
		returns := p.channel.NotifyReturn(make(chan amqp.Return, 1))

		if err := p.channel.Publish(p.defaultExchange, routingKey.String(), true, false, amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		}); err != nil {
			return fmt.Errorf("%w: %w", common.ErrUnroutable, err)
		}

		select {
		case ret := <-returns:
			if p.logger != nil {
				p.logger.WithFields(map[string]interface{}{
					"routing_key": routingKey.String(),
					"reply_text":  ret.ReplyText,
				}).Warn("message unroutable, not re-raising")
			}
			return nil
		case conf := <-confirms:
			if !conf.Ack {
				return fmt.Errorf("%w: broker nacked publish", common.ErrUnroutable)
			}
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

// Close stops the keepalive daemon and closes the channel/connection.
func (p *Publisher) Close() error {
	if p.keepalive != nil {
		p.keepalive.Kill()
	}
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
