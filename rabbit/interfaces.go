// Package rabbit implements the NLDS bus layer: a retrying, keepalive-
// backed AMQP publisher and consumer pair built over a small set of
// interfaces so the broker can be swapped for a mock in tests (mirrors
// the teacher's queue/amqp_interface.go dependency-injection pattern).
package rabbit

import "github.com/streadway/amqp"

// Connection is the subset of *amqp.Connection the package depends on.
type Connection interface {
	Channel() (Channel, error)
	Close() error
	IsClosed() bool
	NotifyClose(receiver chan *amqp.Error) chan *amqp.Error
}

// Channel is the subset of *amqp.Channel the package depends on.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Qos(prefetchCount, prefetchSize int, global bool) error
	Confirm(noWait bool) error
	NotifyPublish(confirm chan amqp.Confirmation) chan amqp.Confirmation
	NotifyReturn(c chan amqp.Return) chan amqp.Return
	Close() error
}

// Dialer opens a Connection, replacing amqp.Dial for tests.
type Dialer interface {
	Dial(url string) (Connection, error)
}

// realDialer dials a real broker.
type realDialer struct{}

// Dial implements Dialer against the real streadway/amqp client.
func (realDialer) Dial(url string) (Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return &realConnection{conn: conn}, nil
}

// NewDialer returns the production Dialer.
func NewDialer() Dialer { return realDialer{} }

type realConnection struct {
	conn *amqp.Connection
}

func (c *realConnection) Channel() (Channel, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, err
	}
	return &realChannel{ch: ch}, nil
}

func (c *realConnection) Close() error { return c.conn.Close() }

func (c *realConnection) IsClosed() bool { return c.conn.IsClosed() }

func (c *realConnection) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	return c.conn.NotifyClose(receiver)
}

type realChannel struct {
	ch *amqp.Channel
}

func (c *realChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	return c.ch.ExchangeDeclare(name, kind, durable, autoDelete, internal, noWait, args)
}

func (c *realChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	return c.ch.QueueDeclare(name, durable, autoDelete, exclusive, noWait, args)
}

func (c *realChannel) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	return c.ch.QueueBind(name, key, exchange, noWait, args)
}

func (c *realChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	return c.ch.Publish(exchange, key, mandatory, immediate, msg)
}

func (c *realChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	return c.ch.Consume(queue, consumer, autoAck, exclusive, noLocal, noWait, args)
}

func (c *realChannel) Qos(prefetchCount, prefetchSize int, global bool) error {
	return c.ch.Qos(prefetchCount, prefetchSize, global)
}

func (c *realChannel) Confirm(noWait bool) error { return c.ch.Confirm(noWait) }

func (c *realChannel) NotifyPublish(confirm chan amqp.Confirmation) chan amqp.Confirmation {
	return c.ch.NotifyPublish(confirm)
}

func (c *realChannel) NotifyReturn(r chan amqp.Return) chan amqp.Return {
	return c.ch.NotifyReturn(r)
}

func (c *realChannel) Close() error { return c.ch.Close() }
