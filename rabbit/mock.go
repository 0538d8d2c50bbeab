package rabbit

import "github.com/streadway/amqp"

// MockDialer returns a fixed MockConnection regardless of url, mirroring
// the teacher's queue/amqp_mock.go dependency-injection test pattern.
type MockDialer struct {
	Conn    *MockConnection
	DialErr error
}

func (d *MockDialer) Dial(url string) (Connection, error) {
	if d.DialErr != nil {
		return nil, d.DialErr
	}
	return d.Conn, nil
}

// MockConnection records Channel()/Close() calls and hands back a fixed
// MockChannel.
type MockConnection struct {
	Chan      *MockChannel
	ChannelErr error
	CloseErr  error
	closed    bool
}

func (c *MockConnection) Channel() (Channel, error) {
	if c.ChannelErr != nil {
		return nil, c.ChannelErr
	}
	return c.Chan, nil
}

func (c *MockConnection) Close() error {
	c.closed = true
	return c.CloseErr
}

func (c *MockConnection) IsClosed() bool { return c.closed }

func (c *MockConnection) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error { return receiver }

// MockChannel records every call a Publisher/Consumer makes against it so
// tests can assert on exchange declarations, bindings, and published
// bodies without a live broker.
type MockChannel struct {
	Published        []amqp.Publishing
	PublishedKeys     []string
	Bindings         []string
	DeclaredExchanges []string
	DeclaredQueues    []string

	ConfirmAck bool // when true, Publish's confirm channel reports Ack
	Deliveries chan amqp.Delivery

	PublishErr error
	CloseErr   error
}

func (c *MockChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	c.DeclaredExchanges = append(c.DeclaredExchanges, name)
	return nil
}

func (c *MockChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	c.DeclaredQueues = append(c.DeclaredQueues, name)
	return amqp.Queue{Name: name}, nil
}

func (c *MockChannel) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	c.Bindings = append(c.Bindings, key)
	return nil
}

func (c *MockChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if c.PublishErr != nil {
		return c.PublishErr
	}
	c.Published = append(c.Published, msg)
	c.PublishedKeys = append(c.PublishedKeys, key)
	return nil
}

func (c *MockChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	if c.Deliveries == nil {
		c.Deliveries = make(chan amqp.Delivery)
	}
	return c.Deliveries, nil
}

func (c *MockChannel) Qos(prefetchCount, prefetchSize int, global bool) error { return nil }

func (c *MockChannel) Confirm(noWait bool) error { return nil }

func (c *MockChannel) NotifyPublish(confirm chan amqp.Confirmation) chan amqp.Confirmation {
	go func() {
		confirm <- amqp.Confirmation{Ack: c.ConfirmAck || c.PublishErr == nil}
	}()
	return confirm
}

func (c *MockChannel) NotifyReturn(r chan amqp.Return) chan amqp.Return { return r }

func (c *MockChannel) Close() error { return c.CloseErr }
