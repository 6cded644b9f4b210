package rabbitmq

import (
	"context"
	"errors"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

type fakeConn struct {
	mu       sync.Mutex
	closed   bool
	channels []*fakeChannel
	openErr  error
	newChan  func() *fakeChannel
}

func (c *fakeConn) Channel() (Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.openErr != nil {
		return nil, c.openErr
	}
	var ch *fakeChannel
	if c.newChan != nil {
		ch = c.newChan()
	} else {
		ch = newFakeChannel()
	}
	c.channels = append(c.channels, ch)
	return ch, nil
}

func (c *fakeConn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) openedChannels() []*fakeChannel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*fakeChannel(nil), c.channels...)
}

type fakeChannel struct {
	mu         sync.Mutex
	declared   []string
	prefetch   int
	published  []amqp.Publishing
	publishErr error
	declareErr error
	deliveries chan amqp.Delivery
	closeCh    chan *amqp.Error
	closed     bool
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		deliveries: make(chan amqp.Delivery, 16),
		closeCh:    make(chan *amqp.Error, 1),
	}
}

func (c *fakeChannel) DeclareQueue(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.declareErr != nil {
		return c.declareErr
	}
	c.declared = append(c.declared, name)
	return nil
}

func (c *fakeChannel) Qos(prefetch int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prefetch = prefetch
	return nil
}

func (c *fakeChannel) Publish(_ context.Context, _ string, msg amqp.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr != nil {
		return c.publishErr
	}
	c.published = append(c.published, msg)
	return nil
}

func (c *fakeChannel) Consume(context.Context, string, string) (<-chan amqp.Delivery, error) {
	return c.deliveries, nil
}

func (c *fakeChannel) NotifyClose() <-chan *amqp.Error { return c.closeCh }

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return amqp.ErrClosed
	}
	c.closed = true
	return nil
}

func (c *fakeChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// breakChannel simulates the broker closing the channel.
func (c *fakeChannel) breakChannel() {
	c.closeCh <- &amqp.Error{Code: amqp.ChannelError, Reason: "channel lost"}
}

type fakeAcknowledger struct {
	mu       sync.Mutex
	acked    []uint64
	rejected []uint64
	requeued []bool
}

func (a *fakeAcknowledger) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = append(a.acked, tag)
	return nil
}

func (a *fakeAcknowledger) Nack(uint64, bool, bool) error {
	return errors.New("nack not used")
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rejected = append(a.rejected, tag)
	a.requeued = append(a.requeued, requeue)
	return nil
}

func (a *fakeAcknowledger) snapshot() (acked, rejected []uint64, requeued []bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]uint64(nil), a.acked...), append([]uint64(nil), a.rejected...), append([]bool(nil), a.requeued...)
}
