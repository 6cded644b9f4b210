// Package brokertest provides an in-memory queue broker for pipeline tests.
package brokertest

import (
	"context"
	"errors"
	"sync"

	"github.com/target/simqueue/internal/core"
)

// Message is a message held by the Broker.
type Message struct {
	Queue       string
	MessageID   string
	Body        []byte
	Redelivered bool
}

// Broker is an in-memory implementation of core.MessagePublisher and core.MessageConsumer.
// Each consumer holds at most one unsettled delivery. A delivery left unsettled when the handler
// returns goes back to the head of its queue marked as redelivered.
type Broker struct {
	mu       sync.Mutex
	queues   map[string][]Message
	acked    []Message
	rejected []Message
	signal   chan struct{}

	// PublishErr, when set, is consulted before every publish.
	PublishErr func(msg core.OutboundMessage) error
}

// New constructs an empty Broker.
func New() *Broker {
	return &Broker{queues: make(map[string][]Message), signal: make(chan struct{})}
}

// Publish appends msg to its queue.
func (b *Broker) Publish(_ context.Context, msg core.OutboundMessage) error {
	if msg.Queue == "" {
		return errors.New("queue is required")
	}
	b.mu.Lock()
	hook := b.PublishErr
	b.mu.Unlock()
	if hook != nil {
		if err := hook(msg); err != nil {
			return err
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.queues[msg.Queue] = append(b.queues[msg.Queue], Message{
		Queue:     msg.Queue,
		MessageID: msg.MessageID,
		Body:      append([]byte(nil), msg.Body...),
	})
	b.wakeLocked()
	return nil
}

// SetPublishErr replaces the publish failure hook.
func (b *Broker) SetPublishErr(fn func(msg core.OutboundMessage) error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.PublishErr = fn
}

// Consume hands messages from queue to handle one at a time until ctx is done.
func (b *Broker) Consume(ctx context.Context, queue string, handle core.DeliveryHandler) error {
	if handle == nil {
		return errors.New("handler is required")
	}
	for {
		msg, ok := b.next(ctx, queue)
		if !ok {
			return nil
		}
		d := &delivery{broker: b, msg: msg}
		_ = handle(ctx, d)
		if !d.settled() {
			b.requeue(msg)
		}
	}
}

func (b *Broker) next(ctx context.Context, queue string) (Message, bool) {
	for {
		b.mu.Lock()
		if q := b.queues[queue]; len(q) > 0 {
			msg := q[0]
			b.queues[queue] = q[1:]
			b.mu.Unlock()
			return msg, true
		}
		signal := b.signal
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return Message{}, false
		case <-signal:
		}
	}
}

func (b *Broker) requeue(msg Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	msg.Redelivered = true
	b.queues[msg.Queue] = append([]Message{msg}, b.queues[msg.Queue]...)
	b.wakeLocked()
}

func (b *Broker) wakeLocked() {
	close(b.signal)
	b.signal = make(chan struct{})
}

// Pending returns the messages waiting in queue.
func (b *Broker) Pending(queue string) []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Message(nil), b.queues[queue]...)
}

// Acked returns every acknowledged message.
func (b *Broker) Acked() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Message(nil), b.acked...)
}

// Rejected returns every message rejected without requeue.
func (b *Broker) Rejected() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Message(nil), b.rejected...)
}

type delivery struct {
	broker *Broker
	msg    Message

	mu   sync.Mutex
	done bool
}

var errAlreadySettled = errors.New("delivery already settled")

func (d *delivery) Body() []byte      { return d.msg.Body }
func (d *delivery) MessageID() string { return d.msg.MessageID }
func (d *delivery) Redelivered() bool { return d.msg.Redelivered }

func (d *delivery) Ack() error {
	if err := d.settle(); err != nil {
		return err
	}
	d.broker.mu.Lock()
	defer d.broker.mu.Unlock()
	d.broker.acked = append(d.broker.acked, d.msg)
	return nil
}

func (d *delivery) Reject(requeue bool) error {
	if err := d.settle(); err != nil {
		return err
	}
	if requeue {
		d.broker.requeue(d.msg)
		return nil
	}
	d.broker.mu.Lock()
	defer d.broker.mu.Unlock()
	d.broker.rejected = append(d.broker.rejected, d.msg)
	return nil
}

func (d *delivery) settle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.done {
		return errAlreadySettled
	}
	d.done = true
	return nil
}

func (d *delivery) settled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.done
}

var (
	_ core.MessagePublisher = (*Broker)(nil)
	_ core.MessageConsumer  = (*Broker)(nil)
)
