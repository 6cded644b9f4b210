package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/target/simqueue/internal/core"
)

// Publisher sends persistent messages over a single channel. The channel is guarded by a mutex and
// reopened after any publish error.
type Publisher struct {
	coord *Coordinator
	now   func() time.Time

	mu       sync.Mutex
	ch       Channel
	declared map[string]bool
}

// NewPublisher constructs a Publisher on top of a Coordinator.
func NewPublisher(coord *Coordinator) (*Publisher, error) {
	if coord == nil {
		return nil, errors.New("Coordinator is required")
	}
	return &Publisher{coord: coord, now: time.Now, declared: make(map[string]bool)}, nil
}

// Publish sends msg to its queue and waits for the broker confirm when confirms are enabled.
func (p *Publisher) Publish(ctx context.Context, msg core.OutboundMessage) error {
	if msg.Queue == "" {
		return errors.New("queue is required")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channelFor(ctx, msg.Queue)
	if err != nil {
		return err
	}

	err = ch.Publish(ctx, msg.Queue, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.MessageID,
		Timestamp:    p.now().UTC(),
		Body:         msg.Body,
	})
	if err != nil {
		p.resetLocked()
		return fmt.Errorf("publish to %s: %w", msg.Queue, err)
	}
	return nil
}

func (p *Publisher) channelFor(ctx context.Context, queue string) (Channel, error) {
	if p.ch == nil {
		ch, err := p.coord.OpenChannel(ctx, queue)
		if err != nil {
			return nil, err
		}
		p.ch = ch
		p.declared = map[string]bool{queue: true}
		return ch, nil
	}
	if !p.declared[queue] {
		if err := p.ch.DeclareQueue(queue); err != nil {
			p.resetLocked()
			return nil, fmt.Errorf("declare queue %s: %w", queue, err)
		}
		p.declared[queue] = true
	}
	return p.ch, nil
}

func (p *Publisher) resetLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	p.ch = nil
	p.declared = make(map[string]bool)
}

// Close releases the publisher channel.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return nil
	}
	err := p.ch.Close()
	p.ch = nil
	if errors.Is(err, amqp.ErrClosed) {
		return nil
	}
	return err
}

var _ core.MessagePublisher = (*Publisher)(nil)
