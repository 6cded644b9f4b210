package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/target/simqueue/internal/core"
)

// ConsumerOptions configures a Consumer.
type ConsumerOptions struct {
	Coordinator *Coordinator // Required
	Tag         string       // Optional: consumer tag prefix
	Prefetch    int          // Optional: unacked deliveries per channel (default 1)
	Logger      *slog.Logger // Optional
}

// Consumer pulls deliveries from a queue with manual acknowledgement.
type Consumer struct {
	coord    *Coordinator
	tag      string
	prefetch int
	logger   *slog.Logger
}

// NewConsumer constructs a Consumer.
func NewConsumer(opts ConsumerOptions) (*Consumer, error) {
	if opts.Coordinator == nil {
		return nil, errors.New("Coordinator is required")
	}
	prefetch := opts.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		coord:    opts.Coordinator,
		tag:      opts.Tag,
		prefetch: prefetch,
		logger:   logger.With("component", "broker_consumer"),
	}, nil
}

// Consume delivers messages from queue to handle one at a time until ctx is cancelled. The handler
// settles each delivery itself. A returned handler error is logged; a delivery the handler left
// unsettled is redelivered by the broker once the channel closes. A lost channel is reacquired
// through the coordinator with backoff.
func (c *Consumer) Consume(ctx context.Context, queue string, handle core.DeliveryHandler) error {
	if queue == "" {
		return errors.New("queue is required")
	}
	if handle == nil {
		return errors.New("handler is required")
	}

	b := newBackoff(c.coord.minB, c.coord.maxB)
	for {
		if ctx.Err() != nil {
			return nil
		}

		handled, err := c.consumeOnce(ctx, queue, handle)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, ErrCoordinatorClosed) {
			return err
		}
		if handled > 0 {
			b.reset()
		}

		delay := b.next()
		c.logger.WarnContext(ctx, "consumer channel lost; reacquiring",
			"queue", queue,
			"error", err,
			"retry_in", delay,
		)
		if sleepCtx(ctx, delay) != nil {
			return nil
		}
	}
}

// consumeOnce runs one channel until it closes. It returns how many deliveries were handled.
func (c *Consumer) consumeOnce(ctx context.Context, queue string, handle core.DeliveryHandler) (int, error) {
	handled := 0
	err := c.coord.WithChannel(ctx, queue, func(ch Channel) error {
		if err := ch.Qos(c.prefetch); err != nil {
			return fmt.Errorf("set prefetch: %w", err)
		}
		closed := ch.NotifyClose()
		deliveries, err := ch.Consume(ctx, queue, c.consumerTag())
		if err != nil {
			return fmt.Errorf("consume %s: %w", queue, err)
		}

		for {
			select {
			case <-ctx.Done():
				return nil
			case amqpErr, ok := <-closed:
				if !ok || amqpErr == nil {
					return amqp.ErrClosed
				}
				return amqpErr
			case d, ok := <-deliveries:
				if !ok {
					return amqp.ErrClosed
				}
				handled++
				if handleErr := handle(ctx, &delivery{d: d}); handleErr != nil {
					c.logger.ErrorContext(ctx, "delivery handler failed",
						"queue", queue,
						"message_id", d.MessageId,
						"error", handleErr,
					)
				}
			}
		}
	})
	return handled, err
}

func (c *Consumer) consumerTag() string {
	if c.tag == "" {
		return ""
	}
	return fmt.Sprintf("%s-%d", c.tag, time.Now().UnixNano())
}

// delivery adapts an amqp.Delivery to core.Delivery.
type delivery struct {
	d amqp.Delivery
}

func (d *delivery) Body() []byte        { return d.d.Body }
func (d *delivery) MessageID() string   { return d.d.MessageId }
func (d *delivery) Redelivered() bool   { return d.d.Redelivered }
func (d *delivery) Ack() error          { return d.d.Ack(false) }
func (d *delivery) Reject(r bool) error { return d.d.Reject(r) }

var _ core.MessageConsumer = (*Consumer)(nil)
