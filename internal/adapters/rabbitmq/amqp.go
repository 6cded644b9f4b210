package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const heartbeat = 10 * time.Second

// ErrPublishNacked is returned when the broker negatively acknowledges a published message.
var ErrPublishNacked = errors.New("broker nacked publish")

func defaultDialer(url, name string, confirms bool) Dialer {
	return func(ctx context.Context) (Connection, error) {
		props := amqp.NewConnectionProperties()
		if name != "" {
			props.SetClientConnectionName(name)
		}
		conn, err := amqp.DialConfig(url, amqp.Config{
			Heartbeat:  heartbeat,
			Locale:     "en_US",
			Properties: props,
			Dial:       amqp.DefaultDial(30 * time.Second),
		})
		if err != nil {
			return nil, err
		}
		if ctx.Err() != nil {
			_ = conn.Close()
			return nil, ctx.Err()
		}
		return &amqpConnection{conn: conn, confirms: confirms}, nil
	}
}

type amqpConnection struct {
	conn     *amqp.Connection
	confirms bool
}

func (c *amqpConnection) Channel() (Channel, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, err
	}
	if c.confirms {
		if confirmErr := ch.Confirm(false); confirmErr != nil {
			return nil, errors.Join(fmt.Errorf("enable confirms: %w", confirmErr), ch.Close())
		}
	}
	return &amqpChannel{ch: ch, confirms: c.confirms}, nil
}

func (c *amqpConnection) IsClosed() bool { return c.conn.IsClosed() }
func (c *amqpConnection) Close() error   { return c.conn.Close() }

type amqpChannel struct {
	ch       *amqp.Channel
	confirms bool
}

// DeclareQueue declares a durable, non-exclusive queue.
func (c *amqpChannel) DeclareQueue(name string) error {
	_, err := c.ch.QueueDeclare(name, true, false, false, false, nil)
	return err
}

func (c *amqpChannel) Qos(prefetch int) error {
	return c.ch.Qos(prefetch, 0, false)
}

func (c *amqpChannel) Publish(ctx context.Context, queue string, msg amqp.Publishing) error {
	confirm, err := c.ch.PublishWithDeferredConfirmWithContext(ctx, "", queue, false, false, msg)
	if err != nil {
		return err
	}
	if !c.confirms || confirm == nil {
		return nil
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("wait for publish confirm: %w", err)
	}
	if !acked {
		return ErrPublishNacked
	}
	return nil
}

func (c *amqpChannel) Consume(ctx context.Context, queue, tag string) (<-chan amqp.Delivery, error) {
	return c.ch.ConsumeWithContext(ctx, queue, tag, false, false, false, false, nil)
}

func (c *amqpChannel) NotifyClose() <-chan *amqp.Error {
	return c.ch.NotifyClose(make(chan *amqp.Error, 1))
}

func (c *amqpChannel) Close() error { return c.ch.Close() }
