package rabbitmq

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/simqueue/internal/core"
)

func TestPublisher_PublishesPersistentJSON(t *testing.T) {
	conn := &fakeConn{}
	c := newTestCoordinator(t, func(context.Context) (Connection, error) { return conn, nil })
	p, err := NewPublisher(c)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, p.Publish(ctx, core.OutboundMessage{Queue: "simulation_jobs", MessageID: "m-1", Body: []byte(`{"id":1}`)}))
	require.NoError(t, p.Publish(ctx, core.OutboundMessage{Queue: "simulation_jobs", MessageID: "m-2", Body: []byte(`{"id":2}`)}))

	chans := conn.openedChannels()
	require.Len(t, chans, 1, "publisher reuses its channel")
	ch := chans[0]
	require.Len(t, ch.published, 2)
	assert.Equal(t, amqp.Persistent, ch.published[0].DeliveryMode)
	assert.Equal(t, "application/json", ch.published[0].ContentType)
	assert.Equal(t, "m-1", ch.published[0].MessageId)
	assert.JSONEq(t, `{"id":2}`, string(ch.published[1].Body))
	assert.Equal(t, []string{"simulation_jobs"}, ch.declared)

	require.NoError(t, p.Publish(ctx, core.OutboundMessage{Queue: "other", MessageID: "m-3"}))
	assert.Equal(t, []string{"simulation_jobs", "other"}, ch.declared)

	require.NoError(t, p.Close())
	assert.True(t, ch.isClosed())
}

func TestPublisher_ResetsChannelOnError(t *testing.T) {
	first := true
	conn := &fakeConn{newChan: func() *fakeChannel {
		ch := newFakeChannel()
		if first {
			ch.publishErr = errors.New("channel closed")
			first = false
		}
		return ch
	}}
	c := newTestCoordinator(t, func(context.Context) (Connection, error) { return conn, nil })
	p, err := NewPublisher(c)
	require.NoError(t, err)

	msg := core.OutboundMessage{Queue: "q", MessageID: "m-1"}
	require.Error(t, p.Publish(context.Background(), msg))
	require.NoError(t, p.Publish(context.Background(), msg))

	chans := conn.openedChannels()
	require.Len(t, chans, 2)
	assert.True(t, chans[0].isClosed())
	assert.Len(t, chans[1].published, 1)
}

func TestPublisher_RequiresQueue(t *testing.T) {
	c := newTestCoordinator(t, func(context.Context) (Connection, error) { return &fakeConn{}, nil })
	p, err := NewPublisher(c)
	require.NoError(t, err)
	require.Error(t, p.Publish(context.Background(), core.OutboundMessage{}))

	_, err = NewPublisher(nil)
	require.Error(t, err)
}

func TestConsumer_DeliversAndSettles(t *testing.T) {
	conn := &fakeConn{}
	c := newTestCoordinator(t, func(context.Context) (Connection, error) { return conn, nil })
	consumer, err := NewConsumer(ConsumerOptions{Coordinator: c, Tag: "worker"})
	require.NoError(t, err)

	ack := &fakeAcknowledger{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu   sync.Mutex
		seen []string
	)
	done := make(chan error, 1)
	go func() {
		done <- consumer.Consume(ctx, "simulation_jobs", func(_ context.Context, d core.Delivery) error {
			mu.Lock()
			seen = append(seen, d.MessageID())
			n := len(seen)
			mu.Unlock()
			if n == 2 {
				return d.Reject(false)
			}
			return d.Ack()
		})
	}()

	require.Eventually(t, func() bool { return len(conn.openedChannels()) == 1 }, time.Second, time.Millisecond)
	ch := conn.openedChannels()[0]
	ch.deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, MessageId: "a", Body: []byte(`{}`)}
	ch.deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 2, MessageId: "b", Redelivered: true}

	require.Eventually(t, func() bool {
		acked, rejected, _ := ack.snapshot()
		return len(acked) == 1 && len(rejected) == 1
	}, time.Second, time.Millisecond)

	acked, rejected, requeued := ack.snapshot()
	assert.Equal(t, []uint64{1}, acked)
	assert.Equal(t, []uint64{2}, rejected)
	assert.Equal(t, []bool{false}, requeued)

	ch.mu.Lock()
	assert.Equal(t, 1, ch.prefetch)
	ch.mu.Unlock()

	cancel()
	require.NoError(t, <-done)
	assert.True(t, ch.isClosed(), "channel is released on shutdown so unsettled deliveries return to the queue")
}

func TestConsumer_ReacquiresLostChannel(t *testing.T) {
	conn := &fakeConn{}
	c := newTestCoordinator(t, func(context.Context) (Connection, error) { return conn, nil })
	consumer, err := NewConsumer(ConsumerOptions{Coordinator: c})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ack := &fakeAcknowledger{}
	done := make(chan error, 1)
	go func() {
		done <- consumer.Consume(ctx, "q", func(_ context.Context, d core.Delivery) error { return d.Ack() })
	}()

	require.Eventually(t, func() bool { return len(conn.openedChannels()) == 1 }, time.Second, time.Millisecond)
	conn.openedChannels()[0].breakChannel()

	require.Eventually(t, func() bool { return len(conn.openedChannels()) == 2 }, time.Second, time.Millisecond)
	second := conn.openedChannels()[1]
	second.deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 7}

	require.Eventually(t, func() bool {
		acked, _, _ := ack.snapshot()
		return len(acked) == 1
	}, time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestConsumer_HandlerErrorDoesNotStopConsumption(t *testing.T) {
	conn := &fakeConn{}
	c := newTestCoordinator(t, func(context.Context) (Connection, error) { return conn, nil })
	consumer, err := NewConsumer(ConsumerOptions{Coordinator: c})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ack := &fakeAcknowledger{}
	calls := make(chan struct{}, 4)
	done := make(chan error, 1)
	go func() {
		done <- consumer.Consume(ctx, "q", func(_ context.Context, d core.Delivery) error {
			calls <- struct{}{}
			return errors.Join(d.Reject(false), errors.New("decode failed"))
		})
	}()

	require.Eventually(t, func() bool { return len(conn.openedChannels()) == 1 }, time.Second, time.Millisecond)
	ch := conn.openedChannels()[0]
	ch.deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 1}
	ch.deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 2}
	<-calls
	<-calls

	cancel()
	require.NoError(t, <-done)
	assert.Len(t, conn.openedChannels(), 1)
}

func TestConsumer_Validation(t *testing.T) {
	_, err := NewConsumer(ConsumerOptions{})
	require.Error(t, err)

	c := newTestCoordinator(t, func(context.Context) (Connection, error) { return &fakeConn{}, nil })
	consumer, err := NewConsumer(ConsumerOptions{Coordinator: c})
	require.NoError(t, err)
	require.Error(t, consumer.Consume(context.Background(), "", func(context.Context, core.Delivery) error { return nil }))
	require.Error(t, consumer.Consume(context.Background(), "q", nil))
}
