// Package rabbitmq owns the broker connection lifecycle and exposes the queue publisher and consumer
// used by the outbox relay and the simulation workers.
package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/singleflight"
)

// ErrCoordinatorClosed is returned once Close has been called.
var ErrCoordinatorClosed = errors.New("broker coordinator closed")

// Connection is the subset of a broker connection the coordinator needs.
type Connection interface {
	Channel() (Channel, error)
	IsClosed() bool
	Close() error
}

// Channel is a single broker channel. Implementations are not safe for concurrent use.
type Channel interface {
	DeclareQueue(name string) error
	Qos(prefetch int) error
	// Publish sends a message to the default exchange routed by queue name. When confirms are enabled
	// it returns only after the broker has acked the message.
	Publish(ctx context.Context, queue string, msg amqp.Publishing) error
	Consume(ctx context.Context, queue, tag string) (<-chan amqp.Delivery, error)
	NotifyClose() <-chan *amqp.Error
	Close() error
}

// Dialer opens a new broker connection.
type Dialer func(ctx context.Context) (Connection, error)

// CoordinatorOptions configures a Coordinator.
type CoordinatorOptions struct {
	URL             string        // Required unless Dial is set
	ConnectionName  string        // Optional: reported to the broker
	PublishConfirms bool          // Put new channels into confirm mode
	ReconnectMin    time.Duration // Optional: first reconnect delay (default 500ms)
	ReconnectMax    time.Duration // Optional: reconnect delay cap (default 30s)
	Dial            Dialer        // Optional: override for tests
	Logger          *slog.Logger  // Optional
}

// Coordinator owns one broker connection per process. Callers acquire channels from it; it re-dials
// with exponential backoff whenever the connection is found closed and declares the requested queue
// on every channel it opens.
//
// Re-dials run outside mu in one shared loop bound to the coordinator's lifetime. Healthy and Close
// never wait on it, and a caller whose ctx ends stops waiting without cancelling the dial.
type Coordinator struct {
	dial   Dialer
	minB   time.Duration
	maxB   time.Duration
	logger *slog.Logger

	dials singleflight.Group
	life  context.Context //nolint:containedctx // cancelled by Close to stop an in-flight re-dial loop.
	stop  context.CancelFunc

	mu      sync.Mutex
	conn    Connection
	hadConn bool
	closed  bool
}

// NewCoordinator constructs a Coordinator. No connection is made until a channel is requested.
func NewCoordinator(opts CoordinatorOptions) (*Coordinator, error) {
	dial := opts.Dial
	if dial == nil {
		if opts.URL == "" {
			return nil, errors.New("broker URL is required")
		}
		dial = defaultDialer(opts.URL, opts.ConnectionName, opts.PublishConfirms)
	}

	minB := opts.ReconnectMin
	if minB <= 0 {
		minB = 500 * time.Millisecond
	}
	maxB := max(opts.ReconnectMax, minB)
	if opts.ReconnectMax <= 0 {
		maxB = max(30*time.Second, minB)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	life, stop := context.WithCancel(context.Background())
	return &Coordinator{
		dial:   dial,
		minB:   minB,
		maxB:   maxB,
		logger: logger.With("component", "broker"),
		life:   life,
		stop:   stop,
	}, nil
}

// Connect establishes the connection, retrying with backoff until it succeeds or ctx ends.
func (c *Coordinator) Connect(ctx context.Context) error {
	_, err := c.connection(ctx)
	return err
}

// connection returns the live connection. When it is missing or closed the caller joins the shared
// re-dial loop and waits for it until ctx ends.
func (c *Coordinator) connection(ctx context.Context) (Connection, error) {
	conn, closed := c.live()
	if closed {
		return nil, ErrCoordinatorClosed
	}
	if conn != nil {
		return conn, nil
	}

	ch := c.dials.DoChan("dial", func() (any, error) { return c.redial() })
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("connect to broker: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		conn, _ = res.Val.(Connection)
		return conn, nil
	}
}

// live returns the held connection if it is open, and whether the coordinator has been closed.
func (c *Coordinator) live() (Connection, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, true
	}
	if c.conn != nil && !c.conn.IsClosed() {
		return c.conn, false
	}
	return nil, false
}

// redial dials with backoff until it succeeds or the coordinator is closed. It holds no lock.
func (c *Coordinator) redial() (Connection, error) {
	ctx := c.life
	b := newBackoff(c.minB, c.maxB)
	for attempt := 1; ; attempt++ {
		if conn, closed := c.live(); closed {
			return nil, ErrCoordinatorClosed
		} else if conn != nil {
			return conn, nil
		}

		conn, err := c.dial(ctx)
		if err == nil {
			return c.install(ctx, conn, attempt)
		}

		delay := b.next()
		c.logger.WarnContext(ctx, "broker dial failed",
			"error", err,
			"attempt", attempt,
			"retry_in", delay,
		)
		if sleepCtx(ctx, delay) != nil {
			return nil, fmt.Errorf("connect to broker: %w", errors.Join(ErrCoordinatorClosed, err))
		}
	}
}

// install publishes a freshly dialed connection unless Close won the race.
func (c *Coordinator) install(ctx context.Context, conn Connection, attempt int) (Connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		_ = conn.Close()
		return nil, ErrCoordinatorClosed
	}
	if attempt > 1 || c.hadConn {
		c.logger.InfoContext(ctx, "broker reconnected", "attempts", attempt)
	}
	c.conn = conn
	c.hadConn = true
	return conn, nil
}

// OpenChannel opens a channel on the live connection and declares queue on it.
// The caller owns the channel and must close it.
func (c *Coordinator) OpenChannel(ctx context.Context, queue string) (Channel, error) {
	conn, err := c.connection(ctx)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		// A failed channel open usually means the connection died between the check and the call.
		c.invalidate(conn)
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if queue != "" {
		if declErr := ch.DeclareQueue(queue); declErr != nil {
			closeErr := ch.Close()
			return nil, errors.Join(fmt.Errorf("declare queue %s: %w", queue, declErr), closeErr)
		}
	}
	return ch, nil
}

// WithChannel opens a channel for queue, runs fn with it and always closes it afterwards.
func (c *Coordinator) WithChannel(ctx context.Context, queue string, fn func(Channel) error) (err error) {
	ch, err := c.OpenChannel(ctx, queue)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := ch.Close(); closeErr != nil && !errors.Is(closeErr, amqp.ErrClosed) {
			err = errors.Join(err, fmt.Errorf("close channel: %w", closeErr))
		}
	}()
	return fn(ch)
}

func (c *Coordinator) invalidate(conn Connection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == conn {
		_ = conn.Close()
		c.conn = nil
	}
}

// Healthy reports whether a live connection is currently held. It does not wait for an in-flight dial.
func (c *Coordinator) Healthy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && c.conn != nil && !c.conn.IsClosed()
}

// Close closes the connection. Channels opened from it are closed by the broker client.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.stop()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	if errors.Is(err, amqp.ErrClosed) {
		return nil
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// backoff doubles from minDelay up to maxDelay.
type backoff struct {
	cur, minDelay, maxDelay time.Duration
}

func newBackoff(minDelay, maxDelay time.Duration) *backoff {
	return &backoff{minDelay: minDelay, maxDelay: maxDelay}
}

func (b *backoff) next() time.Duration {
	if b.cur == 0 {
		b.cur = b.minDelay
		return b.cur
	}
	b.cur = min(b.cur*2, b.maxDelay)
	return b.cur
}

func (b *backoff) reset() { b.cur = 0 }
