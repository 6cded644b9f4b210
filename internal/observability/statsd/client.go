package statsd

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"net"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

const dialTimeout = 5 * time.Second

// Config describes the UDP endpoint and the static decoration of every line.
type Config struct {
	Enabled    bool
	Address    string
	Prefix     string            // prepended to every metric name with a dot
	GlobalTags map[string]string // merged under per-call tags
	Logger     *slog.Logger
}

// Client writes one datagram per metric:
//
//	<prefix>.<name>:<value>|<type>|#k:v,k:v
//
// A nil or disabled Client drops everything.
type Client struct {
	format lineFormat
	logger *slog.Logger

	mu   sync.Mutex
	conn net.Conn
}

var _ Sink = (*Client)(nil)

// NewClient dials Address when enabled. An empty address yields a disabled client.
func NewClient(cfg Config) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		format: lineFormat{prefix: cleanName(cfg.Prefix), global: cleanTags(cfg.GlobalTags)},
		logger: logger.With("component", "statsd"),
	}

	addr := strings.TrimSpace(cfg.Address)
	if !cfg.Enabled || addr == "" {
		return c, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	conn, err := (&net.Dialer{}).DialContext(ctx, "udp", addr)
	if err != nil {
		return nil, fmt.Errorf("statsd dial %s: %w", addr, err)
	}
	c.conn = conn
	return c, nil
}

// Enabled reports whether metrics are being sent.
func (c *Client) Enabled() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *Client) Count(name string, value int64, tags map[string]string) {
	c.send(name, strconv.FormatInt(value, 10), "c", tags)
}

func (c *Client) Gauge(name string, value float64, tags map[string]string) {
	c.send(name, strconv.FormatFloat(value, 'f', -1, 64), "g", tags)
}

// Timing reports d in fractional milliseconds.
func (c *Client) Timing(name string, d time.Duration, tags map[string]string) {
	ms := float64(d) / float64(time.Millisecond)
	c.send(name, strconv.FormatFloat(ms, 'f', -1, 64), "ms", tags)
}

// Close releases the socket. It is safe to call more than once.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) send(name, value, kind string, tags map[string]string) {
	if c == nil {
		return
	}
	line, ok := c.format.render(name, value, kind, tags)
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return
	}
	if _, err := c.conn.Write(line); err != nil {
		c.logger.Debug("statsd write failed", "metric", name, "error", err)
	}
}

type lineFormat struct {
	prefix string
	global map[string]string
}

func (f lineFormat) render(name, value, kind string, tags map[string]string) ([]byte, bool) {
	metric := cleanName(name)
	if metric == "" {
		return nil, false
	}
	if f.prefix != "" {
		metric = f.prefix + "." + metric
	}

	var b strings.Builder
	b.WriteString(metric)
	b.WriteByte(':')
	b.WriteString(value)
	b.WriteByte('|')
	b.WriteString(kind)

	merged := f.global
	if len(tags) > 0 {
		merged = maps.Clone(f.global)
		if merged == nil {
			merged = make(map[string]string, len(tags))
		}
		maps.Copy(merged, cleanTags(tags))
	}
	for i, k := range slices.Sorted(maps.Keys(merged)) {
		if i == 0 {
			b.WriteString("|#")
		} else {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(merged[k])
	}
	return []byte(b.String()), true
}

// cleanName trims, maps spaces and slashes to underscores, and collapses
// empty dot segments: " sim/run..done. " becomes "sim_run.done".
func cleanName(name string) string {
	name = strings.NewReplacer(" ", "_", "/", "_").Replace(strings.TrimSpace(name))
	parts := strings.Split(name, ".")
	return strings.Join(slices.DeleteFunc(parts, func(s string) bool { return s == "" }), ".")
}

func cleanTags(tags map[string]string) map[string]string {
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		if k = strings.TrimSpace(k); k != "" {
			out[k] = strings.TrimSpace(v)
		}
	}
	return out
}
