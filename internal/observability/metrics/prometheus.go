package metrics

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/target/simqueue/internal/observability/statsd"
)

// PrometheusSink translates statsd-style calls into Prometheus collectors. Collectors are created
// lazily on first use and keyed by metric name; the label set of a metric is fixed by its first call.
type PrometheusSink struct {
	namespace string
	reg       prometheus.Registerer
	logger    *slog.Logger

	mu         sync.Mutex
	counters   map[string]*labeledCounter
	gauges     map[string]*labeledGauge
	histograms map[string]*labeledHistogram
}

type labeledCounter struct {
	vec    *prometheus.CounterVec
	labels []string
}

type labeledGauge struct {
	vec    *prometheus.GaugeVec
	labels []string
}

type labeledHistogram struct {
	vec    *prometheus.HistogramVec
	labels []string
}

var _ statsd.Sink = (*PrometheusSink)(nil)

// PrometheusOptions configures a PrometheusSink.
type PrometheusOptions struct {
	Namespace  string
	Registerer prometheus.Registerer // Optional: defaults to a fresh registry
	Logger     *slog.Logger
}

// NewPrometheusSink constructs a sink that registers collectors with opts.Registerer.
func NewPrometheusSink(opts PrometheusOptions) *PrometheusSink {
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &PrometheusSink{
		namespace:  promName(opts.Namespace),
		reg:        reg,
		logger:     logger.With("component", "prometheus_sink"),
		counters:   make(map[string]*labeledCounter),
		gauges:     make(map[string]*labeledGauge),
		histograms: make(map[string]*labeledHistogram),
	}
}

// Count adds value to a counter named <name>_total.
func (p *PrometheusSink) Count(name string, value int64, tags map[string]string) {
	if value < 0 {
		return
	}
	p.mu.Lock()
	c, ok := p.counters[name]
	if !ok {
		labels := labelKeys(tags)
		vec := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Name:      promName(name) + "_total",
			Help:      "Counter " + name,
		}, labels)
		if !p.register(vec, name) {
			p.mu.Unlock()
			return
		}
		c = &labeledCounter{vec: vec, labels: labels}
		p.counters[name] = c
	}
	p.mu.Unlock()
	c.vec.WithLabelValues(labelValues(c.labels, tags)...).Add(float64(value))
}

// Gauge sets a gauge.
func (p *PrometheusSink) Gauge(name string, value float64, tags map[string]string) {
	p.mu.Lock()
	g, ok := p.gauges[name]
	if !ok {
		labels := labelKeys(tags)
		vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Name:      promName(name),
			Help:      "Gauge " + name,
		}, labels)
		if !p.register(vec, name) {
			p.mu.Unlock()
			return
		}
		g = &labeledGauge{vec: vec, labels: labels}
		p.gauges[name] = g
	}
	p.mu.Unlock()
	g.vec.WithLabelValues(labelValues(g.labels, tags)...).Set(value)
}

// Timing observes value in seconds on a histogram named <name>_seconds.
func (p *PrometheusSink) Timing(name string, value time.Duration, tags map[string]string) {
	p.mu.Lock()
	h, ok := p.histograms[name]
	if !ok {
		labels := labelKeys(tags)
		vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Name:      promName(name) + "_seconds",
			Help:      "Timing " + name,
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 10),
		}, labels)
		if !p.register(vec, name) {
			p.mu.Unlock()
			return
		}
		h = &labeledHistogram{vec: vec, labels: labels}
		p.histograms[name] = h
	}
	p.mu.Unlock()
	h.vec.WithLabelValues(labelValues(h.labels, tags)...).Observe(value.Seconds())
}

func (p *PrometheusSink) register(c prometheus.Collector, name string) bool {
	if err := p.reg.Register(c); err != nil {
		p.logger.Warn("prometheus register failed", "metric", name, "error", err)
		return false
	}
	return true
}

func labelKeys(tags map[string]string) []string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		if k = promName(k); k != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// labelValues orders tag values by labels; tags the collector was not created with are ignored.
func labelValues(labels []string, tags map[string]string) []string {
	norm := make(map[string]string, len(tags))
	for k, v := range tags {
		norm[promName(k)] = v
	}
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = norm[l]
	}
	return out
}

func promName(name string) string {
	return strings.Trim(strings.NewReplacer(".", "_", "-", "_", " ", "_", "/", "_").Replace(strings.TrimSpace(name)), "_")
}
