package cache

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// backendCollector holds the Prometheus instruments shared by all
// instrumented backends, labelled by backend name.
type backendCollector struct {
	hits     *prometheus.CounterVec
	misses   *prometheus.CounterVec
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var (
	collectorOnce sync.Once
	collector     *backendCollector
)

func getCollector() *backendCollector {
	collectorOnce.Do(func() {
		collector = &backendCollector{
			hits: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "repository_cache_hits_total",
					Help: "The total number of cache hits",
				},
				[]string{"backend"},
			),
			misses: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "repository_cache_misses_total",
					Help: "The total number of cache misses",
				},
				[]string{"backend"},
			),
			requests: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "repository_cache_requests_total",
					Help: "The total number of cache read requests",
				},
				[]string{"backend"},
			),
			latency: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "repository_cache_operation_duration_seconds",
					Help:    "Cache operation duration in seconds",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"backend", "operation"},
			),
		}
	})
	return collector
}

// InstrumentedBackend decorates a Backend with Prometheus hit/miss
// counters and per-operation latency histograms. A Remember call counts as
// a miss exactly when the producer ran.
type InstrumentedBackend struct {
	next      Backend
	name      string
	collector *backendCollector
}

// NewInstrumentedBackend wraps next. The name labels every metric series,
// so give distinct names to distinct backends ("memory", "redis").
func NewInstrumentedBackend(next Backend, name string) *InstrumentedBackend {
	return &InstrumentedBackend{
		next:      next,
		name:      name,
		collector: getCollector(),
	}
}

func (b *InstrumentedBackend) observe(operation string, start time.Time) {
	b.collector.latency.WithLabelValues(b.name, operation).Observe(time.Since(start).Seconds())
}

// Has implements Backend.
func (b *InstrumentedBackend) Has(ctx context.Context, key string) (bool, error) {
	defer b.observe("has", time.Now())
	return b.next.Has(ctx, key)
}

// Get implements Backend.
func (b *InstrumentedBackend) Get(ctx context.Context, key string) (any, error) {
	defer b.observe("get", time.Now())
	return b.next.Get(ctx, key)
}

// Remember implements Backend, counting hits and misses.
func (b *InstrumentedBackend) Remember(ctx context.Context, key string, ttl time.Duration, produce ProduceFn) (any, error) {
	defer b.observe("remember", time.Now())
	b.collector.requests.WithLabelValues(b.name).Inc()

	produced := false
	value, err := b.next.Remember(ctx, key, ttl, func(ctx context.Context) (any, error) {
		produced = true
		return produce(ctx)
	})

	if produced {
		b.collector.misses.WithLabelValues(b.name).Inc()
	} else if err == nil {
		b.collector.hits.WithLabelValues(b.name).Inc()
	}

	return value, err
}

// Forget implements Backend.
func (b *InstrumentedBackend) Forget(ctx context.Context, key string) (bool, error) {
	defer b.observe("forget", time.Now())
	return b.next.Forget(ctx, key)
}
