package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the status pipeline.
type Metrics struct {
	// Cache effectiveness.
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// Fetch outcomes by result ("ok", "not_found", "error").
	FetchesTotal *prometheus.CounterVec
	FetchLatency prometheus.Histogram

	// Work-set size per processed batch, after cache/pending filtering.
	BatchSize prometheus.Histogram

	// Updates broadcast to subscribers.
	BroadcastsTotal prometheus.Counter
}

// New creates a Metrics instance with all status pipeline metrics registered.
func New() *Metrics {
	return &Metrics{
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veristat_status_cache_hits_total",
			Help: "Requests served from a fresh cache entry",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veristat_status_cache_misses_total",
			Help: "Requests that required a backend fetch",
		}),
		FetchesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veristat_status_fetches_total",
			Help: "Verification record fetches by result",
		}, []string{"result"}),
		FetchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "veristat_status_fetch_duration_seconds",
			Help:    "Duration of single verification record fetches",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		BatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "veristat_status_batch_size",
			Help:    "Work-set size of processed batches after filtering",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
		}),
		BroadcastsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veristat_status_broadcasts_total",
			Help: "Status updates broadcast to subscribers",
		}),
	}
}

// IncrementCacheHit records a request served from cache.
func (m *Metrics) IncrementCacheHit() {
	if m != nil {
		m.CacheHits.Inc()
	}
}

// IncrementCacheMiss records a request that fell through to a fetch.
func (m *Metrics) IncrementCacheMiss() {
	if m != nil {
		m.CacheMisses.Inc()
	}
}

// ObserveFetch records one fetch with its result and duration.
func (m *Metrics) ObserveFetch(result string, d time.Duration) {
	if m != nil {
		m.FetchesTotal.WithLabelValues(result).Inc()
		m.FetchLatency.Observe(d.Seconds())
	}
}

// ObserveBatchSize records the work-set size of one processed batch.
func (m *Metrics) ObserveBatchSize(n int) {
	if m != nil {
		m.BatchSize.Observe(float64(n))
	}
}

// IncrementBroadcast records one update delivered to subscribers.
func (m *Metrics) IncrementBroadcast() {
	if m != nil {
		m.BroadcastsTotal.Inc()
	}
}
