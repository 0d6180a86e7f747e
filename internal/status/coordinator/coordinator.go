// Package coordinator batches, dedupes and paces verification status fetches.
package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"veristat/internal/status/classifier"
	"veristat/internal/status/fetcher"
	"veristat/internal/status/metrics"
	"veristat/internal/status/models"
	"veristat/internal/status/pending"
	"veristat/internal/status/store"
	"veristat/pkg/domain"
	"veristat/pkg/platform/sentinel"
)

const (
	// DefaultDebounce is how long the coordinator waits after the last
	// request before firing a batch, so a table render folds into one batch.
	DefaultDebounce = 500 * time.Millisecond

	// DefaultFetchDelay is the pause between consecutive fetches within a
	// batch, keeping the pressure on the KYC backend bounded.
	DefaultFetchDelay = 100 * time.Millisecond

	// subscriberBuffer bounds each subscriber channel. A subscriber that
	// stops draining loses updates rather than stalling the batch loop.
	subscriberBuffer = 64
)

// Update is one resolved status, broadcast to every subscriber.
type Update struct {
	ClientID domain.ClientID
	Status   models.StatusInfo
}

// EventSink receives statuses after they are cached, for downstream fan-out.
// Delivery is best effort and must not block the batch loop.
type EventSink interface {
	StatusResolved(ctx context.Context, id domain.ClientID, status models.StatusInfo)
}

// Coordinator owns the fetch pipeline. Requests accumulate into an
// insertion-ordered work set; a debounce timer fires the batch; the batch is
// filtered against the cache and the pending set, then fetched sequentially
// with a fixed pause between items. Each resolved status is cached and
// broadcast individually, so callers see results trickle in.
//
// All fetching happens on the single Run goroutine. Request and Subscribe are
// safe for concurrent use.
type Coordinator struct {
	cache    store.Cache
	pending  *pending.Set
	fetcher  fetcher.RecordFetcher
	classify *classifier.Classifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
	sink     EventSink

	debounce   time.Duration
	fetchDelay time.Duration

	mu     sync.Mutex
	queued map[domain.ClientID]struct{}
	order  []domain.ClientID
	timer  *time.Timer
	fire   chan struct{}

	subMu   sync.Mutex
	subs    map[int]chan Update
	nextSub int
	closed  bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithDebounce overrides the debounce window.
func WithDebounce(d time.Duration) Option {
	return func(c *Coordinator) { c.debounce = d }
}

// WithFetchDelay overrides the pause between fetches within a batch.
func WithFetchDelay(d time.Duration) Option {
	return func(c *Coordinator) { c.fetchDelay = d }
}

// WithEventSink attaches a sink notified after each status is cached.
func WithEventSink(sink EventSink) Option {
	return func(c *Coordinator) { c.sink = sink }
}

// WithMetrics attaches pipeline metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// New constructs a Coordinator. Run must be started for batches to process.
func New(cache store.Cache, f fetcher.RecordFetcher, cl *classifier.Classifier, logger *slog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		cache:      cache,
		pending:    pending.New(),
		fetcher:    f,
		classify:   cl,
		logger:     logger,
		tracer:     otel.Tracer("veristat.status.coordinator"),
		debounce:   DefaultDebounce,
		fetchDelay: DefaultFetchDelay,
		queued:     make(map[domain.ClientID]struct{}),
		fire:       make(chan struct{}, 1),
		subs:       make(map[int]chan Update),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request queues the given clients for resolution. Duplicates already queued
// are ignored; first sight fixes a client's position in the batch. Each call
// restarts the debounce timer, so bursts collapse into one batch.
func (c *Coordinator) Request(ids ...domain.ClientID) {
	if len(ids) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		if _, ok := c.queued[id]; ok {
			continue
		}
		c.queued[id] = struct{}{}
		c.order = append(c.order, id)
	}
	if c.timer == nil {
		c.timer = time.AfterFunc(c.debounce, func() {
			select {
			case c.fire <- struct{}{}:
			default:
			}
		})
		return
	}
	c.timer.Reset(c.debounce)
}

// Subscribe registers for status updates. The returned cancel func must be
// called exactly once; it closes the channel. A subscriber whose channel
// buffer is full misses updates instead of blocking the pipeline.
func (c *Coordinator) Subscribe() (<-chan Update, func()) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	ch := make(chan Update, subscriberBuffer)
	if c.closed {
		close(ch)
		return ch, func() {}
	}

	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch

	cancel := func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Run processes batches until ctx is cancelled. It is the only goroutine
// that fetches; start exactly one.
func (c *Coordinator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return ctx.Err()
		case <-c.fire:
			c.processBatch(ctx, c.takeBatch())
		}
	}
}

// takeBatch swaps out the accumulated work set, preserving insertion order.
func (c *Coordinator) takeBatch() []domain.ClientID {
	c.mu.Lock()
	defer c.mu.Unlock()
	batch := c.order
	c.order = nil
	c.queued = make(map[domain.ClientID]struct{})
	return batch
}

func (c *Coordinator) processBatch(ctx context.Context, batch []domain.ClientID) {
	if len(batch) == 0 {
		return
	}

	ctx, span := c.tracer.Start(ctx, "status.batch",
		trace.WithAttributes(attribute.Int("batch.requested", len(batch))))
	defer span.End()

	// Drop clients that are already fresh in the cache or mid-fetch from a
	// previous batch. What survives is the work set.
	work := batch[:0]
	for _, id := range batch {
		if _, err := c.cache.Get(ctx, id); err == nil {
			c.metrics.IncrementCacheHit()
			continue
		}
		if c.pending.IsPending(id) {
			continue
		}
		c.metrics.IncrementCacheMiss()
		c.pending.MarkPending(id)
		work = append(work, id)
	}

	span.SetAttributes(attribute.Int("batch.fetched", len(work)))
	c.metrics.ObserveBatchSize(len(work))
	if len(work) == 0 {
		return
	}
	c.logger.Debug("processing status batch", "requested", len(batch), "fetching", len(work))

	for i, id := range work {
		c.resolveOne(ctx, id)

		if i < len(work)-1 && c.fetchDelay > 0 {
			select {
			case <-ctx.Done():
				for _, rest := range work[i+1:] {
					c.pending.ClearPending(rest)
				}
				return
			case <-time.After(c.fetchDelay):
			}
		}
	}
}

// resolveOne fetches, classifies, caches and broadcasts one client's status.
// The pending mark is cleared however the fetch settles.
func (c *Coordinator) resolveOne(ctx context.Context, id domain.ClientID) {
	defer c.pending.ClearPending(id)

	start := time.Now()
	record, err := c.fetcher.FetchRecord(ctx, id)

	var status models.StatusInfo
	switch {
	case err == nil:
		c.metrics.ObserveFetch("ok", time.Since(start))
		status = c.classify.Classify(record)
	case errors.Is(err, sentinel.ErrNotFound):
		// The backend answered: no record. Classifies as not verified and
		// is cached like any other answer.
		c.metrics.ObserveFetch("not_found", time.Since(start))
		status = c.classify.Classify(nil)
	default:
		// Transport failure degrades to a conservative not-verified status
		// with the error preserved; it is cached like any answer so one dead
		// fetch cannot poison the rest of a table render. A fresh request
		// after invalidation (or TTL expiry) retries.
		c.metrics.ObserveFetch("error", time.Since(start))
		c.logger.Error("verification fetch failed", "client_id", id, "error", err)
		status = models.StatusInfo{
			State:      models.StateNotVerified,
			TotalCount: models.TotalDocumentSlots,
			Message:    err.Error(),
		}
	}

	if err := c.cache.Put(ctx, id, status); err != nil {
		c.logger.Error("status cache put failed", "client_id", id, "error", err)
	}
	c.broadcast(Update{ClientID: id, Status: status})
	if c.sink != nil {
		c.sink.StatusResolved(ctx, id, status)
	}
}

func (c *Coordinator) broadcast(u Update) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, sub := range c.subs {
		select {
		case sub <- u:
			c.metrics.IncrementBroadcast()
		default:
		}
	}
}

func (c *Coordinator) shutdown() {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
	}
	c.mu.Unlock()

	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.closed = true
	for id, sub := range c.subs {
		delete(c.subs, id)
		close(sub)
	}
}
