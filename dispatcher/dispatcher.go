// Package dispatcher implements C5 of spec.md §4.5: fanning one
// SearchRequest out to one or more source adapters under per-source rate
// limiting, bounded concurrency and (optionally) a circuit breaker, and
// collecting the resulting CrawlResult envelopes.
package dispatcher

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sony/gobreaker"

	"github.com/gilby125/flightcrawler/core"
	"github.com/gilby125/flightcrawler/crawler"
	"github.com/gilby125/flightcrawler/pkg/logger"
)

// Limits configures per-source throughput. RPS of 0 means unlimited.
type Limits struct {
	RPS   float64
	Burst int
}

// Dispatcher owns the registered adapters and their per-source rate
// limiters. One Dispatcher is shared across every request it serves.
type Dispatcher struct {
	adapters map[core.DataSource]crawler.Crawler
	limits   map[core.DataSource]Limits

	mu       sync.Mutex
	limiters map[core.DataSource]*rate.Limiter
	breakers map[core.DataSource]*gobreaker.CircuitBreaker

	// MaxConcurrent bounds how many blocking adapters (L2/GDS clients) run
	// at once across the whole dispatcher, independent of per-source rate
	// limits. Zero means unbounded.
	MaxConcurrent int

	sem chan struct{}
}

// New builds a Dispatcher over the given adapters. limits may omit
// sources; an omitted source runs unlimited.
func New(adapters map[core.DataSource]crawler.Crawler, limits map[core.DataSource]Limits, maxConcurrent int) *Dispatcher {
	d := &Dispatcher{
		adapters:      adapters,
		limits:        limits,
		limiters:      make(map[core.DataSource]*rate.Limiter),
		breakers:      make(map[core.DataSource]*gobreaker.CircuitBreaker),
		MaxConcurrent: maxConcurrent,
	}
	if maxConcurrent > 0 {
		d.sem = make(chan struct{}, maxConcurrent)
	}
	for source, l := range limits {
		if l.RPS > 0 {
			d.limiters[source] = rate.NewLimiter(rate.Limit(l.RPS), l.Burst)
		}
	}
	for source := range adapters {
		d.breakers[source] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        string(source),
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
			},
		})
	}
	return d
}

func (d *Dispatcher) acquire(ctx context.Context, source core.DataSource) error {
	d.mu.Lock()
	limiter := d.limiters[source]
	d.mu.Unlock()
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
	}
	if d.sem != nil {
		select {
		case d.sem <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (d *Dispatcher) release() {
	if d.sem != nil {
		<-d.sem
	}
}

// DispatchSingle runs one source's adapter for one task and returns its
// CrawlResult. The circuit breaker is consulted before invoking the
// adapter; an open breaker yields a failed envelope rather than blocking
// (spec.md §4.5).
func (d *Dispatcher) DispatchSingle(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	source := task.Source
	adapter, ok := d.adapters[source]
	if !ok {
		return core.CrawlResult{Source: source, CrawledAt: time.Now(), Success: false, Error: "no adapter registered for source"}
	}

	if err := d.acquire(ctx, source); err != nil {
		return core.CrawlResult{Source: source, CrawledAt: time.Now(), Success: false, Error: "rate limit wait: " + err.Error()}
	}
	defer d.release()

	d.mu.Lock()
	breaker := d.breakers[source]
	d.mu.Unlock()

	result, err := breaker.Execute(func() (interface{}, error) {
		r := adapter.Crawl(ctx, task)
		if !r.Success {
			return r, errAdapterFailed
		}
		return r, nil
	})
	if err != nil {
		if result == nil {
			logger.Warn("circuit open, skipping adapter call", "source", string(source))
			return core.CrawlResult{Source: source, CrawledAt: time.Now(), Success: false, Error: "circuit breaker open: " + err.Error()}
		}
		return result.(core.CrawlResult)
	}
	return result.(core.CrawlResult)
}

var errAdapterFailed = &adapterError{}

type adapterError struct{}

func (*adapterError) Error() string { return "adapter reported failure" }

// DispatchParallel runs every task concurrently (one goroutine per task,
// bounded by MaxConcurrent) and returns results in task order, independent
// of completion order (spec.md §4.5 "fan out, order-preserving").
func (d *Dispatcher) DispatchParallel(ctx context.Context, tasks []core.CrawlTask) []core.CrawlResult {
	results := make([]core.CrawlResult, len(tasks))
	var wg sync.WaitGroup
	wg.Add(len(tasks))
	for i, task := range tasks {
		go func(i int, task core.CrawlTask) {
			defer wg.Done()
			results[i] = d.DispatchSingle(ctx, task)
		}(i, task)
	}
	wg.Wait()
	return results
}

// DispatchPipeline runs tasks against the same source sequentially in the
// given order, useful when an adapter's L1/L2/L3 warm-up state must carry
// across calls (e.g. a session cookie jar). Stops early only on ctx
// cancellation; individual task failures do not halt the pipeline.
func (d *Dispatcher) DispatchPipeline(ctx context.Context, tasks []core.CrawlTask) []core.CrawlResult {
	results := make([]core.CrawlResult, 0, len(tasks))
	for _, task := range tasks {
		if ctx.Err() != nil {
			results = append(results, core.CrawlResult{Source: task.Source, CrawledAt: time.Now(), Success: false, Error: ctx.Err().Error()})
			continue
		}
		results = append(results, d.DispatchSingle(ctx, task))
	}
	return results
}

// HealthCheck reports the reachability of every registered adapter.
func (d *Dispatcher) HealthCheck(ctx context.Context) map[core.DataSource]bool {
	out := make(map[core.DataSource]bool, len(d.adapters))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for source, adapter := range d.adapters {
		wg.Add(1)
		go func(source core.DataSource, adapter crawler.Crawler) {
			defer wg.Done()
			ok := adapter.HealthCheck(ctx)
			mu.Lock()
			out[source] = ok
			mu.Unlock()
		}(source, adapter)
	}
	wg.Wait()
	return out
}

// Close releases every adapter's resources, collecting (not short
// circuiting on) individual errors.
func (d *Dispatcher) Close() error {
	var firstErr error
	for _, adapter := range d.adapters {
		if err := adapter.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
