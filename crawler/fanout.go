package crawler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gilby125/flightcrawler/core"
)

// Fanout runs several inner crawlers for the same declared DataSource
// concurrently and concatenates their flights into one CrawlResult,
// ground: spec.md §4.5 dispatch_parallel's "fans N adapters out
// concurrently ... returns when all adapters have completed" semantics,
// applied one level down from the dispatcher so that many per-airline
// direct-crawl adapters (spec.md §1 "25+ heterogeneous airline and
// aggregator endpoints") can share one DataSource dispatch slot instead
// of colliding on it. Unlike Compound, every inner always runs; a failing
// or empty inner does not suppress the others, matching
// dispatch_parallel's "partial failure is explicit in the result set" —
// here folded into one result since the dispatcher only sees one
// DataSource category.
type Fanout struct {
	source Crawler
	inners []Crawler
}

// NewFanout builds a concurrent-fanout adapter. The first inner's
// declared Source() is reported as the fanout's own.
func NewFanout(inners ...Crawler) *Fanout {
	if len(inners) == 0 {
		panic("crawler: NewFanout requires at least one inner crawler")
	}
	return &Fanout{source: inners[0], inners: inners}
}

func (f *Fanout) Source() core.DataSource { return f.source.Source() }

func (f *Fanout) Crawl(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	start := time.Now()

	type outcome struct {
		result core.CrawlResult
	}
	outcomes := make([]outcome, len(f.inners))

	var wg sync.WaitGroup
	for i, inner := range f.inners {
		wg.Add(1)
		go func(i int, inner Crawler) {
			defer wg.Done()
			outcomes[i] = outcome{result: inner.Crawl(ctx, task)}
		}(i, inner)
	}
	wg.Wait()

	var flights []core.NormalizedFlight
	var errs []string
	anySuccess := false
	for _, o := range outcomes {
		if o.result.Success {
			anySuccess = true
			flights = append(flights, o.result.Flights...)
		} else if o.result.Error != "" {
			errs = append(errs, o.result.Error)
		}
	}

	if !anySuccess && len(errs) > 0 {
		return core.CrawlResult{
			Source:     f.Source(),
			CrawledAt:  time.Now(),
			DurationMS: time.Since(start).Milliseconds(),
			Success:    false,
			Error:      fmt.Sprintf("all fanout members failed: %s", strings.Join(errs, "; ")),
		}
	}

	return core.CrawlResult{
		Flights:    flights,
		Source:     f.Source(),
		CrawledAt:  time.Now(),
		DurationMS: time.Since(start).Milliseconds(),
		Success:    true,
	}
}

// HealthCheck is OK if any member is reachable.
func (f *Fanout) HealthCheck(ctx context.Context) bool {
	for _, inner := range f.inners {
		if inner.HealthCheck(ctx) {
			return true
		}
	}
	return false
}

func (f *Fanout) Close() error {
	var firstErr error
	for _, inner := range f.inners {
		if err := inner.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ Crawler = (*Fanout)(nil)
