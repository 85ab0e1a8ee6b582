// Package crawler defines the uniform contract every source adapter
// implements (spec.md §4.3) and the compound fallback wrapper used by
// layered-strategy sources.
package crawler

import (
	"context"
	"fmt"
	"time"

	"github.com/gilby125/flightcrawler/core"
)

// Crawler is the interface every C4 adapter satisfies. Crawl must never
// let an error escape: failures are captured into CrawlResult.Success =
// false (spec.md §4.3, §7). HealthCheck performs a cheap reachability
// probe. Close releases persistent resources and must be idempotent.
type Crawler interface {
	Crawl(ctx context.Context, task core.CrawlTask) core.CrawlResult
	HealthCheck(ctx context.Context) bool
	Close() error
	// Source returns the DataSource this adapter declares, so a
	// successful CrawlResult's flights can be stamped consistently
	// (spec.md §8 adapter contract property: "every flight has source =
	// A.declared_source").
	Source() core.DataSource
}

// SafeCrawl wraps an inner crawl function in a panic boundary and wall
// clock measurement so a Crawler implementation gets the envelope
// guarantee of spec.md §4.3 "must not raise out of crawl()" for free.
// This defer/recover boundary is a Go-idiom translation of the Python
// implementations' try/except-to-CrawlResult pattern; no example repo in
// the pack needs this because none of them guarantee non-throwing
// adapters at the language level the way this contract requires.
func SafeCrawl(source core.DataSource, fn func(ctx context.Context) ([]core.NormalizedFlight, error)) func(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	return func(ctx context.Context, task core.CrawlTask) (result core.CrawlResult) {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				result = core.CrawlResult{
					Source:     source,
					CrawledAt:  time.Now(),
					DurationMS: time.Since(start).Milliseconds(),
					Success:    false,
					Error:      fmt.Sprintf("panic: %v", r),
				}
			}
		}()

		if !task.Deadline.IsZero() {
			var cancel context.CancelFunc
			ctx, cancel = context.WithDeadline(ctx, task.Deadline)
			defer cancel()
		}

		flights, err := fn(ctx)
		duration := time.Since(start).Milliseconds()
		if err != nil {
			msg := err.Error()
			if ctx.Err() != nil {
				msg = fmt.Sprintf("timeout: %s", msg)
			}
			return core.CrawlResult{
				Source:     source,
				CrawledAt:  time.Now(),
				DurationMS: duration,
				Success:    false,
				Error:      msg,
			}
		}
		for i := range flights {
			flights[i].Source = source
		}
		return core.CrawlResult{
			Flights:    flights,
			Source:     source,
			CrawledAt:  time.Now(),
			DurationMS: duration,
			Success:    true,
		}
	}
}
