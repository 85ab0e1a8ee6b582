package crawler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gilby125/flightcrawler/core"
)

// Compound holds an ordered list of inner crawlers and tries them in
// declared order, first success wins, later attempts skipped (spec.md
// §4.3 "A compound adapter may hold multiple inner adapters and try them
// in declared order"). Grounded 1:1 on
// original_source/thai_airways/crawler.py's Sputnik -> popular-fares ->
// L3 fallback chain: each inner attempt that returns zero flights (not
// just an error) also falls through to the next.
type Compound struct {
	source Crawler // first inner's declared Source() is reported
	inners []Crawler
}

// NewCompound builds a layered-fallback adapter. The first inner in the
// slice determines the declared source reported on success.
func NewCompound(inners ...Crawler) *Compound {
	if len(inners) == 0 {
		panic("crawler: NewCompound requires at least one inner crawler")
	}
	return &Compound{source: inners[0], inners: inners}
}

func (c *Compound) Source() core.DataSource { return c.source.Source() }

func (c *Compound) Crawl(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	start := time.Now()
	var errs []string
	for _, inner := range c.inners {
		result := inner.Crawl(ctx, task)
		if result.Success && len(result.Flights) > 0 {
			result.DurationMS = time.Since(start).Milliseconds()
			return result
		}
		if !result.Success {
			errs = append(errs, result.Error)
		}
	}
	return core.CrawlResult{
		Source:     c.Source(),
		CrawledAt:  time.Now(),
		DurationMS: time.Since(start).Milliseconds(),
		Success:    false,
		Error:      fmt.Sprintf("all inner strategies exhausted: %s", strings.Join(errs, "; ")),
	}
}

// HealthCheck is OK if *either* inner passes (spec.md §4.3 "health is OK
// if either passes").
func (c *Compound) HealthCheck(ctx context.Context) bool {
	for _, inner := range c.inners {
		if inner.HealthCheck(ctx) {
			return true
		}
	}
	return false
}

func (c *Compound) Close() error {
	var firstErr error
	for _, inner := range c.inners {
		if err := inner.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
