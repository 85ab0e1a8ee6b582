// Package orchestration wires the dispatcher, merger, scorer and store
// together into the task shapes of spec.md §4.10: CrawlSingle (one
// source), CrawlParallel (fan out then merge), and MergeAndStore (merge
// pre-fetched results and persist). Tasks are queued through
// queue.Queue (Redis Streams, teacher's worker/manager.go consumer-group
// pattern) so a pool of workers can execute them asynchronously.
package orchestration

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gilby125/flightcrawler/core"
	"github.com/gilby125/flightcrawler/dispatcher"
	"github.com/gilby125/flightcrawler/merger"
	"github.com/gilby125/flightcrawler/pkg/logger"
	"github.com/gilby125/flightcrawler/scoring"
	"github.com/gilby125/flightcrawler/store"
)

// Job type names used as the queue.Queue jobType/streamName argument.
const (
	JobCrawlSingle    = "crawl_single"
	JobCrawlParallel  = "crawl_parallel"
	JobMergeAndStore  = "merge_and_store"
)

// CrawlSinglePayload is the JSON body of a JobCrawlSingle job.
type CrawlSinglePayload struct {
	Task core.CrawlTask `json:"task"`
}

// CrawlParallelPayload is the JSON body of a JobCrawlParallel job.
type CrawlParallelPayload struct {
	Tasks     []core.CrawlTask   `json:"tasks"`
	Priority  scoring.Priority   `json:"priority"`
	Window    scoring.TimeWindow `json:"window"`
	Persist   bool               `json:"persist"`
}

// Outcome is the result recorded against a job once an Orchestrator
// finishes running it.
type Outcome struct {
	Flights     []core.NormalizedFlight   `json:"flights,omitempty"`
	Scores      []scoring.ScoreBreakdown  `json:"scores,omitempty"`
	Stored      int                       `json:"stored,omitempty"`
	CrawlErrors []string                  `json:"crawl_errors,omitempty"`
}

// Orchestrator executes the three task shapes against a shared
// dispatcher, scorer configuration, and optional store.
type Orchestrator struct {
	Dispatch *dispatcher.Dispatcher
	Store    *store.FlightStore
	RefData  core.ReferenceData

	// ExcludedAirlines is applied to every CrawlParallel result before
	// scoring/persisting, ground: config.FlightConfig.ExcludedAirlines.
	ExcludedAirlines []string
}

// CrawlSingle runs one CrawlTask and returns its raw CrawlResult,
// unmerged and unscored (spec.md §4.10 "single source, no merge step").
func (o *Orchestrator) CrawlSingle(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	return o.Dispatch.DispatchSingle(ctx, task)
}

// CrawlParallel fans a task set out across their sources, merges the
// results, optionally scores them, and optionally persists the merged
// flights. It returns the Outcome recorded against the originating job.
func (o *Orchestrator) CrawlParallel(ctx context.Context, payload CrawlParallelPayload) (Outcome, error) {
	results := o.Dispatch.DispatchParallel(ctx, payload.Tasks)
	merged := merger.FilterExcludedAirlines(merger.Merge(results), o.ExcludedAirlines)

	var crawlErrors []string
	for _, r := range results {
		if !r.Success {
			crawlErrors = append(crawlErrors, fmt.Sprintf("%s: %s", r.Source, r.Error))
		}
	}

	var scores []scoring.ScoreBreakdown
	if payload.Priority != "" {
		scorer := scoring.Scorer{Priority: payload.Priority, Window: payload.Window, RefData: o.RefData}
		scores = scorer.Score(merged)
	}

	outcome := Outcome{Flights: merged, Scores: scores, CrawlErrors: crawlErrors}

	if payload.Persist && o.Store != nil {
		stored, err := o.Store.StoreFlights(ctx, merged)
		if err != nil {
			logger.Error(err, "merge_and_store: persist failed", "flight_count", len(merged))
			return outcome, fmt.Errorf("persist merged flights: %w", err)
		}
		outcome.Stored = stored
	}

	return outcome, nil
}

// MergeAndStore merges results that were already fetched out of band
// (e.g. by independent CrawlSingle jobs whose outputs were collected by
// the caller) and persists them, without touching the dispatcher.
func (o *Orchestrator) MergeAndStore(ctx context.Context, results []core.CrawlResult) (Outcome, error) {
	merged := merger.Merge(results)
	outcome := Outcome{Flights: merged}
	if o.Store == nil {
		return outcome, nil
	}
	stored, err := o.Store.StoreFlights(ctx, merged)
	if err != nil {
		return outcome, fmt.Errorf("merge and store: %w", err)
	}
	outcome.Stored = stored
	return outcome, nil
}

// DecodeCrawlParallelPayload is a small helper for queue consumers that
// receive payloads as json.RawMessage.
func DecodeCrawlParallelPayload(raw json.RawMessage) (CrawlParallelPayload, error) {
	var p CrawlParallelPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("decode crawl_parallel payload: %w", err)
	}
	return p, nil
}
