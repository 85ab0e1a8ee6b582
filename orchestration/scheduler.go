package orchestration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rickb777/date"

	"github.com/gilby125/flightcrawler/core"
	"github.com/gilby125/flightcrawler/pkg/logger"
	"github.com/gilby125/flightcrawler/pkg/notify"
	"github.com/gilby125/flightcrawler/queue"
	"github.com/gilby125/flightcrawler/scoring"
)

// Route is one origin/destination/cabin combination the scheduler sweeps
// on a recurring basis, ground: teacher worker/scheduler.go's
// scheduled_jobs table, generalized here to a static in-process watch
// list instead of a DB-backed CRUD surface (out of scope, spec.md §1).
type Route struct {
	Origin      string
	Destination string
	CabinClass  core.CabinClass
	Priority    scoring.Priority
}

// Scheduler enqueues a JobCrawlParallel job per watched Route on a cron
// schedule, sweeping DaysAhead consecutive calendar days per run so the
// resulting data set covers a price calendar rather than one fixed date.
// Ground: teacher worker/scheduler.go's cron.Cron wrapper, generalized
// from a single scheduled date to a date.Date range (rickb777/date,
// calendar-only — no time-of-day component, matching
// core.SearchRequest.DepartureDate's "time-of-day ignored" contract).
type Scheduler struct {
	Queue     queue.Queue
	Routes    []Route
	DaysAhead int
	QueueName string
	NTFY      *notify.NTFYClient

	cron       *cron.Cron
	mu         sync.Mutex
	sweepCount int
}

// NewScheduler builds a Scheduler with its own cron.Cron instance. Call
// AddSweep to register the recurring job before Start. ntfy may be nil;
// a nil or disabled client's AlertX calls are all safe no-ops.
func NewScheduler(q queue.Queue, queueName string, routes []Route, daysAhead int, ntfy *notify.NTFYClient) *Scheduler {
	if daysAhead <= 0 {
		daysAhead = 1
	}
	return &Scheduler{
		Queue:     q,
		Routes:    routes,
		DaysAhead: daysAhead,
		QueueName: queueName,
		NTFY:      ntfy,
		cron:      cron.New(),
	}
}

// Start registers the sweep on spec and starts the cron scheduler. spec is
// a standard 5-field cron expression (e.g. "0 */6 * * *" for every six
// hours, ground: teacher's friendly-schedule-to-cron conversion, here
// taking a raw cron expression directly since the admin CRUD surface that
// justified the friendly-schedule translation layer is out of scope).
func (s *Scheduler) Start(ctx context.Context, spec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.cron.AddFunc(spec, func() { s.sweepOnce(ctx) })
	if err != nil {
		return fmt.Errorf("scheduler: add sweep %q: %w", spec, err)
	}
	s.cron.Start()
	logger.Info("scheduler started", "routes", len(s.Routes), "days_ahead", s.DaysAhead, "spec", spec)
	return nil
}

// Stop blocks until any in-flight cron job finishes, then stops the
// underlying cron.Cron.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	logger.Info("scheduler stopped")
}

// sweepSources lists every trust category sources.Build registers; the
// scheduler dispatches one task per source per day so the dispatcher can
// fan out (DispatchSingle keys an adapter lookup on CrawlTask.Source).
var sweepSources = []core.DataSource{
	core.SourceGoogleProtobuf, core.SourceKiwiAPI, core.SourceGDS, core.SourceDirectCrawl,
}

// sweepOnce enqueues one JobCrawlParallel per watched route, with one task
// per (day, source) pair spanning today..today+DaysAhead-1.
func (s *Scheduler) sweepOnce(ctx context.Context) {
	s.mu.Lock()
	s.sweepCount++
	sweepNumber := s.sweepCount
	s.mu.Unlock()

	started := time.Now()
	if s.NTFY != nil {
		estimate := time.Duration(len(s.Routes)) * 5 * time.Second
		_ = s.NTFY.AlertSweepStarted(sweepNumber, len(s.Routes), estimate)
	}

	errCount := 0
	var lastErr string

	today := date.Today()
	for _, route := range s.Routes {
		tasks := make([]core.CrawlTask, 0, s.DaysAhead*len(sweepSources))
		for i := 0; i < s.DaysAhead; i++ {
			day := today.AddDate(0, 0, i)
			req := core.SearchRequest{
				Origin:        route.Origin,
				Destination:   route.Destination,
				DepartureDate: day.UTC(),
				TripType:      core.TripOneWay,
				CabinClass:    route.CabinClass,
				Passengers:    core.PassengerMix{Adults: 1},
			}
			for _, source := range sweepSources {
				tasks = append(tasks, core.CrawlTask{Request: req, Source: source})
			}
		}

		payload := CrawlParallelPayload{
			Tasks:    tasks,
			Priority: route.Priority,
			Persist:  true,
		}
		if _, err := s.Queue.Enqueue(ctx, JobCrawlParallel, payload); err != nil {
			logger.Error(err, "scheduler: enqueue sweep failed", "origin", route.Origin, "destination", route.Destination)
			errCount++
			lastErr = fmt.Sprintf("%s-%s: %v", route.Origin, route.Destination, err)
		}
	}

	if s.NTFY != nil {
		if errCount > 0 {
			_ = s.NTFY.AlertErrorSpike(sweepNumber, errCount, time.Since(started), lastErr)
		}
		_ = s.NTFY.AlertSweepComplete(sweepNumber, time.Since(started), len(s.Routes), errCount)
	}
}
