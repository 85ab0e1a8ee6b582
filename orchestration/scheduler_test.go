package orchestration

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilby125/flightcrawler/queue"
)

// fakeQueue records every Enqueue call; the scheduler under test never
// needs the other Queue methods.
type fakeQueue struct {
	enqueued []fakeEnqueueCall
	failNext bool
}

type fakeEnqueueCall struct {
	jobType string
	payload CrawlParallelPayload
}

func (f *fakeQueue) Enqueue(ctx context.Context, jobType string, payload interface{}) (string, error) {
	if f.failNext {
		f.failNext = false
		return "", assert.AnError
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	var p CrawlParallelPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", err
	}
	f.enqueued = append(f.enqueued, fakeEnqueueCall{jobType: jobType, payload: p})
	return "fake-id", nil
}

func (f *fakeQueue) Dequeue(ctx context.Context, queueName string) (*queue.Job, error) { return nil, nil }
func (f *fakeQueue) Ack(ctx context.Context, queueName, jobID string) error             { return nil }
func (f *fakeQueue) Nack(ctx context.Context, queueName, jobID string) error            { return nil }
func (f *fakeQueue) GetJobStatus(ctx context.Context, jobID string) (string, error)     { return "", nil }
func (f *fakeQueue) GetQueueStats(ctx context.Context, queueName string) (map[string]int64, error) {
	return nil, nil
}
func (f *fakeQueue) CancelJob(ctx context.Context, queueName, jobID string) error { return nil }
func (f *fakeQueue) IsJobCanceled(ctx context.Context, jobID string) (bool, error) {
	return false, nil
}
func (f *fakeQueue) GetJob(ctx context.Context, jobID string) (*queue.Job, error) { return nil, nil }
func (f *fakeQueue) ListJobs(ctx context.Context, queueName, state string, limit, offset int) ([]*queue.Job, error) {
	return nil, nil
}
func (f *fakeQueue) GetBacklog(ctx context.Context, queueName string, limit int) ([]*queue.Job, error) {
	return nil, nil
}
func (f *fakeQueue) GetEnqueueMetrics(ctx context.Context, queueName string, minutes int) (map[string]int64, error) {
	return nil, nil
}
func (f *fakeQueue) ClearFailed(ctx context.Context, queueName string) (int64, error)     { return 0, nil }
func (f *fakeQueue) ClearProcessing(ctx context.Context, queueName string) (int64, error) { return 0, nil }
func (f *fakeQueue) RetryFailed(ctx context.Context, queueName string, limit int) (int64, error) {
	return 0, nil
}
func (f *fakeQueue) ClearQueue(ctx context.Context, queueName string) (int64, error) { return 0, nil }

var _ queue.Queue = (*fakeQueue)(nil)

func TestScheduler_SweepOnce_OneJobPerRoute(t *testing.T) {
	q := &fakeQueue{}
	routes := []Route{
		{Origin: "JFK", Destination: "LHR", CabinClass: "ECONOMY", Priority: "BALANCED"},
		{Origin: "SFO", Destination: "NRT", CabinClass: "ECONOMY", Priority: "PRICE"},
	}
	s := NewScheduler(q, "crawl_jobs", routes, 2, nil)

	s.sweepOnce(context.Background())

	require.Len(t, q.enqueued, 2)
	for i, call := range q.enqueued {
		assert.Equal(t, JobCrawlParallel, call.jobType)
		assert.Equal(t, routes[i].Priority, call.payload.Priority)
		assert.True(t, call.payload.Persist)
		// 2 days ahead x 4 sources per route.
		assert.Len(t, call.payload.Tasks, 8)
	}
}

func TestScheduler_SweepOnce_DefaultsDaysAheadToOne(t *testing.T) {
	q := &fakeQueue{}
	s := NewScheduler(q, "crawl_jobs", []Route{{Origin: "JFK", Destination: "LHR"}}, 0, nil)
	assert.Equal(t, 1, s.DaysAhead)

	s.sweepOnce(context.Background())
	require.Len(t, q.enqueued, 1)
	assert.Len(t, q.enqueued[0].payload.Tasks, len(sweepSources))
}

func TestScheduler_SweepOnce_ContinuesAfterEnqueueFailure(t *testing.T) {
	q := &fakeQueue{failNext: true}
	routes := []Route{
		{Origin: "JFK", Destination: "LHR"},
		{Origin: "SFO", Destination: "NRT"},
	}
	s := NewScheduler(q, "crawl_jobs", routes, 1, nil)

	s.sweepOnce(context.Background())

	require.Len(t, q.enqueued, 1, "first route's enqueue failed, second still ran")
	assert.Equal(t, "SFO", q.enqueued[0].payload.Tasks[0].Request.Origin)
}
