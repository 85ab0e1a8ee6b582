package orchestration

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilby125/flightcrawler/dispatcher"
	"github.com/gilby125/flightcrawler/queue"
)

// oneShotQueue hands back a single queued job on its first Dequeue call,
// then nil forever after, recording Ack/Nack calls.
type oneShotQueue struct {
	fakeQueue
	job     *queue.Job
	dequeued bool
	acked    []string
	nacked   []string
}

func (q *oneShotQueue) Dequeue(ctx context.Context, queueName string) (*queue.Job, error) {
	if q.dequeued || q.job == nil {
		return nil, nil
	}
	q.dequeued = true
	return q.job, nil
}

func (q *oneShotQueue) Ack(ctx context.Context, queueName, jobID string) error {
	q.acked = append(q.acked, jobID)
	return nil
}

func (q *oneShotQueue) Nack(ctx context.Context, queueName, jobID string) error {
	q.nacked = append(q.nacked, jobID)
	return nil
}

func (q *oneShotQueue) IsJobCanceled(ctx context.Context, jobID string) (bool, error) {
	return false, nil
}

var _ queue.Queue = (*oneShotQueue)(nil)

func TestConsumer_DrainOnce_IncrementsProcessedOnAck(t *testing.T) {
	payload, err := json.Marshal(CrawlParallelPayload{})
	require.NoError(t, err)
	q := &oneShotQueue{job: &queue.Job{ID: "job-1", Type: JobCrawlParallel, Payload: string(payload)}}

	orch := &Orchestrator{Dispatch: dispatcher.New(nil, nil, 1)}
	c := NewConsumer(q, orch, "crawl_jobs")

	c.drainOnce(context.Background())

	assert.Equal(t, 1, c.Processed())
	assert.Equal(t, []string{"job-1"}, q.acked)
	assert.Empty(t, q.nacked)
}

func TestConsumer_DrainOnce_UnrecognizedJobTypeAcksWithoutProcessing(t *testing.T) {
	q := &oneShotQueue{job: &queue.Job{ID: "job-2", Type: "unknown"}}
	orch := &Orchestrator{Dispatch: dispatcher.New(nil, nil, 1)}
	c := NewConsumer(q, orch, "crawl_jobs")

	c.drainOnce(context.Background())

	assert.Equal(t, 1, c.Processed())
	assert.Equal(t, []string{"job-2"}, q.acked)
}

func TestConsumer_DrainOnce_NoJobIsNoOp(t *testing.T) {
	q := &oneShotQueue{}
	orch := &Orchestrator{Dispatch: dispatcher.New(nil, nil, 1)}
	c := NewConsumer(q, orch, "crawl_jobs")

	c.drainOnce(context.Background())

	assert.Equal(t, 0, c.Processed())
	assert.Empty(t, q.acked)
}
