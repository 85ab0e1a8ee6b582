package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKafkaQueue_RequiresBrokers(t *testing.T) {
	_, err := NewKafkaQueue(KafkaConfig{})
	assert.Error(t, err)
}

func TestNewKafkaQueue_Defaults(t *testing.T) {
	q, err := NewKafkaQueue(KafkaConfig{Brokers: []string{"localhost:9092"}})
	require.NoError(t, err)
	assert.Equal(t, "flightcrawler", q.cfg.GroupID)
	assert.Equal(t, 10*time.Second, q.cfg.CommitTimeout)
}

func TestKafkaQueue_Topic(t *testing.T) {
	q, err := NewKafkaQueue(KafkaConfig{Brokers: []string{"localhost:9092"}})
	require.NoError(t, err)
	assert.Equal(t, "crawl_parallel", q.topic("crawl_parallel"))

	q.cfg.TopicPrefix = "flightcrawler"
	assert.Equal(t, "flightcrawler.crawl_parallel", q.topic("crawl_parallel"))
}

// The remaining Queue methods operate purely on the in-memory bookkeeping
// maps and never touch a broker, so they're exercised directly against a
// KafkaQueue whose jobs map is seeded by hand rather than through Enqueue
// (which requires a live Kafka connection).
func seededKafkaQueue(t *testing.T) *KafkaQueue {
	t.Helper()
	q, err := NewKafkaQueue(KafkaConfig{Brokers: []string{"localhost:9092"}})
	require.NoError(t, err)
	q.jobs["job-1"] = &Job{ID: "job-1", Type: "crawl_parallel", Status: "pending", CreatedAt: time.Now()}
	q.jobs["job-2"] = &Job{ID: "job-2", Type: "crawl_parallel", Status: "failed", CreatedAt: time.Now()}
	q.jobs["job-3"] = &Job{ID: "job-3", Type: "other", Status: "pending", CreatedAt: time.Now()}
	return q
}

func TestKafkaQueue_GetJobStatus(t *testing.T) {
	q := seededKafkaQueue(t)
	status, err := q.GetJobStatus(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, "pending", status)

	_, err = q.GetJobStatus(context.Background(), "missing")
	assert.Error(t, err)
}

func TestKafkaQueue_GetQueueStats(t *testing.T) {
	q := seededKafkaQueue(t)
	stats, err := q.GetQueueStats(context.Background(), "crawl_parallel")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats["pending"])
	assert.Equal(t, int64(1), stats["failed"])
	assert.Equal(t, int64(0), stats["completed"])
}

func TestKafkaQueue_CancelAndIsJobCanceled(t *testing.T) {
	q := seededKafkaQueue(t)
	canceled, err := q.IsJobCanceled(context.Background(), "job-1")
	require.NoError(t, err)
	assert.False(t, canceled)

	require.NoError(t, q.CancelJob(context.Background(), "crawl_parallel", "job-1"))
	canceled, err = q.IsJobCanceled(context.Background(), "job-1")
	require.NoError(t, err)
	assert.True(t, canceled)
}

func TestKafkaQueue_ListJobsFiltersByTypeAndState(t *testing.T) {
	q := seededKafkaQueue(t)
	jobs, err := q.ListJobs(context.Background(), "crawl_parallel", "failed", 10, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "job-2", jobs[0].ID)
}

func TestKafkaQueue_ClearFailed(t *testing.T) {
	q := seededKafkaQueue(t)
	cleared, err := q.ClearFailed(context.Background(), "crawl_parallel")
	require.NoError(t, err)
	assert.Equal(t, int64(1), cleared)
	_, ok := q.jobs["job-2"]
	assert.False(t, ok)
}

func TestKafkaQueue_Close_NoOpenResources(t *testing.T) {
	q, err := NewKafkaQueue(KafkaConfig{Brokers: []string{"localhost:9092"}})
	require.NoError(t, err)
	assert.NoError(t, q.Close())
}
