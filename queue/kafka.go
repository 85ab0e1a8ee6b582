package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig configures a Kafka-backed Queue, an alternative transport to
// RedisQueue for deployments that already run a Kafka cluster for other
// services. Topic naming mirrors RedisQueue's per-jobType stream naming.
type KafkaConfig struct {
	Brokers       []string
	GroupID       string
	TopicPrefix   string
	CommitTimeout time.Duration
}

// KafkaQueue implements Queue over segmentio/kafka-go, one topic per job
// type. Job bookkeeping (status, cancellation, listing) that Kafka itself
// has no concept of is kept in an in-memory table, same role as
// RedisQueue's Redis hashes but process-local: a KafkaQueue instance is
// meant to back one consumer process, not be queried cross-process for
// admin/debug state the way RedisQueue is.
type KafkaQueue struct {
	cfg     KafkaConfig
	mu      sync.Mutex
	writers map[string]*kafka.Writer
	readers map[string]*kafka.Reader
	jobs    map[string]*Job
	msgs    map[string]kafka.Message // jobID -> message, for Ack/Nack commit
	pending map[string][]string      // queueName -> jobIDs not yet read
	canceled map[string]bool
}

// NewKafkaQueue validates cfg and constructs an empty KafkaQueue. Topics
// and readers are created lazily per job type on first use.
func NewKafkaQueue(cfg KafkaConfig) (*KafkaQueue, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka queue: at least one broker required")
	}
	if cfg.GroupID == "" {
		cfg.GroupID = "flightcrawler"
	}
	if cfg.CommitTimeout == 0 {
		cfg.CommitTimeout = 10 * time.Second
	}
	return &KafkaQueue{
		cfg:      cfg,
		writers:  make(map[string]*kafka.Writer),
		readers:  make(map[string]*kafka.Reader),
		jobs:     make(map[string]*Job),
		msgs:     make(map[string]kafka.Message),
		pending:  make(map[string][]string),
		canceled: make(map[string]bool),
	}, nil
}

func (q *KafkaQueue) topic(jobType string) string {
	if q.cfg.TopicPrefix == "" {
		return jobType
	}
	return q.cfg.TopicPrefix + "." + jobType
}

func (q *KafkaQueue) writer(jobType string) *kafka.Writer {
	q.mu.Lock()
	defer q.mu.Unlock()
	if w, ok := q.writers[jobType]; ok {
		return w
	}
	w := &kafka.Writer{
		Addr:     kafka.TCP(q.cfg.Brokers...),
		Topic:    q.topic(jobType),
		Balancer: &kafka.LeastBytes{},
	}
	q.writers[jobType] = w
	return w
}

func (q *KafkaQueue) reader(queueName string) *kafka.Reader {
	q.mu.Lock()
	defer q.mu.Unlock()
	if r, ok := q.readers[queueName]; ok {
		return r
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: q.cfg.Brokers,
		GroupID: q.cfg.GroupID,
		Topic:   q.topic(queueName),
	})
	q.readers[queueName] = r
	return r
}

func (q *KafkaQueue) Enqueue(ctx context.Context, jobType string, payload interface{}) (string, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("kafka queue: marshal payload: %w", err)
	}
	job := &Job{
		ID:          fmt.Sprintf("%s-%d", jobType, time.Now().UnixNano()),
		Type:        jobType,
		Payload:     payloadBytes,
		CreatedAt:   time.Now().UTC(),
		MaxAttempts: 3,
		Status:      "pending",
	}
	if meta := EnqueueMetaFromContext(ctx); !meta.isEmpty() {
		job.EnqueueMeta = &meta
	}
	body, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("kafka queue: marshal job: %w", err)
	}
	if err := q.writer(jobType).WriteMessages(ctx, kafka.Message{Key: []byte(job.ID), Value: body}); err != nil {
		return "", fmt.Errorf("kafka queue: write message: %w", err)
	}

	q.mu.Lock()
	q.jobs[job.ID] = job
	q.pending[jobType] = append(q.pending[jobType], job.ID)
	q.mu.Unlock()

	return job.ID, nil
}

func (q *KafkaQueue) Dequeue(ctx context.Context, queueName string) (*Job, error) {
	readCtx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	m, err := q.reader(queueName).FetchMessage(readCtx)
	if err != nil {
		if ctx.Err() != nil || readCtx.Err() != nil {
			return nil, nil
		}
		return nil, fmt.Errorf("kafka queue: fetch message: %w", err)
	}

	var job Job
	if err := json.Unmarshal(m.Value, &job); err != nil {
		return nil, fmt.Errorf("kafka queue: decode job: %w", err)
	}
	job.Status = "processing"
	job.Attempts++

	q.mu.Lock()
	q.jobs[job.ID] = &job
	q.msgs[job.ID] = m
	q.mu.Unlock()

	return &job, nil
}

func (q *KafkaQueue) Ack(ctx context.Context, queueName, jobID string) error {
	q.mu.Lock()
	m, ok := q.msgs[jobID]
	if job, exists := q.jobs[jobID]; exists {
		job.Status = "completed"
	}
	delete(q.msgs, jobID)
	q.mu.Unlock()
	if !ok {
		return nil
	}
	if err := q.reader(queueName).CommitMessages(ctx, m); err != nil {
		return fmt.Errorf("kafka queue: commit ack: %w", err)
	}
	return nil
}

func (q *KafkaQueue) Nack(ctx context.Context, queueName, jobID string) error {
	q.mu.Lock()
	if job, exists := q.jobs[jobID]; exists {
		job.Status = "failed"
	}
	delete(q.msgs, jobID)
	q.mu.Unlock()
	// Kafka has no per-message redelivery short of not committing; leaving
	// the offset uncommitted means the group will redeliver on restart.
	return nil
}

func (q *KafkaQueue) GetJobStatus(ctx context.Context, jobID string) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[jobID]
	if !ok {
		return "", fmt.Errorf("kafka queue: job %s not found", jobID)
	}
	return job.Status, nil
}

func (q *KafkaQueue) GetQueueStats(ctx context.Context, queueName string) (map[string]int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	stats := map[string]int64{"pending": 0, "processing": 0, "completed": 0, "failed": 0}
	for _, job := range q.jobs {
		if job.Type != queueName {
			continue
		}
		stats[job.Status]++
	}
	return stats, nil
}

func (q *KafkaQueue) CancelJob(ctx context.Context, queueName, jobID string) error {
	q.mu.Lock()
	q.canceled[jobID] = true
	q.mu.Unlock()
	return nil
}

func (q *KafkaQueue) IsJobCanceled(ctx context.Context, jobID string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.canceled[jobID], nil
}

func (q *KafkaQueue) GetJob(ctx context.Context, jobID string) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("kafka queue: job %s not found", jobID)
	}
	return job, nil
}

func (q *KafkaQueue) ListJobs(ctx context.Context, queueName, state string, limit, offset int) ([]*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []*Job
	for _, job := range q.jobs {
		if job.Type != queueName {
			continue
		}
		if state != "" && job.Status != state {
			continue
		}
		out = append(out, job)
	}
	if offset >= len(out) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}

func (q *KafkaQueue) GetBacklog(ctx context.Context, queueName string, limit int) ([]*Job, error) {
	return q.ListJobs(ctx, queueName, "pending", limit, 0)
}

func (q *KafkaQueue) GetEnqueueMetrics(ctx context.Context, queueName string, minutes int) (map[string]int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	cutoff := time.Now().Add(-time.Duration(minutes) * time.Minute)
	metrics := make(map[string]int64)
	for _, job := range q.jobs {
		if job.Type != queueName || job.CreatedAt.Before(cutoff) || job.EnqueueMeta == nil {
			continue
		}
		actor := job.EnqueueMeta.Actor
		if actor == "" {
			actor = "unknown"
		}
		metrics[actor]++
	}
	return metrics, nil
}

func (q *KafkaQueue) ClearFailed(ctx context.Context, queueName string) (int64, error) {
	return q.clearByStatus(queueName, "failed"), nil
}

func (q *KafkaQueue) ClearProcessing(ctx context.Context, queueName string) (int64, error) {
	return q.clearByStatus(queueName, "processing"), nil
}

func (q *KafkaQueue) ClearQueue(ctx context.Context, queueName string) (int64, error) {
	return q.clearByStatus(queueName, "pending"), nil
}

func (q *KafkaQueue) clearByStatus(queueName, status string) int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	var cleared int64
	for id, job := range q.jobs {
		if job.Type == queueName && job.Status == status {
			delete(q.jobs, id)
			cleared++
		}
	}
	return cleared
}

func (q *KafkaQueue) RetryFailed(ctx context.Context, queueName string, limit int) (int64, error) {
	q.mu.Lock()
	var toRetry []*Job
	for _, job := range q.jobs {
		if job.Type == queueName && job.Status == "failed" {
			toRetry = append(toRetry, job)
			if limit > 0 && len(toRetry) >= limit {
				break
			}
		}
	}
	q.mu.Unlock()

	var retried int64
	for _, job := range toRetry {
		var payload json.RawMessage = job.Payload
		if _, err := q.Enqueue(ctx, job.Type, payload); err != nil {
			return retried, fmt.Errorf("kafka queue: retry job %s: %w", job.ID, err)
		}
		q.mu.Lock()
		job.Status = "retried"
		q.mu.Unlock()
		retried++
	}
	return retried, nil
}

// Close flushes and closes every writer and reader the queue opened.
func (q *KafkaQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	var errs []string
	for _, w := range q.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	for _, r := range q.readers {
		if err := r.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("kafka queue: close: %s", strings.Join(errs, "; "))
	}
	return nil
}

var _ Queue = (*KafkaQueue)(nil)
