package orchestration

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/gilby125/flightcrawler/pkg/logger"
	"github.com/gilby125/flightcrawler/queue"
)

// Consumer repeatedly dequeues jobs from one queue name and runs them
// through an Orchestrator, acking on success and nacking (for
// queue.Queue's retry/backoff handling) on failure. Grounded on the
// heartbeat/select-loop shape of worker/manager.go's background
// goroutines.
type Consumer struct {
	Queue        queue.Queue
	Orchestrator *Orchestrator
	QueueName    string
	PollInterval time.Duration

	stop      chan struct{}
	processed atomic.Int64
}

// Processed returns the number of jobs acked so far, for worker_registry
// heartbeats.
func (c *Consumer) Processed() int {
	return int(c.processed.Load())
}

// NewConsumer builds a Consumer with a 500ms poll interval unless
// overridden by setting PollInterval after construction.
func NewConsumer(q queue.Queue, orch *Orchestrator, queueName string) *Consumer {
	return &Consumer{
		Queue:        q,
		Orchestrator: orch,
		QueueName:    queueName,
		PollInterval: 500 * time.Millisecond,
		stop:         make(chan struct{}),
	}
}

// Run blocks, dequeuing and executing jobs until ctx is canceled or Stop
// is called.
func (c *Consumer) Run(ctx context.Context) {
	ticker := time.NewTicker(c.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-ticker.C:
			c.drainOnce(ctx)
		}
	}
}

// Stop signals Run to return after its current iteration.
func (c *Consumer) Stop() {
	close(c.stop)
}

func (c *Consumer) drainOnce(ctx context.Context) {
	job, err := c.Queue.Dequeue(ctx, c.QueueName)
	if err != nil {
		logger.Error(err, "orchestration consumer: dequeue failed", "queue", c.QueueName)
		return
	}
	if job == nil {
		return
	}

	canceled, err := c.Queue.IsJobCanceled(ctx, job.ID)
	if err == nil && canceled {
		_ = c.Queue.Ack(ctx, c.QueueName, job.ID)
		return
	}

	if err := c.execute(ctx, job); err != nil {
		logger.Error(err, "orchestration consumer: job failed", "job_id", job.ID, "job_type", job.Type)
		if nackErr := c.Queue.Nack(ctx, c.QueueName, job.ID); nackErr != nil {
			logger.Error(nackErr, "orchestration consumer: nack failed", "job_id", job.ID)
		}
		return
	}
	if err := c.Queue.Ack(ctx, c.QueueName, job.ID); err != nil {
		logger.Error(err, "orchestration consumer: ack failed", "job_id", job.ID)
		return
	}
	c.processed.Add(1)
}

func (c *Consumer) execute(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case JobCrawlParallel:
		payload, err := DecodeCrawlParallelPayload(job.Payload)
		if err != nil {
			return err
		}
		_, err = c.Orchestrator.CrawlParallel(ctx, payload)
		return err
	default:
		logger.Warn("orchestration consumer: unrecognized job type, acking without work", "job_type", job.Type)
		return nil
	}
}
