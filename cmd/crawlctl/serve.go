package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/gilby125/flightcrawler/config"
	"github.com/gilby125/flightcrawler/orchestration"
	"github.com/gilby125/flightcrawler/pkg/cache"
	"github.com/gilby125/flightcrawler/pkg/logger"
	"github.com/gilby125/flightcrawler/pkg/notify"
	"github.com/gilby125/flightcrawler/pkg/worker_registry"
	"github.com/gilby125/flightcrawler/queue"
)

const heartbeatInterval = 15 * time.Second

const opsHealthCheckTimeout = 10 * time.Second

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the queue consumer, the route scheduler, and the ops HTTP surface until terminated",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "queue", Value: "crawl_jobs", Usage: "queue/stream name the consumer and scheduler share"},
			&cli.StringFlag{Name: "schedule", Value: "0 */6 * * *", Usage: "cron expression the route scheduler sweeps on"},
			&cli.IntFlag{Name: "days-ahead", Value: 3, Usage: "number of consecutive departure dates each sweep covers"},
			&cli.StringFlag{Name: "ops-addr", Value: ":8090", Usage: "bind address for the ops HTTP surface (/healthz, /metrics, /debug/sources)"},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pgDSN := postgresDSN(cfg.PostgresConfig)
	orch, pool, err := buildOrchestrator(ctx, cfg, pgDSN)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}
	defer orch.Dispatch.Close()

	q, err := queue.NewRedisQueue(cfg.RedisConfig)
	if err != nil {
		return fmt.Errorf("connect redis queue: %w", err)
	}

	queueName := c.String("queue")
	consumer := orchestration.NewConsumer(q, orch, queueName)
	go consumer.Run(ctx)

	ntfyClient := notify.NewNTFYClient(notify.NTFYConfig{
		ServerURL:      cfg.NTFYConfig.ServerURL,
		Topic:          cfg.NTFYConfig.Topic,
		Username:       cfg.NTFYConfig.Username,
		Password:       cfg.NTFYConfig.Password,
		Enabled:        cfg.NTFYConfig.Enabled,
		StallThreshold: cfg.NTFYConfig.StallThreshold,
		ErrorThreshold: cfg.NTFYConfig.ErrorThreshold,
		ErrorWindow:    cfg.NTFYConfig.ErrorWindow,
	})

	routes := watchedRoutes(cfg)
	scheduler := orchestration.NewScheduler(q, queueName, routes, c.Int("days-ahead"), ntfyClient)
	if err := scheduler.Start(ctx, c.String("schedule")); err != nil {
		return err
	}

	registry := worker_registry.New(q.Client(), "flightcrawler")
	go publishHeartbeat(ctx, registry, consumer)

	healthCache := cache.NewHealthCache(1 * time.Minute)
	engine := newOpsEngine(cfg.AdminAuthConfig, orchestratorHealthAdapter{orch: orch}, healthCache, registry)
	opsServer := &http.Server{Addr: c.String("ops-addr"), Handler: engine}
	go func() {
		logger.Info("ops http surface listening", "addr", opsServer.Addr)
		if err := opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error(err, "ops http surface stopped unexpectedly")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("serve: shutdown signal received")

	cancel()
	consumer.Stop()
	scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return opsServer.Shutdown(shutdownCtx)
}

// publishHeartbeat republishes this process's liveness to Redis every
// heartbeatInterval until ctx is canceled, ground: teacher
// worker/manager.go's heartbeat loop, re-homed from the deleted
// worker-pool onto the single consumer goroutine this process runs.
func publishHeartbeat(ctx context.Context, registry *worker_registry.Registry, consumer *orchestration.Consumer) {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "crawlctl"
	}
	id := fmt.Sprintf("%s-%d", hostname, os.Getpid())
	started := time.Now().UTC()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		hb := worker_registry.WorkerHeartbeat{
			ID:            id,
			Hostname:      hostname,
			Status:        "serving",
			ProcessedJobs: consumer.Processed(),
			Concurrency:   1,
			StartedAt:     started,
		}
		if err := registry.Publish(ctx, hb, heartbeatInterval*3); err != nil {
			logger.Error(err, "publish worker heartbeat failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// watchedRoutes is the static crawl-sweep watch list, ground: teacher
// worker/scheduler.go's scheduled_jobs seed data, here a fixed set
// in-process since DB-backed CRUD over the watch list is out of scope
// (spec.md §1). Kept small and deliberately uninteresting; operators
// wanting a different set fork this function.
func watchedRoutes(cfg *config.Config) []orchestration.Route {
	_ = cfg
	return []orchestration.Route{
		{Origin: "JFK", Destination: "LHR", CabinClass: "ECONOMY", Priority: "BALANCED"},
		{Origin: "SFO", Destination: "NRT", CabinClass: "ECONOMY", Priority: "PRICE"},
		{Origin: "LAX", Destination: "SYD", CabinClass: "ECONOMY", Priority: "PRICE"},
	}
}
