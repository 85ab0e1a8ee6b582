package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/go-resty/resty/v2"
	"github.com/urfave/cli/v2"

	"github.com/gilby125/flightcrawler/core"
	"github.com/gilby125/flightcrawler/pkg/cache"
)

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "check every registered source adapter, or a running crawlctl serve instance's /healthz",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "remote", Usage: "base URL of a running 'crawlctl serve' ops surface, e.g. http://localhost:8090"},
			&cli.DurationFlag{Name: "cache-ttl", Value: 30 * time.Second, Usage: "how long a healthy/unhealthy verdict is cached before re-checking"},
		},
		Action: runHealth,
	}
}

func runHealth(c *cli.Context) error {
	if remote := c.String("remote"); remote != "" {
		return runRemoteHealth(remote)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	disp, err := buildDispatcher(cfg.CrawlerConfig)
	if err != nil {
		return err
	}
	defer disp.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	healthCache := cache.NewHealthCache(c.Duration("cache-ttl"))
	results := disp.HealthCheck(ctx)

	sources := make([]core.DataSource, 0, len(results))
	for source := range results {
		sources = append(sources, source)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })

	allHealthy := true
	for _, source := range sources {
		healthy := results[source]
		healthCache.Set(source, healthy)
		allHealthy = allHealthy && healthy
		printSourceHealth(source, healthy)
	}
	if !allHealthy {
		return cli.Exit("one or more sources are unhealthy", 2)
	}
	return nil
}

func printSourceHealth(source core.DataSource, healthy bool) {
	if healthy {
		fmt.Printf("%s  %s\n", color.GreenString("OK  "), source)
		return
	}
	fmt.Printf("%s  %s\n", color.RedString("FAIL"), source)
}

// runRemoteHealth hits a running `crawlctl serve` instance's /healthz
// instead of checking adapters in-process, ground: original_source
// cli.py's `health --remote` flag hitting the crawler's own status
// endpoint rather than re-probing every airline locally.
func runRemoteHealth(baseURL string) error {
	client := resty.New().SetTimeout(10 * time.Second).SetBaseURL(baseURL)
	resp, err := client.R().Get("/healthz")
	if err != nil {
		return fmt.Errorf("remote health check: %w", err)
	}
	if resp.IsError() {
		fmt.Fprintln(os.Stderr, color.RedString("remote reports unhealthy (status %d): %s", resp.StatusCode(), resp.String()))
		return cli.Exit("remote unhealthy", 2)
	}
	fmt.Println(color.GreenString("remote OK"), "-", resp.String())
	return nil
}
