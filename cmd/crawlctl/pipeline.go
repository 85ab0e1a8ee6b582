package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gilby125/flightcrawler/config"
	"github.com/gilby125/flightcrawler/core"
	"github.com/gilby125/flightcrawler/dispatcher"
	"github.com/gilby125/flightcrawler/orchestration"
	"github.com/gilby125/flightcrawler/refdata"
	"github.com/gilby125/flightcrawler/sources"
	"github.com/gilby125/flightcrawler/store"
)

// buildDispatcher wires sources.Build's adapters into a rate-limited
// Dispatcher per cfg.CrawlerConfig (the config surface A1 of
// SPEC_FULL.md §2).
func buildDispatcher(cfg config.CrawlerConfig) (*dispatcher.Dispatcher, error) {
	adapters, err := sources.Build(sources.Credentials{
		KiwiAPIKey:              cfg.KiwiAPIKey,
		AmadeusClientID:         cfg.AmadeusClientID,
		AmadeusClientSecret:     cfg.AmadeusClientSecret,
		AmadeusHostname:         cfg.AmadeusHostname,
		LufthansaClientID:       cfg.LufthansaClientID,
		LufthansaClientSecret:   cfg.LufthansaClientSecret,
		LufthansaHostname:       cfg.LufthansaHostname,
		SingaporeAirlinesAPIKey: cfg.SingaporeAirlinesAPIKey,
		L1Timeout:               cfg.L1Timeout,
		L2Timeout:               cfg.L2Timeout,
		L3Timeout:               cfg.L3Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("build sources: %w", err)
	}

	limits := make(map[core.DataSource]dispatcher.Limits, len(cfg.SourceRPS))
	for source, rps := range cfg.SourceRPS {
		limits[core.DataSource(source)] = dispatcher.Limits{RPS: rps, Burst: cfg.SourceBurst[source]}
	}

	return dispatcher.New(adapters, limits, len(adapters)*2), nil
}

// buildOrchestrator additionally wires a Postgres pool for persistence
// and reference data when pgDSN is non-empty; an empty DSN yields an
// Orchestrator that can crawl and score but never persists (useful for
// `crawlctl search` against a database-less sandbox).
func buildOrchestrator(ctx context.Context, cfg *config.Config, pgDSN string) (*orchestration.Orchestrator, *pgxpool.Pool, error) {
	disp, err := buildDispatcher(cfg.CrawlerConfig)
	if err != nil {
		return nil, nil, err
	}

	orch := &orchestration.Orchestrator{Dispatch: disp, ExcludedAirlines: cfg.FlightConfig.ExcludedAirlines}
	if pgDSN == "" {
		return orch, nil, nil
	}

	pool, err := pgxpool.New(ctx, pgDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	refData := refdata.NewPostgres(pool)
	if err := refData.Load(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("load reference data: %w", err)
	}
	orch.RefData = refData
	orch.Store = store.NewFlightStore(pool)
	return orch, pool, nil
}

// postgresDSN builds a libpq URL from cfg.PostgresConfig.
func postgresDSN(cfg config.PostgresConfig) string {
	sslmode := cfg.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName, sslmode)
}
