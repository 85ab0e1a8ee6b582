// Package sources wires every concrete C4 adapter together into the
// DataSource -> Crawler map the dispatcher (C5) is built over, ground:
// spec.md §1 "dispatches parallel crawls against 25+ heterogeneous
// airline and aggregator endpoints".
package sources

import (
	"fmt"
	"time"

	"github.com/gilby125/flightcrawler/core"
	"github.com/gilby125/flightcrawler/crawler"
	"github.com/gilby125/flightcrawler/sources/airpremia"
	"github.com/gilby125/flightcrawler/sources/amadeusgds"
	"github.com/gilby125/flightcrawler/sources/googleflights"
	"github.com/gilby125/flightcrawler/sources/hainan"
	"github.com/gilby125/flightcrawler/sources/kiwi"
	"github.com/gilby125/flightcrawler/sources/lufthansagroup"
	"github.com/gilby125/flightcrawler/sources/singaporeairlines"
	"github.com/gilby125/flightcrawler/sources/sputnik"
	"github.com/gilby125/flightcrawler/sources/thaiairways"
	"github.com/gilby125/flightcrawler/sources/turkishairlines"
)

// Credentials holds every per-source secret and timeout the registry
// needs to construct adapters. Field names mirror the CRAWLER_-prefixed
// env vars config.Load reads them from.
type Credentials struct {
	KiwiAPIKey string

	AmadeusClientID     string
	AmadeusClientSecret string
	AmadeusHostname     string

	LufthansaClientID     string
	LufthansaClientSecret string
	LufthansaHostname     string

	SingaporeAirlinesAPIKey string

	L1Timeout time.Duration
	L2Timeout time.Duration
	L3Timeout time.Duration
}

// Build constructs every concrete adapter and wires them into one
// DataSource -> Crawler map suitable for dispatcher.New. core.DataSource
// only distinguishes five trust categories (spec.md §9's merge/trust
// model), far fewer than the number of airline-direct scrapers, so every
// adapter sharing SourceDirectCrawl is combined under one
// crawler.Fanout: each still runs on every dispatched search, and a
// route outside its network simply contributes zero flights.
func Build(creds Credentials) (map[core.DataSource]crawler.Crawler, error) {
	kiwiAdapter, err := kiwi.New(kiwi.Config{APIKey: creds.KiwiAPIKey, Timeout: creds.L1Timeout})
	if err != nil {
		return nil, fmt.Errorf("sources: kiwi: %w", err)
	}

	amadeus, err := amadeusgds.New(amadeusgds.Config{
		ClientID:     creds.AmadeusClientID,
		ClientSecret: creds.AmadeusClientSecret,
		Hostname:     creds.AmadeusHostname,
		Timeout:      creds.L1Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("sources: amadeusgds: %w", err)
	}

	google, err := googleflights.New(googleflights.Config{Timeout: creds.L1Timeout})
	if err != nil {
		return nil, fmt.Errorf("sources: googleflights: %w", err)
	}

	lufthansa, err := lufthansagroup.New(lufthansagroup.Config{
		ClientID:     creds.LufthansaClientID,
		ClientSecret: creds.LufthansaClientSecret,
		Hostname:     creds.LufthansaHostname,
		Timeout:      creds.L1Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("sources: lufthansagroup: %w", err)
	}

	sq, err := singaporeairlines.New(singaporeairlines.Config{
		APIKey:  creds.SingaporeAirlinesAPIKey,
		Timeout: creds.L1Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("sources: singaporeairlines: %w", err)
	}

	hainanAdapter, err := hainan.New(hainan.Config{Timeout: creds.L1Timeout})
	if err != nil {
		return nil, fmt.Errorf("sources: hainan: %w", err)
	}

	af, err := sputnik.New(sputnik.Config{Timeout: creds.L2Timeout}, "AF")
	if err != nil {
		return nil, fmt.Errorf("sources: sputnik af: %w", err)
	}
	kl, err := sputnik.New(sputnik.Config{Timeout: creds.L2Timeout}, "KL")
	if err != nil {
		return nil, fmt.Errorf("sources: sputnik kl: %w", err)
	}

	directCrawl := crawler.NewFanout(
		hainanAdapter,
		airpremia.NewCompound(airpremia.Config{Timeout: creds.L2Timeout}),
		turkishairlines.NewCompound(turkishairlines.Config{Timeout: creds.L2Timeout}),
		thaiairways.NewCompound(thaiairways.Config{Timeout: creds.L2Timeout}),
		lufthansa,
		sq,
		af,
		kl,
	)

	return map[core.DataSource]crawler.Crawler{
		core.SourceKiwiAPI:        kiwiAdapter,
		core.SourceGDS:            amadeus,
		core.SourceGoogleProtobuf: google,
		core.SourceDirectCrawl:    directCrawl,
	}, nil
}
