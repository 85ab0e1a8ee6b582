// Package kiwi adapts the Kiwi Tequila /v2/search API into the crawler.Crawler
// contract, grounded 1:1 on
// original_source/apps/crawler/src/sky_scanner_crawler/kiwi/{client,response_parser}.py.
package kiwi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/gilby125/flightcrawler/core"
	"github.com/gilby125/flightcrawler/crawler"
	"github.com/gilby125/flightcrawler/transport"
)

const baseURL = "https://api.tequila.kiwi.com/v2/search"

// Config holds the Kiwi adapter's credentials and transport tuning.
type Config struct {
	APIKey  string
	Timeout time.Duration
}

// Adapter implements crawler.Crawler over Kiwi's Tequila API via L1.
type Adapter struct {
	cfg Config
	l1  *transport.L1
}

// New constructs a Kiwi adapter. Kiwi's API needs no TLS impersonation or
// browser automation, so it is L1-only (spec.md §4.2 "L1 suffices for a
// published JSON API").
func New(cfg Config) (*Adapter, error) {
	l1, err := transport.NewL1(transport.L1Config{Timeout: cfg.Timeout})
	if err != nil {
		return nil, fmt.Errorf("kiwi: %w", err)
	}
	return &Adapter{cfg: cfg, l1: l1}, nil
}

func (a *Adapter) Source() core.DataSource { return core.SourceKiwiAPI }

func (a *Adapter) Crawl(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	fn := func(ctx context.Context) ([]core.NormalizedFlight, error) {
		return a.CrawlRequest(ctx, task)
	}
	return crawler.SafeCrawl(core.SourceKiwiAPI, fn)(ctx, task)
}

// HealthCheck performs a minimal search call and reports whether the API
// key is accepted.
func (a *Adapter) HealthCheck(ctx context.Context) bool {
	resp, err := a.l1.Do(ctx, transport.Request{
		Method: "GET",
		URL:    baseURL,
		Headers: map[string]string{"apikey": a.cfg.APIKey},
		Query:   url.Values{"fly_from": {"PRG"}, "fly_to": {"LHR"}, "limit": {"1"}},
	})
	return err == nil && resp.StatusCode == 200
}

func (a *Adapter) Close() error { return nil }

type tequilaResponse struct {
	Data []struct {
		Price      float64        `json:"price"`
		DeepLink   string         `json:"deep_link"`
		CountryTo  map[string]any `json:"countryTo"`
		BagsPrice  map[string]any `json:"bags_price"`
		FlyFrom    string         `json:"flyFrom"`
		FlyTo      string         `json:"flyTo"`
		DTime      float64        `json:"dTime"`
		ATime      float64        `json:"aTime"`
		Airlines   []string       `json:"airlines"`
		Route      []tequilaRoute `json:"route"`
	} `json:"data"`
}

type tequilaRoute struct {
	FlyFrom          string  `json:"flyFrom"`
	FlyTo            string  `json:"flyTo"`
	DTime            float64 `json:"dTime"`
	ATime            float64 `json:"aTime"`
	Airline          string  `json:"airline"`
	FlightNo         int     `json:"flight_no"`
	OperatingCarrier string  `json:"operating_carrier"`
}

func epochToTime(ts float64) time.Time {
	return time.Unix(int64(ts), 0).UTC()
}

func durationMinutes(dep, arr float64) int {
	d := int((arr - dep) / 60)
	if d < 0 {
		return 0
	}
	return d
}

// parseResponse mirrors response_parser.py's segment-per-flight expansion:
// each route segment within an itinerary becomes its own NormalizedFlight,
// all sharing the itinerary-level price.
func parseResponse(raw []byte, cabin core.CabinClass) ([]core.NormalizedFlight, error) {
	var parsed tequilaResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("kiwi: parse response: %w", err)
	}

	now := time.Now().UTC()
	var flights []core.NormalizedFlight

	for _, itinerary := range parsed.Data {
		currency := "KRW"
		if cur, ok := itinerary.CountryTo["cur"].(string); ok && cur != "" {
			currency = cur
		}
		includesBaggage := false
		if v, ok := itinerary.BagsPrice["1"]; ok {
			if f, ok := v.(float64); ok && f == 0 {
				includesBaggage = true
			}
		}

		price := core.NormalizedPrice{
			Amount:          itinerary.Price,
			Currency:        currency,
			Source:          core.SourceKiwiAPI,
			BookingURL:      itinerary.DeepLink,
			IncludesBaggage: includesBaggage,
			CrawledAt:       now,
		}

		route := itinerary.Route
		if len(route) == 0 {
			airlineCode := ""
			if len(itinerary.Airlines) > 0 {
				airlineCode = itinerary.Airlines[0]
			}
			route = []tequilaRoute{{
				FlyFrom: itinerary.FlyFrom, FlyTo: itinerary.FlyTo,
				DTime: itinerary.DTime, ATime: itinerary.ATime,
				Airline: airlineCode, OperatingCarrier: airlineCode,
			}}
		}

		for _, seg := range route {
			operator := seg.OperatingCarrier
			if operator == "" {
				operator = seg.Airline
			}
			flights = append(flights, core.NormalizedFlight{
				FlightNumber:  fmt.Sprintf("%s%d", seg.Airline, seg.FlightNo),
				AirlineCode:   seg.Airline,
				Operator:      operator,
				Origin:        seg.FlyFrom,
				Destination:   seg.FlyTo,
				DepartureTime: epochToTime(seg.DTime),
				ArrivalTime:   epochToTime(seg.ATime),
				DurationMin:   durationMinutes(seg.DTime, seg.ATime),
				CabinClass:    cabin,
				Prices:        []core.NormalizedPrice{price},
				Source:        core.SourceKiwiAPI,
				CrawledAt:     now,
			})
		}
	}
	return flights, nil
}

// CrawlRequest performs the actual HTTP call and parse, separated from
// Crawl so tests can exercise parseResponse without a real adapter.
func (a *Adapter) CrawlRequest(ctx context.Context, task core.CrawlTask) ([]core.NormalizedFlight, error) {
	q := url.Values{
		"fly_from": {task.Request.Origin},
		"fly_to":   {task.Request.Destination},
		"date_from": {task.Request.DepartureDate.Format("02/01/2006")},
		"date_to":   {task.Request.DepartureDate.Format("02/01/2006")},
		"adults":    {fmt.Sprintf("%d", task.Request.Passengers.Adults)},
		"curr":      {task.Request.Currency},
		"limit":     {"50"},
	}
	resp, err := a.l1.Do(ctx, transport.Request{
		Method:  "GET",
		URL:     baseURL,
		Headers: map[string]string{"apikey": a.cfg.APIKey},
		Query:   q,
	})
	if err != nil {
		return nil, fmt.Errorf("kiwi: request: %w", err)
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("kiwi: unexpected status %d", resp.StatusCode)
	}
	return parseResponse(resp.Body, task.Request.CabinClass)
}

var _ crawler.Crawler = (*Adapter)(nil)
