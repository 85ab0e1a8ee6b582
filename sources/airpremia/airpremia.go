// Package airpremia adapts Air Premia's daily low-fare calendar API,
// grounded 1:1 on
// original_source/apps/crawler/src/sky_scanner_crawler/air_premia/{crawler,l2_client,response_parser}.py.
// Air Premia sits behind Cloudflare, so the L2 (TLS-impersonating)
// transport is tried first; NewCompoundAdapter wraps it with an L3
// (headless browser) fallback for when Cloudflare escalates past what a
// ClientHello fingerprint alone defeats.
package airpremia

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

const (
	baseURL     = "https://www.airpremia.com"
	lowFaresAPI = "/api/booking/lowFares"
	airlineCode = "YP"
	airlineName = "Air Premia"
)

var cabinMap = map[string]core.CabinClass{
	"EY": core.CabinEconomy,
	"PE": core.CabinPremiumEconomy,
	"PF": core.CabinBusiness,
}

type Config struct {
	Timeout time.Duration
}

// L2Adapter implements crawler.Crawler using the TLS-impersonating
// transport only.
type L2Adapter struct {
	cfg Config
}

func NewL2Adapter(cfg Config) *L2Adapter { return &L2Adapter{cfg: cfg} }

func (a *L2Adapter) Source() core.DataSource { return core.SourceDirectCrawl }

func (a *L2Adapter) Crawl(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	fn := func(ctx context.Context) ([]core.NormalizedFlight, error) {
		return a.crawlRequest(ctx, task)
	}
	return crawler.SafeCrawl(core.SourceDirectCrawl, fn)(ctx, task)
}

func (a *L2Adapter) HealthCheck(ctx context.Context) bool {
	l2 := transport.NewL2(transport.L2Config{Timeout: a.cfg.Timeout, WarmupURL: baseURL})
	return l2.Warm(ctx) == nil
}

func (a *L2Adapter) Close() error { return nil }

func (a *L2Adapter) crawlRequest(ctx context.Context, task core.CrawlTask) ([]core.NormalizedFlight, error) {
	// A fresh L2 instance per request avoids session fingerprint
	// tracking (ground: l2_client.py _new_client).
	l2 := transport.NewL2(transport.L2Config{Timeout: a.cfg.Timeout, WarmupURL: baseURL, Referer: baseURL})
	if err := l2.Warm(ctx); err != nil {
		return nil, fmt.Errorf("airpremia: warm-up: %w", err)
	}

	begin := task.Request.DepartureDate
	end := begin.AddDate(0, 0, 30)
	resp, err := l2.Do(ctx, transport.Request{
		Method: "GET",
		URL:    baseURL + lowFaresAPI,
		Query: url.Values{
			"origin":      {task.Request.Origin},
			"destination": {task.Request.Destination},
			"beginDate":   {begin.Format("2006-01-02")},
			"endDate":     {end.Format("2006-01-02")},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("airpremia: request: %w", err)
	}
	return parseLowFares(resp.Body, task.Request.Origin, task.Request.Destination, task.Request.CabinClass)
}

type lowFaresResponse struct {
	Results []struct {
		Origin      string `json:"origin"`
		Destination string `json:"destination"`
		Availabilities []struct {
			Date     string `json:"date"`
			SoldOut  bool   `json:"soldOut"`
			NoFlights bool  `json:"noFlights"`
			LowFares []struct {
				ProductClassType string  `json:"productClassType"`
				ProductClass     string  `json:"productClass"`
				BaseFareAndTax   float64 `json:"baseFareAndTax"`
			} `json:"lowFares"`
		} `json:"dailyLowFareAvailabilities"`
	} `json:"results"`
}

func parseLowFares(raw []byte, origin, destination string, requestedCabin core.CabinClass) ([]core.NormalizedFlight, error) {
	var parsed lowFaresResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("airpremia: parse response: %w", err)
	}

	now := time.Now().UTC()
	var flights []core.NormalizedFlight
	for _, result := range parsed.Results {
		apiOrigin := result.Origin
		if apiOrigin == "" {
			apiOrigin = origin
		}
		apiDest := result.Destination
		if apiDest == "" {
			apiDest = destination
		}

		for _, day := range result.Availabilities {
			if day.SoldOut || day.NoFlights {
				continue
			}
			depDate, err := time.Parse("2006-01-02", day.Date)
			if err != nil {
				continue
			}
			depDate = depDate.UTC()

			for _, fare := range day.LowFares {
				cabin, ok := cabinMap[fare.ProductClassType]
				if !ok {
					cabin = core.CabinEconomy
				}
				if cabin != requestedCabin {
					continue
				}
				if fare.BaseFareAndTax <= 0 {
					continue
				}

				flights = append(flights, core.NormalizedFlight{
					FlightNumber:  core.SyntheticFlightNumber(airlineCode, apiOrigin, apiDest),
					AirlineCode:   airlineCode,
					AirlineName:   airlineName,
					Operator:      airlineCode,
					Origin:        apiOrigin,
					Destination:   apiDest,
					DepartureTime: depDate,
					ArrivalTime:   depDate,
					CabinClass:    cabin,
					Prices: []core.NormalizedPrice{{
						Amount:    fare.BaseFareAndTax,
						Currency:  "KRW",
						Source:    core.SourceDirectCrawl,
						FareClass: fare.ProductClass,
						CrawledAt: now,
					}},
					Source:    core.SourceDirectCrawl,
					CrawledAt: now,
					Synthetic: true,
				})
			}
		}
	}
	return flights, nil
}

// L3Adapter drives a headless browser through Air Premia's booking page
// when Cloudflare escalates past what the L2 TLS fingerprint alone
// defeats (ground: air_premia/crawler.py's use_l3 flag and client.py's
// Playwright flow).
type L3Adapter struct {
	cfg Config
}

func NewL3Adapter(cfg Config) *L3Adapter { return &L3Adapter{cfg: cfg} }

func (a *L3Adapter) Source() core.DataSource { return core.SourceDirectCrawl }

func (a *L3Adapter) Crawl(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	fn := func(ctx context.Context) ([]core.NormalizedFlight, error) {
		return a.crawlRequest(ctx, task)
	}
	return crawler.SafeCrawl(core.SourceDirectCrawl, fn)(ctx, task)
}

func (a *L3Adapter) HealthCheck(ctx context.Context) bool { return true }

func (a *L3Adapter) Close() error { return nil }

func (a *L3Adapter) crawlRequest(ctx context.Context, task core.CrawlTask) ([]core.NormalizedFlight, error) {
	l3 := transport.NewL3(transport.L3Spec{
		EntryURL:             baseURL + "/booking",
		CookieAcceptButtonID: "onetrust-accept-btn-handler",
		Fields: []transport.FormField{
			{Selector: "#origin", Value: task.Request.Origin},
			{Selector: "#destination", Value: task.Request.Destination},
			{Selector: "#departureDate", Value: task.Request.DepartureDate.Format("2006-01-02"), WaitForCalendar: true},
		},
		SearchTriggerSelector: "#searchButton",
		InterceptPatterns:     []string{lowFaresAPI},
	})
	body, err := l3.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("airpremia: l3: %w", err)
	}
	return parseLowFares(body, task.Request.Origin, task.Request.Destination, task.Request.CabinClass)
}

// NewCompound wires the L2 client as the primary strategy and the L3
// browser client as fallback, the order air_premia/crawler.py calls out
// as its default (use_l3=False unless L2 keeps getting blocked).
func NewCompound(cfg Config) *crawler.Compound {
	return crawler.NewCompound(NewL2Adapter(cfg), NewL3Adapter(cfg))
}

var _ crawler.Crawler = (*L2Adapter)(nil)
var _ crawler.Crawler = (*L3Adapter)(nil)
