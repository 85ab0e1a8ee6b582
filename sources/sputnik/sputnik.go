// Package sputnik adapts the EveryMundo airTrfx "Sputnik" fare-search
// API shared by Air France and KLM, grounded 1:1 on
// original_source/apps/crawler/src/sky_scanner_crawler/air_france_klm/sputnik_client.py.
// A single public em-api-key is shared across EveryMundo tenants; only
// the fare-search URL and Referer/Origin headers vary per airline. The
// API ranks fares across the whole route network regardless of the
// origin/destination filters in the request body, so route matching is
// done client-side in parseFares.
package sputnik

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gilby125/flightcrawler/core"
	"github.com/gilby125/flightcrawler/crawler"
	"github.com/gilby125/flightcrawler/transport"
)

const emAPIKey = "HeQpRjsFI5xlAaSx2onkjc1HTK0ukqA1IrVvd5fvaMhNtzLTxInTpeYB1MK93pah"

// Tenant describes one EveryMundo airline tenant.
type Tenant struct {
	Code      string // marketing carrier code, e.g. "AF"
	Name      string
	FareURL   string
	Referer   string
	Origin    string
}

var Tenants = map[string]Tenant{
	"AF": {
		Code: "AF", Name: "Air France",
		FareURL: "https://openair-california.airtrfx.com/airfare-sputnik-service/v3/af/fares/search",
		Referer: "https://www.airfrance.com/", Origin: "https://www.airfrance.com",
	},
	"KL": {
		Code: "KL", Name: "KLM Royal Dutch Airlines",
		FareURL: "https://openair-california.airtrfx.com/airfare-sputnik-service/v3/kl/fares/search",
		Referer: "https://www.klm.com/", Origin: "https://www.klm.com",
	},
}

var fareClassMap = map[string]core.CabinClass{
	"ECONOMY":         core.CabinEconomy,
	"PREMIUM_ECONOMY": core.CabinPremiumEconomy,
	"PREMIUMECONOMY":  core.CabinPremiumEconomy,
	"BUSINESS":        core.CabinBusiness,
	"FIRST":           core.CabinFirst,
}

type Config struct {
	Timeout time.Duration
}

// Adapter queries one EveryMundo tenant's fare-search endpoint.
// Register one Adapter per tenant (AF, KL) with the dispatcher.
type Adapter struct {
	cfg    Config
	tenant Tenant
}

func New(cfg Config, tenantCode string) (*Adapter, error) {
	tenant, ok := Tenants[strings.ToUpper(tenantCode)]
	if !ok {
		return nil, fmt.Errorf("sputnik: unknown tenant %q", tenantCode)
	}
	return &Adapter{cfg: cfg, tenant: tenant}, nil
}

func (a *Adapter) Source() core.DataSource { return core.SourceDirectCrawl }

func (a *Adapter) Crawl(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	fn := func(ctx context.Context) ([]core.NormalizedFlight, error) {
		return a.crawlRequest(ctx, task)
	}
	return crawler.SafeCrawl(core.SourceDirectCrawl, fn)(ctx, task)
}

func (a *Adapter) Close() error { return nil }

func (a *Adapter) HealthCheck(ctx context.Context) bool {
	entries, err := a.searchFares(ctx, "", "", 5, 10, 2)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.PriceSpecification.TotalPrice > 0 {
			return true
		}
	}
	return false
}

type fareEntry struct {
	Outbound struct {
		DepartureAirportIataCode string `json:"departureAirportIataCode"`
		ArrivalAirportIataCode   string `json:"arrivalAirportIataCode"`
		FareClass                string `json:"fareClass"`
		FareClassInput           string `json:"fareClassInput"`
	} `json:"outboundFlight"`
	PriceSpecification struct {
		TotalPrice   float64 `json:"totalPrice"`
		CurrencyCode string  `json:"currencyCode"`
		SoldOut      bool    `json:"soldOut"`
	} `json:"priceSpecification"`
	DepartureDate string `json:"departureDate"`
}

func (a *Adapter) searchFares(ctx context.Context, origin, destination string, routesLimit, faresLimit, faresPerRoute int) ([]fareEntry, error) {
	l2 := transport.NewL2(transport.L2Config{Timeout: a.cfg.Timeout, WarmupURL: a.tenant.Origin, Referer: a.tenant.Referer})

	body := map[string]any{
		"currency":              "KRW",
		"departureDaysInterval": map[string]int{"min": 1, "max": 300},
		"routesLimit":           routesLimit,
		"faresLimit":            faresLimit,
		"faresPerRoute":         faresPerRoute,
	}
	if origin != "" {
		body["origin"] = origin
	}
	if destination != "" {
		body["destination"] = destination
	}

	resp, err := l2.Do(ctx, transport.Request{
		Method: "POST",
		URL:    a.tenant.FareURL,
		JSON:   body,
		Headers: map[string]string{
			"em-api-key": emAPIKey,
			"Accept":     "application/json",
			"Origin":     a.tenant.Origin,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sputnik: %s: request: %w", a.tenant.Code, err)
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("sputnik: %s: unexpected status %d", a.tenant.Code, resp.StatusCode)
	}

	var entries []fareEntry
	if err := json.Unmarshal(resp.Body, &entries); err != nil {
		return nil, fmt.Errorf("sputnik: %s: parse response: %w", a.tenant.Code, err)
	}
	return entries, nil
}

func (a *Adapter) crawlRequest(ctx context.Context, task core.CrawlTask) ([]core.NormalizedFlight, error) {
	entries, err := a.searchFares(ctx, task.Request.Origin, task.Request.Destination, 100, 500, 5)
	if err != nil {
		return nil, err
	}
	return parseFares(entries, a.tenant, task.Request.Origin, task.Request.Destination, task.Request.CabinClass), nil
}

// parseFares converts raw fare entries into flights, filtering
// client-side since the API ranks across the whole network regardless
// of the origin/destination body fields.
func parseFares(entries []fareEntry, tenant Tenant, originFilter, destinationFilter string, cabin core.CabinClass) []core.NormalizedFlight {
	now := time.Now().UTC()
	var flights []core.NormalizedFlight

	for _, entry := range entries {
		if entry.PriceSpecification.TotalPrice <= 0 || entry.PriceSpecification.SoldOut {
			continue
		}
		dep := entry.Outbound.DepartureAirportIataCode
		arr := entry.Outbound.ArrivalAirportIataCode
		if dep == "" || arr == "" {
			continue
		}
		if originFilter != "" && !strings.EqualFold(dep, originFilter) {
			continue
		}
		if destinationFilter != "" && !strings.EqualFold(arr, destinationFilter) {
			continue
		}
		depTime, err := time.Parse("2006-01-02", entry.DepartureDate)
		if err != nil {
			continue
		}
		depTime = depTime.UTC()

		resolvedCabin := cabin
		if entry.Outbound.FareClass != "" {
			if c, ok := fareClassMap[strings.ToUpper(entry.Outbound.FareClass)]; ok {
				resolvedCabin = c
			}
		}
		fareLabel := strings.ToLower(entry.Outbound.FareClass)
		if entry.Outbound.FareClassInput != "" {
			fareLabel += "-" + entry.Outbound.FareClassInput
		}
		if fareLabel == "" {
			fareLabel = "lowest"
		}

		currency := entry.PriceSpecification.CurrencyCode
		if currency == "" {
			currency = "KRW"
		}

		flights = append(flights, core.NormalizedFlight{
			FlightNumber:  fmt.Sprintf("%s-%s%s", tenant.Code, dep, arr),
			AirlineCode:   tenant.Code,
			AirlineName:   tenant.Name,
			Operator:      tenant.Code,
			Origin:        dep,
			Destination:   arr,
			DepartureTime: depTime,
			ArrivalTime:   depTime,
			CabinClass:    resolvedCabin,
			Prices: []core.NormalizedPrice{{
				Amount:    entry.PriceSpecification.TotalPrice,
				Currency:  currency,
				Source:    core.SourceDirectCrawl,
				FareClass: fareLabel,
				CrawledAt: now,
			}},
			Source:    core.SourceDirectCrawl,
			CrawledAt: now,
			Synthetic: true,
		})
	}
	return flights
}

var _ crawler.Crawler = (*Adapter)(nil)
