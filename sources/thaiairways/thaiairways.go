// Package thaiairways adapts Thai Airways fare search, grounded 1:1 on
// original_source/apps/crawler/src/sky_scanner_crawler/thai_airways/{crawler,l2_client,l2_parser}.py.
// Two L2 approaches are tried in order before any browser automation is
// needed: the EveryMundo Sputnik fare-search API (same tenant format as
// the pack's JL/NZ/ET crawlers), then the popular-fares calendar API.
// Both ride the TLS-impersonating transport; crawler.Compound supplies
// the try-in-order, fall-through-on-empty semantics.
package thaiairways

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gilby125/flightcrawler/core"
	"github.com/gilby125/flightcrawler/crawler"
	"github.com/gilby125/flightcrawler/transport"
)

const (
	sputnikURL       = "https://openair-california.airtrfx.com/airfare-sputnik-service/v3/tg/fares/search"
	sputnikReferer   = "https://www.thaiairways.com/flights/en/"
	sputnikOrigin    = "https://www.thaiairways.com"
	emAPIKey         = "HeQpRjsFI5xlAaSx2onkjc1HTK0ukqA1IrVvd5fvaMhNtzLTxInTpeYB1MK93pah"
	popularFaresURL  = "https://www.thaiairways.com/common/calendarPricing/popular-fares"
	airlineCode      = "TG"
	airlineName      = "Thai Airways"
	defaultCurrency  = "KRW"
)

var fareClassMap = map[string]core.CabinClass{
	"ECONOMY":         core.CabinEconomy,
	"PREMIUM_ECONOMY": core.CabinPremiumEconomy,
	"PREMIUMECONOMY":  core.CabinPremiumEconomy,
	"BUSINESS":        core.CabinBusiness,
	"FIRST":           core.CabinFirst,
}

var popularCabinMap = map[string]core.CabinClass{
	"Y": core.CabinEconomy, "W": core.CabinPremiumEconomy, "C": core.CabinBusiness,
	"J": core.CabinBusiness, "F": core.CabinFirst, "M": core.CabinEconomy, "P": core.CabinPremiumEconomy,
	"ECONOMY": core.CabinEconomy, "PREMIUM_ECONOMY": core.CabinPremiumEconomy,
	"PREMIUM": core.CabinPremiumEconomy, "BUSINESS": core.CabinBusiness, "FIRST": core.CabinFirst,
}

type Config struct {
	Timeout time.Duration
}

// SputnikAdapter queries the EveryMundo Sputnik endpoint for daily
// lowest fares across the whole TG network, filtering client-side to
// the requested route.
type SputnikAdapter struct {
	cfg Config
}

func NewSputnikAdapter(cfg Config) *SputnikAdapter { return &SputnikAdapter{cfg: cfg} }

func (a *SputnikAdapter) Source() core.DataSource { return core.SourceDirectCrawl }

func (a *SputnikAdapter) Crawl(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	fn := func(ctx context.Context) ([]core.NormalizedFlight, error) {
		return a.crawlRequest(ctx, task)
	}
	return crawler.SafeCrawl(core.SourceDirectCrawl, fn)(ctx, task)
}

func (a *SputnikAdapter) Close() error { return nil }

func (a *SputnikAdapter) HealthCheck(ctx context.Context) bool {
	entries, err := a.searchFares(ctx, "BKK", "", 5, 10, 2)
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

type sputnikEntry struct {
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

func (a *SputnikAdapter) searchFares(ctx context.Context, origin, destination string, routesLimit, faresLimit, faresPerRoute int) ([]sputnikEntry, error) {
	l2 := transport.NewL2(transport.L2Config{Timeout: a.cfg.Timeout, WarmupURL: sputnikOrigin, Referer: sputnikReferer})
	body := map[string]any{
		"currency":              defaultCurrency,
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
		URL:    sputnikURL,
		JSON:   body,
		Headers: map[string]string{
			"em-api-key": emAPIKey,
			"Accept":     "application/json",
			"Origin":     sputnikOrigin,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("thaiairways: sputnik: %w", err)
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("thaiairways: sputnik: unexpected status %d", resp.StatusCode)
	}

	var entries []sputnikEntry
	if err := json.Unmarshal(resp.Body, &entries); err != nil {
		return nil, fmt.Errorf("thaiairways: parse sputnik: %w", err)
	}
	return entries, nil
}

func (a *SputnikAdapter) crawlRequest(ctx context.Context, task core.CrawlTask) ([]core.NormalizedFlight, error) {
	entries, err := a.searchFares(ctx, task.Request.Origin, task.Request.Destination, 100, 500, 5)
	if err != nil {
		return nil, err
	}
	return parseSputnikFares(entries, task.Request.Origin, task.Request.Destination, task.Request.CabinClass), nil
}

func parseSputnikFares(entries []sputnikEntry, originFilter, destinationFilter string, cabin core.CabinClass) []core.NormalizedFlight {
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
			fareLabel = fareLabel + "-" + entry.Outbound.FareClassInput
		}
		if fareLabel == "" {
			fareLabel = "lowest"
		}

		currency := entry.PriceSpecification.CurrencyCode
		if currency == "" {
			currency = defaultCurrency
		}

		flights = append(flights, core.NormalizedFlight{
			FlightNumber:  fmt.Sprintf("%s-%s%s", airlineCode, dep, arr),
			AirlineCode:   airlineCode,
			AirlineName:   airlineName,
			Operator:      airlineCode,
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

// PopularFaresAdapter queries the calendar-pricing popular-fares
// endpoint, the fallback Sputnik falls through to when it returns no
// matching route.
type PopularFaresAdapter struct {
	cfg Config
}

func NewPopularFaresAdapter(cfg Config) *PopularFaresAdapter { return &PopularFaresAdapter{cfg: cfg} }

func (a *PopularFaresAdapter) Source() core.DataSource { return core.SourceDirectCrawl }

func (a *PopularFaresAdapter) Crawl(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	fn := func(ctx context.Context) ([]core.NormalizedFlight, error) {
		return a.crawlRequest(ctx, task)
	}
	return crawler.SafeCrawl(core.SourceDirectCrawl, fn)(ctx, task)
}

func (a *PopularFaresAdapter) Close() error { return nil }

func (a *PopularFaresAdapter) HealthCheck(ctx context.Context) bool {
	_, err := a.searchPopularFares(ctx, "BKK")
	return err == nil
}

type popularFareEntry struct {
	DepartureAirportIataCode string `json:"departureAirportIataCode"`
	ArrivalAirportIataCode   string `json:"arrivalAirportIataCode"`
	Date                     string `json:"date"`
	Fare                     struct {
		TotalPrice   string `json:"totalPrice"`
		CurrencyCode string `json:"currencyCode"`
		FareClass    string `json:"fareClass"`
	} `json:"fare"`
}

type popularFaresResponse struct {
	Prices []popularFareEntry `json:"prices"`
}

func (a *PopularFaresAdapter) searchPopularFares(ctx context.Context, origin string) (*popularFaresResponse, error) {
	l2 := transport.NewL2(transport.L2Config{Timeout: a.cfg.Timeout, WarmupURL: sputnikOrigin, Referer: "https://www.thaiairways.com/en-kr/"})
	resp, err := l2.Do(ctx, transport.Request{
		Method: "POST",
		URL:    popularFaresURL,
		JSON:   map[string]any{"journeyType": "ONE_WAY", "origins": []string{origin}},
		Headers: map[string]string{
			"source":   "website",
			"hostname": sputnikOrigin,
			"Origin":   sputnikOrigin,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("thaiairways: popular-fares: %w", err)
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("thaiairways: popular-fares: unexpected status %d", resp.StatusCode)
	}
	var parsed popularFaresResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, fmt.Errorf("thaiairways: parse popular-fares: %w", err)
	}
	return &parsed, nil
}

func (a *PopularFaresAdapter) crawlRequest(ctx context.Context, task core.CrawlTask) ([]core.NormalizedFlight, error) {
	parsed, err := a.searchPopularFares(ctx, task.Request.Origin)
	if err != nil {
		return nil, err
	}
	return parsePopularFares(parsed, task.Request.Origin, task.Request.Destination, task.Request.CabinClass), nil
}

func parsePopularFares(data *popularFaresResponse, originFilter, destinationFilter string, cabin core.CabinClass) []core.NormalizedFlight {
	now := time.Now().UTC()
	var flights []core.NormalizedFlight

	for _, entry := range data.Prices {
		dep := entry.DepartureAirportIataCode
		arr := entry.ArrivalAirportIataCode
		if originFilter != "" && !strings.EqualFold(dep, originFilter) {
			continue
		}
		if destinationFilter != "" && !strings.EqualFold(arr, destinationFilter) {
			continue
		}
		if entry.Date == "" || entry.Fare.TotalPrice == "" {
			continue
		}
		depTime, err := time.Parse("2006-01-02", entry.Date)
		if err != nil {
			continue
		}
		depTime = depTime.UTC()

		cleaned := strings.ReplaceAll(strings.ReplaceAll(entry.Fare.TotalPrice, ",", ""), " ", "")
		amount, err := strconv.ParseFloat(cleaned, 64)
		if err != nil || amount <= 0 {
			continue
		}

		resolvedCabin := cabin
		if c, ok := popularCabinMap[strings.ToUpper(entry.Fare.FareClass)]; ok {
			resolvedCabin = c
		}
		currency := entry.Fare.CurrencyCode
		if currency == "" {
			currency = defaultCurrency
		}

		flights = append(flights, core.NormalizedFlight{
			FlightNumber:  fmt.Sprintf("%s-%s%s", airlineCode, dep, arr),
			AirlineCode:   airlineCode,
			AirlineName:   airlineName,
			Operator:      airlineCode,
			Origin:        dep,
			Destination:   arr,
			DepartureTime: depTime,
			ArrivalTime:   depTime,
			CabinClass:    resolvedCabin,
			Prices: []core.NormalizedPrice{{
				Amount:    amount,
				Currency:  currency,
				Source:    core.SourceDirectCrawl,
				FareClass: entry.Fare.FareClass,
				CrawledAt: now,
			}},
			Source:    core.SourceDirectCrawl,
			CrawledAt: now,
			Synthetic: true,
		})
	}
	return flights
}

// NewCompound wires Sputnik as the primary source with popular-fares as
// fallback, matching crawler.py's try-Sputnik-then-popular-fares order.
// The Playwright L3 fallback from the Python reference is intentionally
// left out here: the OSCI booking widget's duplicate element IDs make
// it unreliable enough that the reference disables it by default
// (enable_l3_fallback=False).
func NewCompound(cfg Config) *crawler.Compound {
	return crawler.NewCompound(NewSputnikAdapter(cfg), NewPopularFaresAdapter(cfg))
}

var _ crawler.Crawler = (*SputnikAdapter)(nil)
var _ crawler.Crawler = (*PopularFaresAdapter)(nil)
