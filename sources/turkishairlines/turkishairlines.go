// Package turkishairlines adapts the Turkish Airlines Next.js SPA API,
// grounded 1:1 on
// original_source/apps/crawler/src/sky_scanner_crawler/turkish_airlines/{client,l3_client,response_parser}.py.
// The site sits behind Akamai Bot Manager: POST endpoints intermittently
// fail with Error-DS-30037 when the sensor cookie is missing, so the L2
// (TLS-impersonating) client is tried first and an L3 (headless browser)
// client that fills the real booking form is the fallback, composed via
// crawler.Compound.
package turkishairlines

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/gilby125/flightcrawler/core"
	"github.com/gilby125/flightcrawler/crawler"
	"github.com/gilby125/flightcrawler/transport"
)

const (
	baseURL            = "https://www.turkishairlines.com"
	bookingURL         = baseURL + "/en-int/flights/booking/"
	flightMatrixPath   = "/api/v1/availability/flight-matrix"
	cheapestPricesPath = "/api/v1/availability/cheapest-prices"
	parametersPath     = "/api/v1/parameters"
)

var cabinFormMap = map[core.CabinClass]string{
	core.CabinEconomy:        "Economy",
	core.CabinPremiumEconomy: "Economy",
	core.CabinBusiness:       "Business",
	core.CabinFirst:          "Business",
}

type Config struct {
	Timeout time.Duration
}

// L2Adapter scrapes turkishairlines.com through a TLS-impersonating
// client, trying flight-matrix first and falling back to the daily
// cheapest-prices calendar when the matrix returns nothing.
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
	if err := l2.Warm(ctx); err != nil {
		return false
	}
	resp, err := l2.Do(ctx, transport.Request{Method: "GET", URL: baseURL + parametersPath})
	if err != nil || resp.StatusCode != 200 {
		return false
	}
	var parsed struct {
		Success bool `json:"success"`
	}
	return json.Unmarshal(resp.Body, &parsed) == nil && parsed.Success
}

func (a *L2Adapter) Close() error { return nil }

func buildAvailabilityPayload(task core.CrawlTask) map[string]any {
	return map[string]any{
		"originDestinationInformationList": []map[string]any{{
			"originAirportCode":      task.Request.Origin,
			"destinationAirportCode": task.Request.Destination,
			"departureDate":          task.Request.DepartureDate.Format("2006-01-02"),
			"originMultiPort":        false,
			"destinationMultiPort":   false,
		}},
		"selectedCabinClass":   cabinFormMap[task.Request.CabinClass],
		"selectedBookerSearch": "ONE_WAY",
		"passengerTypeList":    []map[string]any{{"code": "adult", "quantity": 1}},
		"moduleType":           "Ticketing",
	}
}

func (a *L2Adapter) crawlRequest(ctx context.Context, task core.CrawlTask) ([]core.NormalizedFlight, error) {
	// A fresh L2 instance per request avoids Akamai fingerprint tracking
	// across requests (ground: client.py's _new_client).
	l2 := transport.NewL2(transport.L2Config{Timeout: a.cfg.Timeout, WarmupURL: baseURL, Referer: bookingURL})
	if err := l2.Warm(ctx); err != nil {
		return nil, fmt.Errorf("turkishairlines: warm-up: %w", err)
	}

	payload := buildAvailabilityPayload(task)
	payload["responsive"] = true
	headers := map[string]string{"x-platform": "WEB"}

	resp, err := l2.Do(ctx, transport.Request{Method: "POST", URL: baseURL + flightMatrixPath, JSON: payload, Headers: headers})
	if err != nil {
		return nil, fmt.Errorf("turkishairlines: flight-matrix: %w", err)
	}
	flights, err := parseFlightMatrix(resp.Body, task.Request.CabinClass)
	if err != nil {
		return nil, err
	}
	if len(flights) > 0 {
		return flights, nil
	}

	delete(payload, "responsive")
	resp, err = l2.Do(ctx, transport.Request{Method: "POST", URL: baseURL + cheapestPricesPath, JSON: payload, Headers: headers})
	if err != nil {
		return nil, fmt.Errorf("turkishairlines: cheapest-prices: %w", err)
	}
	return parseCheapestPrices(resp.Body, task.Request.Origin, task.Request.Destination, task.Request.CabinClass)
}

// L3Adapter fills the real TK booking form in a headless browser so
// that the flight-matrix/cheapest-prices XHRs it fires carry a
// genuine Akamai sensor cookie.
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
		EntryURL:             bookingURL,
		CookieAcceptButtonID: "allowCookiesButton",
		Fields: []transport.FormField{
			{Selector: "#fromPort", Value: task.Request.Origin},
			{Selector: "#toPort", Value: task.Request.Destination, WaitForCalendar: true},
		},
		SearchTriggerSelector: `button:has-text("Search flights")`,
		InterceptPatterns:     []string{flightMatrixPath, cheapestPricesPath},
	})
	body, err := l3.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("turkishairlines: l3: %w", err)
	}
	flights, err := parseFlightMatrix(body, task.Request.CabinClass)
	if err != nil {
		return nil, err
	}
	if len(flights) > 0 {
		return flights, nil
	}
	return parseCheapestPrices(body, task.Request.Origin, task.Request.Destination, task.Request.CabinClass)
}

// NewCompound wires the L2 scrape first, falling through to the L3
// browser client when Akamai blocks the POST (ground: crawler.py's
// default L2-then-L3 usage pattern for sites behind active bot
// detection).
func NewCompound(cfg Config) *crawler.Compound {
	return crawler.NewCompound(NewL2Adapter(cfg), NewL3Adapter(cfg))
}

var durationPattern = regexp.MustCompile(`PT(?:(\d+)H)?(?:(\d+)M)?`)

func parseISODuration(iso string) int {
	m := durationPattern.FindStringSubmatch(iso)
	if m == nil {
		return 0
	}
	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	return hours*60 + minutes
}

type money struct {
	Amount       float64 `json:"amount"`
	CurrencyCode string  `json:"currencyCode"`
}

type dailyPriceEntry struct {
	Date  string `json:"date"`
	Price *money `json:"price"`
}

type cheapestPricesResponse struct {
	Data struct {
		DailyPriceList []dailyPriceEntry `json:"dailyPriceList"`
	} `json:"data"`
}

func parseCheapestPrices(raw []byte, origin, destination string, cabin core.CabinClass) ([]core.NormalizedFlight, error) {
	var parsed cheapestPricesResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("turkishairlines: parse cheapest-prices: %w", err)
	}

	now := time.Now().UTC()
	var flights []core.NormalizedFlight
	for _, entry := range parsed.Data.DailyPriceList {
		if entry.Price == nil || entry.Price.Amount <= 0 || entry.Date == "" {
			continue
		}
		depTime, err := time.Parse("2006-01-02", entry.Date)
		if err != nil {
			continue
		}
		depTime = depTime.UTC()

		currency := entry.Price.CurrencyCode
		if currency == "" {
			currency = "USD"
		}

		flights = append(flights, core.NormalizedFlight{
			FlightNumber:  fmt.Sprintf("TK-%s%s", origin, destination),
			AirlineCode:   "TK",
			AirlineName:   "Turkish Airlines",
			Origin:        origin,
			Destination:   destination,
			DepartureTime: depTime,
			ArrivalTime:   depTime,
			CabinClass:    cabin,
			Prices: []core.NormalizedPrice{{
				Amount:    entry.Price.Amount,
				Currency:  currency,
				Source:    core.SourceDirectCrawl,
				CrawledAt: now,
			}},
			Source:    core.SourceDirectCrawl,
			CrawledAt: now,
			Synthetic: true,
		})
	}
	return flights, nil
}

type tkSegment struct {
	DepartureAirportCode  string `json:"departureAirportCode"`
	ArrivalAirportCode    string `json:"arrivalAirportCode"`
	DepartureDateTime     string `json:"departureDateTime"`
	ArrivalDateTime       string `json:"arrivalDateTime"`
	Duration              string `json:"duration"`
	MarketingAirlineCode  string `json:"marketingAirlineCode"`
	MarketingFlightNumber string `json:"marketingFlightNumber"`
	OperatingAirlineCode  string `json:"operatingAirlineCode"`
	EquipmentCode         string `json:"equipmentCode"`
}

type fareBrand struct {
	BrandCode string `json:"brandCode"`
	FareClass string `json:"fareClass"`
	Price     *money `json:"price"`
}

type fareCategoryEntry struct {
	Status        string      `json:"status"`
	StartingPrice *money      `json:"startingPrice"`
	BrandList     []fareBrand `json:"brandList"`
}

type tkOption struct {
	SegmentList   []tkSegment                  `json:"segmentList"`
	FareCategory  map[string]fareCategoryEntry `json:"fareCategory"`
	TotalDuration string                       `json:"totalDuration"`
	StopCount     int                          `json:"stopCount"`
}

type tkODInfo struct {
	OriginDestinationOptionList []tkOption `json:"originDestinationOptionList"`
}

type flightMatrixResponse struct {
	Data struct {
		OriginDestinationInformationList []tkODInfo `json:"originDestinationInformationList"`
	} `json:"data"`
}

func extractPrices(fareCat map[string]fareCategoryEntry, cabinKey string, now time.Time) []core.NormalizedPrice {
	entry, ok := fareCat[cabinKey]
	if !ok || entry.Status != "AVAILABLE" {
		return nil
	}
	var prices []core.NormalizedPrice
	if entry.StartingPrice != nil && entry.StartingPrice.Amount > 0 {
		currency := entry.StartingPrice.CurrencyCode
		if currency == "" {
			currency = "USD"
		}
		prices = append(prices, core.NormalizedPrice{Amount: entry.StartingPrice.Amount, Currency: currency, Source: core.SourceDirectCrawl, CrawledAt: now})
	}
	for _, brand := range entry.BrandList {
		if brand.Price == nil || brand.Price.Amount <= 0 {
			continue
		}
		fareClass := brand.FareClass
		if fareClass == "" {
			fareClass = brand.BrandCode
		}
		currency := brand.Price.CurrencyCode
		if currency == "" {
			currency = "USD"
		}
		prices = append(prices, core.NormalizedPrice{Amount: brand.Price.Amount, Currency: currency, Source: core.SourceDirectCrawl, FareClass: fareClass, CrawledAt: now})
	}
	return prices
}

func parseFlightMatrix(raw []byte, cabin core.CabinClass) ([]core.NormalizedFlight, error) {
	var parsed flightMatrixResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("turkishairlines: parse flight-matrix: %w", err)
	}

	now := time.Now().UTC()
	var flights []core.NormalizedFlight

	for _, od := range parsed.Data.OriginDestinationInformationList {
		for _, option := range od.OriginDestinationOptionList {
			if len(option.SegmentList) == 0 {
				continue
			}
			first, last := option.SegmentList[0], option.SegmentList[len(option.SegmentList)-1]

			depTime, _ := time.Parse("2006-01-02T15:04:05", first.DepartureDateTime)
			arrTime, _ := time.Parse("2006-01-02T15:04:05", last.ArrivalDateTime)

			durationMin := parseISODuration(option.TotalDuration)
			if durationMin == 0 {
				durationMin = parseISODuration(first.Duration)
			}
			if durationMin == 0 && !depTime.IsZero() && !arrTime.IsZero() {
				durationMin = int(arrTime.Sub(depTime).Minutes())
			}

			carrierCode := first.MarketingAirlineCode
			if carrierCode == "" {
				carrierCode = "TK"
			}
			operator := first.OperatingAirlineCode
			if operator == "" {
				operator = carrierCode
			}

			cabinKey := "ECONOMY"
			if cabin == core.CabinBusiness || cabin == core.CabinFirst {
				cabinKey = "BUSINESS"
			}
			prices := extractPrices(option.FareCategory, cabinKey, now)
			mappedCabin := cabin
			if len(prices) == 0 {
				altKey := "BUSINESS"
				if cabinKey == "BUSINESS" {
					altKey = "ECONOMY"
				}
				if alt := extractPrices(option.FareCategory, altKey, now); len(alt) > 0 {
					prices = alt
					if altKey == "ECONOMY" {
						mappedCabin = core.CabinEconomy
					} else {
						mappedCabin = core.CabinBusiness
					}
				}
			}

			stops := option.StopCount
			if stops == 0 {
				stops = len(option.SegmentList) - 1
			}

			flights = append(flights, core.NormalizedFlight{
				FlightNumber:  carrierCode + first.MarketingFlightNumber,
				AirlineCode:   carrierCode,
				AirlineName:   "Turkish Airlines",
				Operator:      operator,
				Origin:        first.DepartureAirportCode,
				Destination:   last.ArrivalAirportCode,
				DepartureTime: depTime.UTC(),
				ArrivalTime:   arrTime.UTC(),
				DurationMin:   durationMin,
				CabinClass:    mappedCabin,
				AircraftType:  first.EquipmentCode,
				Stops:         stops,
				Prices:        prices,
				Source:        core.SourceDirectCrawl,
				CrawledAt:     now,
			})
		}
	}
	return flights, nil
}

var _ crawler.Crawler = (*L2Adapter)(nil)
var _ crawler.Crawler = (*L3Adapter)(nil)
