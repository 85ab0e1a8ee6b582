// Package amadeusgds adapts the Amadeus Self-Service Flight Offers Search
// API, grounded 1:1 on
// original_source/apps/crawler/src/sky_scanner_crawler/amadeus_gds/{client,response_parser}.py.
// The Python reference delegates OAuth2 to the Amadeus SDK; this adapter
// uses sources/auth.OAuth2ClientCredentials directly since there is no Go
// Amadeus SDK in the pack.
package amadeusgds

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/gilby125/flightcrawler/core"
	"github.com/gilby125/flightcrawler/crawler"
	"github.com/gilby125/flightcrawler/sources/auth"
	"github.com/gilby125/flightcrawler/transport"
)

var durationPattern = regexp.MustCompile(`PT(?:(\d+)H)?(?:(\d+)M)?`)

// Config holds Amadeus API credentials.
type Config struct {
	ClientID     string
	ClientSecret string
	Hostname     string // "test" or "production"
	Timeout      time.Duration
}

func (c Config) baseURL() string {
	if c.Hostname == "production" {
		return "https://api.amadeus.com"
	}
	return "https://test.api.amadeus.com"
}

// Adapter implements crawler.Crawler over the Amadeus Flight Offers
// Search API via L1 with OAuth2 client_credentials authentication.
type Adapter struct {
	cfg   Config
	l1    *transport.L1
	oauth *auth.OAuth2ClientCredentials
}

func New(cfg Config) (*Adapter, error) {
	l1, err := transport.NewL1(transport.L1Config{Timeout: cfg.Timeout})
	if err != nil {
		return nil, fmt.Errorf("amadeusgds: %w", err)
	}
	return &Adapter{
		cfg: cfg,
		l1:  l1,
		oauth: &auth.OAuth2ClientCredentials{
			TokenURL:     cfg.baseURL() + "/v1/security/oauth2/token",
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
		},
	}, nil
}

func (a *Adapter) Source() core.DataSource { return core.SourceGDS }

func (a *Adapter) Crawl(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	fn := func(ctx context.Context) ([]core.NormalizedFlight, error) {
		return a.CrawlRequest(ctx, task)
	}
	return crawler.SafeCrawl(core.SourceGDS, fn)(ctx, task)
}

func (a *Adapter) HealthCheck(ctx context.Context) bool {
	_, err := a.oauth.Token(ctx)
	return err == nil
}

func (a *Adapter) Close() error { return nil }

func (a *Adapter) CrawlRequest(ctx context.Context, task core.CrawlTask) ([]core.NormalizedFlight, error) {
	token, err := a.oauth.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("amadeusgds: token: %w", err)
	}

	q := url.Values{
		"originLocationCode":      {task.Request.Origin},
		"destinationLocationCode": {task.Request.Destination},
		"departureDate":           {task.Request.DepartureDate.Format("2006-01-02")},
		"adults":                  {strconv.Itoa(task.Request.Passengers.Adults)},
		"currencyCode":            {task.Request.Currency},
		"max":                     {"50"},
	}
	if task.Request.ReturnDate != nil {
		q.Set("returnDate", task.Request.ReturnDate.Format("2006-01-02"))
	}

	resp, err := a.l1.Do(ctx, transport.Request{
		Method:  "GET",
		URL:     a.cfg.baseURL() + "/v2/shopping/flight-offers",
		Headers: map[string]string{"Authorization": "Bearer " + token},
		Query:   q,
	})
	if err != nil {
		return nil, fmt.Errorf("amadeusgds: request: %w", err)
	}
	if resp.StatusCode == 401 {
		token, err = a.oauth.ForceRefresh(ctx)
		if err != nil {
			return nil, fmt.Errorf("amadeusgds: refresh after 401: %w", err)
		}
		resp, err = a.l1.Do(ctx, transport.Request{
			Method:  "GET",
			URL:     a.cfg.baseURL() + "/v2/shopping/flight-offers",
			Headers: map[string]string{"Authorization": "Bearer " + token},
			Query:   q,
		})
		if err != nil {
			return nil, fmt.Errorf("amadeusgds: retried request: %w", err)
		}
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("amadeusgds: unexpected status %d", resp.StatusCode)
	}

	return parseFlightOffers(resp.Body, task.Request.CabinClass)
}

type offersResponse struct {
	Data []offer `json:"data"`
}

type offer struct {
	Itineraries      []itinerary        `json:"itineraries"`
	Price            price              `json:"price"`
	TravelerPricings []travelerPricing  `json:"travelerPricings"`
}

type itinerary struct {
	Duration string    `json:"duration"`
	Segments []segment `json:"segments"`
}

type segment struct {
	Departure endpoint `json:"departure"`
	Arrival   endpoint `json:"arrival"`
	CarrierCode string `json:"carrierCode"`
	Number      string `json:"number"`
	Operating   struct {
		CarrierCode string `json:"carrierCode"`
	} `json:"operating"`
	Aircraft struct {
		Code string `json:"code"`
	} `json:"aircraft"`
}

type endpoint struct {
	IataCode string `json:"iataCode"`
	At       string `json:"at"`
}

type price struct {
	GrandTotal string `json:"grandTotal"`
	Total      string `json:"total"`
	Currency   string `json:"currency"`
}

type travelerPricing struct {
	FareDetailsBySegment []fareDetail `json:"fareDetailsBySegment"`
}

type fareDetail struct {
	Cabin               string `json:"cabin"`
	Class               string `json:"class"`
	IncludedCheckedBags struct {
		Quantity int    `json:"quantity"`
		Weight   *float64 `json:"weight"`
	} `json:"includedCheckedBags"`
}

var cabinMap = map[string]core.CabinClass{
	"ECONOMY":         core.CabinEconomy,
	"PREMIUM_ECONOMY": core.CabinPremiumEconomy,
	"BUSINESS":        core.CabinBusiness,
	"FIRST":           core.CabinFirst,
}

func parseISODuration(s string) int {
	m := durationPattern.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	return hours*60 + minutes
}

func parseDateTime(s string) time.Time {
	t, err := time.Parse("2006-01-02T15:04:05", s)
	if err != nil {
		return time.Now().UTC()
	}
	return t.UTC()
}

// parseFlightOffers keeps only the first itinerary per offer (outbound),
// matching the Python reference's one-way simplification.
func parseFlightOffers(raw []byte, requestedCabin core.CabinClass) ([]core.NormalizedFlight, error) {
	var parsed offersResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("amadeusgds: parse response: %w", err)
	}

	now := time.Now().UTC()
	var flights []core.NormalizedFlight

	for _, o := range parsed.Data {
		if len(o.Itineraries) == 0 {
			continue
		}
		itin := o.Itineraries[0]
		if len(itin.Segments) == 0 {
			continue
		}
		first, last := itin.Segments[0], itin.Segments[len(itin.Segments)-1]

		total := o.Price.GrandTotal
		if total == "" {
			total = o.Price.Total
		}
		if total == "" {
			continue
		}
		amount, err := strconv.ParseFloat(total, 64)
		if err != nil {
			continue
		}

		cabin := requestedCabin
		fareClass := ""
		includesBaggage := false
		if len(o.TravelerPricings) > 0 && len(o.TravelerPricings[0].FareDetailsBySegment) > 0 {
			fd := o.TravelerPricings[0].FareDetailsBySegment[0]
			if mapped, ok := cabinMap[fd.Cabin]; ok {
				cabin = mapped
			}
			fareClass = fd.Class
			if fd.IncludedCheckedBags.Quantity > 0 || fd.IncludedCheckedBags.Weight != nil {
				includesBaggage = true
			}
		}

		operator := first.Operating.CarrierCode
		if operator == "" {
			operator = first.CarrierCode
		}

		flights = append(flights, core.NormalizedFlight{
			FlightNumber:  first.CarrierCode + first.Number,
			AirlineCode:   first.CarrierCode,
			Operator:      operator,
			Origin:        first.Departure.IataCode,
			Destination:   last.Arrival.IataCode,
			DepartureTime: parseDateTime(first.Departure.At),
			ArrivalTime:   parseDateTime(last.Arrival.At),
			DurationMin:   parseISODuration(itin.Duration),
			CabinClass:    cabin,
			AircraftType:  first.Aircraft.Code,
			Stops:         len(itin.Segments) - 1,
			Prices: []core.NormalizedPrice{{
				Amount:          amount,
				Currency:        o.Price.Currency,
				Source:          core.SourceGDS,
				FareClass:       fareClass,
				IncludesBaggage: includesBaggage,
				CrawledAt:       now,
			}},
			Source:    core.SourceGDS,
			CrawledAt: now,
		})
	}
	return flights, nil
}

var _ crawler.Crawler = (*Adapter)(nil)
