// Package singaporeairlines adapts the Singapore Airlines NDC Flight
// Availability API, grounded 1:1 on
// original_source/apps/crawler/src/sky_scanner_crawler/singapore_airlines/{client,response_parser}.py.
// Authentication is a static API key in the apikey header, so the plain
// L1 transport suffices — no TLS impersonation or browser automation is
// needed for this source.
package singaporeairlines

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gilby125/flightcrawler/core"
	"github.com/gilby125/flightcrawler/crawler"
	"github.com/gilby125/flightcrawler/transport"
)

const (
	baseURL              = "https://developer.singaporeair.com"
	flightAvailabilityPath = "/flightavailability/get"
)

var cabinMap = map[core.CabinClass]string{
	core.CabinEconomy:        "Y",
	core.CabinPremiumEconomy: "S",
	core.CabinBusiness:       "J",
	core.CabinFirst:          "F",
}

var cabinReverseMap = map[string]core.CabinClass{
	"Y": core.CabinEconomy, "M": core.CabinEconomy,
	"W": core.CabinPremiumEconomy, "S": core.CabinPremiumEconomy,
	"J": core.CabinBusiness, "C": core.CabinBusiness,
	"F": core.CabinFirst, "R": core.CabinFirst,
}

type Config struct {
	APIKey  string
	Timeout time.Duration
}

type Adapter struct {
	cfg Config
	l1  *transport.L1
}

func New(cfg Config) (*Adapter, error) {
	l1, err := transport.NewL1(transport.L1Config{Timeout: cfg.Timeout})
	if err != nil {
		return nil, fmt.Errorf("singaporeairlines: %w", err)
	}
	return &Adapter{cfg: cfg, l1: l1}, nil
}

func (a *Adapter) Source() core.DataSource { return core.SourceDirectCrawl }

func (a *Adapter) Crawl(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	fn := func(ctx context.Context) ([]core.NormalizedFlight, error) {
		return a.CrawlRequest(ctx, task)
	}
	return crawler.SafeCrawl(core.SourceDirectCrawl, fn)(ctx, task)
}

func (a *Adapter) Close() error { return nil }

func (a *Adapter) HealthCheck(ctx context.Context) bool {
	testDate := time.Now().AddDate(0, 0, 30)
	_, err := a.getFlightAvailability(ctx, "SIN", "KUL", testDate, core.CabinEconomy)
	return err == nil
}

type availabilityResponse struct {
	Status string `json:"status"`
	Code   string `json:"code"`
	Message string `json:"message"`
	Response struct {
		Currency struct {
			Code string `json:"code"`
		} `json:"currency"`
		Recommendations []recommendation `json:"recommendations"`
	} `json:"response"`
}

type recommendation struct {
	SegmentBounds []segmentBound `json:"segmentBounds"`
}

type segmentBound struct {
	FareFamily   string   `json:"fareFamily"`
	SellingClass string   `json:"sellingClass"`
	CabinClass   string   `json:"cabinClass"`
	FareSummary  struct {
		FareTotal struct {
			TotalAmount float64 `json:"totalAmount"`
		} `json:"fareTotal"`
		FareDetailsPerAdult struct {
			TotalAmount float64 `json:"totalAmount"`
		} `json:"fareDetailsPerAdult"`
	} `json:"fareSummary"`
	Segments []sqSegment `json:"segments"`
}

type sqSegment struct {
	DepartureDateTime   string  `json:"departureDateTime"`
	ArrivalDateTime     string  `json:"arrivalDateTime"`
	TripDuration        int     `json:"tripDuration"`
	OriginAirportCode   string  `json:"originAirportCode"`
	DestinationAirportCode string `json:"destinationAirportCode"`
	Legs                []sqLeg `json:"legs"`
}

type sqLeg struct {
	FlightNumber        string `json:"flightNumber"`
	DepartureDateTime   string `json:"departureDateTime"`
	ArrivalDateTime     string `json:"arrivalDateTime"`
	FlightDuration      int    `json:"flightDuration"`
	OriginAirportCode   string `json:"originAirportCode"`
	DestinationAirportCode string `json:"destinationAirportCode"`
	OperatingAirline    sqAirline `json:"operatingAirline"`
	MarketingAirline    sqAirline `json:"marketingAirline"`
	Aircraft            struct {
		Code string `json:"code"`
		Name string `json:"name"`
	} `json:"aircraft"`
}

type sqAirline struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

func (a *Adapter) getFlightAvailability(ctx context.Context, origin, destination string, departureDate time.Time, cabin core.CabinClass) (*availabilityResponse, error) {
	sqCabin, ok := cabinMap[cabin]
	if !ok {
		sqCabin = "Y"
	}

	payload := map[string]any{
		"clientUUID": uuid.NewString(),
		"request": map[string]any{
			"itineraryDetails": []map[string]any{{
				"originAirportCode":      origin,
				"destinationAirportCode": destination,
				"departureDate":          departureDate.Format("2006-01-02"),
				"cabinClass":             sqCabin,
				"adultCount":             1,
				"childCount":             0,
				"infantCount":            0,
			}},
		},
	}

	resp, err := a.l1.Do(ctx, transport.Request{
		Method: "POST",
		URL:    baseURL + flightAvailabilityPath,
		JSON:   payload,
		Headers: map[string]string{
			"Content-Type": "application/json",
			"apikey":       a.cfg.APIKey,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("singaporeairlines: request: %w", err)
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("singaporeairlines: unexpected status %d", resp.StatusCode)
	}

	var parsed availabilityResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, fmt.Errorf("singaporeairlines: parse response: %w", err)
	}
	if parsed.Status != "SUCCESS" {
		return nil, fmt.Errorf("singaporeairlines: api error: %s - %s", parsed.Code, parsed.Message)
	}
	return &parsed, nil
}

func (a *Adapter) CrawlRequest(ctx context.Context, task core.CrawlTask) ([]core.NormalizedFlight, error) {
	resp, err := a.getFlightAvailability(ctx, task.Request.Origin, task.Request.Destination, task.Request.DepartureDate, task.Request.CabinClass)
	if err != nil {
		return nil, err
	}
	return parseFlightAvailability(resp, task.Request.Origin, task.Request.Destination, task.Request.CabinClass), nil
}

func parseSQDatetime(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.RFC3339, s)
}

func parseFlightAvailability(raw *availabilityResponse, origin, destination string, cabin core.CabinClass) []core.NormalizedFlight {
	now := time.Now().UTC()
	var flights []core.NormalizedFlight

	currency := raw.Response.Currency.Code
	if currency == "" {
		currency = "SGD"
	}

	for _, rec := range raw.Response.Recommendations {
		for _, bound := range rec.SegmentBounds {
			resolvedCabin := cabin
			if bound.CabinClass != "" {
				if c, ok := cabinReverseMap[bound.CabinClass]; ok {
					resolvedCabin = c
				}
			}

			perAdultTotal := bound.FareSummary.FareDetailsPerAdult.TotalAmount
			if perAdultTotal == 0 {
				perAdultTotal = bound.FareSummary.FareTotal.TotalAmount
			}

			for _, segment := range bound.Segments {
				if len(segment.Legs) == 0 {
					continue
				}
				first, last := segment.Legs[0], segment.Legs[len(segment.Legs)-1]

				depStr := segment.DepartureDateTime
				if depStr == "" {
					depStr = first.DepartureDateTime
				}
				arrStr := segment.ArrivalDateTime
				if arrStr == "" {
					arrStr = last.ArrivalDateTime
				}
				if depStr == "" || arrStr == "" {
					continue
				}

				depTime, err := parseSQDatetime(depStr)
				if err != nil {
					continue
				}
				arrTime, err := parseSQDatetime(arrStr)
				if err != nil {
					continue
				}

				durationMin := segment.TripDuration / 60
				if durationMin <= 0 {
					for _, leg := range segment.Legs {
						durationMin += leg.FlightDuration / 60
					}
				}
				if durationMin <= 0 {
					diff := arrTime.Sub(depTime)
					if diff > 0 {
						durationMin = int(diff.Minutes())
					}
				}

				flightNumber := first.FlightNumber
				airlineCode := first.MarketingAirline.Code
				if airlineCode == "" {
					airlineCode = "SQ"
				}
				if flightNumber == "" {
					flightNumber = airlineCode + "????"
				}
				airlineName := first.MarketingAirline.Name
				if airlineName == "" {
					airlineName = "Singapore Airlines"
				}
				operator := first.OperatingAirline.Code
				if operator == "" {
					operator = airlineCode
				}

				segOrigin := first.OriginAirportCode
				if segOrigin == "" {
					segOrigin = segment.OriginAirportCode
				}
				if segOrigin == "" {
					segOrigin = origin
				}
				segDestination := last.DestinationAirportCode
				if segDestination == "" {
					segDestination = segment.DestinationAirportCode
				}
				if segDestination == "" {
					segDestination = destination
				}

				aircraftType := first.Aircraft.Code
				if aircraftType == "" {
					aircraftType = first.Aircraft.Name
				}

				var prices []core.NormalizedPrice
				if perAdultTotal > 0 {
					fareLabel := bound.SellingClass
					if bound.FareFamily != "" {
						fareLabel = bound.SellingClass + "/" + bound.FareFamily
					}
					prices = append(prices, core.NormalizedPrice{
						Amount:    perAdultTotal,
						Currency:  currency,
						Source:    core.SourceDirectCrawl,
						FareClass: fareLabel,
						CrawledAt: now,
					})
				}

				flights = append(flights, core.NormalizedFlight{
					FlightNumber:  flightNumber,
					AirlineCode:   airlineCode,
					AirlineName:   airlineName,
					Operator:      operator,
					Origin:        segOrigin,
					Destination:   segDestination,
					DepartureTime: depTime,
					ArrivalTime:   arrTime,
					DurationMin:   durationMin,
					CabinClass:    resolvedCabin,
					AircraftType:  aircraftType,
					Stops:         len(segment.Legs) - 1,
					Prices:        prices,
					Source:        core.SourceDirectCrawl,
					CrawledAt:     now,
				})
			}
		}
	}
	return flights
}

var _ crawler.Crawler = (*Adapter)(nil)
