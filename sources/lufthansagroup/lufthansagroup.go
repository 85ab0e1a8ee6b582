// Package lufthansagroup adapts the Lufthansa Group Open API
// flight-schedules endpoint (covers LH, LX, OS, 4U, SN, EN, WK, 4Y),
// grounded 1:1 on
// original_source/apps/crawler/src/sky_scanner_crawler/lufthansa_group/{client,response_parser}.py.
// The schedules endpoint carries no pricing, so flights parse with an
// empty Prices slice — the merger and store both tolerate this, and
// downstream enrichment from a priced source (Amadeus, Kiwi) is expected
// to fill it in via the dedup key.
package lufthansagroup

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/gilby125/flightcrawler/core"
	"github.com/gilby125/flightcrawler/crawler"
	"github.com/gilby125/flightcrawler/sources/auth"
	"github.com/gilby125/flightcrawler/transport"
)

// AirlineNames maps Lufthansa-group carrier codes to display names.
var AirlineNames = map[string]string{
	"LH": "Lufthansa",
	"LX": "Swiss International Air Lines",
	"OS": "Austrian Airlines",
	"4U": "Eurowings",
	"SN": "Brussels Airlines",
	"EN": "Air Dolomiti",
	"WK": "Edelweiss Air",
	"4Y": "Eurowings Discover",
}

type Config struct {
	ClientID     string
	ClientSecret string
	Hostname     string // e.g. "api.lufthansa.com"
	Timeout      time.Duration
}

type Adapter struct {
	cfg   Config
	l1    *transport.L1
	oauth *auth.OAuth2ClientCredentials
}

func New(cfg Config) (*Adapter, error) {
	l1, err := transport.NewL1(transport.L1Config{Timeout: cfg.Timeout})
	if err != nil {
		return nil, fmt.Errorf("lufthansagroup: %w", err)
	}
	return &Adapter{
		cfg: cfg,
		l1:  l1,
		oauth: &auth.OAuth2ClientCredentials{
			TokenURL:     "https://" + cfg.Hostname + "/v1/oauth/token",
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
		},
	}, nil
}

func (a *Adapter) Source() core.DataSource { return core.SourceDirectCrawl }

func (a *Adapter) Crawl(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	fn := func(ctx context.Context) ([]core.NormalizedFlight, error) {
		return a.CrawlRequest(ctx, task)
	}
	return crawler.SafeCrawl(core.SourceDirectCrawl, fn)(ctx, task)
}

func (a *Adapter) HealthCheck(ctx context.Context) bool {
	_, err := a.oauth.Token(ctx)
	return err == nil
}

func (a *Adapter) Close() error { return nil }

func (a *Adapter) CrawlRequest(ctx context.Context, task core.CrawlTask) ([]core.NormalizedFlight, error) {
	token, err := a.oauth.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("lufthansagroup: token: %w", err)
	}

	dateStr := task.Request.DepartureDate.Format("2006-01-02")
	path := fmt.Sprintf("/v1/flight-schedules/flightschedules/passenger?airlines=%s&startDate=%s&endDate=%s&daysOfOperation=1234567&timeMode=UTC",
		url.QueryEscape("LH,LX,OS,4U,SN,EN,WK,4Y"), dateStr, dateStr)

	resp, err := a.l1.Do(ctx, transport.Request{
		Method:  "GET",
		URL:     "https://" + a.cfg.Hostname + path,
		Headers: map[string]string{"Authorization": "Bearer " + token},
	})
	if err != nil {
		return nil, fmt.Errorf("lufthansagroup: request: %w", err)
	}
	if resp.StatusCode == 401 {
		token, err = a.oauth.ForceRefresh(ctx)
		if err != nil {
			return nil, fmt.Errorf("lufthansagroup: refresh after 401: %w", err)
		}
		resp, err = a.l1.Do(ctx, transport.Request{
			Method:  "GET",
			URL:     "https://" + a.cfg.Hostname + path,
			Headers: map[string]string{"Authorization": "Bearer " + token},
		})
		if err != nil {
			return nil, fmt.Errorf("lufthansagroup: retried request: %w", err)
		}
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("lufthansagroup: unexpected status %d", resp.StatusCode)
	}

	flights, err := parseFlightSchedules(resp.Body, task.Request.DepartureDate, task.Request.CabinClass)
	if err != nil {
		return nil, err
	}
	filtered := flights[:0]
	for _, f := range flights {
		if f.Origin == task.Request.Origin && f.Destination == task.Request.Destination {
			filtered = append(filtered, f)
		}
	}
	return filtered, nil
}

type leg struct {
	Origin                           string `json:"origin"`
	Destination                      string `json:"destination"`
	AircraftDepartureTimeUTC         int    `json:"aircraftDepartureTimeUTC"`
	AircraftDepartureTimeDateDiffUTC int    `json:"aircraftDepartureTimeDateDiffUTC"`
	AircraftArrivalTimeUTC           int    `json:"aircraftArrivalTimeUTC"`
	AircraftArrivalTimeDateDiffUTC   int    `json:"aircraftArrivalTimeDateDiffUTC"`
	AircraftOwner                    string `json:"aircraftOwner"`
	AircraftType                     string `json:"aircraftType"`
}

type schedule struct {
	Airline      string `json:"airline"`
	FlightNumber int    `json:"flightNumber"`
	Suffix       string `json:"suffix"`
	Legs         []leg  `json:"legs"`
}

func minutesToTime(base time.Time, minutesFromMidnight, dayDiff int) time.Time {
	midnight := time.Date(base.Year(), base.Month(), base.Day(), 0, 0, 0, 0, time.UTC)
	return midnight.AddDate(0, 0, dayDiff).Add(time.Duration(minutesFromMidnight) * time.Minute)
}

func parseFlightSchedules(raw []byte, departureDate time.Time, cabin core.CabinClass) ([]core.NormalizedFlight, error) {
	var schedules []schedule
	if err := json.Unmarshal(raw, &schedules); err != nil {
		return nil, fmt.Errorf("lufthansagroup: parse response: %w", err)
	}

	now := time.Now().UTC()
	var flights []core.NormalizedFlight

	for _, sched := range schedules {
		flightNumber := fmt.Sprintf("%s%d%s", sched.Airline, sched.FlightNumber, sched.Suffix)
		if len(sched.Legs) == 0 {
			continue
		}
		first, last := sched.Legs[0], sched.Legs[len(sched.Legs)-1]

		depTime := minutesToTime(departureDate, first.AircraftDepartureTimeUTC, first.AircraftDepartureTimeDateDiffUTC)
		arrTime := minutesToTime(departureDate, last.AircraftArrivalTimeUTC, last.AircraftArrivalTimeDateDiffUTC)

		durationMin := int(arrTime.Sub(depTime).Minutes())
		if durationMin < 0 {
			continue
		}

		operator := first.AircraftOwner
		if operator == "" {
			operator = sched.Airline
		}

		flights = append(flights, core.NormalizedFlight{
			FlightNumber:  flightNumber,
			AirlineCode:   sched.Airline,
			AirlineName:   AirlineNames[sched.Airline],
			Operator:      operator,
			Origin:        first.Origin,
			Destination:   last.Destination,
			DepartureTime: depTime,
			ArrivalTime:   arrTime,
			DurationMin:   durationMin,
			CabinClass:    cabin,
			AircraftType:  first.AircraftType,
			Stops:         len(sched.Legs) - 1,
			Prices:        nil,
			Source:        core.SourceDirectCrawl,
			CrawledAt:     now,
		})
	}
	return flights, nil
}

var _ crawler.Crawler = (*Adapter)(nil)
