// Package hainan adapts Hainan Airlines' mobile fare-trends API
// (domestic Chinese routes only), grounded 1:1 on
// original_source/apps/crawler/src/sky_scanner_crawler/hainan_airlines/{client,response_parser}.py.
// Every request carries an HMAC-SHA1 signature (sources/auth.HMACSigner)
// over the merged common+data payload, and a per-session UUID device ID
// (sources/auth.DeviceID). The calendar-only response yields synthetic
// per-day flight rows (spec.md §4.4 rule 6).
package hainan

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gilby125/flightcrawler/core"
	"github.com/gilby125/flightcrawler/crawler"
	"github.com/gilby125/flightcrawler/sources/auth"
	"github.com/gilby125/flightcrawler/transport"
)

const (
	baseURL         = "https://app.hnair.com"
	fareTrendsPath  = "/ticket/faretrend/airFareTrends"
	certificateHash = "6093941774D84495A5D15D8F909CAA1E"
	hardCode        = "21047C596EAD45209346AE29F0350491"
	appKey          = "9E4BBDDEC6C8416EA380E418161A7CD3"
	airlineCode     = "HU"
	airlineName     = "Hainan Airlines"
)

var cabinMap = map[core.CabinClass]string{
	core.CabinEconomy:        "Y",
	core.CabinPremiumEconomy: "Y",
	core.CabinBusiness:       "C",
	core.CabinFirst:          "F",
}

type Config struct {
	Timeout time.Duration
}

// Adapter implements crawler.Crawler over the fare-trends endpoint via
// L1, since it is a plain JSON POST that only needs the HMAC signature
// and device ID to pass Hainan's anti-abuse checks, not TLS
// impersonation or browser automation.
type Adapter struct {
	cfg      Config
	l1       *transport.L1
	deviceID string
	signer   auth.HMACSigner
}

func New(cfg Config) (*Adapter, error) {
	l1, err := transport.NewL1(transport.L1Config{Timeout: cfg.Timeout})
	if err != nil {
		return nil, fmt.Errorf("hainan: %w", err)
	}
	return &Adapter{
		cfg:      cfg,
		l1:       l1,
		deviceID: auth.DeviceID(),
		signer:   auth.HMACSigner{HardCode: hardCode, CertificateHash: certificateHash},
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
	result, err := a.searchFareTrends(ctx, "PEK", "HAK", "2026-04-01", "Y")
	if err != nil {
		return false
	}
	return result.Success
}

func (a *Adapter) Close() error { return nil }

type commonEnvelope struct {
	Sname        string `json:"sname"`
	Sver         string `json:"sver"`
	Schannel     string `json:"schannel"`
	Caller       string `json:"caller"`
	Slang        string `json:"slang"`
	Did          string `json:"did"`
	Stime        int64  `json:"stime"`
	Szone        int    `json:"szone"`
	Aname        string `json:"aname"`
	Aver         string `json:"aver"`
	Akey         string `json:"akey"`
	Abuild       string `json:"abuild"`
	Atarget      string `json:"atarget"`
	Slat         string `json:"slat"`
	Slng         string `json:"slng"`
	Gtcid        string `json:"gtcid"`
	RiskToken    string `json:"riskToken"`
	CaptchaToken string `json:"captchaToken"`
	BlackBox     string `json:"blackBox"`
	ValidateToken string `json:"validateToken"`
}

type dataEnvelope struct {
	OrgCode   string `json:"orgCode"`
	DstCode   string `json:"dstCode"`
	DepDate   string `json:"depDate"`
	Cabin     string `json:"cabin"`
	IsOrgCity string `json:"isOrgCity"`
	IsDstCity string `json:"isDstCity"`
	Referer   string `json:"_referer"`
}

type fareTrendsRequest struct {
	Common commonEnvelope `json:"common"`
	Data   dataEnvelope   `json:"data"`
}

type fareTrendsResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		OrgCode       string       `json:"orgCode"`
		DstCode       string       `json:"dstCode"`
		PriceCalandar []calendarEntry `json:"priceCalandar"`
	} `json:"data"`
}

type calendarEntry struct {
	Day   string `json:"day"`
	Price string `json:"price"`
}

func (a *Adapter) buildCommon(now time.Time) commonEnvelope {
	return commonEnvelope{
		Sname:    "MacIntel",
		Sver:     "5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
		Schannel: "HTML5",
		Caller:   "HTML5",
		Slang:    "zh-CN",
		Did:      a.deviceID,
		Stime:    now.UnixMilli(),
		Szone:    -480,
		Aname:    "com.hnair.spa.web.standard",
		Aver:     "10.11.0",
		Akey:     appKey,
		Abuild:   "1",
		Atarget:  "standard",
		Slat:     "slat",
		Slng:     "slng",
		Gtcid:    "defualt_web_gtcid",
	}
}

// mergedSignParams flattens common+data into the map HMACSigner.Sign
// expects, matching the Python reference's merged dict.
func mergedSignParams(common commonEnvelope, data dataEnvelope) map[string]any {
	return map[string]any{
		"sname": common.Sname, "sver": common.Sver, "schannel": common.Schannel,
		"caller": common.Caller, "slang": common.Slang, "did": common.Did,
		"stime": common.Stime, "szone": common.Szone, "aname": common.Aname,
		"aver": common.Aver, "akey": common.Akey, "abuild": common.Abuild,
		"atarget": common.Atarget, "slat": common.Slat, "slng": common.Slng,
		"gtcid": common.Gtcid, "riskToken": "", "captchaToken": "", "blackBox": "",
		"validateToken": "",
		"orgCode": data.OrgCode, "dstCode": data.DstCode, "depDate": data.DepDate,
		"cabin": data.Cabin, "isOrgCity": data.IsOrgCity, "isDstCity": data.IsDstCity,
		"_referer": data.Referer,
	}
}

func (a *Adapter) searchFareTrends(ctx context.Context, origin, destination, departureDate, cabin string) (*fareTrendsResponse, error) {
	now := time.Now().UTC()
	common := a.buildCommon(now)
	data := dataEnvelope{
		OrgCode: origin, DstCode: destination, DepDate: departureDate,
		Cabin: cabin, IsOrgCity: "true", IsDstCity: "true",
	}

	sign := a.signer.Sign(mergedSignParams(common, data))

	resp, err := a.l1.Do(ctx, transport.Request{
		Method: "POST",
		URL:    baseURL + fareTrendsPath,
		Query:  map[string][]string{"hnairSign": {sign}},
		JSON:   fareTrendsRequest{Common: common, Data: data},
		Headers: map[string]string{
			"Origin":  "https://m.hnair.com",
			"Referer": "https://m.hnair.com/",
			"appver":  "10.11.0",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("hainan: request: %w", err)
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("hainan: unexpected status %d", resp.StatusCode)
	}

	var parsed fareTrendsResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, fmt.Errorf("hainan: parse response: %w", err)
	}
	if !parsed.Success {
		return nil, fmt.Errorf("hainan: api error: %s", parsed.Message)
	}
	return &parsed, nil
}

func (a *Adapter) CrawlRequest(ctx context.Context, task core.CrawlTask) ([]core.NormalizedFlight, error) {
	cabin, ok := cabinMap[task.Request.CabinClass]
	if !ok {
		cabin = "Y"
	}
	resp, err := a.searchFareTrends(ctx, task.Request.Origin, task.Request.Destination, task.Request.DepartureDate.Format("2006-01-02"), cabin)
	if err != nil {
		return nil, err
	}
	return parseFareTrends(resp, task.Request.Origin, task.Request.Destination, task.Request.CabinClass), nil
}

// parseFareTrends expands the calendar into one synthetic NormalizedFlight
// per day, matching response_parser.py's parse_fare_trends.
func parseFareTrends(resp *fareTrendsResponse, origin, destination string, cabin core.CabinClass) []core.NormalizedFlight {
	now := time.Now().UTC()
	apiOrigin := resp.Data.OrgCode
	if apiOrigin == "" {
		apiOrigin = origin
	}
	apiDest := resp.Data.DstCode
	if apiDest == "" {
		apiDest = destination
	}

	var flights []core.NormalizedFlight
	for _, entry := range resp.Data.PriceCalandar {
		if entry.Day == "" || entry.Price == "" {
			continue
		}
		var amount float64
		if _, err := fmt.Sscanf(entry.Price, "%f", &amount); err != nil || amount <= 0 {
			continue
		}
		depDate, err := time.Parse("20060102", entry.Day)
		if err != nil {
			continue
		}
		depDate = depDate.UTC()

		flights = append(flights, core.NormalizedFlight{
			FlightNumber:  core.SyntheticFlightNumber(airlineCode, apiOrigin, apiDest),
			AirlineCode:   airlineCode,
			AirlineName:   airlineName,
			Operator:      airlineCode,
			Origin:        apiOrigin,
			Destination:   apiDest,
			DepartureTime: depDate,
			ArrivalTime:   depDate,
			DurationMin:   0,
			CabinClass:    cabin,
			Prices: []core.NormalizedPrice{{
				Amount:    amount,
				Currency:  "CNY",
				Source:    core.SourceDirectCrawl,
				FareClass: "lowest",
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
