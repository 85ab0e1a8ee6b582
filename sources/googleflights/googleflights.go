package googleflights

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"time"

	"github.com/gilby125/flightcrawler/core"
	"github.com/gilby125/flightcrawler/crawler"
	"github.com/gilby125/flightcrawler/transport"
)

const googleFlightsURL = "https://www.google.com/travel/flights"

type Config struct {
	Timeout time.Duration
}

// Adapter crawls Google Flights' own search page. A plain L1 request
// suffices since the page is served without a bot-detection gate tied to
// TLS fingerprint, ground: fetcher.py's primp client (impersonate is set
// for header realism, not to defeat a JA3 check).
type Adapter struct {
	cfg Config
	l1  *transport.L1
}

func New(cfg Config) (*Adapter, error) {
	l1, err := transport.NewL1(transport.L1Config{Timeout: cfg.Timeout})
	if err != nil {
		return nil, fmt.Errorf("googleflights: %w", err)
	}
	return &Adapter{cfg: cfg, l1: l1}, nil
}

func (a *Adapter) Source() core.DataSource { return core.SourceGoogleProtobuf }

func (a *Adapter) Crawl(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	fn := func(ctx context.Context) ([]core.NormalizedFlight, error) {
		return a.crawlRequest(ctx, task)
	}
	return crawler.SafeCrawl(core.SourceGoogleProtobuf, fn)(ctx, task)
}

func (a *Adapter) Close() error { return nil }

func (a *Adapter) HealthCheck(ctx context.Context) bool {
	resp, err := a.l1.Do(ctx, transport.Request{Method: "GET", URL: googleFlightsURL})
	return err == nil && resp.StatusCode == 200
}

func (a *Adapter) crawlRequest(ctx context.Context, task core.CrawlTask) ([]core.NormalizedFlight, error) {
	info, err := buildInfo(task.Request)
	if err != nil {
		return nil, err
	}
	tfs := base64.StdEncoding.EncodeToString(info)

	currency := task.Request.Currency
	if currency == "" {
		currency = "USD"
	}

	resp, err := a.l1.Do(ctx, transport.Request{
		Method: "GET",
		URL:    googleFlightsURL,
		Query: url.Values{
			"tfs":  {tfs},
			"hl":   {"en"},
			"curr": {currency},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("googleflights: request: %w", err)
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("googleflights: unexpected status %d", resp.StatusCode)
	}

	return parseJSData(string(resp.Body), task.Request.CabinClass, time.Now().UTC())
}

var _ crawler.Crawler = (*Adapter)(nil)
