package dispatcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilby125/flightcrawler/core"
	"github.com/gilby125/flightcrawler/crawler"
)

type stubCrawler struct {
	source  core.DataSource
	succeed bool
	closed  bool
}

func (s *stubCrawler) Crawl(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	if !s.succeed {
		return core.CrawlResult{Source: s.source, Success: false, Error: "boom"}
	}
	return core.CrawlResult{
		Source:  s.source,
		Success: true,
		Flights: []core.NormalizedFlight{{FlightNumber: "AA1", Origin: task.Request.Origin, Destination: task.Request.Destination}},
	}
}
func (s *stubCrawler) HealthCheck(ctx context.Context) bool { return s.succeed }
func (s *stubCrawler) Close() error                         { s.closed = true; return nil }
func (s *stubCrawler) Source() core.DataSource              { return s.source }

func TestDispatchSingle_NoAdapterRegistered(t *testing.T) {
	d := New(map[core.DataSource]crawler.Crawler{}, nil, 0)
	result := d.DispatchSingle(context.Background(), core.CrawlTask{Source: core.SourceDirectCrawl})
	assert.False(t, result.Success)
}

func TestDispatchSingle_Success(t *testing.T) {
	adapter := &stubCrawler{source: core.SourceDirectCrawl, succeed: true}
	d := New(map[core.DataSource]crawler.Crawler{core.SourceDirectCrawl: adapter}, nil, 0)
	result := d.DispatchSingle(context.Background(), core.CrawlTask{
		Source:  core.SourceDirectCrawl,
		Request: core.SearchRequest{Origin: "JFK", Destination: "LAX"},
	})
	require.True(t, result.Success)
	require.Len(t, result.Flights, 1)
}

func TestDispatchParallel_PreservesOrder(t *testing.T) {
	a := &stubCrawler{source: core.SourceDirectCrawl, succeed: true}
	b := &stubCrawler{source: core.SourceKiwiAPI, succeed: true}
	d := New(map[core.DataSource]crawler.Crawler{
		core.SourceDirectCrawl: a,
		core.SourceKiwiAPI:     b,
	}, nil, 0)

	tasks := []core.CrawlTask{
		{Source: core.SourceKiwiAPI, Request: core.SearchRequest{Origin: "JFK", Destination: "LAX"}},
		{Source: core.SourceDirectCrawl, Request: core.SearchRequest{Origin: "JFK", Destination: "LAX"}},
	}
	results := d.DispatchParallel(context.Background(), tasks)
	require.Len(t, results, 2)
	assert.Equal(t, core.SourceKiwiAPI, results[0].Source)
	assert.Equal(t, core.SourceDirectCrawl, results[1].Source)
}

func TestHealthCheck_AggregatesPerSource(t *testing.T) {
	up := &stubCrawler{source: core.SourceDirectCrawl, succeed: true}
	down := &stubCrawler{source: core.SourceKiwiAPI, succeed: false}
	d := New(map[core.DataSource]crawler.Crawler{
		core.SourceDirectCrawl: up,
		core.SourceKiwiAPI:     down,
	}, nil, 0)

	statuses := d.HealthCheck(context.Background())
	assert.True(t, statuses[core.SourceDirectCrawl])
	assert.False(t, statuses[core.SourceKiwiAPI])
}

func TestClose_ClosesEveryAdapter(t *testing.T) {
	a := &stubCrawler{source: core.SourceDirectCrawl, succeed: true}
	d := New(map[core.DataSource]crawler.Crawler{core.SourceDirectCrawl: a}, nil, 0)
	require.NoError(t, d.Close())
	assert.True(t, a.closed)
}
