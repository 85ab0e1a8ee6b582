package crawler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilby125/flightcrawler/core"
)

type fanoutStub struct {
	source  core.DataSource
	flights []core.NormalizedFlight
	fail    bool
	healthy bool
}

func (s *fanoutStub) Source() core.DataSource { return s.source }
func (s *fanoutStub) Close() error            { return nil }
func (s *fanoutStub) HealthCheck(ctx context.Context) bool { return s.healthy }
func (s *fanoutStub) Crawl(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	if s.fail {
		return core.CrawlResult{Source: s.source, Success: false, Error: "boom"}
	}
	return core.CrawlResult{Source: s.source, Success: true, Flights: s.flights}
}

func TestFanout_ConcatenatesFlightsAcrossMembers(t *testing.T) {
	a := &fanoutStub{source: core.SourceDirectCrawl, flights: []core.NormalizedFlight{{FlightNumber: "A1"}}}
	b := &fanoutStub{source: core.SourceDirectCrawl, flights: []core.NormalizedFlight{{FlightNumber: "B1"}, {FlightNumber: "B2"}}}

	f := NewFanout(a, b)
	result := f.Crawl(context.Background(), core.CrawlTask{})
	require.True(t, result.Success)
	assert.Len(t, result.Flights, 3)
}

func TestFanout_OneMemberFailingDoesNotSuppressOthers(t *testing.T) {
	a := &fanoutStub{source: core.SourceDirectCrawl, fail: true}
	b := &fanoutStub{source: core.SourceDirectCrawl, flights: []core.NormalizedFlight{{FlightNumber: "B1"}}}

	result := NewFanout(a, b).Crawl(context.Background(), core.CrawlTask{})
	require.True(t, result.Success)
	assert.Len(t, result.Flights, 1)
}

func TestFanout_AllMembersFailingIsAFailure(t *testing.T) {
	a := &fanoutStub{source: core.SourceDirectCrawl, fail: true}
	b := &fanoutStub{source: core.SourceDirectCrawl, fail: true}

	result := NewFanout(a, b).Crawl(context.Background(), core.CrawlTask{})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "boom")
}

func TestFanout_HealthCheckOKIfAnyMemberHealthy(t *testing.T) {
	a := &fanoutStub{source: core.SourceDirectCrawl, healthy: false}
	b := &fanoutStub{source: core.SourceDirectCrawl, healthy: true}
	assert.True(t, NewFanout(a, b).HealthCheck(context.Background()))
}
