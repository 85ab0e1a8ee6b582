package merger

import (
	"testing"
	"time"

	"github.com/go-test/deep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilby125/flightcrawler/core"
)

func flight(num, origin, dest string, dep time.Time, source core.DataSource, prices ...float64) core.NormalizedFlight {
	var ps []core.NormalizedPrice
	for _, amt := range prices {
		ps = append(ps, core.NormalizedPrice{Amount: amt, Currency: "KRW", Source: source, CrawledAt: dep})
	}
	return core.NormalizedFlight{
		FlightNumber: num, AirlineCode: num[:2], Origin: origin, Destination: dest,
		DepartureTime: dep, ArrivalTime: dep.Add(382 * time.Minute), DurationMin: 382,
		Stops: 0, Prices: ps, Source: source, CrawledAt: dep,
	}
}

// Scenario 1 — merge across sources (spec.md §8).
func TestMerge_Scenario1_MergeAcrossSources(t *testing.T) {
	dep := time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC)
	a := flight("SQ615", "ICN", "SIN", dep, core.SourceGoogleProtobuf, 800.0)
	b := flight("SQ615", "ICN", "SIN", dep, core.SourceDirectCrawl, 820.0, 900.0)

	results := []core.CrawlResult{
		{Success: true, Flights: []core.NormalizedFlight{a}},
		{Success: true, Flights: []core.NormalizedFlight{b}},
	}

	merged := Merge(results)
	require.Len(t, merged, 1)
	got := merged[0]
	assert.Len(t, got.Prices, 3)
	assert.Equal(t, core.SourceGoogleProtobuf, got.Source)
	assert.Equal(t, 800.0, *got.LowestPrice())
	assert.True(t, got.MultiSource)
}

// Scenario 2 — dedup does not collapse different dates.
func TestMerge_Scenario2_DifferentDatesStayDistinct(t *testing.T) {
	dep1 := time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC)
	dep2 := time.Date(2026, 3, 16, 8, 0, 0, 0, time.UTC)
	a := flight("SQ615", "ICN", "SIN", dep1, core.SourceGoogleProtobuf, 800.0)
	b := flight("SQ615", "ICN", "SIN", dep2, core.SourceDirectCrawl, 820.0, 900.0)

	merged := Merge([]core.CrawlResult{
		{Success: true, Flights: []core.NormalizedFlight{a}},
		{Success: true, Flights: []core.NormalizedFlight{b}},
	})
	require.Len(t, merged, 2)
}

// Scenario 3 — synthetic calendar rows pass through untouched.
func TestMerge_Scenario3_SyntheticRowSurvives(t *testing.T) {
	dep := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	f := core.NormalizedFlight{
		FlightNumber: "TW-ICNNRT", Origin: "ICN", Destination: "NRT",
		DepartureTime: dep, ArrivalTime: dep, DurationMin: 0, Stops: 0,
		Prices:    []core.NormalizedPrice{{Amount: 120000, Currency: "KRW", Source: core.SourceKiwiAPI}},
		Source:    core.SourceKiwiAPI,
		Synthetic: true,
	}
	require.NoError(t, f.Validate())

	merged := Merge([]core.CrawlResult{{Success: true, Flights: []core.NormalizedFlight{f}}})
	require.Len(t, merged, 1)
	assert.True(t, merged[0].Synthetic)
}

func TestMerge_DiscardsFailedResults(t *testing.T) {
	dep := time.Now()
	merged := Merge([]core.CrawlResult{
		{Success: false, Flights: []core.NormalizedFlight{flight("XX-001", "ICN", "SIN", dep, core.SourceDirectCrawl, 100)}},
	})
	assert.Empty(t, merged)
}

func TestMerge_DistinctDedupKeys(t *testing.T) {
	dep := time.Now()
	merged := Merge([]core.CrawlResult{
		{Success: true, Flights: []core.NormalizedFlight{
			flight("AA1", "JFK", "LAX", dep, core.SourceDirectCrawl, 200),
			flight("BB2", "JFK", "LAX", dep, core.SourceDirectCrawl, 100),
		}},
	})
	seen := map[string]bool{}
	for _, f := range merged {
		key := f.DedupKey()
		assert.False(t, seen[key], "dedup key must be unique: %s", key)
		seen[key] = true
	}
}

func TestMerge_OrderingLowestPriceAscendingNilLast(t *testing.T) {
	dep := time.Now()
	cheap := flight("AA1", "JFK", "LAX", dep, core.SourceDirectCrawl, 100)
	expensive := flight("BB2", "JFK", "LAX", dep, core.SourceDirectCrawl, 500)
	noPrice := core.NormalizedFlight{FlightNumber: "CC3", Origin: "JFK", Destination: "LAX", DepartureTime: dep, Source: core.SourceDirectCrawl}

	merged := Merge([]core.CrawlResult{{Success: true, Flights: []core.NormalizedFlight{expensive, noPrice, cheap}}})
	require.Len(t, merged, 3)
	assert.Equal(t, "AA1", merged[0].FlightNumber)
	assert.Equal(t, "BB2", merged[1].FlightNumber)
	assert.Equal(t, "CC3", merged[2].FlightNumber)
}

func TestMerge_PermutationInvariant(t *testing.T) {
	dep := time.Now()
	a := flight("AA1", "JFK", "LAX", dep, core.SourceDirectCrawl, 100)
	b := flight("BB2", "JFK", "LAX", dep, core.SourceKiwiAPI, 200)

	m1 := Merge([]core.CrawlResult{{Success: true, Flights: []core.NormalizedFlight{a, b}}})
	m2 := Merge([]core.CrawlResult{{Success: true, Flights: []core.NormalizedFlight{b, a}}})

	set := func(fs []core.NormalizedFlight) map[string]core.NormalizedFlight {
		m := map[string]core.NormalizedFlight{}
		for _, f := range fs {
			m[f.DedupKey()] = f
		}
		return m
	}
	if diff := deep.Equal(set(m1), set(m2)); diff != nil {
		t.Fatalf("merge(L) != merge(reverse(L)) as sets: %v", diff)
	}
}

// Scenario 5 — partial failure: duplicate's prices include both
// contributing sources' observations.
func TestMerge_Scenario5_PartialFailure(t *testing.T) {
	dep := time.Now()
	aFlights := []core.NormalizedFlight{
		flight("AA1", "JFK", "LAX", dep, core.SourceDirectCrawl, 300),
		flight("AA2", "JFK", "LAX", dep, core.SourceDirectCrawl, 150),
	}
	cFlights := []core.NormalizedFlight{
		flight("AA2", "JFK", "LAX", dep, core.SourceKiwiAPI, 140),
	}
	results := []core.CrawlResult{
		{Success: true, Flights: aFlights},
		{Success: false, Error: "timeout: B timed out"},
		{Success: true, Flights: cFlights},
	}

	merged := Merge(results)
	require.Len(t, merged, 2)
	var dup core.NormalizedFlight
	for _, f := range merged {
		if f.FlightNumber == "AA2" {
			dup = f
		}
	}
	require.Len(t, dup.Prices, 2)
}

func TestFilterExcludedAirlines(t *testing.T) {
	dep := time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC)
	flights := []core.NormalizedFlight{
		flight("NK100", "JFK", "MCO", dep, core.SourceDirectCrawl, 59.0),
		flight("AA200", "JFK", "MCO", dep, core.SourceDirectCrawl, 199.0),
	}

	kept := FilterExcludedAirlines(flights, []string{"NK", "G4"})
	require.Len(t, kept, 1)
	assert.Equal(t, "AA200", kept[0].FlightNumber)
}

func TestFilterExcludedAirlines_EmptyListIsNoOp(t *testing.T) {
	dep := time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC)
	flights := []core.NormalizedFlight{
		flight("NK100", "JFK", "MCO", dep, core.SourceDirectCrawl, 59.0),
	}
	assert.Equal(t, flights, FilterExcludedAirlines(flights, nil))
}
