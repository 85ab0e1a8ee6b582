package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gilby125/flightcrawler/core"
)

func TestPreferenceFilter_MaxPriceExcludesNoPriceFlights(t *testing.T) {
	maxPrice := 200.0
	noPrice := core.NormalizedFlight{FlightNumber: "AA1", Origin: "JFK", Destination: "LAX"}
	f := PreferenceFilter{MaxPrice: &maxPrice}
	assert.Empty(t, f.Apply([]core.NormalizedFlight{noPrice}))
}

func TestPreferenceFilter_AirlineBlacklist(t *testing.T) {
	flight := core.NormalizedFlight{FlightNumber: "NK1", AirlineCode: "NK", Origin: "JFK", Destination: "LAX"}
	f := PreferenceFilter{AirlineBlacklist: []string{"NK"}}
	assert.Empty(t, f.Apply([]core.NormalizedFlight{flight}))
}

func TestPreferenceFilter_MaxStops(t *testing.T) {
	direct := core.NormalizedFlight{FlightNumber: "AA1", Stops: 0, Origin: "JFK", Destination: "LAX"}
	oneStop := core.NormalizedFlight{FlightNumber: "AA2", Stops: 1, Origin: "JFK", Destination: "LAX"}
	zero := 0
	f := PreferenceFilter{MaxStops: &zero}
	out := f.Apply([]core.NormalizedFlight{direct, oneStop})
	assert.Len(t, out, 1)
	assert.Equal(t, "AA1", out[0].FlightNumber)
}

func TestPreferenceFilter_HardDepartureWindow(t *testing.T) {
	inside := core.NormalizedFlight{FlightNumber: "AA1", DepartureTime: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC), Origin: "JFK", Destination: "LAX"}
	outside := core.NormalizedFlight{FlightNumber: "AA2", DepartureTime: time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC), Origin: "JFK", Destination: "LAX"}
	f := PreferenceFilter{Window: TimeWindow{Configured: true, StartHour: 8, EndHour: 10}}
	out := f.Apply([]core.NormalizedFlight{inside, outside})
	assert.Len(t, out, 1)
	assert.Equal(t, "AA1", out[0].FlightNumber)
}

func TestPreferenceFilter_NoConstraintsPassesEverything(t *testing.T) {
	flights := []core.NormalizedFlight{
		{FlightNumber: "AA1", Origin: "JFK", Destination: "LAX"},
		{FlightNumber: "AA2", Origin: "JFK", Destination: "SFO"},
	}
	f := PreferenceFilter{}
	assert.Len(t, f.Apply(flights), 2)
}
