package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilby125/flightcrawler/core"
	"github.com/gilby125/flightcrawler/orchestration"
)

type stubCoordRefData struct {
	coords map[string]core.Coordinates
}

func (s stubCoordRefData) AirlineID(string) (string, bool)   { return "", false }
func (s stubCoordRefData) AirportID(string) (string, bool)   { return "", false }
func (s stubCoordRefData) AirlineClass(string) (core.AirlineClass, bool) {
	return "", false
}
func (s stubCoordRefData) SeatSpec(string, core.CabinClass) (core.SeatSpec, bool) {
	return core.SeatSpec{}, false
}
func (s stubCoordRefData) AirportCoordinates(code string) (core.Coordinates, bool) {
	c, ok := s.coords[code]
	return c, ok
}

func TestToCSVRows_NoRefDataLeavesDistanceZero(t *testing.T) {
	outcome := orchestration.Outcome{
		Flights: []core.NormalizedFlight{{
			FlightNumber: "SQ1", AirlineCode: "SQ", Origin: "JFK", Destination: "LHR",
			Prices: []core.NormalizedPrice{{Amount: 500, Currency: "USD"}},
		}},
	}
	rows := toCSVRows(outcome, nil)
	require.Len(t, rows, 1)
	assert.Zero(t, rows[0].DistanceMi)
	assert.Zero(t, rows[0].CentsPerMile)
}

func TestToCSVRows_WithRefDataComputesDistanceAndCostPerMile(t *testing.T) {
	ref := stubCoordRefData{coords: map[string]core.Coordinates{
		"JFK": {Lat: 40.6413, Lon: -73.7781},
		"LHR": {Lat: 51.4700, Lon: -0.4543},
	}}
	outcome := orchestration.Outcome{
		Flights: []core.NormalizedFlight{{
			FlightNumber: "SQ1", AirlineCode: "SQ", Origin: "JFK", Destination: "LHR",
			DepartureTime: time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC),
			Prices:        []core.NormalizedPrice{{Amount: 500, Currency: "USD"}},
		}},
	}
	rows := toCSVRows(outcome, ref)
	require.Len(t, rows, 1)
	assert.InDelta(t, 3451, rows[0].DistanceMi, 10)
	assert.Greater(t, rows[0].CentsPerMile, 0.0)
}

func TestToCSVRows_MissingAirportLeavesDistanceZero(t *testing.T) {
	ref := stubCoordRefData{coords: map[string]core.Coordinates{"JFK": {Lat: 40.6413, Lon: -73.7781}}}
	outcome := orchestration.Outcome{
		Flights: []core.NormalizedFlight{{Origin: "JFK", Destination: "XXX"}},
	}
	rows := toCSVRows(outcome, ref)
	require.Len(t, rows, 1)
	assert.Zero(t, rows[0].DistanceMi)
}
