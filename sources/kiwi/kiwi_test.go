package kiwi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilby125/flightcrawler/core"
)

func TestParseResponse_ExpandsRouteSegments(t *testing.T) {
	raw := []byte(`{"data":[{
		"price": 450.5,
		"deep_link": "https://kiwi.example/book/1",
		"countryTo": {"cur": "EUR"},
		"bags_price": {"1": 0},
		"route": [
			{"flyFrom":"PRG","flyTo":"LHR","dTime":1700000000,"aTime":1700003600,"airline":"FR","flight_no":123,"operating_carrier":"FR"},
			{"flyFrom":"LHR","flyTo":"JFK","dTime":1700010000,"aTime":1700030000,"airline":"BA","flight_no":456,"operating_carrier":"BA"}
		]
	}]}`)

	flights, err := parseResponse(raw, core.CabinEconomy)
	require.NoError(t, err)
	require.Len(t, flights, 2)

	assert.Equal(t, "FR123", flights[0].FlightNumber)
	assert.Equal(t, "PRG", flights[0].Origin)
	assert.Equal(t, "LHR", flights[0].Destination)
	assert.Len(t, flights[0].Prices, 1)
	assert.Equal(t, 450.5, flights[0].Prices[0].Amount)
	assert.Equal(t, "EUR", flights[0].Prices[0].Currency)
	assert.True(t, flights[0].Prices[0].IncludesBaggage)

	assert.Equal(t, "BA456", flights[1].FlightNumber)
	assert.Equal(t, core.SourceKiwiAPI, flights[1].Source)
}

func TestParseResponse_FallsBackToItineraryWhenNoRoute(t *testing.T) {
	raw := []byte(`{"data":[{
		"price": 120,
		"flyFrom": "ICN",
		"flyTo": "NRT",
		"dTime": 1700000000,
		"aTime": 1700007200,
		"airlines": ["OZ"]
	}]}`)

	flights, err := parseResponse(raw, core.CabinEconomy)
	require.NoError(t, err)
	require.Len(t, flights, 1)
	assert.Equal(t, "OZ", flights[0].AirlineCode)
	assert.Equal(t, "ICN", flights[0].Origin)
}

func TestParseResponse_EmptyData(t *testing.T) {
	flights, err := parseResponse([]byte(`{"data":[]}`), core.CabinEconomy)
	require.NoError(t, err)
	assert.Empty(t, flights)
}
