package turkishairlines

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilby125/flightcrawler/core"
)

func TestParseFlightMatrix_PrefersRequestedCabin(t *testing.T) {
	raw := []byte(`{"data":{"originDestinationInformationList":[{
		"originDestinationOptionList":[{
			"segmentList":[{"departureAirportCode":"IST","arrivalAirportCode":"ICN",
				"departureDateTime":"2026-04-15T01:20:00","arrivalDateTime":"2026-04-15T18:30:00",
				"duration":"PT10H10M","marketingAirlineCode":"TK","marketingFlightNumber":"90",
				"operatingAirlineCode":"TK","equipmentCode":"77W"}],
			"fareCategory":{"ECONOMY":{"status":"AVAILABLE","startingPrice":{"amount":1234.56,"currencyCode":"USD"}}},
			"totalDuration":"PT10H10M","stopCount":0
		}]
	}]}}`)

	flights, err := parseFlightMatrix(raw, core.CabinEconomy)
	require.NoError(t, err)
	require.Len(t, flights, 1)

	f := flights[0]
	assert.Equal(t, "TK90", f.FlightNumber)
	assert.Equal(t, 610, f.DurationMin)
	assert.Equal(t, 0, f.Stops)
	require.Len(t, f.Prices, 1)
	assert.Equal(t, 1234.56, f.Prices[0].Amount)
}

func TestParseFlightMatrix_FallsBackToOtherCabin(t *testing.T) {
	raw := []byte(`{"data":{"originDestinationInformationList":[{
		"originDestinationOptionList":[{
			"segmentList":[{"departureAirportCode":"IST","arrivalAirportCode":"ICN",
				"departureDateTime":"2026-04-15T01:20:00","arrivalDateTime":"2026-04-15T18:30:00",
				"marketingAirlineCode":"TK","marketingFlightNumber":"90"}],
			"fareCategory":{"BUSINESS":{"status":"AVAILABLE","startingPrice":{"amount":5000,"currencyCode":"USD"}}}
		}]
	}]}}`)

	flights, err := parseFlightMatrix(raw, core.CabinEconomy)
	require.NoError(t, err)
	require.Len(t, flights, 1)
	assert.Equal(t, core.CabinBusiness, flights[0].CabinClass)
}

func TestParseCheapestPrices_OneFlightPerDay(t *testing.T) {
	raw := []byte(`{"data":{"dailyPriceList":[
		{"date":"2026-04-13","price":{"amount":500,"currencyCode":"USD"}},
		{"date":"2026-04-14","price":{"amount":0,"currencyCode":"USD"}}
	]}}`)

	flights, err := parseCheapestPrices(raw, "IST", "ICN", core.CabinEconomy)
	require.NoError(t, err)
	require.Len(t, flights, 1)
	assert.True(t, flights[0].Synthetic)
	assert.Equal(t, "TK-ISTICN", flights[0].FlightNumber)
}
