package amadeusgds

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilby125/flightcrawler/core"
)

func TestParseFlightOffers_FirstItineraryOnly(t *testing.T) {
	raw := []byte(`{"data":[{
		"itineraries":[
			{"duration":"PT2H30M","segments":[
				{"departure":{"iataCode":"ICN","at":"2026-03-15T08:00:00"},
				 "arrival":{"iataCode":"SIN","at":"2026-03-15T13:30:00"},
				 "carrierCode":"SQ","number":"615","operating":{"carrierCode":"SQ"},
				 "aircraft":{"code":"359"}}
			]},
			{"duration":"PT3H00M","segments":[{"departure":{"iataCode":"SIN","at":"2026-03-20T08:00:00"},"arrival":{"iataCode":"ICN","at":"2026-03-20T15:00:00"},"carrierCode":"SQ","number":"616"}]}
		],
		"price":{"grandTotal":"850.00","currency":"USD"},
		"travelerPricings":[{"fareDetailsBySegment":[{"cabin":"BUSINESS","class":"J","includedCheckedBags":{"quantity":2}}]}]
	}]}`)

	flights, err := parseFlightOffers(raw, core.CabinEconomy)
	require.NoError(t, err)
	require.Len(t, flights, 1)

	f := flights[0]
	assert.Equal(t, "SQ615", f.FlightNumber)
	assert.Equal(t, "ICN", f.Origin)
	assert.Equal(t, "SIN", f.Destination)
	assert.Equal(t, 150, f.DurationMin)
	assert.Equal(t, core.CabinBusiness, f.CabinClass)
	assert.Equal(t, 0, f.Stops)
	require.Len(t, f.Prices, 1)
	assert.Equal(t, 850.00, f.Prices[0].Amount)
	assert.True(t, f.Prices[0].IncludesBaggage)
	assert.Equal(t, core.SourceGDS, f.Source)
}

func TestParseFlightOffers_SkipsOfferWithoutTotal(t *testing.T) {
	raw := []byte(`{"data":[{"itineraries":[{"duration":"PT1H","segments":[{"departure":{"iataCode":"A","at":"2026-01-01T00:00:00"},"arrival":{"iataCode":"B","at":"2026-01-01T01:00:00"},"carrierCode":"AA","number":"1"}]}],"price":{}}]}`)
	flights, err := parseFlightOffers(raw, core.CabinEconomy)
	require.NoError(t, err)
	assert.Empty(t, flights)
}

func TestParseISODuration(t *testing.T) {
	assert.Equal(t, 150, parseISODuration("PT2H30M"))
	assert.Equal(t, 45, parseISODuration("PT45M"))
	assert.Equal(t, 120, parseISODuration("PT2H"))
	assert.Equal(t, 0, parseISODuration(""))
}
