package thaiairways

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilby125/flightcrawler/core"
)

func TestParseSputnikFares_FiltersRouteAndSoldOut(t *testing.T) {
	entries := []sputnikEntry{
		{DepartureDate: "2026-04-15"},
		{DepartureDate: "2026-04-16"},
	}
	entries[0].Outbound.DepartureAirportIataCode = "ICN"
	entries[0].Outbound.ArrivalAirportIataCode = "BKK"
	entries[0].Outbound.FareClass = "ECONOMY"
	entries[0].PriceSpecification.TotalPrice = 317300
	entries[0].PriceSpecification.CurrencyCode = "KRW"

	entries[1].Outbound.DepartureAirportIataCode = "ICN"
	entries[1].Outbound.ArrivalAirportIataCode = "BKK"
	entries[1].PriceSpecification.TotalPrice = 1000
	entries[1].PriceSpecification.SoldOut = true

	flights := parseSputnikFares(entries, "ICN", "BKK", core.CabinEconomy)
	require.Len(t, flights, 1)
	assert.Equal(t, "TG-ICNBKK", flights[0].FlightNumber)
	assert.Equal(t, 317300.0, flights[0].Prices[0].Amount)
}

func TestParsePopularFares_ParsesCommaSeparatedPrice(t *testing.T) {
	data := &popularFaresResponse{Prices: []popularFareEntry{
		{DepartureAirportIataCode: "ICN", ArrivalAirportIataCode: "BKK", Date: "2026-04-15"},
	}}
	data.Prices[0].Fare.TotalPrice = "317,300"
	data.Prices[0].Fare.CurrencyCode = "KRW"
	data.Prices[0].Fare.FareClass = "Y"

	flights := parsePopularFares(data, "ICN", "", core.CabinEconomy)
	require.Len(t, flights, 1)
	assert.Equal(t, 317300.0, flights[0].Prices[0].Amount)
	assert.Equal(t, core.CabinEconomy, flights[0].CabinClass)
}
