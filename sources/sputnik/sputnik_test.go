package sputnik

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilby125/flightcrawler/core"
)

func TestNew_UnknownTenant(t *testing.T) {
	_, err := New(Config{}, "ZZ")
	require.Error(t, err)
}

func TestParseFares_FiltersByRouteAndDropsSoldOut(t *testing.T) {
	entries := []fareEntry{{DepartureDate: "2026-05-01"}, {DepartureDate: "2026-05-02"}}
	entries[0].Outbound.DepartureAirportIataCode = "CDG"
	entries[0].Outbound.ArrivalAirportIataCode = "ICN"
	entries[0].Outbound.FareClass = "ECONOMY"
	entries[0].PriceSpecification.TotalPrice = 900000
	entries[0].PriceSpecification.CurrencyCode = "KRW"

	entries[1].Outbound.DepartureAirportIataCode = "CDG"
	entries[1].Outbound.ArrivalAirportIataCode = "ICN"
	entries[1].PriceSpecification.TotalPrice = 100
	entries[1].PriceSpecification.SoldOut = true

	flights := parseFares(entries, Tenants["AF"], "CDG", "ICN", core.CabinEconomy)
	require.Len(t, flights, 1)
	assert.Equal(t, "AF-CDGICN", flights[0].FlightNumber)
	assert.Equal(t, "Air France", flights[0].AirlineName)
}
