package singaporeairlines

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilby125/flightcrawler/core"
)

func TestParseFlightAvailability_BasicSegment(t *testing.T) {
	raw := &availabilityResponse{Status: "SUCCESS"}
	raw.Response.Currency.Code = "SGD"
	rec := recommendation{SegmentBounds: []segmentBound{{
		FareFamily: "Standard", SellingClass: "Y", CabinClass: "Y",
		Segments: []sqSegment{{
			DepartureDateTime: "2026-04-15 09:00:00",
			ArrivalDateTime:   "2026-04-15 12:30:00",
			TripDuration:      12600,
			Legs: []sqLeg{{
				FlightNumber:      "SQ633",
				OriginAirportCode: "SIN", DestinationAirportCode: "ICN",
				MarketingAirline: sqAirline{Code: "SQ", Name: "Singapore Airlines"},
			}},
		}},
	}}}
	rec.SegmentBounds[0].FareSummary.FareDetailsPerAdult.TotalAmount = 450.0
	raw.Response.Recommendations = []recommendation{rec}

	flights := parseFlightAvailability(raw, "SIN", "ICN", core.CabinEconomy)
	require.Len(t, flights, 1)

	f := flights[0]
	assert.Equal(t, "SQ633", f.FlightNumber)
	assert.Equal(t, "SIN", f.Origin)
	assert.Equal(t, "ICN", f.Destination)
	assert.Equal(t, 210, f.DurationMin)
	require.Len(t, f.Prices, 1)
	assert.Equal(t, 450.0, f.Prices[0].Amount)
	require.NoError(t, f.Validate())
}

func TestParseSQDatetime_Formats(t *testing.T) {
	_, err := parseSQDatetime("2026-04-15 09:00:00")
	require.NoError(t, err)
}
