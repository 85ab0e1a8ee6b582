package googleflights

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/gilby125/flightcrawler/core"
)

func TestBuildInfo_RoundTripEncodesBothLegs(t *testing.T) {
	ret := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	req := core.SearchRequest{
		Origin: "ICN", Destination: "NRT",
		DepartureDate: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		ReturnDate:    &ret,
		TripType:      core.TripRoundTrip,
		CabinClass:    core.CabinBusiness,
		Passengers:    core.PassengerMix{Adults: 2},
	}

	info, err := buildInfo(req)
	require.NoError(t, err)
	require.NotEmpty(t, info)

	legCount := 0
	passengerCount := 0
	raw := info
	for len(raw) > 0 {
		num, typ, n := protowire.ConsumeTag(raw)
		require.Greater(t, n, 0)
		raw = raw[n:]
		switch num {
		case fieldInfoData:
			legCount++
			n := protowire.ConsumeFieldValue(num, typ, raw)
			raw = raw[n:]
		case fieldInfoPassengers:
			passengerCount++
			n := protowire.ConsumeFieldValue(num, typ, raw)
			raw = raw[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, raw)
			raw = raw[n:]
		}
	}
	assert.Equal(t, 2, legCount)
	assert.Equal(t, 2, passengerCount)
}

func TestBuildInfo_RejectsUnknownCabin(t *testing.T) {
	req := core.SearchRequest{CabinClass: core.CabinClass("GOLD"), TripType: core.TripOneWay}
	_, err := buildInfo(req)
	require.Error(t, err)
}

func TestDecodeItinerarySummary_RoundTrips(t *testing.T) {
	var price []byte
	price = protowire.AppendTag(price, fieldPriceAmount, protowire.VarintType)
	price = protowire.AppendVarint(price, 45000)
	price = protowire.AppendTag(price, fieldPriceCurrency, protowire.BytesType)
	price = protowire.AppendString(price, "USD")

	var summary []byte
	summary = protowire.AppendTag(summary, fieldSummaryFlights, protowire.BytesType)
	summary = protowire.AppendString(summary, "opaque-flight-token")
	summary = protowire.AppendTag(summary, fieldSummaryPrice, protowire.BytesType)
	summary = protowire.AppendBytes(summary, price)

	b64 := base64.StdEncoding.EncodeToString(summary)
	raw, err := base64.StdEncoding.DecodeString(b64)
	require.NoError(t, err)

	amount, currency := decodeItinerarySummary(raw)
	assert.Equal(t, 450.0, amount)
	assert.Equal(t, "USD", currency)
}

func TestParseJSData_NoScriptTagReturnsEmpty(t *testing.T) {
	flights, err := parseJSData("<html><body>no results</body></html>", core.CabinEconomy, time.Now())
	require.NoError(t, err)
	assert.Empty(t, flights)
}

func TestItineraryToNormalized_SharesPriceAndStopsAcrossSegments(t *testing.T) {
	now := time.Now().UTC()
	itin := itineraryRec{
		Price:    300.0,
		Currency: "USD",
		Flights: []flightRec{
			{Airline: "OZ", FlightNumber: "102", DepartureAirport: "ICN", ArrivalAirport: "NRT", DepartureTime: now, ArrivalTime: now.Add(2 * time.Hour), TravelTimeMin: 120},
			{Airline: "OZ", FlightNumber: "201", DepartureAirport: "NRT", ArrivalAirport: "HND", DepartureTime: now, ArrivalTime: now.Add(time.Hour), TravelTimeMin: 60},
		},
	}

	flights := itineraryToNormalized(itin, core.CabinEconomy, now)
	require.Len(t, flights, 2)
	for _, f := range flights {
		assert.Equal(t, 1, f.Stops)
		require.Len(t, f.Prices, 1)
		assert.Equal(t, 300.0, f.Prices[0].Amount)
	}
}
