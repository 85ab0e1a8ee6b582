package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLowestNormalizedPrice(t *testing.T) {
	f := NormalizedFlight{
		Prices: []NormalizedPrice{
			{Amount: 820.0, Currency: "USD"},
			{Amount: 799.5, Currency: "USD"},
			{Amount: 900.0, Currency: "USD"},
		},
	}
	lowest := f.LowestNormalizedPrice()
	require.NotNil(t, lowest)
	assert.Equal(t, 799.5, lowest.Amount)
}

func TestLowestNormalizedPrice_NoPrices(t *testing.T) {
	var f NormalizedFlight
	assert.Nil(t, f.LowestNormalizedPrice())
}

func TestLowestPriceAmount(t *testing.T) {
	f := NormalizedFlight{
		Prices: []NormalizedPrice{
			{Amount: 799.50, Currency: "USD"},
			{Amount: 820.00, Currency: "USD"},
		},
	}
	amt, ok := f.LowestPriceAmount()
	require.True(t, ok)
	assert.Equal(t, "USD", amt.CurrencyCode())
}

func TestLowestPriceAmount_NoPrices(t *testing.T) {
	var f NormalizedFlight
	_, ok := f.LowestPriceAmount()
	assert.False(t, ok)
}

func TestDedupKey_RoundsToMinute(t *testing.T) {
	f1 := NormalizedFlight{
		FlightNumber:  "SQ615",
		Origin:        "icn",
		Destination:   "sin",
		DepartureTime: time.Date(2026, 3, 15, 8, 0, 12, 0, time.UTC),
	}
	f2 := f1
	f2.DepartureTime = time.Date(2026, 3, 15, 8, 0, 45, 0, time.UTC)

	assert.Equal(t, f1.DedupKey(), f2.DedupKey())
}
