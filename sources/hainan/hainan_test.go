package hainan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilby125/flightcrawler/core"
)

func TestParseFareTrends_OneSyntheticFlightPerDay(t *testing.T) {
	resp := &fareTrendsResponse{Success: true}
	resp.Data.OrgCode = "PEK"
	resp.Data.DstCode = "HAK"
	resp.Data.PriceCalandar = []calendarEntry{
		{Day: "20260401", Price: "680"},
		{Day: "20260402", Price: "0"},   // excluded: non-positive
		{Day: "", Price: "700"},         // excluded: missing day
		{Day: "20260403", Price: "abc"}, // excluded: invalid price
	}

	flights := parseFareTrends(resp, "PEK", "HAK", core.CabinEconomy)
	require.Len(t, flights, 1)

	f := flights[0]
	assert.True(t, f.Synthetic)
	assert.Equal(t, "HU-PEKHAK", f.FlightNumber)
	assert.Equal(t, "PEK", f.Origin)
	assert.Equal(t, "HAK", f.Destination)
	require.Len(t, f.Prices, 1)
	assert.Equal(t, 680.0, f.Prices[0].Amount)
	assert.Equal(t, "CNY", f.Prices[0].Currency)
	require.NoError(t, f.Validate())
}

func TestMergedSignParams_IncludesAllFields(t *testing.T) {
	common := commonEnvelope{Did: "ABC", Stime: 1000}
	data := dataEnvelope{OrgCode: "PEK", DstCode: "HAK"}
	params := mergedSignParams(common, data)
	assert.Equal(t, "ABC", params["did"])
	assert.Equal(t, "PEK", params["orgCode"])
}
