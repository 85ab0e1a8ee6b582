package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilby125/flightcrawler/core"
)

type stubRefData struct {
	classes map[string]core.AirlineClass
	specs   map[string]core.SeatSpec
}

func (s stubRefData) AirlineID(string) (string, bool) { return "", false }
func (s stubRefData) AirportID(string) (string, bool) { return "", false }
func (s stubRefData) SeatSpec(code string, cabin core.CabinClass) (core.SeatSpec, bool) {
	v, ok := s.specs[code+"_"+string(cabin)]
	return v, ok
}
func (s stubRefData) AirlineClass(code string) (core.AirlineClass, bool) {
	v, ok := s.classes[code]
	return v, ok
}
func (s stubRefData) AirportCoordinates(string) (core.Coordinates, bool) { return core.Coordinates{}, false }

func flightWith(num string, price float64, dep time.Time) core.NormalizedFlight {
	return core.NormalizedFlight{
		FlightNumber: num, AirlineCode: num[:2], Origin: "JFK", Destination: "LAX",
		DepartureTime: dep, CabinClass: core.CabinEconomy,
		Prices: []core.NormalizedPrice{{Amount: price, Currency: "USD", Source: core.SourceDirectCrawl}},
	}
}

// Scenario 6 — BALANCED profile (spec.md §8).
func TestScore_Scenario6_Balanced(t *testing.T) {
	dep := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	f1 := flightWith("LC1", 100, dep)
	f2 := flightWith("FS2", 150, dep)

	refs := stubRefData{classes: map[string]core.AirlineClass{"LC": core.AirlineLCC, "FS": core.AirlineFSC}}
	s := Scorer{Priority: PriorityBalanced, RefData: refs}
	out := s.Score([]core.NormalizedFlight{f1, f2})
	require.Len(t, out, 2)

	assert.Equal(t, 1.0, out[0].PriceScore)
	assert.Equal(t, 0.0, out[1].PriceScore)
	assert.Equal(t, 0.5, out[0].ReliabilityScore)
	assert.Equal(t, 0.8, out[1].ReliabilityScore)
	assert.InDelta(t, 0.7, out[0].TotalScore, 0.0001)
	assert.InDelta(t, 0.445, out[1].TotalScore, 0.0001)
}

func TestScore_SubscoresAndTotalInUnitInterval(t *testing.T) {
	dep := time.Now()
	flights := []core.NormalizedFlight{flightWith("AA1", 100, dep), flightWith("BB2", 900, dep)}
	s := Scorer{Priority: PriorityBalanced}
	for _, sb := range s.Score(flights) {
		assert.GreaterOrEqual(t, sb.PriceScore, 0.0)
		assert.LessOrEqual(t, sb.PriceScore, 1.0)
		assert.GreaterOrEqual(t, sb.TotalScore, 0.0)
		assert.LessOrEqual(t, sb.TotalScore, 1.0)
	}
}

func TestScore_PriceProfile_CheaperWinsStrictly(t *testing.T) {
	dep := time.Now()
	cheap := flightWith("AA1", 100, dep)
	costly := flightWith("BB2", 300, dep)
	s := Scorer{Priority: PriorityPrice}
	out := s.Score([]core.NormalizedFlight{cheap, costly})
	assert.Greater(t, out[0].TotalScore, out[1].TotalScore)
}

func TestScore_TimeProfile_WindowFlightWinsStrictly(t *testing.T) {
	inside := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	outside := inside.Add(7 * time.Hour)
	fInside := flightWith("AA1", 100, inside)
	fOutside := flightWith("BB2", 100, outside)

	s := Scorer{Priority: PriorityTime, Window: TimeWindow{Configured: true, StartHour: 8, EndHour: 10}}
	out := s.Score([]core.NormalizedFlight{fInside, fOutside})
	assert.Greater(t, out[0].TimeScore, out[1].TimeScore)
	assert.Greater(t, out[0].TotalScore, out[1].TotalScore)
}

func TestScoreTime_OvernightWindowWraps(t *testing.T) {
	s := Scorer{Priority: PriorityTime, Window: TimeWindow{Configured: true, StartHour: 22, EndHour: 6}}
	lateNight := time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, 1.0, s.scoreTime(lateNight))
	earlyMorning := time.Date(2026, 1, 1, 5, 0, 0, 0, time.UTC)
	assert.Equal(t, 1.0, s.scoreTime(earlyMorning))
}
