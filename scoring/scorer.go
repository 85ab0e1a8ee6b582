// Package scoring implements the weighted multi-factor scorer (C7) and
// the hard preference filter (C8) of spec.md §4.7/§4.8, grounded 1:1 on
// original_source/packages/ml/src/sky_scanner_ml/scoring.py.
package scoring

import (
	"math"
	"strings"
	"time"

	"github.com/gilby125/flightcrawler/core"
)

// Priority selects a weight profile row.
type Priority string

const (
	PriorityPrice    Priority = "PRICE"
	PriorityTime     Priority = "TIME"
	PriorityComfort  Priority = "COMFORT"
	PriorityBalanced Priority = "BALANCED"
)

// Weights is one row of the weight-profile table (spec.md §4.7), each
// summing to 1.0.
type Weights struct {
	Price, Time, Comfort, Service, Reliability float64
}

var weightProfiles = map[Priority]Weights{
	PriorityPrice:    {Price: 0.50, Time: 0.20, Comfort: 0.10, Service: 0.10, Reliability: 0.10},
	PriorityTime:     {Price: 0.15, Time: 0.45, Comfort: 0.10, Service: 0.10, Reliability: 0.20},
	PriorityComfort:  {Price: 0.15, Time: 0.10, Comfort: 0.45, Service: 0.20, Reliability: 0.10},
	PriorityBalanced: {Price: 0.30, Time: 0.25, Comfort: 0.20, Service: 0.10, Reliability: 0.15},
}

// TimeWindow is an optional preferred departure window (HH:MM), permitting
// overnight wrap-around (spec.md §4.7 time subscore).
type TimeWindow struct {
	Configured bool
	StartHour, StartMin int
	EndHour, EndMin     int
}

// ScoreBreakdown is the per-flight output of the scorer.
type ScoreBreakdown struct {
	PriceScore       float64
	TimeScore        float64
	ComfortScore     float64
	ServiceScore     float64
	ReliabilityScore float64
	TotalScore       float64
	Priority         Priority
}

// Scorer scores a candidate set of flights against one preference
// profile.
type Scorer struct {
	Priority      Priority
	Window        TimeWindow
	MinSeatPitch  *float64
	MinSeatWidth  *float64
	BaggageRequired bool
	MealRequired    bool
	RefData       core.ReferenceData
}

func (s Scorer) weights() Weights {
	w, ok := weightProfiles[s.Priority]
	if !ok {
		return weightProfiles[PriorityBalanced]
	}
	return w
}

// Score scores every flight in the candidate set. The price subscore is
// min-max normalized across the whole set, so it must be computed across
// the set, not per-flight in isolation (spec.md §4.7 "price: min-max
// normalized within the candidate set").
func (s Scorer) Score(flights []core.NormalizedFlight) []ScoreBreakdown {
	if len(flights) == 0 {
		return nil
	}

	minPrice, maxPrice := math.Inf(1), math.Inf(-1)
	for _, f := range flights {
		lp := f.LowestPrice()
		if lp == nil {
			continue
		}
		if *lp < minPrice {
			minPrice = *lp
		}
		if *lp > maxPrice {
			maxPrice = *lp
		}
	}
	priceRange := maxPrice - minPrice
	if math.IsInf(minPrice, 1) {
		minPrice, priceRange = 0, 0
	}

	w := s.weights()
	out := make([]ScoreBreakdown, 0, len(flights))
	for _, f := range flights {
		lp := f.LowestPrice()
		var price float64
		if lp == nil {
			price = 0
		} else {
			price = scorePrice(*lp, minPrice, priceRange)
		}
		t := s.scoreTime(f.DepartureTime)
		comfort := s.scoreComfort(f.AirlineCode, f.CabinClass)
		service := s.scoreService(f.Prices)
		reliability := s.scoreReliability(f.AirlineCode, f.MultiSource)

		total := w.Price*price + w.Time*t + w.Comfort*comfort + w.Service*service + w.Reliability*reliability

		out = append(out, ScoreBreakdown{
			PriceScore:       round4(price),
			TimeScore:        round4(t),
			ComfortScore:     round4(comfort),
			ServiceScore:     round4(service),
			ReliabilityScore: round4(reliability),
			TotalScore:       round4(total),
			Priority:         s.Priority,
		})
	}
	return out
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func scorePrice(price, minPrice, priceRange float64) float64 {
	if priceRange == 0 {
		return 1.0
	}
	return 1.0 - (price-minPrice)/priceRange
}

// scoreTime scores proximity to the preferred departure window, with
// overnight-window wrap-around and linear decay to 0 over 6 hours from
// the nearest edge (spec.md §4.7 time subscore; grounded on
// scoring.py's _time_in_range/_hours_from_range).
func (s Scorer) scoreTime(dep time.Time) float64 {
	if !s.Window.Configured {
		return 0.5
	}
	tMin := dep.Hour()*60 + dep.Minute()
	startMin := s.Window.StartHour*60 + s.Window.StartMin
	endMin := s.Window.EndHour*60 + s.Window.EndMin

	if timeInRange(startMin, endMin, tMin) {
		return 1.0
	}
	hoursAway := hoursFromRange(startMin, endMin, tMin) / 60.0
	const maxDecayHours = 6.0
	return math.Max(0.0, 1.0-hoursAway/maxDecayHours)
}

func timeInRange(startMin, endMin, t int) bool {
	if startMin <= endMin {
		return t >= startMin && t <= endMin
	}
	return t >= startMin || t <= endMin
}

func hoursFromRange(startMin, endMin, t int) float64 {
	var dist int
	if startMin <= endMin {
		if t < startMin {
			dist = startMin - t
		} else {
			dist = t - endMin
		}
	} else {
		if t > endMin && t < startMin {
			dist = min(t-endMin, startMin-t)
		} else {
			dist = 0
		}
	}
	return float64(dist)
}

// scoreComfort averages min(actual/required, 1.0) over configured seat
// constraints (spec.md §4.7 comfort subscore).
func (s Scorer) scoreComfort(airlineCode string, cabin core.CabinClass) float64 {
	if s.RefData == nil {
		return 0.5
	}
	spec, ok := s.RefData.SeatSpec(airlineCode, cabin)
	if !ok {
		return 0.5
	}

	var scores []float64
	if s.MinSeatPitch != nil && spec.PitchInches > 0 {
		scores = append(scores, math.Min(spec.PitchInches/(*s.MinSeatPitch), 1.0))
	}
	if s.MinSeatWidth != nil && spec.WidthInches > 0 {
		scores = append(scores, math.Min(spec.WidthInches/(*s.MinSeatWidth), 1.0))
	}
	if len(scores) == 0 {
		return 0.5
	}
	sum := 0.0
	for _, v := range scores {
		sum += v
	}
	return sum / float64(len(scores))
}

// scoreService gives 0.5 per baggage/meal dimension: 0.5 if required and
// satisfied, 0 if required and absent, 0.5 unconditional if not required
// (spec.md §4.7).
func (s Scorer) scoreService(prices []core.NormalizedPrice) float64 {
	hasBaggage, hasMeal := false, false
	for _, p := range prices {
		if p.IncludesBaggage {
			hasBaggage = true
		}
		if p.IncludesMeal {
			hasMeal = true
		}
	}

	score := 0.0
	if s.BaggageRequired {
		if hasBaggage {
			score += 0.5
		}
	} else {
		score += 0.5
	}
	if s.MealRequired {
		if hasMeal {
			score += 0.5
		}
	} else {
		score += 0.5
	}
	return score
}

// scoreReliability bases the subscore on airline classification, +0.2
// (capped at 1.0) when the merger flagged the flight as multi-source
// (spec.md §4.7).
func (s Scorer) scoreReliability(airlineCode string, multiSource bool) float64 {
	base := 0.5
	if s.RefData != nil {
		if class, ok := s.RefData.AirlineClass(airlineCode); ok {
			switch class {
			case core.AirlineFSC:
				base = 0.8
			case core.AirlineLCC:
				base = 0.5
			case core.AirlineULCC:
				base = 0.3
			}
		}
	}
	if multiSource {
		base = math.Min(base+0.2, 1.0)
	}
	return base
}

// scoreReliabilityBySource matches the Python reference's literal
// "source field contains a comma" check, for callers that carry
// provenance as a joined string rather than the MultiSource flag.
func scoreReliabilityBySource(airlineClass core.AirlineClass, source string) float64 {
	base := 0.5
	switch airlineClass {
	case core.AirlineFSC:
		base = 0.8
	case core.AirlineLCC:
		base = 0.5
	case core.AirlineULCC:
		base = 0.3
	}
	if strings.Contains(source, ",") {
		base = math.Min(base+0.2, 1.0)
	}
	return base
}
