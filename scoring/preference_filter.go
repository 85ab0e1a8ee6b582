package scoring

import (
	"github.com/gilby125/flightcrawler/core"
)

// PreferenceFilter is the hard pre-filter of spec.md §4.8, applied before
// scoring. Every configured constraint excludes any flight that fails
// it; flights with no price are included only if no price constraint is
// set.
type PreferenceFilter struct {
	MaxPrice          *float64
	AirlineWhitelist  []string // empty means no constraint
	AirlineBlacklist  []string
	MaxStops          *int
	Window            TimeWindow // hard variant: outside window excludes
	BaggageRequired   bool
	MealRequired      bool
	MinSeatPitch      *float64
	MinSeatWidth      *float64
	RefData           core.ReferenceData
}

// Apply returns the subset of flights passing every configured
// constraint.
func (f PreferenceFilter) Apply(flights []core.NormalizedFlight) []core.NormalizedFlight {
	out := make([]core.NormalizedFlight, 0, len(flights))
	for _, flight := range flights {
		if f.passes(flight) {
			out = append(out, flight)
		}
	}
	return out
}

func (f PreferenceFilter) passes(flight core.NormalizedFlight) bool {
	lowest := flight.LowestPrice()

	if f.MaxPrice != nil {
		if lowest == nil {
			return false
		}
		if *lowest > *f.MaxPrice {
			return false
		}
	}

	if len(f.AirlineWhitelist) > 0 && !contains(f.AirlineWhitelist, flight.AirlineCode) {
		return false
	}
	if len(f.AirlineBlacklist) > 0 && contains(f.AirlineBlacklist, flight.AirlineCode) {
		return false
	}

	if f.MaxStops != nil && flight.Stops > *f.MaxStops {
		return false
	}

	if f.Window.Configured {
		tMin := flight.DepartureTime.Hour()*60 + flight.DepartureTime.Minute()
		startMin := f.Window.StartHour*60 + f.Window.StartMin
		endMin := f.Window.EndHour*60 + f.Window.EndMin
		if !timeInRange(startMin, endMin, tMin) {
			return false
		}
	}

	if f.BaggageRequired && !anyIncludes(flight.Prices, func(p core.NormalizedPrice) bool { return p.IncludesBaggage }) {
		return false
	}
	if f.MealRequired && !anyIncludes(flight.Prices, func(p core.NormalizedPrice) bool { return p.IncludesMeal }) {
		return false
	}

	if (f.MinSeatPitch != nil || f.MinSeatWidth != nil) && f.RefData != nil {
		spec, ok := f.RefData.SeatSpec(flight.AirlineCode, flight.CabinClass)
		if !ok {
			// unknown seat spec: cannot verify the constraint, fail
			// closed rather than silently admitting the flight.
			return false
		}
		if f.MinSeatPitch != nil && spec.PitchInches < *f.MinSeatPitch {
			return false
		}
		if f.MinSeatWidth != nil && spec.WidthInches < *f.MinSeatWidth {
			return false
		}
	}

	return true
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func anyIncludes(prices []core.NormalizedPrice, pred func(core.NormalizedPrice) bool) bool {
	for _, p := range prices {
		if pred(p) {
			return true
		}
	}
	return false
}
