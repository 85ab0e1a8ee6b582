// Package merger implements the result merger (C6), grounded 1:1 on
// original_source/pipeline/merger.py: dedup by flight.dedup_key, union
// prices, overwrite non-price metadata only from a strictly higher-trust
// source, sort ascending by lowest_price (nil last).
package merger

import (
	"sort"

	"github.com/gilby125/flightcrawler/core"
)

// Merge discards failed CrawlResults, groups the remainder by dedup key,
// and returns the merged flights sorted per spec.md §4.6.
func Merge(results []core.CrawlResult) []core.NormalizedFlight {
	groups := make(map[string]core.NormalizedFlight)
	order := make([]string, 0)
	sourceCounts := make(map[string]map[core.DataSource]bool)

	for _, cr := range results {
		if !cr.Success {
			continue
		}
		for _, flight := range cr.Flights {
			key := flight.DedupKey()
			existing, ok := groups[key]
			if !ok {
				groups[key] = deepCopyFlight(flight)
				order = append(order, key)
				sourceCounts[key] = map[core.DataSource]bool{flight.Source: true}
				continue
			}

			// Price union: append, never dedup (spec.md §4.6 step 4,
			// §9 open question — left as-is to match observed corpus
			// behavior).
			existing.Prices = append(existing.Prices, flight.Prices...)
			sourceCounts[key][flight.Source] = true

			// Metadata replacement only from a strictly higher trust
			// source, preserving the merged price list.
			if core.Trust(flight.Source) > core.Trust(existing.Source) {
				mergedPrices := existing.Prices
				replacement := deepCopyFlight(flight)
				replacement.Prices = mergedPrices
				existing = replacement
			}
			groups[key] = existing
		}
	}

	merged := make([]core.NormalizedFlight, 0, len(order))
	for _, key := range order {
		f := groups[key]
		f.MultiSource = len(sourceCounts[key]) > 1
		merged = append(merged, f)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		pi, pj := merged[i].LowestPrice(), merged[j].LowestPrice()
		if pi == nil && pj == nil {
			return merged[i].DedupKey() < merged[j].DedupKey()
		}
		if pi == nil {
			return false
		}
		if pj == nil {
			return true
		}
		// Prefer an exact decimal comparison when both sides parse as
		// currency.Amount in the same currency (spec.md §3 "amount is a
		// positive decimal"); a binary-float tie can hide a real cent-level
		// difference. Cross-currency pairs fall back to raw float compare
		// since no conversion table exists (spec.md leaves this out of
		// scope).
		ai, oki := merged[i].LowestPriceAmount()
		aj, okj := merged[j].LowestPriceAmount()
		if oki && okj && ai.CurrencyCode() == aj.CurrencyCode() {
			cmp, err := ai.Cmp(aj)
			if err == nil && cmp != 0 {
				return cmp < 0
			}
			return merged[i].DedupKey() < merged[j].DedupKey()
		}
		if *pi == *pj {
			return merged[i].DedupKey() < merged[j].DedupKey()
		}
		return *pi < *pj
	})

	return merged
}

// FilterExcludedAirlines drops every flight operated by one of the given
// airline codes, ground: teacher config.FlightConfig.ExcludedAirlines
// (ultra-low-cost carriers the teacher's own deal-finder skipped by
// default) applied here as a post-merge step rather than at the config
// layer, since exclusion only makes sense against AirlineCode values the
// merge step has already normalized.
func FilterExcludedAirlines(flights []core.NormalizedFlight, excluded []string) []core.NormalizedFlight {
	if len(excluded) == 0 {
		return flights
	}
	skip := make(map[string]bool, len(excluded))
	for _, code := range excluded {
		skip[code] = true
	}
	kept := make([]core.NormalizedFlight, 0, len(flights))
	for _, f := range flights {
		if skip[f.AirlineCode] {
			continue
		}
		kept = append(kept, f)
	}
	return kept
}

func deepCopyFlight(f core.NormalizedFlight) core.NormalizedFlight {
	out := f
	out.Prices = make([]core.NormalizedPrice, len(f.Prices))
	copy(out.Prices, f.Prices)
	return out
}
