// Package core holds the value objects and entities shared by every stage
// of the crawl -> normalize -> merge -> score -> persist pipeline.
package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/bojanz/currency"
)

// CabinClass is the seat product class requested or observed.
type CabinClass string

const (
	CabinEconomy         CabinClass = "ECONOMY"
	CabinPremiumEconomy  CabinClass = "PREMIUM_ECONOMY"
	CabinBusiness        CabinClass = "BUSINESS"
	CabinFirst           CabinClass = "FIRST"
)

func (c CabinClass) Valid() bool {
	switch c {
	case CabinEconomy, CabinPremiumEconomy, CabinBusiness, CabinFirst:
		return true
	}
	return false
}

// TripType describes the shape of the itinerary being searched.
type TripType string

const (
	TripOneWay    TripType = "ONE_WAY"
	TripRoundTrip TripType = "ROUND_TRIP"
	TripMultiCity TripType = "MULTI_CITY"
)

// DataSource tags the provenance of a price or flight observation. The
// zero value is not a valid source; Unknown exists only so the merger can
// fail closed on a source it has never seen instead of panicking.
type DataSource string

const (
	SourceGoogleProtobuf DataSource = "GOOGLE_PROTOBUF"
	SourceKiwiAPI        DataSource = "KIWI_API"
	SourceGDS            DataSource = "GDS"
	SourceDirectCrawl    DataSource = "DIRECT_CRAWL"
	SourceOfficialAPI    DataSource = "OFFICIAL_API"
	SourceUnknown        DataSource = ""
)

// trustOrder ranks DataSource values high to low. Sources absent from the
// map are treated as trust 0, i.e. lower than every known source, per
// spec.md §9 "fail closed... treat as lowest trust".
var trustOrder = map[DataSource]int{
	SourceGoogleProtobuf: 40,
	SourceKiwiAPI:        30,
	SourceDirectCrawl:    20,
	SourceGDS:            10,
	SourceOfficialAPI:    25,
}

// Trust returns the relative trust rank of a source. Higher wins.
func Trust(s DataSource) int {
	return trustOrder[s]
}

// AirlineClass classifies a carrier for the scorer's reliability subscore.
type AirlineClass string

const (
	AirlineFSC  AirlineClass = "FSC"  // full-service carrier
	AirlineLCC  AirlineClass = "LCC"  // low-cost carrier
	AirlineULCC AirlineClass = "ULCC" // ultra-low-cost carrier
)

// SeatSpec is the physical seat geometry for an airline+cabin pair, keyed
// externally as "{airline_code}_{cabin_class}" (spec.md §6).
type SeatSpec struct {
	PitchInches float64
	WidthInches float64
}

// PassengerMix is the non-negative passenger breakdown of a search.
type PassengerMix struct {
	Adults          int
	Children        int
	InfantsInSeat   int
	InfantsOnLap    int
}

// Validate checks the non-negativity and adults≥1 invariant. allowZeroAdults
// exists for contexts (such as a price-graph sweep) that explicitly permit
// an adults-less request.
func (p PassengerMix) Validate(allowZeroAdults bool) error {
	if p.Adults < 0 || p.Children < 0 || p.InfantsInSeat < 0 || p.InfantsOnLap < 0 {
		return fmt.Errorf("passenger mix: counts must be non-negative")
	}
	if p.Adults < 1 && !allowZeroAdults {
		return fmt.Errorf("passenger mix: adults must be >= 1")
	}
	return nil
}

func (p PassengerMix) Total() int {
	return p.Adults + p.Children + p.InfantsInSeat + p.InfantsOnLap
}

// SearchRequest is the immutable query that enters the dispatcher (C5).
type SearchRequest struct {
	Origin        string
	Destination   string
	DepartureDate time.Time // calendar date, time-of-day ignored
	ReturnDate    *time.Time
	TripType      TripType
	CabinClass    CabinClass
	Passengers    PassengerMix
	Currency      string
}

// Validate enforces the invariants in spec.md §3: origin != destination,
// IATA codes uppercase 3-letter, return_date >= departure_date when present.
func (r SearchRequest) Validate() error {
	o := strings.ToUpper(r.Origin)
	d := strings.ToUpper(r.Destination)
	if len(o) != 3 || len(d) != 3 {
		return fmt.Errorf("search request: origin/destination must be 3-letter IATA codes")
	}
	if o == d {
		return fmt.Errorf("search request: origin must differ from destination")
	}
	if !r.CabinClass.Valid() {
		return fmt.Errorf("search request: invalid cabin class %q", r.CabinClass)
	}
	if r.ReturnDate != nil && r.ReturnDate.Before(r.DepartureDate) {
		return fmt.Errorf("search request: return_date must be >= departure_date")
	}
	if err := r.Passengers.Validate(false); err != nil {
		return err
	}
	return nil
}

// CrawlTask binds a SearchRequest to one target source for one adapter
// invocation, with optional per-task overrides (deadline, proxy, etc).
type CrawlTask struct {
	Request  SearchRequest
	Source   DataSource
	Deadline time.Time
	// Overrides carries adapter-specific per-task tuning (e.g. an explicit
	// fare class code) without forcing every adapter to share one schema.
	Overrides map[string]string
}

// NormalizedPrice is one price observation attached to a NormalizedFlight.
type NormalizedPrice struct {
	Amount                float64
	Currency              string
	Source                DataSource
	FareClass             string // opaque, may be empty
	IncludesBaggage       bool
	IncludesMeal          bool
	SeatSelectionIncluded bool
	BookingURL            string // empty means none
	CrawledAt             time.Time
}

// Validate enforces amount > 0 and non-empty currency (spec.md §8).
func (p NormalizedPrice) Validate() error {
	if p.Amount <= 0 {
		return fmt.Errorf("price: amount must be > 0, got %v", p.Amount)
	}
	if p.Currency == "" {
		return fmt.Errorf("price: currency must not be empty")
	}
	return nil
}

// NormalizedFlight is one flight, real or synthetic, in the common shape
// every adapter's parser must produce.
type NormalizedFlight struct {
	FlightNumber   string
	AirlineCode    string
	AirlineName    string // display name, may be empty
	Operator       string // operating carrier code; equals AirlineCode absent codeshare
	Origin         string
	Destination    string
	DepartureTime  time.Time
	ArrivalTime    time.Time
	DurationMin    int
	CabinClass     CabinClass
	AircraftType   string // may be empty
	Stops          int
	Prices         []NormalizedPrice
	Source         DataSource
	CrawledAt      time.Time
	// Synthetic marks a per-day lowest-fare row manufactured from calendar
	// data rather than an identified flight (spec.md §4.4 rule 6, §9 open
	// question). Derived at construction time, never persisted.
	Synthetic bool
	// MultiSource is set by the merger when a dedup group folds more than
	// one distinct DataSource together; the scorer's reliability subscore
	// reads it (spec.md §4.7).
	MultiSource bool
}

// LowestPrice returns the minimum price amount across Prices, or nil if
// there are none.
func (f NormalizedFlight) LowestPrice() *float64 {
	if len(f.Prices) == 0 {
		return nil
	}
	min := f.Prices[0].Amount
	for _, p := range f.Prices[1:] {
		if p.Amount < min {
			min = p.Amount
		}
	}
	return &min
}

// LowestNormalizedPrice returns a pointer to the Prices entry with the
// smallest Amount, or nil if there are none. Ties keep the first in
// encounter order.
func (f NormalizedFlight) LowestNormalizedPrice() *NormalizedPrice {
	if len(f.Prices) == 0 {
		return nil
	}
	lowest := f.Prices[0]
	for _, p := range f.Prices[1:] {
		if p.Amount < lowest.Amount {
			lowest = p
		}
	}
	return &lowest
}

// LowestPriceAmount returns the lowest price as a bojanz/currency.Amount,
// spec.md §3's "amount (positive decimal)" represented exactly instead of
// as a float, so comparisons and arithmetic downstream (merge sort,
// preference-filter max-price checks) do not accumulate binary-float
// rounding error. Returns false if there are no prices or the amount
// fails to parse as a decimal (malformed currency code).
func (f NormalizedFlight) LowestPriceAmount() (currency.Amount, bool) {
	p := f.LowestNormalizedPrice()
	if p == nil {
		return currency.Amount{}, false
	}
	amt, err := currency.NewAmount(fmt.Sprintf("%.2f", p.Amount), p.Currency)
	if err != nil {
		return currency.Amount{}, false
	}
	return amt, true
}

// DedupKey is the deterministic merge key: flight number, origin,
// destination, departure time rounded to the minute (spec.md §3, §9 "time
// semantics" note — rounding must be applied consistently or the same
// flight from two sources will not fold).
func (f NormalizedFlight) DedupKey() string {
	rounded := f.DepartureTime.Truncate(time.Minute).UTC()
	return fmt.Sprintf("%s|%s|%s|%s", f.FlightNumber, strings.ToUpper(f.Origin), strings.ToUpper(f.Destination), rounded.Format(time.RFC3339))
}

// Validate checks the universal invariants of spec.md §8.
func (f NormalizedFlight) Validate() error {
	o := strings.ToUpper(f.Origin)
	d := strings.ToUpper(f.Destination)
	if len(o) != 3 || len(d) != 3 {
		return fmt.Errorf("flight %s: origin/destination must be 3-letter IATA codes", f.FlightNumber)
	}
	if o == d {
		return fmt.Errorf("flight %s: origin must differ from destination", f.FlightNumber)
	}
	if f.DurationMin < 0 {
		return fmt.Errorf("flight %s: duration_minutes must be >= 0", f.FlightNumber)
	}
	if f.Stops < 0 {
		return fmt.Errorf("flight %s: stops must be >= 0", f.FlightNumber)
	}
	for i, p := range f.Prices {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("flight %s: price[%d]: %w", f.FlightNumber, i, err)
		}
	}
	return nil
}

// DurationFromTimes computes arrival-departure in minutes, wrapping modulo
// 24h when the delta is negative (spec.md §4.4 normalization rule 3).
func DurationFromTimes(dep, arr time.Time) int {
	d := arr.Sub(dep)
	if d < 0 {
		d += 24 * time.Hour
	}
	return int(d.Minutes())
}

// SyntheticFlightNumber builds the "{CODE}-{OOO}{DDD}" synthetic flight
// number used for calendar-only sources (spec.md §4.4 rule 6).
func SyntheticFlightNumber(code, origin, destination string) string {
	return fmt.Sprintf("%s-%s%s", strings.ToUpper(code), strings.ToUpper(origin), strings.ToUpper(destination))
}

// CrawlResult is the envelope every adapter's Crawl returns; it must never
// be replaced by a raised error (spec.md §4.3, §7).
type CrawlResult struct {
	Flights    []NormalizedFlight
	Source     DataSource
	CrawledAt  time.Time
	DurationMS int64
	Success    bool
	Error      string
}
