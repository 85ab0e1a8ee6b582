// Package googleflights builds the base64 "tfs" protobuf query parameter
// that drives Google Flights' own search page and decodes the JS-embedded
// nested-array flight data the page returns. Grounded 1:1 on
// original_source/apps/crawler/src/sky_scanner_crawler/google/{protobuf_builder,crawler,fetcher,js_parser}.py.
//
// The retrieval pack carries no .proto schema or generated flights_pb2
// module, so the wire format below is a from-scratch reconstruction of
// the minimal Info/FlightData/ItinerarySummary subset protobuf_builder.py
// exercises, encoded directly with google.golang.org/protobuf's low-level
// protowire helpers rather than a generated message type.
package googleflights

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/gilby125/flightcrawler/core"
)

// Info field numbers, ground: protobuf_builder.py TFSData._build_pb.
const (
	fieldInfoData       = 3
	fieldInfoPassengers = 8
	fieldInfoSeat       = 9
	fieldInfoTrip       = 19
)

// FlightData field numbers, ground: protobuf_builder.py FlightData.attach.
const (
	fieldFlightDataDate      = 2
	fieldFlightDataMaxStops  = 4
	fieldFlightDataFrom      = 13
	fieldFlightDataTo        = 26
	fieldAirportCode         = 2
)

// ItinerarySummary field numbers, ground: protobuf_builder.py ItinerarySummary.from_b64.
const (
	fieldSummaryFlights = 1
	fieldSummaryPrice   = 2
	fieldPriceAmount    = 1
	fieldPriceCurrency  = 2
)

// Seat/Trip/Passenger enum values, ground: protobuf_builder.py
// _CABIN_TO_PB_SEAT / _TRIP_TO_PB_TRIP / Passengers.
const (
	seatEconomy        = 1
	seatPremiumEconomy = 2
	seatBusiness       = 3
	seatFirst          = 4

	tripRoundTrip = 1
	tripOneWay    = 2
	tripMultiCity = 3

	passengerAdult       = 1
	passengerChild       = 2
	passengerInfantInSeat = 3
	passengerInfantOnLap  = 4
)

var cabinToSeat = map[core.CabinClass]int32{
	core.CabinEconomy:        seatEconomy,
	core.CabinPremiumEconomy: seatPremiumEconomy,
	core.CabinBusiness:       seatBusiness,
	core.CabinFirst:          seatFirst,
}

var tripToPB = map[core.TripType]int32{
	core.TripRoundTrip: tripRoundTrip,
	core.TripOneWay:    tripOneWay,
	core.TripMultiCity: tripMultiCity,
}

func buildAirport(code string) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldAirportCode, protowire.BytesType)
	b = protowire.AppendString(b, code)
	return b
}

func buildFlightData(date, from, to string, maxStops *int) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldFlightDataDate, protowire.BytesType)
	b = protowire.AppendString(b, date)
	b = protowire.AppendTag(b, fieldFlightDataFrom, protowire.BytesType)
	b = protowire.AppendBytes(b, buildAirport(from))
	b = protowire.AppendTag(b, fieldFlightDataTo, protowire.BytesType)
	b = protowire.AppendBytes(b, buildAirport(to))
	if maxStops != nil {
		b = protowire.AppendTag(b, fieldFlightDataMaxStops, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(*maxStops))
	}
	return b
}

func passengerEnums(mix core.PassengerMix) []int32 {
	var out []int32
	for i := 0; i < mix.Adults; i++ {
		out = append(out, passengerAdult)
	}
	for i := 0; i < mix.Children; i++ {
		out = append(out, passengerChild)
	}
	for i := 0; i < mix.InfantsInSeat; i++ {
		out = append(out, passengerInfantInSeat)
	}
	for i := 0; i < mix.InfantsOnLap; i++ {
		out = append(out, passengerInfantOnLap)
	}
	if len(out) == 0 {
		out = append(out, passengerAdult)
	}
	return out
}

// buildInfo encodes the Info message for one search request.
func buildInfo(req core.SearchRequest) ([]byte, error) {
	seat, ok := cabinToSeat[req.CabinClass]
	if !ok {
		return nil, fmt.Errorf("googleflights: unsupported cabin class %q", req.CabinClass)
	}
	trip, ok := tripToPB[req.TripType]
	if !ok {
		trip = tripOneWay
	}

	var info []byte
	info = protowire.AppendTag(info, fieldInfoSeat, protowire.VarintType)
	info = protowire.AppendVarint(info, uint64(seat))
	info = protowire.AppendTag(info, fieldInfoTrip, protowire.VarintType)
	info = protowire.AppendVarint(info, uint64(trip))
	for _, p := range passengerEnums(req.Passengers) {
		info = protowire.AppendTag(info, fieldInfoPassengers, protowire.VarintType)
		info = protowire.AppendVarint(info, uint64(p))
	}

	type leg struct{ date, from, to string }
	legs := []leg{{req.DepartureDate.Format("2006-01-02"), req.Origin, req.Destination}}
	if req.TripType == core.TripRoundTrip && req.ReturnDate != nil {
		legs = append(legs, leg{req.ReturnDate.Format("2006-01-02"), req.Destination, req.Origin})
	}
	for _, l := range legs {
		info = protowire.AppendTag(info, fieldInfoData, protowire.BytesType)
		info = protowire.AppendBytes(info, buildFlightData(l.date, l.from, l.to, nil))
	}
	return info, nil
}

// decodePrice decodes an embedded Price submessage into (amount, currency).
func decodePrice(raw []byte) (float64, string) {
	var cents int64
	var currency string
	for len(raw) > 0 {
		num, typ, n := protowire.ConsumeTag(raw)
		if n < 0 {
			return 0, ""
		}
		raw = raw[n:]
		switch num {
		case fieldPriceAmount:
			v, n := protowire.ConsumeVarint(raw)
			if n < 0 {
				return 0, ""
			}
			cents = int64(v)
			raw = raw[n:]
		case fieldPriceCurrency:
			v, n := protowire.ConsumeString(raw)
			if n < 0 {
				return 0, ""
			}
			currency = v
			raw = raw[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, raw)
			if n < 0 {
				return 0, ""
			}
			raw = raw[n:]
		}
	}
	return float64(cents) / 100, currency
}

// decodeItinerarySummary decodes a base64 ItinerarySummary blob into
// (price, currency), mirroring ItinerarySummary.from_b64.
func decodeItinerarySummary(raw []byte) (price float64, currency string) {
	for len(raw) > 0 {
		num, typ, n := protowire.ConsumeTag(raw)
		if n < 0 {
			return
		}
		raw = raw[n:]
		switch num {
		case fieldSummaryPrice:
			v, n := protowire.ConsumeBytes(raw)
			if n < 0 {
				return
			}
			price, currency = decodePrice(v)
			raw = raw[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, raw)
			if n < 0 {
				return
			}
			raw = raw[n:]
		}
	}
	return
}
