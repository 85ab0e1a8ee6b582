package googleflights

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/gilby125/flightcrawler/core"
)

// scriptTagPattern locates the AF_initDataCallback script element Google
// Flights embeds its search results in, ground: js_parser.py
// parser.css_first(r"script.ds\:1").
var scriptTagPattern = regexp.MustCompile(`(?s)<script[^>]*class="ds:1"[^>]*>(.*?)</script>`)

// jsDataPattern pulls the `data:[...]` literal out of the callback body,
// ground: js_parser.py's `re.search(r"^.*?\{.*?data:(\[.*\])\}", ...)`.
var jsDataPattern = regexp.MustCompile(`(?s)^.*?\{.*?data:(\[.*\])\}`)

// nlData is a decode-path indexable nested JSON array, ground: decoder.py's
// NLData / js_parser.py's Decoder machinery.
type nlData []any

func (d nlData) at(path ...int) (any, error) {
	var cur any = []any(d)
	for _, idx := range path {
		lst, ok := cur.([]any)
		if !ok {
			return nil, fmt.Errorf("googleflights: non-list at path %v", path)
		}
		if idx < 0 || idx >= len(lst) {
			return nil, fmt.Errorf("googleflights: index %d out of range (path %v)", idx, path)
		}
		cur = lst[idx]
	}
	return cur, nil
}

func (d nlData) list(path ...int) []any {
	v, err := d.at(path...)
	if err != nil {
		return nil
	}
	l, _ := v.([]any)
	return l
}

func (d nlData) str(path ...int) string {
	v, err := d.at(path...)
	if err != nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func (d nlData) num(path ...int) int {
	v, err := d.at(path...)
	if err != nil {
		return 0
	}
	f, _ := v.(float64)
	return int(f)
}

// dateTuple reads a (year, month, day) or (hour, minute) tuple at path.
func (d nlData) dateTuple(path ...int) []int {
	l := d.list(path...)
	out := make([]int, len(l))
	for i, v := range l {
		f, _ := v.(float64)
		out[i] = int(f)
	}
	return out
}

func dateTimeOf(date, clock []int) (time.Time, bool) {
	if len(date) < 3 || len(clock) < 2 {
		return time.Time{}, false
	}
	return time.Date(date[0], time.Month(date[1]), date[2], clock[0], clock[1], 0, 0, time.UTC), true
}

// flightRec mirrors js_parser.py's Flight dataclass.
type flightRec struct {
	Airline         string
	AirlineName     string
	FlightNumber    string
	Operator        string
	Aircraft        string
	DepartureAirport string
	ArrivalAirport   string
	DepartureTime    time.Time
	ArrivalTime      time.Time
	TravelTimeMin    int
}

// decodeFlights decodes the FLIGHTS path (itin[0][2]), ground:
// js_parser.py FlightDecoder.
func decodeFlights(raw []any) []flightRec {
	var out []flightRec
	for _, el := range raw {
		fd := nlData(asList(el))
		depDate := fd.dateTuple(20)
		arrDate := fd.dateTuple(21)
		depTime := fd.dateTuple(8)
		arrTime := fd.dateTuple(10)
		dep, ok1 := dateTimeOf(depDate, depTime)
		arr, ok2 := dateTimeOf(arrDate, arrTime)
		if !ok1 || !ok2 {
			continue
		}
		out = append(out, flightRec{
			Airline:          fd.str(22, 0),
			AirlineName:      fd.str(22, 3),
			FlightNumber:     fd.str(22, 1),
			Operator:         fd.str(2),
			Aircraft:         fd.str(17),
			DepartureAirport: fd.str(3),
			ArrivalAirport:   fd.str(5),
			DepartureTime:    dep,
			ArrivalTime:      arr,
			TravelTimeMin:    fd.num(11),
		})
	}
	return out
}

func asList(v any) []any {
	l, _ := v.([]any)
	return l
}

// itineraryRec mirrors js_parser.py's Itinerary dataclass, trimmed to the
// fields _itinerary_to_normalized actually consumes.
type itineraryRec struct {
	Flights  []flightRec
	Price    float64
	Currency string
}

// decodeItineraries decodes a BEST/OTHER path ([2,0] or [3,0]), ground:
// js_parser.py ItineraryDecoder + ResultDecoder.
func decodeItineraries(root nlData, path ...int) []itineraryRec {
	raw, err := root.at(path...)
	if err != nil {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil
	}

	var out []itineraryRec
	for _, el := range list {
		itin := nlData(asList(el))
		flightsRaw := itin.list(0, 2)
		summaryB64 := itin.str(1, 1)

		price, currency := 0.0, ""
		if summaryB64 != "" {
			if raw, err := base64.StdEncoding.DecodeString(summaryB64); err == nil {
				price, currency = decodeItinerarySummary(raw)
			}
		}
		if currency == "" {
			currency = "USD"
		}

		out = append(out, itineraryRec{
			Flights:  decodeFlights(flightsRaw),
			Price:    price,
			Currency: currency,
		})
	}
	return out
}

// itineraryToNormalized converts one itinerary into one NormalizedFlight
// per segment, ground: js_parser.py _itinerary_to_normalized. Every
// segment of a multi-leg itinerary carries the same itinerary-level price
// and stop count, matching the reference's behavior.
func itineraryToNormalized(itin itineraryRec, cabin core.CabinClass, now time.Time) []core.NormalizedFlight {
	stops := len(itin.Flights) - 1
	if stops < 0 {
		stops = 0
	}

	var out []core.NormalizedFlight
	for _, f := range itin.Flights {
		var prices []core.NormalizedPrice
		if itin.Price > 0 {
			prices = append(prices, core.NormalizedPrice{
				Amount:    itin.Price,
				Currency:  itin.Currency,
				Source:    core.SourceGoogleProtobuf,
				CrawledAt: now,
			})
		}
		airlineName := f.AirlineName
		operator := f.Operator
		if operator == "" {
			operator = f.Airline
		}
		out = append(out, core.NormalizedFlight{
			FlightNumber:  f.Airline + f.FlightNumber,
			AirlineCode:   f.Airline,
			AirlineName:   airlineName,
			Operator:      operator,
			Origin:        f.DepartureAirport,
			Destination:   f.ArrivalAirport,
			DepartureTime: f.DepartureTime,
			ArrivalTime:   f.ArrivalTime,
			DurationMin:   f.TravelTimeMin,
			CabinClass:    cabin,
			AircraftType:  f.Aircraft,
			Stops:         stops,
			Prices:        prices,
			Source:        core.SourceGoogleProtobuf,
			CrawledAt:     now,
		})
	}
	return out
}

// extractJSData pulls the `data:[...]` JSON literal out of the page HTML.
func extractJSData(html string) ([]byte, bool) {
	m := scriptTagPattern.FindStringSubmatch(html)
	if m == nil {
		return nil, false
	}
	dm := jsDataPattern.FindStringSubmatch(m[1])
	if dm == nil {
		return nil, false
	}
	return []byte(dm[1]), true
}

// parseJSData extracts JS-embedded flight data from a Google Flights
// results page, ground: js_parser.py parse_js_data.
func parseJSData(html string, cabin core.CabinClass, now time.Time) ([]core.NormalizedFlight, error) {
	raw, ok := extractJSData(html)
	if !ok {
		return nil, nil
	}

	var data []any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("googleflights: decode js data: %w", err)
	}
	root := nlData(data)

	var flights []core.NormalizedFlight
	for _, itin := range decodeItineraries(root, 2, 0) {
		flights = append(flights, itineraryToNormalized(itin, cabin, now)...)
	}
	for _, itin := range decodeItineraries(root, 3, 0) {
		flights = append(flights, itineraryToNormalized(itin, cabin, now)...)
	}
	return flights, nil
}
