package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"

	"github.com/gilby125/flightcrawler/core"
	"github.com/gilby125/flightcrawler/orchestration"
	"github.com/gilby125/flightcrawler/pkg/geo"
	"github.com/gilby125/flightcrawler/scoring"
)

// csvFlightRow is the flattened, one-row-per-lowest-price shape
// `search --format csv` exports, ground: teacher pkg/deals' CSV export
// conventions (struct tags read by gocarina/gocsv).
type csvFlightRow struct {
	FlightNumber string  `csv:"flight_number"`
	Airline      string  `csv:"airline"`
	Origin       string  `csv:"origin"`
	Destination  string  `csv:"destination"`
	Departure    string  `csv:"departure"`
	Arrival      string  `csv:"arrival"`
	DurationMin  int     `csv:"duration_min"`
	Stops        int     `csv:"stops"`
	LowestPrice  float64 `csv:"lowest_price"`
	Currency     string  `csv:"currency"`
	Source       string  `csv:"source"`
	Score        float64 `csv:"score,omitempty"`
	DistanceMi   float64 `csv:"distance_mi,omitempty"`
	CentsPerMile float64 `csv:"cents_per_mile,omitempty"`
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "crawl every registered source for one itinerary, merge and optionally score/store the results",
		ArgsUsage: "ORIGIN DESTINATION DEPARTURE_DATE",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "cabin", Value: "ECONOMY", Usage: "cabin class"},
			&cli.StringFlag{Name: "priority", Value: "", Usage: "score priority: PRICE, TIME, COMFORT, BALANCED (omit to skip scoring)"},
			&cli.StringFlag{Name: "format", Value: "table", Usage: "output format: table, csv, json"},
			&cli.BoolFlag{Name: "store", Usage: "persist merged results to Postgres"},
		},
		Action: runSearch,
	}
}

func runSearch(c *cli.Context) error {
	if c.Args().Len() < 3 {
		return cli.Exit("usage: crawlctl search ORIGIN DESTINATION DEPARTURE_DATE", 1)
	}
	origin, destination, departureDate := c.Args().Get(0), c.Args().Get(1), c.Args().Get(2)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	depDate, err := time.Parse("2006-01-02", departureDate)
	if err != nil {
		return fmt.Errorf("departure date must be YYYY-MM-DD: %w", err)
	}

	req := core.SearchRequest{
		Origin:        origin,
		Destination:   destination,
		DepartureDate: depDate,
		TripType:      core.TripOneWay,
		CabinClass:    core.CabinClass(c.String("cabin")),
		Passengers:    core.PassengerMix{Adults: 1},
		Currency:      cfg.CrawlerConfig.DefaultCurrency,
	}
	if err := req.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.CrawlerConfig.L3Timeout+10*time.Second)
	defer cancel()

	var pgDSN string
	if c.Bool("store") {
		pgDSN = postgresDSN(cfg.PostgresConfig)
	}
	orch, pool, err := buildOrchestrator(ctx, cfg, pgDSN)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}
	defer orch.Dispatch.Close()

	tasks := make([]core.CrawlTask, 0, 4)
	for _, source := range sweepSourcesForSearch() {
		tasks = append(tasks, core.CrawlTask{Request: req, Source: source, Deadline: time.Now().Add(cfg.CrawlerConfig.L3Timeout)})
	}

	payload := orchestration.CrawlParallelPayload{
		Tasks:    tasks,
		Priority: scoring.Priority(c.String("priority")),
		Persist:  c.Bool("store"),
	}
	outcome, err := orch.CrawlParallel(ctx, payload)
	if err != nil {
		return fmt.Errorf("crawl_parallel: %w", err)
	}
	for _, crawlErr := range outcome.CrawlErrors {
		fmt.Fprintln(os.Stderr, "crawl error:", crawlErr)
	}

	switch c.String("format") {
	case "csv":
		return renderCSV(outcome, orch.RefData)
	case "json":
		return renderJSON(outcome)
	default:
		renderTable(outcome, orch.RefData)
		return nil
	}
}

func sweepSourcesForSearch() []core.DataSource {
	return []core.DataSource{core.SourceGoogleProtobuf, core.SourceKiwiAPI, core.SourceGDS, core.SourceDirectCrawl}
}

// toCSVRows flattens the outcome to one row per flight. refData is
// optional: when set (the orchestrator loaded reference data, i.e.
// --store or a future --ref-data-only flag), rows are enriched with
// great-circle distance and cost-per-mile via pkg/geo — display-only,
// never fed back into the scorer's closed 5-factor formula.
func toCSVRows(outcome orchestration.Outcome, refData core.ReferenceData) []csvFlightRow {
	rows := make([]csvFlightRow, 0, len(outcome.Flights))
	for i, f := range outcome.Flights {
		lp := f.LowestNormalizedPrice()
		row := csvFlightRow{
			FlightNumber: f.FlightNumber,
			Airline:      f.AirlineCode,
			Origin:       f.Origin,
			Destination:  f.Destination,
			Departure:    f.DepartureTime.Format(time.RFC3339),
			Arrival:      f.ArrivalTime.Format(time.RFC3339),
			DurationMin:  f.DurationMin,
			Stops:        f.Stops,
			Source:       string(f.Source),
		}
		if lp != nil {
			row.LowestPrice = lp.Amount
			row.Currency = lp.Currency
		}
		if i < len(outcome.Scores) {
			row.Score = outcome.Scores[i].TotalScore
		}
		if refData != nil {
			if from, ok := refData.AirportCoordinates(f.Origin); ok {
				if to, ok := refData.AirportCoordinates(f.Destination); ok {
					row.DistanceMi = geo.Haversine(from.Lat, from.Lon, to.Lat, to.Lon)
					if row.LowestPrice > 0 {
						row.CentsPerMile = geo.CostPerMileCents(row.LowestPrice, row.DistanceMi)
					}
				}
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func renderCSV(outcome orchestration.Outcome, refData core.ReferenceData) error {
	out, err := gocsv.MarshalString(toCSVRows(outcome, refData))
	if err != nil {
		return fmt.Errorf("marshal csv: %w", err)
	}
	fmt.Print(out)
	return nil
}

func renderJSON(outcome orchestration.Outcome) error {
	return encodeJSON(os.Stdout, outcome)
}

func renderTable(outcome orchestration.Outcome, refData core.ReferenceData) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"#", "Flight", "Airline", "Route", "Depart", "Dur (min)", "Stops", "Price", "Source", "Score", "¢/mile"})
	for i, row := range toCSVRows(outcome, refData) {
		score := ""
		if row.Score > 0 {
			score = fmt.Sprintf("%.1f", row.Score)
		}
		costPerMile := ""
		if row.CentsPerMile > 0 {
			costPerMile = fmt.Sprintf("%.1f", row.CentsPerMile)
		}
		t.AppendRow(table.Row{
			i + 1, row.FlightNumber, row.Airline, row.Origin + "->" + row.Destination,
			row.Departure, row.DurationMin, row.Stops,
			fmt.Sprintf("%.2f %s", row.LowestPrice, row.Currency), row.Source, score, costPerMile,
		})
	}
	t.Render()
	fmt.Printf("\n%d flight(s), %d stored\n", len(outcome.Flights), outcome.Stored)
}
