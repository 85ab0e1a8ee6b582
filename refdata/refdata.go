// Package refdata implements core.ReferenceData over Postgres: airline
// and airport code-to-ID lookups, per-airline classification, and
// per-airline/cabin seat specs, all loaded once and cached in memory
// (grounded, like store.FlightStore, on original_source's warm-cache
// pattern in pipeline/store.py).
package refdata

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gilby125/flightcrawler/core"
	"github.com/gilby125/flightcrawler/pkg/logger"
)

// Postgres is a core.ReferenceData backed by a connection pool, loaded
// once via Load and safe for concurrent reads afterward.
type Postgres struct {
	pool *pgxpool.Pool

	mu          sync.RWMutex
	airlines    map[string]string
	airports    map[string]string
	coordinates map[string]core.Coordinates
	classes     map[string]core.AirlineClass
	seatSpecs   map[string]core.SeatSpec // keyed "{airline}_{cabin}"
}

// NewPostgres constructs a reference-data store bound to pool. Call Load
// before first use; an unloaded store reports every lookup as a miss.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{
		pool:        pool,
		airlines:    map[string]string{},
		airports:    map[string]string{},
		coordinates: map[string]core.Coordinates{},
		classes:     map[string]core.AirlineClass{},
		seatSpecs:   map[string]core.SeatSpec{},
	}
}

// Load populates every cache from the database. It is safe to call again
// to pick up reference-data changes; readers see either the old or new
// maps atomically, never a partial mix.
func (p *Postgres) Load(ctx context.Context) error {
	airlines := map[string]string{}
	classes := map[string]core.AirlineClass{}
	rows, err := p.pool.Query(ctx, `SELECT code, id, class FROM airlines`)
	if err != nil {
		return fmt.Errorf("refdata: load airlines: %w", err)
	}
	for rows.Next() {
		var code, id, class string
		if err := rows.Scan(&code, &id, &class); err != nil {
			rows.Close()
			return fmt.Errorf("refdata: scan airline: %w", err)
		}
		airlines[code] = id
		if class != "" {
			classes[code] = core.AirlineClass(class)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("refdata: load airlines: %w", err)
	}

	airports := map[string]string{}
	coordinates := map[string]core.Coordinates{}
	rows, err = p.pool.Query(ctx, `SELECT code, id, lat, lon FROM airports`)
	if err != nil {
		return fmt.Errorf("refdata: load airports: %w", err)
	}
	for rows.Next() {
		var code, id string
		var lat, lon *float64
		if err := rows.Scan(&code, &id, &lat, &lon); err != nil {
			rows.Close()
			return fmt.Errorf("refdata: scan airport: %w", err)
		}
		airports[code] = id
		if lat != nil && lon != nil {
			coordinates[code] = core.Coordinates{Lat: *lat, Lon: *lon}
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("refdata: load airports: %w", err)
	}

	seatSpecs := map[string]core.SeatSpec{}
	rows, err = p.pool.Query(ctx, `SELECT airline_code, cabin_class, pitch_inches, width_inches FROM seat_specs`)
	if err != nil {
		return fmt.Errorf("refdata: load seat specs: %w", err)
	}
	for rows.Next() {
		var code, cabin string
		var pitch, width float64
		if err := rows.Scan(&code, &cabin, &pitch, &width); err != nil {
			rows.Close()
			return fmt.Errorf("refdata: scan seat spec: %w", err)
		}
		seatSpecs[code+"_"+cabin] = core.SeatSpec{PitchInches: pitch, WidthInches: width}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("refdata: load seat specs: %w", err)
	}

	p.mu.Lock()
	p.airlines, p.airports, p.coordinates, p.classes, p.seatSpecs = airlines, airports, coordinates, classes, seatSpecs
	p.mu.Unlock()

	logger.Info("reference data loaded", "airlines", len(airlines), "airports", len(airports), "seat_specs", len(seatSpecs))
	return nil
}

func (p *Postgres) AirlineID(code string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	id, ok := p.airlines[code]
	return id, ok
}

func (p *Postgres) AirportID(code string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	id, ok := p.airports[code]
	return id, ok
}

func (p *Postgres) SeatSpec(airlineCode string, cabin core.CabinClass) (core.SeatSpec, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	spec, ok := p.seatSpecs[airlineCode+"_"+string(cabin)]
	return spec, ok
}

func (p *Postgres) AirlineClass(code string) (core.AirlineClass, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	class, ok := p.classes[code]
	return class, ok
}

func (p *Postgres) AirportCoordinates(code string) (core.Coordinates, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.coordinates[code]
	return c, ok
}

var _ core.ReferenceData = (*Postgres)(nil)
