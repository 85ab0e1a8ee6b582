// Package store persists merged, scored NormalizedFlight rows into
// Postgres (C9 of spec.md §4.9), grounded 1:1 on
// original_source/pipeline/store.py's FlightStore: warm airline/airport
// code caches once, skip any flight referencing an unknown code, assign a
// fresh UUID per flight, and commit the whole batch in one transaction.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gilby125/flightcrawler/core"
	"github.com/gilby125/flightcrawler/pkg/logger"
)

// FlightStore writes NormalizedFlight rows into the flights/prices tables.
// The airline/airport code caches are warmed lazily on first use and never
// invalidated; a long-lived process restarts the store to pick up new
// reference data.
type FlightStore struct {
	pool *pgxpool.Pool

	mu           sync.RWMutex
	airlineCache map[string]string
	airportCache map[string]string
}

// NewFlightStore constructs a store bound to pool. It does not warm caches
// eagerly; the first call to StoreFlights does.
func NewFlightStore(pool *pgxpool.Pool) *FlightStore {
	return &FlightStore{pool: pool}
}

func (s *FlightStore) warmCache(ctx context.Context) error {
	s.mu.RLock()
	warmed := s.airlineCache != nil
	s.mu.RUnlock()
	if warmed {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.airlineCache != nil {
		return nil
	}

	airlines := make(map[string]string)
	rows, err := s.pool.Query(ctx, `SELECT code, id FROM airlines`)
	if err != nil {
		return fmt.Errorf("warm airline cache: %w", err)
	}
	for rows.Next() {
		var code, id string
		if err := rows.Scan(&code, &id); err != nil {
			rows.Close()
			return fmt.Errorf("warm airline cache: scan: %w", err)
		}
		airlines[code] = id
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("warm airline cache: %w", err)
	}

	airports := make(map[string]string)
	rows, err = s.pool.Query(ctx, `SELECT code, id FROM airports`)
	if err != nil {
		return fmt.Errorf("warm airport cache: %w", err)
	}
	for rows.Next() {
		var code, id string
		if err := rows.Scan(&code, &id); err != nil {
			rows.Close()
			return fmt.Errorf("warm airport cache: scan: %w", err)
		}
		airports[code] = id
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("warm airport cache: %w", err)
	}

	s.airlineCache = airlines
	s.airportCache = airports
	logger.Debug("reference cache warmed", "airlines", len(airlines), "airports", len(airports))
	return nil
}

// StoreFlights persists flights, skipping any row whose airline or airport
// code is unrecognized, and returns the count actually stored. Every
// flight and its prices are written in one transaction (spec.md §4.9
// "append-only, single transaction per batch").
func (s *FlightStore) StoreFlights(ctx context.Context, flights []core.NormalizedFlight) (int, error) {
	if err := s.warmCache(ctx); err != nil {
		return 0, err
	}

	s.mu.RLock()
	airlineCache := s.airlineCache
	airportCache := s.airportCache
	s.mu.RUnlock()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("store flights: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	stored := 0

	for _, nf := range flights {
		airlineID, ok := airlineCache[nf.AirlineCode]
		if !ok {
			logger.Warn("unknown airline code, skipping flight", "airline_code", nf.AirlineCode, "flight_number", nf.FlightNumber)
			continue
		}
		originID, ok := airportCache[nf.Origin]
		if !ok {
			logger.Warn("unknown origin airport code, skipping flight", "code", nf.Origin, "flight_number", nf.FlightNumber)
			continue
		}
		destID, ok := airportCache[nf.Destination]
		if !ok {
			logger.Warn("unknown destination airport code, skipping flight", "code", nf.Destination, "flight_number", nf.FlightNumber)
			continue
		}

		flightID := uuid.New().String()
		batch.Queue(`INSERT INTO flights
			(id, airline_id, flight_number, origin_airport_id, destination_airport_id,
			 departure_time, arrival_time, duration_minutes, aircraft_type, cabin_class,
			 crawled_at, source)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
			flightID, airlineID, nf.FlightNumber, originID, destID,
			nf.DepartureTime, nf.ArrivalTime, nf.DurationMin, nf.AircraftType, string(nf.CabinClass),
			nf.CrawledAt, string(nf.Source),
		)

		for _, np := range nf.Prices {
			batch.Queue(`INSERT INTO prices
				(id, flight_id, price_amount, currency, fare_class, includes_baggage,
				 includes_meal, seat_selection_included, crawled_at, booking_url, source)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
				uuid.New().String(), flightID, np.Amount, np.Currency, np.FareClass,
				np.IncludesBaggage, np.IncludesMeal, np.SeatSelectionIncluded, np.CrawledAt,
				np.BookingURL, string(np.Source),
			)
		}

		stored++
	}

	if batch.Len() > 0 {
		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return 0, fmt.Errorf("store flights: batch exec %d/%d: %w", i+1, batch.Len(), err)
			}
		}
		if err := br.Close(); err != nil {
			return 0, fmt.Errorf("store flights: close batch: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return 0, fmt.Errorf("store flights: commit: %w", err)
		}
	}

	logger.Info("stored flights", "count", stored, "rows", batch.Len())
	return stored, nil
}
