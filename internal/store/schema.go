package store

import (
	"context"
	"fmt"
	"log"

	"bustracker/internal/fare"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS trips (
		trip_id          TEXT PRIMARY KEY,
		bus_id           TEXT NOT NULL,
		route_name       TEXT NOT NULL DEFAULT '',
		start_time       TIMESTAMPTZ NOT NULL,
		end_time         TIMESTAMPTZ,
		status           TEXT NOT NULL DEFAULT 'active',
		total_passengers INTEGER NOT NULL DEFAULT 0,
		total_unmatched  INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trips_bus_status ON trips (bus_id, status)`,

	`CREATE TABLE IF NOT EXISTS entry_buffer (
		id              TEXT PRIMARY KEY,
		trip_id         TEXT NOT NULL,
		bus_id          TEXT NOT NULL,
		route_name      TEXT NOT NULL DEFAULT '',
		face_id         INTEGER NOT NULL,
		embedding       JSONB NOT NULL,
		entry_location  JSONB NOT NULL,
		entry_timestamp TIMESTAMPTZ NOT NULL,
		season_hint     JSONB,
		created_at      TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_entry_buffer_trip ON entry_buffer (bus_id, trip_id)`,
	`CREATE INDEX IF NOT EXISTS idx_entry_buffer_ts ON entry_buffer (entry_timestamp)`,

	`CREATE TABLE IF NOT EXISTS journeys (
		id               TEXT PRIMARY KEY,
		trip_id          TEXT NOT NULL,
		bus_id           TEXT NOT NULL,
		route_name       TEXT NOT NULL DEFAULT '',
		entry_location   JSONB NOT NULL,
		exit_location    JSONB NOT NULL,
		entry_timestamp  TIMESTAMPTZ NOT NULL,
		exit_timestamp   TIMESTAMPTZ NOT NULL,
		duration_minutes DOUBLE PRECISION NOT NULL,
		similarity       DOUBLE PRECISION NOT NULL,
		entry_face_id    INTEGER NOT NULL,
		exit_face_id     INTEGER NOT NULL,
		distance_info    JSONB NOT NULL,
		is_season_ticket BOOLEAN NOT NULL DEFAULT FALSE,
		season_info      JSONB,
		price            DOUBLE PRECISION NOT NULL DEFAULT 0,
		stage_number     INTEGER NOT NULL DEFAULT 0,
		created_at       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_journeys_trip ON journeys (trip_id)`,
	`CREATE INDEX IF NOT EXISTS idx_journeys_created ON journeys (created_at)`,

	`CREATE TABLE IF NOT EXISTS unmatched_records (
		id              TEXT PRIMARY KEY,
		trip_id         TEXT NOT NULL,
		bus_id          TEXT NOT NULL,
		route_name      TEXT NOT NULL DEFAULT '',
		record_type     TEXT NOT NULL,
		face_id         INTEGER NOT NULL,
		embedding       JSONB NOT NULL,
		location        JSONB NOT NULL,
		record_ts       TIMESTAMPTZ NOT NULL,
		best_similarity DOUBLE PRECISION NOT NULL DEFAULT 0,
		reason          TEXT NOT NULL DEFAULT '',
		created_at      TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_unmatched_trip ON unmatched_records (trip_id)`,

	`CREATE TABLE IF NOT EXISTS season_members (
		member_id   TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		embedding   JSONB NOT NULL,
		ticket_type TEXT NOT NULL DEFAULT 'monthly',
		valid_from  TIMESTAMPTZ NOT NULL,
		valid_until TIMESTAMPTZ NOT NULL,
		is_active   BOOLEAN NOT NULL DEFAULT TRUE,
		segments    JSONB NOT NULL DEFAULT '[]',
		total_trips INTEGER NOT NULL DEFAULT 0,
		last_used   TIMESTAMPTZ
	)`,

	`CREATE TABLE IF NOT EXISTS fare_stages (
		stage_number INTEGER PRIMARY KEY,
		fare         DOUBLE PRECISION NOT NULL,
		is_active    BOOLEAN NOT NULL DEFAULT TRUE
	)`,

	`CREATE TABLE IF NOT EXISTS routes (
		route_id          TEXT PRIMARY KEY,
		route_name        TEXT NOT NULL,
		direction         TEXT NOT NULL DEFAULT '',
		from_location     TEXT NOT NULL DEFAULT '',
		to_location       TEXT NOT NULL DEFAULT '',
		stops             JSONB NOT NULL DEFAULT '[]',
		total_distance_km DOUBLE PRECISION NOT NULL DEFAULT 0,
		is_active         BOOLEAN NOT NULL DEFAULT TRUE
	)`,

	`CREATE TABLE IF NOT EXISTS timetable (
		id        SERIAL PRIMARY KEY,
		bus_id    TEXT NOT NULL,
		departure TEXT NOT NULL,
		enabled   BOOLEAN NOT NULL DEFAULT TRUE,
		UNIQUE (bus_id, departure)
	)`,
}

// EnsureSchema creates all tables and indexes if missing. Safe to run on
// every startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// SeedFareStages inserts the default tariff table when fare_stages is
// empty, so a fresh deployment charges sensible fares immediately.
func (s *Store) SeedFareStages(ctx context.Context) error {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM fare_stages`).Scan(&n); err != nil {
		return fmt.Errorf("count fare stages: %w", err)
	}
	if n > 0 {
		return nil
	}
	for _, st := range fare.DefaultStages() {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO fare_stages (stage_number, fare, is_active) VALUES ($1, $2, $3)
			 ON CONFLICT (stage_number) DO NOTHING`,
			st.Number, st.Fare, st.Active)
		if err != nil {
			return fmt.Errorf("seed fare stage %d: %w", st.Number, err)
		}
	}
	log.Printf("seeded %d fare stages", len(fare.DefaultStages()))
	return nil
}

// SeedTimetable inserts default departures for the bus when it has no
// timetable rows yet.
func (s *Store) SeedTimetable(ctx context.Context, busID string, departures []string) error {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM timetable WHERE bus_id = $1`, busID).Scan(&n)
	if err != nil {
		return fmt.Errorf("count timetable: %w", err)
	}
	if n > 0 {
		return nil
	}
	for _, dep := range departures {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO timetable (bus_id, departure, enabled) VALUES ($1, $2, TRUE)
			 ON CONFLICT (bus_id, departure) DO NOTHING`, busID, dep)
		if err != nil {
			return fmt.Errorf("seed timetable %s: %w", dep, err)
		}
	}
	log.Printf("seeded timetable for %s: %v", busID, departures)
	return nil
}
