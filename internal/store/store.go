// Package store persists the tracker's state in Postgres. It implements
// the ledger's persistence contract plus the route source and the
// season-ticket roster used by the HTTP API.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"bustracker/internal/fare"
	"bustracker/internal/route"
	"bustracker/internal/season"
	"bustracker/internal/trip"
)

// ErrNotFound reports a lookup miss on a keyed record.
var ErrNotFound = errors.New("store: not found")

type Store struct {
	db *sql.DB
}

// Open connects to Postgres through the pgx stdlib driver with the
// standard pool limits.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &Store{db: db}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error { return s.db.Close() }

// --- trips ---

func (s *Store) ActiveTrip(ctx context.Context, busID string) (*trip.Trip, error) {
	q := `SELECT trip_id, bus_id, route_name, start_time, end_time, status, total_passengers, total_unmatched
	      FROM trips WHERE bus_id = $1 AND status = 'active'
	      ORDER BY start_time DESC LIMIT 1`
	t, err := scanTrip(s.db.QueryRowContext(ctx, q, busID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query active trip: %w", err)
	}
	return t, nil
}

func (s *Store) Trip(ctx context.Context, tripID string) (*trip.Trip, error) {
	q := `SELECT trip_id, bus_id, route_name, start_time, end_time, status, total_passengers, total_unmatched
	      FROM trips WHERE trip_id = $1`
	t, err := scanTrip(s.db.QueryRowContext(ctx, q, tripID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query trip: %w", err)
	}
	return t, nil
}

func (s *Store) InsertTrip(ctx context.Context, t *trip.Trip) error {
	q := `INSERT INTO trips (trip_id, bus_id, route_name, start_time, status)
	      VALUES ($1, $2, $3, $4, $5)
	      ON CONFLICT (trip_id) DO UPDATE SET status = EXCLUDED.status, route_name = EXCLUDED.route_name`
	_, err := s.db.ExecContext(ctx, q, t.ID, t.BusID, t.RouteName, t.StartTime, t.Status)
	if err != nil {
		return fmt.Errorf("insert trip: %w", err)
	}
	return nil
}

func (s *Store) CompleteTrip(ctx context.Context, tripID string, end time.Time, passengers, unmatched int) error {
	q := `UPDATE trips SET status = 'completed', end_time = $2, total_passengers = $3, total_unmatched = $4
	      WHERE trip_id = $1`
	_, err := s.db.ExecContext(ctx, q, tripID, end, passengers, unmatched)
	if err != nil {
		return fmt.Errorf("complete trip: %w", err)
	}
	return nil
}

// RecentTrips lists the newest trips for a bus.
func (s *Store) RecentTrips(ctx context.Context, busID string, limit int) ([]trip.Trip, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `SELECT trip_id, bus_id, route_name, start_time, end_time, status, total_passengers, total_unmatched
	      FROM trips WHERE bus_id = $1 ORDER BY start_time DESC LIMIT $2`
	rows, err := s.db.QueryContext(ctx, q, busID, limit)
	if err != nil {
		return nil, fmt.Errorf("query trips: %w", err)
	}
	defer rows.Close()
	var out []trip.Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrip(r rowScanner) (*trip.Trip, error) {
	var t trip.Trip
	var end sql.NullTime
	if err := r.Scan(&t.ID, &t.BusID, &t.RouteName, &t.StartTime, &end, &t.Status, &t.TotalPassengers, &t.TotalUnmatched); err != nil {
		return nil, err
	}
	if end.Valid {
		e := end.Time
		t.EndTime = &e
	}
	return &t, nil
}

// --- entry buffer ---

func (s *Store) InsertEntry(ctx context.Context, e *trip.EntryRecord) error {
	emb, err := json.Marshal(e.Embedding)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}
	loc, err := json.Marshal(e.EntryLocation)
	if err != nil {
		return fmt.Errorf("marshal location: %w", err)
	}
	var hint []byte
	if e.SeasonHint != nil {
		if hint, err = json.Marshal(e.SeasonHint); err != nil {
			return fmt.Errorf("marshal season hint: %w", err)
		}
	}
	q := `INSERT INTO entry_buffer
	      (id, trip_id, bus_id, route_name, face_id, embedding, entry_location, entry_timestamp, season_hint, created_at)
	      VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err = s.db.ExecContext(ctx, q, e.ID, e.TripID, e.BusID, e.RouteName, e.FaceID,
		emb, loc, e.EntryTimestamp, nullJSON(hint), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

func (s *Store) OpenEntries(ctx context.Context, busID, tripID string, since time.Time) ([]trip.EntryRecord, error) {
	q := `SELECT id, trip_id, bus_id, route_name, face_id, embedding, entry_location, entry_timestamp, season_hint, created_at
	      FROM entry_buffer
	      WHERE bus_id = $1 AND trip_id = $2 AND ($3::timestamptz IS NULL OR entry_timestamp >= $3)
	      ORDER BY entry_timestamp`
	var sinceArg any
	if !since.IsZero() {
		sinceArg = since
	}
	rows, err := s.db.QueryContext(ctx, q, busID, tripID, sinceArg)
	if err != nil {
		return nil, fmt.Errorf("query open entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *Store) OpenEntriesForBus(ctx context.Context, busID string) ([]trip.EntryRecord, error) {
	q := `SELECT id, trip_id, bus_id, route_name, face_id, embedding, entry_location, entry_timestamp, season_hint, created_at
	      FROM entry_buffer WHERE bus_id = $1 ORDER BY entry_timestamp`
	rows, err := s.db.QueryContext(ctx, q, busID)
	if err != nil {
		return nil, fmt.Errorf("query bus entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *Store) StaleEntries(ctx context.Context, busID string, before time.Time) ([]trip.EntryRecord, error) {
	q := `SELECT id, trip_id, bus_id, route_name, face_id, embedding, entry_location, entry_timestamp, season_hint, created_at
	      FROM entry_buffer WHERE bus_id = $1 AND entry_timestamp < $2 ORDER BY entry_timestamp`
	rows, err := s.db.QueryContext(ctx, q, busID, before)
	if err != nil {
		return nil, fmt.Errorf("query stale entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// DeleteEntry removes an entry and reports whether this caller deleted
// it. The single DELETE makes the consume atomic: of two concurrent
// exits matching the same entry, exactly one sees true.
func (s *Store) DeleteEntry(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM entry_buffer WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) CountOpenEntries(ctx context.Context, tripID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entry_buffer WHERE trip_id = $1`, tripID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count open entries: %w", err)
	}
	return n, nil
}

func scanEntries(rows *sql.Rows) ([]trip.EntryRecord, error) {
	var out []trip.EntryRecord
	for rows.Next() {
		var e trip.EntryRecord
		var emb, loc []byte
		var hint sql.Null[[]byte]
		if err := rows.Scan(&e.ID, &e.TripID, &e.BusID, &e.RouteName, &e.FaceID,
			&emb, &loc, &e.EntryTimestamp, &hint, &e.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(emb, &e.Embedding); err != nil {
			return nil, fmt.Errorf("decode embedding for %s: %w", e.ID, err)
		}
		if err := json.Unmarshal(loc, &e.EntryLocation); err != nil {
			return nil, fmt.Errorf("decode location for %s: %w", e.ID, err)
		}
		if hint.Valid && len(hint.V) > 0 {
			var h trip.SeasonHint
			if err := json.Unmarshal(hint.V, &h); err != nil {
				return nil, fmt.Errorf("decode season hint for %s: %w", e.ID, err)
			}
			e.SeasonHint = &h
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// --- journeys ---

func (s *Store) InsertJourney(ctx context.Context, j *trip.Journey) error {
	entryLoc, err := json.Marshal(j.EntryLocation)
	if err != nil {
		return fmt.Errorf("marshal entry location: %w", err)
	}
	exitLoc, err := json.Marshal(j.ExitLocation)
	if err != nil {
		return fmt.Errorf("marshal exit location: %w", err)
	}
	dist, err := json.Marshal(j.Distance)
	if err != nil {
		return fmt.Errorf("marshal distance: %w", err)
	}
	var seasonInfo []byte
	if j.SeasonTicket != nil {
		if seasonInfo, err = json.Marshal(j.SeasonTicket); err != nil {
			return fmt.Errorf("marshal season info: %w", err)
		}
	}
	q := `INSERT INTO journeys
	      (id, trip_id, bus_id, route_name, entry_location, exit_location,
	       entry_timestamp, exit_timestamp, duration_minutes, similarity,
	       entry_face_id, exit_face_id, distance_info, is_season_ticket,
	       season_info, price, stage_number, created_at)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`
	_, err = s.db.ExecContext(ctx, q, j.ID, j.TripID, j.BusID, j.RouteName,
		entryLoc, exitLoc, j.EntryTimestamp, j.ExitTimestamp, j.DurationMinutes,
		j.Similarity, j.EntryFaceID, j.ExitFaceID, dist, j.IsSeasonTicket,
		nullJSON(seasonInfo), j.Price, j.FareStage, j.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert journey: %w", err)
	}
	return nil
}

func (s *Store) CountJourneys(ctx context.Context, tripID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM journeys WHERE trip_id = $1`, tripID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count journeys: %w", err)
	}
	return n, nil
}

// Journeys lists finalized journeys, optionally filtered by trip.
func (s *Store) Journeys(ctx context.Context, tripID string, limit int) ([]trip.Journey, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT id, trip_id, bus_id, route_name, entry_location, exit_location,
	             entry_timestamp, exit_timestamp, duration_minutes, similarity,
	             entry_face_id, exit_face_id, distance_info, is_season_ticket,
	             season_info, price, stage_number, created_at
	      FROM journeys
	      WHERE ($1 = '' OR trip_id = $1)
	      ORDER BY created_at DESC LIMIT $2`
	rows, err := s.db.QueryContext(ctx, q, tripID, limit)
	if err != nil {
		return nil, fmt.Errorf("query journeys: %w", err)
	}
	defer rows.Close()

	var out []trip.Journey
	for rows.Next() {
		var j trip.Journey
		var entryLoc, exitLoc, dist []byte
		var seasonInfo sql.Null[[]byte]
		if err := rows.Scan(&j.ID, &j.TripID, &j.BusID, &j.RouteName, &entryLoc, &exitLoc,
			&j.EntryTimestamp, &j.ExitTimestamp, &j.DurationMinutes, &j.Similarity,
			&j.EntryFaceID, &j.ExitFaceID, &dist, &j.IsSeasonTicket,
			&seasonInfo, &j.Price, &j.FareStage, &j.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(entryLoc, &j.EntryLocation); err != nil {
			return nil, fmt.Errorf("decode entry location for %s: %w", j.ID, err)
		}
		if err := json.Unmarshal(exitLoc, &j.ExitLocation); err != nil {
			return nil, fmt.Errorf("decode exit location for %s: %w", j.ID, err)
		}
		if err := json.Unmarshal(dist, &j.Distance); err != nil {
			return nil, fmt.Errorf("decode distance for %s: %w", j.ID, err)
		}
		if seasonInfo.Valid && len(seasonInfo.V) > 0 {
			var info trip.SeasonTicketInfo
			if err := json.Unmarshal(seasonInfo.V, &info); err != nil {
				return nil, fmt.Errorf("decode season info for %s: %w", j.ID, err)
			}
			j.SeasonTicket = &info
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// --- unmatched ---

func (s *Store) InsertUnmatched(ctx context.Context, u *trip.UnmatchedRecord) error {
	emb, err := json.Marshal(u.Embedding)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}
	loc, err := json.Marshal(u.Location)
	if err != nil {
		return fmt.Errorf("marshal location: %w", err)
	}
	q := `INSERT INTO unmatched_records
	      (id, trip_id, bus_id, route_name, record_type, face_id, embedding,
	       location, record_ts, best_similarity, reason, created_at)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	_, err = s.db.ExecContext(ctx, q, u.ID, u.TripID, u.BusID, u.RouteName, u.Type,
		u.FaceID, emb, loc, u.Timestamp, u.BestSimilarity, u.Reason, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert unmatched: %w", err)
	}
	return nil
}

func (s *Store) Unmatched(ctx context.Context, tripID string, limit int) ([]trip.UnmatchedRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT id, trip_id, bus_id, route_name, record_type, face_id, embedding,
	             location, record_ts, best_similarity, reason, created_at
	      FROM unmatched_records
	      WHERE ($1 = '' OR trip_id = $1)
	      ORDER BY created_at DESC LIMIT $2`
	rows, err := s.db.QueryContext(ctx, q, tripID, limit)
	if err != nil {
		return nil, fmt.Errorf("query unmatched: %w", err)
	}
	defer rows.Close()

	var out []trip.UnmatchedRecord
	for rows.Next() {
		var u trip.UnmatchedRecord
		var emb, loc []byte
		if err := rows.Scan(&u.ID, &u.TripID, &u.BusID, &u.RouteName, &u.Type,
			&u.FaceID, &emb, &loc, &u.Timestamp, &u.BestSimilarity, &u.Reason, &u.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(emb, &u.Embedding); err != nil {
			return nil, fmt.Errorf("decode embedding for %s: %w", u.ID, err)
		}
		if err := json.Unmarshal(loc, &u.Location); err != nil {
			return nil, fmt.Errorf("decode location for %s: %w", u.ID, err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// --- season members ---

func (s *Store) ActiveMembers(ctx context.Context, at time.Time) ([]season.Member, error) {
	q := `SELECT member_id, name, embedding, ticket_type, valid_from, valid_until, is_active, segments, total_trips, last_used
	      FROM season_members
	      WHERE is_active AND valid_from <= $1 AND valid_until >= $1`
	rows, err := s.db.QueryContext(ctx, q, at)
	if err != nil {
		return nil, fmt.Errorf("query active members: %w", err)
	}
	defer rows.Close()
	return scanMembers(rows)
}

func (s *Store) Members(ctx context.Context) ([]season.Member, error) {
	q := `SELECT member_id, name, embedding, ticket_type, valid_from, valid_until, is_active, segments, total_trips, last_used
	      FROM season_members ORDER BY member_id`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()
	return scanMembers(rows)
}

// UpsertMember enrolls or updates a season-ticket member.
func (s *Store) UpsertMember(ctx context.Context, m *season.Member) error {
	emb, err := json.Marshal(m.Embedding)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}
	segs, err := json.Marshal(m.Segments)
	if err != nil {
		return fmt.Errorf("marshal segments: %w", err)
	}
	q := `INSERT INTO season_members
	      (member_id, name, embedding, ticket_type, valid_from, valid_until, is_active, segments)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	      ON CONFLICT (member_id) DO UPDATE SET
	        name = EXCLUDED.name, embedding = EXCLUDED.embedding,
	        ticket_type = EXCLUDED.ticket_type, valid_from = EXCLUDED.valid_from,
	        valid_until = EXCLUDED.valid_until, is_active = EXCLUDED.is_active,
	        segments = EXCLUDED.segments`
	_, err = s.db.ExecContext(ctx, q, m.MemberID, m.Name, emb, m.TicketType,
		m.ValidFrom, m.ValidUntil, m.Active, segs)
	if err != nil {
		return fmt.Errorf("upsert member: %w", err)
	}
	return nil
}

// DeactivateMember revokes a ticket without losing its history.
func (s *Store) DeactivateMember(ctx context.Context, memberID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE season_members SET is_active = FALSE WHERE member_id = $1`, memberID)
	if err != nil {
		return fmt.Errorf("deactivate member: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) RecordMemberUse(ctx context.Context, memberID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE season_members SET total_trips = total_trips + 1, last_used = $2 WHERE member_id = $1`,
		memberID, at)
	if err != nil {
		return fmt.Errorf("record member use: %w", err)
	}
	return nil
}

func scanMembers(rows *sql.Rows) ([]season.Member, error) {
	var out []season.Member
	for rows.Next() {
		var m season.Member
		var emb, segs []byte
		var lastUsed sql.NullTime
		if err := rows.Scan(&m.MemberID, &m.Name, &emb, &m.TicketType,
			&m.ValidFrom, &m.ValidUntil, &m.Active, &segs, &m.TotalTrips, &lastUsed); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(emb, &m.Embedding); err != nil {
			return nil, fmt.Errorf("decode embedding for %s: %w", m.MemberID, err)
		}
		if err := json.Unmarshal(segs, &m.Segments); err != nil {
			return nil, fmt.Errorf("decode segments for %s: %w", m.MemberID, err)
		}
		if lastUsed.Valid {
			t := lastUsed.Time
			m.LastUsed = &t
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// --- fares ---

func (s *Store) ActiveFareStages(ctx context.Context) ([]fare.Stage, error) {
	q := `SELECT stage_number, fare, is_active FROM fare_stages WHERE is_active ORDER BY stage_number`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query fare stages: %w", err)
	}
	defer rows.Close()
	var out []fare.Stage
	for rows.Next() {
		var st fare.Stage
		if err := rows.Scan(&st.Number, &st.Fare, &st.Active); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// --- routes ---

// ListActiveRoutes loads all active routes with their stops. Satisfies
// the route cache's source contract.
func (s *Store) ListActiveRoutes(ctx context.Context) ([]route.Route, error) {
	q := `SELECT route_id, route_name, direction, from_location, to_location, stops, total_distance_km, is_active
	      FROM routes WHERE is_active ORDER BY route_id`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query routes: %w", err)
	}
	defer rows.Close()
	var out []route.Route
	for rows.Next() {
		var r route.Route
		var stops []byte
		if err := rows.Scan(&r.ID, &r.Name, &r.Direction, &r.FromLocation, &r.ToLocation,
			&stops, &r.TotalDistanceKM, &r.Active); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(stops, &r.Stops); err != nil {
			return nil, fmt.Errorf("decode stops for %s: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpsertRoute stores a route definition with its stop list.
func (s *Store) UpsertRoute(ctx context.Context, r *route.Route) error {
	stops, err := json.Marshal(r.Stops)
	if err != nil {
		return fmt.Errorf("marshal stops: %w", err)
	}
	q := `INSERT INTO routes (route_id, route_name, direction, from_location, to_location, stops, total_distance_km, is_active)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	      ON CONFLICT (route_id) DO UPDATE SET
	        route_name = EXCLUDED.route_name, direction = EXCLUDED.direction,
	        from_location = EXCLUDED.from_location, to_location = EXCLUDED.to_location,
	        stops = EXCLUDED.stops, total_distance_km = EXCLUDED.total_distance_km,
	        is_active = EXCLUDED.is_active`
	_, err = s.db.ExecContext(ctx, q, r.ID, r.Name, r.Direction, r.FromLocation,
		r.ToLocation, stops, r.TotalDistanceKM, r.Active)
	if err != nil {
		return fmt.Errorf("upsert route: %w", err)
	}
	return nil
}

// --- timetable ---

// Departures returns the enabled departure times (HH:MM, local) for a
// bus, in timetable order.
func (s *Store) Departures(ctx context.Context, busID string) ([]string, error) {
	q := `SELECT departure FROM timetable WHERE bus_id = $1 AND enabled ORDER BY departure`
	rows, err := s.db.QueryContext(ctx, q, busID)
	if err != nil {
		return nil, fmt.Errorf("query timetable: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// --- aggregates ---

func (s *Store) Counts(ctx context.Context, busID string) (trip.Stats, error) {
	var st trip.Stats
	q := `SELECT
	        (SELECT COUNT(*) FROM journeys WHERE bus_id = $1),
	        (SELECT COUNT(*) FROM unmatched_records WHERE bus_id = $1),
	        (SELECT COUNT(*) FROM entry_buffer WHERE bus_id = $1),
	        (SELECT COUNT(*) FROM trips WHERE bus_id = $1),
	        (SELECT COUNT(*) FROM season_members WHERE is_active)`
	err := s.db.QueryRowContext(ctx, q, busID).Scan(
		&st.TotalPassengers, &st.TotalUnmatched, &st.OpenEntries, &st.TotalTrips, &st.SeasonMembers)
	if err != nil {
		return trip.Stats{}, fmt.Errorf("query counts: %w", err)
	}
	return st, nil
}

func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

var _ trip.Store = (*Store)(nil)
var _ route.Source = (*Store)(nil)
