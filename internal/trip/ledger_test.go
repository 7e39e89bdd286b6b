package trip

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bustracker/internal/face"
	"bustracker/internal/fare"
	"bustracker/internal/geo"
	"bustracker/internal/route"
	"bustracker/internal/season"
)

// memStore is an in-memory Store for ledger tests.
type memStore struct {
	mu        sync.Mutex
	trips     map[string]*Trip
	entries   map[string]EntryRecord
	journeys  []Journey
	unmatched []UnmatchedRecord
	members   []season.Member
	stages    []fare.Stage
	memberUse map[string]int
}

func newMemStore() *memStore {
	return &memStore{
		trips:     map[string]*Trip{},
		entries:   map[string]EntryRecord{},
		memberUse: map[string]int{},
	}
}

func (s *memStore) ActiveTrip(ctx context.Context, busID string) (*Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.trips {
		if t.BusID == busID && t.Status == StatusActive {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) InsertTrip(ctx context.Context, t *Trip) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.trips[t.ID] = &cp
	return nil
}

func (s *memStore) CompleteTrip(ctx context.Context, tripID string, end time.Time, passengers, unmatched int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trips[tripID]
	if !ok {
		return errors.New("trip not found")
	}
	t.Status = StatusCompleted
	t.EndTime = &end
	t.TotalPassengers = passengers
	t.TotalUnmatched = unmatched
	return nil
}

func (s *memStore) InsertEntry(ctx context.Context, e *EntryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.ID] = *e
	return nil
}

func (s *memStore) OpenEntries(ctx context.Context, busID, tripID string, since time.Time) ([]EntryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []EntryRecord
	for _, e := range s.entries {
		if e.BusID != busID || e.TripID != tripID {
			continue
		}
		if !since.IsZero() && e.EntryTimestamp.Before(since) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *memStore) OpenEntriesForBus(ctx context.Context, busID string) ([]EntryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []EntryRecord
	for _, e := range s.entries {
		if e.BusID == busID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *memStore) StaleEntries(ctx context.Context, busID string, before time.Time) ([]EntryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []EntryRecord
	for _, e := range s.entries {
		if e.BusID == busID && e.EntryTimestamp.Before(before) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *memStore) DeleteEntry(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return false, nil
	}
	delete(s.entries, id)
	return true, nil
}

func (s *memStore) CountOpenEntries(ctx context.Context, tripID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.entries {
		if e.TripID == tripID {
			n++
		}
	}
	return n, nil
}

func (s *memStore) InsertJourney(ctx context.Context, j *Journey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.journeys = append(s.journeys, *j)
	return nil
}

func (s *memStore) CountJourneys(ctx context.Context, tripID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, j := range s.journeys {
		if j.TripID == tripID {
			n++
		}
	}
	return n, nil
}

func (s *memStore) InsertUnmatched(ctx context.Context, u *UnmatchedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unmatched = append(s.unmatched, *u)
	return nil
}

func (s *memStore) ActiveMembers(ctx context.Context, at time.Time) ([]season.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []season.Member
	for i := range s.members {
		if s.members[i].ValidAt(at) {
			out = append(out, s.members[i])
		}
	}
	return out, nil
}

func (s *memStore) RecordMemberUse(ctx context.Context, memberID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memberUse[memberID]++
	return nil
}

func (s *memStore) ActiveFareStages(ctx context.Context) ([]fare.Stage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stages, nil
}

func (s *memStore) Counts(ctx context.Context, busID string) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		TotalPassengers: len(s.journeys),
		TotalUnmatched:  len(s.unmatched),
		OpenEntries:     len(s.entries),
		TotalTrips:      len(s.trips),
		SeasonMembers:   len(s.members),
	}, nil
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type stubDistance struct {
	res DistanceResult
	err error
}

func (d stubDistance) RoadDistance(ctx context.Context, from, to geo.Point) (DistanceResult, error) {
	return d.res, d.err
}

type nopGeocoder struct{}

func (nopGeocoder) LocationName(ctx context.Context, p geo.Point) (string, bool) { return "", false }

type emptyRoutes struct{}

func (emptyRoutes) ListActiveRoutes(ctx context.Context) ([]route.Route, error) { return nil, nil }

func newTestLedger(t *testing.T, store *memStore, clock *fixedClock, dist DistanceProvider) *Ledger {
	t.Helper()
	routes := route.NewStore(emptyRoutes{})
	if err := routes.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	if dist == nil {
		dist = stubDistance{res: DistanceResult{DistanceKM: 10, DurationMinutes: 20, Provider: "osrm"}}
	}
	return NewLedger(
		Config{BusID: "BUS_NA_1234", RouteName: "Jaffna-Colombo"},
		store,
		routes,
		season.NewValidator(routes, route.SegmentRadiusKM),
		fare.New(fare.DefaultStageKM),
		dist,
		nopGeocoder{},
		clock,
		nil,
		nil,
	)
}

func entryLog(faceID int, emb face.Embedding, ts time.Time) DeviceLog {
	return DeviceLog{
		FaceID:    faceID,
		Embedding: emb,
		Latitude:  9.6615,
		Longitude: 80.0255,
		DeviceID:  "ENTRY_CAM",
		Timestamp: ts.Format(time.RFC3339),
	}
}

func exitLog(faceID int, emb face.Embedding, ts time.Time) DeviceLog {
	return DeviceLog{
		FaceID:    faceID,
		Embedding: emb,
		Latitude:  6.9271,
		Longitude: 79.8612,
		DeviceID:  "EXIT_CAM",
		Timestamp: ts.Format(time.RFC3339),
	}
}

func TestEntryStartsTripImplicitly(t *testing.T) {
	store := newMemStore()
	clock := &fixedClock{now: time.Date(2026, 8, 1, 7, 0, 0, 0, time.UTC)}
	l := newTestLedger(t, store, clock, nil)

	rec, err := l.RecordEntry(context.Background(), entryLog(1, face.Embedding{1, 0, 0}, clock.Now()))
	if err != nil {
		t.Fatal(err)
	}
	if l.CurrentTrip() == nil {
		t.Fatal("entry did not start a trip")
	}
	if rec.TripID != l.CurrentTrip().ID {
		t.Errorf("entry tagged with trip %s, active trip is %s", rec.TripID, l.CurrentTrip().ID)
	}
	if want := "BUS_NA_1234_2026-08-01_07:00"; rec.TripID != want {
		t.Errorf("trip id = %s, want %s", rec.TripID, want)
	}
}

func TestExitMatchesAndConsumesEntry(t *testing.T) {
	store := newMemStore()
	clock := &fixedClock{now: time.Date(2026, 8, 1, 7, 0, 0, 0, time.UTC)}
	l := newTestLedger(t, store, clock, nil)

	emb := face.Embedding{0.5, 0.5, 0.1}
	if _, err := l.RecordEntry(context.Background(), entryLog(1, emb, clock.Now())); err != nil {
		t.Fatal(err)
	}
	clock.advance(2 * time.Hour)

	out, err := l.RecordExit(context.Background(), exitLog(2, emb, clock.Now()))
	if err != nil {
		t.Fatal(err)
	}
	if out.Journey == nil {
		t.Fatalf("expected journey, got unmatched: %+v", out.Unmatched)
	}
	j := out.Journey
	if j.Similarity < 0.999 {
		t.Errorf("similarity = %f, want ~1", j.Similarity)
	}
	if j.Distance.Provider != "osrm" || j.Distance.DistanceKM != 10 {
		t.Errorf("distance = %+v, want 10 km via osrm", j.Distance)
	}
	if j.DurationMinutes != 120 {
		t.Errorf("duration = %f minutes, want 120", j.DurationMinutes)
	}
	// 10 km at 3.5 km/stage is stage 3; empty fare table falls back to
	// 30 + (stage-1)*10.
	if j.FareStage != 3 || j.Price != 50 {
		t.Errorf("fare = %.2f at stage %d, want 50.00 at stage 3", j.Price, j.FareStage)
	}
	if n, _ := store.CountOpenEntries(context.Background(), j.TripID); n != 0 {
		t.Errorf("entry not consumed: %d open entries remain", n)
	}

	// A second identical exit must not match the consumed entry again.
	out2, err := l.RecordExit(context.Background(), exitLog(3, emb, clock.Now()))
	if err != nil {
		t.Fatal(err)
	}
	if out2.Journey != nil {
		t.Fatal("consumed entry matched twice")
	}
}

func TestUnmatchedExitKeepsBestSimilarity(t *testing.T) {
	store := newMemStore()
	clock := &fixedClock{now: time.Date(2026, 8, 1, 7, 0, 0, 0, time.UTC)}
	l := newTestLedger(t, store, clock, nil)

	// cos(60 degrees) = 0.5, well below the 0.7 threshold.
	if _, err := l.RecordEntry(context.Background(), entryLog(1, face.Embedding{1, 0}, clock.Now())); err != nil {
		t.Fatal(err)
	}
	out, err := l.RecordExit(context.Background(), exitLog(2, face.Embedding{1, 1.7320508}, clock.Now()))
	if err != nil {
		t.Fatal(err)
	}
	if out.Journey != nil {
		t.Fatal("below-threshold exit produced a journey")
	}
	u := out.Unmatched
	if u == nil {
		t.Fatal("unmatched exit not preserved")
	}
	if u.Type != RecordExitType {
		t.Errorf("record type = %s, want EXIT", u.Type)
	}
	if u.BestSimilarity < 0.49 || u.BestSimilarity > 0.51 {
		t.Errorf("best similarity = %f, want ~0.5", u.BestSimilarity)
	}
	// The near-miss entry stays buffered for a later, better exit.
	if n, _ := store.CountOpenEntries(context.Background(), u.TripID); n != 1 {
		t.Errorf("entry consumed by a failed match: %d open entries", n)
	}
}

func TestStartTripClosesPreviousAndCleansOrphans(t *testing.T) {
	store := newMemStore()
	clock := &fixedClock{now: time.Date(2026, 8, 1, 7, 0, 0, 0, time.UTC)}
	l := newTestLedger(t, store, clock, nil)

	first, err := l.StartTrip(context.Background(), clock.Now(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := l.RecordEntry(context.Background(), entryLog(1, face.Embedding{1, 0, 0}, clock.Now())); err != nil {
		t.Fatal(err)
	}

	clock.advance(12 * time.Hour)
	second, err := l.StartTrip(context.Background(), clock.Now(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if second.ID == first.ID {
		t.Fatal("second start reused the first trip id")
	}
	if got := store.trips[first.ID].Status; got != StatusCompleted {
		t.Errorf("first trip status = %s, want completed", got)
	}
	if len(store.entries) != 0 {
		t.Errorf("%d orphaned entries survived the new trip", len(store.entries))
	}
	if len(store.unmatched) != 1 {
		t.Fatalf("orphaned entry not preserved as unmatched: %d records", len(store.unmatched))
	}
	if store.unmatched[0].Type != RecordEntryType {
		t.Errorf("orphan record type = %s, want ENTRY", store.unmatched[0].Type)
	}
}

func TestEndTripWithoutActive(t *testing.T) {
	store := newMemStore()
	clock := &fixedClock{now: time.Date(2026, 8, 1, 7, 0, 0, 0, time.UTC)}
	l := newTestLedger(t, store, clock, nil)

	if err := l.EndTrip(context.Background()); !errors.Is(err, ErrNoActiveTrip) {
		t.Fatalf("err = %v, want ErrNoActiveTrip", err)
	}
}

func TestEndTripMovesOpenEntries(t *testing.T) {
	store := newMemStore()
	clock := &fixedClock{now: time.Date(2026, 8, 1, 7, 0, 0, 0, time.UTC)}
	l := newTestLedger(t, store, clock, nil)

	emb := face.Embedding{1, 0, 0}
	if _, err := l.RecordEntry(context.Background(), entryLog(1, emb, clock.Now())); err != nil {
		t.Fatal(err)
	}
	if _, err := l.RecordExit(context.Background(), exitLog(2, emb, clock.Now())); err != nil {
		t.Fatal(err)
	}
	if _, err := l.RecordEntry(context.Background(), entryLog(3, face.Embedding{0, 1, 0}, clock.Now())); err != nil {
		t.Fatal(err)
	}
	tripID := l.CurrentTrip().ID

	if err := l.EndTrip(context.Background()); err != nil {
		t.Fatal(err)
	}
	final := store.trips[tripID]
	if final.TotalPassengers != 1 {
		t.Errorf("passengers = %d, want 1", final.TotalPassengers)
	}
	if final.TotalUnmatched != 1 {
		t.Errorf("unmatched = %d, want 1", final.TotalUnmatched)
	}
	if l.CurrentTrip() != nil {
		t.Error("ledger still holds a trip after EndTrip")
	}
}

func TestDeviceClockSubstitution(t *testing.T) {
	store := newMemStore()
	now := time.Date(2026, 8, 1, 7, 0, 0, 0, time.UTC)
	clock := &fixedClock{now: now}
	l := newTestLedger(t, store, clock, nil)

	dl := entryLog(1, face.Embedding{1, 0, 0}, now)
	dl.Timestamp = "2011-01-01T00:00:05Z" // unsynced device clock
	rec, err := l.RecordEntry(context.Background(), dl)
	if err != nil {
		t.Fatal(err)
	}
	if !rec.EntryTimestamp.Equal(now) {
		t.Errorf("pre-2020 timestamp kept: %s", rec.EntryTimestamp)
	}

	dl2 := entryLog(2, face.Embedding{0, 1, 0}, now)
	dl2.Timestamp = "not-a-timestamp"
	rec2, err := l.RecordEntry(context.Background(), dl2)
	if err != nil {
		t.Fatal(err)
	}
	if !rec2.EntryTimestamp.Equal(now) {
		t.Errorf("malformed timestamp kept: %s", rec2.EntryTimestamp)
	}
}

func TestDistanceFallbackOnProviderFailure(t *testing.T) {
	store := newMemStore()
	clock := &fixedClock{now: time.Date(2026, 8, 1, 7, 0, 0, 0, time.UTC)}
	l := newTestLedger(t, store, clock, stubDistance{err: errors.New("gateway timeout")})

	emb := face.Embedding{1, 0, 0}
	if _, err := l.RecordEntry(context.Background(), entryLog(1, emb, clock.Now())); err != nil {
		t.Fatal(err)
	}
	out, err := l.RecordExit(context.Background(), exitLog(2, emb, clock.Now()))
	if err != nil {
		t.Fatal(err)
	}
	if out.Journey == nil {
		t.Fatal("provider failure blocked journey finalization")
	}
	d := out.Journey.Distance
	if d.Provider != "haversine_fallback" {
		t.Errorf("provider = %s, want haversine_fallback", d.Provider)
	}
	// Jaffna to Colombo is roughly 305 km straight line.
	if d.DistanceKM < 290 || d.DistanceKM > 320 {
		t.Errorf("fallback distance = %.1f km, want ~305", d.DistanceKM)
	}
	if d.DurationMinutes != d.DistanceKM*2 {
		t.Errorf("fallback duration = %.1f, want distance*2", d.DurationMinutes)
	}
}

func TestSeasonTicketExemption(t *testing.T) {
	store := newMemStore()
	now := time.Date(2026, 8, 1, 7, 0, 0, 0, time.UTC)
	clock := &fixedClock{now: now}
	l := newTestLedger(t, store, clock, nil)

	memberEmb := face.Embedding{0.3, 0.9, 0.2}
	store.members = []season.Member{{
		MemberID:   "STM_001",
		Name:       "Arun Kumar",
		Embedding:  memberEmb,
		TicketType: "monthly",
		ValidFrom:  now.AddDate(0, -1, 0),
		ValidUntil: now.AddDate(0, 1, 0),
		Active:     true,
		// No segments: valid on every route.
	}}

	if _, err := l.RecordEntry(context.Background(), entryLog(1, memberEmb, now)); err != nil {
		t.Fatal(err)
	}
	out, err := l.RecordExit(context.Background(), exitLog(2, memberEmb, now))
	if err != nil {
		t.Fatal(err)
	}
	j := out.Journey
	if j == nil {
		t.Fatal("member exit not matched")
	}
	if !j.IsSeasonTicket {
		t.Fatal("season ticket not applied")
	}
	if j.Price != 0 {
		t.Errorf("exempt journey charged %.2f", j.Price)
	}
	if j.SeasonTicket == nil || j.SeasonTicket.MemberID != "STM_001" {
		t.Errorf("season info = %+v", j.SeasonTicket)
	}
	if j.SeasonTicket.Match.Type != season.MatchUnrestricted {
		t.Errorf("match type = %s, want unrestricted", j.SeasonTicket.Match.Type)
	}
	if store.memberUse["STM_001"] != 1 {
		t.Errorf("member usage not recorded: %d", store.memberUse["STM_001"])
	}
}

func TestExpiredMemberPaysFare(t *testing.T) {
	store := newMemStore()
	now := time.Date(2026, 8, 1, 7, 0, 0, 0, time.UTC)
	clock := &fixedClock{now: now}
	l := newTestLedger(t, store, clock, nil)

	memberEmb := face.Embedding{0.3, 0.9, 0.2}
	store.members = []season.Member{{
		MemberID:   "STM_002",
		Name:       "Expired Rider",
		Embedding:  memberEmb,
		ValidFrom:  now.AddDate(0, -2, 0),
		ValidUntil: now.AddDate(0, -1, 0),
		Active:     true,
	}}
	store.stages = fare.DefaultStages()

	if _, err := l.RecordEntry(context.Background(), entryLog(1, memberEmb, now)); err != nil {
		t.Fatal(err)
	}
	out, err := l.RecordExit(context.Background(), exitLog(2, memberEmb, now))
	if err != nil {
		t.Fatal(err)
	}
	if out.Journey == nil {
		t.Fatal("exit not matched")
	}
	if out.Journey.IsSeasonTicket {
		t.Fatal("expired membership exempted a journey")
	}
	// 10 km, stage 3 in the seeded table.
	if out.Journey.Price != 50 {
		t.Errorf("price = %.2f, want 50.00", out.Journey.Price)
	}
}

func TestCleanupStale(t *testing.T) {
	store := newMemStore()
	clock := &fixedClock{now: time.Date(2026, 8, 1, 7, 0, 0, 0, time.UTC)}
	l := newTestLedger(t, store, clock, nil)

	if _, err := l.RecordEntry(context.Background(), entryLog(1, face.Embedding{1, 0, 0}, clock.Now())); err != nil {
		t.Fatal(err)
	}
	clock.advance(30 * time.Hour)
	if _, err := l.RecordEntry(context.Background(), entryLog(2, face.Embedding{0, 1, 0}, clock.Now())); err != nil {
		t.Fatal(err)
	}

	moved, err := l.CleanupStale(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if moved != 1 {
		t.Fatalf("moved = %d, want 1", moved)
	}
	if len(store.entries) != 1 {
		t.Errorf("%d entries remain, want 1", len(store.entries))
	}
	if len(store.unmatched) != 1 || store.unmatched[0].FaceID != 1 {
		t.Errorf("stale entry not preserved: %+v", store.unmatched)
	}
}

func TestResumeRestoresActiveTrip(t *testing.T) {
	store := newMemStore()
	now := time.Date(2026, 8, 1, 7, 0, 0, 0, time.UTC)
	clock := &fixedClock{now: now}

	persisted := &Trip{
		ID:        "BUS_NA_1234_2026-08-01_06:00",
		BusID:     "BUS_NA_1234",
		RouteName: "Jaffna-Colombo",
		StartTime: now.Add(-time.Hour),
		Status:    StatusActive,
	}
	if err := store.InsertTrip(context.Background(), persisted); err != nil {
		t.Fatal(err)
	}

	l := newTestLedger(t, store, clock, nil)
	if err := l.Resume(context.Background()); err != nil {
		t.Fatal(err)
	}
	cur := l.CurrentTrip()
	if cur == nil || cur.ID != persisted.ID {
		t.Fatalf("resumed trip = %+v, want %s", cur, persisted.ID)
	}
}

func TestStatusPhases(t *testing.T) {
	store := newMemStore()
	clock := &fixedClock{now: time.Date(2026, 8, 1, 7, 0, 0, 0, time.UTC)}
	l := newTestLedger(t, store, clock, nil)

	st, err := l.Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.Active || st.Phase != "waiting_for_departure" {
		t.Errorf("idle status = %+v", st)
	}

	if _, err := l.StartTrip(context.Background(), clock.Now(), nil); err != nil {
		t.Fatal(err)
	}
	for _, tc := range []struct {
		advance time.Duration
		phase   string
	}{
		{30 * time.Minute, "departing"},
		{3 * time.Hour, "in_transit"},
		{4 * time.Hour, "approaching_destination"},
		{5 * time.Hour, "should_have_arrived"},
	} {
		clock.advance(tc.advance)
		st, err := l.Status(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if st.Phase != tc.phase {
			t.Errorf("after %s: phase = %s, want %s", clock.now.Sub(time.Date(2026, 8, 1, 7, 0, 0, 0, time.UTC)), st.Phase, tc.phase)
		}
	}
}

func TestRejectsEmptyEmbedding(t *testing.T) {
	store := newMemStore()
	clock := &fixedClock{now: time.Date(2026, 8, 1, 7, 0, 0, 0, time.UTC)}
	l := newTestLedger(t, store, clock, nil)

	if _, err := l.RecordEntry(context.Background(), DeviceLog{FaceID: 1}); !errors.Is(err, ErrMissingEmbedding) {
		t.Errorf("entry err = %v, want ErrMissingEmbedding", err)
	}
	if _, err := l.RecordExit(context.Background(), DeviceLog{FaceID: 1}); !errors.Is(err, ErrMissingEmbedding) {
		t.Errorf("exit err = %v, want ErrMissingEmbedding", err)
	}
}
