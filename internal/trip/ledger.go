package trip

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"bustracker/internal/face"
	"bustracker/internal/fare"
	"bustracker/internal/geo"
	"bustracker/internal/metrics"
	"bustracker/internal/route"
	"bustracker/internal/season"
)

var (
	// ErrNoActiveTrip reports a state conflict: the operation needs an
	// active trip and none exists. Callers treat it as a no-op outcome.
	ErrNoActiveTrip = errors.New("trip: no active trip")

	// ErrMissingEmbedding rejects a device log without a face vector.
	ErrMissingEmbedding = errors.New("trip: device log carries no face embedding")
)

// Device clocks that were never NTP-synced report dates around the
// epoch; anything before this is replaced with server time.
var minValidDeviceTime = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// Config carries the ledger's tunables.
type Config struct {
	BusID            string
	RouteName        string // configured route, used until GPS detection overrides it
	EntryThreshold   float64
	SeasonThreshold  float64
	RouteThresholdKM float64
	MatchLookback    time.Duration
	EstimatedTripDur time.Duration
}

// Ledger is the per-bus trip state machine: it buffers entries, matches
// exits, applies season-ticket exemptions and fares, and finalizes
// journeys. Exactly one trip is ACTIVE per bus at any time.
type Ledger struct {
	cfg Config

	store     Store
	matcher   *route.Matcher
	validator *season.Validator
	fares     *fare.Calculator
	distance  DistanceProvider
	geocoder  Geocoder
	clock     Clock
	pub       Publisher
	metrics   *metrics.Collector

	mu      sync.Mutex
	current *Trip
}

func NewLedger(cfg Config, store Store, routes *route.Store, validator *season.Validator,
	fares *fare.Calculator, dist DistanceProvider, geocoder Geocoder, clock Clock,
	pub Publisher, mcol *metrics.Collector) *Ledger {

	if cfg.EntryThreshold <= 0 {
		cfg.EntryThreshold = 0.7
	}
	if cfg.SeasonThreshold <= 0 {
		cfg.SeasonThreshold = 0.65
	}
	if cfg.RouteThresholdKM <= 0 {
		cfg.RouteThresholdKM = route.DefaultThresholdKM
	}
	if cfg.MatchLookback <= 0 {
		cfg.MatchLookback = 48 * time.Hour
	}
	if cfg.EstimatedTripDur <= 0 {
		cfg.EstimatedTripDur = 8 * time.Hour
	}
	return &Ledger{
		cfg:       cfg,
		store:     store,
		matcher:   route.NewMatcher(routes),
		validator: validator,
		fares:     fares,
		distance:  dist,
		geocoder:  geocoder,
		clock:     clock,
		pub:       pub,
		metrics:   mcol,
	}
}

// TripID derives the deterministic trip id for a bus and start time.
func TripID(busID string, start time.Time) string {
	return fmt.Sprintf("%s_%s_%s", busID, start.Format("2006-01-02"), start.Format("15:04"))
}

// Resume loads a persisted active trip after a process restart.
func (l *Ledger) Resume(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, err := l.store.ActiveTrip(ctx, l.cfg.BusID)
	if err != nil {
		return fmt.Errorf("load active trip: %w", err)
	}
	if t != nil {
		l.current = t
		log.Printf("resumed active trip %s (started %s)", t.ID, t.StartTime.Format(time.RFC3339))
	}
	return nil
}

// StartTrip opens a new trip session. An already-active trip is closed
// first, and orphaned buffer entries from any earlier run are converted
// to unmatched records so the new trip starts clean. When a GPS fix is
// supplied the trip's route is auto-detected from the cache.
func (l *Ledger) StartTrip(ctx context.Context, start time.Time, gps *geo.Point) (*Trip, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.startTripLocked(ctx, start, gps)
}

func (l *Ledger) startTripLocked(ctx context.Context, start time.Time, gps *geo.Point) (*Trip, error) {
	if start.IsZero() {
		start = l.clock.Now()
	}
	if l.current == nil {
		// A trip may still be active in the store from a previous run.
		t, err := l.store.ActiveTrip(ctx, l.cfg.BusID)
		if err != nil {
			return nil, fmt.Errorf("check active trip: %w", err)
		}
		l.current = t
	}
	if l.current != nil {
		if err := l.endTripLocked(ctx); err != nil && !errors.Is(err, ErrNoActiveTrip) {
			return nil, fmt.Errorf("close previous trip: %w", err)
		}
	}

	// Orphan cleanup: buffer entries left behind by a crashed run can
	// never match an exit in the new trip.
	orphans, err := l.store.OpenEntriesForBus(ctx, l.cfg.BusID)
	if err != nil {
		return nil, fmt.Errorf("list orphaned entries: %w", err)
	}
	for i := range orphans {
		l.moveEntryToUnmatched(ctx, &orphans[i], 0, "orphaned entry - cleaned up before new trip")
	}
	if len(orphans) > 0 {
		log.Printf("cleaned up %d orphaned entries before new trip", len(orphans))
	}

	routeName := l.cfg.RouteName
	if gps != nil && gps.Valid() {
		if matches := l.matcher.DetectRoutes(*gps, l.cfg.RouteThresholdKM); len(matches) > 0 {
			routeName = matches[0].RouteName
			log.Printf("auto-detected route %q (confidence %.2f)", routeName, matches[0].Confidence)
		}
	}

	t := &Trip{
		ID:        TripID(l.cfg.BusID, start),
		BusID:     l.cfg.BusID,
		RouteName: routeName,
		StartTime: start,
		Status:    StatusActive,
	}
	if err := l.store.InsertTrip(ctx, t); err != nil {
		return nil, fmt.Errorf("insert trip: %w", err)
	}
	l.current = t
	if l.metrics != nil {
		l.metrics.TripsStarted.Inc()
	}
	l.publishTrip("trip_started", t)
	log.Printf("started trip %s (route %s)", t.ID, t.RouteName)
	return t, nil
}

// EndTrip closes the active trip, moving every still-open entry to the
// unmatched collection. Without an active trip it returns
// ErrNoActiveTrip, which callers report as "nothing to end".
func (l *Ledger) EndTrip(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.endTripLocked(ctx)
}

func (l *Ledger) endTripLocked(ctx context.Context) error {
	if l.current == nil {
		return ErrNoActiveTrip
	}
	t := l.current
	now := l.clock.Now()

	open, err := l.store.OpenEntries(ctx, l.cfg.BusID, t.ID, time.Time{})
	if err != nil {
		return fmt.Errorf("list open entries: %w", err)
	}
	unmatched := 0
	for i := range open {
		if l.moveEntryToUnmatched(ctx, &open[i], 0, "trip ended - no exit match found") {
			unmatched++
		}
	}

	passengers, err := l.store.CountJourneys(ctx, t.ID)
	if err != nil {
		return fmt.Errorf("count journeys: %w", err)
	}
	if err := l.store.CompleteTrip(ctx, t.ID, now, passengers, unmatched); err != nil {
		return fmt.Errorf("complete trip: %w", err)
	}
	t.Status = StatusCompleted
	t.EndTime = &now
	t.TotalPassengers = passengers
	t.TotalUnmatched = unmatched
	if l.metrics != nil {
		l.metrics.TripsEnded.Inc()
	}
	l.publishTrip("trip_ended", t)
	log.Printf("ended trip %s: %d passengers, %d unmatched", t.ID, passengers, unmatched)
	l.current = nil
	return nil
}

// RecordEntry buffers a boarding event for the active trip, starting
// one implicitly when none is active. Season-ticket detection at entry
// is informational tagging only.
func (l *Ledger) RecordEntry(ctx context.Context, dl DeviceLog) (*EntryRecord, error) {
	if len(dl.Embedding) == 0 {
		return nil, ErrMissingEmbedding
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current == nil {
		if _, err := l.startTripLocked(ctx, l.clock.Now(), logPoint(dl)); err != nil {
			return nil, err
		}
	}

	rec := &EntryRecord{
		ID:        uuid.NewString(),
		TripID:    l.current.ID,
		BusID:     l.cfg.BusID,
		RouteName: l.current.RouteName,
		FaceID:    dl.FaceID,
		Embedding: dl.Embedding,
		EntryLocation: Location{
			Latitude:  dl.Latitude,
			Longitude: dl.Longitude,
			DeviceID:  dl.DeviceID,
			Timestamp: dl.Timestamp,
		},
		EntryTimestamp: l.safeTimestamp(dl.Timestamp),
		CreatedAt:      l.clock.Now(),
	}

	if member, sim := l.matchSeasonMember(ctx, dl.Embedding); member != nil {
		rec.SeasonHint = &SeasonHint{MemberID: member.MemberID, MemberName: member.Name, Similarity: sim}
		log.Printf("season ticket member detected at entry: %s (%.3f)", member.Name, sim)
	}

	if err := l.store.InsertEntry(ctx, rec); err != nil {
		return nil, fmt.Errorf("store entry: %w", err)
	}
	if l.metrics != nil {
		l.metrics.EntriesRecorded.Inc()
	}
	log.Printf("buffered entry %s (trip %s, face %d)", rec.ID, rec.TripID, rec.FaceID)
	return rec, nil
}

// ExitOutcome is the result of processing an exit log: exactly one of
// Journey or Unmatched is set.
type ExitOutcome struct {
	Journey        *Journey         `json:"journey,omitempty"`
	Unmatched      *UnmatchedRecord `json:"unmatched,omitempty"`
	BestSimilarity float64          `json:"best_similarity"`
}

// RecordExit matches an alighting event against the open entries of the
// current trip. On a match the consumed entry becomes an immutable
// Journey with distance, season-ticket decision and fare; otherwise the
// exit is preserved as an unmatched record carrying the best similarity
// seen. The entry consume is first-writer-wins: a concurrent exit that
// loses the delete race re-matches against the remaining entries.
func (l *Ledger) RecordExit(ctx context.Context, dl DeviceLog) (*ExitOutcome, error) {
	if len(dl.Embedding) == 0 {
		return nil, ErrMissingEmbedding
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current == nil {
		// State recovery: an exit with no trip still must not be lost.
		if _, err := l.startTripLocked(ctx, l.clock.Now(), logPoint(dl)); err != nil {
			return nil, err
		}
	}

	since := l.clock.Now().Add(-l.cfg.MatchLookback)
	entries, err := l.store.OpenEntries(ctx, l.cfg.BusID, l.current.ID, since)
	if err != nil {
		return nil, fmt.Errorf("list open entries: %w", err)
	}

	byID := make(map[string]*EntryRecord, len(entries))
	cands := make([]face.Candidate, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		byID[e.ID] = e
		cands = append(cands, face.Candidate{ID: e.ID, Embedding: e.Embedding})
	}

	bestSeen := 0.0
	for {
		res, err := face.BestMatch(dl.Embedding, cands, l.cfg.EntryThreshold)
		if err != nil {
			return nil, fmt.Errorf("match exit: %w", err)
		}
		if res.Similarity > bestSeen {
			bestSeen = res.Similarity
		}
		if !res.Matched {
			break
		}
		consumed, err := l.store.DeleteEntry(ctx, res.ID)
		if err != nil {
			return nil, fmt.Errorf("consume entry: %w", err)
		}
		if !consumed {
			// Lost the race to a concurrent exit; drop the candidate
			// and match again.
			cands = removeCandidate(cands, res.ID)
			continue
		}
		j, err := l.finalizeJourney(ctx, byID[res.ID], dl, res.Similarity)
		if err != nil {
			return nil, err
		}
		return &ExitOutcome{Journey: j, BestSimilarity: res.Similarity}, nil
	}

	u := &UnmatchedRecord{
		ID:        uuid.NewString(),
		TripID:    l.current.ID,
		BusID:     l.cfg.BusID,
		RouteName: l.current.RouteName,
		Type:      RecordExitType,
		FaceID:    dl.FaceID,
		Embedding: dl.Embedding,
		Location: Location{
			Latitude:  dl.Latitude,
			Longitude: dl.Longitude,
			DeviceID:  dl.DeviceID,
			Timestamp: dl.Timestamp,
		},
		Timestamp:      l.safeTimestamp(dl.Timestamp),
		BestSimilarity: bestSeen,
		Reason:         "No matching entry found",
		CreatedAt:      l.clock.Now(),
	}
	if err := l.store.InsertUnmatched(ctx, u); err != nil {
		return nil, fmt.Errorf("store unmatched exit: %w", err)
	}
	if l.metrics != nil {
		l.metrics.Unmatched.WithLabelValues("exit_no_match").Inc()
	}
	l.publishUnmatched(u)
	log.Printf("unmatched exit (face %d, best similarity %.3f)", dl.FaceID, bestSeen)
	return &ExitOutcome{Unmatched: u, BestSimilarity: bestSeen}, nil
}

func (l *Ledger) finalizeJourney(ctx context.Context, entry *EntryRecord, dl DeviceLog, sim float64) (*Journey, error) {
	exitTS := l.safeTimestamp(dl.Timestamp)
	entryPt := entry.EntryLocation.Point()
	exitPt := geo.Point{Lat: dl.Latitude, Lon: dl.Longitude}

	dist := l.measureDistance(ctx, entryPt, exitPt)

	isSeason := false
	var info *SeasonTicketInfo
	price := 0.0
	stage := 0

	if member, msim := l.matchSeasonMember(ctx, dl.Embedding); member != nil {
		ok, details := l.validator.Validate(entryPt, exitPt, l.current.RouteName, member.Segments)
		if ok {
			isSeason = true
			info = &SeasonTicketInfo{
				MemberID:   member.MemberID,
				MemberName: member.Name,
				TicketType: member.TicketType,
				Similarity: msim,
				Match:      details,
			}
			if err := l.store.RecordMemberUse(ctx, member.MemberID, l.clock.Now()); err != nil {
				log.Printf("record member use for %s: %v", member.MemberID, err)
			}
			if l.metrics != nil {
				l.metrics.SeasonExemptions.Inc()
			}
			log.Printf("season ticket applied: %s (%s)", member.Name, details.Type)
		} else {
			log.Printf("season ticket of %s not valid for this journey: %s", member.Name, details.Note)
		}
	}
	if !isSeason {
		stages, err := l.store.ActiveFareStages(ctx)
		if err != nil {
			log.Printf("load fare stages: %v (using fallback tariff)", err)
			stages = nil
		}
		price, stage = l.fares.Fare(dist.DistanceKM, stages)
	} else {
		stage = l.fares.StageFor(dist.DistanceKM)
	}

	entryLoc := entry.EntryLocation
	exitLoc := Location{
		Latitude:  dl.Latitude,
		Longitude: dl.Longitude,
		DeviceID:  dl.DeviceID,
		Timestamp: dl.Timestamp,
	}
	if name, ok := l.geocoder.LocationName(ctx, entryPt); ok {
		entryLoc.Name = name
	}
	if name, ok := l.geocoder.LocationName(ctx, exitPt); ok {
		exitLoc.Name = name
	}

	j := &Journey{
		ID:              uuid.NewString(),
		TripID:          l.current.ID,
		BusID:           l.cfg.BusID,
		RouteName:       l.current.RouteName,
		EntryLocation:   entryLoc,
		ExitLocation:    exitLoc,
		EntryTimestamp:  entry.EntryTimestamp,
		ExitTimestamp:   exitTS,
		DurationMinutes: exitTS.Sub(entry.EntryTimestamp).Minutes(),
		Similarity:      sim,
		EntryFaceID:     entry.FaceID,
		ExitFaceID:      dl.FaceID,
		Distance:        dist,
		IsSeasonTicket:  isSeason,
		SeasonTicket:    info,
		Price:           price,
		FareStage:       stage,
		CreatedAt:       l.clock.Now(),
	}
	if err := l.store.InsertJourney(ctx, j); err != nil {
		return nil, fmt.Errorf("store journey: %w", err)
	}
	if l.metrics != nil {
		l.metrics.JourneysMatched.Inc()
		l.metrics.FareCharged.Observe(price)
	}
	l.publishJourney(j)
	log.Printf("journey %s finalized: %.1f km, %.1f min, price %.2f (similarity %.3f)",
		j.ID, dist.DistanceKM, j.DurationMinutes, price, sim)
	return j, nil
}

// measureDistance asks the road-distance provider and falls back to the
// straight-line distance on any failure so finalization never stalls on
// an upstream outage.
func (l *Ledger) measureDistance(ctx context.Context, from, to geo.Point) DistanceResult {
	if from.Valid() && to.Valid() && l.distance != nil {
		res, err := l.distance.RoadDistance(ctx, from, to)
		if err == nil {
			if l.metrics != nil {
				l.metrics.DistanceLookups.WithLabelValues(res.Provider).Inc()
			}
			return res
		}
		log.Printf("road distance provider failed: %v (falling back to haversine)", err)
	}
	km := 0.0
	if from.Valid() && to.Valid() {
		km = geo.DistanceBetween(from, to)
	}
	if l.metrics != nil {
		l.metrics.DistanceLookups.WithLabelValues("haversine_fallback").Inc()
	}
	return DistanceResult{
		DistanceKM:      km,
		DurationMinutes: km * 2, // rough 30 km/h average
		Provider:        "haversine_fallback",
	}
}

// matchSeasonMember runs the exit embedding against the enrolled
// roster with the looser season threshold. Failures degrade to "no
// member": they must never abort journey finalization.
func (l *Ledger) matchSeasonMember(ctx context.Context, emb face.Embedding) (*season.Member, float64) {
	members, err := l.store.ActiveMembers(ctx, l.clock.Now())
	if err != nil {
		log.Printf("load season members: %v", err)
		return nil, 0
	}
	if len(members) == 0 {
		return nil, 0
	}
	cands := make([]face.Candidate, 0, len(members))
	byID := make(map[string]*season.Member, len(members))
	for i := range members {
		m := &members[i]
		byID[m.MemberID] = m
		cands = append(cands, face.Candidate{ID: m.MemberID, Embedding: m.Embedding})
	}
	res, err := face.BestMatch(emb, cands, l.cfg.SeasonThreshold)
	if err != nil {
		log.Printf("season roster match: %v", err)
		return nil, 0
	}
	if !res.Matched {
		return nil, 0
	}
	return byID[res.ID], res.Similarity
}

// CleanupStale moves buffer entries older than the cutoff to the
// unmatched collection. Returns how many were moved.
func (l *Ledger) CleanupStale(ctx context.Context, olderThan time.Duration) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	before := l.clock.Now().Add(-olderThan)
	stale, err := l.store.StaleEntries(ctx, l.cfg.BusID, before)
	if err != nil {
		return 0, fmt.Errorf("list stale entries: %w", err)
	}
	moved := 0
	for i := range stale {
		reason := fmt.Sprintf("no exit found within %.0f hours", olderThan.Hours())
		if l.moveEntryToUnmatched(ctx, &stale[i], 0, reason) {
			moved++
		}
	}
	if moved > 0 {
		log.Printf("cleanup moved %d stale entries to unmatched", moved)
	}
	return moved, nil
}

// moveEntryToUnmatched converts an open entry into an unmatched record
// and removes it from the buffer. Reports whether this caller performed
// the move.
func (l *Ledger) moveEntryToUnmatched(ctx context.Context, e *EntryRecord, bestSim float64, reason string) bool {
	consumed, err := l.store.DeleteEntry(ctx, e.ID)
	if err != nil {
		log.Printf("delete entry %s: %v", e.ID, err)
		return false
	}
	if !consumed {
		return false
	}
	u := &UnmatchedRecord{
		ID:             uuid.NewString(),
		TripID:         e.TripID,
		BusID:          e.BusID,
		RouteName:      e.RouteName,
		Type:           RecordEntryType,
		FaceID:         e.FaceID,
		Embedding:      e.Embedding,
		Location:       e.EntryLocation,
		Timestamp:      e.EntryTimestamp,
		BestSimilarity: bestSim,
		Reason:         reason,
		CreatedAt:      l.clock.Now(),
	}
	if err := l.store.InsertUnmatched(ctx, u); err != nil {
		log.Printf("store unmatched entry %s: %v", e.ID, err)
		return false
	}
	if l.metrics != nil {
		l.metrics.Unmatched.WithLabelValues("entry_expired").Inc()
	}
	l.publishUnmatched(u)
	return true
}

// TripStatus describes the current trip for status endpoints.
type TripStatus struct {
	TripID          string  `json:"trip_id,omitempty"`
	BusID           string  `json:"bus_id"`
	RouteName       string  `json:"route_name"`
	Active          bool    `json:"trip_active"`
	Phase           string  `json:"status"`
	StartTime       string  `json:"start_time,omitempty"`
	DurationMinutes float64 `json:"duration_minutes"`
	Passengers      int     `json:"passengers_completed"`
	OpenEntries     int     `json:"passengers_inside"`
}

// Status reports the active trip with live counts, classifying its
// phase by elapsed time against the estimated trip duration.
func (l *Ledger) Status(ctx context.Context) (*TripStatus, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current == nil {
		return &TripStatus{
			BusID:     l.cfg.BusID,
			RouteName: l.cfg.RouteName,
			Active:    false,
			Phase:     "waiting_for_departure",
		}, nil
	}
	t := l.current
	passengers, err := l.store.CountJourneys(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("count journeys: %w", err)
	}
	open, err := l.store.CountOpenEntries(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("count open entries: %w", err)
	}
	elapsed := l.clock.Now().Sub(t.StartTime)
	estimated := l.cfg.EstimatedTripDur

	phase := "in_transit"
	switch {
	case elapsed < time.Hour:
		phase = "departing"
	case elapsed < estimated-time.Hour:
		phase = "in_transit"
	case elapsed < estimated+3*time.Hour:
		phase = "approaching_destination"
	default:
		phase = "should_have_arrived"
	}

	return &TripStatus{
		TripID:          t.ID,
		BusID:           t.BusID,
		RouteName:       t.RouteName,
		Active:          true,
		Phase:           phase,
		StartTime:       t.StartTime.Format(time.RFC3339),
		DurationMinutes: elapsed.Minutes(),
		Passengers:      passengers,
		OpenEntries:     open,
	}, nil
}

// Stats returns aggregate persisted counters for the bus.
func (l *Ledger) Stats(ctx context.Context) (Stats, error) {
	return l.store.Counts(ctx, l.cfg.BusID)
}

// CurrentTrip returns the active trip, or nil.
func (l *Ledger) CurrentTrip() *Trip {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// safeTimestamp parses a device timestamp, substituting server time for
// empty, malformed, or pre-2020 values (unsynced device clock). Entry
// and exit timestamps are validated independently so later duration
// computations stay coherent.
func (l *Ledger) safeTimestamp(raw string) time.Time {
	if raw == "" {
		return l.clock.Now()
	}
	ts, err := parseDeviceTime(raw)
	if err != nil {
		log.Printf("unparseable device timestamp %q: %v (using server time)", raw, err)
		return l.clock.Now()
	}
	if ts.Before(minValidDeviceTime) {
		log.Printf("device clock not synced (%s), using server time", raw)
		return l.clock.Now()
	}
	return ts
}

func parseDeviceTime(raw string) (time.Time, error) {
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	}
	var lastErr error
	for _, layout := range layouts {
		ts, err := time.Parse(layout, raw)
		if err == nil {
			return ts, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func removeCandidate(cands []face.Candidate, id string) []face.Candidate {
	out := cands[:0]
	for _, c := range cands {
		if c.ID != id {
			out = append(out, c)
		}
	}
	return out
}

func logPoint(dl DeviceLog) *geo.Point {
	p := geo.Point{Lat: dl.Latitude, Lon: dl.Longitude}
	if !p.Valid() || (p.Lat == 0 && p.Lon == 0) {
		return nil
	}
	return &p
}

func (l *Ledger) publishJourney(j *Journey) {
	if l.pub == nil {
		return
	}
	if err := l.pub.PublishJourney(j); err != nil {
		log.Printf("publish journey %s: %v", j.ID, err)
	}
}

func (l *Ledger) publishUnmatched(u *UnmatchedRecord) {
	if l.pub == nil {
		return
	}
	if err := l.pub.PublishUnmatched(u); err != nil {
		log.Printf("publish unmatched %s: %v", u.ID, err)
	}
}

func (l *Ledger) publishTrip(event string, t *Trip) {
	if l.pub == nil {
		return
	}
	if err := l.pub.PublishTrip(event, t); err != nil {
		log.Printf("publish %s for %s: %v", event, t.ID, err)
	}
}
