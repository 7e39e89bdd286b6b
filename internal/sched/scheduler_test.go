package sched

import (
	"context"
	"sync"
	"testing"
	"time"

	"bustracker/internal/geo"
	"bustracker/internal/trip"
)

type fakeLedger struct {
	mu       sync.Mutex
	current  *trip.Trip
	started  []time.Time
	ended    int
	cleanups int
}

func (f *fakeLedger) StartTrip(ctx context.Context, start time.Time, gps *geo.Point) (*trip.Trip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, start)
	f.current = &trip.Trip{
		ID:        trip.TripID("BUS_NA_1234", start),
		BusID:     "BUS_NA_1234",
		StartTime: start,
		Status:    trip.StatusActive,
	}
	return f.current, nil
}

func (f *fakeLedger) EndTrip(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ended++
	f.current = nil
	return nil
}

func (f *fakeLedger) CleanupStale(ctx context.Context, olderThan time.Duration) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleanups++
	return 0, nil
}

func (f *fakeLedger) CurrentTrip() *trip.Trip {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

type fixedTimetable []string

func (t fixedTimetable) Departures(ctx context.Context, busID string) ([]string, error) {
	return t, nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newTestScheduler(ledger *fakeLedger, clock *testClock, departures ...string) *Scheduler {
	return New(Config{
		BusID:            "BUS_NA_1234",
		EstimatedTripDur: 8 * time.Hour,
		Location:         time.UTC,
	}, ledger, fixedTimetable(departures), nil, clock, nil)
}

func TestDepartureFiresOnceInsideWindow(t *testing.T) {
	ledger := &fakeLedger{}
	clock := &testClock{now: time.Date(2026, 8, 1, 7, 2, 0, 0, time.UTC)}
	s := newTestScheduler(ledger, clock, "07:00", "18:00")

	for i := 0; i < 3; i++ {
		if err := s.Evaluate(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if len(ledger.started) != 1 {
		t.Fatalf("departure fired %d times, want 1", len(ledger.started))
	}
	want := time.Date(2026, 8, 1, 7, 0, 0, 0, time.UTC)
	if !ledger.started[0].Equal(want) {
		t.Errorf("trip started at %s, want %s", ledger.started[0], want)
	}
}

func TestMissedDepartureIsSkipped(t *testing.T) {
	ledger := &fakeLedger{}
	// 07:30 is past the start window of the 07:00 departure.
	clock := &testClock{now: time.Date(2026, 8, 1, 7, 30, 0, 0, time.UTC)}
	s := newTestScheduler(ledger, clock, "07:00")

	if err := s.Evaluate(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(ledger.started) != 0 {
		t.Fatalf("missed departure still fired: %v", ledger.started)
	}
}

func TestDepartureRefiresNextDay(t *testing.T) {
	ledger := &fakeLedger{}
	clock := &testClock{now: time.Date(2026, 8, 1, 18, 1, 0, 0, time.UTC)}
	s := newTestScheduler(ledger, clock, "18:00")

	if err := s.Evaluate(context.Background()); err != nil {
		t.Fatal(err)
	}
	// Next day, same wall-clock time.
	ledger.current = nil
	clock.set(time.Date(2026, 8, 2, 18, 1, 0, 0, time.UTC))
	if err := s.Evaluate(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(ledger.started) != 2 {
		t.Fatalf("departure fired %d times across two days, want 2", len(ledger.started))
	}
}

func TestOverdueTripEnds(t *testing.T) {
	ledger := &fakeLedger{}
	clock := &testClock{now: time.Date(2026, 8, 1, 7, 1, 0, 0, time.UTC)}
	s := newTestScheduler(ledger, clock, "07:00")

	if err := s.Evaluate(context.Background()); err != nil {
		t.Fatal(err)
	}
	if ledger.CurrentTrip() == nil {
		t.Fatal("trip not started")
	}

	// Under the estimate: keep running.
	clock.set(time.Date(2026, 8, 1, 14, 0, 0, 0, time.UTC))
	if err := s.Evaluate(context.Background()); err != nil {
		t.Fatal(err)
	}
	if ledger.ended != 0 {
		t.Fatal("trip ended before estimated duration")
	}

	// Past the estimate: end it.
	clock.set(time.Date(2026, 8, 1, 15, 1, 0, 0, time.UTC))
	if err := s.Evaluate(context.Background()); err != nil {
		t.Fatal(err)
	}
	if ledger.ended != 1 {
		t.Fatalf("trip ends = %d, want 1", ledger.ended)
	}
}

func TestMalformedDepartureIgnored(t *testing.T) {
	ledger := &fakeLedger{}
	clock := &testClock{now: time.Date(2026, 8, 1, 7, 1, 0, 0, time.UTC)}
	s := newTestScheduler(ledger, clock, "not-a-time", "07:00")

	if err := s.Evaluate(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(ledger.started) != 1 {
		t.Fatalf("started %d trips, want 1", len(ledger.started))
	}
}
