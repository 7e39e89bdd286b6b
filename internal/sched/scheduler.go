// Package sched drives the tracker's background loops: timetable-based
// trip starts, automatic trip completion, stale-entry cleanup, and
// route cache refresh.
package sched

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"bustracker/internal/geo"
	"bustracker/internal/metrics"
	"bustracker/internal/route"
	"bustracker/internal/trip"
)

// startWindow is how long after a timetabled departure the scheduler
// will still trigger the trip. Beyond it the departure is considered
// missed.
const startWindow = 10 * time.Minute

// Timetable lists the enabled departure times (HH:MM) for a bus.
type Timetable interface {
	Departures(ctx context.Context, busID string) ([]string, error)
}

// TripControl is the slice of the ledger the scheduler drives.
type TripControl interface {
	StartTrip(ctx context.Context, start time.Time, gps *geo.Point) (*trip.Trip, error)
	EndTrip(ctx context.Context) error
	CleanupStale(ctx context.Context, olderThan time.Duration) (int, error)
	CurrentTrip() *trip.Trip
}

type Config struct {
	BusID            string
	Interval         time.Duration
	CleanupInterval  time.Duration
	CleanupAfter     time.Duration
	EstimatedTripDur time.Duration
	RouteRefresh     time.Duration
	Location         *time.Location
}

type Scheduler struct {
	cfg       Config
	ledger    TripControl
	timetable Timetable
	routes    *route.Store
	clock     trip.Clock
	metrics   *metrics.Collector

	mu     sync.Mutex
	fired  map[string]string // departure HH:MM -> date it last fired
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config, ledger TripControl, timetable Timetable, routes *route.Store, clock trip.Clock, mcol *metrics.Collector) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Hour
	}
	if cfg.CleanupAfter <= 0 {
		cfg.CleanupAfter = 24 * time.Hour
	}
	if cfg.EstimatedTripDur <= 0 {
		cfg.EstimatedTripDur = 8 * time.Hour
	}
	if cfg.RouteRefresh <= 0 {
		cfg.RouteRefresh = 5 * time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Scheduler{
		cfg:       cfg,
		ledger:    ledger,
		timetable: timetable,
		routes:    routes,
		clock:     clock,
		metrics:   mcol,
		fired:     make(map[string]string),
	}
}

// Start launches the background loops. Stop cancels them and waits.
func (s *Scheduler) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel

	s.wg.Add(3)
	go s.loop(ctx, s.cfg.Interval, func(ctx context.Context) {
		if err := s.Evaluate(ctx); err != nil {
			log.Printf("scheduler: %v", err)
		}
	})
	go s.loop(ctx, s.cfg.CleanupInterval, func(ctx context.Context) {
		if _, err := s.ledger.CleanupStale(ctx, s.cfg.CleanupAfter); err != nil {
			log.Printf("cleanup: %v", err)
		}
	})
	go s.loop(ctx, s.cfg.RouteRefresh, func(ctx context.Context) {
		if err := s.routes.Reload(ctx); err != nil {
			log.Printf("route refresh: %v", err)
		}
	})
}

func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// Evaluate runs one scheduling pass: fire timetabled departures whose
// window covers now, and end a trip that has exceeded its estimated
// duration.
func (s *Scheduler) Evaluate(ctx context.Context) error {
	if s.metrics != nil {
		s.metrics.SchedulerRuns.Inc()
	}
	now := s.clock.Now().In(s.cfg.Location)

	deps, err := s.timetable.Departures(ctx, s.cfg.BusID)
	if err != nil {
		return fmt.Errorf("load timetable: %w", err)
	}
	for _, dep := range deps {
		due, err := departureAt(dep, now)
		if err != nil {
			log.Printf("skipping malformed departure %q: %v", dep, err)
			continue
		}
		if now.Before(due) || now.Sub(due) >= startWindow {
			continue
		}
		date := now.Format("2006-01-02")
		s.mu.Lock()
		already := s.fired[dep] == date
		if !already {
			s.fired[dep] = date
		}
		s.mu.Unlock()
		if already {
			continue
		}
		if _, err := s.ledger.StartTrip(ctx, due, nil); err != nil {
			log.Printf("scheduled start %s: %v", dep, err)
			continue
		}
		log.Printf("scheduled departure %s fired", dep)
	}

	// Overdue trips end automatically so the next departure starts clean.
	if cur := s.ledger.CurrentTrip(); cur != nil {
		if now.Sub(cur.StartTime) >= s.cfg.EstimatedTripDur {
			if err := s.ledger.EndTrip(ctx); err != nil {
				log.Printf("scheduled end of %s: %v", cur.ID, err)
			} else {
				log.Printf("trip %s ended after estimated duration", cur.ID)
			}
		}
	}
	return nil
}

// departureAt resolves an HH:MM timetable entry to today's wall-clock
// instant.
func departureAt(hhmm string, now time.Time) (time.Time, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location()), nil
}
