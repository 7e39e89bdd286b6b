package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"bustracker/internal/api"
	"bustracker/internal/config"
	"bustracker/internal/distance"
	"bustracker/internal/fare"
	"bustracker/internal/metrics"
	"bustracker/internal/publisher"
	"bustracker/internal/route"
	"bustracker/internal/sched"
	"bustracker/internal/season"
	"bustracker/internal/store"
	"bustracker/internal/trip"
)

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func main() {
	// Load configuration from .env and environment
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db open error: %v", err)
	}
	defer st.Close()
	if err := st.Ping(ctx); err != nil {
		log.Fatalf("db ping error: %v", err)
	}
	if err := st.EnsureSchema(ctx); err != nil {
		log.Fatalf("schema error: %v", err)
	}
	if err := st.SeedFareStages(ctx); err != nil {
		log.Fatalf("seed fares error: %v", err)
	}
	if err := st.SeedTimetable(ctx, cfg.BusID, []string{"07:00", "18:00"}); err != nil {
		log.Fatalf("seed timetable error: %v", err)
	}

	// Metrics setup
	var mcol *metrics.Collector
	if cfg.MetricsAddr != "" {
		mcol = metrics.NewCollector()
		srv := mcol.Serve(cfg.MetricsAddr)
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	// NATS is optional; without it events stay local.
	var pub trip.Publisher
	if cfg.NATSURL != "" {
		np, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.LogNATSSubjects, pubMetrics(mcol))
		if err != nil {
			log.Fatalf("nats error: %v", err)
		}
		defer np.Close()
		pub = np
	}

	// Route cache over the routes table.
	routes := route.NewStore(st)
	if err := routes.Reload(ctx); err != nil {
		log.Printf("initial route load failed: %v (continuing with empty cache)", err)
	} else {
		log.Printf("loaded %d active routes", routes.Len())
	}

	dist := distance.NewClient(
		distance.WithOSRMBase(cfg.OSRMBase),
		distance.WithORS(cfg.ORSBase, cfg.ORSKey),
	)
	geocoder := distance.NewGeocoder(cfg.NominatimBase, mcol)
	clock := systemClock{}

	ledger := trip.NewLedger(trip.Config{
		BusID:            cfg.BusID,
		RouteName:        cfg.RouteName,
		EntryThreshold:   cfg.EntryThreshold,
		SeasonThreshold:  cfg.SeasonThreshold,
		RouteThresholdKM: cfg.RouteThresholdKM,
		MatchLookback:    cfg.MatchLookback,
		EstimatedTripDur: cfg.EstimatedTripDur,
	}, st, routes, season.NewValidator(routes, cfg.SegmentRadiusKM),
		fare.New(cfg.FareStageKM), dist, geocoder, clock, pub, mcol)

	if err := ledger.Resume(ctx); err != nil {
		log.Fatalf("resume trip error: %v", err)
	}

	scheduler := sched.New(sched.Config{
		BusID:            cfg.BusID,
		Interval:         cfg.SchedulerInterval,
		CleanupInterval:  cfg.CleanupInterval,
		CleanupAfter:     cfg.CleanupAfter,
		EstimatedTripDur: cfg.EstimatedTripDur,
		RouteRefresh:     cfg.RouteRefresh,
		Location:         cfg.Location,
	}, ledger, st, routes, clock, mcol)
	scheduler.Start(ctx)

	apiSrv := api.NewServer(cfg.BusID, ledger, st, routes, cfg.RouteThresholdKM).Serve(cfg.HTTPAddr)

	log.Printf("tracker running for bus %s (route %s)", cfg.BusID, cfg.RouteName)

	// Block until context cancelled
	<-ctx.Done()
	scheduler.Stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = apiSrv.Shutdown(shutdownCtx)
	log.Println("shutdown complete")
}

// pubMetrics adapts the Collector to the publisher's metrics interface
// while keeping a nil collector as a nil interface.
func pubMetrics(c *metrics.Collector) publisher.PublisherMetrics {
	if c == nil {
		return nil
	}
	return c
}
