package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	TripsStarted prometheus.Counter
	TripsEnded   prometheus.Counter

	EntriesRecorded prometheus.Counter
	JourneysMatched prometheus.Counter
	Unmatched       *prometheus.CounterVec // reason label: exit_no_match|entry_expired

	SeasonExemptions prometheus.Counter
	FareCharged      prometheus.Histogram

	DistanceLookups *prometheus.CounterVec // provider label: osrm|ors|haversine_fallback
	GeocodeCache    *prometheus.CounterVec // result label: hit|miss

	OpenEntries prometheus.Gauge

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
	PublishDuration prometheus.Histogram

	SchedulerRuns prometheus.Counter
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		TripsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_trips_started_total",
			Help: "Total trip sessions started.",
		}),
		TripsEnded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_trips_ended_total",
			Help: "Total trip sessions completed.",
		}),
		EntriesRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_entries_recorded_total",
			Help: "Total boarding events buffered.",
		}),
		JourneysMatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_journeys_matched_total",
			Help: "Total entry/exit pairs finalized as journeys.",
		}),
		Unmatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_unmatched_records_total",
			Help: "Total face events preserved as unmatched.",
		}, []string{"reason"}),
		SeasonExemptions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_season_exemptions_total",
			Help: "Total journeys exempted by a season ticket.",
		}),
		FareCharged: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracker_fare_charged",
			Help:    "Fare amounts charged per journey.",
			Buckets: prometheus.LinearBuckets(0, 50, 10),
		}),
		DistanceLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_distance_lookups_total",
			Help: "Road distance measurements by provider.",
		}, []string{"provider"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_geocode_cache_total",
			Help: "Reverse geocoding cache lookups.",
		}, []string{"result"}),
		OpenEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_open_entries",
			Help: "Boarding events currently awaiting an exit match.",
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracker_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		SchedulerRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_scheduler_runs_total",
			Help: "Scheduler evaluations performed.",
		}),
	}

	reg.MustRegister(
		c.TripsStarted, c.TripsEnded,
		c.EntriesRecorded, c.JourneysMatched, c.Unmatched,
		c.SeasonExemptions, c.FareCharged,
		c.DistanceLookups, c.GeocodeCache, c.OpenEntries,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected, c.PublishDuration,
		c.SchedulerRuns,
	)

	return c
}

// Publisher metrics hooks.

func (c *Collector) NATSPublishedInc()  { c.NATSPublished.Inc() }
func (c *Collector) NATSPublishErrInc() { c.NATSPublishErrs.Inc() }
func (c *Collector) PublishObserve(d time.Duration) {
	c.PublishDuration.Observe(d.Seconds())
}
func (c *Collector) NATSSetConnected(connected bool) {
	if connected {
		c.NATSConnected.Set(1)
	} else {
		c.NATSConnected.Set(0)
	}
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	log.Printf("metrics listening on %s", addr)
	return srv
}
