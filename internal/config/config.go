package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string

	BusID     string
	RouteName string

	HTTPAddr    string
	MetricsAddr string

	NATSURL         string
	LogNATSSubjects bool

	EntryThreshold  float64
	SeasonThreshold float64

	MatchLookback    time.Duration
	CleanupAfter     time.Duration
	CleanupInterval  time.Duration
	EstimatedTripDur time.Duration

	RouteThresholdKM  float64
	SegmentRadiusKM   float64
	FareStageKM       float64
	RouteRefresh      time.Duration
	SchedulerInterval time.Duration

	OSRMBase      string
	ORSBase       string
	ORSKey        string
	NominatimBase string

	Location *time.Location
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{}

	// Database URL: prefer DATABASE_URL / PG_DSN, else build from PG* vars
	dsn := firstNonEmpty(
		os.Getenv("DATABASE_URL"),
		os.Getenv("PG_DSN"),
	)
	if dsn == "" {
		host := getenvDefault("PGHOST", "127.0.0.1")
		port := getenvDefault("PGPORT", "5432")
		user := getenvDefault("PGUSER", "postgres")
		pass := os.Getenv("PGPASSWORD")
		db := os.Getenv("PGDATABASE")
		if db == "" {
			return nil, errors.New("PGDATABASE or DATABASE_URL must be set")
		}
		sslmode := getenvDefault("PGSSLMODE", "disable")
		if pass != "" {
			cfg.DatabaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode)
		} else {
			cfg.DatabaseURL = fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode)
		}
	} else {
		cfg.DatabaseURL = dsn
	}

	cfg.BusID = getenvDefault("BUS_ID", "BUS_NA_1234")
	cfg.RouteName = getenvDefault("ROUTE_NAME", "Jaffna-Colombo")

	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", ":8090")
	// Empty disables the metrics server.
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")

	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.LogNATSSubjects = boolEnv("LOG_NATS_SUBJECTS")

	var err error
	if cfg.EntryThreshold, err = floatEnv("ENTRY_MATCH_THRESHOLD", 0.7); err != nil {
		return nil, err
	}
	if cfg.SeasonThreshold, err = floatEnv("SEASON_MATCH_THRESHOLD", 0.65); err != nil {
		return nil, err
	}
	if cfg.RouteThresholdKM, err = floatEnv("ROUTE_DETECT_THRESHOLD_KM", 2.0); err != nil {
		return nil, err
	}
	if cfg.SegmentRadiusKM, err = floatEnv("SEGMENT_RADIUS_KM", 10.0); err != nil {
		return nil, err
	}
	if cfg.FareStageKM, err = floatEnv("FARE_STAGE_KM", 3.5); err != nil {
		return nil, err
	}

	if cfg.MatchLookback, err = hoursEnv("MATCH_LOOKBACK_HOURS", 48*time.Hour); err != nil {
		return nil, err
	}
	if cfg.CleanupAfter, err = hoursEnv("ENTRY_CLEANUP_HOURS", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.EstimatedTripDur, err = hoursEnv("ESTIMATED_TRIP_HOURS", 8*time.Hour); err != nil {
		return nil, err
	}
	if cfg.CleanupInterval, err = secondsEnv("CLEANUP_INTERVAL_SEC", time.Hour); err != nil {
		return nil, err
	}
	if cfg.RouteRefresh, err = secondsEnv("ROUTE_REFRESH_INTERVAL_SEC", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SchedulerInterval, err = secondsEnv("SCHEDULER_INTERVAL_SEC", 30*time.Second); err != nil {
		return nil, err
	}

	cfg.OSRMBase = getenvDefault("OSRM_BASE_URL", "https://router.project-osrm.org")
	cfg.ORSBase = getenvDefault("ORS_BASE_URL", "https://api.openrouteservice.org")
	cfg.ORSKey = os.Getenv("ORS_API_KEY")
	cfg.NominatimBase = getenvDefault("NOMINATIM_BASE_URL", "https://nominatim.openstreetmap.org")

	// Time zone
	tzName := getenvDefault("TZ", "")
	if tzName == "" {
		cfg.Location = time.Local
	} else {
		loc, err := time.LoadLocation(tzName)
		if err != nil {
			return nil, fmt.Errorf("invalid TZ: %v", err)
		}
		cfg.Location = loc
	}

	return cfg, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func floatEnv(k string, def float64) (float64, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", k, v)
	}
	return f, nil
}

func hoursEnv(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	h, err := strconv.Atoi(v)
	if err != nil || h <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", k, v)
	}
	return time.Duration(h) * time.Hour, nil
}

func secondsEnv(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	sec, err := strconv.Atoi(v)
	if err != nil || sec <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", k, v)
	}
	return time.Duration(sec) * time.Second, nil
}

func boolEnv(k string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(k))) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	}
	return false
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
