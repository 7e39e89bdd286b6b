package distance

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"bustracker/internal/geo"
	"bustracker/internal/metrics"
)

const DefaultNominatimBase = "https://nominatim.openstreetmap.org"

// Geocoder reverse-geocodes coordinates through Nominatim. Results are
// cached on coordinates rounded to four decimals (about 11 m), and
// requests are spaced at least one second apart per the Nominatim usage
// policy.
type Geocoder struct {
	http    *http.Client
	base    string
	metrics *metrics.Collector

	mu       sync.Mutex
	cache    map[string]string
	lastCall time.Time
}

func NewGeocoder(base string, mcol *metrics.Collector) *Geocoder {
	if base == "" {
		base = DefaultNominatimBase
	}
	return &Geocoder{
		http:    &http.Client{Timeout: defaultTimeout},
		base:    base,
		metrics: mcol,
		cache:   map[string]string{},
	}
}

type nominatimResponse struct {
	DisplayName string `json:"display_name"`
	Address     struct {
		Town    string `json:"town"`
		City    string `json:"city"`
		Village string `json:"village"`
		County  string `json:"county"`
		State   string `json:"state"`
	} `json:"address"`
}

// LocationName names a coordinate, returning false when the lookup
// fails or yields nothing usable.
func (g *Geocoder) LocationName(ctx context.Context, p geo.Point) (string, bool) {
	if !p.Valid() {
		return "", false
	}
	key := fmt.Sprintf("%.4f,%.4f", p.Lat, p.Lon)

	g.mu.Lock()
	if name, ok := g.cache[key]; ok {
		g.mu.Unlock()
		if g.metrics != nil {
			g.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		}
		return name, name != ""
	}
	// Rate limit inside the lock so concurrent callers queue.
	if wait := time.Second - time.Since(g.lastCall); wait > 0 {
		time.Sleep(wait)
	}
	g.lastCall = time.Now()
	g.mu.Unlock()

	if g.metrics != nil {
		g.metrics.GeocodeCache.WithLabelValues("miss").Inc()
	}

	u := fmt.Sprintf("%s/reverse?lat=%f&lon=%f&format=json&zoom=14", g.base, p.Lat, p.Lon)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", false
	}
	req.Header.Set("User-Agent", "bustracker/1.0")
	resp, err := g.http.Do(req)
	if err != nil {
		log.Printf("reverse geocode %s: %v", key, err)
		return "", false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Printf("reverse geocode %s: http %d", key, resp.StatusCode)
		return "", false
	}
	var nr nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&nr); err != nil {
		log.Printf("reverse geocode %s: %v", key, err)
		return "", false
	}

	name := firstNonEmpty(nr.Address.Town, nr.Address.City, nr.Address.Village, nr.Address.County, nr.Address.State, nr.DisplayName)

	g.mu.Lock()
	g.cache[key] = name
	g.mu.Unlock()
	return name, name != ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
