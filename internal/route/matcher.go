package route

import (
	"sort"

	"bustracker/internal/geo"
)

// Default thresholds. Route proximity uses a tight waypoint-level
// radius; segment matching uses a wider stop-level capture radius since
// inter-city stops can sit far apart.
const (
	DefaultThresholdKM = 2.0
	SegmentRadiusKM    = 10.0
)

// Match is one candidate route for a GPS point.
type Match struct {
	Route       *Route  `json:"-"`
	RouteID     string  `json:"route_id"`
	RouteName   string  `json:"route_name"`
	DistanceKM  float64 `json:"distance_km"`
	Confidence  float64 `json:"confidence"`
	NearestStop string  `json:"nearest_stop"`
}

// Matcher answers geometric questions against the cached routes.
type Matcher struct {
	store *Store
}

func NewMatcher(store *Store) *Matcher {
	return &Matcher{store: store}
}

// NearestStop returns the closest stop of the route to the point and
// its distance in km. Ties keep the first stop encountered in route
// order. Returns nil for a route without stops.
func (m *Matcher) NearestStop(p geo.Point, r *Route) (float64, *Stop) {
	var nearest *Stop
	best := 0.0
	for i := range r.Stops {
		s := &r.Stops[i]
		d := geo.DistanceBetween(p, geo.Point{Lat: s.Latitude, Lon: s.Longitude})
		if nearest == nil || d < best {
			nearest = s
			best = d
		}
	}
	if nearest == nil {
		return 0, nil
	}
	return best, nearest
}

// IsNear reports whether the point lies within thresholdKM of any stop
// on the route.
func (m *Matcher) IsNear(p geo.Point, r *Route, thresholdKM float64) bool {
	d, s := m.NearestStop(p, r)
	return s != nil && d <= thresholdKM
}

// DetectRoutes returns the cached routes near the point ordered by
// confidence descending. Confidence is max(0, 1 - distance/threshold).
// Ties are broken by route id ascending so results are stable across
// cache reloads.
func (m *Matcher) DetectRoutes(p geo.Point, thresholdKM float64) []Match {
	var out []Match
	for _, r := range m.store.All() {
		d, s := m.NearestStop(p, r)
		if s == nil || d > thresholdKM {
			continue
		}
		conf := 1 - d/thresholdKM
		if conf < 0 {
			conf = 0
		}
		out = append(out, Match{
			Route:       r,
			RouteID:     r.ID,
			RouteName:   r.Name,
			DistanceKM:  d,
			Confidence:  conf,
			NearestStop: s.Name,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].RouteID < out[j].RouteID
	})
	return out
}

// IsJourneyOnRoute reports whether both endpoints independently lie
// within thresholdKM of some stop on the route. It does not check
// travel direction; use MatchSegment for that.
func (m *Matcher) IsJourneyOnRoute(entry, exit geo.Point, r *Route, thresholdKM float64) bool {
	return m.IsNear(entry, r, thresholdKM) && m.IsNear(exit, r, thresholdKM)
}

// MatchSegment finds the nearest stop to each endpoint within
// proximityKM and requires the entry stop to precede the exit stop in
// route order (forward travel). Returns (nil, nil) when either endpoint
// has no stop in range or the order is not strictly increasing.
func (m *Matcher) MatchSegment(entry, exit geo.Point, r *Route, proximityKM float64) (*Stop, *Stop) {
	entryDist, entryStop := m.NearestStop(entry, r)
	exitDist, exitStop := m.NearestStop(exit, r)
	if entryStop == nil || exitStop == nil {
		return nil, nil
	}
	if entryDist > proximityKM || exitDist > proximityKM {
		return nil, nil
	}
	if entryStop.Order >= exitStop.Order {
		return nil, nil
	}
	return entryStop, exitStop
}
