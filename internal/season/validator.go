package season

import (
	"fmt"
	"log"
	"strings"

	"bustracker/internal/geo"
	"bustracker/internal/route"
)

// KnownLocations maps lowercase town names to coordinates for the
// proximity fallback when route stop data is unavailable.
var KnownLocations = map[string]geo.Point{
	"jaffna":         {Lat: 9.6615, Lon: 80.0255},
	"kodikamam":      {Lat: 9.6833, Lon: 80.0833},
	"chavakachcheri": {Lat: 9.6667, Lon: 80.1667},
	"kilinochchi":    {Lat: 9.3833, Lon: 80.4000},
	"vavuniya":       {Lat: 8.7542, Lon: 80.4982},
	"anuradhapura":   {Lat: 8.3114, Lon: 80.4037},
	"kurunegala":     {Lat: 7.4863, Lon: 80.3623},
	"colombo":        {Lat: 6.9271, Lon: 79.8612},
	"kandy":          {Lat: 7.2906, Lon: 80.6337},
}

// Validator checks journeys against a member's authorized segments.
type Validator struct {
	matcher     *route.Matcher
	store       *route.Store
	known       map[string]geo.Point
	proximityKM float64
}

func NewValidator(store *route.Store, proximityKM float64) *Validator {
	if proximityKM <= 0 {
		proximityKM = route.SegmentRadiusKM
	}
	return &Validator{
		matcher:     route.NewMatcher(store),
		store:       store,
		known:       KnownLocations,
		proximityKM: proximityKM,
	}
}

// Validate decides exemption eligibility for a journey. Strategies run
// in priority order; the first acceptance wins, and the returned
// details always name the rule that fired.
//
// currentRouteName is the route the bus is presently configured for; it
// is only consulted by the last-resort name fallback.
func (v *Validator) Validate(entry, exit geo.Point, currentRouteName string, segments []Segment) (bool, MatchDetails) {
	if len(segments) == 0 {
		return true, MatchDetails{Type: MatchUnrestricted, Note: "no route restrictions on ticket"}
	}

	if ok, d := v.matchByGPSSegment(entry, exit, segments); ok {
		return true, d
	}
	if ok, d := v.matchByProximity(entry, exit, segments); ok {
		return true, d
	}
	if ok, d := v.matchByRouteName(currentRouteName, segments); ok {
		return true, d
	}
	return false, MatchDetails{
		Type: MatchNone,
		Note: "journey not within any authorized segment",
	}
}

// matchByGPSSegment locates the journey on a cached route via stop
// proximity and forward stop order, then checks the matched stops
// against each authorized segment. A journey that covers only part of
// an authorized route still qualifies: any two stops in increasing
// order are accepted, the exit stop need not be the route terminus.
func (v *Validator) matchByGPSSegment(entry, exit geo.Point, segments []Segment) (bool, MatchDetails) {
	for _, r := range v.store.All() {
		if len(r.Stops) == 0 {
			continue
		}
		entryStop, exitStop := v.matcher.MatchSegment(entry, exit, r, v.proximityKM)
		if entryStop == nil || exitStop == nil {
			continue
		}
		for _, seg := range segments {
			if len(seg.RoutePatterns) > 0 {
				for _, pat := range seg.RoutePatterns {
					if containsFold(r.Name, pat) {
						return true, MatchDetails{
							Type:       MatchGPSSegment,
							RouteID:    r.ID,
							RouteName:  r.Name,
							Pattern:    pat,
							EntryStop:  entryStop.Name,
							ExitStop:   exitStop.Name,
							EntryOrder: entryStop.Order,
							ExitOrder:  exitStop.Order,
							Note:       "route name matched ticket pattern",
						}
					}
				}
				continue
			}
			if containsFold(entryStop.Name, seg.FromLocation) && containsFold(exitStop.Name, seg.ToLocation) {
				note := "authorized segment travelled end to end"
				if term := r.Terminus(); term != nil && exitStop.Order < term.Order {
					note = fmt.Sprintf("partial route: %s to %s is within %s", entryStop.Name, exitStop.Name, r.Name)
				}
				return true, MatchDetails{
					Type:         MatchGPSSegment,
					RouteID:      r.ID,
					RouteName:    r.Name,
					EntryStop:    entryStop.Name,
					ExitStop:     exitStop.Name,
					EntryOrder:   entryStop.Order,
					ExitOrder:    exitStop.Order,
					FromLocation: seg.FromLocation,
					ToLocation:   seg.ToLocation,
					Note:         note,
				}
			}
		}
	}
	return false, MatchDetails{}
}

// matchByProximity compares the raw entry/exit coordinates against the
// known coordinates of the segment's named locations. Used when no
// route stop data covers the journey.
func (v *Validator) matchByProximity(entry, exit geo.Point, segments []Segment) (bool, MatchDetails) {
	for _, seg := range segments {
		from, okFrom := v.known[normalize(seg.FromLocation)]
		to, okTo := v.known[normalize(seg.ToLocation)]
		if !okFrom || !okTo {
			continue
		}
		entryDist := geo.DistanceBetween(entry, from)
		exitDist := geo.DistanceBetween(exit, to)
		if entryDist <= v.proximityKM && exitDist <= v.proximityKM {
			return true, MatchDetails{
				Type:         MatchProximity,
				FromLocation: seg.FromLocation,
				ToLocation:   seg.ToLocation,
				Note: fmt.Sprintf("entry %.1f km from %s, exit %.1f km from %s",
					entryDist, seg.FromLocation, exitDist, seg.ToLocation),
			}
		}
	}
	return false, MatchDetails{}
}

// matchByRouteName is the least precise strategy: substring matching
// against the bus's configured route name, with no GPS at all.
func (v *Validator) matchByRouteName(routeName string, segments []Segment) (bool, MatchDetails) {
	if routeName == "" {
		return false, MatchDetails{}
	}
	for _, seg := range segments {
		if len(seg.RoutePatterns) > 0 {
			for _, pat := range seg.RoutePatterns {
				if containsFold(routeName, pat) {
					return true, MatchDetails{
						Type:      MatchNameFallback,
						RouteName: routeName,
						Pattern:   pat,
						Note:      "configured route name matched ticket pattern",
					}
				}
			}
			continue
		}
		if containsFold(routeName, seg.FromLocation) && containsFold(routeName, seg.ToLocation) {
			log.Printf("season: name fallback matched %s for %s -> %s", routeName, seg.FromLocation, seg.ToLocation)
			return true, MatchDetails{
				Type:         MatchNameFallback,
				RouteName:    routeName,
				FromLocation: seg.FromLocation,
				ToLocation:   seg.ToLocation,
				Note:         "configured route name contains both ticket locations",
			}
		}
	}
	return false, MatchDetails{}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
