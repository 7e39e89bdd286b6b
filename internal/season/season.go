// Package season decides whether a matched journey is exempt from fare
// under a rider's season ticket. Validation runs a ranked chain of
// strategies, from GPS segment matching down to plain route-name
// matching, and always reports which rule fired.
package season

import (
	"strings"
	"time"

	"bustracker/internal/face"
)

// Segment is one authorized from/to pair on a member's ticket. When
// RoutePatterns is set the segment matches by route name pattern
// instead of stop names.
type Segment struct {
	FromLocation  string   `json:"from_location"`
	ToLocation    string   `json:"to_location"`
	RoutePatterns []string `json:"route_patterns,omitempty"`
}

// Member is an enrolled season-ticket rider.
type Member struct {
	MemberID   string         `json:"member_id"`
	Name       string         `json:"name"`
	Embedding  face.Embedding `json:"face_embedding"`
	TicketType string         `json:"ticket_type"`
	ValidFrom  time.Time      `json:"valid_from"`
	ValidUntil time.Time      `json:"valid_until"`
	Active     bool           `json:"is_active"`
	Segments   []Segment      `json:"valid_routes"`
	TotalTrips int            `json:"total_trips"`
	LastUsed   *time.Time     `json:"last_used,omitempty"`
}

// ValidAt reports whether the membership covers the given instant.
func (m *Member) ValidAt(t time.Time) bool {
	return m.Active && !t.Before(m.ValidFrom) && !t.After(m.ValidUntil)
}

// MatchType tags the strategy that accepted (or rejected) a journey.
type MatchType string

const (
	MatchUnrestricted MatchType = "unrestricted"      // no segments on the ticket
	MatchGPSSegment   MatchType = "gps_segment"       // stop-order segment match
	MatchProximity    MatchType = "location_proximity" // raw distance to named locations
	MatchNameFallback MatchType = "name_substring"    // configured route name only
	MatchNone         MatchType = "no_match"
)

// MatchDetails explains a validation outcome for auditing.
type MatchDetails struct {
	Type         MatchType `json:"match_type"`
	RouteID      string    `json:"route_id,omitempty"`
	RouteName    string    `json:"route_name,omitempty"`
	Pattern      string    `json:"pattern,omitempty"`
	EntryStop    string    `json:"entry_stop,omitempty"`
	ExitStop     string    `json:"exit_stop,omitempty"`
	EntryOrder   int       `json:"entry_order,omitempty"`
	ExitOrder    int       `json:"exit_order,omitempty"`
	FromLocation string    `json:"from_location,omitempty"`
	ToLocation   string    `json:"to_location,omitempty"`
	Note         string    `json:"note,omitempty"`
}

// containsFold reports case-insensitive substring containment in either
// direction, the fuzzy rule used throughout route/location matching.
func containsFold(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
