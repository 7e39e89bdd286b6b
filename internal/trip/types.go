package trip

import (
	"context"
	"time"

	"bustracker/internal/face"
	"bustracker/internal/fare"
	"bustracker/internal/geo"
	"bustracker/internal/season"
)

// Status of a trip session.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Trip is one operating run of a bus, bounding which entries can match
// which exits.
type Trip struct {
	ID              string     `json:"trip_id"`
	BusID           string     `json:"bus_id"`
	RouteName       string     `json:"route_name"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	Status          Status     `json:"status"`
	TotalPassengers int        `json:"total_passengers"`
	TotalUnmatched  int        `json:"total_unmatched"`
}

// Location is a GPS fix reported by a field device, optionally
// enriched with a reverse-geocoded place name.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	DeviceID  string  `json:"device_id,omitempty"`
	Timestamp string  `json:"timestamp,omitempty"`
	Name      string  `json:"location_name,omitempty"`
}

// Point returns the location as a geo point.
func (l Location) Point() geo.Point { return geo.Point{Lat: l.Latitude, Lon: l.Longitude} }

// DeviceLog is a validated face-detection event from an entry or exit
// camera.
type DeviceLog struct {
	FaceID    int            `json:"face_id"`
	Embedding face.Embedding `json:"face_embedding"`
	Latitude  float64        `json:"latitude"`
	Longitude float64        `json:"longitude"`
	DeviceID  string         `json:"device_id"`
	Timestamp string         `json:"timestamp"`
}

// SeasonHint tags an entry record when the rider already looked like a
// season-ticket member at boarding. Informational only; exemption is
// decided at exit time.
type SeasonHint struct {
	MemberID   string  `json:"member_id"`
	MemberName string  `json:"member_name"`
	Similarity float64 `json:"similarity_score"`
}

// EntryRecord is an open boarding event awaiting its exit match. Owned
// exclusively by the ledger; consumed exactly once, either into a
// Journey or an UnmatchedRecord.
type EntryRecord struct {
	ID             string         `json:"id"`
	TripID         string         `json:"trip_id"`
	BusID          string         `json:"bus_id"`
	RouteName      string         `json:"route_name"`
	FaceID         int            `json:"face_id"`
	Embedding      face.Embedding `json:"face_embedding"`
	EntryLocation  Location       `json:"entry_location"`
	EntryTimestamp time.Time      `json:"entry_timestamp"`
	SeasonHint     *SeasonHint    `json:"season_ticket_detected,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// DistanceResult is a road-distance measurement between two points.
type DistanceResult struct {
	DistanceKM      float64 `json:"distance_km"`
	DurationMinutes float64 `json:"duration_minutes"`
	Provider        string  `json:"provider"`
}

// SeasonTicketInfo records an applied exemption on a journey.
type SeasonTicketInfo struct {
	MemberID   string              `json:"member_id"`
	MemberName string              `json:"member_name"`
	TicketType string              `json:"ticket_type"`
	Similarity float64             `json:"similarity_score"`
	Match      season.MatchDetails `json:"valid_route"`
}

// Journey is a finalized entry/exit pair. Append-only: never mutated
// after creation.
type Journey struct {
	ID              string            `json:"id"`
	TripID          string            `json:"trip_id"`
	BusID           string            `json:"bus_id"`
	RouteName       string            `json:"route_name"`
	EntryLocation   Location          `json:"entry_location"`
	ExitLocation    Location          `json:"exit_location"`
	EntryTimestamp  time.Time         `json:"entry_timestamp"`
	ExitTimestamp   time.Time         `json:"exit_timestamp"`
	DurationMinutes float64           `json:"journey_duration_minutes"`
	Similarity      float64           `json:"similarity_score"`
	EntryFaceID     int               `json:"entry_face_id"`
	ExitFaceID      int               `json:"exit_face_id"`
	Distance        DistanceResult    `json:"distance_info"`
	IsSeasonTicket  bool              `json:"is_season_ticket"`
	SeasonTicket    *SeasonTicketInfo `json:"season_ticket_info,omitempty"`
	Price           float64           `json:"price"`
	FareStage       int               `json:"stage_number"`
	CreatedAt       time.Time         `json:"created_at"`
}

// RecordType distinguishes unmatched entries from unmatched exits.
type RecordType string

const (
	RecordEntryType RecordType = "ENTRY"
	RecordExitType  RecordType = "EXIT"
)

// UnmatchedRecord preserves a face event that never became a journey,
// with the best similarity observed for diagnostics.
type UnmatchedRecord struct {
	ID             string         `json:"id"`
	TripID         string         `json:"trip_id"`
	BusID          string         `json:"bus_id"`
	RouteName      string         `json:"route_name"`
	Type           RecordType     `json:"type"`
	FaceID         int            `json:"face_id"`
	Embedding      face.Embedding `json:"face_embedding"`
	Location       Location       `json:"location"`
	Timestamp      time.Time      `json:"timestamp"`
	BestSimilarity float64        `json:"best_similarity_found"`
	Reason         string         `json:"reason"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Stats aggregates the tracker's persisted counters.
type Stats struct {
	TotalPassengers int `json:"total_passengers"`
	TotalUnmatched  int `json:"total_unmatched"`
	OpenEntries     int `json:"open_entries"`
	TotalTrips      int `json:"total_trips"`
	SeasonMembers   int `json:"season_ticket_members"`
}

// Store is the persistence contract the ledger runs against. DeleteEntry
// must be atomic per record: it reports whether this caller removed the
// record, so concurrent exits cannot both consume the same entry.
type Store interface {
	ActiveTrip(ctx context.Context, busID string) (*Trip, error)
	InsertTrip(ctx context.Context, t *Trip) error
	CompleteTrip(ctx context.Context, tripID string, end time.Time, passengers, unmatched int) error

	InsertEntry(ctx context.Context, e *EntryRecord) error
	OpenEntries(ctx context.Context, busID, tripID string, since time.Time) ([]EntryRecord, error)
	OpenEntriesForBus(ctx context.Context, busID string) ([]EntryRecord, error)
	StaleEntries(ctx context.Context, busID string, before time.Time) ([]EntryRecord, error)
	DeleteEntry(ctx context.Context, id string) (bool, error)
	CountOpenEntries(ctx context.Context, tripID string) (int, error)

	InsertJourney(ctx context.Context, j *Journey) error
	CountJourneys(ctx context.Context, tripID string) (int, error)
	InsertUnmatched(ctx context.Context, u *UnmatchedRecord) error

	ActiveMembers(ctx context.Context, at time.Time) ([]season.Member, error)
	RecordMemberUse(ctx context.Context, memberID string, at time.Time) error

	ActiveFareStages(ctx context.Context) ([]fare.Stage, error)

	Counts(ctx context.Context, busID string) (Stats, error)
}

// DistanceProvider measures road distance between two points. It may
// fail or time out; the ledger then falls back to straight-line
// distance and never blocks journey finalization on it.
type DistanceProvider interface {
	RoadDistance(ctx context.Context, from, to geo.Point) (DistanceResult, error)
}

// Geocoder names a coordinate. A false return degrades to an unnamed
// location, never an error.
type Geocoder interface {
	LocationName(ctx context.Context, p geo.Point) (string, bool)
}

// Clock supplies wall-clock time, substituted for unsynced device
// timestamps and used for trip durations.
type Clock interface {
	Now() time.Time
}

// Publisher emits journey and trip lifecycle events for downstream
// consumers. Publish failures are logged, never fatal.
type Publisher interface {
	PublishJourney(j *Journey) error
	PublishUnmatched(u *UnmatchedRecord) error
	PublishTrip(event string, t *Trip) error
}
