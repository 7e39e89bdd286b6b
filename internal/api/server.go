// Package api exposes the tracker's HTTP surface: device log ingestion,
// trip control, passenger and unmatched queries, route detection, and
// season-ticket administration.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"bustracker/internal/geo"
	"bustracker/internal/route"
	"bustracker/internal/season"
	"bustracker/internal/store"
	"bustracker/internal/trip"
)

// Ledger is the slice of the trip ledger the API drives.
type Ledger interface {
	RecordEntry(ctx context.Context, dl trip.DeviceLog) (*trip.EntryRecord, error)
	RecordExit(ctx context.Context, dl trip.DeviceLog) (*trip.ExitOutcome, error)
	StartTrip(ctx context.Context, start time.Time, gps *geo.Point) (*trip.Trip, error)
	EndTrip(ctx context.Context) error
	Status(ctx context.Context) (*trip.TripStatus, error)
	Stats(ctx context.Context) (trip.Stats, error)
}

// Storage is the read/admin surface the API queries directly.
type Storage interface {
	Ping(ctx context.Context) error
	RecentTrips(ctx context.Context, busID string, limit int) ([]trip.Trip, error)
	Journeys(ctx context.Context, tripID string, limit int) ([]trip.Journey, error)
	Unmatched(ctx context.Context, tripID string, limit int) ([]trip.UnmatchedRecord, error)
	Members(ctx context.Context) ([]season.Member, error)
	UpsertMember(ctx context.Context, m *season.Member) error
	DeactivateMember(ctx context.Context, memberID string) error
}

type Server struct {
	busID     string
	ledger    Ledger
	storage   Storage
	matcher   *route.Matcher
	threshold float64
}

func NewServer(busID string, ledger Ledger, storage Storage, routes *route.Store, routeThresholdKM float64) *Server {
	if routeThresholdKM <= 0 {
		routeThresholdKM = route.DefaultThresholdKM
	}
	return &Server{
		busID:     busID,
		ledger:    ledger,
		storage:   storage,
		matcher:   route.NewMatcher(routes),
		threshold: routeThresholdKM,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/health", s.handleHealth)

	r.Post("/api/entry-logs", s.handleEntryLog)
	r.Post("/api/exit-logs", s.handleExitLog)

	r.Post("/api/trips/start", s.handleStartTrip)
	r.Post("/api/trips/end", s.handleEndTrip)
	r.Get("/api/trips/status", s.handleTripStatus)
	r.Get("/api/trips", s.handleTrips)

	r.Get("/api/passengers", s.handlePassengers)
	r.Get("/api/unmatched", s.handleUnmatched)
	r.Get("/api/stats", s.handleStats)

	r.Post("/api/detect-route", s.handleDetectRoute)

	r.Get("/api/season-tickets", s.handleListMembers)
	r.Post("/api/season-tickets", s.handleUpsertMember)
	r.Delete("/api/season-tickets/{memberID}", s.handleDeactivateMember)

	return r
}

// Serve starts the API server on addr.
func (s *Server) Serve(addr string) *http.Server {
	srv := &http.Server{Addr: addr, Handler: s.Router()}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("api server error: %v", err)
		}
	}()
	log.Printf("api listening on %s", addr)
	return srv
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.storage.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":    "error",
			"database":  "disconnected",
			"timestamp": time.Now().UTC(),
			"error":     err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"database":  "connected",
		"bus_id":    s.busID,
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleEntryLog(w http.ResponseWriter, r *http.Request) {
	var dl trip.DeviceLog
	if !decodeBody(w, r, &dl) {
		return
	}
	rec, err := s.ledger.RecordEntry(r.Context(), dl)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleExitLog(w http.ResponseWriter, r *http.Request) {
	var dl trip.DeviceLog
	if !decodeBody(w, r, &dl) {
		return
	}
	out, err := s.ledger.RecordExit(r.Context(), dl)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	status := http.StatusCreated
	if out.Journey == nil {
		// Preserved but not matched.
		status = http.StatusAccepted
	}
	writeJSON(w, status, out)
}

type startTripRequest struct {
	StartTime string   `json:"start_time,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

func (s *Server) handleStartTrip(w http.ResponseWriter, r *http.Request) {
	var req startTripRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	var start time.Time
	if req.StartTime != "" {
		ts, err := time.Parse(time.RFC3339, req.StartTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "start_time must be RFC 3339")
			return
		}
		start = ts
	}
	var gps *geo.Point
	if req.Latitude != nil && req.Longitude != nil {
		p := geo.Point{Lat: *req.Latitude, Lon: *req.Longitude}
		if !p.Valid() {
			writeError(w, http.StatusBadRequest, "invalid coordinates")
			return
		}
		gps = &p
	}
	t, err := s.ledger.StartTrip(r.Context(), start, gps)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleEndTrip(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.EndTrip(r.Context()); err != nil {
		if errors.Is(err, trip.ErrNoActiveTrip) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "no_active_trip"})
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

func (s *Server) handleTripStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.ledger.Status(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleTrips(w http.ResponseWriter, r *http.Request) {
	trips, err := s.storage.RecentTrips(r.Context(), s.busID, queryLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trips": emptyIfNil(trips)})
}

func (s *Server) handlePassengers(w http.ResponseWriter, r *http.Request) {
	journeys, err := s.storage.Journeys(r.Context(), r.URL.Query().Get("trip_id"), queryLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"passengers": emptyIfNil(journeys)})
}

func (s *Server) handleUnmatched(w http.ResponseWriter, r *http.Request) {
	recs, err := s.storage.Unmatched(r.Context(), r.URL.Query().Get("trip_id"), queryLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"unmatched": emptyIfNil(recs)})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.ledger.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type detectRouteRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (s *Server) handleDetectRoute(w http.ResponseWriter, r *http.Request) {
	var req detectRouteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p := geo.Point{Lat: req.Latitude, Lon: req.Longitude}
	if !p.Valid() {
		writeError(w, http.StatusBadRequest, "invalid coordinates")
		return
	}
	matches := s.matcher.DetectRoutes(p, s.threshold)
	writeJSON(w, http.StatusOK, map[string]any{"matches": emptyIfNil(matches)})
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.storage.Members(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// Embeddings are large and sensitive; strip them from listings.
	for i := range members {
		members[i].Embedding = nil
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": emptyIfNil(members)})
}

func (s *Server) handleUpsertMember(w http.ResponseWriter, r *http.Request) {
	var m season.Member
	if !decodeBody(w, r, &m) {
		return
	}
	if m.MemberID == "" || m.Name == "" {
		writeError(w, http.StatusBadRequest, "member_id and name are required")
		return
	}
	if len(m.Embedding) == 0 {
		writeError(w, http.StatusBadRequest, "face_embedding is required")
		return
	}
	if !m.ValidUntil.After(m.ValidFrom) {
		writeError(w, http.StatusBadRequest, "valid_until must be after valid_from")
		return
	}
	if err := s.storage.UpsertMember(r.Context(), &m); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"member_id": m.MemberID, "status": "enrolled"})
}

func (s *Server) handleDeactivateMember(w http.ResponseWriter, r *http.Request) {
	memberID := chi.URLParam(r, "memberID")
	if err := s.storage.DeactivateMember(r.Context(), memberID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "member not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"member_id": memberID, "status": "deactivated"})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func writeLedgerError(w http.ResponseWriter, err error) {
	if errors.Is(err, trip.ErrMissingEmbedding) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func queryLimit(r *http.Request) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
