package route

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
)

// Source lists active routes from the persistent store.
type Source interface {
	ListActiveRoutes(ctx context.Context) ([]Route, error)
}

// Store caches active routes in memory. Reload replaces the whole cache
// at once, so concurrent readers see either the old set or the new set,
// never a mix. A failed reload keeps the previous cache intact.
type Store struct {
	src Source

	mu     sync.RWMutex
	routes map[string]*Route
}

func NewStore(src Source) *Store {
	return &Store{src: src, routes: make(map[string]*Route)}
}

// Reload fetches active routes and swaps the cache. An empty result is
// valid (zero routes); only a fetch error leaves the cache untouched.
func (s *Store) Reload(ctx context.Context) error {
	routes, err := s.src.ListActiveRoutes(ctx)
	if err != nil {
		return fmt.Errorf("load routes: %w", err)
	}
	next := make(map[string]*Route, len(routes))
	for i := range routes {
		r := routes[i]
		if !r.Active {
			continue
		}
		sort.Slice(r.Stops, func(a, b int) bool { return r.Stops[a].Order < r.Stops[b].Order })
		next[r.ID] = &r
	}
	s.mu.Lock()
	s.routes = next
	s.mu.Unlock()
	log.Printf("route cache reloaded: %d active routes", len(next))
	return nil
}

// Get returns the cached route by id, or nil.
func (s *Store) Get(id string) *Route {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.routes[id]
}

// All returns the cached routes sorted by route id for deterministic
// iteration across reloads.
func (s *Store) All() []*Route {
	s.mu.RLock()
	out := make([]*Route, 0, len(s.routes))
	for _, r := range s.routes {
		out = append(out, r)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of cached routes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.routes)
}
