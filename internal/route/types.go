package route

// Stop is a named, geolocated point on a route with a fixed sequence
// position. Order starts at 1 and is unique within a route;
// DistanceFromStartKM is non-decreasing with Order.
type Stop struct {
	Name                string  `json:"stop_name"`
	Latitude            float64 `json:"latitude"`
	Longitude           float64 `json:"longitude"`
	Order               int     `json:"stop_order"`
	DistanceFromStartKM float64 `json:"distance_from_start_km"`
}

// Route is an ordered sequence of stops in one direction of travel.
// Routes are loaded read-only into the store's cache; stops are sorted
// by Order ascending.
type Route struct {
	ID              string  `json:"route_id"`
	Name            string  `json:"route_name"`
	Direction       string  `json:"direction"`
	FromLocation    string  `json:"from_location"`
	ToLocation      string  `json:"to_location"`
	Stops           []Stop  `json:"stops"`
	TotalDistanceKM float64 `json:"total_distance_km"`
	Active          bool    `json:"is_active"`
}

// Terminus returns the last stop of the route, or nil for an empty one.
func (r *Route) Terminus() *Stop {
	if len(r.Stops) == 0 {
		return nil
	}
	return &r.Stops[len(r.Stops)-1]
}
