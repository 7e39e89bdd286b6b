package geo

import (
	"fmt"
	"math"
)

const earthRadiusKM = 6371.0

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

// Valid reports whether the point carries finite, in-range coordinates.
func (p Point) Valid() bool {
	return validCoord(p.Lat, 90) && validCoord(p.Lon, 180)
}

func validCoord(v, limit float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= -limit && v <= limit
}

// Distance returns the Haversine great-circle distance in kilometers
// between two coordinates. Coordinates outside the valid lat/lon range
// (or NaN/Inf) are an error, never a silent zero.
func Distance(lat1, lon1, lat2, lon2 float64) (float64, error) {
	a := Point{Lat: lat1, Lon: lon1}
	b := Point{Lat: lat2, Lon: lon2}
	if !a.Valid() {
		return 0, fmt.Errorf("invalid coordinates: %v, %v", lat1, lon1)
	}
	if !b.Valid() {
		return 0, fmt.Errorf("invalid coordinates: %v, %v", lat2, lon2)
	}
	return DistanceBetween(a, b), nil
}

// DistanceBetween is Distance for already-validated points.
func DistanceBetween(a, b Point) float64 {
	rlat1 := toRad(a.Lat)
	rlat2 := toRad(b.Lat)
	dlat := toRad(b.Lat - a.Lat)
	dlon := toRad(b.Lon - a.Lon)

	h := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(rlat1)*math.Cos(rlat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	return earthRadiusKM * 2 * math.Asin(math.Sqrt(h))
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }
