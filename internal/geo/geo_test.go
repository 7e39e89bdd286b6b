package geo

import (
	"math"
	"testing"
)

func TestDistanceIdenticalPoints(t *testing.T) {
	pts := []Point{
		{0, 0},
		{9.6615, 80.0255},
		{-33.8688, 151.2093},
		{90, 0},
	}
	for _, p := range pts {
		d, err := Distance(p.Lat, p.Lon, p.Lat, p.Lon)
		if err != nil {
			t.Fatalf("Distance(%v) error: %v", p, err)
		}
		if d != 0 {
			t.Errorf("Distance(%v, %v) = %v, want 0", p, p, d)
		}
	}
}

func TestDistanceSymmetry(t *testing.T) {
	a := Point{9.6615, 80.0255}  // Jaffna
	b := Point{6.9271, 79.8612}  // Colombo
	d1, err := Distance(a.Lat, a.Lon, b.Lat, b.Lon)
	if err != nil {
		t.Fatal(err)
	}
	d2, err := Distance(b.Lat, b.Lon, a.Lat, a.Lon)
	if err != nil {
		t.Fatal(err)
	}
	if d1 != d2 {
		t.Errorf("distance not symmetric: %v vs %v", d1, d2)
	}
}

func TestDistanceKnownValue(t *testing.T) {
	// Jaffna to Colombo is roughly 305 km in a straight line.
	d, err := Distance(9.6615, 80.0255, 6.9271, 79.8612)
	if err != nil {
		t.Fatal(err)
	}
	if d < 290 || d > 320 {
		t.Errorf("Jaffna-Colombo distance = %.1f km, want ~305", d)
	}
}

func TestDistanceAntipodal(t *testing.T) {
	d, err := Distance(0, 0, 0, 180)
	if err != nil {
		t.Fatal(err)
	}
	// Half the Earth's circumference.
	want := math.Pi * 6371
	if math.Abs(d-want) > 1 {
		t.Errorf("antipodal distance = %.1f, want %.1f", d, want)
	}
}

func TestDistanceInvalidInput(t *testing.T) {
	cases := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
	}{
		{"nan lat", math.NaN(), 80, 6.9, 79.8},
		{"inf lon", 9.6, math.Inf(1), 6.9, 79.8},
		{"lat out of range", 91, 80, 6.9, 79.8},
		{"lon out of range", 9.6, 80, 6.9, -181},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Distance(tc.lat1, tc.lon1, tc.lat2, tc.lon2); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestPointValid(t *testing.T) {
	if !(Point{9.66, 80.02}).Valid() {
		t.Error("valid point reported invalid")
	}
	if (Point{math.NaN(), 80}).Valid() {
		t.Error("NaN point reported valid")
	}
	if (Point{0, 200}).Valid() {
		t.Error("out-of-range point reported valid")
	}
}
