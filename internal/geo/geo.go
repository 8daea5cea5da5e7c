// Package geo provides the coordinate type and great-circle helpers used for
// location clustering.
package geo

import (
	"fmt"
	"math"
)

// EarthRadiusMeters is the mean Earth radius used for haversine distances.
const EarthRadiusMeters = 6371008.8

// Coordinate is a WGS84 latitude/longitude pair in degrees.
type Coordinate struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// Valid reports whether the coordinate lies within the WGS84 ranges.
func (c Coordinate) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180 &&
		!math.IsNaN(c.Latitude) && !math.IsNaN(c.Longitude)
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Latitude, c.Longitude)
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Distance returns the haversine great-circle distance between a and b in meters.
func Distance(a, b Coordinate) float64 {
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLat := lat2 - lat1
	dLng := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	// Clamp to guard against rounding pushing h above 1.
	h = math.Min(1, math.Max(0, h))

	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(h))
}

// Equal reports whether two optional coordinates are both absent or identical.
func Equal(a, b *Coordinate) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// RunningMean accumulates an incremental arithmetic mean of coordinates.
// The zero value is ready to use.
type RunningMean struct {
	n   int
	lat float64
	lng float64
}

// Add folds c into the mean.
func (m *RunningMean) Add(c Coordinate) {
	m.n++
	m.lat += (c.Latitude - m.lat) / float64(m.n)
	m.lng += (c.Longitude - m.lng) / float64(m.n)
}

// Count returns the number of coordinates added so far.
func (m *RunningMean) Count() int {
	return m.n
}

// Mean returns the current mean, or nil when nothing was added.
func (m *RunningMean) Mean() *Coordinate {
	if m.n == 0 {
		return nil
	}
	return &Coordinate{Latitude: m.lat, Longitude: m.lng}
}
