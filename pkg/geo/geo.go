// Package geo provides geographic distance and interpolation helpers used by
// the virtual-entity pipeline stage and edge weight computation.
package geo

import (
	"math"
)

// Coordinate represents a geographic point with latitude and longitude.
type Coordinate struct {
	Lat float64
	Lon float64
}

const earthRadiusKm = 6371.0

// DistanceKm calculates the great-circle distance between two coordinates in
// kilometers using the haversine formula.
func DistanceKm(a, b Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	sinDLat := math.Sin(dLat / 2)
	sinDLon := math.Sin(dLon / 2)

	h := sinDLat*sinDLat + math.Cos(lat1)*math.Cos(lat2)*sinDLon*sinDLon
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// Centroid returns the arithmetic center of a set of coordinates.
// Good enough for city-scale clusters; not valid across the antimeridian.
func Centroid(coords []Coordinate) Coordinate {
	if len(coords) == 0 {
		return Coordinate{}
	}

	var sumLat, sumLon float64
	for _, c := range coords {
		sumLat += c.Lat
		sumLon += c.Lon
	}

	return Coordinate{
		Lat: sumLat / float64(len(coords)),
		Lon: sumLon / float64(len(coords)),
	}
}

// Valid reports whether the coordinate is within the WGS84 range.
func Valid(c Coordinate) bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}
