// Package geo provides great-circle distance math for the check-in geofence.
package geo

import "math"

// earthRadiusM is the WGS-84 mean Earth radius in meters.
const earthRadiusM = 6371000.0

// Coordinate is a GPS point in decimal degrees.
type Coordinate struct {
	Lat float64
	Lng float64
}

// Distance returns the haversine great-circle distance between a and b in meters.
// Pure and total: never errors, symmetric, and zero for identical points.
func Distance(a, b Coordinate) float64 {
	if a == b {
		return 0
	}
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusM * c
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
