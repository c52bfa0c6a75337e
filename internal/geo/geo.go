// Package geo holds the distance and containment math used by geofencing.
package geo

import (
	"github.com/golang/geo/s2"

	"fleet-monitor/compliance/internal/domain"
)

const EarthRadiusMeters = 6371000.0

// DistanceMeters returns the haversine great-circle distance. Inputs must be
// validated by the caller; NaN propagates.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

func Distance(a, b domain.Point) float64 {
	return DistanceMeters(a.Lat, a.Lng, b.Lat, b.Lng)
}

// IsWithin reports whether point lies inside the circle, boundary included.
func IsWithin(point, center domain.Point, radiusMeters float64) bool {
	return Distance(point, center) <= radiusMeters
}
