// Package geo provides the great-circle geometry used by the assignment
// engine. All distances are in kilometres.
package geo

import "math"

// EarthRadiusKM is the mean Earth radius used by the haversine formula.
const EarthRadiusKM = 6371.0

// DistanceKM returns the great-circle distance between two coordinates
// using the haversine formula. NaN inputs yield NaN.
func DistanceKM(lat1, lon1, lat2, lon2 float64) float64 {
	if math.IsNaN(lat1) || math.IsNaN(lon1) || math.IsNaN(lat2) || math.IsNaN(lon2) {
		return math.NaN()
	}
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKM * c
}

// WorkloadRatio returns current/capacity. Capacity must be positive; the
// caller guards, matching the data-model invariant on Technician.
func WorkloadRatio(current, capacity int) float64 {
	return float64(current) / float64(capacity)
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
