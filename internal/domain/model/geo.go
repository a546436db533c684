package model

import "math"

const earthRadiusM = 6371000

// DistanceM returns the great-circle (haversine) distance to o in meters.
func (c Coordinate) DistanceM(o Coordinate) float64 {
	dLat := (o.Lat - c.Lat) * math.Pi / 180
	dLon := (o.Lon - c.Lon) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(c.Lat*math.Pi/180)*math.Cos(o.Lat*math.Pi/180)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	h := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusM * h
}

// Centroid returns the arithmetic mean of the given points. The zero
// Coordinate is returned for an empty slice.
func Centroid(points []Coordinate) Coordinate {
	if len(points) == 0 {
		return Coordinate{}
	}
	var lat, lon float64
	for _, p := range points {
		lat += p.Lat
		lon += p.Lon
	}
	n := float64(len(points))
	return Coordinate{Lat: lat / n, Lon: lon / n}
}
