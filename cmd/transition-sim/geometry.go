package main

import (
	"math"

	"github.com/mattermost/mattermost-plugin-geofence/server/geo"
)

// earthRadiusMeters is the mean Earth radius.
const earthRadiusMeters = 6371008.8

// distanceMeters returns the great-circle distance between two locations.
func distanceMeters(a, b geo.Location) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := lat2 - lat1
	dLng := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// contains reports whether loc lies inside the area's circle.
func contains(area geo.Area, loc geo.Location) bool {
	center := geo.Location{Latitude: area.Latitude, Longitude: area.Longitude}
	return distanceMeters(center, loc) <= float64(area.RadiusMeters)
}
