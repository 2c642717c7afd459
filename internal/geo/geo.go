package geo

import (
	"errors"
	"math"

	"github.com/example/meetpoint/internal/models"
)

// ErrInvalidInput marks malformed caller input: no locations, or a
// coordinate with a non-finite or out-of-range component.
var ErrInvalidInput = errors.New("invalid input")

// Valid reports whether c is a finite coordinate inside the usual
// lat/lng bounds.
func Valid(c models.Coord) bool {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || math.IsNaN(c.Lng) || math.IsInf(c.Lng, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// Centroid returns the arithmetic mean of the given locations.
//
// This is a flat-plane approximation: fine for the bounded search radii we
// use (a few km), wrong for participants spread across continents. Kept
// deliberately; do not swap in spherical averaging without changing the
// search contract.
func Centroid(locations []models.Coord) (models.Coord, error) {
	if len(locations) == 0 {
		return models.Coord{}, ErrInvalidInput
	}
	var sumLat, sumLng float64
	for _, loc := range locations {
		if !Valid(loc) {
			return models.Coord{}, ErrInvalidInput
		}
		sumLat += loc.Lat
		sumLng += loc.Lng
	}
	n := float64(len(locations))
	return models.Coord{Lat: sumLat / n, Lng: sumLng / n}, nil
}

// HaversineKm returns the great-circle distance between a and b in
// kilometers.
func HaversineKm(a, b models.Coord) float64 {
	const R = 6371.0
	toRad := func(deg float64) float64 { return deg * math.Pi / 180.0 }
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return R * c
}
