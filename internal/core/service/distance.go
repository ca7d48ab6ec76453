package service

import (
	"math"

	"github.com/transflow/tms-backend/internal/core/domain"
)

const earthRadiusKm = 6371

// haversineKm returns the great-circle distance between two points.
func haversineKm(a, b domain.Coordinates) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// postalCodeDistanceKm estimates distance from the difference of the first
// two postal-code digits. This is a deliberately coarse heuristic kept for
// behavioral parity with the fee fixtures that depend on its exact output;
// it has no real geographic basis and must not be "corrected".
func postalCodeDistanceKm(from, to string) float64 {
	a := leadingDigits(from, 2)
	b := leadingDigits(to, 2)
	d := math.Abs(float64(a-b)) * 50
	return math.Max(10, d)
}

// leadingDigits extracts the first n digit characters of s as an integer.
func leadingDigits(s string, n int) int {
	out := 0
	count := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			continue
		}
		out = out*10 + int(r-'0')
		count++
		if count == n {
			break
		}
	}
	return out
}

// round2 rounds to two decimal places (commission amounts).
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
