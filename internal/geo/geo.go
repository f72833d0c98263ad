// Lantern - Location-Based Narrative Quest Engine
// Copyright 2026 Tessera Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessera-games/lantern

// Package geo provides the proximity math consumed by puzzle steps:
// great-circle distance, initial bearing, and the thematic banding that
// turns a distance into narrative feedback. Everything here is a pure
// function so puzzle scoring stays deterministic and unit-testable.
package geo

import (
	"math"
	"sort"

	"github.com/tessera-games/lantern/internal/models"
)

// earthRadiusM is the mean Earth radius in meters.
const earthRadiusM = 6371000.0

// Distance returns the great-circle distance in meters between two
// WGS84 coordinates using the haversine formula.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180.0
	lon1Rad := lon1 * math.Pi / 180.0
	lat2Rad := lat2 * math.Pi / 180.0
	lon2Rad := lon2 * math.Pi / 180.0

	dLat := lat2Rad - lat1Rad
	dLon := lon2Rad - lon1Rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusM * c
}

// Bearing returns the initial bearing in degrees (0-360, clockwise from
// north) on the great circle from point 1 to point 2.
func Bearing(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180.0
	lat2Rad := lat2 * math.Pi / 180.0
	dLon := (lon2 - lon1) * math.Pi / 180.0

	y := math.Sin(dLon) * math.Cos(lat2Rad)
	x := math.Cos(lat1Rad)*math.Sin(lat2Rad) -
		math.Sin(lat1Rad)*math.Cos(lat2Rad)*math.Cos(dLon)

	deg := math.Atan2(y, x) * 180.0 / math.Pi
	return math.Mod(deg+360.0, 360.0)
}

// Band maps a distance in meters to the narrative text of the tightest
// gate whose threshold the distance exceeds. Gates are evaluated
// descending by threshold; if the distance exceeds no threshold the
// closest-range gate wins. An empty gate list yields "".
func Band(distance float64, gates []models.Gate) string {
	if len(gates) == 0 {
		return ""
	}

	sorted := make([]models.Gate, len(gates))
	copy(sorted, gates)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Threshold > sorted[j].Threshold
	})

	for _, gate := range sorted {
		if distance > gate.Threshold {
			return gate.Text
		}
	}
	// Inside every threshold: the player has arrived.
	return sorted[len(sorted)-1].Text
}

// DefaultGates is the stock narrative gate set. The zero-threshold gate
// is the arrived band.
func DefaultGates() []models.Gate {
	return []models.Gate{
		{Threshold: 5000, Text: "The trail has gone cold. You are far from the mark."},
		{Threshold: 1000, Text: "Something stirs. You are within reach of the district."},
		{Threshold: 250, Text: "The air hums. It is close now."},
		{Threshold: 50, Text: "Steps away. Look around you."},
		{Threshold: 0, Text: "You have arrived."},
	}
}
