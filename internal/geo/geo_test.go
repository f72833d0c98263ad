// Lantern - Location-Based Narrative Quest Engine
// Copyright 2026 Tessera Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessera-games/lantern

package geo

import (
	"math"
	"testing"

	"github.com/tessera-games/lantern/internal/models"
)

// Reference points with a known separation: Trafalgar Square and
// St Paul's Cathedral, roughly 2.3 km apart.
const (
	trafalgarLat = 51.50809
	trafalgarLon = -0.12806
	stPaulsLat   = 51.51384
	stPaulsLon   = -0.09834
)

func TestDistanceZeroForSamePoint(t *testing.T) {
	if d := Distance(trafalgarLat, trafalgarLon, trafalgarLat, trafalgarLon); d != 0 {
		t.Errorf("expected zero distance, got %f", d)
	}
}

func TestDistanceSymmetric(t *testing.T) {
	ab := Distance(trafalgarLat, trafalgarLon, stPaulsLat, stPaulsLon)
	ba := Distance(stPaulsLat, stPaulsLon, trafalgarLat, trafalgarLon)
	if math.Abs(ab-ba) > 1e-9 {
		t.Errorf("distance not symmetric: %f vs %f", ab, ba)
	}
}

func TestDistanceKnownSeparation(t *testing.T) {
	d := Distance(trafalgarLat, trafalgarLon, stPaulsLat, stPaulsLon)
	// Haversine should land within 50m of the surveyed ~2180m.
	if d < 2100 || d > 2300 {
		t.Errorf("expected roughly 2.2km, got %f", d)
	}
}

func TestBearingCardinalDirections(t *testing.T) {
	tests := []struct {
		name       string
		lat2, lon2 float64
		want       float64
	}{
		{"due north", trafalgarLat + 0.01, trafalgarLon, 0},
		{"due east", trafalgarLat, trafalgarLon + 0.01, 90},
		{"due south", trafalgarLat - 0.01, trafalgarLon, 180},
		{"due west", trafalgarLat, trafalgarLon - 0.01, 270},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Bearing(trafalgarLat, trafalgarLon, tt.lat2, tt.lon2)
			if math.Abs(got-tt.want) > 1.0 {
				t.Errorf("expected bearing ~%f, got %f", tt.want, got)
			}
		})
	}
}

func TestBearingRange(t *testing.T) {
	b := Bearing(stPaulsLat, stPaulsLon, trafalgarLat, trafalgarLon)
	if b < 0 || b >= 360 {
		t.Errorf("bearing out of [0,360): %f", b)
	}
}

func TestBandSelectsTightestExceededGate(t *testing.T) {
	gates := []models.Gate{
		{Threshold: 1000, Text: "far"},
		{Threshold: 100, Text: "near"},
		{Threshold: 0, Text: "arrived"},
	}

	tests := []struct {
		name     string
		distance float64
		want     string
	}{
		{"beyond all gates", 5000, "far"},
		{"mid band", 500, "near"},
		{"inside last threshold", 50, "arrived"},
		{"exactly at target", 0, "arrived"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Band(tt.distance, gates); got != tt.want {
				t.Errorf("Band(%f) = %q, want %q", tt.distance, got, tt.want)
			}
		})
	}
}

func TestBandUnsortedGates(t *testing.T) {
	// Band must sort; catalog authors list gates in any order.
	gates := []models.Gate{
		{Threshold: 0, Text: "arrived"},
		{Threshold: 1000, Text: "far"},
		{Threshold: 100, Text: "near"},
	}
	if got := Band(500, gates); got != "near" {
		t.Errorf("expected %q, got %q", "near", got)
	}
}

func TestBandEmptyGates(t *testing.T) {
	if got := Band(100, nil); got != "" {
		t.Errorf("expected empty band, got %q", got)
	}
}

func TestDefaultGatesArrivedAtZero(t *testing.T) {
	if got := Band(0, DefaultGates()); got != "You have arrived." {
		t.Errorf("unexpected arrived band: %q", got)
	}
}
