// Lantern - Location-Based Narrative Quest Engine
// Copyright 2026 Tessera Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessera-games/lantern

package api

import (
	"net/http"
	"time"

	"github.com/tessera-games/lantern/internal/geo"
	"github.com/tessera-games/lantern/internal/models"
)

// AdvanceRequest asks to complete the step the client believes is
// current. Both fields are checked against the derived state so a stale
// client cannot skip ahead.
type AdvanceRequest struct {
	ChapterID string `json:"chapter_id" validate:"required"`
	StepIndex int    `json:"step_index" validate:"gte=0"`
}

// HintRequest reveals a hint tier for a step.
type HintRequest struct {
	ChapterID string `json:"chapter_id" validate:"required"`
	StepIndex int    `json:"step_index" validate:"gte=0"`
	Tier      int    `json:"tier" validate:"gte=0,lte=10"`
}

// ResolveQuest returns the track's current derived quest state.
func (h *Handler) ResolveQuest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	track, ok := trackParam(w, r)
	if !ok {
		return
	}

	state, err := h.engine.Resolve(r.Context(), track)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondData(w, state, start)
}

// AdvanceQuest completes the current step if the client's view of it is
// still accurate, then returns the fresh state. A stale request is a
// no-op that still returns current state, so retries and double-taps
// converge instead of erroring.
func (h *Handler) AdvanceQuest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	track, ok := trackParam(w, r)
	if !ok {
		return
	}

	var req AdvanceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	state, err := h.engine.Advance(r.Context(), track, req.ChapterID, req.StepIndex)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondData(w, state, start)
}

// RevealHint records a hint view and returns the full set of tiers now
// revealed for the step.
func (h *Handler) RevealHint(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	track, ok := trackParam(w, r)
	if !ok {
		return
	}

	var req HintRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.engine.RevealHint(r.Context(), track, req.ChapterID, req.StepIndex, req.Tier, false); err != nil {
		respondEngineError(w, err)
		return
	}

	tiers, err := h.engine.RevealedTiers(r.Context(), track, req.ChapterID, req.StepIndex)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondData(w, map[string]any{"revealed_tiers": tiers}, start)
}

// ListHints returns the hint tiers already revealed for a step.
func (h *Handler) ListHints(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	track, ok := trackParam(w, r)
	if !ok {
		return
	}

	chapterID := r.URL.Query().Get("chapter_id")
	if chapterID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "chapter_id query parameter is required", nil)
		return
	}
	stepIndex := getIntParam(r, "step_index", 0)

	tiers, err := h.engine.RevealedTiers(r.Context(), track, chapterID, stepIndex)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondData(w, map[string]any{"revealed_tiers": tiers}, start)
}

// CheckProximity evaluates the player's position against the current
// proximity step. It only reads; arrival does not advance the quest,
// the client must call advance once the player confirms.
func (h *Handler) CheckProximity(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	track, ok := trackParam(w, r)
	if !ok {
		return
	}

	lat, err := getFloatParam(r, "lat")
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}
	lon, err := getFloatParam(r, "lon")
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		respondError(w, http.StatusBadRequest, "validation_error", "coordinates out of range", nil)
		return
	}

	state, err := h.engine.Resolve(r.Context(), track)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	if state.Phase != models.PhaseActive || state.View == nil || state.View.Target == nil {
		respondError(w, http.StatusConflict, "no_proximity_step", "the current step is not a proximity puzzle", nil)
		return
	}

	gates := state.View.Gates
	if len(gates) == 0 {
		gates = geo.DefaultGates()
	}

	distance := geo.Distance(lat, lon, state.View.Target.Lat, state.View.Target.Lon)
	bearing := geo.Bearing(lat, lon, state.View.Target.Lat, state.View.Target.Lon)

	respondData(w, map[string]any{
		"distance_m":  distance,
		"bearing_deg": bearing,
		"band":        geo.Band(distance, gates),
		"chapter_id":  state.ChapterID,
		"step_id":     state.StepID,
	}, start)
}
