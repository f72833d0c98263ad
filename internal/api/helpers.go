// Lantern - Location-Based Narrative Quest Engine
// Copyright 2026 Tessera Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessera-games/lantern

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tessera-games/lantern/internal/logging"
	"github.com/tessera-games/lantern/internal/models"
	"github.com/tessera-games/lantern/internal/quest"
	"github.com/tessera-games/lantern/internal/validation"
)

// sanitizeLogValue strips control characters so request data cannot
// forge log lines.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// respondJSON sends a JSON envelope with proper headers.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondData sends a success envelope.
func respondData(w http.ResponseWriter, data any, start time.Time) {
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   data,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

// respondError sends an error envelope.
func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Error().Str("code", sanitizeLogValue(code)).Str("error", sanitizeLogValue(err.Error())).Msg("API error")
	}

	respondJSON(w, status, &models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now()},
		Error: &models.APIError{
			Code:    code,
			Message: message,
		},
	})
}

// respondEngineError maps engine failures to the error taxonomy:
// precondition mismatches are 409 (refetch state and retry), anything
// else is store unavailability and gets 503 so clients can
// distinguish "no state" from "could not determine state".
func respondEngineError(w http.ResponseWriter, err error) {
	var pre *quest.PreconditionError
	if errors.As(err, &pre) {
		respondError(w, http.StatusConflict, pre.Code, pre.Message, nil)
		return
	}
	respondError(w, http.StatusServiceUnavailable, "store_unavailable", "could not determine quest state", err)
}

// decodeJSON parses and validates a request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", "request body is not valid JSON", err)
		return false
	}
	if verr := validation.ValidateStruct(dst); verr != nil {
		respondError(w, http.StatusBadRequest, "validation_error", verr.Error(), nil)
		return false
	}
	return true
}

// trackParam extracts and validates the {track} path parameter.
func trackParam(w http.ResponseWriter, r *http.Request) (models.Track, bool) {
	track := models.Track(chi.URLParam(r, "track"))
	if !track.Valid() {
		respondError(w, http.StatusBadRequest, "unknown_track", fmt.Sprintf("track must be %q or %q", models.TrackTest, models.TrackLive), nil)
		return "", false
	}
	return track, true
}

// getFloatParam parses a required float query parameter.
func getFloatParam(r *http.Request, name string) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, fmt.Errorf("missing query parameter %q", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("query parameter %q is not a number", name)
	}
	return v, nil
}

// getIntParam parses an optional integer query parameter.
func getIntParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
