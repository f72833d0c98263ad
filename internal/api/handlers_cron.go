// Lantern - Location-Based Narrative Quest Engine
// Copyright 2026 Tessera Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessera-games/lantern

package api

import (
	"net/http"
	"time"

	"github.com/tessera-games/lantern/internal/logging"
)

// SweepDue dispatches every scheduled message whose due time has
// passed. The endpoint exists alongside the internal sweeper so an
// external cron can drive delivery when the process sweeper is
// disabled; both paths share the same row claim, so overlapping sweeps
// cannot double-send.
func (h *Handler) SweepDue(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	dispatched, err := h.dispatcher.SweepDue(r.Context(), time.Now().UTC())
	if err != nil {
		respondEngineError(w, err)
		return
	}

	logging.Info().Int("dispatched", dispatched).Msg("Cron sweep completed")
	respondData(w, map[string]any{"dispatched": dispatched}, start)
}
