// Lantern - Location-Based Narrative Quest Engine
// Copyright 2026 Tessera Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessera-games/lantern

package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tessera-games/lantern/internal/logging"
	"github.com/tessera-games/lantern/internal/models"
)

// SendStepRequest targets a messaging step for an immediate send.
type SendStepRequest struct {
	StepID string `json:"step_id" validate:"required"`
}

// ActivateChapter starts a run of a chapter on a track. Re-activating a
// chapter the track has already run is rejected rather than restarted.
func (h *Handler) ActivateChapter(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	track, ok := trackParam(w, r)
	if !ok {
		return
	}
	chapterID := chi.URLParam(r, "chapterID")

	state, err := h.engine.ActivateChapter(r.Context(), track, chapterID)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	logging.Info().Str("track", string(track)).Str("chapter_id", sanitizeLogValue(chapterID)).Msg("Chapter activated by admin")
	h.adminAction(r.Context(), track, chapterID, "", "action=activate_chapter")
	respondData(w, state, start)
}

// SendStepMessage sends a messaging step's message right now, bypassing
// any morning delay. Used to resend after a failure or to force a
// scheduled message out early.
func (h *Handler) SendStepMessage(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	track, ok := trackParam(w, r)
	if !ok {
		return
	}

	var req SendStepRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ref, ok := h.catalog.Step(req.StepID)
	if !ok {
		respondError(w, http.StatusNotFound, "unknown_step", "no such step in the catalog", nil)
		return
	}
	if ref.Step.Type != models.StepTypeMessaging {
		respondError(w, http.StatusConflict, "not_messaging_step", "only messaging steps can be sent", nil)
		return
	}

	if err := h.dispatcher.SendStep(r.Context(), track, ref.ChapterID, ref.Step); err != nil {
		respondError(w, http.StatusBadGateway, "send_failed", "message dispatch failed", err)
		return
	}

	logging.Info().Str("track", string(track)).Str("step_id", sanitizeLogValue(req.StepID)).Msg("Step message sent by admin")
	h.adminAction(r.Context(), track, ref.ChapterID, ref.Step.ID, "action=send_step")
	respondData(w, map[string]any{"sent": true, "step_id": req.StepID}, start)
}

// MarkDelivered confirms out-of-band that a sent message reached its
// recipient. Confirming a message that was never sent is a conflict.
func (h *Handler) MarkDelivered(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	track, ok := trackParam(w, r)
	if !ok {
		return
	}
	progressKey := chi.URLParam(r, "progressKey")

	marked, err := h.dispatcher.MarkDelivered(r.Context(), track, progressKey)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	if !marked {
		respondError(w, http.StatusConflict, "not_sent", "message is not in sent state", nil)
		return
	}

	h.adminAction(r.Context(), track, "", "", "action=mark_delivered key="+progressKey)
	respondData(w, map[string]any{"delivered": true, "progress_key": progressKey}, start)
}

// PushHint reveals a hint tier on the player's behalf. The reveal is
// tagged as admin-pushed in the audit trail.
func (h *Handler) PushHint(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	track, ok := trackParam(w, r)
	if !ok {
		return
	}

	var req HintRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.engine.RevealHint(r.Context(), track, req.ChapterID, req.StepIndex, req.Tier, true); err != nil {
		respondEngineError(w, err)
		return
	}

	tiers, err := h.engine.RevealedTiers(r.Context(), track, req.ChapterID, req.StepIndex)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	h.adminAction(r.Context(), track, req.ChapterID, "", fmt.Sprintf("action=push_hint tier=%d", req.Tier))
	respondData(w, map[string]any{"revealed_tiers": tiers}, start)
}

// ListActivity returns the most recent activity entries for a track,
// newest first.
func (h *Handler) ListActivity(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	track, ok := trackParam(w, r)
	if !ok {
		return
	}

	limit := getIntParam(r, "limit", 50)
	if limit < 1 || limit > 500 {
		limit = 50
	}

	entries, err := h.db.ListActivity(r.Context(), track, limit)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondData(w, map[string]any{"entries": entries, "count": len(entries)}, start)
}

// ListChapters returns the catalog's chapter inventory for the admin
// console. Step secrets stay server-side; only identity and ordering
// metadata leave.
func (h *Handler) ListChapters(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	type stepSummary struct {
		ID        string          `json:"id"`
		Order     int             `json:"order"`
		Type      models.StepType `json:"type"`
		Component string          `json:"component"`
	}
	type chapterSummary struct {
		ID         string        `json:"id"`
		Name       string        `json:"name"`
		Companions []string      `json:"companions,omitempty"`
		Steps      []stepSummary `json:"steps"`
	}

	chapters := h.catalog.Chapters()
	out := make([]chapterSummary, 0, len(chapters))
	for _, ch := range chapters {
		steps, _ := h.catalog.OrderedSteps(ch.ID)
		summaries := make([]stepSummary, 0, len(steps))
		for _, s := range steps {
			summaries = append(summaries, stepSummary{ID: s.ID, Order: s.Order, Type: s.Type, Component: s.Component})
		}
		out = append(out, chapterSummary{
			ID:         ch.ID,
			Name:       ch.Name,
			Companions: h.catalog.Companions(ch.ID),
			Steps:      summaries,
		})
	}

	respondData(w, map[string]any{"chapters": out, "count": len(out)}, start)
}
