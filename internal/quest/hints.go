// Lantern - Location-Based Narrative Quest Engine
// Copyright 2026 Tessera Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessera-games/lantern

package quest

import (
	"context"
	"fmt"

	"github.com/tessera-games/lantern/internal/events"
	"github.com/tessera-games/lantern/internal/metrics"
	"github.com/tessera-games/lantern/internal/models"
)

// RevealHint records that a hint tier was shown for a step. The record
// is append-only and revelation is defined as row existence, so
// revealing the same tier twice is safe and changes nothing observable.
// Admin-pushed hints carry a flag but land in the same trail, so
// player-requested and admin-pushed reveals read back identically.
func (e *Engine) RevealHint(ctx context.Context, track models.Track, chapterID string, stepIndex, tier int, adminPushed bool) error {
	if !track.Valid() {
		return &PreconditionError{Code: CodeUnknownTrack, Message: fmt.Sprintf("unknown track %q", track)}
	}
	steps, _, ok := e.catalogChapter(chapterID)
	if !ok {
		return &PreconditionError{Code: CodeUnknownChapter, Message: fmt.Sprintf("unknown chapter %q", chapterID)}
	}
	if stepIndex < 0 || stepIndex >= len(steps) {
		return &PreconditionError{Code: CodeUnknownStep, Message: fmt.Sprintf("chapter %s has no step index %d", chapterID, stepIndex)}
	}

	view := &models.HintView{
		Track:       track,
		ChapterID:   chapterID,
		StepIndex:   stepIndex,
		Tier:        tier,
		AdminPushed: adminPushed,
	}
	if err := e.store.InsertHintView(ctx, view); err != nil {
		return fmt.Errorf("record hint view: %w", err)
	}

	metrics.RecordHintReveal(string(track), adminPushed)
	detail := fmt.Sprintf("tier=%d step_index=%d", tier, stepIndex)
	if adminPushed {
		detail += " admin_pushed"
	}
	e.publish(ctx, events.TypeHintRevealed, track, chapterID, steps[stepIndex].ID, detail)
	return nil
}

// RevealedTiers returns the distinct tier set already shown for a
// step, ascending.
func (e *Engine) RevealedTiers(ctx context.Context, track models.Track, chapterID string, stepIndex int) ([]int, error) {
	if !track.Valid() {
		return nil, &PreconditionError{Code: CodeUnknownTrack, Message: fmt.Sprintf("unknown track %q", track)}
	}
	tiers, err := e.store.RevealedTiers(ctx, track, chapterID, stepIndex)
	if err != nil {
		return nil, fmt.Errorf("load revealed hints: %w", err)
	}
	return tiers, nil
}
