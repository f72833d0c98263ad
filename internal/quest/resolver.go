// Lantern - Location-Based Narrative Quest Engine
// Copyright 2026 Tessera Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessera-games/lantern

package quest

import (
	"context"
	"errors"
	"fmt"

	"github.com/tessera-games/lantern/internal/database"
	"github.com/tessera-games/lantern/internal/models"
)

// Resolve derives what the track's player should see right now. It
// never mutates: a chapter whose steps are all complete resolves to
// the completed phase and the completion write happens on the next
// advance or admin action.
//
// A store failure propagates as an error. It is never folded into the
// waiting phase, so a mid-quest player with a flaky database is told
// to retry instead of being told their journey has not begun.
func (e *Engine) Resolve(ctx context.Context, track models.Track) (*models.QuestState, error) {
	if !track.Valid() {
		return nil, &PreconditionError{Code: CodeUnknownTrack, Message: fmt.Sprintf("unknown track %q", track)}
	}

	cp, err := e.store.ActiveChapterProgress(ctx, track)
	if errors.Is(err, database.ErrNotFound) {
		return &models.QuestState{Track: track, Phase: models.PhaseWaiting}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load active chapter: %w", err)
	}

	return e.resolveChapter(ctx, track, cp)
}

// resolveChapter builds the state for one active chapter progress row.
func (e *Engine) resolveChapter(ctx context.Context, track models.Track, cp *models.ChapterProgress) (*models.QuestState, error) {
	steps, chapter, err := e.orderedSteps(cp.ChapterID)
	if err != nil {
		return nil, err
	}

	progress, err := e.store.StepProgressFor(ctx, cp.ID)
	if err != nil {
		return nil, fmt.Errorf("load step progress: %w", err)
	}

	index := currentIndex(steps, progress)
	if index >= len(steps) {
		return &models.QuestState{
			Track:       track,
			Phase:       models.PhaseCompleted,
			ChapterID:   chapter.ID,
			ChapterName: chapter.Name,
			StepIndex:   len(steps),
			StepCount:   len(steps),
		}, nil
	}

	step := steps[index]
	state := &models.QuestState{
		Track:       track,
		Phase:       models.PhaseActive,
		ChapterID:   chapter.ID,
		ChapterName: chapter.Name,
		StepIndex:   index,
		StepCount:   len(steps),
		StepID:      step.ID,
		StepType:    step.Type,
		Component:   step.Component,
		Advance:     advanceMode(step),
		View:        stepView(step),
	}

	if step.Type == models.StepTypeWebsite {
		tiers, err := e.store.RevealedTiers(ctx, track, chapter.ID, index)
		if err != nil {
			return nil, fmt.Errorf("load revealed hints: %w", err)
		}
		state.RevealedTiers = tiers
	}
	return state, nil
}
