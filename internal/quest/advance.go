// Lantern - Location-Based Narrative Quest Engine
// Copyright 2026 Tessera Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessera-games/lantern

package quest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tessera-games/lantern/internal/database"
	"github.com/tessera-games/lantern/internal/events"
	"github.com/tessera-games/lantern/internal/logging"
	"github.com/tessera-games/lantern/internal/metrics"
	"github.com/tessera-games/lantern/internal/models"
)

// Advance completes the current step of the track's active chapter and
// runs the auto-advance cascade. The supplied stepIndex must equal the
// derived current index; a stale or replayed call mutates nothing and
// returns the freshly resolved state, which makes double-submission
// from a slow client harmless.
func (e *Engine) Advance(ctx context.Context, track models.Track, chapterID string, stepIndex int) (*models.QuestState, error) {
	if !track.Valid() {
		return nil, &PreconditionError{Code: CodeUnknownTrack, Message: fmt.Sprintf("unknown track %q", track)}
	}

	cp, err := e.store.ActiveChapterProgress(ctx, track)
	if errors.Is(err, database.ErrNotFound) {
		return nil, &PreconditionError{Code: CodeNoActiveRun, Message: "no active chapter on this track"}
	}
	if err != nil {
		return nil, fmt.Errorf("load active chapter: %w", err)
	}

	steps, _, err := e.orderedSteps(cp.ChapterID)
	if err != nil {
		return nil, err
	}
	progress, err := e.store.StepProgressFor(ctx, cp.ID)
	if err != nil {
		return nil, fmt.Errorf("load step progress: %w", err)
	}

	index := currentIndex(steps, progress)
	if index >= len(steps) {
		// Every step is complete but the chapter row is still active,
		// so an earlier completion write must have failed. Re-attempt
		// it here; first-write-wins keeps the retry idempotent.
		if err := e.checkChapterComplete(ctx, track, cp, steps); err != nil {
			return nil, err
		}
		metrics.RecordAdvance(string(track), "stale")
		return e.Resolve(ctx, track)
	}
	if cp.ChapterID != chapterID || index != stepIndex {
		metrics.RecordAdvance(string(track), "stale")
		return e.resolveChapter(ctx, track, cp)
	}

	if err := e.completeStep(ctx, track, cp, steps[index]); err != nil {
		return nil, err
	}
	metrics.RecordAdvance(string(track), "advanced")

	// The completed step itself may be a messaging step (an admin
	// forcing it through); dispatch it along with the cascade.
	start := index
	if steps[index].Type != models.StepTypeMessaging {
		start = index + 1
	}
	if err := e.cascade(ctx, track, cp, steps, start); err != nil {
		return nil, err
	}

	if err := e.checkChapterComplete(ctx, track, cp, steps); err != nil {
		return nil, err
	}
	return e.Resolve(ctx, track)
}

// ActivateChapter starts a chapter on a track. Activating a chapter
// that already has an active run is a precondition mismatch. The
// cascade runs from the first step so chapters that open with
// messaging steps fire on activation.
func (e *Engine) ActivateChapter(ctx context.Context, track models.Track, chapterID string) (*models.QuestState, error) {
	if !track.Valid() {
		return nil, &PreconditionError{Code: CodeUnknownTrack, Message: fmt.Sprintf("unknown track %q", track)}
	}
	steps, chapter, ok := e.catalogChapter(chapterID)
	if !ok {
		return nil, &PreconditionError{Code: CodeUnknownChapter, Message: fmt.Sprintf("unknown chapter %q", chapterID)}
	}

	_, err := e.store.ChapterProgressFor(ctx, track, chapterID)
	if err == nil {
		return nil, &PreconditionError{Code: CodeChapterActive, Message: fmt.Sprintf("chapter %s is already active on track %s", chapterID, track)}
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("check active chapter: %w", err)
	}

	cp := &models.ChapterProgress{
		ID:        uuid.New(),
		Track:     track,
		ChapterID: chapter.ID,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.store.InsertChapterProgress(ctx, cp); err != nil {
		return nil, fmt.Errorf("activate chapter: %w", err)
	}
	e.publish(ctx, events.TypeChapterActivated, track, chapter.ID, "", "")

	if err := e.cascade(ctx, track, cp, steps, 0); err != nil {
		return nil, err
	}
	if err := e.checkChapterComplete(ctx, track, cp, steps); err != nil {
		return nil, err
	}
	return e.Resolve(ctx, track)
}

// completeStep ensures and completes one step progress row. The
// completion is first-write-wins; only the winning write emits an
// event, so retries do not duplicate the audit trail.
func (e *Engine) completeStep(ctx context.Context, track models.Track, cp *models.ChapterProgress, step models.Step) error {
	sp, err := e.store.EnsureStepProgress(ctx, cp.ID, step.ID)
	if err != nil {
		return fmt.Errorf("ensure step progress for %s: %w", step.ID, err)
	}

	won, err := e.store.CompleteStepProgress(ctx, sp.ID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("complete step %s: %w", step.ID, err)
	}
	if won {
		e.publish(ctx, events.TypeStepCompleted, track, cp.ChapterID, step.ID, "")
	}
	return nil
}

// cascade walks forward from start, auto-completing consecutive
// messaging steps and dispatching each one: immediately when the step
// has no delay, as a scheduled morning message otherwise. The walk is
// a bounded loop over the ordered step list; it stops at the first
// non-messaging step. Dispatch failures are recorded by the dispatcher
// and logged here, but never stall the walk: narrative progress and
// delivery are decoupled, and a failed send is recoverable by admin
// resend while an un-advanced quest is stuck for the player.
func (e *Engine) cascade(ctx context.Context, track models.Track, cp *models.ChapterProgress, steps []models.Step, start int) error {
	handled := 0
	for i := start; i < len(steps) && steps[i].Type == models.StepTypeMessaging; i++ {
		step := steps[i]
		if err := e.completeStep(ctx, track, cp, step); err != nil {
			return err
		}
		handled++

		mc := step.Config.Message
		if mc == nil {
			logging.Error().Str("step_id", step.ID).Msg("Messaging step without message config survived validation")
			continue
		}

		var err error
		if mc.DelayMornings > 0 {
			err = e.dispatcher.ScheduleStep(ctx, track, cp.ChapterID, step, mc.DelayMornings)
		} else {
			err = e.dispatcher.SendStep(ctx, track, cp.ChapterID, step)
		}
		if err != nil {
			logging.Warn().Err(err).
				Str("track", string(track)).
				Str("step_id", step.ID).
				Msg("Cascade dispatch failed, continuing")
		}
	}
	if handled > 0 {
		metrics.RecordCascade(handled)
	}
	return nil
}

// checkChapterComplete sets the chapter's completed_at once every step
// has a completed progress row. Exactly one caller wins the completion
// write; that winner emits the completion event and auto-activates any
// companion chapters keyed to this one.
func (e *Engine) checkChapterComplete(ctx context.Context, track models.Track, cp *models.ChapterProgress, steps []models.Step) error {
	progress, err := e.store.StepProgressFor(ctx, cp.ID)
	if err != nil {
		return fmt.Errorf("load step progress: %w", err)
	}
	if currentIndex(steps, progress) < len(steps) {
		return nil
	}

	won, err := e.store.CompleteChapterProgress(ctx, cp.ID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("complete chapter %s: %w", cp.ChapterID, err)
	}
	if !won {
		return nil
	}

	e.publish(ctx, events.TypeChapterCompleted, track, cp.ChapterID, "", "")
	return e.activateCompanions(ctx, track, cp.ChapterID)
}

// activateCompanions starts every chapter whose companion field names
// the just-completed chapter. Runs only on the winning completion
// write, so each completion activates its companions exactly once.
func (e *Engine) activateCompanions(ctx context.Context, track models.Track, completedChapterID string) error {
	for _, companionID := range e.catalog.Companions(completedChapterID) {
		_, err := e.ActivateChapter(ctx, track, companionID)
		if err != nil {
			var pre *PreconditionError
			if errors.As(err, &pre) && pre.Code == CodeChapterActive {
				continue
			}
			return fmt.Errorf("activate companion %s: %w", companionID, err)
		}
		logging.Info().
			Str("track", string(track)).
			Str("chapter_id", companionID).
			Str("trigger", completedChapterID).
			Msg("Companion chapter activated")
	}
	return nil
}

// catalogChapter looks a chapter up without treating absence as a
// store error.
func (e *Engine) catalogChapter(chapterID string) ([]models.Step, *models.Chapter, bool) {
	chapter, ok := e.catalog.Chapter(chapterID)
	if !ok {
		return nil, nil, false
	}
	steps, _ := e.catalog.OrderedSteps(chapterID)
	return steps, chapter, true
}
