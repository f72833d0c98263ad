// Lantern - Location-Based Narrative Quest Engine
// Copyright 2026 Tessera Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessera-games/lantern

// Package quest is the progression engine: it derives the player-facing
// state from progress rows, applies step completions, runs the
// auto-advance cascade over messaging steps, and tracks hint reveals.
//
// There is no stored "current step" pointer. The current step index is
// recomputed from step progress rows on every read, so concurrent
// writers (player, admin, sweep) converge instead of drifting. All
// mutations are idempotent; re-invoking one after a partial failure is
// safe, which stands in for locking.
package quest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tessera-games/lantern/internal/catalog"
	"github.com/tessera-games/lantern/internal/events"
	"github.com/tessera-games/lantern/internal/logging"
	"github.com/tessera-games/lantern/internal/models"
)

// Store is the progress store surface the engine needs.
type Store interface {
	ActiveChapterProgress(ctx context.Context, track models.Track) (*models.ChapterProgress, error)
	ChapterProgressFor(ctx context.Context, track models.Track, chapterID string) (*models.ChapterProgress, error)
	InsertChapterProgress(ctx context.Context, progress *models.ChapterProgress) error
	CompleteChapterProgress(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	StepProgressFor(ctx context.Context, chapterProgressID uuid.UUID) (map[string]*models.StepProgress, error)
	EnsureStepProgress(ctx context.Context, chapterProgressID uuid.UUID, stepID string) (*models.StepProgress, error)
	CompleteStepProgress(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	InsertHintView(ctx context.Context, view *models.HintView) error
	RevealedTiers(ctx context.Context, track models.Track, chapterID string, stepIndex int) ([]int, error)
}

// Dispatcher is the messaging surface the cascade drives.
type Dispatcher interface {
	SendStep(ctx context.Context, track models.Track, chapterID string, step models.Step) error
	ScheduleStep(ctx context.Context, track models.Track, chapterID string, step models.Step, delayMornings int) error
}

// Publisher emits domain events.
type Publisher interface {
	Publish(ctx context.Context, event *events.QuestEvent) error
}

// Engine wires the catalog, store, and dispatcher into the progression
// operations. Engines are stateless; every call stands alone.
type Engine struct {
	catalog    *catalog.Catalog
	store      Store
	dispatcher Dispatcher
	bus        Publisher
}

// NewEngine creates an engine. bus may be nil in tests.
func NewEngine(cat *catalog.Catalog, store Store, dispatcher Dispatcher, bus Publisher) *Engine {
	return &Engine{
		catalog:    cat,
		store:      store,
		dispatcher: dispatcher,
		bus:        bus,
	}
}

// PreconditionError reports a request that conflicts with current
// state: a stale step index, an already-active chapter, an unknown
// step. Nothing was mutated; the caller should refetch and retry.
type PreconditionError struct {
	Code    string
	Message string
}

func (e *PreconditionError) Error() string {
	return e.Message
}

// Precondition error codes.
const (
	CodeUnknownTrack   = "unknown_track"
	CodeUnknownChapter = "unknown_chapter"
	CodeUnknownStep    = "unknown_step"
	CodeChapterActive  = "chapter_already_active"
	CodeNoActiveRun    = "chapter_not_active"
)

// currentIndex derives the current step position from progress rows:
// the smallest order whose step has no completed progress row. Equal to
// len(steps) when every step is done.
func currentIndex(steps []models.Step, progress map[string]*models.StepProgress) int {
	for i, step := range steps {
		sp, ok := progress[step.ID]
		if !ok || !sp.Completed() {
			return i
		}
	}
	return len(steps)
}

// advanceMode derives how the client completes the step at the given
// index. Messaging steps and explicitly admin-gated website steps
// cannot be completed by a client action.
func advanceMode(step models.Step) models.AdvanceMode {
	if step.Type == models.StepTypeMessaging {
		return models.AdvanceAdminTrigger
	}
	if step.Config.Puzzle != nil && step.Config.Puzzle.Advance != "" {
		return step.Config.Puzzle.Advance
	}
	if step.Config.Narrative != nil && step.Config.Narrative.Advance != "" {
		return step.Config.Narrative.Advance
	}
	return models.AdvanceAuto
}

// stepView builds the client-facing payload for a step. Secrets such
// as puzzle answers and roster contact details never leave the server.
func stepView(step models.Step) *models.StepView {
	if step.Config.Proximity == nil {
		return nil
	}
	target := step.Config.Proximity.Target
	return &models.StepView{
		Target: &target,
		Gates:  step.Config.Proximity.Gates,
	}
}

func (e *Engine) publish(ctx context.Context, eventType string, track models.Track, chapterID, stepID, detail string) {
	if e.bus == nil {
		return
	}
	event := events.New(eventType, track)
	event.ChapterID = chapterID
	event.StepID = stepID
	event.Detail = detail
	if err := e.bus.Publish(ctx, event); err != nil {
		logging.Warn().Err(err).Str("event_type", eventType).Msg("Failed to publish quest event")
	}
}

// orderedSteps fetches a chapter's steps or fails loudly: a progress
// row pointing at a chapter the catalog no longer has is a deploy
// error, not a player state.
func (e *Engine) orderedSteps(chapterID string) ([]models.Step, *models.Chapter, error) {
	chapter, ok := e.catalog.Chapter(chapterID)
	if !ok {
		return nil, nil, fmt.Errorf("chapter %s has progress but is not in the catalog", chapterID)
	}
	steps, _ := e.catalog.OrderedSteps(chapterID)
	return steps, chapter, nil
}
