// Lantern - Location-Based Narrative Quest Engine
// Copyright 2026 Tessera Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessera-games/lantern

package quest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tessera-games/lantern/internal/catalog"
	"github.com/tessera-games/lantern/internal/database"
	"github.com/tessera-games/lantern/internal/events"
	"github.com/tessera-games/lantern/internal/models"
)

// fakeStore is an in-memory quest.Store with the same idempotence
// semantics as the DuckDB implementation.
type fakeStore struct {
	mu       sync.Mutex
	chapters []*models.ChapterProgress
	steps    map[uuid.UUID]map[string]*models.StepProgress
	hints    []*models.HintView

	failAll bool
}

var errStoreDown = errors.New("store down")

func newFakeStore() *fakeStore {
	return &fakeStore{steps: make(map[uuid.UUID]map[string]*models.StepProgress)}
}

func (s *fakeStore) ActiveChapterProgress(_ context.Context, track models.Track) (*models.ChapterProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return nil, errStoreDown
	}
	for _, cp := range s.chapters {
		if cp.Track == track && cp.CompletedAt == nil {
			return cp, nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *fakeStore) ChapterProgressFor(_ context.Context, track models.Track, chapterID string) (*models.ChapterProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return nil, errStoreDown
	}
	for _, cp := range s.chapters {
		if cp.Track == track && cp.ChapterID == chapterID {
			return cp, nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *fakeStore) InsertChapterProgress(_ context.Context, cp *models.ChapterProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return errStoreDown
	}
	s.chapters = append(s.chapters, cp)
	return nil
}

func (s *fakeStore) CompleteChapterProgress(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return false, errStoreDown
	}
	for _, cp := range s.chapters {
		if cp.ID == id && cp.CompletedAt == nil {
			cp.CompletedAt = &at
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) StepProgressFor(_ context.Context, chapterProgressID uuid.UUID) (map[string]*models.StepProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return nil, errStoreDown
	}
	out := make(map[string]*models.StepProgress)
	for stepID, sp := range s.steps[chapterProgressID] {
		out[stepID] = sp
	}
	return out, nil
}

func (s *fakeStore) EnsureStepProgress(_ context.Context, chapterProgressID uuid.UUID, stepID string) (*models.StepProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return nil, errStoreDown
	}
	if s.steps[chapterProgressID] == nil {
		s.steps[chapterProgressID] = make(map[string]*models.StepProgress)
	}
	if sp, ok := s.steps[chapterProgressID][stepID]; ok {
		return sp, nil
	}
	sp := &models.StepProgress{
		ID:                uuid.New(),
		ChapterProgressID: chapterProgressID,
		StepID:            stepID,
		CreatedAt:         time.Now().UTC(),
	}
	s.steps[chapterProgressID][stepID] = sp
	return sp, nil
}

func (s *fakeStore) CompleteStepProgress(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return false, errStoreDown
	}
	for _, byStep := range s.steps {
		for _, sp := range byStep {
			if sp.ID == id {
				if sp.CompletedAt != nil {
					return false, nil
				}
				sp.CompletedAt = &at
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *fakeStore) InsertHintView(_ context.Context, view *models.HintView) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return errStoreDown
	}
	s.hints = append(s.hints, view)
	return nil
}

func (s *fakeStore) RevealedTiers(_ context.Context, track models.Track, chapterID string, stepIndex int) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return nil, errStoreDown
	}
	seen := make(map[int]bool)
	tiers := []int{}
	for _, hv := range s.hints {
		if hv.Track == track && hv.ChapterID == chapterID && hv.StepIndex == stepIndex && !seen[hv.Tier] {
			seen[hv.Tier] = true
			tiers = append(tiers, hv.Tier)
		}
	}
	return tiers, nil
}

// fakeDispatcher records sends and schedules. failSends makes every
// immediate send fail, to test that dispatch never blocks progression.
type fakeDispatcher struct {
	mu        sync.Mutex
	sent      []string
	scheduled []string
	failSends bool
}

func (d *fakeDispatcher) SendStep(_ context.Context, _ models.Track, _ string, step models.Step) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failSends {
		return errors.New("provider rejected the message")
	}
	d.sent = append(d.sent, step.ID)
	return nil
}

func (d *fakeDispatcher) ScheduleStep(_ context.Context, _ models.Track, _ string, step models.Step, _ int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scheduled = append(d.scheduled, step.ID)
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []*events.QuestEvent
}

func (p *fakePublisher) Publish(_ context.Context, event *events.QuestEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) countType(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

func websiteStep(id string, order int) models.Step {
	return models.Step{
		ID:        id,
		Order:     order,
		Type:      models.StepTypeWebsite,
		Component: "puzzle",
		Config: models.StepConfig{
			Puzzle: &models.PuzzleConfig{Answer: "lantern"},
		},
	}
}

func messagingStep(id string, order, delayMornings int) models.Step {
	return models.Step{
		ID:        id,
		Order:     order,
		Type:      models.StepTypeMessaging,
		Component: "message",
		Config: models.StepConfig{
			Message: &models.MessageConfig{
				To:            catalog.RolePlayer,
				ProgressKey:   id + "-key",
				Channel:       "log",
				Body:          "The next door has opened.",
				DelayMornings: delayMornings,
			},
		},
	}
}

func testCatalog(t *testing.T, chapters ...models.Chapter) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New(&catalog.Document{
		Chapters: chapters,
		Tracks: map[models.Track]catalog.TrackEntry{
			models.TrackTest: {Contacts: catalog.Roster{
				catalog.RolePlayer: {Name: "Rehearsal Player", Email: "player@example.com"},
			}},
			models.TrackLive: {Contacts: catalog.Roster{
				catalog.RolePlayer: {Name: "Live Player", Email: "live@example.com"},
			}},
		},
	})
	if err != nil {
		t.Fatalf("failed to build test catalog: %v", err)
	}
	return cat
}

type engineFixture struct {
	engine     *Engine
	store      *fakeStore
	dispatcher *fakeDispatcher
	bus        *fakePublisher
}

func newEngineFixture(t *testing.T, chapters ...models.Chapter) *engineFixture {
	t.Helper()
	store := newFakeStore()
	dispatcher := &fakeDispatcher{}
	bus := &fakePublisher{}
	return &engineFixture{
		engine:     NewEngine(testCatalog(t, chapters...), store, dispatcher, bus),
		store:      store,
		dispatcher: dispatcher,
		bus:        bus,
	}
}

func checkState(t *testing.T, state *models.QuestState, phase models.QuestPhase, stepIndex int) {
	t.Helper()
	if state.Phase != phase {
		t.Fatalf("expected phase %q, got %q", phase, state.Phase)
	}
	if state.StepIndex != stepIndex {
		t.Fatalf("expected step index %d, got %d", stepIndex, state.StepIndex)
	}
}

func TestResolveWaitingWhenNothingActive(t *testing.T) {
	f := newEngineFixture(t, models.Chapter{ID: "ch1", Name: "The Call", Steps: []models.Step{websiteStep("s1", 1)}})

	state, err := f.engine.Resolve(context.Background(), models.TrackTest)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	checkState(t, state, models.PhaseWaiting, 0)
}

func TestResolveRejectsUnknownTrack(t *testing.T) {
	f := newEngineFixture(t, models.Chapter{ID: "ch1", Name: "The Call", Steps: []models.Step{websiteStep("s1", 1)}})

	_, err := f.engine.Resolve(context.Background(), "staging")
	var pre *PreconditionError
	if !errors.As(err, &pre) || pre.Code != CodeUnknownTrack {
		t.Fatalf("expected %s precondition, got %v", CodeUnknownTrack, err)
	}
}

func TestResolveDoesNotMaskStoreFailureAsWaiting(t *testing.T) {
	f := newEngineFixture(t, models.Chapter{ID: "ch1", Name: "The Call", Steps: []models.Step{websiteStep("s1", 1)}})
	f.store.failAll = true

	state, err := f.engine.Resolve(context.Background(), models.TrackTest)
	if err == nil {
		t.Fatalf("expected store error, got state %+v", state)
	}
	var pre *PreconditionError
	if errors.As(err, &pre) {
		t.Fatalf("store failure must not surface as a precondition error: %v", err)
	}
}

func TestActivateAndAdvanceThroughChapter(t *testing.T) {
	f := newEngineFixture(t, models.Chapter{
		ID:   "ch1",
		Name: "The Call",
		Steps: []models.Step{
			websiteStep("s1", 1),
			websiteStep("s2", 2),
		},
	})
	ctx := context.Background()

	state, err := f.engine.ActivateChapter(ctx, models.TrackTest, "ch1")
	if err != nil {
		t.Fatalf("ActivateChapter() error: %v", err)
	}
	checkState(t, state, models.PhaseActive, 0)
	if state.StepID != "s1" {
		t.Errorf("expected current step s1, got %s", state.StepID)
	}

	state, err = f.engine.Advance(ctx, models.TrackTest, "ch1", 0)
	if err != nil {
		t.Fatalf("Advance() error: %v", err)
	}
	checkState(t, state, models.PhaseActive, 1)

	state, err = f.engine.Advance(ctx, models.TrackTest, "ch1", 1)
	if err != nil {
		t.Fatalf("Advance() error: %v", err)
	}
	checkState(t, state, models.PhaseCompleted, 2)

	if got := f.bus.countType(events.TypeChapterCompleted); got != 1 {
		t.Errorf("expected exactly one completion event, got %d", got)
	}
}

func TestAdvanceStaleIndexIsNoOp(t *testing.T) {
	f := newEngineFixture(t, models.Chapter{
		ID:   "ch1",
		Name: "The Call",
		Steps: []models.Step{
			websiteStep("s1", 1),
			websiteStep("s2", 2),
		},
	})
	ctx := context.Background()

	if _, err := f.engine.ActivateChapter(ctx, models.TrackTest, "ch1"); err != nil {
		t.Fatalf("ActivateChapter() error: %v", err)
	}
	if _, err := f.engine.Advance(ctx, models.TrackTest, "ch1", 0); err != nil {
		t.Fatalf("Advance() error: %v", err)
	}

	// Replay of the already-applied advance: no error, no movement.
	state, err := f.engine.Advance(ctx, models.TrackTest, "ch1", 0)
	if err != nil {
		t.Fatalf("replayed Advance() error: %v", err)
	}
	checkState(t, state, models.PhaseActive, 1)

	if got := f.bus.countType(events.TypeStepCompleted); got != 1 {
		t.Errorf("replay must not emit a second completion event, got %d", got)
	}
}

func TestAdvanceWrongChapterIsNoOp(t *testing.T) {
	f := newEngineFixture(t,
		models.Chapter{ID: "ch1", Name: "The Call", Steps: []models.Step{websiteStep("s1", 1)}},
		models.Chapter{ID: "ch2", Name: "The Door", Steps: []models.Step{websiteStep("s2", 1)}},
	)
	ctx := context.Background()

	if _, err := f.engine.ActivateChapter(ctx, models.TrackTest, "ch1"); err != nil {
		t.Fatalf("ActivateChapter() error: %v", err)
	}

	state, err := f.engine.Advance(ctx, models.TrackTest, "ch2", 0)
	if err != nil {
		t.Fatalf("Advance() error: %v", err)
	}
	checkState(t, state, models.PhaseActive, 0)
	if state.ChapterID != "ch1" {
		t.Errorf("state must describe the active chapter, got %s", state.ChapterID)
	}
}

func TestAdvanceWithoutActiveChapter(t *testing.T) {
	f := newEngineFixture(t, models.Chapter{ID: "ch1", Name: "The Call", Steps: []models.Step{websiteStep("s1", 1)}})

	_, err := f.engine.Advance(context.Background(), models.TrackTest, "ch1", 0)
	var pre *PreconditionError
	if !errors.As(err, &pre) || pre.Code != CodeNoActiveRun {
		t.Fatalf("expected %s precondition, got %v", CodeNoActiveRun, err)
	}
}

func TestActivateTwiceIsRejected(t *testing.T) {
	f := newEngineFixture(t, models.Chapter{ID: "ch1", Name: "The Call", Steps: []models.Step{websiteStep("s1", 1)}})
	ctx := context.Background()

	if _, err := f.engine.ActivateChapter(ctx, models.TrackTest, "ch1"); err != nil {
		t.Fatalf("ActivateChapter() error: %v", err)
	}

	_, err := f.engine.ActivateChapter(ctx, models.TrackTest, "ch1")
	var pre *PreconditionError
	if !errors.As(err, &pre) || pre.Code != CodeChapterActive {
		t.Fatalf("expected %s precondition, got %v", CodeChapterActive, err)
	}
}

func TestTracksAreIsolated(t *testing.T) {
	f := newEngineFixture(t, models.Chapter{ID: "ch1", Name: "The Call", Steps: []models.Step{websiteStep("s1", 1)}})
	ctx := context.Background()

	if _, err := f.engine.ActivateChapter(ctx, models.TrackTest, "ch1"); err != nil {
		t.Fatalf("ActivateChapter() error: %v", err)
	}

	state, err := f.engine.Resolve(ctx, models.TrackLive)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	checkState(t, state, models.PhaseWaiting, 0)
}

func TestCascadeRunsConsecutiveMessagingSteps(t *testing.T) {
	f := newEngineFixture(t, models.Chapter{
		ID:   "ch1",
		Name: "The Call",
		Steps: []models.Step{
			websiteStep("a", 1),
			messagingStep("b", 2, 0),
			messagingStep("c", 3, 0),
			websiteStep("d", 4),
		},
	})
	ctx := context.Background()

	if _, err := f.engine.ActivateChapter(ctx, models.TrackTest, "ch1"); err != nil {
		t.Fatalf("ActivateChapter() error: %v", err)
	}

	state, err := f.engine.Advance(ctx, models.TrackTest, "ch1", 0)
	if err != nil {
		t.Fatalf("Advance() error: %v", err)
	}

	// b and c auto-complete and dispatch; the walk stops at d.
	checkState(t, state, models.PhaseActive, 3)
	if state.StepID != "d" {
		t.Errorf("expected current step d, got %s", state.StepID)
	}
	if len(f.dispatcher.sent) != 2 || f.dispatcher.sent[0] != "b" || f.dispatcher.sent[1] != "c" {
		t.Errorf("expected sends [b c], got %v", f.dispatcher.sent)
	}
}

func TestCascadeSchedulesDelayedMessages(t *testing.T) {
	f := newEngineFixture(t, models.Chapter{
		ID:   "ch1",
		Name: "The Call",
		Steps: []models.Step{
			websiteStep("a", 1),
			messagingStep("b", 2, 2),
		},
	})
	ctx := context.Background()

	if _, err := f.engine.ActivateChapter(ctx, models.TrackTest, "ch1"); err != nil {
		t.Fatalf("ActivateChapter() error: %v", err)
	}
	state, err := f.engine.Advance(ctx, models.TrackTest, "ch1", 0)
	if err != nil {
		t.Fatalf("Advance() error: %v", err)
	}

	// The delayed message is scheduled, not sent, and the chapter still
	// completes: delivery timing is independent of narrative progress.
	checkState(t, state, models.PhaseCompleted, 2)
	if len(f.dispatcher.sent) != 0 {
		t.Errorf("delayed step must not send immediately, sent %v", f.dispatcher.sent)
	}
	if len(f.dispatcher.scheduled) != 1 || f.dispatcher.scheduled[0] != "b" {
		t.Errorf("expected schedule [b], got %v", f.dispatcher.scheduled)
	}
}

func TestCascadeOnActivationForLeadingMessagingStep(t *testing.T) {
	f := newEngineFixture(t, models.Chapter{
		ID:   "ch1",
		Name: "The Call",
		Steps: []models.Step{
			messagingStep("opener", 1, 0),
			websiteStep("s2", 2),
		},
	})

	state, err := f.engine.ActivateChapter(context.Background(), models.TrackTest, "ch1")
	if err != nil {
		t.Fatalf("ActivateChapter() error: %v", err)
	}

	checkState(t, state, models.PhaseActive, 1)
	if len(f.dispatcher.sent) != 1 || f.dispatcher.sent[0] != "opener" {
		t.Errorf("expected the opening message to send on activation, got %v", f.dispatcher.sent)
	}
}

func TestDispatchFailureDoesNotBlockProgress(t *testing.T) {
	f := newEngineFixture(t, models.Chapter{
		ID:   "ch1",
		Name: "The Call",
		Steps: []models.Step{
			websiteStep("a", 1),
			messagingStep("b", 2, 0),
			websiteStep("c", 3),
		},
	})
	f.dispatcher.failSends = true
	ctx := context.Background()

	if _, err := f.engine.ActivateChapter(ctx, models.TrackTest, "ch1"); err != nil {
		t.Fatalf("ActivateChapter() error: %v", err)
	}
	state, err := f.engine.Advance(ctx, models.TrackTest, "ch1", 0)
	if err != nil {
		t.Fatalf("Advance() must not fail on dispatch errors: %v", err)
	}

	// The failed send is the dispatcher's problem; the quest moved on.
	checkState(t, state, models.PhaseActive, 2)
	if state.StepID != "c" {
		t.Errorf("expected current step c, got %s", state.StepID)
	}
}

func TestChapterCompletionActivatesCompanions(t *testing.T) {
	f := newEngineFixture(t,
		models.Chapter{ID: "main", Name: "The Call", Steps: []models.Step{websiteStep("s1", 1)}},
		models.Chapter{ID: "echo", Name: "The Echo", Companion: "main", Steps: []models.Step{websiteStep("e1", 1)}},
	)
	ctx := context.Background()

	if _, err := f.engine.ActivateChapter(ctx, models.TrackTest, "main"); err != nil {
		t.Fatalf("ActivateChapter() error: %v", err)
	}
	state, err := f.engine.Advance(ctx, models.TrackTest, "main", 0)
	if err != nil {
		t.Fatalf("Advance() error: %v", err)
	}

	// main is done; the companion is now the active chapter.
	checkState(t, state, models.PhaseActive, 0)
	if state.ChapterID != "echo" {
		t.Errorf("expected companion chapter echo active, got %s", state.ChapterID)
	}
	if got := f.bus.countType(events.TypeChapterActivated); got != 2 {
		t.Errorf("expected two activation events (main, echo), got %d", got)
	}
}

func TestAdvanceIntoTrailingMessagingStep(t *testing.T) {
	f := newEngineFixture(t, models.Chapter{
		ID:   "ch1",
		Name: "The Call",
		Steps: []models.Step{
			websiteStep("s0", 1),
			messagingStep("m1", 2, 0),
		},
	})
	ctx := context.Background()

	if _, err := f.engine.ActivateChapter(ctx, models.TrackTest, "ch1"); err != nil {
		t.Fatalf("ActivateChapter() error: %v", err)
	}

	// Completing s0 makes m1 current; the cascade starting at m1 must
	// dispatch it even though it is the step the advance landed on.
	state, err := f.engine.Advance(ctx, models.TrackTest, "ch1", 0)
	if err != nil {
		t.Fatalf("Advance() error: %v", err)
	}
	checkState(t, state, models.PhaseCompleted, 2)
	if len(f.dispatcher.sent) != 1 || f.dispatcher.sent[0] != "m1" {
		t.Errorf("expected send [m1], got %v", f.dispatcher.sent)
	}
}

// completionFlickerStore fails the chapter completion write a set
// number of times, then behaves normally.
type completionFlickerStore struct {
	*fakeStore
	failuresLeft int
}

func (s *completionFlickerStore) CompleteChapterProgress(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	if s.failuresLeft > 0 {
		s.failuresLeft--
		return false, errStoreDown
	}
	return s.fakeStore.CompleteChapterProgress(ctx, id, at)
}

func TestAdvanceRetriesChapterCompletionAfterStoreFailure(t *testing.T) {
	chapter := models.Chapter{ID: "ch1", Name: "The Call", Steps: []models.Step{websiteStep("s1", 1)}}
	store := &completionFlickerStore{fakeStore: newFakeStore(), failuresLeft: 1}
	dispatcher := &fakeDispatcher{}
	bus := &fakePublisher{}
	engine := NewEngine(testCatalog(t, chapter), store, dispatcher, bus)
	ctx := context.Background()

	if _, err := engine.ActivateChapter(ctx, models.TrackTest, "ch1"); err != nil {
		t.Fatalf("ActivateChapter() error: %v", err)
	}

	// The final step's completion is written, then the chapter
	// completion write fails transiently.
	if _, err := engine.Advance(ctx, models.TrackTest, "ch1", 0); err == nil {
		t.Fatal("expected the first Advance() to surface the completion failure")
	}
	cp, err := store.ActiveChapterProgress(ctx, models.TrackTest)
	if err != nil {
		t.Fatalf("chapter progress must still be active after the failure: %v", err)
	}

	// A retried advance must re-attempt the completion write rather
	// than taking the stale no-op path and leaving the run stuck.
	state, err := engine.Advance(ctx, models.TrackTest, "ch1", 0)
	if err != nil {
		t.Fatalf("retried Advance() error: %v", err)
	}
	checkState(t, state, models.PhaseWaiting, 0)

	if cp.CompletedAt == nil {
		t.Fatal("retried advance must set the chapter's completed_at")
	}
	if _, err := store.ActiveChapterProgress(ctx, models.TrackTest); !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("expected no active chapter after recovery, got %v", err)
	}
	if got := bus.countType(events.TypeChapterCompleted); got != 1 {
		t.Errorf("expected exactly one completion event across the retry, got %d", got)
	}
}

func TestRevealHintRecordsTiers(t *testing.T) {
	f := newEngineFixture(t, models.Chapter{ID: "ch1", Name: "The Call", Steps: []models.Step{websiteStep("s1", 1)}})
	ctx := context.Background()

	if err := f.engine.RevealHint(ctx, models.TrackTest, "ch1", 0, 1, false); err != nil {
		t.Fatalf("RevealHint() error: %v", err)
	}
	if err := f.engine.RevealHint(ctx, models.TrackTest, "ch1", 0, 2, true); err != nil {
		t.Fatalf("RevealHint() error: %v", err)
	}
	// Re-revealing a tier is recorded but must not duplicate the tier
	// in the revealed set.
	if err := f.engine.RevealHint(ctx, models.TrackTest, "ch1", 0, 1, false); err != nil {
		t.Fatalf("RevealHint() error: %v", err)
	}

	tiers, err := f.engine.RevealedTiers(ctx, models.TrackTest, "ch1", 0)
	if err != nil {
		t.Fatalf("RevealedTiers() error: %v", err)
	}
	if len(tiers) != 2 {
		t.Errorf("expected tiers [1 2], got %v", tiers)
	}
}

func TestRevealHintRejectsOutOfRangeStep(t *testing.T) {
	f := newEngineFixture(t, models.Chapter{ID: "ch1", Name: "The Call", Steps: []models.Step{websiteStep("s1", 1)}})

	err := f.engine.RevealHint(context.Background(), models.TrackTest, "ch1", 5, 1, false)
	var pre *PreconditionError
	if !errors.As(err, &pre) || pre.Code != CodeUnknownStep {
		t.Fatalf("expected %s precondition, got %v", CodeUnknownStep, err)
	}
}

func TestResolveStripsPuzzleSecrets(t *testing.T) {
	target := models.LatLon{Lat: 51.5, Lon: -0.12}
	f := newEngineFixture(t, models.Chapter{
		ID:   "ch1",
		Name: "The Call",
		Steps: []models.Step{{
			ID:        "prox",
			Order:     1,
			Type:      models.StepTypeWebsite,
			Component: "proximity",
			Config: models.StepConfig{
				Proximity: &models.ProximityConfig{
					Target: target,
					Gates:  []models.Gate{{Threshold: 0, Text: "You have arrived."}},
				},
			},
		}},
	})
	ctx := context.Background()

	if _, err := f.engine.ActivateChapter(ctx, models.TrackTest, "ch1"); err != nil {
		t.Fatalf("ActivateChapter() error: %v", err)
	}
	state, err := f.engine.Resolve(ctx, models.TrackTest)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	if state.View == nil || state.View.Target == nil || *state.View.Target != target {
		t.Fatalf("proximity view should carry the target, got %+v", state.View)
	}
}
