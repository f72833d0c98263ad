// Lantern - Location-Based Narrative Quest Engine
// Copyright 2026 Tessera Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessera-games/lantern

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tessera-games/lantern/internal/catalog"
	"github.com/tessera-games/lantern/internal/config"
	"github.com/tessera-games/lantern/internal/database"
	"github.com/tessera-games/lantern/internal/events"
	"github.com/tessera-games/lantern/internal/messaging"
	"github.com/tessera-games/lantern/internal/models"
	"github.com/tessera-games/lantern/internal/quest"
	"github.com/tessera-games/lantern/internal/websocket"
)

// emptyQuestStore is a quest.Store with no progress anywhere.
type emptyQuestStore struct{}

func (emptyQuestStore) ActiveChapterProgress(context.Context, models.Track) (*models.ChapterProgress, error) {
	return nil, database.ErrNotFound
}

func (emptyQuestStore) ChapterProgressFor(context.Context, models.Track, string) (*models.ChapterProgress, error) {
	return nil, database.ErrNotFound
}

func (emptyQuestStore) InsertChapterProgress(context.Context, *models.ChapterProgress) error {
	return nil
}

func (emptyQuestStore) CompleteChapterProgress(context.Context, uuid.UUID, time.Time) (bool, error) {
	return false, nil
}

func (emptyQuestStore) StepProgressFor(context.Context, uuid.UUID) (map[string]*models.StepProgress, error) {
	return map[string]*models.StepProgress{}, nil
}

func (emptyQuestStore) EnsureStepProgress(_ context.Context, chapterProgressID uuid.UUID, stepID string) (*models.StepProgress, error) {
	return &models.StepProgress{ID: uuid.New(), ChapterProgressID: chapterProgressID, StepID: stepID}, nil
}

func (emptyQuestStore) CompleteStepProgress(context.Context, uuid.UUID, time.Time) (bool, error) {
	return true, nil
}

func (emptyQuestStore) InsertHintView(context.Context, *models.HintView) error { return nil }

func (emptyQuestStore) RevealedTiers(context.Context, models.Track, string, int) ([]int, error) {
	return []int{}, nil
}

// noopMessageStore satisfies messaging.Store for handlers that never
// reach the store.
type noopMessageStore struct{}

func (noopMessageStore) GetMessageProgress(context.Context, models.Track, string) (*models.MessageProgress, error) {
	return nil, database.ErrNotFound
}

func (noopMessageStore) ScheduleMessage(context.Context, models.Track, string, time.Time) error {
	return nil
}

func (noopMessageStore) ClaimScheduledMessage(context.Context, uuid.UUID, time.Time) (bool, error) {
	return false, nil
}

func (noopMessageStore) MarkMessageSent(context.Context, models.Track, string, time.Time) error {
	return nil
}

func (noopMessageStore) MarkMessageFailed(context.Context, models.Track, string, string) error {
	return nil
}

func (noopMessageStore) MarkMessageDelivered(context.Context, models.Track, string) (bool, error) {
	return false, nil
}

func (noopMessageStore) DueScheduledMessages(context.Context, time.Time, int) ([]*models.MessageProgress, error) {
	return nil, nil
}

// capturePublisher records events emitted by the handlers.
type capturePublisher struct {
	mu     sync.Mutex
	events []*events.QuestEvent
}

func (p *capturePublisher) Publish(_ context.Context, event *events.QuestEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) byType(eventType string) []*events.QuestEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*events.QuestEvent
	for _, e := range p.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func apiCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New(&catalog.Document{
		Chapters: []models.Chapter{{
			ID:   "ch1",
			Name: "The Call",
			Steps: []models.Step{{
				ID:        "s1",
				Order:     1,
				Type:      models.StepTypeWebsite,
				Component: "riddle",
				Config:    models.StepConfig{Puzzle: &models.PuzzleConfig{Answer: "lantern"}},
			}},
		}},
		Tracks: map[models.Track]catalog.TrackEntry{
			models.TrackTest: {Contacts: catalog.Roster{
				catalog.RolePlayer: {Name: "Rehearsal Player", Email: "test@example.com"},
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

func testHandler(t *testing.T) *Handler {
	t.Helper()
	cfg := &config.Config{
		Security: config.SecurityConfig{
			SharedSecret:      "sesame",
			RateLimitDisabled: true,
			CORSOrigins:       []string{"*"},
		},
		Server:    config.ServerConfig{Timeout: 30 * time.Second},
		Messaging: config.MessagingConfig{MorningHour: 9, Timezone: "UTC"},
	}
	cat := apiCatalog(t)
	registry := messaging.NewRegistry(messaging.NewLogChannel())
	dispatcher := messaging.NewDispatcher(&cfg.Messaging, cat, noopMessageStore{}, registry, nil)
	engine := quest.NewEngine(cat, emptyQuestStore{}, dispatcher, nil)
	return NewHandler(cfg, engine, dispatcher, nil, cat, websocket.NewHub(), &capturePublisher{})
}

func doRequest(t *testing.T, h *Handler, method, path, body, secret string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if secret != "" {
		req.Header.Set(secretHeader, secret)
	}
	rec := httptest.NewRecorder()
	h.NewRouter().ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) *models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not a JSON envelope: %v\n%s", err, rec.Body.String())
	}
	return &resp
}

func TestResolveQuestWaiting(t *testing.T) {
	h := testHandler(t)
	rec := doRequest(t, h, http.MethodGet, "/api/v1/quest/test", "", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeEnvelope(t, rec)
	if resp.Status != "success" {
		t.Errorf("expected success envelope, got %+v", resp)
	}

	data, _ := json.Marshal(resp.Data)
	var state models.QuestState
	if err := json.Unmarshal(data, &state); err != nil {
		t.Fatalf("data is not a quest state: %v", err)
	}
	if state.Phase != models.PhaseWaiting {
		t.Errorf("expected waiting phase, got %q", state.Phase)
	}
}

func TestResolveQuestUnknownTrack(t *testing.T) {
	h := testHandler(t)
	rec := doRequest(t, h, http.MethodGet, "/api/v1/quest/staging", "", "")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	if resp.Error == nil || resp.Error.Code != "unknown_track" {
		t.Errorf("expected unknown_track error, got %+v", resp.Error)
	}
}

func TestAdvanceRejectsMalformedBody(t *testing.T) {
	h := testHandler(t)

	rec := doRequest(t, h, http.MethodPost, "/api/v1/quest/test/advance", "{not json", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed JSON, got %d", rec.Code)
	}

	rec = doRequest(t, h, http.MethodPost, "/api/v1/quest/test/advance", `{"step_index":0}`, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing chapter_id, got %d", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	if resp.Error == nil || resp.Error.Code != "validation_error" {
		t.Errorf("expected validation_error, got %+v", resp.Error)
	}
}

func TestAdvanceWithoutActiveChapterIsConflict(t *testing.T) {
	h := testHandler(t)

	rec := doRequest(t, h, http.MethodPost, "/api/v1/quest/test/advance", `{"chapter_id":"ch1","step_index":0}`, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeEnvelope(t, rec)
	if resp.Error == nil || resp.Error.Code != quest.CodeNoActiveRun {
		t.Errorf("expected %s error, got %+v", quest.CodeNoActiveRun, resp.Error)
	}
}

func TestProximityRequiresCoordinates(t *testing.T) {
	h := testHandler(t)

	rec := doRequest(t, h, http.MethodGet, "/api/v1/quest/test/proximity?lat=51.5", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing lon, got %d", rec.Code)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/v1/quest/test/proximity?lat=123.0&lon=0.0", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for out-of-range lat, got %d", rec.Code)
	}
}

func TestAdminRoutesRequireSecret(t *testing.T) {
	h := testHandler(t)

	rec := doRequest(t, h, http.MethodGet, "/api/v1/admin/chapters", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without secret, got %d", rec.Code)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/v1/admin/chapters", "", "wrong")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong secret, got %d", rec.Code)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/v1/admin/chapters", "", "sesame")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with correct secret, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAdminListChaptersHidesSecrets(t *testing.T) {
	h := testHandler(t)

	rec := doRequest(t, h, http.MethodGet, "/api/v1/admin/chapters", "", "sesame")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "lantern") {
		t.Error("puzzle answer leaked into the chapter listing")
	}
}

func TestAdminSendRejectsNonMessagingStep(t *testing.T) {
	h := testHandler(t)

	rec := doRequest(t, h, http.MethodPost, "/api/v1/admin/quest/test/send", `{"step_id":"s1"}`, "sesame")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for website step, got %d", rec.Code)
	}

	rec = doRequest(t, h, http.MethodPost, "/api/v1/admin/quest/test/send", `{"step_id":"missing"}`, "sesame")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown step, got %d", rec.Code)
	}
}

func TestAdminMutationsLandInAuditTrail(t *testing.T) {
	h := testHandler(t)

	rec := doRequest(t, h, http.MethodPost, "/api/v1/admin/quest/test/chapters/ch1/activate", "", "sesame")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	actions := h.bus.(*capturePublisher).byType(events.TypeAdminAction)
	if len(actions) != 1 {
		t.Fatalf("expected 1 admin action event, got %d", len(actions))
	}
	if actions[0].Track != models.TrackTest || actions[0].ChapterID != "ch1" {
		t.Errorf("unexpected event fields: %+v", actions[0])
	}
	if actions[0].Detail != "action=activate_chapter" {
		t.Errorf("expected activate_chapter detail, got %q", actions[0].Detail)
	}

	// Rejected operations must not dirty the audit trail.
	rec = doRequest(t, h, http.MethodPost, "/api/v1/admin/quest/test/send", `{"step_id":"s1"}`, "sesame")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for website step, got %d", rec.Code)
	}
	if got := len(h.bus.(*capturePublisher).byType(events.TypeAdminAction)); got != 1 {
		t.Errorf("rejected send must not record an admin action, total is %d", got)
	}
}

func TestCronSweepRequiresSecret(t *testing.T) {
	h := testHandler(t)

	rec := doRequest(t, h, http.MethodPost, "/api/v1/cron/sweep", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	rec = doRequest(t, h, http.MethodPost, "/api/v1/cron/sweep", "", "sesame")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAuthDisabledSkipsSecret(t *testing.T) {
	h := testHandler(t)
	h.cfg.Security.AuthDisabled = true

	rec := doRequest(t, h, http.MethodGet, "/api/v1/admin/chapters", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with auth disabled, got %d", rec.Code)
	}
}

func TestHealthLive(t *testing.T) {
	h := testHandler(t)

	rec := doRequest(t, h, http.MethodGet, "/health/live", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestSanitizeLogValue(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"with\nnewline", "with\\x0anewline"},
		{"tab\there", "tab\\x09here"},
		{"unicode ok: café", "unicode ok: café"},
	}
	for _, tt := range tests {
		if got := sanitizeLogValue(tt.in); got != tt.want {
			t.Errorf("sanitizeLogValue(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
