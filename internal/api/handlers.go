// Lantern - Location-Based Narrative Quest Engine
// Copyright 2026 Tessera Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessera-games/lantern

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tessera-games/lantern/internal/catalog"
	"github.com/tessera-games/lantern/internal/config"
	"github.com/tessera-games/lantern/internal/database"
	"github.com/tessera-games/lantern/internal/events"
	"github.com/tessera-games/lantern/internal/logging"
	"github.com/tessera-games/lantern/internal/messaging"
	"github.com/tessera-games/lantern/internal/models"
	"github.com/tessera-games/lantern/internal/quest"
	"github.com/tessera-games/lantern/internal/websocket"
)

// Publisher emits domain events.
type Publisher interface {
	Publish(ctx context.Context, event *events.QuestEvent) error
}

// Handler holds the dependencies shared by all HTTP endpoints.
type Handler struct {
	cfg        *config.Config
	engine     *quest.Engine
	dispatcher *messaging.Dispatcher
	db         *database.DB
	catalog    *catalog.Catalog
	hub        *websocket.Hub
	bus        Publisher
	startTime  time.Time
}

// NewHandler creates the API handler. bus may be nil in tests.
func NewHandler(cfg *config.Config, engine *quest.Engine, dispatcher *messaging.Dispatcher, db *database.DB, cat *catalog.Catalog, hub *websocket.Hub, bus Publisher) *Handler {
	return &Handler{
		cfg:        cfg,
		engine:     engine,
		dispatcher: dispatcher,
		db:         db,
		catalog:    cat,
		hub:        hub,
		bus:        bus,
		startTime:  time.Now(),
	}
}

// adminAction records a mutating admin operation in the audit trail,
// alongside whatever domain events the operation itself emitted.
func (h *Handler) adminAction(ctx context.Context, track models.Track, chapterID, stepID, detail string) {
	if h.bus == nil {
		return
	}
	event := events.New(events.TypeAdminAction, track)
	event.ChapterID = chapterID
	event.StepID = stepID
	event.Detail = detail
	if err := h.bus.Publish(ctx, event); err != nil {
		logging.Warn().Err(err).Str("detail", detail).Msg("Failed to publish admin action")
	}
}

// HealthLive reports process liveness. It never touches the store.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondData(w, map[string]any{
		"status": "alive",
		"uptime": time.Since(h.startTime).String(),
	}, time.Now())
}

// HealthReady reports readiness to serve quest traffic. A store that
// cannot be pinged fails the check so load balancers stop routing here.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if err := h.db.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "store_unavailable", "database ping failed", err)
		return
	}

	respondData(w, map[string]any{
		"status":     "ready",
		"chapters":   len(h.catalog.Chapters()),
		"ws_clients": h.hub.ClientCount(),
		"uptime":     time.Since(h.startTime).String(),
	}, start)
}
