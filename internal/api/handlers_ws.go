// Lantern - Location-Based Narrative Quest Engine
// Copyright 2026 Tessera Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessera-games/lantern

package api

import (
	"net/http"

	gws "github.com/gorilla/websocket"

	"github.com/tessera-games/lantern/internal/logging"
	"github.com/tessera-games/lantern/internal/websocket"
)

// WebSocket upgrades the connection and attaches the client to the
// event hub. The admin console uses this feed to watch quest activity
// live instead of polling the activity endpoint.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := gws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkWSOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		logging.Warn().Err(err).Str("remote", sanitizeLogValue(r.RemoteAddr)).Msg("WebSocket upgrade failed")
		return
	}

	client := websocket.NewClient(h.hub, conn)
	h.hub.Register <- client
	client.Start()
}

// checkWSOrigin allows same-origin requests, requests with no Origin
// header, and any origin on the configured allowlist. A wildcard entry
// disables the check.
func (h *Handler) checkWSOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.Security.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
