// Lantern - Location-Based Narrative Quest Engine
// Copyright 2026 Tessera Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessera-games/lantern

package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/tessera-games/lantern/internal/logging"
)

// secretHeader carries the shared secret for admin and cron calls.
const secretHeader = "X-Lantern-Secret"

// requireSecret gates admin and cron routes behind the configured
// shared secret. The comparison is constant-time so the secret cannot
// be probed byte by byte. With auth disabled (local development only)
// every request passes.
func (h *Handler) requireSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.cfg.Security.AuthDisabled {
			next.ServeHTTP(w, r)
			return
		}

		secret := h.cfg.Security.SharedSecret
		if secret == "" {
			respondError(w, http.StatusServiceUnavailable, "auth_unconfigured", "no shared secret configured", nil)
			return
		}

		presented := r.Header.Get(secretHeader)
		if subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) != 1 {
			logging.Warn().Str("path", sanitizeLogValue(r.URL.Path)).Str("remote", sanitizeLogValue(r.RemoteAddr)).Msg("Rejected request with bad shared secret")
			respondError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid shared secret", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}
