// Lantern - Location-Based Narrative Quest Engine
// Copyright 2026 Tessera Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessera-games/lantern

// Package api exposes the quest engine over HTTP: player resolve and
// advance, hint reveals, proximity checks, the admin console surface,
// the cron sweep hook, and the live event WebSocket.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tessera-games/lantern/internal/middleware"
)

// NewRouter wires all routes with their middleware stacks. Player
// routes are rate limited per IP; admin and cron routes additionally
// require the shared secret.
func (h *Handler) NewRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.cfg.Security.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", secretHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	rateLimit := middleware.NoopMiddleware
	if !h.cfg.Security.RateLimitDisabled {
		limiter := middleware.NewRateLimiter(h.cfg.Security.RateLimitReqs, h.cfg.Security.RateLimitWindow)
		rateLimit = limiter.Middleware
	}

	// Probes and metrics stay outside rate limiting so orchestration
	// traffic is never shed.
	r.Get("/health/live", h.HealthLive)
	r.Get("/health/ready", h.HealthReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/ws", h.WebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.PrometheusMetrics)
		r.Use(rateLimit)

		r.Route("/quest/{track}", func(r chi.Router) {
			r.Get("/", h.ResolveQuest)
			r.Post("/advance", h.AdvanceQuest)
			r.Get("/proximity", h.CheckProximity)
			r.Get("/hints", h.ListHints)
			r.Post("/hints", h.RevealHint)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.requireSecret)

			r.Route("/admin", func(r chi.Router) {
				r.Get("/chapters", h.ListChapters)
				r.Route("/quest/{track}", func(r chi.Router) {
					r.Post("/chapters/{chapterID}/activate", h.ActivateChapter)
					r.Post("/send", h.SendStepMessage)
					r.Post("/messages/{progressKey}/delivered", h.MarkDelivered)
					r.Post("/hints", h.PushHint)
					r.Get("/activity", h.ListActivity)
				})
			})

			r.Post("/cron/sweep", h.SweepDue)
		})
	})

	return r
}

// Server builds the http.Server for the router using configured
// timeouts.
func (h *Handler) Server(addr string) *http.Server {
	// No WriteTimeout: the WebSocket feed is long-lived and would be
	// severed by one. Slowloris protection comes from ReadHeaderTimeout.
	return &http.Server{
		Addr:              addr,
		Handler:           h.NewRouter(),
		ReadHeaderTimeout: h.cfg.Server.Timeout,
		IdleTimeout:       2 * h.cfg.Server.Timeout,
	}
}
