// Lantern - Location-Based Narrative Quest Engine
// Copyright 2026 Tessera Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessera-games/lantern

// Package metrics exposes Prometheus instrumentation for the quest
// engine: API latency, store query performance, event bus traffic,
// message dispatch outcomes, and sweep runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	// Store metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// Quest metrics
	QuestAdvancesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quest_advances_total",
			Help: "Total number of advance calls by outcome",
		},
		[]string{"track", "outcome"}, // advanced, stale, cascade
	)

	QuestCascadeSteps = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quest_cascade_steps",
			Help:    "Number of messaging steps auto-completed per cascade",
			Buckets: []float64{0, 1, 2, 3, 5, 8},
		},
	)

	HintRevealsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quest_hint_reveals_total",
			Help: "Total number of hint tier reveals",
		},
		[]string{"track", "origin"}, // player, admin
	)

	// Messaging metrics
	MessagesSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_sent_total",
			Help: "Total number of messages dispatched by channel and outcome",
		},
		[]string{"channel", "outcome"}, // sent, failed
	)

	MessagesScheduledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "messages_scheduled_total",
			Help: "Total number of messages scheduled for later delivery",
		},
	)

	SweepRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sweep_runs_total",
			Help: "Total number of due-message sweep runs",
		},
	)

	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sweep_duration_seconds",
			Help:    "Duration of due-message sweep runs in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	SweepDispatchedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sweep_dispatched_total",
			Help: "Total number of messages sent by the sweep",
		},
	)

	// Event bus metrics
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total number of domain events published",
		},
		[]string{"type"},
	)

	EventPublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "event_publish_errors_total",
			Help: "Total number of event publish failures",
		},
	)

	// WebSocket metrics
	WSConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Current number of connected admin clients",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of messages broadcast over websockets",
		},
	)

	WSMessagesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_dropped_total",
			Help: "Total number of broadcasts dropped for slow clients",
		},
	)
)

// RecordDBQuery tracks store query duration and errors.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordAPIRequest tracks one handled HTTP request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordAdvance tracks an advance call outcome.
func RecordAdvance(track, outcome string) {
	QuestAdvancesTotal.WithLabelValues(track, outcome).Inc()
}

// RecordCascade tracks how many messaging steps one cascade handled.
func RecordCascade(steps int) {
	QuestCascadeSteps.Observe(float64(steps))
}

// RecordHintReveal tracks a hint tier reveal.
func RecordHintReveal(track string, adminPushed bool) {
	origin := "player"
	if adminPushed {
		origin = "admin"
	}
	HintRevealsTotal.WithLabelValues(track, origin).Inc()
}

// RecordMessageSent tracks a dispatch attempt outcome.
func RecordMessageSent(channel string, err error) {
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	MessagesSentTotal.WithLabelValues(channel, outcome).Inc()
}

// RecordMessageScheduled tracks a deferred message.
func RecordMessageScheduled() {
	MessagesScheduledTotal.Inc()
}

// RecordSweep tracks one sweep run.
func RecordSweep(duration time.Duration, dispatched int) {
	SweepRunsTotal.Inc()
	SweepDuration.Observe(duration.Seconds())
	SweepDispatchedTotal.Add(float64(dispatched))
}

// RecordEventPublished tracks a successful event publish.
func RecordEventPublished(eventType string) {
	EventsPublishedTotal.WithLabelValues(eventType).Inc()
}

// RecordEventPublishError tracks a failed event publish.
func RecordEventPublishError() {
	EventPublishErrors.Inc()
}
