// Lantern - Location-Based Narrative Quest Engine
// Copyright 2026 Tessera Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessera-games/lantern

package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates the progress store tables.
//
// chapter_progress: one row per activation of a chapter on a track; the
// "at most one active row per (track, chapter)" invariant is enforced by
// the controller's insert-time re-check, not a constraint.
//
// step_progress: created lazily; completed_at null until the step
// finishes. The current step index is always derived from these rows.
//
// message_progress: one row per (track, progress_key); the status
// column is the sweep's concurrency guard.
//
// hint_views and activity_log are append-only.
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	queries := []string{
		`CREATE TABLE IF NOT EXISTS chapter_progress (
			id UUID PRIMARY KEY,
			track TEXT NOT NULL,
			chapter_id TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			completed_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS step_progress (
			id UUID PRIMARY KEY,
			chapter_progress_id UUID NOT NULL,
			step_id TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			completed_at TIMESTAMP,
			UNIQUE (chapter_progress_id, step_id)
		)`,
		`CREATE TABLE IF NOT EXISTS message_progress (
			id UUID PRIMARY KEY,
			track TEXT NOT NULL,
			progress_key TEXT NOT NULL,
			status TEXT NOT NULL,
			scheduled_at TIMESTAMP,
			sent_at TIMESTAMP,
			last_error TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			UNIQUE (track, progress_key)
		)`,
		`CREATE TABLE IF NOT EXISTS hint_views (
			id UUID PRIMARY KEY,
			track TEXT NOT NULL,
			chapter_id TEXT NOT NULL,
			step_index INTEGER NOT NULL,
			tier INTEGER NOT NULL,
			admin_pushed BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS activity_log (
			id UUID PRIMARY KEY,
			track TEXT NOT NULL,
			event_type TEXT NOT NULL,
			chapter_id TEXT,
			step_id TEXT,
			detail TEXT,
			created_at TIMESTAMP NOT NULL
		)`,
	}

	for _, query := range queries {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}

	return nil
}

// createIndexes creates indexes for the frequent query shapes: active
// chapter lookups, step progress per chapter, and the due-message sweep.
func (db *DB) createIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_chapter_progress_track ON chapter_progress (track, completed_at)`,
		`CREATE INDEX IF NOT EXISTS idx_step_progress_chapter ON step_progress (chapter_progress_id)`,
		`CREATE INDEX IF NOT EXISTS idx_message_progress_status ON message_progress (status, scheduled_at)`,
		`CREATE INDEX IF NOT EXISTS idx_hint_views_step ON hint_views (track, chapter_id, step_index)`,
		`CREATE INDEX IF NOT EXISTS idx_activity_log_track ON activity_log (track, created_at)`,
	}

	for _, query := range indexes {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create index: %s: %w", query, err)
		}
	}

	return nil
}
