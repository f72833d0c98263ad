// Lantern - Location-Based Narrative Quest Engine
// Copyright 2026 Tessera Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessera-games/lantern

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tessera-games/lantern/internal/models"
)

// InsertActivity appends one entry to the activity log.
func (db *DB) InsertActivity(ctx context.Context, entry *models.ActivityEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.exec(ctx, "insert", "activity_log", `
		INSERT INTO activity_log (id, track, event_type, chapter_id, step_id, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, string(entry.Track), entry.EventType,
		nullIfEmpty(entry.ChapterID), nullIfEmpty(entry.StepID), nullIfEmpty(entry.Detail),
		entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert activity entry: %w", err)
	}
	return nil
}

// ListActivity returns the newest entries for a track, newest first.
func (db *DB) ListActivity(ctx context.Context, track models.Track, limit int) ([]*models.ActivityEntry, error) {
	rows, err := db.query(ctx, "select", "activity_log", `
		SELECT id, track, event_type, chapter_id, step_id, detail, created_at
		FROM activity_log
		WHERE track = ?
		ORDER BY created_at DESC
		LIMIT ?`, string(track), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*models.ActivityEntry
	for rows.Next() {
		var entry models.ActivityEntry
		var trackCol string
		var chapterID, stepID, detail sql.NullString
		err := rows.Scan(&entry.ID, &trackCol, &entry.EventType, &chapterID, &stepID, &detail, &entry.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity entry: %w", err)
		}
		entry.Track = models.Track(trackCol)
		entry.ChapterID = chapterID.String
		entry.StepID = stepID.String
		entry.Detail = detail.String
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate activity log: %w", err)
	}
	return entries, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
