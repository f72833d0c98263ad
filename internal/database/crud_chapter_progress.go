// Lantern - Location-Based Narrative Quest Engine
// Copyright 2026 Tessera Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessera-games/lantern

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tessera-games/lantern/internal/models"
)

// ActiveChapterProgress returns the track's single non-completed chapter
// progress row. Returns ErrNotFound if the track has no active chapter.
// If more than one row is active (a companion chapter with interactive
// steps), the oldest activation wins so the player's view is stable.
func (db *DB) ActiveChapterProgress(ctx context.Context, track models.Track) (*models.ChapterProgress, error) {
	row := db.queryRow(ctx, "select", "chapter_progress", `
		SELECT id, track, chapter_id, created_at, completed_at
		FROM chapter_progress
		WHERE track = ? AND completed_at IS NULL
		ORDER BY created_at
		LIMIT 1`, string(track))

	return scanChapterProgress(row)
}

// ChapterProgressFor returns the active progress row for a specific
// (track, chapter) pair, or ErrNotFound.
func (db *DB) ChapterProgressFor(ctx context.Context, track models.Track, chapterID string) (*models.ChapterProgress, error) {
	row := db.queryRow(ctx, "select", "chapter_progress", `
		SELECT id, track, chapter_id, created_at, completed_at
		FROM chapter_progress
		WHERE track = ? AND chapter_id = ? AND completed_at IS NULL
		ORDER BY created_at
		LIMIT 1`, string(track), chapterID)

	return scanChapterProgress(row)
}

// InsertChapterProgress activates a chapter on a track. Callers must
// re-check for an existing active row immediately before inserting; the
// store does not enforce the single-active invariant.
func (db *DB) InsertChapterProgress(ctx context.Context, progress *models.ChapterProgress) error {
	if progress.ID == uuid.Nil {
		progress.ID = uuid.New()
	}
	if progress.CreatedAt.IsZero() {
		progress.CreatedAt = time.Now().UTC()
	}

	_, err := db.exec(ctx, "insert", "chapter_progress", `
		INSERT INTO chapter_progress (id, track, chapter_id, created_at, completed_at)
		VALUES (?, ?, ?, ?, NULL)`,
		progress.ID, string(progress.Track), progress.ChapterID, progress.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert chapter progress: %w", err)
	}
	return nil
}

// CompleteChapterProgress sets completed_at on a chapter progress row.
// The null guard makes completion first-write-wins: repeated completion
// calls are safe no-ops and the returned bool reports whether this call
// was the one that completed it.
func (db *DB) CompleteChapterProgress(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	result, err := db.exec(ctx, "update", "chapter_progress", `
		UPDATE chapter_progress
		SET completed_at = ?
		WHERE id = ? AND completed_at IS NULL`, at.UTC(), id)
	if err != nil {
		return false, fmt.Errorf("failed to complete chapter progress: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected > 0, nil
}

// scanChapterProgress scans a single chapter progress row.
func scanChapterProgress(row *sql.Row) (*models.ChapterProgress, error) {
	var progress models.ChapterProgress
	var track string
	var completedAt sql.NullTime

	err := row.Scan(&progress.ID, &track, &progress.ChapterID, &progress.CreatedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan chapter progress: %w", err)
	}

	progress.Track = models.Track(track)
	if completedAt.Valid {
		progress.CompletedAt = &completedAt.Time
	}
	return &progress, nil
}
