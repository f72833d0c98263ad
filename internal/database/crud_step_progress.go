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

// StepProgressFor returns all step progress rows recorded under a
// chapter progress row, keyed by step ID. Steps with no row yet are
// simply absent from the map.
func (db *DB) StepProgressFor(ctx context.Context, chapterProgressID uuid.UUID) (map[string]*models.StepProgress, error) {
	rows, err := db.query(ctx, "select", "step_progress", `
		SELECT id, chapter_progress_id, step_id, created_at, completed_at
		FROM step_progress
		WHERE chapter_progress_id = ?`, chapterProgressID)
	if err != nil {
		return nil, fmt.Errorf("failed to query step progress: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := make(map[string]*models.StepProgress)
	for rows.Next() {
		var sp models.StepProgress
		var completedAt sql.NullTime
		if err := rows.Scan(&sp.ID, &sp.ChapterProgressID, &sp.StepID, &sp.CreatedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("failed to scan step progress: %w", err)
		}
		if completedAt.Valid {
			sp.CompletedAt = &completedAt.Time
		}
		result[sp.StepID] = &sp
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate step progress: %w", err)
	}
	return result, nil
}

// EnsureStepProgress returns the step progress row for (chapter
// progress, step), creating it if absent. The unique constraint on the
// pair makes the create race-safe: concurrent callers converge on one
// row.
func (db *DB) EnsureStepProgress(ctx context.Context, chapterProgressID uuid.UUID, stepID string) (*models.StepProgress, error) {
	_, err := db.exec(ctx, "insert", "step_progress", `
		INSERT INTO step_progress (id, chapter_progress_id, step_id, created_at, completed_at)
		VALUES (?, ?, ?, ?, NULL)
		ON CONFLICT (chapter_progress_id, step_id) DO NOTHING`,
		uuid.New(), chapterProgressID, stepID, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to ensure step progress: %w", err)
	}

	row := db.queryRow(ctx, "select", "step_progress", `
		SELECT id, chapter_progress_id, step_id, created_at, completed_at
		FROM step_progress
		WHERE chapter_progress_id = ? AND step_id = ?`, chapterProgressID, stepID)

	var sp models.StepProgress
	var completedAt sql.NullTime
	err = row.Scan(&sp.ID, &sp.ChapterProgressID, &sp.StepID, &sp.CreatedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan step progress: %w", err)
	}
	if completedAt.Valid {
		sp.CompletedAt = &completedAt.Time
	}
	return &sp, nil
}

// CompleteStepProgress marks a step progress row completed. First write
// wins; the bool reports whether this call performed the completion.
func (db *DB) CompleteStepProgress(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	result, err := db.exec(ctx, "update", "step_progress", `
		UPDATE step_progress
		SET completed_at = ?
		WHERE id = ? AND completed_at IS NULL`, at.UTC(), id)
	if err != nil {
		return false, fmt.Errorf("failed to complete step progress: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected > 0, nil
}
