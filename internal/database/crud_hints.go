// Lantern - Location-Based Narrative Quest Engine
// Copyright 2026 Tessera Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessera-games/lantern

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tessera-games/lantern/internal/models"
)

// InsertHintView records a hint tier reveal. Repeat views of the same
// tier each get a row; consumers deduplicate on read.
func (db *DB) InsertHintView(ctx context.Context, view *models.HintView) error {
	if view.ID == uuid.Nil {
		view.ID = uuid.New()
	}
	if view.CreatedAt.IsZero() {
		view.CreatedAt = time.Now().UTC()
	}

	_, err := db.exec(ctx, "insert", "hint_views", `
		INSERT INTO hint_views (id, track, chapter_id, step_index, tier, admin_pushed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		view.ID, string(view.Track), view.ChapterID, view.StepIndex, view.Tier, view.AdminPushed, view.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert hint view: %w", err)
	}
	return nil
}

// RevealedTiers returns the distinct hint tiers seen for a step,
// ascending. An empty slice means no hints were revealed.
func (db *DB) RevealedTiers(ctx context.Context, track models.Track, chapterID string, stepIndex int) ([]int, error) {
	rows, err := db.query(ctx, "select", "hint_views", `
		SELECT DISTINCT tier
		FROM hint_views
		WHERE track = ? AND chapter_id = ? AND step_index = ?
		ORDER BY tier`,
		string(track), chapterID, stepIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to query revealed tiers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tiers := []int{}
	for rows.Next() {
		var tier int
		if err := rows.Scan(&tier); err != nil {
			return nil, fmt.Errorf("failed to scan hint tier: %w", err)
		}
		tiers = append(tiers, tier)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate hint tiers: %w", err)
	}
	return tiers, nil
}
