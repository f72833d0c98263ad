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

// GetMessageProgress returns the delivery row for (track, progress
// key), or ErrNotFound.
func (db *DB) GetMessageProgress(ctx context.Context, track models.Track, progressKey string) (*models.MessageProgress, error) {
	row := db.queryRow(ctx, "select", "message_progress", `
		SELECT id, track, progress_key, status, scheduled_at, sent_at, last_error, created_at, updated_at
		FROM message_progress
		WHERE track = ? AND progress_key = ?`, string(track), progressKey)

	return scanMessageProgress(row)
}

// ScheduleMessage records that a message is due at the given time. A
// scheduled or failed row is rescheduled in place; a sent or delivered
// row is left untouched so re-walking a completed step never resends.
func (db *DB) ScheduleMessage(ctx context.Context, track models.Track, progressKey string, dueAt time.Time) error {
	now := time.Now().UTC()

	result, err := db.exec(ctx, "update", "message_progress", `
		UPDATE message_progress
		SET status = ?, scheduled_at = ?, last_error = NULL, updated_at = ?
		WHERE track = ? AND progress_key = ? AND status IN (?, ?)`,
		string(models.MessageScheduled), dueAt.UTC(), now,
		string(track), progressKey,
		string(models.MessageScheduled), string(models.MessageFailed))
	if err != nil {
		return fmt.Errorf("failed to reschedule message: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// Either no row exists yet or the message already went out. The
	// conflict clause keeps the second case a no-op.
	_, err = db.exec(ctx, "insert", "message_progress", `
		INSERT INTO message_progress (id, track, progress_key, status, scheduled_at, sent_at, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, NULL, NULL, ?, ?)
		ON CONFLICT (track, progress_key) DO NOTHING`,
		uuid.New(), string(track), progressKey,
		string(models.MessageScheduled), dueAt.UTC(), now, now)
	if err != nil {
		return fmt.Errorf("failed to schedule message: %w", err)
	}
	return nil
}

// ClaimScheduledMessage transitions a row from scheduled to sent and
// reports whether this caller won the claim. The status filter is the
// concurrency guard: overlapping sweeps race on the UPDATE and exactly
// one observes an affected row.
func (db *DB) ClaimScheduledMessage(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	result, err := db.exec(ctx, "update", "message_progress", `
		UPDATE message_progress
		SET status = ?, sent_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(models.MessageSent), at.UTC(), time.Now().UTC(),
		id, string(models.MessageScheduled))
	if err != nil {
		return false, fmt.Errorf("failed to claim scheduled message: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected > 0, nil
}

// MarkMessageSent records an immediate (non-delayed) send. Upsert: a
// prior scheduled or failed row is overwritten, an already sent row
// keeps its original sent_at.
func (db *DB) MarkMessageSent(ctx context.Context, track models.Track, progressKey string, at time.Time) error {
	now := time.Now().UTC()
	_, err := db.exec(ctx, "insert", "message_progress", `
		INSERT INTO message_progress (id, track, progress_key, status, scheduled_at, sent_at, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, NULL, ?, NULL, ?, ?)
		ON CONFLICT (track, progress_key) DO UPDATE
		SET status = excluded.status,
		    sent_at = excluded.sent_at,
		    last_error = NULL,
		    updated_at = excluded.updated_at
		WHERE message_progress.status IN (?, ?)`,
		uuid.New(), string(track), progressKey,
		string(models.MessageSent), at.UTC(), now, now,
		string(models.MessageScheduled), string(models.MessageFailed))
	if err != nil {
		return fmt.Errorf("failed to mark message sent: %w", err)
	}
	return nil
}

// MarkMessageFailed records a delivery failure with the cause,
// inserting the row if the failed send was the first contact with this
// progress key. A delivered row is never demoted. The failed row stays
// eligible for rescheduling and manual resend.
func (db *DB) MarkMessageFailed(ctx context.Context, track models.Track, progressKey string, cause string) error {
	now := time.Now().UTC()
	result, err := db.exec(ctx, "update", "message_progress", `
		UPDATE message_progress
		SET status = ?, last_error = ?, updated_at = ?
		WHERE track = ? AND progress_key = ? AND status != ?`,
		string(models.MessageFailed), cause, now,
		string(track), progressKey, string(models.MessageDelivered))
	if err != nil {
		return fmt.Errorf("failed to mark message failed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	_, err = db.exec(ctx, "insert", "message_progress", `
		INSERT INTO message_progress (id, track, progress_key, status, scheduled_at, sent_at, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, NULL, NULL, ?, ?, ?)
		ON CONFLICT (track, progress_key) DO NOTHING`,
		uuid.New(), string(track), progressKey,
		string(models.MessageFailed), cause, now, now)
	if err != nil {
		return fmt.Errorf("failed to record message failure: %w", err)
	}
	return nil
}

// MarkMessageDelivered confirms receipt of a sent message. Only the
// sent status is eligible; the bool reports whether the row advanced.
func (db *DB) MarkMessageDelivered(ctx context.Context, track models.Track, progressKey string) (bool, error) {
	result, err := db.exec(ctx, "update", "message_progress", `
		UPDATE message_progress
		SET status = ?, updated_at = ?
		WHERE track = ? AND progress_key = ? AND status = ?`,
		string(models.MessageDelivered), time.Now().UTC(),
		string(track), progressKey, string(models.MessageSent))
	if err != nil {
		return false, fmt.Errorf("failed to mark message delivered: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected > 0, nil
}

// DueScheduledMessages returns scheduled rows whose due time has
// passed, oldest first. The sweep claims each row individually before
// sending, so this listing carries no locks.
func (db *DB) DueScheduledMessages(ctx context.Context, now time.Time, limit int) ([]*models.MessageProgress, error) {
	rows, err := db.query(ctx, "select", "message_progress", `
		SELECT id, track, progress_key, status, scheduled_at, sent_at, last_error, created_at, updated_at
		FROM message_progress
		WHERE status = ? AND scheduled_at <= ?
		ORDER BY scheduled_at
		LIMIT ?`,
		string(models.MessageScheduled), now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var due []*models.MessageProgress
	for rows.Next() {
		mp, err := scanMessageProgressRows(rows)
		if err != nil {
			return nil, err
		}
		due = append(due, mp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate due messages: %w", err)
	}
	return due, nil
}

func scanMessageProgress(row *sql.Row) (*models.MessageProgress, error) {
	var mp models.MessageProgress
	var track, status string
	var scheduledAt, sentAt sql.NullTime
	var lastError sql.NullString

	err := row.Scan(&mp.ID, &track, &mp.ProgressKey, &status, &scheduledAt, &sentAt, &lastError, &mp.CreatedAt, &mp.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan message progress: %w", err)
	}

	fillMessageProgress(&mp, track, status, scheduledAt, sentAt, lastError)
	return &mp, nil
}

func scanMessageProgressRows(rows *sql.Rows) (*models.MessageProgress, error) {
	var mp models.MessageProgress
	var track, status string
	var scheduledAt, sentAt sql.NullTime
	var lastError sql.NullString

	err := rows.Scan(&mp.ID, &track, &mp.ProgressKey, &status, &scheduledAt, &sentAt, &lastError, &mp.CreatedAt, &mp.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan message progress: %w", err)
	}

	fillMessageProgress(&mp, track, status, scheduledAt, sentAt, lastError)
	return &mp, nil
}

func fillMessageProgress(mp *models.MessageProgress, track, status string, scheduledAt, sentAt sql.NullTime, lastError sql.NullString) {
	mp.Track = models.Track(track)
	mp.Status = models.MessageStatus(status)
	if scheduledAt.Valid {
		mp.ScheduledAt = &scheduledAt.Time
	}
	if sentAt.Valid {
		mp.SentAt = &sentAt.Time
	}
	if lastError.Valid {
		mp.LastError = lastError.String
	}
}
