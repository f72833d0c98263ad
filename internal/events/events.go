// Lantern - Location-Based Narrative Quest Engine
// Copyright 2026 Tessera Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessera-games/lantern

// Package events carries domain events from the quest engine and the
// messaging layer to the activity log and the admin live feed. Events
// flow over a Watermill pub/sub: an in-process gochannel by default, or
// NATS JetStream via an embedded server when configured.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/tessera-games/lantern/internal/models"
)

// Topic is the single subject all quest events are published on.
const Topic = "quest.events"

// Event type constants.
const (
	TypeChapterActivated = "chapter.activated"
	TypeChapterCompleted = "chapter.completed"
	TypeStepCompleted    = "step.completed"
	TypeHintRevealed     = "hint.revealed"
	TypeMessageScheduled = "message.scheduled"
	TypeMessageSent      = "message.sent"
	TypeMessageFailed    = "message.failed"
	TypeMessageDelivered = "message.delivered"
	TypeAdminAction      = "admin.action"
)

// QuestEvent is the canonical event envelope. One event is emitted per
// observable state change; consumers append it to the activity log and
// forward it to connected admin clients.
type QuestEvent struct {
	EventID   string       `json:"event_id"`
	Type      string       `json:"type"`
	Track     models.Track `json:"track"`
	ChapterID string       `json:"chapter_id,omitempty"`
	StepID    string       `json:"step_id,omitempty"`
	Detail    string       `json:"detail,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// New creates an event with a fresh ID and timestamp.
func New(eventType string, track models.Track) *QuestEvent {
	return &QuestEvent{
		EventID:   uuid.New().String(),
		Type:      eventType,
		Track:     track,
		Timestamp: time.Now().UTC(),
	}
}

// Validate checks required fields.
func (e *QuestEvent) Validate() error {
	if e.EventID == "" {
		return &FieldError{Field: "event_id", Message: "required"}
	}
	if e.Type == "" {
		return &FieldError{Field: "type", Message: "required"}
	}
	if !e.Track.Valid() {
		return &FieldError{Field: "track", Message: "must be test or live"}
	}
	return nil
}

// FieldError reports a single invalid event field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}
