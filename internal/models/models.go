// Lantern - Location-Based Narrative Quest Engine
// Copyright 2026 Tessera Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessera-games/lantern

// Package models defines the shared domain types for Lantern: the
// immutable chapter/step catalog structures, the mutable progress rows
// persisted by the store, and the player-facing quest state.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Track identifies one of the two parallel game instances. Both tracks
// read the same catalog but hold independent progress and contacts.
type Track string

const (
	TrackTest Track = "test"
	TrackLive Track = "live"
)

// Valid reports whether t is a known track.
func (t Track) Valid() bool {
	return t == TrackTest || t == TrackLive
}

// StepType distinguishes interactive website steps from outbound
// messaging steps.
type StepType string

const (
	StepTypeWebsite   StepType = "website"
	StepTypeMessaging StepType = "messaging"
)

// AdvanceMode tells the client how the current step completes.
type AdvanceMode string

const (
	// AdvanceAuto means the client calls advance once its own
	// interaction finishes.
	AdvanceAuto AdvanceMode = "auto"
	// AdvanceAdminTrigger means no client action can complete the step;
	// the client polls until an admin advances it.
	AdvanceAdminTrigger AdvanceMode = "admin_trigger"
)

// MessageStatus is the lifecycle state of an outbound message.
type MessageStatus string

const (
	MessageScheduled MessageStatus = "scheduled"
	MessageSent      MessageStatus = "sent"
	MessageDelivered MessageStatus = "delivered"
	MessageFailed    MessageStatus = "failed"
)

// LatLon is a WGS84 coordinate pair.
type LatLon struct {
	Lat float64 `koanf:"lat" json:"lat"`
	Lon float64 `koanf:"lon" json:"lon"`
}

// Gate maps a distance threshold to narrative feedback text. Gates are
// evaluated descending by threshold; the first gate the distance exceeds
// wins, and the last gate is the arrived band.
type Gate struct {
	Threshold float64 `koanf:"threshold" json:"threshold"`
	Text      string  `koanf:"text" json:"text"`
}

// Chapter is a named, ordered unit of gameplay. Immutable at runtime.
type Chapter struct {
	ID       string  `koanf:"id"`
	Name     string  `koanf:"name"`
	Location *LatLon `koanf:"location"`
	Window   *Window `koanf:"window"`
	// Companion names the chapter whose completion auto-activates this
	// one. Empty for chapters activated explicitly by an admin.
	Companion string `koanf:"companion"`
	Steps     []Step `koanf:"steps"`
}

// Window is an optional open/close time for a chapter's location.
type Window struct {
	Open  string `koanf:"open"`
	Close string `koanf:"close"`
}

// Step is one interactive or messaging unit within a chapter.
type Step struct {
	// ID is globally unique across all chapters.
	ID string `koanf:"id"`
	// Order is unique within the chapter; steps run ascending by Order.
	Order     int        `koanf:"order"`
	Type      StepType   `koanf:"type"`
	Component string     `koanf:"component"`
	Config    StepConfig `koanf:"config"`
}

// StepConfig is a closed sum over step payloads: exactly one variant is
// set, selected by the step's Type and Component. Keeping the payload a
// sum type (rather than an open map) lets each consumer see at compile
// time which fields its step kind carries.
type StepConfig struct {
	Proximity *ProximityConfig `koanf:"proximity"`
	Puzzle    *PuzzleConfig    `koanf:"puzzle"`
	Narrative *NarrativeConfig `koanf:"narrative"`
	Message   *MessageConfig   `koanf:"message"`
}

// ProximityConfig drives "am I close enough" puzzle steps.
type ProximityConfig struct {
	Target LatLon `koanf:"target"`
	Gates  []Gate `koanf:"gates"`
}

// PuzzleConfig drives answer-submission puzzle steps.
type PuzzleConfig struct {
	Answer  string      `koanf:"answer"`
	Advance AdvanceMode `koanf:"advance"`
}

// NarrativeConfig drives pure reveal steps.
type NarrativeConfig struct {
	Advance AdvanceMode `koanf:"advance"`
}

// MessageConfig drives outbound messaging steps.
type MessageConfig struct {
	// To selects the recipient from the track's contact roster. The
	// special value "player" aliases the track's player contact.
	To string `koanf:"to"`
	// ProgressKey correlates scheduled/sent state in message_progress.
	ProgressKey string `koanf:"progress_key"`
	Channel     string `koanf:"channel"`
	Subject     string `koanf:"subject"`
	Body        string `koanf:"body"`
	// DelayMornings defers delivery to the Nth upcoming morning.
	// 0 sends immediately during the cascade.
	DelayMornings int `koanf:"delay_mornings"`
}

// Contact is a reachable person on a track's roster.
type Contact struct {
	Name  string `koanf:"name" json:"name"`
	Phone string `koanf:"phone" json:"-"`
	Email string `koanf:"email" json:"-"`
}

// ChapterProgress records a track's activation of a chapter. At most one
// row per (track, chapter) may have a null CompletedAt; the controller's
// queries enforce this, not a database constraint.
type ChapterProgress struct {
	ID          uuid.UUID  `json:"id"`
	Track       Track      `json:"track"`
	ChapterID   string     `json:"chapter_id"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Completed reports whether the chapter has finished.
func (p *ChapterProgress) Completed() bool {
	return p.CompletedAt != nil
}

// StepProgress records a single step's lifecycle within an activated
// chapter. Created lazily on first interaction or admin completion.
type StepProgress struct {
	ID                uuid.UUID  `json:"id"`
	ChapterProgressID uuid.UUID  `json:"chapter_progress_id"`
	StepID            string     `json:"step_id"`
	CreatedAt         time.Time  `json:"created_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
}

// Completed reports whether the step has finished.
func (p *StepProgress) Completed() bool {
	return p.CompletedAt != nil
}

// MessageProgress tracks one outbound message per (track, progress key).
type MessageProgress struct {
	ID          uuid.UUID     `json:"id"`
	Track       Track         `json:"track"`
	ProgressKey string        `json:"progress_key"`
	Status      MessageStatus `json:"status"`
	ScheduledAt *time.Time    `json:"scheduled_at,omitempty"`
	SentAt      *time.Time    `json:"sent_at,omitempty"`
	LastError   string        `json:"last_error,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// HintView is one append-only record of a hint tier being shown. A tier
// counts as revealed if at least one row exists for its
// (track, chapter, step index, tier).
type HintView struct {
	ID          uuid.UUID `json:"id"`
	Track       Track     `json:"track"`
	ChapterID   string    `json:"chapter_id"`
	StepIndex   int       `json:"step_index"`
	Tier        int       `json:"tier"`
	AdminPushed bool      `json:"admin_pushed"`
	CreatedAt   time.Time `json:"created_at"`
}

// ActivityEntry is one append-only audit trail record.
type ActivityEntry struct {
	ID        uuid.UUID `json:"id"`
	Track     Track     `json:"track"`
	EventType string    `json:"event_type"`
	ChapterID string    `json:"chapter_id,omitempty"`
	StepID    string    `json:"step_id,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// QuestPhase is the top-level player state.
type QuestPhase string

const (
	// PhaseWaiting means no chapter is active for the track.
	PhaseWaiting QuestPhase = "waiting"
	// PhaseActive means a chapter is active and a step is current.
	PhaseActive QuestPhase = "active"
	// PhaseCompleted means every step of the active chapter has
	// completed progress rows.
	PhaseCompleted QuestPhase = "completed"
)

// QuestState is what the player should see right now, derived on every
// read from progress rows and the catalog. It is never cached.
type QuestState struct {
	Track       Track      `json:"track"`
	Phase       QuestPhase `json:"phase"`
	ChapterID   string     `json:"chapter_id,omitempty"`
	ChapterName string     `json:"chapter_name,omitempty"`
	StepIndex   int        `json:"step_index,omitempty"`
	StepCount   int        `json:"step_count,omitempty"`
	StepID      string     `json:"step_id,omitempty"`
	StepType    StepType   `json:"step_type,omitempty"`
	Component   string     `json:"component,omitempty"`
	// Advance tells the client whether it may call advance itself or
	// must poll for an admin-driven change.
	Advance AdvanceMode `json:"advance,omitempty"`
	// RevealedTiers lists hint tiers already shown for the current step.
	RevealedTiers []int `json:"revealed_tiers,omitempty"`
	// View carries the step payload the client renders. Secrets
	// (puzzle answers, recipient details) are stripped.
	View *StepView `json:"view,omitempty"`
}

// StepView is the client-safe projection of a step's config.
type StepView struct {
	Target *LatLon `json:"target,omitempty"`
	Gates  []Gate  `json:"gates,omitempty"`
}
