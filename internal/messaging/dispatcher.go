// Lantern - Location-Based Narrative Quest Engine
// Copyright 2026 Tessera Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessera-games/lantern

package messaging

import (
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tessera-games/lantern/internal/catalog"
	"github.com/tessera-games/lantern/internal/config"
	"github.com/tessera-games/lantern/internal/events"
	"github.com/tessera-games/lantern/internal/logging"
	"github.com/tessera-games/lantern/internal/metrics"
	"github.com/tessera-games/lantern/internal/models"
)

// sweepBatchSize bounds how many due rows one sweep run processes.
const sweepBatchSize = 100

// Store is the message slice of the progress store.
type Store interface {
	GetMessageProgress(ctx context.Context, track models.Track, progressKey string) (*models.MessageProgress, error)
	ScheduleMessage(ctx context.Context, track models.Track, progressKey string, dueAt time.Time) error
	ClaimScheduledMessage(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	MarkMessageSent(ctx context.Context, track models.Track, progressKey string, at time.Time) error
	MarkMessageFailed(ctx context.Context, track models.Track, progressKey string, cause string) error
	MarkMessageDelivered(ctx context.Context, track models.Track, progressKey string) (bool, error)
	DueScheduledMessages(ctx context.Context, now time.Time, limit int) ([]*models.MessageProgress, error)
}

// Publisher emits domain events.
type Publisher interface {
	Publish(ctx context.Context, event *events.QuestEvent) error
}

// Dispatcher resolves recipients, renders bodies, and drives the
// message status machine. Each delivery channel sits behind its own
// circuit breaker so a dead SMS provider does not darken email.
type Dispatcher struct {
	cfg      *config.MessagingConfig
	catalog  *catalog.Catalog
	store    Store
	registry *Registry
	bus      Publisher
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

// NewDispatcher creates a dispatcher over the given channels.
func NewDispatcher(cfg *config.MessagingConfig, cat *catalog.Catalog, store Store, registry *Registry, bus Publisher) *Dispatcher {
	breakers := make(map[string]*gobreaker.CircuitBreaker[any])
	for _, name := range registry.Names() {
		breakers[name] = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
			Name:        "channel-" + name,
			MaxRequests: 2,
			Timeout:     30 * time.Second,
		})
	}
	return &Dispatcher{
		cfg:      cfg,
		catalog:  cat,
		store:    store,
		registry: registry,
		bus:      bus,
		breakers: breakers,
	}
}

// templateData is what message templates can reference.
type templateData struct {
	Contact   models.Contact
	Track     models.Track
	ChapterID string
	StepID    string
}

// SendStep dispatches a messaging step now. On success the message row
// transitions to sent; on failure it is recorded failed and the error
// returns to the caller, who decides whether that stalls anything
// (the cascade does not stall).
func (d *Dispatcher) SendStep(ctx context.Context, track models.Track, chapterID string, step models.Step) error {
	mc := step.Config.Message
	if mc == nil {
		return fmt.Errorf("step %s is not a messaging step", step.ID)
	}

	// Delivered is terminal. Resending would hand the player a
	// duplicate of something they already confirmed receiving; a
	// sent or failed row stays eligible for admin resend.
	if mp, err := d.store.GetMessageProgress(ctx, track, mc.ProgressKey); err == nil && mp.Status == models.MessageDelivered {
		return fmt.Errorf("message %s was already delivered", mc.ProgressKey)
	}

	err := d.deliver(ctx, track, chapterID, step)
	if err != nil {
		if storeErr := d.store.MarkMessageFailed(ctx, track, mc.ProgressKey, err.Error()); storeErr != nil {
			logging.Error().Err(storeErr).Str("progress_key", mc.ProgressKey).Msg("Failed to record message failure")
		}
		d.publish(ctx, events.TypeMessageFailed, track, chapterID, step.ID, err.Error())
		return err
	}

	if err := d.store.MarkMessageSent(ctx, track, mc.ProgressKey, time.Now().UTC()); err != nil {
		return fmt.Errorf("record sent message %s: %w", mc.ProgressKey, err)
	}
	d.publish(ctx, events.TypeMessageSent, track, chapterID, step.ID, "channel="+mc.Channel)
	return nil
}

// deliver resolves, renders, and sends without touching the store.
func (d *Dispatcher) deliver(ctx context.Context, track models.Track, chapterID string, step models.Step) error {
	mc := step.Config.Message

	contact, ok := d.catalog.Contact(track, mc.To)
	if !ok {
		return fmt.Errorf("no contact for role %q on track %s", mc.To, track)
	}

	data := templateData{
		Contact:   contact,
		Track:     track,
		ChapterID: chapterID,
		StepID:    step.ID,
	}
	body, err := renderTemplate("body", mc.Body, data)
	if err != nil {
		return err
	}
	subject, err := renderTemplate("subject", mc.Subject, data)
	if err != nil {
		return err
	}

	channel, err := d.registry.Get(mc.Channel)
	if err != nil {
		return err
	}

	out := Outbound{To: contact, Subject: subject, Body: body}
	breaker := d.breakers[mc.Channel]
	if breaker != nil {
		_, err = breaker.Execute(func() (any, error) {
			return nil, channel.Send(ctx, out)
		})
	} else {
		err = channel.Send(ctx, out)
	}
	metrics.RecordMessageSent(mc.Channel, err)
	if err != nil {
		return fmt.Errorf("send via %s: %w", mc.Channel, err)
	}
	return nil
}

// ScheduleStep records a message as due at the Nth upcoming morning.
func (d *Dispatcher) ScheduleStep(ctx context.Context, track models.Track, chapterID string, step models.Step, delayMornings int) error {
	mc := step.Config.Message
	if mc == nil {
		return fmt.Errorf("step %s is not a messaging step", step.ID)
	}

	due := MorningDue(time.Now().UTC(), delayMornings, d.cfg.MorningHour, d.cfg.Location())
	if err := d.store.ScheduleMessage(ctx, track, mc.ProgressKey, due); err != nil {
		return fmt.Errorf("schedule message %s: %w", mc.ProgressKey, err)
	}
	metrics.RecordMessageScheduled()
	d.publish(ctx, events.TypeMessageScheduled, track, chapterID, step.ID,
		fmt.Sprintf("due=%s mornings=%d", due.UTC().Format(time.RFC3339), delayMornings))
	return nil
}

// SweepDue dispatches every scheduled message whose due time has
// passed. Each row is claimed atomically before sending so overlapping
// sweep runs never double-send; rows are processed independently and
// one failure does not block the rest. Returns how many messages were
// dispatched successfully.
func (d *Dispatcher) SweepDue(ctx context.Context, now time.Time) (int, error) {
	started := time.Now()

	due, err := d.store.DueScheduledMessages(ctx, now, sweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list due messages: %w", err)
	}

	dispatched := 0
	for _, mp := range due {
		if err := ctx.Err(); err != nil {
			break
		}
		if d.sweepOne(ctx, mp, now) {
			dispatched++
		}
	}

	metrics.RecordSweep(time.Since(started), dispatched)
	return dispatched, nil
}

// sweepOne claims and sends a single due row. Reports success.
func (d *Dispatcher) sweepOne(ctx context.Context, mp *models.MessageProgress, now time.Time) bool {
	claimed, err := d.store.ClaimScheduledMessage(ctx, mp.ID, now)
	if err != nil {
		logging.Error().Err(err).Str("progress_key", mp.ProgressKey).Msg("Failed to claim scheduled message")
		return false
	}
	if !claimed {
		// Another sweep got there first.
		return false
	}

	ref, ok := d.catalog.StepByProgressKey(mp.ProgressKey)
	if !ok {
		// The catalog changed underneath a scheduled row.
		cause := "progress key no longer in catalog"
		if err := d.store.MarkMessageFailed(ctx, mp.Track, mp.ProgressKey, cause); err != nil {
			logging.Error().Err(err).Str("progress_key", mp.ProgressKey).Msg("Failed to record orphaned message")
		}
		d.publish(ctx, events.TypeMessageFailed, mp.Track, "", "", cause)
		return false
	}

	if err := d.deliver(ctx, mp.Track, ref.ChapterID, ref.Step); err != nil {
		logging.Warn().Err(err).
			Str("track", string(mp.Track)).
			Str("progress_key", mp.ProgressKey).
			Msg("Sweep dispatch failed")
		if storeErr := d.store.MarkMessageFailed(ctx, mp.Track, mp.ProgressKey, err.Error()); storeErr != nil {
			logging.Error().Err(storeErr).Str("progress_key", mp.ProgressKey).Msg("Failed to record message failure")
		}
		d.publish(ctx, events.TypeMessageFailed, mp.Track, ref.ChapterID, ref.Step.ID, err.Error())
		return false
	}

	d.publish(ctx, events.TypeMessageSent, mp.Track, ref.ChapterID, ref.Step.ID, "via=sweep")
	return true
}

// MarkDelivered confirms receipt of a sent message. Returns false when
// the row is not in sent status (precondition mismatch).
func (d *Dispatcher) MarkDelivered(ctx context.Context, track models.Track, progressKey string) (bool, error) {
	ok, err := d.store.MarkMessageDelivered(ctx, track, progressKey)
	if err != nil || !ok {
		return ok, err
	}

	var chapterID, stepID string
	if ref, found := d.catalog.StepByProgressKey(progressKey); found {
		chapterID, stepID = ref.ChapterID, ref.Step.ID
	}
	d.publish(ctx, events.TypeMessageDelivered, track, chapterID, stepID, "key="+progressKey)
	return true, nil
}

func (d *Dispatcher) publish(ctx context.Context, eventType string, track models.Track, chapterID, stepID, detail string) {
	if d.bus == nil {
		return
	}
	event := events.New(eventType, track)
	event.ChapterID = chapterID
	event.StepID = stepID
	event.Detail = detail
	if err := d.bus.Publish(ctx, event); err != nil {
		logging.Warn().Err(err).Str("event_type", eventType).Msg("Failed to publish message event")
	}
}

func renderTemplate(name, text string, data templateData) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}
	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse %s template: %w", name, err)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s template: %w", name, err)
	}
	return b.String(), nil
}
