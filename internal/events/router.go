// Lantern - Location-Based Narrative Quest Engine
// Copyright 2026 Tessera Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessera-games/lantern

package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/tessera-games/lantern/internal/logging"
	"github.com/tessera-games/lantern/internal/models"
)

// ActivityStore is the slice of the progress store the router writes to.
type ActivityStore interface {
	InsertActivity(ctx context.Context, entry *models.ActivityEntry) error
}

// Broadcaster pushes serialized events to connected admin clients.
type Broadcaster interface {
	Broadcast(data []byte)
}

// Router consumes the quest event topic and fans each event out to the
// activity log and the websocket hub. The activity append retries with
// backoff; the broadcast is best-effort.
type Router struct {
	router     *message.Router
	serializer *Serializer
	store      ActivityStore
	hub        Broadcaster
}

// NewRouter builds the consumer-side router over the bus's subscriber.
// hub may be nil when the live feed is disabled.
func NewRouter(bus *Bus, store ActivityStore, hub Broadcaster, logger watermill.LoggerAdapter) (*Router, error) {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}

	wmRouter, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: 30 * time.Second,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create event router: %w", err)
	}

	wmRouter.AddMiddleware(middleware.Recoverer)
	wmRouter.AddMiddleware(middleware.Retry{
		MaxRetries:      5,
		InitialInterval: time.Second,
		MaxInterval:     time.Minute,
		Multiplier:      2.0,
		Logger:          logger,
	}.Middleware)

	r := &Router{
		router:     wmRouter,
		serializer: NewSerializer(),
		store:      store,
		hub:        hub,
	}

	wmRouter.AddNoPublisherHandler("quest-activity", Topic, bus.Subscriber(), r.handle)
	return r, nil
}

// handle appends one event to the activity log and forwards it to the
// live feed. A store failure nacks the message so the retry middleware
// re-delivers; broadcast failures are invisible here because the hub
// drops to slow clients by design of its send buffers.
func (r *Router) handle(msg *message.Message) error {
	event, err := r.serializer.Unmarshal(msg.Payload)
	if err != nil {
		// Malformed payloads never become valid on retry.
		logging.Error().Err(err).Str("message_uuid", msg.UUID).Msg("Dropping undecodable event")
		return nil
	}

	ctx := msg.Context()
	entry := &models.ActivityEntry{
		Track:     event.Track,
		EventType: event.Type,
		ChapterID: event.ChapterID,
		StepID:    event.StepID,
		Detail:    event.Detail,
		CreatedAt: event.Timestamp,
	}
	if err := r.store.InsertActivity(ctx, entry); err != nil {
		return fmt.Errorf("append activity for event %s: %w", event.EventID, err)
	}

	if r.hub != nil {
		r.hub.Broadcast(msg.Payload)
	}
	return nil
}

// Run starts consuming until the context is canceled.
func (r *Router) Run(ctx context.Context) error {
	return r.router.Run(ctx)
}

// Running returns a channel closed once the router has started.
func (r *Router) Running() <-chan struct{} {
	return r.router.Running()
}

// Close stops the router.
func (r *Router) Close() error {
	return r.router.Close()
}
