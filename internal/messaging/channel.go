// Lantern - Location-Based Narrative Quest Engine
// Copyright 2026 Tessera Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessera-games/lantern

// Package messaging turns messaging steps into outbound deliveries:
// immediate sends, morning-delayed schedules, and the periodic due
// sweep that promotes scheduled rows to sent.
package messaging

import (
	"context"
	"fmt"

	"github.com/tessera-games/lantern/internal/models"
)

// Outbound is one rendered message ready for a delivery channel.
type Outbound struct {
	To      models.Contact
	Subject string
	Body    string
}

// Channel delivers an outbound message over one transport.
type Channel interface {
	// Name is the channel key referenced by step configs.
	Name() string
	// Send delivers the message or returns an error. Implementations
	// must honor context cancellation on network calls.
	Send(ctx context.Context, msg Outbound) error
}

// Registry resolves channels by name.
type Registry struct {
	channels map[string]Channel
}

// NewRegistry builds a registry from the given channels.
func NewRegistry(channels ...Channel) *Registry {
	r := &Registry{channels: make(map[string]Channel, len(channels))}
	for _, ch := range channels {
		r.channels[ch.Name()] = ch
	}
	return r
}

// Get returns the named channel.
func (r *Registry) Get(name string) (Channel, error) {
	ch, ok := r.channels[name]
	if !ok {
		return nil, fmt.Errorf("unknown delivery channel %q", name)
	}
	return ch, nil
}

// Names returns the registered channel names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.channels))
	for name := range r.channels {
		names = append(names, name)
	}
	return names
}
