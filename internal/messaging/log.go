// Lantern - Location-Based Narrative Quest Engine
// Copyright 2026 Tessera Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessera-games/lantern

package messaging

import (
	"context"

	"github.com/tessera-games/lantern/internal/logging"
)

// LogChannel writes messages to the application log instead of
// delivering them. Used on the rehearsal track and in development.
type LogChannel struct{}

// NewLogChannel creates the log channel.
func NewLogChannel() *LogChannel {
	return &LogChannel{}
}

// Name returns the channel key.
func (c *LogChannel) Name() string {
	return "log"
}

// Send logs the message and always succeeds.
func (c *LogChannel) Send(_ context.Context, msg Outbound) error {
	logging.Info().
		Str("channel", "log").
		Str("recipient", msg.To.Name).
		Str("subject", msg.Subject).
		Str("body", msg.Body).
		Msg("Message delivered to log")
	return nil
}
