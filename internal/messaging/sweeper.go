// Lantern - Location-Based Narrative Quest Engine
// Copyright 2026 Tessera Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessera-games/lantern

package messaging

import (
	"context"
	"time"

	"github.com/tessera-games/lantern/internal/logging"
)

// Sweeper periodically promotes due scheduled messages to sent. It is
// redundant with the external cron endpoint on purpose: either trigger
// alone keeps delivery moving, and running both is safe because the
// row claim admits one winner.
type Sweeper struct {
	dispatcher *Dispatcher
	interval   time.Duration
}

// NewSweeper creates a sweeper ticking at the given interval.
func NewSweeper(dispatcher *Dispatcher, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{dispatcher: dispatcher, interval: interval}
}

// Run sweeps on every tick until the context is canceled. Sweep errors
// are logged and the loop continues; the next tick retries.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logging.Info().Dur("interval", s.interval).Msg("Message sweeper started")
	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Message sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			now := time.Now().UTC()
			dispatched, err := s.dispatcher.SweepDue(ctx, now)
			if err != nil {
				logging.Error().Err(err).Msg("Sweep run failed")
				continue
			}
			if dispatched > 0 {
				logging.Info().Int("dispatched", dispatched).Msg("Sweep dispatched due messages")
			}
		}
	}
}
