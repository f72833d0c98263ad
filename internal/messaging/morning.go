// Lantern - Location-Based Narrative Quest Engine
// Copyright 2026 Tessera Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessera-games/lantern

package messaging

import "time"

// MorningDue computes the due time for a delay expressed in mornings.
// A morning is the configured hour (on the hour) in the given location.
// delayMornings counts day boundaries from now: 2 mornings from a
// Tuesday evening is Thursday at the morning hour. Zero mornings means
// the next upcoming morning, so a message scheduled at 07:30 for hour 8
// goes out the same day and one scheduled at 09:00 waits for tomorrow.
func MorningDue(now time.Time, delayMornings int, hour int, loc *time.Location) time.Time {
	if delayMornings < 0 {
		delayMornings = 0
	}

	local := now.In(loc)
	due := time.Date(local.Year(), local.Month(), local.Day(), hour, 0, 0, 0, loc)
	due = due.AddDate(0, 0, delayMornings)
	if !due.After(local) {
		due = due.AddDate(0, 0, 1)
	}
	return due
}
