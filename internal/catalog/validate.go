// Lantern - Location-Based Narrative Quest Engine
// Copyright 2026 Tessera Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessera-games/lantern

package catalog

import (
	"errors"
	"fmt"

	"github.com/tessera-games/lantern/internal/models"
)

// knownChannels lists the delivery channels messaging steps may select.
var knownChannels = map[string]bool{
	"sms":   true,
	"email": true,
	"log":   true,
}

// validate checks the deploy-time invariants of a catalog document and
// aggregates every violation so a broken deploy reports all problems at
// once instead of one per restart.
//
// Invariants:
//   - every chapter has an id and at least one step
//   - step orders are unique within a chapter
//   - step ids are unique across all chapters
//   - messaging steps carry a recipient, progress key, and known channel
//   - progress keys are unique across all chapters
//   - every recipient selector resolves on both tracks
//   - companion references name an existing chapter
func validate(doc *Document) error {
	var errs []error

	stepIDs := make(map[string]string)      // step id -> chapter id
	progressKeys := make(map[string]string) // progress key -> step id
	chapterIDs := make(map[string]bool)

	for _, ch := range doc.Chapters {
		if ch.ID == "" {
			errs = append(errs, errors.New("chapter with empty id"))
			continue
		}
		if chapterIDs[ch.ID] {
			errs = append(errs, fmt.Errorf("duplicate chapter id %q", ch.ID))
		}
		chapterIDs[ch.ID] = true

		if len(ch.Steps) == 0 {
			errs = append(errs, fmt.Errorf("chapter %q has no steps", ch.ID))
		}

		orders := make(map[int]string)
		for _, step := range ch.Steps {
			if step.ID == "" {
				errs = append(errs, fmt.Errorf("chapter %q has a step with empty id", ch.ID))
				continue
			}
			if other, dup := stepIDs[step.ID]; dup {
				errs = append(errs, fmt.Errorf("step id %q appears in chapters %q and %q", step.ID, other, ch.ID))
			}
			stepIDs[step.ID] = ch.ID

			if other, dup := orders[step.Order]; dup {
				errs = append(errs, fmt.Errorf("chapter %q: steps %q and %q share order %d", ch.ID, other, step.ID, step.Order))
			}
			orders[step.Order] = step.ID

			errs = append(errs, validateStep(doc, step, progressKeys)...)
		}
	}

	for _, ch := range doc.Chapters {
		if ch.Companion != "" && !chapterIDs[ch.Companion] {
			errs = append(errs, fmt.Errorf("chapter %q: companion references unknown chapter %q", ch.ID, ch.Companion))
		}
	}

	for _, track := range []models.Track{models.TrackTest, models.TrackLive} {
		entry, ok := doc.Tracks[track]
		if !ok || entry.Contacts == nil {
			errs = append(errs, fmt.Errorf("track %q has no contact roster", track))
			continue
		}
		if _, ok := entry.Contacts[RolePlayer]; !ok {
			errs = append(errs, fmt.Errorf("track %q roster has no %q contact", track, RolePlayer))
		}
	}

	return errors.Join(errs...)
}

// validateStep checks a single step's payload against its declared type.
func validateStep(doc *Document, step models.Step, progressKeys map[string]string) []error {
	var errs []error

	switch step.Type {
	case models.StepTypeMessaging:
		msg := step.Config.Message
		if msg == nil {
			errs = append(errs, fmt.Errorf("messaging step %q has no message config", step.ID))
			return errs
		}
		if msg.To == "" {
			errs = append(errs, fmt.Errorf("messaging step %q has no recipient selector", step.ID))
		}
		if msg.ProgressKey == "" {
			errs = append(errs, fmt.Errorf("messaging step %q has no progress key", step.ID))
		} else {
			if other, dup := progressKeys[msg.ProgressKey]; dup {
				errs = append(errs, fmt.Errorf("progress key %q shared by steps %q and %q", msg.ProgressKey, other, step.ID))
			}
			progressKeys[msg.ProgressKey] = step.ID
		}
		if !knownChannels[msg.Channel] {
			errs = append(errs, fmt.Errorf("messaging step %q uses unknown channel %q", step.ID, msg.Channel))
		}
		if msg.DelayMornings < 0 {
			errs = append(errs, fmt.Errorf("messaging step %q has negative delay", step.ID))
		}
		// Recipient selectors must resolve on both tracks; a roster gap
		// found at send time would stall a live quest.
		if msg.To != "" {
			for _, track := range []models.Track{models.TrackTest, models.TrackLive} {
				entry, ok := doc.Tracks[track]
				if !ok || entry.Contacts == nil {
					continue // reported by the roster checks
				}
				if _, ok := entry.Contacts[msg.To]; !ok {
					errs = append(errs, fmt.Errorf("messaging step %q: recipient %q not on track %q roster", step.ID, msg.To, track))
				}
			}
		}

	case models.StepTypeWebsite:
		if step.Component == "" {
			errs = append(errs, fmt.Errorf("website step %q has no component", step.ID))
		}
		if step.Config.Message != nil {
			errs = append(errs, fmt.Errorf("website step %q carries a message config", step.ID))
		}
		if prox := step.Config.Proximity; prox != nil && len(prox.Gates) == 0 {
			errs = append(errs, fmt.Errorf("proximity step %q has no gates", step.ID))
		}

	default:
		errs = append(errs, fmt.Errorf("step %q has unknown type %q", step.ID, step.Type))
	}

	return errs
}
