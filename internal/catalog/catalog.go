// Lantern - Location-Based Narrative Quest Engine
// Copyright 2026 Tessera Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessera-games/lantern

// Package catalog loads and validates the chapter/step configuration.
//
// The catalog is the read-only half of the engine: chapters, their
// ordered steps, and the per-track contact rosters. It is parsed once at
// startup, validated (validation failure is fatal; the resolver and
// controller depend on the uniqueness invariants holding), and then
// served from memory for the process lifetime.
package catalog

import (
	"fmt"
	"sort"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/tessera-games/lantern/internal/models"
)

// RolePlayer is the reserved recipient selector for the track's player.
const RolePlayer = "player"

// Roster maps contact roles (player + named companions) to contacts.
type Roster map[string]models.Contact

// Document is the on-disk shape of the catalog file.
type Document struct {
	Chapters []models.Chapter            `koanf:"chapters"`
	Tracks   map[models.Track]TrackEntry `koanf:"tracks"`
}

// TrackEntry holds one track's contact roster.
type TrackEntry struct {
	Contacts Roster `koanf:"contacts"`
}

// StepRef locates a step within its chapter.
type StepRef struct {
	ChapterID string
	Step      models.Step
}

// Catalog is the validated, immutable chapter/step configuration.
type Catalog struct {
	chapters     []models.Chapter
	byID         map[string]*models.Chapter
	stepChapter  map[string]string
	progressKeys map[string]StepRef
	companions   map[string][]string
	rosters      map[models.Track]Roster
}

// Load reads the catalog file, validates it, and returns the catalog.
// Any validation violation is returned as an error; the caller treats it
// as a deploy-time gate and must not serve requests.
func Load(path string) (*Catalog, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}

	doc := &Document{}
	if err := k.Unmarshal("", doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}

	return New(doc)
}

// New validates a catalog document and builds the lookup indexes.
func New(doc *Document) (*Catalog, error) {
	if err := validate(doc); err != nil {
		return nil, err
	}

	c := &Catalog{
		chapters:     make([]models.Chapter, len(doc.Chapters)),
		byID:         make(map[string]*models.Chapter),
		stepChapter:  make(map[string]string),
		progressKeys: make(map[string]StepRef),
		companions:   make(map[string][]string),
		rosters:      make(map[models.Track]Roster),
	}
	copy(c.chapters, doc.Chapters)

	for i := range c.chapters {
		ch := &c.chapters[i]
		// Steps are held sorted ascending by order so every consumer
		// sees the same linearization.
		sort.Slice(ch.Steps, func(a, b int) bool {
			return ch.Steps[a].Order < ch.Steps[b].Order
		})
		c.byID[ch.ID] = ch

		if ch.Companion != "" {
			c.companions[ch.Companion] = append(c.companions[ch.Companion], ch.ID)
		}

		for _, step := range ch.Steps {
			c.stepChapter[step.ID] = ch.ID
			if msg := step.Config.Message; msg != nil {
				c.progressKeys[msg.ProgressKey] = StepRef{ChapterID: ch.ID, Step: step}
			}
		}
	}

	for track, entry := range doc.Tracks {
		c.rosters[track] = entry.Contacts
	}

	return c, nil
}

// Chapters returns all chapters in document order.
func (c *Catalog) Chapters() []models.Chapter {
	return c.chapters
}

// Chapter returns a chapter by id.
func (c *Catalog) Chapter(id string) (*models.Chapter, bool) {
	ch, ok := c.byID[id]
	return ch, ok
}

// OrderedSteps returns a chapter's steps sorted ascending by order.
func (c *Catalog) OrderedSteps(chapterID string) ([]models.Step, bool) {
	ch, ok := c.byID[chapterID]
	if !ok {
		return nil, false
	}
	return ch.Steps, true
}

// Step returns a step by its globally unique id, with its chapter.
func (c *Catalog) Step(stepID string) (StepRef, bool) {
	chapterID, ok := c.stepChapter[stepID]
	if !ok {
		return StepRef{}, false
	}
	ch := c.byID[chapterID]
	for _, step := range ch.Steps {
		if step.ID == stepID {
			return StepRef{ChapterID: chapterID, Step: step}, true
		}
	}
	return StepRef{}, false
}

// StepByProgressKey resolves a messaging step from its progress key.
// The due sweep uses this to find the owning chapter of a scheduled row.
func (c *Catalog) StepByProgressKey(key string) (StepRef, bool) {
	ref, ok := c.progressKeys[key]
	return ref, ok
}

// Companions returns the chapters auto-activated when chapterID
// completes.
func (c *Catalog) Companions(chapterID string) []string {
	return c.companions[chapterID]
}

// Contact resolves a recipient role on a track. The "player" role is the
// track's player contact; other roles name companions in the roster.
func (c *Catalog) Contact(track models.Track, role string) (models.Contact, bool) {
	roster, ok := c.rosters[track]
	if !ok {
		return models.Contact{}, false
	}
	contact, ok := roster[role]
	return contact, ok
}
