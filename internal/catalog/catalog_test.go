// Lantern - Location-Based Narrative Quest Engine
// Copyright 2026 Tessera Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessera-games/lantern

package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tessera-games/lantern/internal/models"
)

func validDocument() *Document {
	return &Document{
		Chapters: []models.Chapter{
			{
				ID:   "ch1",
				Name: "The Call",
				Steps: []models.Step{
					{
						ID:        "s-riddle",
						Order:     2,
						Type:      models.StepTypeWebsite,
						Component: "riddle",
						Config:    models.StepConfig{Puzzle: &models.PuzzleConfig{Answer: "lantern"}},
					},
					{
						ID:    "s-letter",
						Order: 1,
						Type:  models.StepTypeMessaging,
						Config: models.StepConfig{Message: &models.MessageConfig{
							To:          RolePlayer,
							ProgressKey: "letter-key",
							Channel:     "email",
							Body:        "It begins.",
						}},
					},
				},
			},
			{
				ID:        "ch2",
				Name:      "The Echo",
				Companion: "ch1",
				Steps: []models.Step{
					{
						ID:        "s-echo",
						Order:     1,
						Type:      models.StepTypeWebsite,
						Component: "narrative",
						Config:    models.StepConfig{Narrative: &models.NarrativeConfig{}},
					},
				},
			},
		},
		Tracks: map[models.Track]TrackEntry{
			models.TrackTest: {Contacts: Roster{
				RolePlayer: {Name: "Rehearsal Player", Email: "test@example.com"},
			}},
			models.TrackLive: {Contacts: Roster{
				RolePlayer: {Name: "Live Player", Email: "live@example.com"},
			}},
		},
	}
}

func TestNewValidDocument(t *testing.T) {
	cat, err := New(validDocument())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if len(cat.Chapters()) != 2 {
		t.Errorf("expected 2 chapters, got %d", len(cat.Chapters()))
	}
}

func TestOrderedStepsSortsByOrder(t *testing.T) {
	cat, err := New(validDocument())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	steps, ok := cat.OrderedSteps("ch1")
	if !ok {
		t.Fatal("expected chapter ch1")
	}
	// The document lists order 2 before order 1; the catalog linearizes.
	if steps[0].ID != "s-letter" || steps[1].ID != "s-riddle" {
		t.Errorf("steps not sorted by order: %s, %s", steps[0].ID, steps[1].ID)
	}
}

func TestStepLookup(t *testing.T) {
	cat, err := New(validDocument())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ref, ok := cat.Step("s-riddle")
	if !ok || ref.ChapterID != "ch1" {
		t.Errorf("expected s-riddle in ch1, got %+v ok=%v", ref, ok)
	}
	if _, ok := cat.Step("missing"); ok {
		t.Error("lookup of unknown step must fail")
	}
}

func TestStepByProgressKey(t *testing.T) {
	cat, err := New(validDocument())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ref, ok := cat.StepByProgressKey("letter-key")
	if !ok || ref.Step.ID != "s-letter" {
		t.Errorf("expected s-letter for letter-key, got %+v ok=%v", ref, ok)
	}
}

func TestCompanions(t *testing.T) {
	cat, err := New(validDocument())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	companions := cat.Companions("ch1")
	if len(companions) != 1 || companions[0] != "ch2" {
		t.Errorf("expected [ch2], got %v", companions)
	}
	if got := cat.Companions("ch2"); len(got) != 0 {
		t.Errorf("ch2 should have no companions, got %v", got)
	}
}

func TestContactResolution(t *testing.T) {
	cat, err := New(validDocument())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	contact, ok := cat.Contact(models.TrackTest, RolePlayer)
	if !ok || contact.Name != "Rehearsal Player" {
		t.Errorf("unexpected contact %+v ok=%v", contact, ok)
	}
	if _, ok := cat.Contact(models.TrackLive, "stranger"); ok {
		t.Error("unknown role must not resolve")
	}
}

func TestValidationAggregatesViolations(t *testing.T) {
	doc := validDocument()
	// Break several invariants at once.
	doc.Chapters[0].Steps[0].ID = "dup"
	doc.Chapters[1].Steps[0].ID = "dup"
	doc.Chapters[0].Steps[1].Config.Message.Channel = "carrier-pigeon"
	doc.Chapters[1].Companion = "nowhere"

	_, err := New(doc)
	if err == nil {
		t.Fatal("expected validation failure")
	}

	for _, want := range []string{"dup", "carrier-pigeon", "nowhere"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("validation error should mention %q, got: %v", want, err)
		}
	}
}

func TestValidationRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Document)
		want   string
	}{
		{
			name:   "chapter without steps",
			mutate: func(d *Document) { d.Chapters[1].Steps = nil },
			want:   "has no steps",
		},
		{
			name:   "duplicate step orders",
			mutate: func(d *Document) { d.Chapters[0].Steps[0].Order = 1 },
			want:   "share order",
		},
		{
			name: "messaging step without progress key",
			mutate: func(d *Document) {
				d.Chapters[0].Steps[1].Config.Message.ProgressKey = ""
			},
			want: "no progress key",
		},
		{
			name: "recipient missing from one roster",
			mutate: func(d *Document) {
				d.Chapters[0].Steps[1].Config.Message.To = "companion"
				d.Tracks[models.TrackTest].Contacts["companion"] = models.Contact{Name: "Only Test"}
			},
			want: "not on track",
		},
		{
			name: "missing player contact",
			mutate: func(d *Document) {
				delete(d.Tracks[models.TrackLive].Contacts, RolePlayer)
			},
			want: "no \"player\" contact",
		},
		{
			name: "negative morning delay",
			mutate: func(d *Document) {
				d.Chapters[0].Steps[1].Config.Message.DelayMornings = -1
			},
			want: "negative delay",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := validDocument()
			tt.mutate(doc)
			_, err := New(doc)
			if err == nil {
				t.Fatal("expected validation failure")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got: %v", tt.want, err)
			}
		})
	}
}

func TestLoadFromYAML(t *testing.T) {
	content := `
chapters:
  - id: ch1
    name: The Call
    steps:
      - id: s1
        order: 1
        type: website
        component: riddle
        config:
          puzzle:
            answer: lantern
tracks:
  test:
    contacts:
      player:
        name: Rehearsal Player
        email: test@example.com
  live:
    contacts:
      player:
        name: Live Player
        email: live@example.com
`
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write catalog file: %v", err)
	}

	cat, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if _, ok := cat.Chapter("ch1"); !ok {
		t.Error("expected chapter ch1 after load")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing catalog file")
	}
}
