package enhance

import (
	"strings"
	"testing"

	"murmur/snapshot"
)

func TestTriggerRemainder(t *testing.T) {
	tests := []struct {
		text     string
		trigger  string
		want     bool
		wantRest string
	}{
		{"hey, what's the weather", "hey", true, "what's the weather"},
		{"Hey what's the weather", "hey", true, "what's the weather"},
		{"HEY: remind me later", "hey", true, "remind me later"},
		{"hey", "hey", false, "hey"},             // bare trigger, no separator
		{"heyday of radio", "hey", false, "heyday of radio"}, // prefix without separator
		{"hey there, meeting notes", "hey,", false, "hey there, meeting notes"},
		{"okay so hey, notes", "hey", false, "okay so hey, notes"},
		{"  hey, leading spaces", "hey", true, "leading spaces"},
		{"jarvis, open the logs", "jarvis", true, "open the logs"},
		{"anything", "", false, "anything"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			rest, got := triggerRemainder(tt.text, tt.trigger)
			if got != tt.want {
				t.Errorf("triggerRemainder(%q, %q) matched = %v, want %v", tt.text, tt.trigger, got, tt.want)
			}
			if rest != tt.wantRest {
				t.Errorf("triggerRemainder(%q, %q) rest = %q, want %q", tt.text, tt.trigger, rest, tt.wantRest)
			}
		})
	}
}

func TestBuildMessagesTemplateSelection(t *testing.T) {
	cfg := Config{TriggerPhrase: "hey"}

	system, user := buildMessages("hey, what time is it", snapshot.Snapshot{}, cfg)
	if system != assistantTemplate {
		t.Errorf("trigger transcript should select assistant template, got %q", system)
	}
	// The trigger and separator are stripped; the provider sees the request only.
	if !strings.Contains(user, "what time is it") {
		t.Errorf("user message should wrap the request, got %q", user)
	}
	if strings.Contains(user, "hey") {
		t.Errorf("trigger phrase must not reach the provider, got %q", user)
	}

	// Without a trigger match the transcript passes through unmodified.
	_, user = buildMessages("hey notes for monday", snapshot.Snapshot{}, Config{})
	if !strings.Contains(user, "hey notes for monday") {
		t.Errorf("plain transcript should pass through unmodified, got %q", user)
	}

	system, _ = buildMessages("meeting notes for monday", snapshot.Snapshot{}, cfg)
	if system != cleanupTemplate {
		t.Errorf("plain transcript should select cleanup template, got %q", system)
	}

	cfg.Template = "Translate everything to pirate speak."
	system, _ = buildMessages("meeting notes", snapshot.Snapshot{}, cfg)
	if system != cfg.Template {
		t.Errorf("configured mode template should win, got %q", system)
	}

	// Trigger still overrides a custom mode template.
	system, _ = buildMessages("hey, translate this", snapshot.Snapshot{}, cfg)
	if system != assistantTemplate {
		t.Errorf("trigger should override mode template, got %q", system)
	}
}

func TestBuildMessagesContextBlocks(t *testing.T) {
	cfg := Config{TriggerPhrase: "hey", UseClipboardContext: true, UseScreenContext: true}
	snap := snapshot.Snapshot{Clipboard: "copied text", Screen: "window text"}

	system, _ := buildMessages("notes", snap, cfg)
	if !strings.Contains(system, "copied text") || !strings.Contains(system, "window text") {
		t.Errorf("context blocks missing from system message: %q", system)
	}

	// Toggles off: context never injected even when snapshots are non-empty.
	cfg.UseClipboardContext = false
	cfg.UseScreenContext = false
	system, _ = buildMessages("notes", snap, cfg)
	if strings.Contains(system, "copied text") || strings.Contains(system, "window text") {
		t.Errorf("context injected with toggles off: %q", system)
	}

	// Toggles on but snapshots empty: no context section at all.
	cfg.UseClipboardContext = true
	cfg.UseScreenContext = true
	system, _ = buildMessages("notes", snapshot.Snapshot{}, cfg)
	if strings.Contains(system, "Context that may help") {
		t.Errorf("empty snapshots must not add a context section: %q", system)
	}

	// One empty, one set: only the non-empty block appears.
	system, _ = buildMessages("notes", snapshot.Snapshot{Screen: "window text"}, cfg)
	if strings.Contains(system, "Clipboard contents") {
		t.Errorf("empty clipboard block injected: %q", system)
	}
	if !strings.Contains(system, "window text") {
		t.Errorf("screen block missing: %q", system)
	}
}
