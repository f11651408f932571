package enhance

import (
	"strings"

	"murmur/snapshot"
)

// cleanupTemplate is the built-in dictation mode: fix the transcript, return
// nothing else.
const cleanupTemplate = `You clean up voice-dictated text. Fix punctuation, capitalization, and obvious transcription mistakes. Remove filler words. Keep the speaker's wording and meaning. Output only the corrected text with no commentary.`

// assistantTemplate is selected when the transcript starts with the trigger
// phrase: answer the request instead of transcribing it.
const assistantTemplate = `You are a helpful assistant. The user spoke a request aloud; it was transcribed below. Answer the request directly and concisely. Output only the answer with no preamble.`

// triggerSeparators are the characters accepted between the trigger phrase and
// the rest of the transcript. Prefix match on trigger+separator,
// case-insensitive; a bare prefix without a separator does not count.
var triggerSeparators = []string{",", ".", "!", "?", ":", ";", " "}

// triggerRemainder applies the trigger rule to the raw transcript. On a match
// it returns the transcript with the trigger and separator stripped; the
// provider sees only the request itself.
func triggerRemainder(text, trigger string) (string, bool) {
	if trigger == "" {
		return text, false
	}
	trimmed := strings.TrimSpace(text)
	for _, sep := range triggerSeparators {
		prefix := trigger + sep
		if len(trimmed) >= len(prefix) && strings.EqualFold(trimmed[:len(prefix)], prefix) {
			return strings.TrimSpace(trimmed[len(prefix):]), true
		}
	}
	return text, false
}

// buildMessages assembles the system and user messages for one request. The
// context block is appended only when a toggle is on and the corresponding
// snapshot text is non-empty, so an empty section never contaminates the
// prompt.
func buildMessages(text string, snap snapshot.Snapshot, cfg Config) (system, user string) {
	if rest, ok := triggerRemainder(text, cfg.TriggerPhrase); ok {
		system = assistantTemplate
		text = rest
	} else if cfg.Template != "" {
		system = cfg.Template
	} else {
		system = cleanupTemplate
	}

	var ctxParts []string
	if cfg.UseClipboardContext && snap.Clipboard != "" {
		ctxParts = append(ctxParts, "Clipboard contents:\n"+snap.Clipboard)
	}
	if cfg.UseScreenContext && snap.Screen != "" {
		ctxParts = append(ctxParts, "Text visible on screen:\n"+snap.Screen)
	}
	if len(ctxParts) > 0 {
		system += "\n\nContext that may help interpret the transcript:\n\n" +
			strings.Join(ctxParts, "\n\n")
	}

	user = "Transcript:\n\"\"\"\n" + text + "\n\"\"\""
	return system, user
}
