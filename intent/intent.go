// Package intent classifies a message into the side effects it requires.
// The classifier is a fixed keyword heuristic on purpose: it is fast,
// deterministic, and trivially testable. It is not a language model.
package intent

import "strings"

// Intent holds independent gates, not a mutually exclusive dispatch. A single
// message can both store a memory and trigger a calendar lookup.
type Intent struct {
	// WantsCalendar is set when the message references schedules or events.
	WantsCalendar bool

	// WantsMemoryWrite is set when the message asks to be remembered.
	WantsMemoryWrite bool

	// WantsConversation is always true: a conversational reply is always
	// attempted.
	WantsConversation bool
}

var calendarKeywords = []string{
	"meeting", "schedule", "calendar", "event", "appointment",
	"today", "tomorrow", "this week", "next week", "what do i have",
}

var memoryWriteKeywords = []string{
	"remember", "i prefer", "my preference", "note that",
	"keep in mind", "don't forget",
}

// Classify maps a raw message to its intent via case-insensitive substring
// matching against the fixed keyword sets.
func Classify(message string) Intent {
	lower := strings.ToLower(message)
	return Intent{
		WantsCalendar:     containsAny(lower, calendarKeywords),
		WantsMemoryWrite:  containsAny(lower, memoryWriteKeywords),
		WantsConversation: true,
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
