package engine

import "strings"

// ContextBundle is the ephemeral, per-query merge of memory, calendar, and
// history text supplied to the completion capability. It is advisory context,
// not authoritative data: nothing here is filtered or validated beyond what
// the store's search already did.
type ContextBundle struct {
	// MemorySection is the formatted memory block, including the
	// no-memories sentinel when the search came back empty.
	MemorySection string

	// CalendarSection is the calendar text verbatim, empty when no calendar
	// intent fired.
	CalendarSection string

	// History is the most recent HistoryWindow turns in original order.
	History []Turn
}

// AssembleContext builds the bundle for one query.
func AssembleContext(memorySection, calendarSection string, session *Session) ContextBundle {
	return ContextBundle{
		MemorySection:   memorySection,
		CalendarSection: calendarSection,
		History:         session.Window(HistoryWindow),
	}
}

// SystemPrompt renders the bundle as the system instruction for generation.
func (b ContextBundle) SystemPrompt() string {
	var sections []string
	sections = append(sections,
		"You are a helpful academic assistant chatbot for students.\nYou have access to the user's memories and calendar information.")
	sections = append(sections, b.MemorySection)
	if b.CalendarSection != "" {
		sections = append(sections, b.CalendarSection)
	}
	sections = append(sections,
		"Be friendly, concise, and helpful. Use the memory context to personalize your responses.\nIf you've already provided calendar or specific information, acknowledge it briefly.")

	var parts []string
	for _, s := range sections {
		if strings.TrimSpace(s) != "" {
			parts = append(parts, strings.TrimSpace(s))
		}
	}
	return strings.Join(parts, "\n\n")
}
