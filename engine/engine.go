// Package engine drives a user query through classification, memory and
// calendar side effects, context assembly, and generation. It depends only
// on the memory.Store contract and small capability interfaces, so backends
// are swappable at construction.
package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/campushq/studymate/calendar"
	"github.com/campushq/studymate/intent"
	"github.com/campushq/studymate/memory"
)

// User-visible strings for degraded paths. Every external-capability failure
// becomes one of these; nothing escapes ProcessQuery as an error.
const (
	memorySavedReply   = "I've noted that information and will remember it for future conversations."
	memoryFailedReply  = "There was an issue saving that information."
	calendarAuthReply  = "Unable to access calendar. Please check authentication."
	calendarFetchReply = "I couldn't reach your calendar just now. Please try again in a moment."
)

// Completer is the text-generation capability: an ordered sequence of turns
// plus one system instruction in, one text out. The 10-turn history cap
// bounds request size; the completer itself tolerates any context length.
type Completer interface {
	Complete(ctx context.Context, system string, history []Turn, userMessage string) (string, error)
}

// Engine orchestrates one user's queries. One query is processed
// start-to-finish before the next is accepted; the external calls
// (memory backend, calendar, generation) run in a fixed sequence.
type Engine struct {
	store     memory.Store
	completer Completer
	calendar  *calendar.Gateway
}

// Option configures the engine.
type Option func(*Engine)

// WithCalendar enables calendar lookups.
func WithCalendar(g *calendar.Gateway) Option {
	return func(e *Engine) {
		e.calendar = g
	}
}

// New creates an engine over the given memory store and completion
// capability. The store variant is selected here, once; nothing downstream
// special-cases the backend.
func New(store memory.Store, completer Completer, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("engine: memory store is required")
	}
	if completer == nil {
		return nil, fmt.Errorf("engine: completer is required")
	}

	e := &Engine{
		store:     store,
		completer: completer,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// ProcessQuery runs one message through the full pipeline and returns the
// reply. Calendar fetch and memory write are independent side effects;
// memory retrieval always runs so generation has context either way. The
// user and assistant turns are appended to the session together, after
// generation, so the conversation is never left without a reply.
func (e *Engine) ProcessQuery(ctx context.Context, session *Session, owner, message string) string {
	in := intent.Classify(message)

	var sections []string
	var calendarText string

	if in.WantsCalendar && e.calendar != nil {
		calendarText = e.calendarSection(ctx, message)
		sections = append(sections, calendarText)
	}

	if in.WantsMemoryWrite {
		sections = append(sections, e.storeMemory(ctx, owner, message))
	}

	relevant := e.store.Search(ctx, owner, message)
	memoryContext := memory.FormatForContext(relevant)

	bundle := AssembleContext(memoryContext, calendarText, session)

	reply, err := e.completer.Complete(ctx, bundle.SystemPrompt(), bundle.History, message)
	if err != nil {
		log.Printf("[ENGINE] Generation failed: %v", err)
		reply = fmt.Sprintf("I apologize, but I encountered an error generating a response: %v", err)
	}
	sections = append(sections, reply)

	response := strings.TrimSpace(strings.Join(sections, "\n\n"))

	session.AddUser(message)
	session.AddAssistant(response)

	return response
}

// calendarSection fetches and formats events for the window the message asks
// about. A fetch failure renders its own inline string: an unreachable
// calendar reads differently from an empty one.
func (e *Engine) calendarSection(ctx context.Context, message string) string {
	if !e.calendar.Authenticate(ctx) {
		return calendarAuthReply
	}

	lower := strings.ToLower(message)

	var (
		events []calendar.EventRecord
		err    error
		period string
	)
	switch {
	case strings.Contains(lower, "today"):
		events, err = e.calendar.Today(ctx)
		period = "today"
	case strings.Contains(lower, "tomorrow"):
		events, err = e.calendar.Tomorrow(ctx)
		period = "tomorrow"
	case strings.Contains(lower, "week"):
		events, err = e.calendar.ThisWeek(ctx)
		period = "this week"
	default:
		events, err = e.calendar.ThisWeek(ctx)
		period = "the next 7 days"
	}

	if err != nil {
		log.Printf("[ENGINE] Calendar fetch failed: %v", err)
		return calendarFetchReply
	}

	return fmt.Sprintf("Here are your events for %s:\n\n%s", period, calendar.FormatEvents(events))
}

// storeMemory persists the message as a memory and returns the user-visible
// acknowledgement. Record creation times are owned by the store and its
// clock; the metadata stamp is an annotation, not the authoritative time.
func (e *Engine) storeMemory(ctx context.Context, owner, message string) string {
	_, err := e.store.Add(ctx, owner, message, map[string]string{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		log.Printf("[ENGINE] Memory write failed: %v", err)
		return memoryFailedReply
	}
	return memorySavedReply
}

// GetAllMemories returns every stored memory for owner.
func (e *Engine) GetAllMemories(ctx context.Context, owner string) []memory.Record {
	return e.store.GetAll(ctx, owner)
}

// ClearMemories removes every memory for owner. Idempotent.
func (e *Engine) ClearMemories(ctx context.Context, owner string) error {
	return e.store.DeleteAll(ctx, owner)
}
