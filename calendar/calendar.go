// Package calendar provides a thin gateway over an external event source.
// It owns time-window selection and human-readable formatting; listing and
// authentication are delegated to an EventSource.
package calendar

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

const maxWeekResults = 50

// EventRecord is a normalized calendar event. Immutable once returned.
type EventRecord struct {
	// Summary is the event title.
	Summary string

	// Start and End bound the event, Start before End.
	Start time.Time
	End   time.Time

	// AllDay marks date-only events; Start/End then carry midnight instants.
	AllDay bool

	// Location is optional.
	Location string

	// Description is optional.
	Description string
}

// EventSource is the external listing capability (Google Calendar in
// production, a stub in tests).
type EventSource interface {
	// Authenticate establishes or refreshes credentials. Idempotent: calling
	// it while already authenticated succeeds without side effect.
	Authenticate(ctx context.Context) error

	// Events lists events in [start, end), at most max.
	Events(ctx context.Context, start, end time.Time, max int) ([]EventRecord, error)
}

// Gateway selects time windows and formats events. The clock is injectable
// so window math is testable.
type Gateway struct {
	source EventSource
	now    func() time.Time
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) GatewayOption {
	return func(g *Gateway) {
		g.now = now
	}
}

// NewGateway creates a gateway over source.
func NewGateway(source EventSource, opts ...GatewayOption) (*Gateway, error) {
	if source == nil {
		return nil, fmt.Errorf("calendar: event source is required")
	}
	g := &Gateway{
		source: source,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Authenticate reports whether the source's credentials are usable.
func (g *Gateway) Authenticate(ctx context.Context) bool {
	if err := g.source.Authenticate(ctx); err != nil {
		log.Printf("[CALENDAR] Authentication failed: %v", err)
		return false
	}
	return true
}

// EventsIn lists events in [start, end). An error means the backend call
// itself failed, which callers may surface differently from zero events.
func (g *Gateway) EventsIn(ctx context.Context, start, end time.Time, max int) ([]EventRecord, error) {
	events, err := g.source.Events(ctx, start, end, max)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	log.Printf("[CALENDAR] Retrieved %d events in [%s, %s)", len(events),
		start.Format(time.RFC3339), end.Format(time.RFC3339))
	return events, nil
}

// Today lists today's events (UTC midnight to midnight).
func (g *Gateway) Today(ctx context.Context) ([]EventRecord, error) {
	start, end := TodayWindow(g.now())
	return g.EventsIn(ctx, start, end, 10)
}

// Tomorrow lists tomorrow's events.
func (g *Gateway) Tomorrow(ctx context.Context) ([]EventRecord, error) {
	start, end := TodayWindow(g.now().AddDate(0, 0, 1))
	return g.EventsIn(ctx, start, end, 10)
}

// ThisWeek lists events from now through the next seven days.
func (g *Gateway) ThisWeek(ctx context.Context) ([]EventRecord, error) {
	start, end := WeekWindow(g.now())
	return g.EventsIn(ctx, start, end, maxWeekResults)
}

// TodayWindow returns [midnight UTC, midnight UTC + 24h) for now's date.
func TodayWindow(now time.Time) (start, end time.Time) {
	now = now.UTC()
	start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

// WeekWindow returns [now, now + 7 days) in UTC.
func WeekWindow(now time.Time) (start, end time.Time) {
	start = now.UTC()
	return start, start.AddDate(0, 0, 7)
}

// FormatEvent renders one event: title, human date, time range (or "All day"),
// location when present, description truncated at 100 characters.
func FormatEvent(ev EventRecord) string {
	var b strings.Builder

	summary := ev.Summary
	if summary == "" {
		summary = "No title"
	}
	fmt.Fprintf(&b, "%s\n", summary)
	fmt.Fprintf(&b, "   Date: %s\n", ev.Start.Format("Monday, January 02, 2006"))

	if ev.AllDay {
		b.WriteString("   Time: All day\n")
	} else {
		fmt.Fprintf(&b, "   Time: %s - %s\n", ev.Start.Format("3:04 PM"), ev.End.Format("3:04 PM"))
	}

	if ev.Location != "" {
		fmt.Fprintf(&b, "   Location: %s\n", ev.Location)
	}
	if ev.Description != "" {
		desc := ev.Description
		// Truncate on rune boundaries so multibyte text stays valid UTF-8.
		if runes := []rune(desc); len(runes) > 100 {
			desc = string(runes[:100]) + "..."
		}
		fmt.Fprintf(&b, "   Description: %s\n", desc)
	}
	return b.String()
}

// FormatEvents renders a numbered event list, or a fixed sentence when there
// are none.
func FormatEvents(events []EventRecord) string {
	if len(events) == 0 {
		return "No events found for the specified time period."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d event(s):\n\n", len(events))
	for i, ev := range events {
		fmt.Fprintf(&b, "%d. %s\n", i+1, FormatEvent(ev))
	}
	return b.String()
}
