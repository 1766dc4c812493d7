package engine_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/campushq/studymate/calendar"
	"github.com/campushq/studymate/engine"
	"github.com/campushq/studymate/memory"
)

// fakeCompleter records what it was asked and returns a canned reply.
type fakeCompleter struct {
	reply string
	err   error

	lastSystem  string
	lastHistory []engine.Turn
	lastMessage string
	calls       int
}

func (f *fakeCompleter) Complete(ctx context.Context, system string, history []engine.Turn, userMessage string) (string, error) {
	f.calls++
	f.lastSystem = system
	f.lastHistory = history
	f.lastMessage = userMessage
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

// stubEvents is a canned calendar.EventSource.
type stubEvents struct {
	events []calendar.EventRecord
	err    error
}

func (s *stubEvents) Authenticate(ctx context.Context) error {
	return nil
}

func (s *stubEvents) Events(ctx context.Context, start, end time.Time, max int) ([]calendar.EventRecord, error) {
	return s.events, s.err
}

func newTestEngine(t *testing.T, completer engine.Completer, opts ...engine.Option) (*engine.Engine, memory.Store) {
	t.Helper()
	store, err := memory.NewExactStore(filepath.Join(t.TempDir(), "memories.json"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	eng, err := engine.New(store, completer, opts...)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return eng, store
}

func TestProcessQuery_ConversationalReply(t *testing.T) {
	completer := &fakeCompleter{reply: "Hello! How can I help?"}
	eng, _ := newTestEngine(t, completer)
	session := engine.NewSession()

	got := eng.ProcessQuery(context.Background(), session, "s1", "How are you?")

	if got != "Hello! How can I help?" {
		t.Errorf("Reply = %q", got)
	}
	if completer.calls != 1 {
		t.Errorf("Completer called %d times, want 1", completer.calls)
	}
	if completer.lastMessage != "How are you?" {
		t.Errorf("Completer received message %q", completer.lastMessage)
	}

	// Exactly one user turn and one assistant turn, in that order.
	turns := session.Turns()
	if len(turns) != 2 {
		t.Fatalf("Session has %d turns, want 2", len(turns))
	}
	if turns[0].Role != engine.RoleUser || turns[0].Content != "How are you?" {
		t.Errorf("First turn = %+v", turns[0])
	}
	if turns[1].Role != engine.RoleAssistant || turns[1].Content != got {
		t.Errorf("Second turn = %+v", turns[1])
	}
}

func TestProcessQuery_NoMemoriesSentinelInSystemPrompt(t *testing.T) {
	completer := &fakeCompleter{reply: "ok"}
	eng, _ := newTestEngine(t, completer)

	eng.ProcessQuery(context.Background(), engine.NewSession(), "s1", "hi")

	if !strings.Contains(completer.lastSystem, memory.NoMemoriesFound) {
		t.Errorf("System prompt should carry the no-memories sentinel:\n%s", completer.lastSystem)
	}
}

func TestProcessQuery_StoresMemoryAndRetrievesIt(t *testing.T) {
	completer := &fakeCompleter{reply: "Noted!"}
	eng, store := newTestEngine(t, completer)
	ctx := context.Background()

	reply := eng.ProcessQuery(ctx, engine.NewSession(), "s1", "Remember that I prefer morning study sessions")

	if !strings.Contains(reply, "I've noted that information") {
		t.Errorf("Reply missing the memory acknowledgement: %q", reply)
	}

	all := store.GetAll(ctx, "s1")
	if len(all) != 1 {
		t.Fatalf("Store holds %d records, want 1", len(all))
	}
	if all[0].Text != "Remember that I prefer morning study sessions" {
		t.Errorf("Stored text = %q", all[0].Text)
	}

	// The stored memory feeds the next query's context.
	eng.ProcessQuery(ctx, engine.NewSession(), "s1", "morning study")
	if !strings.Contains(completer.lastSystem, "I prefer morning study sessions") {
		t.Errorf("System prompt missing the retrieved memory:\n%s", completer.lastSystem)
	}
}

func TestProcessQuery_CalendarSection(t *testing.T) {
	source := &stubEvents{events: []calendar.EventRecord{{
		Summary: "Math 202 lecture",
		Start:   time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC),
		End:     time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC),
	}}}
	gateway, err := calendar.NewGateway(source)
	if err != nil {
		t.Fatalf("NewGateway failed: %v", err)
	}

	completer := &fakeCompleter{reply: "Busy morning!"}
	eng, _ := newTestEngine(t, completer, engine.WithCalendar(gateway))

	reply := eng.ProcessQuery(context.Background(), engine.NewSession(), "s1", "What do I have today?")

	if !strings.Contains(reply, "Here are your events for today:") {
		t.Errorf("Reply missing the calendar header: %q", reply)
	}
	if !strings.Contains(reply, "Math 202 lecture") {
		t.Errorf("Reply missing the event: %q", reply)
	}
	if !strings.Contains(reply, "Busy morning!") {
		t.Errorf("Reply missing the generated text: %q", reply)
	}
	// The calendar text also reaches the completion capability verbatim.
	if !strings.Contains(completer.lastSystem, "Math 202 lecture") {
		t.Errorf("System prompt missing the calendar section:\n%s", completer.lastSystem)
	}
}

func TestProcessQuery_CalendarTomorrow(t *testing.T) {
	gateway, err := calendar.NewGateway(&stubEvents{})
	if err != nil {
		t.Fatalf("NewGateway failed: %v", err)
	}
	eng, _ := newTestEngine(t, &fakeCompleter{reply: "ok"}, engine.WithCalendar(gateway))

	reply := eng.ProcessQuery(context.Background(), engine.NewSession(), "s1", "Am I free tomorrow?")

	if !strings.Contains(reply, "Here are your events for tomorrow:") {
		t.Errorf("Reply missing the tomorrow header: %q", reply)
	}
}

func TestProcessQuery_CalendarFailureDistinctFromEmpty(t *testing.T) {
	failing, err := calendar.NewGateway(&stubEvents{err: errors.New("network down")})
	if err != nil {
		t.Fatalf("NewGateway failed: %v", err)
	}
	empty, err := calendar.NewGateway(&stubEvents{})
	if err != nil {
		t.Fatalf("NewGateway failed: %v", err)
	}

	engFail, _ := newTestEngine(t, &fakeCompleter{reply: "ok"}, engine.WithCalendar(failing))
	engEmpty, _ := newTestEngine(t, &fakeCompleter{reply: "ok"}, engine.WithCalendar(empty))

	failReply := engFail.ProcessQuery(context.Background(), engine.NewSession(), "s1", "meetings today?")
	emptyReply := engEmpty.ProcessQuery(context.Background(), engine.NewSession(), "s1", "meetings today?")

	if !strings.Contains(emptyReply, "No events found") {
		t.Errorf("Empty calendar reply = %q", emptyReply)
	}
	if strings.Contains(failReply, "No events found") {
		t.Error("A fetch failure must not read like an empty calendar")
	}
	if !strings.Contains(failReply, "couldn't reach your calendar") {
		t.Errorf("Fetch failure reply = %q", failReply)
	}
}

func TestProcessQuery_MixedIntent(t *testing.T) {
	gateway, err := calendar.NewGateway(&stubEvents{})
	if err != nil {
		t.Fatalf("NewGateway failed: %v", err)
	}
	completer := &fakeCompleter{reply: "done"}
	eng, store := newTestEngine(t, completer, engine.WithCalendar(gateway))
	ctx := context.Background()

	reply := eng.ProcessQuery(ctx, engine.NewSession(), "s1",
		"Remember that I prefer mornings, what's my schedule today?")

	if !strings.Contains(reply, "Here are your events for today:") {
		t.Errorf("Mixed intent reply missing calendar section: %q", reply)
	}
	if !strings.Contains(reply, "I've noted that information") {
		t.Errorf("Mixed intent reply missing memory acknowledgement: %q", reply)
	}
	if len(store.GetAll(ctx, "s1")) != 1 {
		t.Error("Mixed intent message should have stored a memory")
	}
}

func TestProcessQuery_GenerationFailureAppendsApology(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("rate limited")}
	eng, _ := newTestEngine(t, completer)
	session := engine.NewSession()

	reply := eng.ProcessQuery(context.Background(), session, "s1", "hello")

	if reply == "" {
		t.Fatal("Reply must be non-empty on generation failure")
	}
	if !strings.Contains(reply, "I apologize") {
		t.Errorf("Reply missing the apology marker: %q", reply)
	}

	turns := session.Turns()
	if len(turns) != 2 {
		t.Fatalf("Session has %d turns, want 2", len(turns))
	}
	if turns[1].Role != engine.RoleAssistant || turns[1].Content != reply {
		t.Errorf("Apology not appended as the assistant turn: %+v", turns[1])
	}
}

func TestProcessQuery_HistoryWindow(t *testing.T) {
	completer := &fakeCompleter{reply: "ok"}
	eng, _ := newTestEngine(t, completer)
	session := engine.NewSession()

	for i := 0; i < 8; i++ {
		session.AddUser("question")
		session.AddAssistant("answer")
	}
	before := session.Turns()

	eng.ProcessQuery(context.Background(), session, "s1", "one more")

	if len(completer.lastHistory) != engine.HistoryWindow {
		t.Fatalf("Completer received %d turns, want %d", len(completer.lastHistory), engine.HistoryWindow)
	}
	recent := before[len(before)-engine.HistoryWindow:]
	for i := range recent {
		if completer.lastHistory[i] != recent[i] {
			t.Errorf("History[%d] = %+v, want %+v", i, completer.lastHistory[i], recent[i])
		}
	}
}

func TestProcessQuery_OwnerIsolation(t *testing.T) {
	completer := &fakeCompleter{reply: "ok"}
	eng, store := newTestEngine(t, completer)
	ctx := context.Background()

	eng.ProcessQuery(ctx, engine.NewSession(), "s1", "Remember that I prefer mornings")

	if got := store.GetAll(ctx, "s2"); len(got) != 0 {
		t.Errorf("s2 sees %d of s1's records", len(got))
	}
}

func TestClearMemories(t *testing.T) {
	eng, store := newTestEngine(t, &fakeCompleter{reply: "ok"})
	ctx := context.Background()

	eng.ProcessQuery(ctx, engine.NewSession(), "s1", "Remember that I prefer mornings")
	if err := eng.ClearMemories(ctx, "s1"); err != nil {
		t.Fatalf("ClearMemories failed: %v", err)
	}
	if got := store.GetAll(ctx, "s1"); len(got) != 0 {
		t.Errorf("Store holds %d records after ClearMemories, want 0", len(got))
	}

	// Idempotent.
	if err := eng.ClearMemories(ctx, "s1"); err != nil {
		t.Errorf("Second ClearMemories returned %v, want nil", err)
	}
}
