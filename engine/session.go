package engine

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// HistoryWindow caps how many turns (not exchanges) reach the completion
// capability. Older turns are dropped silently, never summarized.
const HistoryWindow = 10

// Turn is one conversation turn.
type Turn struct {
	Role    string
	Content string
}

// Session holds the conversation history for one active user conversation.
// It is owned by the caller and passed into the engine by handle; the engine
// appends exactly one user and one assistant turn per processed query.
// Not safe for concurrent use: one query is processed start-to-finish before
// the next is accepted.
type Session struct {
	turns []Turn
}

// NewSession creates an empty session.
func NewSession() *Session {
	return &Session{}
}

// AddUser appends a user turn.
func (s *Session) AddUser(content string) {
	s.turns = append(s.turns, Turn{Role: RoleUser, Content: content})
}

// AddAssistant appends an assistant turn.
func (s *Session) AddAssistant(content string) {
	s.turns = append(s.turns, Turn{Role: RoleAssistant, Content: content})
}

// Turns returns a copy of the full history.
func (s *Session) Turns() []Turn {
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Window returns the most recent n turns in original order.
func (s *Session) Window(n int) []Turn {
	if len(s.turns) <= n {
		return s.Turns()
	}
	out := make([]Turn, n)
	copy(out, s.turns[len(s.turns)-n:])
	return out
}

// Len reports the number of turns.
func (s *Session) Len() int {
	return len(s.turns)
}

// Reset clears the history wholesale.
func (s *Session) Reset() {
	s.turns = nil
}
