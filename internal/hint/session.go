package hint

import (
	"context"
	"strings"
	"sync"
	"time"
)

// State is a hint session's lifecycle state.
type State string

const (
	StateIdle       State = "idle"
	StateRequesting State = "requesting"
	StateStreaming  State = "streaming"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateSuperseded State = "superseded"
)

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateSuperseded:
		return true
	}
	return false
}

// Active reports whether the session is requesting or streaming.
func (s State) Active() bool {
	return s == StateRequesting || s == StateStreaming
}

// Session is one hint request and its accumulated text. Text only grows, and
// only while the session is streaming.
type Session struct {
	ID        string
	Request   Request
	CreatedAt time.Time

	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	state   State
	text    strings.Builder
	message string
}

func newSession(id string, req Request, cancel context.CancelFunc) *Session {
	return &Session{
		ID:        id,
		Request:   req,
		CreatedAt: time.Now().UTC(),
		cancel:    cancel,
		done:      make(chan struct{}),
		state:     StateIdle,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Text returns the text accumulated so far.
func (s *Session) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text.String()
}

// Message returns the failure message of a failed session.
func (s *Session) Message() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.message
}

// Done is closed once the session reaches a terminal state.
func (s *Session) Done() <-chan struct{} { return s.done }

// View is a consistent copy of a session's observable state.
type View struct {
	ID      string `json:"id"`
	State   State  `json:"state"`
	Text    string `json:"text"`
	Message string `json:"message,omitempty"`
}

// View returns the session's state, text and message read together.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{ID: s.ID, State: s.state, Text: s.text.String(), Message: s.message}
}

// advance moves a non-terminal session to next. It reports whether the
// transition happened.
func (s *Session) advance(next State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return false
	}
	s.state = next
	return true
}

func (s *Session) appendToken(content string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateStreaming {
		return false
	}
	s.text.WriteString(content)
	return true
}

// finish moves a non-terminal session to a terminal state and releases its
// transport.
func (s *Session) finish(state State, message string) bool {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return false
	}
	s.state = state
	s.message = message
	s.mu.Unlock()

	close(s.done)
	if s.cancel != nil {
		s.cancel()
	}
	return true
}
