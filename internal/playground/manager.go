package playground

import (
	"errors"
	"sort"
	"sync"
)

// ErrSessionNotFound is returned for unknown session ids.
var ErrSessionNotFound = errors.New("session not found")

// Manager owns the live sessions of a server.
type Manager struct {
	deps     Deps
	defaults Options

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a Manager. defaults fill in options left unset by
// Create.
func NewManager(deps Deps, defaults Options) *Manager {
	if deps.Bus == nil {
		deps.Bus = NewEventBus()
	}
	return &Manager{
		deps:     deps,
		defaults: defaults,
		sessions: make(map[string]*Session),
	}
}

// Bus returns the event bus every session publishes on.
func (m *Manager) Bus() *EventBus { return m.deps.Bus }

// Create starts a new session. Language and problem statement come from opts;
// AI enablement and tuning come from the manager's defaults.
func (m *Manager) Create(opts Options) (*Session, error) {
	merged := m.defaults
	if opts.Language != "" {
		merged.Language = opts.Language
	}
	merged.ProblemStatement = opts.ProblemStatement

	s, err := NewSession(m.deps, merged)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s, nil
}

// Get returns a live session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// List returns live sessions, oldest first.
func (m *Manager) List() []*Session {
	m.mu.Lock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Close closes and forgets a session.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.Close()
	return nil
}

// CloseAll closes every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}
