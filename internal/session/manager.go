package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultTTL is how long an untouched session is kept before Sweep drops it.
const DefaultTTL = 60 * time.Minute

// ObserverFactory builds the observer for a newly created session.
type ObserverFactory func(id string) Observer

// Manager tracks the sessions of a server process, keyed by UUID.
type Manager struct {
	restorer    Restorer
	instruction string
	observers   ObserverFactory
	ttl         time.Duration

	mu       sync.Mutex
	sessions map[string]*Session

	// inflight counts restoration goroutines of every session this manager
	// created, including ones already deleted or swept.
	inflight sync.WaitGroup
}

// NewManager creates an empty manager. observers may be nil; ttl <= 0 selects DefaultTTL.
func NewManager(restorer Restorer, instruction string, observers ObserverFactory, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		restorer:    restorer,
		instruction: instruction,
		observers:   observers,
		ttl:         ttl,
		sessions:    make(map[string]*Session),
	}
}

// Create starts a new idle session.
func (m *Manager) Create() *Session {
	id := uuid.New().String()
	var obs Observer
	if m.observers != nil {
		obs = m.observers(id)
	}
	s := New(id, m.restorer, m.instruction, obs)
	s.group = &m.inflight

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	log.Debug().Str("session", id).Msg("Session created")
	return s
}

// Get returns the session with the given ID.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Delete resets and forgets a session. It reports whether the session existed.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		s.Reset()
	}
	return ok
}

// Sweep drops every session idle for longer than the TTL as of now and
// returns how many were removed.
func (m *Manager) Sweep(now time.Time) int {
	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if now.Sub(s.IdleSince()) > m.ttl {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.Reset()
	}
	if len(expired) > 0 {
		log.Info().Int("expired", len(expired)).Int("remaining", m.Len()).Msg("Swept idle sessions")
	}
	return len(expired)
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Wait blocks until every in-flight restoration has finished, including
// those of sessions removed by Delete or Sweep.
func (m *Manager) Wait() {
	m.inflight.Wait()
}
