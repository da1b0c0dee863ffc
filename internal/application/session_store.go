package application

import (
	"sync"
	"time"

	"github.com/bnema/cuedesk/internal/domain"
	"github.com/bnema/cuedesk/internal/ports"
)

const DefaultSessionTTL = 24 * time.Hour

// SessionStore owns every conversation. Callers get copies; all mutation goes
// through RecordMessage and UpdateMemory.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
	turns    map[string]*turnLock
	ttl      time.Duration
	clock    ports.Clock
}

func NewSessionStore(ttl time.Duration, clock ports.Clock) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &SessionStore{
		sessions: map[string]*domain.Session{},
		turns:    map[string]*turnLock{},
		ttl:      ttl,
		clock:    clock,
	}
}

func (s *SessionStore) GetOrCreate(id string) domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.sessionLocked(id)
	session.LastActivity = s.clock.Now()
	return session.Clone()
}

// Snapshot returns the session without creating it or refreshing its activity.
func (s *SessionStore) Snapshot(id string) (domain.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, false
	}
	return session.Clone(), true
}

func (s *SessionStore) Exists(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.sessions[id]
	return ok
}

// Restore installs a previously persisted session unless one is already live.
func (s *SessionStore) Restore(session domain.Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.ID]; ok {
		return false
	}
	restored := session.Clone()
	s.sessions[session.ID] = &restored
	return true
}

func (s *SessionStore) RecordMessage(id string, msg domain.Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.clock.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.sessionLocked(id)
	session.Messages = append(session.Messages, msg)
	session.LastActivity = s.clock.Now()
}

func (s *SessionStore) UpdateMemory(id string, update func(*domain.SessionMemory)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.sessionLocked(id)
	update(&session.Memory)
	session.LastActivity = s.clock.Now()
}

// History returns at most limit trailing messages. The window always starts
// at a user message so tool results are never separated from their call.
func (s *SessionStore) History(id string, limit int) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil
	}

	messages := session.Messages
	if limit > 0 && len(messages) > limit {
		start := len(messages) - limit
		for start < len(messages) && messages[start].Role != domain.RoleUser {
			start++
		}
		if start == len(messages) {
			start = len(messages) - limit
		}
		messages = messages[start:]
	}

	return domain.Session{Messages: messages}.Clone().Messages
}

func (s *SessionStore) Clear(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
}

// SweepExpired drops every session idle for longer than the TTL and returns
// how many were removed.
func (s *SessionStore) SweepExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, session := range s.sessions {
		if now.Sub(session.LastActivity) > s.ttl {
			delete(s.sessions, id)
			removed++
		}
	}

	return removed
}

func (s *SessionStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.sessions)
}

// turnLock is dropped once no turn holds or waits on it.
type turnLock struct {
	mu   sync.Mutex
	refs int
}

// Lock serializes turns for one session. Turns for other sessions never
// wait. The lock is independent of the session so Clear cannot release it
// under a turn in flight.
func (s *SessionStore) Lock(id string) func() {
	s.mu.Lock()
	turn, ok := s.turns[id]
	if !ok {
		turn = &turnLock{}
		s.turns[id] = turn
	}
	turn.refs++
	s.mu.Unlock()

	turn.mu.Lock()
	return func() {
		turn.mu.Unlock()

		s.mu.Lock()
		defer s.mu.Unlock()
		turn.refs--
		if turn.refs == 0 {
			delete(s.turns, id)
		}
	}
}

func (s *SessionStore) sessionLocked(id string) *domain.Session {
	if session, ok := s.sessions[id]; ok {
		return session
	}

	now := s.clock.Now()
	session := &domain.Session{ID: id, CreatedAt: now, LastActivity: now}
	s.sessions[id] = session
	return session
}
