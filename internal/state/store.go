// Package state holds the client's conversational state: the session list,
// the active session, its messages and sources, and the stats snapshot.
//
// Every transition happens under one lock, so observers never see a
// partially applied change. Full-replace reads (session list, messages,
// stats) are tagged with tokens from Begin*; a response is applied only if
// its token is still the latest issued for that resource.
package state

import (
	"sync"

	"github.com/liliang-cn/ragdesk/internal/domain"
)

// Token orders refresh responses for one resource
type Token uint64

// Snapshot is a read-only copy of the state
type Snapshot struct {
	Sessions []domain.Session
	Active   *domain.Session
	Messages []domain.Message
	Sources  []domain.Source
	Stats    *domain.SystemStats
	Sending  bool
	Version  uint64
}

// ActiveID returns the active session id or ""
func (s Snapshot) ActiveID() domain.SessionID {
	if s.Active == nil {
		return ""
	}
	return s.Active.ID
}

// Store is the owned state container
type Store struct {
	mu sync.RWMutex

	sessions []domain.Session
	active   *domain.Session
	messages []domain.Message
	sources  []domain.Source
	stats    *domain.SystemStats
	inFlight map[domain.SessionID]bool

	sessionsSeq Token
	messagesSeq Token
	statsSeq    Token
	version     uint64

	listeners []func()
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		sessions: []domain.Session{},
		messages: []domain.Message{},
		sources:  []domain.Source{},
		inFlight: make(map[domain.SessionID]bool),
	}
}

// OnChange registers a callback invoked after every applied transition.
// Callbacks run outside the lock.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Snapshot returns a copy of the current state
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Sessions: append([]domain.Session(nil), s.sessions...),
		Messages: append([]domain.Message(nil), s.messages...),
		Sources:  append([]domain.Source(nil), s.sources...),
		Version:  s.version,
	}
	if s.active != nil {
		active := *s.active
		snap.Active = &active
		snap.Sending = s.inFlight[active.ID]
	}
	if s.stats != nil {
		stats := *s.stats
		snap.Stats = &stats
	}
	return snap
}

// ActiveID returns the active session id or ""
func (s *Store) ActiveID() domain.SessionID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil {
		return ""
	}
	return s.active.ID
}

// Lookup finds a session in the loaded list
func (s *Store) Lookup(id domain.SessionID) (domain.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := indexOf(s.sessions, id)
	if idx < 0 {
		return domain.Session{}, false
	}
	return s.sessions[idx], true
}

// Sources returns the last-known sources
func (s *Store) Sources() []domain.Source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Source(nil), s.sources...)
}

// BeginSessionsRefresh issues a token for a session list load
func (s *Store) BeginSessionsRefresh() Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionsSeq++
	return s.sessionsSeq
}

// ApplySessions replaces the session list if tok is still the latest. The
// active session is refreshed from the new list; if it vanished, active,
// messages and sources are cleared together.
func (s *Store) ApplySessions(tok Token, sessions []domain.Session) bool {
	s.mu.Lock()
	if tok != s.sessionsSeq {
		s.mu.Unlock()
		return false
	}
	s.sessions = append([]domain.Session(nil), sessions...)
	if s.active != nil {
		if idx := indexOf(s.sessions, s.active.ID); idx >= 0 {
			fresh := s.sessions[idx]
			s.active = &fresh
		} else {
			s.clearActiveLocked()
		}
	}
	s.commitUnlock()
	return true
}

// AddSession appends a session absent from the list and invalidates any
// in-flight list load that could drop it again.
func (s *Store) AddSession(session domain.Session) {
	s.mu.Lock()
	if indexOf(s.sessions, session.ID) < 0 {
		s.sessions = append(s.sessions, session)
	}
	s.sessionsSeq++
	s.commitUnlock()
}

// RemoveSession drops a deleted session. Removing the active session clears
// active, messages and sources in the same transition. In-flight list loads
// issued before the removal are invalidated.
func (s *Store) RemoveSession(id domain.SessionID) (wasActive bool) {
	s.mu.Lock()
	if idx := indexOf(s.sessions, id); idx >= 0 {
		s.sessions = append(s.sessions[:idx:idx], s.sessions[idx+1:]...)
	}
	if s.active != nil && s.active.ID == id {
		s.clearActiveLocked()
		wasActive = true
	}
	s.sessionsSeq++
	s.commitUnlock()
	return wasActive
}

// Activate makes a listed session active and clears messages and sources.
// In-flight message loads for the previous session are invalidated.
func (s *Store) Activate(id domain.SessionID) (domain.Session, bool) {
	s.mu.Lock()
	idx := indexOf(s.sessions, id)
	if idx < 0 {
		s.mu.Unlock()
		return domain.Session{}, false
	}
	session := s.sessions[idx]
	s.active = &session
	s.messages = []domain.Message{}
	s.sources = []domain.Source{}
	s.messagesSeq++
	s.commitUnlock()
	return session, true
}

// ClearActive drops the active session, messages and sources
func (s *Store) ClearActive() {
	s.mu.Lock()
	s.clearActiveLocked()
	s.commitUnlock()
}

// BeginMessagesLoad issues a token for a message history load
func (s *Store) BeginMessagesLoad() Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messagesSeq++
	return s.messagesSeq
}

// ApplyMessages replaces the history if tok is the latest and id is still
// the active session.
func (s *Store) ApplyMessages(tok Token, id domain.SessionID, messages []domain.Message) bool {
	s.mu.Lock()
	if tok != s.messagesSeq || s.active == nil || s.active.ID != id {
		s.mu.Unlock()
		return false
	}
	s.messages = append([]domain.Message(nil), messages...)
	s.commitUnlock()
	return true
}

// InvalidateMessages makes every pending message load stale
func (s *Store) InvalidateMessages() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messagesSeq++
}

// ReplaceSources sets the sources if id is still the active session
func (s *Store) ReplaceSources(id domain.SessionID, sources []domain.Source) bool {
	s.mu.Lock()
	if s.active == nil || s.active.ID != id {
		s.mu.Unlock()
		return false
	}
	s.sources = append([]domain.Source{}, sources...)
	s.commitUnlock()
	return true
}

// TryBeginAsk marks an ask in flight for id, failing if one already is
func (s *Store) TryBeginAsk(id domain.SessionID) bool {
	s.mu.Lock()
	if s.inFlight[id] {
		s.mu.Unlock()
		return false
	}
	s.inFlight[id] = true
	s.commitUnlock()
	return true
}

// EndAsk clears the in-flight mark for id
func (s *Store) EndAsk(id domain.SessionID) {
	s.mu.Lock()
	delete(s.inFlight, id)
	s.commitUnlock()
}

// Busy reports whether an ask is in flight for id
func (s *Store) Busy(id domain.SessionID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inFlight[id]
}

// BeginStatsLoad issues a token for a stats load
func (s *Store) BeginStatsLoad() Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statsSeq++
	return s.statsSeq
}

// ApplyStats replaces the stats snapshot if tok is still the latest
func (s *Store) ApplyStats(tok Token, stats domain.SystemStats) bool {
	s.mu.Lock()
	if tok != s.statsSeq {
		s.mu.Unlock()
		return false
	}
	s.stats = &stats
	s.commitUnlock()
	return true
}

func (s *Store) clearActiveLocked() {
	s.active = nil
	s.messages = []domain.Message{}
	s.sources = []domain.Source{}
	s.messagesSeq++
}

// commitUnlock bumps the version, releases the lock and then notifies
// listeners. Callers must hold s.mu.
func (s *Store) commitUnlock() {
	s.version++
	listeners := append([]func(){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

func indexOf(sessions []domain.Session, id domain.SessionID) int {
	for i := range sessions {
		if sessions[i].ID == id {
			return i
		}
	}
	return -1
}
