// Package session keeps per-session chat history for the recipe assistant.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"recipeagent"
)

const (
	DefaultTTL         = 30 * time.Minute
	DefaultMaxMessages = 50
)

// Store holds conversation history keyed by session ID.
type Store interface {
	History(ctx context.Context, sessionID string) ([]recipeagent.Message, error)
	Append(ctx context.Context, sessionID string, msgs ...recipeagent.Message) error
	Delete(ctx context.Context, sessionID string) error
}

// NewID returns a fresh session ID.
func NewID() string {
	return "sess_" + ulid.Make().String()
}

type entry struct {
	messages []recipeagent.Message
	lastUsed time.Time
}

// MemoryStore is an in-process Store. Sessions are created on first use, expire after TTL
// without activity and keep at most MaxMessages of the most recent messages.
type MemoryStore struct {
	mu          sync.Mutex
	sessions    map[string]*entry
	ttl         time.Duration
	maxMessages int
	now         func() time.Time
}

func NewMemoryStore(ttl time.Duration, maxMessages int) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	return &MemoryStore{
		sessions:    make(map[string]*entry),
		ttl:         ttl,
		maxMessages: maxMessages,
		now:         time.Now,
	}
}

// History returns a copy of the session's messages, starting a new session when none
// exists or the old one expired.
func (s *MemoryStore) History(ctx context.Context, sessionID string) ([]recipeagent.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.get(sessionID)
	return append([]recipeagent.Message(nil), e.messages...), nil
}

func (s *MemoryStore) Append(ctx context.Context, sessionID string, msgs ...recipeagent.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.get(sessionID)
	e.messages = append(e.messages, msgs...)
	if extra := len(e.messages) - s.maxMessages; extra > 0 {
		e.messages = append([]recipeagent.Message(nil), e.messages[extra:]...)
	}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	return nil
}

// Sweep drops every expired session and reports how many were removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, e := range s.sessions {
		if now.Sub(e.lastUsed) > s.ttl {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		slog.Info("SESSION: Expired sessions removed", "count", removed, "remaining", len(s.sessions))
	}
	return removed
}

// Len reports the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// get must be called with mu held.
func (s *MemoryStore) get(sessionID string) *entry {
	now := s.now()
	e, ok := s.sessions[sessionID]
	if ok && now.Sub(e.lastUsed) > s.ttl {
		slog.Info("SESSION: Session expired", "session_id", sessionID)
		ok = false
	}
	if !ok {
		e = &entry{}
		s.sessions[sessionID] = e
	}
	e.lastUsed = now
	return e
}
