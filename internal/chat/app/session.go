package app

import (
	"sync"

	"tour_chat_service/internal/chat/domain"

	"github.com/google/uuid"
)

// Session one client connection as the relay sees it. Frames are queued on a
// buffered channel and drained by a single writer, a full queue closes the session.
type Session struct {
	ID string

	mu       sync.RWMutex
	identity domain.Identity
	verified bool

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewSession create a Session, verified identities come from a checked token
func NewSession(identity domain.Identity, verified bool, buffer int) *Session {
	if buffer <= 0 {
		buffer = 1
	}
	return &Session{
		ID:       uuid.New().String(),
		identity: identity,
		verified: verified,
		send:     make(chan []byte, buffer),
		done:     make(chan struct{}),
	}
}

// Identity current identity
func (s *Session) Identity() domain.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// Verified identity came from a token
func (s *Session) Verified() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.verified
}

// Claim adopt the name and email a client announces on join, ignored once verified
func (s *Session) Claim(name, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.verified {
		return
	}
	s.identity = domain.Identity{Name: name, Email: email}
}

// DisplayName the name used in notices and typing events
func (s *Session) DisplayName(claimed string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.verified && s.identity.Name != "" {
		return s.identity.Name
	}
	return claimed
}

// Enqueue queue frame without blocking, false when closed or full
func (s *Session) Enqueue(frame []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.send <- frame:
		return true
	default:
		return false
	}
}

// Outbound frames waiting to be written
func (s *Session) Outbound() <-chan []byte {
	return s.send
}

// Done closed once the session is closed
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Closed report whether Close was called
func (s *Session) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Close stop accepting frames, safe to call more than once
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}
