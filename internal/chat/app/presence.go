package app

import (
	"sort"
	"sync"
	"time"
)

// TypingEntry one username that stopped typing, and the session that owned it
type TypingEntry struct {
	Room      string
	Username  string
	SessionID string
}

type typingState struct {
	sessionID string
	expiresAt time.Time
}

// PresenceTracker who is typing in each room. Entries expire after ttl unless refreshed.
type PresenceTracker struct {
	mu    sync.Mutex
	ttl   time.Duration
	rooms map[string]map[string]typingState
}

// NewPresenceTracker create a tracker with the given entry lifetime
func NewPresenceTracker(ttl time.Duration) *PresenceTracker {
	return &PresenceTracker{
		ttl:   ttl,
		rooms: make(map[string]map[string]typingState),
	}
}

// Start mark username typing in room, false when it only refreshed an entry
func (p *PresenceTracker) Start(room, username, sessionID string, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	users, ok := p.rooms[room]
	if !ok {
		users = make(map[string]typingState)
		p.rooms[room] = users
	}
	_, existed := users[username]
	users[username] = typingState{sessionID: sessionID, expiresAt: now.Add(p.ttl)}
	return !existed
}

// Stop clear username in room, false when it was not typing
func (p *PresenceTracker) Stop(room, username string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	users, ok := p.rooms[room]
	if !ok {
		return false
	}
	if _, ok := users[username]; !ok {
		return false
	}
	p.deleteLocked(room, username)
	return true
}

// Typing sorted usernames typing in room
func (p *PresenceTracker) Typing(room string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	names := make([]string, 0, len(p.rooms[room]))
	for name := range p.rooms[room] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Rooms every room with at least one typing entry, sorted
func (p *PresenceTracker) Rooms() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	rooms := make([]string, 0, len(p.rooms))
	for room := range p.rooms {
		rooms = append(rooms, room)
	}
	sort.Strings(rooms)
	return rooms
}

// RemoveSessionInRoom clear the entries sessionID owns in room
func (p *PresenceTracker) RemoveSessionInRoom(room, sessionID string) []TypingEntry {
	return p.removeWhere(room, func(st typingState) bool {
		return st.sessionID == sessionID
	})
}

// ExpireRoom drop the entries of room whose deadline is not after now
func (p *PresenceTracker) ExpireRoom(room string, now time.Time) []TypingEntry {
	return p.removeWhere(room, func(st typingState) bool {
		return !st.expiresAt.After(now)
	})
}

func (p *PresenceTracker) removeWhere(room string, match func(st typingState) bool) []TypingEntry {
	p.mu.Lock()
	defer p.mu.Unlock()

	var removed []TypingEntry
	for name, st := range p.rooms[room] {
		if match(st) {
			removed = append(removed, TypingEntry{Room: room, Username: name, SessionID: st.sessionID})
		}
	}
	for _, e := range removed {
		p.deleteLocked(e.Room, e.Username)
	}

	sort.Slice(removed, func(i, j int) bool {
		return removed[i].Username < removed[j].Username
	})
	return removed
}

func (p *PresenceTracker) deleteLocked(room, username string) {
	delete(p.rooms[room], username)
	if len(p.rooms[room]) == 0 {
		delete(p.rooms, room)
	}
}
