package app

import "sync"

// RoomRegistry room membership of live sessions, rooms exist while they have members
type RoomRegistry struct {
	mu       sync.RWMutex
	rooms    map[string]map[string]*Session
	sessions map[string]map[string]struct{}
}

// NewRoomRegistry create an empty registry
func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{
		rooms:    make(map[string]map[string]*Session),
		sessions: make(map[string]map[string]struct{}),
	}
}

// Join add s to room, false when it was already a member
func (r *RoomRegistry) Join(room string, s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]*Session)
		r.rooms[room] = members
	}
	if _, exists := members[s.ID]; exists {
		return false
	}
	members[s.ID] = s

	joined, ok := r.sessions[s.ID]
	if !ok {
		joined = make(map[string]struct{})
		r.sessions[s.ID] = joined
	}
	joined[room] = struct{}{}
	return true
}

// Leave remove a session from room
func (r *RoomRegistry) Leave(room, sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(room, sessionID)
}

func (r *RoomRegistry) leaveLocked(room, sessionID string) bool {
	members, ok := r.rooms[room]
	if !ok {
		return false
	}
	if _, ok := members[sessionID]; !ok {
		return false
	}
	delete(members, sessionID)
	if len(members) == 0 {
		delete(r.rooms, room)
	}

	if joined, ok := r.sessions[sessionID]; ok {
		delete(joined, room)
		if len(joined) == 0 {
			delete(r.sessions, sessionID)
		}
	}
	return true
}

// RemoveSession remove a session from every room, return the rooms it was in
func (r *RoomRegistry) RemoveSession(sessionID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	joined := r.sessions[sessionID]
	rooms := make([]string, 0, len(joined))
	for room := range joined {
		rooms = append(rooms, room)
	}
	for _, room := range rooms {
		r.leaveLocked(room, sessionID)
	}
	return rooms
}

// Members snapshot of the sessions in room
func (r *RoomRegistry) Members(room string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[room]
	out := make([]*Session, 0, len(members))
	for _, s := range members {
		out = append(out, s)
	}
	return out
}

// IsMember report whether the session joined room
func (r *RoomRegistry) IsMember(room, sessionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[room][sessionID]
	return ok
}

// RoomsOf rooms a session has joined
func (r *RoomRegistry) RoomsOf(sessionID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]string, 0, len(r.sessions[sessionID]))
	for room := range r.sessions[sessionID] {
		rooms = append(rooms, room)
	}
	return rooms
}

// RoomCount rooms with at least one member
func (r *RoomRegistry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// SessionCount sessions in at least one room
func (r *RoomRegistry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
