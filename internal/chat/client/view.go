package client

import (
	"sort"
	"sync"

	"tour_chat_service/internal/chat/domain"
)

// View local state of the room a client is looking at: the ordered message
// log and the set of members currently typing
type View struct {
	mu       sync.RWMutex
	room     string
	messages []domain.Message
	index    map[domain.DedupKey]int
	typing   map[string]struct{}
}

// NewView create an empty View
func NewView() *View {
	return &View{
		index:  make(map[domain.DedupKey]int),
		typing: make(map[string]struct{}),
	}
}

// Reset switch to room and hydrate the log with its history
func (v *View) Reset(room string, history []domain.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.room = room
	v.messages = v.messages[:0]
	v.index = make(map[domain.DedupKey]int, len(history))
	v.typing = make(map[string]struct{})
	for _, m := range history {
		v.putLocked(m)
	}
}

// Room the room on display, empty before the first Reset
func (v *View) Room() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.room
}

// Receive merge m into the log. A message whose DedupKey is already present
// replaces that entry in place and Receive returns false. Messages of other
// rooms are dropped.
func (v *View) Receive(m domain.Message) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if m.TourName != "" && m.TourName != v.room {
		return false
	}
	return v.putLocked(m)
}

func (v *View) putLocked(m domain.Message) bool {
	key := m.DedupKey()
	if i, ok := v.index[key]; ok {
		v.messages[i] = m
		return false
	}
	v.index[key] = len(v.messages)
	v.messages = append(v.messages, m)
	return true
}

// Messages copy of the log in display order
func (v *View) Messages() []domain.Message {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]domain.Message, len(v.messages))
	copy(out, v.messages)
	return out
}

// SetTyping add or remove username from the typing set
func (v *View) SetTyping(username string, typing bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if typing {
		v.typing[username] = struct{}{}
		return
	}
	delete(v.typing, username)
}

// Typing sorted usernames currently typing
func (v *View) Typing() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]string, 0, len(v.typing))
	for name := range v.typing {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
