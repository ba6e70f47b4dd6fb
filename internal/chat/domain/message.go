package domain

import "time"

// DateLayout ISO-8601 with millisecond precision, the format browsers emit
const DateLayout = "2006-01-02T15:04:05.000Z07:00"

// MessageCreated type of the event emitted after a message is persisted
const MessageCreated = "chat.message.created"

// Message a chat entry of one tour room
type Message struct {
	ID          string `json:"id,omitempty"`
	ClientID    string `json:"clientId,omitempty"`
	Name        string `json:"name"`
	SenderEmail string `json:"senderEmail"`
	TourName    string `json:"tourName"`
	Text        string `json:"text"`
	Date        string `json:"date"`
	Durable     bool   `json:"durable,omitempty"`
}

// DedupKey identity of a message as seen by a client that displays it
// optimistically before the relay echoes it back
type DedupKey struct {
	ID          string
	Text        string
	SenderEmail string
}

// DedupKey prefer the sender's provisional id, the server id otherwise
func (m Message) DedupKey() DedupKey {
	id := m.ClientID
	if id == "" {
		id = m.ID
	}
	return DedupKey{ID: id, Text: m.Text, SenderEmail: m.SenderEmail}
}

// FormatDate render t in DateLayout, always UTC
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// MessageEvent downstream notification of a persisted message
type MessageEvent struct {
	Type    string    `json:"type"`
	Message Message   `json:"message"`
	At      time.Time `json:"at"`
}

// NewMessageEvent create a chat.message.created event
func NewMessageEvent(m Message, at time.Time) MessageEvent {
	return MessageEvent{Type: MessageCreated, Message: m, At: at.UTC()}
}
