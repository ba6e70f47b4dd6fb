package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMessageDedupKey(t *testing.T) {
	optimistic := Message{ClientID: "1718000000000", Text: "hi", SenderEmail: "alice@example.com"}
	echoed := Message{ID: "665f1c", ClientID: "1718000000000", Text: "hi", SenderEmail: "alice@example.com", Durable: true}
	assert.Equal(t, optimistic.DedupKey(), echoed.DedupKey())

	other := Message{ClientID: "1718000000000", Text: "hi", SenderEmail: "bob@example.com"}
	assert.NotEqual(t, optimistic.DedupKey(), other.DedupKey())

	serverOnly := Message{ID: "665f1c", Text: "hi"}
	assert.Equal(t, "665f1c", serverOnly.DedupKey().ID)
}

func TestFormatDate(t *testing.T) {
	loc := time.FixedZone("UTC+6", 6*60*60)
	ts := time.Date(2025, 3, 1, 16, 4, 5, 123456789, loc)
	assert.Equal(t, "2025-03-01T10:04:05.123Z", FormatDate(ts))
}

func TestNewMessageEvent(t *testing.T) {
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	ev := NewMessageEvent(Message{ID: "1", Text: "hi"}, at)
	assert.Equal(t, MessageCreated, ev.Type)
	assert.Equal(t, "1", ev.Message.ID)
	assert.Equal(t, at, ev.At)
}
