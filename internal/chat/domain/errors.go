package domain

import "errors"

var (
	// ErrInvalidEvent frame could not be decoded into a known event
	ErrInvalidEvent = errors.New("invalid event")
	// ErrNotInRoom the connection has not joined the room
	ErrNotInRoom = errors.New("not in room")
	// ErrNotEligible no paid booking for the tour
	ErrNotEligible = errors.New("not a participant of this tour")
	// ErrEmptyText message text is blank
	ErrEmptyText = errors.New("message text is empty")
	// ErrTextTooLong message text exceeds the configured limit
	ErrTextTooLong = errors.New("message text is too long")
)
