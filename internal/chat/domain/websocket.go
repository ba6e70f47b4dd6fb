package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Action websocket event name
type Action string

const (
	// JoinRoom client joins a tour room
	JoinRoom Action = "joinRoom"
	// ChatMessage client sends, server relays a message
	ChatMessage Action = "chatMessage"
	// Typing user started typing
	Typing Action = "typing"
	// StopTyping user stopped typing
	StopTyping Action = "stopTyping"
	// LeaveRoom client leaves a room without disconnecting
	LeaveRoom Action = "leaveRoom"

	// RoomNotice server join announcement
	RoomNotice Action = "roomNotice"
	// ErrorAction server rejected a client frame
	ErrorAction Action = "error"
)

// WSRequest websocket Request
type WSRequest struct {
	Action  Action          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

// WSResponse websocket Response
type WSResponse struct {
	Action  Action      `json:"action"`
	Success bool        `json:"success"`
	Payload interface{} `json:"payload,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// WSFrame a server frame as a client reads it
type WSFrame struct {
	Action  Action          `json:"action"`
	Success bool            `json:"success"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// NewResponse successful server frame
func NewResponse(action Action, payload interface{}) WSResponse {
	return WSResponse{Action: action, Success: true, Payload: payload}
}

// NewErrorResponse rejection of a client frame, payload names the offending action
func NewErrorResponse(action Action, err error) WSResponse {
	return WSResponse{
		Action:  ErrorAction,
		Success: false,
		Error:   err.Error(),
		Payload: map[string]string{"action": string(action)},
	}
}

// Encode marshal the response to a text frame
func (r WSResponse) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// DecodeFrame parse a server frame
func DecodeFrame(raw []byte) (WSFrame, error) {
	var f WSFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return f, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	return f, nil
}

// Event a validated client event
type Event interface {
	Action() Action
	RoomName() string
}

// JoinRoomEvent joinRoom payload
type JoinRoomEvent struct {
	Username string `json:"username"`
	Room     string `json:"room"`
	Email    string `json:"email,omitempty"`
}

// MessagePayload message as sent by a client
type MessagePayload struct {
	ID          FlexibleID `json:"id,omitempty"`
	Name        string     `json:"name"`
	SenderEmail string     `json:"senderEmail"`
	Text        string     `json:"text"`
	Date        string     `json:"date,omitempty"`
}

// ChatMessageEvent chatMessage payload
type ChatMessageEvent struct {
	Message MessagePayload `json:"message"`
	Room    string         `json:"room"`
}

// TypingEvent typing payload
type TypingEvent struct {
	Username string `json:"username"`
	Room     string `json:"room"`
}

// StopTypingEvent stopTyping payload
type StopTypingEvent struct {
	Username string `json:"username"`
	Room     string `json:"room"`
}

// LeaveRoomEvent leaveRoom payload
type LeaveRoomEvent struct {
	Room string `json:"room"`
}

func (JoinRoomEvent) Action() Action    { return JoinRoom }
func (ChatMessageEvent) Action() Action { return ChatMessage }
func (TypingEvent) Action() Action      { return Typing }
func (StopTypingEvent) Action() Action  { return StopTyping }
func (LeaveRoomEvent) Action() Action   { return LeaveRoom }

func (e JoinRoomEvent) RoomName() string    { return e.Room }
func (e ChatMessageEvent) RoomName() string { return e.Room }
func (e TypingEvent) RoomName() string      { return e.Room }
func (e StopTypingEvent) RoomName() string  { return e.Room }
func (e LeaveRoomEvent) RoomName() string   { return e.Room }

// ToMessage build the message a client asked to send into room
func (p MessagePayload) ToMessage(room string) Message {
	return Message{
		ClientID:    string(p.ID),
		Name:        p.Name,
		SenderEmail: p.SenderEmail,
		TourName:    room,
		Text:        p.Text,
		Date:        p.Date,
	}
}

// FlexibleID client ids arrive as millisecond numbers or strings
type FlexibleID string

// UnmarshalJSON accept a JSON string, number or null
func (f *FlexibleID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexibleID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("%w: id must be a string or a number", ErrInvalidEvent)
	}
	*f = FlexibleID(n.String())
	return nil
}

// ParseRequest decode the envelope only
func ParseRequest(raw []byte) (WSRequest, error) {
	var req WSRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	return req, nil
}

// DecodeEvent decode and validate a client frame
func DecodeEvent(raw []byte) (Event, error) {
	req, err := ParseRequest(raw)
	if err != nil {
		return nil, err
	}
	return req.Event()
}

// Event decode the payload selected by Action and validate it
func (r WSRequest) Event() (Event, error) {
	payload := bytes.TrimSpace(r.Payload)
	if len(payload) == 0 || payload[0] != '{' {
		return nil, fmt.Errorf("%w: payload must be an object", ErrInvalidEvent)
	}

	switch r.Action {
	case JoinRoom:
		var e JoinRoomEvent
		if err := decodePayload(payload, &e); err != nil {
			return nil, err
		}
		e.Room, e.Username, e.Email = strings.TrimSpace(e.Room), strings.TrimSpace(e.Username), strings.TrimSpace(e.Email)
		if err := requireRoom(e.Room); err != nil {
			return nil, err
		}
		return e, nil

	case ChatMessage:
		var e ChatMessageEvent
		if err := decodePayload(payload, &e); err != nil {
			return nil, err
		}
		e.Room = strings.TrimSpace(e.Room)
		if err := requireRoom(e.Room); err != nil {
			return nil, err
		}
		if strings.TrimSpace(e.Message.Text) == "" {
			return nil, ErrEmptyText
		}
		return e, nil

	case Typing:
		var e TypingEvent
		if err := decodePayload(payload, &e); err != nil {
			return nil, err
		}
		e.Room, e.Username = strings.TrimSpace(e.Room), strings.TrimSpace(e.Username)
		if err := requireRoom(e.Room); err != nil {
			return nil, err
		}
		return e, nil

	case StopTyping:
		var e StopTypingEvent
		if err := decodePayload(payload, &e); err != nil {
			return nil, err
		}
		e.Room, e.Username = strings.TrimSpace(e.Room), strings.TrimSpace(e.Username)
		if err := requireRoom(e.Room); err != nil {
			return nil, err
		}
		return e, nil

	case LeaveRoom:
		var e LeaveRoomEvent
		if err := decodePayload(payload, &e); err != nil {
			return nil, err
		}
		e.Room = strings.TrimSpace(e.Room)
		if err := requireRoom(e.Room); err != nil {
			return nil, err
		}
		return e, nil

	default:
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidEvent, r.Action)
	}
}

func decodePayload(payload []byte, v interface{}) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	return nil
}

func requireRoom(room string) error {
	if room == "" {
		return fmt.Errorf("%w: room is required", ErrInvalidEvent)
	}
	return nil
}
