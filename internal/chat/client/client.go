package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"tour_chat_service/internal/chat/domain"
	"tour_chat_service/pkg/logger"
	t_token "tour_chat_service/pkg/token"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrNoRoom returned by room scoped calls before JoinRoom
var ErrNoRoom = errors.New("no room joined")

const writeWait = 5 * time.Second

// Config where and as whom a Client connects
type Config struct {
	// Server base url of the chat service, e.g. http://localhost:3000
	Server string
	// Token optional bearer token, sent as the auth query parameter. Its
	// email, and its name when set, replace Name and Email.
	Token string
	Name  string
	Email string
	// TypingIdle inactivity after which stopTyping is emitted
	TypingIdle time.Duration
}

// Event something the relay told this client
type Event struct {
	Action domain.Action
	// Message set for chatMessage
	Message domain.Message
	// Fresh false when a chatMessage matched an entry already in the view
	Fresh bool
	// Text notice text, typing username or error reason
	Text string
}

// Client the relay's counterpart: it hydrates history over REST, keeps a
// deduplicated View and speaks the websocket protocol
type Client struct {
	cfg  Config
	conn *websocket.Conn
	view *View

	writeMu sync.Mutex

	idMu   sync.Mutex
	lastID int64

	typingMu    sync.Mutex
	typing      bool
	typingRoom  string
	typingGen   uint64
	typingTimer *time.Timer

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// Dial connect to the relay and start reading. Callers must drain Events.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.TypingIdle <= 0 {
		cfg.TypingIdle = time.Second
	}
	if cfg.Token != "" {
		claims, err := t_token.PeekClaims(cfg.Token)
		if err != nil {
			return nil, fmt.Errorf("read token claims: %w", err)
		}
		cfg.Email = claims.Email
		if claims.Name != "" {
			cfg.Name = claims.Name
		}
	}

	wsURL, err := socketURL(cfg)
	if err != nil {
		return nil, err
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: status %d: %w", cfg.Server, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial %s: %w", cfg.Server, err)
	}

	c := &Client{
		cfg:    cfg,
		conn:   conn,
		view:   NewView(),
		events: make(chan Event, 64),
		done:   make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func socketURL(cfg Config) (string, error) {
	u, err := url.Parse(cfg.Server)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	if cfg.Token != "" {
		u.RawQuery = url.Values{"auth": {cfg.Token}}.Encode()
	}
	return u.String(), nil
}

// Identity name and email this client speaks as, the relay sees the same one
func (c *Client) Identity() domain.Identity {
	return domain.Identity{Name: c.cfg.Name, Email: c.cfg.Email}
}

// View local state kept by the client
func (c *Client) View() *View {
	return c.view
}

// Events relay events in arrival order, closed once the connection ends
func (c *Client) Events() <-chan Event {
	return c.events
}

// History fetch the stored messages of room
func (c *Client) History(room string) ([]domain.Message, error) {
	var msgs []domain.Message
	if err := c.getJSON("/api/rooms/"+url.PathEscape(room)+"/messages", nil, &msgs); err != nil {
		return nil, fmt.Errorf("history of %s: %w", room, err)
	}
	return msgs, nil
}

// Groups rooms the configured identity holds a paid booking for
func (c *Client) Groups() ([]domain.Group, error) {
	q := url.Values{}
	if c.cfg.Email != "" {
		q.Set("email", c.cfg.Email)
	}
	var groups []domain.Group
	if err := c.getJSON("/api/groups", q, &groups); err != nil {
		return nil, fmt.Errorf("groups: %w", err)
	}
	return groups, nil
}

func (c *Client) getJSON(path string, q url.Values, out interface{}) error {
	if q == nil {
		q = url.Values{}
	}
	if c.cfg.Token != "" {
		q.Set("auth", c.cfg.Token)
	}
	target := strings.TrimSuffix(c.cfg.Server, "/") + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}

	code, body, errs := fiber.Get(target).Bytes()
	if len(errs) > 0 {
		return errs[0]
	}
	if code != fiber.StatusOK {
		return fmt.Errorf("status %d: %s", code, strings.TrimSpace(string(body)))
	}
	return json.Unmarshal(body, out)
}

// JoinRoom hydrate the view with room's history, then join it on the relay.
// The previous room is left first so only one room feeds the view.
func (c *Client) JoinRoom(room string) error {
	history, err := c.History(room)
	if err != nil {
		return err
	}
	_ = c.StopTyping()
	if prev := c.view.Room(); prev != "" && prev != room {
		if err := c.write(domain.LeaveRoom, domain.LeaveRoomEvent{Room: prev}); err != nil {
			return err
		}
	}
	c.view.Reset(room, history)

	return c.write(domain.JoinRoom, domain.JoinRoomEvent{
		Username: c.cfg.Name,
		Room:     room,
		Email:    c.cfg.Email,
	})
}

// Send display text optimistically and hand it to the relay. The relay's
// echo replaces the optimistic entry.
func (c *Client) Send(text string) (domain.Message, error) {
	room := c.view.Room()
	if room == "" {
		return domain.Message{}, ErrNoRoom
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Message{}, domain.ErrEmptyText
	}

	now := time.Now()
	msg := domain.Message{
		ClientID:    c.nextClientID(now),
		Name:        c.cfg.Name,
		SenderEmail: c.cfg.Email,
		TourName:    room,
		Text:        text,
		Date:        domain.FormatDate(now),
	}
	c.view.Receive(msg)
	_ = c.StopTyping()

	err := c.write(domain.ChatMessage, domain.ChatMessageEvent{
		Room: room,
		Message: domain.MessagePayload{
			ID:          domain.FlexibleID(msg.ClientID),
			Name:        msg.Name,
			SenderEmail: msg.SenderEmail,
			Text:        msg.Text,
			Date:        msg.Date,
		},
	})
	return msg, err
}

// nextClientID millisecond timestamp, bumped so ids stay unique per client
func (c *Client) nextClientID(now time.Time) string {
	c.idMu.Lock()
	defer c.idMu.Unlock()
	id := now.UnixMilli()
	if id <= c.lastID {
		id = c.lastID + 1
	}
	c.lastID = id
	return strconv.FormatInt(id, 10)
}

// Typing report a keystroke. The first keystroke of a burst emits typing,
// stopTyping follows after TypingIdle without keystrokes.
func (c *Client) Typing() error {
	room := c.view.Room()
	if room == "" {
		return ErrNoRoom
	}

	c.typingMu.Lock()
	defer c.typingMu.Unlock()

	if !c.typing {
		if err := c.write(domain.Typing, domain.TypingEvent{Username: c.cfg.Name, Room: room}); err != nil {
			return err
		}
		c.typing = true
		c.typingRoom = room
	}

	c.typingGen++
	gen := c.typingGen
	if c.typingTimer != nil {
		c.typingTimer.Stop()
	}
	c.typingTimer = time.AfterFunc(c.cfg.TypingIdle, func() { c.idle(gen) })
	return nil
}

func (c *Client) idle(gen uint64) {
	c.typingMu.Lock()
	defer c.typingMu.Unlock()
	if gen != c.typingGen {
		return
	}
	if err := c.stopTypingLocked(); err != nil {
		logger.Log.Debug("stopTyping failed", zap.Error(err))
	}
}

// StopTyping end the current typing burst now, no-op when not typing
func (c *Client) StopTyping() error {
	c.typingMu.Lock()
	defer c.typingMu.Unlock()
	return c.stopTypingLocked()
}

func (c *Client) stopTypingLocked() error {
	if c.typingTimer != nil {
		c.typingTimer.Stop()
		c.typingTimer = nil
	}
	if !c.typing {
		return nil
	}
	c.typing = false
	return c.write(domain.StopTyping, domain.StopTypingEvent{Username: c.cfg.Name, Room: c.typingRoom})
}

// Leave leave the current room and keep the connection
func (c *Client) Leave() error {
	room := c.view.Room()
	if room == "" {
		return ErrNoRoom
	}
	_ = c.StopTyping()
	if err := c.write(domain.LeaveRoom, domain.LeaveRoomEvent{Room: room}); err != nil {
		return err
	}
	c.view.Reset("", nil)
	return nil
}

// Close end the session
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		_ = c.StopTyping()
		close(c.done)

		c.writeMu.Lock()
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()

		err = c.conn.Close()
	})
	return err
}

func (c *Client) write(action domain.Action, payload interface{}) error {
	p, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(domain.WSRequest{Action: action, Payload: p})
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	select {
	case <-c.done:
		return websocket.ErrCloseSent
	default:
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

func (c *Client) readLoop() {
	defer close(c.events)

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Log.Warn("relay connection lost", zap.Error(err))
			}
			return
		}

		f, err := domain.DecodeFrame(raw)
		if err != nil {
			logger.Log.Debug("undecodable frame", zap.Error(err))
			continue
		}
		ev, ok := c.apply(f)
		if !ok {
			continue
		}

		select {
		case c.events <- ev:
		case <-c.done:
			return
		}
	}
}

// apply fold a relay frame into the view
func (c *Client) apply(f domain.WSFrame) (Event, bool) {
	ev := Event{Action: f.Action}
	switch f.Action {
	case domain.ChatMessage:
		if err := json.Unmarshal(f.Payload, &ev.Message); err != nil {
			return ev, false
		}
		ev.Fresh = c.view.Receive(ev.Message)
	case domain.Typing, domain.StopTyping:
		if err := json.Unmarshal(f.Payload, &ev.Text); err != nil {
			return ev, false
		}
		c.view.SetTyping(ev.Text, f.Action == domain.Typing)
	case domain.RoomNotice:
		_ = json.Unmarshal(f.Payload, &ev.Text)
	case domain.ErrorAction:
		ev.Text = f.Error
	default:
		return ev, false
	}
	return ev, true
}
