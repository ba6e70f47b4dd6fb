package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tour_chat_service/internal/chat/domain"
	"tour_chat_service/pkg/config"
	"tour_chat_service/pkg/logger"

	"go.uber.org/zap"
)

// Relay dispatches client events of every connection. It owns room
// membership and typing presence and sends chat messages through SendMessageUseCase.
type Relay struct {
	cfg         config.RelayConfig
	registry    *RoomRegistry
	presence    *PresenceTracker
	broadcaster Broadcaster
	guard       RoomGuard
	messages    *SendMessageUseCase
	locks       *RoomLocks
	now         func() time.Time
}

// NewRelay create Relay
func NewRelay(
	cfg config.RelayConfig,
	registry *RoomRegistry,
	presence *PresenceTracker,
	broadcaster Broadcaster,
	guard RoomGuard,
	messages *SendMessageUseCase,
	locks *RoomLocks,
) *Relay {
	if guard == nil {
		guard = NewOpenGuard()
	}
	return &Relay{
		cfg:         cfg,
		registry:    registry,
		presence:    presence,
		broadcaster: broadcaster,
		guard:       guard,
		messages:    messages,
		locks:       locks,
		now:         time.Now,
	}
}

// Connect register a new connection
func (r *Relay) Connect(identity domain.Identity, verified bool) *Session {
	s := NewSession(identity, verified, r.cfg.SendBuffer)
	logger.Log.Debug("session connected", zap.String("session", s.ID), zap.Bool("verified", verified))
	return s
}

// Dispatch decode one client frame and handle it, failures are answered with
// an error frame to s only
func (r *Relay) Dispatch(ctx context.Context, s *Session, raw []byte) {
	req, err := domain.ParseRequest(raw)
	if err != nil {
		r.reject(s, "", err)
		return
	}
	ev, err := req.Event()
	if err != nil {
		r.reject(s, req.Action, err)
		return
	}
	if err := r.Handle(ctx, s, ev); err != nil {
		r.reject(s, ev.Action(), err)
	}
}

// Handle apply a decoded event for s
func (r *Relay) Handle(ctx context.Context, s *Session, ev domain.Event) error {
	switch e := ev.(type) {
	case domain.JoinRoomEvent:
		return r.join(ctx, s, e)
	case domain.ChatMessageEvent:
		return r.send(ctx, s, e)
	case domain.TypingEvent:
		return r.typing(ctx, s, e)
	case domain.StopTypingEvent:
		return r.stopTyping(ctx, s, e)
	case domain.LeaveRoomEvent:
		return r.leave(ctx, s, e)
	default:
		return fmt.Errorf("%w: unsupported event %T", domain.ErrInvalidEvent, ev)
	}
}

func (r *Relay) join(ctx context.Context, s *Session, e domain.JoinRoomEvent) error {
	s.Claim(e.Username, e.Email)
	name, err := speaker(s, e.Username)
	if err != nil {
		return err
	}

	ok, err := r.guard.CanJoin(ctx, s.Identity(), s.Verified(), e.Room)
	if err != nil {
		return fmt.Errorf("check room access: %w", err)
	}
	if !ok {
		return domain.ErrNotEligible
	}

	unlock := r.locks.Lock(e.Room)
	defer unlock()

	added := r.registry.Join(e.Room, s)
	logger.Log.Info("join room",
		zap.String("session", s.ID),
		zap.String("room", e.Room),
		zap.String("username", name),
		zap.Bool("new_member", added),
	)
	return r.broadcaster.Publish(ctx, e.Room, domain.NewResponse(domain.RoomNotice, domain.RoomNoticeText(name)), "")
}

func (r *Relay) send(ctx context.Context, s *Session, e domain.ChatMessageEvent) error {
	if !r.registry.IsMember(e.Room, s.ID) {
		return domain.ErrNotInRoom
	}

	msg := e.Message.ToMessage(e.Room)
	if s.Verified() {
		id := s.Identity()
		msg.SenderEmail = id.Email
		if id.Name != "" {
			msg.Name = id.Name
		}
	}

	_, err := r.messages.Execute(ctx, e.Room, msg)
	return err
}

func (r *Relay) typing(ctx context.Context, s *Session, e domain.TypingEvent) error {
	name, err := speaker(s, e.Username)
	if err != nil {
		return err
	}

	unlock := r.locks.Lock(e.Room)
	defer unlock()

	if !r.registry.IsMember(e.Room, s.ID) {
		return domain.ErrNotInRoom
	}
	r.presence.Start(e.Room, name, s.ID, r.now())
	return r.broadcaster.Publish(ctx, e.Room, domain.NewResponse(domain.Typing, name), s.ID)
}

func (r *Relay) stopTyping(ctx context.Context, s *Session, e domain.StopTypingEvent) error {
	name, err := speaker(s, e.Username)
	if err != nil {
		return err
	}

	unlock := r.locks.Lock(e.Room)
	defer unlock()

	if !r.registry.IsMember(e.Room, s.ID) {
		return domain.ErrNotInRoom
	}
	if !r.presence.Stop(e.Room, name) {
		return nil
	}
	return r.broadcaster.Publish(ctx, e.Room, domain.NewResponse(domain.StopTyping, name), s.ID)
}

func (r *Relay) leave(ctx context.Context, s *Session, e domain.LeaveRoomEvent) error {
	unlock := r.locks.Lock(e.Room)
	defer unlock()

	if !r.registry.Leave(e.Room, s.ID) {
		return domain.ErrNotInRoom
	}
	for _, t := range r.presence.RemoveSessionInRoom(e.Room, s.ID) {
		r.publishStopTyping(ctx, t)
	}
	logger.Log.Info("leave room", zap.String("session", s.ID), zap.String("room", e.Room))
	return nil
}

// Disconnect drop s from every room and clear its typing entries
func (r *Relay) Disconnect(ctx context.Context, s *Session) {
	s.Close()

	rooms := r.registry.RemoveSession(s.ID)
	for _, room := range rooms {
		unlock := r.locks.Lock(room)
		for _, t := range r.presence.RemoveSessionInRoom(room, s.ID) {
			r.publishStopTyping(ctx, t)
		}
		unlock()
	}
	logger.Log.Info("session disconnected", zap.String("session", s.ID), zap.Strings("rooms", rooms))
}

// Run expire typing entries every TypingSweep until ctx is done
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.TypingSweep)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Sweep broadcast stopTyping for every entry past its deadline. Each room is
// expired under its lock so a refresh racing the sweep is never undone.
func (r *Relay) Sweep(ctx context.Context) {
	for _, room := range r.presence.Rooms() {
		unlock := r.locks.Lock(room)
		for _, t := range r.presence.ExpireRoom(room, r.now()) {
			r.publishStopTyping(ctx, t)
		}
		unlock()
	}
}

// Typing sorted usernames currently typing in room
func (r *Relay) Typing(room string) []string {
	return r.presence.Typing(room)
}

// publishStopTyping caller holds the room lock
func (r *Relay) publishStopTyping(ctx context.Context, t TypingEntry) {
	if err := r.broadcaster.Publish(ctx, t.Room, domain.NewResponse(domain.StopTyping, t.Username), t.SessionID); err != nil {
		logger.Log.Error("broadcast stopTyping failed", zap.String("room", t.Room), zap.Error(err))
	}
}

// speaker name s uses in notices and typing events, a verified token name
// wins over the claimed one
func speaker(s *Session, claimed string) (string, error) {
	name := s.DisplayName(claimed)
	if name == "" {
		return "", fmt.Errorf("%w: username is required", domain.ErrInvalidEvent)
	}
	return name, nil
}

func (r *Relay) reject(s *Session, action domain.Action, err error) {
	if errors.Is(err, domain.ErrInvalidEvent) {
		logger.Log.Warn("invalid client event", zap.String("session", s.ID), zap.String("action", string(action)), zap.Error(err))
	} else {
		logger.Log.Info("client event rejected", zap.String("session", s.ID), zap.String("action", string(action)), zap.Error(err))
	}

	frame, encErr := domain.NewErrorResponse(action, err).Encode()
	if encErr != nil {
		return
	}
	if !s.Enqueue(frame) && !s.Closed() {
		s.Close()
	}
}
