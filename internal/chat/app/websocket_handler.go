package app

import (
	"context"
	"time"

	"tour_chat_service/internal/chat/domain"
	"tour_chat_service/pkg/config"
	"tour_chat_service/pkg/logger"
	"tour_chat_service/pkg/middlewares"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

// wsConn the part of *websocket.Conn the handler drives
type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// ChatWebsocketHandler bridges websocket connections to the relay
type ChatWebsocketHandler struct {
	relay *Relay
	cfg   config.RelayConfig
}

// NewChatWebsocketHandler create ChatWebsocketHandler
func NewChatWebsocketHandler(relay *Relay, cfg config.RelayConfig) *ChatWebsocketHandler {
	return &ChatWebsocketHandler{relay: relay, cfg: cfg}
}

// HandleConnection is the entry of a websocket connection, it returns after
// the connection is closed and its writer has stopped
func (h *ChatWebsocketHandler) HandleConnection(ctx context.Context, conn *websocket.Conn) {
	email := middlewares.LocalString(conn.Locals(middlewares.TokenEmail))
	name := middlewares.LocalString(conn.Locals(middlewares.TokenName))

	identity := domain.Identity{Name: name, Email: email}
	h.serve(ctx, conn, identity, email != "")
}

func (h *ChatWebsocketHandler) serve(ctx context.Context, conn wsConn, identity domain.Identity, verified bool) {
	s := h.relay.Connect(identity, verified)

	conn.SetReadLimit(h.cfg.MaxMessageBytes)
	_ = conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writePump(conn, s)
	}()

	defer func() {
		h.relay.Disconnect(ctx, s)
		<-writerDone
		_ = conn.Close()
	}()

	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) && !s.Closed() {
				logger.Log.Warn("websocket read error", zap.String("session", s.ID), zap.Error(err))
			} else {
				logger.Log.Debug("websocket closed", zap.String("session", s.ID), zap.Error(err))
			}
			return
		}

		if mt != websocket.TextMessage {
			h.relay.reject(s, "", errUnsupportedFrame)
			continue
		}
		h.relay.Dispatch(ctx, s, message)
	}
}

// writePump the only writer of conn: queued frames and keepalive pings
func (h *ChatWebsocketHandler) writePump(conn wsConn, s *Session) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame := <-s.Outbound():
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				logger.Log.Debug("websocket write failed", zap.String("session", s.ID), zap.Error(err))
				s.Close()
				_ = conn.Close()
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.Close()
				_ = conn.Close()
				return
			}

		case <-s.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			// unblocks the reader when the session was evicted
			_ = conn.Close()
			return
		}
	}
}
