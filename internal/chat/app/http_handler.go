package app

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	"tour_chat_service/internal/chat/domain"
	"tour_chat_service/pkg/logger"
	"tour_chat_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ChatHTTPHandler REST side of the chat service
type ChatHTTPHandler struct {
	messages *SendMessageUseCase
	groups   *GroupUseCase
	guard    RoomGuard
}

// NewChatHTTPHandler create ChatHTTPHandler, posting to a room passes the same
// guard as joining it
func NewChatHTTPHandler(messages *SendMessageUseCase, groups *GroupUseCase, guard RoomGuard) *ChatHTTPHandler {
	if guard == nil {
		guard = NewOpenGuard()
	}
	return &ChatHTTPHandler{messages: messages, groups: groups, guard: guard}
}

// ConnectCheck health check
// @Summary Health check
// @Tags Chat
// @Produce plain
// @Success 200 {string} string "chat service is running"
// @Router / [get]
func (h *ChatHTTPHandler) ConnectCheck(c *fiber.Ctx) error {
	return c.SendString("chat service is running")
}

// DebugLogFlag switch debug logging with ?status=true|false
// @Summary Toggle debug logging
// @Tags Chat
// @Produce json
// @Param status query bool true "debug on or off"
// @Success 200 {object} map[string]bool
// @Failure 400 {object} map[string]string
// @Router /debug [post]
func (h *ChatHTTPHandler) DebugLogFlag(c *fiber.Ctx) error {
	status, err := strconv.ParseBool(c.Query("status"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "status must be true or false"})
	}
	logger.Log.SetDebugMode(status)
	logger.Log.Info("debug log switched", zap.Bool("debug", status))
	return c.JSON(fiber.Map{"debug": status})
}

// ListMessages GET /api/rooms/:room/messages
// @Summary Room history
// @Description Every stored message of a tour room in insertion order
// @Tags Chat
// @Produce json
// @Param room path string true "tour name"
// @Param auth query string false "auth token"
// @Success 200 {array} domain.Message
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/rooms/{room}/messages [get]
func (h *ChatHTTPHandler) ListMessages(c *fiber.Ctx) error {
	room, err := roomParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	msgs, err := h.messages.History(c.UserContext(), room)
	if err != nil {
		logger.Log.Error("list messages failed", zap.String("room", room), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load messages"})
	}
	return c.JSON(msgs)
}

// PostMessage POST /api/rooms/:room/messages, persists then broadcasts like a socket send
// @Summary Send a message
// @Description Passes the room guard, stores the message and broadcasts it to the room
// @Tags Chat
// @Accept json
// @Produce json
// @Param room path string true "tour name"
// @Param auth query string false "auth token"
// @Param request body domain.MessagePayload true "message"
// @Success 201 {object} domain.Message
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/rooms/{room}/messages [post]
func (h *ChatHTTPHandler) PostMessage(c *fiber.Ctx) error {
	room, err := roomParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var payload domain.MessagePayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid message body"})
	}

	identity := domain.Identity{
		Name:  middlewares.LocalString(c.Locals(middlewares.TokenName)),
		Email: middlewares.LocalString(c.Locals(middlewares.TokenEmail)),
	}
	verified := identity.Email != ""

	ok, err := h.guard.CanJoin(c.UserContext(), identity, verified, room)
	if err != nil {
		logger.Log.Error("check room access failed", zap.String("room", room), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to check room access"})
	}
	if !ok {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": domain.ErrNotEligible.Error()})
	}

	msg := payload.ToMessage(room)
	if verified {
		msg.SenderEmail = identity.Email
		if identity.Name != "" {
			msg.Name = identity.Name
		}
	}

	stored, err := h.messages.Execute(c.UserContext(), room, msg)
	switch {
	case errors.Is(err, domain.ErrEmptyText), errors.Is(err, domain.ErrTextTooLong):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to store message"})
	}
	return c.Status(fiber.StatusCreated).JSON(stored)
}

// ListGroups GET /api/groups, the caller's paid bookings as chat groups
// @Summary Paid booking groups
// @Description Token email wins over the email query
// @Tags Chat
// @Produce json
// @Param email query string false "traveller email"
// @Param auth query string false "auth token"
// @Success 200 {array} domain.Group
// @Failure 401 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/groups [get]
func (h *ChatHTTPHandler) ListGroups(c *fiber.Ctx) error {
	email := middlewares.LocalString(c.Locals(middlewares.TokenEmail))
	if email == "" {
		email = strings.TrimSpace(c.Query("email"))
	}

	groups, err := h.groups.Groups(c.UserContext(), email)
	if err != nil {
		logger.Log.Error("list groups failed", zap.String("email", email), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load groups"})
	}
	return c.JSON(groups)
}

func roomParam(c *fiber.Ctx) (string, error) {
	room, err := url.PathUnescape(c.Params("room"))
	if err != nil {
		return "", errors.New("invalid room")
	}
	room = strings.TrimSpace(room)
	if room == "" {
		return "", errors.New("room is required")
	}
	return room, nil
}
