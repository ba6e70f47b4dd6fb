package router

import (
	"context"

	_ "tour_chat_service/docs"
	"tour_chat_service/internal/chat/app"
	"tour_chat_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/swagger"
	"github.com/gofiber/websocket/v2"
)

//go:generate swag init -g internal/chat/router/router.go -d ../../../ -o ../../../docs

// RegisterRoutes register the chat REST api and the websocket endpoint
// @title Tour Chat Service API
// @version 1.0
// @description Chat rooms for tour groups. The websocket relay lives at /ws.
// @host localhost:3000
// @BasePath /
func RegisterRoutes(r *fiber.App, chatHTTP *app.ChatHTTPHandler, chatWebsocket *app.ChatWebsocketHandler, authRequired bool) {
	r.Use(cors.New())

	r.Get("/swagger/*", swagger.HandlerDefault)

	r.Get("/", chatHTTP.ConnectCheck)
	r.Post("/debug", chatHTTP.DebugLogFlag)

	api := r.Group("/api", middlewares.JWTMiddleware(authRequired))
	api.Get("/rooms/:room/messages", chatHTTP.ListMessages)
	api.Post("/rooms/:room/messages", chatHTTP.PostMessage)
	api.Get("/groups", chatHTTP.ListGroups)

	r.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	r.Get("/ws", middlewares.JWTMiddleware(authRequired), websocket.New(func(c *websocket.Conn) {
		chatWebsocket.HandleConnection(context.Background(), c)
	}))
}
