package router

import (
	"context"

	"vanish_chat_service/internal/chat/app"
	"vanish_chat_service/pkg/config"
	"vanish_chat_service/pkg/middlewares"
	"vanish_chat_service/pkg/token"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// RegisterRoutes register the chat session routes
func RegisterRoutes(r *fiber.App, chatWebsocket *app.ChatWebsocketHandler) {
	r.Get("/health", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	// local runs mint their own tokens, production gets them from the
	// account service
	if config.IsLocal() {
		r.Get("/token", func(c *fiber.Ctx) error {
			userID := c.Query("user")
			if userID == "" {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "missing user",
				})
			}
			t, err := token.GenerateJWTFunc(userID, "user", "chat_service")
			if err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": err.Error(),
				})
			}
			return c.JSON(fiber.Map{"token": t})
		})
	}

	r.Use(middlewares.JWTMiddleware())

	r.Get("/ws", websocket.New(func(c *websocket.Conn) {
		chatWebsocket.HandleConnection(context.Background(), c)
	}))
}
