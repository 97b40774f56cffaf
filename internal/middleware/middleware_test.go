package middleware

import (
	"github.com/gofiber/fiber/v2"
)

func fiberApp() *fiber.App {
	return fiber.New()
}

func okHandler(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusOK)
}
