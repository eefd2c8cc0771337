package handler

import (
	"github.com/gofiber/fiber/v2"
)

const (
	corsAllowMethods = "POST, OPTIONS"
	corsAllowHeaders = "Content-Type, X-Api-Key"
	corsMaxAge       = "86400"
)

// CORS marks every response as readable from any origin and answers
// preflight requests itself with an empty 200.
func CORS() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderAccessControlAllowOrigin, "*")

		if c.Method() != fiber.MethodOptions {
			return c.Next()
		}

		c.Set(fiber.HeaderAccessControlAllowMethods, corsAllowMethods)
		c.Set(fiber.HeaderAccessControlAllowHeaders, corsAllowHeaders)
		c.Set(fiber.HeaderAccessControlMaxAge, corsMaxAge)
		return c.Status(fiber.StatusOK).Send(nil)
	}
}
