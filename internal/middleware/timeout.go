package middleware

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// StoreTimeout bounds the request context handed to the services.
func StoreTimeout(d time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if d <= 0 {
			return c.Next()
		}
		ctx, cancel := context.WithTimeout(c.UserContext(), d)
		defer cancel()

		c.SetUserContext(ctx)
		return c.Next()
	}
}
