package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/bloomstem/internal/utils"
)

const principalContextKey = "principal"

// Principal is the customer verified by a bearer token.
type Principal struct {
	CustomerID string
	Name       string
}

// Authenticate validates an optional bearer token and stores the principal in context.
// Requests without an Authorization header pass through anonymously.
func Authenticate(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Next()
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid authorization header")
		}

		claims, err := utils.ParseToken(secret, strings.TrimSpace(parts[1]))
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}

		c.Locals(principalContextKey, Principal{CustomerID: claims.CustomerID, Name: claims.Name})
		return c.Next()
	}
}

// CurrentPrincipal extracts the verified principal from context.
func CurrentPrincipal(c *fiber.Ctx) (Principal, bool) {
	p, ok := c.Locals(principalContextKey).(Principal)
	return p, ok
}

// ResolveCustomerID reconciles the principal with a client-supplied customer id. With a
// principal the token wins and a different claimed id is rejected; without one the claimed
// id is used unverified.
func ResolveCustomerID(c *fiber.Ctx, claimed string) (id string, verified bool, err error) {
	claimed = strings.TrimSpace(claimed)

	p, ok := CurrentPrincipal(c)
	if !ok {
		return claimed, false, nil
	}
	if claimed != "" && claimed != p.CustomerID {
		return "", false, fiber.NewError(fiber.StatusUnauthorized, "customer id does not match token")
	}
	return p.CustomerID, true, nil
}
