package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/bloomstem/internal/utils"
)

const secret = "test-secret"

func newApp() *fiber.App {
	app := fiber.New()
	app.Use(Authenticate(secret))
	app.Get("/whoami", func(c *fiber.Ctx) error {
		id, verified, err := ResolveCustomerID(c, c.Query("customerId"))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"id": id, "verified": verified})
	})
	return app
}

func TestAuthenticate(t *testing.T) {
	app := newApp()
	token, err := utils.GenerateToken(secret, "1001", "Анна", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{name: "anonymous", query: "?customerId=7", status: fiber.StatusOK},
		{name: "token", header: "Bearer " + token, status: fiber.StatusOK},
		{name: "token with same id", header: "Bearer " + token, query: "?customerId=1001", status: fiber.StatusOK},
		{name: "token with other id", header: "Bearer " + token, query: "?customerId=7", status: fiber.StatusUnauthorized},
		{name: "bad scheme", header: "Basic abc", status: fiber.StatusUnauthorized},
		{name: "bad token", header: "Bearer nope", status: fiber.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/whoami"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestStoreTimeoutSetsDeadline(t *testing.T) {
	app := fiber.New()
	app.Use(StoreTimeout(time.Second))
	var hasDeadline bool
	app.Get("/", func(c *fiber.Ctx) error {
		_, hasDeadline = c.UserContext().Deadline()
		return nil
	})

	_, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.True(t, hasDeadline)
}
