package middleware

import (
	"strings"

	"boop/server/internal/utils"

	"github.com/gofiber/fiber/v2"
)

// UserIDKey is the fiber Locals key holding the authenticated user id
const UserIDKey = "userID"

// tokenFrom reads the token from the Authorization header, the token query
// parameter (browsers cannot set headers on websocket upgrades) or the
// token cookie, in that order.
func tokenFrom(c *fiber.Ctx) string {
	if h := c.Get(fiber.HeaderAuthorization); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if token := c.Query("token"); token != "" {
		return token
	}
	return c.Cookies("token")
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"success": false,
		"error":   msg,
	})
}

// Auth validates the JWT and stores the user id in the context
func Auth(secret []byte) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := tokenFrom(c)
		if tokenString == "" {
			return unauthorized(c, "Unauthorized - No token provided")
		}

		claims, err := utils.ValidateToken(secret, tokenString)
		if err != nil {
			return unauthorized(c, "Unauthorized - Invalid token")
		}

		c.Locals(UserIDKey, claims.UserID)
		return c.Next()
	}
}

// OptionalAuth lets requests without a token through anonymously. A token
// that is present must still be valid.
func OptionalAuth(secret []byte) fiber.Handler {
	auth := Auth(secret)
	return func(c *fiber.Ctx) error {
		if tokenFrom(c) == "" {
			return c.Next()
		}
		return auth(c)
	}
}

// GetUserID gets user ID from context
func GetUserID(c *fiber.Ctx) string {
	userID, ok := c.Locals(UserIDKey).(string)
	if !ok {
		return ""
	}
	return userID
}
