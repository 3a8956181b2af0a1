/**
 * @description
 * Authentication middleware for session access tokens.
 * Validates Bearer tokens issued by the identity store.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2: HTTP Context
 * - backend/internal/identity: token validation
 */

package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/snapnbuy/backend/internal/identity"
)

// Protected guards routes requiring an authenticated session.
func Protected(store *identity.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing authorization header"})
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token format"})
		}

		userID, err := store.ParseAccessToken(tokenString)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
		}

		c.Locals("user_id", userID)
		return c.Next()
	}
}

// GetUserID returns the authenticated user's ID from context.
func GetUserID(c *fiber.Ctx) (uuid.UUID, error) {
	id, ok := c.Locals("user_id").(uuid.UUID)
	if !ok {
		return uuid.Nil, errors.New("user id not found in context")
	}
	return id, nil
}
