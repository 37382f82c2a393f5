package middleware

import (
	"context"
	"errors"
	"strings"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	"github.com/clerk/clerk-sdk-go/v2/jwt"
	"github.com/gofiber/fiber/v3"
)

// TokenVerifier checks a session token and returns its Clerk subject
type TokenVerifier func(ctx context.Context, token string) (string, error)

var errMissingSecretKey = errors.New("clerk secret key is not configured")

// ClerkVerifier verifies tokens against Clerk with the given secret key
func ClerkVerifier(secretKey string) TokenVerifier {
	clerk.SetKey(secretKey)

	return func(ctx context.Context, token string) (string, error) {
		if secretKey == "" {
			return "", errMissingSecretKey
		}
		claims, err := jwt.Verify(ctx, &jwt.VerifyParams{
			Token: token,
		})
		if err != nil {
			return "", err
		}
		return claims.Subject, nil
	}
}

// ClerkAuth middleware validates bearer tokens with verify
func ClerkAuth(verify TokenVerifier) fiber.Handler {
	return func(c fiber.Ctx) error {
		// Get token from Authorization header
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing authorization token",
			})
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader || token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid authorization header format",
			})
		}

		subject, err := verify(c.Context(), token)
		if err != nil {
			if errors.Is(err, errMissingSecretKey) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "Server misconfiguration: CLERK_SECRET_KEY not set",
				})
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		// Store user ID in context for use in handlers
		c.Locals("user_id", subject)
		c.Locals("clerk_user_id", subject)

		return c.Next()
	}
}
