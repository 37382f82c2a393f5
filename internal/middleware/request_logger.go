package middleware

import (
	"errors"
	"log/slog"
	"time"

	"github.com/ashmitsharp/finlens-api/internal/logging"
	"github.com/ashmitsharp/finlens-api/internal/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
)

// RequestLogger logs one line per request. Server errors log at error level,
// client errors at warn, everything else at info.
func RequestLogger(logger *slog.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = statusOf(err)
		}

		attrs := []any{
			logging.FieldRequestID, requestid.FromContext(c),
			logging.FieldMethod, c.Method(),
			logging.FieldPath, c.Path(),
			logging.FieldStatusCode, status,
			logging.FieldDuration, time.Since(start).Milliseconds(),
			logging.FieldClientIP, c.IP(),
		}
		if clerkUserID, ok := c.Locals("clerk_user_id").(string); ok {
			attrs = append(attrs, "clerk_user_id", clerkUserID)
		}

		switch {
		case status >= fiber.StatusInternalServerError:
			logger.ErrorContext(c.Context(), "Request completed", attrs...)
		case status >= fiber.StatusBadRequest:
			logger.WarnContext(c.Context(), "Request completed", attrs...)
		default:
			logger.InfoContext(c.Context(), "Request completed", attrs...)
		}
		return err
	}
}

// statusOf predicts the status the error handler will answer with, it has not
// written the response yet
func statusOf(err error) int {
	var apiErr *utils.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return utils.FromDomainError(err).StatusCode
}
