package utils

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/ashmitsharp/finlens-api/internal/services"
	"github.com/gofiber/fiber/v3"
)

type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"error"`
	Details    any    `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

func NewBadRequestError(message string, details any) *APIError {
	return &APIError{
		StatusCode: fiber.StatusBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
		Details:    details,
	}
}

func NewUnauthorizedError(message string) *APIError {
	return &APIError{
		StatusCode: fiber.StatusUnauthorized,
		Code:       "UNAUTHORIZED",
		Message:    message,
	}
}

func NewNotFoundError(resource string) *APIError {
	return &APIError{
		StatusCode: fiber.StatusNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
	}
}

func NewInternalError(err error) *APIError {
	return &APIError{
		StatusCode: fiber.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    "An internal error occurred",
		Details:    err.Error(), // Only in development
	}
}

// FromDomainError maps a service error to its HTTP status. Errors that are
// not domain errors become a generic 500.
func FromDomainError(err error) *APIError {
	de, ok := services.AsDomainError(err)
	if !ok {
		return NewInternalError(err)
	}

	status := fiber.StatusInternalServerError
	switch de.Kind {
	case services.KindValidation:
		status = fiber.StatusBadRequest
	case services.KindNotFound:
		status = fiber.StatusNotFound
	case services.KindState:
		status = fiber.StatusUnprocessableEntity
	case services.KindConflict:
		status = fiber.StatusConflict
	}
	return &APIError{StatusCode: status, Code: de.Code, Message: de.Message}
}

// NewErrorHandler returns the fiber error handler. Internal error details are
// only sent when exposeDetails is set.
func NewErrorHandler(logger *slog.Logger, exposeDetails bool) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		var apiErr *APIError
		var fiberErr *fiber.Error
		switch {
		case errors.As(err, &apiErr):
		case errors.As(err, &fiberErr):
			apiErr = &APIError{StatusCode: fiberErr.Code, Code: "HTTP_ERROR", Message: fiberErr.Message}
		default:
			apiErr = FromDomainError(err)
		}

		if apiErr.StatusCode >= fiber.StatusInternalServerError {
			logger.ErrorContext(c.Context(), "Request failed",
				"method", c.Method(),
				"path", c.Path(),
				"error", err)
			if !exposeDetails {
				apiErr = &APIError{StatusCode: apiErr.StatusCode, Code: apiErr.Code, Message: apiErr.Message}
			}
		}

		body := fiber.Map{
			"success": false,
			"code":    apiErr.Code,
			"error":   apiErr.Message,
		}
		if apiErr.Details != nil {
			body["details"] = apiErr.Details
		}
		return c.Status(apiErr.StatusCode).JSON(body)
	}
}
