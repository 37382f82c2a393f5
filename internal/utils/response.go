package utils

import "github.com/gofiber/fiber/v3"

// SuccessResponse sends a standardized success response
func SuccessResponse(c fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

// ErrorResponse sends a standardized error response
func ErrorResponse(c fiber.Ctx, statusCode int, message string) error {
	return c.Status(statusCode).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}

// PaginatedResponse sends a limit/offset page
func PaginatedResponse(c fiber.Ctx, data any, limit, offset, total int) error {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
		"pagination": fiber.Map{
			"limit":  limit,
			"offset": offset,
			"total":  total,
			"pages":  pages,
		},
	})
}
