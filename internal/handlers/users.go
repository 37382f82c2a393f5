package handlers

import (
	"errors"

	"github.com/ashmitsharp/finlens-api/internal/ledger"
	"github.com/gofiber/fiber/v3"
)

type UsersHandler struct {
	users ledger.Users
}

func NewUsersHandler(users ledger.Users) *UsersHandler {
	return &UsersHandler{users: users}
}

type CreateUserRequest struct {
	ClerkUserID string  `json:"clerk_user_id"`
	Email       string  `json:"email"`
	FullName    *string `json:"full_name"`
}

type UpdateUserRequest struct {
	Email    string  `json:"email"`
	FullName *string `json:"full_name"`
}

// CreateUser creates or refreshes a user (called by Clerk webhook)
func (h *UsersHandler) CreateUser(c fiber.Ctx) error {
	var req CreateUserRequest
	if err := c.Bind().JSON(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.ClerkUserID == "" || req.Email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "clerk_user_id and email are required",
		})
	}

	user, err := h.users.UpsertUser(c.Context(), req.ClerkUserID, req.Email, req.FullName)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

// UpdateUser updates an existing user (called by Clerk webhook)
func (h *UsersHandler) UpdateUser(c fiber.Ctx) error {
	clerkUserID := c.Params("id")
	if clerkUserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user id is required",
		})
	}

	var req UpdateUserRequest
	if err := c.Bind().JSON(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "email is required",
		})
	}

	user, err := h.users.UpdateUser(c.Context(), clerkUserID, req.Email, req.FullName)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "User not found",
			})
		}
		return err
	}
	return c.JSON(user)
}

// GetUser retrieves the authenticated user
func (h *UsersHandler) GetUser(c fiber.Ctx) error {
	clerkUserID, _ := c.Locals("clerk_user_id").(string)

	user, err := h.users.UserByClerkID(c.Context(), clerkUserID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "User not found",
			})
		}
		return err
	}
	return c.JSON(user)
}
