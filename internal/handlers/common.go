package handlers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/ashmitsharp/finlens-api/internal/ledger"
	"github.com/ashmitsharp/finlens-api/internal/models"
	"github.com/ashmitsharp/finlens-api/internal/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

// UserLookup finds the local user behind a Clerk subject
type UserLookup interface {
	UserByClerkID(ctx context.Context, clerkUserID string) (models.User, error)
}

// currentUserID looks up the user's database UUID from their Clerk ID
func currentUserID(c fiber.Ctx, users UserLookup) (uuid.UUID, error) {
	clerkUserID, ok := c.Locals("clerk_user_id").(string)
	if !ok || clerkUserID == "" {
		return uuid.Nil, utils.NewUnauthorizedError("unauthorized - user not authenticated")
	}

	user, err := users.UserByClerkID(c.Context(), clerkUserID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return uuid.Nil, utils.NewNotFoundError("User")
		}
		return uuid.Nil, err
	}
	return user.ID, nil
}

// pathID parses the :name route parameter as a UUID
func pathID(c fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, utils.NewBadRequestError("Invalid "+name, c.Params(name))
	}
	return id, nil
}

// queryInt reads an integer query parameter, falling back to def when absent
func queryInt(c fiber.Ctx, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, utils.NewBadRequestError("Invalid "+key+" parameter", raw)
	}
	return v, nil
}

// queryDate reads a YYYY-MM-DD query parameter. Absent yields the zero time.
func queryDate(c fiber.Ctx, key string) (time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return time.Time{}, nil
	}
	d, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, utils.NewBadRequestError("Invalid "+key+" date format, expected YYYY-MM-DD", raw)
	}
	return d, nil
}

func badBody() error {
	return utils.NewBadRequestError("Invalid request body", nil)
}
