package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/eshop/internal/config"
	"github.com/example/eshop/internal/models"
	"github.com/example/eshop/internal/utils"
)

const userContextKey = "currentUserID"

// AuthMiddleware validates JWT tokens and loads the authenticated user ID into context.
func AuthMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get(fiber.HeaderAuthorization) == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing authorization header")
		}
		return authenticate(c, cfg)
	}
}

// OptionalAuth loads the user when a token is sent and lets anonymous
// requests through. A malformed or expired token is still rejected.
func OptionalAuth(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get(fiber.HeaderAuthorization) == "" {
			return c.Next()
		}
		return authenticate(c, cfg)
	}
}

func authenticate(c *fiber.Ctx, cfg *config.Config) error {
	parts := strings.SplitN(c.Get(fiber.HeaderAuthorization), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid authorization header")
	}

	userID, _, err := utils.ParseToken(cfg.JWTSecret, parts[1])
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
	}

	c.Locals(userContextKey, userID)
	return c.Next()
}

// AdminOnly requires an authenticated, active staff account. It must run
// after AuthMiddleware. The staff flag is read from the database so that
// revoking it takes effect before the token expires.
func AdminOnly(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := GetCurrentUserID(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
		}

		var user models.User
		if err := db.WithContext(c.UserContext()).Select("id", "is_staff", "is_active").
			First(&user, "id = ?", userID).Error; err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
		}
		if !user.IsActive || !user.IsStaff {
			return fiber.NewError(fiber.StatusForbidden, "staff access required")
		}
		return c.Next()
	}
}

// GetCurrentUserID extracts the authenticated user ID from context.
func GetCurrentUserID(c *fiber.Ctx) (uuid.UUID, bool) {
	id, ok := c.Locals(userContextKey).(uuid.UUID)
	return id, ok
}

// CurrentUserPtr returns the authenticated user ID or nil for anonymous requests.
func CurrentUserPtr(c *fiber.Ctx) *uuid.UUID {
	if id, ok := GetCurrentUserID(c); ok {
		return &id
	}
	return nil
}
