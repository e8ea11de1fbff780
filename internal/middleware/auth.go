package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/openbrgy/portal/internal/config"
	"github.com/openbrgy/portal/internal/models"
	"github.com/openbrgy/portal/internal/services"
	"github.com/openbrgy/portal/internal/types"
	"gorm.io/gorm"
)

// userKey is the Locals slot holding the authenticated *models.User.
const userKey = "user"

// RequireAuth validates the bearer token and loads the account behind it.
// The user record is reloaded on every request so deactivation and guest
// expiry take effect immediately, not at token expiry.
func RequireAuth(cfg *config.Config, db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(header, "Bearer ") {
			return types.AuthError("missing bearer token")
		}
		claims, err := services.ParseToken(cfg, strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			return err
		}
		user, err := services.GetActiveUser(db, claims.Subject)
		if err != nil {
			return err
		}
		c.Locals(userKey, user)
		return c.Next()
	}
}

// RequireRoles restricts a route to the given roles. Must run after RequireAuth.
func RequireRoles(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		if user == nil {
			return types.AuthError("not authenticated")
		}
		for _, role := range roles {
			if user.Role == role {
				return c.Next()
			}
		}
		return types.ForbiddenError("insufficient role")
	}
}

// CurrentUser returns the authenticated user set by RequireAuth, or nil.
func CurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(userKey).(*models.User)
	return user
}
