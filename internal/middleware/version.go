package middleware

import (
	"github.com/gofiber/fiber/v2"
)

const versionLocal = "apiVersion"

// APIVersion returns the version negotiated for the current request, or the
// default when the version middleware did not run.
func APIVersion(c *fiber.Ctx) string {
	if v, ok := c.Locals(versionLocal).(string); ok {
		return v
	}
	return "1.0.0"
}

// VersionMiddleware normalizes the X-Api-Version request header and echoes
// the negotiated version back on the response.
func VersionMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		version := c.Get("X-Api-Version", "1.0.0")

		// Support version aliases
		if version == "1.0" {
			version = "1.0.0"
		}

		c.Locals(versionLocal, version)
		c.Set("X-Api-Version", version)

		return c.Next()
	}
}
