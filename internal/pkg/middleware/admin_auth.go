package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"golang.org/x/crypto/bcrypt"

	"github.com/ManuelReschke/CoachDesk/internal/pkg/config"
)

// RequireAdmin protects the back office with HTTP basic auth. The password is
// checked against a bcrypt hash. Without a configured hash every request is
// refused.
func RequireAdmin(cfg config.AdminConfig) fiber.Handler {
	if cfg.PasswordHash == "" {
		log.Warn("[Auth] ADMIN_PASSWORD_HASH is not set, admin routes are disabled")
	}
	return basicauth.New(basicauth.Config{
		Realm: "CoachDesk Admin",
		Authorizer: func(user, pass string) bool {
			return checkAdmin(cfg, user, pass)
		},
		Unauthorized: func(c *fiber.Ctx) error {
			c.Set(fiber.HeaderWWWAuthenticate, `Basic realm="CoachDesk Admin"`)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "unauthorized",
				"message": "admin login required",
			})
		},
	})
}

func checkAdmin(cfg config.AdminConfig, user, pass string) bool {
	if cfg.PasswordHash == "" {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(cfg.User)) == 1
	passOK := bcrypt.CompareHashAndPassword([]byte(cfg.PasswordHash), []byte(pass)) == nil
	return userOK && passOK
}
