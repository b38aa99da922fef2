package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/cornerstone-hq/cornerstone/app/models"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/metrics/counter"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/usercontext"
)

// RequireAuth ensures a logged-in session and returns JSON 401 otherwise.
func RequireAuth(c *fiber.Ctx) error {
	if !usercontext.IsLoggedIn(c) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "login required",
		})
	}
	return c.Next()
}

// RequireAccount ensures an active account is selected on top of RequireAuth.
func RequireAccount(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	if !uc.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "login required",
		})
	}
	if uc.AccountID == 0 {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "no_account",
			"message": "select an account first",
		})
	}

	// Usage metering is best effort; a Redis hiccup must not fail requests.
	if err := counter.AddUsage("api_requests", uc.AccountID); err != nil {
		log.Debugf("usage counter: %v", err)
	}
	return c.Next()
}

// RequireMemberManager restricts a route to owners and admins of the active
// account.
func RequireMemberManager(c *fiber.Ctx) error {
	m := models.Membership{Role: usercontext.GetRole(c)}
	if !m.CanManageMembers() {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "forbidden",
			"message": "owner or admin role required",
		})
	}
	return c.Next()
}

// RequireBillingManager restricts a route to owners of the active account.
func RequireBillingManager(c *fiber.Ctx) error {
	m := models.Membership{Role: usercontext.GetRole(c)}
	if !m.CanManageBilling() {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "forbidden",
			"message": "owner role required",
		})
	}
	return c.Next()
}
