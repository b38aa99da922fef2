package usercontext

import "github.com/gofiber/fiber/v2"

// UserContext carries the resolved session state for one request: who the
// user is and which account (tenant) they are acting in. The role comes
// from their membership in that account.
type UserContext struct {
	UserID     uint   `json:"user_id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	IsLoggedIn bool   `json:"is_logged_in"`
	AccountID  uint   `json:"account_id"`
	Role       string `json:"role"`
}

// GetUserContext retrieves the user context from fiber context.
// Returns an anonymous context if none is set.
func GetUserContext(c *fiber.Ctx) UserContext {
	if ctx := c.Locals(KeyContext); ctx != nil {
		if uc, ok := ctx.(UserContext); ok {
			return uc
		}
	}
	return UserContext{}
}

// SetUserContext stores the user context on the request.
func SetUserContext(c *fiber.Ctx, uc UserContext) {
	c.Locals(KeyContext, uc)
}

// IsLoggedIn checks if the current user is logged in.
func IsLoggedIn(c *fiber.Ctx) bool {
	return GetUserContext(c).IsLoggedIn
}

// GetUserID returns the current user's ID, or 0 if not logged in.
func GetUserID(c *fiber.Ctx) uint {
	return GetUserContext(c).UserID
}

// GetAccountID returns the active account id, or 0 when no account is
// selected.
func GetAccountID(c *fiber.Ctx) uint {
	return GetUserContext(c).AccountID
}

// GetRole returns the membership role in the active account.
func GetRole(c *fiber.Ctx) string {
	return GetUserContext(c).Role
}
