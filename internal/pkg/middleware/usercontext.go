package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/cornerstone-hq/cornerstone/app/models"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/database"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/session"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/usercontext"
)

// UserContextMiddleware resolves the session into a UserContext for every
// request: user identity plus the active account and the caller's role in
// it. Controllers read the context instead of touching the session store.
func UserContextMiddleware(c *fiber.Ctx) error {
	// Goth uses its own fiber session store on OAuth routes; skip ours there
	// to prevent cross-store collisions.
	if strings.HasPrefix(c.Path(), "/auth/") {
		return c.Next()
	}

	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		usercontext.SetUserContext(c, usercontext.UserContext{})
		return c.Next()
	}

	userID, ok := sess.Get(usercontext.KeyUserID).(uint)
	if !ok || userID == 0 {
		usercontext.SetUserContext(c, usercontext.UserContext{})
		return c.Next()
	}

	uc := usercontext.UserContext{
		UserID:     userID,
		Email:      session.GetSessionValue(c, usercontext.KeyUserEmail),
		Name:       session.GetSessionValue(c, usercontext.KeyUserName),
		IsLoggedIn: true,
	}

	if accountID, ok := sess.Get(usercontext.KeyCurrentAccountID).(uint); ok && accountID != 0 {
		if role := membershipRole(accountID, userID); role != "" {
			uc.AccountID = accountID
			uc.Role = role
		}
	}

	usercontext.SetUserContext(c, uc)
	return c.Next()
}

// membershipRole loads the caller's accepted role in the account, "" when
// the membership is gone (revoked mid-session).
func membershipRole(accountID, userID uint) string {
	db := database.GetDB()
	if db == nil {
		return ""
	}
	var m models.Membership
	err := db.Where("account_id = ? AND user_id = ? AND accepted_at IS NOT NULL", accountID, userID).
		First(&m).Error
	if err != nil {
		return ""
	}
	return m.Role
}
