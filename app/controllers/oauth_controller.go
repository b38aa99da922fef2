package controllers

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	gothfiber "github.com/shareed2k/goth_fiber"

	"github.com/cornerstone-hq/cornerstone/app/models"
	"github.com/cornerstone-hq/cornerstone/app/repository"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/database"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/memberships"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/notifications"
)

// HandleOAuthBegin redirects to the provider's consent screen.
func HandleOAuthBegin(c *fiber.Ctx) error {
	return gothfiber.BeginAuthHandler(c)
}

// HandleOAuthCallback completes the provider flow and logs the user in,
// creating an account-less user on first sight of the email.
func HandleOAuthCallback(c *fiber.Ctx) error {
	gothUser, err := gothfiber.CompleteUserAuth(c)
	if err != nil {
		log.Warnf("[OAuth] callback failed: %v", err)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "authentication failed"})
	}
	if gothUser.Email == "" {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "validation_failed", "message": "provider did not return an email address"})
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	user, err := repo.GetByEmail(gothUser.Email)
	if err != nil {
		first, last := splitOAuthName(gothUser.Name, gothUser.FirstName, gothUser.LastName)

		// OAuth users never use this password; it just satisfies the model.
		placeholder, err := randomPassword()
		if err != nil {
			return jsonError(c, err)
		}
		user, err = models.CreateUser(first, last, gothUser.Email, placeholder)
		if err != nil {
			return jsonError(c, err)
		}
		if err := repo.Create(user); err != nil {
			return jsonError(c, err)
		}

		svc := memberships.NewServiceFromDB(database.GetDB())
		if _, err := svc.ResolvePendingInvitations(c.Context(), user, requestInfo(c)); err != nil {
			log.Warnf("[OAuth] resolving invitations for user %d: %v", user.ID, err)
		}

		notifications.Welcome(user)
	}

	if err := startSession(c, user); err != nil {
		return jsonError(c, err)
	}
	return c.JSON(userResponse(user))
}

func splitOAuthName(full, first, last string) (string, string) {
	if first != "" {
		return first, last
	}
	parts := strings.SplitN(strings.TrimSpace(full), " ", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	if parts[0] == "" {
		return "Unknown", ""
	}
	return parts[0], ""
}

func randomPassword() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
