package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cornerstone-hq/cornerstone/app/models"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/database"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/memberships"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/usercontext"
)

// HandleMembershipList returns all memberships of the active account,
// including pending invitations.
func HandleMembershipList(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	svc := memberships.NewServiceFromDB(database.GetDB())

	list, err := svc.List(uc.AccountID)
	if err != nil {
		return jsonError(c, err)
	}

	out := make([]fiber.Map, 0, len(list))
	for i := range list {
		out = append(out, membershipResponse(&list[i]))
	}
	return c.JSON(fiber.Map{"memberships": out})
}

// HandleMembershipInvite invites an email address to the active account.
func HandleMembershipInvite(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid JSON body"})
	}

	uc := usercontext.GetUserContext(c)
	svc := memberships.NewServiceFromDB(database.GetDB())

	membership, err := svc.Invite(c.Context(), uc.AccountID, req.Email, req.Role, uc.UserID, requestInfo(c))
	if err != nil {
		return jsonError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(membershipResponse(membership))
}

// HandleMembershipChangeRole updates a member's role.
func HandleMembershipChangeRole(c *fiber.Ctx) error {
	userID := parseUintParam(c, "user_id")
	if userID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid user id"})
	}

	var req struct {
		Role string `json:"role"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid JSON body"})
	}

	uc := usercontext.GetUserContext(c)
	svc := memberships.NewServiceFromDB(database.GetDB())

	membership, err := svc.ChangeRole(c.Context(), uc.AccountID, userID, req.Role, uc.UserID, requestInfo(c))
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(membershipResponse(membership))
}

// HandleMembershipRemove removes a member from the active account.
func HandleMembershipRemove(c *fiber.Ctx) error {
	userID := parseUintParam(c, "user_id")
	if userID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid user id"})
	}

	uc := usercontext.GetUserContext(c)
	svc := memberships.NewServiceFromDB(database.GetDB())

	if err := svc.Remove(c.Context(), uc.AccountID, userID, uc.UserID, requestInfo(c)); err != nil {
		return jsonError(c, err)
	}
	return c.JSON(fiber.Map{"removed": true})
}

func membershipResponse(m *models.Membership) fiber.Map {
	out := fiber.Map{
		"id":          m.ID,
		"account_id":  m.AccountID,
		"email":       m.Email,
		"role":        m.Role,
		"accepted_at": formatTimePtr(m.AcceptedAt),
	}
	if m.UserID != nil {
		out["user_id"] = *m.UserID
	}
	if m.User != nil {
		out["name"] = m.User.Name()
	}
	return out
}
