package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cornerstone-hq/cornerstone/app/repository"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/database"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/memberships"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/usercontext"
)

// HandleInvitationShow looks up a pending invitation by its token so the
// invitee can see who invited them before deciding.
func HandleInvitationShow(c *fiber.Ctx) error {
	svc := memberships.NewServiceFromDB(database.GetDB())

	membership, err := svc.FindByToken(c.Params("token"))
	if err != nil {
		return jsonError(c, err)
	}

	out := fiber.Map{
		"email": membership.Email,
		"role":  membership.Role,
	}
	if membership.Account != nil {
		out["account_name"] = membership.Account.Name
	}
	if membership.InvitedBy != nil {
		out["invited_by"] = membership.InvitedBy.Name()
	}
	return c.JSON(out)
}

// HandleInvitationAccept joins the logged-in user to the inviting account.
// Accepting twice is harmless.
func HandleInvitationAccept(c *fiber.Ctx) error {
	svc := memberships.NewServiceFromDB(database.GetDB())

	membership, err := svc.FindByToken(c.Params("token"))
	if err != nil {
		return jsonError(c, err)
	}

	uc := usercontext.GetUserContext(c)
	user, err := repository.GetGlobalFactory().GetUserRepository().GetByID(uc.UserID)
	if err != nil {
		return jsonError(c, err)
	}

	accepted, err := svc.Accept(c.Context(), membership.ID, user, requestInfo(c))
	if err != nil {
		return jsonError(c, err)
	}

	return c.JSON(fiber.Map{
		"accepted":   accepted,
		"account_id": membership.AccountID,
	})
}

// HandleInvitationDecline deletes a pending invitation.
func HandleInvitationDecline(c *fiber.Ctx) error {
	svc := memberships.NewServiceFromDB(database.GetDB())

	membership, err := svc.FindByToken(c.Params("token"))
	if err != nil {
		return jsonError(c, err)
	}

	declined, err := svc.Decline(c.Context(), membership.ID, requestInfo(c))
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(fiber.Map{"declined": declined})
}
