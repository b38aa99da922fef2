package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cornerstone-hq/cornerstone/app/models"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/accounts"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/database"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/session"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/usercontext"
)

// HandleAccountList returns all accounts the user is an accepted member of.
func HandleAccountList(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	svc := accounts.NewServiceFromDB(database.GetDB())

	list, err := svc.ListForUser(uc.UserID)
	if err != nil {
		return jsonError(c, err)
	}

	out := make([]fiber.Map, 0, len(list))
	for i := range list {
		out = append(out, accountResponse(&list[i], svc))
	}
	return c.JSON(fiber.Map{"accounts": out})
}

// HandleAccountCreate creates an account with the caller as owner.
func HandleAccountCreate(c *fiber.Ctx) error {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid JSON body"})
	}

	uc := usercontext.GetUserContext(c)
	svc := accounts.NewServiceFromDB(database.GetDB())

	account, err := svc.Create(c.Context(), req.Name, uc.UserID, requestInfo(c))
	if err != nil {
		return jsonError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(accountResponse(account, svc))
}

// HandleAccountShow returns the active account.
func HandleAccountShow(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	svc := accounts.NewServiceFromDB(database.GetDB())

	account, err := svc.Get(uc.AccountID)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(accountResponse(account, svc))
}

// HandleAccountUpdate renames the active account. The slug never changes
// after creation.
func HandleAccountUpdate(c *fiber.Ctx) error {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid JSON body"})
	}

	uc := usercontext.GetUserContext(c)
	svc := accounts.NewServiceFromDB(database.GetDB())

	account, err := svc.Update(c.Context(), uc.AccountID, req.Name, uc.UserID, requestInfo(c))
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(accountResponse(account, svc))
}

// HandleAccountSettings merges the posted settings into the account.
func HandleAccountSettings(c *fiber.Ctx) error {
	var req struct {
		Settings map[string]string `json:"settings"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid JSON body"})
	}

	uc := usercontext.GetUserContext(c)
	svc := accounts.NewServiceFromDB(database.GetDB())

	account, err := svc.UpdateSettings(uc.AccountID, req.Settings)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(accountResponse(account, svc))
}

// HandleAccountDestroy deletes the active account and clears it from the
// session.
func HandleAccountDestroy(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	svc := accounts.NewServiceFromDB(database.GetDB())

	if err := svc.Destroy(c.Context(), uc.AccountID, uc.UserID, requestInfo(c)); err != nil {
		return jsonError(c, err)
	}

	sess, err := session.GetSessionStore().Get(c)
	if err == nil {
		sess.Delete(usercontext.KeyCurrentAccountID)
		_ = sess.Save()
	}
	return c.JSON(fiber.Map{"deleted": true})
}

// HandleAccountSwitch makes another of the user's accounts the active one.
func HandleAccountSwitch(c *fiber.Ctx) error {
	accountID := parseUintParam(c, "id")
	if accountID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid account id"})
	}

	uc := usercontext.GetUserContext(c)
	svc := accounts.NewServiceFromDB(database.GetDB())

	membership, err := svc.SwitchContext(c.Context(), uc.UserID, accountID, requestInfo(c))
	if err != nil {
		return jsonError(c, err)
	}

	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return jsonError(c, err)
	}
	sess.Set(usercontext.KeyCurrentAccountID, accountID)
	if err := sess.Save(); err != nil {
		return jsonError(c, err)
	}

	return c.JSON(fiber.Map{
		"account_id": accountID,
		"role":       membership.Role,
	})
}

func accountResponse(account *models.Account, svc *accounts.Service) fiber.Map {
	return fiber.Map{
		"id":                  account.ID,
		"name":                account.Name,
		"slug":                account.Slug,
		"subscription_status": account.SubscriptionStatus,
		"plan_name":           svc.PlanName(account.ID),
		"settings":            account.Settings(),
	}
}
