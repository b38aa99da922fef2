package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/cornerstone-hq/cornerstone/app/controllers"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())

	v1 := api.Group("/v1", middleware.RequireAuth)

	v1.Get("/me", controllers.HandleMe)
	v1.Post("/otp/setup", controllers.HandleOTPSetup)
	v1.Post("/otp/activate", controllers.HandleOTPActivate)
	v1.Post("/otp/disable", controllers.HandleOTPDisable)

	// Accounts the user belongs to; switching sets the active account.
	v1.Get("/accounts", controllers.HandleAccountList)
	v1.Post("/accounts", controllers.HandleAccountCreate)
	v1.Post("/accounts/:id/switch", controllers.HandleAccountSwitch)

	// Invitations are reached by token, before any account is active.
	v1.Get("/invitations/:token", controllers.HandleInvitationShow)
	v1.Post("/invitations/:token/accept", controllers.HandleInvitationAccept)
	v1.Post("/invitations/:token/decline", controllers.HandleInvitationDecline)

	// Everything below acts on the active account.
	account := v1.Group("/account", middleware.RequireAccount)
	account.Get("/", controllers.HandleAccountShow)
	account.Patch("/", controllers.HandleAccountUpdate)
	account.Patch("/settings", controllers.HandleAccountSettings)
	account.Delete("/", controllers.HandleAccountDestroy)
	account.Get("/audit-events", controllers.HandleAuditList)

	members := account.Group("/members")
	members.Get("/", controllers.HandleMembershipList)
	members.Post("/", middleware.RequireMemberManager, controllers.HandleMembershipInvite)
	members.Patch("/:user_id/role", middleware.RequireMemberManager, controllers.HandleMembershipChangeRole)
	members.Delete("/:user_id", middleware.RequireMemberManager, controllers.HandleMembershipRemove)

	billing := account.Group("/billing")
	billing.Get("/plans", controllers.HandleBillingPlans)
	billing.Get("/subscription", controllers.HandleBillingSubscription)
	billing.Get("/payments", controllers.HandleBillingPayments)
	billing.Post("/checkout", middleware.RequireBillingManager, controllers.HandleBillingCheckout)
	billing.Post("/portal", middleware.RequireBillingManager, controllers.HandleBillingPortal)
	billing.Post("/cancel", middleware.RequireBillingManager, controllers.HandleBillingCancel)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
