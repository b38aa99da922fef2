package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cornerstone-hq/cornerstone/app/controllers"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/middleware"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/oauth"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/session"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// init session
	session.NewSessionStore()

	// init oauth providers
	oauth.Setup()

	// Apply UserContext middleware globally as first middleware
	app.Use(middleware.UserContextMiddleware)

	h.registerHealthRoutes(app)
	h.registerAuthRoutes(app)
	h.registerWebhookRoutes(app)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}

func (h HttpRouter) registerHealthRoutes(app *fiber.App) {
	app.Get("/up", controllers.HandleUp)
	app.Get("/ready", controllers.HandleReady)
}

func (h HttpRouter) registerAuthRoutes(app *fiber.App) {
	auth := app.Group("/auth")

	auth.Post("/register", controllers.HandleAuthRegister)
	auth.Post("/login", controllers.HandleAuthLogin)
	auth.Post("/login/otp", controllers.HandleAuthLoginOTP)
	auth.Post("/logout", controllers.HandleAuthLogout)

	auth.Post("/magic-link", controllers.HandleMagicLinkRequest)
	auth.Get("/magic-link/:token", controllers.HandleMagicLinkConsume)

	// Goth providers (google, github)
	auth.Get("/:provider", controllers.HandleOAuthBegin)
	auth.Get("/:provider/callback", controllers.HandleOAuthCallback)
}

func (h HttpRouter) registerWebhookRoutes(app *fiber.App) {
	// Signed with the provider's webhook secret, never with a session.
	app.Post("/webhooks/stripe", controllers.HandleStripeWebhook)
}
