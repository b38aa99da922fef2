package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/cornerstone-hq/cornerstone/internal/pkg/billing"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/database"
)

// HandleStripeWebhook receives provider events. Anything past the signature
// and envelope checks is acknowledged with 200 so the provider does not
// retry events we already recorded.
func HandleStripeWebhook(c *fiber.Ctx) error {
	processor := billing.NewProcessorFromDB(database.GetDB())

	err := processor.Process(c.Context(), c.Body(), c.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, billing.ErrBadSignature) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid signature"})
		}
		if errors.Is(err, billing.ErrMalformedEvent) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "malformed event"})
		}
		return jsonError(c, err)
	}
	return c.JSON(fiber.Map{"received": true})
}
