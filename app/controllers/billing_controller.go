package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cornerstone-hq/cornerstone/app/models"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/billing"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/database"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/plans"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/usercontext"
)

// HandleBillingPlans lists the purchasable plan catalog.
func HandleBillingPlans(c *fiber.Ctx) error {
	all := plans.All()
	out := make([]fiber.Map, 0, len(all))
	for _, p := range all {
		out = append(out, fiber.Map{
			"id":       p.ID,
			"name":     p.Name,
			"price_id": p.StripePriceID,
			"features": planFeatures(&p),
		})
	}
	return c.JSON(fiber.Map{"plans": out})
}

// HandleBillingCheckout starts a checkout session for the active account.
func HandleBillingCheckout(c *fiber.Ctx) error {
	var req struct {
		PriceID    string `json:"price_id"`
		SuccessURL string `json:"success_url"`
		CancelURL  string `json:"cancel_url"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid JSON body"})
	}

	uc := usercontext.GetUserContext(c)
	svc := billing.NewServiceFromDB(database.GetDB())

	url, err := svc.Checkout(c.Context(), uc.AccountID, req.PriceID, req.SuccessURL, req.CancelURL)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(fiber.Map{"checkout_url": url})
}

// HandleBillingPortal opens the provider's self-service billing portal.
func HandleBillingPortal(c *fiber.Ctx) error {
	var req struct {
		ReturnURL string `json:"return_url"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid JSON body"})
	}

	uc := usercontext.GetUserContext(c)
	svc := billing.NewServiceFromDB(database.GetDB())

	url, err := svc.PortalSession(c.Context(), uc.AccountID, req.ReturnURL)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(fiber.Map{"portal_url": url})
}

// HandleBillingSubscription returns the account's current subscription, or
// the free state when there is none.
func HandleBillingSubscription(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	svc := billing.NewServiceFromDB(database.GetDB())

	sub, err := svc.CurrentSubscription(uc.AccountID)
	if err != nil {
		return jsonError(c, err)
	}
	if sub == nil {
		return c.JSON(fiber.Map{"subscription": nil, "plan_name": plans.FreePlanName})
	}

	planName := plans.FreePlanName
	if p := svc.PlanFor(sub); p != nil {
		planName = p.Name
	}
	return c.JSON(fiber.Map{
		"subscription": subscriptionResponse(sub),
		"plan_name":    planName,
	})
}

// HandleBillingCancel cancels the current subscription at the provider and
// locally.
func HandleBillingCancel(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	svc := billing.NewServiceFromDB(database.GetDB())

	sub, err := svc.Cancel(c.Context(), uc.AccountID)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(fiber.Map{"subscription": subscriptionResponse(sub)})
}

// HandleBillingPayments returns the account's payment history, newest first.
func HandleBillingPayments(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	svc := billing.NewServiceFromDB(database.GetDB())

	payments, err := svc.ListPayments(uc.AccountID)
	if err != nil {
		return jsonError(c, err)
	}

	out := make([]fiber.Map, 0, len(payments))
	for i := range payments {
		p := &payments[i]
		out = append(out, fiber.Map{
			"id":             p.ID,
			"amount":         p.Amount,
			"currency":       p.Currency,
			"status":         p.Status,
			"description":    p.Description,
			"failure_reason": p.FailureReason,
			"paid_at":        formatTimePtr(p.PaidAt),
			"created_at":     p.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"payments": out})
}

func subscriptionResponse(sub *models.Subscription) fiber.Map {
	return fiber.Map{
		"id":                 sub.ID,
		"status":             sub.Status,
		"price_id":           sub.StripePriceID,
		"quantity":           sub.Quantity,
		"current_period_end": formatTimePtr(sub.CurrentPeriodEnd),
		"cancel_at":          formatTimePtr(sub.CancelAt),
		"canceled_at":        formatTimePtr(sub.CanceledAt),
		"trial_end":          formatTimePtr(sub.TrialEnd),
		"ended_at":           formatTimePtr(sub.EndedAt),
	}
}

// planFeatures renders feature limits with "unlimited" for uncapped ones.
func planFeatures(p *plans.Plan) map[string]any {
	out := make(map[string]any, len(p.Features))
	for name, limit := range p.Features {
		if limit == plans.Unlimited {
			out[name] = "unlimited"
		} else {
			out[name] = limit
		}
	}
	return out
}
