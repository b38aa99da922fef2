package billing

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"

	"github.com/cornerstone-hq/cornerstone/internal/pkg/env"
)

// CheckoutInput carries what the gateway needs to start a checkout.
type CheckoutInput struct {
	CustomerID string
	PriceID    string
	Quantity   int
	SuccessURL string
	CancelURL  string
}

// BillingGateway is the outbound provider surface. The service layer only
// talks to this interface; the Stripe implementation lives below and tests
// inject a double.
type BillingGateway interface {
	CreateCustomer(ctx context.Context, email, name string, accountID uint) (string, error)
	CreateCheckoutSession(ctx context.Context, in CheckoutInput) (string, error)
	CreateBillingPortalSession(ctx context.Context, customerID, returnURL string) (string, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
}

const metadataAccountIDKey = "account_id"

type stripeGateway struct {
	client *client.API
}

// NewStripeGateway creates the Stripe implementation of BillingGateway.
func NewStripeGateway(apiKey string) BillingGateway {
	sc := &client.API{}
	sc.Init(apiKey, nil)
	return &stripeGateway{client: sc}
}

// NewStripeGatewayFromEnv reads STRIPE_SECRET_KEY.
func NewStripeGatewayFromEnv() BillingGateway {
	key := env.GetEnv("STRIPE_SECRET_KEY", "")
	if key == "" {
		log.Warn("[Billing] STRIPE_SECRET_KEY is not set, gateway calls will fail")
	}
	return NewStripeGateway(key)
}

func (g *stripeGateway) CreateCustomer(ctx context.Context, email, name string, accountID uint) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
		Metadata: map[string]string{
			metadataAccountIDKey: fmt.Sprintf("%d", accountID),
		},
	}
	params.Context = ctx

	cus, err := g.client.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create customer: %w", err)
	}
	log.Infof("[Billing] stripe customer %s created for account %d", cus.ID, accountID)
	return cus.ID, nil
}

func (g *stripeGateway) CreateCheckoutSession(ctx context.Context, in CheckoutInput) (string, error) {
	quantity := int64(in.Quantity)
	if quantity < 1 {
		quantity = 1
	}
	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(in.CustomerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(in.PriceID),
				Quantity: stripe.Int64(quantity),
			},
		},
		SuccessURL: stripe.String(in.SuccessURL),
		CancelURL:  stripe.String(in.CancelURL),
	}
	params.Context = ctx

	sess, err := g.client.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create checkout session: %w", err)
	}
	return sess.URL, nil
}

func (g *stripeGateway) CreateBillingPortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	sess, err := g.client.BillingPortalSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create portal session: %w", err)
	}
	return sess.URL, nil
}

func (g *stripeGateway) CancelSubscription(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx

	if _, err := g.client.Subscriptions.Cancel(subscriptionID, params); err != nil {
		return fmt.Errorf("stripe: cancel subscription %s: %w", subscriptionID, err)
	}
	return nil
}
