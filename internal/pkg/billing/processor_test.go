package billing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cornerstone-hq/cornerstone/app/models"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/audit"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/plans"
)

const testWebhookSecret = "whsec_test"

func newTestProcessor() (*Processor, *fakeBillingRepo) {
	repo := newFakeBillingRepo()
	svc := NewService(repo, &fakeGateway{}, audit.NewService(discardAuditRepo{}))
	p := NewProcessor(svc, repo, audit.NewService(discardAuditRepo{}), testWebhookSecret)
	repo.accounts[1] = &models.Account{ID: 1, Name: "Acme", Slug: "acme", StripeCustomerID: "cus_acme"}
	return p, repo
}

func deliver(t *testing.T, p *Processor, payload string) error {
	t.Helper()
	header := SignWebhookPayload([]byte(payload), testWebhookSecret, time.Now())
	return p.Process(context.Background(), []byte(payload), header)
}

func subscriptionEventJSON(eventID, eventType, subID, status string) string {
	return fmt.Sprintf(`{
		"id": %q,
		"type": %q,
		"created": %d,
		"data": {"object": {
			"id": %q,
			"customer": "cus_acme",
			"status": %q,
			"current_period_start": 1700000000,
			"current_period_end": 1702600000,
			"items": {"data": [{"quantity": 1, "price": {"id": "price_growth_monthly"}}]}
		}}
	}`, eventID, eventType, time.Now().Unix(), subID, status)
}

func TestProcessRejectsBadSignature(t *testing.T) {
	p, repo := newTestProcessor()
	payload := subscriptionEventJSON("evt_1", EventSubscriptionCreated, "sub_1", "active")

	err := p.Process(context.Background(), []byte(payload), "t=1,v1=deadbeef")
	assert.ErrorIs(t, err, ErrBadSignature)
	assert.Empty(t, repo.webhookEvents)
	assert.Empty(t, repo.subscriptions)
}

func TestProcessRejectsMalformedEnvelope(t *testing.T) {
	p, repo := newTestProcessor()

	err := deliver(t, p, `{"not json`)
	assert.ErrorIs(t, err, ErrMalformedEvent)

	err = deliver(t, p, `{"id": "", "type": "customer.created", "data": {"object": {}}}`)
	assert.ErrorIs(t, err, ErrMalformedEvent)
	assert.Empty(t, repo.webhookEvents)
}

func TestProcessDuplicateDeliveryMutatesOnce(t *testing.T) {
	plans.Setup()
	p, repo := newTestProcessor()
	payload := subscriptionEventJSON("evt_1", EventSubscriptionCreated, "sub_1", "active")

	require.NoError(t, deliver(t, p, payload))
	require.NoError(t, deliver(t, p, payload))

	assert.Len(t, repo.webhookEvents, 1)
	assert.Len(t, repo.subscriptions, 1)
	assert.Equal(t, "active", repo.subscriptions["sub_1"].Status)
}

func TestProcessSubscriptionLifecycle(t *testing.T) {
	plans.Setup()
	p, repo := newTestProcessor()

	require.NoError(t, deliver(t, p, subscriptionEventJSON("evt_1", EventSubscriptionCreated, "sub_1", "trialing")))
	assert.Equal(t, models.SubscriptionStatusTrialing, repo.accounts[1].SubscriptionStatus)

	require.NoError(t, deliver(t, p, subscriptionEventJSON("evt_2", EventSubscriptionUpdated, "sub_1", "active")))
	assert.Equal(t, models.SubscriptionStatusActive, repo.accounts[1].SubscriptionStatus)
	assert.Equal(t, "Growth", repo.accounts[1].PlanName)

	require.NoError(t, deliver(t, p, subscriptionEventJSON("evt_3", EventSubscriptionDeleted, "sub_1", "canceled")))
	assert.Equal(t, models.SubscriptionStatusCanceled, repo.accounts[1].SubscriptionStatus)
	assert.Equal(t, plans.FreePlanName, repo.accounts[1].PlanName)
	assert.NotNil(t, repo.subscriptions["sub_1"].EndedAt)
}

func TestProcessDeletedUnknownSubscriptionIsNoOp(t *testing.T) {
	p, repo := newTestProcessor()

	err := deliver(t, p, subscriptionEventJSON("evt_1", EventSubscriptionDeleted, "sub_missing", "canceled"))
	require.NoError(t, err)

	// Event recorded, no mutation, no processing error.
	assert.Len(t, repo.webhookEvents, 1)
	assert.Empty(t, repo.subscriptions)
	for id := range repo.marks {
		assert.Empty(t, repo.marks[id])
	}
}

func TestProcessInvoiceEvents(t *testing.T) {
	p, repo := newTestProcessor()

	succeeded := fmt.Sprintf(`{
		"id": "evt_inv_1",
		"type": %q,
		"data": {"object": {
			"id": "in_1",
			"customer": "cus_acme",
			"amount_paid": 2900,
			"currency": "usd",
			"status_transitions": {"paid_at": 1700000000}
		}}
	}`, EventInvoiceSucceeded)
	require.NoError(t, deliver(t, p, succeeded))

	failed := fmt.Sprintf(`{
		"id": "evt_inv_2",
		"type": %q,
		"data": {"object": {
			"id": "in_2",
			"customer": "cus_acme",
			"amount_due": 2900,
			"currency": "usd",
			"last_payment_error": {"message": "card_declined"}
		}}
	}`, EventInvoiceFailed)
	require.NoError(t, deliver(t, p, failed))

	require.Len(t, repo.payments, 2)
	assert.Equal(t, models.PaymentStatusSucceeded, repo.payments[0].Status)
	assert.Equal(t, 29.0, repo.payments[0].Amount)
	assert.NotNil(t, repo.payments[0].PaidAt)
	assert.Equal(t, models.PaymentStatusFailed, repo.payments[1].Status)
	assert.Equal(t, "card_declined", repo.payments[1].FailureReason)
}

func TestProcessUnknownEventTypeAcked(t *testing.T) {
	p, repo := newTestProcessor()

	err := deliver(t, p, `{"id": "evt_x", "type": "product.created", "data": {"object": {}}}`)
	require.NoError(t, err)
	assert.Len(t, repo.webhookEvents, 1)
}

func TestProcessUnknownCustomerAcked(t *testing.T) {
	p, repo := newTestProcessor()

	payload := `{
		"id": "evt_1",
		"type": "customer.subscription.created",
		"data": {"object": {"id": "sub_1", "customer": "cus_stranger", "status": "active", "items": {"data": []}}}
	}`
	require.NoError(t, deliver(t, p, payload))
	assert.Len(t, repo.webhookEvents, 1)
	assert.Empty(t, repo.subscriptions)
}

func TestProcessCustomerCreatedBindsAccount(t *testing.T) {
	p, repo := newTestProcessor()
	repo.accounts[1].StripeCustomerID = ""

	payload := `{
		"id": "evt_1",
		"type": "customer.created",
		"data": {"object": {"id": "cus_new", "email": "owner@acme.test", "metadata": {"account_id": "1"}}}
	}`
	require.NoError(t, deliver(t, p, payload))
	assert.Equal(t, "cus_new", repo.accounts[1].StripeCustomerID)
}

func TestProcessMutationFailureStillAcks(t *testing.T) {
	p, repo := newTestProcessor()

	// Malformed data object for a known type: envelope parses, handler fails.
	payload := `{
		"id": "evt_1",
		"type": "customer.subscription.created",
		"data": {"object": {"customer": "cus_acme"}}
	}`
	require.NoError(t, deliver(t, p, payload))

	require.Len(t, repo.webhookEvents, 1)
	var marked bool
	for _, msg := range repo.marks {
		if msg != "" {
			marked = true
		}
	}
	assert.True(t, marked)
}
