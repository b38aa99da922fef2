package billing

import "time"

// SubscriptionPayload is the normalized subscription shape extracted from a
// provider event before it touches local tables.
type SubscriptionPayload struct {
	StripeSubscriptionID string
	StripeCustomerID     string
	Status               string
	StripePriceID        string
	Quantity             int
	CurrentPeriodStart   *time.Time
	CurrentPeriodEnd     *time.Time
	CancelAt             *time.Time
	CanceledAt           *time.Time
	TrialEnd             *time.Time
	EndedAt              *time.Time
}

// InvoicePayload is the normalized invoice shape for the payment ledger.
// AmountMinor carries the provider's integer minor units; conversion to the
// stored decimal happens exactly once, in RecordPayment.
type InvoicePayload struct {
	StripeInvoiceID  string
	StripeCustomerID string
	AmountMinor      int64
	Currency         string
	Description      string
	FailureReason    string
	PaidAt           *time.Time
}

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider    string
	EventID     string
	EventType   string
	PayloadJSON string
}
