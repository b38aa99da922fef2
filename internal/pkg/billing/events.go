package billing

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Stripe event types the processor dispatches on. Anything else is logged
// and acknowledged without side effects.
const (
	EventCustomerCreated      = "customer.created"
	EventSubscriptionCreated  = "customer.subscription.created"
	EventSubscriptionUpdated  = "customer.subscription.updated"
	EventSubscriptionDeleted  = "customer.subscription.deleted"
	EventSubscriptionTrialEnd = "customer.subscription.trial_will_end"
	EventInvoiceSucceeded     = "invoice.payment_succeeded"
	EventInvoiceFailed        = "invoice.payment_failed"
	EventCheckoutCompleted    = "checkout.session.completed"
)

// ErrMalformedEvent marks envelopes the processor must reject with 400.
var ErrMalformedEvent = errors.New("malformed webhook event")

// Event is the provider envelope: id, type and an opaque data object that
// each handler decodes into its own shape.
type Event struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// ParseEvent decodes the envelope. Missing id or type makes the event
// malformed; the payload object itself is validated later per type.
func ParseEvent(payload []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, ErrMalformedEvent
	}
	if strings.TrimSpace(event.ID) == "" || strings.TrimSpace(event.Type) == "" {
		return nil, ErrMalformedEvent
	}
	return &event, nil
}

type stripeSubscriptionObject struct {
	ID                 string `json:"id"`
	Customer           string `json:"customer"`
	Status             string `json:"status"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
	CancelAt           int64  `json:"cancel_at"`
	CanceledAt         int64  `json:"canceled_at"`
	TrialEnd           int64  `json:"trial_end"`
	EndedAt            int64  `json:"ended_at"`
	Items              struct {
		Data []struct {
			Quantity int `json:"quantity"`
			Price    struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

// SubscriptionFromEvent decodes a customer.subscription.* data object into
// the normalized payload.
func (e *Event) SubscriptionFromEvent() (*SubscriptionPayload, error) {
	var obj stripeSubscriptionObject
	if err := json.Unmarshal(e.Data.Object, &obj); err != nil {
		return nil, ErrMalformedEvent
	}
	if obj.ID == "" {
		return nil, ErrMalformedEvent
	}

	payload := &SubscriptionPayload{
		StripeSubscriptionID: obj.ID,
		StripeCustomerID:     obj.Customer,
		Status:               obj.Status,
		Quantity:             1,
		CurrentPeriodStart:   unixPtr(obj.CurrentPeriodStart),
		CurrentPeriodEnd:     unixPtr(obj.CurrentPeriodEnd),
		CancelAt:             unixPtr(obj.CancelAt),
		CanceledAt:           unixPtr(obj.CanceledAt),
		TrialEnd:             unixPtr(obj.TrialEnd),
		EndedAt:              unixPtr(obj.EndedAt),
	}
	if len(obj.Items.Data) > 0 {
		payload.StripePriceID = obj.Items.Data[0].Price.ID
		if obj.Items.Data[0].Quantity > 0 {
			payload.Quantity = obj.Items.Data[0].Quantity
		}
	}
	return payload, nil
}

type stripeInvoiceObject struct {
	ID               string `json:"id"`
	Customer         string `json:"customer"`
	AmountPaid       int64  `json:"amount_paid"`
	AmountDue        int64  `json:"amount_due"`
	Currency         string `json:"currency"`
	Description      string `json:"description"`
	StatusTransition struct {
		PaidAt int64 `json:"paid_at"`
	} `json:"status_transitions"`
	LastPaymentError struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

// InvoiceFromEvent decodes an invoice.payment_* data object. The amount is
// amount_paid for successes and amount_due for failures, both in minor
// units.
func (e *Event) InvoiceFromEvent() (*InvoicePayload, error) {
	var obj stripeInvoiceObject
	if err := json.Unmarshal(e.Data.Object, &obj); err != nil {
		return nil, ErrMalformedEvent
	}
	if obj.ID == "" {
		return nil, ErrMalformedEvent
	}

	payload := &InvoicePayload{
		StripeInvoiceID:  obj.ID,
		StripeCustomerID: obj.Customer,
		Currency:         obj.Currency,
		Description:      obj.Description,
		FailureReason:    obj.LastPaymentError.Message,
		PaidAt:           unixPtr(obj.StatusTransition.PaidAt),
	}
	if e.Type == EventInvoiceFailed {
		payload.AmountMinor = obj.AmountDue
	} else {
		payload.AmountMinor = obj.AmountPaid
	}
	return payload, nil
}

type stripeCustomerObject struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Metadata struct {
		AccountID string `json:"account_id"`
	} `json:"metadata"`
}

// CustomerFromEvent decodes a customer.* data object.
func (e *Event) CustomerFromEvent() (customerID, email, accountRef string, err error) {
	var obj stripeCustomerObject
	if err := json.Unmarshal(e.Data.Object, &obj); err != nil {
		return "", "", "", ErrMalformedEvent
	}
	if obj.ID == "" {
		return "", "", "", ErrMalformedEvent
	}
	return obj.ID, obj.Email, obj.Metadata.AccountID, nil
}

type stripeCheckoutSessionObject struct {
	ID           string `json:"id"`
	Customer     string `json:"customer"`
	Subscription string `json:"subscription"`
}

// CheckoutFromEvent decodes a checkout.session.completed data object.
func (e *Event) CheckoutFromEvent() (customerID, subscriptionID string, err error) {
	var obj stripeCheckoutSessionObject
	if err := json.Unmarshal(e.Data.Object, &obj); err != nil {
		return "", "", ErrMalformedEvent
	}
	return obj.Customer, obj.Subscription, nil
}

func unixPtr(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0)
	return &t
}
