package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/cornerstone-hq/cornerstone/app/models"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/apperrors"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/audit"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/env"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/notifications"
)

// ErrBadSignature rejects a delivery outright; the provider retries won't
// help, so the handler maps it to 400.
var ErrBadSignature = errors.New("invalid webhook signature")

// Processor handles inbound Stripe webhook deliveries. The contract with
// the provider: 400 only for a bad signature or an unreadable envelope,
// 200 for everything else, including duplicates, unknown event types and
// internal processing failures (those are recorded and logged, not
// retried by the provider).
type Processor struct {
	svc    *Service
	repo   Repository
	audit  *audit.Service
	secret string
	now    func() time.Time
}

// NewProcessor creates a webhook processor with explicit dependencies.
func NewProcessor(svc *Service, repo Repository, auditSvc *audit.Service, webhookSecret string) *Processor {
	return &Processor{
		svc:    svc,
		repo:   repo,
		audit:  auditSvc,
		secret: webhookSecret,
		now:    time.Now,
	}
}

// NewProcessorFromDB wires the processor with GORM backed dependencies and
// the STRIPE_WEBHOOK_SECRET from the environment.
func NewProcessorFromDB(db *gorm.DB) *Processor {
	repo := NewRepository(db)
	auditSvc := audit.NewServiceFromDB(db)
	svc := NewService(repo, NewStripeGatewayFromEnv(), auditSvc)
	return NewProcessor(svc, repo, auditSvc, env.GetEnv("STRIPE_WEBHOOK_SECRET", ""))
}

// Process runs one delivery end to end: verify, record idempotently,
// dispatch, acknowledge. The returned error is non-nil only for the 400
// cases (bad signature, malformed envelope).
func (p *Processor) Process(ctx context.Context, payload []byte, signatureHeader string) error {
	if !VerifyStripeWebhookSignature(payload, signatureHeader, p.secret, p.now()) {
		return ErrBadSignature
	}

	event, err := ParseEvent(payload)
	if err != nil {
		return err
	}

	// Record before mutating: the unique (provider, event_id) row is the
	// idempotency barrier for at-least-once delivery.
	created, stored, err := p.repo.CreateWebhookEventIfNotExists(&models.WebhookEvent{
		Provider:    models.BillingProviderStripe,
		EventID:     event.ID,
		EventType:   event.Type,
		PayloadJSON: string(payload),
	})
	if err != nil {
		// The row could not be recorded at all; acknowledge anyway and rely
		// on the provider retry to land it.
		log.Errorf("[Webhook] failed to record event %s: %v", event.ID, err)
		return nil
	}
	if !created {
		log.Infof("[Webhook] duplicate delivery of %s (%s), skipping", event.ID, event.Type)
		return nil
	}

	if procErr := p.dispatch(ctx, event); procErr != nil {
		log.Errorf("[Webhook] processing %s (%s) failed: %v", event.ID, event.Type, procErr)
		if err := p.repo.MarkWebhookProcessed(stored.ID, procErr.Error()); err != nil {
			log.Errorf("[Webhook] failed to mark event %s: %v", event.ID, err)
		}
		return nil
	}

	if err := p.repo.MarkWebhookProcessed(stored.ID, ""); err != nil {
		log.Errorf("[Webhook] failed to mark event %s: %v", event.ID, err)
	}
	return nil
}

func (p *Processor) dispatch(ctx context.Context, event *Event) error {
	switch event.Type {
	case EventCustomerCreated:
		return p.handleCustomerCreated(event)
	case EventSubscriptionCreated, EventSubscriptionUpdated:
		return p.handleSubscriptionUpsert(ctx, event)
	case EventSubscriptionDeleted:
		return p.handleSubscriptionDeleted(ctx, event)
	case EventSubscriptionTrialEnd:
		return p.handleTrialWillEnd(event)
	case EventInvoiceSucceeded:
		return p.handleInvoice(ctx, event, models.PaymentStatusSucceeded)
	case EventInvoiceFailed:
		return p.handleInvoice(ctx, event, models.PaymentStatusFailed)
	case EventCheckoutCompleted:
		return p.handleCheckoutCompleted(event)
	default:
		log.Infof("[Webhook] ignoring event type %s (%s)", event.Type, event.ID)
		return nil
	}
}

// handleCustomerCreated binds the Stripe customer id to the account named
// in the customer metadata, for customers created outside our checkout.
func (p *Processor) handleCustomerCreated(event *Event) error {
	customerID, _, accountRef, err := event.CustomerFromEvent()
	if err != nil {
		return err
	}
	if accountRef == "" {
		log.Infof("[Webhook] customer %s has no account metadata, ignoring", customerID)
		return nil
	}

	var accountID uint
	if _, err := fmt.Sscanf(accountRef, "%d", &accountID); err != nil {
		return fmt.Errorf("customer %s: bad account metadata %q", customerID, accountRef)
	}

	account, err := p.repo.GetAccountByID(accountID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			log.Warnf("[Webhook] customer %s references unknown account %d", customerID, accountID)
			return nil
		}
		return err
	}
	if account.StripeCustomerID != "" {
		return nil
	}
	account.StripeCustomerID = customerID
	return p.repo.SaveAccount(account)
}

func (p *Processor) handleSubscriptionUpsert(ctx context.Context, event *Event) error {
	payload, err := event.SubscriptionFromEvent()
	if err != nil {
		return err
	}

	account, err := p.accountForCustomer(payload.StripeCustomerID)
	if err != nil || account == nil {
		return err
	}

	isNew := false
	if _, err := p.repo.GetSubscriptionByStripeID(payload.StripeSubscriptionID); errors.Is(err, apperrors.ErrNotFound) {
		isNew = true
	}

	sub, err := p.svc.UpsertFromEvent(ctx, account.ID, payload)
	if err != nil {
		return err
	}

	action := models.AuditSubscriptionUpdated
	if isNew || event.Type == EventSubscriptionCreated {
		action = models.AuditSubscriptionCreated
	}
	p.audit.Log(ctx, audit.Entry{
		Action:   action,
		Account:  account,
		Subject:  audit.SubscriptionSubject(sub.ID),
		Metadata: map[string]any{"stripe_subscription_id": sub.StripeSubscriptionID, "status": sub.Status},
	})

	if action == models.AuditSubscriptionCreated {
		if owner, err := p.repo.OwnerUser(account.ID); err == nil {
			notifications.SubscriptionCreated(owner, account)
		}
	}
	return nil
}

// handleSubscriptionDeleted tolerates subscriptions we never saw: the event
// stays recorded, nothing mutates, the provider gets its 200.
func (p *Processor) handleSubscriptionDeleted(ctx context.Context, event *Event) error {
	payload, err := event.SubscriptionFromEvent()
	if err != nil {
		return err
	}

	existing, err := p.repo.GetSubscriptionByStripeID(payload.StripeSubscriptionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			log.Infof("[Webhook] deletion of unknown subscription %s, ignoring", payload.StripeSubscriptionID)
			return nil
		}
		return err
	}

	payload.Status = models.SubscriptionStatusCanceled
	if payload.EndedAt == nil {
		now := p.now()
		payload.EndedAt = &now
	}
	sub, err := p.svc.UpsertFromEvent(ctx, existing.AccountID, payload)
	if err != nil {
		return err
	}

	p.audit.Log(ctx, audit.Entry{
		Action:   models.AuditSubscriptionCanceled,
		Account:  &models.Account{ID: existing.AccountID},
		Subject:  audit.SubscriptionSubject(sub.ID),
		Metadata: map[string]any{"stripe_subscription_id": sub.StripeSubscriptionID},
	})

	if account, err := p.repo.GetAccountByID(existing.AccountID); err == nil {
		if owner, err := p.repo.OwnerUser(account.ID); err == nil {
			notifications.SubscriptionCanceled(owner, account)
		}
	}
	return nil
}

func (p *Processor) handleTrialWillEnd(event *Event) error {
	payload, err := event.SubscriptionFromEvent()
	if err != nil {
		return err
	}
	account, err := p.accountForCustomer(payload.StripeCustomerID)
	if err != nil || account == nil {
		return err
	}
	if owner, err := p.repo.OwnerUser(account.ID); err == nil {
		notifications.TrialEnding(owner, account)
	}
	return nil
}

func (p *Processor) handleInvoice(ctx context.Context, event *Event, status string) error {
	payload, err := event.InvoiceFromEvent()
	if err != nil {
		return err
	}
	account, err := p.accountForCustomer(payload.StripeCustomerID)
	if err != nil || account == nil {
		return err
	}
	_, err = p.svc.RecordPayment(ctx, account.ID, payload, status)
	return err
}

func (p *Processor) handleCheckoutCompleted(event *Event) error {
	customerID, subscriptionID, err := event.CheckoutFromEvent()
	if err != nil {
		return err
	}
	account, err := p.accountForCustomer(customerID)
	if err != nil || account == nil {
		return err
	}

	log.Infof("[Webhook] checkout completed for account %d (subscription %s)", account.ID, subscriptionID)
	if owner, err := p.repo.OwnerUser(account.ID); err == nil {
		notifications.CheckoutCompleted(owner, account)
	}
	return nil
}

// accountForCustomer maps a Stripe customer id to a local account. Unknown
// customers are not an error: the event stays recorded and acknowledged.
func (p *Processor) accountForCustomer(customerID string) (*models.Account, error) {
	if customerID == "" {
		return nil, nil
	}
	account, err := p.repo.GetAccountByStripeCustomerID(customerID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			log.Warnf("[Webhook] no account for stripe customer %s", customerID)
			return nil, nil
		}
		return nil, err
	}
	return account, nil
}
