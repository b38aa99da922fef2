// Package billing syncs Stripe subscription state into local tables, keeps
// the append-only payment ledger and handles inbound webhook deliveries.
// All outbound provider calls go through the injected BillingGateway.
package billing

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/cornerstone-hq/cornerstone/app/models"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/apperrors"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/audit"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/notifications"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/plans"
)

// Service provides subscription ledger operations and checkout/portal flows.
type Service struct {
	repo    Repository
	gateway BillingGateway
	audit   *audit.Service
}

// NewService creates a billing service with explicit dependencies.
func NewService(repo Repository, gateway BillingGateway, auditSvc *audit.Service) *Service {
	return &Service{repo: repo, gateway: gateway, audit: auditSvc}
}

// NewServiceFromDB wires the service with GORM backed dependencies and the
// Stripe gateway configured from the environment.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db), NewStripeGatewayFromEnv(), audit.NewServiceFromDB(db))
}

// EnsureCustomer returns the account's Stripe customer id, creating the
// customer through the gateway on first use.
func (s *Service) EnsureCustomer(ctx context.Context, account *models.Account) (string, error) {
	if account.StripeCustomerID != "" {
		return account.StripeCustomerID, nil
	}

	owner, err := s.repo.OwnerUser(account.ID)
	if err != nil {
		return "", err
	}

	customerID, err := s.gateway.CreateCustomer(ctx, owner.Email, account.Name, account.ID)
	if err != nil {
		return "", err
	}

	account.StripeCustomerID = customerID
	if err := s.repo.SaveAccount(account); err != nil {
		return "", err
	}
	return customerID, nil
}

// Checkout starts a subscription checkout for the given price and returns
// the hosted page URL.
func (s *Service) Checkout(ctx context.Context, accountID uint, priceID, successURL, cancelURL string) (string, error) {
	if plans.ByPriceID(priceID) == nil {
		return "", apperrors.NewValidation("price_id", "unknown price id")
	}

	account, err := s.repo.GetAccountByID(accountID)
	if err != nil {
		return "", err
	}
	customerID, err := s.EnsureCustomer(ctx, account)
	if err != nil {
		return "", err
	}

	return s.gateway.CreateCheckoutSession(ctx, CheckoutInput{
		CustomerID: customerID,
		PriceID:    priceID,
		Quantity:   1,
		SuccessURL: successURL,
		CancelURL:  cancelURL,
	})
}

// PortalSession returns a billing portal URL for the account.
func (s *Service) PortalSession(ctx context.Context, accountID uint, returnURL string) (string, error) {
	account, err := s.repo.GetAccountByID(accountID)
	if err != nil {
		return "", err
	}
	if account.StripeCustomerID == "" {
		return "", apperrors.NewConflict("account has no billing customer yet")
	}
	return s.gateway.CreateBillingPortalSession(ctx, account.StripeCustomerID, returnURL)
}

// UpsertFromEvent writes normalized subscription state keyed by the unique
// stripe_subscription_id and mirrors status and plan name onto the account.
func (s *Service) UpsertFromEvent(ctx context.Context, accountID uint, in *SubscriptionPayload) (*models.Subscription, error) {
	_ = ctx
	if accountID == 0 || strings.TrimSpace(in.StripeSubscriptionID) == "" {
		return nil, apperrors.NewValidation("subscription", "account and subscription id are required")
	}

	status := strings.ToLower(strings.TrimSpace(in.Status))
	if status == "" {
		status = models.SubscriptionStatusActive
	}
	quantity := in.Quantity
	if quantity < 1 {
		quantity = 1
	}

	sub := &models.Subscription{
		AccountID:            accountID,
		StripeSubscriptionID: strings.TrimSpace(in.StripeSubscriptionID),
		Status:               status,
		StripePriceID:        strings.TrimSpace(in.StripePriceID),
		Quantity:             quantity,
		CurrentPeriodStart:   in.CurrentPeriodStart,
		CurrentPeriodEnd:     in.CurrentPeriodEnd,
		CancelAt:             in.CancelAt,
		CanceledAt:           in.CanceledAt,
		TrialEnd:             in.TrialEnd,
		EndedAt:              in.EndedAt,
	}
	if err := s.repo.UpsertSubscription(sub); err != nil {
		return nil, err
	}

	if err := s.syncAccountFromSubscription(accountID, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// RecordPayment appends one ledger row for an invoice event. Rows are never
// updated: a retried delivery of the same invoice in a new event inserts a
// new row, and the webhook dedup layer prevents same-event replays.
func (s *Service) RecordPayment(ctx context.Context, accountID uint, in *InvoicePayload, status string) (*models.Payment, error) {
	if accountID == 0 || strings.TrimSpace(in.StripeInvoiceID) == "" {
		return nil, apperrors.NewValidation("payment", "account and invoice id are required")
	}
	if status != models.PaymentStatusSucceeded && status != models.PaymentStatusFailed {
		return nil, apperrors.NewValidation("status", "status must be succeeded or failed")
	}

	payment := &models.Payment{
		AccountID:       accountID,
		Amount:          models.AmountFromMinorUnits(in.AmountMinor),
		Currency:        strings.ToLower(in.Currency),
		Status:          status,
		StripeInvoiceID: in.StripeInvoiceID,
		Description:     in.Description,
		FailureReason:   in.FailureReason,
		PaidAt:          in.PaidAt,
	}
	if err := s.repo.CreatePayment(payment); err != nil {
		return nil, err
	}

	action := models.AuditPaymentSucceeded
	if status == models.PaymentStatusFailed {
		action = models.AuditPaymentFailed
	}
	s.audit.Log(ctx, audit.Entry{
		Action:   action,
		Account:  &models.Account{ID: accountID},
		Subject:  audit.PaymentSubject(payment.ID),
		Metadata: map[string]any{"invoice": payment.StripeInvoiceID, "amount": payment.FormattedAmount()},
	})

	if status == models.PaymentStatusFailed {
		if account, err := s.repo.GetAccountByID(accountID); err == nil {
			if owner, err := s.repo.OwnerUser(accountID); err == nil {
				notifications.PaymentFailed(owner, account, payment)
			}
		}
	}

	return payment, nil
}

// Cancel requests cancellation through the gateway. Local state is only
// touched after the gateway call succeeds.
func (s *Service) Cancel(ctx context.Context, accountID uint) (*models.Subscription, error) {
	sub, err := s.CurrentSubscription(accountID)
	if err != nil {
		return nil, err
	}

	if err := s.gateway.CancelSubscription(ctx, sub.StripeSubscriptionID); err != nil {
		return nil, err
	}

	now := time.Now()
	sub.Status = models.SubscriptionStatusCanceled
	sub.CanceledAt = &now
	sub.EndedAt = &now
	if err := s.repo.SaveSubscription(sub); err != nil {
		return nil, err
	}
	if err := s.syncAccountFromSubscription(accountID, sub); err != nil {
		return nil, err
	}

	s.audit.Log(ctx, audit.Entry{
		Action:   models.AuditSubscriptionCanceled,
		Account:  &models.Account{ID: accountID},
		Subject:  audit.SubscriptionSubject(sub.ID),
		Metadata: map[string]any{"stripe_subscription_id": sub.StripeSubscriptionID},
	})

	if account, err := s.repo.GetAccountByID(accountID); err == nil {
		if owner, err := s.repo.OwnerUser(accountID); err == nil {
			notifications.SubscriptionCanceled(owner, account)
		}
	}

	return sub, nil
}

// CurrentSubscription returns the account's newest non-ended subscription.
func (s *Service) CurrentSubscription(accountID uint) (*models.Subscription, error) {
	subs, err := s.repo.ListSubscriptionsByAccount(accountID)
	if err != nil {
		return nil, err
	}
	for i := range subs {
		if subs[i].Status != models.SubscriptionStatusCanceled {
			return &subs[i], nil
		}
	}
	return nil, apperrors.ErrNotFound
}

// ListPayments returns the account's ledger, newest first.
func (s *Service) ListPayments(accountID uint) ([]models.Payment, error) {
	return s.repo.ListPaymentsByAccount(accountID)
}

// PlanFor resolves the subscription's plan from the static catalog; nil
// when the price id is unknown.
func (s *Service) PlanFor(sub *models.Subscription) *plans.Plan {
	if sub == nil {
		return nil
	}
	return plans.ByPriceID(sub.StripePriceID)
}

// syncAccountFromSubscription mirrors subscription status and plan name
// onto the account row so common reads skip the join.
func (s *Service) syncAccountFromSubscription(accountID uint, sub *models.Subscription) error {
	account, err := s.repo.GetAccountByID(accountID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return err
	}

	account.SubscriptionStatus = accountStatusFor(sub.Status)
	account.PlanName = plans.NameForPriceID(sub.StripePriceID)
	if sub.Status == models.SubscriptionStatusCanceled {
		account.PlanName = plans.FreePlanName
	}
	return s.repo.SaveAccount(account)
}

// accountStatusFor collapses provider statuses into the account enum.
func accountStatusFor(subStatus string) string {
	switch subStatus {
	case models.SubscriptionStatusTrialing:
		return models.SubscriptionStatusTrialing
	case models.SubscriptionStatusActive:
		return models.SubscriptionStatusActive
	case models.SubscriptionStatusPastDue, "unpaid", "incomplete":
		return models.SubscriptionStatusPastDue
	default:
		return models.SubscriptionStatusCanceled
	}
}
