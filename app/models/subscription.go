package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Subscription lifecycle is driven entirely by inbound Stripe webhook events.
// The only user-initiated change is a cancel request routed through the
// billing gateway.
type Subscription struct {
	ID                   uint       `gorm:"primaryKey" json:"id"`
	AccountID            uint       `gorm:"not null;index" json:"account_id"`
	StripeSubscriptionID string     `gorm:"type:varchar(191);uniqueIndex;not null" json:"stripe_subscription_id" validate:"required"`
	Status               string     `gorm:"type:varchar(32);not null;index" json:"status" validate:"required"`
	StripePriceID        string     `gorm:"type:varchar(191);default:'';index" json:"stripe_price_id"`
	Quantity             int        `gorm:"default:1" json:"quantity"`
	CurrentPeriodStart   *time.Time `gorm:"type:timestamp;default:null" json:"current_period_start,omitempty"`
	CurrentPeriodEnd     *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	CancelAt             *time.Time `gorm:"type:timestamp;default:null" json:"cancel_at,omitempty"`
	CanceledAt           *time.Time `gorm:"type:timestamp;default:null" json:"canceled_at,omitempty"`
	TrialEnd             *time.Time `gorm:"type:timestamp;default:null" json:"trial_end,omitempty"`
	EndedAt              *time.Time `gorm:"type:timestamp;default:null" json:"ended_at,omitempty"`
	CreatedAt            time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Account *Account `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE" json:"account,omitempty"`
}

func (s *Subscription) Validate() error {
	v := validator.New()
	return v.Struct(s)
}

func (s *Subscription) Active() bool {
	return s.Status == SubscriptionStatusActive || s.Status == SubscriptionStatusTrialing
}

func (s *Subscription) Canceled() bool {
	return s.Status == SubscriptionStatusCanceled
}

func (s *Subscription) Trialing() bool {
	return s.Status == SubscriptionStatusTrialing
}

func (s *Subscription) PastDue() bool {
	return s.Status == SubscriptionStatusPastDue
}

// CancelAtPeriodEnd reports a scheduled-but-not-yet-effective cancellation.
func (s *Subscription) CancelAtPeriodEnd() bool {
	return s.CancelAt != nil && !s.Canceled()
}

// DaysUntilRenewal returns nil when no period end is known.
func (s *Subscription) DaysUntilRenewal() *int {
	if s.CurrentPeriodEnd == nil {
		return nil
	}
	days := int(time.Until(*s.CurrentPeriodEnd).Hours() / 24)
	return &days
}
