package models

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
)

// Subscription status values mirrored onto the account for quick gating.
const (
	SubscriptionStatusTrialing = "trialing"
	SubscriptionStatusActive   = "active"
	SubscriptionStatusPastDue  = "past_due"
	SubscriptionStatusCanceled = "canceled"
)

// Account is the tenant/workspace unit. Billing and memberships hang off it.
// The slug is unique and immutable once set.
type Account struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	Name               string    `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=1,max=150"`
	Slug               string    `gorm:"type:varchar(160);uniqueIndex;not null" json:"slug" validate:"required"`
	SubscriptionStatus string    `gorm:"type:varchar(32);not null;default:'trialing';index" json:"subscription_status" validate:"oneof=trialing active past_due canceled"`
	PlanName           string    `gorm:"type:varchar(50);not null;default:'Free'" json:"plan_name"`
	StripeCustomerID   string    `gorm:"type:varchar(191);default:'';index" json:"-"`
	SettingsJSON       string    `gorm:"type:longtext" json:"-"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Memberships []Membership `gorm:"constraint:OnDelete:CASCADE" json:"memberships,omitempty"`
}

func (a *Account) Validate() error {
	v := validator.New()
	return v.Struct(a)
}

// Subscribed reports whether the account counts as paying (active or trialing).
func (a *Account) Subscribed() bool {
	return a.SubscriptionStatus == SubscriptionStatusActive || a.SubscriptionStatus == SubscriptionStatusTrialing
}

// Trial reports whether the account is still in its trial window.
func (a *Account) Trial() bool {
	return a.SubscriptionStatus == SubscriptionStatusTrialing
}

// Settings returns the settings map stored as JSON text. A missing or broken
// payload yields an empty map.
func (a *Account) Settings() map[string]string {
	out := map[string]string{}
	if a.SettingsJSON == "" {
		return out
	}
	if err := json.Unmarshal([]byte(a.SettingsJSON), &out); err != nil {
		return map[string]string{}
	}
	return out
}

// SetSettings replaces the stored settings map.
func (a *Account) SetSettings(settings map[string]string) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	a.SettingsJSON = string(raw)
	return nil
}
