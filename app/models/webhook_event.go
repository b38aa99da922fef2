package models

import "time"

// Billing provider identifiers.
const (
	BillingProviderStripe = "stripe"
)

// WebhookEvent stores every inbound provider event with deduplication
// metadata. The unique (provider, event_id) pair is the idempotency
// backstop: at-least-once delivery maps to at-most-once side effects.
type WebhookEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Provider        string     `gorm:"type:varchar(20);not null;index:ux_webhook_events_provider_event,unique,priority:1" json:"provider"`
	EventID         string     `gorm:"type:varchar(191);not null;index:ux_webhook_events_provider_event,unique,priority:2" json:"event_id"`
	EventType       string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	PayloadJSON     string     `gorm:"type:longtext;not null" json:"payload_json"`
	AccountID       *uint      `gorm:"index" json:"account_id,omitempty"`
	UserID          *uint      `gorm:"index" json:"user_id,omitempty"`
	ProcessedAt     *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processing_error,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
}
