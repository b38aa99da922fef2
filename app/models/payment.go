package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusFailed    = "failed"
)

// Payment is an append-only ledger entry per invoice event. Rows are never
// updated; a retried or recovered invoice produces a new row.
type Payment struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	AccountID       uint       `gorm:"not null;index" json:"account_id"`
	Amount          float64    `gorm:"type:decimal(12,2);not null" json:"amount" validate:"required,gt=0"`
	Currency        string     `gorm:"type:varchar(10);not null" json:"currency" validate:"required"`
	Status          string     `gorm:"type:varchar(20);not null;index" json:"status" validate:"oneof=succeeded failed"`
	StripeInvoiceID string     `gorm:"type:varchar(191);not null;index" json:"stripe_invoice_id"`
	Description     string     `gorm:"type:text" json:"description"`
	FailureReason   string     `gorm:"type:text" json:"failure_reason,omitempty"`
	PaidAt          *time.Time `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`

	Account *Account `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE" json:"account,omitempty"`
}

func (p *Payment) Validate() error {
	v := validator.New()
	return v.Struct(p)
}

func (p *Payment) Succeeded() bool {
	return p.Status == PaymentStatusSucceeded
}

func (p *Payment) Failed() bool {
	return p.Status == PaymentStatusFailed
}

// FormattedAmount renders "EUR 12.34" style output for API payloads.
func (p *Payment) FormattedAmount() string {
	return fmt.Sprintf("%s %.2f", strings.ToUpper(p.Currency), p.Amount)
}

// AmountFromMinorUnits converts a provider integer amount (cents) into the
// decimal stored on the ledger. Currency math in the domain never goes
// through locale-sensitive string parsing.
func AmountFromMinorUnits(minor int64) float64 {
	return float64(minor) / 100
}
