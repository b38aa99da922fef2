package models

import (
	"encoding/json"
	"time"
)

// SubjectKind is the closed set of things an audit event can point at.
// Keeping this an enum instead of a free-form type name makes dispatch on
// the subject exhaustive.
type SubjectKind string

const (
	SubjectAccount      SubjectKind = "account"
	SubjectMembership   SubjectKind = "membership"
	SubjectSubscription SubjectKind = "subscription"
	SubjectPayment      SubjectKind = "payment"
	SubjectUser         SubjectKind = "user"
)

// Known audit actions. The column stays a string so new actions never need
// a migration, but everything the app emits is listed here.
const (
	AuditAccountCreated       = "account_created"
	AuditAccountUpdated       = "account_updated"
	AuditAccountDestroyed     = "account_destroyed"
	AuditAccountSwitched      = "account_switched"
	AuditMembershipInvited    = "membership_invited"
	AuditMembershipAccepted   = "membership_accepted"
	AuditMembershipDeclined   = "membership_declined"
	AuditMembershipRemoved    = "membership_removed"
	AuditMembershipRoleChange = "membership_role_changed"
	AuditSubscriptionCreated  = "subscription_created"
	AuditSubscriptionUpdated  = "subscription_updated"
	AuditSubscriptionCanceled = "subscription_canceled"
	AuditPaymentSucceeded     = "payment_succeeded"
	AuditPaymentFailed        = "payment_failed"
)

// AuditEvent is append-only. Rows are only ever removed by the cascade when
// the account they belong to is destroyed.
type AuditEvent struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	AccountID    *uint       `gorm:"index" json:"account_id,omitempty"`
	UserID       *uint       `gorm:"index" json:"user_id,omitempty"`
	Action       string      `gorm:"type:varchar(100);not null;index" json:"action"`
	SubjectKind  SubjectKind `gorm:"type:varchar(32);default:''" json:"subject_kind,omitempty"`
	SubjectID    uint        `gorm:"default:0" json:"subject_id,omitempty"`
	MetadataJSON string      `gorm:"type:longtext" json:"-"`
	IPAddress    string      `gorm:"type:varchar(45);default:''" json:"ip_address,omitempty"`
	UserAgent    string      `gorm:"type:varchar(255);default:''" json:"user_agent,omitempty"`
	CreatedAt    time.Time   `gorm:"autoCreateTime;index" json:"created_at"`

	Account *Account `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE" json:"account,omitempty"`
	User    *User    `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// Metadata decodes the stored metadata map; broken payloads yield an empty map.
func (e *AuditEvent) Metadata() map[string]any {
	out := map[string]any{}
	if e.MetadataJSON == "" {
		return out
	}
	if err := json.Unmarshal([]byte(e.MetadataJSON), &out); err != nil {
		return map[string]any{}
	}
	return out
}

// SetMetadata encodes the metadata map for storage.
func (e *AuditEvent) SetMetadata(metadata map[string]any) error {
	if metadata == nil {
		e.MetadataJSON = ""
		return nil
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	e.MetadataJSON = string(raw)
	return nil
}
