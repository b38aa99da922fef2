package models

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/go-playground/validator/v10"
)

// Membership roles.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// InvitationTTL is how long a pending invitation token stays valid.
const InvitationTTL = 7 * 24 * time.Hour

// ValidRole reports whether role is one of the known membership roles.
func ValidRole(role string) bool {
	switch role {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	default:
		return false
	}
}

// Membership binds a user to an account with a role. UserID stays nil until
// an invited user exists locally; AcceptedAt nil means the invitation is
// still pending.
type Membership struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	AccountID       uint       `gorm:"not null;index;uniqueIndex:ux_memberships_user_account,priority:2" json:"account_id"`
	UserID          *uint      `gorm:"uniqueIndex:ux_memberships_user_account,priority:1" json:"user_id,omitempty"`
	Email           string     `gorm:"type:varchar(200);not null;index" json:"email" validate:"required,email"`
	Role            string     `gorm:"type:varchar(20);not null;default:'member';index" json:"role" validate:"oneof=owner admin member"`
	InvitationToken string     `gorm:"type:varchar(100);uniqueIndex" json:"-"`
	AcceptedAt      *time.Time `gorm:"type:timestamp;default:null" json:"accepted_at,omitempty"`
	InvitedByID     *uint      `gorm:"index" json:"invited_by_id,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Account   *Account `gorm:"foreignKey:AccountID" json:"account,omitempty"`
	User      *User    `gorm:"foreignKey:UserID" json:"user,omitempty"`
	InvitedBy *User    `gorm:"foreignKey:InvitedByID" json:"invited_by,omitempty"`
}

func (m *Membership) Validate() error {
	v := validator.New()
	return v.Struct(m)
}

func (m *Membership) IsOwner() bool {
	return m.Role == RoleOwner
}

func (m *Membership) IsAdmin() bool {
	return m.Role == RoleAdmin
}

func (m *Membership) Pending() bool {
	return m.AcceptedAt == nil
}

func (m *Membership) Accepted() bool {
	return m.AcceptedAt != nil
}

// CanManageMembers reports whether this membership may invite or remove
// other members.
func (m *Membership) CanManageMembers() bool {
	return m.Role == RoleOwner || m.Role == RoleAdmin
}

// CanManageBilling is owner-only.
func (m *Membership) CanManageBilling() bool {
	return m.Role == RoleOwner
}

// GenerateInvitationToken creates and stores a random opaque token. The token
// is persisted at creation time so later changes to the row never invalidate
// outstanding invitation links.
func (m *Membership) GenerateInvitationToken() error {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return err
	}
	m.InvitationToken = hex.EncodeToString(b)
	return nil
}

// ValidInvitationToken compares token in constant time and enforces the
// 7 day invitation window. Accepted memberships never match.
func (m *Membership) ValidInvitationToken(token string) bool {
	if m.Accepted() || m.InvitationToken == "" || token == "" {
		return false
	}
	if time.Since(m.CreatedAt) > InvitationTTL {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(m.InvitationToken), []byte(token)) == 1
}
