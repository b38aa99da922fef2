// Package audit provides the append-only event trail. Events are written
// with explicit actor/account parameters; there is no ambient "current"
// state to reconstruct at read time.
package audit

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/cornerstone-hq/cornerstone/app/models"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/apperrors"
)

// Subject identifies what an event is about: one of the known record kinds
// plus its id. The zero Subject means "no subject".
type Subject struct {
	Kind models.SubjectKind
	ID   uint
}

// AccountSubject tags an account record.
func AccountSubject(id uint) Subject { return Subject{Kind: models.SubjectAccount, ID: id} }

// MembershipSubject tags a membership record.
func MembershipSubject(id uint) Subject { return Subject{Kind: models.SubjectMembership, ID: id} }

// SubscriptionSubject tags a subscription record.
func SubscriptionSubject(id uint) Subject { return Subject{Kind: models.SubjectSubscription, ID: id} }

// PaymentSubject tags a payment record.
func PaymentSubject(id uint) Subject { return Subject{Kind: models.SubjectPayment, ID: id} }

// UserSubject tags a user record.
func UserSubject(id uint) Subject { return Subject{Kind: models.SubjectUser, ID: id} }

// RequestInfo carries the request-scoped fields recorded with each event.
type RequestInfo struct {
	IPAddress string
	UserAgent string
}

// Entry is the input to Log.
type Entry struct {
	Action   string
	User     *models.User
	Account  *models.Account
	Subject  Subject
	Metadata map[string]any
	Request  RequestInfo
}

// Repository persists audit events.
type Repository interface {
	Create(event *models.AuditEvent) error
	ListByAccount(accountID uint, limit int) ([]models.AuditEvent, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates an audit repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Create(event *models.AuditEvent) error {
	return r.db.Create(event).Error
}

func (r *gormRepository) ListByAccount(accountID uint, limit int) ([]models.AuditEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	var events []models.AuditEvent
	err := r.db.Where("account_id = ?", accountID).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// Service appends audit events.
type Service struct {
	repo Repository
}

// NewService creates an audit service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewServiceFromDB creates an audit service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// Log appends one event. The only input it rejects is a blank action.
func (s *Service) Log(ctx context.Context, entry Entry) (*models.AuditEvent, error) {
	_ = ctx
	if strings.TrimSpace(entry.Action) == "" {
		return nil, apperrors.NewValidation("action", "must not be empty")
	}

	event := &models.AuditEvent{
		Action:      entry.Action,
		SubjectKind: entry.Subject.Kind,
		SubjectID:   entry.Subject.ID,
		IPAddress:   entry.Request.IPAddress,
		UserAgent:   entry.Request.UserAgent,
	}
	if entry.User != nil {
		id := entry.User.ID
		event.UserID = &id
	}
	if entry.Account != nil {
		id := entry.Account.ID
		event.AccountID = &id
	}
	if err := event.SetMetadata(entry.Metadata); err != nil {
		return nil, err
	}

	if err := s.repo.Create(event); err != nil {
		return nil, err
	}
	return event, nil
}

// Recent returns the newest events for an account.
func (s *Service) Recent(ctx context.Context, accountID uint, limit int) ([]models.AuditEvent, error) {
	_ = ctx
	return s.repo.ListByAccount(accountID, limit)
}

// Description renders a human readable line for an event. Pure formatting,
// no lookups.
func Description(event *models.AuditEvent, actorName string) string {
	if actorName == "" {
		actorName = "Someone"
	}

	switch event.Action {
	case models.AuditAccountCreated:
		return fmt.Sprintf("%s created the account", actorName)
	case models.AuditAccountUpdated:
		return fmt.Sprintf("%s updated the account", actorName)
	case models.AuditAccountDestroyed:
		return fmt.Sprintf("%s deleted the account", actorName)
	case models.AuditAccountSwitched:
		return fmt.Sprintf("%s switched to this account", actorName)
	case models.AuditMembershipInvited:
		return fmt.Sprintf("%s invited a new member", actorName)
	case models.AuditMembershipAccepted:
		return fmt.Sprintf("%s joined the account", actorName)
	case models.AuditMembershipDeclined:
		return "An invitation was declined"
	case models.AuditMembershipRemoved:
		return fmt.Sprintf("%s removed a member", actorName)
	case models.AuditMembershipRoleChange:
		return fmt.Sprintf("%s changed a member role", actorName)
	case models.AuditSubscriptionCreated:
		return "Subscription created"
	case models.AuditSubscriptionUpdated:
		return "Subscription updated"
	case models.AuditSubscriptionCanceled:
		return "Subscription canceled"
	case models.AuditPaymentSucceeded:
		return "Payment processed successfully"
	case models.AuditPaymentFailed:
		return "Payment failed"
	default:
		return fmt.Sprintf("%s performed %s on %s #%d", actorName, event.Action, event.SubjectKind, event.SubjectID)
	}
}
