// Package memberships manages who belongs to which account: invitations,
// acceptance, removal and role changes. Every mutation keeps the invariant
// that an account retains at least one owner.
package memberships

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/cornerstone-hq/cornerstone/app/models"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/apperrors"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/audit"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/notifications"
)

// Notifier is the outbound-mail surface the service needs. The default
// implementation enqueues jobs on the redis queue.
type Notifier interface {
	NewUserInvitation(m *models.Membership, account *models.Account)
	MemberInvitation(m *models.Membership, account *models.Account)
	MemberJoined(owner *models.User, joined *models.Membership, account *models.Account)
	InvitationDeclined(inviter *models.User, m *models.Membership, account *models.Account)
}

type queueNotifier struct{}

func (queueNotifier) NewUserInvitation(m *models.Membership, account *models.Account) {
	notifications.NewUserInvitation(m, account)
}

func (queueNotifier) MemberInvitation(m *models.Membership, account *models.Account) {
	notifications.MemberInvitation(m, account)
}

func (queueNotifier) MemberJoined(owner *models.User, joined *models.Membership, account *models.Account) {
	notifications.MemberJoined(owner, joined, account)
}

func (queueNotifier) InvitationDeclined(inviter *models.User, m *models.Membership, account *models.Account) {
	notifications.InvitationDeclined(inviter, m, account)
}

// Service implements membership lifecycle operations.
type Service struct {
	repo     Repository
	audit    *audit.Service
	notifier Notifier
}

// NewService creates a membership service with explicit dependencies.
func NewService(repo Repository, auditSvc *audit.Service, notifier Notifier) *Service {
	if notifier == nil {
		notifier = queueNotifier{}
	}
	return &Service{repo: repo, audit: auditSvc, notifier: notifier}
}

// NewServiceFromDB wires the service with GORM backed dependencies and the
// queue notifier.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db), audit.NewServiceFromDB(db), nil)
}

// Invite creates a membership for the email. When a user already exists for
// the address the membership binds their user id immediately; either way the
// invitation stays pending until accepted. Returns ConflictError when the
// email already has a membership in the account.
func (s *Service) Invite(ctx context.Context, accountID uint, email, role string, invitedByID uint, info audit.RequestInfo) (*models.Membership, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return nil, apperrors.NewValidation("email", "email cannot be blank")
	}
	if !models.ValidRole(role) {
		return nil, apperrors.NewValidation("role", "role must be owner, admin or member")
	}

	account, err := s.repo.AccountByID(accountID)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.GetByAccountAndEmail(accountID, email); err == nil {
		return nil, apperrors.NewConflict("this email already belongs to the account")
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	membership := &models.Membership{
		AccountID:   accountID,
		Email:       email,
		Role:        role,
		InvitedByID: &invitedByID,
	}
	if err := membership.GenerateInvitationToken(); err != nil {
		return nil, err
	}

	existing, err := s.repo.UserByEmail(email)
	switch {
	case err == nil:
		membership.UserID = &existing.ID
	case errors.Is(err, apperrors.ErrNotFound):
		// email-only invitation; user_id resolves at signup or acceptance
	default:
		return nil, err
	}

	if err := s.repo.Create(membership); err != nil {
		return nil, err
	}

	if membership.UserID != nil {
		s.notifier.MemberInvitation(membership, account)
	} else {
		s.notifier.NewUserInvitation(membership, account)
	}

	s.audit.Log(ctx, audit.Entry{
		Action:   models.AuditMembershipInvited,
		User:     &models.User{ID: invitedByID},
		Account:  account,
		Subject:  audit.MembershipSubject(membership.ID),
		Metadata: map[string]any{"email": email, "role": role},
		Request:  info,
	})

	return membership, nil
}

// FindByToken looks up a pending invitation by its token and validates it
// (unexpired, not yet accepted).
func (s *Service) FindByToken(token string) (*models.Membership, error) {
	if token == "" {
		return nil, apperrors.ErrNotFound
	}
	membership, err := s.repo.GetByToken(token)
	if err != nil {
		return nil, err
	}
	if !membership.ValidInvitationToken(token) {
		return nil, apperrors.ErrNotFound
	}
	return membership, nil
}

// Accept binds the accepting user to the membership and marks it accepted.
// Accepting twice is a no-op: the second call returns false with no error
// and no side effects.
func (s *Service) Accept(ctx context.Context, membershipID uint, user *models.User, info audit.RequestInfo) (bool, error) {
	membership, err := s.repo.GetByID(membershipID)
	if err != nil {
		return false, err
	}
	if membership.Accepted() {
		return false, nil
	}
	if membership.UserID != nil && *membership.UserID != user.ID {
		return false, apperrors.ErrForbidden
	}

	now := time.Now()
	membership.UserID = &user.ID
	membership.AcceptedAt = &now
	if err := s.repo.Update(membership); err != nil {
		return false, err
	}

	account, err := s.repo.AccountByID(membership.AccountID)
	if err != nil {
		return false, err
	}
	if owner, err := s.repo.OwnerUser(membership.AccountID); err == nil {
		s.notifier.MemberJoined(owner, membership, account)
	}

	s.audit.Log(ctx, audit.Entry{
		Action:   models.AuditMembershipAccepted,
		User:     user,
		Account:  account,
		Subject:  audit.MembershipSubject(membership.ID),
		Metadata: map[string]any{"role": membership.Role},
		Request:  info,
	})

	return true, nil
}

// Decline deletes a pending invitation and notifies the inviter. Declining
// an accepted membership is a no-op returning false.
func (s *Service) Decline(ctx context.Context, membershipID uint, info audit.RequestInfo) (bool, error) {
	membership, err := s.repo.GetByID(membershipID)
	if err != nil {
		return false, err
	}
	if membership.Accepted() {
		return false, nil
	}

	if err := s.repo.Delete(membership); err != nil {
		return false, err
	}

	account, err := s.repo.AccountByID(membership.AccountID)
	if err == nil && membership.InvitedByID != nil {
		if inviter, err := s.repo.UserByID(*membership.InvitedByID); err == nil {
			s.notifier.InvitationDeclined(inviter, membership, account)
		}
	}

	s.audit.Log(ctx, audit.Entry{
		Action:   models.AuditMembershipDeclined,
		Account:  account,
		Subject:  audit.MembershipSubject(membership.ID),
		Metadata: map[string]any{"email": membership.Email},
		Request:  info,
	})

	return true, nil
}

// Remove deletes a user's membership in the account. Removing the last
// owner is rejected with ConflictError; the membership stays.
func (s *Service) Remove(ctx context.Context, accountID, userID uint, actorID uint, info audit.RequestInfo) error {
	var removed *models.Membership

	err := s.repo.Transaction(func(tx Repository) error {
		membership, err := tx.GetByAccountAndUser(accountID, userID)
		if err != nil {
			return err
		}
		if membership.IsOwner() {
			owners, err := tx.CountOwnersForUpdate(accountID)
			if err != nil {
				return err
			}
			if owners <= 1 {
				return apperrors.NewConflict("cannot remove the last owner of the account")
			}
		}
		removed = membership
		return tx.Delete(membership)
	})
	if err != nil {
		return err
	}

	s.audit.Log(ctx, audit.Entry{
		Action:   models.AuditMembershipRemoved,
		User:     &models.User{ID: actorID},
		Account:  &models.Account{ID: accountID},
		Subject:  audit.MembershipSubject(removed.ID),
		Metadata: map[string]any{"email": removed.Email, "role": removed.Role},
		Request:  info,
	})

	return nil
}

// ChangeRole updates a membership's role. Demoting the last owner is
// rejected with ConflictError.
func (s *Service) ChangeRole(ctx context.Context, accountID, userID uint, newRole string, actorID uint, info audit.RequestInfo) (*models.Membership, error) {
	if !models.ValidRole(newRole) {
		return nil, apperrors.NewValidation("role", "role must be owner, admin or member")
	}

	var membership *models.Membership
	var oldRole string

	err := s.repo.Transaction(func(tx Repository) error {
		m, err := tx.GetByAccountAndUser(accountID, userID)
		if err != nil {
			return err
		}
		if m.Role == newRole {
			membership = m
			oldRole = m.Role
			return nil
		}
		if m.IsOwner() && newRole != models.RoleOwner {
			owners, err := tx.CountOwnersForUpdate(accountID)
			if err != nil {
				return err
			}
			if owners <= 1 {
				return apperrors.NewConflict("cannot demote the last owner of the account")
			}
		}
		oldRole = m.Role
		m.Role = newRole
		membership = m
		return tx.Update(m)
	})
	if err != nil {
		return nil, err
	}

	if oldRole != newRole {
		s.audit.Log(ctx, audit.Entry{
			Action:   models.AuditMembershipRoleChange,
			User:     &models.User{ID: actorID},
			Account:  &models.Account{ID: accountID},
			Subject:  audit.MembershipSubject(membership.ID),
			Metadata: map[string]any{"from": oldRole, "to": newRole},
			Request:  info,
		})
	}

	return membership, nil
}

// List returns the account's memberships, users preloaded.
func (s *Service) List(accountID uint) ([]models.Membership, error) {
	return s.repo.ListByAccount(accountID)
}

// Get returns a single membership by id.
func (s *Service) Get(id uint) (*models.Membership, error) {
	return s.repo.GetByID(id)
}

// ResolvePendingInvitations binds and accepts any email-only invitations
// matching a freshly signed-up user's address. Called after registration.
func (s *Service) ResolvePendingInvitations(ctx context.Context, user *models.User, info audit.RequestInfo) (int, error) {
	pending, err := s.repo.PendingByEmail(user.Email)
	if err != nil {
		return 0, err
	}

	resolved := 0
	for i := range pending {
		ok, err := s.Accept(ctx, pending[i].ID, user, info)
		if err != nil {
			return resolved, err
		}
		if ok {
			resolved++
		}
	}
	return resolved, nil
}
