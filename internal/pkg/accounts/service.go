// Package accounts manages tenant accounts: creation with an owner
// membership, slug assignment, account switching and plan based feature
// gating.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/cornerstone-hq/cornerstone/app/models"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/apperrors"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/audit"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/plans"
)

// Service implements account lifecycle operations.
type Service struct {
	repo  Repository
	audit *audit.Service
}

// NewService creates an account service with explicit dependencies.
func NewService(repo Repository, auditSvc *audit.Service) *Service {
	return &Service{repo: repo, audit: auditSvc}
}

// NewServiceFromDB wires the service with GORM backed dependencies.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db), audit.NewServiceFromDB(db))
}

// Create creates an account and its owner membership in one transaction.
// The slug is derived from the name; numeric suffixes resolve collisions.
func (s *Service) Create(ctx context.Context, name string, ownerID uint, info audit.RequestInfo) (*models.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidation("name", "name cannot be blank")
	}

	slug, err := s.availableSlug(name)
	if err != nil {
		return nil, err
	}

	account := &models.Account{
		Name:               name,
		Slug:               slug,
		SubscriptionStatus: models.SubscriptionStatusTrialing,
		PlanName:           plans.FreePlanName,
	}
	if err := account.Validate(); err != nil {
		return nil, apperrors.NewValidation("account", err.Error())
	}

	err = s.repo.Transaction(func(tx Repository) error {
		if err := tx.Create(account); err != nil {
			return err
		}
		membership := &models.Membership{
			AccountID:  account.ID,
			UserID:     &ownerID,
			Role:       models.RoleOwner,
			AcceptedAt: nowPtr(),
		}
		return tx.CreateMembership(membership)
	})
	if err != nil {
		return nil, err
	}

	s.audit.Log(ctx, audit.Entry{
		Action:   models.AuditAccountCreated,
		User:     &models.User{ID: ownerID},
		Account:  account,
		Subject:  audit.AccountSubject(account.ID),
		Metadata: map[string]any{"name": account.Name, "slug": account.Slug},
		Request:  info,
	})

	return account, nil
}

// Get returns the account by id.
func (s *Service) Get(id uint) (*models.Account, error) {
	return s.repo.GetByID(id)
}

// GetBySlug returns the account by its URL slug.
func (s *Service) GetBySlug(slug string) (*models.Account, error) {
	return s.repo.GetBySlug(slug)
}

// ListForUser returns the accounts the user has an accepted membership in.
func (s *Service) ListForUser(userID uint) ([]models.Account, error) {
	return s.repo.ListByUser(userID)
}

// Update renames the account. The slug stays stable so invitation links and
// bookmarks keep working.
func (s *Service) Update(ctx context.Context, accountID uint, name string, actorID uint, info audit.RequestInfo) (*models.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidation("name", "name cannot be blank")
	}

	account, err := s.repo.GetByID(accountID)
	if err != nil {
		return nil, err
	}
	account.Name = name
	if err := s.repo.Update(account); err != nil {
		return nil, err
	}

	s.audit.Log(ctx, audit.Entry{
		Action:   models.AuditAccountUpdated,
		User:     &models.User{ID: actorID},
		Account:  account,
		Subject:  audit.AccountSubject(account.ID),
		Metadata: map[string]any{"name": account.Name},
		Request:  info,
	})

	return account, nil
}

// UpdateSettings merges the given keys into the account settings map.
func (s *Service) UpdateSettings(accountID uint, settings map[string]string) (*models.Account, error) {
	account, err := s.repo.GetByID(accountID)
	if err != nil {
		return nil, err
	}
	merged := account.Settings()
	for k, v := range settings {
		merged[k] = v
	}
	if err := account.SetSettings(merged); err != nil {
		return nil, err
	}
	if err := s.repo.Update(account); err != nil {
		return nil, err
	}
	return account, nil
}

// Destroy deletes an account and everything hanging off it. Accounts with a
// single owner membership cannot be destroyed so the owner does not strand
// the team by accident.
func (s *Service) Destroy(ctx context.Context, accountID uint, actorID uint, info audit.RequestInfo) error {
	account, err := s.repo.GetByID(accountID)
	if err != nil {
		return err
	}

	err = s.repo.Transaction(func(tx Repository) error {
		owners, err := tx.CountOwnersForUpdate(account.ID)
		if err != nil {
			return err
		}
		if owners == 1 {
			return apperrors.NewConflict("only owner: transfer ownership before deleting the account")
		}
		return tx.Delete(account)
	})
	if err != nil {
		return err
	}

	s.audit.Log(ctx, audit.Entry{
		Action:   models.AuditAccountDestroyed,
		User:     &models.User{ID: actorID},
		Subject:  audit.AccountSubject(account.ID),
		Metadata: map[string]any{"name": account.Name, "slug": account.Slug},
		Request:  info,
	})

	return nil
}

// SwitchContext verifies the user holds an accepted membership in the target
// account and records the switch. It returns the membership so callers can
// stash role information alongside the new account id.
func (s *Service) SwitchContext(ctx context.Context, userID, accountID uint, info audit.RequestInfo) (*models.Membership, error) {
	membership, err := s.repo.AcceptedMembership(accountID, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrForbidden
		}
		return nil, err
	}

	s.audit.Log(ctx, audit.Entry{
		Action:  models.AuditAccountSwitched,
		User:    &models.User{ID: userID},
		Account: &models.Account{ID: accountID},
		Subject: audit.AccountSubject(accountID),
		Request: info,
	})

	return membership, nil
}

// Plan resolves the account's current plan from its active subscription's
// price id. Accounts without an active subscription, or with a price id that
// maps to no known plan, get a nil plan.
func (s *Service) Plan(accountID uint) (*plans.Plan, error) {
	sub, err := s.repo.ActiveSubscription(accountID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return plans.ByPriceID(sub.StripePriceID), nil
}

// PlanName returns the display name of the account's plan, "Free" when none.
func (s *Service) PlanName(accountID uint) string {
	plan, err := s.Plan(accountID)
	if err != nil || plan == nil {
		return plans.FreePlanName
	}
	return plan.Name
}

// CanAccessFeature reports whether the account's plan includes the feature.
func (s *Service) CanAccessFeature(accountID uint, feature string) bool {
	plan, err := s.Plan(accountID)
	if err != nil {
		return false
	}
	return plan.HasFeature(feature)
}

// WithinLimit reports whether usage is below the plan's limit for the
// feature. Unlimited features always pass.
func (s *Service) WithinLimit(accountID uint, feature string, usage float64) bool {
	plan, err := s.Plan(accountID)
	if err != nil || !plan.HasFeature(feature) {
		return false
	}
	return usage < plan.FeatureLimit(feature)
}

// availableSlug parameterizes the name and walks numeric suffixes until the
// slug is free: "acme", "acme-1", "acme-2", ...
func (s *Service) availableSlug(name string) (string, error) {
	base := Parameterize(name)
	if base == "" {
		base = "account"
	}
	candidate := base
	for i := 1; ; i++ {
		taken, err := s.repo.SlugExists(candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}

func nowPtr() *time.Time {
	now := time.Now()
	return &now
}
