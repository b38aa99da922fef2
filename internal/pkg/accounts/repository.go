package accounts

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cornerstone-hq/cornerstone/app/models"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/apperrors"
)

// Repository provides DB operations used by the account service.
type Repository interface {
	SlugExists(slug string) (bool, error)
	Create(account *models.Account) error
	CreateMembership(m *models.Membership) error
	GetByID(id uint) (*models.Account, error)
	GetBySlug(slug string) (*models.Account, error)
	Update(account *models.Account) error
	Delete(account *models.Account) error
	ListByUser(userID uint) ([]models.Account, error)
	CountOwners(accountID uint) (int64, error)
	CountOwnersForUpdate(accountID uint) (int64, error)
	AcceptedMembership(accountID, userID uint) (*models.Membership, error)
	ActiveSubscription(accountID uint) (*models.Subscription, error)
	OwnerUser(accountID uint) (*models.User, error)

	// Transaction runs fn against a repository bound to a single DB
	// transaction.
	Transaction(fn func(Repository) error) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates an account repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) SlugExists(slug string) (bool, error) {
	var count int64
	err := r.db.Model(&models.Account{}).Where("slug = ?", slug).Count(&count).Error
	return count > 0, err
}

func (r *gormRepository) Create(account *models.Account) error {
	return r.db.Create(account).Error
}

func (r *gormRepository) CreateMembership(m *models.Membership) error {
	return r.db.Create(m).Error
}

func (r *gormRepository) GetByID(id uint) (*models.Account, error) {
	var account models.Account
	if err := r.db.First(&account, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *gormRepository) GetBySlug(slug string) (*models.Account, error) {
	var account models.Account
	if err := r.db.Where("slug = ?", slug).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *gormRepository) Update(account *models.Account) error {
	return r.db.Save(account).Error
}

func (r *gormRepository) Delete(account *models.Account) error {
	// FK constraints cascade memberships, subscriptions, payments and audit
	// events with the account row.
	return r.db.Delete(account).Error
}

func (r *gormRepository) ListByUser(userID uint) ([]models.Account, error) {
	var accounts []models.Account
	err := r.db.
		Joins("JOIN memberships ON memberships.account_id = accounts.id").
		Where("memberships.user_id = ? AND memberships.accepted_at IS NOT NULL", userID).
		Order("accounts.name").
		Find(&accounts).Error
	return accounts, err
}

func (r *gormRepository) CountOwners(accountID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Membership{}).
		Where("account_id = ? AND role = ?", accountID, models.RoleOwner).
		Count(&count).Error
	return count, err
}

func (r *gormRepository) CountOwnersForUpdate(accountID uint) (int64, error) {
	// Locks the account's owner memberships so a concurrent removal cannot
	// race past the last-owner check.
	var ids []uint
	err := r.db.Model(&models.Membership{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("account_id = ? AND role = ?", accountID, models.RoleOwner).
		Pluck("id", &ids).Error
	return int64(len(ids)), err
}

func (r *gormRepository) AcceptedMembership(accountID, userID uint) (*models.Membership, error) {
	var m models.Membership
	err := r.db.Where("account_id = ? AND user_id = ? AND accepted_at IS NOT NULL", accountID, userID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *gormRepository) ActiveSubscription(accountID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("account_id = ? AND status IN ?", accountID,
		[]string{models.SubscriptionStatusActive, models.SubscriptionStatusTrialing}).
		Order("created_at DESC").
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) OwnerUser(accountID uint) (*models.User, error) {
	var user models.User
	err := r.db.
		Joins("JOIN memberships ON memberships.user_id = users.id").
		Where("memberships.account_id = ? AND memberships.role = ?", accountID, models.RoleOwner).
		Order("memberships.created_at").
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) Transaction(fn func(Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}
