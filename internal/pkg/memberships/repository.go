package memberships

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cornerstone-hq/cornerstone/app/models"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/apperrors"
)

// Repository provides DB operations used by the membership service.
type Repository interface {
	Create(m *models.Membership) error
	Update(m *models.Membership) error
	Delete(m *models.Membership) error
	GetByID(id uint) (*models.Membership, error)
	GetByToken(token string) (*models.Membership, error)
	GetByAccountAndUser(accountID, userID uint) (*models.Membership, error)
	GetByAccountAndEmail(accountID uint, email string) (*models.Membership, error)
	ListByAccount(accountID uint) ([]models.Membership, error)
	PendingByEmail(email string) ([]models.Membership, error)
	UserByEmail(email string) (*models.User, error)
	UserByID(id uint) (*models.User, error)
	AccountByID(id uint) (*models.Account, error)
	OwnerUser(accountID uint) (*models.User, error)
	CountOwnersForUpdate(accountID uint) (int64, error)

	Transaction(fn func(Repository) error) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a membership repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func wrapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrNotFound
	}
	return err
}

func (r *gormRepository) Create(m *models.Membership) error {
	return r.db.Create(m).Error
}

func (r *gormRepository) Update(m *models.Membership) error {
	return r.db.Save(m).Error
}

func (r *gormRepository) Delete(m *models.Membership) error {
	return r.db.Delete(m).Error
}

func (r *gormRepository) GetByID(id uint) (*models.Membership, error) {
	var m models.Membership
	if err := r.db.First(&m, id).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &m, nil
}

func (r *gormRepository) GetByToken(token string) (*models.Membership, error) {
	var m models.Membership
	err := r.db.Preload("Account").Preload("InvitedBy").
		Where("invitation_token = ?", token).First(&m).Error
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &m, nil
}

func (r *gormRepository) GetByAccountAndUser(accountID, userID uint) (*models.Membership, error) {
	var m models.Membership
	err := r.db.Where("account_id = ? AND user_id = ?", accountID, userID).First(&m).Error
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &m, nil
}

func (r *gormRepository) GetByAccountAndEmail(accountID uint, email string) (*models.Membership, error) {
	var m models.Membership
	err := r.db.Where("account_id = ? AND email = ?", accountID, email).First(&m).Error
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &m, nil
}

func (r *gormRepository) ListByAccount(accountID uint) ([]models.Membership, error) {
	var out []models.Membership
	err := r.db.Preload("User").
		Where("account_id = ?", accountID).
		Order("created_at").
		Find(&out).Error
	return out, err
}

func (r *gormRepository) PendingByEmail(email string) ([]models.Membership, error) {
	var out []models.Membership
	err := r.db.Where("email = ? AND accepted_at IS NULL AND user_id IS NULL", email).
		Find(&out).Error
	return out, err
}

func (r *gormRepository) UserByEmail(email string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &user, nil
}

func (r *gormRepository) UserByID(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &user, nil
}

func (r *gormRepository) AccountByID(id uint) (*models.Account, error) {
	var account models.Account
	if err := r.db.First(&account, id).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &account, nil
}

func (r *gormRepository) OwnerUser(accountID uint) (*models.User, error) {
	var user models.User
	err := r.db.
		Joins("JOIN memberships ON memberships.user_id = users.id").
		Where("memberships.account_id = ? AND memberships.role = ?", accountID, models.RoleOwner).
		Order("memberships.created_at").
		First(&user).Error
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &user, nil
}

func (r *gormRepository) CountOwnersForUpdate(accountID uint) (int64, error) {
	var ids []uint
	err := r.db.Model(&models.Membership{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("account_id = ? AND role = ?", accountID, models.RoleOwner).
		Pluck("id", &ids).Error
	return int64(len(ids)), err
}

func (r *gormRepository) Transaction(fn func(Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}
