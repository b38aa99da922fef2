package accounts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cornerstone-hq/cornerstone/app/models"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/apperrors"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/audit"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/plans"
)

type fakeAccountRepo struct {
	accounts      map[uint]*models.Account
	memberships   []*models.Membership
	subscriptions map[uint]*models.Subscription
	nextID        uint
	deleted       []uint
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{
		accounts:      map[uint]*models.Account{},
		subscriptions: map[uint]*models.Subscription{},
		nextID:        1,
	}
}

func (f *fakeAccountRepo) SlugExists(slug string) (bool, error) {
	for _, a := range f.accounts {
		if a.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAccountRepo) Create(account *models.Account) error {
	account.ID = f.nextID
	f.nextID++
	f.accounts[account.ID] = account
	return nil
}

func (f *fakeAccountRepo) CreateMembership(m *models.Membership) error {
	f.memberships = append(f.memberships, m)
	return nil
}

func (f *fakeAccountRepo) GetByID(id uint) (*models.Account, error) {
	a, ok := f.accounts[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return a, nil
}

func (f *fakeAccountRepo) GetBySlug(slug string) (*models.Account, error) {
	for _, a := range f.accounts {
		if a.Slug == slug {
			return a, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (f *fakeAccountRepo) Update(account *models.Account) error {
	f.accounts[account.ID] = account
	return nil
}

func (f *fakeAccountRepo) Delete(account *models.Account) error {
	delete(f.accounts, account.ID)
	f.deleted = append(f.deleted, account.ID)
	return nil
}

func (f *fakeAccountRepo) ListByUser(userID uint) ([]models.Account, error) {
	var out []models.Account
	for _, m := range f.memberships {
		if m.UserID != nil && *m.UserID == userID && m.AcceptedAt != nil {
			if a, ok := f.accounts[m.AccountID]; ok {
				out = append(out, *a)
			}
		}
	}
	return out, nil
}

func (f *fakeAccountRepo) CountOwners(accountID uint) (int64, error) {
	var n int64
	for _, m := range f.memberships {
		if m.AccountID == accountID && m.Role == models.RoleOwner {
			n++
		}
	}
	return n, nil
}

func (f *fakeAccountRepo) CountOwnersForUpdate(accountID uint) (int64, error) {
	return f.CountOwners(accountID)
}

func (f *fakeAccountRepo) AcceptedMembership(accountID, userID uint) (*models.Membership, error) {
	for _, m := range f.memberships {
		if m.AccountID == accountID && m.UserID != nil && *m.UserID == userID && m.AcceptedAt != nil {
			return m, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (f *fakeAccountRepo) ActiveSubscription(accountID uint) (*models.Subscription, error) {
	if sub, ok := f.subscriptions[accountID]; ok {
		return sub, nil
	}
	return nil, apperrors.ErrNotFound
}

func (f *fakeAccountRepo) OwnerUser(accountID uint) (*models.User, error) {
	return nil, apperrors.ErrNotFound
}

func (f *fakeAccountRepo) Transaction(fn func(Repository) error) error {
	return fn(f)
}

type recordingAuditRepo struct {
	events []models.AuditEvent
}

func (r *recordingAuditRepo) Create(event *models.AuditEvent) error {
	r.events = append(r.events, *event)
	return nil
}

func (r *recordingAuditRepo) ListByAccount(accountID uint, limit int) ([]models.AuditEvent, error) {
	return r.events, nil
}

func (r *recordingAuditRepo) actions() []string {
	var out []string
	for _, e := range r.events {
		out = append(out, e.Action)
	}
	return out
}

func newTestService() (*Service, *fakeAccountRepo, *recordingAuditRepo) {
	repo := newFakeAccountRepo()
	auditRepo := &recordingAuditRepo{}
	return NewService(repo, audit.NewService(auditRepo)), repo, auditRepo
}

func TestCreateGeneratesUniqueSlugs(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	first, err := svc.Create(ctx, "Acme", 1, audit.RequestInfo{})
	require.NoError(t, err)
	second, err := svc.Create(ctx, "Acme", 1, audit.RequestInfo{})
	require.NoError(t, err)
	third, err := svc.Create(ctx, "Acme", 2, audit.RequestInfo{})
	require.NoError(t, err)

	assert.Equal(t, "acme", first.Slug)
	assert.Equal(t, "acme-1", second.Slug)
	assert.Equal(t, "acme-2", third.Slug)
}

func TestCreateRejectsBlankName(t *testing.T) {
	svc, repo, _ := newTestService()

	_, err := svc.Create(context.Background(), "   ", 1, audit.RequestInfo{})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Empty(t, repo.accounts)
}

func TestCreateAddsOwnerMembership(t *testing.T) {
	svc, repo, auditRepo := newTestService()

	account, err := svc.Create(context.Background(), "Acme", 42, audit.RequestInfo{})
	require.NoError(t, err)

	require.Len(t, repo.memberships, 1)
	m := repo.memberships[0]
	assert.Equal(t, account.ID, m.AccountID)
	require.NotNil(t, m.UserID)
	assert.Equal(t, uint(42), *m.UserID)
	assert.Equal(t, models.RoleOwner, m.Role)
	assert.NotNil(t, m.AcceptedAt)

	assert.Contains(t, auditRepo.actions(), models.AuditAccountCreated)
}

func TestDestroyRefusesSingleOwnerAccount(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	account, err := svc.Create(ctx, "Acme", 1, audit.RequestInfo{})
	require.NoError(t, err)

	err = svc.Destroy(ctx, account.ID, 1, audit.RequestInfo{})
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
	assert.Contains(t, repo.accounts, account.ID)
}

func TestDestroyWithSecondOwner(t *testing.T) {
	svc, repo, auditRepo := newTestService()
	ctx := context.Background()

	account, err := svc.Create(ctx, "Acme", 1, audit.RequestInfo{})
	require.NoError(t, err)
	other := uint(2)
	now := time.Now()
	repo.memberships = append(repo.memberships, &models.Membership{
		AccountID:  account.ID,
		UserID:     &other,
		Role:       models.RoleOwner,
		AcceptedAt: &now,
	})

	err = svc.Destroy(ctx, account.ID, 1, audit.RequestInfo{})
	require.NoError(t, err)
	assert.NotContains(t, repo.accounts, account.ID)
	assert.Contains(t, auditRepo.actions(), models.AuditAccountDestroyed)
}

func TestSwitchContextRequiresAcceptedMembership(t *testing.T) {
	svc, repo, auditRepo := newTestService()
	ctx := context.Background()

	account, err := svc.Create(ctx, "Acme", 1, audit.RequestInfo{})
	require.NoError(t, err)

	// Pending invitation only.
	stranger := uint(9)
	repo.memberships = append(repo.memberships, &models.Membership{
		AccountID: account.ID,
		UserID:    &stranger,
		Role:      models.RoleMember,
	})

	_, err = svc.SwitchContext(ctx, stranger, account.ID, audit.RequestInfo{})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	assert.NotContains(t, auditRepo.actions(), models.AuditAccountSwitched)

	membership, err := svc.SwitchContext(ctx, 1, account.ID, audit.RequestInfo{})
	require.NoError(t, err)
	assert.Equal(t, models.RoleOwner, membership.Role)
	assert.Contains(t, auditRepo.actions(), models.AuditAccountSwitched)
}

func TestPlanResolution(t *testing.T) {
	plans.Setup()
	svc, repo, _ := newTestService()
	ctx := context.Background()

	account, err := svc.Create(ctx, "Acme", 1, audit.RequestInfo{})
	require.NoError(t, err)

	// No subscription: free plan, nothing gated on.
	assert.Equal(t, plans.FreePlanName, svc.PlanName(account.ID))
	assert.False(t, svc.CanAccessFeature(account.ID, "analytics"))

	repo.subscriptions[account.ID] = &models.Subscription{
		AccountID:     account.ID,
		Status:        models.SubscriptionStatusActive,
		StripePriceID: "price_growth_monthly",
	}

	assert.Equal(t, "Growth", svc.PlanName(account.ID))
	assert.True(t, svc.CanAccessFeature(account.ID, "analytics"))

	// Unknown price id degrades to the free plan instead of failing.
	repo.subscriptions[account.ID].StripePriceID = "price_gone"
	assert.Equal(t, plans.FreePlanName, svc.PlanName(account.ID))
}

func TestWithinLimit(t *testing.T) {
	plans.Setup()
	svc, repo, _ := newTestService()
	ctx := context.Background()

	account, err := svc.Create(ctx, "Acme", 1, audit.RequestInfo{})
	require.NoError(t, err)
	repo.subscriptions[account.ID] = &models.Subscription{
		AccountID:     account.ID,
		Status:        models.SubscriptionStatusActive,
		StripePriceID: "price_starter_monthly",
	}

	assert.True(t, svc.WithinLimit(account.ID, "members", 2))
	assert.False(t, svc.WithinLimit(account.ID, "members", 100))
}

func TestUpdateSettingsMerges(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	account, err := svc.Create(ctx, "Acme", 1, audit.RequestInfo{})
	require.NoError(t, err)

	_, err = svc.UpdateSettings(account.ID, map[string]string{"theme": "dark"})
	require.NoError(t, err)
	updated, err := svc.UpdateSettings(account.ID, map[string]string{"locale": "en"})
	require.NoError(t, err)

	settings := updated.Settings()
	assert.Equal(t, "dark", settings["theme"])
	assert.Equal(t, "en", settings["locale"])
}
