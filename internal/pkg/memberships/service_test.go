package memberships

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cornerstone-hq/cornerstone/app/models"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/apperrors"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/audit"
)

type fakeMembershipRepo struct {
	memberships map[uint]*models.Membership
	users       map[uint]*models.User
	accounts    map[uint]*models.Account
	nextID      uint
}

func newFakeMembershipRepo() *fakeMembershipRepo {
	return &fakeMembershipRepo{
		memberships: map[uint]*models.Membership{},
		users:       map[uint]*models.User{},
		accounts:    map[uint]*models.Account{},
		nextID:      1,
	}
}

func (f *fakeMembershipRepo) addUser(u *models.User) *models.User {
	f.users[u.ID] = u
	return u
}

func (f *fakeMembershipRepo) addAccount(a *models.Account) *models.Account {
	f.accounts[a.ID] = a
	return a
}

func (f *fakeMembershipRepo) addMembership(m *models.Membership) *models.Membership {
	m.ID = f.nextID
	f.nextID++
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	f.memberships[m.ID] = m
	return m
}

func (f *fakeMembershipRepo) Create(m *models.Membership) error {
	f.addMembership(m)
	return nil
}

func (f *fakeMembershipRepo) Update(m *models.Membership) error {
	f.memberships[m.ID] = m
	return nil
}

func (f *fakeMembershipRepo) Delete(m *models.Membership) error {
	delete(f.memberships, m.ID)
	return nil
}

func (f *fakeMembershipRepo) GetByID(id uint) (*models.Membership, error) {
	if m, ok := f.memberships[id]; ok {
		return m, nil
	}
	return nil, apperrors.ErrNotFound
}

func (f *fakeMembershipRepo) GetByToken(token string) (*models.Membership, error) {
	for _, m := range f.memberships {
		if m.InvitationToken == token && token != "" {
			return m, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (f *fakeMembershipRepo) GetByAccountAndUser(accountID, userID uint) (*models.Membership, error) {
	for _, m := range f.memberships {
		if m.AccountID == accountID && m.UserID != nil && *m.UserID == userID {
			return m, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (f *fakeMembershipRepo) GetByAccountAndEmail(accountID uint, email string) (*models.Membership, error) {
	for _, m := range f.memberships {
		if m.AccountID == accountID && m.Email == email {
			return m, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (f *fakeMembershipRepo) ListByAccount(accountID uint) ([]models.Membership, error) {
	var out []models.Membership
	for _, m := range f.memberships {
		if m.AccountID == accountID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeMembershipRepo) PendingByEmail(email string) ([]models.Membership, error) {
	var out []models.Membership
	for _, m := range f.memberships {
		if m.Email == email && m.AcceptedAt == nil && m.UserID == nil {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeMembershipRepo) UserByEmail(email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (f *fakeMembershipRepo) UserByID(id uint) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, apperrors.ErrNotFound
}

func (f *fakeMembershipRepo) AccountByID(id uint) (*models.Account, error) {
	if a, ok := f.accounts[id]; ok {
		return a, nil
	}
	return nil, apperrors.ErrNotFound
}

func (f *fakeMembershipRepo) OwnerUser(accountID uint) (*models.User, error) {
	for _, m := range f.memberships {
		if m.AccountID == accountID && m.Role == models.RoleOwner && m.UserID != nil {
			if u, ok := f.users[*m.UserID]; ok {
				return u, nil
			}
		}
	}
	return nil, apperrors.ErrNotFound
}

func (f *fakeMembershipRepo) CountOwnersForUpdate(accountID uint) (int64, error) {
	var n int64
	for _, m := range f.memberships {
		if m.AccountID == accountID && m.Role == models.RoleOwner {
			n++
		}
	}
	return n, nil
}

func (f *fakeMembershipRepo) Transaction(fn func(Repository) error) error {
	return fn(f)
}

type recordingNotifier struct {
	calls []string
}

func (n *recordingNotifier) NewUserInvitation(m *models.Membership, a *models.Account) {
	n.calls = append(n.calls, "new_user_invitation")
}

func (n *recordingNotifier) MemberInvitation(m *models.Membership, a *models.Account) {
	n.calls = append(n.calls, "member_invitation")
}

func (n *recordingNotifier) MemberJoined(o *models.User, m *models.Membership, a *models.Account) {
	n.calls = append(n.calls, "member_joined")
}

func (n *recordingNotifier) InvitationDeclined(i *models.User, m *models.Membership, a *models.Account) {
	n.calls = append(n.calls, "invitation_declined")
}

type nullAuditRepo struct{}

func (nullAuditRepo) Create(event *models.AuditEvent) error { return nil }

func (nullAuditRepo) ListByAccount(accountID uint, limit int) ([]models.AuditEvent, error) {
	return nil, nil
}

func setup(t *testing.T) (*Service, *fakeMembershipRepo, *recordingNotifier) {
	t.Helper()
	repo := newFakeMembershipRepo()
	notifier := &recordingNotifier{}
	svc := NewService(repo, audit.NewService(nullAuditRepo{}), notifier)

	repo.addAccount(&models.Account{ID: 1, Name: "Acme", Slug: "acme"})
	owner := repo.addUser(&models.User{ID: 1, FirstName: "Owner", Email: "owner@example.com"})
	now := time.Now()
	repo.addMembership(&models.Membership{
		AccountID:  1,
		UserID:     &owner.ID,
		Email:      owner.Email,
		Role:       models.RoleOwner,
		AcceptedAt: &now,
	})
	return svc, repo, notifier
}

func TestInviteUnknownEmailCreatesPendingMembership(t *testing.T) {
	svc, _, notifier := setup(t)

	m, err := svc.Invite(context.Background(), 1, "Bob@Example.com", models.RoleMember, 1, audit.RequestInfo{})
	require.NoError(t, err)

	assert.Nil(t, m.UserID)
	assert.Equal(t, "bob@example.com", m.Email)
	assert.Nil(t, m.AcceptedAt)
	assert.NotEmpty(t, m.InvitationToken)
	assert.Equal(t, []string{"new_user_invitation"}, notifier.calls)
}

func TestInviteExistingUserBindsUserID(t *testing.T) {
	svc, repo, notifier := setup(t)
	repo.addUser(&models.User{ID: 2, Email: "bob@example.com"})

	m, err := svc.Invite(context.Background(), 1, "bob@example.com", models.RoleAdmin, 1, audit.RequestInfo{})
	require.NoError(t, err)

	require.NotNil(t, m.UserID)
	assert.Equal(t, uint(2), *m.UserID)
	assert.Nil(t, m.AcceptedAt)
	assert.Equal(t, []string{"member_invitation"}, notifier.calls)
}

func TestInviteRejectsInvalidRole(t *testing.T) {
	svc, _, _ := setup(t)

	_, err := svc.Invite(context.Background(), 1, "bob@example.com", "superuser", 1, audit.RequestInfo{})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestInviteRejectsDuplicateEmail(t *testing.T) {
	svc, _, _ := setup(t)

	_, err := svc.Invite(context.Background(), 1, "bob@example.com", models.RoleMember, 1, audit.RequestInfo{})
	require.NoError(t, err)
	_, err = svc.Invite(context.Background(), 1, "bob@example.com", models.RoleMember, 1, audit.RequestInfo{})
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}

func TestAcceptIsIdempotent(t *testing.T) {
	svc, repo, notifier := setup(t)
	m, err := svc.Invite(context.Background(), 1, "bob@example.com", models.RoleMember, 1, audit.RequestInfo{})
	require.NoError(t, err)

	bob := repo.addUser(&models.User{ID: 2, Email: "bob@example.com"})

	ok, err := svc.Accept(context.Background(), m.ID, bob, audit.RequestInfo{})
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := repo.GetByID(m.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.UserID)
	assert.Equal(t, bob.ID, *stored.UserID)
	assert.NotNil(t, stored.AcceptedAt)

	ok, err = svc.Accept(context.Background(), m.ID, bob, audit.RequestInfo{})
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, []string{"new_user_invitation", "member_joined"}, notifier.calls)
}

func TestAcceptRejectsWrongUser(t *testing.T) {
	svc, repo, _ := setup(t)
	repo.addUser(&models.User{ID: 2, Email: "bob@example.com"})
	m, err := svc.Invite(context.Background(), 1, "bob@example.com", models.RoleMember, 1, audit.RequestInfo{})
	require.NoError(t, err)

	mallory := repo.addUser(&models.User{ID: 3, Email: "mallory@example.com"})
	_, err = svc.Accept(context.Background(), m.ID, mallory, audit.RequestInfo{})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestDeclineOnlyBeforeAcceptance(t *testing.T) {
	svc, repo, notifier := setup(t)
	m, err := svc.Invite(context.Background(), 1, "bob@example.com", models.RoleMember, 1, audit.RequestInfo{})
	require.NoError(t, err)
	bob := repo.addUser(&models.User{ID: 2, Email: "bob@example.com"})

	ok, err := svc.Accept(context.Background(), m.ID, bob, audit.RequestInfo{})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.Decline(context.Background(), m.ID, audit.RequestInfo{})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NotContains(t, notifier.calls, "invitation_declined")

	// A fresh pending invitation declines cleanly.
	m2, err := svc.Invite(context.Background(), 1, "carol@example.com", models.RoleMember, 1, audit.RequestInfo{})
	require.NoError(t, err)
	ok, err = svc.Decline(context.Background(), m2.ID, audit.RequestInfo{})
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = repo.GetByID(m2.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Contains(t, notifier.calls, "invitation_declined")
}

func TestRemoveLastOwnerFails(t *testing.T) {
	svc, repo, _ := setup(t)

	err := svc.Remove(context.Background(), 1, 1, 1, audit.RequestInfo{})
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))

	_, err = repo.GetByAccountAndUser(1, 1)
	assert.NoError(t, err)
}

func TestRemoveWithSecondOwner(t *testing.T) {
	svc, repo, _ := setup(t)
	second := repo.addUser(&models.User{ID: 2, Email: "two@example.com"})
	now := time.Now()
	repo.addMembership(&models.Membership{
		AccountID:  1,
		UserID:     &second.ID,
		Email:      second.Email,
		Role:       models.RoleOwner,
		AcceptedAt: &now,
	})

	err := svc.Remove(context.Background(), 1, 1, 2, audit.RequestInfo{})
	require.NoError(t, err)
	_, err = repo.GetByAccountAndUser(1, 1)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestChangeRoleGuardsLastOwner(t *testing.T) {
	svc, _, _ := setup(t)

	_, err := svc.ChangeRole(context.Background(), 1, 1, models.RoleAdmin, 1, audit.RequestInfo{})
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}

func TestChangeRolePromotesMember(t *testing.T) {
	svc, repo, _ := setup(t)
	bob := repo.addUser(&models.User{ID: 2, Email: "bob@example.com"})
	now := time.Now()
	repo.addMembership(&models.Membership{
		AccountID:  1,
		UserID:     &bob.ID,
		Email:      bob.Email,
		Role:       models.RoleMember,
		AcceptedAt: &now,
	})

	m, err := svc.ChangeRole(context.Background(), 1, 2, models.RoleOwner, 1, audit.RequestInfo{})
	require.NoError(t, err)
	assert.Equal(t, models.RoleOwner, m.Role)

	// Original owner can now step down.
	m, err = svc.ChangeRole(context.Background(), 1, 1, models.RoleMember, 1, audit.RequestInfo{})
	require.NoError(t, err)
	assert.Equal(t, models.RoleMember, m.Role)
}

func TestFindByTokenRejectsExpired(t *testing.T) {
	svc, repo, _ := setup(t)
	m, err := svc.Invite(context.Background(), 1, "bob@example.com", models.RoleMember, 1, audit.RequestInfo{})
	require.NoError(t, err)

	found, err := svc.FindByToken(m.InvitationToken)
	require.NoError(t, err)
	assert.Equal(t, m.ID, found.ID)

	stored, err := repo.GetByID(m.ID)
	require.NoError(t, err)
	stored.CreatedAt = time.Now().Add(-models.InvitationTTL - time.Hour)

	_, err = svc.FindByToken(m.InvitationToken)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSignupResolvesPendingInvitations(t *testing.T) {
	svc, repo, notifier := setup(t)
	m, err := svc.Invite(context.Background(), 1, "bob@example.com", models.RoleMember, 1, audit.RequestInfo{})
	require.NoError(t, err)
	require.Nil(t, m.UserID)

	bob := repo.addUser(&models.User{ID: 2, Email: "bob@example.com"})
	n, err := svc.ResolvePendingInvitations(context.Background(), bob, audit.RequestInfo{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored, err := repo.GetByID(m.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.UserID)
	assert.Equal(t, bob.ID, *stored.UserID)
	assert.NotNil(t, stored.AcceptedAt)
	assert.Contains(t, notifier.calls, "member_joined")
}
