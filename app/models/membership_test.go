package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidRole(t *testing.T) {
	for _, role := range []string{RoleOwner, RoleAdmin, RoleMember} {
		if !ValidRole(role) {
			t.Fatalf("expected role %q to be valid", role)
		}
	}
	for _, role := range []string{"", "superadmin", "Owner"} {
		if ValidRole(role) {
			t.Fatalf("expected role %q to be invalid", role)
		}
	}
}

func TestGenerateInvitationToken(t *testing.T) {
	m := &Membership{AccountID: 1, Email: "invitee@example.com", Role: RoleMember}

	require.NoError(t, m.GenerateInvitationToken())
	assert.Len(t, m.InvitationToken, 64)

	first := m.InvitationToken
	require.NoError(t, m.GenerateInvitationToken())
	assert.NotEqual(t, first, m.InvitationToken)
}

func TestValidInvitationToken(t *testing.T) {
	m := &Membership{AccountID: 1, Email: "invitee@example.com", Role: RoleMember, CreatedAt: time.Now()}
	require.NoError(t, m.GenerateInvitationToken())

	assert.True(t, m.ValidInvitationToken(m.InvitationToken))
	assert.False(t, m.ValidInvitationToken(""))
	assert.False(t, m.ValidInvitationToken("deadbeef"))

	// Accepted memberships never match.
	now := time.Now()
	m.AcceptedAt = &now
	assert.False(t, m.ValidInvitationToken(m.InvitationToken))
}

func TestValidInvitationTokenExpiry(t *testing.T) {
	m := &Membership{AccountID: 1, Email: "invitee@example.com", Role: RoleMember}
	require.NoError(t, m.GenerateInvitationToken())

	m.CreatedAt = time.Now().Add(-6 * 24 * time.Hour)
	assert.True(t, m.ValidInvitationToken(m.InvitationToken))

	m.CreatedAt = time.Now().Add(-8 * 24 * time.Hour)
	assert.False(t, m.ValidInvitationToken(m.InvitationToken))
}

func TestMembershipRoleHelpers(t *testing.T) {
	owner := &Membership{Role: RoleOwner}
	admin := &Membership{Role: RoleAdmin}
	member := &Membership{Role: RoleMember}

	assert.True(t, owner.CanManageMembers())
	assert.True(t, owner.CanManageBilling())
	assert.True(t, admin.CanManageMembers())
	assert.False(t, admin.CanManageBilling())
	assert.False(t, member.CanManageMembers())
	assert.False(t, member.CanManageBilling())
}

func TestMembershipPendingAccepted(t *testing.T) {
	m := &Membership{}
	assert.True(t, m.Pending())
	assert.False(t, m.Accepted())

	now := time.Now()
	m.AcceptedAt = &now
	assert.False(t, m.Pending())
	assert.True(t, m.Accepted())
}
