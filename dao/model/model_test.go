package model

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkspaceRoleSatisfies(t *testing.T) {
	assert.True(t, WorkspaceRoleAdmin.Satisfies(WorkspaceRoleMember))
	assert.True(t, WorkspaceRoleAdmin.Satisfies(WorkspaceRolePM))
	assert.True(t, WorkspaceRoleAdmin.Satisfies(WorkspaceRoleAdmin))
	assert.True(t, WorkspaceRolePM.Satisfies(WorkspaceRoleMember))
	assert.False(t, WorkspaceRolePM.Satisfies(WorkspaceRoleAdmin))
	assert.False(t, WorkspaceRoleMember.Satisfies(WorkspaceRolePM))

	// unknown roles grant nothing and are never granted
	assert.False(t, WorkspaceRole("superuser").Satisfies(WorkspaceRoleMember))
	assert.False(t, WorkspaceRoleMember.Satisfies(WorkspaceRole("")))
}

func TestParseWorkspaceRole(t *testing.T) {
	role, err := ParseWorkspaceRole("pm")
	require.NoError(t, err)
	assert.Equal(t, WorkspaceRolePM, role)

	_, err = ParseWorkspaceRole("manager")
	assert.Error(t, err)
}

func TestOrgRoleIsAdmin(t *testing.T) {
	assert.True(t, OrgRoleOwner.IsAdmin())
	assert.True(t, OrgRoleAdmin.IsAdmin())
	assert.False(t, OrgRoleMember.IsAdmin())
	assert.False(t, OrgRole("").IsAdmin())
}

func TestInvitationValidity(t *testing.T) {
	now := time.Now()
	inv := WorkspaceInvitation{ExpiresAt: now.Add(InvitationTTL)}

	assert.True(t, inv.IsValid(now))
	assert.True(t, inv.IsValid(now.Add(InvitationTTL-time.Second)))

	// expiry is exclusive
	assert.False(t, inv.IsValid(now.Add(InvitationTTL)))
	assert.False(t, inv.IsValid(now.Add(InvitationTTL+time.Hour)))

	inv.Used = true
	assert.False(t, inv.IsValid(now))
}

func TestNewInvitationToken(t *testing.T) {
	a := NewInvitationToken()
	b := NewInvitationToken()

	assert.Len(t, a, 43)
	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, "+")
	assert.NotContains(t, a, "/")
	assert.NotContains(t, a, "=")
}

func TestNewOrganizationCode(t *testing.T) {
	code := NewOrganizationCode()

	require.Len(t, code, 10)
	assert.True(t, strings.HasPrefix(code, "ORG-"))
	for _, r := range code[4:] {
		assert.Contains(t, orgCodeAlphabet, string(r))
	}
}

func TestNormalizeOrganizationCode(t *testing.T) {
	assert.Equal(t, "ORG-AB12C3", NormalizeOrganizationCode("  org-ab12c3 "))
	assert.Equal(t, "ORG-AB12C3", NormalizeOrganizationCode("ORG-AB12C3"))
}

func TestProgressPercentage(t *testing.T) {
	assert.Equal(t, 0, ProgressPercentage(0, 0))
	assert.Equal(t, 0, ProgressPercentage(3, 0))
	assert.Equal(t, 0, ProgressPercentage(0, 5))
	assert.Equal(t, 25, ProgressPercentage(1, 4))
	assert.Equal(t, 33, ProgressPercentage(1, 3)) // truncated, not rounded
	assert.Equal(t, 66, ProgressPercentage(2, 3))
	assert.Equal(t, 100, ProgressPercentage(5, 5))
}

func TestTaskStatusOpen(t *testing.T) {
	assert.True(t, TaskStatusTodo.Open())
	assert.True(t, TaskStatusInProgress.Open())
	assert.False(t, TaskStatusDone.Open())
}
