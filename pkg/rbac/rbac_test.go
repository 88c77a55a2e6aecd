package rbac

import (
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/flowboard-labs/flowboard/dao/model"
	"github.com/flowboard-labs/flowboard/dao/query"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, query.MigrateForTest(db))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, name string) *model.User {
	t.Helper()
	user := &model.User{
		Username: name,
		Email:    name + "@example.com",
		Password: "x",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedWorkspace(t *testing.T, db *gorm.DB, creator *model.User) *model.Workspace {
	t.Helper()
	ws := &model.Workspace{Name: "ws", CreatedByID: creator.ID}
	require.NoError(t, db.Create(ws).Error)
	return ws
}

func addMember(t *testing.T, db *gorm.DB, ws *model.Workspace, user *model.User, role model.WorkspaceRole) {
	t.Helper()
	require.NoError(t, db.Create(&model.WorkspaceMembership{
		WorkspaceID: ws.ID,
		UserID:      user.ID,
		Role:        role,
	}).Error)
}

func TestRoleOf(t *testing.T) {
	db := newTestDB(t)
	admin := seedUser(t, db, "admin")
	outsider := seedUser(t, db, "outsider")
	ws := seedWorkspace(t, db, admin)
	addMember(t, db, ws, admin, model.WorkspaceRoleAdmin)

	role, ok := RoleOf(db, admin.ID, ws.ID)
	require.True(t, ok)
	assert.Equal(t, model.WorkspaceRoleAdmin, role)

	_, ok = RoleOf(db, outsider.ID, ws.ID)
	assert.False(t, ok)
}

func TestCan(t *testing.T) {
	db := newTestDB(t)
	admin := seedUser(t, db, "admin")
	pm := seedUser(t, db, "pm")
	member := seedUser(t, db, "member")
	outsider := seedUser(t, db, "outsider")
	ws := seedWorkspace(t, db, admin)
	addMember(t, db, ws, admin, model.WorkspaceRoleAdmin)
	addMember(t, db, ws, pm, model.WorkspaceRolePM)
	addMember(t, db, ws, member, model.WorkspaceRoleMember)

	assert.True(t, Can(db, member.ID, ws.ID, ActionView))
	assert.False(t, Can(db, member.ID, ws.ID, ActionManageProjects))
	assert.False(t, Can(db, member.ID, ws.ID, ActionInviteMembers))

	assert.True(t, Can(db, pm.ID, ws.ID, ActionManageProjects))
	assert.True(t, Can(db, pm.ID, ws.ID, ActionManageTasks))
	assert.False(t, Can(db, pm.ID, ws.ID, ActionManageFiles))
	assert.False(t, Can(db, pm.ID, ws.ID, ActionManageMembers))

	assert.True(t, Can(db, admin.ID, ws.ID, ActionManageMembers))
	assert.True(t, Can(db, admin.ID, ws.ID, ActionInviteMembers))

	assert.False(t, Can(db, outsider.ID, ws.ID, ActionView))
	assert.False(t, Can(db, admin.ID, ws.ID, Action("unknown.action")))
}

func TestCanTouchTaskAssigneeEscape(t *testing.T) {
	db := newTestDB(t)
	admin := seedUser(t, db, "admin")
	assigned := seedUser(t, db, "assigned")
	bystander := seedUser(t, db, "bystander")
	ws := seedWorkspace(t, db, admin)
	addMember(t, db, ws, admin, model.WorkspaceRoleAdmin)
	addMember(t, db, ws, assigned, model.WorkspaceRoleMember)
	addMember(t, db, ws, bystander, model.WorkspaceRoleMember)

	project := &model.Project{WorkspaceID: ws.ID, Name: "p", CreatedByID: admin.ID}
	require.NoError(t, db.Create(project).Error)
	task := &model.Task{ProjectID: project.ID, Title: "t", Status: model.TaskStatusTodo, CreatedByID: admin.ID}
	require.NoError(t, db.Create(task).Error)
	require.NoError(t, db.Model(task).Association("Assignees").Append(assigned))

	assert.True(t, CanTouchTask(db, admin.ID, ws.ID, task.ID))
	assert.True(t, CanTouchTask(db, assigned.ID, ws.ID, task.ID))
	assert.False(t, CanTouchTask(db, bystander.ID, ws.ID, task.ID))
}

func TestOrgAdminGate(t *testing.T) {
	db := newTestDB(t)
	noOrg := seedUser(t, db, "noorg")
	orgMember := seedUser(t, db, "orgmember")
	orgAdmin := seedUser(t, db, "orgadmin")

	org := &model.Organization{Name: "acme", Code: model.NewOrganizationCode(), CreatedByID: orgAdmin.ID}
	require.NoError(t, db.Create(org).Error)
	require.NoError(t, db.Create(&model.OrgMembership{
		OrganizationID: org.ID, UserID: orgMember.ID, Role: model.OrgRoleMember,
	}).Error)
	require.NoError(t, db.Create(&model.OrgMembership{
		OrganizationID: org.ID, UserID: orgAdmin.ID, Role: model.OrgRoleOwner,
	}).Error)
	require.NoError(t, db.Model(&model.User{}).Where("id = ?", orgMember.ID).
		Update("current_organization_id", org.ID).Error)
	require.NoError(t, db.Model(&model.User{}).Where("id = ?", orgAdmin.ID).
		Update("current_organization_id", org.ID).Error)

	// a user without a current organization passes the gate
	assert.True(t, OrgAdminGate(db, noOrg.ID))

	assert.False(t, OrgAdminGate(db, orgMember.ID))
	assert.True(t, OrgAdminGate(db, orgAdmin.ID))
}

func TestAdminCount(t *testing.T) {
	db := newTestDB(t)
	a := seedUser(t, db, "a")
	b := seedUser(t, db, "b")
	ws := seedWorkspace(t, db, a)
	addMember(t, db, ws, a, model.WorkspaceRoleAdmin)
	addMember(t, db, ws, b, model.WorkspaceRoleMember)

	assert.EqualValues(t, 1, AdminCount(db, ws.ID))

	require.NoError(t, db.Model(&model.WorkspaceMembership{}).
		Where("workspace_id = ? AND user_id = ?", ws.ID, b.ID).
		Update("role", model.WorkspaceRoleAdmin).Error)
	assert.EqualValues(t, 2, AdminCount(db, ws.ID))
}

func TestHighestRole(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "multi")
	other := seedUser(t, db, "other")

	ws1 := seedWorkspace(t, db, other)
	ws2 := seedWorkspace(t, db, other)
	ws3 := seedWorkspace(t, db, other)
	addMember(t, db, ws1, user, model.WorkspaceRoleMember)
	addMember(t, db, ws2, user, model.WorkspaceRoleAdmin)
	addMember(t, db, ws3, user, model.WorkspaceRolePM)

	role, ok := HighestRole(db, user.ID)
	require.True(t, ok)
	assert.Equal(t, model.WorkspaceRoleAdmin, role)

	_, ok = HighestRole(db, other.ID)
	assert.False(t, ok)
}
