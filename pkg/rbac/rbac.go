// Package rbac derives the effective role of a user on a resource and
// answers whether an action is allowed. Absence of membership is a
// plain "no", never an error: callers branch on booleans, not on
// control-flow exceptions.
package rbac

import (
	"gorm.io/gorm"

	"github.com/flowboard-labs/flowboard/dao/model"
)

type Action string

const (
	ActionView           Action = "workspace.view"
	ActionManageProjects Action = "projects.manage" // projects and sprints
	ActionManageTasks    Action = "tasks.manage"    // tasks and subtasks
	ActionManageFiles    Action = "files.manage"
	ActionInviteMembers  Action = "members.invite"
	ActionManageMembers  Action = "members.manage" // removal and role changes
)

// requiredRole is the static gate per action. Task edits have an
// extra assignee escape hatch, see CanTouchTask.
var requiredRole = map[Action]model.WorkspaceRole{
	ActionView:           model.WorkspaceRoleMember,
	ActionManageProjects: model.WorkspaceRolePM,
	ActionManageTasks:    model.WorkspaceRolePM,
	ActionManageFiles:    model.WorkspaceRoleAdmin,
	ActionInviteMembers:  model.WorkspaceRoleAdmin,
	ActionManageMembers:  model.WorkspaceRoleAdmin,
}

// RoleOf resolves the user's role in a workspace. The second return
// is false when the user is not a member.
func RoleOf(db *gorm.DB, userID, workspaceID uint) (model.WorkspaceRole, bool) {
	var membership model.WorkspaceMembership
	err := db.Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		First(&membership).Error
	if err != nil {
		return "", false
	}
	return membership.Role, true
}

// Can answers the static per-role action gate.
func Can(db *gorm.DB, userID, workspaceID uint, action Action) bool {
	required, known := requiredRole[action]
	if !known {
		return false
	}
	role, ok := RoleOf(db, userID, workspaceID)
	return ok && role.Satisfies(required)
}

// IsAssignedToTask reports a current assignment on the task itself.
func IsAssignedToTask(db *gorm.DB, userID, taskID uint) bool {
	var n int64
	db.Table("task_assignees").
		Where("task_id = ? AND user_id = ?", taskID, userID).
		Count(&n)
	return n > 0
}

func IsAssignedToSubtask(db *gorm.DB, userID, subtaskID uint) bool {
	var n int64
	db.Table("subtask_assignees").
		Where("subtask_id = ? AND user_id = ?", subtaskID, userID).
		Count(&n)
	return n > 0
}

// CanTouchTask allows pm/admin, and members currently assigned to the
// task.
func CanTouchTask(db *gorm.DB, userID, workspaceID, taskID uint) bool {
	role, ok := RoleOf(db, userID, workspaceID)
	if !ok {
		return false
	}
	if role.Satisfies(model.WorkspaceRolePM) {
		return true
	}
	return IsAssignedToTask(db, userID, taskID)
}

func CanTouchSubtask(db *gorm.DB, userID, workspaceID, subtaskID uint) bool {
	role, ok := RoleOf(db, userID, workspaceID)
	if !ok {
		return false
	}
	if role.Satisfies(model.WorkspaceRolePM) {
		return true
	}
	return IsAssignedToSubtask(db, userID, subtaskID)
}

// OrgRoleOf resolves the user's role in an organization.
func OrgRoleOf(db *gorm.DB, userID, orgID uint) (model.OrgRole, bool) {
	var membership model.OrgMembership
	err := db.Where("organization_id = ? AND user_id = ?", orgID, userID).
		First(&membership).Error
	if err != nil {
		return "", false
	}
	return membership.Role, true
}

// OrgAdminGate is the organization-level gate layered on top of
// workspace-admin checks for destructive member operations. A user
// without a current organization passes the gate: organization-less
// workspaces are unrestricted beyond the workspace role itself.
func OrgAdminGate(db *gorm.DB, userID uint) bool {
	var user model.User
	if err := db.First(&user, userID).Error; err != nil {
		return false
	}
	if user.CurrentOrganizationID == nil {
		return true
	}
	role, ok := OrgRoleOf(db, userID, *user.CurrentOrganizationID)
	return ok && role.IsAdmin()
}

// AdminCount counts workspace admins; the mutation paths use it to
// hold the at-least-one-admin invariant.
func AdminCount(db *gorm.DB, workspaceID uint) int64 {
	var n int64
	db.Model(&model.WorkspaceMembership{}).
		Where("workspace_id = ? AND role = ?", workspaceID, model.WorkspaceRoleAdmin).
		Count(&n)
	return n
}

// HighestRole is the dashboard precedence: admin anywhere beats pm
// anywhere beats member. False when the user has no membership at all.
func HighestRole(db *gorm.DB, userID uint) (model.WorkspaceRole, bool) {
	var memberships []model.WorkspaceMembership
	if err := db.Where("user_id = ?", userID).Find(&memberships).Error; err != nil {
		return "", false
	}
	if len(memberships) == 0 {
		return "", false
	}
	best := model.WorkspaceRole("")
	for i := range memberships {
		role := memberships[i].Role
		if role.Valid() && (!best.Valid() || role.Satisfies(best)) {
			best = role
		}
	}
	if !best.Valid() {
		return "", false
	}
	return best, true
}
