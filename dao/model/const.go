// Role and status enums shared by the models and the permission
// evaluator. Roles carry an explicit total order so that permission
// checks are a single Satisfies call instead of scattered list
// comparisons.
package model

import "fmt"

// WorkspaceRole is the role of a user inside a single workspace.
type WorkspaceRole string

const (
	WorkspaceRoleMember WorkspaceRole = "member"
	WorkspaceRolePM     WorkspaceRole = "pm"
	WorkspaceRoleAdmin  WorkspaceRole = "admin"
)

func (r WorkspaceRole) rank() int {
	switch r {
	case WorkspaceRoleMember:
		return 1
	case WorkspaceRolePM:
		return 2
	case WorkspaceRoleAdmin:
		return 3
	default:
		return 0
	}
}

func (r WorkspaceRole) Valid() bool { return r.rank() > 0 }

// Satisfies reports whether the role grants at least the required role.
// An unknown role never satisfies anything.
func (r WorkspaceRole) Satisfies(required WorkspaceRole) bool {
	return r.rank() > 0 && r.rank() >= required.rank()
}

func ParseWorkspaceRole(s string) (WorkspaceRole, error) {
	r := WorkspaceRole(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown workspace role %q", s)
	}
	return r, nil
}

// OrgRole is the role of a user inside an organization.
type OrgRole string

const (
	OrgRoleMember OrgRole = "member"
	OrgRoleAdmin  OrgRole = "admin"
	OrgRoleOwner  OrgRole = "owner"
)

func (r OrgRole) rank() int {
	switch r {
	case OrgRoleMember:
		return 1
	case OrgRoleAdmin:
		return 2
	case OrgRoleOwner:
		return 3
	default:
		return 0
	}
}

func (r OrgRole) Valid() bool { return r.rank() > 0 }

// IsAdmin reports whether the role may manage organization members.
func (r OrgRole) IsAdmin() bool { return r == OrgRoleAdmin || r == OrgRoleOwner }

func (r OrgRole) Satisfies(required OrgRole) bool {
	return r.rank() > 0 && r.rank() >= required.rank()
}

// TaskStatus applies to both tasks and subtasks.
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
)

func (s TaskStatus) Valid() bool {
	return s == TaskStatusTodo || s == TaskStatusInProgress || s == TaskStatusDone
}

// Open reports whether the task still counts against due-date checks.
func (s TaskStatus) Open() bool { return s == TaskStatusTodo || s == TaskStatusInProgress }

type SprintStatus string

const (
	SprintStatusUpcoming  SprintStatus = "upcoming"
	SprintStatusActive    SprintStatus = "active"
	SprintStatusCompleted SprintStatus = "completed"
)

func (s SprintStatus) Valid() bool {
	return s == SprintStatusUpcoming || s == SprintStatusActive || s == SprintStatusCompleted
}

// FileKind distinguishes stored uploads from external links.
type FileKind string

const (
	FileKindUpload FileKind = "upload"
	FileKindLink   FileKind = "link"
)
