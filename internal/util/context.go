package util

import (
	"github.com/gin-gonic/gin"

	"github.com/flowboard-labs/flowboard/dao/model"
)

const (
	UserIDKey   = "x-user-id"
	UsernameKey = "x-user-name"

	OrgIDKey   = "x-org-id"
	OrgRoleKey = "x-org-role"

	// Set by the workspace guard middleware once the :wid membership
	// has been resolved.
	WorkspaceIDKey   = "x-workspace-id"
	WorkspaceRoleKey = "x-workspace-role"
)

func SetJWTContext(c *gin.Context, msg JWTMessage) {
	c.Set(UserIDKey, msg.UserID)
	c.Set(UsernameKey, msg.Username)

	c.Set(OrgIDKey, msg.OrgID)
	c.Set(OrgRoleKey, msg.OrgRole)
}

func GetToken(ctx *gin.Context) JWTMessage {
	var msg JWTMessage
	msg.UserID = ctx.GetUint(UserIDKey)
	msg.Username = ctx.GetString(UsernameKey)
	msg.OrgID = ctx.GetUint(OrgIDKey)

	if role, ok := ctx.Get(OrgRoleKey); ok {
		msg.OrgRole, _ = role.(model.OrgRole)
	}
	return msg
}

func SetWorkspaceContext(c *gin.Context, membership *model.WorkspaceMembership) {
	c.Set(WorkspaceIDKey, membership.WorkspaceID)
	c.Set(WorkspaceRoleKey, membership.Role)
}

// GetWorkspaceRole returns the resolved role for the workspace in the
// request path. Only valid after the workspace guard middleware ran.
func GetWorkspaceRole(ctx *gin.Context) model.WorkspaceRole {
	if role, ok := ctx.Get(WorkspaceRoleKey); ok {
		if r, castOK := role.(model.WorkspaceRole); castOK {
			return r
		}
	}
	return ""
}

func GetWorkspaceID(ctx *gin.Context) uint {
	return ctx.GetUint(WorkspaceIDKey)
}
