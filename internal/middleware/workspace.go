package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/flowboard-labs/flowboard/dao/model"
	"github.com/flowboard-labs/flowboard/internal/resputil"
	"github.com/flowboard-labs/flowboard/internal/util"
)

// RequireWorkspaceRole guards a route group under /:wid. It resolves
// the caller's membership once, stores it in the context and rejects
// callers below the required role with a typed result (no redirects;
// rendering is the frontend's problem).
func RequireWorkspaceRole(db *gorm.DB, required model.WorkspaceRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		wid, err := strconv.ParseUint(c.Param("wid"), 10, 64)
		if err != nil {
			resputil.BadRequestError(c, "invalid workspace id")
			c.Abort()
			return
		}

		var workspace model.Workspace
		if err := db.First(&workspace, uint(wid)).Error; err != nil {
			resputil.Error(c, "workspace not found", resputil.NotFound)
			c.Abort()
			return
		}

		token := util.GetToken(c)
		var membership model.WorkspaceMembership
		err = db.Where("workspace_id = ? AND user_id = ?", workspace.ID, token.UserID).
			First(&membership).Error
		if err != nil {
			resputil.Error(c, "not a member of this workspace", resputil.NotAllowed)
			c.Abort()
			return
		}
		if !membership.Role.Satisfies(required) {
			resputil.Error(c, "insufficient workspace role", resputil.NotAllowed)
			c.Abort()
			return
		}

		util.SetWorkspaceContext(c, &membership)
		c.Next()
	}
}
