package handler

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/flowboard-labs/flowboard/dao/model"
	"github.com/flowboard-labs/flowboard/internal/middleware"
	"github.com/flowboard-labs/flowboard/internal/resputil"
	"github.com/flowboard-labs/flowboard/internal/util"
	"github.com/flowboard-labs/flowboard/pkg/logutils"
	"github.com/flowboard-labs/flowboard/pkg/rbac"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewWorkspaceMgr)
}

type WorkspaceMgr struct {
	name string
	db   *gorm.DB
}

// errLastAdmin aborts a membership transaction that would leave the
// workspace without an admin.
var errLastAdmin = errors.New("workspace must keep at least one admin")

func NewWorkspaceMgr(conf RegisterConfig) Manager {
	return &WorkspaceMgr{name: "workspace", db: conf.DB}
}

func (mgr *WorkspaceMgr) GetName() string { return mgr.name }

func (mgr *WorkspaceMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *WorkspaceMgr) RegisterProtected(g *gin.RouterGroup) {
	g.GET("/workspaces", mgr.ListMine)
	g.POST("/workspaces", mgr.Create)

	view := g.Group("/workspaces/:wid",
		middleware.RequireWorkspaceRole(mgr.db, model.WorkspaceRoleMember))
	view.GET("", mgr.Get)
	view.GET("/members", mgr.ListMembers)

	admin := g.Group("/workspaces/:wid",
		middleware.RequireWorkspaceRole(mgr.db, model.WorkspaceRoleAdmin))
	admin.PUT("", mgr.Update)
	admin.DELETE("", mgr.Delete)
	admin.POST("/members", mgr.AddMember)
	admin.DELETE("/members/:mid", mgr.RemoveMember)
	admin.PUT("/members/:mid/role", mgr.ChangeRole)
}

type (
	WorkspaceReq struct {
		Name        string `json:"name" binding:"required,max=200"`
		Description string `json:"description"`
	}

	WorkspaceResp struct {
		ID          uint                `json:"id"`
		Name        string              `json:"name"`
		Description string              `json:"description"`
		Role        model.WorkspaceRole `json:"role"`
		CreatedAt   time.Time           `json:"createdAt"`
	}

	WorkspaceDetailResp struct {
		WorkspaceResp
		MemberCount  int64 `json:"memberCount"`
		ProjectCount int64 `json:"projectCount"`
	}

	AddMemberReq struct {
		UserID uint   `json:"userID" binding:"required"`
		Role   string `json:"role" binding:"required"`
	}

	ChangeRoleReq struct {
		Role string `json:"role" binding:"required"`
	}

	WorkspaceMemberResp struct {
		MembershipID uint                `json:"membershipID"`
		UserID       uint                `json:"userID"`
		Username     string              `json:"username"`
		Email        string              `json:"email"`
		Role         model.WorkspaceRole `json:"role"`
		JoinedAt     time.Time           `json:"joinedAt"`
	}
)

// ListMine godoc
// @Summary List the caller's workspaces
// @Tags Workspace
// @Produce json
// @Security Bearer
// @Success 200 {object} resputil.Response[[]WorkspaceResp] "workspaces with the caller's role"
// @Router /workspaces [get]
func (mgr *WorkspaceMgr) ListMine(c *gin.Context) {
	token := util.GetToken(c)

	var memberships []model.WorkspaceMembership
	err := mgr.db.Preload("Workspace").
		Where("user_id = ?", token.UserID).
		Order("joined_at ASC").Find(&memberships).Error
	if err != nil {
		resputil.Error(c, "failed to list workspaces", resputil.NotSpecified)
		return
	}

	resp := lo.FilterMap(memberships, func(m model.WorkspaceMembership, _ int) (WorkspaceResp, bool) {
		if m.Workspace.ID == 0 {
			// Membership row survived a workspace soft delete.
			return WorkspaceResp{}, false
		}
		return WorkspaceResp{
			ID:          m.WorkspaceID,
			Name:        m.Workspace.Name,
			Description: m.Workspace.Description,
			Role:        m.Role,
			CreatedAt:   m.Workspace.CreatedAt,
		}, true
	})
	resputil.Success(c, resp)
}

// Create godoc
// @Summary Create a workspace
// @Description The creator becomes the workspace admin
// @Tags Workspace
// @Accept json
// @Produce json
// @Security Bearer
// @Param data body WorkspaceReq true "workspace"
// @Success 200 {object} resputil.Response[WorkspaceResp] "created workspace"
// @Router /workspaces [post]
func (mgr *WorkspaceMgr) Create(c *gin.Context) {
	var req WorkspaceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	token := util.GetToken(c)

	workspace := model.Workspace{
		Name:        req.Name,
		Description: req.Description,
		CreatedByID: token.UserID,
	}
	err := mgr.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&workspace).Error; err != nil {
			return err
		}
		membership := model.WorkspaceMembership{
			WorkspaceID: workspace.ID,
			UserID:      token.UserID,
			Role:        model.WorkspaceRoleAdmin,
		}
		return tx.Create(&membership).Error
	})
	if err != nil {
		logutils.Log.Error("create workspace: ", err)
		resputil.Error(c, "failed to create workspace", resputil.NotSpecified)
		return
	}

	resputil.Success(c, WorkspaceResp{
		ID:          workspace.ID,
		Name:        workspace.Name,
		Description: workspace.Description,
		Role:        model.WorkspaceRoleAdmin,
		CreatedAt:   workspace.CreatedAt,
	})
}

// Get godoc
// @Summary Workspace detail
// @Tags Workspace
// @Produce json
// @Security Bearer
// @Param wid path int true "workspace id"
// @Success 200 {object} resputil.Response[WorkspaceDetailResp] "workspace detail"
// @Router /workspaces/{wid} [get]
func (mgr *WorkspaceMgr) Get(c *gin.Context) {
	wid := util.GetWorkspaceID(c)

	var workspace model.Workspace
	if err := mgr.db.First(&workspace, wid).Error; err != nil {
		resputil.Error(c, "workspace not found", resputil.NotFound)
		return
	}

	var memberCount, projectCount int64
	mgr.db.Model(&model.WorkspaceMembership{}).Where("workspace_id = ?", wid).Count(&memberCount)
	mgr.db.Model(&model.Project{}).Where("workspace_id = ?", wid).Count(&projectCount)

	resputil.Success(c, WorkspaceDetailResp{
		WorkspaceResp: WorkspaceResp{
			ID:          workspace.ID,
			Name:        workspace.Name,
			Description: workspace.Description,
			Role:        util.GetWorkspaceRole(c),
			CreatedAt:   workspace.CreatedAt,
		},
		MemberCount:  memberCount,
		ProjectCount: projectCount,
	})
}

// Update godoc
// @Summary Edit workspace name and description
// @Tags Workspace
// @Accept json
// @Produce json
// @Security Bearer
// @Param wid path int true "workspace id"
// @Param data body WorkspaceReq true "new values"
// @Success 200 {object} resputil.Response[any] "updated"
// @Router /workspaces/{wid} [put]
func (mgr *WorkspaceMgr) Update(c *gin.Context) {
	var req WorkspaceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	wid := util.GetWorkspaceID(c)

	err := mgr.db.Model(&model.Workspace{}).Where("id = ?", wid).
		Updates(map[string]any{"name": req.Name, "description": req.Description}).Error
	if err != nil {
		resputil.Error(c, "failed to update workspace", resputil.NotSpecified)
		return
	}
	resputil.Success(c, "workspace updated")
}

// Delete godoc
// @Summary Delete a workspace and everything in it
// @Description Requires workspace admin plus admin or owner in the caller's current organization
// @Tags Workspace
// @Produce json
// @Security Bearer
// @Param wid path int true "workspace id"
// @Success 200 {object} resputil.Response[any] "deleted"
// @Failure 403 {object} resputil.Response[any] "organization gate failed"
// @Router /workspaces/{wid} [delete]
func (mgr *WorkspaceMgr) Delete(c *gin.Context) {
	wid := util.GetWorkspaceID(c)
	token := util.GetToken(c)

	if !rbac.OrgAdminGate(mgr.db, token.UserID) {
		resputil.Error(c, "requires admin in your current organization", resputil.NotAllowed)
		return
	}

	err := mgr.db.Transaction(func(tx *gorm.DB) error {
		return cascadeDeleteWorkspace(tx, wid)
	})
	if err != nil {
		logutils.Log.Error("delete workspace: ", err)
		resputil.Error(c, "failed to delete workspace", resputil.NotSpecified)
		return
	}
	resputil.Success(c, "workspace deleted")
}

// cascadeDeleteWorkspace removes the workspace and its whole subtree:
// projects, sprints, tasks, subtasks, comments, assignment rows, files,
// invitations and memberships.
func cascadeDeleteWorkspace(tx *gorm.DB, wid uint) error {
	var projectIDs []uint
	if err := tx.Model(&model.Project{}).Where("workspace_id = ?", wid).
		Pluck("id", &projectIDs).Error; err != nil {
		return err
	}

	if len(projectIDs) > 0 {
		var taskIDs []uint
		if err := tx.Model(&model.Task{}).Where("project_id IN ?", projectIDs).
			Pluck("id", &taskIDs).Error; err != nil {
			return err
		}
		if len(taskIDs) > 0 {
			var subtaskIDs []uint
			if err := tx.Model(&model.Subtask{}).Where("task_id IN ?", taskIDs).
				Pluck("id", &subtaskIDs).Error; err != nil {
				return err
			}
			if len(subtaskIDs) > 0 {
				if err := tx.Where("subtask_id IN ?", subtaskIDs).
					Delete(&model.Comment{}).Error; err != nil {
					return err
				}
				if err := tx.Exec("DELETE FROM subtask_assignees WHERE subtask_id IN ?",
					subtaskIDs).Error; err != nil {
					return err
				}
				if err := tx.Where("id IN ?", subtaskIDs).
					Delete(&model.Subtask{}).Error; err != nil {
					return err
				}
			}
			if err := tx.Where("task_id IN ?", taskIDs).
				Delete(&model.Comment{}).Error; err != nil {
				return err
			}
			if err := tx.Exec("DELETE FROM task_assignees WHERE task_id IN ?",
				taskIDs).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", taskIDs).Delete(&model.Task{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("project_id IN ?", projectIDs).
			Delete(&model.Sprint{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id IN ?", projectIDs).Delete(&model.Project{}).Error; err != nil {
			return err
		}
	}

	if err := tx.Where("workspace_id = ?", wid).Delete(&model.WorkspaceFile{}).Error; err != nil {
		return err
	}
	if err := tx.Where("workspace_id = ?", wid).Delete(&model.WorkspaceInvitation{}).Error; err != nil {
		return err
	}
	if err := tx.Where("workspace_id = ?", wid).Delete(&model.WorkspaceMembership{}).Error; err != nil {
		return err
	}
	return tx.Delete(&model.Workspace{}, wid).Error
}

// ListMembers godoc
// @Summary List workspace members
// @Tags Workspace
// @Produce json
// @Security Bearer
// @Param wid path int true "workspace id"
// @Success 200 {object} resputil.Response[[]WorkspaceMemberResp] "members"
// @Router /workspaces/{wid}/members [get]
func (mgr *WorkspaceMgr) ListMembers(c *gin.Context) {
	wid := util.GetWorkspaceID(c)

	var memberships []model.WorkspaceMembership
	err := mgr.db.Preload("User").
		Where("workspace_id = ?", wid).
		Order("joined_at ASC").Find(&memberships).Error
	if err != nil {
		resputil.Error(c, "failed to list members", resputil.NotSpecified)
		return
	}

	resp := lo.Map(memberships, func(m model.WorkspaceMembership, _ int) WorkspaceMemberResp {
		return WorkspaceMemberResp{
			MembershipID: m.ID,
			UserID:       m.UserID,
			Username:     m.User.Username,
			Email:        m.User.Email,
			Role:         m.Role,
			JoinedAt:     m.JoinedAt,
		}
	})
	resputil.Success(c, resp)
}

// AddMember godoc
// @Summary Add an organization colleague to the workspace
// @Description The candidate must belong to the caller's current organization
// @Tags Workspace
// @Accept json
// @Produce json
// @Security Bearer
// @Param wid path int true "workspace id"
// @Param data body AddMemberReq true "user and role"
// @Success 200 {object} resputil.Response[WorkspaceMemberResp] "added member"
// @Failure 409 {object} resputil.Response[any] "already a member"
// @Router /workspaces/{wid}/members [post]
func (mgr *WorkspaceMgr) AddMember(c *gin.Context) {
	var req AddMemberReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	role, err := model.ParseWorkspaceRole(req.Role)
	if err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	wid := util.GetWorkspaceID(c)
	token := util.GetToken(c)

	var actor model.User
	if err := mgr.db.First(&actor, token.UserID).Error; err != nil {
		resputil.Error(c, "user not found", resputil.NotSpecified)
		return
	}
	if actor.CurrentOrganizationID == nil {
		resputil.Error(c, "adding members requires a current organization; invite by email instead",
			resputil.NotAllowed)
		return
	}
	if _, inOrg := rbac.OrgRoleOf(mgr.db, req.UserID, *actor.CurrentOrganizationID); !inOrg {
		resputil.Error(c, "user is not in your current organization", resputil.NotAllowed)
		return
	}

	var user model.User
	if err := mgr.db.First(&user, req.UserID).Error; err != nil {
		resputil.Error(c, "user not found", resputil.NotFound)
		return
	}

	var existing int64
	mgr.db.Model(&model.WorkspaceMembership{}).
		Where("workspace_id = ? AND user_id = ?", wid, req.UserID).
		Count(&existing)
	if existing > 0 {
		resputil.Error(c, "user is already a member", resputil.Conflict)
		return
	}

	membership := model.WorkspaceMembership{
		WorkspaceID: wid,
		UserID:      req.UserID,
		Role:        role,
	}
	if err := mgr.db.Create(&membership).Error; err != nil {
		logutils.Log.Error("add workspace member: ", err)
		resputil.Error(c, "failed to add member", resputil.NotSpecified)
		return
	}

	resputil.Success(c, WorkspaceMemberResp{
		MembershipID: membership.ID,
		UserID:       user.ID,
		Username:     user.Username,
		Email:        user.Email,
		Role:         role,
		JoinedAt:     membership.JoinedAt,
	})
}

// RemoveMember godoc
// @Summary Remove a workspace member
// @Description Keeps the at-least-one-admin invariant; also gated on the caller's organization role
// @Tags Workspace
// @Produce json
// @Security Bearer
// @Param wid path int true "workspace id"
// @Param mid path int true "membership id"
// @Success 200 {object} resputil.Response[any] "removed"
// @Failure 409 {object} resputil.Response[any] "would remove the last admin"
// @Router /workspaces/{wid}/members/{mid} [delete]
func (mgr *WorkspaceMgr) RemoveMember(c *gin.Context) {
	membership, ok := mgr.membershipFromPath(c)
	if !ok {
		return
	}
	wid := util.GetWorkspaceID(c)
	token := util.GetToken(c)

	if !rbac.OrgAdminGate(mgr.db, token.UserID) {
		resputil.Error(c, "requires admin in your current organization", resputil.NotAllowed)
		return
	}

	// the admin count and the delete share one transaction so two
	// concurrent removals cannot both see a spare admin
	err := mgr.db.Transaction(func(tx *gorm.DB) error {
		if membership.Role == model.WorkspaceRoleAdmin && rbac.AdminCount(tx, wid) <= 1 {
			return errLastAdmin
		}
		return tx.Delete(&model.WorkspaceMembership{}, membership.ID).Error
	})
	if errors.Is(err, errLastAdmin) {
		resputil.Error(c, "cannot remove the last admin", resputil.Conflict)
		return
	}
	if err != nil {
		resputil.Error(c, "failed to remove member", resputil.NotSpecified)
		return
	}
	resputil.Success(c, "member removed")
}

// ChangeRole godoc
// @Summary Change a member's workspace role
// @Tags Workspace
// @Accept json
// @Produce json
// @Security Bearer
// @Param wid path int true "workspace id"
// @Param mid path int true "membership id"
// @Param data body ChangeRoleReq true "new role"
// @Success 200 {object} resputil.Response[any] "updated"
// @Failure 409 {object} resputil.Response[any] "would demote the last admin"
// @Router /workspaces/{wid}/members/{mid}/role [put]
func (mgr *WorkspaceMgr) ChangeRole(c *gin.Context) {
	var req ChangeRoleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	role, err := model.ParseWorkspaceRole(req.Role)
	if err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	membership, ok := mgr.membershipFromPath(c)
	if !ok {
		return
	}
	wid := util.GetWorkspaceID(c)

	err = mgr.db.Transaction(func(tx *gorm.DB) error {
		if membership.Role == model.WorkspaceRoleAdmin &&
			role != model.WorkspaceRoleAdmin &&
			rbac.AdminCount(tx, wid) <= 1 {
			return errLastAdmin
		}
		return tx.Model(&model.WorkspaceMembership{}).
			Where("id = ?", membership.ID).Update("role", role).Error
	})
	if errors.Is(err, errLastAdmin) {
		resputil.Error(c, "cannot demote the last admin", resputil.Conflict)
		return
	}
	if err != nil {
		resputil.Error(c, "failed to change role", resputil.NotSpecified)
		return
	}
	resputil.Success(c, "role updated")
}

func (mgr *WorkspaceMgr) membershipFromPath(c *gin.Context) (*model.WorkspaceMembership, bool) {
	mid, err := strconv.ParseUint(c.Param("mid"), 10, 64)
	if err != nil {
		resputil.BadRequestError(c, "invalid membership id")
		return nil, false
	}
	wid := util.GetWorkspaceID(c)

	var membership model.WorkspaceMembership
	err = mgr.db.Where("id = ? AND workspace_id = ?", mid, wid).First(&membership).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			resputil.Error(c, "membership not found", resputil.NotFound)
		} else {
			resputil.Error(c, "failed to load membership", resputil.NotSpecified)
		}
		return nil, false
	}
	return &membership, true
}
