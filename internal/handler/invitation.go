package handler

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/flowboard-labs/flowboard/dao/model"
	"github.com/flowboard-labs/flowboard/internal/middleware"
	"github.com/flowboard-labs/flowboard/internal/resputil"
	"github.com/flowboard-labs/flowboard/internal/util"
	"github.com/flowboard-labs/flowboard/pkg/alert"
	"github.com/flowboard-labs/flowboard/pkg/logutils"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewInvitationMgr)
}

type InvitationMgr struct {
	name       string
	db         *gorm.DB
	dispatcher *alert.Dispatcher
}

func NewInvitationMgr(conf RegisterConfig) Manager {
	return &InvitationMgr{
		name:       "invitation",
		db:         conf.DB,
		dispatcher: conf.Dispatcher,
	}
}

func (mgr *InvitationMgr) GetName() string { return mgr.name }

func (mgr *InvitationMgr) RegisterPublic(g *gin.RouterGroup) {
	g.GET("/invitations/:token", mgr.Lookup)
}

func (mgr *InvitationMgr) RegisterProtected(g *gin.RouterGroup) {
	g.POST("/invitations/:token/accept", mgr.Accept)

	ws := g.Group("/workspaces/:wid/invitations",
		middleware.RequireWorkspaceRole(mgr.db, model.WorkspaceRoleAdmin))
	ws.POST("", mgr.Create)
	ws.GET("", mgr.List)
	ws.DELETE("/:iid", mgr.Revoke)
}

// Redemption outcomes shared by accept and the auth handoff.
const (
	InvitationAccepted = "accepted"
	InvitationInvalid  = "invalid"
	InvitationNotFound = "not_found"
	InvitationPending  = "pending"
	InvitationExpired  = "expired"
)

// redeemInvitation marks the token used and adds the user to the
// workspace in one transaction. An existing membership keeps its role;
// redeeming never downgrades. The token is consumed either way.
func redeemInvitation(db *gorm.DB, token string, userID uint) string {
	status := InvitationInvalid
	err := db.Transaction(func(tx *gorm.DB) error {
		var inv model.WorkspaceInvitation
		if err := tx.Where("token = ?", token).First(&inv).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				status = InvitationNotFound
				return nil
			}
			return err
		}
		now := time.Now()
		if !inv.IsValid(now) {
			status = InvitationInvalid
			if !inv.Used {
				status = InvitationExpired
			}
			return nil
		}

		// Guard against a concurrent accept of the same token.
		res := tx.Model(&model.WorkspaceInvitation{}).
			Where("id = ? AND used = ?", inv.ID, false).
			Updates(map[string]any{"used": true, "used_by_id": userID, "used_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			status = InvitationInvalid
			return nil
		}

		var membership model.WorkspaceMembership
		err := tx.Where("workspace_id = ? AND user_id = ?", inv.WorkspaceID, userID).
			First(&membership).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			membership = model.WorkspaceMembership{
				WorkspaceID: inv.WorkspaceID,
				UserID:      userID,
				Role:        inv.Role,
			}
			if err := tx.Create(&membership).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
		status = InvitationAccepted
		return nil
	})
	if err != nil {
		logutils.Log.Error("redeem invitation: ", err)
		return InvitationInvalid
	}
	return status
}

type (
	InvitationLookupResp struct {
		Status        string              `json:"status"`
		WorkspaceName string              `json:"workspaceName,omitempty"`
		RecipientName string              `json:"recipientName,omitempty"`
		Role          model.WorkspaceRole `json:"role,omitempty"`
	}

	AcceptResp struct {
		Status      string `json:"status"`
		WorkspaceID uint   `json:"workspaceID,omitempty"`
	}

	CreateInvitationReq struct {
		Email         string `json:"email" binding:"required,email"`
		RecipientName string `json:"recipientName"`
		Phone         string `json:"phone"`
		Role          string `json:"role" binding:"required"`
	}

	InvitationResp struct {
		ID            uint                `json:"id"`
		Email         string              `json:"email"`
		RecipientName string              `json:"recipientName"`
		Role          model.WorkspaceRole `json:"role"`
		CreatedAt     time.Time           `json:"createdAt"`
		ExpiresAt     time.Time           `json:"expiresAt"`
	}

	InvitationListResp struct {
		Pending []InvitationResp `json:"pending"`
		Expired []InvitationResp `json:"expired"`
		Used    []InvitationResp `json:"used"`
	}
)

// Lookup godoc
// @Summary Inspect an invitation token
// @Description Public check so the frontend can render the invite landing page
// @Tags Invitation
// @Produce json
// @Param token path string true "invitation token"
// @Success 200 {object} resputil.Response[InvitationLookupResp] "token state"
// @Router /invitations/{token} [get]
func (mgr *InvitationMgr) Lookup(c *gin.Context) {
	token := c.Param("token")

	var inv model.WorkspaceInvitation
	err := mgr.db.Preload("Workspace").Where("token = ?", token).First(&inv).Error
	if err != nil {
		resputil.Success(c, InvitationLookupResp{Status: InvitationNotFound})
		return
	}

	resp := InvitationLookupResp{
		WorkspaceName: inv.Workspace.Name,
		RecipientName: inv.RecipientName,
		Role:          inv.Role,
	}
	switch {
	case inv.Used:
		resp.Status = InvitationAccepted
	case !time.Now().Before(inv.ExpiresAt):
		resp.Status = InvitationExpired
	default:
		resp.Status = InvitationPending
	}
	resputil.Success(c, resp)
}

// Accept godoc
// @Summary Accept an invitation
// @Description Consume the token and join the workspace with the invited role
// @Tags Invitation
// @Produce json
// @Security Bearer
// @Param token path string true "invitation token"
// @Success 200 {object} resputil.Response[AcceptResp] "redemption outcome"
// @Router /invitations/{token}/accept [post]
func (mgr *InvitationMgr) Accept(c *gin.Context) {
	token := util.GetToken(c)
	status := redeemInvitation(mgr.db, c.Param("token"), token.UserID)

	resp := AcceptResp{Status: status}
	if status == InvitationAccepted {
		var inv model.WorkspaceInvitation
		if err := mgr.db.Where("token = ?", c.Param("token")).First(&inv).Error; err == nil {
			resp.WorkspaceID = inv.WorkspaceID
		}
	}
	resputil.Success(c, resp)
}

// Create godoc
// @Summary Invite by email
// @Description Create a single-use invitation and notify the address
// @Tags Invitation
// @Accept json
// @Produce json
// @Security Bearer
// @Param wid path int true "workspace id"
// @Param data body CreateInvitationReq true "invitation"
// @Success 200 {object} resputil.Response[InvitationResp] "created invitation"
// @Failure 409 {object} resputil.Response[any] "a valid invitation for this address already exists"
// @Router /workspaces/{wid}/invitations [post]
func (mgr *InvitationMgr) Create(c *gin.Context) {
	var req CreateInvitationReq
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
	now := time.Now()

	var members int64
	mgr.db.Model(&model.WorkspaceMembership{}).
		Joins("JOIN users ON users.id = workspace_memberships.user_id").
		Where("workspace_memberships.workspace_id = ? AND users.email = ? AND users.deleted_at IS NULL",
			wid, req.Email).
		Count(&members)
	if members > 0 {
		resputil.Error(c, "this email already belongs to a workspace member", resputil.Conflict)
		return
	}

	var pending int64
	mgr.db.Model(&model.WorkspaceInvitation{}).
		Where("workspace_id = ? AND email = ? AND used = ? AND expires_at > ?",
			wid, req.Email, false, now).
		Count(&pending)
	if pending > 0 {
		resputil.Error(c, "a pending invitation for this email already exists", resputil.Conflict)
		return
	}

	inv := model.WorkspaceInvitation{
		WorkspaceID:    wid,
		Email:          req.Email,
		RecipientName:  req.RecipientName,
		RecipientPhone: req.Phone,
		Role:           role,
		Token:          model.NewInvitationToken(),
		CreatedByID:    token.UserID,
		ExpiresAt:      now.Add(model.InvitationTTL),
	}
	if inv.RecipientName == "" {
		inv.RecipientName = "Guest"
	}
	if err := mgr.db.Create(&inv).Error; err != nil {
		logutils.Log.Error("create invitation: ", err)
		resputil.Error(c, "failed to create invitation", resputil.NotSpecified)
		return
	}

	var workspace model.Workspace
	_ = mgr.db.First(&workspace, wid).Error
	mgr.dispatcher.InvitationCreated(&inv, workspace.Name, token.Username)

	resputil.Success(c, toInvitationResp(&inv))
}

// List godoc
// @Summary List workspace invitations grouped by state
// @Tags Invitation
// @Produce json
// @Security Bearer
// @Param wid path int true "workspace id"
// @Success 200 {object} resputil.Response[InvitationListResp] "invitations"
// @Router /workspaces/{wid}/invitations [get]
func (mgr *InvitationMgr) List(c *gin.Context) {
	wid := util.GetWorkspaceID(c)

	var invitations []model.WorkspaceInvitation
	err := mgr.db.Where("workspace_id = ?", wid).
		Order("created_at DESC").Find(&invitations).Error
	if err != nil {
		resputil.Error(c, "failed to list invitations", resputil.NotSpecified)
		return
	}

	now := time.Now()
	resp := InvitationListResp{
		Pending: []InvitationResp{},
		Expired: []InvitationResp{},
		Used:    []InvitationResp{},
	}
	for i := range invitations {
		inv := &invitations[i]
		switch {
		case inv.Used:
			resp.Used = append(resp.Used, toInvitationResp(inv))
		case inv.IsValid(now):
			resp.Pending = append(resp.Pending, toInvitationResp(inv))
		default:
			resp.Expired = append(resp.Expired, toInvitationResp(inv))
		}
	}
	resputil.Success(c, resp)
}

// Revoke godoc
// @Summary Revoke a pending invitation
// @Description Deletes the invitation; the token then reads as not found
// @Tags Invitation
// @Produce json
// @Security Bearer
// @Param wid path int true "workspace id"
// @Param iid path int true "invitation id"
// @Success 200 {object} resputil.Response[any] "revoked"
// @Router /workspaces/{wid}/invitations/{iid} [delete]
func (mgr *InvitationMgr) Revoke(c *gin.Context) {
	iid, err := strconv.ParseUint(c.Param("iid"), 10, 64)
	if err != nil {
		resputil.BadRequestError(c, "invalid invitation id")
		return
	}
	wid := util.GetWorkspaceID(c)

	res := mgr.db.Where("id = ? AND workspace_id = ?", iid, wid).
		Delete(&model.WorkspaceInvitation{})
	if res.Error != nil {
		resputil.Error(c, "failed to revoke invitation", resputil.NotSpecified)
		return
	}
	if res.RowsAffected == 0 {
		resputil.Error(c, "invitation not found", resputil.NotFound)
		return
	}
	resputil.Success(c, "invitation revoked")
}

func toInvitationResp(inv *model.WorkspaceInvitation) InvitationResp {
	return InvitationResp{
		ID:            inv.ID,
		Email:         inv.Email,
		RecipientName: inv.RecipientName,
		Role:          inv.Role,
		CreatedAt:     inv.CreatedAt,
		ExpiresAt:     inv.ExpiresAt,
	}
}
