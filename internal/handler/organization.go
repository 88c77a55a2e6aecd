package handler

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/flowboard-labs/flowboard/dao/model"
	"github.com/flowboard-labs/flowboard/internal/resputil"
	"github.com/flowboard-labs/flowboard/internal/util"
	"github.com/flowboard-labs/flowboard/pkg/logutils"
	"github.com/flowboard-labs/flowboard/pkg/rbac"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewOrganizationMgr)
}

type OrganizationMgr struct {
	name string
	db   *gorm.DB
}

func NewOrganizationMgr(conf RegisterConfig) Manager {
	return &OrganizationMgr{name: "organization", db: conf.DB}
}

func (mgr *OrganizationMgr) GetName() string { return mgr.name }

func (mgr *OrganizationMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *OrganizationMgr) RegisterProtected(g *gin.RouterGroup) {
	orgs := g.Group("/organizations")
	orgs.GET("", mgr.ListMine)
	orgs.POST("/join", mgr.Join)
	orgs.POST("/:oid/switch", mgr.Switch)
	orgs.POST("/:oid/leave", mgr.Leave)
	orgs.GET("/:oid/members", mgr.ListMembers)
	orgs.DELETE("/:oid/members/:uid", mgr.RemoveMember)
}

const (
	JoinResultJoined        = "joined"
	JoinResultInvalidCode   = "invalid_code"
	JoinResultAlreadyMember = "already_member"
)

type (
	OrganizationResp struct {
		ID      uint          `json:"id"`
		Name    string        `json:"name"`
		Code    string        `json:"code"`
		Role    model.OrgRole `json:"role"`
		Current bool          `json:"current"`
	}

	JoinOrgReq struct {
		Code string `json:"code" binding:"required"`
	}

	JoinOrgResp struct {
		Result       string            `json:"result"`
		Organization *OrganizationResp `json:"organization,omitempty"`
	}

	OrgMemberResp struct {
		UserID   uint          `json:"userID"`
		Username string        `json:"username"`
		Email    string        `json:"email"`
		Role     model.OrgRole `json:"role"`
		JoinedAt time.Time     `json:"joinedAt"`
	}
)

// ListMine godoc
// @Summary List the caller's organizations
// @Tags Organization
// @Produce json
// @Security Bearer
// @Success 200 {object} resputil.Response[[]OrganizationResp] "organizations with role and current flag"
// @Router /organizations [get]
func (mgr *OrganizationMgr) ListMine(c *gin.Context) {
	token := util.GetToken(c)

	var user model.User
	if err := mgr.db.First(&user, token.UserID).Error; err != nil {
		resputil.Error(c, "user not found", resputil.NotSpecified)
		return
	}

	var memberships []model.OrgMembership
	err := mgr.db.Preload("Organization").
		Where("user_id = ?", token.UserID).
		Order("joined_at ASC").Find(&memberships).Error
	if err != nil {
		resputil.Error(c, "failed to list organizations", resputil.NotSpecified)
		return
	}

	resp := lo.Map(memberships, func(m model.OrgMembership, _ int) OrganizationResp {
		return OrganizationResp{
			ID:      m.OrganizationID,
			Name:    m.Organization.Name,
			Code:    m.Organization.Code,
			Role:    m.Role,
			Current: user.CurrentOrganizationID != nil && *user.CurrentOrganizationID == m.OrganizationID,
		}
	})
	resputil.Success(c, resp)
}

// Join godoc
// @Summary Join an organization by code
// @Description Codes are case-insensitive; joining also makes the organization current
// @Tags Organization
// @Accept json
// @Produce json
// @Security Bearer
// @Param data body JoinOrgReq true "organization code"
// @Success 200 {object} resputil.Response[JoinOrgResp] "join outcome"
// @Router /organizations/join [post]
func (mgr *OrganizationMgr) Join(c *gin.Context) {
	var req JoinOrgReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	token := util.GetToken(c)
	code := model.NormalizeOrganizationCode(req.Code)

	var org model.Organization
	if err := mgr.db.Where("code = ?", code).First(&org).Error; err != nil {
		resputil.Success(c, JoinOrgResp{Result: JoinResultInvalidCode})
		return
	}

	var existing int64
	mgr.db.Model(&model.OrgMembership{}).
		Where("organization_id = ? AND user_id = ?", org.ID, token.UserID).
		Count(&existing)
	if existing > 0 {
		resputil.Success(c, JoinOrgResp{Result: JoinResultAlreadyMember})
		return
	}

	err := mgr.db.Transaction(func(tx *gorm.DB) error {
		membership := model.OrgMembership{
			OrganizationID: org.ID,
			UserID:         token.UserID,
			Role:           model.OrgRoleMember,
		}
		if err := tx.Create(&membership).Error; err != nil {
			return err
		}
		return tx.Model(&model.User{}).Where("id = ?", token.UserID).
			Update("current_organization_id", org.ID).Error
	})
	if err != nil {
		logutils.Log.Error("join organization: ", err)
		resputil.Error(c, "failed to join organization", resputil.NotSpecified)
		return
	}

	resputil.Success(c, JoinOrgResp{
		Result: JoinResultJoined,
		Organization: &OrganizationResp{
			ID: org.ID, Name: org.Name, Code: org.Code,
			Role: model.OrgRoleMember, Current: true,
		},
	})
}

// Switch godoc
// @Summary Switch the current organization
// @Tags Organization
// @Produce json
// @Security Bearer
// @Param oid path int true "organization id"
// @Success 200 {object} resputil.Response[any] "switched"
// @Failure 403 {object} resputil.Response[any] "not a member"
// @Router /organizations/{oid}/switch [post]
func (mgr *OrganizationMgr) Switch(c *gin.Context) {
	oid, ok := mgr.orgID(c)
	if !ok {
		return
	}
	token := util.GetToken(c)

	if _, member := rbac.OrgRoleOf(mgr.db, token.UserID, oid); !member {
		resputil.Error(c, "not a member of this organization", resputil.NotAllowed)
		return
	}

	err := mgr.db.Model(&model.User{}).Where("id = ?", token.UserID).
		Update("current_organization_id", oid).Error
	if err != nil {
		resputil.Error(c, "failed to switch organization", resputil.NotSpecified)
		return
	}
	resputil.Success(c, "organization switched")
}

// Leave godoc
// @Summary Leave an organization
// @Description Owners cannot leave; the current-organization pointer moves to another membership
// @Tags Organization
// @Produce json
// @Security Bearer
// @Param oid path int true "organization id"
// @Success 200 {object} resputil.Response[any] "left"
// @Failure 409 {object} resputil.Response[any] "owner cannot leave"
// @Router /organizations/{oid}/leave [post]
func (mgr *OrganizationMgr) Leave(c *gin.Context) {
	oid, ok := mgr.orgID(c)
	if !ok {
		return
	}
	token := util.GetToken(c)

	role, member := rbac.OrgRoleOf(mgr.db, token.UserID, oid)
	if !member {
		resputil.Error(c, "not a member of this organization", resputil.NotAllowed)
		return
	}
	if role == model.OrgRoleOwner {
		resputil.Error(c, "the owner cannot leave the organization", resputil.Conflict)
		return
	}

	if err := mgr.removeMembership(oid, token.UserID); err != nil {
		logutils.Log.Error("leave organization: ", err)
		resputil.Error(c, "failed to leave organization", resputil.NotSpecified)
		return
	}
	resputil.Success(c, "left organization")
}

// ListMembers godoc
// @Summary List organization members
// @Tags Organization
// @Produce json
// @Security Bearer
// @Param oid path int true "organization id"
// @Success 200 {object} resputil.Response[[]OrgMemberResp] "members"
// @Failure 403 {object} resputil.Response[any] "requires organization admin"
// @Router /organizations/{oid}/members [get]
func (mgr *OrganizationMgr) ListMembers(c *gin.Context) {
	oid, ok := mgr.orgID(c)
	if !ok {
		return
	}
	token := util.GetToken(c)

	role, member := rbac.OrgRoleOf(mgr.db, token.UserID, oid)
	if !member || !role.IsAdmin() {
		resputil.Error(c, "requires organization admin", resputil.NotAllowed)
		return
	}

	var memberships []model.OrgMembership
	err := mgr.db.Preload("User").
		Where("organization_id = ?", oid).
		Order("joined_at ASC").Find(&memberships).Error
	if err != nil {
		resputil.Error(c, "failed to list members", resputil.NotSpecified)
		return
	}

	resp := lo.Map(memberships, func(m model.OrgMembership, _ int) OrgMemberResp {
		return OrgMemberResp{
			UserID:   m.UserID,
			Username: m.User.Username,
			Email:    m.User.Email,
			Role:     m.Role,
			JoinedAt: m.JoinedAt,
		}
	})
	resputil.Success(c, resp)
}

// RemoveMember godoc
// @Summary Remove a member from the organization
// @Description Admin only; owners can never be removed through this path
// @Tags Organization
// @Produce json
// @Security Bearer
// @Param oid path int true "organization id"
// @Param uid path int true "user id"
// @Success 200 {object} resputil.Response[any] "removed"
// @Failure 409 {object} resputil.Response[any] "target is the owner or yourself"
// @Router /organizations/{oid}/members/{uid} [delete]
func (mgr *OrganizationMgr) RemoveMember(c *gin.Context) {
	oid, ok := mgr.orgID(c)
	if !ok {
		return
	}
	uid, err := strconv.ParseUint(c.Param("uid"), 10, 64)
	if err != nil {
		resputil.BadRequestError(c, "invalid user id")
		return
	}
	token := util.GetToken(c)

	actorRole, member := rbac.OrgRoleOf(mgr.db, token.UserID, oid)
	if !member || !actorRole.IsAdmin() {
		resputil.Error(c, "requires organization admin", resputil.NotAllowed)
		return
	}
	if uint(uid) == token.UserID {
		resputil.Error(c, "use leave to remove yourself", resputil.Conflict)
		return
	}

	targetRole, targetMember := rbac.OrgRoleOf(mgr.db, uint(uid), oid)
	if !targetMember {
		resputil.Error(c, "membership not found", resputil.NotFound)
		return
	}
	if targetRole == model.OrgRoleOwner {
		resputil.Error(c, "the owner cannot be removed", resputil.Conflict)
		return
	}

	if err := mgr.removeMembership(oid, uint(uid)); err != nil {
		logutils.Log.Error("remove organization member: ", err)
		resputil.Error(c, "failed to remove member", resputil.NotSpecified)
		return
	}
	resputil.Success(c, "member removed")
}

// removeMembership deletes the org membership and, when the user's
// current-organization pointer referenced it, moves the pointer to the
// oldest remaining membership or clears it.
func (mgr *OrganizationMgr) removeMembership(orgID, userID uint) error {
	return mgr.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("organization_id = ? AND user_id = ?", orgID, userID).
			Delete(&model.OrgMembership{})
		if res.Error != nil {
			return res.Error
		}

		var user model.User
		if err := tx.First(&user, userID).Error; err != nil {
			return err
		}
		if user.CurrentOrganizationID == nil || *user.CurrentOrganizationID != orgID {
			return nil
		}

		var next model.OrgMembership
		err := tx.Where("user_id = ?", userID).Order("joined_at ASC").First(&next).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Model(&user).Update("current_organization_id", nil).Error
		case err != nil:
			return err
		default:
			return tx.Model(&user).Update("current_organization_id", next.OrganizationID).Error
		}
	})
}

func (mgr *OrganizationMgr) orgID(c *gin.Context) (uint, bool) {
	oid, err := strconv.ParseUint(c.Param("oid"), 10, 64)
	if err != nil {
		resputil.BadRequestError(c, "invalid organization id")
		return 0, false
	}
	var org model.Organization
	if err := mgr.db.First(&org, uint(oid)).Error; err != nil {
		resputil.Error(c, "organization not found", resputil.NotFound)
		return 0, false
	}
	return uint(oid), true
}
