package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/flowboard-labs/flowboard/dao/model"
	"github.com/flowboard-labs/flowboard/internal/resputil"
	"github.com/flowboard-labs/flowboard/internal/util"
	"github.com/flowboard-labs/flowboard/pkg/logutils"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewAuthMgr)
}

type AuthMgr struct {
	name     string
	db       *gorm.DB
	tokenMgr *util.TokenManager
}

func NewAuthMgr(conf RegisterConfig) Manager {
	return &AuthMgr{
		name:     "auth",
		db:       conf.DB,
		tokenMgr: util.GetTokenMgr(),
	}
}

func (mgr *AuthMgr) GetName() string { return mgr.name }

func (mgr *AuthMgr) RegisterPublic(g *gin.RouterGroup) {
	g.POST("/auth/register", mgr.Register)
	g.POST("/auth/login", mgr.Login)
	g.POST("/auth/refresh", mgr.RefreshToken)
}

func (mgr *AuthMgr) RegisterProtected(_ *gin.RouterGroup) {}

const (
	OrgModeCreate = "create"
	OrgModeJoin   = "join"
	OrgModeNone   = "none"
)

// decoyHash is a real bcrypt digest of a throwaway string; comparing
// against it when the user lookup misses keeps the work factor intact.
var decoyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

type (
	RegisterReq struct {
		Username string  `json:"username" binding:"required,max=32"`
		Email    string  `json:"email" binding:"required,email"`
		Phone    *string `json:"phone"`
		Password string  `json:"password" binding:"required,min=8"`

		// OrgMode selects the organization intent at signup:
		// create a new organization (OrgName), join an existing one
		// by code (OrgCode), or start without one.
		OrgMode string `json:"orgMode" binding:"required,oneof=create join none"`
		OrgName string `json:"orgName"`
		OrgCode string `json:"orgCode"`

		// InvitationToken, when present, is redeemed right after the
		// account exists. Signup never fails on a bad token; the
		// outcome is reported in the response instead.
		InvitationToken string `json:"invitationToken"`
	}

	LoginReq struct {
		Username        string `json:"username" binding:"required"`
		Password        string `json:"password" binding:"required"`
		InvitationToken string `json:"invitationToken"`
	}

	RefreshReq struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}

	AuthResp struct {
		AccessToken  string      `json:"accessToken"`
		RefreshToken string      `json:"refreshToken"`
		Context      UserContext `json:"context"`
		// Invitation is the redemption outcome when a token was sent,
		// one of accepted/invalid/expired/not_found. Empty otherwise.
		Invitation string `json:"invitation,omitempty"`
	}

	UserContext struct {
		UserID   uint          `json:"userID"`
		Username string        `json:"username"`
		Email    string        `json:"email"`
		OrgID    uint          `json:"orgID,omitempty"`
		OrgName  string        `json:"orgName,omitempty"`
		OrgCode  string        `json:"orgCode,omitempty"`
		OrgRole  model.OrgRole `json:"orgRole,omitempty"`
	}
)

// Register godoc
// @Summary Register a new account
// @Description Create a user, optionally creating or joining an organization, and return JWT tokens
// @Tags Auth
// @Accept json
// @Produce json
// @Param data body RegisterReq true "registration payload"
// @Success 200 {object} resputil.Response[AuthResp] "tokens and user context"
// @Failure 400 {object} resputil.Response[any] "request parameter error"
// @Failure 409 {object} resputil.Response[any] "username or email already taken"
// @Router /auth/register [post]
func (mgr *AuthMgr) Register(c *gin.Context) {
	var req RegisterReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	switch req.OrgMode {
	case OrgModeCreate:
		if req.OrgName == "" {
			resputil.BadRequestError(c, "organization name is required")
			return
		}
	case OrgModeJoin:
		if req.OrgCode == "" {
			resputil.BadRequestError(c, "organization code is required")
			return
		}
	}

	var taken int64
	mgr.db.Model(&model.User{}).
		Where("username = ? OR email = ?", req.Username, req.Email).
		Count(&taken)
	if taken > 0 {
		resputil.Error(c, "username or email already taken", resputil.Conflict)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		resputil.Error(c, "failed to hash password", resputil.NotSpecified)
		return
	}

	user := model.User{
		Username: req.Username,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: string(hash),
	}

	err = mgr.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		switch req.OrgMode {
		case OrgModeCreate:
			org := model.Organization{
				Name:        req.OrgName,
				Code:        model.NewOrganizationCode(),
				CreatedByID: user.ID,
			}
			if err := tx.Create(&org).Error; err != nil {
				return err
			}
			membership := model.OrgMembership{
				OrganizationID: org.ID,
				UserID:         user.ID,
				Role:           model.OrgRoleOwner,
			}
			if err := tx.Create(&membership).Error; err != nil {
				return err
			}
			user.CurrentOrganizationID = &org.ID
		case OrgModeJoin:
			var org model.Organization
			code := model.NormalizeOrganizationCode(req.OrgCode)
			if err := tx.Where("code = ?", code).First(&org).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return errInvalidOrgCode
				}
				return err
			}
			membership := model.OrgMembership{
				OrganizationID: org.ID,
				UserID:         user.ID,
				Role:           model.OrgRoleMember,
			}
			if err := tx.Create(&membership).Error; err != nil {
				return err
			}
			user.CurrentOrganizationID = &org.ID
		}
		if user.CurrentOrganizationID != nil {
			return tx.Model(&user).
				Update("current_organization_id", *user.CurrentOrganizationID).Error
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errInvalidOrgCode) {
			resputil.BadRequestError(c, "invalid organization code")
			return
		}
		logutils.Log.Error("register: ", err)
		resputil.Error(c, "registration failed", resputil.NotSpecified)
		return
	}

	invitation := ""
	if req.InvitationToken != "" {
		invitation = redeemInvitation(mgr.db, req.InvitationToken, user.ID)
	}

	mgr.respondWithTokens(c, &user, invitation)
}

var errInvalidOrgCode = errors.New("invalid organization code")

// Login godoc
// @Summary Log in
// @Description Check credentials and return JWT access and refresh tokens
// @Tags Auth
// @Accept json
// @Produce json
// @Param data body LoginReq true "credentials"
// @Success 200 {object} resputil.Response[AuthResp] "tokens and user context"
// @Failure 400 {object} resputil.Response[any] "request parameter error"
// @Failure 401 {object} resputil.Response[any] "invalid credentials"
// @Router /auth/login [post]
func (mgr *AuthMgr) Login(c *gin.Context) {
	var req LoginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}

	var user model.User
	err := mgr.db.Where("username = ? OR email = ?", req.Username, req.Username).
		First(&user).Error
	if err != nil {
		// Run the hash anyway so a missing user costs the same as a
		// wrong password.
		_ = bcrypt.CompareHashAndPassword(decoyHash, []byte(req.Password))
		resputil.HTTPError(c, http.StatusUnauthorized, "invalid credentials", resputil.InvalidCredentials)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		resputil.HTTPError(c, http.StatusUnauthorized, "invalid credentials", resputil.InvalidCredentials)
		return
	}

	invitation := ""
	if req.InvitationToken != "" {
		invitation = redeemInvitation(mgr.db, req.InvitationToken, user.ID)
	}

	mgr.respondWithTokens(c, &user, invitation)
}

// RefreshToken godoc
// @Summary Refresh the token pair
// @Tags Auth
// @Accept json
// @Produce json
// @Param data body RefreshReq true "refresh token"
// @Success 200 {object} resputil.Response[AuthResp] "new token pair"
// @Failure 401 {object} resputil.Response[any] "expired or malformed token"
// @Router /auth/refresh [post]
func (mgr *AuthMgr) RefreshToken(c *gin.Context) {
	var req RefreshReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}

	msg, err := mgr.tokenMgr.CheckToken(req.RefreshToken)
	if err != nil {
		resputil.HTTPError(c, http.StatusUnauthorized, err.Error(), resputil.TokenExpired)
		return
	}

	var user model.User
	if err := mgr.db.First(&user, msg.UserID).Error; err != nil {
		resputil.HTTPError(c, http.StatusUnauthorized, "user not found", resputil.TokenInvalid)
		return
	}

	mgr.respondWithTokens(c, &user, "")
}

// respondWithTokens issues a token pair bound to the user's current
// organization (as stored, not as claimed) and renders the envelope.
func (mgr *AuthMgr) respondWithTokens(c *gin.Context, user *model.User, invitation string) {
	// Re-read: redeeming an invitation or switching org may have
	// moved the pointer since the row was loaded.
	if err := mgr.db.First(user, user.ID).Error; err != nil {
		resputil.Error(c, "user not found", resputil.NotSpecified)
		return
	}

	userCtx := UserContext{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
	}
	msg := util.JWTMessage{
		UserID:   user.ID,
		Username: user.Username,
	}
	if user.CurrentOrganizationID != nil {
		var org model.Organization
		if err := mgr.db.First(&org, *user.CurrentOrganizationID).Error; err == nil {
			userCtx.OrgID = org.ID
			userCtx.OrgName = org.Name
			userCtx.OrgCode = org.Code
			msg.OrgID = org.ID

			var membership model.OrgMembership
			err := mgr.db.Where("organization_id = ? AND user_id = ?", org.ID, user.ID).
				First(&membership).Error
			if err == nil {
				userCtx.OrgRole = membership.Role
				msg.OrgRole = membership.Role
			}
		}
	}

	access, refresh, err := mgr.tokenMgr.CreateTokens(&msg)
	if err != nil {
		resputil.Error(c, "failed to create tokens", resputil.NotSpecified)
		return
	}

	resputil.Success(c, AuthResp{
		AccessToken:  access,
		RefreshToken: refresh,
		Context:      userCtx,
		Invitation:   invitation,
	})
}
