package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/flowboard-labs/flowboard/dao/model"
	"github.com/flowboard-labs/flowboard/internal/resputil"
	"github.com/flowboard-labs/flowboard/internal/util"
)

// AuthProtected validates the bearer token and loads the identity into
// the gin context. Mutating requests re-validate the user row so a
// deleted account cannot keep writing on a live token.
func AuthProtected(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.Request.Header.Get("Authorization")
		t := strings.Split(authHeader, " ")
		if len(t) < 2 || t[0] != "Bearer" {
			resputil.HTTPError(c, http.StatusUnauthorized, "Invalid token", resputil.TokenInvalid)
			c.Abort()
			return
		}

		token, err := util.GetTokenMgr().CheckToken(t[1])
		if err != nil {
			resputil.HTTPError(c, http.StatusUnauthorized, err.Error(), resputil.TokenExpired)
			c.Abort()
			return
		}

		if c.Request.Method != http.MethodGet {
			var user model.User
			if err := db.First(&user, token.UserID).Error; err != nil {
				resputil.HTTPError(c, http.StatusUnauthorized, "User not found", resputil.TokenInvalid)
				c.Abort()
				return
			}
			// The current organization may have changed since the
			// token was issued; trust the database, not the claim.
			token.OrgID = 0
			token.OrgRole = ""
			if user.CurrentOrganizationID != nil {
				token.OrgID = *user.CurrentOrganizationID
				var membership model.OrgMembership
				err := db.Where("organization_id = ? AND user_id = ?", token.OrgID, user.ID).
					First(&membership).Error
				if err == nil {
					token.OrgRole = membership.Role
				}
			}
		}

		util.SetJWTContext(c, token)
		c.Next()
	}
}
