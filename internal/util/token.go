package util

import (
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/flowboard-labs/flowboard/dao/model"
	"github.com/flowboard-labs/flowboard/pkg/config"
	"github.com/flowboard-labs/flowboard/pkg/logutils"
)

type (
	JWTClaims struct {
		UserID   uint          `json:"ui"`
		Username string        `json:"un"`
		OrgID    uint          `json:"oi"`
		OrgRole  model.OrgRole `json:"or"`
		jwt.RegisteredClaims
	}

	// JWTMessage is the decoded identity carried through a request.
	// OrgID is the user's current organization at token issue time,
	// zero when the user has none.
	JWTMessage struct {
		UserID   uint          `json:"userID"`
		Username string        `json:"username"`
		OrgID    uint          `json:"orgID"`
		OrgRole  model.OrgRole `json:"orgRole"`
	}
)

type TokenManager struct {
	secretKey       string
	accessTokenTTL  int
	refreshTokenTTL int
}

var (
	once     sync.Once
	tokenMgr *TokenManager
)

func GetTokenMgr() *TokenManager {
	once.Do(func() {
		authConf := config.GetConfig().Auth
		tokenMgr = NewTokenManager(authConf.AccessTokenSecret,
			authConf.AccessTokenExpiryHour,
			authConf.RefreshTokenExpiryHour,
		)
	})
	return tokenMgr
}

func NewTokenManager(secretKey string, accessTokenTTL, refreshTokenTTL int) *TokenManager {
	return &TokenManager{
		secretKey,
		accessTokenTTL,
		refreshTokenTTL,
	}
}

func (tm *TokenManager) createToken(msg *JWTMessage, ttl int) (string, error) {
	expiresAt := time.Now().Add(time.Hour * time.Duration(ttl))

	claims := &JWTClaims{
		UserID:   msg.UserID,
		Username: msg.Username,
		OrgID:    msg.OrgID,
		OrgRole:  msg.OrgRole,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(tm.secretKey))
}

// CreateTokens creates a new access token and a new refresh token
func (tm *TokenManager) CreateTokens(msg *JWTMessage) (
	accessToken string, refreshToken string, err error) {
	accessToken, err = tm.createToken(msg, tm.accessTokenTTL)
	if err != nil {
		logutils.Log.Error(err)
		return "", "", err
	}
	refreshToken, err = tm.createToken(msg, tm.refreshTokenTTL)
	if err != nil {
		logutils.Log.Error(err)
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

func (tm *TokenManager) CheckToken(requestToken string) (JWTMessage, error) {
	claims := JWTClaims{}
	_, err := jwt.ParseWithClaims(requestToken, &claims, func(_ *jwt.Token) (any, error) {
		return []byte(tm.secretKey), nil
	})
	return JWTMessage{
		UserID:   claims.UserID,
		Username: claims.Username,
		OrgID:    claims.OrgID,
		OrgRole:  claims.OrgRole,
	}, err
}
