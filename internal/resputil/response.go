package resputil

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the envelope for every endpoint; the type parameter
// exists so swagger annotations can name the payload shape.
type Response[T any] struct {
	Code ErrorCode `json:"code"`
	Data T         `json:"data"`
	Msg  string    `json:"msg"`
}

func httpStatusFor(code ErrorCode) int {
	switch code {
	case OK:
		return http.StatusOK
	case InvalidRequest:
		return http.StatusBadRequest
	case TokenExpired, TokenInvalid, InvalidCredentials:
		return http.StatusUnauthorized
	case NotAllowed:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func wrapResponse(c *gin.Context, httpCode int, msg string, data any, code ErrorCode) {
	c.JSON(httpCode, gin.H{
		"code": code,
		"data": data,
		"msg":  msg,
	})
}

func Success(c *gin.Context, data any) {
	wrapResponse(c, http.StatusOK, "", data, OK)
}

// Error renders a typed failure; the HTTP status is derived from the
// error code so handlers never deal with status numbers directly.
func Error(c *gin.Context, msg string, code ErrorCode) {
	wrapResponse(c, httpStatusFor(code), msg, nil, code)
}

// HTTPError is for the rare case where the status must differ from
// what the code implies (e.g. auth middleware).
func HTTPError(c *gin.Context, httpCode int, msg string, code ErrorCode) {
	wrapResponse(c, httpCode, msg, nil, code)
}

func BadRequestError(c *gin.Context, msg string) {
	Error(c, msg, InvalidRequest)
}
