package server

import (
	"errors"
	"net/http"

	"recipedia/internal/auth"
	"recipedia/internal/mw"
	"recipedia/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// statusOf 把业务错误映射为 HTTP 状态码，未知错误返回 0。
func statusOf(err error) int {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidResetToken):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrRoomNotFound),
		errors.Is(err, service.ErrInviteNotFound),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrRecipeNotFound),
		errors.Is(err, service.ErrMemberNotFound),
		errors.Is(err, service.ErrNoDishes):
		return http.StatusNotFound
	case errors.Is(err, service.ErrNotMember),
		errors.Is(err, service.ErrNotRoomCreator),
		errors.Is(err, service.ErrNotRecipeOwner):
		return http.StatusForbidden
	case errors.Is(err, service.ErrInviteUsed),
		errors.Is(err, service.ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, service.ErrInviteExpired):
		return http.StatusGone
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrInviteCodeExhausted):
		return http.StatusServiceUnavailable
	}
	return 0
}

// writeError 输出业务错误；未知错误只记录日志，对外返回通用信息。
func writeError(c *gin.Context, err error, op string) {
	if status := statusOf(err); status != 0 {
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	log.Error().Err(err).
		Str("op", op).
		Str("request_id", mw.RequestID(c)).
		Uint("user_id", auth.GetUserID(c)).
		Msg("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
