package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"Walcord/internal/feed"
	"Walcord/internal/logger"
	"Walcord/internal/middleware"
	"Walcord/internal/pkg"
	"Walcord/internal/repository/mysql"
	"Walcord/internal/service"
)

func userIDFromCtx(c *gin.Context) uint64 {
	if v, ok := c.Get(middleware.ContextUserIDKey); ok {
		if id, ok2 := v.(uint64); ok2 {
			return id
		}
	}
	return 0
}

// paramID 读取路径参数中的正整数 id
func paramID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid " + name})
		return 0, false
	}
	return id, true
}

func cursorQuery(c *gin.Context) (uint64, int) {
	cursor, _ := strconv.ParseUint(c.Query("cursor"), 10, 64)
	limit, _ := strconv.Atoi(c.Query("limit"))
	return cursor, limit
}

var (
	badRequest = []error{
		service.ErrInvalidUserID,
		service.ErrCannotFollowSelf,
		service.ErrCannotFriendSelf,
		service.ErrInvalidEntity,
		service.ErrEmptyComment,
		service.ErrInvalidCode,
		service.ErrWeakPassword,
		service.ErrUnknownCodeScope,
		service.ErrNoMedia,
		service.ErrTooManyMedia,
		service.ErrInvalidMediaType,
		service.ErrMissingArtist,
		service.ErrMissingTitle,
		feed.ErrUnknownKind,
		feed.ErrUnknownScope,
		feed.ErrScopeNotAllowed,
		feed.ErrFilterRequired,
	}
	notFound = []error{
		service.ErrUserNotFound,
		service.ErrSessionNotFound,
		feed.ErrUnknownSurface,
		mysql.ErrEntityNotFound,
		mysql.ErrCommentNotFound,
		mysql.ErrFriendshipNotFound,
		gorm.ErrRecordNotFound,
	}
	unauthorized = []error{
		service.ErrInvalidCredentials,
		service.ErrSessionReplaced,
		pkg.ErrRefreshExpired,
		pkg.ErrRefreshInvalid,
	}
	forbidden = []error{
		service.ErrWrongPassword,
		mysql.ErrNotOwner,
		mysql.ErrNotCommentOwner,
	}
)

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// fail 把业务错误映射成状态码，未知错误只记日志不外泄
func fail(c *gin.Context, err error) {
	switch {
	case isAny(err, badRequest):
		c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
	case isAny(err, notFound):
		c.JSON(http.StatusNotFound, gin.H{"msg": err.Error()})
	case isAny(err, unauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"msg": err.Error()})
	case isAny(err, forbidden):
		c.JSON(http.StatusForbidden, gin.H{"msg": err.Error()})
	case errors.Is(err, gorm.ErrDuplicatedKey):
		c.JSON(http.StatusConflict, gin.H{"msg": "already exists"})
	default:
		_ = c.Error(err)
		logger.For(c).WithError(err).Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"msg": "internal error"})
	}
}
