package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"Walcord/internal/logger"
	"Walcord/internal/pkg"
	"Walcord/internal/service"
)

const ContextUserIDKey = "user_id"

var (
	errMissingHeader = errors.New("missing authorization header")
	errBadFormat     = errors.New("invalid authorization format")
)

// Authenticator 校验 access token 并返回用户 id
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (uint64, error)
}

func bearer(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", errMissingHeader
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", errBadFormat
	}
	return parts[1], nil
}

func rejected(err error) bool {
	return errors.Is(err, pkg.ErrTokenExpired) ||
		errors.Is(err, pkg.ErrTokenInvalid) ||
		errors.Is(err, service.ErrSessionReplaced)
}

// AuthMiddleware 必须登录的接口
func AuthMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, err := bearer(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": err.Error()})
			return
		}

		userID, err := auth.Authenticate(c.Request.Context(), tokenStr)
		if rejected(err) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": err.Error()})
			return
		}
		if err != nil {
			logger.For(c).WithError(err).Error("authenticate failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"msg": "internal error"})
			return
		}

		// 注入 user_id
		c.Set(ContextUserIDKey, userID)
		c.Next()
	}
}

// ViewerMiddleware 登录可选的接口。没有或无效的 token 按未登录处理，user_id 为 0
func ViewerMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var userID uint64
		if tokenStr, err := bearer(c); err == nil {
			id, err := auth.Authenticate(c.Request.Context(), tokenStr)
			switch {
			case err == nil:
				userID = id
			case !rejected(err):
				logger.For(c).WithError(err).Warn("viewer authenticate failed, treating as signed out")
			}
		}
		c.Set(ContextUserIDKey, userID)
		c.Next()
	}
}
